// Package capabilities is the guest side of the host capability protocol.
//
// Every privileged operation (DNS resolution, OCI registry queries, Sigstore and
// certificate verification, cluster reads) is a named, versioned call through the
// single host_call primitive. Call encodes the request, invokes the host, and
// either decodes the reply or maps the failure to a typed error from
// domain/errors:
//
//   - *errors.NotGrantedError: the capability is not declared in the policy
//     metadata, or the host refused it.
//   - *errors.TimeoutError: the host gave up on the call.
//   - *errors.HostError: any other host side failure.
//   - *errors.DecodeError: the request could not be encoded, or the reply did
//     not match the expected schema.
//
// Failures are values. Nothing in this package panics across the host boundary.
package capabilities
