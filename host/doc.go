// Package host runs compiled Kubewarden policies outside a cluster.
//
// It embeds the wazero runtime, provides the kubewarden.host_call import from
// a hostfuncs.HandlerRegistry, and drives the policy's validate,
// validate_settings and protocol_version exports with the same envelopes the
// policy server uses. It is meant for policy tests and for the kwpolicy CLI.
package host
