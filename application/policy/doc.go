// Package policy is the runtime shim between the host and a policy author's code.
//
// An author describes the policy with a Definition: its metadata and two
// functions, one validating admission requests and one validating settings.
// The Runtime decodes what the host sends, runs the author's functions with
// panic recovery, and always answers with a well formed envelope:
//
//	Received -> Decoded -> AuthorLogicRunning -> OutcomeEncoded -> Returned
//
// Failures never escape the shim. A request that cannot be decoded is rejected
// with code decode-error, an author error is rejected with the code of the
// error (see domain/errors.Code), and a panic or an invalid outcome is rejected
// with code internal-error.
//
// In a wasip1 build, Register binds a Definition to the exported functions
// validate, validate_settings and protocol_version.
package policy
