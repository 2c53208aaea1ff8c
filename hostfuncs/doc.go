// Package hostfuncs implements the host side of the capability protocol in
// pure Go, with no WASM runtime dependency.
//
// A HandlerRegistry maps capability calls (binding, namespace, operation) to
// handlers. It is used in two places: as an in-process ports.HostCaller that
// lets policy code run natively in tests, and behind the kubewarden.host_call
// import of the wazero harness in package host.
//
// Handler failures travel as ErrorResponse JSON documents, the same payloads a
// production host returns with the error flag set.
package hostfuncs
