//go:build wasip1

// Package wasm provides infrastructure adapters that interface with the WASM host environment.
package wasm

// Define the single host function every capability goes through. Each argument is
// a packed ptr/len of guest memory; the result is a packed ptr/len of a buffer the
// host allocated in guest memory, with abi.ErrorFlag set when it holds an error.
//
//go:wasmimport kubewarden host_call
//nolint:revive // intentional snake_case to match WASM import convention
func host_call(bindingPacked, namespacePacked, operationPacked, payloadPacked uint64) uint64
