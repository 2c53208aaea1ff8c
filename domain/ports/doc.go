// Package ports defines the interfaces between policy logic and the host.
// Policy code depends on these abstractions; the capability client and the
// wasm host-call adapter implement them, and tests substitute fakes.
package ports
