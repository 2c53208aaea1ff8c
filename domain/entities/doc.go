// Package entities provides the core domain types of the policy SDK.
// These types double as the JSON wire format exchanged with the policy host:
// admission requests, validation responses, settings responses, metadata and
// the payloads of every host capability.
package entities
