// Package kubewarden is the entry point of the Kubewarden policy SDK for Go.
//
// Most policies only need Register and the outcome helpers:
//
//	func init() {
//		kubewarden.Register(kubewarden.Definition{
//			Metadata: entities.Metadata{ProtocolVersion: entities.ProtocolV1},
//			Validate: policy.Typed(validate),
//			ValidateSettings: settings.Validator[Settings](),
//		})
//	}
//
// The envelope helpers (AcceptRequest, RejectRequest, MutateRequest,
// AcceptSettings, RejectSettings) build the exact bytes the host expects and
// are mostly useful in tests and for policies that drive the exports by hand.
package kubewarden

import (
	"github.com/kubewarden/policy-sdk-go/application/policy"
	"github.com/kubewarden/policy-sdk-go/domain/entities"
)

// Re-exported so simple policies can import a single package.
type (
	ValidationRequest          = entities.ValidationRequest
	ValidationResponse         = entities.ValidationResponse
	ValidationOutcome          = entities.ValidationOutcome
	SettingsValidationResponse = entities.SettingsValidationResponse
	Metadata                   = entities.Metadata
	Definition                 = policy.Definition
	Host                       = policy.Host
)

// Message is the human readable reason of a rejection.
type Message string

// Code is the machine readable code of a rejection.
type Code string

// NoCode rejects without a specific code.
const NoCode Code = ""

const (
	// Version of the SDK
	Version = "0.1.0"
	// MinKubewardenVersion is the oldest Kubewarden release speaking the
	// protocol this SDK implements.
	MinKubewardenVersion = "1.10.0"
)
