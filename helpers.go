package kubewarden

import (
	"github.com/kubewarden/policy-sdk-go/application/policy"
	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/wireformat"
)

// Register binds def to the exported entry points of the module. Call it
// from an init function: wasip1 reactors never run main.
func Register(def Definition, opts ...policy.Option) error {
	return policy.Register(def, opts...)
}

// AcceptRequest returns the envelope of an accepted request.
func AcceptRequest() ([]byte, error) {
	return encodeOutcome(entities.Accept())
}

// AcceptRequestWithWarnings returns the envelope of an accepted request
// carrying warnings for the API client.
func AcceptRequestWithWarnings(warnings ...string) ([]byte, error) {
	return encodeOutcome(entities.AcceptWithWarnings(warnings...))
}

// RejectRequest returns the envelope of a rejected request.
func RejectRequest(message Message, code Code) ([]byte, error) {
	return encodeOutcome(entities.Reject(string(code), string(message)))
}

// MutateRequest returns the envelope of a request accepted with obj as the
// replacement object. obj must encode to a JSON object.
func MutateRequest(obj any) ([]byte, error) {
	return encodeOutcome(entities.AcceptWithMutation(obj))
}

// AcceptSettings returns the envelope of valid settings.
func AcceptSettings() ([]byte, error) {
	return wireformat.Encode(entities.SettingsAccepted())
}

// RejectSettings returns the envelope of invalid settings.
func RejectSettings(message Message) ([]byte, error) {
	return wireformat.Encode(entities.SettingsRejected(string(message)))
}

func encodeOutcome(outcome entities.ValidationOutcome) ([]byte, error) {
	resp, err := wireformat.ResponseFromOutcome(outcome)
	if err != nil {
		return nil, err
	}
	return wireformat.Encode(resp)
}
