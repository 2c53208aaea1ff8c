package policytest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubewarden/policy-sdk-go/application/policy"
	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/domain/ports"
	"github.com/kubewarden/policy-sdk-go/host"
	"github.com/kubewarden/policy-sdk-go/wireformat"
)

// ValidateFunc answers an encoded validate payload with an encoded response.
type ValidateFunc func(payload []byte) ([]byte, error)

// FromRuntime evaluates cases in process.
func FromRuntime(rt *policy.Runtime) ValidateFunc {
	return func(payload []byte) ([]byte, error) {
		return rt.Validate(payload), nil
	}
}

// FromInstance evaluates cases against a compiled policy.
func FromInstance(ctx context.Context, inst *host.PolicyInstance) ValidateFunc {
	return func(payload []byte) ([]byte, error) {
		return inst.ValidateRaw(ctx, payload)
	}
}

// TestCase defines one evaluation of a policy.
type TestCase[S any] struct {
	Name string

	// FixtureFile holds the admission request, either bare or wrapped in an
	// AdmissionReview.
	FixtureFile string

	Settings S

	ExpectedAccepted bool

	// ExpectedCode, when set, must match the code of a rejection.
	ExpectedCode string

	// Check runs extra assertions on the decoded response.
	Check func(t *testing.T, resp *entities.ValidationResponse)
}

// Eval runs the case and asserts the verdict. It returns the decoded response.
func (tc TestCase[S]) Eval(t *testing.T, validate ValidateFunc) *entities.ValidationResponse {
	t.Helper()

	payload, err := Payload(tc.FixtureFile, tc.Settings)
	require.NoError(t, err, "test case %q", tc.Name)

	raw, err := validate(payload)
	require.NoError(t, err, "test case %q", tc.Name)

	resp, err := wireformat.DecodeValidationResponse(raw)
	require.NoError(t, err, "test case %q: malformed response %s", tc.Name, raw)

	assert.Equal(t, tc.ExpectedAccepted, resp.Accepted,
		"Failure for test case: %q: got %v instead of %v (message: %s)",
		tc.Name, resp.Accepted, tc.ExpectedAccepted, deref(resp.Message))

	if tc.ExpectedCode != "" && !resp.Accepted {
		assert.Equal(t, tc.ExpectedCode, deref(resp.Code), "test case %q", tc.Name)
	}
	if tc.Check != nil {
		tc.Check(t, resp)
	}
	return resp
}

// Run evaluates every case as a subtest.
func Run[S any](t *testing.T, validate ValidateFunc, cases []TestCase[S]) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			tc.Eval(t, validate)
		})
	}
}

// Payload builds the validate envelope for the request in fixtureFile.
func Payload(fixtureFile string, settings any) ([]byte, error) {
	data, err := os.ReadFile(fixtureFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	request, err := RequestFromFixture(data)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", fixtureFile, err)
	}
	return BuildPayload(request, settings)
}

// BuildPayload wraps an encoded admission request and settings into a
// validate envelope.
func BuildPayload(request json.RawMessage, settings any) ([]byte, error) {
	settingsDoc, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	return json.Marshal(struct {
		Settings json.RawMessage `json:"settings"`
		Request  json.RawMessage `json:"request"`
	}{Settings: settingsDoc, Request: request})
}

// RequestFromFixture extracts the admission request from a fixture. An
// AdmissionReview is unwrapped; anything else must be the request itself.
func RequestFromFixture(data []byte) (json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if !wireformat.Valid(data) {
		return nil, fmt.Errorf("fixture is not valid JSON")
	}

	// A bare request carries kind as a GroupVersionKind object, so only a
	// string kind can mark an AdmissionReview.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("fixture must be a JSON object: %w", err)
	}
	var kind string
	if raw, ok := fields["kind"]; ok && json.Unmarshal(raw, &kind) == nil && kind == "AdmissionReview" {
		request := bytes.TrimSpace(fields["request"])
		if len(request) == 0 || bytes.Equal(request, []byte("null")) {
			return nil, fmt.Errorf("AdmissionReview carries no request")
		}
		return json.RawMessage(request), nil
	}
	return json.RawMessage(data), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// NewRuntime builds an in-process runtime for def, failing t on error.
func NewRuntime(t *testing.T, def policy.Definition, host ports.HostCaller, opts ...policy.Option) *policy.Runtime {
	t.Helper()
	rt, err := policy.NewRuntime(def, host, opts...)
	require.NoError(t, err)
	return rt
}
