package policytest

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
)

// AssertAccepted asserts the request was accepted.
func AssertAccepted(t *testing.T, resp *entities.ValidationResponse) {
	t.Helper()
	if !resp.Accepted {
		t.Errorf("expected acceptance, got rejection %s: %s", deref(resp.Code), deref(resp.Message))
	}
}

// AssertRejected asserts the request was rejected with code. An empty code
// matches any rejection.
func AssertRejected(t *testing.T, resp *entities.ValidationResponse, code string) {
	t.Helper()
	if resp.Accepted {
		t.Errorf("expected rejection, got acceptance")
		return
	}
	if code != "" {
		assert.Equal(t, code, deref(resp.Code))
	}
}

// AssertMessageContains asserts the rejection message contains substr.
func AssertMessageContains(t *testing.T, resp *entities.ValidationResponse, substr string) {
	t.Helper()
	assert.Contains(t, deref(resp.Message), substr)
}

// AssertMutated asserts the request was accepted with a mutated object and
// returns that object decoded.
func AssertMutated(t *testing.T, resp *entities.ValidationResponse) map[string]any {
	t.Helper()
	require.True(t, resp.Accepted, "expected a mutation, got rejection %s", deref(resp.Message))
	require.NotEmpty(t, resp.MutatedObject, "expected a mutated object")

	var obj map[string]any
	require.NoError(t, json.Unmarshal(resp.MutatedObject, &obj))
	return obj
}

// AssertNotMutated asserts the response carries no mutated object.
func AssertNotMutated(t *testing.T, resp *entities.ValidationResponse) {
	t.Helper()
	assert.Empty(t, resp.MutatedObject)
}

// AssertWarning asserts the response carries warning.
func AssertWarning(t *testing.T, resp *entities.ValidationResponse, warning string) {
	t.Helper()
	assert.Contains(t, resp.Warnings, warning)
}
