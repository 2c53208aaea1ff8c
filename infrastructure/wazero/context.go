package wazero

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// contextKey is a private type for context keys.
type contextKey struct {
	name string
}

var policyNameKey = &contextKey{name: "policy_name"}

// WithPolicyName adds the policy name to the context, so host handlers and
// their logs can tell which policy instance made a call.
func WithPolicyName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, policyNameKey, name)
}

// PolicyNameFromContext retrieves the policy name from the context.
func PolicyNameFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(policyNameKey).(string)
	return name, ok
}

// PolicyName extracts the policy name from context, falling back to the module name.
func PolicyName(ctx context.Context, mod api.Module) string {
	if name, ok := PolicyNameFromContext(ctx); ok && name != "" {
		return name
	}
	return mod.Name()
}
