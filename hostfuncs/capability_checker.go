package hostfuncs

import (
	"fmt"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
)

// CapabilityChecker decides which calls a policy may make, based on the
// capability patterns of its metadata. Only calls on the kubewarden binding
// are checked; the log sink is always allowed.
type CapabilityChecker struct {
	metadata *entities.Metadata
	always   map[string]bool
}

// CapabilityCheckerOption configures a CapabilityChecker.
type CapabilityCheckerOption func(*CapabilityChecker)

// WithAlwaysAllowed lets the given capabilities through regardless of metadata.
func WithAlwaysAllowed(capabilities ...entities.Capability) CapabilityCheckerOption {
	return func(c *CapabilityChecker) {
		for _, capability := range capabilities {
			c.always[capability.String()] = true
		}
	}
}

// NewCapabilityChecker creates a checker for a policy's metadata. A nil
// metadata allows nothing but the always allowed capabilities.
func NewCapabilityChecker(metadata *entities.Metadata, opts ...CapabilityCheckerOption) *CapabilityChecker {
	c := &CapabilityChecker{
		metadata: metadata,
		always:   map[string]bool{LogCapability.String(): true},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check returns a NOT_GRANTED ErrorResponse when call is not allowed.
func (c *CapabilityChecker) Check(call Call) error {
	if call.Binding != "" && call.Binding != entities.HostBinding {
		return nil
	}
	capability := call.Capability()
	if c.always[capability.String()] {
		return nil
	}
	if c.metadata != nil && c.metadata.Allows(capability) {
		return nil
	}
	return NewNotGrantedError(fmt.Sprintf("capability %s is not declared by the policy", capability))
}
