package entities

import (
	"strconv"
	"strings"
)

// HostBinding is the waPC binding every host capability is reached through.
const HostBinding = "kubewarden"

// Capability identifies a privileged operation the host performs on behalf of the guest.
// Capabilities form an open registry keyed by namespace, name and version: any
// value can be called, the host decides whether it exists and is granted.
type Capability struct {
	// Namespace groups related capabilities (e.g. "oci", "net", "kubernetes").
	Namespace string `json:"namespace"`

	// Name is the operation name within the namespace (e.g. "manifest_digest").
	Name string `json:"name"`

	// Version is the payload schema version. Zero means the operation is unversioned.
	Version uint32 `json:"version,omitempty"`
}

// NewCapability creates an unversioned capability.
func NewCapability(namespace, name string) Capability {
	return Capability{Namespace: namespace, Name: name}
}

// WithVersion returns a copy of the capability pinned to the given version.
func (c Capability) WithVersion(version uint32) Capability {
	c.Version = version
	return c
}

// Operation returns the operation string sent to the host ("v1/manifest_digest").
func (c Capability) Operation() string {
	if c.Version == 0 {
		return c.Name
	}
	return "v" + strconv.FormatUint(uint64(c.Version), 10) + "/" + c.Name
}

// String returns "namespace/operation", the form matched against declared capability patterns.
func (c Capability) String() string {
	return c.Namespace + "/" + c.Operation()
}

// ParseCapability parses the "namespace/operation" form produced by String.
func ParseCapability(s string) (Capability, bool) {
	namespace, operation, ok := strings.Cut(s, "/")
	if !ok || namespace == "" || operation == "" {
		return Capability{}, false
	}
	c := Capability{Namespace: namespace, Name: operation}
	if rest, found := strings.CutPrefix(operation, "v"); found {
		if num, name, ok := strings.Cut(rest, "/"); ok && name != "" {
			if v, err := strconv.ParseUint(num, 10, 32); err == nil {
				c.Name = name
				c.Version = uint32(v)
			}
		}
	}
	return c, true
}

// CapabilityCall is a fully serialized request for a capability.
type CapabilityCall struct {
	// Capability is the operation being requested.
	Capability Capability

	// Payload is the encoded request argument.
	Payload []byte
}
