package entities

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ProtocolVersion identifies the guest/host wire contract a policy was built against.
type ProtocolVersion uint32

const (
	// ProtocolUnknown is the zero value and is never valid on the wire.
	ProtocolUnknown ProtocolVersion = 0

	// ProtocolV1 is the waPC based protocol spoken by this SDK.
	ProtocolV1 ProtocolVersion = 1
)

// CurrentProtocolVersion is the version reported by the protocol_version export.
const CurrentProtocolVersion = ProtocolV1

// String returns the wire form of the version ("v1").
func (v ProtocolVersion) String() string {
	if v == ProtocolUnknown {
		return "unknown"
	}
	return "v" + strconv.FormatUint(uint64(v), 10)
}

// Known reports whether the version is one this SDK can speak.
func (v ProtocolVersion) Known() bool {
	return v == ProtocolV1
}

// ParseProtocolVersion parses the textual form ("v1") of a protocol version.
func ParseProtocolVersion(s string) (ProtocolVersion, error) {
	if !strings.HasPrefix(s, "v") {
		return ProtocolUnknown, fmt.Errorf("invalid protocol version %q", s)
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "v"), 10, 32)
	if err != nil {
		return ProtocolUnknown, fmt.Errorf("invalid protocol version %q: %w", s, err)
	}
	v := ProtocolVersion(n)
	if !v.Known() {
		return ProtocolUnknown, fmt.Errorf("unsupported protocol version %q", s)
	}
	return v, nil
}

// MarshalJSON encodes the version as its textual form.
func (v ProtocolVersion) MarshalJSON() ([]byte, error) {
	if !v.Known() {
		return nil, fmt.Errorf("cannot encode protocol version %d", uint32(v))
	}
	return json.Marshal(v.String())
}

// UnmarshalJSON decodes the textual form of a version.
func (v *ProtocolVersion) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("protocol version must be a string: %w", err)
	}
	parsed, err := ParseProtocolVersion(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
