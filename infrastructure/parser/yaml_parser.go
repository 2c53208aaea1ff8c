// Package parser reads the YAML documents that accompany a policy:
// metadata.yml and Sigstore verification configs.
//
// YAML is first decoded into generic values and then re-encoded as JSON, so
// both formats share the json tags and custom unmarshalers of the entities.
package parser

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/kubewarden/policy-sdk-go/domain/entities"
	"github.com/kubewarden/policy-sdk-go/domain/errors"
	"github.com/kubewarden/policy-sdk-go/domain/ports"
)

// Option configures the parsers.
type Option func(*config)

type config struct {
	allowUnknownFields bool
}

// WithUnknownFields makes the parser ignore keys it does not know instead of
// failing.
func WithUnknownFields() Option {
	return func(c *config) {
		c.allowUnknownFields = true
	}
}

func newConfig(opts []Option) config {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// YamlMetadataParser implements ports.MetadataParser for metadata.yml.
type YamlMetadataParser struct {
	cfg config
}

// NewYamlMetadataParser creates a new YamlMetadataParser.
func NewYamlMetadataParser(opts ...Option) ports.MetadataParser {
	return &YamlMetadataParser{cfg: newConfig(opts)}
}

// Parse decodes metadata and validates it. A missing protocolVersion means
// the current one.
func (p *YamlMetadataParser) Parse(data []byte) (*entities.Metadata, error) {
	var m entities.Metadata
	if err := decodeYAML(data, &m, "metadata", p.cfg); err != nil {
		return nil, err
	}
	if m.ProtocolVersion == entities.ProtocolUnknown {
		m.ProtocolVersion = entities.CurrentProtocolVersion
	}
	if err := m.Validate(); err != nil {
		return nil, &errors.ConfigError{Field: "metadata", Err: err}
	}
	return &m, nil
}

// YamlVerificationConfigParser implements ports.VerificationConfigParser.
type YamlVerificationConfigParser struct {
	cfg config
}

// NewYamlVerificationConfigParser creates a new YamlVerificationConfigParser.
func NewYamlVerificationConfigParser(opts ...Option) ports.VerificationConfigParser {
	return &YamlVerificationConfigParser{cfg: newConfig(opts)}
}

// Parse decodes a versioned verification config and returns its latest form.
func (p *YamlVerificationConfigParser) Parse(data []byte) (*entities.VerificationConfigV1, error) {
	var versioned entities.VersionedVerificationConfig
	if err := decodeYAML(data, &versioned, "verification config", p.cfg); err != nil {
		return nil, err
	}
	latest, err := versioned.Latest()
	if err != nil {
		return nil, &errors.ConfigError{Field: "verification config", Err: err}
	}
	return &latest, nil
}

// decodeYAML decodes a YAML (or JSON) document into out through JSON.
func decodeYAML(data []byte, out any, what string, cfg config) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return &errors.DecodeError{Type: what, Err: err}
	}
	if doc == nil {
		return &errors.DecodeError{Type: what, Err: fmt.Errorf("empty document")}
	}

	normalized, err := normalize(doc)
	if err != nil {
		return &errors.DecodeError{Type: what, Err: err}
	}
	encoded, err := json.Marshal(normalized)
	if err != nil {
		return &errors.DecodeError{Type: what, Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader(encoded))
	if !cfg.allowUnknownFields {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(out); err != nil {
		return &errors.DecodeError{Type: what, Err: err}
	}
	return nil
}

// normalize turns the generic YAML values into values encoding/json style
// marshalers accept: maps must have string keys.
func normalize(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			n, err := normalize(val)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("unsupported non-string key %v", k)
			}
			n, err := normalize(val)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			n, err := normalize(val)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return v, nil
	}
}
