package kubewarden

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/kubewarden/policy-sdk-go/domain/errors"
	"github.com/kubewarden/policy-sdk-go/wireformat"
)

// Settings is an untyped settings document, for policies that do not
// declare a settings struct.
type Settings map[string]any

// ParseSettings decodes a settings document. A null document yields an
// empty Settings.
func ParseSettings(raw []byte) (Settings, error) {
	s, err := wireformat.DecodeSettings[Settings](raw)
	if err != nil {
		return nil, err
	}
	if s == nil {
		s = Settings{}
	}
	return s, nil
}

// String returns the value of key if it is a string.
func (s Settings) String(key string) (string, bool) {
	v, ok := s[key].(string)
	return v, ok
}

// Int returns the value of key if it is an integral number.
// JSON numbers are decoded as float64; a fractional value is not an int.
func (s Settings) Int(key string) (int, bool) {
	switch n := s[key].(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

// Bool returns the value of key if it is a bool.
func (s Settings) Bool(key string) (bool, bool) {
	v, ok := s[key].(bool)
	return v, ok
}

// StringSlice returns the value of key if it is a list of strings.
func (s Settings) StringSlice(key string) ([]string, bool) {
	switch v := s[key].(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	default:
		return nil, false
	}
}

// StringDefault returns the string value of key, or def when it is missing
// or not a string.
func (s Settings) StringDefault(key, def string) string {
	if v, ok := s.String(key); ok {
		return v
	}
	return def
}

// IntDefault returns the int value of key, or def.
func (s Settings) IntDefault(key string, def int) int {
	if v, ok := s.Int(key); ok {
		return v
	}
	return def
}

// BoolDefault returns the bool value of key, or def.
func (s Settings) BoolDefault(key string, def bool) bool {
	if v, ok := s.Bool(key); ok {
		return v
	}
	return def
}

// RequireString returns the string value of key or a *errors.ConfigError.
func (s Settings) RequireString(key string) (string, error) {
	v, ok := s.String(key)
	if !ok {
		return "", &errors.ConfigError{
			Field: key,
			Err:   fmt.Errorf("required string field '%s' is missing or not a string", key),
		}
	}
	return v, nil
}

// RequireInt returns the int value of key or a *errors.ConfigError.
func (s Settings) RequireInt(key string) (int, error) {
	v, ok := s.Int(key)
	if !ok {
		return 0, &errors.ConfigError{
			Field: key,
			Err:   fmt.Errorf("required int field '%s' is missing or not an integer", key),
		}
	}
	return v, nil
}
