package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/kubewarden/policy-sdk-go/hostfuncs"
	"github.com/kubewarden/policy-sdk-go/wireformat"
)

// toJSON returns data as a JSON document. Input that is not JSON is read as
// YAML; an empty document is null.
func toJSON(data []byte) (json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return json.RawMessage("null"), nil
	}
	if wireformat.Valid(data) {
		return json.RawMessage(data), nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("neither JSON nor YAML: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("cannot convert YAML to JSON: %w", err)
	}
	return out, nil
}

// loadSettings resolves the settings document from an inline value or a file.
func loadSettings(inline, path string) (json.RawMessage, error) {
	switch {
	case inline != "" && path != "":
		return nil, fmt.Errorf("--settings and --settings-file are mutually exclusive")
	case inline != "":
		doc, err := toJSON([]byte(inline))
		if err != nil {
			return nil, fmt.Errorf("settings: %w", err)
		}
		return doc, nil
	case path != "":
		data, err := os.ReadFile(path) //nolint:gosec // G304: user supplied path is intentional
		if err != nil {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
		doc, err := toJSON(data)
		if err != nil {
			return nil, fmt.Errorf("settings %s: %w", path, err)
		}
		return doc, nil
	default:
		return json.RawMessage("null"), nil
	}
}

// loadHostResponses reads canned capability replies keyed like the host
// registry ("oci/v1/manifest_digest", "kubernetes:namespaces/list", ...).
// A value with string "error" and integer "code" fields is an error reply.
func loadHostResponses(path string) (map[string]any, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: user supplied path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to read host responses: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("host responses %s: %w", path, err)
	}

	responses := make(map[string]any, len(raw))
	for key, value := range raw {
		if _, ok := hostfuncs.ParseKey(key); !ok {
			return nil, fmt.Errorf("host responses %s: malformed key %q", path, key)
		}
		if errResp, ok := asErrorResponse(value); ok {
			responses[key] = errResp
			continue
		}
		responses[key] = value
	}
	return responses, nil
}

func asErrorResponse(value any) (hostfuncs.ErrorResponse, bool) {
	m, ok := value.(map[string]any)
	if !ok {
		return hostfuncs.ErrorResponse{}, false
	}
	typ, ok := m["error"].(string)
	if !ok {
		return hostfuncs.ErrorResponse{}, false
	}
	code, ok := m["code"].(int)
	if !ok {
		return hostfuncs.ErrorResponse{}, false
	}
	message, _ := m["message"].(string)
	return hostfuncs.ErrorResponse{Type: typ, Message: message, Code: code}, true
}
