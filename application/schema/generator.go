// Package schema generates JSON schemas for policy settings.
package schema

import (
	"fmt"
	"reflect"

	"github.com/goccy/go-json"
	"github.com/invopop/jsonschema"

	"github.com/kubewarden/policy-sdk-go/domain/errors"
)

// newReflector returns the reflector used for settings types. Fields without
// omitempty are required and unknown properties are rejected.
func newReflector() *jsonschema.Reflector {
	return &jsonschema.Reflector{
		ExpandedStruct: true, // Expand struct definitions inline
		Anonymous:      true, // No $id derived from the Go package path
	}
}

// GenerateSchema creates a JSON schema (Draft 2020-12) from a Go struct.
func GenerateSchema(v any) ([]byte, error) {
	if v == nil {
		return nil, &errors.SchemaError{Err: fmt.Errorf("cannot generate a schema for nil")}
	}
	return generate(reflect.TypeOf(v))
}

// Generate creates the JSON schema of settings type S.
func Generate[S any]() ([]byte, error) {
	return generate(reflect.TypeFor[S]())
}

func generate(t reflect.Type) ([]byte, error) {
	s := newReflector().ReflectFromType(t)

	jsonBytes, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, &errors.SchemaError{Type: t.String(), Err: err}
	}

	return jsonBytes, nil
}
