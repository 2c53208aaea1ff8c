package settings

import (
	"bytes"
	stdErrors "errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kubewarden/policy-sdk-go/application/schema"
	"github.com/kubewarden/policy-sdk-go/domain/errors"
	"github.com/kubewarden/policy-sdk-go/domain/ports"
)

// schemaResource is the URL the settings schema is registered under.
const schemaResource = "settings.json"

// Compile-time interface compliance check
var _ ports.DocumentValidator = (*SchemaValidator)(nil)

// SchemaValidator validates raw settings documents against a JSON schema.
type SchemaValidator struct {
	schema *jsonschema.Schema
}

// NewSchemaValidator compiles a JSON schema document.
func NewSchemaValidator(schemaDoc []byte) (*SchemaValidator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	if err := compiler.AddResource(schemaResource, bytes.NewReader(schemaDoc)); err != nil {
		return nil, &errors.SchemaError{Err: fmt.Errorf("failed to add schema resource: %w", err)}
	}

	sch, err := compiler.Compile(schemaResource)
	if err != nil {
		return nil, &errors.SchemaError{Err: fmt.Errorf("invalid schema: %w", err)}
	}
	return &SchemaValidator{schema: sch}, nil
}

// SchemaFor generates the schema of S and compiles it.
func SchemaFor[S any]() (*SchemaValidator, error) {
	doc, err := schema.Generate[S]()
	if err != nil {
		return nil, err
	}
	return NewSchemaValidator(doc)
}

// Validate checks a raw JSON document. Violations are reported as a
// *errors.ConfigError naming the first failing location.
func (v *SchemaValidator) Validate(document []byte) error {
	var obj any
	if err := json.Unmarshal(document, &obj); err != nil {
		return &errors.DecodeError{Type: "settings", Err: err}
	}

	if err := v.schema.Validate(obj); err != nil {
		var ve *jsonschema.ValidationError
		if stdErrors.As(err, &ve) {
			leaf := firstLeaf(ve)
			return &errors.ConfigError{Field: leaf.InstanceLocation, Err: stdErrors.New(leaf.Message)}
		}
		return &errors.ConfigError{Err: err}
	}
	return nil
}

// firstLeaf returns the most specific cause of a validation error.
func firstLeaf(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}
