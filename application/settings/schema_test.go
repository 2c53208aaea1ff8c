package settings

import (
	"context"
	stdErrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubewarden/policy-sdk-go/domain/errors"
)

const thresholdSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "threshold": {"type": "integer", "minimum": 0}
  },
  "required": ["threshold"]
}`

func TestSchemaValidator(t *testing.T) {
	v, err := NewSchemaValidator([]byte(thresholdSchema))
	require.NoError(t, err)

	assert.NoError(t, v.Validate([]byte(`{"threshold": 2}`)))

	err = v.Validate([]byte(`{"threshold": -1}`))
	var cfgErr *errors.ConfigError
	require.True(t, stdErrors.As(err, &cfgErr))
	assert.Equal(t, "/threshold", cfgErr.Field)

	err = v.Validate([]byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidSettings, errors.Code(err))

	err = v.Validate([]byte(`{"threshold":`))
	assert.Equal(t, errors.CodeDecodeError, errors.Code(err))
}

func TestNewSchemaValidator_InvalidSchema(t *testing.T) {
	_, err := NewSchemaValidator([]byte(`{"type": 12}`))

	var schemaErr *errors.SchemaError
	require.True(t, stdErrors.As(err, &schemaErr))

	_, err = NewSchemaValidator([]byte(`not json`))
	require.Error(t, err)
}

func TestSchemaFor(t *testing.T) {
	type settings struct {
		Threshold int    `json:"threshold" jsonschema:"minimum=0"`
		Label     string `json:"label,omitempty"`
	}

	v, err := SchemaFor[settings]()
	require.NoError(t, err)

	assert.NoError(t, v.Validate([]byte(`{"threshold": 1, "label": "x"}`)))
	assert.Error(t, v.Validate([]byte(`{"threshold": -1}`)))
	assert.Error(t, v.Validate([]byte(`{"threshold": 1, "unknown": true}`)), "unknown properties are rejected")
}

func TestValidator_WithSchema(t *testing.T) {
	v, err := NewSchemaValidator([]byte(thresholdSchema))
	require.NoError(t, err)

	validateFn := Validator[thresholdSettings](WithSchema(v))

	assert.NoError(t, validateFn(context.Background(), []byte(`{"threshold": 1}`)))

	err = validateFn(context.Background(), []byte(`{}`))
	var cfgErr *errors.ConfigError
	require.True(t, stdErrors.As(err, &cfgErr), "schema runs before Validate")

	err = validateFn(context.Background(), []byte(`null`))
	assert.Error(t, err, "null settings are checked as an empty object")
}
