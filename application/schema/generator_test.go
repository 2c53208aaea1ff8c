package schema

import (
	"encoding/json"
	stdErrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubewarden/policy-sdk-go/domain/errors"
)

type registrySettings struct {
	AllowedRegistries []string          `json:"allowedRegistries"`
	Threshold         int               `json:"threshold" jsonschema:"minimum=0"`
	Exemptions        map[string]string `json:"exemptions,omitempty"`
	Message           *string           `json:"message,omitempty"`
}

func decodeSchema(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	return decoded
}

func TestGenerateSchema_Settings(t *testing.T) {
	schema, err := GenerateSchema(registrySettings{})
	require.NoError(t, err)

	decoded := decodeSchema(t, schema)
	assert.Equal(t, "object", decoded["type"])
	assert.NotContains(t, decoded, "$id", "schemas are anonymous")

	properties, ok := decoded["properties"].(map[string]any)
	require.True(t, ok, "properties should be a map")
	assert.Len(t, properties, 4)

	threshold, ok := properties["threshold"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 0, threshold["minimum"])

	required, ok := decoded["required"].([]any)
	require.True(t, ok, "required should be an array")
	assert.ElementsMatch(t, []any{"allowedRegistries", "threshold"}, required)
	assert.Equal(t, false, decoded["additionalProperties"])
}

func TestGenerate_MatchesGenerateSchema(t *testing.T) {
	fromValue, err := GenerateSchema(registrySettings{})
	require.NoError(t, err)

	fromType, err := Generate[registrySettings]()
	require.NoError(t, err)
	assert.JSONEq(t, string(fromValue), string(fromType))
}

func TestGenerate_PointerType(t *testing.T) {
	schema, err := Generate[*registrySettings]()
	require.NoError(t, err)
	assert.Contains(t, string(schema), "allowedRegistries")
}

func TestGenerateSchema_NestedStruct(t *testing.T) {
	type Signer struct {
		Owner string `json:"owner"`
		Repo  string `json:"repo,omitempty"`
	}
	type Settings struct {
		Signers []Signer `json:"signers"`
	}

	schema, err := GenerateSchema(Settings{})
	require.NoError(t, err)
	assert.Contains(t, string(schema), "signers")
	assert.Contains(t, string(schema), "owner")
}

func TestGenerateSchema_EmptyStruct(t *testing.T) {
	type EmptySettings struct{}

	schema, err := GenerateSchema(EmptySettings{})
	require.NoError(t, err)
	assert.Equal(t, "object", decodeSchema(t, schema)["type"])
}

func TestGenerateSchema_Nil(t *testing.T) {
	_, err := GenerateSchema(nil)

	var schemaErr *errors.SchemaError
	require.True(t, stdErrors.As(err, &schemaErr))
	assert.Equal(t, errors.CodeInvalidSettings, errors.Code(err))
}
