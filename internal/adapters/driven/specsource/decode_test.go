package specsource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
)

const petstoreYAML = `openapi: 3.0.0
info:
  title: Petstore
  version: 1.0.7
paths:
  /pets:
    get:
      summary: List pets
      responses:
        200:
          description: ok
components:
  schemas:
    Pet:
      type: object
`

func TestDecode_JSON(t *testing.T) {
	doc, err := Decode([]byte(` {"info": {"version": "2"}, "paths": {"/a": {}}}`))
	require.NoError(t, err)

	assert.Equal(t, "2", doc.Version())
	assert.True(t, doc.HasPath("/a"))
}

func TestDecode_YAML(t *testing.T) {
	doc, err := Decode([]byte(petstoreYAML))
	require.NoError(t, err)

	assert.Equal(t, "1.0.7", doc.Version())
	assert.True(t, doc.HasPath("/pets"))
	assert.Contains(t, doc.Schemas(), "Pet")

	get := doc.Paths()["/pets"].(map[string]any)["get"].(map[string]any)
	responses, ok := get["responses"].(map[string]any)
	require.True(t, ok, "integer response codes become string keys")
	assert.Contains(t, responses, "200")
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: "  \n"},
		{name: "scalar", data: "just a string"},
		{name: "list", data: "- a\n- b\n"},
		{name: "broken yaml", data: "paths: [unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.ErrorIs(t, err, domain.ErrInvalidSpec)
		})
	}
}

func TestDecode_MalformedJSONFallsBackToYAML(t *testing.T) {
	// YAML flow mappings accept unquoted keys that JSON rejects.
	doc, err := Decode([]byte(`{paths: {/x: {}}}`))
	require.NoError(t, err)
	assert.True(t, doc.HasPath("/x"))
}
