package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
)

func issuesSpec() domain.SpecDocument {
	return domain.SpecDocument{
		"paths": map[string]any{
			"/issues": map[string]any{
				"post": map[string]any{
					"summary":     "Create an issue",
					"description": "Creates a new issue",
				},
			},
		},
	}
}

func petstoreSpec() domain.SpecDocument {
	return domain.SpecDocument{
		"info": map[string]any{"version": "1.0.0"},
		"paths": map[string]any{
			"/pets": map[string]any{
				"GET": map[string]any{
					"summary":     "List pets",
					"operationId": "listPets",
					"tags":        []any{"pets"},
				},
				"post": map[string]any{
					"summary": "Create a pet",
					"requestBody": map[string]any{
						"content": map[string]any{
							"application/json": map[string]any{
								"schema": map[string]any{"$ref": "#/components/schemas/Pet"},
							},
						},
					},
				},
				"parameters": []any{},
				"options":    map[string]any{"summary": "ignored"},
			},
			"/pets/{id}": map[string]any{
				"delete": map[string]any{"summary": "Delete a pet"},
				"get":    "not an operation",
			},
		},
		"components": map[string]any{
			"schemas": map[string]any{
				"Pet":   map[string]any{"description": "A pet in the store", "type": "object"},
				"Error": map[string]any{"description": "An error"},
				"Bad":   "not a schema",
			},
		},
	}
}

func TestExtractFragments_Endpoints(t *testing.T) {
	fragments := ExtractFragments("petstore", petstoreSpec())

	var endpoints []domain.Fragment
	for _, f := range fragments {
		if f.IsEndpoint() {
			endpoints = append(endpoints, f)
		}
	}
	require.Len(t, endpoints, 3)

	assert.Equal(t, "/pets", endpoints[0].Path())
	assert.Equal(t, "GET", endpoints[0].Method())
	assert.Equal(t, "listPets", endpoints[0].Metadata.OperationID)
	assert.Equal(t, []string{"pets"}, endpoints[0].Metadata.Tags)
	assert.Equal(t, []string{"list", "pets"}, endpoints[0].Metadata.Keywords)

	assert.Equal(t, "POST", endpoints[1].Method())
	assert.Equal(t, []string{}, endpoints[1].Metadata.Tags)
	assert.Equal(t, "DELETE", endpoints[2].Method())
	assert.Equal(t, "/pets/{id}", endpoints[2].Path())

	op, ok := endpoints[1].Content[domain.ContentKeyOperation].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, op, "requestBody")
}

func TestExtractFragments_Schemas(t *testing.T) {
	fragments := ExtractFragments("petstore", petstoreSpec())

	var schemas []domain.Fragment
	for _, f := range fragments {
		if f.Type == domain.FragmentTypeSchema {
			schemas = append(schemas, f)
		}
	}
	require.Len(t, schemas, 2)
	assert.Equal(t, "Error", schemas[0].Name())
	assert.Equal(t, "object", schemas[0].Metadata.Type)
	assert.Equal(t, "Pet", schemas[1].Name())
	assert.Equal(t, []string{"pet", "store"}, schemas[1].Metadata.Keywords)
	assert.Equal(t, SchemaFragmentID("petstore", "Pet"), schemas[1].ID)
}

func TestExtractFragments_SwaggerDefinitions(t *testing.T) {
	spec := domain.SpecDocument{
		"swagger":     "2.0",
		"definitions": map[string]any{"Order": map[string]any{"type": "object"}},
	}

	fragments := ExtractFragments("shop", spec)

	require.Len(t, fragments, 1)
	assert.Equal(t, "Order", fragments[0].Name())
}

func TestExtractFragments_EmptySpec(t *testing.T) {
	assert.Empty(t, ExtractFragments("x", domain.SpecDocument{}))
	assert.Empty(t, ExtractFragments("x", nil))
}

func TestExtractFragments_Deterministic(t *testing.T) {
	first := ExtractFragments("petstore", petstoreSpec())
	second := ExtractFragments("petstore", petstoreSpec())

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestExtractFragments_DoesNotMutateInput(t *testing.T) {
	spec := petstoreSpec()
	before := len(spec.Paths()["/pets"].(map[string]any))

	ExtractFragments("petstore", spec)

	assert.Len(t, spec.Paths()["/pets"].(map[string]any), before)
}

func TestExtractFragments_ContentHoldsJSONValues(t *testing.T) {
	spec := domain.SpecDocument{
		"paths": map[string]any{
			"/users": map[string]any{
				"get": map[string]any{
					"tags": []string{"users"},
					"parameters": []any{
						map[string]any{"name": "limit", "schema": map[string]any{"maximum": 100}},
					},
				},
			},
		},
		"components": map[string]any{
			"schemas": map[string]any{
				"User": map[string]any{"maxLength": int64(64), "required": []string{"name"}},
			},
		},
	}

	fragments := ExtractFragments("api", spec)
	require.Len(t, fragments, 2)

	op := fragments[0].Content[domain.ContentKeyOperation].(map[string]any)
	param := op["parameters"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(100), param["schema"].(map[string]any)["maximum"])
	assert.Equal(t, []any{"users"}, op["tags"])
	assert.Equal(t, []string{"users"}, fragments[0].Metadata.Tags)

	schema := fragments[1].Content[domain.ContentKeySchema].(map[string]any)
	assert.Equal(t, float64(64), schema["maxLength"])
	assert.Equal(t, []any{"name"}, schema["required"])

	// The spec keeps its own values.
	op["summary"] = "changed"
	original := spec.Paths()["/users"].(map[string]any)["get"].(map[string]any)
	assert.NotContains(t, original, "summary")
	assert.Equal(t, []string{"users"}, original["tags"])
}

func TestFragmentID(t *testing.T) {
	id := EndpointFragmentID("github", "POST", "/issues")

	assert.Len(t, id, 32)
	assert.Equal(t, id, EndpointFragmentID("github", "post", "/issues"))
	assert.NotEqual(t, id, EndpointFragmentID("github", "get", "/issues"))
	assert.NotEqual(t, id, EndpointFragmentID("github", "post", "/issues/{number}"))
	assert.NotEqual(t, id, EndpointFragmentID("gitlab", "post", "/issues"))
	assert.NotEqual(t, SchemaFragmentID("github", "Issue"), SchemaFragmentID("github", "User"))
}

func TestFragmentID_NoCollisionsAcrossPaths(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 500; i++ {
		for _, m := range extractedMethods {
			id := EndpointFragmentID("api", m, "/resource/"+string(rune('a'+i%26))+string(rune('a'+i/26)))
			assert.False(t, seen[id], "collision for %s", id)
			seen[id] = true
		}
	}
}

func TestSchemaRefs(t *testing.T) {
	op := map[string]any{
		"responses": map[string]any{
			"200": map[string]any{
				"content": map[string]any{
					"application/json": map[string]any{
						"schema": map[string]any{
							"type":  "array",
							"items": map[string]any{"$ref": "#/components/schemas/Pet"},
						},
					},
				},
			},
			"default": map[string]any{"schema": map[string]any{"$ref": "#/definitions/Error"}},
		},
		"parameters": []any{
			map[string]any{"$ref": "#/components/parameters/Limit"},
			map[string]any{"schema": map[string]any{"$ref": "#/components/schemas/Pet"}},
		},
	}

	assert.Equal(t, []string{"Error", "Pet"}, SchemaRefs(op))
	assert.Empty(t, SchemaRefs(nil))
}
