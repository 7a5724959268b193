package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		text string
		key  string
		want any
	}{
		{name: "bare object", text: `{"endpoint":"/users"}`, key: "endpoint", want: "/users"},
		{
			name: "surrounding prose",
			text: "Sure! Here is the plan:\n```json\n{\"method\": \"post\"}\n```\nLet me know.",
			key:  "method",
			want: "post",
		},
		{
			name: "braces inside strings",
			text: `{"reasoning":"use {id} here }","endpoint":"/a/{id}"}`,
			key:  "endpoint",
			want: "/a/{id}",
		},
		{
			name: "escaped quotes",
			text: `{"reasoning":"say \"}\" now","endpoint":"/x"}`,
			key:  "endpoint",
			want: "/x",
		},
		{name: "first of several", text: `{"a":"one"} then {"a":"two"}`, key: "a", want: "one"},
		{
			name: "skips leading garbage brace",
			text: `{oops {"endpoint":"/y"}`,
			key:  "endpoint",
			want: "/y",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := ExtractJSONObject(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, obj[tt.key])
		})
	}
}

func TestExtractJSONObject_KeepsNumbers(t *testing.T) {
	obj, err := ExtractJSONObject(`{"confidence": 0.85, "parameters": {"per_page": 30}}`)
	require.NoError(t, err)

	assert.Equal(t, json.Number("0.85"), obj["confidence"])
	params, ok := obj["parameters"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, json.Number("30"), params["per_page"])
}

func TestExtractJSONObject_Errors(t *testing.T) {
	for _, text := range []string{
		"",
		"I cannot help with that.",
		`{"endpoint": `,
		"} backwards {",
		"{not json}",
	} {
		_, err := ExtractJSONObject(text)
		assert.Error(t, err, text)
	}
}
