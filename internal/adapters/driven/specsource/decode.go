package specsource

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
)

// Decode parses a JSON or YAML specification. JSON is tried first when the
// document starts with '{'; everything else goes through the YAML decoder,
// which also accepts JSON.
func Decode(data []byte) (domain.SpecDocument, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", domain.ErrInvalidSpec)
	}

	if trimmed[0] == '{' {
		var doc map[string]any
		if err := json.Unmarshal(trimmed, &doc); err == nil {
			return domain.SpecDocument(doc), nil
		}
	}

	var raw any
	if err := yaml.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSpec, err)
	}
	doc, ok := normalise(raw).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top level is not an object", domain.ErrInvalidSpec)
	}
	return domain.SpecDocument(doc), nil
}

// normalise converts YAML mappings with non-string keys (response codes
// such as 200 decode as ints) into map[string]any.
func normalise(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalise(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalise(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalise(val)
		}
		return t
	default:
		return v
	}
}
