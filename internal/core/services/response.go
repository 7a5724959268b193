package services

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNoJSONObject = errors.New("no JSON object in model response")

// ExtractJSONObject decodes the JSON object embedded in free-form model
// output. It first tries the first balanced object, skipping braces inside
// JSON strings, then the span from the first '{' to the last '}'.
func ExtractJSONObject(text string) (map[string]any, error) {
	if span, ok := firstBalancedObject(text); ok {
		if obj, err := decodeObject(span); err == nil {
			return obj, nil
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, errNoJSONObject
	}
	return decodeObject(text[start : end+1])
}

func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errNoJSONObject
	}
	return obj, nil
}

// firstBalancedObject scans for the first '{' whose matching '}' closes
// at depth zero. Returns false when no balanced object exists.
func firstBalancedObject(text string) (string, bool) {
	for start := strings.Index(text, "{"); start >= 0; {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(text); i++ {
			c := text[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
		next := strings.Index(text[start+1:], "{")
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}
