package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
)

// fragmentIDLength is the number of hex characters kept from the digest.
const fragmentIDLength = 32

// extractedMethods lists the operations that become endpoint fragments,
// in emission order.
var extractedMethods = []string{"get", "post", "put", "delete", "patch"}

// FragmentID derives the stable identifier of a fragment from its API,
// type and identifying key. For endpoints the key is "method:path" with a
// lower-case method; for schemas it is the schema name.
func FragmentID(apiID string, fragmentType domain.FragmentType, key string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s", apiID, fragmentType, key)))
	return hex.EncodeToString(sum[:])[:fragmentIDLength]
}

// EndpointFragmentID returns the id of the endpoint fragment for method and path.
func EndpointFragmentID(apiID, method, path string) string {
	return FragmentID(apiID, domain.FragmentTypeEndpoint, strings.ToLower(method)+":"+path)
}

// SchemaFragmentID returns the id of the schema fragment for name.
func SchemaFragmentID(apiID, name string) string {
	return FragmentID(apiID, domain.FragmentTypeSchema, name)
}

// ExtractFragments decomposes a specification into endpoint and schema
// fragments. It never mutates spec and never touches storage. Paths and
// schemas are emitted in sorted order and methods in the fixed order
// get, post, put, delete, patch. Entries that are not objects are skipped.
//
// Fragment content is a copy of the spec section holding only JSON values
// (float64 numbers, []any, map[string]any), so it reads back unchanged
// from any store.
func ExtractFragments(apiID string, spec domain.SpecDocument) []domain.Fragment {
	var fragments []domain.Fragment
	fragments = append(fragments, extractEndpoints(apiID, spec.Paths())...)
	fragments = append(fragments, extractSchemas(apiID, spec.Schemas())...)
	return fragments
}

func extractEndpoints(apiID string, paths map[string]any) []domain.Fragment {
	var fragments []domain.Fragment
	for _, path := range sortedKeys(paths) {
		item, ok := paths[path].(map[string]any)
		if !ok {
			continue
		}
		methods := lowerKeys(item)
		for _, method := range extractedMethods {
			operation, ok := methods[method].(map[string]any)
			if !ok {
				continue
			}
			operation, _ = plainValue(operation).(map[string]any)
			fragments = append(fragments, endpointFragment(apiID, path, method, operation))
		}
	}
	return fragments
}

func endpointFragment(apiID, path, method string, operation map[string]any) domain.Fragment {
	summary := stringField(operation, "summary")
	description := stringField(operation, "description")

	return domain.Fragment{
		ID:    EndpointFragmentID(apiID, method, path),
		APIID: apiID,
		Type:  domain.FragmentTypeEndpoint,
		Content: map[string]any{
			domain.ContentKeyPath:      path,
			domain.ContentKeyMethod:    strings.ToUpper(method),
			domain.ContentKeyOperation: operation,
		},
		Metadata: domain.FragmentMetadata{
			Summary:     summary,
			Description: description,
			OperationID: stringField(operation, "operationId"),
			Tags:        stringSlice(operation["tags"]),
			Keywords:    Keywords(summary + " " + description),
		},
	}
}

func extractSchemas(apiID string, schemas map[string]any) []domain.Fragment {
	var fragments []domain.Fragment
	for _, name := range sortedKeys(schemas) {
		schema, ok := schemas[name].(map[string]any)
		if !ok {
			continue
		}
		schema, _ = plainValue(schema).(map[string]any)
		description := stringField(schema, "description")
		schemaType := stringField(schema, "type")
		if schemaType == "" {
			schemaType = "object"
		}

		fragments = append(fragments, domain.Fragment{
			ID:    SchemaFragmentID(apiID, name),
			APIID: apiID,
			Type:  domain.FragmentTypeSchema,
			Content: map[string]any{
				domain.ContentKeyName:   name,
				domain.ContentKeySchema: schema,
			},
			Metadata: domain.FragmentMetadata{
				Description: description,
				Type:        schemaType,
				Keywords:    Keywords(description),
			},
		})
	}
	return fragments
}

// SchemaRefs returns the names of schemas referenced anywhere inside v
// through "#/components/schemas/X" or "#/definitions/X", sorted and deduplicated.
func SchemaRefs(v any) []string {
	seen := map[string]struct{}{}
	collectRefs(v, seen)
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func collectRefs(v any, seen map[string]struct{}) {
	switch node := v.(type) {
	case map[string]any:
		if ref, ok := node["$ref"].(string); ok {
			for _, prefix := range []string{"#/components/schemas/", "#/definitions/"} {
				if name, found := strings.CutPrefix(ref, prefix); found && name != "" {
					seen[name] = struct{}{}
				}
			}
		}
		for _, child := range node {
			collectRefs(child, seen)
		}
	case []any:
		for _, child := range node {
			collectRefs(child, seen)
		}
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// lowerKeys indexes a path item by lower-cased method. When two keys differ
// only by case, the lexically smallest wins.
func lowerKeys(item map[string]any) map[string]any {
	out := make(map[string]any, len(item))
	for _, k := range sortedKeys(item) {
		lk := strings.ToLower(k)
		if _, exists := out[lk]; !exists {
			out[lk] = item[k]
		}
	}
	return out
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// plainValue deep-copies v into the value space of encoding/json: numbers
// become float64, typed slices and maps become []any and map[string]any,
// and anything else takes its JSON encoding.
func plainValue(v any) any {
	switch t := v.(type) {
	case nil, bool, string, float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case map[string]any:
		if t == nil {
			return nil
		}
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = plainValue(child)
		}
		return out
	case []any:
		if t == nil {
			return nil
		}
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = plainValue(child)
		}
		return out
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Sprint(v)
	}
	return out
}

func stringSlice(v any) []string {
	switch items := v.(type) {
	case []string:
		return append([]string(nil), items...)
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}
