package domain

// SpecDocument is an OpenAPI-shaped document decoded into nested maps.
// Unknown fields are tolerated and no meta-schema validation is applied.
type SpecDocument map[string]any

// Paths returns the paths map, or nil when absent or malformed.
func (d SpecDocument) Paths() map[string]any {
	paths, _ := d["paths"].(map[string]any)
	return paths
}

// Schemas returns the named schema definitions. OpenAPI 3 documents keep them
// under components.schemas; Swagger 2 documents under definitions.
func (d SpecDocument) Schemas() map[string]any {
	if components, ok := d["components"].(map[string]any); ok {
		if schemas, ok := components["schemas"].(map[string]any); ok {
			return schemas
		}
	}
	schemas, _ := d["definitions"].(map[string]any)
	return schemas
}

// Version returns info.version when present.
func (d SpecDocument) Version() string {
	info, ok := d["info"].(map[string]any)
	if !ok {
		return ""
	}
	switch v := info["version"].(type) {
	case string:
		return v
	default:
		return ""
	}
}

// HasPath reports whether the document declares the given path.
func (d SpecDocument) HasPath(path string) bool {
	_, ok := d.Paths()[path]
	return ok
}
