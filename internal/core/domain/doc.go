// Package domain defines the core business entities for specfrag.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Fragment: An independently retrievable slice of an API specification
//   - FragmentQuery: A structured filter over stored fragments
//   - CallPlan: A scored, ready-to-use API call configuration
//   - APIMetadata / APIStats: Per-API bookkeeping and usage aggregates
//   - SpecDocument: An OpenAPI-shaped document decoded into nested maps
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
