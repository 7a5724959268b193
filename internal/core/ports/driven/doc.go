// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - FragmentStore: Fragment persistence, usage telemetry and retention
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - RelationshipStore: Fragment links. Without it, links are not recorded.
//   - APIMetadataStore: Per-API bookkeeping. Without it, imports skip ETag caching.
//   - LLMService: Language model completion. Without it, interpretation is heuristic only.
//   - PromptStore: Customisable prompts. Without it, embedded defaults are used.
//   - SpecFetcher: Specification download. Without it, specs must be supplied inline.
//   - Stemmer: Word stemming. Without it, the heuristic compares whole words.
//   - RateLimiter: Per-API research throttling. Without it, research is unthrottled.
//   - PlanValidator: Model response validation. Without it, any decodable object is accepted.
//   - Metrics: Operational counters. Without it, nothing is recorded.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
