package domain

const unknownDescription = "Unknown"

// AIProvider identifies a language model provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API or any OpenAI-compatible server.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// Temperature is the sampling temperature for interpretation.
	Temperature float64

	// MaxTokens caps the interpretation response length.
	MaxTokens int
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// StorageBackend selects the fragment store implementation.
type StorageBackend string

// Available storage backends.
const (
	// StorageBackendSQLite is an embedded database file. This is the default.
	StorageBackendSQLite StorageBackend = "sqlite"

	// StorageBackendMemory keeps fragments in process memory only.
	StorageBackendMemory StorageBackend = "memory"

	// StorageBackendRedis shares the cache between processes through Redis.
	StorageBackendRedis StorageBackend = "redis"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	switch b {
	case StorageBackendSQLite, StorageBackendMemory, StorageBackendRedis:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b StorageBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b StorageBackend) Description() string {
	switch b {
	case StorageBackendSQLite:
		return "SQLite (local file)"
	case StorageBackendMemory:
		return "Memory (not persisted)"
	case StorageBackendRedis:
		return "Redis (shared)"
	default:
		return unknownDescription
	}
}

// StorageSettings holds fragment store configuration.
type StorageSettings struct {
	// Backend selects the store implementation.
	Backend StorageBackend

	// DataDir is the SQLite data directory. Empty means ~/.specfrag/data.
	DataDir string

	// RedisAddr is host:port of the Redis server.
	RedisAddr string

	// RedisPassword authenticates to Redis when set.
	RedisPassword string

	// RedisDB selects the Redis logical database.
	RedisDB int

	// RedisPrefix namespaces all keys written by the Redis backend.
	RedisPrefix string
}

// ResearchSettings holds call guard configuration.
type ResearchSettings struct {
	// RateLimit is the number of research calls allowed per API per hour.
	// Zero disables rate limiting.
	RateLimit int

	// Burst is the number of calls allowed back to back.
	Burst int

	// MaxParamLength is the longest allowed string parameter.
	MaxParamLength int
}

// RetentionSettings holds the retention sweep configuration.
type RetentionSettings struct {
	// DaysOld is the age threshold for never-used fragments.
	DaysOld int
}

// LoggingSettings holds logger configuration.
type LoggingSettings struct {
	// Level is one of debug, info, warn, error.
	Level string

	// Format is console or json. Empty selects console on a terminal.
	Format string
}

// AppSettings holds all application settings.
type AppSettings struct {
	// LLM holds LLM provider settings.
	LLM LLMSettings

	// Storage holds fragment store settings.
	Storage StorageSettings

	// Research holds call guard settings.
	Research ResearchSettings

	// Retention holds retention sweep settings.
	Retention RetentionSettings

	// Logging holds logger settings.
	Logging LoggingSettings

	// WatchDir is the spec directory watched by serve, if set.
	WatchDir string

	// MetricsAddr is the listen address for the metrics endpoint, if set.
	MetricsAddr string

	// GitHubToken authenticates github:// spec fetches.
	GitHubToken string
}

// DefaultAppSettings returns settings with sensible defaults.
// The LLM is left unconfigured; interpretation then uses the heuristic scorer.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		LLM: LLMSettings{
			Temperature: 0.1,
			MaxTokens:   1000,
		},
		Storage: StorageSettings{
			Backend:     StorageBackendSQLite,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "specfrag",
		},
		Research: ResearchSettings{
			RateLimit:      100,
			Burst:          100,
			MaxParamLength: 10000,
		},
		Retention: RetentionSettings{
			DaysOld: 30,
		},
		Logging: LoggingSettings{
			Level: "warn",
		},
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// AllStorageBackends returns every storage backend.
func AllStorageBackends() []StorageBackend {
	return []StorageBackend{
		StorageBackendSQLite,
		StorageBackendMemory,
		StorageBackendRedis,
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}
