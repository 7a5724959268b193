package services

import (
	"fmt"
	"time"

	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyLLMProvider      = "llm.provider"
	keyLLMModel         = "llm.model"
	keyLLMBaseURL       = "llm.base_url"
	keyLLMAPIKey        = "llm.api_key"
	keyLLMTemperature   = "llm.temperature"
	keyLLMMaxTokens     = "llm.max_tokens"
	keyStorageBackend   = "storage.backend"
	keyStorageDataDir   = "storage.data_dir"
	keyRedisAddr        = "storage.redis.addr"
	keyRedisPassword    = "storage.redis.password"
	keyRedisDB          = "storage.redis.db"
	keyRedisPrefix      = "storage.redis.prefix"
	keyResearchRate     = "research.rate_limit"
	keyResearchBurst    = "research.burst"
	keyResearchMaxParam = "research.max_param_length"
	keyRetentionDays    = "retention.days_old"
	keyLoggingLevel     = "logging.level"
	keyLoggingFormat    = "logging.format"
	keyWatchDir         = "watch.dir"
	keyMetricsAddr      = "metrics.addr"
	keyGitHubToken      = "github.token"
	keySchedulerEnabled = "scheduler.enabled"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		LLM: domain.LLMSettings{
			Provider:    s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:       s.getString(keyLLMModel, defaults.LLM.Model),
			BaseURL:     s.configStore.GetString(keyLLMBaseURL), // No default - empty is valid for cloud providers
			APIKey:      s.configStore.GetString(keyLLMAPIKey),
			Temperature: s.getFloat(keyLLMTemperature, defaults.LLM.Temperature),
			MaxTokens:   s.getInt(keyLLMMaxTokens, defaults.LLM.MaxTokens),
		},
		Storage: domain.StorageSettings{
			Backend:       s.getBackend(defaults.Storage.Backend),
			DataDir:       s.configStore.GetString(keyStorageDataDir),
			RedisAddr:     s.getString(keyRedisAddr, defaults.Storage.RedisAddr),
			RedisPassword: s.configStore.GetString(keyRedisPassword),
			RedisDB:       s.configStore.GetInt(keyRedisDB),
			RedisPrefix:   s.getString(keyRedisPrefix, defaults.Storage.RedisPrefix),
		},
		Research: domain.ResearchSettings{
			RateLimit:      s.getInt(keyResearchRate, defaults.Research.RateLimit),
			Burst:          s.getInt(keyResearchBurst, defaults.Research.Burst),
			MaxParamLength: s.getInt(keyResearchMaxParam, defaults.Research.MaxParamLength),
		},
		Retention: domain.RetentionSettings{
			DaysOld: s.getInt(keyRetentionDays, defaults.Retention.DaysOld),
		},
		Logging: domain.LoggingSettings{
			Level:  s.getString(keyLoggingLevel, defaults.Logging.Level),
			Format: s.configStore.GetString(keyLoggingFormat),
		},
		WatchDir:    s.configStore.GetString(keyWatchDir),
		MetricsAddr: s.configStore.GetString(keyMetricsAddr),
		GitHubToken: s.configStore.GetString(keyGitHubToken),
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMTemperature, settings.LLM.Temperature},
		{keyLLMMaxTokens, settings.LLM.MaxTokens},
		{keyStorageBackend, settings.Storage.Backend.String()},
		{keyStorageDataDir, settings.Storage.DataDir},
		{keyRedisAddr, settings.Storage.RedisAddr},
		{keyRedisDB, settings.Storage.RedisDB},
		{keyRedisPrefix, settings.Storage.RedisPrefix},
		{keyResearchRate, settings.Research.RateLimit},
		{keyResearchBurst, settings.Research.Burst},
		{keyResearchMaxParam, settings.Research.MaxParamLength},
		{keyRetentionDays, settings.Retention.DaysOld},
		{keyLoggingLevel, settings.Logging.Level},
		{keyLoggingFormat, settings.Logging.Format},
		{keyWatchDir, settings.WatchDir},
		{keyMetricsAddr, settings.MetricsAddr},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// Secrets are only written when set so a save never clears them.
	secrets := []struct {
		key   string
		value string
	}{
		{keyLLMAPIKey, settings.LLM.APIKey},
		{keyRedisPassword, settings.Storage.RedisPassword},
		{keyGitHubToken, settings.GitHubToken},
	}
	for _, v := range secrets {
		if v.value == "" {
			continue
		}
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	return nil
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.LLM.Model = model
	} else {
		defaults := domain.DefaultLLMModels()
		if defaultModel, ok := defaults[provider]; ok {
			settings.LLM.Model = defaultModel
		}
	}

	// Set base URL based on provider type
	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.LLM.BaseURL = ""
	}

	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// SetStorageBackend selects the fragment store backend.
func (s *SettingsService) SetStorageBackend(backend domain.StorageBackend) error {
	if !backend.IsValid() {
		return fmt.Errorf("invalid storage backend: %s", backend)
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Storage.Backend = backend
	return s.Save(settings)
}

// Validate checks if current settings are consistent.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if settings.LLM.Provider != "" && !settings.LLM.IsConfigured() {
		return fmt.Errorf("LLM provider %s is not fully configured", settings.LLM.Provider)
	}
	if settings.LLM.Temperature < 0 || settings.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature %.2f is out of range", settings.LLM.Temperature)
	}
	if settings.Storage.Backend == domain.StorageBackendRedis && settings.Storage.RedisAddr == "" {
		return fmt.Errorf("redis backend requires %s", keyRedisAddr)
	}
	if settings.Research.RateLimit < 0 {
		return fmt.Errorf("%s must not be negative", keyResearchRate)
	}
	if settings.Retention.DaysOld < 0 {
		return fmt.Errorf("%s must not be negative", keyRetentionDays)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// SchedulerConfig reads scheduler.* keys over the defaults. Intervals are
// Go duration strings such as "24h".
func (s *SettingsService) SchedulerConfig() domain.SchedulerConfig {
	cfg := domain.DefaultSchedulerConfig()
	cfg.Enabled = s.getBool(keySchedulerEnabled, cfg.Enabled)

	for id, taskCfg := range cfg.TaskConfigs {
		prefix := "scheduler." + schedulerKey(id)
		taskCfg.Enabled = s.getBool(prefix+".enabled", taskCfg.Enabled)
		if raw := s.configStore.GetString(prefix + ".interval"); raw != "" {
			if d, err := time.ParseDuration(raw); err == nil && d > 0 {
				taskCfg.Interval = d
			}
		}
		cfg.TaskConfigs[id] = taskCfg
	}
	return cfg
}

// schedulerKey converts a task id such as "fragment-cleanup" to its config
// section name "fragment_cleanup".
func schedulerKey(taskID string) string {
	out := []byte(taskID)
	for i, c := range out {
		if c == '-' {
			out[i] = '_'
		}
	}
	return string(out)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.StorageBackend) domain.StorageBackend {
	backend := domain.StorageBackend(s.configStore.GetString(keyStorageBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
