package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/custodia-labs/specfrag-cli/internal/adapters/driven/ai"
	"github.com/custodia-labs/specfrag-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/specfrag-cli/internal/adapters/driven/metrics/prometheus"
	"github.com/custodia-labs/specfrag-cli/internal/adapters/driven/ratelimit"
	"github.com/custodia-labs/specfrag-cli/internal/adapters/driven/specsource"
	"github.com/custodia-labs/specfrag-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/specfrag-cli/internal/adapters/driven/storage/redis"
	"github.com/custodia-labs/specfrag-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/specfrag-cli/internal/adapters/driven/text/snowball"
	"github.com/custodia-labs/specfrag-cli/internal/adapters/driven/validation/jsonschema"
	"github.com/custodia-labs/specfrag-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/specfrag-cli/internal/core/domain"
	"github.com/custodia-labs/specfrag-cli/internal/core/ports/driven"
	"github.com/custodia-labs/specfrag-cli/internal/core/services"
	"github.com/custodia-labs/specfrag-cli/internal/logger"
)

// metricsNamespace prefixes every exported metric.
const metricsNamespace = "specfrag"

// stores groups the persistence ports of one storage backend.
type stores struct {
	fragments     driven.FragmentStore
	relationships driven.RelationshipStore
	apis          driven.APIMetadataStore
	scheduler     driven.SchedulerStore
	close         func() error
}

// app is the wired object graph.
type app struct {
	services cli.Services
	closers  []func() error
}

// newApp loads settings from configDir (empty means ~/.specfrag) and wires
// every adapter and service.
func newApp(ctx context.Context, configDir string) (*app, error) {
	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  settings.Logging.Level,
		Format: settings.Logging.Format,
	}); err != nil {
		return nil, fmt.Errorf("configuring logger: %w", err)
	}

	a := &app{}

	st, err := openStores(settings.Storage)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.close)

	collector := prometheus.NewCollector(metricsNamespace, logger.Named("metrics"))

	fragmentService := services.NewFragmentService(st.fragments,
		services.WithRelationshipStore(st.relationships),
		services.WithFragmentMetrics(collector),
	)

	promptDir := ""
	if configDir != "" {
		promptDir = filepath.Join(configDir, "prompts")
	}
	promptStore, err := file.NewPromptStore(promptDir)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening prompts: %w", err)
	}

	validator, err := jsonschema.NewCallPlanValidator()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("compiling call plan schema: %w", err)
	}

	stemmer := snowball.NewStemmer("english")

	interpreterOpts := []services.InterpreterOption{
		services.WithPromptStore(promptStore),
		services.WithPlanValidator(validator),
		services.WithStemmer(stemmer),
		services.WithInterpreterMetrics(collector),
	}
	llm := ai.Init(&settings.LLM)
	for _, w := range llm.Warnings {
		logger.Warn("LLM unavailable, using heuristic interpretation: %s", w)
	}
	if llm.LLMService != nil {
		interpreterOpts = append(interpreterOpts, services.WithLLM(llm.LLMService, llm.Options))
		a.closers = append(a.closers, func() error {
			llm.Close()
			return nil
		})
	}
	interpreter := services.NewInterpreter(fragmentService, interpreterOpts...)

	guard := services.NewCallGuard(
		ratelimit.New(settings.Research.RateLimit, settings.Research.Burst),
		settings.Research.MaxParamLength,
	)
	researchService := services.NewResearchService(interpreter, fragmentService, guard, collector)

	specService := services.NewSpecService(fragmentService, st.apis,
		specsource.NewGitHubFetcher(ctx, settings.GitHubToken),
		specsource.NewHTTPFetcher(&http.Client{Timeout: specsource.DefaultTimeout}, "specfrag/"+version),
		specsource.NewFileFetcher(),
	)

	scheduler := services.NewScheduler(
		settingsService.SchedulerConfig(),
		st.scheduler,
		fragmentService,
		specService,
		settings.Retention.DaysOld,
	)

	a.services = cli.Services{
		Fragments: fragmentService,
		Research:  researchService,
		Specs:     specService,
		Settings:  settingsService,
		Scheduler: scheduler,
		Metrics:   collector,
	}
	return a, nil
}

// openStores opens the configured storage backend.
func openStores(cfg domain.StorageSettings) (*stores, error) {
	switch cfg.Backend {
	case domain.StorageBackendMemory:
		fs := memory.NewFragmentStore()
		return &stores{
			fragments:     fs,
			relationships: fs,
			apis:          fs,
			scheduler:     memory.NewSchedulerStore(),
			close:         func() error { return nil },
		}, nil

	case domain.StorageBackendRedis:
		rs, err := redis.NewStore(redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		}, logger.Named("redis"))
		if err != nil {
			return nil, fmt.Errorf("opening redis store: %w", err)
		}
		logger.Debug("using redis store at %s", cfg.RedisAddr)
		// Scheduler bookkeeping is per process, so it stays local.
		return &stores{
			fragments:     rs,
			relationships: rs,
			apis:          rs,
			scheduler:     memory.NewSchedulerStore(),
			close:         rs.Close,
		}, nil

	default:
		db, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		logger.Debug("using sqlite store at %s", db.Path())
		return &stores{
			fragments:     db.FragmentStore(),
			relationships: db.RelationshipStore(),
			apis:          db.APIMetadataStore(),
			scheduler:     db.SchedulerStore(),
			close:         db.Close,
		}, nil
	}
}

// Services returns the services injected into the CLI.
func (a *app) Services() cli.Services {
	return a.services
}

// Close releases stores and clients in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Named("app").Warn("closing", zap.Error(err))
		}
	}
	a.closers = nil
}
