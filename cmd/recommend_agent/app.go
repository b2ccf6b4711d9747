package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/recommendation-writer/internal/cache"
	"github.com/jonathan/recommendation-writer/internal/config"
	"github.com/jonathan/recommendation-writer/internal/db"
	"github.com/jonathan/recommendation-writer/internal/experiment"
	"github.com/jonathan/recommendation-writer/internal/facts"
	"github.com/jonathan/recommendation-writer/internal/generation"
	"github.com/jonathan/recommendation-writer/internal/ledger"
	"github.com/jonathan/recommendation-writer/internal/llm"
	"github.com/jonathan/recommendation-writer/internal/logging"
	"github.com/jonathan/recommendation-writer/internal/pipeline"
	"github.com/jonathan/recommendation-writer/internal/strategy"
)

// errNoAPIKey is returned by the placeholder client when no key is set.
var errNoAPIKey = errors.New("no completion API key configured (set GEMINI_API_KEY or OPENAI_API_KEY)")

// newCompletionClient builds the provider client. Tests replace it.
var newCompletionClient = func(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	provider, err := llm.ParseProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, errNoAPIKey
	}
	llmConfig := llm.DefaultConfigFor(provider)
	llmConfig.RequestsPerMinute = cfg.RequestsPerMinute
	client, err := llm.NewClient(ctx, llmConfig, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", provider, err)
	}
	return llm.NewRateLimited(client, llmConfig.RequestsPerMinute), nil
}

// app is the wired service graph for one command.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	svc     *pipeline.Service
	db      *db.DB
	closers []func()
}

// loadConfig resolves the config file, environment and flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

// newApp wires storage, the completion client and the pipeline. When
// needModel is false a missing API key is tolerated.
func newApp(ctx context.Context, console bool, needModel bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	var logger *zap.Logger
	if console {
		logger, err = logging.NewConsole(cfg.Verbose)
	} else {
		logger, err = logging.New(cfg.Verbose)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })
	if err := a.wire(ctx, needModel); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, needModel bool) error {
	cfg := a.cfg

	var (
		versions ledger.Store = ledger.NewMemoryStore()
		sink     experiment.Sink
		source   facts.Source
	)
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		a.db = database
		a.closers = append(a.closers, database.Close)
		if err := database.EnsureSchema(ctx); err != nil {
			return err
		}
		versions = database.Versions()
		sink = database.Experiments()
		source = database.Facts()
	}
	if cfg.FactsDir != "" {
		source = facts.NewFileSource(cfg.FactsDir)
	}
	if source == nil {
		a.logger.Warn("no fact source configured; only inline facts can be used")
		source = facts.NewStaticSource()
	}

	var store cache.Store = cache.NewMemoryStore()
	if cfg.CacheDir != "" {
		badgerStore, err := cache.OpenBadger(cache.BadgerConfig{
			Path:       cfg.CacheDir,
			GCInterval: cfg.CacheGCInterval(),
		}, a.logger)
		if err != nil {
			return err
		}
		store = badgerStore
	}
	a.closers = append(a.closers, func() { _ = store.Close() })

	weights := strategy.DefaultWeightSet()
	if cfg.WeightsPath != "" {
		ws, err := strategy.LoadWeightSet(cfg.WeightsPath)
		if err != nil {
			return err
		}
		weights = ws
	}
	selector, err := strategy.NewSelector(weights)
	if err != nil {
		return err
	}

	client, err := newCompletionClient(ctx, cfg)
	switch {
	case err == nil:
		a.closers = append(a.closers, func() { _ = client.Close() })
	case errors.Is(err, errNoAPIKey) && !needModel:
		client = llm.CompleteFunc(func(context.Context, string, llm.Params) (string, error) {
			return "", errNoAPIKey
		})
	default:
		return err
	}

	genConfig := generation.DefaultConfig()
	genConfig.Parallel = cfg.Parallel
	genConfig.CacheTTL = cfg.CacheTTL()

	svc, err := pipeline.NewService(pipeline.Config{
		Gate: pipeline.QualityGate{
			Enabled:    !cfg.DisableGate,
			MinScore:   cfg.MinScore,
			MaxRetries: cfg.Retries(),
		},
		BaseTemperature: cfg.BaseTemperature,
	}, pipeline.Deps{
		Facts:       source,
		Selector:    selector,
		Generator:   generation.New(client, store, genConfig, a.logger.Named("generation")),
		Ledger:      ledger.New(versions, a.logger.Named("ledger")),
		Experiments: experiment.NewCollector(sink, a.logger.Named("experiment")),
		Logger:      a.logger.Named("pipeline"),
	})
	if err != nil {
		return err
	}
	a.svc = svc
	return nil
}

// requireDB fails commands that only make sense with persistent storage.
func (a *app) requireDB(command string) error {
	if a.db == nil {
		return fmt.Errorf("%s needs persistent storage: set DATABASE_URL or database_url", command)
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
