package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/genkit"

	"github.com/ZanzyTHEbar/goalrunner"
	"github.com/ZanzyTHEbar/goalrunner/internal/config"
	"github.com/ZanzyTHEbar/goalrunner/internal/eventbus"
	"github.com/ZanzyTHEbar/goalrunner/internal/executor"
	"github.com/ZanzyTHEbar/goalrunner/internal/llm"
	"github.com/ZanzyTHEbar/goalrunner/internal/logging"
	"github.com/ZanzyTHEbar/goalrunner/internal/planfile"
	"github.com/ZanzyTHEbar/goalrunner/internal/planner"
	"github.com/ZanzyTHEbar/goalrunner/internal/store"
	"github.com/ZanzyTHEbar/goalrunner/internal/tools"
	"github.com/ZanzyTHEbar/goalrunner/internal/validator"
)

// app holds the wired components of one process.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *goalrunner.Registry
	store    *store.MemoryStore
	bus      *eventbus.AsyncBus
	executor *executor.StepExecutor
	runner   *goalrunner.Runner
	genkit   *genkit.Genkit
}

type wireOptions struct {
	// planPath replaces the model planner with a static plan file.
	planPath string
	logOut   io.Writer
}

// loadConfig reads the config and applies command-line overrides. A model is
// required unless allowOffline is set and no API key is configured.
func loadConfig(allowOffline bool) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if allowOffline && !cfg.HasLLM() {
		return cfg, cfg.ValidateOffline()
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	logger, err := logging.FromStrings(w, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, goalrunner.NewConfigurationError("invalid logging settings", err)
	}
	return logger, nil
}

// newProvider returns nil when no API key is configured.
func newProvider(ctx context.Context, cfg *config.Config) (*llm.Provider, error) {
	if !cfg.HasLLM() {
		return nil, nil
	}
	provider, err := llm.NewProvider(ctx, cfg.ProviderConfig())
	if err != nil {
		return nil, goalrunner.NewConfigurationError("failed to create LLM provider", err)
	}
	return provider, nil
}

func newRegistry(cfg *config.Config, client llm.Client, logger *slog.Logger) (*goalrunner.Registry, error) {
	registry := goalrunner.NewRegistry()
	err := tools.Setup(registry, tools.Dependencies{
		LLM:                  client,
		ReasoningTemperature: cfg.Agent.ReasoningTemperature,
		Memory:               store.NewKeyValue(),
		HTTP: tools.HTTPConfig{
			UserAgent: cfg.Tools.UserAgent,
			Timeout:   cfg.HTTPTimeout(),
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	return registry, nil
}

func newApp(ctx context.Context, opts wireOptions) (*app, error) {
	cfg, err := loadConfig(opts.planPath != "")
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, opts.logOut)
	if err != nil {
		return nil, err
	}

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	var client llm.Client
	a := &app{cfg: cfg, logger: logger}
	if provider != nil {
		client = provider.Client
		a.genkit = provider.Genkit
		logger.Info("LLM provider ready", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	}

	a.registry, err = newRegistry(cfg, client, logger)
	if err != nil {
		return nil, err
	}

	a.bus = eventbus.NewAsyncBus(eventbus.WithLogger(logger))
	if _, err := a.bus.Subscribe(eventbus.Filter{}, func(ctx context.Context, e eventbus.Event) error {
		logger.Debug("event",
			"type", e.Type,
			"source", e.Source,
			"execution_id", e.ExecutionID,
			"step_number", e.StepNumber,
			"metadata", e.Metadata,
		)
		return nil
	}); err != nil {
		_ = a.bus.Close()
		return nil, err
	}

	a.executor = executor.New(a.registry,
		executor.WithMaxRetries(cfg.Agent.MaxRetries),
		executor.WithRetryDelay(cfg.Agent.RetryDelay),
		executor.WithEventBus(a.bus),
		executor.WithLogger(logger),
	)

	var stepPlanner goalrunner.Planner
	if opts.planPath != "" {
		pf, err := planfile.Load(opts.planPath)
		if err != nil {
			_ = a.bus.Close()
			return nil, goalrunner.NewConfigurationError("failed to load plan file", err)
		}
		logger.Info("using plan file", "path", opts.planPath, "name", pf.Name, "step_count", len(pf.Steps))
		stepPlanner = planfile.NewStaticPlanner(pf)
	} else {
		repairer := validator.New(a.registry, client,
			validator.WithMaxAttempts(cfg.Agent.RepairAttempts),
			validator.WithTemperature(cfg.Agent.RepairTemperature),
			validator.WithLogger(logger),
		)
		stepPlanner = planner.New(client, a.registry, repairer,
			planner.WithTemperature(cfg.Agent.PlannerTemperature),
			planner.WithLogger(logger),
		)
	}

	a.store = store.NewMemoryStore(
		store.WithRetention(cfg.Store.Retention),
		store.WithLogger(logger),
	)

	a.runner, err = goalrunner.New(
		goalrunner.WithConfig(goalrunner.Config{ExecutionTimeout: cfg.Agent.ExecutionTimeout}),
		goalrunner.WithPlanner(stepPlanner),
		goalrunner.WithExecutor(a.executor),
		goalrunner.WithStore(a.store),
		goalrunner.WithEventBus(a.bus),
		goalrunner.WithLogger(logger),
	)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the event bus and the store.
func (a *app) Close() error {
	var errs []error
	if a.bus != nil {
		errs = append(errs, a.bus.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
