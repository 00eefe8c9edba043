// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, database, storage, the section
// registry, and the rule store) that domain systems require.
package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/JaimeStill/sectional/internal/config"
	"github.com/JaimeStill/sectional/internal/rules"
	"github.com/JaimeStill/sectional/internal/sections"
	"github.com/JaimeStill/sectional/pkg/auth"
	"github.com/JaimeStill/sectional/pkg/database"
	"github.com/JaimeStill/sectional/pkg/lifecycle"
	"github.com/JaimeStill/sectional/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
// The rule store is shared by every run so that rules learned from one
// document are available to the next.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Registry  *sections.Registry
	Rules     *rules.Store
	Auth      *auth.Authenticator

	watchRules bool
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	registry, err := cfg.Engine.Registry()
	if err != nil {
		return nil, fmt.Errorf("profile load failed: %w", err)
	}

	source, err := RuleSource(&cfg.Engine, db)
	if err != nil {
		return nil, err
	}

	authenticator, err := auth.New(ctx, &cfg.Auth, logger)
	if err != nil {
		return nil, fmt.Errorf("auth init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle:  lc,
		Logger:     logger,
		Database:   db,
		Storage:    store,
		Registry:   registry,
		Rules:      rules.NewStore(source, registry, logger),
		Auth:       authenticator,
		watchRules: cfg.Engine.WatchRules,
	}, nil
}

// RuleSource selects the rule source named by the engine config. The
// database source requires db.
func RuleSource(cfg *config.EngineConfig, db database.System) (rules.Source, error) {
	switch cfg.RulesSource {
	case config.RulesFile:
		return rules.NewFileSource(cfg.RulesDir), nil
	case config.RulesDatabase:
		if db == nil {
			return nil, fmt.Errorf("rules_source %q requires a database", cfg.RulesSource)
		}
		return rules.NewDatabaseSource(db.Connection()), nil
	case config.RulesMemory:
		return rules.NewMemorySource(), nil
	default:
		return nil, fmt.Errorf("unknown rules_source %q", cfg.RulesSource)
	}
}

// Start registers all infrastructure systems with the lifecycle coordinator.
// Database and storage hooks are registered for startup and shutdown coordination,
// and the rule watcher runs in the background when enabled.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}

	if i.watchRules {
		logger := i.Logger.With("system", "rules")
		i.Lifecycle.OnBackground(func(ctx context.Context) {
			logger.Info("watching rule source")
			if err := i.Rules.Watch(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("rule watcher stopped", "error", err)
			}
		})
	}
	return nil
}
