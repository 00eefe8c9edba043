package api

import (
	"github.com/JaimeStill/sectional/internal/config"
	"github.com/JaimeStill/sectional/internal/infrastructure"
	"github.com/JaimeStill/sectional/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
}

// NewRuntime creates an API runtime with a module-scoped logger. The rule
// store is shared with the parent infrastructure.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Database:  infra.Database,
			Storage:   infra.Storage,
			Registry:  infra.Registry,
			Rules:     infra.Rules,
			Auth:      infra.Auth,
		},
		Pagination: cfg.API.Pagination,
	}
}
