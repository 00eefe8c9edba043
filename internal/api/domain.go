package api

import (
	"fmt"

	"github.com/JaimeStill/sectional/internal/config"
	"github.com/JaimeStill/sectional/internal/rules"
	"github.com/JaimeStill/sectional/internal/runs"
	"github.com/JaimeStill/sectional/internal/workflow"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Runs  runs.System
	Rules *rules.Handler
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime, engine *config.EngineConfig) (*Domain, error) {
	refs, err := engine.DefaultReferences()
	if err != nil {
		return nil, fmt.Errorf("load default references: %w", err)
	}

	runsSystem := runs.New(
		runtime.Database.Connection(),
		runtime.Storage,
		runs.Engine{
			Runtime: &workflow.Runtime{
				Registry: runtime.Registry,
				Rules:    runtime.Rules,
				Logger:   runtime.Logger,
			},
			Options:    engine.WorkflowOptions(runtime.Registry),
			References: refs,
		},
		runtime.Logger,
		runtime.Pagination,
	)

	rulesHandler := rules.NewHandler(runtime.Rules, runtime.Logger)
	rulesHandler.Protect = runtime.Auth.Middleware()

	return &Domain{
		Runs:  runsSystem,
		Rules: rulesHandler,
	}, nil
}
