package workflow

import (
	"log/slog"

	"github.com/JaimeStill/sectional/internal/rules"
	"github.com/JaimeStill/sectional/internal/sections"
)

// Runtime bundles the dependencies that a run requires. It is constructed by
// higher-level composition code; the rule store outlives individual runs so
// that learned rules carry over between documents.
type Runtime struct {
	Registry *sections.Registry
	Rules    *rules.Store
	Logger   *slog.Logger
}

func (rt *Runtime) registry() *sections.Registry {
	if rt.Registry == nil {
		return sections.Default()
	}
	return rt.Registry
}

func (rt *Runtime) logger() *slog.Logger {
	if rt.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return rt.Logger.With("system", "workflow")
}

func (rt *Runtime) store() *rules.Store {
	if rt.Rules == nil {
		rt.Rules = rules.NewStore(nil, rt.registry(), rt.Logger)
	}
	return rt.Rules
}
