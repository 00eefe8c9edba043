package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/JaimeStill/sectional/internal/alignment"
	"github.com/JaimeStill/sectional/internal/healing"
	"github.com/JaimeStill/sectional/internal/sections"
	"github.com/JaimeStill/sectional/internal/workflow"
)

const (
	EnvEngineProfile         = "SECTIONAL_ENGINE_PROFILE"
	EnvEngineRulesSource     = "SECTIONAL_ENGINE_RULES_SOURCE"
	EnvEngineRulesDir        = "SECTIONAL_ENGINE_RULES_DIR"
	EnvEngineWatchRules      = "SECTIONAL_ENGINE_WATCH_RULES"
	EnvEngineReferences      = "SECTIONAL_ENGINE_REFERENCES"
	EnvEngineMaxIterations   = "SECTIONAL_ENGINE_MAX_ITERATIONS"
	EnvEngineMaxCycles       = "SECTIONAL_ENGINE_MAX_CYCLES"
	EnvEngineConfidenceFloor = "SECTIONAL_ENGINE_CONFIDENCE_FLOOR"
	EnvEngineCeiling         = "SECTIONAL_ENGINE_CEILING"
	EnvEngineForceFallback   = "SECTIONAL_ENGINE_FORCE_FALLBACK"
	EnvEnginePersist         = "SECTIONAL_ENGINE_PERSIST"
)

// Rule sources.
const (
	RulesFile     = "file"
	RulesDatabase = "database"
	RulesMemory   = "memory"
)

// ScheduleConfig is the threshold loosening schedule.
type ScheduleConfig struct {
	Start int     `toml:"start"`
	Step  float64 `toml:"step"`
	Max   float64 `toml:"max"`
}

// EngineConfig holds categorization, healing, and learning settings.
type EngineConfig struct {
	// Profile is a YAML section profile; empty selects the embedded one.
	Profile     string `toml:"profile"`
	RulesSource string `toml:"rules_source"`
	RulesDir    string `toml:"rules_dir"`
	WatchRules  bool   `toml:"watch_rules"`
	// References is a default reference counts file applied when a run
	// supplies none.
	References      string             `toml:"references"`
	MaxIterations   int                `toml:"max_iterations"`
	MaxCycles       int                `toml:"max_cycles"`
	Stagnation      int                `toml:"stagnation"`
	ConfidenceFloor float64            `toml:"confidence_floor"`
	Ceiling         float64            `toml:"ceiling"`
	Patience        int                `toml:"patience"`
	ForceFallback   *bool              `toml:"force_fallback"`
	Persist         bool               `toml:"persist"`
	Thresholds      map[string]float64 `toml:"thresholds"`
	Schedule        *ScheduleConfig    `toml:"schedule"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *EngineConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. Booleans that default to
// false always apply; ForceFallback applies when set.
func (c *EngineConfig) Merge(overlay *EngineConfig) {
	if overlay.Profile != "" {
		c.Profile = overlay.Profile
	}
	if overlay.RulesSource != "" {
		c.RulesSource = overlay.RulesSource
	}
	if overlay.RulesDir != "" {
		c.RulesDir = overlay.RulesDir
	}
	if overlay.References != "" {
		c.References = overlay.References
	}
	if overlay.MaxIterations != 0 {
		c.MaxIterations = overlay.MaxIterations
	}
	if overlay.MaxCycles != 0 {
		c.MaxCycles = overlay.MaxCycles
	}
	if overlay.Stagnation != 0 {
		c.Stagnation = overlay.Stagnation
	}
	if overlay.ConfidenceFloor != 0 {
		c.ConfidenceFloor = overlay.ConfidenceFloor
	}
	if overlay.Ceiling != 0 {
		c.Ceiling = overlay.Ceiling
	}
	if overlay.Patience != 0 {
		c.Patience = overlay.Patience
	}
	if overlay.ForceFallback != nil {
		c.ForceFallback = overlay.ForceFallback
	}
	if overlay.Schedule != nil {
		c.Schedule = overlay.Schedule
	}
	if len(overlay.Thresholds) > 0 {
		if c.Thresholds == nil {
			c.Thresholds = make(map[string]float64, len(overlay.Thresholds))
		}
		for k, v := range overlay.Thresholds {
			c.Thresholds[k] = v
		}
	}
	c.WatchRules = c.WatchRules || overlay.WatchRules
	c.Persist = c.Persist || overlay.Persist
}

// Registry loads the configured profile, or the embedded profile when none
// is set.
func (c *EngineConfig) Registry() (*sections.Registry, error) {
	if c.Profile == "" {
		return sections.Default(), nil
	}
	return sections.Load(c.Profile)
}

// DefaultReferences loads the configured reference counts. It returns nil
// when no file is configured.
func (c *EngineConfig) DefaultReferences() (alignment.References, error) {
	if c.References == "" {
		return nil, nil
	}
	return alignment.LoadReferences(c.References)
}

// WorkflowOptions builds run options from the config. Per-section thresholds
// layer over the registry's.
func (c *EngineConfig) WorkflowOptions(reg *sections.Registry) workflow.Options {
	opts := workflow.DefaultOptions()
	opts.MaxCycles = c.MaxCycles
	opts.Stagnation = c.Stagnation
	opts.Persist = c.Persist

	opts.Categorize.ConfidenceFloor = c.ConfidenceFloor

	opts.Healing.MaxIterations = c.MaxIterations
	opts.Healing.Ceiling = c.Ceiling
	opts.Healing.Patience = c.Patience
	opts.Healing.ForceFallback = c.ForceFallback == nil || *c.ForceFallback
	if c.Schedule != nil {
		opts.Healing.Schedule = healing.Schedule{
			Start: c.Schedule.Start,
			Step:  c.Schedule.Step,
			Max:   c.Schedule.Max,
		}
	}

	th := alignment.Thresholds{Sections: map[int]float64{}}
	if reg != nil {
		th.Default = reg.DefaultThreshold()
		for id, v := range reg.Thresholds() {
			if v != th.Default {
				th.Sections[id] = v
			}
		}
	}
	for k, v := range c.Thresholds {
		if k == "default" {
			th.Default = v
			continue
		}
		if id, err := strconv.Atoi(k); err == nil {
			th.Sections[id] = v
		}
	}
	opts.Healing.Thresholds = th

	return opts
}

func (c *EngineConfig) loadDefaults() {
	if c.RulesSource == "" {
		c.RulesSource = RulesFile
	}
	if c.RulesDir == "" {
		c.RulesDir = "rules"
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = 20
	}
	if c.MaxCycles == 0 {
		c.MaxCycles = 5
	}
	if c.Stagnation == 0 {
		c.Stagnation = 2
	}
	if c.Ceiling == 0 {
		c.Ceiling = 97
	}
	if c.Patience == 0 {
		c.Patience = 3
	}
	if c.ForceFallback == nil {
		v := true
		c.ForceFallback = &v
	}
}

func (c *EngineConfig) loadEnv() {
	if v := os.Getenv(EnvEngineProfile); v != "" {
		c.Profile = v
	}
	if v := os.Getenv(EnvEngineRulesSource); v != "" {
		c.RulesSource = v
	}
	if v := os.Getenv(EnvEngineRulesDir); v != "" {
		c.RulesDir = v
	}
	if v := os.Getenv(EnvEngineWatchRules); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.WatchRules = b
		}
	}
	if v := os.Getenv(EnvEngineReferences); v != "" {
		c.References = v
	}
	if v := os.Getenv(EnvEngineMaxIterations); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxIterations = n
		}
	}
	if v := os.Getenv(EnvEngineMaxCycles); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxCycles = n
		}
	}
	if v := os.Getenv(EnvEngineConfidenceFloor); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.ConfidenceFloor = f
		}
	}
	if v := os.Getenv(EnvEngineCeiling); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Ceiling = f
		}
	}
	if v := os.Getenv(EnvEngineForceFallback); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.ForceFallback = &b
		}
	}
	if v := os.Getenv(EnvEnginePersist); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Persist = b
		}
	}
}

func (c *EngineConfig) validate() error {
	switch c.RulesSource {
	case RulesFile, RulesDatabase, RulesMemory:
	default:
		return fmt.Errorf("invalid rules_source: %q", c.RulesSource)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be positive")
	}
	if c.MaxCycles < 1 {
		return fmt.Errorf("max_cycles must be positive")
	}
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		return fmt.Errorf("confidence_floor must be within [0, 1]")
	}
	if c.Ceiling <= 0 || c.Ceiling > 100 {
		return fmt.Errorf("ceiling must be within (0, 100]")
	}
	for k, v := range c.Thresholds {
		if k != "default" {
			if _, err := strconv.Atoi(k); err != nil {
				return fmt.Errorf("threshold key %q is not a section number", k)
			}
		}
		if v < 0 {
			return fmt.Errorf("threshold %s must not be negative", k)
		}
	}
	if c.Schedule != nil && c.Schedule.Max != 0 && c.Schedule.Max < 1 {
		return fmt.Errorf("schedule max must be at least 1")
	}
	return nil
}
