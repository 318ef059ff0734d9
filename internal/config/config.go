// Package config loads CortexOS's YAML configuration, following the
// teacher's load/merge/validate shape: defaults, then file overrides,
// then environment overrides for console color and log level. CLI
// flags are not merged here; cmdline reads its own flags alongside
// the loaded Config.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ConsoleConfig controls terminal output.
type ConsoleConfig struct {
	EnableColor bool `yaml:"enable_color"`
	Compact     bool `yaml:"compact"`
}

// BudgetConfig mirrors spec §4.B's per-run/per-day budgets.
type BudgetConfig struct {
	Enabled       bool    `yaml:"enabled"`
	PerRunUSD     float64 `yaml:"per_run_usd"`
	PerDayUSD     float64 `yaml:"per_day_usd"`
	WarnThreshold float64 `yaml:"warn_threshold"`
	SafetyMargin  float64 `yaml:"safety_margin"`
}

// QualityConfig controls which gates run and auto-fix/reflexion
// behavior (spec §4.D).
type QualityConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Gates        []string `yaml:"gates"`
	AutoFix      bool     `yaml:"auto_fix"`
	Reflexion    bool     `yaml:"reflexion"`
	MaxRetries   int      `yaml:"max_retries"`
	Complexity   int      `yaml:"complexity_threshold"`
	OutputCapKB  int      `yaml:"tool_output_cap_kb"`
}

// PoolConfig controls agent-pool sizing and mode (spec §4.G).
type PoolConfig struct {
	MaxWorkers     int           `yaml:"max_workers"`
	Mode           string        `yaml:"mode"` // "in-process" | "forked"
	TaskTimeout    time.Duration `yaml:"task_timeout"`
}

// Config is the top-level CortexOS configuration.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	LogDir   string        `yaml:"log_dir"`
	Console  ConsoleConfig `yaml:"console"`
	Budget   BudgetConfig  `yaml:"budget"`
	Quality  QualityConfig `yaml:"quality"`
	Pool     PoolConfig    `yaml:"pool"`

	WorktreePrefix string `yaml:"worktree_prefix"`

	HeartbeatMS int `yaml:"heartbeat_ms"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		LogDir:   ".cortexos/logs",
		Console: ConsoleConfig{
			EnableColor: true,
		},
		Budget: BudgetConfig{
			Enabled:       true,
			PerRunUSD:     5.0,
			PerDayUSD:     50.0,
			WarnThreshold: 0.8,
			SafetyMargin:  1.2,
		},
		Quality: QualityConfig{
			Enabled:     true,
			Gates:       []string{"type-check", "test", "lint", "security", "complexity"},
			AutoFix:     true,
			Reflexion:   false,
			MaxRetries:  1,
			Complexity:  10,
			OutputCapKB: 32,
		},
		Pool: PoolConfig{
			MaxWorkers:  4,
			Mode:        "in-process",
			TaskTimeout: 120 * time.Second,
		},
		WorktreePrefix: "cortexos",
		HeartbeatMS:    15000,
	}
}

// Load reads path, merging onto Default(). A missing file is not an
// error — defaults (with env overrides) are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CORTEXOS_CONSOLE_COLOR"); v != "" {
		cfg.Console.EnableColor = v == "true" || v == "1"
	}
	if v := os.Getenv("CORTEXOS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Validate checks invariants the rest of the pipeline assumes hold.
func (c *Config) Validate() error {
	if c.Pool.MaxWorkers <= 0 {
		return fmt.Errorf("pool.max_workers must be > 0, got %d", c.Pool.MaxWorkers)
	}
	if c.Pool.Mode != "in-process" && c.Pool.Mode != "forked" {
		return fmt.Errorf("pool.mode must be 'in-process' or 'forked', got %q", c.Pool.Mode)
	}
	if c.Budget.SafetyMargin < 1.0 {
		return fmt.Errorf("budget.safety_margin must be >= 1.0, got %f", c.Budget.SafetyMargin)
	}
	if c.Quality.Complexity <= 0 {
		return fmt.Errorf("quality.complexity_threshold must be > 0, got %d", c.Quality.Complexity)
	}
	return nil
}
