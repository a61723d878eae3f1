// Package config provides YAML configuration loading for the orchestrator.
package config

import (
	"fmt"
	"os"

	"github.com/hiveplane/hiveplane/pkg/agent"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// OrchestratorConfig is the structure of the orchestrator.yaml file.
// Zero values are filled with defaults by Load; CLI flags and environment
// variables override individual fields at the binary level.
type OrchestratorConfig struct {
	// MaxConcurrent bounds simultaneously running workflow executions.
	MaxConcurrent int `yaml:"max_concurrent"`

	// AutoAssign enables automatic assignment of eligible contracts.
	AutoAssign bool `yaml:"auto_assign"`

	// MaxActiveLoad is the per-agent active assignment ceiling used when
	// scoring load.
	MaxActiveLoad int `yaml:"max_active_load"`

	// FSMMode selects validated or permissive agent state transitions.
	FSMMode string `yaml:"fsm_mode"`

	// SweepSchedule is the cron expression for the assignment sweeper.
	// Empty disables the sweeper.
	SweepSchedule string `yaml:"sweep_schedule"`

	// Transport selects the agent notification channel: "slog" or "redis".
	Transport TransportConfig `yaml:"transport"`

	// EventBus selects the event channel: "gochannel" or "kafka".
	EventBus string `yaml:"event_bus"`

	// DatabaseURL selects persistence by scheme: file:// or postgres://.
	DatabaseURL string `yaml:"database_url"`
}

// TransportConfig configures agent notification delivery.
type TransportConfig struct {
	Provider string `yaml:"provider"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Default returns the configuration used when no file is given.
func Default() OrchestratorConfig {
	return OrchestratorConfig{
		MaxConcurrent: 3,
		AutoAssign:    true,
		MaxActiveLoad: 10,
		FSMMode:       "validated",
		SweepSchedule: "@every 1m",
		Transport:     TransportConfig{Provider: "slog"},
		EventBus:      "gochannel",
		DatabaseURL:   "file://./data",
	}
}

// Load reads and validates an orchestrator configuration file. Fields left
// at their zero value take the defaults.
func Load(path string) (OrchestratorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return OrchestratorConfig{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return OrchestratorConfig{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return OrchestratorConfig{}, err
	}

	return cfg, nil
}

// LoadOrDefault loads the file when it exists, otherwise returns defaults.
func LoadOrDefault(path string) OrchestratorConfig {
	cfg, err := Load(path)
	if err != nil {
		return Default()
	}

	return cfg
}

// Validate checks field ranges and enum values.
func Validate(cfg OrchestratorConfig) error {
	if cfg.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", cfg.MaxConcurrent)
	}

	if cfg.MaxActiveLoad < 1 {
		return fmt.Errorf("max_active_load must be at least 1, got %d", cfg.MaxActiveLoad)
	}

	switch cfg.FSMMode {
	case "validated", "permissive":
	default:
		return fmt.Errorf("unknown fsm_mode %q", cfg.FSMMode)
	}

	switch cfg.Transport.Provider {
	case "slog", "redis":
	default:
		return fmt.Errorf("unknown transport provider %q", cfg.Transport.Provider)
	}

	switch cfg.EventBus {
	case "gochannel", "kafka":
	default:
		return fmt.Errorf("unknown event_bus %q", cfg.EventBus)
	}

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}

	if cfg.SweepSchedule != "" {
		if _, err := cron.ParseStandard(cfg.SweepSchedule); err != nil {
			return fmt.Errorf("invalid sweep_schedule: %w", err)
		}
	}

	return nil
}

// FSM returns the agent state machine mode named by the config.
func (c OrchestratorConfig) FSM() agent.Mode {
	if c.FSMMode == "permissive" {
		return agent.ModePermissive
	}

	return agent.ModeValidated
}
