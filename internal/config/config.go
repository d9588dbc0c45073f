// Package config loads the agent's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"voxelcraft.ai/quartermaster/internal/client"
	"voxelcraft.ai/quartermaster/internal/executor"
	"voxelcraft.ai/quartermaster/internal/planner"
)

type Agent struct {
	Name      string `yaml:"name"`
	Dimension string `yaml:"dimension"`
	Token     string `yaml:"token"`
}

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Config struct {
	Agent        Agent                `yaml:"agent"`
	Capabilities planner.Capabilities `yaml:"capabilities"`
	Planner      planner.Config       `yaml:"planner"`
	Executor     executor.Config      `yaml:"executor"`
	Log          Log                  `yaml:"log"`

	KnowledgeDir string `yaml:"knowledge_dir"`
	RecordsDB    string `yaml:"records_db"`
	JournalDir   string `yaml:"journal_dir"`
	// RedisURL selects the shared claims registry; empty keeps claims in
	// process.
	RedisURL    string        `yaml:"redis_url"`
	ServerURL   string        `yaml:"server_url"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	MetricsAddr string        `yaml:"metrics_addr"`
}

func Default() Config {
	caps := planner.AllCapabilities()
	caps.RequestAnyone = false
	return Config{
		Agent:        Agent{Name: "qm-1", Dimension: "OVERWORLD"},
		Capabilities: caps,
		Planner:      planner.DefaultConfig(),
		Executor:     executor.DefaultConfig(),
		Log:          Log{Level: "info"},
		KnowledgeDir: "configs/knowledge",
		RecordsDB:    "data/records.db",
		JournalDir:   "data/journal",
		ServerURL:    "ws://localhost:8080/v1/ws",
		DialTimeout:  10 * time.Second,
		MetricsAddr:  ":9109",
	}
}

// Load overlays the file at path on Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	positive := func(name string, v float64) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, v))
		}
	}
	positive("planner.max_depth", float64(c.Planner.MaxDepth))
	positive("planner.region_radius", float64(c.Planner.RegionRadius))
	positive("planner.surface_radius", float64(c.Planner.SurfaceRadius))
	positive("planner.search_radius", float64(c.Planner.SearchRadius))
	positive("planner.proximity", c.Planner.Proximity)
	positive("executor.dig_retries", float64(c.Executor.DigRetries))
	positive("executor.cooperative_timeout", c.Executor.CooperativeTimeout.Seconds())
	positive("executor.open_request_timeout", c.Executor.OpenRequestTimeout.Seconds())
	positive("executor.reminder_interval", c.Executor.ReminderInterval.Seconds())
	positive("executor.poll_interval", c.Executor.PollInterval.Seconds())
	positive("executor.proximity", c.Executor.Proximity)
	positive("executor.claim_ttl", c.Executor.ClaimTTL.Seconds())
	if c.Agent.Name == "" {
		errs = append(errs, errors.New("agent.name is required"))
	}
	if c.KnowledgeDir == "" {
		errs = append(errs, errors.New("knowledge_dir is required"))
	}
	return errors.Join(errs...)
}

// ClientConfig is what internal/client needs to connect as this agent.
func (c Config) ClientConfig() client.Config {
	return client.Config{
		URL:             c.ServerURL,
		AgentName:       c.Agent.Name,
		Token:           c.Agent.Token,
		WorldPreference: c.Agent.Dimension,
		DialTimeout:     c.DialTimeout,
	}
}
