// Package config handles resmon configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level resmon configuration.
type Config struct {
	Targets []TargetConfig `yaml:"targets"`
	Runs    int            `yaml:"runs"`
	Browser BrowserConfig  `yaml:"browser"`
	Sampler SamplerConfig  `yaml:"sampler"`
	Journal string         `yaml:"journal"` // sqlite path, empty disables
	Listen  string         `yaml:"listen"`  // diagnostics addr, empty disables
}

// TargetConfig identifies one web app to profile.
type TargetConfig struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// BrowserConfig controls the sandboxed browser lifecycle.
type BrowserConfig struct {
	Binary         string        `yaml:"binary"`
	DebugPort      int           `yaml:"debug_port"` // 0 picks a free port
	SettleDelay    time.Duration `yaml:"settle_delay"`
	NavigationWait time.Duration `yaml:"navigation_wait"`
	PageDelay      time.Duration `yaml:"page_delay"`
}

// SamplerConfig controls OS-level process sampling.
type SamplerConfig struct {
	CPUInterval time.Duration `yaml:"cpu_interval"`
	Match       []string      `yaml:"match"` // name fragments for orphan scan
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// Validate rejects configurations the engine cannot run.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("config: no targets defined")
	}
	seen := make(map[string]bool, len(c.Targets))
	for _, t := range c.Targets {
		if t.ID == "" {
			return fmt.Errorf("config: target with empty id")
		}
		if t.URL == "" {
			return fmt.Errorf("config: target %s has no url", t.ID)
		}
		if seen[t.ID] {
			return fmt.Errorf("config: duplicate target id %s", t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

// ApplyDefaults fills unset fields with working values.
func (c *Config) ApplyDefaults() {
	if c.Runs <= 0 {
		c.Runs = 3
	}
	if c.Browser.SettleDelay <= 0 {
		c.Browser.SettleDelay = 3 * time.Second
	}
	if c.Browser.NavigationWait <= 0 {
		c.Browser.NavigationWait = 3 * time.Second
	}
	if c.Browser.PageDelay <= 0 {
		c.Browser.PageDelay = 2 * time.Second
	}
	if c.Sampler.CPUInterval <= 0 {
		c.Sampler.CPUInterval = 200 * time.Millisecond
	}
}
