package resmon

import (
	"github.com/Lissy93/framework-benchmarks/resmon/internal/config"
)

// Config is the top-level resmon configuration. Re-exported from internal.
type Config = config.Config

// TargetConfig identifies one web app to profile.
type TargetConfig = config.TargetConfig

// BrowserConfig controls the sandboxed browser lifecycle.
type BrowserConfig = config.BrowserConfig

// SamplerConfig controls OS-level process sampling.
type SamplerConfig = config.SamplerConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}
