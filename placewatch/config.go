package placewatch

import (
	"github.com/hazyhaar/reviewbuddy/placewatch/internal/config"
)

// Config is the top-level reviewbuddy configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// PageConfig describes the watched page and where the panel goes.
type PageConfig = config.PageConfig

// EnrichConfig configures the score service client.
type EnrichConfig = config.EnrichConfig

// WatchConfig tunes the drivers.
type WatchConfig = config.WatchConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}
