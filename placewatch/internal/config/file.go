// Package config handles reviewbuddy configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/reviewbuddy/fetchsafe"
)

// Config is the top-level configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Page    PageConfig    `yaml:"page"`
	Enrich  EnrichConfig  `yaml:"enrich"`
	Watch   WatchConfig   `yaml:"watch"`

	// Journal is the SQLite event journal path. Empty disables it.
	Journal string `yaml:"journal"`
	// JournalRetentionDays prunes older journal events at start and daily.
	// Default: 30. Negative keeps everything.
	JournalRetentionDays int `yaml:"journal_retention_days"`
	// StatusAddr is the listen address of the status server. Empty disables it.
	StatusAddr string `yaml:"status_addr"`
	// MCP mounts the MCP endpoint on the status server.
	MCP bool `yaml:"mcp"`
	// Debug forces debug-level logging.
	Debug bool `yaml:"debug"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	Stealth          string        `yaml:"stealth"` // plain | headless | headful
	XvfbDisplay      string        `yaml:"xvfb_display"`
	ConnectAttempts  uint          `yaml:"connect_attempts"`
}

// PageConfig describes the watched page and where the panel goes.
type PageConfig struct {
	URL             string `yaml:"url"`
	TitleSelector   string `yaml:"title_selector"`
	AddressSelector string `yaml:"address_selector"`
	PanelParentID   string `yaml:"panel_parent_id"`
	// AssetsDir overrides the bundled panel.html and panel.css.
	AssetsDir string `yaml:"assets_dir"`
}

// EnrichConfig configures the score service client.
type EnrichConfig struct {
	// Endpoint of the scoring service. Empty uses the public endpoint.
	Endpoint         string        `yaml:"endpoint"`
	Reviews          int           `yaml:"reviews"`
	Timeout          time.Duration `yaml:"timeout"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset"`
}

// WatchConfig tunes the drivers.
type WatchConfig struct {
	NavInterval   time.Duration `yaml:"nav_interval"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	RetryAttempts int           `yaml:"retry_attempts"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	c.ApplyDefaults()
	return &c
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.ConnectAttempts == 0 {
		c.Browser.ConnectAttempts = 3
	}
	if c.Page.TitleSelector == "" {
		c.Page.TitleSelector = `[data-attrid="title"]`
	}
	if c.Page.AddressSelector == "" {
		c.Page.AddressSelector = `[data-local-attribute="d3adr"]`
	}
	if c.Page.PanelParentID == "" {
		c.Page.PanelParentID = "lu_pinned_rhs"
	}
	if c.Enrich.Reviews <= 0 {
		c.Enrich.Reviews = 10
	}
	if c.Enrich.Timeout <= 0 {
		c.Enrich.Timeout = 10 * time.Second
	}
	if c.Enrich.BreakerThreshold <= 0 {
		c.Enrich.BreakerThreshold = 5
	}
	if c.Enrich.BreakerReset <= 0 {
		c.Enrich.BreakerReset = 30 * time.Second
	}
	if c.Watch.NavInterval <= 0 {
		c.Watch.NavInterval = time.Second
	}
	if c.Watch.RetryInterval <= 0 {
		c.Watch.RetryInterval = time.Second
	}
	if c.Watch.RetryAttempts <= 0 {
		c.Watch.RetryAttempts = 5
	}
	if c.JournalRetentionDays == 0 {
		c.JournalRetentionDays = 30
	}
}

// Validate reports configuration that cannot start a watcher.
func (c *Config) Validate() error {
	if c.Page.URL == "" {
		return fmt.Errorf("config: page.url is required")
	}
	if _, err := fetchsafe.CheckURL(c.Page.URL); err != nil {
		return fmt.Errorf("config: page.url: %w", err)
	}
	if c.Enrich.Endpoint != "" {
		if _, err := fetchsafe.CheckURL(c.Enrich.Endpoint); err != nil {
			return fmt.Errorf("config: enrich.endpoint: %w", err)
		}
	}
	switch c.Browser.Stealth {
	case "plain", "headless", "headful":
	default:
		return fmt.Errorf("config: browser.stealth %q: want plain, headless or headful", c.Browser.Stealth)
	}
	return nil
}
