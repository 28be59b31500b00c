// CLAUDE:SUMMARY Defines tourguide config structs and tunable constants, parsed from YAML with defaults.
// Package config handles tourguide configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/tourguide/tourlog"
)

// Config is the top-level tourguide configuration.
type Config struct {
	Log     tourlog.Config `yaml:"log"`
	Browser BrowserConfig  `yaml:"browser"`
	Tuning  Tuning         `yaml:"tuning"`
	Resolve ResolveConfig  `yaml:"resolve"`
	Storage StorageConfig  `yaml:"storage"`
	Server  ServerConfig   `yaml:"server"`
	Catalog CatalogConfig  `yaml:"catalog"`
}

// BrowserConfig controls the Chrome instance used by the rod host.
type BrowserConfig struct {
	Remote            string        `yaml:"remote"`
	Stealth           string        `yaml:"stealth"` // headless | headful
	ViewportWidth     int           `yaml:"viewport_width"`
	ViewportHeight    int           `yaml:"viewport_height"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	// Block lists resource types not fetched: images, media, websockets and
	// similar. Fonts and stylesheets are always fetched.
	Block []string `yaml:"block"`
	// XvfbDisplay is used in headful mode. Default: ":99".
	XvfbDisplay string `yaml:"xvfb_display"`
}

// Tuning holds the engine's tunable constants.
type Tuning struct {
	SearchRetries     int           `yaml:"search_retries"`
	SearchDelay       time.Duration `yaml:"search_delay"`
	ScrollBands       int           `yaml:"scroll_bands"`
	ScrollPause       time.Duration `yaml:"scroll_pause"`
	SettleDelay       time.Duration `yaml:"settle_delay"`
	ContainerSettle   time.Duration `yaml:"container_settle"`
	Debounce          time.Duration `yaml:"debounce"`
	Throttle          time.Duration `yaml:"throttle"`
	AnimationDuration time.Duration `yaml:"animation_duration"`
	ViewportMargin    float64       `yaml:"viewport_margin"`
	TooltipMinWidth   float64       `yaml:"tooltip_min_width"`
	TooltipMaxWidth   float64       `yaml:"tooltip_max_width"`
	MobileBreakpoint  float64       `yaml:"mobile_breakpoint"`
	ZIndex            ZIndex        `yaml:"z_index"`
}

// ZIndex layers the overlay below the tooltip, and both below intercepted
// dropdowns.
type ZIndex struct {
	Overlay  int `yaml:"overlay" json:"overlay"`
	Tooltip  int `yaml:"tooltip" json:"tooltip"`
	Dropdown int `yaml:"dropdown" json:"dropdown"`
}

// ResolveConfig customises target resolution.
type ResolveConfig struct {
	// MarkerAttribute is the logical marker attribute. Default: data-tour.
	MarkerAttribute string `yaml:"marker_attribute"`
	// Pages extends the built-in semantic mappings. A page with the same
	// prefix as a built-in one replaces its entries name by name.
	Pages []PageMapping `yaml:"pages"`
}

// PageMapping maps logical marker names to ordered alternate selectors for
// pages whose path starts with Prefix.
type PageMapping struct {
	Prefix  string              `yaml:"prefix"`
	Targets map[string][]string `yaml:"targets"`
}

// StorageConfig selects where tour state lives.
type StorageConfig struct {
	// Path of the SQLite database. Empty keeps state in memory.
	Path string `yaml:"path"`
	// SessionTTL prunes session flags idle for longer. Default: 24h.
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// CatalogConfig lists authored tour files.
type CatalogConfig struct {
	Patterns []string `yaml:"patterns"`
	Watch    bool     `yaml:"watch"`
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
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Log.Environment == "" {
		c.Log.Environment = tourlog.Production
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.ViewportWidth <= 0 {
		c.Browser.ViewportWidth = 1440
	}
	if c.Browser.ViewportHeight <= 0 {
		c.Browser.ViewportHeight = 900
	}
	if c.Browser.NavigationTimeout <= 0 {
		c.Browser.NavigationTimeout = 30 * time.Second
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	c.Tuning.applyDefaults()
	if c.Resolve.MarkerAttribute == "" {
		c.Resolve.MarkerAttribute = "data-tour"
	}
	if c.Storage.SessionTTL <= 0 {
		c.Storage.SessionTTL = 24 * time.Hour
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8088"
	}
	if len(c.Catalog.Patterns) == 0 {
		c.Catalog.Patterns = []string{"tours/**/*.yaml"}
	}
}

func (t *Tuning) applyDefaults() {
	setInt(&t.SearchRetries, 3)
	setDur(&t.SearchDelay, 500*time.Millisecond)
	setInt(&t.ScrollBands, 10)
	setDur(&t.ScrollPause, 100*time.Millisecond)
	setDur(&t.SettleDelay, 500*time.Millisecond)
	setDur(&t.ContainerSettle, 300*time.Millisecond)
	setDur(&t.Debounce, 300*time.Millisecond)
	setDur(&t.Throttle, 100*time.Millisecond)
	setDur(&t.AnimationDuration, 200*time.Millisecond)
	setFloat(&t.ViewportMargin, 20)
	setFloat(&t.TooltipMinWidth, 280)
	setFloat(&t.TooltipMaxWidth, 400)
	setFloat(&t.MobileBreakpoint, 768)
	setInt(&t.ZIndex.Overlay, 9998)
	setInt(&t.ZIndex.Tooltip, 9999)
	setInt(&t.ZIndex.Dropdown, 10000)
}

func setInt(p *int, v int) {
	if *p <= 0 {
		*p = v
	}
}

func setDur(p *time.Duration, v time.Duration) {
	if *p <= 0 {
		*p = v
	}
}

func setFloat(p *float64, v float64) {
	if *p <= 0 {
		*p = v
	}
}
