// Package config handles pricewatch configuration from YAML files, with
// environment-variable fallbacks for provider credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level pricewatch configuration.
type Config struct {
	DatabasePath string          `yaml:"database_path"`
	Scheduler    SchedulerConfig `yaml:"scheduler"`
	Extract      ExtractConfig   `yaml:"extract"`
	Search       SearchConfig    `yaml:"search"`
	Keywords     KeywordsConfig  `yaml:"keywords"`
	SMTP         SMTPConfig      `yaml:"smtp"`
	API          APIConfig       `yaml:"api"`
	Match        MatchConfig     `yaml:"match"`
}

// SchedulerConfig controls the periodic monitoring batches.
type SchedulerConfig struct {
	Interval      time.Duration `yaml:"interval"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	HistoryCap    int           `yaml:"history_cap"`
}

// ExtractConfig controls the product page extractor.
type ExtractConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout"`
	BackoffMin      time.Duration `yaml:"backoff_min"`
	BackoffMax      time.Duration `yaml:"backoff_max"`
	Browser         BrowserConfig `yaml:"browser"`
}

// BrowserConfig controls Chrome lifecycle for the rendering strategy.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
}

// SearchConfig configures the web search provider used by the match engine.
type SearchConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	Location string        `yaml:"location"`
	Country  string        `yaml:"country"`
	Language string        `yaml:"language"`
	Timeout  time.Duration `yaml:"timeout"`
}

// KeywordsConfig configures the generative keyword-extraction service.
// Leave Endpoint empty to rely on the rule-based fallback only.
type KeywordsConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SMTPConfig configures alert email delivery.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Listen string `yaml:"listen"`
}

// MatchConfig controls comparison generation and caching.
type MatchConfig struct {
	FreshnessWindow time.Duration `yaml:"freshness_window"`
	MaxResults      int           `yaml:"max_results"`
	RawTarget       int           `yaml:"raw_target"`
	MinCandidates   int           `yaml:"min_candidates"`
}

// LoadFile reads a YAML configuration file and applies defaults.
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

// Default returns a configuration with all defaults applied and no file input.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero values with production defaults and pulls
// credentials from the environment when the file leaves them empty.
func (c *Config) ApplyDefaults() {
	if c.DatabasePath == "" {
		c.DatabasePath = "pricewatch.db"
	}

	if c.Scheduler.Interval <= 0 {
		c.Scheduler.Interval = 30 * time.Minute
	}
	if c.Scheduler.MaxConcurrent <= 0 {
		c.Scheduler.MaxConcurrent = 4
	}
	if c.Scheduler.HistoryCap <= 0 {
		c.Scheduler.HistoryCap = 30
	}

	if c.Extract.MaxAttempts <= 0 {
		c.Extract.MaxAttempts = 3
	}
	if c.Extract.NavigateTimeout <= 0 {
		c.Extract.NavigateTimeout = 20 * time.Second
	}
	if c.Extract.BackoffMin <= 0 {
		c.Extract.BackoffMin = 1 * time.Second
	}
	if c.Extract.BackoffMax <= c.Extract.BackoffMin {
		c.Extract.BackoffMax = c.Extract.BackoffMin + 3*time.Second
	}
	if c.Extract.Browser.RecycleInterval <= 0 {
		c.Extract.Browser.RecycleInterval = 4 * time.Hour
	}

	if c.Search.Endpoint == "" {
		c.Search.Endpoint = "https://serpapi.com/search"
	}
	if c.Search.APIKey == "" {
		c.Search.APIKey = os.Getenv("SERPAPI_API_KEY")
	}
	if c.Search.Location == "" {
		c.Search.Location = "India"
	}
	if c.Search.Country == "" {
		c.Search.Country = "in"
	}
	if c.Search.Language == "" {
		c.Search.Language = "en"
	}
	if c.Search.Timeout <= 0 {
		c.Search.Timeout = 20 * time.Second
	}

	if c.Keywords.APIKey == "" {
		c.Keywords.APIKey = os.Getenv("KEYWORD_API_KEY")
	}
	if c.Keywords.Timeout <= 0 {
		c.Keywords.Timeout = 10 * time.Second
	}

	if c.SMTP.Host == "" {
		c.SMTP.Host = os.Getenv("SMTP_HOST")
	}
	if c.SMTP.Port <= 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.Username == "" {
		c.SMTP.Username = os.Getenv("SMTP_USERNAME")
	}
	if c.SMTP.Password == "" {
		c.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	}
	if c.SMTP.From == "" {
		c.SMTP.From = "alerts@pricewatch.local"
	}

	if c.API.Listen == "" {
		c.API.Listen = ":8080"
	}

	if c.Match.FreshnessWindow <= 0 {
		c.Match.FreshnessWindow = 6 * time.Hour
	}
	if c.Match.MaxResults <= 0 {
		c.Match.MaxResults = 3
	}
	if c.Match.RawTarget <= 0 {
		c.Match.RawTarget = 10
	}
	if c.Match.MinCandidates <= 0 {
		c.Match.MinCandidates = 3
	}
}
