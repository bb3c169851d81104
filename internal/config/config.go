// Package config loads and validates crawl configuration via Viper.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/linkharvest/internal/crawler"
)

// DefaultExtractScript is evaluated on every page when no script file is
// configured. It simply reports the page's final location.
const DefaultExtractScript = `return window.location.href;`

// Config captures every knob loaded via Viper.
type Config struct {
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Robots  RobotsConfig  `mapstructure:"robots"`
	Backend BackendConfig `mapstructure:"backend"`
	Filters FiltersConfig `mapstructure:"filters"`
	Seeds   SeedsConfig   `mapstructure:"seeds"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CrawlerConfig governs the control loop and retry pool.
type CrawlerConfig struct {
	Concurrency      int    `mapstructure:"concurrency"`
	Limit            int    `mapstructure:"limit"`
	UserAgent        string `mapstructure:"user_agent"`
	RetryPolicy      string `mapstructure:"retry_policy"`
	RetryThresholdMs int    `mapstructure:"retry_threshold_ms"`
	RetryMaxAttempts int    `mapstructure:"retry_max_attempts"`
}

// RobotsConfig toggles robots.txt enforcement.
type RobotsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Name    string `mapstructure:"name"`
}

// BackendConfig selects and tunes the page fetcher.
type BackendConfig struct {
	Kind              string `mapstructure:"kind"`
	PageLoadTimeoutMs int    `mapstructure:"page_load_timeout_ms"`
	ExtractScriptFile string `mapstructure:"extract_script_file"`
}

// FiltersConfig restricts which discovered URLs are crawled.
type FiltersConfig struct {
	IgnorePatterns []string `mapstructure:"ignore_patterns"`
	AllowedDomains []string `mapstructure:"allowed_domains"`
}

// SeedsConfig supplies the starting URLs, inline or from a file.
type SeedsConfig struct {
	File string   `mapstructure:"file"`
	URLs []string `mapstructure:"urls"`
}

// ServerConfig controls the optional status/metrics HTTP server.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LINKHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.concurrency", 1)
	v.SetDefault("crawler.limit", 0)
	v.SetDefault("crawler.user_agent", "linkharvest/0.1")
	v.SetDefault("crawler.retry_policy", "first")
	v.SetDefault("crawler.retry_threshold_ms", 10000)
	v.SetDefault("crawler.retry_max_attempts", 3)
	v.SetDefault("robots.enabled", false)
	v.SetDefault("robots.name", "linkharvest")
	v.SetDefault("backend.kind", "headless")
	v.SetDefault("backend.page_load_timeout_ms", 10000)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("logging.development", true)
}

// Validate rejects settings the crawl cannot run with.
func (c Config) Validate() error {
	if c.Crawler.Concurrency < 1 {
		return fmt.Errorf("crawler.concurrency must be >= 1, got %d", c.Crawler.Concurrency)
	}
	if c.Crawler.Limit < 0 {
		return fmt.Errorf("crawler.limit must be >= 0, got %d", c.Crawler.Limit)
	}
	if c.Crawler.RetryThresholdMs < 0 {
		return fmt.Errorf("crawler.retry_threshold_ms must be >= 0, got %d", c.Crawler.RetryThresholdMs)
	}
	if c.Crawler.RetryMaxAttempts < 0 {
		return fmt.Errorf("crawler.retry_max_attempts must be >= 0, got %d", c.Crawler.RetryMaxAttempts)
	}
	if _, err := crawler.ParseRetryPolicy(c.Crawler.RetryPolicy); err != nil {
		return err
	}
	switch c.Backend.Kind {
	case "headless", "colly":
	default:
		return fmt.Errorf("backend.kind must be headless or colly, got %q", c.Backend.Kind)
	}
	if c.Backend.PageLoadTimeoutMs <= 0 {
		return fmt.Errorf("backend.page_load_timeout_ms must be > 0, got %d", c.Backend.PageLoadTimeoutMs)
	}
	return nil
}

// BuildCrawlConfig resolves files and units into the crawl engine's config.
func (c Config) BuildCrawlConfig() (crawler.Config, error) {
	policy, err := crawler.ParseRetryPolicy(c.Crawler.RetryPolicy)
	if err != nil {
		return crawler.Config{}, err
	}

	seeds := append([]string(nil), c.Seeds.URLs...)
	if c.Seeds.File != "" {
		fromFile, err := readSeedFile(c.Seeds.File)
		if err != nil {
			return crawler.Config{}, err
		}
		seeds = append(seeds, fromFile...)
	}

	script := DefaultExtractScript
	if c.Backend.ExtractScriptFile != "" {
		data, err := os.ReadFile(c.Backend.ExtractScriptFile)
		if err != nil {
			return crawler.Config{}, fmt.Errorf("read extract script: %w", err)
		}
		script = string(data)
	}

	return crawler.Config{
		Concurrency:     c.Crawler.Concurrency,
		Limit:           c.Crawler.Limit,
		RetryPolicy:     policy,
		RetryThreshold:  time.Duration(c.Crawler.RetryThresholdMs) * time.Millisecond,
		RetryCap:        c.Crawler.RetryMaxAttempts,
		UseRobots:       c.Robots.Enabled,
		RobotName:       c.Robots.Name,
		UserAgent:       c.Crawler.UserAgent,
		PageLoadTimeout: time.Duration(c.Backend.PageLoadTimeoutMs) * time.Millisecond,
		ExtractScript:   script,
		IgnorePatterns:  c.Filters.IgnorePatterns,
		AllowedDomains:  c.Filters.AllowedDomains,
		Seeds:           seeds,
	}, nil
}

// readSeedFile parses one URL per line, skipping blanks and '#' comments.
func readSeedFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	var seeds []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seeds = append(seeds, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return seeds, nil
}
