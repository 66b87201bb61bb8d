// Package config loads and validates the TOML configuration shared by the
// one-shot, watch, and serve modes.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
)

type Config struct {
	Resolver  Resolver  `toml:"resolver"`
	Transform Transform `toml:"transform"`
	Serve     Serve     `toml:"serve"`
	Store     Store     `toml:"store"`
	Watch     Watch     `toml:"watch"`
	Tracing   Tracing   `toml:"tracing"`
}

// Resolver configures how raw specifiers become loadable URLs.
type Resolver struct {
	CDNOrigin   string            `toml:"cdn_origin"`
	LocalOrigin string            `toml:"local_origin"`
	Imports     map[string]string `toml:"imports"`
	Pins        map[string]string `toml:"pins"`
	Externals   []string          `toml:"externals"` // glob patterns passed through unresolved
}

type Transform struct {
	JSXImportSource    string `toml:"jsx_import_source"`
	JSXFactory         string `toml:"jsx_factory"`
	JSXFragmentFactory string `toml:"jsx_fragment_factory"`
	Development        bool   `toml:"development"`
	SourceMap          bool   `toml:"source_map"`
}

type Serve struct {
	Address   string        `toml:"address"`
	RateLimit float64       `toml:"rate_limit"` // requests per second per client
	RateBurst int           `toml:"rate_burst"`
	CacheSize int           `toml:"cache_size"` // in-memory entries
	Timeout   time.Duration `toml:"timeout"`
}

type Store struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Watch struct {
	Paths    []string      `toml:"paths"`
	Exclude  []string      `toml:"exclude"` // glob patterns
	Debounce time.Duration `toml:"debounce"`
}

type Tracing struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validateResolver(&cfg); err != nil {
		return nil, err
	}
	if err := validateServe(&cfg); err != nil {
		return nil, err
	}
	if err := validateStore(&cfg); err != nil {
		return nil, err
	}
	if err := validateWatch(&cfg); err != nil {
		return nil, err
	}
	if err := validateTracing(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Resolver.LocalOrigin) == "" {
		cfg.Resolver.LocalOrigin = "http://localhost:8788"
	}
	if cfg.Resolver.Imports == nil {
		cfg.Resolver.Imports = map[string]string{}
	}
	if cfg.Resolver.Pins == nil {
		cfg.Resolver.Pins = map[string]string{}
	}

	if strings.TrimSpace(cfg.Serve.Address) == "" {
		cfg.Serve.Address = "127.0.0.1:8788"
	}
	if cfg.Serve.RateLimit <= 0 {
		cfg.Serve.RateLimit = 50
	}
	if cfg.Serve.RateBurst <= 0 {
		cfg.Serve.RateBurst = 100
	}
	if cfg.Serve.CacheSize <= 0 {
		cfg.Serve.CacheSize = 1024
	}
	if cfg.Serve.Timeout <= 0 {
		cfg.Serve.Timeout = 30 * time.Second
	}

	if strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = "builds.db"
	}

	if len(cfg.Watch.Paths) == 0 {
		cfg.Watch.Paths = []string{"."}
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
}

func validateResolver(cfg *Config) error {
	if origin := strings.TrimSpace(cfg.Resolver.CDNOrigin); origin != "" {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("resolver.cdn_origin must be an absolute URL, got %q", cfg.Resolver.CDNOrigin)
		}
	}
	if u, err := url.Parse(cfg.Resolver.LocalOrigin); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("resolver.local_origin must be an absolute URL, got %q", cfg.Resolver.LocalOrigin)
	}
	for i, pattern := range cfg.Resolver.Externals {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("resolver.externals[%d]: invalid glob %q: %w", i, pattern, err)
		}
	}
	for name, target := range cfg.Resolver.Imports {
		if strings.TrimSpace(name) == "" || strings.TrimSpace(target) == "" {
			return fmt.Errorf("resolver.imports entries must not be empty (key %q)", name)
		}
	}
	return nil
}

func validateServe(cfg *Config) error {
	if !strings.Contains(cfg.Serve.Address, ":") {
		return fmt.Errorf("serve.address must be host:port, got %q", cfg.Serve.Address)
	}
	return nil
}

func validateStore(cfg *Config) error {
	if cfg.Store.Enabled && strings.TrimSpace(cfg.Store.Path) == "" {
		return fmt.Errorf("store.path must not be empty when store.enabled=true")
	}
	return nil
}

func validateWatch(cfg *Config) error {
	for i, pattern := range cfg.Watch.Exclude {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("watch.exclude[%d]: invalid glob %q: %w", i, pattern, err)
		}
	}
	return nil
}

func validateTracing(cfg *Config) error {
	if cfg.Tracing.Enabled && strings.TrimSpace(cfg.Tracing.Endpoint) == "" {
		return fmt.Errorf("tracing.endpoint must not be empty when tracing.enabled=true")
	}
	return nil
}
