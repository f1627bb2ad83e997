// Package config loads the pkgwatch configuration file and the TOML
// catalog that seeds packages, upstreams and subscriptions.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so TOML values like "30m" decode.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Config is the runtime configuration.
type Config struct {
	// Database is the SQLite database path.
	Database string `toml:"database"`

	Cache CacheConfig `toml:"cache"`
	Run   RunConfig   `toml:"run"`
	Auth  AuthConfig  `toml:"auth"`
}

// AuthConfig holds tokens attached to outgoing requests as bearer
// Authorization headers. Rate-limited hosts like the GitHub API grant
// authenticated clients a far higher quota.
type AuthConfig struct {
	// Token is sent to every host unless overridden below.
	Token string `toml:"token"`

	// Hosts maps a hostname to the token used for that host.
	Hosts map[string]string `toml:"hosts"`
}

// CacheConfig selects the cache backend.
type CacheConfig struct {
	// Backend is "file", "redis" or "null".
	Backend string `toml:"backend"`

	// Dir is the file backend's directory.
	Dir string `toml:"dir"`

	// URL is the redis backend's connection URL.
	URL string `toml:"url"`

	// Prefix namespaces redis keys.
	Prefix string `toml:"prefix"`
}

// RunConfig bounds check runs.
type RunConfig struct {
	Workers     int      `toml:"workers"`
	Interval    Duration `toml:"interval"`
	Lookback    Duration `toml:"lookback"`
	TaskTimeout Duration `toml:"task_timeout"`
	Budget      Duration `toml:"budget"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Database: "~/.local/share/pkgwatch/pkgwatch.db",
		Cache:    CacheConfig{Backend: "file", Prefix: "pkgwatch"},
		Run: RunConfig{
			Workers:  4,
			Interval: Duration{time.Hour},
			Lookback: Duration{30 * 24 * time.Hour},
		},
	}
}

// Path returns the default config file location, honoring XDG_CONFIG_HOME.
func Path() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pkgwatch", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "pkgwatch", "config.toml"), nil
}

// Load reads the config from the default location. A missing file yields
// the defaults; a malformed one is an error.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config from path, filling unset fields with defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "", "file", "redis", "null":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.URL == "" {
		return fmt.Errorf("cache backend redis needs a url")
	}
	if c.Run.Workers < 0 {
		return fmt.Errorf("run.workers must not be negative")
	}
	return nil
}

// DatabasePath returns the database path with a leading ~ expanded and its
// parent directory created.
func (c *Config) DatabasePath() (string, error) {
	path, err := expandHome(c.Database)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// CacheDir returns the file cache directory, defaulting next to the
// database when unset.
func (c *Config) CacheDir() (string, error) {
	dir := c.Cache.Dir
	if dir == "" {
		db, err := expandHome(c.Database)
		if err != nil {
			return "", err
		}
		dir = filepath.Join(filepath.Dir(db), "cache")
	}
	return expandHome(dir)
}

func expandHome(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[1:]), nil
}
