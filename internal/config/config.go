// Package config handles TOML-based configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// TokenEnv overrides the bot token from the config file.
const TokenEnv = "TOKGRAB_TOKEN"

// Config holds all application configuration.
type Config struct {
	Token         string        `toml:"token"`
	OwnerID       int64         `toml:"owner_id"`
	DBPath        string        `toml:"db_path"`
	Caption       string        `toml:"caption"`
	MaxConcurrent int           `toml:"max_concurrent"`
	SessionTTL    time.Duration `toml:"session_ttl"`

	Log       LogConfig       `toml:"log"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Resolver  ResolverConfig  `toml:"resolver"`
	Broadcast BroadcastConfig `toml:"broadcast"`
	Providers ProvidersConfig `toml:"providers"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"` // optional, appended to alongside stderr
}

// MetricsConfig controls the Prometheus listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// ResolverConfig tunes provider failover.
type ResolverConfig struct {
	Retries    int           `toml:"retries"`
	RetryDelay time.Duration `toml:"retry_delay"`
	Deadline   time.Duration `toml:"deadline"` // zero: sum of enabled provider timeouts
}

// BroadcastConfig paces broadcast fanout.
type BroadcastConfig struct {
	Rate  float64 `toml:"rate"` // messages per second
	Burst int     `toml:"burst"`
}

// ProviderConfig configures one extraction service.
type ProviderConfig struct {
	Enabled  bool          `toml:"enabled"`
	Endpoint string        `toml:"endpoint"`
	Timeout  time.Duration `toml:"timeout"`
}

// ProvidersConfig holds every known provider, keyed like provider.Order.
type ProvidersConfig struct {
	Tikwm     ProviderConfig `toml:"tikwm"`
	Ssstik    ProviderConfig `toml:"ssstik"`
	Tiklydown ProviderConfig `toml:"tiklydown"`
}

// Get returns the settings for a provider name.
func (p ProvidersConfig) Get(name string) (ProviderConfig, bool) {
	switch name {
	case "tikwm":
		return p.Tikwm, true
	case "ssstik":
		return p.Ssstik, true
	case "tiklydown":
		return p.Tiklydown, true
	default:
		return ProviderConfig{}, false
	}
}

func (p ProvidersConfig) all() []ProviderConfig {
	return []ProviderConfig{p.Tikwm, p.Ssstik, p.Tiklydown}
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Caption:       "coded by no9mm",
		MaxConcurrent: 16,
		SessionTTL:    5 * time.Minute,
		Log:           LogConfig{Level: "info"},
		Resolver: ResolverConfig{
			Retries:    0,
			RetryDelay: 500 * time.Millisecond,
		},
		Broadcast: BroadcastConfig{Rate: 25, Burst: 1},
		Providers: ProvidersConfig{
			Tikwm:     ProviderConfig{Enabled: true, Endpoint: "https://tikwm.com/api/", Timeout: 10 * time.Second},
			Ssstik:    ProviderConfig{Enabled: true, Endpoint: "https://ssstik.io/abc", Timeout: 10 * time.Second},
			Tiklydown: ProviderConfig{Enabled: true, Endpoint: "https://tiklydown.com/getAjax?", Timeout: 10 * time.Second},
		},
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tokgrab"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "tokgrab"), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the default config file and merges with defaults.
// If the config file doesn't exist, defaults are returned.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Default()
		cfg.applyEnv()
		return cfg, nil
	}
	return load(path, true)
}

// LoadFile reads an explicit config file, which must exist.
func LoadFile(path string) (*Config, error) {
	return load(path, false)
}

func load(path string, optional bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err) && optional:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if tok := os.Getenv(TokenEnv); tok != "" {
		c.Token = tok
	}
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("unsupported log level %q (valid: debug, info, warn, error)", c.Log.Level)
	}

	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", c.MaxConcurrent)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive")
	}

	if c.Resolver.Retries < 0 || c.Resolver.Retries > 5 {
		return fmt.Errorf("resolver.retries must be between 0 and 5, got %d", c.Resolver.Retries)
	}
	if c.Resolver.Deadline < 0 {
		return fmt.Errorf("resolver.deadline cannot be negative")
	}

	if c.Broadcast.Rate <= 0 {
		return fmt.Errorf("broadcast.rate must be positive")
	}
	if c.Broadcast.Burst < 1 {
		return fmt.Errorf("broadcast.burst must be at least 1")
	}

	enabled := 0
	for _, p := range c.Providers.all() {
		if !p.Enabled {
			continue
		}
		enabled++
		if p.Endpoint == "" {
			return fmt.Errorf("enabled provider has no endpoint")
		}
		if p.Timeout <= 0 || p.Timeout > 2*time.Minute {
			return fmt.Errorf("provider timeout %v out of range (0, 2m]", p.Timeout)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one provider must be enabled")
	}

	return nil
}

// RequireBot checks the settings only the long-running bot needs.
func (c *Config) RequireBot() error {
	if c.Token == "" {
		return fmt.Errorf("bot token is required (set token in config or %s)", TokenEnv)
	}
	if c.OwnerID == 0 {
		return fmt.Errorf("owner_id is required")
	}
	return nil
}

// ResolveDeadline returns the aggregate resolution deadline: the configured
// value, or the sum of enabled provider timeouts.
func (c *Config) ResolveDeadline() time.Duration {
	if c.Resolver.Deadline > 0 {
		return c.Resolver.Deadline
	}
	var total time.Duration
	for _, p := range c.Providers.all() {
		if p.Enabled {
			total += p.Timeout * time.Duration(c.Resolver.Retries+1)
		}
	}
	return total
}

// DatabasePath returns the registry database path.
func (c *Config) DatabasePath() (string, error) {
	if c.DBPath != "" {
		return expandHome(c.DBPath)
	}
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "tokgrab", "users.db"), nil
}

// expandHome resolves a leading ~/ in path.
func expandHome(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding home dir: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
