// Package config handles configuration loading and validation for imbridge.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Version is the current configuration schema version.
const Version = 1

// Config is the complete imbridge configuration.
type Config struct {
	Version int `toml:"version" json:"version" yaml:"version"`

	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
	IBus    IBusConfig    `toml:"ibus" json:"ibus" yaml:"ibus"`
	Lookup  LookupConfig  `toml:"lookup" json:"lookup" yaml:"lookup"`
	Preedit PreeditConfig `toml:"preedit" json:"preedit" yaml:"preedit"`
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`

	// Hotkeys are key combinations swallowed before the input method sees
	// them, e.g. "ctrl+space".
	Hotkeys []string `toml:"hotkeys" json:"hotkeys" yaml:"hotkeys"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is text or json.
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is stdout, stderr, file or both.
	Output string `toml:"output" json:"output" yaml:"output"`

	FilePath   string `toml:"file_path" json:"file_path" yaml:"file_path"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
}

// IBusConfig controls the connection to the IBus daemon.
type IBusConfig struct {
	// Address overrides bus address discovery when set.
	Address string `toml:"address" json:"address" yaml:"address"`

	// ClientName is reported to the daemon for every input context.
	ClientName string `toml:"client_name" json:"client_name" yaml:"client_name"`

	// TimeoutMs bounds each D-Bus method call.
	TimeoutMs int `toml:"timeout_ms" json:"timeout_ms" yaml:"timeout_ms"`

	// SignalWaitMs is how long a lookup waits for the commit a consumed
	// key caused. Zero disables the wait.
	SignalWaitMs int `toml:"signal_wait_ms" json:"signal_wait_ms" yaml:"signal_wait_ms"`
}

// LookupConfig tunes key lookups.
type LookupConfig struct {
	// InitialBufferSize is the first lookup buffer capacity in bytes.
	InitialBufferSize int `toml:"initial_buffer_size" json:"initial_buffer_size" yaml:"initial_buffer_size"`
}

// PreeditConfig tunes composition text handling.
type PreeditConfig struct {
	// Encoding names the charset of multibyte preedit text. Empty means
	// UTF-8.
	Encoding string `toml:"encoding" json:"encoding" yaml:"encoding"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Listen  string `toml:"listen" json:"listen" yaml:"listen"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(StateDir(), "imbridge.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		IBus: IBusConfig{
			ClientName:   "imbridge",
			TimeoutMs:    2000,
			SignalWaitMs: 20,
		},
		Lookup: LookupConfig{
			InitialBufferSize: 12,
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9477",
		},
		Hotkeys: []string{},
	}
}

// ConfigDir returns $XDG_CONFIG_HOME/imbridge, or IMBRIDGE_CONFIG_DIR when
// set.
func ConfigDir() string {
	if dir := os.Getenv("IMBRIDGE_CONFIG_DIR"); dir != "" {
		return dir
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "imbridge")
}

// StateDir returns $XDG_STATE_HOME/imbridge.
func StateDir() string {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "imbridge")
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads configuration from path, applies environment overrides and
// validates the result. A missing file yields the defaults.
// TOML, JSON and YAML are chosen by extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

func decodeFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	switch filepath.Ext(path) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	}
	return cfg, nil
}

// ApplyEnvOverrides applies IMBRIDGE_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("IMBRIDGE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("IMBRIDGE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("IMBRIDGE_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("IMBRIDGE_IBUS_ADDRESS"); v != "" {
		c.IBus.Address = v
	}
	if v := os.Getenv("IMBRIDGE_IBUS_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.IBus.TimeoutMs = n
		}
	}
	if v := os.Getenv("IMBRIDGE_PREEDIT_ENCODING"); v != "" {
		c.Preedit.Encoding = v
	}
	if v := os.Getenv("IMBRIDGE_HOTKEYS"); v != "" {
		var keys []string
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		c.Hotkeys = keys
	}
	if v := os.Getenv("IMBRIDGE_METRICS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Metrics.Enabled = b
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Hotkeys = append([]string(nil), c.Hotkeys...)
	return &clone
}

// IBusTimeout returns the D-Bus call timeout.
func (c *Config) IBusTimeout() time.Duration {
	return time.Duration(c.IBus.TimeoutMs) * time.Millisecond
}

// IBusSignalWait returns how long lookups wait for a late commit.
func (c *Config) IBusSignalWait() time.Duration {
	return time.Duration(c.IBus.SignalWaitMs) * time.Millisecond
}

// Save writes the configuration as TOML.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode TOML: %w", err)
	}
	return nil
}
