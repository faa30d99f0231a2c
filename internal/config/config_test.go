package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 12, cfg.Lookup.InitialBufferSize)
	assert.Equal(t, "imbridge", cfg.IBus.ClientName)
	assert.Equal(t, 2*time.Second, cfg.IBusTimeout())
	assert.Equal(t, 20*time.Millisecond, cfg.IBusSignalWait())
}

func TestConfigPath(t *testing.T) {
	t.Setenv("IMBRIDGE_CONFIG_DIR", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "imbridge", "config.toml"), ConfigPath())

	t.Setenv("IMBRIDGE_CONFIG_DIR", "/override")
	assert.Equal(t, filepath.Join("/override", "config.toml"), ConfigPath())
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Lookup, cfg.Lookup)
}

func TestLoadFormats(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"config.toml": `
version = 1
hotkeys = ["ctrl+space"]

[ibus]
address = "unix:path=/run/ibus"
timeout_ms = 500

[lookup]
initial_buffer_size = 64

[preedit]
encoding = "EUC-JP"
`,
		"config.json": `{
  "version": 1,
  "hotkeys": ["ctrl+space"],
  "ibus": {"address": "unix:path=/run/ibus", "timeout_ms": 500},
  "lookup": {"initial_buffer_size": 64},
  "preedit": {"encoding": "EUC-JP"}
}`,
		"config.yaml": `
version: 1
hotkeys: [ctrl+space]
ibus:
  address: unix:path=/run/ibus
  timeout_ms: 500
lookup:
  initial_buffer_size: 64
preedit:
  encoding: EUC-JP
`,
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, dir, name, content))
			require.NoError(t, err)
			assert.Equal(t, "unix:path=/run/ibus", cfg.IBus.Address)
			assert.Equal(t, 500, cfg.IBus.TimeoutMs)
			assert.Equal(t, "imbridge", cfg.IBus.ClientName, "unset fields keep defaults")
			assert.Equal(t, 64, cfg.Lookup.InitialBufferSize)
			assert.Equal(t, "EUC-JP", cfg.Preedit.Encoding)
			assert.Equal(t, []string{"ctrl+space"}, cfg.Hotkeys)
		})
	}
}

func TestLoadDecodeError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.toml", "version = = 1")
	_, err := Load(path)
	assert.ErrorContains(t, err, "decode TOML")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("IMBRIDGE_LOG_LEVEL", "debug")
	t.Setenv("IMBRIDGE_IBUS_ADDRESS", "unix:abstract=/tmp/x")
	t.Setenv("IMBRIDGE_IBUS_TIMEOUT_MS", "750")
	t.Setenv("IMBRIDGE_HOTKEYS", "ctrl+space, super+h ,")
	t.Setenv("IMBRIDGE_METRICS", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "unix:abstract=/tmp/x", cfg.IBus.Address)
	assert.Equal(t, 750, cfg.IBus.TimeoutMs)
	assert.Equal(t, []string{"ctrl+space", "super+h"}, cfg.Hotkeys)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"buffer too small", func(c *Config) { c.Lookup.InitialBufferSize = 1 }, "lookup.initial_buffer_size"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad output", func(c *Config) { c.Logging.Output = "syslog" }, "logging.output"},
		{"timeout", func(c *Config) { c.IBus.TimeoutMs = 0 }, "ibus.timeout_ms"},
		{"signal wait", func(c *Config) { c.IBus.SignalWaitMs = 5000 }, "ibus.signal_wait_ms"},
		{"empty client", func(c *Config) { c.IBus.ClientName = "" }, "ibus.client_name"},
		{"bad address", func(c *Config) { c.IBus.Address = "/run/ibus" }, "ibus.address"},
		{"bad listen", func(c *Config) { c.Metrics.Listen = "localhost" }, "metrics.listen"},
		{"bad hotkey", func(c *Config) { c.Hotkeys = []string{"ctrl+ +x"} }, "hotkeys[0]"},
		{"version", func(c *Config) { c.Version = 7 }, "version"},
		{"encoding", func(c *Config) { c.Preedit.Encoding = "klingon" }, "preedit.encoding"},
		{"duplicate hotkey", func(c *Config) { c.Hotkeys = []string{"ctrl+space", "Ctrl+Space"} }, "hotkeys[1]"},
		{"file without path", func(c *Config) {
			c.Logging.Output = "file"
			c.Logging.FilePath = ""
		}, "logging.file_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.Contains(t, verrs.Fields(), tt.field, err.Error())
		})
	}
}

func TestPointerToField(t *testing.T) {
	assert.Equal(t, "$", pointerToField(""))
	assert.Equal(t, "ibus.timeout_ms", pointerToField("/ibus/timeout_ms"))
	assert.Equal(t, "hotkeys[2]", pointerToField("/hotkeys/2"))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg := DefaultConfig()
	cfg.Hotkeys = []string{"f12"}
	cfg.Metrics.Enabled = true
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestClone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Hotkeys = []string{"ctrl+space"}
	clone := cfg.Clone()
	clone.Hotkeys[0] = "f1"
	assert.Equal(t, "ctrl+space", cfg.Hotkeys[0])
}

func TestLoaderWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", "version = 1\n[lookup]\ninitial_buffer_size = 16\n")

	l := NewLoader(path)
	l.debounce = 50 * time.Millisecond
	defer l.Close()

	cfg, err := l.Load()
	require.NoError(t, err)
	require.Equal(t, 16, cfg.Lookup.InitialBufferSize)

	changed := make(chan [2]int, 1)
	l.OnChange(func(old, new *Config) {
		select {
		case changed <- [2]int{old.Lookup.InitialBufferSize, new.Lookup.InitialBufferSize}:
		default:
		}
	})
	require.NoError(t, l.Watch())

	writeFile(t, dir, "config.toml", "version = 1\n[lookup]\ninitial_buffer_size = 32\n")

	select {
	case got := <-changed:
		assert.Equal(t, [2]int{16, 32}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("config change not observed")
	}
	assert.Equal(t, 32, l.Config().Lookup.InitialBufferSize)
}

func TestLoaderWatchKeepsConfigOnBadReload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", "version = 1\n")

	l := NewLoader(path)
	l.debounce = 50 * time.Millisecond
	defer l.Close()
	_, err := l.Load()
	require.NoError(t, err)
	require.NoError(t, l.Watch())

	writeFile(t, dir, "config.toml", "version = 1\n[lookup]\ninitial_buffer_size = 1\n")

	select {
	case err := <-l.Errors():
		assert.True(t, strings.Contains(err.Error(), "reload config"), err.Error())
	case <-time.After(5 * time.Second):
		t.Fatal("reload error not reported")
	}
	assert.Equal(t, 12, l.Config().Lookup.InitialBufferSize)
}
