//go:build linux

package main

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imbridge/internal/config"
	"imbridge/internal/logging"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLogReloadErrors(t *testing.T) {
	var out lockedBuffer
	log := logging.NewWriter(logging.DefaultConfig(), &out)

	errs := make(chan error, 2)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		logReloadErrors(errs, log, done)
		close(stopped)
	}()

	errs <- errors.New("reload config: bad version")
	errs <- errors.New("reload config: unknown key")
	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "config reload failed") == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "bad version")
	assert.Contains(t, out.String(), "unknown key")

	close(done)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("logReloadErrors did not return after done was closed")
	}
}

func TestLoggingConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Level = "warn"

	lc, lv, err := loggingConfig(cfg, false)
	require.NoError(t, err)
	assert.Equal(t, logging.LevelWarn, lv.Level())
	assert.Same(t, lv, lc.Level)

	_, lv, err = loggingConfig(cfg, true)
	require.NoError(t, err)
	assert.Equal(t, logging.LevelDebug, lv.Level())

	cfg.Logging.Level = "loud"
	_, _, err = loggingConfig(cfg, false)
	assert.Error(t, err)
}
