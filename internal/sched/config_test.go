package sched

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_defaults(t *testing.T) {
	assert.Equal(t, defaultConfig(), Load(""))
	assert.Equal(t, defaultConfig(), Load(filepath.Join(t.TempDir(), "missing.yml")))

	cfg := DefaultConfig()
	assert.Equal(t, time.Millisecond, cfg.BasePeriod())
	assert.Equal(t, int64(10), cfg.QuantumMS())
}

func TestLoad_overridesAndClamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
tick_ms: 2
quantum_ticks: 5
heap_bytes: -1
max_tasks: 4
log_level: debug
csv_path: events.csv
`), 0o644))

	cfg := Load(path)
	assert.Equal(t, 2, cfg.TickMS)
	assert.Equal(t, 5, cfg.QuantumTicks)
	assert.Equal(t, int64(10), cfg.QuantumMS())
	assert.Equal(t, defaultConfig().HeapBytes, cfg.HeapBytes)
	assert.Equal(t, 4, cfg.MaxTasks)
	assert.Equal(t, defaultConfig().MaxSemaphores, cfg.MaxSemaphores)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "events.csv", cfg.CSVPath)
}

func TestNew_sanitizesConfig(t *testing.T) {
	k := New(Config{})
	cfg := k.Config()
	assert.Equal(t, 1, cfg.TickMS)
	assert.Equal(t, 10, cfg.QuantumTicks)
	assert.Nil(t, k.StatusChannel(), "zero event buffer disables events")
}

func TestQuantumFollowsConfig(t *testing.T) {
	cfg := testConfig()
	cfg.TickMS = 2
	cfg.QuantumTicks = 3
	r := newRig(t, cfg)
	ids := r.spawn(t, 2)
	require.NoError(t, r.k.Start())
	assert.Equal(t, 2*time.Millisecond, r.timer.Period)

	require.NoError(t, r.k.Wait(12))
	r.timer.Fire(3)
	assert.Equal(t, int64(6), r.k.Snapshot().Sleeping[0].Delay)
	r.timer.Fire(3)
	assert.Contains(t, taskIDs(r.k.Snapshot().Ready), ids[0])
}
