package sched

import (
	"os"
	"time"

	yaml "github.com/goccy/go-yaml"
)

// Config mirrors config.yml
type Config struct {
	TickMS        int    `yaml:"tick_ms"`        // base tick, 1 (by default)
	QuantumTicks  int    `yaml:"quantum_ticks"`  // base ticks per round robin round, 10 (by default)
	HeapBytes     int    `yaml:"heap_bytes"`     // allocator capacity for tasks and semaphores
	MaxTasks      int    `yaml:"max_tasks"`      // task arena slots
	MaxSemaphores int    `yaml:"max_semaphores"` // semaphore table size
	EventBuffer   int    `yaml:"event_buffer"`   // status channel buffer
	LogLevel      string `yaml:"log_level"`
	CSVPath       string `yaml:"csv_path"`
	RunTicks      int    `yaml:"run_ticks"` // demo only
}

// If the config file is not found, we use default values
func defaultConfig() Config {
	return Config{
		TickMS:        1,
		QuantumTicks:  10,
		HeapBytes:     16 * 1024,
		MaxTasks:      16,
		MaxSemaphores: 16,
		EventBuffer:   256,
		LogLevel:      "info",
		RunTicks:      200,
	}
}

// DefaultConfig returns the reference configuration: 1ms base tick, 10 tick quantum.
func DefaultConfig() Config { return defaultConfig() }

// Load reads YAML and overrides defaults; empty path = defaults only
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, &cfg)

	return cfg.sanitize()
}

// sanity clamps
func (c Config) sanitize() Config {
	def := defaultConfig()
	if c.TickMS <= 0 {
		c.TickMS = def.TickMS
	}
	if c.QuantumTicks <= 0 {
		c.QuantumTicks = def.QuantumTicks
	}
	if c.HeapBytes <= 0 {
		c.HeapBytes = def.HeapBytes
	}
	if c.MaxTasks <= 0 {
		c.MaxTasks = def.MaxTasks
	}
	if c.MaxSemaphores <= 0 {
		c.MaxSemaphores = def.MaxSemaphores
	}
	if c.EventBuffer < 0 {
		c.EventBuffer = def.EventBuffer
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.RunTicks <= 0 {
		c.RunTicks = def.RunTicks
	}
	return c
}

// BasePeriod is the timer period the kernel arms on start.
func (c Config) BasePeriod() time.Duration {
	return time.Duration(c.TickMS) * time.Millisecond
}

// QuantumMS is the delay, in ms, removed from every sleeper per round.
func (c Config) QuantumMS() int64 {
	return int64(c.TickMS) * int64(c.QuantumTicks)
}
