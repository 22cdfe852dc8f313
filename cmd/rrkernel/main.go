package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"rrkernel/internal/job"
	"rrkernel/internal/sched"
)

func main() {
	// Read the configuration
	cfg := sched.Load("config.yml")

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
		Level(level).With().Timestamp().Logger()
	log.Info().Interface("config", cfg).Msg("loaded config")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("kernel stopped")
	}
}

func run(cfg sched.Config, log zerolog.Logger) error {
	m := job.NewMachine(cfg, log)
	k := m.Kernel()
	if cfg.CSVPath != "" {
		if err := k.EnableCSVLogging(cfg.CSVPath); err != nil {
			return fmt.Errorf("csv log: %w", err)
		}
	}

	// a bounded buffer guarded by a mutex, filled by a producer, drained
	// by a consumer, plus a periodic sleeper and an idle task
	items, err := k.NewSemaphore(0)
	if err != nil {
		return err
	}
	mutex, err := k.NewSemaphore(1)
	if err != nil {
		return err
	}

	programs := []job.Program{
		{Name: "idle", Steps: []job.Step{job.Compute(1)}, Loop: true},
		{Name: "producer", Loop: true, Steps: []job.Step{
			job.Acquire(mutex), job.Compute(3), job.Release(mutex),
			job.Release(items), job.SleepWork(25),
		}},
		{Name: "consumer", Loop: true, Steps: []job.Step{
			job.Acquire(items), job.Acquire(mutex), job.Compute(2), job.Release(mutex),
		}},
		{Name: "blinker", Steps: []job.Step{
			job.Compute(5), job.SleepWork(40), job.Compute(5), job.SleepWork(40), job.Compute(5),
		}},
	}
	for _, p := range programs {
		if _, err := m.Load(p, 256); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- k.Run(ctx) }()

	if err := m.Boot(); err != nil {
		cancel()
		return err
	}
	runErr := m.Run(ctx, cfg.RunTicks, cfg.BasePeriod())
	cancel()
	<-done

	snap := k.Snapshot()
	log.Info().Uint64("ticks", snap.Ticks).Int("switches", m.Switches).
		Uint64("dropped_events", k.Dropped()).Msg("run finished")
	for _, t := range snap.Tasks() {
		log.Info().Uint32("task", uint32(t.ID)).Str("status", t.Status.String()).Int64("delay_ms", t.Delay).Msg("task")
	}
	return runErr
}
