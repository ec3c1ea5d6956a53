package relay

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/mehdiattar-lab/WeatherDataFetcher/internal/metrics"
)

// Cadence names used in logs and metrics.
const (
	KindObservation = "observation"
	KindForecast    = "forecast"
)

// Scheduler drives the two relay cadences. Each job runs in its own
// goroutine, so a slow forecast cycle never delays an observation tick.
// Cycle errors are logged and swallowed; the next tick always runs.
type Scheduler struct {
	scheduler *gocron.Scheduler
	relay     *Relay
	logger    *slog.Logger

	observationInterval time.Duration
	forecastInterval    time.Duration

	observationCycles atomic.Int64
	forecastCycles    atomic.Int64
}

func NewScheduler(relay *Relay, observationInterval, forecastInterval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler:           gocron.NewScheduler(time.UTC),
		relay:               relay,
		logger:              logger,
		observationInterval: observationInterval,
		forecastInterval:    forecastInterval,
	}
}

// Start schedules both cadences and starts the underlying scheduler. Both
// fire immediately at launch and then on their intervals. SingletonMode keeps
// a cycle that overruns its interval from piling up behind itself.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.Every(s.observationInterval).SingletonMode().StartImmediately().Do(func() {
		s.runCycle(ctx, KindObservation, &s.observationCycles, s.relay.RunObservationCycle)
	})
	if err != nil {
		return err
	}

	_, err = s.scheduler.Every(s.forecastInterval).SingletonMode().StartImmediately().Do(func() {
		s.runCycle(ctx, KindForecast, &s.forecastCycles, s.relay.RunForecastCycle)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) runCycle(ctx context.Context, kind string, counter *atomic.Int64, run func(context.Context) error) {
	if ctx.Err() != nil {
		return
	}

	cycle := counter.Add(1)
	started := time.Now()

	if err := run(ctx); err != nil {
		metrics.CycleFailed(kind)
		s.logger.Error("cycle failed",
			"kind", kind,
			"cycle", cycle,
			"duration", time.Since(started),
			"error", err,
		)
		return
	}

	metrics.CycleSucceeded(kind)
	s.logger.Info("cycle completed",
		"kind", kind,
		"cycle", cycle,
		"duration", time.Since(started),
	)
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
