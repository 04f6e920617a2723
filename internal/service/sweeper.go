package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/target/mediabroker/config"
	"github.com/target/mediabroker/internal/core"
	"github.com/target/mediabroker/internal/data"
	"github.com/target/mediabroker/internal/domain/model"
	"github.com/target/mediabroker/internal/observability/metrics"
	"github.com/target/mediabroker/internal/observability/statsd"
)

// Sweep triggers, used as a metric tag.
const (
	TriggerStartup  = "startup"
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// SweeperServiceOptions groups dependencies for SweeperService.
type SweeperServiceOptions struct {
	Registry     core.JobRegistry     // Required: job registry
	Config       config.SweeperConfig // Required: schedule and age thresholds
	Logger       *slog.Logger         // Optional: structured logger
	Metrics      statsd.Sink          // Optional: metrics sink (StatsD-compatible)
	TimeProvider data.TimeProvider    // Optional: clock used to age jobs
}

// SweepResult counts the jobs one sweep removed.
type SweepResult struct {
	Failed int `json:"failed"`
	Aged   int `json:"aged"`
}

// Total returns the number of removed jobs.
func (r SweepResult) Total() int {
	return r.Failed + r.Aged
}

// SweeperService expires jobs nobody will fetch.
//
// Each sweep runs two steps:
// - failed jobs older than FailedMaxAge are removed;
// - any job older than MaxAge is removed, which covers unclaimed completed
// jobs and jobs stuck in queued or processing.
type SweeperService struct {
	registry     core.JobRegistry
	config       config.SweeperConfig
	schedule     cron.Schedule
	logger       *slog.Logger
	metrics      statsd.Sink
	timeProvider data.TimeProvider
}

// NewSweeperService constructs a SweeperService, rejecting an unparsable schedule.
func NewSweeperService(opts SweeperServiceOptions) (*SweeperService, error) {
	if opts.Registry == nil {
		return nil, errors.New("JobRegistry is required")
	}
	schedule, err := cron.ParseStandard(opts.Config.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parse sweeper schedule %q: %w", opts.Config.Schedule, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}

	logger = logger.With("component", "sweeper_service")
	logger.Debug("SweeperService initialized",
		"schedule", opts.Config.Schedule,
		"max_age", opts.Config.MaxAge,
		"failed_max_age", opts.Config.FailedMaxAge,
	)

	return &SweeperService{
		registry:     opts.Registry,
		config:       opts.Config,
		schedule:     schedule,
		logger:       logger,
		metrics:      opts.Metrics,
		timeProvider: tp,
	}, nil
}

// Run sweeps once at startup and then on every schedule tick until ctx is
// cancelled. Overlapping ticks are skipped. Returns nil on graceful shutdown.
func (s *SweeperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting sweeper service", "schedule", s.config.Schedule)

	if _, err := s.RunOnce(ctx, TriggerStartup); err != nil {
		s.logger.WarnContext(ctx, "initial sweep failed", "error", err)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})))
	c.Schedule(s.schedule, cron.FuncJob(func() {
		if _, err := s.RunOnce(ctx, TriggerSchedule); err != nil {
			s.logger.WarnContext(ctx, "sweep failed", "error", err)
		}
	}))
	c.Start()

	<-ctx.Done()
	s.logger.InfoContext(ctx, "sweeper service stopping", "reason", ctx.Err())
	<-c.Stop().Done()

	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

// RunOnce performs one sweep. Removal errors are joined and returned; the
// counts still include records removed before an error.
func (s *SweeperService) RunOnce(ctx context.Context, trigger string) (SweepResult, error) {
	start := time.Now()
	now := s.timeProvider.Now()
	var (
		res  SweepResult
		errs []error
	)

	steps := []struct {
		label  string
		params model.ExpiryParams
		count  *int
	}{
		{
			label:  "remove failed jobs",
			params: model.ExpiryParams{States: []model.JobState{model.JobStateFailed}, MaxAge: s.config.FailedMaxAge, Now: now},
			count:  &res.Failed,
		},
		{
			label:  "remove aged jobs",
			params: model.ExpiryParams{MaxAge: s.config.MaxAge, Now: now},
			count:  &res.Aged,
		},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		n, err := s.removeExpired(ctx, step.params)
		*step.count = n
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.label, err))
		}
		if n > 0 {
			s.logger.InfoContext(ctx, step.label, "count", n, "max_age", step.params.MaxAge)
		}
	}

	err := errors.Join(errs...)
	metrics.EmitSweep(s.metrics, metrics.SweepMetric{
		Trigger:  trigger,
		Failed:   res.Failed,
		Aged:     res.Aged,
		Duration: time.Since(start),
		Err:      err,
	})
	metrics.EmitRegistryGauges(s.metrics, s.registry.Stats(ctx))
	return res, err
}

// removeExpired removes every selected job. A job removed concurrently by a
// fetch is skipped without error.
func (s *SweeperService) removeExpired(ctx context.Context, params model.ExpiryParams) (int, error) {
	var (
		count int
		errs  []error
	)
	for _, id := range s.registry.ListExpired(ctx, params) {
		removed, err := s.registry.Remove(ctx, id)
		if removed {
			count++
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return count, errors.Join(errs...)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
