// Package jobrunner executes accepted jobs in supervised, bounded goroutines.
package jobrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/target/mediabroker/internal/core"
	"github.com/target/mediabroker/internal/domain/model"
	"github.com/target/mediabroker/internal/domain/outcome"
	apperrors "github.com/target/mediabroker/internal/errors"
	"github.com/target/mediabroker/internal/observability/metrics"
	"github.com/target/mediabroker/internal/observability/statsd"
)

const (
	defaultConcurrency  = 1
	internalErrorDetail = "internal error"
)

// ErrStopped is returned by Submit once Stop has been called.
var ErrStopped = errors.New("job runner stopped")

var _ core.JobRunner = (*Runner)(nil)

// RunnerOptions configures the job runner adapter.
type RunnerOptions struct {
	Registry  core.JobRegistry
	Extractor core.Extractor
	Logger    *slog.Logger
	Metrics   statsd.Sink

	// Concurrency bounds how many extractor processes run at once; defaults to 1.
	Concurrency int
	// IgnoreCookieWriteErrors accepts a nonzero exit whose only errors are
	// failed writes to a read-only cookie file, provided a file was produced.
	IgnoreCookieWriteErrors bool
}

// Runner owns every goroutine it starts; Wait returns once all have finished.
type Runner struct {
	registry                core.JobRegistry
	extractor               core.Extractor
	logger                  *slog.Logger
	metrics                 statsd.Sink
	slots                   *semaphore.Weighted
	workers                 int
	ignoreCookieWriteErrors bool

	base   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewRunner validates options and constructs a runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if opts.Extractor == nil {
		return nil, errors.New("extractor is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = defaultConcurrency
	}

	base, cancel := context.WithCancel(context.Background())
	return &Runner{
		registry:                opts.Registry,
		extractor:               opts.Extractor,
		logger:                  logger.With("component", "job_runner"),
		metrics:                 opts.Metrics,
		slots:                   semaphore.NewWeighted(int64(workers)),
		workers:                 workers,
		ignoreCookieWriteErrors: opts.IgnoreCookieWriteErrors,
		base:                    base,
		cancel:                  cancel,
	}, nil
}

// Concurrency reports the configured slot count.
func (r *Runner) Concurrency() int {
	return r.workers
}

// Submit creates a queued job and schedules its execution. It returns as soon
// as the record exists; the request context only bounds the registry insert.
func (r *Runner) Submit(ctx context.Context, params model.CreateJobParams) (*model.Job, error) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil, ErrStopped
	}
	r.wg.Add(1)
	r.mu.Unlock()

	job, err := r.registry.Create(ctx, params)
	if err != nil {
		r.wg.Done()
		return nil, err
	}
	r.logger.InfoContext(ctx, "job queued", "job_id", job.ID, "mode", job.Mode, "quality", job.Quality)
	metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
		Mode:       job.Mode,
		Transition: string(model.JobStateQueued),
		Result:     metrics.ResultSuccess,
	})

	go r.supervise(job)
	return job, nil
}

// Stop cancels running extractions and rejects further submissions.
// Jobs still waiting for a slot are failed as timed out.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	r.cancel()
}

// Wait blocks until every submitted job has reached a terminal state or
// ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// supervise runs one job and guarantees it never stays non-terminal.
func (r *Runner) supervise(job *model.Job) {
	defer r.wg.Done()

	ctx := r.base
	start := time.Now()
	st := &jobState{job: job}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "job panicked",
				"job_id", job.ID, "panic", rec, "stack", string(debug.Stack()))
		}
		if !st.terminal {
			r.finish(ctx, st, outcome.Outcome{
				Category: model.CategoryUnknown,
				Detail:   internalErrorDetail,
			}, start)
		}
	}()

	if err := r.slots.Acquire(ctx, 1); err != nil {
		r.finish(ctx, st, outcome.Outcome{
			Category: model.CategoryTimedOut,
			Detail:   "server shutting down before the job started",
		}, start)
		return
	}
	defer r.slots.Release(1)

	r.process(ctx, st, start)
}

type jobState struct {
	job      *model.Job
	result   *model.ExtractResult
	terminal bool
}

func (r *Runner) process(ctx context.Context, st *jobState, start time.Time) {
	job := st.job
	if _, err := r.registry.Transition(ctx, job.ID, model.Transition{To: model.JobStateProcessing}); err != nil {
		// Removed while queued (sweeper or manual discard); nothing left to update.
		r.logger.WarnContext(ctx, "job vanished before processing", "job_id", job.ID, "error", err)
		st.terminal = true
		return
	}
	metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
		Mode:       job.Mode,
		Transition: string(model.JobStateProcessing),
		Result:     metrics.ResultSuccess,
		Duration:   time.Since(start),
	})

	res, err := r.extractor.Run(ctx, model.ExtractRequest{
		JobID:   job.ID,
		URL:     job.SourceURL,
		Mode:    job.Mode,
		Quality: job.Quality,
		WorkDir: job.WorkDir,
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "extractor failed to start", "job_id", job.ID, "error", err)
		r.finish(ctx, st, outcome.Outcome{Category: model.CategoryUnknown, Detail: outcome.Clip(err.Error())}, start)
		return
	}
	st.result = res

	out := outcome.Classify(outcome.Input{
		ExitCode:                res.ExitCode,
		Stderr:                  res.Stderr,
		OutputFiles:             res.OutputFiles,
		TimedOut:                res.TimedOut,
		IgnoreCookieWriteErrors: r.ignoreCookieWriteErrors,
	})
	if out.Benign {
		r.logger.WarnContext(ctx, "accepting nonzero exit with cookie write errors",
			"job_id", job.ID, "exit_code", res.ExitCode)
	}
	r.finish(ctx, st, out, start)
}

// finish records the terminal transition. A completed outcome whose file
// cannot be stat'ed is downgraded to failed.
func (r *Runner) finish(ctx context.Context, st *jobState, out outcome.Outcome, start time.Time) {
	job := st.job
	t := out.Transition()

	if st.result != nil {
		creds := st.result.UsingCredentials
		t.UsingCredentials = &creds
		t.Title = st.result.Metadata.Title
	}

	if out.Completed {
		info, err := os.Stat(filepath.Join(job.WorkDir, out.Filename))
		if err != nil || !info.Mode().IsRegular() {
			r.logger.ErrorContext(ctx, "result file missing", "job_id", job.ID, "file", out.Filename, "error", err)
			out = outcome.Outcome{Category: model.CategoryUnknown, Detail: internalErrorDetail}
			t = out.Transition()
		} else {
			t.ResultSize = info.Size()
		}
	}
	if !out.Completed && t.Message == "" {
		t.Message = out.Category.UserMessage()
	}

	_, err := r.registry.Transition(ctx, job.ID, t)
	st.terminal = true

	attempts := 0
	if st.result != nil {
		attempts = st.result.Attempts
	}
	m := metrics.JobMetric{
		Mode:       job.Mode,
		Transition: string(t.To),
		Result:     metrics.ResultSuccess,
		Attempts:   attempts,
		Duration:   time.Since(start),
	}

	switch {
	case err == nil:
	case apperrors.IsNotFound(err):
		// Removed while running: nothing can fetch or sweep this directory any more.
		r.logger.DebugContext(ctx, "job removed before terminal transition", "job_id", job.ID)
		if rmErr := clearDir(job.WorkDir); rmErr != nil {
			r.logger.WarnContext(ctx, "clear removed job directory", "job_id", job.ID, "error", rmErr)
		}
		m.Result = metrics.ResultNoop
		metrics.EmitJobLifecycle(r.metrics, m)
		return
	default:
		r.logger.ErrorContext(ctx, "terminal transition failed", "job_id", job.ID, "error", err)
	}

	if out.Completed {
		r.logger.InfoContext(ctx, "job completed",
			"job_id", job.ID, "mode", job.Mode, "file", out.Filename, "size", t.ResultSize, "attempts", attempts)
	} else {
		m.Result = metrics.ResultError
		m.Category = out.Category
		r.logger.WarnContext(ctx, "job failed",
			"job_id", job.ID, "mode", job.Mode, "category", out.Category, "detail", out.Detail)
		// Failed jobs have nothing to fetch; free the directory now and keep the record for polling.
		if rmErr := clearDir(job.WorkDir); rmErr != nil {
			r.logger.WarnContext(ctx, "clear failed job directory", "job_id", job.ID, "error", rmErr)
		}
	}
	metrics.EmitJobLifecycle(r.metrics, m)
}

// clearDir removes the directory contents and the directory itself.
func clearDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	return nil
}
