package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/target/mediabroker/internal/core"
	"github.com/target/mediabroker/internal/data"
	"github.com/target/mediabroker/internal/domain/model"
	apperrors "github.com/target/mediabroker/internal/errors"
	"github.com/target/mediabroker/internal/util"
)

const (
	summaryURLLimit = 60
	jobsPathPrefix  = "/api/jobs/"
	defaultQuality  = model.Quality720p
)

// StatusPath returns the poll URL path for a job.
func StatusPath(id string) string {
	return jobsPathPrefix + id
}

// FilePath returns the one-shot download URL path for a job.
func FilePath(id string) string {
	return jobsPathPrefix + id + "/file"
}

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Registry     core.JobRegistry  // Required: job registry
	Runner       core.JobRunner    // Required: job runner
	Validator    core.URLValidator // Required: source URL validator
	Logger       *slog.Logger      // Optional: structured logger
	TimeProvider data.TimeProvider // Optional: clock for list ages
}

// JobService is the facade HTTP handlers use to submit, poll, fetch and discard jobs.
type JobService struct {
	registry     core.JobRegistry
	runner       core.JobRunner
	validator    core.URLValidator
	logger       *slog.Logger
	timeProvider data.TimeProvider
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Registry == nil {
		return nil, errors.New("JobRegistry is required")
	}
	if opts.Runner == nil {
		return nil, errors.New("JobRunner is required")
	}
	if opts.Validator == nil {
		return nil, errors.New("URLValidator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}
	return &JobService{
		registry:     opts.Registry,
		runner:       opts.Runner,
		validator:    opts.Validator,
		logger:       logger.With("component", "job_service"),
		timeProvider: tp,
	}, nil
}

// Submit validates the request and hands it to the runner. Mode defaults to
// video and quality to 720p.
func (s *JobService) Submit(ctx context.Context, req model.SubmitJobRequest) (*model.Job, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, apperrors.ValidationField(model.CategoryMissingParameter, "url", "url is required")
	}

	mode := model.ModeVideo
	if strings.TrimSpace(req.Mode) != "" {
		if err := mode.UnmarshalText([]byte(req.Mode)); err != nil {
			return nil, apperrors.ValidationField(model.CategoryInvalidMode, "mode", model.CategoryInvalidMode.UserMessage())
		}
	}

	var quality model.Quality
	if err := quality.UnmarshalText([]byte(req.Quality)); err != nil {
		return nil, apperrors.ValidationField(model.CategoryInvalidMode, "quality", "quality must be one of best, 720p, 480p, fast")
	}
	if quality == "" {
		quality = defaultQuality
	}

	source, err := s.validator.Validate(req.URL)
	if err != nil {
		return nil, err
	}

	return s.runner.Submit(ctx, model.CreateJobParams{Mode: mode, Quality: quality, SourceURL: source})
}

// Status returns the poll view of a job.
func (s *JobService) Status(ctx context.Context, id string) (*model.JobStatus, error) {
	job, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	st := &model.JobStatus{
		ID:            job.ID,
		State:         job.State,
		Mode:          job.Mode,
		Message:       job.StatusMessage,
		ErrorCategory: job.ErrorCategory,
		ErrorDetail:   job.ErrorDetail,
		Title:         job.Title,
	}
	if job.State == model.JobStateCompleted {
		st.DownloadLink = FilePath(job.ID)
		st.Filename = job.ResultFilename
	}
	return st, nil
}

// Download is an opened result file. Close releases the file; the job is
// discarded only when Delivered was called first. Close is safe to call more
// than once.
type Download struct {
	File     *os.File
	Info     os.FileInfo
	Filename string

	delivered bool
	release   func(discard bool)
}

// Delivered marks the whole file as sent, so Close discards the job.
func (d *Download) Delivered() {
	if d != nil {
		d.delivered = true
	}
}

// Close closes the file and, once delivered, removes the job together with
// its directory.
func (d *Download) Close() {
	if d == nil || d.release == nil {
		return
	}
	d.release(d.delivered)
	d.release = nil
}

// Open returns the completed job's file. Unknown jobs yield unknown_job and
// jobs that are not completed yield job_not_completed. The caller must Close
// the Download once the response is written, after calling Delivered if the
// client received the complete file.
func (s *JobService) Open(ctx context.Context, id string) (*Download, error) {
	job, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.State != model.JobStateCompleted {
		return nil, apperrors.NotCompleted(id, job.State)
	}

	f, err := os.Open(filepath.Join(job.WorkDir, job.ResultFilename))
	if err != nil {
		s.discard(ctx, id, "result file missing")
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "open result for job %s", id)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		s.discard(ctx, id, "result file unreadable")
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "stat result for job %s", id)
	}

	return &Download{
		File:     f,
		Info:     info,
		Filename: job.ResultFilename,
		release: func(discard bool) {
			if cerr := f.Close(); cerr != nil {
				s.logger.WarnContext(ctx, "close result file", "job_id", id, "error", cerr)
			}
			if discard {
				s.discard(ctx, id, "fetched")
			}
		},
	}, nil
}

// Remove discards a job in any state. Unknown ids yield unknown_job.
func (s *JobService) Remove(ctx context.Context, id string) error {
	removed, err := s.registry.Remove(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "remove job directory", "job_id", id, "error", err)
	}
	if !removed {
		return apperrors.UnknownJob(id)
	}
	s.logger.InfoContext(ctx, "job discarded", "job_id", id)
	return nil
}

// List returns summaries newest first together with per-state counts.
func (s *JobService) List(ctx context.Context) ([]model.JobSummary, model.JobStats) {
	jobs := s.registry.Snapshot(ctx)
	now := s.timeProvider.Now()

	out := make([]model.JobSummary, 0, len(jobs))
	var stats model.JobStats
	for _, j := range jobs {
		stats.Add(j.State)
		sum := model.JobSummary{
			ID:        j.ID,
			State:     j.State,
			Mode:      j.Mode,
			Age:       util.FormatAge(j.CreatedAt, now),
			URL:       util.Truncate(j.SourceURL, summaryURLLimit),
			CreatedAt: j.CreatedAt,
		}
		if j.State == model.JobStateCompleted {
			sum.Size = util.FormatSize(j.ResultSize)
		}
		out = append(out, sum)
	}
	return out, stats
}

// Stats returns per-state job counts.
func (s *JobService) Stats(ctx context.Context) model.JobStats {
	return s.registry.Stats(ctx)
}

// discard removes a job whose lifecycle has ended. A job already removed by
// the sweeper or a concurrent fetch is not an error.
func (s *JobService) discard(ctx context.Context, id, reason string) {
	removed, err := s.registry.Remove(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "remove job directory", "job_id", id, "reason", reason, "error", err)
	}
	if removed {
		s.logger.InfoContext(ctx, "job removed", "job_id", id, "reason", reason)
	}
}
