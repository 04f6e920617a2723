package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/target/mediabroker/internal/core"
	"github.com/target/mediabroker/internal/domain/model"
	apperrors "github.com/target/mediabroker/internal/errors"
)

const jobDirPerm = 0o700

var _ core.JobRegistry = (*JobRegistry)(nil)

// RegistryConfig holds configuration options for the job registry.
type RegistryConfig struct {
	// Root is the directory under which each job gets its own subdirectory.
	Root         string
	Logger       *slog.Logger
	TimeProvider TimeProvider
	// NewID overrides id generation (tests).
	NewID func() string
}

// JobRegistry is the in-memory job table. All access goes through its methods;
// directory I/O is done outside the lock.
type JobRegistry struct {
	root         string
	timeProvider TimeProvider
	logger       *slog.Logger
	newID        func() string

	mu   sync.Mutex
	jobs map[string]*model.Job
}

// NewJobRegistry creates a registry rooted at cfg.Root.
func NewJobRegistry(cfg RegistryConfig) (*JobRegistry, error) {
	if cfg.Root == "" {
		return nil, errors.New("registry root directory is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve registry root: %w", err)
	}

	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &JobRegistry{
		root:         root,
		timeProvider: tp,
		logger:       logger.With("component", "job_registry"),
		newID:        newID,
		jobs:         make(map[string]*model.Job),
	}, nil
}

// Root returns the absolute directory that holds job directories.
func (r *JobRegistry) Root() string {
	return r.root
}

// Create allocates an id, creates the job directory and inserts a queued record.
// When the directory cannot be created nothing is inserted.
func (r *JobRegistry) Create(_ context.Context, params model.CreateJobParams) (*model.Job, error) {
	if !params.Mode.Valid() {
		return nil, apperrors.ValidationField(model.CategoryInvalidMode, "mode", model.CategoryInvalidMode.UserMessage())
	}
	if params.SourceURL == "" {
		return nil, apperrors.ValidationField(model.CategoryMissingParameter, "url", "url is required")
	}

	if err := os.MkdirAll(r.root, jobDirPerm); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "create work root")
	}

	id := r.newID()
	dir := filepath.Join(r.root, id)
	if err := os.Mkdir(dir, jobDirPerm); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "create job directory for %s", id)
	}

	job := &model.Job{
		ID:            id,
		State:         model.JobStateQueued,
		Mode:          params.Mode,
		Quality:       params.Quality,
		SourceURL:     params.SourceURL,
		WorkDir:       dir,
		StatusMessage: "Queued",
		CreatedAt:     r.timeProvider.Now(),
	}

	r.mu.Lock()
	if _, exists := r.jobs[id]; exists {
		r.mu.Unlock()
		_ = os.RemoveAll(dir)
		return nil, apperrors.Conflictf("duplicate job id %s", id)
	}
	r.jobs[id] = job
	out := job.Clone()
	r.mu.Unlock()

	return out, nil
}

// Transition applies one forward state change to the job.
func (r *JobRegistry) Transition(_ context.Context, id string, t model.Transition) (*model.Job, error) {
	if err := t.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "invalid transition")
	}
	if t.To == model.JobStateCompleted && filepath.Base(t.ResultFilename) != t.ResultFilename {
		return nil, apperrors.Internal("result filename must be a base name")
	}

	now := r.timeProvider.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, apperrors.UnknownJob(id)
	}
	if !job.State.CanTransition(t.To) {
		return nil, apperrors.Conflictf("job %s cannot move from %s to %s", id, job.State, t.To)
	}

	job.State = t.To
	job.StatusMessage = t.Message
	if job.StatusMessage == "" {
		job.StatusMessage = defaultStatusMessage(t.To)
	}
	if t.UsingCredentials != nil {
		job.UsingCredentials = *t.UsingCredentials
	}
	if t.Title != "" {
		job.Title = t.Title
	}

	switch t.To {
	case model.JobStateProcessing:
		job.StartedAt = &now
	case model.JobStateCompleted:
		job.ResultFilename = t.ResultFilename
		job.ResultSize = t.ResultSize
		job.FinishedAt = &now
	case model.JobStateFailed:
		job.ErrorCategory = t.ErrorCategory
		job.ErrorDetail = t.ErrorDetail
		job.FinishedAt = &now
	}

	return job.Clone(), nil
}

// Get returns a copy of the job.
func (r *JobRegistry) Get(_ context.Context, id string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, apperrors.UnknownJob(id)
	}
	return job.Clone(), nil
}

// Remove deletes the record, then its directory. It is idempotent: a missing id
// returns false and no error. A directory removal error is returned for logging;
// the record is gone either way.
func (r *JobRegistry) Remove(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if ok {
		delete(r.jobs, id)
	}
	r.mu.Unlock()

	if !ok {
		return false, nil
	}

	if err := os.RemoveAll(job.WorkDir); err != nil {
		return true, fmt.Errorf("remove job directory %s: %w", job.WorkDir, err)
	}
	r.logger.Debug("job removed", "job_id", id, "state", job.State)
	return true, nil
}

// Snapshot returns copies of all jobs, newest first.
func (r *JobRegistry) Snapshot(_ context.Context) []*model.Job {
	r.mu.Lock()
	out := make([]*model.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.Clone())
	}
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b *model.Job) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// ListExpired returns ids of jobs selected by params. A zero params.Now uses the
// registry clock.
func (r *JobRegistry) ListExpired(_ context.Context, params model.ExpiryParams) []string {
	if params.Now.IsZero() {
		params.Now = r.timeProvider.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for id, job := range r.jobs {
		if params.Matches(job) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Stats returns the number of jobs per state.
func (r *JobRegistry) Stats(_ context.Context) model.JobStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stats model.JobStats
	for _, job := range r.jobs {
		stats.Add(job.State)
	}
	return stats
}

func defaultStatusMessage(s model.JobState) string {
	switch s {
	case model.JobStateProcessing:
		return "Downloading"
	case model.JobStateCompleted:
		return "Download complete"
	case model.JobStateFailed:
		return "Download failed"
	default:
		return "Queued"
	}
}
