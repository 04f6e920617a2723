package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/target/mediabroker/internal/core"
	"github.com/target/mediabroker/internal/data"
	"github.com/target/mediabroker/internal/domain/model"
)

// HealthServiceOptions groups dependencies for HealthService.
type HealthServiceOptions struct {
	Extractor    core.Extractor    // Required: probed for version and helpers
	Registry     core.JobRegistry  // Required: job counts
	Limits       HealthLimits      // Reported as-is
	TimeProvider data.TimeProvider // Optional: clock for uptime
}

// HealthLimits are configuration values echoed in the report.
type HealthLimits struct {
	WorkDir     string
	MaxFilesize uint64
	Concurrency int
}

// HealthService assembles the diagnostic probe.
type HealthService struct {
	extractor    core.Extractor
	registry     core.JobRegistry
	limits       HealthLimits
	timeProvider data.TimeProvider
	startedAt    time.Time
}

// NewHealthService constructs a HealthService; uptime counts from this call.
func NewHealthService(opts HealthServiceOptions) (*HealthService, error) {
	if opts.Extractor == nil {
		return nil, errors.New("Extractor is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("JobRegistry is required")
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}
	return &HealthService{
		extractor:    opts.Extractor,
		registry:     opts.Registry,
		limits:       opts.Limits,
		timeProvider: tp,
		startedAt:    tp.Now(),
	}, nil
}

// Report probes the extractor and the work directory. The status is degraded
// when either cannot be used.
func (s *HealthService) Report(ctx context.Context) model.HealthReport {
	r := model.HealthReport{
		Status:      model.HealthOK,
		Extractor:   s.extractor.Probe(ctx),
		WorkDir:     s.limits.WorkDir,
		MaxFilesize: humanize.Bytes(s.limits.MaxFilesize),
		Concurrency: s.limits.Concurrency,
		Jobs:        s.registry.Stats(ctx),
		Uptime:      strings.TrimSpace(humanize.RelTime(s.startedAt, s.timeProvider.Now(), "", "")),
	}
	if err := checkWritable(s.limits.WorkDir); err != nil {
		r.WorkDirError = err.Error()
	} else {
		r.WorkDirWritable = true
	}
	if !r.Extractor.Available || !r.WorkDirWritable {
		r.Status = model.HealthDegraded
	}
	return r
}

func checkWritable(dir string) error {
	if dir == "" {
		return errors.New("work directory not configured")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("write work directory: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
