package core

import (
	"context"

	"github.com/target/mediabroker/internal/domain/model"
)

// This file contains the port definitions between the service layer and the
// adapters that do the actual work (in-memory registry, subprocess extractor).

// JobRegistry owns job records and their state machine.
// Implementations must be safe for concurrent use and never hand out
// references to records they own.
type JobRegistry interface {
	Create(ctx context.Context, params model.CreateJobParams) (*model.Job, error)
	Transition(ctx context.Context, id string, t model.Transition) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	// Remove deletes the record and its working directory. Removing an absent id
	// reports false with a nil error.
	Remove(ctx context.Context, id string) (bool, error)
	Snapshot(ctx context.Context) []*model.Job
	ListExpired(ctx context.Context, params model.ExpiryParams) []string
	Stats(ctx context.Context) model.JobStats
}

// Extractor runs the external media extractor for a single job.
type Extractor interface {
	// Run blocks until the extractor exits or its deadline passes. A non-nil
	// error means the process could not be started at all.
	Run(ctx context.Context, req model.ExtractRequest) (*model.ExtractResult, error)
	Probe(ctx context.Context) model.ExtractorProbe
}

// JobRunner accepts validated jobs and executes them asynchronously.
type JobRunner interface {
	Submit(ctx context.Context, params model.CreateJobParams) (*model.Job, error)
}

// URLValidator normalises and vets a submitted source URL.
type URLValidator interface {
	Validate(raw string) (string, error)
}
