package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const maxJobsConcurrency = 64

// JobsConfig contains job runner configuration.
type JobsConfig struct {
	// WorkDir is the root under which each job gets its own directory.
	// Defaults to $TMPDIR/mediabroker.
	WorkDir string `env:"JOBS_WORK_DIR"`

	// Concurrency bounds the number of extractor processes running at once.
	Concurrency int `env:"JOBS_CONCURRENCY" envDefault:"4"`
}

// Sanitize applies guardrails to job runner configuration values.
func (j *JobsConfig) Sanitize() {
	j.WorkDir = strings.TrimSpace(j.WorkDir)
	if j.WorkDir == "" {
		j.WorkDir = filepath.Join(os.TempDir(), "mediabroker")
	}
	j.WorkDir = filepath.Clean(j.WorkDir)

	if j.Concurrency < 1 {
		j.Concurrency = 1
	}
	if j.Concurrency > maxJobsConcurrency {
		j.Concurrency = maxJobsConcurrency
	}
}

// SweeperConfig contains expiry sweeper configuration.
type SweeperConfig struct {
	// Schedule is a cron expression or descriptor (e.g. "@every 30m").
	Schedule string `env:"SWEEPER_SCHEDULE" envDefault:"@every 30m"`

	// MaxAge bounds the lifetime of any job, including stuck and unclaimed ones.
	MaxAge time.Duration `env:"SWEEPER_MAX_AGE" envDefault:"1h"`

	// FailedMaxAge is the shorter lifetime for failed jobs.
	FailedMaxAge time.Duration `env:"SWEEPER_FAILED_MAX_AGE" envDefault:"5m"`
}

// Sanitize applies guardrails to sweeper configuration values.
func (s *SweeperConfig) Sanitize() {
	s.Schedule = strings.TrimSpace(s.Schedule)
	if s.Schedule == "" {
		s.Schedule = "@every 30m"
	}
	if s.MaxAge < time.Minute {
		s.MaxAge = time.Minute
	}
	if s.FailedMaxAge < time.Minute {
		s.FailedMaxAge = time.Minute
	}
	if s.FailedMaxAge > s.MaxAge {
		s.FailedMaxAge = s.MaxAge
	}
}
