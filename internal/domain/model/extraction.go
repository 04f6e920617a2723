package model

import "time"

// ExtractRequest is one extractor invocation for a job.
type ExtractRequest struct {
	JobID   string
	URL     string
	Mode    Mode
	Quality Quality
	// WorkDir is the job-exclusive directory the extractor writes into.
	WorkDir string
}

// MediaMetadata is the subset of extractor metadata kept on a job.
type MediaMetadata struct {
	Title    string  `json:"title,omitempty"`
	Uploader string  `json:"uploader,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// ExtractResult is what the extractor left behind after it exited or was killed.
type ExtractResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	// OutputFiles are base names of finished files in the work directory.
	OutputFiles      []string
	TimedOut         bool
	UsingCredentials bool
	Metadata         MediaMetadata
	// Attempts is 2 when the alternate client profile was tried.
	Attempts int
	Duration time.Duration
}

// ExtractorProbe reports extractor availability for diagnostics.
type ExtractorProbe struct {
	Binary          string `json:"binary"`
	Available       bool   `json:"available"`
	Version         string `json:"version,omitempty"`
	Error           string `json:"error,omitempty"`
	FFmpegAvailable bool   `json:"ffmpeg_available"`
	CookiesFile     string `json:"cookies_file,omitempty"`
	CookiesPresent  bool   `json:"cookies_present"`
}

// Health statuses.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// HealthReport is the diagnostic view served by the health endpoint.
type HealthReport struct {
	Status          string         `json:"status"`
	Extractor       ExtractorProbe `json:"extractor"`
	WorkDir         string         `json:"work_dir"`
	WorkDirWritable bool           `json:"work_dir_writable"`
	WorkDirError    string         `json:"work_dir_error,omitempty"`
	MaxFilesize     string         `json:"max_filesize"`
	Concurrency     int            `json:"concurrency"`
	Jobs            JobStats       `json:"jobs"`
	Uptime          string         `json:"uptime"`
}
