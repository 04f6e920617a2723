// Package model defines the core data types shared by the mediabroker job system.
package model

import (
	"fmt"
	"strings"
	"time"
)

// JobState represents where a job is in its lifecycle.
type JobState string

// Mode selects the format policy and command template used for a job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type Mode string

// Quality selects a resolution/size profile within a mode.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type Quality string

const (
	// JobStateQueued indicates the job was accepted and is waiting for a worker slot.
	JobStateQueued JobState = "queued"
	// JobStateProcessing indicates the extractor is running for the job.
	JobStateProcessing JobState = "processing"
	// JobStateCompleted indicates the job produced a retrievable file.
	JobStateCompleted JobState = "completed"
	// JobStateFailed indicates the job ended without a retrievable file.
	JobStateFailed JobState = "failed"

	// ModeVideo downloads a muxed audio+video file.
	ModeVideo Mode = "video"
	// ModeAudio downloads an audio-only file.
	ModeAudio Mode = "audio"

	// QualityBest has no resolution bound, only the size bound.
	QualityBest Quality = "best"
	// Quality720p bounds video height to 720 pixels.
	Quality720p Quality = "720p"
	// Quality480p bounds video height to 480 pixels.
	Quality480p Quality = "480p"
	// QualityFast is the degraded fast-path profile with the shorter timeout.
	QualityFast Quality = "fast"
)

// Valid returns true if the JobState is one of the known states.
func (s JobState) Valid() bool {
	switch s {
	case JobStateQueued, JobStateProcessing, JobStateCompleted, JobStateFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// CanTransition reports whether moving from s to next is a forward transition.
// Queued may move to Processing or directly to Failed (e.g. the worker could not start).
func (s JobState) CanTransition(next JobState) bool {
	switch s {
	case JobStateQueued:
		return next == JobStateProcessing || next == JobStateFailed
	case JobStateProcessing:
		return next == JobStateCompleted || next == JobStateFailed
	default:
		return false
	}
}

// Valid returns true if the Mode is supported.
func (m Mode) Valid() bool {
	return m == ModeVideo || m == ModeAudio
}

// UnmarshalText implements encoding.TextUnmarshaler so modes can be parsed from forms and JSON.
func (m *Mode) UnmarshalText(text []byte) error {
	v := Mode(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid mode: %q", string(text))
	}
	*m = v
	return nil
}

// Valid returns true if the Quality is supported.
func (q Quality) Valid() bool {
	switch q {
	case QualityBest, Quality720p, Quality480p, QualityFast:
		return true
	}
	return false
}

// UnmarshalText implements encoding.TextUnmarshaler for Quality.
func (q *Quality) UnmarshalText(text []byte) error {
	v := Quality(strings.ToLower(strings.TrimSpace(string(text))))
	if v == "" {
		*q = ""
		return nil
	}
	if !v.Valid() {
		return fmt.Errorf("invalid quality: %q", string(text))
	}
	*q = v
	return nil
}

// Job is the in-memory record for one extraction request.
// ResultFilename is set iff State is completed; ErrorCategory is set iff State is failed.
type Job struct {
	ID               string        `json:"id"`
	State            JobState      `json:"state"`
	Mode             Mode          `json:"mode"`
	Quality          Quality       `json:"quality"`
	SourceURL        string        `json:"source_url"`
	WorkDir          string        `json:"-"`
	ResultFilename   string        `json:"result_filename,omitempty"`
	ResultSize       int64         `json:"result_size,omitempty"`
	Title            string        `json:"title,omitempty"`
	StatusMessage    string        `json:"status_message"`
	ErrorCategory    ErrorCategory `json:"error_category,omitempty"`
	ErrorDetail      string        `json:"error_detail,omitempty"`
	UsingCredentials bool          `json:"using_credentials"`
	CreatedAt        time.Time     `json:"created_at"`
	StartedAt        *time.Time    `json:"started_at,omitempty"`
	FinishedAt       *time.Time    `json:"finished_at,omitempty"`
}

// Clone returns a deep copy so callers can never mutate registry-owned records.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}

// Age returns how long ago the job was created relative to now.
func (j *Job) Age(now time.Time) time.Duration {
	if j == nil {
		return 0
	}
	return now.Sub(j.CreatedAt)
}

// Transition describes one forward state change and the fields it sets.
type Transition struct {
	To               JobState
	Message          string
	ResultFilename   string
	ResultSize       int64
	Title            string
	ErrorCategory    ErrorCategory
	ErrorDetail      string
	UsingCredentials *bool
}

// Validate checks the field invariants tied to the target state.
func (t Transition) Validate() error {
	switch t.To {
	case JobStateProcessing:
		if t.ResultFilename != "" || t.ErrorCategory != "" {
			return fmt.Errorf("processing transition cannot carry a result or error")
		}
	case JobStateCompleted:
		if t.ResultFilename == "" {
			return fmt.Errorf("completed transition requires a result filename")
		}
		if t.ErrorCategory != "" {
			return fmt.Errorf("completed transition cannot carry an error category")
		}
	case JobStateFailed:
		if !t.ErrorCategory.Valid() {
			return fmt.Errorf("failed transition requires a valid error category, got %q", t.ErrorCategory)
		}
		if t.ResultFilename != "" {
			return fmt.Errorf("failed transition cannot carry a result filename")
		}
	default:
		return fmt.Errorf("invalid target state %q", t.To)
	}
	return nil
}

// CreateJobParams holds the validated inputs used to allocate a job.
type CreateJobParams struct {
	Mode      Mode
	Quality   Quality
	SourceURL string
}

// ExpiryParams selects jobs for removal by state and age.
// An empty States slice matches every state.
type ExpiryParams struct {
	States []JobState
	MaxAge time.Duration
	Now    time.Time
}

// Matches reports whether j is selected by the expiry parameters.
func (p ExpiryParams) Matches(j *Job) bool {
	if j == nil || p.MaxAge <= 0 {
		return false
	}
	if j.Age(p.Now) <= p.MaxAge {
		return false
	}
	if len(p.States) == 0 {
		return true
	}
	for _, s := range p.States {
		if j.State == s {
			return true
		}
	}
	return false
}

// JobStats represents counts of jobs per state.
type JobStats struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// Add increments the counter for state.
func (s *JobStats) Add(state JobState) {
	switch state {
	case JobStateQueued:
		s.Queued++
	case JobStateProcessing:
		s.Processing++
	case JobStateCompleted:
		s.Completed++
	case JobStateFailed:
		s.Failed++
	}
	s.Total++
}

// JobStatus is the poll view of a job.
type JobStatus struct {
	ID            string        `json:"job_id"`
	State         JobState      `json:"state"`
	Mode          Mode          `json:"mode"`
	Message       string        `json:"message"`
	ErrorCategory ErrorCategory `json:"error_category,omitempty"`
	ErrorDetail   string        `json:"error_detail,omitempty"`
	DownloadLink  string        `json:"download_link,omitempty"`
	Filename      string        `json:"filename,omitempty"`
	Title         string        `json:"title,omitempty"`
}

// JobSummary is the diagnostic list view of a job.
type JobSummary struct {
	ID        string    `json:"id"`
	State     JobState  `json:"state"`
	Mode      Mode      `json:"type"`
	Age       string    `json:"age"`
	URL       string    `json:"url"`
	Size      string    `json:"size,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SubmitJobRequest is the inbound payload for creating a job.
// Fields stay raw strings so validation can report the precise error category.
type SubmitJobRequest struct {
	URL     string `json:"url"`
	Mode    string `json:"mode"`
	Quality string `json:"quality,omitempty"`
}
