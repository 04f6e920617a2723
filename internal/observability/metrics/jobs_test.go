package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mediabroker/internal/domain/model"
	"github.com/target/mediabroker/internal/observability/statsd"
)

func TestEmitJobLifecycle(t *testing.T) {
	rec := &statsd.Recorder{}
	EmitJobLifecycle(rec, JobMetric{
		Mode:       model.ModeAudio,
		Transition: "failed",
		Result:     ResultError,
		Category:   model.CategoryAuthRequired,
		Attempts:   2,
		Duration:   time.Second,
	})

	counts := rec.Named("job.transition")
	require.Len(t, counts, 1)
	assert.Equal(t, map[string]string{
		"mode":       "audio",
		"transition": "failed",
		"result":     "error",
		"category":   "auth_required",
		"attempts":   "2",
	}, counts[0].Tags)
	assert.Len(t, rec.Named("job.duration"), 1)
}

func TestEmitJobLifecycleSkipsZeroDuration(t *testing.T) {
	rec := &statsd.Recorder{}
	EmitJobLifecycle(rec, JobMetric{Mode: model.ModeVideo, Transition: "queued", Result: ResultSuccess})
	assert.Len(t, rec.Named("job.transition"), 1)
	assert.Empty(t, rec.Named("job.duration"))
	assert.NotContains(t, rec.Named("job.transition")[0].Tags, "category")

	assert.NotPanics(t, func() { EmitJobLifecycle(nil, JobMetric{}) })
}

func TestEmitSweepResult(t *testing.T) {
	tests := []struct {
		name string
		in   SweepMetric
		want string
	}{
		{name: "removed", in: SweepMetric{Trigger: "schedule", Aged: 1}, want: ResultSuccess},
		{name: "nothing", in: SweepMetric{Trigger: "schedule"}, want: ResultNoop},
		{name: "error", in: SweepMetric{Trigger: "manual", Failed: 2, Err: errors.New("x")}, want: ResultError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &statsd.Recorder{}
			EmitSweep(rec, tt.in)
			runs := rec.Named("sweeper.run")
			require.Len(t, runs, 1)
			assert.Equal(t, tt.want, runs[0].Tags["result"])
			assert.Len(t, rec.Named("sweeper.removed"), 2)
		})
	}
}

func TestEmitRegistryGauges(t *testing.T) {
	rec := &statsd.Recorder{}
	EmitRegistryGauges(rec, model.JobStats{Queued: 1, Failed: 3, Total: 4})

	got := map[string]float64{}
	for _, s := range rec.Named("jobs.current") {
		got[s.Tags["state"]] = s.Value
	}
	assert.Equal(t, map[string]float64{"queued": 1, "processing": 0, "completed": 0, "failed": 3}, got)
}

func TestEmitHTTPRequest(t *testing.T) {
	rec := &statsd.Recorder{}
	EmitHTTPRequest(rec, "GET /status/{id}", 404, time.Millisecond)
	req := rec.Named("http.request")
	require.Len(t, req, 1)
	assert.Equal(t, "404", req[0].Tags["status"])
}
