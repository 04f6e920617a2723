// Package metrics maps broker events onto StatsD samples.
package metrics

import (
	"maps"
	"strconv"
	"time"

	"github.com/target/mediabroker/internal/domain/model"
	"github.com/target/mediabroker/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// JobMetric captures one job lifecycle event.
type JobMetric struct {
	Mode       model.Mode
	Transition string
	Result     string
	Category   model.ErrorCategory
	Attempts   int
	Duration   time.Duration
}

// EmitJobLifecycle emits job.transition and, when timed, job.duration.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"mode":       string(in.Mode),
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Category != "" {
		tags["category"] = string(in.Category)
	}
	if in.Attempts > 1 {
		tags["attempts"] = strconv.Itoa(in.Attempts)
	}

	sink.Count("job.transition", 1, tags)
	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, maps.Clone(tags))
	}
}

// SweepMetric summarises one expiry sweep.
type SweepMetric struct {
	Trigger  string
	Failed   int
	Aged     int
	Duration time.Duration
	Err      error
}

// EmitSweep records how many jobs a sweep removed.
func EmitSweep(sink statsd.Sink, in SweepMetric) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	switch {
	case in.Err != nil:
		result = ResultError
	case in.Failed+in.Aged == 0:
		result = ResultNoop
	}
	tags := map[string]string{"trigger": in.Trigger, "result": result}

	sink.Count("sweeper.run", 1, tags)
	sink.Count("sweeper.removed", int64(in.Failed), map[string]string{"trigger": in.Trigger, "reason": "failed"})
	sink.Count("sweeper.removed", int64(in.Aged), map[string]string{"trigger": in.Trigger, "reason": "max_age"})
	if in.Duration > 0 {
		sink.Timing("sweeper.duration", in.Duration, maps.Clone(tags))
	}
}

// EmitRegistryGauges publishes the current job count per state.
func EmitRegistryGauges(sink statsd.Sink, stats model.JobStats) {
	if sink == nil {
		return
	}
	for state, n := range map[model.JobState]int{
		model.JobStateQueued:     stats.Queued,
		model.JobStateProcessing: stats.Processing,
		model.JobStateCompleted:  stats.Completed,
		model.JobStateFailed:     stats.Failed,
	} {
		sink.Gauge("jobs.current", float64(n), map[string]string{"state": string(state)})
	}
}

// EmitHTTPRequest records one served request.
func EmitHTTPRequest(sink statsd.Sink, route string, status int, d time.Duration) {
	if sink == nil {
		return
	}
	tags := map[string]string{"route": route, "status": strconv.Itoa(status)}
	sink.Count("http.request", 1, tags)
	sink.Timing("http.duration", d, maps.Clone(tags))
}
