package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/mediabroker/config"
	"github.com/target/mediabroker/internal/data"
	"github.com/target/mediabroker/internal/domain/model"
	apperrors "github.com/target/mediabroker/internal/errors"
	"github.com/target/mediabroker/internal/mocks"
	"github.com/target/mediabroker/internal/observability/statsd"
)

func sweeperConfig() config.SweeperConfig {
	return config.SweeperConfig{Schedule: "@every 30m", MaxAge: time.Hour, FailedMaxAge: 5 * time.Minute}
}

type sweeperFixture struct {
	svc     *SweeperService
	reg     *data.JobRegistry
	clock   *data.FixedTimeProvider
	metrics *statsd.Recorder
}

func newSweeperFixture(t *testing.T) *sweeperFixture {
	t.Helper()
	clock := data.NewFixedTimeProvider(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	reg, err := data.NewJobRegistry(data.RegistryConfig{Root: t.TempDir(), TimeProvider: clock})
	require.NoError(t, err)
	rec := &statsd.Recorder{}
	svc, err := NewSweeperService(SweeperServiceOptions{
		Registry:     reg,
		Config:       sweeperConfig(),
		Metrics:      rec,
		TimeProvider: clock,
	})
	require.NoError(t, err)
	return &sweeperFixture{svc: svc, reg: reg, clock: clock, metrics: rec}
}

func (f *sweeperFixture) create(t *testing.T) *model.Job {
	t.Helper()
	job, err := f.reg.Create(context.Background(), model.CreateJobParams{
		Mode:      model.ModeVideo,
		SourceURL: "https://youtu.be/x",
	})
	require.NoError(t, err)
	return job
}

func (f *sweeperFixture) fail(t *testing.T, job *model.Job) {
	t.Helper()
	_, err := f.reg.Transition(context.Background(), job.ID, model.Transition{
		To:            model.JobStateFailed,
		ErrorCategory: model.CategoryUnknown,
	})
	require.NoError(t, err)
}

func (f *sweeperFixture) exists(id string) bool {
	_, err := f.reg.Get(context.Background(), id)
	return err == nil
}

func TestNewSweeperService_Validation(t *testing.T) {
	_, err := NewSweeperService(SweeperServiceOptions{})
	require.Error(t, err)

	reg, err := data.NewJobRegistry(data.RegistryConfig{Root: t.TempDir()})
	require.NoError(t, err)
	cfg := sweeperConfig()
	cfg.Schedule = "every thirty minutes"
	_, err = NewSweeperService(SweeperServiceOptions{Registry: reg, Config: cfg})
	require.Error(t, err)
}

func TestSweeper_RunOnceSteps(t *testing.T) {
	f := newSweeperFixture(t)

	oldFailed := f.create(t)
	f.fail(t, oldFailed)
	stuck := f.create(t)

	f.clock.AddTime(50 * time.Minute)
	freshFailed := f.create(t)
	f.fail(t, freshFailed)
	fresh := f.create(t)

	f.clock.AddTime(11 * time.Minute)

	res, err := f.svc.RunOnce(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Failed: 2, Aged: 1}, res)
	assert.Equal(t, 3, res.Total())

	assert.False(t, f.exists(oldFailed.ID))
	assert.False(t, f.exists(freshFailed.ID))
	assert.False(t, f.exists(stuck.ID))
	assert.True(t, f.exists(fresh.ID))
	assert.NoDirExists(t, stuck.WorkDir)

	runs := f.metrics.Named("sweeper.run")
	require.Len(t, runs, 1)
	assert.Equal(t, "success", runs[0].Tags["result"])
	assert.Len(t, f.metrics.Named("jobs.current"), 4)
}

func TestSweeper_KeepsYoungJobs(t *testing.T) {
	f := newSweeperFixture(t)
	job := f.create(t)
	f.fail(t, job)
	f.clock.AddTime(4 * time.Minute)

	res, err := f.svc.RunOnce(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.Zero(t, res.Total())
	assert.True(t, f.exists(job.ID))
	assert.Equal(t, "noop", f.metrics.Named("sweeper.run")[0].Tags["result"])
}

func TestSweeper_ConcurrentRemovalIsBenign(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := mocks.NewMockJobRegistry(ctrl)
	svc, err := NewSweeperService(SweeperServiceOptions{Registry: reg, Config: sweeperConfig()})
	require.NoError(t, err)

	reg.EXPECT().ListExpired(gomock.Any(), gomock.Any()).Return([]string{"gone", "bad"}).Times(1)
	reg.EXPECT().ListExpired(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	reg.EXPECT().Remove(gomock.Any(), "gone").Return(false, nil)
	reg.EXPECT().Remove(gomock.Any(), "bad").Return(true, errors.New("rm: busy"))
	reg.EXPECT().Stats(gomock.Any()).Return(model.JobStats{})

	res, err := svc.RunOnce(context.Background(), TriggerManual)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remove failed jobs")
	assert.Equal(t, 1, res.Failed)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	f := newSweeperFixture(t)
	job := f.create(t)
	f.fail(t, job)
	f.clock.AddTime(10 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.svc.Run(ctx) }()

	require.Eventually(t, func() bool { return !f.exists(job.ID) }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
	_, err := f.reg.Get(context.Background(), job.ID)
	assert.True(t, apperrors.IsNotFound(err))
}
