package service

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/mediabroker/internal/adapters/extractor"
	"github.com/target/mediabroker/internal/adapters/jobrunner"
	"github.com/target/mediabroker/internal/data"
	"github.com/target/mediabroker/internal/domain/model"
	apperrors "github.com/target/mediabroker/internal/errors"
	"github.com/target/mediabroker/internal/mocks"
)

const anyHostURL = "https://valid.example/watch?id=abc"

// newLifecycleService wires the real runner and registry around a mocked extractor.
func newLifecycleService(t *testing.T, allowed []string) (*JobService, *mocks.MockExtractor) {
	t.Helper()
	reg, err := data.NewJobRegistry(data.RegistryConfig{Root: t.TempDir()})
	require.NoError(t, err)

	ext := mocks.NewMockExtractor(gomock.NewController(t))
	runner, err := jobrunner.NewRunner(jobrunner.RunnerOptions{Registry: reg, Extractor: ext, Concurrency: 2})
	require.NoError(t, err)
	t.Cleanup(func() {
		runner.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = runner.Wait(ctx)
	})

	svc, err := NewJobService(JobServiceOptions{
		Registry:  reg,
		Runner:    runner,
		Validator: extractor.NewURLValidator(allowed),
	})
	require.NoError(t, err)
	return svc, ext
}

func waitTerminal(t *testing.T, svc *JobService, id string) *model.JobStatus {
	t.Helper()
	var st *model.JobStatus
	require.Eventually(t, func() bool {
		got, err := svc.Status(context.Background(), id)
		if err != nil {
			return false
		}
		st = got
		return st.State.Terminal()
	}, 5*time.Second, 5*time.Millisecond)
	return st
}

func writeResult(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLifecycle_AudioFetchedOnceThenUnknown(t *testing.T) {
	svc, ext := newLifecycleService(t, nil)
	ext.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req model.ExtractRequest) (*model.ExtractResult, error) {
			assert.Equal(t, anyHostURL, req.URL)
			writeResult(t, req.WorkDir, "song.m4a", "audio-bytes")
			return &model.ExtractResult{OutputFiles: []string{"song.m4a"}, Attempts: 1}, nil
		})

	job, err := svc.Submit(context.Background(), model.SubmitJobRequest{URL: anyHostURL, Mode: "audio"})
	require.NoError(t, err)

	st := waitTerminal(t, svc, job.ID)
	require.Equal(t, model.JobStateCompleted, st.State)
	require.NotEmpty(t, st.DownloadLink)

	dl, err := svc.Open(context.Background(), job.ID)
	require.NoError(t, err)
	body, err := io.ReadAll(dl.File)
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(body))
	dl.Delivered()
	dl.Close()

	_, err = svc.Status(context.Background(), job.ID)
	assert.Equal(t, model.CategoryUnknownJob, apperrors.GetCategory(err))
}

func TestLifecycle_SignInFailure(t *testing.T) {
	svc, ext := newLifecycleService(t, nil)
	ext.EXPECT().Run(gomock.Any(), gomock.Any()).Return(&model.ExtractResult{
		ExitCode: 1,
		Stderr:   "ERROR: [youtube] abc: Sign in to confirm you're not a bot",
		Attempts: 1,
	}, nil)

	job, err := svc.Submit(context.Background(), model.SubmitJobRequest{URL: anyHostURL, Mode: "audio"})
	require.NoError(t, err)

	st := waitTerminal(t, svc, job.ID)
	assert.Equal(t, model.JobStateFailed, st.State)
	assert.Equal(t, model.CategoryAuthRequired, st.ErrorCategory)
}

func TestLifecycle_DefaultAllowlistRejectsOtherHosts(t *testing.T) {
	svc, _ := newLifecycleService(t, []string{"youtube.com", "youtu.be", "youtube-nocookie.com"})

	_, err := svc.Submit(context.Background(), model.SubmitJobRequest{URL: anyHostURL, Mode: "audio"})
	require.Error(t, err)
	assert.Equal(t, model.CategoryInvalidURL, apperrors.GetCategory(err))
}
