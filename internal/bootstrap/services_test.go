package bootstrap

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mediabroker/config"
	"github.com/target/mediabroker/internal/domain/model"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := &config.AppConfig{
		Services: "http,sweeper",
		HTTP:     config.HTTPConfig{Addr: "127.0.0.1:0"},
		Extractor: config.ExtractorConfig{
			Binary: filepath.Join(t.TempDir(), "missing-yt-dlp"),
		},
		Jobs:    config.JobsConfig{WorkDir: filepath.Join(t.TempDir(), "jobs"), Concurrency: 2},
		Sweeper: config.SweeperConfig{Schedule: "@every 30m", MaxAge: time.Hour, FailedMaxAge: 5 * time.Minute},
	}
	cfg.Sanitize()
	require.NoError(t, cfg.Validate())
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestGetEnabledServices(t *testing.T) {
	tests := []struct {
		name     string
		services string
		want     []string
	}{
		{name: "http only", services: "http", want: []string{"http"}},
		{name: "both sorted", services: "sweeper, HTTP", want: []string{"http", "sweeper"}},
		{name: "invalid", services: "http,reaper", want: []string{}},
		{name: "empty", services: "", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetEnabledServices(&config.AppConfig{Services: tt.services})
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Empty(t, GetEnabledServices(nil))
}

func TestValidateServiceConfig(t *testing.T) {
	require.Error(t, ValidateServiceConfig(nil))
	require.Error(t, ValidateServiceConfig(&config.AppConfig{Services: " , "}))
	require.Error(t, ValidateServiceConfig(&config.AppConfig{Services: "worker"}))
	require.NoError(t, ValidateServiceConfig(&config.AppConfig{Services: "sweeper"}))
}

func TestInitLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := context.Background()
	assert.False(t, InitLogger(false).Enabled(ctx, slog.LevelDebug))
	logger := InitLogger(true)
	assert.True(t, logger.Enabled(ctx, slog.LevelDebug))
	assert.Same(t, logger, slog.Default())
}

func TestLoadConfig(t *testing.T) {
	t.Run("env and sanitize", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("SERVICES", "http")
		t.Setenv("JOBS_CONCURRENCY", "500")
		t.Setenv("EXTRACTOR_ALLOWED_DOMAINS", "Example.COM, ,youtu.be")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "http", cfg.Services)
		assert.Equal(t, 64, cfg.Jobs.Concurrency)
		assert.Equal(t, []string{"example.com", "youtu.be"}, cfg.Extractor.AllowedDomains)
	})

	t.Run("dotenv file", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("JOBS_CONCURRENCY=3\n"), 0o600))
		// Register cleanup for the variable godotenv will set, then clear it.
		t.Setenv("JOBS_CONCURRENCY", "")
		require.NoError(t, os.Unsetenv("JOBS_CONCURRENCY"))

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Jobs.Concurrency)
	})

	t.Run("timeout ladder rejected", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("EXTRACTOR_TIMEOUT", "20s")
		t.Setenv("EXTRACTOR_FAST_TIMEOUT", "30s")

		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EXTRACTOR_FAST_TIMEOUT")
	})

	t.Run("unparsable value", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("JOBS_CONCURRENCY", "many")

		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config")
	})
}

func TestNewServices(t *testing.T) {
	cfg := testConfig(t)

	svc, err := NewServices(&ServiceDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	assert.NotNil(t, svc.Jobs)
	assert.NotNil(t, svc.Sweeper)
	assert.NotNil(t, svc.Health)
	assert.False(t, svc.Metrics.Enabled())
	assert.Equal(t, 2, svc.Runner.Concurrency())
	assert.Equal(t, cfg.Jobs.WorkDir, svc.Registry.Root())

	_, err = NewServices(nil)
	require.Error(t, err)
}

func TestSubmitLimiter(t *testing.T) {
	assert.Nil(t, submitLimiter(config.HTTPConfig{SubmitRate: 0, SubmitBurst: 1}))

	lim := submitLimiter(config.HTTPConfig{SubmitRate: 2, SubmitBurst: 5})
	require.NotNil(t, lim)
	assert.Equal(t, 5, lim.Burst())
}

func TestRunServicesWithShutdown(t *testing.T) {
	cfg := testConfig(t)
	svc, err := NewServices(&ServiceDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan net.Addr, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- RunServicesWithShutdown(ctx, &ServiceOrchestrationConfig{
			Config:   cfg,
			Services: svc,
			Logger:   discardLogger(),
			Ready:    ready,
		})
	}()

	var addr net.Addr
	select {
	case addr = <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("http server did not start")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr.String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	client.CloseIdleConnections()

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("services did not stop")
	}
}

func TestRunServicesWithShutdown_ListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig(t)
	cfg.HTTP.Addr = ln.Addr().String()
	svc, err := NewServices(&ServiceDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	err = RunServicesWithShutdown(context.Background(), &ServiceOrchestrationConfig{
		Config:   cfg,
		Services: svc,
		Logger:   discardLogger(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http server")
}

func TestRunServicesWithShutdown_RequiresConfig(t *testing.T) {
	require.Error(t, RunServicesWithShutdown(context.Background(), nil))
	require.Error(t, RunServicesWithShutdown(context.Background(), &ServiceOrchestrationConfig{}))
}

func TestDrainRunnerRemovesLeftoverJobs(t *testing.T) {
	cfg := testConfig(t)
	svc, err := NewServices(&ServiceDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	ctx := context.Background()
	job, err := svc.Registry.Create(ctx, model.CreateJobParams{
		Mode:      model.ModeAudio,
		SourceURL: "https://youtu.be/abc",
	})
	require.NoError(t, err)
	require.DirExists(t, job.WorkDir)

	drainRunner(svc, discardLogger())

	assert.Empty(t, svc.Registry.Snapshot(ctx))
	assert.NoDirExists(t, job.WorkDir)
}

func TestShutdownHTTPServer_NilServer(t *testing.T) {
	require.NoError(t, ShutdownHTTPServer(ShutdownConfig{}))
	assert.Nil(t, NewHTTPServer(nil))
}
