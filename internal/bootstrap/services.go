package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/mediabroker/config"
	"github.com/target/mediabroker/internal/adapters/extractor"
	"github.com/target/mediabroker/internal/adapters/jobrunner"
	"github.com/target/mediabroker/internal/data"
	"github.com/target/mediabroker/internal/observability/statsd"
	"github.com/target/mediabroker/internal/service"
)

const (
	// runnerDrainTimeout bounds how long in-flight jobs may finish on their own.
	runnerDrainTimeout = 30 * time.Second
	// runnerStopTimeout bounds the wait after running extractions are cancelled.
	runnerStopTimeout = 5 * time.Second
)

// ServiceDeps contains dependencies for building services.
type ServiceDeps struct {
	Config *config.AppConfig
	Logger *slog.Logger
}

// ServiceContainer holds the wired application services.
type ServiceContainer struct {
	Registry  *data.JobRegistry
	Extractor *extractor.Extractor
	Runner    *jobrunner.Runner
	Jobs      *service.JobService
	Sweeper   *service.SweeperService
	Health    *service.HealthService
	Metrics   *statsd.Client
}

// Close releases the metrics socket.
func (s *ServiceContainer) Close() error {
	if s == nil || s.Metrics == nil {
		return nil
	}
	return s.Metrics.Close()
}

// NewServices builds every service from configuration.
func NewServices(deps *ServiceDeps) (*ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return nil, errors.New("service config is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := buildMetrics(logger, cfg.Observability)
	if err != nil {
		return nil, err
	}

	registry, err := data.NewJobRegistry(data.RegistryConfig{
		Root:   cfg.Jobs.WorkDir,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create job registry: %w", err)
	}

	ext, err := NewExtractor(cfg, logger)
	if err != nil {
		return nil, err
	}

	runner, err := jobrunner.NewRunner(jobrunner.RunnerOptions{
		Registry:                registry,
		Extractor:               ext,
		Logger:                  logger,
		Metrics:                 metrics,
		Concurrency:             cfg.Jobs.Concurrency,
		IgnoreCookieWriteErrors: cfg.Extractor.IgnoreCookieWriteErrors,
	})
	if err != nil {
		return nil, fmt.Errorf("create job runner: %w", err)
	}

	jobs, err := service.NewJobService(service.JobServiceOptions{
		Registry:  registry,
		Runner:    runner,
		Validator: extractor.NewURLValidator(cfg.Extractor.AllowedDomains),
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create job service: %w", err)
	}

	sweeper, err := service.NewSweeperService(service.SweeperServiceOptions{
		Registry: registry,
		Config:   cfg.Sweeper,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create sweeper service: %w", err)
	}

	health, err := service.NewHealthService(service.HealthServiceOptions{
		Extractor: ext,
		Registry:  registry,
		Limits: service.HealthLimits{
			WorkDir:     registry.Root(),
			MaxFilesize: cfg.Extractor.MaxFilesizeBytes(),
			Concurrency: runner.Concurrency(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create health service: %w", err)
	}

	return &ServiceContainer{
		Registry:  registry,
		Extractor: ext,
		Runner:    runner,
		Jobs:      jobs,
		Sweeper:   sweeper,
		Health:    health,
		Metrics:   metrics,
	}, nil
}

// NewExtractor builds the subprocess extractor from configuration.
func NewExtractor(cfg *config.AppConfig, logger *slog.Logger) (*extractor.Extractor, error) {
	ext, err := extractor.New(extractor.Options{
		Binary:       cfg.Extractor.Binary,
		FFmpegBinary: cfg.Extractor.FFmpegBinary,
		CookiesFile:  cfg.Extractor.CookiesFile,
		Standard: extractor.Profile{
			Timeout:     cfg.Extractor.Timeout,
			MaxFilesize: cfg.Extractor.MaxFilesize,
			MaxHeight:   cfg.Extractor.MaxHeight,
		},
		Fast: extractor.Profile{
			Timeout:     cfg.Extractor.FastTimeout,
			MaxFilesize: cfg.Extractor.FastMaxFilesize,
			MaxHeight:   cfg.Extractor.FastMaxHeight,
		},
		Fallback: cfg.Extractor.Fallback,
		Debug:    cfg.Debug,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create extractor: %w", err)
	}
	return ext, nil
}

func buildMetrics(logger *slog.Logger, cfg config.ObservabilityConfig) (*statsd.Client, error) {
	client, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Metrics.IsEnabled(),
		Address: cfg.Metrics.StatsdAddress,
		Prefix:  cfg.Metrics.Prefix,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create statsd client: %w", err)
	}
	if client.Enabled() {
		logger.Info("statsd metrics enabled", "address", cfg.Metrics.StatsdAddress, "prefix", cfg.Metrics.Prefix)
	}
	return client, nil
}

// ServiceOrchestrationConfig contains everything needed to run the services.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
	// Ready, when non-nil, receives the HTTP listen address once bound.
	Ready chan<- net.Addr
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// It blocks until ctx is cancelled, SIGINT/SIGTERM arrives or a service fails.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil || cfg.Services == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if enabled[config.ServiceModeHTTP] {
		server := NewHTTPServer(&HTTPServerConfig{
			Config:   cfg.Config,
			Services: cfg.Services,
			Logger:   logger,
		})
		g.Go(func() error {
			if err := ServeHTTP(server, logger, cfg.Ready); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return ShutdownHTTPServer(ShutdownConfig{
				Context: context.WithoutCancel(gctx),
				Server:  server,
				Logger:  logger,
			})
		})
	}

	if enabled[config.ServiceModeSweeper] {
		g.Go(func() error {
			logger.Info("background service started", "service", "sweeper")
			if err := cfg.Services.Sweeper.Run(gctx); err != nil {
				return fmt.Errorf("sweeper: %w", err)
			}
			logger.Info("sweeper stopped")
			return nil
		})
	}

	runErr := g.Wait()
	if runErr != nil {
		logger.Error("service error", "error", runErr)
	} else {
		logger.Info("shutting down services...")
	}

	drainRunner(cfg.Services, logger)
	return runErr
}

// drainRunner lets in-flight jobs finish, then cancels the rest and removes
// every remaining job directory. Records only live in memory, so nothing
// left on disk could be served after exit.
func drainRunner(s *ServiceContainer, logger *slog.Logger) {
	if s == nil || s.Runner == nil {
		return
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), runnerDrainTimeout)
	err := s.Runner.Wait(drainCtx)
	cancel()
	s.Runner.Stop()
	if err != nil {
		logger.Warn("timeout waiting for jobs to finish, cancelling", "error", err)
		stopCtx, cancel := context.WithTimeout(context.Background(), runnerStopTimeout)
		defer cancel()
		if err := s.Runner.Wait(stopCtx); err != nil {
			logger.Warn("timeout waiting for cancelled jobs", "error", err)
		}
	}

	if s.Registry == nil {
		return
	}
	ctx := context.Background()
	for _, job := range s.Registry.Snapshot(ctx) {
		if _, err := s.Registry.Remove(ctx, job.ID); err != nil {
			logger.Warn("remove job on shutdown failed", "job_id", job.ID, "error", err)
		}
	}
}
