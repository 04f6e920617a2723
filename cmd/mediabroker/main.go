package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/target/mediabroker/config"
	"github.com/target/mediabroker/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger(debugRequested())
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

// debugRequested peeks at DEBUG before config is loaded so config errors
// are logged at the right level.
func debugRequested() bool {
	v, _ := strconv.ParseBool(os.Getenv("DEBUG"))
	return v
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.Debug {
		logger = bootstrap.InitLogger(true)
	}

	logStartupInfo(ctx, logger, &cfg)

	if err = bootstrap.ValidateServiceConfig(&cfg); err != nil {
		return err
	}

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config: &cfg,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := services.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close metrics client failed", "error", cerr)
		}
	}()

	probe := services.Extractor.Probe(ctx)
	if !probe.Available {
		logger.WarnContext(ctx, "extractor binary not usable, jobs will fail until it is installed",
			"binary", probe.Binary, "error", probe.Error)
	} else {
		logger.InfoContext(ctx, "extractor ready",
			"version", probe.Version,
			"ffmpeg", probe.FFmpegAvailable,
			"cookies", probe.CookiesPresent)
	}

	return bootstrap.RunServicesWithShutdown(ctx, &bootstrap.ServiceOrchestrationConfig{
		Config:   &cfg,
		Services: services,
		Logger:   logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting mediabroker service",
		"addr", cfg.HTTP.Addr,
		"work_dir", cfg.Jobs.WorkDir,
		"concurrency", cfg.Jobs.Concurrency,
		"allowed_domains", cfg.Extractor.AllowedDomains,
		"enabled_services", bootstrap.GetEnabledServices(cfg))
}
