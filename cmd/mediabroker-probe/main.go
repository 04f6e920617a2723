package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/target/mediabroker/config"
	"github.com/target/mediabroker/internal/bootstrap"
	"github.com/target/mediabroker/internal/domain/model"
)

const defaultProbeTimeout = 30 * time.Second

var errExtractorUnavailable = errors.New("extractor unavailable")

type probeOptions struct {
	Timeout time.Duration
	Text    bool
}

func main() {
	logger := bootstrap.InitLogger(false)

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status on bad flags
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	if err := run(ctx, logger, &cfg, opts, os.Stdout); err != nil {
		if !errors.Is(err, errExtractorUnavailable) {
			logger.Error("probe failed", "error", err)
		}
		os.Exit(1) //nolint:forbidigo // CLI must propagate probe failure to callers
	}
}

func parseFlags(args []string) (probeOptions, error) {
	fs := flag.NewFlagSet("mediabroker-probe", flag.ContinueOnError)
	opts := probeOptions{}
	fs.DurationVar(&opts.Timeout, "timeout", defaultProbeTimeout, "overall probe timeout")
	fs.BoolVar(&opts.Text, "text", false, "print a table instead of JSON")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultProbeTimeout
	}
	return opts, nil
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig, opts probeOptions, out io.Writer) error {
	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer func() { _ = services.Close() }()

	report := services.Health.Report(ctx)
	if opts.Text {
		err = printReportTable(out, &report)
	} else {
		err = printReportJSON(out, &report)
	}
	if err != nil {
		return err
	}

	if !report.Extractor.Available {
		return errExtractorUnavailable
	}
	return nil
}

func printReportJSON(w io.Writer, report *model.HealthReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func printReportTable(w io.Writer, report *model.HealthReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"status", report.Status},
		{"extractor", report.Extractor.Binary},
		{"available", fmt.Sprint(report.Extractor.Available)},
		{"version", orDash(report.Extractor.Version)},
		{"error", orDash(report.Extractor.Error)},
		{"ffmpeg", fmt.Sprint(report.Extractor.FFmpegAvailable)},
		{"cookies", fmt.Sprint(report.Extractor.CookiesPresent)},
		{"work dir", report.WorkDir},
		{"writable", fmt.Sprint(report.WorkDirWritable)},
		{"max filesize", report.MaxFilesize},
		{"concurrency", fmt.Sprint(report.Concurrency)},
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
