package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/target/mediabroker/internal/domain/model"
	"github.com/target/mediabroker/internal/domain/outcome"
)

// noFallback lists failures a different client profile cannot fix.
var noFallback = map[model.ErrorCategory]bool{
	model.CategoryAuthRequired:          true,
	model.CategoryAgeRestricted:         true,
	model.CategoryContentUnavailable:    true,
	model.CategoryConversionUnavailable: true,
	model.CategoryTooLarge:              true,
}

// Run executes the extractor for req under the deadline of its quality profile.
// Both attempts (primary and alternate client) share that one deadline.
func (e *Extractor) Run(ctx context.Context, req model.ExtractRequest) (*model.ExtractResult, error) {
	if req.WorkDir == "" {
		return nil, errors.New("work directory is required")
	}
	if info, err := os.Stat(req.WorkDir); err != nil {
		return nil, fmt.Errorf("work directory: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("work directory %s is not a directory", req.WorkDir)
	}

	profile := e.ProfileFor(req.Quality)
	ctx, cancel := context.WithTimeout(ctx, profile.Timeout)
	defer cancel()

	start := time.Now()
	log := e.logger.With("job_id", req.JobID, "mode", req.Mode, "quality", req.Quality)

	cookiesPath, err := e.stageCookies(req.WorkDir)
	if err != nil {
		log.Warn("session credentials unavailable, continuing without", "error", err)
	}

	a := attempt{
		url:         req.URL,
		mode:        req.Mode,
		profile:     profile,
		workDir:     req.WorkDir,
		cookiesPath: cookiesPath,
	}
	if req.Mode == model.ModeAudio {
		a.ffmpegPath = e.ffmpegPath()
		if a.ffmpegPath == "" {
			log.Debug("conversion helper not found, audio passes through unconverted")
		}
	}

	res, err := e.execute(ctx, a, log)
	if err != nil {
		return nil, err
	}
	res.Attempts = 1

	if e.shouldFallback(ctx, res) {
		if err := clearAttemptArtifacts(req.WorkDir); err != nil {
			log.Warn("clear artifacts before retry failed", "error", err)
		} else {
			log.Info("primary attempt failed, retrying with alternate client", "exit_code", res.ExitCode)
			a.alternate = true
			second, err := e.execute(ctx, a, log)
			switch {
			case err != nil:
				log.Warn("alternate attempt could not start", "error", err)
			default:
				second.Attempts = 2
				res = second
			}
		}
	}

	res.UsingCredentials = cookiesPath != ""
	res.Duration = time.Since(start)
	res.Metadata = parseMetadata(res.Stdout)
	return res, nil
}

func (e *Extractor) shouldFallback(ctx context.Context, res *model.ExtractResult) bool {
	if !e.fallback || ctx.Err() != nil {
		return false
	}
	if res.TimedOut || res.ExitCode == 0 || len(res.OutputFiles) > 0 {
		return false
	}
	if cat, _, ok := outcome.Match(res.Stderr); ok && noFallback[cat] {
		return false
	}
	return true
}

// execute runs a single attempt. The error is non-nil only when the process
// never started.
func (e *Extractor) execute(ctx context.Context, a attempt, log *slog.Logger) (*model.ExtractResult, error) {
	args := buildArgs(a)

	stdout := &headBuffer{limit: stdoutLimit}
	stderr := &tailBuffer{limit: stderrLimit}

	cmd := exec.CommandContext(ctx, e.binary, args...)
	cmd.Dir = a.workDir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	configureProcessGroup(cmd)

	if e.debug {
		log.Debug("extractor command", "binary", e.binary, "args", args)
	}

	runErr := cmd.Run()
	if cmd.ProcessState == nil && ctx.Err() == nil {
		return nil, fmt.Errorf("start extractor %s: %w", e.binary, runErr)
	}

	res := &model.ExtractResult{ExitCode: -1}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
	case ctx.Err() != nil:
		stderr.WriteString("\nextraction canceled: " + ctx.Err().Error())
	case errors.Is(runErr, exec.ErrWaitDelay):
		log.Debug("extractor left output pipes open after exit")
	}

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	files, err := listOutputFiles(a.workDir)
	if err != nil {
		log.Warn("list output files failed", "error", err)
	}
	res.OutputFiles = files

	if e.debug {
		log.Debug("extractor exited",
			"exit_code", res.ExitCode,
			"timed_out", res.TimedOut,
			"files", files,
			"stderr", res.Stderr,
		)
	}
	return res, nil
}
