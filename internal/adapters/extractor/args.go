package extractor

import (
	"fmt"
	"path/filepath"

	"github.com/target/mediabroker/internal/domain/model"
)

const outputTemplate = "%(title).80B.%(ext)s"

// attempt describes one invocation of the extractor.
type attempt struct {
	url         string
	mode        model.Mode
	profile     Profile
	workDir     string
	cookiesPath string
	ffmpegPath  string
	alternate   bool
}

// FormatExpression returns the format selector for mode under profile.
func FormatExpression(mode model.Mode, p Profile) string {
	if mode == model.ModeAudio {
		return fmt.Sprintf("bestaudio[ext=m4a][filesize<%s]/bestaudio[ext=m4a]/bestaudio", p.MaxFilesize)
	}
	if p.MaxHeight <= 0 {
		return fmt.Sprintf("best[ext=mp4][filesize<%s]/best[ext=mp4]/best", p.MaxFilesize)
	}
	return fmt.Sprintf("best[height<=%d][filesize<%s]/best[height<=%d]/best", p.MaxHeight, p.MaxFilesize, p.MaxHeight)
}

// buildArgs assembles the command line for an attempt. The source URL is always last,
// after "--", so it can never be read as an option.
func buildArgs(a attempt) []string {
	userAgent := DefaultUserAgent
	if a.alternate {
		userAgent = FallbackUserAgent
	}

	args := []string{
		"--no-playlist",
		"--no-progress",
		"--no-warnings",
		"--no-cache-dir",
		"--no-mtime",
		"--restrict-filenames",
		"--max-filesize", a.profile.MaxFilesize,
		"--socket-timeout", "30",
		"--retries", "3",
		"--fragment-retries", "3",
		"--user-agent", userAgent,
		"--referer", DefaultReferer,
		"-f", FormatExpression(a.mode, a.profile),
		"-o", filepath.Join(a.workDir, outputTemplate),
		"--print-json",
		"--no-simulate",
	}

	if a.mode == model.ModeAudio && a.ffmpegPath != "" {
		args = append(args, "-x", "--audio-format", "m4a", "--ffmpeg-location", a.ffmpegPath)
	}
	if a.cookiesPath != "" {
		args = append(args, "--cookies", a.cookiesPath)
	}
	if a.alternate {
		args = append(args, "--extractor-args", fallbackExtractorArgs)
	}

	return append(args, "--", a.url)
}
