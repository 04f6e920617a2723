// Package extractor runs the external media extractor (yt-dlp) as a subprocess
// confined to a job directory with a hard deadline.
package extractor

import (
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/target/mediabroker/internal/core"
	"github.com/target/mediabroker/internal/domain/model"
)

const (
	// DefaultUserAgent is sent on the first attempt.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	// FallbackUserAgent is sent with the alternate client profile.
	FallbackUserAgent = "com.google.android.youtube/17.31.35 (Linux; U; Android 11) gzip"
	// DefaultReferer is sent on every attempt.
	DefaultReferer = "https://www.youtube.com/"

	fallbackExtractorArgs = "youtube:player_client=android"

	stdoutLimit = 4 << 20
	stderrLimit = 64 << 10
	waitDelay   = 2 * time.Second
)

var _ core.Extractor = (*Extractor)(nil)

// Profile bounds one quality tier.
type Profile struct {
	Timeout     time.Duration
	MaxFilesize string
	MaxHeight   int
}

// Options configures an Extractor.
type Options struct {
	Binary       string
	FFmpegBinary string
	CookiesFile  string

	Standard Profile
	Fast     Profile

	Fallback bool
	Logger   *slog.Logger
	// Debug logs the full command line and stderr of every attempt.
	Debug bool

	// LookPath resolves helper binaries; defaults to exec.LookPath.
	LookPath func(file string) (string, error)
}

// Extractor implements core.Extractor on top of a yt-dlp compatible binary.
type Extractor struct {
	binary      string
	ffmpeg      string
	cookiesFile string
	standard    Profile
	fast        Profile
	fallback    bool
	debug       bool
	lookPath    func(string) (string, error)
	logger      *slog.Logger
}

// New validates opts and returns an Extractor.
func New(opts Options) (*Extractor, error) {
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		return nil, errors.New("extractor binary is required")
	}
	if opts.Standard.Timeout <= 0 {
		return nil, errors.New("standard profile timeout must be positive")
	}
	if opts.Fast.Timeout <= 0 {
		opts.Fast = opts.Standard
	}
	if opts.Standard.MaxFilesize == "" {
		opts.Standard.MaxFilesize = "25M"
	}
	if opts.Fast.MaxFilesize == "" {
		opts.Fast.MaxFilesize = opts.Standard.MaxFilesize
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	return &Extractor{
		binary:      binary,
		ffmpeg:      strings.TrimSpace(opts.FFmpegBinary),
		cookiesFile: strings.TrimSpace(opts.CookiesFile),
		standard:    opts.Standard,
		fast:        opts.Fast,
		fallback:    opts.Fallback,
		debug:       opts.Debug,
		lookPath:    lookPath,
		logger:      logger.With("component", "extractor"),
	}, nil
}

// ProfileFor returns the bounds used for a quality tier. Height bounds never
// exceed the configured standard maximum.
func (e *Extractor) ProfileFor(q model.Quality) Profile {
	switch q {
	case model.QualityFast:
		return e.fast
	case model.QualityBest:
		p := e.standard
		p.MaxHeight = 0
		return p
	case model.Quality720p:
		return e.capHeight(720)
	case model.Quality480p:
		return e.capHeight(480)
	default:
		return e.standard
	}
}

func (e *Extractor) capHeight(h int) Profile {
	p := e.standard
	if p.MaxHeight == 0 || h < p.MaxHeight {
		p.MaxHeight = h
	}
	return p
}

// ffmpegPath returns the resolved conversion helper, or "" when absent.
func (e *Extractor) ffmpegPath() string {
	if e.ffmpeg == "" {
		return ""
	}
	p, err := e.lookPath(e.ffmpeg)
	if err != nil {
		return ""
	}
	return p
}
