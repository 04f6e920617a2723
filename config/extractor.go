package config

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	defaultMaxFilesize     = "25M"
	defaultFastMaxFilesize = "10M"
)

// ExtractorConfig configures the external media extractor and its format profiles.
type ExtractorConfig struct {
	// Binary is the extractor executable name or path.
	Binary string `env:"EXTRACTOR_BINARY" envDefault:"yt-dlp"`

	// FFmpegBinary is the conversion helper; audio jobs fall back to the
	// unconverted stream when it is not on PATH.
	FFmpegBinary string `env:"EXTRACTOR_FFMPEG_BINARY" envDefault:"ffmpeg"`

	// CookiesFile is an optional Netscape-format session file. It is copied
	// into each job directory before use so the extractor can rewrite it.
	CookiesFile string `env:"EXTRACTOR_COOKIES_FILE"`

	Timeout     time.Duration `env:"EXTRACTOR_TIMEOUT"      envDefault:"25s"`
	FastTimeout time.Duration `env:"EXTRACTOR_FAST_TIMEOUT" envDefault:"15s"`

	// MaxFilesize and FastMaxFilesize use the extractor's size syntax (e.g. 25M).
	MaxFilesize     string `env:"EXTRACTOR_MAX_FILESIZE"      envDefault:"25M"`
	FastMaxFilesize string `env:"EXTRACTOR_FAST_MAX_FILESIZE" envDefault:"10M"`

	MaxHeight     int `env:"EXTRACTOR_MAX_HEIGHT"      envDefault:"720"`
	FastMaxHeight int `env:"EXTRACTOR_FAST_MAX_HEIGHT" envDefault:"360"`

	// AllowedDomains lists registrable domains accepted for submission.
	// The default limits the broker to YouTube hosts; this is deployment
	// policy, not a limit of the extractor. An empty list (set the variable
	// to ",") accepts any http(s) URL.
	AllowedDomains []string `env:"EXTRACTOR_ALLOWED_DOMAINS" envDefault:"youtube.com,youtu.be,youtube-nocookie.com" envSeparator:","`

	// Fallback retries a failed attempt once with the alternate client profile.
	Fallback bool `env:"EXTRACTOR_FALLBACK" envDefault:"true"`

	// IgnoreCookieWriteErrors treats a nonzero exit whose only complaint is a
	// failed write-back of the cookies file as success when output exists.
	IgnoreCookieWriteErrors bool `env:"EXTRACTOR_IGNORE_COOKIE_WRITE_ERRORS" envDefault:"true"`
}

// Sanitize applies guardrails to extractor configuration values.
func (e *ExtractorConfig) Sanitize() {
	e.Binary = strings.TrimSpace(e.Binary)
	if e.Binary == "" {
		e.Binary = "yt-dlp"
	}
	e.FFmpegBinary = strings.TrimSpace(e.FFmpegBinary)
	e.CookiesFile = strings.TrimSpace(e.CookiesFile)

	if e.Timeout <= 0 {
		e.Timeout = 25 * time.Second
	}
	if e.FastTimeout <= 0 {
		e.FastTimeout = 15 * time.Second
	}

	e.MaxFilesize = sanitizeSize(e.MaxFilesize, defaultMaxFilesize)
	e.FastMaxFilesize = sanitizeSize(e.FastMaxFilesize, defaultFastMaxFilesize)

	if e.MaxHeight < 144 {
		e.MaxHeight = 144
	}
	if e.FastMaxHeight < 144 {
		e.FastMaxHeight = 144
	}
	if e.FastMaxHeight > e.MaxHeight {
		e.FastMaxHeight = e.MaxHeight
	}

	domains := make([]string, 0, len(e.AllowedDomains))
	for _, d := range e.AllowedDomains {
		d = strings.ToLower(strings.Trim(strings.TrimSpace(d), "."))
		if d != "" {
			domains = append(domains, d)
		}
	}
	e.AllowedDomains = domains
}

// MaxFilesizeBytes returns the standard size bound in bytes.
func (e *ExtractorConfig) MaxFilesizeBytes() uint64 {
	n, _ := humanize.ParseBytes(e.MaxFilesize)
	return n
}

// sanitizeSize keeps v only when it parses as a byte size.
func sanitizeSize(v, fallback string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	if v == "" {
		return fallback
	}
	n, err := humanize.ParseBytes(v)
	if err != nil || n == 0 {
		return fallback
	}
	return v
}
