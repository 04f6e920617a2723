// Package outcome maps a finished extractor run onto a terminal job result.
//
// Classification is pure: it only looks at the exit code, the captured stderr,
// the files found in the job directory and whether the run hit its deadline.
package outcome

import (
	"slices"
	"strings"

	"github.com/target/mediabroker/internal/domain/model"
)

// DetailLimit bounds the number of stderr characters attached to a failure.
const DetailLimit = 300

const (
	messageCompleted = "Download complete"
	detailNoOutput   = "extractor produced no output file"
)

// Input is the subset of an extractor result the classifier needs.
type Input struct {
	ExitCode    int
	Stderr      string
	OutputFiles []string
	TimedOut    bool
	// IgnoreCookieWriteErrors enables the read-only cookie file carve-out.
	IgnoreCookieWriteErrors bool
}

// Outcome is either Completed with a Filename, or failed with a Category.
type Outcome struct {
	Completed bool
	Filename  string
	Category  model.ErrorCategory
	Detail    string
	Message   string
	// Benign is set when a nonzero exit was accepted under the cookie carve-out.
	Benign bool
}

// Transition converts the outcome into the registry transition that records it.
func (o Outcome) Transition() model.Transition {
	if o.Completed {
		return model.Transition{
			To:             model.JobStateCompleted,
			Message:        o.Message,
			ResultFilename: o.Filename,
		}
	}
	return model.Transition{
		To:            model.JobStateFailed,
		Message:       o.Message,
		ErrorCategory: o.Category,
		ErrorDetail:   o.Detail,
	}
}

type rule struct {
	category model.ErrorCategory
	phrases  []string
}

// rules are evaluated in order; the first matching phrase wins.
var rules = []rule{
	{model.CategoryRateLimited, []string{
		"http error 429",
		"too many requests",
		"rate limit",
		"rate-limit",
		"http error 403: forbidden",
	}},
	{model.CategoryAuthRequired, []string{
		"sign in to confirm",
		"not a bot",
		"login required",
		"requires authentication",
		"use --cookies",
		"cookies are no longer valid",
		"only available for registered users",
	}},
	{model.CategoryAgeRestricted, []string{
		"age-restricted",
		"age restricted",
		"confirm your age",
		"inappropriate for some users",
	}},
	{model.CategoryContentUnavailable, []string{
		"video unavailable",
		"video is unavailable",
		"private video",
		"video is private",
		"has been removed",
		"no longer available",
		"not available in your country",
		"http error 404",
		"does not exist",
	}},
	{model.CategoryConversionUnavailable, []string{
		"ffmpeg not found",
		"ffprobe not found",
		"ffprobe and ffmpeg not found",
		"ffmpeg-location",
		"ffmpeg is not installed",
	}},
	{model.CategoryTimedOut, []string{
		"timed out",
		"timeout",
	}},
	{model.CategoryTooLarge, []string{
		"larger than max-filesize",
		"exceeds max-filesize",
		"file is too large",
	}},
}

// Classify maps an extractor result onto a terminal outcome.
//
// Order: deadline first, then success (exit 0 with a file), then the cookie
// write carve-out, then stderr phrase matching, then unknown.
func Classify(in Input) Outcome {
	if in.TimedOut {
		return failed(model.CategoryTimedOut, tail(in.Stderr))
	}

	files := sortedFiles(in.OutputFiles)

	if in.ExitCode == 0 && len(files) > 0 {
		return Outcome{Completed: true, Filename: files[0], Message: messageCompleted}
	}

	if in.ExitCode != 0 && len(files) > 0 && in.IgnoreCookieWriteErrors && OnlyCookieWriteErrors(in.Stderr) {
		return Outcome{Completed: true, Filename: files[0], Message: messageCompleted, Benign: true}
	}

	if cat, line, ok := Match(in.Stderr); ok {
		return failed(cat, line)
	}

	if in.ExitCode == 0 {
		return failed(model.CategoryUnknown, detailNoOutput)
	}
	return failed(model.CategoryUnknown, tail(in.Stderr))
}

// Match returns the first category whose trigger phrase appears in stderr,
// together with the stderr line that contained it.
func Match(stderr string) (model.ErrorCategory, string, bool) {
	if strings.TrimSpace(stderr) == "" {
		return "", "", false
	}
	lines := strings.Split(stderr, "\n")
	lower := make([]string, len(lines))
	for i, l := range lines {
		lower[i] = strings.ToLower(l)
	}
	for _, r := range rules {
		for _, p := range r.phrases {
			for i, l := range lower {
				if strings.Contains(l, p) {
					return r.category, lines[i], true
				}
			}
		}
	}
	return "", "", false
}

// OnlyCookieWriteErrors reports whether every error line in stderr is a
// failure to write the cookies file back (permission denied or read-only fs).
func OnlyCookieWriteErrors(stderr string) bool {
	seen := false
	for _, line := range strings.Split(stderr, "\n") {
		l := strings.ToLower(strings.TrimSpace(line))
		if !strings.Contains(l, "error") {
			continue
		}
		if !isCookieWriteError(l) {
			return false
		}
		seen = true
	}
	return seen
}

func isCookieWriteError(line string) bool {
	if !strings.Contains(line, "cookie") {
		return false
	}
	return strings.Contains(line, "permission denied") ||
		strings.Contains(line, "read-only file system") ||
		strings.Contains(line, "errno 13") ||
		strings.Contains(line, "errno 30")
}

func failed(cat model.ErrorCategory, detail string) Outcome {
	return Outcome{
		Category: cat,
		Detail:   Clip(strings.TrimSpace(detail)),
		Message:  cat.UserMessage(),
	}
}

func sortedFiles(files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if f != "" {
			out = append(out, f)
		}
	}
	slices.Sort(out)
	return out
}

// tail returns the last DetailLimit characters of s.
func tail(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= DetailLimit {
		return s
	}
	return string(r[len(r)-DetailLimit:])
}

// Clip returns at most the first DetailLimit characters of s, never
// splitting a multi-byte character.
func Clip(s string) string {
	r := []rune(s)
	if len(r) <= DetailLimit {
		return s
	}
	return string(r[:DetailLimit])
}
