package util //nolint:revive // package name util hosts shared formatting helpers for list and health views

import (
	"time"

	"github.com/dustin/go-humanize"
)

// FormatAge renders how long ago t was relative to now, e.g. "3 minutes ago".
// Future or zero times render as "just now".
func FormatAge(t, now time.Time) string {
	if t.IsZero() || !now.After(t) {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// FormatSize renders a byte count in SI units; non-positive sizes render empty.
func FormatSize(n int64) string {
	if n <= 0 {
		return ""
	}
	return humanize.Bytes(uint64(n))
}

// Truncate shortens s to at most limit runes, marking the cut with "...".
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}

// FormatDuration truncates d to milliseconds; non-positive durations render "-".
func FormatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Millisecond:
		return d.String()
	default:
		return d.Truncate(time.Millisecond).String()
	}
}
