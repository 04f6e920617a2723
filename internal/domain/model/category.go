package model

// ErrorCategory is the closed set of user-facing error kinds.
// It is used both for classifying extractor outcomes and for HTTP error bodies.
type ErrorCategory string

const (
	CategoryMissingParameter      ErrorCategory = "missing_parameter"
	CategoryInvalidMode           ErrorCategory = "invalid_mode"
	CategoryInvalidURL            ErrorCategory = "invalid_url"
	CategoryUnknownJob            ErrorCategory = "unknown_job"
	CategoryJobNotCompleted       ErrorCategory = "job_not_completed"
	CategoryTooManyRequests       ErrorCategory = "too_many_requests"
	CategoryRateLimited           ErrorCategory = "rate_limited"
	CategoryAuthRequired          ErrorCategory = "auth_required"
	CategoryAgeRestricted         ErrorCategory = "age_restricted"
	CategoryContentUnavailable    ErrorCategory = "content_unavailable"
	CategoryConversionUnavailable ErrorCategory = "conversion_unavailable"
	CategoryTimedOut              ErrorCategory = "timed_out"
	CategoryTooLarge              ErrorCategory = "too_large"
	CategoryUnknown               ErrorCategory = "unknown"
)

var categoryMessages = map[ErrorCategory]string{
	CategoryMissingParameter:      "A required parameter is missing.",
	CategoryInvalidMode:           "Mode must be one of: video, audio.",
	CategoryInvalidURL:            "The URL is not a supported media link.",
	CategoryUnknownJob:            "Job not found. It may have expired or already been downloaded.",
	CategoryJobNotCompleted:       "The job has not completed yet; keep polling.",
	CategoryTooManyRequests:       "Too many submissions; wait a moment and retry.",
	CategoryRateLimited:           "The source is rate limiting this server; retry in a few minutes.",
	CategoryAuthRequired:          "The source requires fresh session credentials (cookies) for this content.",
	CategoryAgeRestricted:         "The content is age-restricted and requires signed-in session credentials.",
	CategoryContentUnavailable:    "The content is unavailable (private, removed, or region-blocked).",
	CategoryConversionUnavailable: "Audio conversion is unavailable on this server; retry as video.",
	CategoryTimedOut:              "The download took too long; retry with fast quality or audio-only.",
	CategoryTooLarge:              "The file exceeds the size limit; retry as audio-only or a lower quality.",
	CategoryUnknown:               "The download failed for an unexpected reason.",
}

// Valid returns true if c is part of the closed taxonomy.
func (c ErrorCategory) Valid() bool {
	_, ok := categoryMessages[c]
	return ok
}

// UserMessage returns the short actionable message shown to callers.
func (c ErrorCategory) UserMessage() string {
	if msg, ok := categoryMessages[c]; ok {
		return msg
	}
	return categoryMessages[CategoryUnknown]
}

// ExtractionCategories lists the categories an extractor run can fail with.
func ExtractionCategories() []ErrorCategory {
	return []ErrorCategory{
		CategoryRateLimited,
		CategoryAuthRequired,
		CategoryAgeRestricted,
		CategoryContentUnavailable,
		CategoryConversionUnavailable,
		CategoryTimedOut,
		CategoryTooLarge,
		CategoryUnknown,
	}
}
