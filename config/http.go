package config

import (
	"net"
	"strings"
	"time"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Port overrides the port portion of Addr when set (platform convention).
	Port string `env:"PORT"`

	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT"  envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"120s"`

	// SubmitRate is the sustained number of job submissions per second accepted
	// across all clients; SubmitBurst is the bucket size.
	SubmitRate  float64 `env:"HTTP_SUBMIT_RATE"  envDefault:"2"`
	SubmitBurst int     `env:"HTTP_SUBMIT_BURST" envDefault:"5"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	h.Addr = strings.TrimSpace(h.Addr)
	if h.Addr == "" {
		h.Addr = ":8080"
	}
	if port := strings.TrimSpace(h.Port); port != "" {
		host, _, err := net.SplitHostPort(h.Addr)
		if err != nil {
			host = ""
		}
		h.Addr = net.JoinHostPort(host, port)
	}

	if h.ReadTimeout <= 0 {
		h.ReadTimeout = 30 * time.Second
	}
	if h.WriteTimeout <= 0 {
		h.WriteTimeout = 120 * time.Second
	}

	// A non-positive rate disables throttling; burst must still admit one request.
	if h.SubmitBurst < 1 {
		h.SubmitBurst = 1
	}
}

// SubmitThrottleEnabled reports whether submission rate limiting is active.
func (h *HTTPConfig) SubmitThrottleEnabled() bool {
	return h.SubmitRate > 0
}
