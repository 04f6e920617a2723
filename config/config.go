package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - http.go: HTTP server configuration
//   - extractor.go: extractor binary, credentials and format profiles
//   - jobs.go: working directory, concurrency and sweeper configuration
//   - services.go: Service mode configuration
//   - observability.go: metrics configuration
type AppConfig struct {
	// Debug enables verbose diagnostics (debug log level, extractor stderr in logs).
	// Never enable in production.
	Debug bool `env:"DEBUG" envDefault:"false"`

	// Services is a comma-delimited list of enabled services (http, sweeper).
	Services string `env:"SERVICES" envDefault:"http,sweeper"`

	HTTP          HTTPConfig
	Extractor     ExtractorConfig
	Jobs          JobsConfig
	Sweeper       SweeperConfig
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Extractor.Sanitize()
	c.Jobs.Sanitize()
	c.Sweeper.Sanitize()
	c.Observability.Sanitize()
}

// Validate reports configuration combinations that cannot be clamped into shape.
// The timeout ladder must be strictly ordered: fast < standard < HTTP write timeout.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.Extractor.FastTimeout >= c.Extractor.Timeout {
		errs = append(errs, fmt.Errorf(
			"EXTRACTOR_FAST_TIMEOUT (%s) must be shorter than EXTRACTOR_TIMEOUT (%s)",
			c.Extractor.FastTimeout, c.Extractor.Timeout,
		))
	}
	if c.HTTP.WriteTimeout > 0 && c.Extractor.Timeout >= c.HTTP.WriteTimeout {
		errs = append(errs, fmt.Errorf(
			"EXTRACTOR_TIMEOUT (%s) must be shorter than HTTP_WRITE_TIMEOUT (%s)",
			c.Extractor.Timeout, c.HTTP.WriteTimeout,
		))
	}
	if _, err := cron.ParseStandard(c.Sweeper.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("SWEEPER_SCHEDULE %q: %w", c.Sweeper.Schedule, err))
	}
	if _, err := ParseServices(c.Services); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}

// IsSweeperEnabled returns true if the expiry sweeper service is enabled.
func (c *AppConfig) IsSweeperEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeSweeper]
}
