package extractor

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/target/mediabroker/internal/core"
	"github.com/target/mediabroker/internal/domain/model"
	apperrors "github.com/target/mediabroker/internal/errors"
)

const maxURLLength = 2048

var _ core.URLValidator = (*URLValidator)(nil)

// URLValidator accepts http(s) URLs whose registrable domain is allow-listed.
type URLValidator struct {
	allowed map[string]struct{}
}

// NewURLValidator builds a validator for the given registrable domains.
// An empty list accepts any http(s) URL with a host.
func NewURLValidator(domains []string) *URLValidator {
	allowed := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.Trim(strings.TrimSpace(d), "."))
		if d != "" {
			allowed[d] = struct{}{}
		}
	}
	return &URLValidator{allowed: allowed}
}

// Validate returns the normalised URL or a validation AppError.
func (v *URLValidator) Validate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperrors.ValidationField(model.CategoryMissingParameter, "url", "url is required")
	}
	if len(raw) > maxURLLength {
		return "", invalidURL("url is too long")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", invalidURL("url could not be parsed")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", invalidURL("url must use http or https")
	}
	if u.User != nil {
		return "", invalidURL("url must not carry credentials")
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return "", invalidURL("url must include a host")
	}
	u.Host = strings.ToLower(u.Host)

	if len(v.allowed) > 0 && !v.allows(host) {
		return "", invalidURL(model.CategoryInvalidURL.UserMessage())
	}
	return u.String(), nil
}

func (v *URLValidator) allows(host string) bool {
	if _, ok := v.allowed[host]; ok {
		return true
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return false
	}
	_, ok := v.allowed[etld1]
	return ok
}

func invalidURL(msg string) error {
	return apperrors.ValidationField(model.CategoryInvalidURL, "url", msg)
}
