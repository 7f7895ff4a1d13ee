// Package page turns a careers page URL into the visible text handed to extraction.
package page

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single page fetch.
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "Mozilla/5.0 (compatible; cold-mailer/1.0)"
)

// Loader returns the visible text of the page behind url.
type Loader interface {
	Load(ctx context.Context, url string) (string, error)
}

// FetchError is returned when a page cannot be fetched or yields no text.
type FetchError struct {
	URL        string
	Message    string
	StatusCode int
	Cause      error
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Options configures loaders.
type Options struct {
	Timeout   time.Duration
	UserAgent string
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(o.UserAgent) == "" {
		o.UserAgent = DefaultUserAgent
	}
	return o
}

func validateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return &FetchError{URL: raw, Message: "url must not be empty"}
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return &FetchError{URL: raw, Message: "invalid URL", Cause: err}
	}

	return nil
}

// New returns the loader registered under kind: "http" (default) or "browser".
func New(kind string, opts Options, logger *zap.Logger) (Loader, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "http":
		return NewHTTPLoader(opts, logger), nil
	case "browser":
		return NewBrowserLoader(opts, logger), nil
	default:
		return nil, fmt.Errorf("unsupported page loader: %s", kind)
	}
}
