package page

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// maxBodySize caps how much of a page is read.
const maxBodySize = 10 << 20

// HTTPLoader fetches pages with a plain GET request.
type HTTPLoader struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

// NewHTTPLoader creates a loader with the per-request timeout from opts.
func NewHTTPLoader(opts Options, logger *zap.Logger) *HTTPLoader {
	opts = opts.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HTTPLoader{
		client:    &http.Client{Timeout: opts.Timeout},
		userAgent: opts.UserAgent,
		logger:    logger,
	}
}

func (l *HTTPLoader) Load(ctx context.Context, rawURL string) (string, error) {
	if err := validateURL(rawURL); err != nil {
		return "", err
	}
	rawURL = strings.TrimSpace(rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &FetchError{URL: rawURL, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	l.logger.Debug("make request", zap.String("url", rawURL))

	resp, err := l.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: rawURL, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{
			URL:        rawURL,
			Message:    fmt.Sprintf("bad status: %s", resp.Status),
			StatusCode: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", &FetchError{URL: rawURL, Message: "failed to read response body", Cause: err}
	}

	text, err := ExtractText(string(body))
	if err != nil {
		return "", &FetchError{URL: rawURL, Message: "failed to parse HTML", Cause: err}
	}
	if text == "" {
		return "", &FetchError{URL: rawURL, Message: "page has no visible text"}
	}

	l.logger.Debug("page loaded",
		zap.String("url", rawURL),
		zap.Int("html_bytes", len(body)),
		zap.Int("text_length", len(text)),
	)

	return text, nil
}
