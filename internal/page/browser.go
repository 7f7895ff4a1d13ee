package page

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// renderDelay gives client-side scripts time to populate job listings.
const renderDelay = 2 * time.Second

// BrowserLoader renders pages in headless Chrome before extracting text.
// Chrome or Chromium must be installed.
type BrowserLoader struct {
	timeout   time.Duration
	userAgent string
	logger    *zap.Logger
}

func NewBrowserLoader(opts Options, logger *zap.Logger) *BrowserLoader {
	opts = opts.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BrowserLoader{
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		logger:    logger,
	}
}

func (l *BrowserLoader) Load(ctx context.Context, rawURL string) (string, error) {
	if err := validateURL(rawURL); err != nil {
		return "", err
	}
	rawURL = strings.TrimSpace(rawURL)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(l.userAgent),
		)...,
	)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	browserCtx, cancel := context.WithTimeout(browserCtx, l.timeout)
	defer cancel()

	l.logger.Debug("rendering page in headless browser", zap.String("url", rawURL))

	resp, err := chromedp.RunResponse(browserCtx, chromedp.Navigate(rawURL))
	if err != nil {
		return "", &FetchError{URL: rawURL, Message: "browser navigation failed", Cause: err}
	}
	if resp != nil {
		if err := checkStatus(rawURL, int(resp.Status), resp.StatusText); err != nil {
			return "", err
		}
	}

	var html string
	err = chromedp.Run(browserCtx,
		chromedp.WaitReady("body"),
		chromedp.Sleep(renderDelay),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", &FetchError{URL: rawURL, Message: "browser rendering failed", Cause: err}
	}

	text, err := ExtractText(html)
	if err != nil {
		return "", &FetchError{URL: rawURL, Message: "failed to parse HTML", Cause: err}
	}
	if text == "" {
		return "", &FetchError{URL: rawURL, Message: "page has no visible text"}
	}

	l.logger.Debug("page rendered", zap.String("url", rawURL), zap.Int("text_length", len(text)))

	return text, nil
}

// checkStatus turns a non-200 navigation response into a FetchError.
func checkStatus(rawURL string, status int, statusText string) error {
	if status == http.StatusOK {
		return nil
	}

	text := statusText
	if text == "" {
		text = http.StatusText(status)
	}

	return &FetchError{
		URL:        rawURL,
		Message:    fmt.Sprintf("bad status: %d %s", status, text),
		StatusCode: status,
	}
}
