package browser

import (
	"context"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/chromedp/chromedp"

	ingesterr "github.com/devaeterne/marketplaceint/pkg/errors"
	"github.com/devaeterne/marketplaceint/pkg/tracing"
)

// Config controls the headless Chrome allocator shared by all fetches.
type Config struct {
	Headless      bool
	UserAgent     string
	PageLoadDelay time.Duration
	FetchTimeout  time.Duration
}

// Fetcher retrieves rendered HTML for a URL.
type Fetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}

// Session wraps a Chrome exec allocator. Listing pages on these marketplaces
// are rendered client side, so a plain HTTP GET returns empty shells; every
// fetch opens a fresh tab against the shared allocator.
type Session struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	cfg      Config
	logger   ectologger.Logger
}

// NewSession builds the allocator. Chrome itself starts lazily on the first
// fetch, so a missing binary surfaces there rather than here.
func NewSession(ctx context.Context, cfg Config, logger ectologger.Logger) *Session {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36"
	}
	if cfg.PageLoadDelay <= 0 {
		cfg.PageLoadDelay = 5 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 60 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(cfg.UserAgent),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)

	return &Session{
		allocCtx: allocCtx,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger,
	}
}

// FetchHTML navigates a fresh tab to url, waits for the client side render,
// and returns the full document. A dead or unreachable browser is a fatal
// engine error; anything else is an ordinary fetch failure the caller can
// skip past.
func (s *Session) FetchHTML(ctx context.Context, url string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "browser.Session.FetchHTML")
	defer span.End()

	tabCtx, cancelTab := chromedp.NewContext(s.allocCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, s.cfg.FetchTimeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(s.cfg.PageLoadDelay),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"url": url}).Error("Failed to fetch page")
		if isBrowserDown(err) {
			return "", ingesterr.NewFatalEngineError(err, "browser session is not reachable")
		}
		return "", err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{"url": url, "bytes": len(html)}).Debug("Fetched page")
	return html, nil
}

// Close tears down the allocator and any Chrome process it started.
func (s *Session) Close() {
	s.cancel()
}

var browserDownMarkers = []string{
	"chrome not reachable",
	"chrome failed to start",
	"exec:",
	"websocket url timeout",
	"browser process exited",
}

func isBrowserDown(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range browserDownMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
