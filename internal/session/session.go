package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/siteprint/siteprint/internal/types"
)

// ErrLoadTimeout marks a navigation that exceeded the per-page timeout. The
// tab itself survives the deadline, so callers may still read or render the
// partial DOM.
var ErrLoadTimeout = errors.New("navigation timed out")

// UserAgent is the identity presented by the headless session. The HTTP side
// channel pins the same string so the site sees one consistent client.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Page is the loaded-tab handle handed to the link discoverer and the
// renderer after a navigation completes (or times out).
type Page struct {
	URL      string // requested URL
	Location string // final URL after redirects
	Title    string
	HTML     string
	Partial  bool // settle wait did not finish before the deadline
}

// Manager owns the headless browser and the single tab reused for the whole
// crawl. One tab keeps the cookie-scoped session state in one place and
// avoids hammering the site with parallel navigations.
type Manager struct {
	logger  *zap.Logger
	timeout time.Duration
	settle  time.Duration
	cookies []types.Cookie

	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
}

// New prepares a manager; the browser itself starts on Start.
func New(cfg types.Config, cookies []types.Cookie, logger *zap.Logger) *Manager {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	settle := cfg.SettleDelay
	if settle <= 0 {
		settle = 2 * time.Second
	}
	return &Manager{
		logger:  logger,
		timeout: timeout,
		settle:  settle,
		cookies: cookies,
	}
}

// Start boots the browser and injects the cookie set before any navigation.
func (m *Manager) Start(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	m.allocCancel = allocCancel
	m.tabCtx, m.tabCancel = chromedp.NewContext(allocCtx)

	if err := chromedp.Run(m.tabCtx, network.Enable()); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}

	if len(m.cookies) == 0 {
		m.logger.Warn("no cookies loaded, crawling unauthenticated")
		return nil
	}
	return m.injectCookies()
}

// Load navigates the tab and blocks until the page body is ready and the
// network has had a quiet settle period, bounded by the per-page timeout.
// On timeout the handle is still returned best-effort together with
// ErrLoadTimeout; the caller decides whether to use the partial DOM.
func (m *Manager) Load(ctx context.Context, url string) (*Page, error) {
	// chromedp contexts must descend from the tab context, so the caller's
	// cancellation is propagated by hand; an interrupt aborts mid-navigation
	// instead of waiting out the page deadline.
	navCtx, cancel := context.WithTimeout(m.tabCtx, m.timeout)
	defer cancel()
	stopNav := context.AfterFunc(ctx, cancel)
	defer stopNav()

	navErr := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(m.settle),
	)

	if navErr != nil && !errors.Is(navErr, context.DeadlineExceeded) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to load %s: %w", url, navErr)
	}

	// Read page state on a fresh deadline so a timed-out navigation still
	// yields whatever DOM made it across.
	page := &Page{URL: url}
	readCtx, readCancel := context.WithTimeout(m.tabCtx, m.timeout)
	defer readCancel()
	stopRead := context.AfterFunc(ctx, readCancel)
	defer stopRead()

	readErr := chromedp.Run(readCtx,
		chromedp.Location(&page.Location),
		chromedp.Title(&page.Title),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
	)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if navErr != nil {
		page.Partial = true
		if readErr != nil {
			return nil, fmt.Errorf("%w and page state unreadable: %s", ErrLoadTimeout, url)
		}
		return page, fmt.Errorf("%w after %s: %s", ErrLoadTimeout, m.timeout, url)
	}
	if readErr != nil {
		return nil, fmt.Errorf("failed to read page state for %s: %w", url, readErr)
	}
	return page, nil
}

// Close releases the tab and the browser process. Safe to call on every exit
// path, including a Start that failed half way.
func (m *Manager) Close() {
	if m.tabCancel != nil {
		m.tabCancel()
	}
	if m.allocCancel != nil {
		m.allocCancel()
	}
}

// IsAuthWall reports whether a final location landed on a login page instead
// of site content.
func IsAuthWall(location string) bool {
	loc := strings.ToLower(location)
	return strings.Contains(loc, "accounts.google.com") || strings.Contains(loc, "signin")
}
