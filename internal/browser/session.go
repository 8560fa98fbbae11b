// Package browser owns the headless Chrome process and the pages opened
// within it. Pages are acquired through the session and released through
// an idempotent close so cleanup holds on every exit path.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
)

// Options configures the Chrome session and per-page navigation limits.
type Options struct {
	UserAgent   string
	NavTimeout  time.Duration
	WaitTimeout time.Duration
	SettleDelay time.Duration
	Headful     bool
}

// Session wraps one Chrome process and tracks its open pages.
type Session struct {
	opts   Options
	logger *slog.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	pages  map[*Page]struct{}
	nextID int
}

// Page is one tracked browser tab.
type Page struct {
	id      int
	ctx     context.Context
	cancel  context.CancelFunc
	session *Session
	once    sync.Once
}

// NewSession prepares a session; Chrome is not launched until Start.
func NewSession(opts Options, logger *slog.Logger) *Session {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 60 * time.Second
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 30 * time.Second
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		opts:   opts,
		logger: logger.With("component", "browser"),
		pages:  make(map[*Page]struct{}),
	}
}

// Start launches the Chrome process. Sandboxing is disabled because the
// constrained hosting environment cannot provide it. A launch failure
// propagates: there is no retry at this level and the run must abort.
func (s *Session) Start(ctx context.Context) error {
	execOpts := []chromedp.ExecAllocatorOption{
		chromedp.Flag("headless", !s.opts.Headful),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-zygote", true),
	}
	if s.opts.UserAgent != "" {
		execOpts = append(execOpts, chromedp.UserAgent(s.opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Materialise the process now so a launch failure surfaces here
	// instead of on the first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("launch browser: %w", err)
	}

	s.allocCancel = allocCancel
	s.browserCtx = browserCtx
	s.browserCancel = browserCancel
	s.logger.Info("browser launched", "headless", !s.opts.Headful)
	return nil
}

// OpenPage creates a new tab and registers it in the active set.
func (s *Session) OpenPage() (*Page, error) {
	if s.browserCtx == nil {
		return nil, errors.New("session not started")
	}
	pageCtx, pageCancel := chromedp.NewContext(s.browserCtx)

	if s.opts.UserAgent != "" {
		if err := chromedp.Run(pageCtx, emulation.SetUserAgentOverride(s.opts.UserAgent)); err != nil {
			pageCancel()
			return nil, fmt.Errorf("configure page: %w", err)
		}
	}

	s.mu.Lock()
	s.nextID++
	page := &Page{id: s.nextID, ctx: pageCtx, cancel: pageCancel, session: s}
	s.pages[page] = struct{}{}
	open := len(s.pages)
	s.mu.Unlock()

	s.logger.Debug("page opened", "page", page.id, "open_pages", open)
	return page, nil
}

// ClosePage releases a page. Safe to call more than once; errors are
// logged, never returned, and the page always leaves the active set.
func (s *Session) ClosePage(p *Page) {
	if p == nil {
		return
	}
	p.once.Do(func() {
		p.cancel()
		s.mu.Lock()
		delete(s.pages, p)
		s.mu.Unlock()
		s.logger.Debug("page closed", "page", p.id)
	})
}

// Shutdown closes every tracked page and then the browser. It always runs
// in a cleanup path, so it swallows and logs everything.
func (s *Session) Shutdown() {
	s.mu.Lock()
	open := make([]*Page, 0, len(s.pages))
	for p := range s.pages {
		open = append(open, p)
	}
	s.mu.Unlock()

	for _, p := range open {
		s.ClosePage(p)
	}
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.logger.Info("browser shut down", "pages_closed", len(open))
}

// Navigate loads a URL, waits for waitSelector to become ready, lets the
// page settle briefly, and returns the rendered document. Navigation and
// the selector wait carry independent deadlines; exceeding either is an
// error for the enclosing retry policy.
func (p *Page) Navigate(ctx context.Context, url, waitSelector string) (string, error) {
	opts := p.session.opts

	navCtx, navCancel := context.WithTimeout(p.ctx, opts.NavTimeout)
	defer navCancel()
	stopNav := context.AfterFunc(ctx, navCancel)
	defer stopNav()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return "", fmt.Errorf("navigate %s: %w", url, err)
	}

	waitCtx, waitCancel := context.WithTimeout(p.ctx, opts.WaitTimeout)
	defer waitCancel()
	stopWait := context.AfterFunc(ctx, waitCancel)
	defer stopWait()

	var html string
	actions := []chromedp.Action{}
	if waitSelector != "" {
		actions = append(actions, chromedp.WaitReady(waitSelector, chromedp.ByQuery))
	}
	actions = append(actions,
		chromedp.Sleep(opts.SettleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err := chromedp.Run(waitCtx, actions...); err != nil {
		return "", fmt.Errorf("wait %q on %s: %w", waitSelector, url, err)
	}
	return html, nil
}
