package pipeline

import (
	"log/slog"

	"animesync/internal/browser"
	"animesync/internal/catalog"
	"animesync/internal/config"
	"animesync/internal/ingest"
)

// FromConfig wires a pipeline with its production collaborators: the
// remote catalog, a chromedp session, and the ingestion client.
func FromConfig(cfg config.Config, logger *slog.Logger) *Pipeline {
	cat := catalog.New(cfg.Catalog.Endpoint, cfg.Catalog.Timeout.Duration, cfg.Catalog.CacheTTL.Duration, logger)
	sub := ingest.New(cfg.Ingest.Endpoint, cfg.Ingest.Timeout.Duration, logger)
	session := browser.NewSession(browser.Options{
		UserAgent:   cfg.Browser.UserAgent,
		NavTimeout:  cfg.Browser.NavTimeout.Duration,
		WaitTimeout: cfg.Browser.WaitTimeout.Duration,
		SettleDelay: cfg.Browser.SettleDelay.Duration,
		Headful:     cfg.Browser.Headful,
	}, logger)
	return New(cfg, cat, ChromeBrowser{session}, sub, logger)
}

// ChromeBrowser adapts a browser.Session to the pipeline's Browser
// interface.
type ChromeBrowser struct {
	*browser.Session
}

func (c ChromeBrowser) OpenPage() (Page, error) {
	return c.Session.OpenPage()
}

func (c ChromeBrowser) ClosePage(p Page) {
	if bp, ok := p.(*browser.Page); ok {
		c.Session.ClosePage(bp)
	}
}
