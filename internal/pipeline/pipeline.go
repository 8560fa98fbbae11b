// Package pipeline orchestrates one reconciliation pass: load the
// tracked catalog, scrape the ongoing listing, walk matched anime and
// their episodes, and submit discovered download links to ingestion.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"animesync/internal/config"
	"animesync/internal/extract"
	"animesync/internal/mirror"
	"animesync/internal/retry"
	"animesync/pkg/types"
)

// Catalog supplies the tracked title set. Implementations never fail:
// an empty result means there is nothing to reconcile.
type Catalog interface {
	Titles(ctx context.Context) []types.TrackedTitle
}

// Submitter delivers one episode to the ingestion endpoint.
type Submitter interface {
	Submit(ctx context.Context, sub types.EpisodeSubmission) error
}

// Page is a navigable browser tab.
type Page interface {
	Navigate(ctx context.Context, url, waitSelector string) (string, error)
}

// Browser owns the page lifecycle for one run.
type Browser interface {
	Start(ctx context.Context) error
	OpenPage() (Page, error)
	ClosePage(Page)
	Shutdown()
}

var episodeNumber = regexp.MustCompile(`\d+`)

// Pipeline runs the full reconciliation pass. Execution is strictly
// sequential: one page, one navigation in flight at a time.
type Pipeline struct {
	cfg       config.Config
	catalog   Catalog
	browser   Browser
	submitter Submitter
	extractor *extract.Extractor
	retryCfg  retry.Config
	pacer     *Pacer
	logger    *slog.Logger
	now       func() time.Time
}

// New wires a pipeline from its collaborators.
func New(cfg config.Config, cat Catalog, b Browser, sub Submitter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:       cfg,
		catalog:   cat,
		browser:   b,
		submitter: sub,
		extractor: extract.New(cfg.Scrape.Selectors),
		retryCfg: retry.Config{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay.Duration,
			MaxDelay:     cfg.Retry.MaxDelay.Duration,
		},
		pacer:  NewPacer(cfg.Scrape.NavDelay.Duration),
		logger: logger.With("component", "pipeline"),
		now:    time.Now,
	}
}

// Run executes one pass. Failures are contained at the narrowest scope
// that preserves forward progress: only an empty catalog, a browser
// launch failure, or an exhausted listing fetch end the run early.
func (p *Pipeline) Run(ctx context.Context) (report types.RunReport, err error) {
	report = types.RunReport{StartedAt: p.now()}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	titles := p.catalog.Titles(ctx)
	if len(titles) == 0 {
		p.logger.Info("no tracked titles, nothing to do")
		return report, nil
	}
	p.logger.Info("starting pass", "tracked_titles", len(titles))

	if err := p.browser.Start(ctx); err != nil {
		return report, fmt.Errorf("start browser: %w", err)
	}
	defer p.browser.Shutdown()

	page, err := p.browser.OpenPage()
	if err != nil {
		return report, fmt.Errorf("open page: %w", err)
	}
	defer p.browser.ClosePage(page)

	entries, err := p.fetchListing(ctx, page)
	if err != nil {
		return report, err
	}
	report.Listed = len(entries)
	p.logger.Info("listing extracted", "entries", len(entries))

	for _, entry := range entries {
		tracked, ok := p.match(entry, titles)
		if !ok {
			continue
		}
		report.Matched++
		log := p.logger.With("title", entry.Title, "content_id", tracked.ContentID)
		log.Info("processing matched anime")

		if err := p.processAnime(ctx, page, entry, tracked, &report); err != nil {
			report.Failed++
			log.Error("anime processing failed", "error", err)
		}
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
	}

	p.logger.Info("pass complete",
		"listed", report.Listed,
		"matched", report.Matched,
		"submitted", report.Submitted,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)
	return report, nil
}

// fetchListing is retried as a single unit; exhausting it aborts the run.
func (p *Pipeline) fetchListing(ctx context.Context, page Page) ([]types.ListingEntry, error) {
	return retry.DoValue(ctx, p.retryCfg, "fetch listing", func(ctx context.Context) ([]types.ListingEntry, error) {
		if err := p.pacer.Wait(ctx); err != nil {
			return nil, err
		}
		html, err := page.Navigate(ctx, p.cfg.Scrape.ListingURL, p.cfg.Scrape.Selectors.ListingItem)
		if err != nil {
			return nil, err
		}
		return p.extractor.Listing(html, mustParse(p.cfg.Scrape.ListingURL))
	})
}

// match binds at most one tracked title to a listing entry; first match
// wins. Comparison is case-insensitive exact equality, or substring
// containment when opted in. Non-matches are expected, not errors.
func (p *Pipeline) match(entry types.ListingEntry, titles []types.TrackedTitle) (types.TrackedTitle, bool) {
	needle := strings.ToLower(strings.TrimSpace(entry.Title))
	for _, t := range titles {
		if needle == t.NormalizedTitle {
			return t, true
		}
		if p.cfg.Scrape.SubstringMatch && t.NormalizedTitle != "" && strings.Contains(needle, t.NormalizedTitle) {
			return t, true
		}
	}
	return types.TrackedTitle{}, false
}

func (p *Pipeline) processAnime(ctx context.Context, page Page, entry types.ListingEntry, tracked types.TrackedTitle, report *types.RunReport) error {
	sel := p.cfg.Scrape.Selectors
	refs, err := retry.DoValue(ctx, p.retryCfg, "fetch episodes for "+entry.Title, func(ctx context.Context) ([]types.EpisodeRef, error) {
		if err := p.pacer.Wait(ctx); err != nil {
			return nil, err
		}
		html, err := page.Navigate(ctx, entry.DetailURL, sel.EpisodeList)
		if err != nil {
			return nil, err
		}
		return p.extractor.Episodes(html, mustParse(entry.DetailURL))
	})
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		p.logger.Warn("no episodes found", "title", entry.Title)
		report.Skipped++
		return nil
	}

	// Latest-only by default: the reconciliation target is what's new,
	// and resubmitting history every pass is wasteful.
	if !p.cfg.Scrape.AllEpisodes {
		refs = refs[len(refs)-1:]
	}

	for _, ref := range refs {
		if err := p.processEpisode(ctx, page, entry, tracked, ref); err != nil {
			report.Failed++
			p.logger.Error("episode failed", "title", entry.Title, "episode", ref.Label, "error", err)
			continue
		}
		report.Submitted++
	}
	return nil
}

func (p *Pipeline) processEpisode(ctx context.Context, page Page, entry types.ListingEntry, tracked types.TrackedTitle, ref types.EpisodeRef) error {
	sel := p.cfg.Scrape.Selectors
	links, err := retry.DoValue(ctx, p.retryCfg, "fetch links for "+ref.Label, func(ctx context.Context) (types.DownloadLinkSet, error) {
		if err := p.pacer.Wait(ctx); err != nil {
			return nil, err
		}
		html, err := page.Navigate(ctx, ref.URL, sel.DownloadSection)
		if err != nil {
			return nil, err
		}
		return p.extractor.DownloadLinks(html, mustParse(ref.URL))
	})
	if err != nil {
		return err
	}
	if len(links) == 0 {
		p.logger.Warn("no download links found", "title", entry.Title, "episode", ref.Label)
	}

	// Only 480p and 720p are reliably published by the site; higher
	// resolutions ride along as empty placeholders.
	sub := types.EpisodeSubmission{
		ContentID:     tracked.ContentID,
		FileName:      fmt.Sprintf("%s episode %s", entry.Title, ref.Label),
		EpisodeNumber: parseEpisodeNumber(ref.Label),
		Time:          p.now().Format("2006-01-02 15:04:05"),
		URL480:        mirror.Normalize(types.FirstMirror(links.Resolution("480p"))),
		URL720:        mirror.Normalize(types.FirstMirror(links.Resolution("720p"))),
		Title:         entry.Title,
	}

	return retry.Do(ctx, p.retryCfg, "submit "+sub.FileName, func(ctx context.Context) error {
		return p.submitter.Submit(ctx, sub)
	})
}

// parseEpisodeNumber pulls the first run of digits out of a free-text
// label like "Ep 12". Labels without digits default to zero.
func parseEpisodeNumber(label string) int {
	m := episodeNumber.FindString(label)
	if m == "" {
		return 0
	}
	n := 0
	for _, r := range m {
		n = n*10 + int(r-'0')
		if n > 1<<30 {
			return 0
		}
	}
	return n
}

func mustParse(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return u
}
