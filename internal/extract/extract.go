// Package extract implements the DOM extraction rules for the target
// site's listing, detail, and episode pages. All functions operate on
// already-rendered HTML so they stay independent of the browser session.
package extract

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"animesync/internal/config"
	"animesync/internal/mirror"
	"animesync/pkg/types"
)

// ErrNoEpisodeList reports that the episode-list container is absent from
// a detail page. That is a hard failure for the anime, unlike an empty
// download section which just means nothing to collect.
var ErrNoEpisodeList = errors.New("episode list container not found")

var resolutionToken = regexp.MustCompile(`(?i)\d+p`)

// Extractor applies the configured selectors to rendered pages.
type Extractor struct {
	sel config.Selectors
}

// New builds an extractor for one set of site selectors.
func New(sel config.Selectors) *Extractor {
	return &Extractor{sel: sel}
}

// Listing extracts the ongoing-anime entries from the listing page.
// Items whose heading anchor lacks a resolvable href are dropped.
func (e *Extractor) Listing(html string, base *url.URL) ([]types.ListingEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	var entries []types.ListingEntry
	doc.Find(e.sel.ListingItem).Each(func(_ int, item *goquery.Selection) {
		anchor := item.Find(e.sel.ListingAnchor).First()
		href, ok := anchor.Attr("href")
		if !ok {
			return
		}
		link := resolveHref(base, href)
		if link == "" {
			return
		}
		entries = append(entries, types.ListingEntry{
			Title:     collapseSpace(anchor.Text()),
			DetailURL: link,
		})
	})
	return entries, nil
}

// Episodes extracts the episode buttons from a detail page in document
// order; by site convention the last ref is the latest episode. A missing
// container is an error so the caller can retry or skip the anime.
func (e *Extractor) Episodes(html string, base *url.URL) ([]types.EpisodeRef, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse detail page: %w", err)
	}

	container := doc.Find(e.sel.EpisodeList)
	if container.Length() == 0 {
		return nil, ErrNoEpisodeList
	}

	var refs []types.EpisodeRef
	container.Find(e.sel.EpisodeButton).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		link := resolveHref(base, href)
		if link == "" {
			return
		}
		refs = append(refs, types.EpisodeRef{
			Label: collapseSpace(a.Text()),
			URL:   link,
		})
	})
	return refs, nil
}

// DownloadLinks walks the quality sections of an episode page: each
// heading carrying a resolution token opens a bucket keyed by the heading
// text, filled by sibling-walking until the next heading and collecting
// every anchor on the way. A missing container yields an empty set, not
// an error.
func (e *Extractor) DownloadLinks(html string, base *url.URL) (types.DownloadLinkSet, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse episode page: %w", err)
	}

	container := doc.Find(e.sel.DownloadSection)
	if container.Length() == 0 {
		return types.DownloadLinkSet{}, nil
	}

	set := types.DownloadLinkSet{}
	walkSections(container, e.sel.QualityHeading,
		func(heading string) bool { return resolutionToken.MatchString(heading) },
		func(heading string, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok {
				return
			}
			link := resolveHref(base, href)
			if link == "" {
				return
			}
			provider := types.ProviderOther
			if mirror.IsMirror(link) {
				provider = types.ProviderMirror
			}
			set[heading] = append(set[heading], types.DownloadLink{URL: link, Provider: provider})
		})
	return set, nil
}

// walkSections runs the section-then-links-until-next-heading traversal:
// for every node matching headingSel whose text passes accept, visit is
// called with each anchor among the heading's following siblings up to
// the next heading. Headings with no following links produce no visits.
func walkSections(container *goquery.Selection, headingSel string, accept func(string) bool, visit func(heading string, a *goquery.Selection)) {
	container.Find(headingSel).Each(func(_ int, h *goquery.Selection) {
		heading := collapseSpace(h.Text())
		if !accept(heading) {
			return
		}
		h.NextUntil(headingSel).Each(func(_ int, sib *goquery.Selection) {
			if goquery.NodeName(sib) == "a" {
				visit(heading, sib)
				return
			}
			sib.Find("a").Each(func(_ int, a *goquery.Selection) {
				visit(heading, a)
			})
		})
	})
}

func resolveHref(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
		return ""
	}
	if base == nil {
		return href
	}
	u, err := base.Parse(href)
	if err != nil {
		return ""
	}
	return u.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
