package types

import (
	"sort"
	"strings"
	"time"
)

// TrackedTitle is an anime already known to the remote catalog.
type TrackedTitle struct {
	ContentID       int64  `json:"content_id"`
	NormalizedTitle string `json:"title"`
}

// ListingEntry is one item scraped from the ongoing-anime listing page.
type ListingEntry struct {
	Title     string
	DetailURL string
}

// EpisodeRef points at one episode button on an anime detail page.
// Refs are kept in document order; by site convention the last one is
// the latest episode.
type EpisodeRef struct {
	Label string
	URL   string
}

// LinkProvider classifies where a download link is hosted.
type LinkProvider string

const (
	ProviderMirror LinkProvider = "mirror"
	ProviderOther  LinkProvider = "other"
)

// DownloadLink is a single candidate link inside a resolution bucket.
type DownloadLink struct {
	URL      string
	Provider LinkProvider
}

// DownloadLinkSet maps a resolution label (eg. "MP4 480p") to its
// candidate links in page order.
type DownloadLinkSet map[string][]DownloadLink

// Resolution returns the candidate links for a resolution token such as
// "480p". When several headings carry the token (eg. "MKV 480p" next to
// "MP4 480p") the choice is deterministic: headings mentioning mp4 win,
// ties break lexicographically.
func (s DownloadLinkSet) Resolution(token string) []DownloadLink {
	token = strings.ToLower(token)
	var keys []string
	for k := range s {
		if strings.Contains(strings.ToLower(k), token) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Slice(keys, func(i, j int) bool {
		mi := strings.Contains(strings.ToLower(keys[i]), "mp4")
		mj := strings.Contains(strings.ToLower(keys[j]), "mp4")
		if mi != mj {
			return mi
		}
		return keys[i] < keys[j]
	})
	return s[keys[0]]
}

// FirstMirror returns the first mirror-provider link in the bucket, or
// the empty string when none is present.
func FirstMirror(links []DownloadLink) string {
	for _, l := range links {
		if l.Provider == ProviderMirror {
			return l.URL
		}
	}
	return ""
}

// EpisodeSubmission is the payload posted to the ingestion endpoint.
type EpisodeSubmission struct {
	ContentID     int64  `json:"content_id"`
	FileName      string `json:"file_name"`
	EpisodeNumber int    `json:"episode_number"`
	Time          string `json:"time"`
	View          int    `json:"view"`
	URL480        string `json:"url_480"`
	URL720        string `json:"url_720"`
	URL1080       string `json:"url_1080"`
	URL1440       string `json:"url_1440"`
	URL2160       string `json:"url_2160"`
	Title         string `json:"title"`
}

// RunReport summarises one reconciliation pass.
type RunReport struct {
	Listed    int           `json:"listed"`
	Matched   int           `json:"matched"`
	Submitted int           `json:"submitted"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"started_at"`
}
