// Package catalog fetches the locally tracked titles from the remote
// catalog API.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"animesync/internal/httpc"
	"animesync/pkg/types"
)

// Client fetches tracked titles, caching a successful result for a
// bounded window. Titles never returns an error: any failure degrades to
// the cached list if one exists, else the empty list ("nothing to do").
type Client struct {
	endpoint string
	http     *http.Client
	cacheTTL time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	cached    []types.TrackedTitle
	fetchedAt time.Time
}

// New builds a catalog client. A cacheTTL of zero disables caching.
func New(endpoint string, timeout, cacheTTL time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint: endpoint,
		http:     httpc.New(timeout),
		cacheTTL: cacheTTL,
		logger:   logger.With("component", "catalog"),
	}
}

type envelope struct {
	Success bool     `json:"success"`
	Data    []record `json:"data"`
}

// record tolerates content_id arriving as either a JSON number or a
// quoted string, which the upstream PHP endpoint has done both of.
type record struct {
	ContentID json.Number `json:"content_id"`
	Title     string      `json:"title"`
}

// Titles returns the tracked title set for one pipeline run.
func (c *Client) Titles(ctx context.Context) []types.TrackedTitle {
	c.mu.Lock()
	if c.cacheTTL > 0 && !c.fetchedAt.IsZero() && time.Since(c.fetchedAt) < c.cacheTTL {
		cached := c.cached
		c.mu.Unlock()
		c.logger.Debug("serving cached titles", "count", len(cached))
		return cached
	}
	c.mu.Unlock()

	titles, err := c.fetch(ctx)
	if err != nil {
		c.mu.Lock()
		stale := c.cached
		hasStale := !c.fetchedAt.IsZero()
		c.mu.Unlock()
		if hasStale {
			c.logger.Warn("catalog fetch failed, serving stale cache", "error", err, "count", len(stale))
			return stale
		}
		c.logger.Error("catalog fetch failed", "error", err)
		return nil
	}

	c.mu.Lock()
	c.cached = titles
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	c.logger.Info("catalog fetched", "count", len(titles))
	return titles
}

func (c *Client) fetch(ctx context.Context) ([]types.TrackedTitle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog get: %w", err)
	}
	body, err := httpc.ReadBody(resp, 0)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if !env.Success {
		return nil, fmt.Errorf("catalog envelope reports success=false")
	}

	titles := make([]types.TrackedTitle, 0, len(env.Data))
	for _, rec := range env.Data {
		id, err := rec.ContentID.Int64()
		if err != nil {
			c.logger.Warn("skipping record with invalid content_id", "content_id", rec.ContentID.String(), "title", rec.Title)
			continue
		}
		titles = append(titles, types.TrackedTitle{
			ContentID:       id,
			NormalizedTitle: strings.ToLower(strings.TrimSpace(rec.Title)),
		})
	}
	return titles, nil
}
