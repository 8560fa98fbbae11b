// Package ingest submits discovered episodes to the remote ingestion API.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"animesync/internal/httpc"
	"animesync/pkg/types"
)

// Client posts episode submissions. The ingestion endpoint is keyed by
// content_id plus episode_number, so repeated submissions upsert rather
// than duplicate; callers may retry freely.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

// New builds an ingestion client.
func New(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint: endpoint,
		http:     httpc.New(timeout),
		logger:   logger.With("component", "ingest"),
	}
}

type ack struct {
	Message string `json:"message"`
}

// Submit posts one episode. Non-2xx responses and transport failures are
// errors for the enclosing retry policy to consume.
func (c *Client) Submit(ctx context.Context, sub types.EpisodeSubmission) error {
	payload, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ingest post: %w", err)
	}
	body, err := httpc.ReadBody(resp, 0)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ingest returned status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var a ack
	if err := json.Unmarshal(body, &a); err == nil && a.Message != "" {
		c.logger.Info("episode submitted",
			"content_id", sub.ContentID,
			"episode", sub.EpisodeNumber,
			"message", a.Message,
		)
	} else {
		c.logger.Info("episode submitted",
			"content_id", sub.ContentID,
			"episode", sub.EpisodeNumber,
		)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
