package catalog

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTitlesSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"success":true,"data":[{"content_id":42,"title":"  Demo Anime  "},{"content_id":"7","title":"Other Show"}]}`)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, 0, discardLogger())
	titles := c.Titles(context.Background())
	if len(titles) != 2 {
		t.Fatalf("expected 2 titles, got %d", len(titles))
	}
	if titles[0].ContentID != 42 || titles[0].NormalizedTitle != "demo anime" {
		t.Fatalf("expected lowercase trimmed title with numeric id, got %+v", titles[0])
	}
	if titles[1].ContentID != 7 {
		t.Fatalf("expected string content_id to decode, got %+v", titles[1])
	}
}

func TestTitlesMalformedEnvelope(t *testing.T) {
	cases := map[string]string{
		"success false": `{"success":false,"data":[]}`,
		"not json":      `<html>maintenance</html>`,
		"empty body":    ``,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, body)
			}))
			defer srv.Close()

			c := New(srv.URL, 5*time.Second, 0, discardLogger())
			if titles := c.Titles(context.Background()); len(titles) != 0 {
				t.Fatalf("expected no titles, got %d", len(titles))
			}
		})
	}
}

func TestTitlesNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := New(srv.URL, time.Second, 0, discardLogger())
	if titles := c.Titles(context.Background()); len(titles) != 0 {
		t.Fatalf("expected no titles on network failure, got %d", len(titles))
	}
}

func TestTitlesCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		io.WriteString(w, `{"success":true,"data":[{"content_id":1,"title":"a"}]}`)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, time.Hour, discardLogger())
	for i := 0; i < 3; i++ {
		if titles := c.Titles(context.Background()); len(titles) != 1 {
			t.Fatalf("call %d: expected 1 title, got %d", i, len(titles))
		}
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected a single upstream fetch within the cache window, got %d", got)
	}
}

func TestTitlesStaleCacheOnFailure(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, `{"success":true,"data":[{"content_id":1,"title":"a"}]}`)
	}))
	defer srv.Close()

	// TTL zero forces a refetch on every call, so the second call hits the
	// failing upstream and must fall back to the previously cached list.
	c := New(srv.URL, 5*time.Second, 0, discardLogger())
	if titles := c.Titles(context.Background()); len(titles) != 1 {
		t.Fatalf("seed fetch failed: got %d titles", len(titles))
	}

	fail.Store(true)
	titles := c.Titles(context.Background())
	if len(titles) != 1 || titles[0].ContentID != 1 {
		t.Fatalf("expected stale cache on failure, got %+v", titles)
	}
}
