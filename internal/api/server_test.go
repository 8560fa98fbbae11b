package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"animesync/pkg/types"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	err     error
	block   chan struct{}
	report  types.RunReport
	started chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context) (types.RunReport, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return f.report, f.err
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testServer(runner Runner) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(runner, "s3cret", logger)
}

func request(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	rr := request(t, testServer(&fakeRunner{}), http.MethodGet, "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json content type, got %q", ct)
	}
}

func TestScrapeRequiresSecret(t *testing.T) {
	runner := &fakeRunner{}
	srv := testServer(runner)

	for _, path := range []string{"/api/scrape", "/api/scrape?key=wrong", "/api/scrape?key="} {
		rr := request(t, srv, http.MethodGet, path)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rr.Code)
		}
	}
	if runner.callCount() != 0 {
		t.Fatalf("pipeline must not run without a valid secret, ran %d times", runner.callCount())
	}
}

func TestScrapeEmptySecretRejectsEverything(t *testing.T) {
	runner := &fakeRunner{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(runner, "", logger)

	rr := request(t, srv, http.MethodGet, "/api/scrape?key=")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when no secret is configured, got %d", rr.Code)
	}
	if runner.callCount() != 0 {
		t.Fatal("pipeline must not run when no secret is configured")
	}
}

func TestScrapeRunsPipeline(t *testing.T) {
	runner := &fakeRunner{report: types.RunReport{Submitted: 2}}
	rr := request(t, testServer(runner), http.MethodPost, "/api/scrape?key=s3cret")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", rr.Code, rr.Body.String())
	}
	if runner.callCount() != 1 {
		t.Fatalf("expected exactly one run, got %d", runner.callCount())
	}
}

func TestScrapeReportsFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("browser launch failed")}
	rr := request(t, testServer(runner), http.MethodGet, "/api/scrape?key=s3cret")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestScrapeSingleFlight(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{}), started: make(chan struct{}, 1)}
	srv := testServer(runner)

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- request(t, srv, http.MethodGet, "/api/scrape?key=s3cret")
	}()
	<-runner.started

	rr := request(t, srv, http.MethodGet, "/api/scrape?key=s3cret")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 while a scrape is in flight, got %d", rr.Code)
	}

	close(runner.block)
	if first := <-done; first.Code != http.StatusOK {
		t.Fatalf("expected first trigger to complete with 200, got %d", first.Code)
	}
	if runner.callCount() != 1 {
		t.Fatalf("expected a single pipeline run, got %d", runner.callCount())
	}
}
