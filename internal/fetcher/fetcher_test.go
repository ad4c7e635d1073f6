package fetcher_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/apoliade/OpenTermsArchive/internal/fetcher"
	"github.com/apoliade/OpenTermsArchive/internal/testutil"
	"github.com/apoliade/OpenTermsArchive/internal/webclient"
)

func newTestFetcher(t *testing.T, timeout time.Duration) *fetcher.HTTPFetcher {
	t.Helper()
	logger := &testutil.DummyLogger{}

	cfg := webclient.DefaultConfig()
	cfg.Timeout = timeout
	wc, err := webclient.NewNetHTTPClient(cfg, logger)
	if err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}
	t.Cleanup(func() { wc.Close() })

	f, err := fetcher.New(wc, nil, logger)
	if err != nil {
		t.Fatalf("fetcher.New: %v", err)
	}
	return f
}

// ─── Success ───────────────────────────────────────────────────────────

func TestFetch_ReturnsContentAndMimeType(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><main>Hello</main></html>"))
	}))
	t.Cleanup(srv.Close)

	f := newTestFetcher(t, 5*time.Second)
	result, err := f.Fetch(context.Background(), srv.URL, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.MimeType != "text/html" {
		t.Errorf("mime = %q, want text/html", result.MimeType)
	}
	if string(result.Content) != "<html><main>Hello</main></html>" {
		t.Errorf("unexpected content %q", result.Content)
	}
}

func TestFetch_DefaultsMimeTypeToHTML(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Del("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	f := newTestFetcher(t, 5*time.Second)
	result, err := f.Fetch(context.Background(), srv.URL, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.MimeType != "text/html" {
		t.Errorf("mime = %q, want default text/html", result.MimeType)
	}
}

// ─── Upstream failures ─────────────────────────────────────────────────

func TestFetch_ErrorStatusIsInaccessible(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	f := newTestFetcher(t, 5*time.Second)
	_, err := f.Fetch(context.Background(), srv.URL, false)

	var inaccessible *fetcher.InaccessibleContentError
	if !errors.As(err, &inaccessible) {
		t.Fatalf("expected InaccessibleContentError, got %v", err)
	}
	if inaccessible.Reason != "http 503" {
		t.Errorf("reason = %q, want http 503", inaccessible.Reason)
	}
}

func TestFetch_ClientErrorStatusIsInaccessible(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	f := newTestFetcher(t, 5*time.Second)
	_, err := f.Fetch(context.Background(), srv.URL, false)

	var inaccessible *fetcher.InaccessibleContentError
	if !errors.As(err, &inaccessible) {
		t.Fatalf("expected InaccessibleContentError, got %v", err)
	}
}

func TestFetch_ConnectionFailureIsInaccessible(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	f := newTestFetcher(t, 2*time.Second)
	_, err := f.Fetch(context.Background(), url, false)

	var inaccessible *fetcher.InaccessibleContentError
	if !errors.As(err, &inaccessible) {
		t.Fatalf("expected InaccessibleContentError for refused connection, got %v", err)
	}
}

func TestFetch_TimeoutIsInaccessible(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	f := newTestFetcher(t, 100*time.Millisecond)
	_, err := f.Fetch(context.Background(), srv.URL, false)

	var inaccessible *fetcher.InaccessibleContentError
	if !errors.As(err, &inaccessible) {
		t.Fatalf("expected InaccessibleContentError for timeout, got %v", err)
	}
}

// ─── Scripted fallback ─────────────────────────────────────────────────

func TestFetch_ScriptedFallsBackToStaticWithoutBrowser(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("static"))
	}))
	t.Cleanup(srv.Close)

	f := newTestFetcher(t, 5*time.Second)
	result, err := f.Fetch(context.Background(), srv.URL, true)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(result.Content) != "static" {
		t.Errorf("unexpected content %q", result.Content)
	}
}
