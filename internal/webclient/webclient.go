package webclient

// Module: webclient
// Backend-agnostic page retrieval. The fetcher picks a backend per document:
// plain HTTP for static pages, a headless browser for pages that only render
// through client-side scripts.

import (
	"context"
	"net/http"
	"time"
)

// Request is a backend-agnostic page request.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

// Response is the retrieved page.
type Response struct {
	Request    *Request
	Headers    http.Header
	Body       []byte
	StatusCode int
	FetchedAt  time.Time
}

// WebClient retrieves pages.
type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)

	// Get is a convenience method for simple GET requests
	Get(ctx context.Context, url string) (*Response, error)

	Close() error
}
