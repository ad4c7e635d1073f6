package fetcher

// Module: fetcher
// Retrieves declared documents over HTTP and classifies upstream failures.
// Documents that only render through client-side scripts go through the
// scripted (headless browser) client, everything else through plain HTTP.

import (
	"context"
	"fmt"
	"mime"
	"net/http"

	"github.com/apoliade/OpenTermsArchive/internal/logging"
	"github.com/apoliade/OpenTermsArchive/internal/webclient"
)

// InaccessibleContentError marks a recoverable upstream failure: the remote
// document could not be retrieved right now (HTTP error status, timeout,
// transport failure). It is reported per document and never fatal to a batch.
type InaccessibleContentError struct {
	Location string
	Reason   string
	Err      error
}

func (e *InaccessibleContentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("inaccessible content at %s: %s: %v", e.Location, e.Reason, e.Err)
	}
	return fmt.Sprintf("inaccessible content at %s: %s", e.Location, e.Reason)
}

func (e *InaccessibleContentError) Unwrap() error { return e.Err }

// Result is a successfully fetched document.
type Result struct {
	MimeType string
	Content  []byte
}

// Fetcher retrieves one document location.
type Fetcher interface {
	Fetch(ctx context.Context, location string, executeClientScripts bool) (*Result, error)
}

// HTTPFetcher implements Fetcher over two webclient backends.
type HTTPFetcher struct {
	static   webclient.WebClient
	scripted webclient.WebClient
	logger   logging.Logger
}

// New creates a Fetcher. scripted may be nil, in which case documents
// declaring ExecuteClientScripts fall back to the static client.
func New(static, scripted webclient.WebClient, logger logging.Logger) (*HTTPFetcher, error) {
	if static == nil {
		return nil, fmt.Errorf("fetcher: static webclient is required")
	}
	return &HTTPFetcher{
		static:   static,
		scripted: scripted,
		logger:   logger,
	}, nil
}

// Fetch retrieves the document at location and returns its mime type and
// bytes. Upstream failures come back as *InaccessibleContentError.
func (f *HTTPFetcher) Fetch(ctx context.Context, location string, executeClientScripts bool) (*Result, error) {
	wc := f.static
	if executeClientScripts {
		if f.scripted != nil {
			wc = f.scripted
		} else {
			f.logger.Warn("no scripted webclient configured, falling back to static fetch",
				logging.Field{Key: "location", Value: location})
		}
	}

	resp, err := wc.Get(ctx, location)
	if err != nil {
		return nil, &InaccessibleContentError{Location: location, Reason: "request failed", Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &InaccessibleContentError{
			Location: location,
			Reason:   fmt.Sprintf("http %d", resp.StatusCode),
		}
	}

	mimeType := "text/html"
	if ct := resp.Headers.Get("Content-Type"); ct != "" {
		if parsed, _, parseErr := mime.ParseMediaType(ct); parseErr == nil {
			mimeType = parsed
		}
	}

	f.logger.Debug("fetched document",
		logging.Field{Key: "location", Value: location},
		logging.Field{Key: "mime_type", Value: mimeType},
		logging.Field{Key: "bytes", Value: len(resp.Body)})

	return &Result{MimeType: mimeType, Content: resp.Body}, nil
}
