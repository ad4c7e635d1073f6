// Package testutil provides shared test doubles for use across package
// tests. All dummies implement the corresponding interfaces from the
// production code, allowing injection into components under test without
// real network I/O.
package testutil

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/apoliade/OpenTermsArchive/internal/fetcher"
	"github.com/apoliade/OpenTermsArchive/internal/logging"
	"github.com/apoliade/OpenTermsArchive/internal/webclient"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// ─── Fetcher ───────────────────────────────────────────────────────────

// FetchResponse is one canned fetch result for DummyFetcher.
type FetchResponse struct {
	MimeType string
	Content  []byte
	Err      error
}

// DummyFetcher implements fetcher.Fetcher from a canned response table and
// instruments concurrency: MaxConcurrent records the highest number of
// fetches that were ever in flight at once.
type DummyFetcher struct {
	ResponseDelay time.Duration
	Responses     map[string]FetchResponse

	mu            sync.Mutex
	Fetched       []string
	current       int
	MaxConcurrent int
}

func (d *DummyFetcher) Fetch(ctx context.Context, location string, executeClientScripts bool) (*fetcher.Result, error) {
	d.mu.Lock()
	d.current++
	if d.current > d.MaxConcurrent {
		d.MaxConcurrent = d.current
	}
	d.Fetched = append(d.Fetched, location)
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.current--
		d.mu.Unlock()
	}()

	if d.ResponseDelay > 0 {
		select {
		case <-time.After(d.ResponseDelay):
		case <-ctx.Done():
			return nil, &fetcher.InaccessibleContentError{Location: location, Reason: "canceled", Err: ctx.Err()}
		}
	}

	resp, ok := d.Responses[location]
	if !ok {
		return &fetcher.Result{MimeType: "text/html", Content: []byte("<html><body>ok:" + location + "</body></html>")}, nil
	}
	if resp.Err != nil {
		return nil, resp.Err
	}

	mime := resp.MimeType
	if mime == "" {
		mime = "text/html"
	}
	return &fetcher.Result{MimeType: mime, Content: resp.Content}, nil
}

// ─── WebClient ─────────────────────────────────────────────────────────

// DummyWebClient implements webclient.WebClient.
// By default it returns body "ok:<url>" with status 200.
// Set StatusCodes[url] to force a specific status, FailURLs[url] for an
// error.
type DummyWebClient struct {
	ResponseDelay time.Duration
	FailURLs      map[string]bool
	StatusCodes   map[string]int
	ContentTypes  map[string]string

	mu       sync.Mutex
	Requests []*webclient.Request
}

func (d *DummyWebClient) Do(ctx context.Context, req *webclient.Request) (*webclient.Response, error) {
	if d.ResponseDelay > 0 {
		select {
		case <-time.After(d.ResponseDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	d.Requests = append(d.Requests, req)
	d.mu.Unlock()

	if d.FailURLs != nil && d.FailURLs[req.URL] {
		return nil, &errString{"dummy fetch fail for " + req.URL}
	}

	status := 200
	if d.StatusCodes != nil {
		if code, ok := d.StatusCodes[req.URL]; ok {
			status = code
		}
	}

	headers := http.Header{}
	if d.ContentTypes != nil {
		if ct, ok := d.ContentTypes[req.URL]; ok {
			headers.Set("Content-Type", ct)
		}
	}

	return &webclient.Response{
		Request:    req,
		Body:       []byte("ok:" + req.URL),
		Headers:    headers,
		StatusCode: status,
		FetchedAt:  time.Now(),
	}, nil
}

func (d *DummyWebClient) Get(ctx context.Context, url string) (*webclient.Response, error) {
	return d.Do(ctx, &webclient.Request{Method: "GET", URL: url})
}

func (d *DummyWebClient) Close() error { return nil }

// ─── Listener ──────────────────────────────────────────────────────────

// Event is one recorded lifecycle event.
type Event struct {
	Name         string
	ServiceID    string
	DocumentType string
	RecordID     string
	Err          error
}

// RecordingListener implements every tracker event capability and records
// emissions in order.
type RecordingListener struct {
	mu     sync.Mutex
	Events []Event
}

func (r *RecordingListener) add(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, ev)
}

func (r *RecordingListener) OnFirstSnapshotRecorded(serviceID, documentType, snapshotID string) {
	r.add(Event{Name: "firstSnapshotRecorded", ServiceID: serviceID, DocumentType: documentType, RecordID: snapshotID})
}

func (r *RecordingListener) OnSnapshotRecorded(serviceID, documentType, snapshotID string) {
	r.add(Event{Name: "snapshotRecorded", ServiceID: serviceID, DocumentType: documentType, RecordID: snapshotID})
}

func (r *RecordingListener) OnSnapshotNotChanged(serviceID, documentType string) {
	r.add(Event{Name: "snapshotNotChanged", ServiceID: serviceID, DocumentType: documentType})
}

func (r *RecordingListener) OnFirstVersionRecorded(serviceID, documentType, versionID string) {
	r.add(Event{Name: "firstVersionRecorded", ServiceID: serviceID, DocumentType: documentType, RecordID: versionID})
}

func (r *RecordingListener) OnVersionRecorded(serviceID, documentType, versionID string) {
	r.add(Event{Name: "versionRecorded", ServiceID: serviceID, DocumentType: documentType, RecordID: versionID})
}

func (r *RecordingListener) OnVersionNotChanged(serviceID, documentType string) {
	r.add(Event{Name: "versionNotChanged", ServiceID: serviceID, DocumentType: documentType})
}

func (r *RecordingListener) OnRecordsPublished() {
	r.add(Event{Name: "recordsPublished"})
}

func (r *RecordingListener) OnInaccessibleContent(err error, serviceID, documentType string) {
	r.add(Event{Name: "inaccessibleContent", ServiceID: serviceID, DocumentType: documentType, Err: err})
}

func (r *RecordingListener) OnError(err error, serviceID, documentType string) {
	r.add(Event{Name: "error", ServiceID: serviceID, DocumentType: documentType, Err: err})
}

// Named returns the recorded events with the given name.
func (r *RecordingListener) Named(name string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.Events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// ─── helpers ───────────────────────────────────────────────────────────

type errString struct{ s string }

func (e *errString) Error() string { return e.s }
