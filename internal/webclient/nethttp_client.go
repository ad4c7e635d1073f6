package webclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/apoliade/OpenTermsArchive/internal/logging"
)

// Legal documents are text; anything past this cap is not a page we want to
// archive wholesale.
const maxBodyBytes = 10 << 20

// NetHTTPClient retrieves pages over plain HTTP. It is the right backend for
// every document that ships its content in the initial response body.
type NetHTTPClient struct {
	client    *http.Client
	userAgent string
	logger    logging.Logger
}

func NewNetHTTPClient(cfg Config, logger logging.Logger) (WebClient, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultConfig().UserAgent
	}

	return &NetHTTPClient{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    logger.With(logging.Field{Key: "backend", Value: "nethttp"}),
	}, nil
}

// Do executes one request and reads the full (capped) body.
func (c *NetHTTPClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || req.URL == "" {
		return nil, errors.New("webclient: request without URL")
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, req.URL, err)
	}

	// Default identity first, so per-request headers can override it.
	httpReq.Header.Set("User-Agent", c.userAgent)
	for key, values := range req.Headers {
		httpReq.Header.Del(key)
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	started := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", req.URL, err)
	}

	c.logger.Debug("page retrieved",
		logging.Field{Key: "url", Value: req.URL},
		logging.Field{Key: "status", Value: resp.StatusCode},
		logging.Field{Key: "bytes", Value: len(content)},
		logging.Field{Key: "elapsed", Value: time.Since(started).String()})

	return &Response{
		Request:    req,
		Headers:    resp.Header,
		Body:       content,
		StatusCode: resp.StatusCode,
		FetchedAt:  started,
	}, nil
}

// Get is a convenience method for simple GET requests
func (c *NetHTTPClient) Get(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, URL: url})
}

func (c *NetHTTPClient) Close() error { return nil }
