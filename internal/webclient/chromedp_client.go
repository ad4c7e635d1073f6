package webclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/apoliade/OpenTermsArchive/internal/logging"
)

// ChromeDPClient renders pages in headless Chrome before capture, for
// documents whose text only exists after client-side scripts have run.
// GET only: navigation is the only verb a browser tab has.
type ChromeDPClient struct {
	browserCtx context.Context
	stop       context.CancelFunc

	closed atomic.Bool
	tabs   sync.WaitGroup

	timeout time.Duration
	settle  time.Duration
	logger  logging.Logger
}

func NewChromeDPClient(cfg Config, logger logging.Logger) (WebClient, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	settle := cfg.SettleDelay
	if settle <= 0 {
		settle = DefaultConfig().SettleDelay
	}

	browserCtx, stop := chromedp.NewContext(context.Background())
	// First Run starts the browser; failing here beats failing per page.
	if err := chromedp.Run(browserCtx); err != nil {
		stop()
		return nil, fmt.Errorf("start headless browser: %w", err)
	}

	return &ChromeDPClient{
		browserCtx: browserCtx,
		stop:       stop,
		timeout:    timeout,
		settle:     settle,
		logger:     logger.With(logging.Field{Key: "backend", Value: "chromedp"}),
	}, nil
}

// Do navigates a fresh tab to the request URL, waits for the page to load
// and its scripts to settle, then captures the rendered DOM. Status and
// headers come from the main document response.
func (c *ChromeDPClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || req.URL == "" {
		return nil, errors.New("webclient: request without URL")
	}
	if method := strings.ToUpper(req.Method); method != "" && method != http.MethodGet {
		return nil, fmt.Errorf("chromedp backend cannot %s %s", method, req.URL)
	}
	if c.closed.Load() {
		return nil, errors.New("chromedp backend is closed")
	}

	c.tabs.Add(1)
	defer c.tabs.Done()

	tabCtx, closeTab := chromedp.NewContext(c.browserCtx)
	defer closeTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, c.timeout)
	defer cancelTimeout()
	// Honor the caller's context without racing the tab teardown.
	release := context.AfterFunc(ctx, cancelTimeout)
	defer release()

	if len(req.Headers) > 0 {
		if err := chromedp.Run(tabCtx, network.Enable(), network.SetExtraHTTPHeaders(toNetworkHeaders(req.Headers))); err != nil {
			return nil, fmt.Errorf("set headers for %s: %w", req.URL, err)
		}
	}

	started := time.Now()
	main, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(req.URL))
	if err != nil {
		return nil, fmt.Errorf("navigate %s: %w", req.URL, err)
	}

	var rendered string
	if err := chromedp.Run(tabCtx,
		chromedp.WaitReady("body"),
		chromedp.Sleep(c.settle),
		chromedp.OuterHTML("html", &rendered),
	); err != nil {
		return nil, fmt.Errorf("capture %s: %w", req.URL, err)
	}

	resp := &Response{
		Request:   req,
		Headers:   http.Header{},
		Body:      []byte(rendered),
		FetchedAt: started,
	}
	if main != nil {
		resp.StatusCode = int(main.Status)
		resp.Headers = fromNetworkHeaders(main.Headers)
	}

	c.logger.Debug("page rendered",
		logging.Field{Key: "url", Value: req.URL},
		logging.Field{Key: "status", Value: resp.StatusCode},
		logging.Field{Key: "elapsed", Value: time.Since(started).String()})

	return resp, nil
}

// Get is a convenience method for simple GET requests
func (c *ChromeDPClient) Get(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, URL: url})
}

// Close waits for open tabs, then shuts the browser down.
func (c *ChromeDPClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.tabs.Wait()
	c.stop()
	return nil
}

func toNetworkHeaders(h http.Header) network.Headers {
	out := network.Headers{}
	for key, values := range h {
		out[key] = strings.Join(values, ", ")
	}
	return out
}

func fromNetworkHeaders(src network.Headers) http.Header {
	out := http.Header{}
	for key, value := range src {
		if s, ok := value.(string); ok {
			out.Add(key, s)
			continue
		}
		out.Add(key, fmt.Sprint(value))
	}
	return out
}
