package webclient

import "time"

type Client string

const (
	ClientNetHTTP  Client = "nethttp"
	ClientChromedp Client = "chromedp"
)

// Config holds the options shared by all backends.
type Config struct {
	Client Client

	// Timeout bounds a single page retrieval.
	Timeout time.Duration

	// UserAgent identifies the archive crawler to upstream sites.
	UserAgent string

	// SettleDelay is how long the chromedp backend lets a loaded page run
	// its scripts before the DOM is captured.
	SettleDelay time.Duration
}

// DefaultConfig returns a Config with development defaults.
func DefaultConfig() Config {
	return Config{
		Client:      ClientNetHTTP,
		Timeout:     30 * time.Second,
		UserAgent:   "OpenTermsArchive-Bot",
		SettleDelay: 2 * time.Second,
	}
}
