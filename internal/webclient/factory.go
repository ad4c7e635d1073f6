package webclient

import (
	"fmt"
	"strings"

	"github.com/apoliade/OpenTermsArchive/internal/logging"
)

// New constructs the backend selected by cfg.Client. An empty selection
// means plain HTTP; the browser backend is only worth its startup cost for
// script-rendered documents.
func New(cfg Config, logger logging.Logger) (WebClient, error) {
	switch Client(strings.ToLower(strings.TrimSpace(string(cfg.Client)))) {
	case ClientNetHTTP, "":
		return NewNetHTTPClient(cfg, logger)
	case ClientChromedp:
		return NewChromeDPClient(cfg, logger)
	default:
		return nil, fmt.Errorf("webclient: unknown backend %q (want %q or %q)", cfg.Client, ClientNetHTTP, ClientChromedp)
	}
}
