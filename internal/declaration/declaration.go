package declaration

// Module: declaration
// Service declarations describe which documents to track for each service
// and how to extract their legal text.

// Document describes one tracked legal document of a service.
type Document struct {
	// Location is the remote URL the document is fetched from.
	Location string `json:"fetch"`

	// ContentSelectors identify the subtrees holding the legal text.
	// An empty list selects the whole document body.
	ContentSelectors []string `json:"select,omitempty"`

	// NoiseSelectors identify subtrees stripped before extraction.
	NoiseSelectors []string `json:"remove,omitempty"`

	// Filters names the registered filter functions. They run on the parsed
	// page after noise removal and before the content selectors are applied.
	Filters []string `json:"filter,omitempty"`

	// ExecuteClientScripts requests a headless-browser fetch for pages that
	// only render their content through JavaScript.
	ExecuteClientScripts bool `json:"executeClientScripts,omitempty"`
}

// Service is one provider whose documents are tracked. Documents is keyed by
// the human document type, e.g. "Terms of Service".
type Service struct {
	ID        string              `json:"-"`
	Name      string              `json:"name"`
	Documents map[string]Document `json:"documents"`
}
