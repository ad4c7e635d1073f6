package filter

// Module: filter
// Extracts the human-meaningful legal text out of a fetched document by
// applying the declaration's selectors and named filter functions, then
// renders the result as markdown.

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/apoliade/OpenTermsArchive/internal/declaration"
	"github.com/apoliade/OpenTermsArchive/internal/logging"
)

// Func transforms a parsed document in place. Named funcs are the Go
// counterpart of per-service filter declarations: registered in code,
// referenced by name from declaration files.
type Func func(doc *goquery.Document) error

var (
	mu       sync.RWMutex
	registry = map[string]Func{}
)

// RegisterNamed registers a named filter function. Name is matched verbatim
// against declaration filter lists. Re-registering a name overwrites it.
func RegisterNamed(name string, fn Func) {
	if name == "" || fn == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	registry[name] = fn
}

func lookupNamed(name string) (Func, bool) {
	mu.RLock()
	defer mu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}

// Engine applies declaration-driven extraction.
type Engine struct {
	logger logging.Logger
}

// NewEngine creates a filter engine.
func NewEngine(logger logging.Logger) *Engine {
	return &Engine{logger: logger.With(logging.Field{Key: "component", Value: "filter"})}
}

// Params describe one extraction.
type Params struct {
	Content  []byte
	MimeType string
	Document declaration.Document

	// IsRefiltering marks extraction from an archived snapshot rather than
	// a fresh fetch. The pipeline is identical; it is logged for operators.
	IsRefiltering bool
}

// Apply extracts the legal text as markdown. It is deterministic for a given
// input: same content, declaration and registered filters produce the same
// output.
func (e *Engine) Apply(p Params) (string, error) {
	switch baseMime(p.MimeType) {
	case "text/html":
		return e.applyHTML(p)
	case "text/markdown", "text/plain":
		// Already textual: selectors do not apply.
		return normalizeText(string(p.Content)), nil
	default:
		return "", fmt.Errorf("filter: unsupported mime type %q", p.MimeType)
	}
}

func baseMime(mimeType string) string {
	base := strings.TrimSpace(strings.ToLower(mimeType))
	if i := strings.Index(base, ";"); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	return base
}

// ValidateSelectors compiles every selector of a document declaration and
// returns the first invalid one. Used at load time so malformed declarations
// fail before any fetch happens.
func ValidateSelectors(doc declaration.Document) error {
	for _, sel := range append(append([]string{}, doc.ContentSelectors...), doc.NoiseSelectors...) {
		if _, err := cascadia.ParseGroup(sel); err != nil {
			return fmt.Errorf("invalid selector %q: %w", sel, err)
		}
	}
	return nil
}

func (e *Engine) applyHTML(p Params) (string, error) {
	if err := ValidateSelectors(p.Document); err != nil {
		return "", fmt.Errorf("filter: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Content))
	if err != nil {
		return "", fmt.Errorf("filter: parse html: %w", err)
	}

	for _, sel := range p.Document.NoiseSelectors {
		doc.Find(sel).Remove()
	}

	for _, name := range p.Document.Filters {
		fn, ok := lookupNamed(name)
		if !ok {
			return "", fmt.Errorf("filter: unknown filter function %q", name)
		}
		if err := fn(doc); err != nil {
			return "", fmt.Errorf("filter: %q failed: %w", name, err)
		}
	}

	selection := doc.Find("body")
	if len(p.Document.ContentSelectors) > 0 {
		selection = doc.Find(strings.Join(p.Document.ContentSelectors, ", "))
	}
	if selection.Length() == 0 {
		return "", fmt.Errorf("filter: selectors %v matched nothing", p.Document.ContentSelectors)
	}

	var parts []string
	selection.Each(func(_ int, s *goquery.Selection) {
		for _, node := range s.Nodes {
			if md := strings.TrimSpace(renderMarkdown(node)); md != "" {
				parts = append(parts, md)
			}
		}
	})
	if len(parts) == 0 {
		return "", fmt.Errorf("filter: selectors %v produced empty content", p.Document.ContentSelectors)
	}

	e.logger.Debug("filtered document",
		logging.Field{Key: "refiltering", Value: p.IsRefiltering},
		logging.Field{Key: "parts", Value: len(parts)})

	return normalizeText(strings.Join(parts, "\n\n")), nil
}

// normalizeText collapses runs of blank lines and guarantees a trailing
// newline so repeated extractions of unchanged content are byte-identical.
func normalizeText(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	var out []string
	blank := true
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, trimmed)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n") + "\n"
}
