package recorder

import "strings"

// Extension mapping is deliberately a small fixed table: these are the only
// content types legal documents are archived as.
var extensionByMime = map[string]string{
	"text/html":       ".html",
	"application/pdf": ".pdf",
	"text/markdown":   ".md",
	"text/plain":      ".txt",
}

var mimeByExtension = map[string]string{
	".html": "text/html",
	".pdf":  "application/pdf",
	".md":   "text/markdown",
	".txt":  "text/plain",
}

// ExtensionFor returns the file extension for a mime type, falling back to
// fallback for unknown types. Mime parameters ("; charset=utf-8") are ignored.
func ExtensionFor(mimeType, fallback string) string {
	base := strings.TrimSpace(strings.ToLower(mimeType))
	if i := strings.Index(base, ";"); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	if ext, ok := extensionByMime[base]; ok {
		return ext
	}
	return fallback
}

// MimeTypeFor returns the mime type for a file extension, falling back to
// fallback for unknown extensions.
func MimeTypeFor(ext, fallback string) string {
	if mime, ok := mimeByExtension[strings.ToLower(ext)]; ok {
		return mime
	}
	return fallback
}
