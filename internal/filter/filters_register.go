package filter

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RegisterDefaultFilters registers the filter functions shared across
// service declarations. Call this early in main() so declarations can
// reference them by name.
func RegisterDefaultFilters() {
	// Tracking parameters change on every fetch and would produce a new
	// version for identical legal text.
	RegisterNamed("stripQueryParams", func(doc *goquery.Document) error {
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			u, err := url.Parse(href)
			if err != nil {
				return
			}
			u.RawQuery = ""
			u.Fragment = ""
			s.SetAttr("href", u.String())
		})
		return nil
	})

	// Elements hidden by markup carry no legal meaning for a reader.
	RegisterNamed("removeHiddenElements", func(doc *goquery.Document) error {
		doc.Find("[hidden], [aria-hidden=true]").Remove()
		doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
			style, _ := s.Attr("style")
			if strings.Contains(strings.ReplaceAll(strings.ToLower(style), " ", ""), "display:none") {
				s.Remove()
			}
		})
		return nil
	})
}
