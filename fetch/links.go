package fetch

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// extractLinks returns the absolute form of every anchor href in the
// document, resolved against base, deduplicated in document order.
// Scheme and domain filtering is the crawler's job; this stays mechanical.
func extractLinks(root *html.Node, base *url.URL) []string {
	doc := goquery.NewDocumentFromNode(root)

	var links []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		abs, err := base.Parse(href)
		if err != nil {
			return
		}
		s := abs.String()
		if seen[s] {
			return
		}
		seen[s] = true
		links = append(links, s)
	})
	return links
}
