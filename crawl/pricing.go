package crawl

import (
	"net/url"
	"strings"
)

// DefaultPricingKeywords are the path fragments that mark a page as a
// pricing page when no explicit pricing URL matches.
var DefaultPricingKeywords = []string{"pricing", "plans", "cost"}

// PricingDetector decides whether a canonical URL is a pricing page: an
// exact match on the configured pricing URL, or a keyword hit on the path.
// The zero value detects by default keywords only.
type PricingDetector struct {
	// PricingURL is the canonical form of the configured pricing page.
	// Empty means no explicit pricing page is configured.
	PricingURL string
	// Keywords override DefaultPricingKeywords when non-nil.
	Keywords []string
}

// IsPricing reports whether canonicalURL is a pricing page. It satisfies the
// Config.IsPricing plug on the crawler.
func (d PricingDetector) IsPricing(canonicalURL string) bool {
	if d.PricingURL != "" && canonicalURL == d.PricingURL {
		return true
	}
	u, err := url.Parse(canonicalURL)
	if err != nil {
		return false
	}
	keywords := d.Keywords
	if keywords == nil {
		keywords = DefaultPricingKeywords
	}
	pathLower := strings.ToLower(u.Path)
	for _, kw := range keywords {
		if strings.Contains(pathLower, kw) {
			return true
		}
	}
	return false
}
