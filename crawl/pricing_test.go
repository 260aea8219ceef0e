package crawl

import "testing"

func TestPricingDetector_ExplicitURL(t *testing.T) {
	// WHAT: An exact match on the configured pricing URL flags the page.
	// WHY: The configured URL wins even when the path has no keyword in it.
	d := PricingDetector{PricingURL: "https://acme.example/buy"}
	if !d.IsPricing("https://acme.example/buy") {
		t.Error("configured pricing URL should be flagged")
	}
	if d.IsPricing("https://acme.example/about") {
		t.Error("unrelated URL should not be flagged")
	}
}

func TestPricingDetector_PathKeywords(t *testing.T) {
	// WHAT: Path fragments like pricing, plans, and cost flag the page.
	// WHY: Most sites have no configured pricing URL; detection is the
	// normal fallback.
	var d PricingDetector
	for _, url := range []string{
		"https://acme.example/pricing",
		"https://acme.example/Plans/enterprise",
		"https://acme.example/total-cost-of-ownership",
	} {
		if !d.IsPricing(url) {
			t.Errorf("%s should be flagged as pricing", url)
		}
	}
	for _, url := range []string{
		"https://acme.example/",
		"https://acme.example/blog/announcing-v2",
	} {
		if d.IsPricing(url) {
			t.Errorf("%s should not be flagged as pricing", url)
		}
	}
}

func TestPricingDetector_CustomKeywords(t *testing.T) {
	// WHAT: A non-nil keyword list replaces the defaults entirely.
	d := PricingDetector{Keywords: []string{"tarifs"}}
	if !d.IsPricing("https://acme.example/tarifs") {
		t.Error("custom keyword should match")
	}
	if d.IsPricing("https://acme.example/pricing") {
		t.Error("default keywords should be inactive when overridden")
	}
}
