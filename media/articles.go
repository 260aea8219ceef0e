package media

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// minTitleRunes rejects chrome links ("Read more", nav items) that sit
	// inside article landmarks.
	minTitleRunes = 10

	// maxTitleRunes bounds stored titles.
	maxTitleRunes = 200

	// maxArticlesPerSite bounds extraction on very long index pages.
	maxArticlesPerSite = 50
)

type article struct {
	title string
	url   string
}

// nonArticlePrefixes are index-page paths that never point at a single
// article.
var nonArticlePrefixes = []string{
	"/category/",
	"/tag/",
	"/author/",
	"/about",
	"/contact",
	"/privacy",
	"/terms",
	"/search",
	"/login",
	"/register",
}

var paginationPath = regexp.MustCompile(`^/page/\d+`)

// extractArticles pulls candidate article links out of a news index page:
// anchors with substantial title text inside article or heading landmarks,
// same-site only, deduplicated in document order.
func extractArticles(doc *goquery.Document, base *url.URL) []article {
	seen := make(map[string]bool)
	var out []article

	doc.Find("article a[href], h1 a[href], h2 a[href], h3 a[href], h4 a[href]").
		EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			title := strings.Join(strings.Fields(sel.Text()), " ")
			if len([]rune(title)) <= minTitleRunes {
				return true
			}
			href, _ := sel.Attr("href")
			ref, err := base.Parse(strings.TrimSpace(href))
			if err != nil {
				return true
			}
			abs := ref.String()
			if seen[abs] || !isArticleURL(ref, base) {
				return true
			}
			seen[abs] = true
			out = append(out, article{title: clipRunes(title, maxTitleRunes), url: abs})
			return len(out) < maxArticlesPerSite
		})
	return out
}

// isArticleURL reports whether u plausibly names a single article on the
// same site as base: same host (www-insensitive), http(s), a non-index
// path, and none of the known non-article sections.
func isArticleURL(u, base *url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if siteHost(u) != siteHost(base) {
		return false
	}

	p := strings.TrimRight(u.Path, "/")
	if p == "" || p == strings.TrimRight(base.Path, "/") {
		return false
	}

	lower := strings.ToLower(p)
	for _, prefix := range nonArticlePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return !paginationPath.MatchString(lower)
}

func siteHost(u *url.URL) string {
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func clipRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
