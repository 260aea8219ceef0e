package snapshot

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// keywordContext is how many bytes of surrounding text an alert carries on
// each side of the match.
const keywordContext = 100

// FindKeywordAlerts reports watched terms newly appearing in the current
// snapshot: the page is new, or the page's previous text did not contain
// the term. A term already present last run stays silent, so standing page
// copy never re-alerts week after week. old == nil is the first
// observation and produces no alerts, matching the differ's baseline
// behavior. Each keyword alerts at most once per page, with its first
// occurrence's surrounding context; the result is sorted by URL, then
// keyword.
func FindKeywordAlerts(old, curr *SiteSnapshot, keywords []string) []KeywordAlert {
	if old == nil || curr == nil || len(keywords) == 0 {
		return nil
	}
	var alerts []KeywordAlert
	for i := range curr.Pages {
		page := &curr.Pages[i]
		if page.Status != StatusOK || page.Text == "" {
			continue
		}
		textLower := strings.ToLower(page.Text)
		var prevLower string
		if prev := old.Page(page.URL); prev != nil {
			prevLower = strings.ToLower(prev.Text)
		}
		for _, kw := range keywords {
			kwLower := strings.ToLower(strings.TrimSpace(kw))
			if kwLower == "" {
				continue
			}
			pos := strings.Index(textLower, kwLower)
			if pos < 0 {
				continue
			}
			if prevLower != "" && strings.Contains(prevLower, kwLower) {
				continue
			}
			alerts = append(alerts, KeywordAlert{
				URL:     page.URL,
				Keyword: kw,
				Context: contextAround(page.Text, pos, len(kwLower)),
			})
		}
	}
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].URL != alerts[j].URL {
			return alerts[i].URL < alerts[j].URL
		}
		return alerts[i].Keyword < alerts[j].Keyword
	})
	return alerts
}

// contextAround slices text around a byte range, clamped to rune
// boundaries, and marks the cut ends with ellipses.
func contextAround(text string, pos, matchLen int) string {
	start := pos - keywordContext
	if start < 0 {
		start = 0
	}
	end := pos + matchLen + keywordContext
	if end > len(text) {
		end = len(text)
	}
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}

	ctx := text[start:end]
	if start > 0 {
		ctx = "..." + ctx
	}
	if end < len(text) {
		ctx = ctx + "..."
	}
	return ctx
}
