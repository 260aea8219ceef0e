package snapshot

import "strings"

// ChangePercent measures how much two texts differ, as a percentage in
// [0,100]. The metric is word-level: 100 × (1 − 2·LCS/(lenA+lenB)), where
// LCS is the longest common subsequence of the two word streams. It is
// symmetric, 0 for identical texts, and 100 when the texts share nothing.
// Two empty texts are identical (0); one empty side is a total change (100).
func ChangePercent(oldText, newText string) float64 {
	a := strings.Fields(oldText)
	b := strings.Fields(newText)
	switch {
	case len(a) == 0 && len(b) == 0:
		return 0
	case len(a) == 0 || len(b) == 0:
		return 100
	}

	common := lcsLength(a, b)
	similarity := 2 * float64(common) / float64(len(a)+len(b))
	pct := 100 * (1 - similarity)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// lcsLength is the classic two-row dynamic program. Inputs are bounded by
// the capture-time text truncation, so the quadratic cost stays small.
func lcsLength(a, b []string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
		for j := range cur {
			cur[j] = 0
		}
	}
	return prev[len(b)]
}
