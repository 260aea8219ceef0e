package snapshot

// Classifier applies the change thresholds. It is a fixed numeric policy:
// simple comparisons, no adaptivity, so a reported change can always be
// traced back to a threshold value in the config.
type Classifier struct {
	// ContentThreshold is the minimum change percent, inclusive, for a
	// non-pricing text change to be reported.
	ContentThreshold float64
	// VisualThreshold is the minimum diff score, inclusive, for a visual
	// change to be reported.
	VisualThreshold float64
}

// KeepText decides whether a text change clears the policy. Pricing pages
// are exempt from the content threshold: any nonzero change on a
// pricing-flagged URL is high-value signal and is always kept.
func (c Classifier) KeepText(changePercent float64, isPricing bool) bool {
	if isPricing {
		return changePercent > 0
	}
	return changePercent >= c.ContentThreshold
}

// KeepVisual decides whether a visual diff score clears the policy.
func (c Classifier) KeepVisual(diffScore float64) bool {
	return diffScore >= c.VisualThreshold
}
