// Package render captures page screenshots with headless Chrome.
//
// The Chrome renderer launches a local browser lazily on first capture and
// recycles the process after a fixed number of pages to keep memory
// bounded. Deployments without Chrome use Nop, which satisfies the same
// interface and reports no refs, so callers never branch on whether
// screenshots are configured.
package render

import "context"

// Nop is a disabled renderer. Every capture succeeds with an empty ref.
type Nop struct{}

func (Nop) Screenshot(ctx context.Context, competitor, pageURL string) (string, error) {
	return "", nil
}
