package crawl

// frontierEntry pairs a canonical URL with the depth it was discovered at.
type frontierEntry struct {
	url   string
	depth int
}

// Frontier is the FIFO queue of not-yet-fetched canonical URLs. URLs are
// marked visited when accepted, never when popped, so a URL can be queued at
// most once and the number of accepted URLs is exactly the number the crawl
// will attempt. Once maxPages URLs have been accepted the frontier refuses
// new ones but keeps draining what it already holds, which makes the crawl
// output size deterministic.
type Frontier struct {
	queue    []frontierEntry
	visited  map[string]bool
	maxPages int
}

// NewFrontier creates a frontier that will accept at most maxPages URLs.
func NewFrontier(maxPages int) *Frontier {
	return &Frontier{
		visited:  make(map[string]bool),
		maxPages: maxPages,
	}
}

// Push offers a canonical URL at the given depth. It reports whether the URL
// was accepted; already-visited URLs and pushes past the page cap are
// refused.
func (f *Frontier) Push(url string, depth int) bool {
	if f.visited[url] {
		return false
	}
	if len(f.visited) >= f.maxPages {
		return false
	}
	f.visited[url] = true
	f.queue = append(f.queue, frontierEntry{url: url, depth: depth})
	return true
}

// Pop removes and returns the next URL in FIFO order. ok is false when the
// frontier is empty.
func (f *Frontier) Pop() (url string, depth int, ok bool) {
	if len(f.queue) == 0 {
		return "", 0, false
	}
	e := f.queue[0]
	f.queue = f.queue[1:]
	return e.url, e.depth, true
}

// Len returns the number of URLs still queued.
func (f *Frontier) Len() int { return len(f.queue) }

// Accepted returns how many URLs the frontier has accepted so far.
func (f *Frontier) Accepted() int { return len(f.visited) }
