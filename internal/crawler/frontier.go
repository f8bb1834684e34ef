package crawler

import (
	"sync"
)

// Frontier is the FIFO work queue plus the visited set. Together they
// guarantee every in-site URL is enqueued at most once and the crawl
// terminates on any finite link graph, cycles included.
//
// The visited set is monotonic: a URL that was ever accepted is never
// accepted again, even after it leaves the queue.
type Frontier struct {
	mu         sync.Mutex
	queue      []string
	visited    map[string]bool
	discovered int
	processed  int
}

// NewFrontier creates an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		visited: make(map[string]bool),
	}
}

// Add enqueues a URL unless it was ever seen before. Reports whether the URL
// was accepted.
func (f *Frontier) Add(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.visited[url] {
		return false
	}
	f.visited[url] = true
	f.queue = append(f.queue, url)
	f.discovered++
	return true
}

// Next pops the oldest pending URL. ok is false once the frontier has
// drained, which is the crawl's terminal state.
func (f *Frontier) Next() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return "", false
	}
	url := f.queue[0]
	f.queue = f.queue[1:]
	f.processed++
	return url, true
}

// Size returns the number of URLs still pending.
func (f *Frontier) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Stats returns how many URLs were accepted and how many were handed out.
func (f *Frontier) Stats() (discovered, processed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.discovered, f.processed
}
