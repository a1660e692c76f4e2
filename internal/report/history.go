package report

import "sync"

// History keeps the last N results in a ring buffer. It is safe for
// concurrent use.
type History struct {
	results []*Result
	maxSize int
	mu      sync.RWMutex
}

// NewHistory creates a history holding at most maxSize results
func NewHistory(maxSize int) *History {
	if maxSize < 1 {
		maxSize = 1
	}
	return &History{
		results: make([]*Result, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record adds a result, dropping the oldest when full
func (h *History) Record(r *Result) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.results) >= h.maxSize {
		h.results = h.results[1:]
	}
	h.results = append(h.results, r)
}

// GetRecent returns up to n results, newest first. n <= 0 means all.
func (h *History) GetRecent(n int) []*Result {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > len(h.results) {
		n = len(h.results)
	}

	out := make([]*Result, n)
	for i := 0; i < n; i++ {
		out[i] = h.results[len(h.results)-1-i]
	}
	return out
}

// Count returns the number of results held
func (h *History) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.results)
}
