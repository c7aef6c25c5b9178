package ingest

import "sync"

// DedupIndex is the in-memory set of listing URLs already persisted. It is
// reconstructed from the record store at startup, never persisted itself,
// and grows monotonically for the life of the process.
type DedupIndex struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

func NewDedupIndex() *DedupIndex {
	return &DedupIndex{seen: make(map[string]struct{})}
}

func (d *DedupIndex) Contains(url string) bool {
	d.mu.RLock()
	_, ok := d.seen[url]
	d.mu.RUnlock()
	return ok
}

func (d *DedupIndex) Add(url string) {
	if url == "" {
		return
	}
	d.mu.Lock()
	d.seen[url] = struct{}{}
	d.mu.Unlock()
}

// Seed bulk-loads URLs from the existing record store so restarts do not
// re-emit records that are already durable.
func (d *DedupIndex) Seed(urls []string) {
	d.mu.Lock()
	for _, u := range urls {
		if u != "" {
			d.seen[u] = struct{}{}
		}
	}
	d.mu.Unlock()
}

func (d *DedupIndex) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.seen)
}
