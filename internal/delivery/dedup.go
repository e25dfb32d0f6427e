package delivery

import "sync"

// DefaultDedupCapacity is the number of fingerprints remembered.
const DefaultDedupCapacity = 4096

// Dedup is a bounded set of envelope fingerprints. When full, the oldest
// fingerprint is forgotten first.
type Dedup struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	ring  []string
	next  int
	limit int
}

// NewDedup returns a set holding up to capacity fingerprints.
func NewDedup(capacity int) *Dedup {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	return &Dedup{
		seen:  make(map[string]struct{}, capacity),
		ring:  make([]string, 0, capacity),
		limit: capacity,
	}
}

// Add records fp and reports whether it was new.
func (d *Dedup) Add(fp string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[fp]; ok {
		return false
	}
	if len(d.ring) < d.limit {
		d.ring = append(d.ring, fp)
	} else {
		delete(d.seen, d.ring[d.next])
		d.ring[d.next] = fp
		d.next = (d.next + 1) % d.limit
	}
	d.seen[fp] = struct{}{}
	return true
}

// Contains reports whether fp is remembered.
func (d *Dedup) Contains(fp string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[fp]
	return ok
}

// Len returns the number of remembered fingerprints.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// Reset forgets every fingerprint.
func (d *Dedup) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = make(map[string]struct{}, d.limit)
	d.ring = d.ring[:0]
	d.next = 0
}
