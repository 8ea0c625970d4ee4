package reconcile

import "sync"

// vendorLocks serializes work per vendor. Duplicate-deletion decisions are
// not safe to compute from a stale snapshot, so two passes over the same
// vendor must not interleave; disjoint vendors may proceed in parallel.
type vendorLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (l *vendorLocks) lock(vendor string) (unlock func()) {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*sync.Mutex)
	}
	vl, ok := l.m[vendor]
	if !ok {
		vl = &sync.Mutex{}
		l.m[vendor] = vl
	}
	l.mu.Unlock()

	vl.Lock()
	return vl.Unlock
}
