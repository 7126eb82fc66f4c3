package quorum

import (
	"sync"
)

// requestLocks serializes vote admission per request id. Entries are
// reference-counted so the map does not grow with the number of requests
// ever seen.
type requestLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newRequestLocks() *requestLocks {
	return &requestLocks{entries: make(map[string]*lockEntry)}
}

func (l *requestLocks) lock(id string) *lockEntry {
	l.mu.Lock()
	e := l.entries[id]
	if e == nil {
		e = &lockEntry{}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return e
}

func (l *requestLocks) unlock(id string, e *lockEntry) {
	e.mu.Unlock()

	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, id)
	}
	l.mu.Unlock()
}
