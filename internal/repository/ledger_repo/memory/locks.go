package memory

import (
	"context"
	"sync"
)

// lockTable hands out one exclusive lock per key. Waiters give up when their context ends.
// Entries are dropped once nobody holds or waits for them.
type lockTable struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[string]*lockEntry)}
}

func (t *lockTable) acquire(ctx context.Context, key string) error {
	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		t.entries[key] = e
	}
	e.refs++
	t.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		t.mu.Lock()
		t.unref(key, e)
		t.mu.Unlock()
		return ctx.Err()
	}
}

func (t *lockTable) release(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		return
	}
	<-e.sem
	t.unref(key, e)
}

func (t *lockTable) unref(key string, e *lockEntry) {
	e.refs--
	if e.refs == 0 {
		delete(t.entries, key)
	}
}

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
