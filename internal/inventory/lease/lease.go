// Package lease provides a non-blocking keyed exclusive lease for
// serializing same-key updates within one process.
package lease

import "sync"

// Table tracks held leases by key. The zero value is ready to use.
type Table struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewTable creates an empty lease table.
func NewTable() *Table {
	return &Table{held: make(map[string]struct{})}
}

// TryAcquire takes the lease on key if it is free. The returned release func
// is idempotent and must be called on every exit path.
func (t *Table) TryAcquire(key string) (release func(), ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.held == nil {
		t.held = make(map[string]struct{})
	}
	if _, busy := t.held[key]; busy {
		return nil, false
	}
	t.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.held, key)
			t.mu.Unlock()
		})
	}, true
}

// Held reports whether key is currently leased.
func (t *Table) Held(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.held[key]
	return ok
}

// Len returns the number of held leases.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.held)
}
