// Package keylock provides mutual exclusion per string key inside one process.
package keylock

import (
	"context"
	"sync"
)

type entry struct {
	sem  chan struct{}
	refs int
}

// Mutex serializes holders of the same key. Different keys never block each
// other. Entries are dropped when nobody holds or waits on them.
type Mutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *Mutex {
	return &Mutex{entries: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx is done. The returned func releases the
// key and must be called exactly once.
func (m *Mutex) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	e := m.entries[key]
	if e == nil {
		e = &entry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			m.release(key, e)
		})
	}, nil
}

func (m *Mutex) release(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (m *Mutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
