package engine

import "sync"

// keyedGate serializes background work per conversation so two concurrent
// turns on the same conversation cannot run duplicate consolidation or
// summarization cycles. Unrelated conversations never contend.
type keyedGate struct {
	mu    sync.Mutex
	locks map[string]*gateLock
}

type gateLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedGate() *keyedGate {
	return &keyedGate{locks: make(map[string]*gateLock)}
}

// Lock acquires the lock for key and returns its release func. Entries are
// removed once the last holder releases, so the map stays bounded by the
// number of in-flight keys.
func (g *keyedGate) Lock(key string) func() {
	g.mu.Lock()
	l, ok := g.locks[key]
	if !ok {
		l = &gateLock{}
		g.locks[key] = l
	}
	l.refs++
	g.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		g.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(g.locks, key)
		}
		g.mu.Unlock()
	}
}
