// Package singleflight provides a per-key non-blocking lock: TryAcquire either
// claims the key immediately or reports that it is already held. Used by the
// executor to enforce "not already executing" per pairId (§4.4, §4.5).
package singleflight

import "sync"

// Group is a set of independently-lockable keys.
type Group struct {
	mu  sync.Mutex
	set map[string]struct{}
}

// New builds an empty Group.
func New() *Group {
	return &Group{set: make(map[string]struct{})}
}

// TryAcquire claims key if free, returning true and a release func. If key is
// already held, returns false and a no-op release func.
func (g *Group) TryAcquire(key string) (acquired bool, release func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.set[key]; held {
		return false, func() {}
	}
	g.set[key] = struct{}{}
	return true, func() {
		g.mu.Lock()
		delete(g.set, key)
		g.mu.Unlock()
	}
}

// Held reports whether key is currently locked.
func (g *Group) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.set[key]
	return ok
}
