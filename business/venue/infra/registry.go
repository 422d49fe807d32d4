package infra

import (
	"sync"

	"github.com/fd1az/arbitrage-bot/business/venue/app"
	"github.com/fd1az/arbitrage-bot/domain"
)

var _ app.Registry = (*StaticRegistry)(nil)

// StaticRegistry is the simple venue-id -> Adapter map assembled once at startup
// by the venue module and handed to every downstream component (§9: "ad-hoc
// Map<string, T> registries -> key-typed, invariant-checked collections").
type StaticRegistry struct {
	mu       sync.RWMutex
	adapters map[domain.VenueId]app.Adapter
}

// NewStaticRegistry builds a registry from a fixed adapter set.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{adapters: make(map[domain.VenueId]app.Adapter)}
}

// Add registers an adapter under its own Venue() id.
func (r *StaticRegistry) Add(a app.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Venue()] = a
}

func (r *StaticRegistry) Adapter(venue domain.VenueId) (app.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[venue]
	return a, ok
}

func (r *StaticRegistry) Venues() []domain.VenueId {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.VenueId, 0, len(r.adapters))
	for v := range r.adapters {
		out = append(out, v)
	}
	return out
}

// Cleanup calls Cleanup on every registered adapter.
func (r *StaticRegistry) Cleanup() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.adapters {
		a.Cleanup()
	}
}
