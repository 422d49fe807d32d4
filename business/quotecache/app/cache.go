// Package app implements the Quote Cache (component C2): a process-wide map from
// (venue, symbol, category) to the latest Quote, with a bounded recent-history
// ring per key and a broadcast channel of deltas for the event fan-out.
package app

import (
	"context"
	"sync"

	"github.com/fd1az/arbitrage-bot/domain"
	"github.com/fd1az/arbitrage-bot/internal/logger"
)

// HistoryLen bounds the recent-quote ring kept per key, used for volatility
// estimation and never for the monotonicity guarantee itself.
const HistoryLen = 64

// DefaultObserverBacklog bounds the Observe() channel; a slow observer drops
// deltas rather than blocking writers.
const DefaultObserverBacklog = 256

type entry struct {
	latest  domain.Quote
	history []domain.Quote
}

// Cache is the Quote Cache. Zero value is not usable; construct with New.
type Cache struct {
	log logger.LoggerInterface

	mu      sync.RWMutex
	entries map[domain.QuoteKey]*entry

	obsMu sync.Mutex
	obs   map[int]chan domain.Quote
	nextID int
}

// New builds an empty Cache.
func New(log logger.LoggerInterface) *Cache {
	return &Cache{
		log:     log,
		entries: make(map[domain.QuoteKey]*entry),
		obs:     make(map[int]chan domain.Quote),
	}
}

// Update applies a Quote only if it advances the key's current SourceTs;
// older or equal-timestamp updates are silently dropped (§3's monotonic-timeline invariant, enforced
// a second time here independent of whatever the venue adapter already did).
func (c *Cache) Update(q domain.Quote) {
	key := q.Key()

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	} else if !q.SourceTs.After(e.latest.SourceTs) && !e.latest.SourceTs.IsZero() {
		c.mu.Unlock()
		return
	}
	e.latest = q
	e.history = append(e.history, q)
	if len(e.history) > HistoryLen {
		e.history = e.history[len(e.history)-HistoryLen:]
	}
	c.mu.Unlock()

	c.broadcast(q)
}

// Get returns the latest quote for a key, if any.
func (c *Cache) Get(key domain.QuoteKey) (domain.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return domain.Quote{}, false
	}
	return e.latest, true
}

// History returns the bounded recent-quote ring for a key, oldest first.
func (c *Cache) History(key domain.QuoteKey) []domain.Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	out := make([]domain.Quote, len(e.history))
	copy(out, e.history)
	return out
}

// Observe returns a channel of quote deltas and an unsubscribe func. No engine
// component subscribes here; the detector reads the cache through Get.
func (c *Cache) Observe() (<-chan domain.Quote, func()) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()

	id := c.nextID
	c.nextID++
	ch := make(chan domain.Quote, DefaultObserverBacklog)
	c.obs[id] = ch

	cancel := func() {
		c.obsMu.Lock()
		defer c.obsMu.Unlock()
		if existing, ok := c.obs[id]; ok {
			delete(c.obs, id)
			close(existing)
		}
	}
	return ch, cancel
}

func (c *Cache) broadcast(q domain.Quote) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	for id, ch := range c.obs {
		select {
		case ch <- q:
		default:
			c.log.Warn(context.Background(), "quote cache observer dropped update", "observerId", id)
		}
	}
}
