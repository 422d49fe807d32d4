// Package eventbus implements the engine's single-writer, many-reader event fan-out
// (component C7): typed events produced by the detector, executor, registries and
// TWAP scheduler are broadcast to external subscribers (the /ws handler, in-process
// long-pollers) over per-subscriber bounded channels with a drop-on-full policy.
package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/fd1az/arbitrage-bot/internal/logger"
)

// Type names one of the event kinds of §4.7.
type Type string

const (
	TypePriceUpdate        Type = "priceUpdate"
	TypeOpportunitiesFound Type = "opportunitiesFound"
	TypeArbitrageExecuted  Type = "arbitrageExecuted"
	TypePairAdded          Type = "pairAdded"
	TypePairUpdated        Type = "pairUpdated"
	TypePairRemoved        Type = "pairRemoved"
	TypeTwapSliceExecuted  Type = "twapSliceExecuted"
	TypeTwapSliceFailed    Type = "twapSliceFailed"
	TypeTwapStateChanged   Type = "twapStateChanged"
)

// Event is the tagged-variant value carried on the bus.
type Event struct {
	Type Type      `json:"type"`
	Ts   time.Time `json:"ts"`
	Data any       `json:"data"`
}

// DefaultBacklog is the per-subscriber channel capacity before events are dropped.
const DefaultBacklog = 1024

// Bus is the process-wide broadcaster. The zero value is not usable; use New.
type Bus struct {
	log     logger.LoggerInterface
	backlog int

	mu      sync.Mutex
	subs    map[int]chan Event
	nextID  int
	dropped map[int]int
}

// New builds a Bus with the given per-subscriber backlog (DefaultBacklog if <= 0).
func New(log logger.LoggerInterface, backlog int) *Bus {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Bus{
		log:     log,
		backlog: backlog,
		subs:    make(map[int]chan Event),
		dropped: make(map[int]int),
	}
}

// Subscribe registers a new reader and returns its channel plus an unsubscribe func.
// The channel is closed once cancel is called; readers must stop reading after that.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.backlog)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			delete(b.dropped, id)
			close(existing)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish broadcasts ev to every live subscriber. Per (subscriber, source component)
// ordering is FIFO because Publish is called by a single writer per component and
// delivery is a non-blocking per-subscriber channel send.
func (b *Bus) Publish(ev Event) {
	if ev.Ts.IsZero() {
		ev.Ts = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped[id]++
			if b.log != nil {
				b.log.Warn(context.Background(), "subscriberDropped",
					"subscriberId", id, "eventType", ev.Type, "totalDropped", b.dropped[id])
			}
		}
	}
}

// SubscriberCount returns the number of live subscribers, for metrics/health.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
