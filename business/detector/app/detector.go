// Package app implements the Opportunity Detector (component C4): a per-pair
// tick loop that computes the executable spread and dispatches to the executor
// when it crosses threshold.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/domain"
	"github.com/fd1az/arbitrage-bot/internal/eventbus"
	"github.com/fd1az/arbitrage-bot/internal/logger"
)

// MaxStaleness is how old a quote may be before a tick skips the pair (§4.4).
const MaxStaleness = 5 * time.Second

// DefaultInterval is the detector's default per-pair tick period (§4.4).
const DefaultInterval = 1 * time.Second

// QuoteSource is the Quote Cache's read surface, narrowed so this package never
// imports business/quotecache.
type QuoteSource interface {
	Get(key domain.QuoteKey) (domain.Quote, bool)
}

// PairSource is the Pair Registry's read surface the detector iterates.
type PairSource interface {
	Snapshot() []domain.MonitoringPair
}

// Dispatcher is the executor's entry point; returns false if the pair is
// already executing (single-flight, §4.4 step 5).
type Dispatcher interface {
	TryExecute(ctx context.Context, p domain.MonitoringPair) bool
}

// PriceUpdate is the payload of a priceUpdate event (§4.4 step 4).
type PriceUpdate struct {
	PairID     string          `json:"pairId"`
	BuyVenue   domain.VenueId  `json:"buyVenue"`
	SellVenue  domain.VenueId  `json:"sellVenue"`
	BuyPrice   decimal.Decimal `json:"buyPrice"`
	SellPrice  decimal.Decimal `json:"sellPrice"`
	SpreadAbs  decimal.Decimal `json:"spreadAbs"`
	SpreadPct  decimal.Decimal `json:"spreadPct"`
	Triggered  bool            `json:"triggered"`
}

// Detector runs one tick loop per enabled pair.
type Detector struct {
	log    logger.LoggerInterface
	quotes QuoteSource
	pairs  PairSource
	exec   Dispatcher
	bus    *eventbus.Bus
	interval time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New builds a Detector.
func New(log logger.LoggerInterface, quotes QuoteSource, pairs PairSource, exec Dispatcher, bus *eventbus.Bus, interval time.Duration) *Detector {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Detector{
		log: log, quotes: quotes, pairs: pairs, exec: exec, bus: bus, interval: interval,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Run starts the top-level loop that (re)spawns per-pair tasks as the registry
// changes, until ctx is cancelled.
func (d *Detector) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			d.stopAll()
			return
		case <-ticker.C:
			d.reconcile(ctx)
		}
	}
}

// reconcile ensures exactly one running tick task per currently-known pair.
func (d *Detector) reconcile(ctx context.Context) {
	known := d.pairs.Snapshot()
	seen := make(map[string]struct{}, len(known))

	d.mu.Lock()
	for _, p := range known {
		seen[p.PairID] = struct{}{}
		if _, running := d.cancels[p.PairID]; running {
			continue
		}
		taskCtx, cancel := context.WithCancel(ctx)
		d.cancels[p.PairID] = cancel
		go d.runPair(taskCtx, p.PairID)
	}
	for pairID, cancel := range d.cancels {
		if _, ok := seen[pairID]; !ok {
			cancel()
			delete(d.cancels, pairID)
		}
	}
	d.mu.Unlock()
}

func (d *Detector) stopAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for pairID, cancel := range d.cancels {
		cancel()
		delete(d.cancels, pairID)
	}
}

func (d *Detector) runPair(ctx context.Context, pairID string) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx, pairID)
		}
	}
}

func (d *Detector) tick(ctx context.Context, pairID string) {
	var current domain.MonitoringPair
	found := false
	for _, p := range d.pairs.Snapshot() {
		if p.PairID == pairID {
			current = p
			found = true
			break
		}
	}
	if !found || !current.Enabled {
		return
	}

	buyLeg, sellLeg, ok := buySellLegs(current)
	if !ok {
		return // both legs same side: invalid, refuse to run (§4.4 edge case)
	}

	q1, ok1 := d.quotes.Get(buyLeg.Key())
	q2, ok2 := d.quotes.Get(sellLeg.Key())
	if !ok1 || !ok2 {
		return
	}
	now := time.Now().UTC()
	if now.Sub(q1.SourceTs) > MaxStaleness || now.Sub(q2.SourceTs) > MaxStaleness {
		return
	}

	buyPrice := q1.AskPrice
	sellPrice := q2.BidPrice
	if buyPrice.IsZero() {
		return
	}
	spreadAbs := sellPrice.Sub(buyPrice)
	spreadPct := spreadAbs.Div(buyPrice).Mul(decimal.NewFromInt(100))

	triggered := current.Enabled &&
		spreadPct.GreaterThanOrEqual(current.Threshold) &&
		!current.Exhausted()

	d.bus.Publish(eventbus.Event{
		Type: eventbus.TypePriceUpdate,
		Data: PriceUpdate{
			PairID: current.PairID, BuyVenue: buyLeg.Venue, SellVenue: sellLeg.Venue,
			BuyPrice: buyPrice, SellPrice: sellPrice, SpreadAbs: spreadAbs, SpreadPct: spreadPct,
			Triggered: triggered,
		},
	})

	if !triggered {
		return
	}
	if dispatched := d.exec.TryExecute(ctx, current); dispatched {
		d.bus.Publish(eventbus.Event{
			Type: eventbus.TypeOpportunitiesFound,
			Data: PriceUpdate{
				PairID: current.PairID, BuyVenue: buyLeg.Venue, SellVenue: sellLeg.Venue,
				BuyPrice: buyPrice, SellPrice: sellPrice, SpreadAbs: spreadAbs, SpreadPct: spreadPct,
				Triggered: true,
			},
		})
	}
}

// buySellLegs resolves which leg buys and which sells, refusing same-side pairs.
func buySellLegs(p domain.MonitoringPair) (buy, sell domain.LegSpec, ok bool) {
	if p.Leg1.Side == p.Leg2.Side {
		return domain.LegSpec{}, domain.LegSpec{}, false
	}
	if p.Leg1.Side == domain.SideBuy {
		return p.Leg1, p.Leg2, true
	}
	return p.Leg2, p.Leg1, true
}
