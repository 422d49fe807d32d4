// Package app implements the Paired Executor (component C5): concurrent
// dual-leg order submission with single-flight locking per pairId.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fd1az/arbitrage-bot/domain"
	"github.com/fd1az/arbitrage-bot/internal/eventbus"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/singleflight"
)

// VenueAdapters resolves a venue id to whatever can submit an order; satisfied
// by business/venue/app.Registry without this package depending on it directly.
type VenueAdapters interface {
	SubmitOrder(ctx context.Context, venue domain.VenueId, req domain.OrderRequest) (domain.OrderResult, error)
}

// Registry is the subset of the pairs Registry the executor calls back into.
type Registry interface {
	RecordTrigger(ctx context.Context, pairID string, success bool) error
}

// ExecutionHistoryLen bounds the in-memory ring of recent executions.
const ExecutionHistoryLen = 1000

// Executor runs the paired submission described in §4.5.
type Executor struct {
	log     logger.LoggerInterface
	venues  VenueAdapters
	pairs   Registry
	bus     *eventbus.Bus
	inFlight *singleflight.Group

	mu      sync.Mutex
	history []domain.ExecutionRecord
}

// New builds an Executor.
func New(log logger.LoggerInterface, venues VenueAdapters, pairs Registry, bus *eventbus.Bus) *Executor {
	return &Executor{
		log:      log,
		venues:   venues,
		pairs:    pairs,
		bus:      bus,
		inFlight: singleflight.New(),
	}
}

// TryExecute attempts to dispatch pair P. Returns false without error if the
// pair is already executing (§4.5 step 1: "return silently").
func (e *Executor) TryExecute(ctx context.Context, p domain.MonitoringPair) bool {
	acquired, release := e.inFlight.TryAcquire(p.PairID)
	if !acquired {
		return false
	}
	go func() {
		defer release()
		e.execute(ctx, p)
	}()
	return true
}

func (e *Executor) execute(ctx context.Context, p domain.MonitoringPair) {
	req1 := domain.OrderRequest{
		Venue: p.Leg1.Venue, Symbol: p.Leg1.Symbol, Category: p.Leg1.Category,
		Side: p.Leg1.Side, Qty: p.SliceQty, Type: domain.OrderTypeMarket,
	}
	req2 := domain.OrderRequest{
		Venue: p.Leg2.Venue, Symbol: p.Leg2.Symbol, Category: p.Leg2.Category,
		Side: p.Leg2.Side, Qty: p.SliceQty, Type: domain.OrderTypeMarket,
	}

	var (
		wg           sync.WaitGroup
		res1, res2   domain.OrderResult
		ts1, ts2     time.Time
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		res1, _ = e.venues.SubmitOrder(ctx, p.Leg1.Venue, req1)
		ts1 = time.Now().UTC()
	}()
	go func() {
		defer wg.Done()
		res2, _ = e.venues.SubmitOrder(ctx, p.Leg2.Venue, req2)
		ts2 = time.Now().UTC()
	}()
	wg.Wait()

	status := classify(res1, res2)
	record := domain.ExecutionRecord{
		ExecutionID: uuid.NewString(),
		PairID:      p.PairID,
		Ts:          time.Now().UTC(),
		Leg1:        domain.LegExecution{Leg: p.Leg1, Result: res1, Ts: ts1},
		Leg2:        domain.LegExecution{Leg: p.Leg2, Result: res2, Ts: ts2},
		Qty:         p.SliceQty,
		Status:      status,
	}
	e.appendHistory(record)

	success := status == domain.ExecutionSuccess
	if err := e.pairs.RecordTrigger(ctx, p.PairID, success); err != nil {
		e.log.Warn(ctx, "record trigger failed", "pairId", p.PairID, "error", err)
	}

	e.bus.Publish(eventbus.Event{
		Type: eventbus.TypeArbitrageExecuted,
		Ts:   record.Ts,
		Data: record,
	})

	e.log.Info(ctx, "pair execution finished", "pairId", p.PairID, "status", status)
}

// classify implements the three-way outcome rule of §4.5 step 4.
func classify(r1, r2 domain.OrderResult) domain.ExecutionStatus {
	switch {
	case r1.Success && r2.Success:
		return domain.ExecutionSuccess
	case r1.Success != r2.Success:
		return domain.ExecutionPartial
	default:
		return domain.ExecutionFailed
	}
}

func (e *Executor) appendHistory(r domain.ExecutionRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, r)
	if len(e.history) > ExecutionHistoryLen {
		e.history = e.history[len(e.history)-ExecutionHistoryLen:]
	}
}

// History returns the bounded in-memory execution ring, newest last.
func (e *Executor) History() []domain.ExecutionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.ExecutionRecord, len(e.history))
	copy(out, e.history)
	return out
}
