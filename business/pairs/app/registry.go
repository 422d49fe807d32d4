// Package app implements the Pair Registry (component C3): the durable set of
// monitoring-pair definitions the detector iterates every tick, with quota and
// trigger bookkeeping.
package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/domain"
	"github.com/fd1az/arbitrage-bot/internal/apperror"
	"github.com/fd1az/arbitrage-bot/internal/eventbus"
)

// Store is the durable persistence port the Registry is built on; implemented
// by business/pairs/infra/postgres.
type Store interface {
	Insert(ctx context.Context, p domain.MonitoringPair) error
	Update(ctx context.Context, p domain.MonitoringPair) error
	Delete(ctx context.Context, pairID string) error
	Get(ctx context.Context, pairID string) (domain.MonitoringPair, error)
	List(ctx context.Context) ([]domain.MonitoringPair, error)
}

// Registry is the in-memory, store-backed set of monitoring pairs. Reads go
// against the in-memory snapshot; writes go through the Store first, then
// update the snapshot, so a restart always resumes from durable state.
type Registry struct {
	store Store
	bus   *eventbus.Bus

	mu    chan struct{} // binary semaphore guarding pairs
	pairs map[string]domain.MonitoringPair
}

// New loads every pair from the store into memory, normalizing legacy category
// values as it goes (§9: startup normalization of "future" -> "linear"). The
// Registry owns emission of pairAdded/pairUpdated/pairRemoved (§4.3); every
// mutation path, not just the HTTP layer, publishes through bus.
func New(ctx context.Context, store Store, bus *eventbus.Bus) (*Registry, error) {
	r := &Registry{store: store, bus: bus, mu: make(chan struct{}, 1), pairs: make(map[string]domain.MonitoringPair)}
	r.mu <- struct{}{}

	loaded, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range loaded {
		p.Leg1.Category = domain.NormalizeCategory(string(p.Leg1.Category))
		p.Leg2.Category = domain.NormalizeCategory(string(p.Leg2.Category))
		r.pairs[p.PairID] = p
	}
	return r, nil
}

func (r *Registry) lock()   { <-r.mu }
func (r *Registry) unlock() { r.mu <- struct{}{} }

// Validate enforces the §4.3 edge case: both legs must carry opposite sides.
func Validate(p domain.MonitoringPair) error {
	if p.Leg1.Side == p.Leg2.Side {
		return apperror.New(apperror.CodeRegistryValidationError,
			apperror.WithContext("leg1 and leg2 must have opposite sides"))
	}
	if p.Leg1.Equal(p.Leg2) {
		return apperror.New(apperror.CodeRegistryValidationError,
			apperror.WithContext("leg1 and leg2 must not be identical"))
	}
	if p.SliceQty.LessThanOrEqual(decimal.Zero) {
		return apperror.New(apperror.CodeRegistryValidationError,
			apperror.WithContext("sliceQty must be positive"))
	}
	if p.MaxExecs <= 0 {
		return apperror.New(apperror.CodeRegistryValidationError,
			apperror.WithContext("maxExecs must be positive"))
	}
	return nil
}

// Upsert creates or replaces a pair definition. Negative thresholds are legal
// (§4.3): only shape is validated here, not the sign of Threshold.
func (r *Registry) Upsert(ctx context.Context, p domain.MonitoringPair) (domain.MonitoringPair, error) {
	p.Leg1.Category = domain.NormalizeCategory(string(p.Leg1.Category))
	p.Leg2.Category = domain.NormalizeCategory(string(p.Leg2.Category))
	if err := Validate(p); err != nil {
		return domain.MonitoringPair{}, err
	}

	r.lock()
	defer r.unlock()

	existing, isUpdate := r.pairs[p.PairID]
	if isUpdate {
		p.CreatedAt = existing.CreatedAt
		p.ExecsDone = existing.ExecsDone
		p.LastTriggeredAt = existing.LastTriggeredAt
		p.TotalTriggers = existing.TotalTriggers
		if err := r.store.Update(ctx, p); err != nil {
			return domain.MonitoringPair{}, err
		}
	} else {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}
		if err := r.store.Insert(ctx, p); err != nil {
			return domain.MonitoringPair{}, err
		}
	}

	r.pairs[p.PairID] = p

	evType := eventbus.TypePairAdded
	if isUpdate {
		evType = eventbus.TypePairUpdated
	}
	r.bus.Publish(eventbus.Event{Type: evType, Data: p})
	return p, nil
}

// Delete removes a pair definition.
func (r *Registry) Delete(ctx context.Context, pairID string) error {
	if err := r.store.Delete(ctx, pairID); err != nil {
		return err
	}
	r.lock()
	delete(r.pairs, pairID)
	r.unlock()
	r.bus.Publish(eventbus.Event{Type: eventbus.TypePairRemoved, Data: map[string]string{"pairId": pairID}})
	return nil
}

// Toggle flips a pair's Enabled flag.
func (r *Registry) Toggle(ctx context.Context, pairID string, enabled bool) (domain.MonitoringPair, error) {
	r.lock()
	p, ok := r.pairs[pairID]
	r.unlock()
	if !ok {
		return domain.MonitoringPair{}, apperror.NotFound(apperror.CodePairNotFound, pairID)
	}
	p.Enabled = enabled
	return r.Upsert(ctx, p)
}

// Get returns one pair by id.
func (r *Registry) Get(pairID string) (domain.MonitoringPair, bool) {
	r.lock()
	defer r.unlock()
	p, ok := r.pairs[pairID]
	return p, ok
}

// Snapshot returns every pair currently known, for the detector's tick loop and
// the HTTP listing endpoint.
func (r *Registry) Snapshot() []domain.MonitoringPair {
	r.lock()
	defer r.unlock()
	out := make([]domain.MonitoringPair, 0, len(r.pairs))
	for _, p := range r.pairs {
		out = append(out, p)
	}
	return out
}

// RecordTrigger advances a pair's execution counters after the executor finishes.
// Per §4.5, only a success advances ExecsDone; partial/failed update only the
// trigger timestamp/count, never the quota. Once ExecsDone reaches MaxExecs the
// pair is exhausted (§3, §4.3): it is removed from the registry and the store,
// and pairRemoved is emitted exactly once instead of the usual persisted update.
func (r *Registry) RecordTrigger(ctx context.Context, pairID string, success bool) error {
	r.lock()
	p, ok := r.pairs[pairID]
	r.unlock()
	if !ok {
		return apperror.NotFound(apperror.CodePairNotFound, pairID)
	}

	now := time.Now().UTC()
	p.LastTriggeredAt = &now
	p.TotalTriggers++
	if success {
		p.ExecsDone++
	}

	if success && p.Exhausted() {
		if err := r.store.Delete(ctx, pairID); err != nil {
			return err
		}
		r.lock()
		delete(r.pairs, pairID)
		r.unlock()
		r.bus.Publish(eventbus.Event{Type: eventbus.TypePairRemoved, Data: map[string]string{"pairId": pairID}})
		return nil
	}

	r.lock()
	r.pairs[pairID] = p
	r.unlock()

	return r.store.Update(ctx, p)
}
