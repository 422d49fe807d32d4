package app

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/domain"
	"github.com/fd1az/arbitrage-bot/internal/apperror"
	"github.com/fd1az/arbitrage-bot/internal/eventbus"
)

// memStore is a fake Store backed by a map, for exercising the Registry
// without a database.
type memStore struct {
	pairs map[string]domain.MonitoringPair
}

func newMemStore(seed ...domain.MonitoringPair) *memStore {
	s := &memStore{pairs: make(map[string]domain.MonitoringPair)}
	for _, p := range seed {
		s.pairs[p.PairID] = p
	}
	return s
}

func (s *memStore) Insert(_ context.Context, p domain.MonitoringPair) error {
	s.pairs[p.PairID] = p
	return nil
}

func (s *memStore) Update(_ context.Context, p domain.MonitoringPair) error {
	s.pairs[p.PairID] = p
	return nil
}

func (s *memStore) Delete(_ context.Context, pairID string) error {
	delete(s.pairs, pairID)
	return nil
}

func (s *memStore) Get(_ context.Context, pairID string) (domain.MonitoringPair, error) {
	p, ok := s.pairs[pairID]
	if !ok {
		return domain.MonitoringPair{}, apperror.NotFound(apperror.CodePairNotFound, pairID)
	}
	return p, nil
}

func (s *memStore) List(_ context.Context) ([]domain.MonitoringPair, error) {
	out := make([]domain.MonitoringPair, 0, len(s.pairs))
	for _, p := range s.pairs {
		out = append(out, p)
	}
	return out, nil
}

func testBus() *eventbus.Bus {
	return eventbus.New(nil, 16)
}

func validPair(id string) domain.MonitoringPair {
	return domain.MonitoringPair{
		PairID:    id,
		Leg1:      domain.LegSpec{Venue: "binance", Symbol: "BTCUSDT", Category: domain.CategorySpot, Side: domain.SideBuy},
		Leg2:      domain.LegSpec{Venue: "bybit", Symbol: "BTCUSDT", Category: domain.CategorySpot, Side: domain.SideSell},
		Threshold: decimal.NewFromFloat(0.5),
		SliceQty:  decimal.NewFromInt(1),
		MaxExecs:  5,
		Enabled:   true,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *domain.MonitoringPair)
		wantErr bool
	}{
		{name: "valid", mutate: func(p *domain.MonitoringPair) {}, wantErr: false},
		{
			name:    "same_side_legs",
			mutate:  func(p *domain.MonitoringPair) { p.Leg2.Side = domain.SideBuy },
			wantErr: true,
		},
		{
			name:    "zero_slice_qty",
			mutate:  func(p *domain.MonitoringPair) { p.SliceQty = decimal.Zero },
			wantErr: true,
		},
		{
			name:    "negative_slice_qty",
			mutate:  func(p *domain.MonitoringPair) { p.SliceQty = decimal.NewFromInt(-1) },
			wantErr: true,
		},
		{
			name:    "zero_max_execs",
			mutate:  func(p *domain.MonitoringPair) { p.MaxExecs = 0 },
			wantErr: true,
		},
		{
			name:    "negative_threshold_is_legal",
			mutate:  func(p *domain.MonitoringPair) { p.Threshold = decimal.NewFromInt(-10) },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPair("p1")
			tt.mutate(&p)
			err := Validate(p)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_Upsert_InsertThenUpdatePreservesQuota(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	reg, err := New(ctx, store, testBus())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	p := validPair("p1")
	created, err := reg.Upsert(ctx, p)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if created.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set on insert")
	}

	if err := reg.RecordTrigger(ctx, "p1", true); err != nil {
		t.Fatalf("RecordTrigger() error = %v", err)
	}

	update := p
	update.Threshold = decimal.NewFromInt(1)
	updated, err := reg.Upsert(ctx, update)
	if err != nil {
		t.Fatalf("Upsert() (update) error = %v", err)
	}
	if updated.ExecsDone != 1 {
		t.Errorf("ExecsDone = %d, want 1 (quota must survive an update)", updated.ExecsDone)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Error("CreatedAt must be preserved across an update")
	}
	if !updated.Threshold.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Threshold = %s, want 1", updated.Threshold)
	}
}

func TestRegistry_Upsert_EmitsPairAddedThenPairUpdated(t *testing.T) {
	ctx := context.Background()
	bus := testBus()
	ch, cancel := bus.Subscribe()
	defer cancel()
	reg, err := New(ctx, newMemStore(), bus)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	p := validPair("p1")
	if _, err := reg.Upsert(ctx, p); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if ev := <-ch; ev.Type != eventbus.TypePairAdded {
		t.Errorf("Type = %v, want %v", ev.Type, eventbus.TypePairAdded)
	}

	p.Threshold = decimal.NewFromInt(1)
	if _, err := reg.Upsert(ctx, p); err != nil {
		t.Fatalf("Upsert() (update) error = %v", err)
	}
	if ev := <-ch; ev.Type != eventbus.TypePairUpdated {
		t.Errorf("Type = %v, want %v", ev.Type, eventbus.TypePairUpdated)
	}
}

func TestRegistry_Upsert_RejectsInvalidPair(t *testing.T) {
	ctx := context.Background()
	reg, err := New(ctx, newMemStore(), testBus())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	p := validPair("p1")
	p.Leg2.Side = p.Leg1.Side
	if _, err := reg.Upsert(ctx, p); err == nil {
		t.Error("expected Upsert to reject a same-side pair")
	}
}

func TestRegistry_Upsert_NormalizesLegacyCategory(t *testing.T) {
	ctx := context.Background()
	reg, err := New(ctx, newMemStore(), testBus())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	p := validPair("p1")
	p.Leg1.Category = "future"
	got, err := reg.Upsert(ctx, p)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if got.Leg1.Category != domain.CategoryLinear {
		t.Errorf("Leg1.Category = %q, want %q", got.Leg1.Category, domain.CategoryLinear)
	}
}

func TestRegistry_New_NormalizesOnLoad(t *testing.T) {
	seed := validPair("p1")
	seed.Leg2.Category = "futures"
	ctx := context.Background()
	reg, err := New(ctx, newMemStore(seed), testBus())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	got, ok := reg.Get("p1")
	if !ok {
		t.Fatal("expected seeded pair to be loaded")
	}
	if got.Leg2.Category != domain.CategoryLinear {
		t.Errorf("Leg2.Category = %q, want %q", got.Leg2.Category, domain.CategoryLinear)
	}
}

func TestRegistry_Toggle(t *testing.T) {
	ctx := context.Background()
	reg, err := New(ctx, newMemStore(), testBus())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	p := validPair("p1")
	p.Enabled = true
	if _, err := reg.Upsert(ctx, p); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	got, err := reg.Toggle(ctx, "p1", false)
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if got.Enabled {
		t.Error("expected pair to be disabled after Toggle(false)")
	}
}

func TestRegistry_Toggle_UnknownPair(t *testing.T) {
	ctx := context.Background()
	reg, err := New(ctx, newMemStore(), testBus())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := reg.Toggle(ctx, "missing", true); err == nil {
		t.Error("expected error toggling an unknown pair")
	}
}

func TestRegistry_Delete(t *testing.T) {
	ctx := context.Background()
	reg, err := New(ctx, newMemStore(validPair("p1")), testBus())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := reg.Delete(ctx, "p1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := reg.Get("p1"); ok {
		t.Error("expected pair to be gone after Delete")
	}
}

func TestRegistry_RecordTrigger_FailureDoesNotAdvanceQuota(t *testing.T) {
	ctx := context.Background()
	reg, err := New(ctx, newMemStore(validPair("p1")), testBus())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := reg.RecordTrigger(ctx, "p1", false); err != nil {
		t.Fatalf("RecordTrigger() error = %v", err)
	}
	got, _ := reg.Get("p1")
	if got.ExecsDone != 0 {
		t.Errorf("ExecsDone = %d, want 0 after a failed trigger", got.ExecsDone)
	}
	if got.TotalTriggers != 1 {
		t.Errorf("TotalTriggers = %d, want 1", got.TotalTriggers)
	}
	if got.LastTriggeredAt == nil {
		t.Error("expected LastTriggeredAt to be set")
	}
}

func TestRegistry_Exhausted(t *testing.T) {
	p := validPair("p1")
	p.MaxExecs = 2
	p.ExecsDone = 2
	if !p.Exhausted() {
		t.Error("expected pair to be exhausted when ExecsDone >= MaxExecs")
	}
}

func TestRegistry_RecordTrigger_RemovesPairOnceExhausted(t *testing.T) {
	ctx := context.Background()
	p := validPair("p1")
	p.MaxExecs = 1
	store := newMemStore(p)
	bus := testBus()
	ch, cancel := bus.Subscribe()
	defer cancel()
	reg, err := New(ctx, store, bus)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := reg.RecordTrigger(ctx, "p1", true); err != nil {
		t.Fatalf("RecordTrigger() error = %v", err)
	}

	if _, ok := reg.Get("p1"); ok {
		t.Error("expected exhausted pair to be removed from the registry")
	}
	if _, err := store.Get(ctx, "p1"); err == nil {
		t.Error("expected exhausted pair to be removed from the store")
	}

	select {
	case ev := <-ch:
		if ev.Type != eventbus.TypePairRemoved {
			t.Errorf("Type = %v, want %v", ev.Type, eventbus.TypePairRemoved)
		}
	default:
		t.Error("expected pairRemoved to be published")
	}
}

func TestRegistry_Snapshot(t *testing.T) {
	ctx := context.Background()
	reg, err := New(ctx, newMemStore(validPair("p1"), validPair("p2")), testBus())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	snap := reg.Snapshot()
	if len(snap) != 2 {
		t.Errorf("Snapshot() len = %d, want 2", len(snap))
	}
}
