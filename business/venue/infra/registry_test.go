package infra

import (
	"context"
	"testing"

	"github.com/fd1az/arbitrage-bot/business/venue/app"
	"github.com/fd1az/arbitrage-bot/domain"
)

type stubAdapter struct {
	venue    domain.VenueId
	cleanups int
}

func (a *stubAdapter) Venue() domain.VenueId { return a.venue }
func (a *stubAdapter) Initialize(context.Context, app.Credentials, bool) error { return nil }
func (a *stubAdapter) OnTopOfBook(app.TopOfBookHandler)                        {}
func (a *stubAdapter) SubscribeTopOfBook(context.Context, []app.SymbolCategory) error {
	return nil
}
func (a *stubAdapter) UnsubscribeTopOfBook(context.Context, []app.SymbolCategory) error {
	return nil
}
func (a *stubAdapter) FetchOrderBook(context.Context, domain.Symbol, domain.Category) (domain.Quote, error) {
	return domain.Quote{}, nil
}
func (a *stubAdapter) SubmitOrder(context.Context, domain.OrderRequest) (domain.OrderResult, error) {
	return domain.OrderResult{}, nil
}
func (a *stubAdapter) Cleanup() { a.cleanups++ }

func TestStaticRegistry_AddAndLookup(t *testing.T) {
	r := NewStaticRegistry()
	binance := &stubAdapter{venue: "binance"}
	r.Add(binance)

	got, ok := r.Adapter("binance")
	if !ok {
		t.Fatal("expected binance adapter to be found")
	}
	if got.Venue() != "binance" {
		t.Errorf("Venue() = %q, want binance", got.Venue())
	}

	if _, ok := r.Adapter("unknown"); ok {
		t.Error("expected unknown venue to be absent")
	}
}

func TestStaticRegistry_Venues(t *testing.T) {
	r := NewStaticRegistry()
	r.Add(&stubAdapter{venue: "binance"})
	r.Add(&stubAdapter{venue: "bybit"})

	venues := r.Venues()
	if len(venues) != 2 {
		t.Errorf("Venues() len = %d, want 2", len(venues))
	}
}

func TestStaticRegistry_Cleanup(t *testing.T) {
	r := NewStaticRegistry()
	a := &stubAdapter{venue: "binance"}
	r.Add(a)
	r.Cleanup()
	if a.cleanups != 1 {
		t.Errorf("cleanups = %d, want 1", a.cleanups)
	}
}
