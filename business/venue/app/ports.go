// Package app defines the Venue Adapter contract (component C1): uniform access to
// one exchange venue regardless of its wire protocol.
package app

import (
	"context"

	"github.com/fd1az/arbitrage-bot/domain"
)

// Credentials are optional venue API keys. A zero-value Credentials puts an
// adapter in public-only mode: market data works, SubmitOrder fails immediately.
type Credentials struct {
	APIKey    string
	APISecret string
}

// Empty reports whether no credentials were supplied.
func (c Credentials) Empty() bool {
	return c.APIKey == "" && c.APISecret == ""
}

// SymbolCategory names one top-of-book stream to subscribe/unsubscribe.
type SymbolCategory struct {
	Symbol   domain.Symbol
	Category domain.Category
}

// TopOfBookHandler receives stream pushes; the adapter has already applied the
// monotonic-venueTs and ticker-vs-depth freshness rules of §4.1 before calling it.
type TopOfBookHandler func(domain.Quote)

// Adapter is the capability set every venue implementation exposes (§4.1).
type Adapter interface {
	// Venue returns this adapter's venue identifier.
	Venue() domain.VenueId

	// Initialize connects market-data streams and, if creds are non-empty,
	// authenticates the private (order) API. Succeeds in public-only mode when
	// creds are empty; fails with AuthError if non-empty creds are rejected.
	Initialize(ctx context.Context, creds Credentials, testnet bool) error

	// OnTopOfBook registers the callback invoked for every accepted quote update.
	// Must be called before Initialize to not miss early pushes.
	OnTopOfBook(handler TopOfBookHandler)

	// SubscribeTopOfBook adds streams; the adapter auto-reconnects on drop.
	SubscribeTopOfBook(ctx context.Context, subs []SymbolCategory) error

	// UnsubscribeTopOfBook removes streams. Errors are logged, never returned.
	UnsubscribeTopOfBook(ctx context.Context, subs []SymbolCategory) error

	// FetchOrderBook is a synchronous REST fetch of current top-of-book.
	FetchOrderBook(ctx context.Context, symbol domain.Symbol, category domain.Category) (domain.Quote, error)

	// SubmitOrder places a market or limit order. In public-only mode this fails
	// immediately with AuthError without making a network call.
	SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)

	// Cleanup releases connections. Never fails.
	Cleanup()
}

// Registry maps a venue id to its Adapter, the wiring point C2/C4/C5 use to reach C1
// without depending on any concrete venue package.
type Registry interface {
	Adapter(venue domain.VenueId) (Adapter, bool)
	Venues() []domain.VenueId
}
