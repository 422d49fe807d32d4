// Package infra adapts the venue Registry to the executor's narrow
// VenueAdapters port, so business/executor/app never imports business/venue.
package infra

import (
	"context"

	"github.com/fd1az/arbitrage-bot/business/executor/app"
	venueapp "github.com/fd1az/arbitrage-bot/business/venue/app"
	"github.com/fd1az/arbitrage-bot/domain"
	"github.com/fd1az/arbitrage-bot/internal/apperror"
)

var _ app.VenueAdapters = (*VenueAdapters)(nil)

// VenueAdapters resolves a venue id through a venue app.Registry.
type VenueAdapters struct {
	Registry venueapp.Registry
}

// SubmitOrder dispatches to the named venue's adapter.
func (v *VenueAdapters) SubmitOrder(ctx context.Context, venue domain.VenueId, req domain.OrderRequest) (domain.OrderResult, error) {
	adapter, ok := v.Registry.Adapter(venue)
	if !ok {
		return domain.OrderResult{}, apperror.NotFound(apperror.CodeVenueNotFound, string(venue))
	}
	return adapter.SubmitOrder(ctx, req)
}
