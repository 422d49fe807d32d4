// Package infra adapts the venue Registry to the twap scheduler's narrow
// VenueAdapters port, mirroring business/executor/infra.
package infra

import (
	"context"

	"github.com/fd1az/arbitrage-bot/business/twap/app"
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
