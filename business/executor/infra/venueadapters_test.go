package infra

import (
	"context"
	"testing"

	venueapp "github.com/fd1az/arbitrage-bot/business/venue/app"
	"github.com/fd1az/arbitrage-bot/domain"
	"github.com/fd1az/arbitrage-bot/internal/apperror"
)

type stubAdapter struct {
	venueapp.Adapter
	result domain.OrderResult
}

func (s *stubAdapter) SubmitOrder(context.Context, domain.OrderRequest) (domain.OrderResult, error) {
	return s.result, nil
}

type stubRegistry struct {
	adapters map[domain.VenueId]venueapp.Adapter
}

func (r *stubRegistry) Adapter(venue domain.VenueId) (venueapp.Adapter, bool) {
	a, ok := r.adapters[venue]
	return a, ok
}

func (r *stubRegistry) Venues() []domain.VenueId { return nil }

func TestVenueAdapters_SubmitOrder_Delegates(t *testing.T) {
	reg := &stubRegistry{adapters: map[domain.VenueId]venueapp.Adapter{
		"binance": &stubAdapter{result: domain.OrderResult{Success: true, OrderID: "1"}},
	}}
	va := &VenueAdapters{Registry: reg}

	got, err := va.SubmitOrder(context.Background(), "binance", domain.OrderRequest{})
	if err != nil {
		t.Fatalf("SubmitOrder() error = %v", err)
	}
	if !got.Success || got.OrderID != "1" {
		t.Errorf("got = %+v", got)
	}
}

func TestVenueAdapters_SubmitOrder_UnknownVenue(t *testing.T) {
	va := &VenueAdapters{Registry: &stubRegistry{adapters: map[domain.VenueId]venueapp.Adapter{}}}

	_, err := va.SubmitOrder(context.Background(), "unknown", domain.OrderRequest{})
	if err == nil {
		t.Fatal("expected an error for an unknown venue")
	}
	appErr, ok := err.(*apperror.AppError)
	if !ok {
		t.Fatalf("expected *apperror.AppError, got %T", err)
	}
	if appErr.Code != apperror.CodeVenueNotFound {
		t.Errorf("Code = %v, want %v", appErr.Code, apperror.CodeVenueNotFound)
	}
}
