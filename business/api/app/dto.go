// Package app implements the HTTP/WebSocket surface (component C7's consumer):
// it translates domain entities to wire DTOs and dispatches requests into the
// other bounded contexts' narrow ports.
package app

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/domain"
)

type legDTO struct {
	Venue    string `json:"venue"`
	Symbol   string `json:"symbol"`
	Category string `json:"category"`
	Side     string `json:"side"`
}

func legFromDomain(l domain.LegSpec) legDTO {
	return legDTO{Venue: string(l.Venue), Symbol: string(l.Symbol), Category: string(l.Category), Side: string(l.Side)}
}

func (d legDTO) toDomain() domain.LegSpec {
	return domain.LegSpec{
		Venue:    domain.NewVenueId(d.Venue),
		Symbol:   domain.NewSymbol(d.Symbol),
		Category: domain.NormalizeCategory(d.Category),
		Side:     domain.Side(d.Side),
	}
}

// pairDTO is the wire shape of a domain.MonitoringPair.
type pairDTO struct {
	PairID          string     `json:"pairId,omitempty"`
	Leg1            legDTO     `json:"leg1"`
	Leg2            legDTO     `json:"leg2"`
	Threshold       string     `json:"threshold"`
	SliceQty        string     `json:"sliceQty"`
	MaxExecs        int        `json:"maxExecs"`
	ExecsDone       int        `json:"execsDone"`
	Enabled         bool       `json:"enabled"`
	CreatedAt       time.Time  `json:"createdAt,omitempty"`
	LastTriggeredAt *time.Time `json:"lastTriggeredAt,omitempty"`
	TotalTriggers   int        `json:"totalTriggers,omitempty"`
}

func pairFromDomain(p domain.MonitoringPair) pairDTO {
	return pairDTO{
		PairID:          p.PairID,
		Leg1:            legFromDomain(p.Leg1),
		Leg2:            legFromDomain(p.Leg2),
		Threshold:       p.Threshold.String(),
		SliceQty:        p.SliceQty.String(),
		MaxExecs:        p.MaxExecs,
		ExecsDone:       p.ExecsDone,
		Enabled:         p.Enabled,
		CreatedAt:       p.CreatedAt,
		LastTriggeredAt: p.LastTriggeredAt,
		TotalTriggers:   p.TotalTriggers,
	}
}

func (d pairDTO) toDomain() (domain.MonitoringPair, error) {
	threshold, err := decimal.NewFromString(d.Threshold)
	if err != nil {
		return domain.MonitoringPair{}, err
	}
	sliceQty, err := decimal.NewFromString(d.SliceQty)
	if err != nil {
		return domain.MonitoringPair{}, err
	}
	return domain.MonitoringPair{
		PairID:    d.PairID,
		Leg1:      d.Leg1.toDomain(),
		Leg2:      d.Leg2.toDomain(),
		Threshold: threshold,
		SliceQty:  sliceQty,
		MaxExecs:  d.MaxExecs,
		Enabled:   d.Enabled,
	}, nil
}

// pairPatchDTO carries the PATCH /api/pairs/{id} partial-update fields.
// Pointer fields distinguish "absent" from "set to zero value".
type pairPatchDTO struct {
	Enabled   *bool   `json:"enabled,omitempty"`
	Threshold *string `json:"threshold,omitempty"`
	SliceQty  *string `json:"sliceQty,omitempty"`
	MaxExecs  *int    `json:"maxExecs,omitempty"`
}

// twapPlanDTO is the wire shape of a domain.TwapPlan.
type twapPlanDTO struct {
	PlanID      string    `json:"planId,omitempty"`
	Leg1        legDTO    `json:"leg1"`
	Leg2        legDTO    `json:"leg2"`
	TotalQty    string    `json:"totalQty"`
	SliceQty    string    `json:"sliceQty"`
	IntervalMs  int64     `json:"intervalMs"`
	SlicesTotal int       `json:"slicesTotal"`
	State       string    `json:"state"`
	SlicesDone  int       `json:"slicesDone"`
	Remaining   int       `json:"remaining"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

func twapFromDomain(p domain.TwapPlan) twapPlanDTO {
	return twapPlanDTO{
		PlanID:      p.PlanID,
		Leg1:        legFromDomain(p.Legs[0]),
		Leg2:        legFromDomain(p.Legs[1]),
		TotalQty:    p.TotalQty.String(),
		SliceQty:    p.SliceQty.String(),
		IntervalMs:  p.IntervalMs,
		SlicesTotal: p.SlicesTotal,
		State:       string(p.State),
		SlicesDone:  p.Progress.SlicesDone,
		Remaining:   p.Progress.Remaining,
		CreatedAt:   p.CreatedAt,
	}
}

// twapCreateDTO is the POST /api/twap request body.
type twapCreateDTO struct {
	Leg1       legDTO `json:"leg1"`
	Leg2       legDTO `json:"leg2"`
	TotalQty   string `json:"totalQty"`
	SliceQty   string `json:"sliceQty"`
	IntervalMs int64  `json:"intervalMs"`
}

func legExecFromDomain(l domain.LegExecution) map[string]any {
	return map[string]any{
		"leg":          legFromDomain(l.Leg),
		"success":      l.Result.Success,
		"orderId":      l.Result.OrderID,
		"filledPrice":  l.Result.FilledPrice.String(),
		"filledQty":    l.Result.FilledQty.String(),
		"errorCode":    l.Result.ErrorCode,
		"errorMessage": l.Result.ErrorMessage,
		"ts":           l.Ts,
	}
}

// executionDTO is the wire shape of a domain.ExecutionRecord.
type executionDTO struct {
	ExecutionID string         `json:"executionId"`
	PairID      string         `json:"pairId"`
	Ts          time.Time      `json:"ts"`
	Leg1        map[string]any `json:"leg1"`
	Leg2        map[string]any `json:"leg2"`
	Qty         string         `json:"qty"`
	Status      string         `json:"status"`
}

func executionFromDomain(r domain.ExecutionRecord) executionDTO {
	return executionDTO{
		ExecutionID: r.ExecutionID,
		PairID:      r.PairID,
		Ts:          r.Ts,
		Leg1:        legExecFromDomain(r.Leg1),
		Leg2:        legExecFromDomain(r.Leg2),
		Qty:         r.Qty.String(),
		Status:      string(r.Status),
	}
}

// quoteDTO is the wire shape of an on-demand price fetch.
type quoteDTO struct {
	Venue    string `json:"venue"`
	Symbol   string `json:"symbol"`
	Category string `json:"category"`
	BidPrice string `json:"bidPrice"`
	BidSize  string `json:"bidSize"`
	AskPrice string `json:"askPrice"`
	AskSize  string `json:"askSize"`
}

func quoteFromDomain(q domain.Quote) quoteDTO {
	return quoteDTO{
		Venue:    string(q.Venue),
		Symbol:   string(q.Symbol),
		Category: string(q.Category),
		BidPrice: q.BidPrice.String(),
		BidSize:  q.BidSize.String(),
		AskPrice: q.AskPrice.String(),
		AskSize:  q.AskSize.String(),
	}
}
