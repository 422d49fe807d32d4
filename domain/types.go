// Package domain holds the data model shared by every bounded context: venues,
// quotes, monitoring pairs, orders, executions and TWAP plans.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// VenueId identifies an exchange venue. Always normalized to lower-case.
type VenueId string

// NewVenueId lower-cases and trims raw venue input.
func NewVenueId(raw string) VenueId {
	return VenueId(strings.ToLower(strings.TrimSpace(raw)))
}

func (v VenueId) String() string { return string(v) }

// Category is the market a symbol refers to on a venue.
type Category string

const (
	CategorySpot    Category = "spot"
	CategoryLinear  Category = "linear"
	CategoryInverse Category = "inverse"
)

// NormalizeCategory applies the registry's legacy-value normalization rule
// (legacy "future" -> "linear") and defaults empty input to "spot".
func NormalizeCategory(raw string) Category {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return CategorySpot
	case "future", "futures", "linear":
		return CategoryLinear
	case "inverse":
		return CategoryInverse
	case "spot":
		return CategorySpot
	default:
		return Category(strings.ToLower(raw))
	}
}

// Side is a buy or sell leg.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Symbol is an uppercase, alphanumeric trading symbol, e.g. BTCUSDT.
type Symbol string

// NewSymbol upper-cases raw input.
func NewSymbol(raw string) Symbol {
	return Symbol(strings.ToUpper(strings.TrimSpace(raw)))
}

func (s Symbol) String() string { return string(s) }

// Quote is a top-of-book snapshot for one (venue, symbol, category).
type Quote struct {
	Venue    VenueId
	Symbol   Symbol
	Category Category
	BidPrice decimal.Decimal
	BidSize  decimal.Decimal
	AskPrice decimal.Decimal
	AskSize  decimal.Decimal
	// SourceTs is the venue's own event timestamp, or the receive time where the
	// venue's payload carries none; the monotonicity invariant of the Quote Cache
	// is enforced on this field, never on IngestTs.
	SourceTs time.Time
	IngestTs time.Time
}

// Valid checks the bidPrice <= askPrice invariant when both sides are present.
func (q Quote) Valid() bool {
	if q.BidPrice.IsZero() || q.AskPrice.IsZero() {
		return true
	}
	return q.BidPrice.LessThanOrEqual(q.AskPrice)
}

// Key identifies a quote's cache slot.
func (q Quote) Key() QuoteKey {
	return QuoteKey{Venue: q.Venue, Symbol: q.Symbol, Category: q.Category}
}

// QuoteKey is the Quote Cache's map key: (venue, symbol, category).
type QuoteKey struct {
	Venue    VenueId
	Symbol   Symbol
	Category Category
}

func (k QuoteKey) String() string {
	return string(k.Venue) + "/" + string(k.Symbol) + "/" + string(k.Category)
}

// LegSpec names one leg of a paired trade.
type LegSpec struct {
	Venue    VenueId
	Symbol   Symbol
	Category Category
	Side     Side
}

// Key returns the LegSpec's Quote Cache lookup key.
func (l LegSpec) Key() QuoteKey {
	return QuoteKey{Venue: l.Venue, Symbol: l.Symbol, Category: l.Category}
}

// Equal reports whether two legs address the same (venue, symbol, category, side).
func (l LegSpec) Equal(o LegSpec) bool {
	return l.Venue == o.Venue && l.Symbol == o.Symbol && l.Category == o.Category && l.Side == o.Side
}

// Direction describes which leg buys and which leg sells.
type Direction string

const (
	DirectionL1BuyL2Sell  Direction = "L1BUY_L2SELL"
	DirectionL1SellL2Buy  Direction = "L1SELL_L2BUY"
)

// MonitoringPair is the durable entity driving one detector task.
type MonitoringPair struct {
	PairID          string
	Leg1            LegSpec
	Leg2            LegSpec
	Threshold       decimal.Decimal
	SliceQty        decimal.Decimal
	MaxExecs        int
	ExecsDone       int
	Enabled         bool
	CreatedAt       time.Time
	LastTriggeredAt *time.Time
	TotalTriggers   int
}

// Direction returns this pair's fixed trade direction; leg1.Side determines it.
func (p MonitoringPair) Direction() Direction {
	if p.Leg1.Side == SideSell {
		return DirectionL1SellL2Buy
	}
	return DirectionL1BuyL2Sell
}

// Exhausted reports whether the pair has used its full execution quota.
func (p MonitoringPair) Exhausted() bool {
	return p.ExecsDone >= p.MaxExecs
}

// OrderType distinguishes market from limit orders.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderRequest is an immutable instruction to a Venue Adapter.
type OrderRequest struct {
	Venue    VenueId
	Symbol   Symbol
	Category Category
	Side     Side
	Qty      decimal.Decimal
	Type     OrderType
	Price    decimal.Decimal // required iff Type == OrderTypeLimit
}

// OrderResult is what a Venue Adapter returns for one OrderRequest.
type OrderResult struct {
	Success      bool
	OrderID      string
	FilledPrice  decimal.Decimal
	FilledQty    decimal.Decimal
	ErrorCode    string
	ErrorMessage string
}

// ExecutionStatus classifies the outcome of a paired (or TWAP slice) submission.
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionPartial ExecutionStatus = "partial"
	ExecutionFailed  ExecutionStatus = "failed"
)

// LegExecution pairs a LegSpec with the OrderResult it produced.
type LegExecution struct {
	Leg    LegSpec
	Result OrderResult
	Ts     time.Time
}

// ExecutionRecord is an append-only record of one paired (or TWAP slice) trade.
type ExecutionRecord struct {
	ExecutionID string
	PairID      string // pairId or planId, whichever dispatched this execution
	Ts          time.Time
	Leg1        LegExecution
	Leg2        LegExecution
	Qty         decimal.Decimal
	Status      ExecutionStatus
}

// TwapState is a TWAP plan's lifecycle state.
type TwapState string

const (
	TwapRunning   TwapState = "running"
	TwapPaused    TwapState = "paused"
	TwapCompleted TwapState = "completed"
	TwapCancelled TwapState = "cancelled"
)

// Terminal reports whether no further transitions are allowed out of this state.
func (s TwapState) Terminal() bool {
	return s == TwapCompleted || s == TwapCancelled
}

// TwapProgress is a plan's mutable slice-dispatch bookkeeping.
type TwapProgress struct {
	SlicesDone     int
	Remaining      int
	NextDispatchTs time.Time
}

// TwapPlan is the durable entity driving the TWAP Scheduler.
type TwapPlan struct {
	PlanID      string
	Legs        [2]LegSpec
	TotalQty    decimal.Decimal
	SliceQty    decimal.Decimal
	IntervalMs  int64
	SlicesTotal int
	State       TwapState
	Progress    TwapProgress
	CreatedAt   time.Time
}
