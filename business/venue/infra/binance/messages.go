// Package binance implements the C1 Venue Adapter contract for Binance spot and
// USDⓈ-M/COIN-M futures (category spot/linear/inverse map onto distinct Binance
// REST/WS hosts), grounded in the pricing module's original single-category client.
package binance

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

// WSRequest is a WebSocket subscription request.
type WSRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// StreamEvent is the base wrapper for all combined-stream messages.
type StreamEvent struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// BookTickerEvent is a best bid/ask push. Stream: <symbol>@bookTicker.
type BookTickerEvent struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

func (e *BookTickerEvent) bid() (decimal.Decimal, error) { return decimal.NewFromString(e.BidPrice) }
func (e *BookTickerEvent) ask() (decimal.Decimal, error) { return decimal.NewFromString(e.AskPrice) }
func (e *BookTickerEvent) bidQty() (decimal.Decimal, error) {
	return decimal.NewFromString(e.BidQty)
}
func (e *BookTickerEvent) askQty() (decimal.Decimal, error) {
	return decimal.NewFromString(e.AskQty)
}

// PartialDepthEvent is a top-N book snapshot. Symbol comes from the stream name,
// not the payload. Stream: <symbol>@depth20@100ms.
type PartialDepthEvent struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
	Symbol       string     `json:"-"`
}

func topLevel(levels [][]string) (price, qty decimal.Decimal, ok bool) {
	if len(levels) == 0 || len(levels[0]) < 2 {
		return decimal.Zero, decimal.Zero, false
	}
	p, err := decimal.NewFromString(levels[0][0])
	if err != nil {
		return decimal.Zero, decimal.Zero, false
	}
	q, err := decimal.NewFromString(levels[0][1])
	if err != nil {
		return decimal.Zero, decimal.Zero, false
	}
	return p, q, true
}

// DepthStream returns the partial-depth stream name for a symbol.
func DepthStream(symbol string, speedMs int) string {
	return lowercase(symbol) + "@depth20@" + strconv.Itoa(speedMs) + "ms"
}

// BookTickerStream returns the bookTicker stream name for a symbol.
func BookTickerStream(symbol string) string {
	return lowercase(symbol) + "@bookTicker"
}

func lowercase(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 32
		}
	}
	return string(b)
}

// orderResponse is the REST response shape for a new-order request.
type orderResponse struct {
	OrderID       int64  `json:"orderId"`
	Status        string `json:"status"`
	ExecutedQty   string `json:"executedQty"`
	CummulativeQ  string `json:"cummulativeQuoteQty"`
	Code          int    `json:"code"`
	Msg           string `json:"msg"`
}

// depthResponse is the REST response for an order-book snapshot.
type depthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}
