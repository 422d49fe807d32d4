package binance

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/domain"
	"github.com/fd1az/arbitrage-bot/internal/apperror"
	"github.com/fd1az/arbitrage-bot/internal/logger"
)

func testAdapter(t *testing.T, category domain.Category) *Adapter {
	t.Helper()
	a, err := New(Config{Category: category}, logger.New(io.Discard, logger.LevelDebug, "test", nil))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestConfig_WithDefaults(t *testing.T) {
	c := Config{}.withDefaults()
	if c.DepthSpeedMs != 100 {
		t.Errorf("DepthSpeedMs = %d, want 100", c.DepthSpeedMs)
	}
	if c.StaleTimeout != 5*time.Second {
		t.Errorf("StaleTimeout = %v, want 5s", c.StaleTimeout)
	}
	if c.RateLimitRPM != 1200 {
		t.Errorf("RateLimitRPM = %d, want 1200", c.RateLimitRPM)
	}
	if c.SubmitTimeout != 10*time.Second {
		t.Errorf("SubmitTimeout = %v, want 10s", c.SubmitTimeout)
	}
	if c.FetchTimeout != 5*time.Second {
		t.Errorf("FetchTimeout = %v, want 5s", c.FetchTimeout)
	}
}

func TestNew_RejectsUnsupportedCategory(t *testing.T) {
	_, err := New(Config{Category: "nonsense"}, logger.New(io.Discard, logger.LevelDebug, "test", nil))
	if err == nil {
		t.Error("expected New to reject an unsupported category")
	}
}

func TestAdapter_Ingest_MonotonicDropRule(t *testing.T) {
	a := testAdapter(t, domain.CategorySpot)
	var received []domain.Quote
	a.OnTopOfBook(func(q domain.Quote) { received = append(received, q) })

	a.ingest("BTCUSDT", decimal.NewFromInt(100), decimal.NewFromInt(1), decimal.NewFromInt(101), decimal.NewFromInt(1), 10)
	a.ingest("BTCUSDT", decimal.NewFromInt(200), decimal.NewFromInt(1), decimal.NewFromInt(201), decimal.NewFromInt(1), 5) // stale, must be dropped
	a.ingest("BTCUSDT", decimal.NewFromInt(300), decimal.NewFromInt(1), decimal.NewFromInt(301), decimal.NewFromInt(1), 20)

	if len(received) != 2 {
		t.Fatalf("received %d quotes, want 2 (stale update must be dropped)", len(received))
	}
	if !received[1].BidPrice.Equal(decimal.NewFromInt(300)) {
		t.Errorf("last received BidPrice = %s, want 300", received[1].BidPrice)
	}
}

func TestAdapter_Ingest_InvalidQuoteDropped(t *testing.T) {
	a := testAdapter(t, domain.CategorySpot)
	var received []domain.Quote
	a.OnTopOfBook(func(q domain.Quote) { received = append(received, q) })

	// bid > ask is invalid per domain.Quote.Valid().
	a.ingest("BTCUSDT", decimal.NewFromInt(200), decimal.NewFromInt(1), decimal.NewFromInt(100), decimal.NewFromInt(1), 1)

	if len(received) != 0 {
		t.Errorf("received %d quotes, want 0 for an invalid (bid>ask) quote", len(received))
	}
}

func TestSymbolFromStream(t *testing.T) {
	tests := []struct{ stream, want string }{
		{"btcusdt@bookTicker", "BTCUSDT"},
		{"ethusdt@depth20@100ms", "ETHUSDT"},
		{"noatsign", "NOATSIGN"},
	}
	for _, tt := range tests {
		if got := symbolFromStream(tt.stream); got != tt.want {
			t.Errorf("symbolFromStream(%q) = %q, want %q", tt.stream, got, tt.want)
		}
	}
}

func TestAdapter_SubmitOrder_PublicOnlyModeFailsFast(t *testing.T) {
	a := testAdapter(t, domain.CategorySpot)
	a.publicOnly = true

	_, err := a.SubmitOrder(context.Background(), domain.OrderRequest{Qty: decimal.NewFromInt(1), Type: domain.OrderTypeMarket})
	if err == nil {
		t.Fatal("expected an error in public-only mode")
	}
	appErr, ok := err.(*apperror.AppError)
	if !ok {
		t.Fatalf("expected *apperror.AppError, got %T", err)
	}
	if appErr.Code != apperror.CodeAuthError {
		t.Errorf("Code = %v, want %v", appErr.Code, apperror.CodeAuthError)
	}
}

func TestClassifyOrderError(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		resp       orderResponse
		wantCode   apperror.Code
	}{
		{"insufficient_balance", 400, orderResponse{Code: -2010}, apperror.CodeInsufficientBalance},
		{"auth_error", 400, orderResponse{Code: -1021}, apperror.CodeAuthError},
		{"invalid_params", 400, orderResponse{Code: -1013}, apperror.CodeInvalidParams},
		{"rate_limited_status", 429, orderResponse{}, apperror.CodeRateLimited},
		{"unclassified", 500, orderResponse{Code: -9999}, apperror.Code("TRANSPORT_ERROR")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyOrderError(tt.statusCode, tt.resp)
			if got.Success {
				t.Error("expected Success=false for a classified error")
			}
			if apperror.Code(got.ErrorCode) != tt.wantCode {
				t.Errorf("ErrorCode = %s, want %s", got.ErrorCode, tt.wantCode)
			}
		})
	}
}
