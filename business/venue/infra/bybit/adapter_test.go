package bybit

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
	if c.BaseURL != "https://api.bybit.com" {
		t.Errorf("BaseURL = %q, want default", c.BaseURL)
	}
	if c.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %v, want 500ms", c.PollInterval)
	}
	if c.RateLimitRPM != 600 {
		t.Errorf("RateLimitRPM = %d, want 600", c.RateLimitRPM)
	}
	if c.SubmitTimeout != 10*time.Second {
		t.Errorf("SubmitTimeout = %v, want 10s", c.SubmitTimeout)
	}
	if c.FetchTimeout != 3*time.Second {
		t.Errorf("FetchTimeout = %v, want 3s", c.FetchTimeout)
	}
}

func TestNew_RejectsUnsupportedCategory(t *testing.T) {
	_, err := New(Config{Category: "nonsense"}, logger.New(io.Discard, logger.LevelDebug, "test", nil))
	if err == nil {
		t.Error("expected New to reject an unsupported category")
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

func TestAdapter_SubmitOrder_RejectsNonPositiveQty(t *testing.T) {
	a := testAdapter(t, domain.CategorySpot)
	a.publicOnly = false

	_, err := a.SubmitOrder(context.Background(), domain.OrderRequest{Qty: decimal.Zero, Type: domain.OrderTypeMarket})
	if err == nil {
		t.Fatal("expected an error for zero qty")
	}
}

func TestClassifyOrderError(t *testing.T) {
	tests := []struct {
		name     string
		retCode  int
		wantCode apperror.Code
	}{
		{"insufficient_balance", 110007, apperror.CodeInsufficientBalance},
		{"auth_error", 10003, apperror.CodeAuthError},
		{"invalid_params", 10001, apperror.CodeInvalidParams},
		{"rate_limited", 10006, apperror.CodeRateLimited},
		{"unclassified", 999999, apperror.CodeTransportError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyOrderError(tt.retCode, "boom")
			if got.Success {
				t.Error("expected Success=false for a classified error")
			}
			if apperror.Code(got.ErrorCode) != tt.wantCode {
				t.Errorf("ErrorCode = %s, want %s", got.ErrorCode, tt.wantCode)
			}
			if got.ErrorMessage != "boom" {
				t.Errorf("ErrorMessage = %q, want %q", got.ErrorMessage, "boom")
			}
		})
	}
}

func TestAdapter_SubscribeUnsubscribe_TracksPollLoops(t *testing.T) {
	a := testAdapter(t, domain.CategorySpot)
	ctx := context.Background()
	if err := a.SubscribeTopOfBook(ctx, nil); err != nil {
		t.Fatalf("SubscribeTopOfBook() error = %v", err)
	}
	if err := a.UnsubscribeTopOfBook(ctx, nil); err != nil {
		t.Fatalf("UnsubscribeTopOfBook() error = %v", err)
	}
}

func TestAdapter_Cleanup_StopsAllPolling(t *testing.T) {
	a := testAdapter(t, domain.CategorySpot)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.polling["BTCUSDT"] = cancel

	a.Cleanup()

	if len(a.polling) != 0 {
		t.Errorf("polling map len = %d, want 0 after Cleanup", len(a.polling))
	}
}
