package app

import (
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/arbitrage-bot/domain"
	"github.com/fd1az/arbitrage-bot/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelDebug, "test", nil)
}

func sampleQuote(venue domain.VenueId, ts time.Time, bid string) domain.Quote {
	return domain.Quote{
		Venue:    venue,
		Symbol:   "BTCUSDT",
		Category: domain.CategorySpot,
		BidPrice: decimal.RequireFromString(bid),
		AskPrice: decimal.RequireFromString(bid).Add(decimal.NewFromInt(1)),
		SourceTs: ts,
		IngestTs: ts,
	}
}

func TestCache_Update_LatestWins(t *testing.T) {
	c := New(testLogger())
	base := time.Now().UTC()

	c.Update(sampleQuote("binance", base, "100"))
	c.Update(sampleQuote("binance", base.Add(time.Second), "101"))

	got, ok := c.Get(domain.QuoteKey{Venue: "binance", Symbol: "BTCUSDT", Category: domain.CategorySpot})
	if !ok {
		t.Fatal("expected a quote to be present")
	}
	if !got.BidPrice.Equal(decimal.RequireFromString("101")) {
		t.Errorf("BidPrice = %s, want 101", got.BidPrice)
	}
}

func TestCache_Update_DropsOlderSourceTs(t *testing.T) {
	c := New(testLogger())
	base := time.Now().UTC()

	c.Update(sampleQuote("binance", base, "101"))
	c.Update(sampleQuote("binance", base.Add(-time.Second), "999")) // stale, must be dropped

	got, ok := c.Get(domain.QuoteKey{Venue: "binance", Symbol: "BTCUSDT", Category: domain.CategorySpot})
	if !ok {
		t.Fatal("expected a quote to be present")
	}
	if !got.BidPrice.Equal(decimal.RequireFromString("101")) {
		t.Errorf("BidPrice = %s, want 101 (stale update must not overwrite)", got.BidPrice)
	}
}

func TestCache_Update_EqualSourceTsDropped(t *testing.T) {
	c := New(testLogger())
	base := time.Now().UTC()

	c.Update(sampleQuote("binance", base, "101"))
	c.Update(sampleQuote("binance", base, "999")) // same ts, must be dropped too

	got, _ := c.Get(domain.QuoteKey{Venue: "binance", Symbol: "BTCUSDT", Category: domain.CategorySpot})
	if !got.BidPrice.Equal(decimal.RequireFromString("101")) {
		t.Errorf("BidPrice = %s, want 101", got.BidPrice)
	}
}

func TestCache_Get_UnknownKey(t *testing.T) {
	c := New(testLogger())
	_, ok := c.Get(domain.QuoteKey{Venue: "binance", Symbol: "ETHUSDT", Category: domain.CategorySpot})
	if ok {
		t.Error("expected no quote for an unknown key")
	}
}

func TestCache_History_Bounded(t *testing.T) {
	c := New(testLogger())
	base := time.Now().UTC()
	key := domain.QuoteKey{Venue: "binance", Symbol: "BTCUSDT", Category: domain.CategorySpot}

	for i := 0; i < HistoryLen+10; i++ {
		c.Update(sampleQuote("binance", base.Add(time.Duration(i)*time.Millisecond), "100"))
	}

	hist := c.History(key)
	if len(hist) != HistoryLen {
		t.Errorf("History() len = %d, want %d", len(hist), HistoryLen)
	}
}

func TestCache_Observe_ReceivesUpdates(t *testing.T) {
	c := New(testLogger())
	ch, cancel := c.Observe()
	defer cancel()

	c.Update(sampleQuote("binance", time.Now().UTC(), "100"))

	select {
	case q := <-ch:
		if q.Venue != "binance" {
			t.Errorf("observed venue = %q, want binance", q.Venue)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for observed quote")
	}
}

func TestCache_Observe_CancelStopsDelivery(t *testing.T) {
	c := New(testLogger())
	ch, cancel := c.Observe()
	cancel()

	c.Update(sampleQuote("binance", time.Now().UTC(), "100"))

	if _, open := <-ch; open {
		t.Error("expected channel to be closed after cancel")
	}
}

func TestCache_Observe_SlowObserverDropsRatherThanBlocks(t *testing.T) {
	c := New(testLogger())
	ch, cancel := c.Observe()
	defer cancel()

	base := time.Now().UTC()
	for i := 0; i < DefaultObserverBacklog+10; i++ {
		c.Update(sampleQuote("binance", base.Add(time.Duration(i)*time.Millisecond), "100"))
	}

	// A full, never-drained channel should not have blocked Update above; the
	// cache must still be responsive to reads.
	if _, ok := c.Get(domain.QuoteKey{Venue: "binance", Symbol: "BTCUSDT", Category: domain.CategorySpot}); !ok {
		t.Error("expected cache to stay responsive despite a saturated observer channel")
	}
	_ = ch
}
