package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/fd1az/arbitrage-bot/internal/eventbus"
	"github.com/fd1az/arbitrage-bot/internal/logger"
)

func newWSTestServer(t *testing.T) (*httptest.Server, *eventbus.Bus) {
	t.Helper()
	pairs := newFakePairsRegistry()
	twap := newFakeTwapScheduler()
	execs := &fakeExecutionHistory{}
	prices := &fakeVenuePrices{adapters: nil}
	bus := eventbus.New(logger.New(io.Discard, logger.LevelDebug, "test", nil), 16)
	srv := New(logger.New(io.Discard, logger.LevelDebug, "test", nil), bus, pairs, twap, execs, prices, 30*time.Second, 90*time.Second)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, bus
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("websocket.Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func TestHandleWS_StreamsPublishedEvents(t *testing.T) {
	ts, bus := newWSTestServer(t)
	conn := dialWS(t, ts)

	bus.Publish(eventbus.Event{Type: eventbus.TypePairAdded, Data: map[string]string{"pairId": "p1"}})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, payload, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	var frame struct {
		Type string `json:"type"`
		Ts   time.Time
		Data map[string]string
	}
	if err := json.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if frame.Type != string(eventbus.TypePairAdded) {
		t.Errorf("Type = %q, want %q", frame.Type, eventbus.TypePairAdded)
	}
	if frame.Data["pairId"] != "p1" {
		t.Errorf("Data = %+v", frame.Data)
	}
}

func TestHandleWS_ClientCloseStopsStreaming(t *testing.T) {
	ts, bus := newWSTestServer(t)
	conn := dialWS(t, ts)

	before := bus.SubscriberCount()
	if before == 0 {
		t.Fatal("expected at least one subscriber after dial")
	}

	conn.Close(websocket.StatusNormalClosure, "done")

	// handleWS notices the close through its background reader or on its next
	// write attempt; keep publishing so either path ends the stream.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		bus.Publish(eventbus.Event{Type: eventbus.TypePairAdded, Data: map[string]string{"pairId": "p2"}})
		if bus.SubscriberCount() < before {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("subscriber count did not drop after client close, still %d", bus.SubscriberCount())
}
