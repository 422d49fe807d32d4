package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/fd1az/arbitrage-bot/internal/eventbus"
)

// wireEvent is the {type, ts, data} frame streamed over /ws per §6.
type wireEvent struct {
	Type string    `json:"type"`
	Ts   time.Time `json:"ts"`
	Data any       `json:"data"`
}

// handleWS accepts a client, subscribes it to the event bus, and streams every
// published event as a JSON frame until the connection drops or the server's
// heartbeat goes unanswered for wsPongTimeout.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Warn(r.Context(), "ws accept failed", "error", err.Error())
		return
	}
	defer conn.CloseNow()

	// CloseRead keeps a reader running so pongs are processed and a client close
	// cancels ctx; clients are not expected to send data frames.
	ctx, cancel := context.WithCancel(conn.CloseRead(r.Context()))
	defer cancel()

	events, unsubscribe := s.bus.Subscribe()
	defer unsubscribe()

	go s.wsHeartbeatLoop(ctx, conn, cancel)

	heartbeat := s.wsHeartbeat
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "closing")
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "closing")
				return
			}
			frame := wireEvent{Type: string(ev.Type), Ts: ev.Ts, Data: ev.Data}
			payload, err := json.Marshal(frame)
			if err != nil {
				s.log.Warn(ctx, "ws frame marshal failed", "error", err.Error())
				continue
			}
			writeCtx, writeCancel := context.WithTimeout(ctx, 5*time.Second)
			err = conn.Write(writeCtx, websocket.MessageText, payload)
			writeCancel()
			if err != nil {
				return
			}
		}
	}
}

// wsHeartbeatLoop pings the client every wsHeartbeat and cancels the connection's
// context if the client never answers within wsPongTimeout (§6: drop after 90s
// without a pong). coder/websocket's Ping blocks until the pong arrives, so a
// failed/timed-out Ping is itself the unanswered-heartbeat signal.
func (s *Server) wsHeartbeatLoop(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	heartbeat := s.wsHeartbeat
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	pongTimeout := s.wsPongTimeout
	if pongTimeout <= 0 {
		pongTimeout = 90 * time.Second
	}

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, pongTimeout)
			err := conn.Ping(pingCtx)
			pingCancel()
			if err != nil {
				s.log.Warn(ctx, "ws heartbeat unanswered, dropping connection", "error", err.Error())
				cancel()
				return
			}
		}
	}
}
