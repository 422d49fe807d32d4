package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	venueapp "github.com/fd1az/arbitrage-bot/business/venue/app"
	"github.com/fd1az/arbitrage-bot/domain"
	"github.com/fd1az/arbitrage-bot/internal/apperror"
	"github.com/fd1az/arbitrage-bot/internal/eventbus"
	"github.com/fd1az/arbitrage-bot/internal/logger"
)

// PairsRegistry is the narrow port onto the Pair Registry (C3).
type PairsRegistry interface {
	Snapshot() []domain.MonitoringPair
	Get(pairID string) (domain.MonitoringPair, bool)
	Upsert(ctx context.Context, p domain.MonitoringPair) (domain.MonitoringPair, error)
	Delete(ctx context.Context, pairID string) error
}

// TwapScheduler is the narrow port onto the TWAP Scheduler (C6).
type TwapScheduler interface {
	Snapshot() []domain.TwapPlan
	Get(planID string) (domain.TwapPlan, bool)
	Create(ctx context.Context, legs [2]domain.LegSpec, totalQty, sliceQty decimal.Decimal, intervalMs int64) (domain.TwapPlan, error)
	Pause(ctx context.Context, planID string) (domain.TwapPlan, error)
	Resume(ctx context.Context, planID string) (domain.TwapPlan, error)
	Cancel(ctx context.Context, planID string) (domain.TwapPlan, error)
}

// ExecutionHistory is the narrow port onto the Executor's execution ring (C5).
type ExecutionHistory interface {
	History() []domain.ExecutionRecord
}

// VenuePrices is the narrow port for on-demand top-of-book fetches (C1).
type VenuePrices interface {
	Adapter(venue domain.VenueId) (venueapp.Adapter, bool)
}

// ReadyChecker reports whether a dependency is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Server implements the HTTP/WebSocket surface of §6.
type Server struct {
	log   logger.LoggerInterface
	bus   *eventbus.Bus
	pairs PairsRegistry
	twap  TwapScheduler
	execs ExecutionHistory
	prices VenuePrices

	readyChecks []ReadyChecker

	wsHeartbeat   time.Duration
	wsPongTimeout time.Duration

	mux *http.ServeMux
}

// New builds a Server and registers every route.
func New(log logger.LoggerInterface, bus *eventbus.Bus, pairs PairsRegistry, twap TwapScheduler, execs ExecutionHistory, prices VenuePrices, wsHeartbeat, wsPongTimeout time.Duration, readyChecks ...ReadyChecker) *Server {
	s := &Server{
		log:           log,
		bus:           bus,
		pairs:         pairs,
		twap:          twap,
		execs:         execs,
		prices:        prices,
		readyChecks:   readyChecks,
		wsHeartbeat:   wsHeartbeat,
		wsPongTimeout: wsPongTimeout,
	}
	s.mux = http.NewServeMux()
	s.routes()
	return s
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)
	s.mux.HandleFunc("GET /metrics", promhttp.Handler().ServeHTTP)

	s.mux.HandleFunc("GET /api/pairs", s.handleListPairs)
	s.mux.HandleFunc("PUT /api/pairs", s.handleUpsertPair)
	s.mux.HandleFunc("PATCH /api/pairs/{id}", s.handlePatchPair)
	s.mux.HandleFunc("DELETE /api/pairs/{id}", s.handleDeletePair)

	s.mux.HandleFunc("GET /api/twap", s.handleListTwap)
	s.mux.HandleFunc("POST /api/twap", s.handleCreateTwap)
	s.mux.HandleFunc("POST /api/twap/{id}/{action}", s.handleTwapAction)

	s.mux.HandleFunc("GET /api/prices/{venue}/{symbol}", s.handlePrice)
	s.mux.HandleFunc("GET /api/executions", s.handleExecutions)

	s.mux.HandleFunc("GET /ws", s.handleWS)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	if appErr, ok := err.(*apperror.AppError); ok {
		writeJSON(w, appErr.StatusCode, appErr.ToResponse())
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"error": map[string]any{"code": apperror.CodeUnknownError, "message": err.Error()},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ts": time.Now().UTC()})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for _, check := range s.readyChecks {
		if err := check(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "notReady", "reason": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleListPairs(w http.ResponseWriter, r *http.Request) {
	snap := s.pairs.Snapshot()
	out := make([]pairDTO, 0, len(snap))
	for _, p := range snap {
		out = append(out, pairFromDomain(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpsertPair(w http.ResponseWriter, r *http.Request) {
	var dto pairDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, apperror.Validation(apperror.CodeInvalidInput, err.Error()))
		return
	}
	if dto.PairID == "" {
		dto.PairID = newPairID()
	}
	p, err := dto.toDomain()
	if err != nil {
		writeError(w, apperror.Validation(apperror.CodeInvalidFormat, err.Error()))
		return
	}
	saved, err := s.pairs.Upsert(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pairFromDomain(saved))
}

func (s *Server) handlePatchPair(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	existing, ok := s.pairs.Get(id)
	if !ok {
		writeError(w, apperror.NotFound(apperror.CodePairNotFound, id))
		return
	}

	var patch pairPatchDTO
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, apperror.Validation(apperror.CodeInvalidInput, err.Error()))
		return
	}
	if patch.Enabled != nil {
		existing.Enabled = *patch.Enabled
	}
	if patch.Threshold != nil {
		v, err := decimal.NewFromString(*patch.Threshold)
		if err != nil {
			writeError(w, apperror.Validation(apperror.CodeInvalidFormat, "threshold"))
			return
		}
		existing.Threshold = v
	}
	if patch.SliceQty != nil {
		v, err := decimal.NewFromString(*patch.SliceQty)
		if err != nil {
			writeError(w, apperror.Validation(apperror.CodeInvalidFormat, "sliceQty"))
			return
		}
		existing.SliceQty = v
	}
	if patch.MaxExecs != nil {
		existing.MaxExecs = *patch.MaxExecs
	}

	saved, err := s.pairs.Upsert(r.Context(), existing)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pairFromDomain(saved))
}

func (s *Server) handleDeletePair(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.pairs.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTwap(w http.ResponseWriter, r *http.Request) {
	snap := s.twap.Snapshot()
	out := make([]twapPlanDTO, 0, len(snap))
	for _, p := range snap {
		out = append(out, twapFromDomain(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTwap(w http.ResponseWriter, r *http.Request) {
	var dto twapCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, apperror.Validation(apperror.CodeInvalidInput, err.Error()))
		return
	}
	totalQty, err := decimal.NewFromString(dto.TotalQty)
	if err != nil {
		writeError(w, apperror.Validation(apperror.CodeInvalidFormat, "totalQty"))
		return
	}
	sliceQty, err := decimal.NewFromString(dto.SliceQty)
	if err != nil {
		writeError(w, apperror.Validation(apperror.CodeInvalidFormat, "sliceQty"))
		return
	}
	legs := [2]domain.LegSpec{dto.Leg1.toDomain(), dto.Leg2.toDomain()}
	plan, err := s.twap.Create(r.Context(), legs, totalQty, sliceQty, dto.IntervalMs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, twapFromDomain(plan))
}

func (s *Server) handleTwapAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	action := strings.ToLower(r.PathValue("action"))

	var plan domain.TwapPlan
	var err error
	switch action {
	case "pause":
		plan, err = s.twap.Pause(r.Context(), id)
	case "resume", "start":
		plan, err = s.twap.Resume(r.Context(), id)
	case "cancel":
		plan, err = s.twap.Cancel(r.Context(), id)
	default:
		writeError(w, apperror.Validation(apperror.CodeInvalidInput, "unknown action: "+action))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, twapFromDomain(plan))
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	venue := domain.NewVenueId(r.PathValue("venue"))
	symbol := domain.NewSymbol(r.PathValue("symbol"))
	category := domain.NormalizeCategory(r.URL.Query().Get("category"))

	adapter, ok := s.prices.Adapter(venue)
	if !ok {
		writeError(w, apperror.NotFound(apperror.CodeVenueNotFound, string(venue)))
		return
	}

	q, err := adapter.FetchOrderBook(r.Context(), symbol, category)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteFromDomain(q))
}

func (s *Server) handleExecutions(w http.ResponseWriter, r *http.Request) {
	hist := s.execs.History()
	out := make([]executionDTO, 0, len(hist))
	for i := len(hist) - 1; i >= 0; i-- {
		out = append(out, executionFromDomain(hist[i]))
	}
	writeJSON(w, http.StatusOK, out)
}
