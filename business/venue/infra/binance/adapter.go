package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/arbitrage-bot/business/venue/app"
	"github.com/fd1az/arbitrage-bot/domain"
	"github.com/fd1az/arbitrage-bot/internal/apperror"
	"github.com/fd1az/arbitrage-bot/internal/httpclient"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/ratelimit"
	"github.com/fd1az/arbitrage-bot/internal/wsconn"
)

var _ app.Adapter = (*Adapter)(nil)

// hostSet is the pair of WS/REST hosts a Binance category maps onto.
type hostSet struct {
	wsBase  string
	restURL string
}

var hostsByCategory = map[domain.Category]hostSet{
	domain.CategorySpot:    {wsBase: "wss://stream.binance.com:9443", restURL: "https://api.binance.com"},
	domain.CategoryLinear:  {wsBase: "wss://fstream.binance.com", restURL: "https://fapi.binance.com"},
	domain.CategoryInverse: {wsBase: "wss://dstream.binance.com", restURL: "https://dapi.binance.com"},
}

// Config configures one Binance Adapter instance. A separate Adapter is created
// per category because Binance spot/linear/inverse live on distinct hosts.
type Config struct {
	Category       domain.Category
	DepthSpeedMs   int           // 100 or 1000; default 100
	StaleTimeout   time.Duration // age past which FetchOrderBook falls back to REST
	RateLimitRPM   int           // default 1200 (Binance spot weight-based limit, approximated)
	SubmitTimeout  time.Duration // default 10s per §4.1
	FetchTimeout   time.Duration // default 5s per §4.1
}

func (c Config) withDefaults() Config {
	if c.DepthSpeedMs == 0 {
		c.DepthSpeedMs = 100
	}
	if c.StaleTimeout == 0 {
		c.StaleTimeout = 5 * time.Second
	}
	if c.RateLimitRPM == 0 {
		c.RateLimitRPM = 1200
	}
	if c.SubmitTimeout == 0 {
		c.SubmitTimeout = 10 * time.Second
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = 5 * time.Second
	}
	return c
}

type cachedTopOfBook struct {
	quote    domain.Quote
	venueTs  int64 // venue update id, for the monotonic-drop rule
}

// Adapter implements app.Adapter for one Binance category.
type Adapter struct {
	cfg    Config
	log    logger.LoggerInterface
	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker[any]

	ws       *wsconn.Client
	rest     httpclient.Client

	creds      app.Credentials
	publicOnly bool

	mu     sync.RWMutex
	top    map[domain.Symbol]cachedTopOfBook
	onQuote app.TopOfBookHandler
}

// New builds a Binance Adapter for one category.
func New(cfg Config, log logger.LoggerInterface) (*Adapter, error) {
	cfg = cfg.withDefaults()
	hosts, ok := hostsByCategory[cfg.Category]
	if !ok {
		return nil, apperror.New(apperror.CodeInvalidParams, apperror.WithContext("unsupported binance category: "+string(cfg.Category)))
	}

	rest, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("binance-"+string(cfg.Category)),
		httpclient.WithBaseURL(hosts.restURL),
		httpclient.WithRequestTimeout(cfg.FetchTimeout),
		httpclient.WithHeaders(map[string]string{"Accept": "application/json"}),
	)
	if err != nil {
		return nil, fmt.Errorf("binance: build rest client: %w", err)
	}

	breakerSettings := gobreaker.Settings{
		Name:        "binance-" + string(cfg.Category),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Adapter{
		cfg:     cfg,
		log:     log,
		limiter: ratelimit.New(cfg.RateLimitRPM),
		breaker: gobreaker.NewCircuitBreaker[any](breakerSettings),
		rest:    rest,
		top:     make(map[domain.Symbol]cachedTopOfBook),
	}, nil
}

func (a *Adapter) Venue() domain.VenueId { return domain.NewVenueId("binance") }

func (a *Adapter) OnTopOfBook(handler app.TopOfBookHandler) {
	a.mu.Lock()
	a.onQuote = handler
	a.mu.Unlock()
}

// Initialize connects the adapter's WS client and records whether credentials were
// supplied. Binance WS streams are public; "authentication" here is purely a local
// public-only gate on SubmitOrder per §4.1.
func (a *Adapter) Initialize(ctx context.Context, creds app.Credentials, testnet bool) error {
	a.creds = creds
	a.publicOnly = creds.Empty()

	hosts := hostsByCategory[a.cfg.Category]
	wsCfg := wsconn.DefaultConfig(hosts.wsBase+"/stream", "binance-"+string(a.cfg.Category))
	ws, err := wsconn.New(wsCfg)
	if err != nil {
		return apperror.New(apperror.CodeStreamError, apperror.WithCause(err), apperror.WithContext("building ws client"))
	}
	ws.OnMessage(a.handleMessage)
	a.ws = ws

	if err := ws.Connect(ctx); err != nil {
		return apperror.New(apperror.CodeStreamError, apperror.WithCause(err), apperror.WithContext("initial ws connect"))
	}
	return nil
}

func (a *Adapter) SubscribeTopOfBook(ctx context.Context, subs []app.SymbolCategory) error {
	if a.ws == nil {
		return apperror.New(apperror.CodeStreamError, apperror.WithContext("adapter not initialized"))
	}
	streams := make([]string, 0, len(subs)*2)
	for _, s := range subs {
		streams = append(streams, BookTickerStream(string(s.Symbol)))
		streams = append(streams, DepthStream(string(s.Symbol), a.cfg.DepthSpeedMs))
	}
	req := WSRequest{Method: "SUBSCRIBE", Params: streams, ID: time.Now().UnixNano()}
	if err := a.ws.SendJSON(ctx, req); err != nil {
		return apperror.New(apperror.CodeStreamError, apperror.WithCause(err), apperror.WithContext("subscribe"))
	}
	return nil
}

func (a *Adapter) UnsubscribeTopOfBook(ctx context.Context, subs []app.SymbolCategory) error {
	if a.ws == nil {
		return nil
	}
	streams := make([]string, 0, len(subs)*2)
	for _, s := range subs {
		streams = append(streams, BookTickerStream(string(s.Symbol)))
		streams = append(streams, DepthStream(string(s.Symbol), a.cfg.DepthSpeedMs))
	}
	req := WSRequest{Method: "UNSUBSCRIBE", Params: streams, ID: time.Now().UnixNano()}
	if err := a.ws.SendJSON(ctx, req); err != nil {
		a.log.Warn(ctx, "binance unsubscribe failed", "error", err)
	}
	return nil
}

func (a *Adapter) handleMessage(ctx context.Context, msg []byte) {
	var env StreamEvent
	if err := json.Unmarshal(msg, &env); err != nil || env.Stream == "" {
		return
	}
	switch {
	case strings.Contains(env.Stream, "@bookTicker"):
		var ev BookTickerEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			a.log.Debug(ctx, "binance: bad bookTicker payload", "error", err)
			return
		}
		a.applyBookTicker(&ev)
	case strings.Contains(env.Stream, "@depth"):
		var ev PartialDepthEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			a.log.Debug(ctx, "binance: bad depth payload", "error", err)
			return
		}
		ev.Symbol = symbolFromStream(env.Stream)
		a.applyDepth(&ev)
	}
}

func symbolFromStream(stream string) string {
	i := strings.Index(stream, "@")
	if i < 0 {
		return strings.ToUpper(stream)
	}
	return strings.ToUpper(stream[:i])
}

// applyBookTicker and applyDepth both feed the same cache and both enforce the
// monotonic-venueTs drop rule; whichever arrives with the higher update id wins,
// satisfying the "freshest of the two" contract of §4.1.
func (a *Adapter) applyBookTicker(ev *BookTickerEvent) {
	bid, err1 := ev.bid()
	ask, err2 := ev.ask()
	bidQty, err3 := ev.bidQty()
	askQty, err4 := ev.askQty()
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return
	}
	a.ingest(domain.NewSymbol(ev.Symbol), bid, bidQty, ask, askQty, ev.UpdateID)
}

func (a *Adapter) applyDepth(ev *PartialDepthEvent) {
	bid, bidQty, okB := topLevel(ev.Bids)
	ask, askQty, okA := topLevel(ev.Asks)
	if !okB && !okA {
		return
	}
	a.ingest(domain.NewSymbol(ev.Symbol), bid, bidQty, ask, askQty, ev.LastUpdateID)
}

func (a *Adapter) ingest(symbol domain.Symbol, bid, bidQty, ask, askQty decimal.Decimal, venueTs int64) {
	now := time.Now().UTC()

	a.mu.Lock()
	prev, have := a.top[symbol]
	if have && venueTs <= prev.venueTs {
		a.mu.Unlock()
		return
	}
	quote := domain.Quote{
		Venue:    a.Venue(),
		Symbol:   symbol,
		Category: a.cfg.Category,
		BidPrice: bid,
		BidSize:  bidQty,
		AskPrice: ask,
		AskSize:  askQty,
		// bookTicker and partial-depth payloads carry an update id but no event
		// time, so the receive time stands in for SourceTs.
		SourceTs: now,
		IngestTs: now,
	}
	if !quote.Valid() {
		a.mu.Unlock()
		return
	}
	a.top[symbol] = cachedTopOfBook{quote: quote, venueTs: venueTs}
	handler := a.onQuote
	a.mu.Unlock()

	if handler != nil {
		handler(quote)
	}
}

// FetchOrderBook returns the cached top-of-book if fresh, else falls back to REST.
func (a *Adapter) FetchOrderBook(ctx context.Context, symbol domain.Symbol, category domain.Category) (domain.Quote, error) {
	a.mu.RLock()
	cached, ok := a.top[symbol]
	a.mu.RUnlock()
	if ok && time.Since(cached.quote.IngestTs) <= a.cfg.StaleTimeout {
		return cached.quote, nil
	}
	return a.fetchOrderBookREST(ctx, symbol)
}

func (a *Adapter) fetchOrderBookREST(ctx context.Context, symbol domain.Symbol) (domain.Quote, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return domain.Quote{}, apperror.New(apperror.CodeRateLimited, apperror.WithCause(err))
	}

	var result depthResponse
	resp, err := a.rest.NewRequestWithOptions().
		SetQueryParam("symbol", string(symbol)).
		SetQueryParam("limit", "5").
		SetResult(&result).
		Get(ctx, "/api/v3/depth")
	if err != nil {
		return domain.Quote{}, apperror.New(apperror.CodeTransportError, apperror.WithCause(err), apperror.WithContext("depth REST fallback"))
	}
	if resp.IsError() {
		return domain.Quote{}, apperror.New(apperror.CodeNotFound, apperror.WithContext(fmt.Sprintf("depth REST returned %d", resp.StatusCode)))
	}

	bid, bidQty, _ := topLevel(result.Bids)
	ask, askQty, _ := topLevel(result.Asks)
	quote := domain.Quote{
		Venue:    a.Venue(),
		Symbol:   symbol,
		Category: a.cfg.Category,
		BidPrice: bid,
		BidSize:  bidQty,
		AskPrice: ask,
		AskSize:  askQty,
		SourceTs: time.Now().UTC(),
		IngestTs: time.Now().UTC(),
	}

	a.mu.Lock()
	a.top[symbol] = cachedTopOfBook{quote: quote, venueTs: result.LastUpdateID}
	a.mu.Unlock()

	return quote, nil
}

// SubmitOrder places a market/limit order over REST; the request is sent without an
// API key header or signature. In public-only mode it
// fails immediately with AuthError without any network call, per §4.1.
func (a *Adapter) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	if a.publicOnly {
		return domain.OrderResult{}, apperror.New(apperror.CodeAuthError, apperror.WithContext("adapter is in public-only mode"))
	}
	if req.Qty.LessThanOrEqual(decimal.Zero) {
		return domain.OrderResult{}, apperror.New(apperror.CodeInvalidParams, apperror.WithContext("qty must be positive"))
	}
	if req.Type == domain.OrderTypeLimit && req.Price.LessThanOrEqual(decimal.Zero) {
		return domain.OrderResult{}, apperror.New(apperror.CodeInvalidParams, apperror.WithContext("limit order requires a positive price"))
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return domain.OrderResult{}, apperror.New(apperror.CodeRateLimited, apperror.WithCause(err))
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.SubmitTimeout)
	defer cancel()

	result, err := a.breaker.Execute(func() (any, error) {
		return a.submitOrderREST(ctx, req)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return domain.OrderResult{}, apperror.New(apperror.CodeCircuitOpen, apperror.WithCause(err))
		}
		return domain.OrderResult{}, err
	}
	return result.(domain.OrderResult), nil
}

func (a *Adapter) submitOrderREST(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	side := "BUY"
	if req.Side == domain.SideSell {
		side = "SELL"
	}
	orderType := "MARKET"
	if req.Type == domain.OrderTypeLimit {
		orderType = "LIMIT"
	}

	var result orderResponse
	builder := a.rest.NewRequestWithOptions().
		SetQueryParam("symbol", string(req.Symbol)).
		SetQueryParam("side", side).
		SetQueryParam("type", orderType).
		SetQueryParam("quantity", req.Qty.String()).
		SetResult(&result)
	if req.Type == domain.OrderTypeLimit {
		builder = builder.SetQueryParam("price", req.Price.String()).SetQueryParam("timeInForce", "GTC")
	}

	resp, err := builder.Post(ctx, "/api/v3/order")
	if err != nil {
		return domain.OrderResult{}, apperror.New(apperror.CodeTransportError, apperror.WithCause(err), apperror.WithContext("submit order"))
	}
	if resp.IsError() {
		return classifyOrderError(resp.StatusCode, result), nil
	}

	filledQty, _ := decimal.NewFromString(result.ExecutedQty)
	return domain.OrderResult{
		Success:     true,
		OrderID:     strconv.FormatInt(result.OrderID, 10),
		FilledPrice: req.Price,
		FilledQty:   filledQty,
	}, nil
}

func classifyOrderError(statusCode int, resp orderResponse) domain.OrderResult {
	code := "TRANSPORT_ERROR"
	switch {
	case resp.Code == -2010 || resp.Code == -2019:
		code = string(apperror.CodeInsufficientBalance)
	case resp.Code == -1021 || resp.Code == -2014 || resp.Code == -2015:
		code = string(apperror.CodeAuthError)
	case resp.Code == -1013 || resp.Code == -1100 || resp.Code == -1121:
		code = string(apperror.CodeInvalidParams)
	case statusCode == 429 || statusCode == 418:
		code = string(apperror.CodeRateLimited)
	}
	return domain.OrderResult{Success: false, ErrorCode: code, ErrorMessage: resp.Msg}
}

// Cleanup releases the WS connection. Never fails.
func (a *Adapter) Cleanup() {
	if a.ws != nil {
		_ = a.ws.Close()
	}
}
