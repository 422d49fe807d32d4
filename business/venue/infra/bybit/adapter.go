// Package bybit implements the C1 Venue Adapter contract for Bybit using REST
// polling rather than a WebSocket stream — grounded in the same Venue Adapter
// contract as business/venue/infra/binance, demonstrating that C2 and above never
// depend on how a venue delivers its top-of-book.
package bybit

import (
	"context"
	"fmt"
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
)

var _ app.Adapter = (*Adapter)(nil)

var categoryParam = map[domain.Category]string{
	domain.CategorySpot:    "spot",
	domain.CategoryLinear:  "linear",
	domain.CategoryInverse: "inverse",
}

// Config configures a Bybit Adapter.
type Config struct {
	Category      domain.Category
	BaseURL       string // default https://api.bybit.com
	PollInterval  time.Duration
	RateLimitRPM  int
	SubmitTimeout time.Duration
	FetchTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.bybit.com"
	}
	if c.PollInterval == 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.RateLimitRPM == 0 {
		c.RateLimitRPM = 600
	}
	if c.SubmitTimeout == 0 {
		c.SubmitTimeout = 10 * time.Second
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = 3 * time.Second
	}
	return c
}

// Adapter implements app.Adapter for Bybit, polling the public ticker endpoint.
type Adapter struct {
	cfg     Config
	log     logger.LoggerInterface
	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker[any]
	rest    httpclient.Client

	publicOnly bool

	mu       sync.RWMutex
	top      map[domain.Symbol]int64 // symbol -> last accepted venueTs (ms)
	polling  map[domain.Symbol]context.CancelFunc
	onQuote  app.TopOfBookHandler
}

// New builds a Bybit Adapter for one category.
func New(cfg Config, log logger.LoggerInterface) (*Adapter, error) {
	cfg = cfg.withDefaults()
	if _, ok := categoryParam[cfg.Category]; !ok {
		return nil, apperror.New(apperror.CodeInvalidParams, apperror.WithContext("unsupported bybit category: "+string(cfg.Category)))
	}

	rest, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("bybit-"+string(cfg.Category)),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(cfg.FetchTimeout),
		httpclient.WithHeaders(map[string]string{"Accept": "application/json"}),
	)
	if err != nil {
		return nil, fmt.Errorf("bybit: build rest client: %w", err)
	}

	breakerSettings := gobreaker.Settings{
		Name:        "bybit-" + string(cfg.Category),
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
		top:     make(map[domain.Symbol]int64),
		polling: make(map[domain.Symbol]context.CancelFunc),
	}, nil
}

func (a *Adapter) Venue() domain.VenueId { return domain.NewVenueId("bybit") }

func (a *Adapter) OnTopOfBook(handler app.TopOfBookHandler) {
	a.mu.Lock()
	a.onQuote = handler
	a.mu.Unlock()
}

func (a *Adapter) Initialize(ctx context.Context, creds app.Credentials, testnet bool) error {
	a.publicOnly = creds.Empty()
	return nil
}

func (a *Adapter) SubscribeTopOfBook(ctx context.Context, subs []app.SymbolCategory) error {
	for _, s := range subs {
		symbol := s.Symbol
		a.mu.Lock()
		if _, already := a.polling[symbol]; already {
			a.mu.Unlock()
			continue
		}
		pollCtx, cancel := context.WithCancel(ctx)
		a.polling[symbol] = cancel
		a.mu.Unlock()
		go a.pollLoop(pollCtx, symbol)
	}
	return nil
}

func (a *Adapter) UnsubscribeTopOfBook(ctx context.Context, subs []app.SymbolCategory) error {
	for _, s := range subs {
		a.mu.Lock()
		if cancel, ok := a.polling[s.Symbol]; ok {
			cancel()
			delete(a.polling, s.Symbol)
		}
		a.mu.Unlock()
	}
	return nil
}

func (a *Adapter) pollLoop(ctx context.Context, symbol domain.Symbol) {
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			quote, err := a.fetchTicker(ctx, symbol)
			if err != nil {
				a.log.Debug(ctx, "bybit poll failed", "symbol", symbol, "error", err)
				continue
			}
			venueTs := quote.SourceTs.UnixMilli()
			a.mu.Lock()
			if last, ok := a.top[symbol]; ok && venueTs <= last {
				a.mu.Unlock()
				continue
			}
			a.top[symbol] = venueTs
			handler := a.onQuote
			a.mu.Unlock()
			if handler != nil {
				handler(quote)
			}
		}
	}
}

type tickerEnvelope struct {
	RetCode int `json:"retCode"`
	Result  struct {
		List []struct {
			Symbol   string `json:"symbol"`
			Bid1Price string `json:"bid1Price"`
			Bid1Size  string `json:"bid1Size"`
			Ask1Price string `json:"ask1Price"`
			Ask1Size  string `json:"ask1Size"`
		} `json:"list"`
	} `json:"result"`
	Time int64 `json:"time"`
}

func (a *Adapter) fetchTicker(ctx context.Context, symbol domain.Symbol) (domain.Quote, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return domain.Quote{}, apperror.New(apperror.CodeRateLimited, apperror.WithCause(err))
	}

	var env tickerEnvelope
	resp, err := a.rest.NewRequestWithOptions().
		SetQueryParam("category", categoryParam[a.cfg.Category]).
		SetQueryParam("symbol", string(symbol)).
		SetResult(&env).
		Get(ctx, "/v5/market/tickers")
	if err != nil {
		return domain.Quote{}, apperror.New(apperror.CodeTransportError, apperror.WithCause(err))
	}
	if resp.IsError() || env.RetCode != 0 || len(env.Result.List) == 0 {
		return domain.Quote{}, apperror.New(apperror.CodeNotFound, apperror.WithContext("bybit ticker unavailable"))
	}

	t := env.Result.List[0]
	bid, _ := decimal.NewFromString(t.Bid1Price)
	bidQty, _ := decimal.NewFromString(t.Bid1Size)
	ask, _ := decimal.NewFromString(t.Ask1Price)
	askQty, _ := decimal.NewFromString(t.Ask1Size)

	now := time.Now().UTC()
	return domain.Quote{
		Venue:    a.Venue(),
		Symbol:   symbol,
		Category: a.cfg.Category,
		BidPrice: bid,
		BidSize:  bidQty,
		AskPrice: ask,
		AskSize:  askQty,
		SourceTs: time.UnixMilli(env.Time),
		IngestTs: now,
	}, nil
}

func (a *Adapter) FetchOrderBook(ctx context.Context, symbol domain.Symbol, category domain.Category) (domain.Quote, error) {
	return a.fetchTicker(ctx, symbol)
}

type orderEnvelope struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		OrderID string `json:"orderId"`
	} `json:"result"`
}

func (a *Adapter) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	if a.publicOnly {
		return domain.OrderResult{}, apperror.New(apperror.CodeAuthError, apperror.WithContext("adapter is in public-only mode"))
	}
	if req.Qty.LessThanOrEqual(decimal.Zero) {
		return domain.OrderResult{}, apperror.New(apperror.CodeInvalidParams, apperror.WithContext("qty must be positive"))
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
	side := "Buy"
	if req.Side == domain.SideSell {
		side = "Sell"
	}
	orderType := "Market"
	if req.Type == domain.OrderTypeLimit {
		orderType = "Limit"
	}

	var env orderEnvelope
	builder := a.rest.NewRequestWithOptions().
		SetBody(map[string]string{
			"category": categoryParam[a.cfg.Category],
			"symbol":   string(req.Symbol),
			"side":     side,
			"orderType": orderType,
			"qty":      req.Qty.String(),
		}).
		SetResult(&env)

	resp, err := builder.Post(ctx, "/v5/order/create")
	if err != nil {
		return domain.OrderResult{}, apperror.New(apperror.CodeTransportError, apperror.WithCause(err))
	}
	if resp.IsError() || env.RetCode != 0 {
		return classifyOrderError(env.RetCode, env.RetMsg), nil
	}

	return domain.OrderResult{
		Success:     true,
		OrderID:     env.Result.OrderID,
		FilledPrice: req.Price,
		FilledQty:   req.Qty,
	}, nil
}

func classifyOrderError(retCode int, msg string) domain.OrderResult {
	code := string(apperror.CodeTransportError)
	switch retCode {
	case 110007, 110012:
		code = string(apperror.CodeInsufficientBalance)
	case 10003, 10004, 10005:
		code = string(apperror.CodeAuthError)
	case 10001, 110017:
		code = string(apperror.CodeInvalidParams)
	case 10006:
		code = string(apperror.CodeRateLimited)
	}
	return domain.OrderResult{Success: false, ErrorCode: code, ErrorMessage: msg}
}

// Cleanup stops every poll loop. Never fails.
func (a *Adapter) Cleanup() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for symbol, cancel := range a.polling {
		cancel()
		delete(a.polling, symbol)
	}
}
