// Package venue implements the venue bounded context (component C1): it builds
// one Adapter per configured (venue, category) pair and exposes them to the rest
// of the system through a single app.Registry.
package venue

import (
	"context"
	"time"

	"github.com/fd1az/arbitrage-bot/business/venue/app"
	venueDI "github.com/fd1az/arbitrage-bot/business/venue/di"
	"github.com/fd1az/arbitrage-bot/business/venue/infra"
	"github.com/fd1az/arbitrage-bot/business/venue/infra/binance"
	"github.com/fd1az/arbitrage-bot/business/venue/infra/bybit"
	"github.com/fd1az/arbitrage-bot/domain"
	"github.com/fd1az/arbitrage-bot/internal/config"
	"github.com/fd1az/arbitrage-bot/internal/di"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/monolith"
)

// Module implements the venue bounded context.
type Module struct{}

// RegisterServices builds every enabled venue adapter and registers the Registry
// that wraps them.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, venueDI.Registry, func(sr di.ServiceRegistry) app.Registry {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		reg := infra.NewStaticRegistry()

		if cfg.Venues.Binance.Enabled {
			for _, cat := range cfg.Venues.Binance.Categories {
				adapter, err := binance.New(binance.Config{
					Category:      domain.NormalizeCategory(cat),
					DepthSpeedMs:  cfg.Venues.Binance.DepthSpeedMs,
					StaleTimeout:  cfg.Venues.Binance.StaleTimeout,
					RateLimitRPM:  cfg.Venues.Binance.RateLimitRPM,
					SubmitTimeout: cfg.Venues.Binance.SubmitTimeout,
					FetchTimeout:  cfg.Venues.Binance.FetchTimeout,
				}, log)
				if err != nil {
					panic("failed to create binance adapter: " + err.Error())
				}
				reg.Add(adapter)
			}
		}

		if cfg.Venues.Bybit.Enabled {
			for _, cat := range cfg.Venues.Bybit.Categories {
				adapter, err := bybit.New(bybit.Config{
					Category:      domain.NormalizeCategory(cat),
					RateLimitRPM:  cfg.Venues.Bybit.RateLimitRPM,
					SubmitTimeout: cfg.Venues.Bybit.SubmitTimeout,
					FetchTimeout:  cfg.Venues.Bybit.FetchTimeout,
				}, log)
				if err != nil {
					panic("failed to create bybit adapter: " + err.Error())
				}
				reg.Add(adapter)
			}
		}

		return reg
	})

	return nil
}

// Startup initializes every registered adapter. A failed adapter connects in the
// background (retryInit) instead of blocking the rest of the system.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()
	reg := venueDI.GetRegistry(mono.Services())

	creds := map[domain.VenueId]app.Credentials{
		domain.NewVenueId("binance"): {APIKey: cfg.Venues.Binance.APIKey, APISecret: cfg.Venues.Binance.APISecret},
		domain.NewVenueId("bybit"):   {APIKey: cfg.Venues.Bybit.APIKey, APISecret: cfg.Venues.Bybit.APISecret},
	}

	for _, venueID := range reg.Venues() {
		adapter, ok := reg.Adapter(venueID)
		if !ok {
			continue
		}
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := adapter.Initialize(connectCtx, creds[venueID], false)
		cancel()
		if err != nil {
			log.Warn(ctx, "venue adapter init failed, retrying in background", "venue", venueID, "error", err)
			go m.retryInit(ctx, log, adapter, creds[venueID])
			continue
		}
		log.Info(ctx, "venue adapter initialized", "venue", venueID)
	}

	return nil
}

func (m *Module) retryInit(ctx context.Context, log logger.LoggerInterface, adapter app.Adapter, creds app.Credentials) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
			if err := adapter.Initialize(ctx, creds, false); err != nil {
				log.Warn(ctx, "venue adapter retry failed", "venue", adapter.Venue(), "error", err)
				continue
			}
			log.Info(ctx, "venue adapter connected", "venue", adapter.Venue())
			return
		}
	}
}
