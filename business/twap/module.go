// Package twap implements the twap bounded context (component C6).
package twap

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/fd1az/arbitrage-bot/business/twap/app"
	twapDI "github.com/fd1az/arbitrage-bot/business/twap/di"
	"github.com/fd1az/arbitrage-bot/business/twap/infra"
	"github.com/fd1az/arbitrage-bot/business/twap/infra/postgres"
	venueDI "github.com/fd1az/arbitrage-bot/business/venue/di"
	"github.com/fd1az/arbitrage-bot/internal/config"
	"github.com/fd1az/arbitrage-bot/internal/di"
	"github.com/fd1az/arbitrage-bot/internal/eventbus"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/monolith"
)

// Module implements the twap bounded context.
type Module struct{}

// RegisterServices builds the postgres-backed Store and loads the Scheduler.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, twapDI.Scheduler, func(sr di.ServiceRegistry) *app.Scheduler {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		bus := sr.Get("eventbus").(*eventbus.Bus)
		db := sr.Get("db").(*sqlx.DB)

		store := postgres.New(db, cfg.Database.QueryTimeout)
		venues := &infra.VenueAdapters{Registry: venueDI.GetRegistry(sr)}

		scheduler, err := app.New(context.Background(), log, venues, store, bus)
		if err != nil {
			panic("failed to load twap scheduler: " + err.Error())
		}
		return scheduler
	})
	return nil
}

// Startup starts the scheduler's tick loop for the lifetime of ctx.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	s := twapDI.GetScheduler(mono.Services())
	go s.Run(ctx)
	mono.Logger().Info(ctx, "twap scheduler started", "plans", len(s.Snapshot()))
	return nil
}
