// Package pairs implements the pairs bounded context (component C3): the
// durable Pair Registry.
package pairs

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/fd1az/arbitrage-bot/business/pairs/app"
	pairsDI "github.com/fd1az/arbitrage-bot/business/pairs/di"
	"github.com/fd1az/arbitrage-bot/business/pairs/infra/postgres"
	"github.com/fd1az/arbitrage-bot/internal/config"
	"github.com/fd1az/arbitrage-bot/internal/di"
	"github.com/fd1az/arbitrage-bot/internal/eventbus"
	"github.com/fd1az/arbitrage-bot/internal/monolith"
)

// Module implements the pairs bounded context.
type Module struct{}

// RegisterServices builds the postgres-backed Store and loads the Registry.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, pairsDI.Registry, func(sr di.ServiceRegistry) *app.Registry {
		cfg := sr.Get("config").(*config.Config)
		db := sr.Get("db").(*sqlx.DB)
		bus := sr.Get("eventbus").(*eventbus.Bus)

		store := postgres.New(db, cfg.Database.QueryTimeout)

		registry, err := app.New(context.Background(), store, bus)
		if err != nil {
			panic("failed to load pair registry: " + err.Error())
		}
		return registry
	})
	return nil
}

// Startup logs the loaded pair count.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	reg := pairsDI.GetRegistry(mono.Services())
	mono.Logger().Info(ctx, "pair registry loaded", "pairs", len(reg.Snapshot()))
	return nil
}
