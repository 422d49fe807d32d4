// Package executor implements the executor bounded context (component C5):
// the Paired Executor wired to the venue registry, the pair registry's trigger
// callback, and the event bus.
package executor

import (
	"context"

	"github.com/fd1az/arbitrage-bot/business/executor/app"
	executorDI "github.com/fd1az/arbitrage-bot/business/executor/di"
	"github.com/fd1az/arbitrage-bot/business/executor/infra"
	pairsDI "github.com/fd1az/arbitrage-bot/business/pairs/di"
	venueDI "github.com/fd1az/arbitrage-bot/business/venue/di"
	"github.com/fd1az/arbitrage-bot/internal/di"
	"github.com/fd1az/arbitrage-bot/internal/eventbus"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/monolith"
)

// Module implements the executor bounded context.
type Module struct{}

// RegisterServices builds the Executor.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, executorDI.Executor, func(sr di.ServiceRegistry) *app.Executor {
		log := sr.Get("logger").(logger.LoggerInterface)
		bus := sr.Get("eventbus").(*eventbus.Bus)
		venues := &infra.VenueAdapters{Registry: venueDI.GetRegistry(sr)}
		pairs := pairsDI.GetRegistry(sr)
		return app.New(log, venues, pairs, bus)
	})
	return nil
}

// Startup logs readiness; the Executor itself has no background loop, it is
// driven by the detector's dispatch calls.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	_ = executorDI.GetExecutor(mono.Services())
	mono.Logger().Info(ctx, "executor ready")
	return nil
}
