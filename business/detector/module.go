// Package detector implements the detector bounded context (component C4).
package detector

import (
	"context"

	"github.com/fd1az/arbitrage-bot/business/detector/app"
	detectorDI "github.com/fd1az/arbitrage-bot/business/detector/di"
	executorDI "github.com/fd1az/arbitrage-bot/business/executor/di"
	pairsDI "github.com/fd1az/arbitrage-bot/business/pairs/di"
	quoteDI "github.com/fd1az/arbitrage-bot/business/quotecache/di"
	"github.com/fd1az/arbitrage-bot/internal/config"
	"github.com/fd1az/arbitrage-bot/internal/di"
	"github.com/fd1az/arbitrage-bot/internal/eventbus"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/monolith"
)

// Module implements the detector bounded context.
type Module struct{}

// RegisterServices builds the Detector.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, detectorDI.Detector, func(sr di.ServiceRegistry) *app.Detector {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		bus := sr.Get("eventbus").(*eventbus.Bus)

		quotes := quoteDI.GetCache(sr)
		pairs := pairsDI.GetRegistry(sr)
		exec := executorDI.GetExecutor(sr)

		return app.New(log, quotes, pairs, exec, bus, cfg.Risk.DetectorInterval)
	})
	return nil
}

// Startup starts the detector's tick loop for the lifetime of ctx.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	d := detectorDI.GetDetector(mono.Services())
	go d.Run(ctx)
	mono.Logger().Info(ctx, "opportunity detector started")
	return nil
}
