// Package quotecache implements the quotecache bounded context (component C2):
// it builds the shared Cache and wires every venue adapter's top-of-book pushes
// into it.
package quotecache

import (
	"context"

	"github.com/fd1az/arbitrage-bot/business/quotecache/app"
	quoteDI "github.com/fd1az/arbitrage-bot/business/quotecache/di"
	venueDI "github.com/fd1az/arbitrage-bot/business/venue/di"
	"github.com/fd1az/arbitrage-bot/internal/di"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/monolith"
)

// Module implements the quotecache bounded context.
type Module struct{}

// RegisterServices builds the shared Cache.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, quoteDI.Cache, func(sr di.ServiceRegistry) *app.Cache {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.New(log)
	})
	return nil
}

// Startup wires every venue adapter's OnTopOfBook callback into the cache. This
// must run before the venue module's Startup connects the adapters, so that no
// early push is missed; cmd/arbitrage/main.go sequences modules accordingly.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cache := quoteDI.GetCache(mono.Services())
	reg := venueDI.GetRegistry(mono.Services())

	for _, venueID := range reg.Venues() {
		adapter, ok := reg.Adapter(venueID)
		if !ok {
			continue
		}
		adapter.OnTopOfBook(cache.Update)
	}

	mono.Logger().Info(ctx, "quote cache wired to venue adapters", "venues", len(reg.Venues()))
	return nil
}
