// Package api implements the api bounded context (component C7's HTTP/WebSocket
// surface): it wires every other context's narrow port into one Server and runs
// it for the lifetime of the process.
package api

import (
	"context"
	"net/http"

	"github.com/jmoiron/sqlx"

	apiapp "github.com/fd1az/arbitrage-bot/business/api/app"
	apiDI "github.com/fd1az/arbitrage-bot/business/api/di"
	executorDI "github.com/fd1az/arbitrage-bot/business/executor/di"
	pairsDI "github.com/fd1az/arbitrage-bot/business/pairs/di"
	twapDI "github.com/fd1az/arbitrage-bot/business/twap/di"
	venueDI "github.com/fd1az/arbitrage-bot/business/venue/di"
	"github.com/fd1az/arbitrage-bot/internal/config"
	"github.com/fd1az/arbitrage-bot/internal/di"
	"github.com/fd1az/arbitrage-bot/internal/eventbus"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/monolith"
)

// Module implements the api bounded context.
type Module struct{}

// RegisterServices builds the Server from every other bounded context's
// already-registered service.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, apiDI.Server, func(sr di.ServiceRegistry) *apiapp.Server {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		bus := sr.Get("eventbus").(*eventbus.Bus)
		db := sr.Get("db").(*sqlx.DB)

		venues := venueDI.GetRegistry(sr)
		pairs := pairsDI.GetRegistry(sr)
		twap := twapDI.GetScheduler(sr)
		exec := executorDI.GetExecutor(sr)

		readyChecks := []apiapp.ReadyChecker{
			func(ctx context.Context) error { return db.PingContext(ctx) },
		}

		return apiapp.New(log, bus, pairs, twap, exec, venues,
			cfg.Server.WSHeartbeat, cfg.Server.WSPongTimeout, readyChecks...)
	})
	return nil
}

// Startup runs the HTTP server for the lifetime of ctx, shutting it down
// gracefully when ctx is cancelled.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	srv := apiDI.GetServer(mono.Services())

	httpSrv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			mono.Logger().Error(ctx, "api server stopped unexpectedly", "error", err.Error())
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	mono.Logger().Info(ctx, "api server started", "addr", cfg.Server.ListenAddr)
	return nil
}
