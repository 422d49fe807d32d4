// Package monolith provides the application container and module interface.
package monolith

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/fd1az/arbitrage-bot/internal/config"
	"github.com/fd1az/arbitrage-bot/internal/di"
	"github.com/fd1az/arbitrage-bot/internal/eventbus"
	"github.com/fd1az/arbitrage-bot/internal/logger"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	DB() *sqlx.DB
	EventBus() *eventbus.Bus
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// app implements the Monolith interface.
type app struct {
	config    *config.Config
	logger    logger.LoggerInterface
	db        *sqlx.DB
	bus       *eventbus.Bus
	container di.Container
}

// New creates a new Monolith instance, opening the durable store connection.
func New(cfg *config.Config, log logger.LoggerInterface) (*app, error) {
	db, err := sqlx.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	bus := eventbus.New(log, eventbus.DefaultBacklog)

	container := di.NewContainer()

	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("db", db)
	container.Register("eventbus", bus)

	return &app{
		config:    cfg,
		logger:    log,
		db:        db,
		bus:       bus,
		container: container,
	}, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) DB() *sqlx.DB {
	return a.db
}

func (a *app) EventBus() *eventbus.Bus {
	return a.bus
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all resources.
func (a *app) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
