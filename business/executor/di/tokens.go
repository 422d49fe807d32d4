// Package di holds the DI tokens the executor bounded context registers.
package di

import (
	"github.com/fd1az/arbitrage-bot/business/executor/app"
	idi "github.com/fd1az/arbitrage-bot/internal/di"
)

// Executor is the DI token for the Paired Executor.
const Executor = "executor.Executor"

// GetExecutor resolves the Executor from a ServiceRegistry.
func GetExecutor(sr idi.ServiceRegistry) *app.Executor {
	return idi.MustGet[*app.Executor](sr, Executor)
}
