// Package di holds the DI tokens the twap bounded context registers.
package di

import (
	"github.com/fd1az/arbitrage-bot/business/twap/app"
	idi "github.com/fd1az/arbitrage-bot/internal/di"
)

// Scheduler is the DI token for the TWAP Scheduler.
const Scheduler = "twap.Scheduler"

// GetScheduler resolves the Scheduler from a ServiceRegistry.
func GetScheduler(sr idi.ServiceRegistry) *app.Scheduler {
	return idi.MustGet[*app.Scheduler](sr, Scheduler)
}
