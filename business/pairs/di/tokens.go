// Package di holds the DI tokens the pairs bounded context registers.
package di

import (
	"github.com/fd1az/arbitrage-bot/business/pairs/app"
	idi "github.com/fd1az/arbitrage-bot/internal/di"
)

// Registry is the DI token for the Pair Registry.
const Registry = "pairs.Registry"

// GetRegistry resolves the Pair Registry from a ServiceRegistry.
func GetRegistry(sr idi.ServiceRegistry) *app.Registry {
	return idi.MustGet[*app.Registry](sr, Registry)
}
