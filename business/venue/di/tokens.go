// Package di holds the DI tokens the venue bounded context registers and the
// accessor helpers other contexts use to reach them.
package di

import (
	"github.com/fd1az/arbitrage-bot/business/venue/app"
	idi "github.com/fd1az/arbitrage-bot/internal/di"
)

// Registry is the DI token for the venue app.Registry, the only thing C2/C4/C5
// need to reach every configured venue adapter.
const Registry = "venue.Registry"

// GetRegistry resolves the venue Registry from a ServiceRegistry.
func GetRegistry(sr idi.ServiceRegistry) app.Registry {
	return idi.MustGet[app.Registry](sr, Registry)
}
