// Package di holds the DI tokens the quotecache bounded context registers.
package di

import (
	"github.com/fd1az/arbitrage-bot/business/quotecache/app"
	idi "github.com/fd1az/arbitrage-bot/internal/di"
)

// Cache is the DI token for the shared Quote Cache.
const Cache = "quotecache.Cache"

// GetCache resolves the Quote Cache from a ServiceRegistry.
func GetCache(sr idi.ServiceRegistry) *app.Cache {
	return idi.MustGet[*app.Cache](sr, Cache)
}
