// Package di holds the DI tokens the api bounded context registers.
package di

import (
	"github.com/fd1az/arbitrage-bot/business/api/app"
	idi "github.com/fd1az/arbitrage-bot/internal/di"
)

// Server is the DI token for the HTTP/WebSocket Server.
const Server = "api.Server"

// GetServer resolves the Server from a ServiceRegistry.
func GetServer(sr idi.ServiceRegistry) *app.Server {
	return idi.MustGet[*app.Server](sr, Server)
}
