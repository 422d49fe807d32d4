// Package di holds the DI tokens the detector bounded context registers.
package di

import (
	"github.com/fd1az/arbitrage-bot/business/detector/app"
	idi "github.com/fd1az/arbitrage-bot/internal/di"
)

// Detector is the DI token for the Opportunity Detector.
const Detector = "detector.Detector"

// GetDetector resolves the Detector from a ServiceRegistry.
func GetDetector(sr idi.ServiceRegistry) *app.Detector {
	return idi.MustGet[*app.Detector](sr, Detector)
}
