// Package shutdown forces the actuator into a safe state on exit. The pump
// must never be left running across a process boundary.
package shutdown

import (
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/plant-waterer/internal/hardware"
)

func ForcePumpOff(pump hardware.Pump) {
	log.Info().Msg("Forcing pump off for shutdown")

	if err := pump.Set(false); err != nil {
		log.Error().Err(err).Msg("Failed to turn pump off during shutdown")
	}
	if err := pump.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to release pump hardware")
	}
}
