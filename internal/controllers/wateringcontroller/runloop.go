package wateringcontroller

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/plant-waterer/db"
)

// Run drives the engine until ctx is cancelled. The sample ticker feeds the
// automation decision, the drive ticker advances pulse cycles at a cadence
// well under the pulse phase lengths, and the cleanup ticker prunes history.
func Run(ctx context.Context, engine *Engine, conn *sql.DB) {
	cfg := engine.Config()

	sampleTicker := time.NewTicker(cfg.SampleInterval())
	driveTicker := time.NewTicker(cfg.PulseStep())
	cleanupTicker := time.NewTicker(24 * time.Hour)
	defer sampleTicker.Stop()
	defer driveTicker.Stop()
	defer cleanupTicker.Stop()

	log.Info().
		Dur("sample_interval", cfg.SampleInterval()).
		Dur("drive_step", cfg.PulseStep()).
		Msg("Watering control loop started")

	engine.Tick(time.Now())

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Watering control loop stopping")
			return
		case now := <-driveTicker.C:
			engine.Drive(now)
		case now := <-sampleTicker.C:
			engine.Tick(now)
		case now := <-cleanupTicker.C:
			c := engine.Config()
			if err := db.CleanupOldData(conn, now, c.ReadingRetention(), c.EventRetention()); err != nil {
				log.Error().Err(err).Msg("History cleanup failed")
			}
		}
	}
}
