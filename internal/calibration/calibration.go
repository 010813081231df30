package calibration

import (
	"errors"

	"github.com/thatsimonsguy/plant-waterer/internal/model"
)

// ErrDegenerateCalibration means the dry and wet calibration points coincide
// and no meaningful percentage can be derived. Callers must treat this as
// "calibration required", never as a valid 0% or 100% reading.
var ErrDegenerateCalibration = errors.New("degenerate calibration: dry and wet raw values are equal")

// ToPercent maps a raw sensor reading onto a moisture percentage by linear
// interpolation between the wet point (100%) and the dry point (0%). Readings
// outside the calibrated range clamp to [0, 100] so sensor noise or
// miscalibration can never produce an out-of-range percentage.
func ToPercent(raw int, calib model.CalibrationPoints) (float64, error) {
	if calib.DryRaw == calib.WetRaw {
		return 0, ErrDegenerateCalibration
	}

	percent := 100 * float64(calib.DryRaw-raw) / float64(calib.DryRaw-calib.WetRaw)
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return percent, nil
}
