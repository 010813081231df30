// Package hardware holds the sensor and pump collaborator contracts and
// their physical and simulated implementations. The engine only depends on
// the interfaces; the variant is selected by configuration at process start.
package hardware

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/thatsimonsguy/plant-waterer/internal/model"
)

// ErrSensorUnavailable means the reading failed and the engine must skip the
// tick, never substitute a 0% or 100% reading.
var ErrSensorUnavailable = errors.New("moisture sensor unavailable")

// Sensor reads raw moisture samples. Higher raw = drier soil.
type Sensor interface {
	ReadRaw() (int, error)
	Close() error
}

// IIOSensor reads the ADC channel the capacitive probe is wired to through
// the Linux industrial I/O sysfs interface.
type IIOSensor struct {
	path string
}

func NewIIOSensor(device string, channel int) *IIOSensor {
	return &IIOSensor{
		path: filepath.Join(device, fmt.Sprintf("in_voltage%d_raw", channel)),
	}
}

func (s *IIOSensor) ReadRaw() (int, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %v", ErrSensorUnavailable, s.path, err)
	}
	raw, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: parse %s: %v", ErrSensorUnavailable, s.path, err)
	}
	return raw, nil
}

func (s *IIOSensor) Close() error { return nil }

// SimulatedSensor models a plant drying out through the day, producing raw
// values consistent with the configured calibration points plus noise.
type SimulatedSensor struct {
	mu    sync.Mutex
	calib model.CalibrationPoints
	rng   *rand.Rand
	now   func() time.Time
}

func NewSimulatedSensor(calib model.CalibrationPoints) *SimulatedSensor {
	return &SimulatedSensor{
		calib: calib,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		now:   time.Now,
	}
}

func (s *SimulatedSensor) ReadRaw() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Moisture drifts from ~80% down to ~50% through the day.
	secondOfDay := float64(s.now().Unix() % 86400)
	percent := 50 + 30*(1-secondOfDay/86400)
	percent += s.rng.Float64()*3 - 1.5
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	span := float64(s.calib.DryRaw - s.calib.WetRaw)
	raw := float64(s.calib.DryRaw) - percent/100*span
	raw += s.rng.Float64()*0.02*span - 0.01*span
	return int(raw), nil
}

func (s *SimulatedSensor) Close() error { return nil }

// BreakerSensor wraps a Sensor with a circuit breaker so repeated hardware
// failures degrade to fast skipped ticks instead of repeated slow bus errors.
type BreakerSensor struct {
	inner Sensor
	cb    *gobreaker.CircuitBreaker
}

func NewBreakerSensor(inner Sensor, consecutiveFailures int, openFor time.Duration) *BreakerSensor {
	if consecutiveFailures < 1 {
		consecutiveFailures = 1
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "moisture-sensor",
		Timeout: openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(consecutiveFailures)
		},
	})
	return &BreakerSensor{inner: inner, cb: cb}
}

func (s *BreakerSensor) ReadRaw() (int, error) {
	v, err := s.cb.Execute(func() (interface{}, error) {
		return s.inner.ReadRaw()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, fmt.Errorf("%w: circuit open", ErrSensorUnavailable)
		}
		return 0, err
	}
	return v.(int), nil
}

func (s *BreakerSensor) Close() error { return s.inner.Close() }
