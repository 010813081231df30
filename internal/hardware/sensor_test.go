package hardware_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/plant-waterer/internal/hardware"
	"github.com/thatsimonsguy/plant-waterer/internal/model"
)

func TestIIOSensorReadsChannelFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in_voltage3_raw"), []byte("24150\n"), 0644))

	sensor := hardware.NewIIOSensor(dir, 3)
	raw, err := sensor.ReadRaw()
	require.NoError(t, err)
	assert.Equal(t, 24150, raw)
}

func TestIIOSensorMissingFile(t *testing.T) {
	sensor := hardware.NewIIOSensor(t.TempDir(), 0)
	_, err := sensor.ReadRaw()
	assert.ErrorIs(t, err, hardware.ErrSensorUnavailable)
}

func TestIIOSensorGarbageValue(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in_voltage0_raw"), []byte("not-a-number"), 0644))

	sensor := hardware.NewIIOSensor(dir, 0)
	_, err := sensor.ReadRaw()
	assert.ErrorIs(t, err, hardware.ErrSensorUnavailable)
}

func TestSimulatedSensorStaysWithinCalibration(t *testing.T) {
	calib := model.CalibrationPoints{DryRaw: 32000, WetRaw: 12000}
	sensor := hardware.NewSimulatedSensor(calib)

	for i := 0; i < 50; i++ {
		raw, err := sensor.ReadRaw()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, raw, calib.WetRaw-500)
		assert.LessOrEqual(t, raw, calib.DryRaw+500)
	}
}

type failingSensor struct {
	calls int
}

func (s *failingSensor) ReadRaw() (int, error) {
	s.calls++
	return 0, errors.New("bus timeout")
}

func (s *failingSensor) Close() error { return nil }

func TestBreakerSensorOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &failingSensor{}
	sensor := hardware.NewBreakerSensor(inner, 3, time.Minute)

	for i := 0; i < 3; i++ {
		_, err := sensor.ReadRaw()
		assert.Error(t, err)
	}
	require.Equal(t, 3, inner.calls)

	// Breaker is open now: the inner sensor is no longer touched.
	_, err := sensor.ReadRaw()
	assert.ErrorIs(t, err, hardware.ErrSensorUnavailable)
	assert.Equal(t, 3, inner.calls)
}

type stubSensor struct {
	raw int
}

func (s *stubSensor) ReadRaw() (int, error) { return s.raw, nil }
func (s *stubSensor) Close() error          { return nil }

func TestBreakerSensorPassesThroughHealthyReads(t *testing.T) {
	sensor := hardware.NewBreakerSensor(&stubSensor{raw: 21000}, 3, time.Minute)

	raw, err := sensor.ReadRaw()
	require.NoError(t, err)
	assert.Equal(t, 21000, raw)
}
