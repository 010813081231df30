package pulse_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/plant-waterer/internal/model"
	"github.com/thatsimonsguy/plant-waterer/internal/pulse"
)

func defaultConfig() model.PulseConfig {
	return model.PulseConfig{
		OnTime:        312500 * time.Microsecond,
		OffTime:       312500 * time.Microsecond,
		TotalDuration: 15 * time.Second,
	}
}

func TestStartRejectsInvalidConfig(t *testing.T) {
	now := time.Now()

	_, err := pulse.Start(model.PulseConfig{OnTime: 0, OffTime: time.Second, TotalDuration: time.Second}, now)
	assert.Error(t, err)

	_, err = pulse.Start(model.PulseConfig{OnTime: time.Second, OffTime: -time.Second, TotalDuration: time.Second}, now)
	assert.Error(t, err)

	_, err = pulse.Start(model.PulseConfig{OnTime: time.Second, OffTime: time.Second, TotalDuration: 0}, now)
	assert.Error(t, err)
}

func TestCycleAlternatesPhasesAndCompletes(t *testing.T) {
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	cycle, err := pulse.Start(defaultConfig(), start)
	require.NoError(t, err)

	var transitions int
	var lastOn bool
	var sawComplete bool

	// Step every 10ms, well under the 312.5ms phase length.
	for step := time.Duration(0); step <= 16*time.Second; step += 10 * time.Millisecond {
		res := cycle.Step(start.Add(step))

		if res.State == pulse.Complete {
			sawComplete = true
			assert.False(t, res.PumpOn)
			assert.GreaterOrEqual(t, step, 15*time.Second, "cycle must not complete early")
			break
		}
		require.Equal(t, pulse.Running, res.State)

		if step == 0 {
			assert.True(t, res.PumpOn, "cycle starts in the on phase")
			lastOn = res.PumpOn
			continue
		}
		if res.PumpOn != lastOn {
			transitions++
			lastOn = res.PumpOn
		}
	}

	assert.True(t, sawComplete)
	assert.True(t, cycle.Done())
	// 15s / 0.3125s = 48 phases, so 47 transitions between them.
	assert.Equal(t, 47, transitions)
	// Exactly half the total duration is pump-on time.
	assert.Equal(t, 7500*time.Millisecond, cycle.ElapsedOn())
}

func TestElapsedOnExcludesOffPhasePortionOfStep(t *testing.T) {
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	cfg := model.PulseConfig{
		OnTime:        300 * time.Millisecond,
		OffTime:       300 * time.Millisecond,
		TotalDuration: 1200 * time.Millisecond,
	}
	cycle, err := pulse.Start(cfg, start)
	require.NoError(t, err)

	cycle.Step(start.Add(250 * time.Millisecond))
	assert.Equal(t, 250*time.Millisecond, cycle.ElapsedOn())

	// This step spans the on-to-off boundary at 300ms; only the on portion
	// counts.
	cycle.Step(start.Add(350 * time.Millisecond))
	assert.Equal(t, 300*time.Millisecond, cycle.ElapsedOn())

	// Into the second period: one full on phase plus 50ms of the next.
	cycle.Step(start.Add(650 * time.Millisecond))
	assert.Equal(t, 350*time.Millisecond, cycle.ElapsedOn())

	res := cycle.Step(start.Add(1200 * time.Millisecond))
	assert.Equal(t, pulse.Complete, res.State)
	assert.Equal(t, 600*time.Millisecond, cycle.ElapsedOn())
}

func TestTerminalStateIsSticky(t *testing.T) {
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	cycle, err := pulse.Start(defaultConfig(), start)
	require.NoError(t, err)

	res := cycle.Step(start.Add(20 * time.Second))
	assert.Equal(t, pulse.Complete, res.State)

	res = cycle.Step(start.Add(30 * time.Second))
	assert.Equal(t, pulse.Complete, res.State)
	assert.False(t, res.PumpOn)
}

func TestCancelAbortsOnNextStep(t *testing.T) {
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	cycle, err := pulse.Start(defaultConfig(), start)
	require.NoError(t, err)

	res := cycle.Step(start.Add(100 * time.Millisecond))
	assert.Equal(t, pulse.Running, res.State)
	assert.True(t, res.PumpOn)

	cycle.Cancel()
	res = cycle.Step(start.Add(200 * time.Millisecond))
	assert.Equal(t, pulse.Aborted, res.State)
	assert.False(t, res.PumpOn)

	// Aborted is sticky, further cancels are no-ops.
	cycle.Cancel()
	res = cycle.Step(start.Add(300 * time.Millisecond))
	assert.Equal(t, pulse.Aborted, res.State)
}

func TestCancelAfterCompleteIsNoOp(t *testing.T) {
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	cycle, err := pulse.Start(defaultConfig(), start)
	require.NoError(t, err)

	res := cycle.Step(start.Add(15 * time.Second))
	assert.Equal(t, pulse.Complete, res.State)

	cycle.Cancel()
	res = cycle.Step(start.Add(16 * time.Second))
	assert.Equal(t, pulse.Complete, res.State)
}

func TestProgress(t *testing.T) {
	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	cycle, err := pulse.Start(defaultConfig(), start)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, cycle.Progress(start), 0.001)
	assert.InDelta(t, 0.5, cycle.Progress(start.Add(7500*time.Millisecond)), 0.001)
	assert.InDelta(t, 1.0, cycle.Progress(start.Add(30*time.Second)), 0.001)
}
