package pulse

import (
	"fmt"
	"time"

	"github.com/thatsimonsguy/plant-waterer/internal/model"
)

type State string

const (
	Running  State = "running"
	Complete State = "complete"
	Aborted  State = "aborted"
)

type Phase string

const (
	PhaseOn  Phase = "on"
	PhaseOff Phase = "off"
)

// StepResult is the outcome of advancing a cycle to the supplied clock.
// PumpOn is the *desired* pump state; the hardware write belongs to the
// caller, which may not be the exclusive driver of the pump.
type StepResult struct {
	State  State
	PumpOn bool
}

// Cycle alternates pump-on for OnTime and pump-off for OffTime until the
// wall-clock elapsed time reaches TotalDuration. Step is a pure transition
// on the supplied time, so it is safe to call at arbitrary cadence; callers
// must poll faster than min(OnTime, OffTime) to avoid missing a phase
// boundary.
type Cycle struct {
	cfg       model.PulseConfig
	startedAt time.Time
	cancelled bool
	terminal  State // empty while the cycle is live
	lastOn    bool
	elapsedOn time.Duration
}

// Start validates the pulse configuration and begins a cycle at now.
func Start(cfg model.PulseConfig, now time.Time) (*Cycle, error) {
	if cfg.OnTime <= 0 || cfg.OffTime <= 0 || cfg.TotalDuration <= 0 {
		return nil, fmt.Errorf("invalid pulse config: on=%s off=%s total=%s", cfg.OnTime, cfg.OffTime, cfg.TotalDuration)
	}
	return &Cycle{cfg: cfg, startedAt: now}, nil
}

// Step advances the cycle to now. Terminal results are sticky: once Complete
// or Aborted has been reported, every later Step repeats it with the pump
// off.
func (c *Cycle) Step(now time.Time) StepResult {
	if c.terminal != "" {
		return StepResult{State: c.terminal}
	}
	if c.cancelled {
		c.elapsedOn = c.onDuration(now.Sub(c.startedAt))
		c.terminal = Aborted
		c.lastOn = false
		return StepResult{State: Aborted}
	}

	elapsed := now.Sub(c.startedAt)
	c.elapsedOn = c.onDuration(elapsed)

	if elapsed >= c.cfg.TotalDuration {
		c.terminal = Complete
		c.lastOn = false
		return StepResult{State: Complete}
	}

	pos := elapsed % (c.cfg.OnTime + c.cfg.OffTime)
	on := pos < c.cfg.OnTime
	c.lastOn = on
	return StepResult{State: Running, PumpOn: on}
}

// Cancel requests an immediate abort. The next Step reports Aborted with the
// pump off. Cancelling a finished or already-cancelled cycle is a no-op.
func (c *Cycle) Cancel() {
	if c.terminal != "" {
		return
	}
	c.cancelled = true
}

// onDuration derives the pump-on time analytically from wall-clock elapsed
// time: full on/off periods contribute OnTime each, and only the on-phase
// portion of a partial period counts. Crediting the raw step interval would
// over-count whenever a step spans an on-to-off boundary.
func (c *Cycle) onDuration(elapsed time.Duration) time.Duration {
	if elapsed <= 0 {
		return 0
	}
	if elapsed > c.cfg.TotalDuration {
		elapsed = c.cfg.TotalDuration
	}
	period := c.cfg.OnTime + c.cfg.OffTime
	full := elapsed / period
	rem := elapsed % period
	if rem > c.cfg.OnTime {
		rem = c.cfg.OnTime
	}
	return full*c.cfg.OnTime + rem
}

func (c *Cycle) StartedAt() time.Time { return c.startedAt }

// ElapsedOn is the accumulated pump-on time observed across Step calls.
func (c *Cycle) ElapsedOn() time.Duration { return c.elapsedOn }

func (c *Cycle) Phase() Phase {
	if c.lastOn {
		return PhaseOn
	}
	return PhaseOff
}

// Progress reports the fraction of TotalDuration elapsed, clamped to [0, 1].
func (c *Cycle) Progress(now time.Time) float64 {
	if c.terminal == Complete {
		return 1
	}
	frac := float64(now.Sub(c.startedAt)) / float64(c.cfg.TotalDuration)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return frac
}

func (c *Cycle) Done() bool { return c.terminal != "" }

func (c *Cycle) Config() model.PulseConfig { return c.cfg }
