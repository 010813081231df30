// Package wateringcontroller owns the automation decision engine: it turns
// moisture samples into pulse-watering cycles while honoring the cooldown
// guard, the emergency override, and manual operator commands. All state
// lives behind one mutex; the engine is the sole writer to the pump.
package wateringcontroller

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/plant-waterer/internal/calibration"
	"github.com/thatsimonsguy/plant-waterer/internal/config"
	"github.com/thatsimonsguy/plant-waterer/internal/cooldown"
	"github.com/thatsimonsguy/plant-waterer/internal/datadog"
	"github.com/thatsimonsguy/plant-waterer/internal/events"
	"github.com/thatsimonsguy/plant-waterer/internal/hardware"
	"github.com/thatsimonsguy/plant-waterer/internal/model"
	"github.com/thatsimonsguy/plant-waterer/internal/notifications"
	"github.com/thatsimonsguy/plant-waterer/internal/pulse"
)

const (
	TriggerAuto      = "auto"
	TriggerEmergency = "emergency"
	TriggerManual    = "manual"
)

type Engine struct {
	mu sync.Mutex

	cfg    *config.Config
	sensor hardware.Sensor
	pump   hardware.Pump
	sink   events.Sink

	tracker *cooldown.Tracker

	state      model.EngineState
	lastSample *model.MoistureSample

	cycle        *pulse.Cycle
	cycleTrigger string
	cyclePercent *float64

	pumpOn         bool
	manualPump     bool
	manualDeadline time.Time
}

func New(cfg *config.Config, sensor hardware.Sensor, pump hardware.Pump, sink events.Sink) *Engine {
	return &Engine{
		cfg:     cfg,
		sensor:  sensor,
		pump:    pump,
		sink:    sink,
		tracker: cooldown.New(cfg.Cooldown()),
		state:   model.StateIdle,
	}
}

// Tick samples the sensor, records the reading, and runs the automation
// decision unless a cycle or a manual session is already in progress.
func (e *Engine) Tick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	raw, err := e.sensor.ReadRaw()
	if err != nil {
		log.Warn().Err(err).Msg("Sensor read failed, skipping tick")
		datadog.Count("sensor.failures", 1)
		return
	}

	percent, err := calibration.ToPercent(raw, e.cfg.CalibrationPoints())
	if err != nil {
		log.Error().Err(err).Int("raw", raw).Msg("Cannot convert reading, calibration required")
		return
	}

	sample := model.MoistureSample{Raw: raw, Percent: percent, Timestamp: now}
	e.lastSample = &sample
	datadog.Gauge("moisture.percent", percent)
	e.sink.Record(model.AutomationEvent{
		Kind:      model.EventSampleTaken,
		Timestamp: now,
		Raw:       &sample.Raw,
		Percent:   &sample.Percent,
	})

	e.expireManual(now)

	// While a cycle runs or an operator holds the pump, new samples are
	// observation only.
	if e.cycle != nil || e.manualActive(now) {
		return
	}

	e.evaluate(sample, now)
}

// evaluate applies the threshold/cooldown decision table. Caller holds the lock.
func (e *Engine) evaluate(sample model.MoistureSample, now time.Time) {
	allowed := e.tracker.Allowed(now)

	switch {
	case sample.Percent < e.cfg.EmergencyThreshold && !allowed:
		log.Warn().
			Float64("percent", sample.Percent).
			Float64("emergency_threshold", e.cfg.EmergencyThreshold).
			Dur("cooldown_remaining", e.tracker.Remaining(now)).
			Msg("Critically dry during cooldown, overriding")
		e.sink.Record(model.AutomationEvent{
			Kind:      model.EventEmergencyOverride,
			Timestamp: now,
			Percent:   &sample.Percent,
			Note:      fmt.Sprintf("moisture %.1f%% below emergency threshold %.1f%%, cooldown bypassed", sample.Percent, e.cfg.EmergencyThreshold),
			Severity:  "WARNING",
		})
		go func(pct float64) {
			if err := notifications.Send("Emergency watering",
				fmt.Sprintf("Soil critically dry at %.1f%%, watering despite cooldown", pct)); err != nil {
				log.Debug().Err(err).Msg("Notification not sent")
			}
		}(sample.Percent)
		e.startCycle(TriggerEmergency, &sample.Percent, now)

	case sample.Percent < e.cfg.MoistureThreshold && allowed:
		log.Info().
			Float64("percent", sample.Percent).
			Float64("threshold", e.cfg.MoistureThreshold).
			Msg("Moisture below threshold, starting watering cycle")
		e.startCycle(TriggerAuto, &sample.Percent, now)

	case sample.Percent < e.cfg.MoistureThreshold:
		if e.state != model.StateCooldownBlocked {
			log.Info().
				Float64("percent", sample.Percent).
				Dur("cooldown_remaining", e.tracker.Remaining(now)).
				Msg("Moisture below threshold but cooldown active")
		}
		e.state = model.StateCooldownBlocked

	default:
		e.state = model.StateIdle
	}
}

// startCycle begins a pulse cycle with the current pulse config. Caller holds
// the lock.
func (e *Engine) startCycle(trigger string, percent *float64, now time.Time) {
	cycle, err := pulse.Start(e.cfg.PulseConfig(), now)
	if err != nil {
		log.Error().Err(err).Msg("Refusing to start watering cycle")
		return
	}

	e.cycle = cycle
	e.cycleTrigger = trigger
	e.cyclePercent = percent
	e.state = model.StateWatering
	if trigger == TriggerManual {
		e.state = model.StateManual
	}

	e.sink.Record(model.AutomationEvent{
		Kind:      model.EventCycleStarted,
		Timestamp: now,
		Percent:   percent,
		Trigger:   trigger,
	})

	e.drive(now)
}

// Drive advances the active pulse cycle and expires timed manual sessions.
// Called on the fast tick, much more often than Tick.
func (e *Engine) Drive(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.expireManual(now)

	// A failed off-write leaves the relay running with nothing scheduled to
	// stop it, so keep retrying until the write lands.
	if e.cycle == nil && !e.manualPump && e.pumpOn {
		_ = e.setPump(false, now)
	}

	e.drive(now)
}

// expireManual releases a timed manual session whose deadline has passed.
// Must run before any decision that consults the manual flags, both on the
// drive tick and on the sample tick, so a sample landing after the deadline
// cannot start a cycle that a stale expiry then clobbers. Caller holds the
// lock.
func (e *Engine) expireManual(now time.Time) {
	if !e.manualPump || e.manualDeadline.IsZero() || now.Before(e.manualDeadline) {
		return
	}

	log.Info().Msg("Timed manual run elapsed, pump off")
	e.manualPump = false
	e.manualDeadline = time.Time{}
	if e.cycle == nil {
		e.state = model.StateIdle
		_ = e.setPump(false, now)
	}
}

// drive steps the cycle once. Caller holds the lock.
func (e *Engine) drive(now time.Time) {
	if e.cycle == nil {
		return
	}

	res := e.cycle.Step(now)
	switch res.State {
	case pulse.Running:
		if err := e.setPump(res.PumpOn, now); err != nil {
			return
		}
	case pulse.Complete:
		e.finishCycle(now, true)
	case pulse.Aborted:
		e.finishCycle(now, false)
	}
}

// finishCycle tears down the active cycle and records its outcome. An aborted
// cycle never counts against the cooldown. Caller holds the lock.
func (e *Engine) finishCycle(now time.Time, completed bool) {
	trigger := e.cycleTrigger
	percent := e.cyclePercent
	elapsedOn := e.cycle.ElapsedOn().Seconds()

	if err := e.setPump(false, now); err != nil {
		log.Error().Err(err).Msg("Failed to stop pump at cycle end")
	}
	e.cycle = nil
	e.cycleTrigger = ""
	e.cyclePercent = nil
	e.state = model.StateIdle

	if completed {
		// Manual cycles don't consume the automation budget.
		if trigger != TriggerManual {
			e.tracker.Record(now)
		}
		log.Info().
			Str("trigger", trigger).
			Float64("pump_seconds", elapsedOn).
			Msg("Watering cycle complete")
		e.sink.Record(model.AutomationEvent{
			Kind:            model.EventCycleCompleted,
			Timestamp:       now,
			Percent:         percent,
			DurationSeconds: &elapsedOn,
			Trigger:         trigger,
		})
		datadog.Count("watering.completed", 1, "trigger:"+trigger)
		return
	}

	log.Warn().
		Str("trigger", trigger).
		Float64("pump_seconds", elapsedOn).
		Msg("Watering cycle aborted")
	e.sink.Record(model.AutomationEvent{
		Kind:            model.EventCycleAborted,
		Timestamp:       now,
		Percent:         percent,
		DurationSeconds: &elapsedOn,
		Trigger:         trigger,
		Severity:        "WARNING",
	})
	datadog.Count("watering.aborted", 1, "trigger:"+trigger)
}

// setPump writes the actuator only on state changes. An actuator fault during
// a cycle aborts the cycle rather than leaving the pump in an unknown state.
// Caller holds the lock.
func (e *Engine) setPump(on bool, now time.Time) error {
	if on == e.pumpOn {
		return nil
	}

	if err := e.pump.Set(on); err != nil {
		log.Error().Err(err).Bool("on", on).Msg("Pump actuation failed")
		datadog.Count("pump.faults", 1)
		if e.cycle != nil && on {
			e.cycle.Cancel()
		}
		return err
	}

	e.pumpOn = on
	if on {
		datadog.Gauge("pump.on", 1)
	} else {
		datadog.Gauge("pump.on", 0)
	}
	return nil
}

// cancelCycle aborts any in-flight cycle immediately. Caller holds the lock.
func (e *Engine) cancelCycle(now time.Time) {
	if e.cycle == nil {
		return
	}
	e.cycle.Cancel()
	e.cycle.Step(now)
	e.finishCycle(now, false)
}

// ManualOn turns the pump on until ManualOff. Automation stands down but the
// cooldown clock is untouched.
func (e *Engine) ManualOn(now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelCycle(now)
	e.manualPump = true
	e.manualDeadline = time.Time{}
	e.state = model.StateManual

	log.Info().Msg("Manual pump ON")
	e.sink.Record(model.AutomationEvent{
		Kind:      model.EventManualCommand,
		Timestamp: now,
		Command:   "pump_on",
	})
	return e.setPump(true, now)
}

// ManualOff turns the pump off and returns control to the automation.
func (e *Engine) ManualOff(now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelCycle(now)
	e.manualPump = false
	e.manualDeadline = time.Time{}
	e.state = model.StateIdle

	log.Info().Msg("Manual pump OFF")
	e.sink.Record(model.AutomationEvent{
		Kind:      model.EventManualCommand,
		Timestamp: now,
		Command:   "pump_off",
	})
	return e.setPump(false, now)
}

// ManualRunFor holds the pump on for d, then releases automatically.
func (e *Engine) ManualRunFor(d time.Duration, now time.Time) error {
	if d <= 0 {
		return fmt.Errorf("manual run duration must be positive, got %s", d)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelCycle(now)
	e.manualPump = true
	e.manualDeadline = now.Add(d)
	e.state = model.StateManual

	log.Info().Dur("duration", d).Msg("Manual timed pump run")
	e.sink.Record(model.AutomationEvent{
		Kind:      model.EventManualCommand,
		Timestamp: now,
		Command:   "pump_run",
		Note:      fmt.Sprintf("run for %s", d),
	})
	return e.setPump(true, now)
}

// ManualPulse starts an operator-requested pulse cycle, replacing whatever
// was running. The cooldown clock is untouched.
func (e *Engine) ManualPulse(pc model.PulseConfig, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelCycle(now)
	e.manualPump = false
	e.manualDeadline = time.Time{}

	cycle, err := pulse.Start(pc, now)
	if err != nil {
		return err
	}
	e.cycle = cycle
	e.cycleTrigger = TriggerManual
	e.cyclePercent = nil
	e.state = model.StateManual

	log.Info().
		Dur("on", pc.OnTime).
		Dur("off", pc.OffTime).
		Dur("total", pc.TotalDuration).
		Msg("Manual pulse cycle started")
	e.sink.Record(model.AutomationEvent{
		Kind:      model.EventManualCommand,
		Timestamp: now,
		Command:   "pulse",
		Note:      fmt.Sprintf("on=%s off=%s total=%s", pc.OnTime, pc.OffTime, pc.TotalDuration),
	})

	e.drive(now)
	return nil
}

// ApplyConfig swaps in a validated configuration between ticks. An in-flight
// cycle keeps the pulse timings it started with.
func (e *Engine) ApplyConfig(cfg *config.Config) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cfg = cfg
	e.tracker.SetCooldown(cfg.Cooldown())
	log.Info().
		Float64("threshold", cfg.MoistureThreshold).
		Float64("emergency_threshold", cfg.EmergencyThreshold).
		Float64("cooldown_hours", cfg.CooldownHours).
		Msg("Applied updated configuration")
}

func (e *Engine) Config() *config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

func (e *Engine) manualActive(now time.Time) bool {
	if !e.manualPump {
		return false
	}
	if e.manualDeadline.IsZero() {
		return true
	}
	return now.Before(e.manualDeadline)
}

type CycleStatus struct {
	StartedAt        time.Time `json:"started_at"`
	Phase            string    `json:"phase"`
	ElapsedOnSeconds float64   `json:"elapsed_on_seconds"`
	Progress         float64   `json:"progress"`
	Trigger          string    `json:"trigger"`
}

type Status struct {
	State                    model.EngineState     `json:"state"`
	PumpOn                   bool                  `json:"pump_on"`
	LastSample               *model.MoistureSample `json:"last_sample,omitempty"`
	WateringAllowed          bool                  `json:"watering_allowed"`
	CooldownRemainingSeconds float64               `json:"cooldown_remaining_seconds"`
	LastWateredAt            *time.Time            `json:"last_watered_at,omitempty"`
	Cycle                    *CycleStatus          `json:"cycle,omitempty"`
}

func (e *Engine) Status(now time.Time) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		State:                    e.state,
		PumpOn:                   e.pumpOn,
		LastSample:               e.lastSample,
		WateringAllowed:          e.tracker.Allowed(now),
		CooldownRemainingSeconds: e.tracker.Remaining(now).Seconds(),
	}
	if last, ok := e.tracker.LastWatered(); ok {
		st.LastWateredAt = &last
	}
	if e.cycle != nil {
		st.Cycle = &CycleStatus{
			StartedAt:        e.cycle.StartedAt(),
			Phase:            string(e.cycle.Phase()),
			ElapsedOnSeconds: e.cycle.ElapsedOn().Seconds(),
			Progress:         e.cycle.Progress(now),
			Trigger:          e.cycleTrigger,
		}
	}
	return st
}
