package model

import "time"

type EngineState string

const (
	StateIdle            EngineState = "idle"
	StateWatering        EngineState = "watering"
	StateCooldownBlocked EngineState = "cooldown_blocked"
	StateManual          EngineState = "manual"
)

// CalibrationPoints are the two-point calibration for the capacitive
// moisture sensor. Drier soil yields a higher raw reading, so DryRaw > WetRaw.
type CalibrationPoints struct {
	DryRaw int `json:"dry_raw"`
	WetRaw int `json:"wet_raw"`
}

type MoistureSample struct {
	Raw       int       `json:"raw"`
	Percent   float64   `json:"percent"`
	Timestamp time.Time `json:"timestamp"`
}

type PulseConfig struct {
	OnTime        time.Duration `json:"on_time"`
	OffTime       time.Duration `json:"off_time"`
	TotalDuration time.Duration `json:"total_duration"`
}

type EventKind string

const (
	EventSampleTaken       EventKind = "sample_taken"
	EventCycleStarted      EventKind = "cycle_started"
	EventCycleCompleted    EventKind = "cycle_completed"
	EventCycleAborted      EventKind = "cycle_aborted"
	EventEmergencyOverride EventKind = "emergency_override"
	EventManualCommand     EventKind = "manual_command"
)

// AutomationEvent is write-only telemetry emitted to the event sinks. The
// engine never reads these back.
type AutomationEvent struct {
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	Raw             *int     `json:"raw,omitempty"`
	Percent         *float64 `json:"percent,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	Trigger         string   `json:"trigger,omitempty"`
	Command         string   `json:"command,omitempty"`
	Note            string   `json:"note,omitempty"`
	Severity        string   `json:"severity,omitempty"`
}
