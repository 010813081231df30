// Package events fans automation events out to the history database and
// optional telemetry transports. Sinks are best-effort: a failing sink logs
// and drops, it never stalls the control loop.
package events

import (
	"database/sql"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/plant-waterer/db"
	"github.com/thatsimonsguy/plant-waterer/internal/model"
)

type Sink interface {
	Record(ev model.AutomationEvent)
}

// NopSink discards everything. Used by tests that don't care about events.
type NopSink struct{}

func (NopSink) Record(model.AutomationEvent) {}

// MultiSink delivers each event to every child sink in order.
type MultiSink []Sink

func (m MultiSink) Record(ev model.AutomationEvent) {
	for _, s := range m {
		s.Record(ev)
	}
}

// StoreSink persists events into the sqlite history tables.
type StoreSink struct {
	conn *sql.DB
}

func NewStoreSink(conn *sql.DB) *StoreSink {
	return &StoreSink{conn: conn}
}

func (s *StoreSink) Record(ev model.AutomationEvent) {
	var err error
	switch ev.Kind {
	case model.EventSampleTaken:
		if ev.Percent == nil || ev.Raw == nil {
			return
		}
		err = db.InsertMoistureReading(s.conn, ev.Timestamp, *ev.Percent, *ev.Raw)
	case model.EventCycleCompleted:
		var duration float64
		if ev.DurationSeconds != nil {
			duration = *ev.DurationSeconds
		}
		err = db.InsertWateringEvent(s.conn, ev.Timestamp, ev.Percent, duration, strings.ToUpper(ev.Trigger), ev.Note)
	default:
		err = db.InsertSystemEvent(s.conn, ev.Timestamp, string(ev.Kind), eventMessage(ev), severityOf(ev))
	}
	if err != nil {
		log.Error().Err(err).Str("kind", string(ev.Kind)).Msg("Failed to persist event")
	}
}

func eventMessage(ev model.AutomationEvent) string {
	if ev.Note != "" {
		return ev.Note
	}
	if ev.Command != "" {
		return "manual command: " + ev.Command
	}
	return string(ev.Kind)
}

func severityOf(ev model.AutomationEvent) string {
	if ev.Severity != "" {
		return ev.Severity
	}
	switch ev.Kind {
	case model.EventCycleAborted, model.EventEmergencyOverride:
		return "WARNING"
	default:
		return "INFO"
	}
}
