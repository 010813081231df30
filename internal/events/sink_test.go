package events_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/plant-waterer/db"
	"github.com/thatsimonsguy/plant-waterer/internal/events"
	"github.com/thatsimonsguy/plant-waterer/internal/model"
)

func TestStoreSinkRoutesEvents(t *testing.T) {
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	defer conn.Close()

	sink := events.NewStoreSink(conn)
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	raw := 24000
	percent := 40.0
	sink.Record(model.AutomationEvent{
		Kind:      model.EventSampleTaken,
		Timestamp: now,
		Raw:       &raw,
		Percent:   &percent,
	})

	duration := 7.5
	trigger := 28.0
	sink.Record(model.AutomationEvent{
		Kind:            model.EventCycleCompleted,
		Timestamp:       now.Add(time.Minute),
		Percent:         &trigger,
		DurationSeconds: &duration,
		Trigger:         "auto",
	})

	sink.Record(model.AutomationEvent{
		Kind:      model.EventCycleAborted,
		Timestamp: now.Add(2 * time.Minute),
		Trigger:   "auto",
		Severity:  "WARNING",
	})

	sink.Record(model.AutomationEvent{
		Kind:      model.EventManualCommand,
		Timestamp: now.Add(3 * time.Minute),
		Command:   "pump_on",
	})

	readings, err := db.GetMoistureHistory(conn, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, 40.0, readings[0].Percent)
	assert.Equal(t, 24000, readings[0].Raw)

	waterings, err := db.GetWateringHistory(conn, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, waterings, 1)
	assert.Equal(t, "AUTO", waterings[0].EventType)
	assert.Equal(t, 7.5, waterings[0].DurationSeconds)
	require.NotNil(t, waterings[0].TriggerMoisture)
	assert.Equal(t, 28.0, *waterings[0].TriggerMoisture)

	sysEvents, err := db.GetSystemEvents(conn, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, sysEvents, 2)
	// Newest first: the manual command, then the abort.
	assert.Equal(t, "manual_command", sysEvents[0].EventType)
	assert.Equal(t, "INFO", sysEvents[0].Severity)
	assert.Equal(t, "manual command: pump_on", sysEvents[0].Message)
	assert.Equal(t, "cycle_aborted", sysEvents[1].EventType)
	assert.Equal(t, "WARNING", sysEvents[1].Severity)
}

func TestStoreSinkIgnoresIncompleteSample(t *testing.T) {
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	defer conn.Close()

	sink := events.NewStoreSink(conn)
	sink.Record(model.AutomationEvent{Kind: model.EventSampleTaken, Timestamp: time.Now()})

	readings, err := db.GetMoistureHistory(conn, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, readings)
}

type countingSink struct {
	n int
}

func (s *countingSink) Record(model.AutomationEvent) { s.n++ }

func TestMultiSinkFansOut(t *testing.T) {
	a := &countingSink{}
	b := &countingSink{}
	multi := events.MultiSink{a, b, events.NopSink{}}

	multi.Record(model.AutomationEvent{Kind: model.EventManualCommand, Timestamp: time.Now()})
	multi.Record(model.AutomationEvent{Kind: model.EventManualCommand, Timestamp: time.Now()})

	assert.Equal(t, 2, a.n)
	assert.Equal(t, 2, b.n)
}
