package db

import (
	"database/sql"
	"fmt"
	"time"
)

// InsertMoistureReading stores one sampled moisture value.
func InsertMoistureReading(conn *sql.DB, ts time.Time, percent float64, raw int) error {
	_, err := conn.Exec(
		`INSERT INTO moisture_readings (timestamp, moisture_percent, raw_value) VALUES (?, ?, ?)`,
		ts.Format(time.RFC3339), percent, raw,
	)
	if err != nil {
		return fmt.Errorf("failed to insert moisture reading: %w", err)
	}
	return nil
}

// InsertWateringEvent stores a completed watering cycle. triggerMoisture is
// nil for manual cycles started without a sample.
func InsertWateringEvent(conn *sql.DB, ts time.Time, triggerMoisture *float64, durationSeconds float64, eventType, notes string) error {
	_, err := conn.Exec(
		`INSERT INTO watering_events (timestamp, trigger_moisture, duration_seconds, event_type, notes) VALUES (?, ?, ?, ?, ?)`,
		ts.Format(time.RFC3339), triggerMoisture, durationSeconds, eventType, notes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert watering event: %w", err)
	}
	return nil
}

// InsertSystemEvent stores an operational event (aborts, overrides, manual
// commands) for the history API.
func InsertSystemEvent(conn *sql.DB, ts time.Time, eventType, message, severity string) error {
	if severity == "" {
		severity = "INFO"
	}
	_, err := conn.Exec(
		`INSERT INTO system_events (timestamp, event_type, message, severity) VALUES (?, ?, ?, ?)`,
		ts.Format(time.RFC3339), eventType, message, severity,
	)
	if err != nil {
		return fmt.Errorf("failed to insert system event: %w", err)
	}
	return nil
}

// CleanupOldData deletes rows older than the configured retention windows.
// Readings churn much faster than events so they get their own window.
func CleanupOldData(conn *sql.DB, now time.Time, readingRetention, eventRetention time.Duration) error {
	readingCutoff := now.Add(-readingRetention).Format(time.RFC3339)
	eventCutoff := now.Add(-eventRetention).Format(time.RFC3339)

	if _, err := conn.Exec(`DELETE FROM moisture_readings WHERE timestamp < ?`, readingCutoff); err != nil {
		return fmt.Errorf("failed to clean up moisture readings: %w", err)
	}
	if _, err := conn.Exec(`DELETE FROM watering_events WHERE timestamp < ?`, eventCutoff); err != nil {
		return fmt.Errorf("failed to clean up watering events: %w", err)
	}
	if _, err := conn.Exec(`DELETE FROM system_events WHERE timestamp < ?`, eventCutoff); err != nil {
		return fmt.Errorf("failed to clean up system events: %w", err)
	}
	return nil
}
