package db

import (
	"database/sql"
	"fmt"
	"time"
)

type MoistureReading struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Percent   float64   `json:"moisture_percent"`
	Raw       int       `json:"raw_value"`
}

type WateringEvent struct {
	ID              int64     `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	TriggerMoisture *float64  `json:"trigger_moisture,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
	EventType       string    `json:"event_type"`
	Notes           string    `json:"notes,omitempty"`
}

type SystemEvent struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
}

// DailySummary aggregates one calendar day of readings and waterings.
type DailySummary struct {
	Date              string   `json:"date"`
	AvgMoisture       *float64 `json:"avg_moisture,omitempty"`
	MinMoisture       *float64 `json:"min_moisture,omitempty"`
	MaxMoisture       *float64 `json:"max_moisture,omitempty"`
	ReadingCount      int      `json:"reading_count"`
	WateringCount     int      `json:"watering_count"`
	TotalWaterSeconds float64  `json:"total_water_seconds"`
}

// GetMoistureHistory returns readings at or after since, oldest first.
func GetMoistureHistory(conn *sql.DB, since time.Time) ([]MoistureReading, error) {
	rows, err := conn.Query(
		`SELECT id, timestamp, moisture_percent, COALESCE(raw_value, 0)
		 FROM moisture_readings WHERE timestamp >= ? ORDER BY timestamp ASC`,
		since.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query moisture history: %w", err)
	}
	defer rows.Close()

	var readings []MoistureReading
	for rows.Next() {
		var r MoistureReading
		var ts string
		if err := rows.Scan(&r.ID, &ts, &r.Percent, &r.Raw); err != nil {
			return nil, fmt.Errorf("failed to scan moisture reading: %w", err)
		}
		r.Timestamp, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse reading timestamp: %w", err)
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// GetWateringHistory returns watering events at or after since, newest first.
func GetWateringHistory(conn *sql.DB, since time.Time) ([]WateringEvent, error) {
	rows, err := conn.Query(
		`SELECT id, timestamp, trigger_moisture, duration_seconds, event_type, notes
		 FROM watering_events WHERE timestamp >= ? ORDER BY timestamp DESC`,
		since.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query watering history: %w", err)
	}
	defer rows.Close()

	var events []WateringEvent
	for rows.Next() {
		var e WateringEvent
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.TriggerMoisture, &e.DurationSeconds, &e.EventType, &e.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan watering event: %w", err)
		}
		e.Timestamp, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse watering timestamp: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetSystemEvents returns system events at or after since, newest first.
func GetSystemEvents(conn *sql.DB, since time.Time) ([]SystemEvent, error) {
	rows, err := conn.Query(
		`SELECT id, timestamp, event_type, message, severity
		 FROM system_events WHERE timestamp >= ? ORDER BY timestamp DESC`,
		since.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query system events: %w", err)
	}
	defer rows.Close()

	var events []SystemEvent
	for rows.Next() {
		var e SystemEvent
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.EventType, &e.Message, &e.Severity); err != nil {
			return nil, fmt.Errorf("failed to scan system event: %w", err)
		}
		e.Timestamp, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event timestamp: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetDailySummary aggregates readings and waterings for the given day. The
// day boundary follows the timezone of the passed time.
func GetDailySummary(conn *sql.DB, day time.Time) (*DailySummary, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)
	startStr := start.Format(time.RFC3339)
	endStr := end.Format(time.RFC3339)

	summary := &DailySummary{Date: start.Format("2006-01-02")}

	err := conn.QueryRow(
		`SELECT AVG(moisture_percent), MIN(moisture_percent), MAX(moisture_percent), COUNT(*)
		 FROM moisture_readings WHERE timestamp >= ? AND timestamp < ?`,
		startStr, endStr,
	).Scan(&summary.AvgMoisture, &summary.MinMoisture, &summary.MaxMoisture, &summary.ReadingCount)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate moisture readings: %w", err)
	}

	err = conn.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(duration_seconds), 0)
		 FROM watering_events WHERE timestamp >= ? AND timestamp < ?`,
		startStr, endStr,
	).Scan(&summary.WateringCount, &summary.TotalWaterSeconds)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate watering events: %w", err)
	}

	return summary, nil
}
