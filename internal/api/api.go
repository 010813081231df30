// Package api exposes the operator HTTP surface: status, manual pump
// commands, history queries, and config reload. It is a thin shell over the
// engine; all control decisions stay in the controller package.
package api

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/plant-waterer/db"
	"github.com/thatsimonsguy/plant-waterer/internal/controllers/wateringcontroller"
)

type Server struct {
	engine *wateringcontroller.Engine
	conn   *sql.DB
}

func NewServer(engine *wateringcontroller.Engine, conn *sql.DB) *Server {
	return &Server{engine: engine, conn: conn}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/pump/on", s.handlePumpOn)
	mux.HandleFunc("/api/pump/off", s.handlePumpOff)
	mux.HandleFunc("/api/pump/run", s.handlePumpRun)
	mux.HandleFunc("/api/pump/pulse", s.handlePumpPulse)
	mux.HandleFunc("/api/history/moisture", s.handleMoistureHistory)
	mux.HandleFunc("/api/history/waterings", s.handleWateringHistory)
	mux.HandleFunc("/api/history/events", s.handleSystemEvents)
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/config/reload", s.handleConfigReload)

	return corsMiddleware(mux)
}

// Start runs the HTTP server on the configured port. Blocks until the
// listener fails.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	log.Info().Str("addr", addr).Msg("API server listening")
	return http.ListenAndServe(addr, s.Handler())
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Status(time.Now()))
}

func (s *Server) handlePumpOn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.engine.ManualOn(time.Now()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "pump on"})
}

func (s *Server) handlePumpOff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.engine.ManualOff(time.Now()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "pump off"})
}

func (s *Server) handlePumpRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Seconds float64 `json:"seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Seconds <= 0 {
		writeError(w, http.StatusBadRequest, "seconds must be positive")
		return
	}

	d := time.Duration(req.Seconds * float64(time.Second))
	if err := s.engine.ManualRunFor(d, time.Now()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": fmt.Sprintf("pump running for %s", d)})
}

func (s *Server) handlePumpPulse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		OnSeconds    float64 `json:"on_seconds"`
		OffSeconds   float64 `json:"off_seconds"`
		TotalSeconds float64 `json:"total_seconds"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	pc := s.engine.Config().PulseConfig()
	if req.OnSeconds > 0 {
		pc.OnTime = time.Duration(req.OnSeconds * float64(time.Second))
	}
	if req.OffSeconds > 0 {
		pc.OffTime = time.Duration(req.OffSeconds * float64(time.Second))
	}
	if req.TotalSeconds > 0 {
		pc.TotalDuration = time.Duration(req.TotalSeconds * float64(time.Second))
	}

	if err := s.engine.ManualPulse(pc, time.Now()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "pulse cycle started",
		"pulse":  pc,
	})
}

func (s *Server) handleMoistureHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	hours := parseFloatParam(r, "hours", 24)
	since := time.Now().Add(-time.Duration(hours * float64(time.Hour)))
	readings, err := db.GetMoistureHistory(s.conn, since)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query moisture history")
		writeError(w, http.StatusInternalServerError, "failed to query history")
		return
	}
	if readings == nil {
		readings = []db.MoistureReading{}
	}
	writeJSON(w, http.StatusOK, readings)
}

func (s *Server) handleWateringHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	days := parseFloatParam(r, "days", 7)
	since := time.Now().Add(-time.Duration(days * 24 * float64(time.Hour)))
	events, err := db.GetWateringHistory(s.conn, since)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query watering history")
		writeError(w, http.StatusInternalServerError, "failed to query history")
		return
	}
	if events == nil {
		events = []db.WateringEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleSystemEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	days := parseFloatParam(r, "days", 7)
	since := time.Now().Add(-time.Duration(days * 24 * float64(time.Hour)))
	events, err := db.GetSystemEvents(s.conn, since)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query system events")
		writeError(w, http.StatusInternalServerError, "failed to query history")
		return
	}
	if events == nil {
		events = []db.SystemEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	day := time.Now()
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	summary, err := db.GetDailySummary(s.conn, day)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build daily summary")
		writeError(w, http.StatusInternalServerError, "failed to build summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	cfg := s.engine.Config()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"moisture_threshold":  cfg.MoistureThreshold,
		"emergency_threshold": cfg.EmergencyThreshold,
		"cooldown_hours":      cfg.CooldownHours,
		"sample_interval":     cfg.SampleInterval().String(),
		"calibration":         cfg.CalibrationPoints(),
		"pulse":               cfg.PulseConfig(),
		"simulation":          cfg.Simulation,
		"safe_mode":           cfg.SafeMode,
	})
}

func (s *Server) handleConfigReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	next, err := s.engine.Config().Reload()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.engine.ApplyConfig(next)
	writeJSON(w, http.StatusOK, map[string]string{"status": "config reloaded"})
}

func parseFloatParam(r *http.Request, name string, fallback float64) float64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	var f float64
	if _, err := fmt.Sscanf(v, "%g", &f); err != nil || f <= 0 {
		return fallback
	}
	return f
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
