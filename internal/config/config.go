package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/thatsimonsguy/plant-waterer/internal/model"
)

type Sensor struct {
	// Device is the IIO sysfs directory for the ADC the capacitive probe is
	// wired to, e.g. /sys/bus/iio/devices/iio:device0
	Device  string `json:"device"`
	Channel int    `json:"channel"`

	CalibrationDry int `json:"calibration_dry"`
	CalibrationWet int `json:"calibration_wet"`

	BreakerFailures    int `json:"breaker_failures"`
	BreakerOpenSeconds int `json:"breaker_open_seconds"`
}

type Pump struct {
	Chip       string `json:"chip"`
	Pin        *int   `json:"pin"`
	ActiveHigh bool   `json:"active_high"`

	PulseOnSeconds    float64 `json:"pulse_on_seconds"`
	PulseOffSeconds   float64 `json:"pulse_off_seconds"`
	PulseTotalSeconds float64 `json:"pulse_total_seconds"`
}

type MQTT struct {
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	TopicPrefix string `json:"topic_prefix"`
}

type Datadog struct {
	Enable    bool     `json:"enable"`
	AgentAddr string   `json:"agent_addr"`
	Namespace string   `json:"namespace"`
	Tags      []string `json:"tags"`
}

type Config struct {
	ConfigFile string
	DBFile     string
	LogFile    string
	LogLevel   zerolog.Level
	SafeMode   bool
	Simulation bool

	MoistureThreshold     float64 `json:"moisture_threshold"`
	EmergencyThreshold    float64 `json:"emergency_threshold"`
	CooldownHours         float64 `json:"cooldown_hours"`
	SampleIntervalSeconds int     `json:"sample_interval_seconds"`
	PulseStepMillis       int     `json:"pulse_step_millis"`
	RetentionDays         int     `json:"retention_days"`
	APIPort               int     `json:"api_port"`
	NtfyTopic             string  `json:"ntfy_topic"`

	Sensor  Sensor  `json:"sensor"`
	Pump    Pump    `json:"pump"`
	MQTT    MQTT    `json:"mqtt"`
	Datadog Datadog `json:"datadog"`
}

func Load() *Config {
	var cfg Config
	var logLevel string

	flag.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to controller config file")
	flag.StringVar(&cfg.DBFile, "db-file", "data/plant.db", "Path to the SQLite history database")
	flag.StringVar(&cfg.LogFile, "log-file", "/var/log/plant-waterer.log", "Path to the log file")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&cfg.SafeMode, "safe-mode", false, "Disable all pump GPIO writes system-wide")
	flag.BoolVar(&cfg.Simulation, "simulate", false, "Use simulated sensor and pump instead of hardware")
	flag.Parse()

	cfg.LogLevel = parseLogLevel(logLevel)

	file, err := os.Open(cfg.ConfigFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		panic("Failed to parse config file: " + err.Error())
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		panic("Invalid configuration: " + err.Error())
	}
	return &cfg
}

// Reload re-reads the config file and returns a fresh, validated Config
// carrying over the flag-derived fields. On any error the caller keeps the
// last-known-good configuration.
func (cfg *Config) Reload() (*Config, error) {
	file, err := os.Open(cfg.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer file.Close()

	next := Config{
		ConfigFile: cfg.ConfigFile,
		DBFile:     cfg.DBFile,
		LogFile:    cfg.LogFile,
		LogLevel:   cfg.LogLevel,
		SafeMode:   cfg.SafeMode,
		Simulation: cfg.Simulation,
	}
	if err := json.NewDecoder(file).Decode(&next); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	next.applyDefaults()

	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &next, nil
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.MoistureThreshold == 0 {
		cfg.MoistureThreshold = 30
	}
	if cfg.EmergencyThreshold == 0 {
		cfg.EmergencyThreshold = 15
	}
	if cfg.CooldownHours == 0 {
		cfg.CooldownHours = 24
	}
	if cfg.SampleIntervalSeconds == 0 {
		cfg.SampleIntervalSeconds = 60
	}
	if cfg.PulseStepMillis == 0 {
		cfg.PulseStepMillis = 50
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = 30
	}
	if cfg.APIPort == 0 {
		cfg.APIPort = 8130
	}
	if cfg.Pump.Chip == "" {
		cfg.Pump.Chip = "gpiochip0"
	}
	if cfg.Pump.PulseOnSeconds == 0 {
		cfg.Pump.PulseOnSeconds = 0.3125
	}
	if cfg.Pump.PulseOffSeconds == 0 {
		cfg.Pump.PulseOffSeconds = 0.3125
	}
	if cfg.Pump.PulseTotalSeconds == 0 {
		cfg.Pump.PulseTotalSeconds = 15
	}
	if cfg.Sensor.BreakerFailures == 0 {
		cfg.Sensor.BreakerFailures = 5
	}
	if cfg.Sensor.BreakerOpenSeconds == 0 {
		cfg.Sensor.BreakerOpenSeconds = 60
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "plant-waterer"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "plant-waterer/events"
	}
}

func (cfg *Config) Validate() error {
	if cfg.Sensor.CalibrationDry <= cfg.Sensor.CalibrationWet {
		return fmt.Errorf("sensor.calibration_dry (%d) must be greater than sensor.calibration_wet (%d)",
			cfg.Sensor.CalibrationDry, cfg.Sensor.CalibrationWet)
	}
	if cfg.MoistureThreshold <= 0 || cfg.MoistureThreshold >= 100 {
		return fmt.Errorf("moisture_threshold must be within (0, 100), got %.1f", cfg.MoistureThreshold)
	}
	if cfg.EmergencyThreshold <= 0 || cfg.EmergencyThreshold >= cfg.MoistureThreshold {
		return fmt.Errorf("emergency_threshold (%.1f) must be positive and below moisture_threshold (%.1f)",
			cfg.EmergencyThreshold, cfg.MoistureThreshold)
	}
	if cfg.CooldownHours <= 0 {
		return fmt.Errorf("cooldown_hours must be positive, got %.2f", cfg.CooldownHours)
	}
	if cfg.SampleIntervalSeconds <= 0 {
		return fmt.Errorf("sample_interval_seconds must be positive, got %d", cfg.SampleIntervalSeconds)
	}
	if cfg.RetentionDays < 1 {
		return fmt.Errorf("retention_days must be at least 1, got %d", cfg.RetentionDays)
	}

	pc := cfg.PulseConfig()
	if pc.OnTime <= 0 || pc.OffTime <= 0 || pc.TotalDuration <= 0 {
		return fmt.Errorf("pulse on/off/total durations must all be positive")
	}
	step := cfg.PulseStep()
	if step <= 0 || step >= pc.OnTime || step >= pc.OffTime {
		return fmt.Errorf("pulse_step_millis (%s) must be shorter than both pulse phases (on=%s off=%s)",
			step, pc.OnTime, pc.OffTime)
	}

	if !cfg.Simulation {
		if cfg.Pump.Pin == nil {
			return fmt.Errorf("pump.pin is required outside simulation mode")
		}
		if cfg.Sensor.Device == "" {
			return fmt.Errorf("sensor.device is required outside simulation mode")
		}
	}
	return nil
}

func (cfg *Config) CalibrationPoints() model.CalibrationPoints {
	return model.CalibrationPoints{
		DryRaw: cfg.Sensor.CalibrationDry,
		WetRaw: cfg.Sensor.CalibrationWet,
	}
}

func (cfg *Config) PulseConfig() model.PulseConfig {
	return model.PulseConfig{
		OnTime:        secondsToDuration(cfg.Pump.PulseOnSeconds),
		OffTime:       secondsToDuration(cfg.Pump.PulseOffSeconds),
		TotalDuration: secondsToDuration(cfg.Pump.PulseTotalSeconds),
	}
}

func (cfg *Config) Cooldown() time.Duration {
	return time.Duration(cfg.CooldownHours * float64(time.Hour))
}

func (cfg *Config) SampleInterval() time.Duration {
	return time.Duration(cfg.SampleIntervalSeconds) * time.Second
}

func (cfg *Config) PulseStep() time.Duration {
	return time.Duration(cfg.PulseStepMillis) * time.Millisecond
}

func (cfg *Config) BreakerOpenFor() time.Duration {
	return time.Duration(cfg.Sensor.BreakerOpenSeconds) * time.Second
}

// EventRetention bounds watering and system events in the history store.
func (cfg *Config) EventRetention() time.Duration {
	return time.Duration(cfg.RetentionDays) * 24 * time.Hour
}

// ReadingRetention bounds raw moisture readings, which accrue far faster than
// events and only need to cover recent trend queries.
func (cfg *Config) ReadingRetention() time.Duration {
	retention := 7 * 24 * time.Hour
	if event := cfg.EventRetention(); event < retention {
		return event
	}
	return retention
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
