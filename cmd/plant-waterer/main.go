package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/plant-waterer/db"
	"github.com/thatsimonsguy/plant-waterer/internal/api"
	"github.com/thatsimonsguy/plant-waterer/internal/config"
	"github.com/thatsimonsguy/plant-waterer/internal/controllers/wateringcontroller"
	"github.com/thatsimonsguy/plant-waterer/internal/datadog"
	"github.com/thatsimonsguy/plant-waterer/internal/events"
	"github.com/thatsimonsguy/plant-waterer/internal/hardware"
	"github.com/thatsimonsguy/plant-waterer/internal/logging"
	"github.com/thatsimonsguy/plant-waterer/internal/notifications"
	"github.com/thatsimonsguy/plant-waterer/system/shutdown"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile)

	log.Info().
		Bool("simulation", cfg.Simulation).
		Bool("safe_mode", cfg.SafeMode).
		Msg("Starting plant waterer")

	datadog.InitMetrics(cfg)
	notifications.Init(cfg.NtfyTopic)

	conn, err := db.Open(cfg.DBFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBFile).Msg("Failed to open history database")
	}
	defer conn.Close()

	sensor, pump := buildHardware(cfg)
	defer sensor.Close()

	sink := buildSink(cfg, conn)

	engine := wateringcontroller.New(cfg, sensor, pump, sink)

	ctx, cancel := context.WithCancel(context.Background())

	go wateringcontroller.Run(ctx, engine, conn)

	if err := config.Watch(ctx, cfg, engine.ApplyConfig); err != nil {
		log.Warn().Err(err).Msg("Config hot reload unavailable")
	}

	server := api.NewServer(engine, conn)
	go func() {
		if err := server.Start(cfg.APIPort); err != nil {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	cancel()
	shutdown.ForcePumpOff(pump)
}

func buildHardware(cfg *config.Config) (hardware.Sensor, hardware.Pump) {
	var sensor hardware.Sensor
	var pump hardware.Pump

	if cfg.Simulation {
		log.Warn().Msg("Simulation mode: no hardware will be touched")
		sensor = hardware.NewSimulatedSensor(cfg.CalibrationPoints())
		pump = hardware.NewSimulatedPump()
	} else {
		sensor = hardware.NewIIOSensor(cfg.Sensor.Device, cfg.Sensor.Channel)
		p, err := hardware.NewGPIOPump(cfg.Pump.Chip, *cfg.Pump.Pin, cfg.Pump.ActiveHigh, cfg.SafeMode)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize pump GPIO")
		}
		pump = p
	}

	sensor = hardware.NewBreakerSensor(sensor, cfg.Sensor.BreakerFailures, cfg.BreakerOpenFor())
	return sensor, pump
}

func buildSink(cfg *config.Config, conn *sql.DB) events.Sink {
	sinks := events.MultiSink{events.NewStoreSink(conn)}

	if cfg.MQTT.Broker != "" {
		mqttSink, err := events.NewMQTTSink(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.TopicPrefix)
		if err != nil {
			log.Warn().Err(err).Msg("MQTT sink unavailable, continuing without it")
		} else {
			sinks = append(sinks, mqttSink)
		}
	}

	return sinks
}
