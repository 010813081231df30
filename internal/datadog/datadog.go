package datadog

import (
	"github.com/DataDog/datadog-go/statsd"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/plant-waterer/internal/config"
)

var dogstatsd *statsd.Client

func InitMetrics(cfg *config.Config) {
	if !cfg.Datadog.Enable {
		return
	}

	var err error
	dogstatsd, err = statsd.New(cfg.Datadog.AgentAddr)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create DogStatsD client")
		return
	}

	dogstatsd.Namespace = cfg.Datadog.Namespace
	dogstatsd.Tags = cfg.Datadog.Tags

	log.Info().
		Str("addr", cfg.Datadog.AgentAddr).
		Str("namespace", cfg.Datadog.Namespace).
		Strs("tags", cfg.Datadog.Tags).
		Msg("Datadog metrics initialized")
}

func Gauge(name string, value float64, tags ...string) {
	if dogstatsd != nil {
		if err := dogstatsd.Gauge(name, value, tags, 1); err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to emit gauge metric")
		}
	}
}

func Count(name string, value int64, tags ...string) {
	if dogstatsd != nil {
		if err := dogstatsd.Count(name, value, tags, 1); err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to emit count metric")
		}
	}
}
