package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/plant-waterer/internal/model"
)

const publishTimeout = 5 * time.Second

// MQTTSink publishes events as JSON to <prefix>/<kind>. Publishes are QoS 0
// and confirmed asynchronously so a dead broker cannot block the engine.
type MQTTSink struct {
	client      mqtt.Client
	topicPrefix string
}

func NewMQTTSink(broker, clientID, topicPrefix string) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)

	connect := func() error {
		token := client.Connect()
		token.Wait()
		return token.Error()
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(connect, bo); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", broker, err)
	}

	log.Info().Str("broker", broker).Str("prefix", topicPrefix).Msg("MQTT event sink connected")
	return &MQTTSink{client: client, topicPrefix: topicPrefix}, nil
}

func (s *MQTTSink) Record(ev model.AutomationEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event for mqtt")
		return
	}

	topic := s.topicPrefix + "/" + string(ev.Kind)
	token := s.client.Publish(topic, 0, false, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			log.Warn().Str("topic", topic).Msg("MQTT publish timed out")
			return
		}
		if err := token.Error(); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

func (s *MQTTSink) Close() {
	s.client.Disconnect(250)
}
