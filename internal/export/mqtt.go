// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package export

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/Thermoquad/smcstat/internal/config"
)

const (
	mqttConnectTimeout    = 10 * time.Second
	mqttPublishTimeout    = 5 * time.Second
	mqttDisconnectQuiesce = 250 // milliseconds
	mqttKeepAlive         = 60 * time.Second
)

// publisher is the part of pahomqtt.Client the sink uses
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// mqttDocument is the JSON body of one published point
type mqttDocument struct {
	Measurement string             `json:"measurement"`
	Tags        map[string]string  `json:"tags,omitempty"`
	Fields      map[string]float64 `json:"fields"`
	Timestamp   string             `json:"timestamp"`
}

// MQTTSink publishes one JSON document per point to
// <prefix>/<host>/<measurement>[/<tag value>...].
type MQTTSink struct {
	client   publisher
	prefix   string
	hostname string
	qos      byte
	retained bool
	now      func() time.Time
}

// DefaultClientID returns a unique client id for this process
func DefaultClientID() string {
	return "smcstat-" + uuid.NewString()[:8]
}

func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultClientID()
	}
	opts.SetClientID(clientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetKeepAlive(mqttKeepAlive)

	return opts
}

// NewMQTTSink connects to the broker in cfg
func NewMQTTSink(cfg config.MQTTConfig, hostname string) (*MQTTSink, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := pahomqtt.NewClient(buildClientOptions(cfg))
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, mqttConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return newMQTTSink(client, cfg, hostname), nil
}

func newMQTTSink(client publisher, cfg config.MQTTConfig, hostname string) *MQTTSink {
	return &MQTTSink{
		client:   client,
		prefix:   strings.Trim(cfg.TopicPrefix, "/"),
		hostname: hostname,
		qos:      byte(cfg.QoS),
		retained: cfg.Retained,
		now:      time.Now,
	}
}

// Topic returns the topic a point is published to. The host tag is part
// of the base topic; other tag values follow in key order.
func (s *MQTTSink) Topic(p Point) string {
	parts := []string{s.prefix, s.hostname, p.Measurement}
	for _, k := range slices.Sorted(maps.Keys(p.Tags)) {
		if k == "host" || k == "name" {
			continue
		}
		parts = append(parts, p.Tags[k])
	}
	if s.prefix == "" {
		parts = parts[1:]
	}
	return strings.Join(parts, "/")
}

// Write publishes every point and waits for each publish to complete
func (s *MQTTSink) Write(ctx context.Context, samples []Sample) error {
	ts := s.now().UTC().Format(time.RFC3339)
	for _, p := range Group(samples) {
		if err := ctx.Err(); err != nil {
			return err
		}

		body, err := json.Marshal(mqttDocument{
			Measurement: p.Measurement,
			Tags:        p.Tags,
			Fields:      p.Fields,
			Timestamp:   ts,
		})
		if err != nil {
			return fmt.Errorf("mqtt encode: %w", err)
		}

		topic := s.Topic(p)
		token := s.client.Publish(topic, s.qos, s.retained, body)
		if !token.WaitTimeout(mqttPublishTimeout) {
			return fmt.Errorf("mqtt publish %s: timeout after %v", topic, mqttPublishTimeout)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt publish %s: %w", topic, err)
		}
	}
	return nil
}

// Close disconnects from the broker
func (s *MQTTSink) Close() error {
	s.client.Disconnect(mqttDisconnectQuiesce)
	return nil
}
