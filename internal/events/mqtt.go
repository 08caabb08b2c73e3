package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"cotas/internal/config"
)

const publishTimeout = 5 * time.Second

// tokenPublisher is the part of the paho client the publisher needs
type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher keeps the last result of every station as a retained message
// on <prefix>/<code>/status.
type MQTTPublisher struct {
	client tokenPublisher
	prefix string
	closer func()
}

// NewMQTTPublisher connects to the broker, waiting at most cfg.ConnectTimeout
func NewMQTTPublisher(cfg config.MQTT) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetConnectTimeout(cfg.ConnectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s: timed out after %s", cfg.Broker, cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}

	return &MQTTPublisher{
		client: client,
		prefix: cfg.TopicPrefix,
		closer: func() { client.Disconnect(250) },
	}, nil
}

func (p *MQTTPublisher) Topic(code string) string {
	return fmt.Sprintf("%s/%s/status", p.prefix, code)
}

// Publish sends the event with QoS 1 and waits for the broker acknowledgement
func (p *MQTTPublisher) Publish(ctx context.Context, event StationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event for %s: %w", event.Code, err)
	}

	topic := p.Topic(event.Code)
	token := p.client.Publish(topic, 1, true, data)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish event for %s to %s: %w", event.Code, topic, err)
	}
	return nil
}

func (p *MQTTPublisher) Close() error {
	if p.closer != nil {
		p.closer()
	}
	return nil
}
