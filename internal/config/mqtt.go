package config

import (
	"strings"
	"time"
)

const (
	defaultMQTTClientID       = "cotas"
	defaultMQTTTopicPrefix    = "cotas/stations"
	defaultMQTTConnectTimeout = 10 * time.Second
)

// MQTT configures the optional retained status topics. An empty Broker
// disables it.
type MQTT struct {
	Broker         string        `yaml:"broker"` // tcp://host:1883
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	TopicPrefix    string        `yaml:"topic_prefix"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

func (m MQTT) Enabled() bool {
	return strings.TrimSpace(m.Broker) != ""
}

func (m MQTT) withEnv() MQTT {
	m.Broker = getEnv("MQTT_BROKER", m.Broker)
	m.Username = getEnv("MQTT_USERNAME", m.Username)
	m.Password = getEnv("MQTT_PASSWORD", m.Password)
	m.TopicPrefix = strings.TrimRight(getEnv("MQTT_TOPIC_PREFIX", m.TopicPrefix), "/")
	if m.ClientID == "" {
		m.ClientID = defaultMQTTClientID
	}
	if m.TopicPrefix == "" {
		m.TopicPrefix = defaultMQTTTopicPrefix
	}
	if m.ConnectTimeout <= 0 {
		m.ConnectTimeout = defaultMQTTConnectTimeout
	}
	return m
}
