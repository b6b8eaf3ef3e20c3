// Package notify forwards outcomes to the operator as they are produced.
package notify

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"example.com/obdgate/internal/common"
	"example.com/obdgate/internal/rules"
)

const (
	DefaultBroker   = "tcp://localhost:1883"
	DefaultClientID = "obdctl"
	DefaultTopic    = "obdgate"
)

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

func (c MQTTConfig) withDefaults() MQTTConfig {
	if c.Broker == "" {
		c.Broker = DefaultBroker
	}
	if c.ClientID == "" {
		c.ClientID = DefaultClientID
	}
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	return c
}

// Publisher sends one message. The MQTT client satisfies it through
// mqttPublisher; tests use a recorder.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

type mqttPublisher struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
}

func (p mqttPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish %s: timed out after %s", topic, p.timeout)
	}
	return token.Error()
}

// Listener publishes outcomes to <topic>/outcomes and urgent messages to
// <topic>/urgent as JSON.
type Listener struct {
	pub    Publisher
	topic  string
	client mqtt.Client

	mu       sync.Mutex
	failures int
}

func NewListener(pub Publisher, topic string) *Listener {
	return &Listener{pub: pub, topic: strings.TrimSuffix(topic, "/")}
}

// Dial connects to the broker and returns a listener publishing through it.
func Dial(cfg MQTTConfig) (*Listener, error) {
	cfg = cfg.withDefaults()
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		common.Logf("mqtt: connected to %s", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		common.Logf("mqtt: connection lost: %v", err)
	})
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	l := NewListener(mqttPublisher{client: client, qos: cfg.QoS, timeout: 5 * time.Second}, cfg.Topic)
	l.client = client
	return l, nil
}

func (l *Listener) publish(suffix string, v any) {
	b, err := json.Marshal(v)
	if err == nil {
		err = l.pub.Publish(l.topic+"/"+suffix, b)
	}
	if err != nil {
		l.mu.Lock()
		l.failures++
		l.mu.Unlock()
		common.Logf("mqtt: %s: %v", suffix, err)
	}
}

func (l *Listener) AddOutcome(o rules.Outcome) {
	l.publish("outcomes", o)
}

func (l *Listener) OnUrgentMessage(m rules.UrgentMessage) {
	l.publish("urgent", m)
}

// Failures is the number of messages that could not be published.
func (l *Listener) Failures() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures
}

func (l *Listener) Close() error {
	if l.client != nil && l.client.IsConnected() {
		l.client.Disconnect(250)
	}
	return nil
}
