package transport

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client      paho.Client
	topicPrefix string
}

// NewRealPublisher creates a publisher connected to the given broker.
// topicPrefix is the gateway's publish topic; each sensor gets a
// subtopic under it.
func NewRealPublisher(broker, clientID, topicPrefix string) (*RealPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &RealPublisher{
		client:      client,
		topicPrefix: topicPrefix,
	}, nil
}

// SetSensorValue publishes a value change on the sensor's control topic.
func (p *RealPublisher) SetSensorValue(sensor, value string) error {
	topic := p.topicPrefix + "/" + sensor

	// QoS 1 (at-least-once): a lost relay command means a cold house
	token := p.client.Publish(topic, 1, false, value)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
