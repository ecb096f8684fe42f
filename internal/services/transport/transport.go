// Package transport pushes sensor value changes to field devices over
// MQTT.
package transport

// Publisher pushes a new value at a sensor's control topic.
type Publisher interface {
	SetSensorValue(sensor, value string) error
	Close() error
}

// Message is a recorded publish, used by the fake publisher and api
// responses.
type Message struct {
	Sensor string
	Value  string
}
