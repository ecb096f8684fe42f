package transport

import "sync"

// FakePublisher records published messages for test assertions. It is
// also used in place of the real publisher when no broker is
// configured.
type FakePublisher struct {
	mu sync.Mutex

	// Messages contains all sensor value changes that were published.
	Messages []Message

	// PublishError, if set, will be returned by SetSensorValue.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePublisher creates a FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// SetSensorValue records the value change.
func (f *FakePublisher) SetSensorValue(sensor, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}
	f.Messages = append(f.Messages, Message{Sensor: sensor, Value: value})
	return nil
}

// Sent returns a copy of the recorded messages.
func (f *FakePublisher) Sent() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Message, len(f.Messages))
	copy(out, f.Messages)
	return out
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Closed = true
	return nil
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Messages = nil
	f.Closed = false
	f.PublishError = nil
}
