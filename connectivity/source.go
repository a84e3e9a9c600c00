package connectivity

import "sync"

// DefaultEventBuffer is the channel capacity NewEventSource uses when given
// a non-positive size.
const DefaultEventBuffer = 16

// EventSource is a Source fed by the host: call Online and Offline from the
// platform's connectivity callbacks.
type EventSource struct {
	ch   chan bool
	done chan struct{}
	once sync.Once
}

// NewEventSource creates a source with the given buffer size.
func NewEventSource(buffer int) *EventSource {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &EventSource{
		ch:   make(chan bool, buffer),
		done: make(chan struct{}),
	}
}

// Events implements Source.
func (s *EventSource) Events() <-chan bool { return s.ch }

// Online reports that the platform is online.
func (s *EventSource) Online() { s.publish(true) }

// Offline reports that the platform is offline.
func (s *EventSource) Offline() { s.publish(false) }

// publish blocks while the buffer is full, until the event is taken or the
// source is closed.
func (s *EventSource) publish(online bool) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.ch <- online:
	case <-s.done:
	}
}

// Close stops accepting events. Events already buffered may still be read.
func (s *EventSource) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
