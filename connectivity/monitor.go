// Package connectivity tracks whether the process is online. One Monitor is
// shared by every resource domain; it trusts the platform signal verbatim
// and never probes the network.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c0deZ3R0/go-inventory-sync/errors"
	"github.com/c0deZ3R0/go-inventory-sync/logging"
)

// Source delivers platform connectivity events: true when the platform
// reports online, false when it reports offline.
type Source interface {
	Events() <-chan bool
}

// Status is a point-in-time view of a Monitor.
type Status struct {
	Online      bool
	Since       time.Time
	Transitions int
	Subscribers int
}

type subscriber struct {
	id uint64
	fn func(online bool)
}

// Monitor holds the process-wide online flag and fans transitions out to
// subscribers.
type Monitor struct {
	// notifyMu serializes transitions so subscribers see them in order.
	notifyMu sync.Mutex

	mu          sync.RWMutex
	online      bool
	since       time.Time
	transitions int
	subscribers []subscriber
	nextID      uint64
	closed      bool

	stop chan struct{}
	done chan struct{}

	logger *logging.Logger
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithLogger sets the monitor's logger.
func WithLogger(l *logging.Logger) MonitorOption {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMonitor creates a monitor with the given initial state.
func NewMonitor(online bool, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		online: online,
		since:  time.Now(),
		stop:   make(chan struct{}),
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent("connectivity")
	return m
}

// IsOnline reports the current flag.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Status returns a snapshot of the monitor.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{
		Online:      m.online,
		Since:       m.since,
		Transitions: m.transitions,
		Subscribers: len(m.subscribers),
	}
}

// Set updates the flag. Subscribers are called synchronously, in
// subscription order, only when the value actually changes. It reports
// whether a transition happened.
func (m *Monitor) Set(online bool) bool {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	if m.closed || m.online == online {
		m.mu.Unlock()
		return false
	}
	m.online = online
	m.since = time.Now()
	m.transitions++
	subs := append([]subscriber(nil), m.subscribers...)
	m.mu.Unlock()

	m.logger.Info("connectivity changed", slog.Bool("online", online), slog.Int("subscribers", len(subs)))
	for _, s := range subs {
		m.call(s, online)
	}
	return true
}

func (m *Monitor) call(s subscriber, online bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("connectivity subscriber panicked", slog.Any("panic", r), slog.Uint64("subscriber", s.id))
		}
	}()
	s.fn(online)
}

// Subscribe registers fn for transitions and returns a function that
// removes it again.
func (m *Monitor) Subscribe(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || fn == nil {
		return func() {}
	}
	m.nextID++
	id := m.nextID
	m.subscribers = append(m.subscribers, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, s := range m.subscribers {
				if s.id == id {
					m.subscribers = append(m.subscribers[:i:i], m.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

// Start consumes events from src until ctx is done, src's channel is
// closed, or Close is called. Only one source can be attached.
func (m *Monitor) Start(ctx context.Context, src Source) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.E(errors.Op("connectivity.Start"), errors.Component("connectivity"), errors.KindClosed, "monitor is closed")
	}
	if m.done != nil {
		m.mu.Unlock()
		return errors.E(errors.Op("connectivity.Start"), errors.Component("connectivity"), errors.KindInvalid, "monitor already started")
	}
	done := make(chan struct{})
	m.done = done
	m.mu.Unlock()

	events := src.Events()
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case online, ok := <-events:
				if !ok {
					m.logger.Debug("connectivity source closed")
					return
				}
				m.Set(online)
			}
		}
	}()
	return nil
}

// Close stops the watcher started by Start and drops all subscribers.
func (m *Monitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.subscribers = nil
	done := m.done
	close(m.stop)
	m.mu.Unlock()

	if done != nil {
		<-done
	}
	return nil
}
