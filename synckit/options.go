package synckit

import (
	"time"

	"github.com/google/uuid"

	"github.com/c0deZ3R0/go-inventory-sync/logging"
)

const (
	// DefaultCallTimeout bounds a single remote call made by the engine.
	DefaultCallTimeout = 30 * time.Second
	// DefaultPersistTimeout bounds a single snapshot write.
	DefaultPersistTimeout = 5 * time.Second
)

// Option configures a Store or an Engine. Options that do not apply to the
// value being built are ignored.
type Option func(*options)

type options struct {
	logger         *logging.Logger
	metrics        MetricsCollector
	persister      Persister
	online         bool
	callTimeout    time.Duration
	persistTimeout time.Duration
	now            func() time.Time
	newID          func() string
}

func defaultOptions() *options {
	return &options{
		metrics:        &NoOpMetricsCollector{},
		callTimeout:    DefaultCallTimeout,
		persistTimeout: DefaultPersistTimeout,
		now:            time.Now,
		newID:          uuid.NewString,
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}
	return o
}

// WithLogger sets the logger used by a store or engine.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithPersister enables write-through persistence for a store.
func WithPersister(p Persister) Option {
	return func(o *options) { o.persister = p }
}

// WithInitialOnline sets the store's connectivity flag at construction.
func WithInitialOnline(online bool) Option {
	return func(o *options) { o.online = online }
}

// WithCallTimeout bounds every remote call made by the engine. Zero disables
// the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) { o.callTimeout = d }
}

// WithPersistTimeout bounds every snapshot write.
func WithPersistTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.persistTimeout = d
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithOperationIDs replaces the generator for PendingOperation IDs.
func WithOperationIDs(gen func() string) Option {
	return func(o *options) {
		if gen != nil {
			o.newID = gen
		}
	}
}

// LoggerOf returns the logger opts resolve to. Hosts that build several
// stores from one option list use it to log alongside them.
func LoggerOf(opts ...Option) *logging.Logger {
	return applyOptions(opts).logger
}
