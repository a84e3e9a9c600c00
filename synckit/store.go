package synckit

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/c0deZ3R0/go-inventory-sync/errors"
	"github.com/c0deZ3R0/go-inventory-sync/logging"
)

// Store is the local state for one resource domain together with its queue
// of pending operations. All methods are safe for concurrent use. Every
// change is written through to the configured Persister.
type Store[T Entity[T]] struct {
	name string

	mu    sync.RWMutex
	state State[T]
	seq   *TempIDSequence

	persistMu      sync.Mutex
	persister      Persister
	persistTimeout time.Duration

	logger  *logging.Logger
	metrics MetricsCollector
}

// snapshot is the persisted form of a Store.
type snapshot[T any] struct {
	Items             []T                `json:"items"`
	PendingOperations []PendingOperation `json:"pendingOperations"`
	Unrecoverable     []PendingOperation `json:"unrecoverable,omitempty"`
	LastFetched       time.Time          `json:"lastFetched"`
}

// NewStore creates an empty store for the named domain.
func NewStore[T Entity[T]](name string, opts ...Option) *Store[T] {
	o := applyOptions(opts)
	return &Store[T]{
		name:           name,
		state:          State[T]{IsOnline: o.online},
		seq:            NewTempIDSequence(),
		persister:      o.persister,
		persistTimeout: o.persistTimeout,
		logger:         o.logger.WithComponent("synckit").WithDomain(name),
		metrics:        o.metrics,
	}
}

// Name returns the domain name the store was created with.
func (s *Store[T]) Name() string { return s.name }

// StorageKey is the key the store persists its snapshot under.
func (s *Store[T]) StorageKey() string { return "stores/" + s.name }

// Snapshot returns a copy of the current state.
func (s *Store[T]) Snapshot() State[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	st.Items = append([]T(nil), s.state.Items...)
	st.PendingOperations = cloneOps(s.state.PendingOperations)
	st.Unrecoverable = cloneOps(s.state.Unrecoverable)
	return st
}

// Items returns a copy of the current items.
func (s *Store[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]T(nil), s.state.Items...)
}

// Get looks an item up by ID.
func (s *Store[T]) Get(id ID) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.state.Items[i], true
	}
	var zero T
	return zero, false
}

// IsOnline reports the store's copy of the connectivity flag.
func (s *Store[T]) IsOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsOnline
}

// SetOnline updates the connectivity flag and returns the previous value.
func (s *Store[T]) SetOnline(online bool) bool {
	s.mu.Lock()
	prev := s.state.IsOnline
	s.state.IsOnline = online
	s.mu.Unlock()
	if prev != online {
		s.logger.Debug("connectivity changed", slog.Bool("online", online))
	}
	return prev
}

// Err returns the message and kind of the last surfaced error.
func (s *Store[T]) Err() (string, errors.Kind) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Error, s.state.ErrorKind
}

// SetError surfaces err on the store. A nil error clears it.
func (s *Store[T]) SetError(err error) {
	s.mu.Lock()
	if err == nil {
		s.state.Error = ""
		s.state.ErrorKind = ""
	} else {
		s.state.Error = err.Error()
		s.state.ErrorKind = errors.KindOf(err)
	}
	s.mu.Unlock()
}

// ClearError removes any surfaced error.
func (s *Store[T]) ClearError() { s.SetError(nil) }

func (s *Store[T]) setLoading(loading bool) {
	s.mu.Lock()
	s.state.IsLoading = loading
	s.mu.Unlock()
}

// Rehydrate restores items and queues from the persister. A missing
// snapshot is not an error.
func (s *Store[T]) Rehydrate(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	data, err := s.persister.Load(ctx, s.StorageKey())
	if stderrors.Is(err, errors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.E(errors.OpLoad, errors.Component("synckit"), err)
	}

	var snap snapshot[T]
	if err := json.Unmarshal(data, &snap); err != nil {
		return errors.E(errors.OpLoad, errors.Component("synckit"), errors.KindInternal, err, "decode snapshot")
	}

	s.mu.Lock()
	s.state.Items = snap.Items
	s.state.PendingOperations = snap.PendingOperations
	s.state.Unrecoverable = snap.Unrecoverable
	s.state.LastFetched = snap.LastFetched
	for _, item := range snap.Items {
		s.seq.Observe(item.Key())
	}
	for _, op := range snap.PendingOperations {
		if op.TempID != nil {
			s.seq.Observe(*op.TempID)
		}
	}
	depth := len(s.state.PendingOperations)
	s.mu.Unlock()

	s.metrics.RecordQueueDepth(s.name, depth)
	s.logger.Info("store rehydrated",
		slog.Int("items", len(snap.Items)),
		slog.Int("pending", depth),
		slog.Int("unrecoverable", len(snap.Unrecoverable)))
	return nil
}

// persist writes the current state through to the persister. Failures are
// logged, never returned: local state stays authoritative.
func (s *Store[T]) persist() {
	if s.persister == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	data, err := json.Marshal(snapshot[T]{
		Items:             s.state.Items,
		PendingOperations: s.state.PendingOperations,
		Unrecoverable:     s.state.Unrecoverable,
		LastFetched:       s.state.LastFetched,
	})
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()
	if err != nil {
		s.logger.LogError(ctx, err, "failed to encode store snapshot")
		return
	}
	if err := s.persister.Save(ctx, s.StorageKey(), data); err != nil {
		s.logger.LogError(ctx, err, "failed to persist store snapshot")
	}
}

// indexOf must be called with s.mu held.
func (s *Store[T]) indexOf(id ID) int {
	for i, item := range s.state.Items {
		if item.Key() == id {
			return i
		}
	}
	return -1
}
