package synckit

import "log/slog"

// Enqueue appends op to the queue. Operations are never deduplicated or
// merged.
func (s *Store[T]) Enqueue(op PendingOperation) {
	s.mu.Lock()
	s.state.PendingOperations = append(s.state.PendingOperations, op.clone())
	depth := len(s.state.PendingOperations)
	s.mu.Unlock()

	s.metrics.RecordQueueDepth(s.name, depth)
	s.logger.Debug("operation queued", slog.Any("pending_operation", op), slog.Int("depth", depth))
	s.persist()
}

// Dequeue removes the operation at index and returns it.
func (s *Store[T]) Dequeue(index int) (PendingOperation, bool) {
	s.mu.Lock()
	if index < 0 || index >= len(s.state.PendingOperations) {
		s.mu.Unlock()
		return PendingOperation{}, false
	}
	op := s.state.PendingOperations[index]
	s.state.PendingOperations = removeAt(s.state.PendingOperations, index)
	depth := len(s.state.PendingOperations)
	s.mu.Unlock()

	s.metrics.RecordQueueDepth(s.name, depth)
	s.persist()
	return op, true
}

// Remove removes the operation with the given ID. The drain removes by
// identity so operations enqueued during a pass can never shift the wrong
// entry out.
func (s *Store[T]) Remove(opID string) bool {
	s.mu.Lock()
	i := s.pendingIndex(opID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.state.PendingOperations = removeAt(s.state.PendingOperations, i)
	depth := len(s.state.PendingOperations)
	s.mu.Unlock()

	s.metrics.RecordQueueDepth(s.name, depth)
	s.persist()
	return true
}

// Pending returns a copy of the queue in enqueue order.
func (s *Store[T]) Pending() []PendingOperation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneOps(s.state.PendingOperations)
}

// PendingCount returns the queue length.
func (s *Store[T]) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.PendingOperations)
}

// Unrecoverable returns the operations the engine could not route.
func (s *Store[T]) Unrecoverable() []PendingOperation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneOps(s.state.Unrecoverable)
}

// DismissUnrecoverable forgets an unrecoverable operation.
func (s *Store[T]) DismissUnrecoverable(opID string) bool {
	s.mu.Lock()
	i := -1
	for j, op := range s.state.Unrecoverable {
		if op.ID == opID {
			i = j
			break
		}
	}
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.state.Unrecoverable = removeAt(s.state.Unrecoverable, i)
	s.mu.Unlock()

	s.persist()
	return true
}

func (s *Store[T]) pending(opID string) (PendingOperation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.pendingIndex(opID); i >= 0 {
		return s.state.PendingOperations[i].clone(), true
	}
	return PendingOperation{}, false
}

// markUnrecoverable moves a queued operation into the unrecoverable bucket.
func (s *Store[T]) markUnrecoverable(opID string) bool {
	s.mu.Lock()
	i := s.pendingIndex(opID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	op := s.state.PendingOperations[i]
	s.state.PendingOperations = removeAt(s.state.PendingOperations, i)
	s.state.Unrecoverable = append(s.state.Unrecoverable, op)
	depth := len(s.state.PendingOperations)
	s.mu.Unlock()

	s.metrics.RecordQueueDepth(s.name, depth)
	s.persist()
	return true
}

// awaitingCreate reports whether any of targets is a temp ID whose create is
// still queued or was moved out as unrecoverable.
func (s *Store[T]) awaitingCreate(targets []ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range targets {
		if !IsTemp(id) {
			continue
		}
		for _, ops := range [][]PendingOperation{s.state.PendingOperations, s.state.Unrecoverable} {
			for _, op := range ops {
				if op.Type == OpCreate && op.TempID != nil && *op.TempID == id {
					return true
				}
			}
		}
	}
	return false
}

func (s *Store[T]) pendingIndex(opID string) int {
	for i, op := range s.state.PendingOperations {
		if op.ID == opID {
			return i
		}
	}
	return -1
}

func removeAt[E any](s []E, i int) []E {
	out := make([]E, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}
