package synckit

import (
	"log/slog"
	"time"
)

// promote swaps the temporary item for the server's copy and rewrites every
// queued operation that still refers to the temporary ID. When later queued
// patches target the item its local value is kept under the new ID, since
// those patches are not on the server yet. A temporary item that was deleted
// locally in the meantime is not brought back. It reports whether the
// temporary item was still present.
func (s *Store[T]) promote(tempID ID, server T, endpoint func(PendingOperation) string) bool {
	realID := server.Key()

	s.mu.Lock()
	present := false
	if i := s.indexOf(tempID); i >= 0 {
		present = true
		switch {
		case s.indexOf(realID) >= 0:
			// A refresh already brought the confirmed item in.
			s.state.Items = removeAt(s.state.Items, i)
		case s.patchPending(tempID):
			s.state.Items[i] = s.state.Items[i].WithKey(realID)
		default:
			s.state.Items[i] = server
		}
	}

	rewritten := 0
	for i := range s.state.PendingOperations {
		op := &s.state.PendingOperations[i]
		changed := false
		for j, t := range op.Targets {
			if t == tempID {
				op.Targets[j] = realID
				changed = true
			}
		}
		if changed {
			if endpoint != nil {
				op.Endpoint = endpoint(*op)
			}
			rewritten++
		}
	}
	s.mu.Unlock()

	s.logger.Debug("temporary id promoted",
		slog.Int64("temp_id", tempID),
		slog.Int64("id", realID),
		slog.Bool("present", present),
		slog.Int("rewritten", rewritten))
	s.persist()
	return present
}

// patchPending must be called with s.mu held.
func (s *Store[T]) patchPending(id ID) bool {
	for _, op := range s.state.PendingOperations {
		if op.Type == OpCreate || op.Type == OpDelete {
			continue
		}
		for _, t := range op.Targets {
			if t == id {
				return true
			}
		}
	}
	return false
}

// mergeFetched replaces Items with a server listing while keeping what the
// queue still has to send: pending deletes stay hidden, locally patched
// items keep their local value and temporary items are kept at the end.
func (s *Store[T]) mergeFetched(server []T, fetchedAt time.Time) {
	s.mu.Lock()
	deleted := make(map[ID]bool)
	patched := make(map[ID]bool)
	for _, op := range s.state.PendingOperations {
		switch op.Type {
		case OpCreate:
		case OpDelete:
			for _, t := range op.Targets {
				deleted[t] = true
			}
		default:
			for _, t := range op.Targets {
				patched[t] = true
			}
		}
	}

	local := make(map[ID]T, len(s.state.Items))
	for _, item := range s.state.Items {
		local[item.Key()] = item
	}

	merged := make([]T, 0, len(server))
	for _, item := range server {
		k := item.Key()
		if deleted[k] {
			continue
		}
		if l, ok := local[k]; ok && patched[k] {
			merged = append(merged, l)
			continue
		}
		merged = append(merged, item)
	}
	for _, item := range s.state.Items {
		if IsTemp(item.Key()) {
			merged = append(merged, item)
		}
	}

	s.state.Items = merged
	s.state.LastFetched = fetchedAt
	s.state.IsLoading = false
	s.state.Error = ""
	s.state.ErrorKind = ""
	s.mu.Unlock()

	s.persist()
}
