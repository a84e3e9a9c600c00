package synckit

// The optimistic mutator. Each method changes Items immediately and hands
// back what is needed to undo the change if the remote side refuses it.

// insertTemp appends item under a fresh temporary ID.
func (s *Store[T]) insertTemp(item T) (T, ID) {
	s.mu.Lock()
	id := s.seq.Next()
	item = item.WithKey(id)
	s.state.Items = append(s.state.Items, item)
	s.mu.Unlock()

	s.persist()
	return item, id
}

// patch applies fn to every present target and returns the previous values
// of the ones it changed. Absent targets are skipped.
func (s *Store[T]) patch(ids []ID, fn func(T) T) (prev []T, patched []ID) {
	s.mu.Lock()
	for _, id := range ids {
		i := s.indexOf(id)
		if i < 0 {
			continue
		}
		prev = append(prev, s.state.Items[i])
		patched = append(patched, id)
		s.state.Items[i] = fn(s.state.Items[i]).WithKey(id)
	}
	s.mu.Unlock()

	if len(patched) > 0 {
		s.persist()
	}
	return prev, patched
}

// remove deletes the item with id and reports where it was.
func (s *Store[T]) remove(id ID) (removed T, index int, ok bool) {
	s.mu.Lock()
	index = s.indexOf(id)
	if index < 0 {
		s.mu.Unlock()
		return removed, -1, false
	}
	removed = s.state.Items[index]
	s.state.Items = removeAt(s.state.Items, index)
	s.mu.Unlock()

	s.persist()
	return removed, index, true
}

// restore puts previous values back for items that still exist.
func (s *Store[T]) restore(prev []T) {
	s.mu.Lock()
	for _, p := range prev {
		if i := s.indexOf(p.Key()); i >= 0 {
			s.state.Items[i] = p
		}
	}
	s.mu.Unlock()

	s.persist()
}

// reinsert puts a deleted item back at its old position, clamped to the
// current length.
func (s *Store[T]) reinsert(item T, index int) {
	s.mu.Lock()
	if s.indexOf(item.Key()) >= 0 {
		s.mu.Unlock()
		return
	}
	if index < 0 || index > len(s.state.Items) {
		index = len(s.state.Items)
	}
	items := make([]T, 0, len(s.state.Items)+1)
	items = append(items, s.state.Items[:index]...)
	items = append(items, item)
	s.state.Items = append(items, s.state.Items[index:]...)
	s.mu.Unlock()

	s.persist()
}

// drop removes an item without remembering it. Used to roll back a create.
func (s *Store[T]) drop(id ID) bool {
	_, _, ok := s.remove(id)
	return ok
}
