package synckit

import "sync/atomic"

// TempIDSequence hands out temporary IDs: -1, -2, -3 and so on. IDs are
// unique for the lifetime of the sequence no matter how fast they are drawn.
type TempIDSequence struct {
	next atomic.Int64
}

// NewTempIDSequence returns a sequence starting at -1.
func NewTempIDSequence() *TempIDSequence {
	s := &TempIDSequence{}
	s.next.Store(-1)
	return s
}

// Next returns a fresh temporary ID.
func (s *TempIDSequence) Next() ID {
	return s.next.Add(-1) + 1
}

// Observe makes sure future IDs are below id. Used after rehydration so
// restored temporary IDs are never handed out again.
func (s *TempIDSequence) Observe(id ID) {
	if !IsTemp(id) {
		return
	}
	for {
		cur := s.next.Load()
		if id > cur {
			return
		}
		if s.next.CompareAndSwap(cur, id-1) {
			return
		}
	}
}
