package store

// scheduleLocked cancels the pending debounce timer, if any, and starts a
// new one for the quiet window. Latched stores never arm timers.
func (s *Store[T]) scheduleLocked() {
	if s.latched {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}

	s.timerSeq++
	seq := s.timerSeq
	s.timer = s.clock.AfterFunc(s.window, func() {
		s.expire(seq)
	})
}

// cancelTimerLocked stops the pending timer. Bumping the sequence also
// disarms a callback that already started but has not taken the lock yet.
func (s *Store[T]) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerSeq++
}

// expire runs when a debounce timer fires. Only the most recently armed
// timer may request a flush.
func (s *Store[T]) expire(seq uint64) {
	s.mu.Lock()
	if seq != s.timerSeq || s.latched {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	s.request()
}

// request hands a flush request to the worker without blocking. If a
// request is already waiting, the two coalesce.
func (s *Store[T]) request() {
	select {
	case s.requests <- struct{}{}:
	default:
	}
}
