package store

// EmergencyFlush is the termination path. The first call on a dirty store
// latches it, cancels the debounce timer and writes the full sequence
// synchronously, returning the write error. Calls on a latched or clean
// store do nothing.
//
// If an asynchronous write is in flight, EmergencyFlush waits for it and
// then writes, so the latest state always lands last.
func (s *Store[T]) EmergencyFlush(reason string) error {
	s.mu.Lock()
	if s.latched || !s.dirty {
		s.mu.Unlock()
		return nil
	}
	s.latched = true
	s.cancelTimerLocked()
	s.mu.Unlock()

	s.logger.Warn("emergency flush", "store", s.name, "reason", reason, "path", s.path)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	data, err := s.encodeLocked()
	s.persisting = err == nil
	s.mu.Unlock()

	if err == nil {
		err = s.write(s.path, data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.persisting = false

	if err != nil {
		perr := &PersistError{Store: s.name, Path: s.path, Err: err}
		s.counters.failures++
		s.counters.consecutive++
		s.counters.lastErr = perr
		s.logger.Error("emergency flush failed", "store", s.name, "reason", reason, "error", err)
		return perr
	}

	s.dirty = false
	s.counters.flushes++
	s.counters.consecutive = 0
	s.counters.lastErr = nil
	s.counters.lastFlush = s.clock.Now()
	s.counters.emergency = true
	return nil
}
