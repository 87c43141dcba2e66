package store

import (
	"context"
	"time"
)

// run is the flush worker. It is the only goroutine that performs
// asynchronous writes, which is what keeps at most one of them in flight.
func (s *Store[T]) run() {
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			return

		case <-s.requests:
			_ = s.flush("debounce")

		case reply := <-s.forced:
			reply <- s.flush("forced")

		case ack := <-s.barriers:
			// A request may be sitting in the slot; honor it before the
			// barrier so Sync observes every flush requested before it.
			select {
			case <-s.requests:
				_ = s.flush("debounce")
			default:
			}
			close(ack)
		}
	}
}

// Flush writes unsaved changes now, bypassing the debounce window, and
// returns the write error. A clean store is not rewritten.
func (s *Store[T]) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.latched {
		s.mu.Unlock()
		return s.errClosed()
	}
	s.cancelTimerLocked()
	s.mu.Unlock()

	reply := make(chan error, 1)
	select {
	case s.forced <- reply:
	case <-s.done:
		return s.errClosed()
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync waits until every flush requested before the call has finished.
func (s *Store[T]) Sync(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case s.barriers <- ack:
	case <-s.done:
		return s.errClosed()
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// flush writes one snapshot. Called only from the worker.
func (s *Store[T]) flush(trigger string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.latched || !s.dirty {
		s.mu.Unlock()
		return nil
	}
	data, err := s.encodeLocked()
	if err != nil {
		perr := s.failLocked(err)
		s.mu.Unlock()
		s.report(perr, trigger)
		return perr
	}
	gen := s.gen
	records := len(s.records)
	s.persisting = true
	s.mu.Unlock()

	start := time.Now()
	err = s.write(s.path, data)

	s.mu.Lock()
	s.persisting = false
	if err != nil {
		perr := s.failLocked(err)
		s.mu.Unlock()
		s.report(perr, trigger)
		return perr
	}
	if s.gen == gen {
		s.dirty = false
	}
	s.counters.flushes++
	s.counters.consecutive = 0
	s.counters.lastErr = nil
	s.counters.lastFlush = s.clock.Now()
	s.mu.Unlock()

	s.logger.Debug("store flushed",
		"store", s.name,
		"trigger", trigger,
		"records", records,
		"bytes", len(data),
		"duration", time.Since(start),
	)
	return nil
}

// failLocked records a failed write and arms a retry one quiet window out.
// The store stays dirty.
func (s *Store[T]) failLocked(err error) *PersistError {
	perr := &PersistError{Store: s.name, Path: s.path, Err: err}
	s.counters.failures++
	s.counters.consecutive++
	s.counters.lastErr = perr
	s.scheduleLocked()
	return perr
}

func (s *Store[T]) report(perr *PersistError, trigger string) {
	s.logger.Error("store flush failed",
		"store", s.name,
		"trigger", trigger,
		"path", s.path,
		"error", perr.Err,
	)
	if s.notify != nil {
		s.notify(perr)
	}
}
