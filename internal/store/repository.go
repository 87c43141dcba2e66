package store

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/dstore/internal/record"
)

// Create appends a copy of rec. It fails with DUPLICATE_KEY when rec's
// identifier is already in use, leaving the store untouched.
func (s *Store[T]) Create(rec T) error {
	rec = record.Copy(rec)
	if err := s.validate(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latched {
		return s.errClosed()
	}

	id := rec.RecordID()
	if _, ok := s.index[id]; ok {
		return s.errDuplicate(id)
	}

	s.records = append(s.records, rec)
	s.index[id] = len(s.records) - 1
	s.markDirtyLocked()
	return nil
}

// ReadAll returns copies of every record in insertion order.
func (s *Store[T]) ReadAll() []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]T, len(s.records))
	for i, rec := range s.records {
		out[i] = record.Copy(rec)
	}
	return out
}

// ReadWhere returns copies of the records matching pred, in insertion
// order. pred sees the stored records and must not modify them.
func (s *Store[T]) ReadWhere(pred func(T) bool) []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]T, 0)
	for _, rec := range s.records {
		if pred(rec) {
			out = append(out, record.Copy(rec))
		}
	}
	return out
}

// Get returns the record with the given identifier.
func (s *Store[T]) Get(id int64) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return record.Copy(s.records[pos]), true
}

// Len returns the number of records.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Update merges patch into the record with the given identifier. It fails
// with NOT_FOUND when no such record exists and with IDENTIFIER_IMMUTABLE
// when the patch would change the identifier.
func (s *Store[T]) Update(id int64, patch record.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latched {
		return s.errClosed()
	}

	pos, ok := s.index[id]
	if !ok {
		return s.errNotFound(id)
	}

	merged, err := s.merge(s.records[pos], patch)
	if err != nil {
		return err
	}

	s.records[pos] = merged
	s.markDirtyLocked()
	return nil
}

// UpdateWhere merges patch into every record matching pred and returns how
// many were updated. Either every match is updated or, on error, none is.
func (s *Store[T]) UpdateWhere(pred func(T) bool, patch record.Patch) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latched {
		return 0, s.errClosed()
	}

	var (
		positions []int
		merged    []T
	)
	for i, rec := range s.records {
		if !pred(rec) {
			continue
		}
		m, err := s.merge(rec, patch)
		if err != nil {
			return 0, err
		}
		positions = append(positions, i)
		merged = append(merged, m)
	}
	if len(positions) == 0 {
		return 0, nil
	}

	for k, pos := range positions {
		s.records[pos] = merged[k]
	}
	s.markDirtyLocked()
	return len(positions), nil
}

// Delete removes the record with the given identifier. Deleting an absent
// identifier is a no-op.
func (s *Store[T]) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latched {
		return s.errClosed()
	}

	pos, ok := s.index[id]
	if !ok {
		return nil
	}

	s.records = slices.Delete(s.records, pos, pos+1)
	delete(s.index, id)
	for i := pos; i < len(s.records); i++ {
		s.index[s.records[i].RecordID()] = i
	}
	s.markDirtyLocked()
	return nil
}

// DeleteWhere removes every record matching pred and returns how many were
// removed.
func (s *Store[T]) DeleteWhere(pred func(T) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latched {
		return 0, s.errClosed()
	}

	kept := make([]T, 0, len(s.records))
	for _, rec := range s.records {
		if !pred(rec) {
			kept = append(kept, rec)
		}
	}
	removed := len(s.records) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	s.records = kept
	if err := s.rebuildIndexLocked(); err != nil {
		// Unreachable: a subset of a duplicate-free sequence.
		return removed, err
	}
	s.markDirtyLocked()
	return removed, nil
}

// markDirtyLocked records a mutation and rearms the debounce timer.
func (s *Store[T]) markDirtyLocked() {
	s.dirty = true
	s.gen++
	s.scheduleLocked()
}

// merge applies patch to rec and validates the result.
func (s *Store[T]) merge(rec T, patch record.Patch) (T, error) {
	id := rec.RecordID()
	merged, err := record.Merge(rec, patch)
	if errors.Is(err, record.ErrIdentifierChanged) {
		var zero T
		return zero, &Error{
			Code:    CodeIdentifierImmutable,
			Store:   s.name,
			ID:      id,
			Message: fmt.Sprintf("patch would change the identifier of key %d", id),
		}
	}
	if err != nil {
		var zero T
		return zero, &Error{Code: CodeInvalidRecord, Store: s.name, ID: id, Message: "cannot merge patch", Err: err}
	}
	if err := s.validate(merged); err != nil {
		var zero T
		return zero, err
	}
	return merged, nil
}

// validate runs the record's own check and the configured validator.
func (s *Store[T]) validate(rec T) error {
	if v, ok := any(rec).(record.Validator); ok {
		if err := v.Validate(); err != nil {
			return &Error{Code: CodeInvalidRecord, Store: s.name, ID: rec.RecordID(), Message: "record rejected", Err: err}
		}
	}
	if s.check != nil {
		if err := s.check(rec); err != nil {
			return &Error{Code: CodeInvalidRecord, Store: s.name, ID: rec.RecordID(), Message: "record rejected", Err: err}
		}
	}
	return nil
}
