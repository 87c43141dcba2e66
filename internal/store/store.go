package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/roach88/dstore/internal/clock"
	"github.com/roach88/dstore/internal/record"
)

// State is the persistence state of a store.
type State int

const (
	// StateClean means the file matches memory.
	StateClean State = iota
	// StateDirtyPending means unflushed changes wait for the debounce timer.
	StateDirtyPending
	// StateFlushing means an asynchronous write is in flight.
	StateFlushing
	// StateEmergencyDone means the store is latched; it is terminal.
	StateEmergencyDone
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirtyPending:
		return "dirty-pending"
	case StateFlushing:
		return "flushing"
	case StateEmergencyDone:
		return "emergency-done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stats is a point-in-time view of a store.
type Stats struct {
	Name                string
	Path                string
	Records             int
	State               State
	Dirty               bool
	TimerPending        bool
	Flushes             int
	FailedFlushes       int
	ConsecutiveFailures int
	LastFlush           time.Time
	LastError           error
	EmergencyFlushed    bool
}

// Store is an in-memory, file-mirrored collection of records of type T.
type Store[T record.Record] struct {
	name   string
	path   string
	window time.Duration
	clock  clock.Clock
	logger *slog.Logger
	write  FileWriter
	check  func(any) error
	notify func(error)

	mu         sync.Mutex
	records    []T
	index      map[int64]int // id -> position in records
	dirty      bool
	persisting bool
	latched    bool
	gen        uint64 // bumped by every mutation
	timer      clock.Timer
	timerSeq   uint64
	counters   counters

	// writeMu serializes file writes between the worker and EmergencyFlush.
	writeMu sync.Mutex

	requests chan struct{}
	forced   chan chan error
	barriers chan chan struct{}
	stop     chan struct{}
	done     chan struct{}

	closeOnce sync.Once
	closeErr  error
}

type counters struct {
	flushes     int
	failures    int
	consecutive int
	lastFlush   time.Time
	lastErr     error
	emergency   bool
}

// Open loads the named store from <dir>/<name>.ds.json, creating the file
// with an empty collection when it does not exist, and starts its flush
// worker.
func Open[T record.Record](name string, opts ...Option) (*Store[T], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	normalized, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}

	dir := o.dir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
	}
	path, err := filepath.Abs(filepath.Join(dir, FileName(normalized)))
	if err != nil {
		return nil, fmt.Errorf("resolve store path: %w", err)
	}

	records, size, err := loadFile[T](path, o.writeFile)
	if err != nil {
		return nil, err
	}

	s := &Store[T]{
		name:     normalized,
		path:     path,
		window:   o.window,
		clock:    o.clock,
		logger:   o.logger,
		write:    o.writeFile,
		check:    o.validate,
		notify:   o.onError,
		records:  records,
		requests: make(chan struct{}, 1),
		forced:   make(chan chan error),
		barriers: make(chan chan struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if err := s.rebuildIndexLocked(); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	go s.run()

	if o.hooks != nil {
		o.hooks.Register("store:"+normalized, s.EmergencyFlush)
	}

	s.logger.Info("store loaded",
		"store", s.name,
		"path", s.path,
		"records", len(s.records),
		"bytes", size,
	)
	return s, nil
}

// Name returns the normalized store name.
func (s *Store[T]) Name() string {
	return s.name
}

// Path returns the absolute path of the store file.
func (s *Store[T]) Path() string {
	return s.path
}

// State returns the current persistence state.
func (s *Store[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Store[T]) stateLocked() State {
	switch {
	case s.latched:
		return StateEmergencyDone
	case s.persisting:
		return StateFlushing
	case s.dirty:
		return StateDirtyPending
	default:
		return StateClean
	}
}

// Stats returns counters and flags describing the store.
func (s *Store[T]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Name:                s.name,
		Path:                s.path,
		Records:             len(s.records),
		State:               s.stateLocked(),
		Dirty:               s.dirty,
		TimerPending:        s.timer != nil,
		Flushes:             s.counters.flushes,
		FailedFlushes:       s.counters.failures,
		ConsecutiveFailures: s.counters.consecutive,
		LastFlush:           s.counters.lastFlush,
		LastError:           s.counters.lastErr,
		EmergencyFlushed:    s.counters.emergency,
	}
}

// Close flushes unsaved changes synchronously, latches the store and stops
// its worker. It is safe to call more than once; later calls return the
// first result.
func (s *Store[T]) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.EmergencyFlush("close")

		s.mu.Lock()
		s.latched = true
		s.cancelTimerLocked()
		s.mu.Unlock()

		close(s.stop)
		<-s.done
	})
	return s.closeErr
}

// rebuildIndexLocked recomputes the identifier index from the sequence.
func (s *Store[T]) rebuildIndexLocked() error {
	index := make(map[int64]int, len(s.records))
	for i, rec := range s.records {
		id := rec.RecordID()
		if _, dup := index[id]; dup {
			return s.errDuplicate(id)
		}
		index[id] = i
	}
	s.index = index
	return nil
}

// encodeLocked serializes the full sequence.
func (s *Store[T]) encodeLocked() ([]byte, error) {
	data, err := json.Marshal(s.records)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}
