package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/dstore/internal/record"
	"github.com/roach88/dstore/internal/testutil"
)

// item is a typed record used throughout the store tests.
type item struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
	Coop bool   `json:"coop,omitempty"`
}

func (i item) RecordID() int64 { return i.ID }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openTestStore opens a store in a temp dir driven by a fake clock.
func openTestStore[T record.Record](t *testing.T, name string, opts ...Option) (*Store[T], *testutil.FakeClock) {
	t.Helper()
	clk := testutil.NewFakeClock()
	return openTestStoreIn[T](t, t.TempDir(), name, clk, opts...), clk
}

func openTestStoreIn[T record.Record](t *testing.T, dir, name string, clk *testutil.FakeClock, opts ...Option) *Store[T] {
	t.Helper()
	base := []Option{WithDir(dir), WithClock(clk), WithLogger(discardLogger())}
	s, err := Open[T](name, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// readFile returns the store file content.
func readFile(t *testing.T, s interface{ Path() string }) string {
	t.Helper()
	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	return string(data)
}

func syncStore(t *testing.T, s interface{ Sync(context.Context) error }) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Sync(ctx))
}

// recordingWriter wraps WriteFileAtomic, recording every write. It can
// fail a number of writes and can hold the next write until released.
type recordingWriter struct {
	mu       sync.Mutex
	writes   []string
	failures int
	gate     chan struct{}
	started  chan struct{}

	active    atomic.Int32
	maxActive atomic.Int32
}

func (w *recordingWriter) write(path string, data []byte) error {
	n := w.active.Add(1)
	defer w.active.Add(-1)
	for {
		m := w.maxActive.Load()
		if n <= m || w.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	w.mu.Lock()
	gate, started := w.gate, w.started
	w.gate, w.started = nil, nil
	fail := w.failures > 0
	if fail {
		w.failures--
	}
	w.mu.Unlock()

	if gate != nil {
		close(started)
		<-gate
	}
	if fail {
		return errors.New("disk full")
	}

	w.mu.Lock()
	w.writes = append(w.writes, string(data))
	w.mu.Unlock()
	return WriteFileAtomic(path, data)
}

// hold makes the next write block until the returned release is called.
// The returned channel is closed once that write has started.
func (w *recordingWriter) hold() (started <-chan struct{}, release func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	gate := make(chan struct{})
	w.gate = gate
	w.started = make(chan struct{})
	return w.started, func() { close(gate) }
}

func (w *recordingWriter) failNext(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures = n
}

func (w *recordingWriter) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = nil
}

func (w *recordingWriter) all() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.writes...)
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting")
	}
}
