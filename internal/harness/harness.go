package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/dstore/internal/lifecycle"
	"github.com/roach88/dstore/internal/record"
	"github.com/roach88/dstore/internal/store"
	"github.com/roach88/dstore/internal/testutil"
)

const syncTimeout = 10 * time.Second

// Harness executes the steps of one scenario.
type Harness struct {
	scenario *Scenario
	dir      string
	clock    *testutil.FakeClock
	logger   *slog.Logger

	store    *store.Store[record.Document]
	shutdown *lifecycle.Manager
}

// Run executes a scenario in a fresh temporary directory and returns the
// result. An error means the scenario could not run at all; failed
// expectations are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "dstore-scenario-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	h := &Harness{
		scenario: scenario,
		dir:      dir,
		clock:    testutil.NewFakeClock(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	if scenario.Initial != nil {
		path, err := store.PathFor(dir, scenario.Store)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte(*scenario.Initial), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write initial file: %w", err)
		}
	}

	if err := h.open(); err != nil {
		return nil, err
	}
	defer func() { h.store.Close() }()

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.execute(i+1, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	file, err := h.readFile()
	if err != nil {
		return nil, err
	}
	result.File = file
	return result, nil
}

// open loads the store with a fresh shutdown manager, as a new process
// would.
func (h *Harness) open() error {
	h.shutdown = lifecycle.New(
		lifecycle.WithLogger(h.logger),
		lifecycle.WithExit(func(int) {}),
	)

	opts := []store.Option{
		store.WithDir(h.dir),
		store.WithClock(h.clock),
		store.WithLogger(h.logger),
		store.WithShutdownHooks(h.shutdown),
	}
	if h.scenario.QuietWindow > 0 {
		opts = append(opts, store.WithQuietWindow(h.scenario.QuietWindow))
	}

	s, err := store.Open[record.Document](h.scenario.Store, opts...)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	h.store = s
	return nil
}

func (h *Harness) execute(n int, step Step, result *Result) error {
	event := TraceEvent{Step: n, Op: step.ops()[0]}

	var (
		opErr   error
		matched int
	)
	switch event.Op {
	case OpCreate:
		event.Args = step.Create
		opErr = h.store.Create(record.Document(cloneMap(step.Create)))

	case OpUpdate:
		event.Args = step.Update
		opErr = h.store.Update(step.Update.ID, record.Patch(cloneMap(step.Update.Patch)))

	case OpUpdateWhere:
		event.Args = step.UpdateWhere
		matched, opErr = h.store.UpdateWhere(where(step.UpdateWhere.Where), record.Patch(cloneMap(step.UpdateWhere.Patch)))

	case OpDelete:
		event.Args = *step.Delete
		opErr = h.store.Delete(*step.Delete)

	case OpDeleteWhere:
		event.Args = step.DeleteWhere
		matched, opErr = h.store.DeleteWhere(where(step.DeleteWhere))

	case OpAdvance:
		event.Args = step.Advance.String()
		h.clock.Advance(step.Advance)
		if err := h.sync(); err != nil {
			return err
		}

	case OpSignal:
		event.Args = step.Signal
		opErr = h.shutdown.Trigger(step.Signal)

	case OpReopen:
		if err := h.store.Close(); err != nil {
			h.logger.Warn("close before reopen failed", "error", err)
		}
		if err := h.open(); err != nil {
			return err
		}
	}

	event.Outcome = outcome(opErr)
	if opErr == nil && (event.Op == OpUpdateWhere || event.Op == OpDeleteWhere) {
		event.Matched = &matched
	}
	event.State = h.store.State().String()
	result.Trace = append(result.Trace, event)

	for _, msg := range h.check(event, step, opErr, matched) {
		result.AddError(fmt.Sprintf("step %d (%s): %s", n, event.Op, msg))
	}
	return nil
}

func (h *Harness) sync() error {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()
	if err := h.store.Sync(ctx); err != nil && !store.IsClosed(err) {
		return fmt.Errorf("failed to sync store: %w", err)
	}
	return nil
}

func (h *Harness) readFile() (string, error) {
	data, err := os.ReadFile(h.store.Path())
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", filepath.Base(h.store.Path()), err)
	}
	return string(data), nil
}

// outcome names an operation result for the trace.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if code := store.ErrorCode(err); code != "" {
		return string(code)
	}
	return "error"
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
