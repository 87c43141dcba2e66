package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
)

// Trigger reasons that do not come from a signal.
const (
	ReasonExit       = "exit"
	ReasonBeforeExit = "beforeExit"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithExit replaces os.Exit. Tests use it to observe exit codes.
func WithExit(exit func(code int)) Option {
	return func(m *Manager) { m.exit = exit }
}

// WithSignals replaces the signals Listen subscribes to.
func WithSignals(sigs ...os.Signal) Option {
	return func(m *Manager) { m.signals = sigs }
}

type hook struct {
	name string
	fn   func(reason string) error
}

// Manager is a registry of shutdown hooks run once on termination.
type Manager struct {
	logger  *slog.Logger
	exit    func(int)
	signals []os.Signal

	mu     sync.Mutex
	hooks  []hook
	fired  bool
	reason string
	err    error
	done   chan struct{} // closed when the first trigger's hooks return
}

// New returns a Manager listening for the platform's termination signals.
func New(opts ...Option) *Manager {
	m := &Manager{
		exit:    os.Exit,
		signals: terminationSignals(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Register adds a shutdown hook. A hook registered after the manager has
// fired runs immediately with the original reason.
func (m *Manager) Register(name string, fn func(reason string) error) {
	m.mu.Lock()
	if !m.fired {
		m.hooks = append(m.hooks, hook{name: name, fn: fn})
		m.mu.Unlock()
		return
	}
	reason := m.reason
	m.mu.Unlock()

	if err := m.call(hook{name: name, fn: fn}, reason); err != nil {
		m.mu.Lock()
		m.err = errors.Join(m.err, err)
		m.mu.Unlock()
	}
}

// Trigger runs every registered hook once and returns their joined
// errors. Only the first call runs hooks; later calls wait for them to
// finish and return the same result. Hooks must not call Trigger.
func (m *Manager) Trigger(reason string) error {
	m.mu.Lock()
	if m.fired {
		m.mu.Unlock()
		<-m.done
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.err
	}
	m.fired = true
	m.reason = reason
	hooks := m.hooks
	m.hooks = nil
	m.mu.Unlock()

	m.logger.Info("shutting down", "reason", reason, "hooks", len(hooks))

	var errs []error
	for _, h := range hooks {
		if err := m.call(h, reason); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)

	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
	close(m.done)
	return err
}

func (m *Manager) call(h hook, reason string) error {
	if err := h.fn(reason); err != nil {
		m.logger.Error("shutdown hook failed", "hook", h.name, "reason", reason, "error", err)
		return fmt.Errorf("%s: %w", h.name, err)
	}
	return nil
}

// Fired reports whether a termination trigger has run.
func (m *Manager) Fired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fired
}

// Exit runs the hooks and exits with code, or with 1 if a hook failed.
func (m *Manager) Exit(code int) {
	if err := m.Trigger(ReasonExit); err != nil && code == 0 {
		code = 1
	}
	m.exit(code)
}

// Shutdown runs the hooks without exiting. main calls it before it
// returns.
func (m *Manager) Shutdown() error {
	return m.Trigger(ReasonBeforeExit)
}

// Listen subscribes to termination signals until ctx is done or the
// returned stop function is called. The first signal runs the hooks and
// exits the process.
func (m *Manager) Listen(ctx context.Context) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, m.signals...)

	quit := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case sig := <-ch:
			m.handle(sig)
		case <-ctx.Done():
		case <-quit:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(quit)
			<-done
		})
	}
}

func (m *Manager) handle(sig os.Signal) {
	m.logger.Warn("received signal", "signal", sig.String())
	code := 0
	if err := m.Trigger(sig.String()); err != nil {
		code = 1
	}
	m.exit(code)
}
