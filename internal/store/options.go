package store

import (
	"log/slog"
	"time"

	"github.com/roach88/dstore/internal/clock"
)

// DefaultQuietWindow is how long the store waits after the last mutation
// before flushing.
const DefaultQuietWindow = time.Second

// HookRegistry receives the store's emergency flush as a shutdown hook.
// lifecycle.Manager satisfies it.
type HookRegistry interface {
	Register(name string, hook func(reason string) error)
}

// FileWriter replaces the file at path with data.
type FileWriter func(path string, data []byte) error

// Option configures a Store.
type Option func(*options)

type options struct {
	dir       string
	window    time.Duration
	clock     clock.Clock
	logger    *slog.Logger
	writeFile FileWriter
	hooks     HookRegistry
	validate  func(any) error
	onError   func(error)
}

func defaultOptions() options {
	return options{
		window:    DefaultQuietWindow,
		clock:     clock.System(),
		writeFile: WriteFileAtomic,
	}
}

// WithDir sets the directory holding the store file. Defaults to the
// working directory.
func WithDir(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// WithQuietWindow overrides the debounce window. Non-positive values are
// ignored.
func WithQuietWindow(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.window = d
		}
	}
}

// WithClock sets the time source for debounce timers.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithFileWriter replaces the atomic file writer.
func WithFileWriter(w FileWriter) Option {
	return func(o *options) {
		if w != nil {
			o.writeFile = w
		}
	}
}

// WithShutdownHooks registers the store's EmergencyFlush with r.
func WithShutdownHooks(r HookRegistry) Option {
	return func(o *options) {
		o.hooks = r
	}
}

// WithValidator adds a check run against every created record and every
// merged update result, in addition to record.Validator.
func WithValidator(fn func(any) error) Option {
	return func(o *options) {
		o.validate = fn
	}
}

// WithErrorHandler is called with every *PersistError from the
// asynchronous flush path.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}
