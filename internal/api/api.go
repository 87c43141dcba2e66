package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// HeaderRequestID carries the request identifier in both directions.
const HeaderRequestID = "X-Request-ID"

const shutdownTimeout = 5 * time.Second

// Option configures an API.
type Option func(*API)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// API is a set of endpoints keyed by method and path.
type API struct {
	logger *slog.Logger

	mu        sync.Mutex
	endpoints []*Endpoint
}

// New returns an empty API.
func New(opts ...Option) *API {
	a := &API{}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Get declares a GET endpoint.
func (a *API) Get(path string) *Endpoint { return a.endpoint(http.MethodGet, path) }

// Post declares a POST endpoint.
func (a *API) Post(path string) *Endpoint { return a.endpoint(http.MethodPost, path) }

// Put declares a PUT endpoint.
func (a *API) Put(path string) *Endpoint { return a.endpoint(http.MethodPut, path) }

// Patch declares a PATCH endpoint.
func (a *API) Patch(path string) *Endpoint { return a.endpoint(http.MethodPatch, path) }

// Delete declares a DELETE endpoint.
func (a *API) Delete(path string) *Endpoint { return a.endpoint(http.MethodDelete, path) }

// endpoint returns a fresh endpoint for method and path. Declaring the
// same method and path again replaces the earlier endpoint.
func (a *API) endpoint(method, path string) *Endpoint {
	e := &Endpoint{api: a, method: method, path: path}

	a.mu.Lock()
	defer a.mu.Unlock()
	for i, old := range a.endpoints {
		if old.method == method && old.path == path {
			a.endpoints[i] = e
			return e
		}
	}
	a.endpoints = append(a.endpoints, e)
	return e
}

// Apply calls fn with the API, for endpoint declarations kept in their own
// functions.
func (a *API) Apply(fn func(*API) *Endpoint) *API {
	fn(a)
	return a
}

// Endpoints returns "METHOD path" for every endpoint in declaration order.
func (a *API) Endpoints() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.endpoints))
	for i, e := range a.endpoints {
		out[i] = e.method + " " + e.path
	}
	return out
}

// LogEndpoints logs every endpoint.
func (a *API) LogEndpoints() *API {
	for _, e := range a.Endpoints() {
		a.logger.Info("endpoint", "route", e)
	}
	return a
}

// Handler builds an http.Handler for the endpoints declared so far.
func (a *API) Handler() http.Handler {
	a.mu.Lock()
	endpoints := append([]*Endpoint(nil), a.endpoints...)
	a.mu.Unlock()

	mux := http.NewServeMux()
	for _, e := range endpoints {
		mux.Handle(e.method+" "+exact(e.path), e)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		notFound(w)
	})
	return a.middleware(mux)
}

// exact turns a trailing-slash path into an exact match; ServeMux would
// otherwise treat it as a prefix.
func exact(path string) string {
	if strings.HasSuffix(path, "/") {
		return path + "{$}"
	}
	return path
}

type requestIDKey struct{}

// RequestID returns the request identifier stored in ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (a *API) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		a.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", id,
		)
	})
}

// Serve listens on addr and serves until ctx is done, then shuts down
// gracefully.
func (a *API) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is done.
func (a *API) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	a.logger.Info("server listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errc
	a.logger.Info("server stopped")
	return nil
}
