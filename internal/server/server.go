// Package server exposes ad generation over HTTP. Runs are submitted with a
// POST and observed through a Server-Sent Events stream keyed by run id.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/harsh7800/adofly/internal/logging"
	"github.com/harsh7800/adofly/internal/runs"
	"github.com/harsh7800/adofly/internal/store"
)

const maxBodyBytes = 1 << 20

// Server serves the generation API.
type Server struct {
	exec     runs.Executor
	registry *runs.Registry
	store    store.Store
	auth     *Auth
	logger   *slog.Logger
	mcp      http.Handler

	http *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMCPHandler mounts h at /mcp behind the same authentication.
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

// New creates a Server. exec runs one request; registry tracks
// asynchronous runs; st receives completed creatives.
func New(exec runs.Executor, registry *runs.Registry, st store.Store, auth *Auth, opts ...Option) *Server {
	s := &Server{
		exec:     exec,
		registry: registry,
		store:    st,
		auth:     auth,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.Or(s.logger)
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/ad-generation", s.handleSubmit)
	api.HandleFunc("GET /api/ad-generation/{runId}", s.handleSnapshot)
	api.HandleFunc("GET /api/ad-generation/{runId}/events", s.handleEvents)
	api.HandleFunc("POST /api/ad-generation/{runId}/cancel", s.handleCancel)
	api.HandleFunc("POST /api/ad-generation-stream", s.handleStream)
	api.HandleFunc("POST /api/ad-creative", s.handleCreative)
	api.HandleFunc("GET /api/ad-creatives", s.handleListCreatives)
	if s.mcp != nil {
		api.Handle("/mcp", s.mcp)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("/", s.auth.Middleware(api))
	return logRequests(s.logger, mux)
}

// Start listens on addr and serves in a background goroutine. It returns
// once the listener is bound.
func (s *Server) Start(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", slog.Any("error", err))
		}
	}()
	s.logger.Info("listening", slog.String("addr", ln.Addr().String()))
	return ln.Addr(), nil
}

// Stop gracefully shuts down the HTTP server, then cancels and waits for
// any runs still in flight.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	s.registry.CancelAll()
	s.registry.Wait()
	return err
}

// PersistFinished returns a registry hook that saves the creative of every
// successful run under its run id. Failures are logged and never change the
// run's outcome.
func PersistFinished(st store.Store, logger *slog.Logger) func(context.Context, *runs.Run) {
	logger = logging.Or(logger)
	return func(ctx context.Context, run *runs.Run) {
		c, err := run.Result()
		if err != nil || c == nil {
			return
		}
		rec := store.Record{
			ID:        run.ID,
			UserID:    run.UserID,
			Request:   run.Request,
			Creative:  *c,
			CreatedAt: time.Now().UTC(),
		}
		if err := st.Save(context.WithoutCancel(ctx), rec); err != nil {
			logger.Error("persist creative failed", slog.String("run_id", run.ID), slog.Any("error", err))
		}
	}
}

func newRecordID() string { return uuid.NewString() }
