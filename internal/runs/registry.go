// Package runs tracks submitted generation runs so that a client can submit
// a request and subscribe to its events separately, correlated by run id.
package runs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harsh7800/adofly/internal/creative"
	"github.com/harsh7800/adofly/internal/logging"
	"github.com/harsh7800/adofly/internal/orchestrator"
)

// ErrNotFound is returned for unknown run ids and for runs owned by another
// user.
var ErrNotFound = errors.New("runs: run not found")

// Executor runs one request, reporting events through onEvent.
type Executor func(ctx context.Context, req creative.AdRequest, onEvent func(orchestrator.Event)) (*creative.AdCreative, error)

// Registry is a concurrency-safe in-memory index of runs. Finished runs are
// kept for a TTL so late subscribers can replay them.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*Run

	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
	onFinish func(context.Context, *Run)
	wg       sync.WaitGroup
}

// Option configures a Registry.
type Option func(*Registry)

// WithTTL sets how long finished runs are retained. Zero keeps them forever.
func WithTTL(d time.Duration) Option {
	return func(g *Registry) { g.ttl = d }
}

// WithLogger sets the registry's logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Registry) { g.logger = l }
}

// WithFinishHook registers fn to be called once per run after it finishes.
func WithFinishHook(fn func(context.Context, *Run)) Option {
	return func(g *Registry) { g.onFinish = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Registry) { g.now = now }
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	g := &Registry{
		runs:  make(map[string]*Run),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.Or(g.logger)
	return g
}

// Start registers a run for userID and executes it in the background. The
// run keeps ctx's values but not its cancellation; use Cancel to stop it.
func (g *Registry) Start(ctx context.Context, userID string, req creative.AdRequest, exec Executor) *Run {
	run := newRun(g.newID(), userID, req, g.now())
	logger := logging.ForRun(logging.FromContext(ctx, g.logger), run.ID, userID)

	rctx, cancel := context.WithCancel(logging.NewContext(context.WithoutCancel(ctx), logger))
	run.cancel = cancel

	g.mu.Lock()
	g.runs[run.ID] = run
	g.mu.Unlock()

	logger.Info("run started")
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer cancel()

		c, err := exec(rctx, run.Request, run.append)
		run.finish(c, err, g.now())
		if err != nil {
			logger.Warn("run failed", slog.Any("error", err))
		} else {
			logger.Info("run finished")
		}
		if g.onFinish != nil {
			g.onFinish(rctx, run)
		}
	}()
	return run
}

// Get returns the run with the given id if userID owns it.
func (g *Registry) Get(userID, id string) (*Run, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	run, ok := g.runs[id]
	if !ok || run.UserID != userID {
		return nil, ErrNotFound
	}
	return run, nil
}

// Cancel stops an in-flight run owned by userID. Canceling a finished run is
// a no-op.
func (g *Registry) Cancel(userID, id string) error {
	run, err := g.Get(userID, id)
	if err != nil {
		return err
	}
	run.cancel()
	return nil
}

// Len returns the number of tracked runs.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.runs)
}

// Sweep removes finished runs older than the TTL and returns how many were
// removed.
func (g *Registry) Sweep() int {
	if g.ttl <= 0 {
		return 0
	}
	cutoff := g.now().Add(-g.ttl)

	g.mu.Lock()
	defer g.mu.Unlock()
	removed := 0
	for id, run := range g.runs {
		run.mu.Lock()
		expired := run.done && run.finished.Before(cutoff)
		run.mu.Unlock()
		if expired {
			delete(g.runs, id)
			removed++
		}
	}
	return removed
}

// Janitor calls Sweep every interval until ctx is done.
func (g *Registry) Janitor(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := g.Sweep(); n > 0 {
				g.logger.Debug("evicted finished runs", slog.Int("count", n))
			}
		}
	}
}

// CancelAll stops every in-flight run.
func (g *Registry) CancelAll() {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, run := range g.runs {
		run.cancel()
	}
}

// Wait blocks until every started run has finished.
func (g *Registry) Wait() {
	g.wg.Wait()
}
