package runs

import (
	"context"
	"sync"
	"time"

	"github.com/harsh7800/adofly/internal/creative"
	"github.com/harsh7800/adofly/internal/orchestrator"
	"github.com/harsh7800/adofly/internal/progress"
)

// Run is one submitted generation. Its event log is append-only and every
// subscriber sees the whole log in order.
type Run struct {
	ID      string
	UserID  string
	Request creative.AdRequest
	Created time.Time

	cancel context.CancelFunc

	mu       sync.Mutex
	events   []orchestrator.Event
	notify   chan struct{} // closed and replaced on every append
	done     bool
	finished time.Time
	creative *creative.AdCreative
	err      error
}

func newRun(id, userID string, req creative.AdRequest, now time.Time) *Run {
	return &Run{
		ID:      id,
		UserID:  userID,
		Request: req.Clone(),
		Created: now,
		notify:  make(chan struct{}),
	}
}

// append records ev and wakes every waiting subscriber.
func (r *Run) append(ev orchestrator.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.events = append(r.events, ev)
	close(r.notify)
	r.notify = make(chan struct{})
}

// finish marks the run over. No events are accepted afterwards.
func (r *Run) finish(c *creative.AdCreative, err error, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	r.finished = now
	r.creative = c
	r.err = err
	close(r.notify)
	r.notify = make(chan struct{})
}

// Done reports whether the run has finished.
func (r *Run) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Events returns a copy of the event log so far.
func (r *Run) Events() []orchestrator.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]orchestrator.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Result returns the creative and error of a finished run.
func (r *Run) Result() (*creative.AdCreative, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creative, r.err
}

// Snapshot is a point-in-time view of a run.
type Snapshot struct {
	RunID    string               `json:"runId"`
	Phase    string               `json:"phase"`
	Done     bool                 `json:"done"`
	Steps    []progress.Step      `json:"steps"`
	Creative *creative.AdCreative `json:"creative,omitempty"`
	Error    *orchestrator.Event  `json:"error,omitempty"`
}

// Snapshot projects the event log into steps and reports the latest phase.
func (r *Run) Snapshot() Snapshot {
	events := r.Events()
	snap := Snapshot{
		RunID: r.ID,
		Phase: "initializing",
		Done:  r.Done(),
		Steps: progress.Replay(events),
	}
	for _, ev := range events {
		if ev.Phase != "" {
			snap.Phase = ev.Phase
		}
		if ev.Phase == orchestrator.EventComplete {
			snap.Creative = ev.Creative
		}
		if ev.Phase == orchestrator.EventFailed {
			failed := ev
			snap.Error = &failed
		}
	}
	return snap
}

// Subscribe streams the run's events from the first one, then live events
// as they happen. The channel closes after the run finishes and every event
// has been delivered, or when ctx is done. Slow readers are never skipped.
func (r *Run) Subscribe(ctx context.Context) <-chan orchestrator.Event {
	ch := make(chan orchestrator.Event)
	go func() {
		defer close(ch)
		next := 0
		for {
			r.mu.Lock()
			if next < len(r.events) {
				ev := r.events[next]
				r.mu.Unlock()
				select {
				case ch <- ev:
					next++
				case <-ctx.Done():
					return
				}
				continue
			}
			if r.done {
				r.mu.Unlock()
				return
			}
			wait := r.notify
			r.mu.Unlock()

			select {
			case <-wait:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
