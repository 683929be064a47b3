package client

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/harsh7800/adofly/internal/creative"
	"github.com/harsh7800/adofly/internal/orchestrator"
	"github.com/harsh7800/adofly/internal/progress"
)

// ErrStreamClosed is reported when an event stream ends before the run's
// terminal event.
var ErrStreamClosed = errors.New("client: stream closed before run finished")

// State is the observable view of one run.
type State struct {
	RunID    string
	Steps    []progress.Step
	Creative *creative.AdCreative
	Err      error
	Loading  bool
}

// Tracker follows a run and keeps its projected State current.
type Tracker struct {
	mu    sync.Mutex
	state State

	changes chan State
	done    chan struct{}
}

func newTracker() *Tracker {
	return &Tracker{
		state:   State{Steps: progress.Initial(), Loading: true},
		changes: make(chan State, 1),
		done:    make(chan struct{}),
	}
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state
	s.Steps = slices.Clone(s.Steps)
	return s
}

// Changes delivers the latest state after every update. A slow reader sees
// only the most recent state. The channel is closed when tracking stops.
func (t *Tracker) Changes() <-chan State {
	return t.changes
}

// Done is closed when tracking stops.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until tracking stops and returns the final state.
func (t *Tracker) Wait(ctx context.Context) (State, error) {
	select {
	case <-t.done:
		return t.State(), nil
	case <-ctx.Done():
		return t.State(), ctx.Err()
	}
}

func (t *Tracker) update(fn func(*State)) {
	t.mu.Lock()
	fn(&t.state)
	s := t.state
	s.Steps = slices.Clone(s.Steps)
	t.mu.Unlock()

	// Only the tracking goroutine sends, so after the drain the send
	// cannot block.
	select {
	case <-t.changes:
	default:
	}
	t.changes <- s
}

// apply folds one event into the state.
func (t *Tracker) apply(ev orchestrator.Event) {
	t.update(func(s *State) {
		s.Steps = progress.Apply(s.Steps, ev)
		switch ev.Phase {
		case orchestrator.EventComplete:
			s.Creative = ev.Creative
			s.Loading = false
		case orchestrator.EventFailed:
			if ev.Error != nil {
				s.Err = ev.Error
			} else {
				s.Err = errors.New("client: run failed")
			}
			s.Loading = false
		}
	})
}

func (t *Tracker) stop(err error) {
	t.update(func(s *State) {
		if s.Loading {
			s.Loading = false
			if s.Err == nil {
				s.Err = err
			}
		}
	})
	close(t.changes)
	close(t.done)
}

// Generate submits req and tracks its events until the run ends, the
// stream drops or ctx is canceled. Submission errors are reported in the
// tracker's state.
func (c *Client) Generate(ctx context.Context, req creative.AdRequest) *Tracker {
	t := newTracker()
	go func() {
		runID, err := c.Submit(ctx, req)
		if err != nil {
			t.stop(err)
			return
		}
		t.update(func(s *State) { s.RunID = runID })
		t.follow(ctx, c, runID)
	}()
	return t
}

// Track follows an already submitted run.
func (c *Client) Track(ctx context.Context, runID string) *Tracker {
	t := newTracker()
	t.state.RunID = runID
	go t.follow(ctx, c, runID)
	return t
}

func (t *Tracker) follow(ctx context.Context, c *Client, runID string) {
	updates, err := c.Stream(ctx, runID)
	if err != nil {
		t.stop(err)
		return
	}
	for u := range updates {
		if u.Err != nil {
			continue
		}
		t.apply(u.Event)
		if u.Event.Terminal() {
			// Drain so the reader goroutine can close the body.
			for range updates {
			}
			t.stop(nil)
			return
		}
	}
	if ctx.Err() != nil {
		t.stop(ctx.Err())
		return
	}
	t.stop(ErrStreamClosed)
}
