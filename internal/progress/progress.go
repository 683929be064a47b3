// Package progress reduces a run's events into the ordered step list shown
// to users. Apply is a pure function, so replaying an event log from Reset
// always yields the same steps.
package progress

import (
	"fmt"
	"slices"

	"github.com/harsh7800/adofly/internal/orchestrator"
	"github.com/harsh7800/adofly/internal/stage"
)

// Status is the display state of one step.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Step is one entry of the projection.
type Step struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status Status `json:"status"`
}

// PhaseReset is the Phase of the Reset event.
const PhaseReset = "reset"

// Reset discards any previous run's steps.
var Reset = orchestrator.Event{Phase: PhaseReset}

var titles = []Step{
	{ID: string(stage.AdCopy), Title: "Generating Ad Copy"},
	{ID: string(stage.TargetAudience), Title: "Generating Target Audience"},
	{ID: string(stage.Budget), Title: "Generating Budget Suggestions"},
	{ID: string(orchestrator.Finalizing), Title: "Finalizing Ad Creative"},
}

// Initial returns every step pending, in pipeline order.
func Initial() []Step {
	steps := slices.Clone(titles)
	for i := range steps {
		steps[i].Status = StatusPending
	}
	return steps
}

// Apply returns the steps that result from applying ev to steps. The input
// slice is never modified.
func Apply(steps []Step, ev orchestrator.Event) []Step {
	if ev.Phase == PhaseReset {
		return Initial()
	}
	out := slices.Clone(steps)

	switch ev.Phase {
	case orchestrator.EventFinalizing:
		activate(out, string(orchestrator.Finalizing))
	case orchestrator.EventComplete:
		for i := range out {
			if out[i].Status != StatusError {
				out[i].Status = StatusCompleted
			}
		}
	case orchestrator.EventFailed:
		setStatus(out, string(ev.FailedStage), StatusError)
	default:
		if id, ok := stage.FromPhase(ev.Phase); ok {
			activate(out, string(id))
		}
	}
	return out
}

// Replay applies events in order to a freshly reset projection.
func Replay(events []orchestrator.Event) []Step {
	steps := Initial()
	for _, ev := range events {
		steps = Apply(steps, ev)
	}
	return steps
}

// activate makes id the single active step; the previously active step is
// inferred to have completed.
func activate(steps []Step, id string) {
	for i := range steps {
		if steps[i].Status == StatusActive && steps[i].ID != id {
			steps[i].Status = StatusCompleted
		}
	}
	setStatus(steps, id, StatusActive)
}

func setStatus(steps []Step, id string, s Status) {
	for i := range steps {
		if steps[i].ID == id {
			steps[i].Status = s
			return
		}
	}
}

// Format renders step as a terminal status line.
func Format(step Step) string {
	switch step.Status {
	case StatusPending:
		return fmt.Sprintf("  ○ %s (pending)", step.Title)
	case StatusActive:
		return fmt.Sprintf("  ● %s...", step.Title)
	case StatusCompleted:
		return fmt.Sprintf("  ✓ %s", step.Title)
	case StatusError:
		return fmt.Sprintf("  ✗ %s failed", step.Title)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", step.Title)
	}
}
