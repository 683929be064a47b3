// Package orchestrator drives one ad request through the generation stages
// and reports every transition as an Event.
package orchestrator

import (
	"fmt"

	"github.com/harsh7800/adofly/internal/creative"
	"github.com/harsh7800/adofly/internal/stage"
)

// RunPhase is the working state of a single pipeline run. Phases only move
// forward, except that any running phase may jump to Failed.
type RunPhase int

const (
	PhaseInitializing RunPhase = iota
	PhaseRunningAdCopy
	PhaseRunningTargetAudience
	PhaseRunningBudget
	PhaseFinalizing
	PhaseComplete
	PhaseFailed
)

func (p RunPhase) String() string {
	names := [...]string{
		"initializing",
		"running(ad-copy)",
		"running(target-audience)",
		"running(budget)",
		"finalizing",
		"complete",
		"failed",
	}
	if int(p) < len(names) {
		return names[p]
	}
	return "unknown"
}

// Terminal reports whether no further transitions are possible.
func (p RunPhase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

func runningPhase(id stage.ID) RunPhase {
	switch id {
	case stage.AdCopy:
		return PhaseRunningAdCopy
	case stage.TargetAudience:
		return PhaseRunningTargetAudience
	default:
		return PhaseRunningBudget
	}
}

// Wire values of Event.Phase beyond the per-stage phases.
const (
	EventFinalizing = "finalizing"
	EventComplete   = "complete"
	EventFailed     = "failed"
)

// Finalizing identifies the assembly step in failure events.
const Finalizing stage.ID = "finalizing"

// Event is one message of a run's event stream. Exactly one of the following
// shapes is set:
//   - stage starting: Phase is the stage's phase name
//   - stage result: one of AdCopy, TargetAudience, Budget
//   - finalizing: Phase is "finalizing"
//   - complete: Phase is "complete" with all stage values and Creative
//   - failed: Phase is "failed" with FailedStage and Error
type Event struct {
	Phase          string                     `json:"phase,omitempty"`
	AdCopy         *creative.AdCopy           `json:"adCopy,omitempty"`
	TargetAudience *creative.TargetAudience   `json:"targetAudience,omitempty"`
	Budget         *creative.BudgetSuggestion `json:"budget,omitempty"`
	Creative       *creative.AdCreative       `json:"creative,omitempty"`
	FailedStage    stage.ID                   `json:"failedStage,omitempty"`
	Error          *stage.Failure             `json:"error,omitempty"`
}

// Terminal reports whether ev ends its run.
func (ev Event) Terminal() bool {
	return ev.Phase == EventComplete || ev.Phase == EventFailed
}

// ResultStage returns the stage whose value ev carries, if ev is a stage
// result event.
func (ev Event) ResultStage() (stage.ID, bool) {
	if ev.Phase != "" {
		return "", false
	}
	switch {
	case ev.AdCopy != nil:
		return stage.AdCopy, true
	case ev.TargetAudience != nil:
		return stage.TargetAudience, true
	case ev.Budget != nil:
		return stage.Budget, true
	}
	return "", false
}

// PipelineError is returned by Execute when a stage fails. No creative is
// produced alongside it.
type PipelineError struct {
	Failure *stage.Failure
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("orchestrator: %s failed: %s: %s", e.Failure.Stage, e.Failure.Kind, e.Failure.Message)
}

func (e *PipelineError) Unwrap() error { return e.Failure }
