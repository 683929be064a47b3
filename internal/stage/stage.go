// Package stage runs the three independent generation stages. Each stage
// builds a prompt from part of the request, calls the model once and
// validates the completion into a typed value.
package stage

import (
	"context"
	"errors"
	"fmt"

	"github.com/harsh7800/adofly/internal/creative"
	"github.com/harsh7800/adofly/internal/model"
	"github.com/harsh7800/adofly/internal/validate"
)

// ID identifies a generation stage.
type ID string

const (
	AdCopy         ID = "ad-copy"
	TargetAudience ID = "target-audience"
	Budget         ID = "budget"
)

// Order is the fixed order in which stage events are observed.
var Order = []ID{AdCopy, TargetAudience, Budget}

// Phase returns the phase name announced before the stage starts.
func (id ID) Phase() string {
	switch id {
	case AdCopy:
		return "generating-copy"
	case TargetAudience:
		return "generating-audience"
	case Budget:
		return "generating-budget"
	}
	return ""
}

// ResultKey returns the event key carrying the stage's value.
func (id ID) ResultKey() string {
	switch id {
	case AdCopy:
		return "adCopy"
	case TargetAudience:
		return "targetAudience"
	case Budget:
		return "budget"
	}
	return ""
}

// FromPhase maps a phase name back to its stage.
func FromPhase(phase string) (ID, bool) {
	for _, id := range Order {
		if id.Phase() == phase {
			return id, true
		}
	}
	return "", false
}

// FailureKind classifies a stage failure.
type FailureKind string

const (
	UpstreamError   FailureKind = "upstream-error"
	MalformedOutput FailureKind = "malformed-output"
	SchemaViolation FailureKind = "schema-violation"
	Canceled        FailureKind = "canceled"
)

// Failure is the failure variant of a stage result.
type Failure struct {
	Kind       FailureKind `json:"kind"`
	Stage      ID          `json:"stage"`
	Message    string      `json:"message"`
	Violations []string    `json:"violations,omitempty"`
	Err        error       `json:"-"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("stage %s: %s: %s", f.Stage, f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// Result is the outcome of one stage: Value when Err is nil.
type Result[T any] struct {
	Value T
	Err   *Failure
}

// OK reports whether the stage succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// Run calls m once with prompt and validates the completion as T. Model
// errors are not retried here.
func Run[T any](ctx context.Context, m model.Model, id ID, prompt string) Result[T] {
	if err := ctx.Err(); err != nil {
		return Result[T]{Err: callFailure(ctx, id, err)}
	}
	raw, err := m.Complete(ctx, prompt)
	if err != nil {
		return Result[T]{Err: callFailure(ctx, id, err)}
	}

	v, err := validate.Decode[T](raw)
	if err != nil {
		f := &Failure{Stage: id, Message: err.Error(), Err: err}
		var verr *validate.Error
		if errors.As(err, &verr) && verr.Kind == validate.KindSchemaViolation {
			f.Kind = SchemaViolation
			f.Violations = verr.Violations
		} else {
			f.Kind = MalformedOutput
		}
		return Result[T]{Err: f}
	}
	return Result[T]{Value: v}
}

func callFailure(ctx context.Context, id ID, err error) *Failure {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return &Failure{Kind: Canceled, Stage: id, Message: "run canceled", Err: err}
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		return &Failure{Kind: UpstreamError, Stage: id, Message: "model call timed out", Err: err}
	}
	return &Failure{Kind: UpstreamError, Stage: id, Message: err.Error(), Err: err}
}

// ExecuteAdCopy runs the ad-copy stage.
func ExecuteAdCopy(ctx context.Context, m model.Model, req creative.AdRequest) Result[creative.AdCopy] {
	return Run[creative.AdCopy](ctx, m, AdCopy, BuildPrompt(AdCopy, req))
}

// ExecuteTargetAudience runs the target-audience stage.
func ExecuteTargetAudience(ctx context.Context, m model.Model, req creative.AdRequest) Result[creative.TargetAudience] {
	return Run[creative.TargetAudience](ctx, m, TargetAudience, BuildPrompt(TargetAudience, req))
}

// ExecuteBudget runs the budget stage.
func ExecuteBudget(ctx context.Context, m model.Model, req creative.AdRequest) Result[creative.BudgetSuggestion] {
	return Run[creative.BudgetSuggestion](ctx, m, Budget, BuildPrompt(Budget, req))
}
