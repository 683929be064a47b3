package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/harsh7800/adofly/internal/creative"
	"github.com/harsh7800/adofly/internal/logging"
	"github.com/harsh7800/adofly/internal/model"
	"github.com/harsh7800/adofly/internal/stage"
)

// Pipeline runs ad requests through the ad-copy, target-audience and budget
// stages. A Pipeline holds no per-run state and may serve concurrent calls.
type Pipeline struct {
	model        model.Model
	concurrent   bool
	stageTimeout time.Duration
	logger       *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConcurrentStages starts all model calls together. Events are still
// emitted in stage order.
func WithConcurrentStages(on bool) Option {
	return func(p *Pipeline) { p.concurrent = on }
}

// WithStageTimeout bounds each stage's model call. Zero means no bound.
func WithStageTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.stageTimeout = d }
}

// WithLogger sets the logger used when the context carries none.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a Pipeline that calls m once per stage.
func NewPipeline(m model.Model, opts ...Option) *Pipeline {
	p := &Pipeline{model: m}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// outcome is the result of one stage in a shape shared by all stages.
type outcome struct {
	adCopy   *creative.AdCopy
	audience *creative.TargetAudience
	budget   *creative.BudgetSuggestion
	failure  *stage.Failure
}

func (o outcome) event() Event {
	return Event{AdCopy: o.adCopy, TargetAudience: o.audience, Budget: o.budget}
}

type stageTask struct {
	id   stage.ID
	exec func(ctx context.Context) outcome
}

func (p *Pipeline) tasks(req creative.AdRequest) []stageTask {
	return []stageTask{
		{stage.AdCopy, func(ctx context.Context) outcome {
			r := stage.ExecuteAdCopy(ctx, p.model, req)
			if !r.OK() {
				return outcome{failure: r.Err}
			}
			return outcome{adCopy: &r.Value}
		}},
		{stage.TargetAudience, func(ctx context.Context) outcome {
			r := stage.ExecuteTargetAudience(ctx, p.model, req)
			if !r.OK() {
				return outcome{failure: r.Err}
			}
			return outcome{audience: &r.Value}
		}},
		{stage.Budget, func(ctx context.Context) outcome {
			r := stage.ExecuteBudget(ctx, p.model, req)
			if !r.OK() {
				return outcome{failure: r.Err}
			}
			return outcome{budget: &r.Value}
		}},
	}
}

// pipelineRun is the working state of one Execute call.
type pipelineRun struct {
	req     creative.AdRequest
	phase   RunPhase
	results map[stage.ID]outcome
	onEvent func(Event)
	logger  *slog.Logger
	started time.Time
}

func (r *pipelineRun) advance(next RunPhase) {
	if r.phase.Terminal() || (next != PhaseFailed && next <= r.phase) {
		panic(fmt.Sprintf("orchestrator: invalid transition %s -> %s", r.phase, next))
	}
	r.phase = next
}

func (r *pipelineRun) emit(ev Event) {
	if r.onEvent != nil {
		r.onEvent(ev)
	}
}

// start announces that stage id is running.
func (r *pipelineRun) start(id stage.ID) {
	r.advance(runningPhase(id))
	r.logger.Info("stage started", slog.String("stage", string(id)))
	r.emit(Event{Phase: id.Phase()})
}

// record stores a stage outcome and emits its result event. It reports
// false when the stage failed and the run is now over.
func (r *pipelineRun) record(id stage.ID, o outcome, took time.Duration) bool {
	r.results[id] = o
	if o.failure != nil {
		r.logger.Warn("stage failed",
			slog.String("stage", string(id)),
			slog.String("kind", string(o.failure.Kind)),
			slog.String("error", o.failure.Message),
			slog.Int64("duration_ms", took.Milliseconds()))
		r.fail(o.failure)
		return false
	}
	r.logger.Info("stage finished",
		slog.String("stage", string(id)),
		slog.Int64("duration_ms", took.Milliseconds()))
	r.emit(o.event())
	return true
}

func (r *pipelineRun) fail(f *stage.Failure) {
	r.advance(PhaseFailed)
	r.emit(Event{Phase: EventFailed, FailedStage: f.Stage, Error: f})
}

// finish assembles the creative from the recorded results.
func (r *pipelineRun) finish() (*creative.AdCreative, error) {
	r.advance(PhaseFinalizing)
	r.emit(Event{Phase: EventFinalizing})

	c, err := creative.NewAdCreative(r.req,
		*r.results[stage.AdCopy].adCopy,
		*r.results[stage.TargetAudience].audience,
		*r.results[stage.Budget].budget)
	if err != nil {
		f := &stage.Failure{Kind: stage.SchemaViolation, Stage: Finalizing, Message: err.Error(), Err: err}
		r.fail(f)
		return nil, &PipelineError{Failure: f}
	}

	r.advance(PhaseComplete)
	r.logger.Info("run complete", slog.Int64("duration_ms", time.Since(r.started).Milliseconds()))
	r.emit(Event{
		Phase:          EventComplete,
		AdCopy:         &c.AdCopy,
		TargetAudience: &c.TargetAudience,
		Budget:         &c.Budget,
		Creative:       c,
	})
	return c, nil
}

// Execute runs req through every stage, calling onEvent synchronously for
// each event in stage order. On success it returns the creative after the
// complete event; on the first stage failure it emits a failed event and
// returns a *PipelineError without running later stages.
func (p *Pipeline) Execute(ctx context.Context, req creative.AdRequest, onEvent func(Event)) (*creative.AdCreative, error) {
	run := &pipelineRun{
		req:     req.Clone(),
		results: make(map[stage.ID]outcome, len(stage.Order)),
		onEvent: onEvent,
		logger:  logging.FromContext(ctx, p.logger),
		started: time.Now(),
	}
	tasks := p.tasks(run.req)

	var ok bool
	if p.concurrent {
		ok = p.runConcurrent(ctx, run, tasks)
	} else {
		ok = p.runSequential(ctx, run, tasks)
	}
	if !ok {
		return nil, &PipelineError{Failure: run.failure()}
	}
	return run.finish()
}

func (r *pipelineRun) failure() *stage.Failure {
	for _, id := range stage.Order {
		if o, ok := r.results[id]; ok && o.failure != nil {
			return o.failure
		}
	}
	return nil
}

func (p *Pipeline) runSequential(ctx context.Context, run *pipelineRun, tasks []stageTask) bool {
	for _, t := range tasks {
		run.start(t.id)
		sctx, cancel := p.stageContext(ctx)
		begin := time.Now()
		o := t.exec(sctx)
		cancel()
		if !run.record(t.id, o, time.Since(begin)) {
			return false
		}
	}
	return true
}

func (p *Pipeline) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.stageTimeout > 0 {
		return context.WithTimeout(ctx, p.stageTimeout)
	}
	return context.WithCancel(ctx)
}
