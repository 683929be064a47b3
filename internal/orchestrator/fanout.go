package orchestrator

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// runConcurrent starts every stage at once and replays their outcomes in
// stage order. The first failure in that order ends the run and cancels the
// stages after it; their outcomes are never reported.
//
// Stage goroutines never return an error to the group. A group-wide cancel
// would also stop stages earlier in the order, and an earlier stage's own
// failure must win over a later one, so each stage gets its own cancel.
func (p *Pipeline) runConcurrent(ctx context.Context, run *pipelineRun, tasks []stageTask) bool {
	var g errgroup.Group

	outcomes := make([]outcome, len(tasks))
	took := make([]time.Duration, len(tasks))
	done := make([]chan struct{}, len(tasks))
	cancels := make([]context.CancelFunc, len(tasks))

	for i, t := range tasks {
		done[i] = make(chan struct{})
		sctx, cancel := p.stageContext(ctx)
		cancels[i] = cancel

		g.Go(func() error {
			defer close(done[i])
			begin := time.Now()
			outcomes[i] = t.exec(sctx)
			took[i] = time.Since(begin)
			return nil
		})
	}
	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
		_ = g.Wait()
	}()

	for i, t := range tasks {
		run.start(t.id)
		<-done[i]
		if !run.record(t.id, outcomes[i], took[i]) {
			for _, cancel := range cancels[i+1:] {
				cancel()
			}
			return false
		}
	}
	return true
}
