package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/apresai/hydrator/internal/metrics"
	"github.com/apresai/hydrator/internal/progress"
)

// run applies fn to every item and returns outcomes in input order. Items
// not yet started when ctx is done are reported as canceled.
func (p *Pipeline) run(ctx context.Context, items []string, mode Mode, op string, fn func(context.Context, string) Outcome) []Outcome {
	outcomes := make([]Outcome, len(items))
	tr := newTracker(p.progress, op, len(items))

	process := func(i int) {
		if err := ctx.Err(); err != nil {
			outcomes[i] = canceledOutcome(op, items[i], err)
			p.observe(op, outcomes[i], 0)
		} else {
			outcomes[i] = fn(ctx, items[i])
		}
		tr.itemDone(outcomes[i])
	}

	if mode == ModeSequential || len(items) < 2 {
		for i := range items {
			process(i)
		}
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i := range items {
		g.Go(func() error {
			process(i)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func canceledOutcome(op, item string, err error) Outcome {
	out := Outcome{Locator: item, State: StatePending}
	if op == metrics.OpIndex {
		out.Key = item
	}
	return out.fail(StateCanceled, KindCanceled, err)
}

func (p *Pipeline) complete(ctx context.Context, msg string, outcomes []Outcome) {
	ok, failed := Summarize(outcomes)
	p.logger.InfoContext(ctx, "batch complete", "succeeded", ok, "failed", failed)
	p.progress(progress.Event{
		Stage:     progress.StageComplete,
		Message:   msg,
		Percent:   1.0,
		Done:      len(outcomes),
		Total:     len(outcomes),
		Succeeded: ok,
		Failed:    failed,
	})
}

// tracker turns per-item outcomes into progress events.
type tracker struct {
	mu    sync.Mutex
	cb    progress.Callback
	op    string
	total int
	done  int
	start time.Time
}

func newTracker(cb progress.Callback, op string, total int) *tracker {
	return &tracker{cb: cb, op: op, total: total, start: time.Now()}
}

func (t *tracker) itemDone(out Outcome) {
	t.mu.Lock()
	t.done++
	e := progress.NewEvent(stageFor(t.op, out.State), describe(out), t.done, t.total, t.start)
	t.mu.Unlock()

	e.Item = out.Locator
	if out.Err != nil {
		e.Error = out.Err.Err
	}
	t.cb(e)
}

func stageFor(op string, s State) progress.Stage {
	switch s {
	case StateFetchFailed:
		return progress.StageFetch
	case StateExtractFailed:
		return progress.StageExtract
	case StateStored, StateStoreFailed:
		return progress.StageStore
	case StateIndexed, StateIndexFailed:
		return progress.StageIndex
	}
	if op == metrics.OpIndex {
		return progress.StageIndex
	}
	return progress.StageFetch
}

func describe(out Outcome) string {
	switch out.State {
	case StateStored:
		return "Stored " + out.Key
	case StateIndexed:
		return "Indexed " + out.Key
	case StateCanceled:
		return "Canceled " + out.Locator
	}
	if out.Err != nil {
		return fmt.Sprintf("%s failed for %s", out.Err.Kind, out.Locator)
	}
	return string(out.State) + " " + out.Locator
}
