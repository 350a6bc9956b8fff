package workload

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/torosent/crankstore/internal/runner"
)

// ErrStageExhausted is reported when a stage requester is asked for more
// operations than it has items.
var ErrStageExhausted = errors.New("workload: stage has no items left")

// Stage is a preparation or teardown pass that performs Op once per item.
// Run it with runner.Options.TotalOps set to Items.
type Stage struct {
	Name      string
	Op        string
	Items     int
	Requester runner.Requester
}

// Init creates every container.
func (w *Workload) Init() Stage {
	return w.containerStage(OpInit)
}

// Prepare writes every object.
func (w *Workload) Prepare() Stage {
	return w.objectStage(OpPrepare)
}

// Cleanup deletes every object.
func (w *Workload) Cleanup() Stage {
	return w.objectStage(OpCleanup)
}

// Dispose deletes every container.
func (w *Workload) Dispose() Stage {
	return w.containerStage(OpDispose)
}

func (w *Workload) containerStage(op string) Stage {
	items := w.cfg.Containers.Len()
	return Stage{
		Name:  op,
		Op:    op,
		Items: items,
		Requester: &walkRequester{w: w, op: op, items: items, at: func(i int) (string, string) {
			return ContainerName(w.cfg.Prefix, w.cfg.Containers.At(i)), ""
		}},
	}
}

func (w *Workload) objectStage(op string) Stage {
	perContainer := w.cfg.Objects.Len()
	items := w.cfg.Containers.Len() * perContainer
	return Stage{
		Name:  op,
		Op:    op,
		Items: items,
		Requester: &walkRequester{w: w, op: op, items: items, at: func(i int) (string, string) {
			return ContainerName(w.cfg.Prefix, w.cfg.Containers.At(i/perContainer)),
				ObjectName(w.cfg.Prefix, w.cfg.Objects.At(i%perContainer))
		}},
	}
}

// walkRequester hands out items in order from a shared counter so that
// concurrent workers cover each item exactly once.
type walkRequester struct {
	w     *Workload
	op    string
	items int
	next  atomic.Int64
	at    func(i int) (container, object string)
}

func (r *walkRequester) Do(ctx context.Context, worker int) runner.Sample {
	return r.Plan(ctx, worker)(ctx)
}

// Plan claims the next item. Repeating the returned Attempt retries that item.
func (r *walkRequester) Plan(_ context.Context, worker int) runner.Attempt {
	i := int(r.next.Add(1) - 1)
	if i >= r.items {
		return func(context.Context) runner.Sample {
			return runner.Sample{Op: r.op, Err: ErrStageExhausted}
		}
	}
	container, object := r.at(i)
	return func(ctx context.Context) runner.Sample {
		return r.w.execute(ctx, worker, r.op, container, object)
	}
}
