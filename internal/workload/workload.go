package workload

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/crankstore/internal/httpclient"
	"github.com/torosent/crankstore/internal/runner"
	"github.com/torosent/crankstore/internal/storage"
	"github.com/torosent/crankstore/internal/tracing"
)

// Config describes the object space and operation mix.
type Config struct {
	Prefix     string
	Containers Range
	Objects    Range
	ObjectSize int64          // bytes per written object
	Mix        map[string]int // operation weights for the main stage
	Seed       int64          // payload and selection seed
}

// Workload binds a Config to a storage backend.
type Workload struct {
	cfg      Config
	store    storage.Storage
	mix      *Mix
	payloads *Payloads
	tracer   trace.Tracer
}

// New validates cfg and creates a Workload. tracer may be nil.
func New(cfg Config, store storage.Storage, tracer trace.Tracer) (*Workload, error) {
	if store == nil {
		return nil, fmt.Errorf("workload: storage is required")
	}
	if cfg.Containers.Len() <= 0 {
		return nil, fmt.Errorf("workload: container range %d..%d is empty", cfg.Containers.Min, cfg.Containers.Max)
	}
	if cfg.Objects.Len() <= 0 {
		return nil, fmt.Errorf("workload: object range %d..%d is empty", cfg.Objects.Min, cfg.Objects.Max)
	}
	if cfg.ObjectSize < 0 {
		return nil, fmt.Errorf("workload: object size must be >= 0")
	}
	mix, err := NewMix(cfg.Mix)
	if err != nil {
		return nil, fmt.Errorf("workload: %w", err)
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("crankstore")
	}
	return &Workload{
		cfg:      cfg,
		store:    store,
		mix:      mix,
		payloads: NewPayloads(cfg.Seed),
		tracer:   tracer,
	}, nil
}

// Mix returns the main stage operation mix.
func (w *Workload) Mix() *Mix { return w.mix }

// Requester returns the main stage requester for up to workers goroutines.
// Each worker draws from its own random source.
func (w *Workload) Requester(workers int) runner.Requester {
	if workers < 1 {
		workers = 1
	}
	rngs := make([]*rand.Rand, workers)
	for i := range rngs {
		rngs[i] = rand.New(rand.NewSource(w.cfg.Seed + int64(i) + 1))
	}
	return &mixRequester{w: w, rngs: rngs}
}

type mixRequester struct {
	w    *Workload
	rngs []*rand.Rand // indexed by worker, each used by one goroutine
}

func (r *mixRequester) Do(ctx context.Context, worker int) runner.Sample {
	return r.Plan(ctx, worker)(ctx)
}

// Plan draws the operation and object for one permit.
func (r *mixRequester) Plan(_ context.Context, worker int) runner.Attempt {
	rnd := r.rngs[worker%len(r.rngs)]
	op := r.w.mix.Pick(rnd)
	container := ContainerName(r.w.cfg.Prefix, r.w.cfg.Containers.Draw(rnd))
	object := ObjectName(r.w.cfg.Prefix, r.w.cfg.Objects.Draw(rnd))
	return func(ctx context.Context) runner.Sample {
		return r.w.execute(ctx, worker, op, container, object)
	}
}

// execute times one storage operation.
func (w *Workload) execute(ctx context.Context, worker int, op, container, object string) runner.Sample {
	ctx, span := tracing.StartOperationSpan(ctx, w.tracer, op, container, object)
	span.SetAttributes(tracing.AttrWorker.Int(worker))

	var (
		n   int64
		err error
	)
	start := time.Now()
	switch op {
	case OpRead:
		var body io.ReadCloser
		body, err = w.store.GetObject(ctx, container, object)
		if err == nil {
			n, err = httpclient.Drain(body)
			err = storage.Classify("read object", err)
		}
	case OpWrite, OpPrepare:
		size := w.cfg.ObjectSize
		err = w.store.CreateObject(ctx, container, object, w.payloads.Reader(container, object, size), size)
		if err == nil {
			n = size
		}
	case OpDelete, OpCleanup:
		err = w.store.DeleteObject(ctx, container, object)
	case OpHead:
		_, err = w.store.GetMetadata(ctx, container, object)
	case OpUpdate:
		err = w.store.SetMetadata(ctx, container, object, map[string]string{
			"worker":  strconv.Itoa(worker),
			"updated": strconv.FormatInt(start.UnixNano(), 10),
		})
	case OpInit:
		err = w.store.CreateContainer(ctx, container)
	case OpDispose:
		err = w.store.DeleteContainer(ctx, container)
	default:
		err = fmt.Errorf("workload: unknown operation %q", op)
	}
	elapsed := time.Since(start)

	tracing.EndSpan(span, err, tracing.AttrBytes.Int64(n))
	return runner.Sample{Op: op, Elapsed: elapsed, Bytes: n, Err: err}
}
