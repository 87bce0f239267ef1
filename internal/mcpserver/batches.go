package mcpserver

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/apresai/hydrator/internal/api"
	"github.com/apresai/hydrator/internal/observability"
	"github.com/apresai/hydrator/internal/pipeline"
)

// BatchStatus is the lifecycle state of an async batch.
type BatchStatus string

const (
	BatchRunning  BatchStatus = "running"
	BatchComplete BatchStatus = "complete"
	BatchFailed   BatchStatus = "failed"
	BatchCanceled BatchStatus = "canceled"
)

// Batch kinds.
const (
	KindIngest = "ingest"
	KindIndex  = "index"
)

// Batch is a snapshot of an async batch.
type Batch struct {
	ID         string      `json:"batch_id"`
	Kind       string      `json:"kind"`
	Status     BatchStatus `json:"status"`
	Total      int         `json:"total"`
	CreatedAt  time.Time   `json:"created_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	// Error is set when the batch could not run at all (e.g. listing failed).
	Error      string        `json:"error,omitempty"`
	StatusCode int           `json:"status_code,omitempty"`
	TraceID    string        `json:"trace_id,omitempty"`
	Result     *api.Response `json:"result,omitempty"`
}

// BatchManager runs pipeline batches in the background and keeps their
// results in memory.
type BatchManager struct {
	pipeline *pipeline.Pipeline
	log      *slog.Logger
	baseCtx  context.Context // cancelled on SIGTERM for graceful shutdown

	mu         sync.Mutex
	batches    map[string]*Batch
	cancels    map[string]context.CancelFunc
	maxBatches int
	running    int
	wg         sync.WaitGroup
}

// NewBatchManager creates a batch manager.
// baseCtx should be cancelled on SIGTERM so running batches stop starting
// new items.
func NewBatchManager(p *pipeline.Pipeline, maxBatches int, logger *slog.Logger, baseCtx context.Context) *BatchManager {
	if maxBatches <= 0 {
		maxBatches = 5
	}
	return &BatchManager{
		pipeline:   p,
		log:        logger,
		baseCtx:    baseCtx,
		batches:    make(map[string]*Batch),
		cancels:    make(map[string]context.CancelFunc),
		maxBatches: maxBatches,
	}
}

// NewBatchID returns a new ULID batch identifier.
func NewBatchID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return id.String(), nil
}

// StartIngest starts an ingest batch and returns its ID immediately.
func (bm *BatchManager) StartIngest(ctx context.Context, locators []string, mode pipeline.Mode, withIndex bool) (string, error) {
	return bm.start(ctx, KindIngest, len(locators), func(ctx context.Context) ([]pipeline.Outcome, error) {
		return bm.pipeline.Ingest(ctx, locators, mode, withIndex), nil
	})
}

// StartIndex starts indexing every stored object in bucket.
func (bm *BatchManager) StartIndex(ctx context.Context, bucket string) (string, error) {
	return bm.start(ctx, KindIndex, 0, func(ctx context.Context) ([]pipeline.Outcome, error) {
		return bm.pipeline.IndexStoredObjects(ctx, bucket)
	})
}

func (bm *BatchManager) start(ctx context.Context, kind string, total int, run func(context.Context) ([]pipeline.Outcome, error)) (string, error) {
	id, err := NewBatchID()
	if err != nil {
		return "", err
	}

	bm.mu.Lock()
	if bm.running >= bm.maxBatches {
		bm.mu.Unlock()
		return "", fmt.Errorf("max concurrent batches reached (%d)", bm.maxBatches)
	}
	bm.running++

	// Derive the batch context from baseCtx rather than the request context,
	// which ends when the response is sent. Keep the request's trace span.
	batchCtx := observability.Reparent(ctx, bm.baseCtx)
	batchCtx, cancel := context.WithCancel(batchCtx)
	bm.cancels[id] = cancel
	bm.batches[id] = &Batch{
		ID:        id,
		Kind:      kind,
		Status:    BatchRunning,
		Total:     total,
		CreatedAt: time.Now().UTC(),
	}
	bm.wg.Add(1)
	bm.mu.Unlock()

	go bm.runBatch(batchCtx, id, kind, run)

	return id, nil
}

func (bm *BatchManager) runBatch(ctx context.Context, id, kind string, run func(context.Context) ([]pipeline.Outcome, error)) {
	ctx, span := tracer.Start(ctx, "batch.run",
		trace.WithAttributes(
			attribute.String("batch_id", id),
			attribute.String("kind", kind),
		),
	)
	defer span.End()
	defer bm.wg.Done()

	log := bm.log.With("batch_id", id, "kind", kind)
	start := time.Now()

	if traceID := observability.TraceID(ctx); traceID != "" {
		bm.mu.Lock()
		bm.batches[id].TraceID = traceID
		bm.mu.Unlock()
	}

	outcomes, err := run(ctx)

	bm.mu.Lock()
	defer bm.mu.Unlock()
	if cancel, ok := bm.cancels[id]; ok {
		cancel()
		delete(bm.cancels, id)
	}
	bm.running--

	b := bm.batches[id]
	now := time.Now().UTC()
	b.FinishedAt = &now

	if err != nil {
		b.Status = BatchFailed
		b.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch failed")
		log.ErrorContext(ctx, "Batch failed", "error", err)
		return
	}

	resp := api.NewResponse(bm.pipeline.Bucket(), outcomes)
	b.Result = &resp
	b.Total = len(outcomes)
	b.StatusCode = api.StatusCode(outcomes)
	b.Status = BatchComplete
	if ctx.Err() != nil && hasCanceled(outcomes) {
		b.Status = BatchCanceled
	}

	span.SetAttributes(
		attribute.Int("succeeded", resp.Succeeded),
		attribute.Int("failed", resp.Failed),
	)
	span.SetStatus(codes.Ok, string(b.Status))
	log.InfoContext(ctx, "Batch finished",
		"status", string(b.Status),
		"succeeded", resp.Succeeded,
		"failed", resp.Failed,
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
}

func hasCanceled(outcomes []pipeline.Outcome) bool {
	for _, o := range outcomes {
		if o.State == pipeline.StateCanceled {
			return true
		}
	}
	return false
}

// Get returns a copy of the batch with the given ID.
func (bm *BatchManager) Get(id string) (Batch, bool) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	b, ok := bm.batches[id]
	if !ok {
		return Batch{}, false
	}
	return *b, true
}

// List returns batches newest first, at most limit.
func (bm *BatchManager) List(limit int) []Batch {
	bm.mu.Lock()
	out := make([]Batch, 0, len(bm.batches))
	for _, b := range bm.batches {
		out = append(out, *b)
	}
	bm.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Cancel stops a running batch from starting new items.
func (bm *BatchManager) Cancel(id string) bool {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	cancel, ok := bm.cancels[id]
	if ok {
		cancel()
	}
	return ok
}

// Wait blocks until every running batch has finished or ctx is done.
func (bm *BatchManager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		bm.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
