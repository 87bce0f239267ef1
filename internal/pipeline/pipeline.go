// Package pipeline turns locators into normalized text objects in a bucket
// and submits stored objects to a document index.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/apresai/hydrator/internal/fetch"
	"github.com/apresai/hydrator/internal/index"
	"github.com/apresai/hydrator/internal/ingest"
	"github.com/apresai/hydrator/internal/metrics"
	"github.com/apresai/hydrator/internal/notify"
	"github.com/apresai/hydrator/internal/objstore"
	"github.com/apresai/hydrator/internal/progress"
)

var tracer = otel.Tracer("hydrator-pipeline")

// DefaultConcurrency bounds in-flight items in ModeConcurrent.
const DefaultConcurrency = 8

// Deps are the collaborators a Pipeline is built from. Fetcher, Extractor,
// Store and Indexer are required.
type Deps struct {
	Fetcher   fetch.Fetcher
	Extractor ingest.Extractor
	Store     objstore.Store
	Indexer   index.Indexer
	Logger    *slog.Logger
	Metrics   *metrics.Recorder
	Notifier  notify.Notifier
	Progress  progress.Callback
}

// Options configure a Pipeline.
type Options struct {
	Bucket      string
	ClassName   string
	Concurrency int
	// IndexMode schedules IndexStoredObjects and IndexKeys.
	IndexMode Mode
}

// Pipeline runs fetch, extract, normalize, store and index for batches of
// locators. It is safe for concurrent use.
type Pipeline struct {
	fetcher   fetch.Fetcher
	extractor ingest.Extractor
	store     objstore.Store
	indexer   index.Indexer
	logger    *slog.Logger
	metrics   *metrics.Recorder
	notifier  notify.Notifier
	progress  progress.Callback
	opts      Options
}

// New validates deps and opts and returns a Pipeline.
func New(deps Deps, opts Options) (*Pipeline, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("pipeline: fetcher is required")
	case deps.Extractor == nil:
		return nil, errors.New("pipeline: extractor is required")
	case deps.Store == nil:
		return nil, errors.New("pipeline: object store is required")
	case deps.Indexer == nil:
		return nil, errors.New("pipeline: indexer is required")
	case opts.Bucket == "":
		return nil, errors.New("pipeline: bucket is required")
	}

	if opts.ClassName == "" {
		opts.ClassName = index.DefaultClass
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}

	p := &Pipeline{
		fetcher:   deps.Fetcher,
		extractor: deps.Extractor,
		store:     deps.Store,
		indexer:   deps.Indexer,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		notifier:  deps.Notifier,
		progress:  deps.Progress,
		opts:      opts,
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.notifier == nil {
		p.notifier = notify.Nop{}
	}
	if p.progress == nil {
		p.progress = progress.NopCallback
	}
	return p, nil
}

// Bucket returns the bucket objects are written to.
func (p *Pipeline) Bucket() string { return p.opts.Bucket }

// EnsureBucket creates the target bucket if it does not exist.
func (p *Pipeline) EnsureBucket(ctx context.Context) error {
	created, err := objstore.EnsureBucket(ctx, p.store, p.opts.Bucket)
	if err != nil {
		return fmt.Errorf("ensure bucket %s: %w", p.opts.Bucket, err)
	}
	if created {
		p.logger.InfoContext(ctx, "bucket created", "bucket", p.opts.Bucket)
	}
	return nil
}

// IngestOne fetches, extracts, normalizes and stores a single locator.
func (p *Pipeline) IngestOne(ctx context.Context, locator string) Outcome {
	ctx, span := tracer.Start(ctx, "pipeline.ingest",
		trace.WithAttributes(attribute.String("locator", locator)),
	)
	defer span.End()

	start := time.Now()
	done := p.metrics.Start()
	out := p.ingest(ctx, locator)
	done()
	p.observe(metrics.OpIngest, out, time.Since(start))

	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, string(out.Err.Kind)+" failed")
		p.logger.WarnContext(ctx, "ingest failed",
			"locator", locator,
			"kind", string(out.Err.Kind),
			"error", out.Err.Err,
		)
		return out
	}

	span.SetAttributes(attribute.String("key", out.Key), attribute.Int("bytes", out.Bytes))
	span.SetStatus(codes.Ok, "stored")
	p.logger.InfoContext(ctx, "ingested",
		"locator", locator,
		"key", out.Key,
		"bucket", p.opts.Bucket,
		"bytes", out.Bytes,
	)
	return out
}

func (p *Pipeline) ingest(ctx context.Context, locator string) Outcome {
	out := Outcome{Locator: locator, State: StatePending}

	raw, err := p.fetcher.Fetch(ctx, locator)
	if err != nil {
		if isCanceled(ctx, err) {
			return out.fail(StateCanceled, KindCanceled, err)
		}
		return out.fail(StateFetchFailed, KindFetch, err)
	}
	out.State = StateFetched

	extracted, err := p.extractor.Extract(ctx, raw)
	if err != nil {
		return out.fail(StateExtractFailed, KindExtract, err)
	}
	out.State = StateExtracted

	text := ingest.Normalize(extracted.Text())
	out.State = StateNormalized
	out.Key = ingest.ObjectKey(locator)

	// A write that has started is not abandoned on cancellation.
	writeCtx := context.WithoutCancel(ctx)
	if err := p.store.Put(writeCtx, p.opts.Bucket, out.Key, []byte(text)); err != nil {
		return out.fail(StateStoreFailed, KindStore, err)
	}
	out.State = StateStored
	out.Bytes = len(text)
	p.metrics.AddStoredBytes(out.Bytes)

	words := ingest.WordCount(text)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("words", words))
	p.notify(writeCtx, notify.Event{
		Type:    notify.TypeStored,
		Bucket:  p.opts.Bucket,
		Key:     out.Key,
		Locator: locator,
		Bytes:   out.Bytes,
		Words:   words,
	})
	return out
}

// IngestMany ingests every locator. Outcomes are returned in input order and
// a failure for one locator never affects another.
func (p *Pipeline) IngestMany(ctx context.Context, locators []string, mode Mode) []Outcome {
	p.logger.InfoContext(ctx, "ingest batch started",
		"count", len(locators),
		"mode", mode.String(),
		"bucket", p.opts.Bucket,
	)
	outcomes := p.run(ctx, locators, mode, metrics.OpIngest, p.IngestOne)
	p.complete(ctx, "Ingest complete", outcomes)
	return outcomes
}

// IndexStoredObjects submits every stored text object in bucket to the
// index. An empty bucket means the pipeline's bucket. The error is non-nil
// only when the bucket cannot be listed.
func (p *Pipeline) IndexStoredObjects(ctx context.Context, bucket string) ([]Outcome, error) {
	if bucket == "" {
		bucket = p.opts.Bucket
	}

	keys, err := p.store.List(ctx, bucket, true)
	if err != nil {
		p.logger.ErrorContext(ctx, "list objects failed", "bucket", bucket, "error", err)
		return nil, fmt.Errorf("list bucket %s: %w", bucket, err)
	}

	var textKeys []string
	for _, k := range keys {
		if ingest.IsObjectKey(k) {
			textKeys = append(textKeys, k)
		}
	}
	return p.indexKeys(ctx, bucket, textKeys, p.opts.IndexMode), nil
}

// IndexKeys submits the given keys from the pipeline's bucket to the index.
func (p *Pipeline) IndexKeys(ctx context.Context, keys []string) []Outcome {
	return p.indexKeys(ctx, p.opts.Bucket, keys, p.opts.IndexMode)
}

func (p *Pipeline) indexKeys(ctx context.Context, bucket string, keys []string, mode Mode) []Outcome {
	p.logger.InfoContext(ctx, "index batch started",
		"count", len(keys),
		"bucket", bucket,
		"class", p.opts.ClassName,
	)
	outcomes := p.run(ctx, keys, mode, metrics.OpIndex, func(ctx context.Context, key string) Outcome {
		return p.indexOne(ctx, bucket, key)
	})
	p.complete(ctx, "Index complete", outcomes)
	return outcomes
}

func (p *Pipeline) indexOne(ctx context.Context, bucket, key string) Outcome {
	ctx, span := tracer.Start(ctx, "pipeline.index",
		trace.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.String("key", key),
		),
	)
	defer span.End()

	start := time.Now()
	done := p.metrics.Start()
	out := p.index(ctx, bucket, key)
	done()
	p.observe(metrics.OpIndex, out, time.Since(start))

	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, "index failed")
		p.logger.WarnContext(ctx, "index failed", "key", key, "bucket", bucket, "error", out.Err.Err)
		return out
	}

	span.SetAttributes(attribute.String("record_id", out.RecordID))
	span.SetStatus(codes.Ok, "indexed")
	p.logger.InfoContext(ctx, "indexed", "key", key, "bucket", bucket, "record_id", out.RecordID)
	return out
}

func (p *Pipeline) index(ctx context.Context, bucket, key string) Outcome {
	out := Outcome{Locator: key, Key: key, State: StateStored}

	data, err := p.store.Get(ctx, bucket, key)
	if err != nil {
		if isCanceled(ctx, err) {
			return out.fail(StateCanceled, KindCanceled, err)
		}
		// A read failure belongs to the store even though the item was being indexed.
		return out.fail(StateIndexFailed, KindStore, fmt.Errorf("get object: %w", err))
	}

	// Stored text is already normalized.
	rec := index.Record{Source: key, Content: string(data)}
	submitCtx := context.WithoutCancel(ctx)
	id, err := p.indexer.CreateRecord(submitCtx, p.opts.ClassName, rec)
	if err != nil {
		return out.fail(StateIndexFailed, KindIndex, fmt.Errorf("create record: %w", err))
	}
	out.State = StateIndexed
	out.RecordID = id
	out.Bytes = len(data)

	p.notify(submitCtx, notify.Event{
		Type:     notify.TypeIndexed,
		Bucket:   bucket,
		Key:      key,
		RecordID: id,
	})
	return out
}

// Ingest ingests locators and, when withIndex is set, submits the objects this
// batch stored to the index. Index results are merged into the ingest
// outcomes. A failed index submission never removes the stored object.
func (p *Pipeline) Ingest(ctx context.Context, locators []string, mode Mode, withIndex bool) []Outcome {
	outcomes := p.IngestMany(ctx, locators, mode)
	if !withIndex {
		return outcomes
	}

	keys := StoredKeys(outcomes)
	if len(keys) == 0 {
		return outcomes
	}

	byKey := make(map[string]Outcome, len(keys))
	for _, o := range p.indexKeys(ctx, p.opts.Bucket, keys, mode) {
		byKey[o.Key] = o
	}
	for i, o := range outcomes {
		if o.State != StateStored {
			continue
		}
		idx, ok := byKey[o.Key]
		if !ok {
			continue
		}
		o.State = idx.State
		o.RecordID = idx.RecordID
		if idx.Err != nil {
			o.Err = &Error{Kind: idx.Err.Kind, Locator: o.Locator, Key: o.Key, Err: idx.Err.Err}
		}
		outcomes[i] = o
	}
	return outcomes
}

func (p *Pipeline) observe(op string, out Outcome, d time.Duration) {
	result := "ok"
	if out.Err != nil {
		result = string(out.Err.Kind)
	}
	p.metrics.Observe(op, result, d)
}

func (p *Pipeline) notify(ctx context.Context, evt notify.Event) {
	evt.At = time.Now().UTC()
	if err := p.notifier.Notify(ctx, evt); err != nil {
		p.logger.WarnContext(ctx, "notify failed", "type", evt.Type, "key", evt.Key, "error", err)
	}
}
