package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/apresai/hydrator/internal/api"
	"github.com/apresai/hydrator/internal/ingest"
	"github.com/apresai/hydrator/internal/objstore"
	"github.com/apresai/hydrator/internal/pipeline"
)

var tracer = otel.Tracer("hydrator-mcp")

// ToolDefs returns the MCP tool definitions.
func ToolDefs() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "ingest_urls",
			Description: "Fetch each URL, extract and normalize its text, and store it in the bucket as <sanitized-url>.txt. Returns per-URL results, or a batch ID when async is true. Use get_batch to check an async batch.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"urls": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "URLs to ingest",
					},
					"index": map[string]any{
						"type":        "boolean",
						"description": "Also submit the stored objects to the document index",
						"default":     false,
					},
					"mode": map[string]any{
						"type":        "string",
						"description": "Batch mode: sequential or concurrent",
						"default":     "concurrent",
					},
					"async": map[string]any{
						"type":        "boolean",
						"description": "Run in the background and return a batch ID",
						"default":     false,
					},
				},
				Required: []string{"urls"},
			},
		},
		{
			Name:        "get_batch",
			Description: "Get the status and per-item results of an async batch by ID.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"batch_id": map[string]any{
						"type":        "string",
						"description": "The batch ID returned from ingest_urls or index_bucket",
					},
				},
				Required: []string{"batch_id"},
			},
		},
		{
			Name:        "cancel_batch",
			Description: "Stop a running async batch. Items already in flight finish their writes; items not yet started are reported as canceled.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"batch_id": map[string]any{
						"type":        "string",
						"description": "The batch ID to cancel",
					},
				},
				Required: []string{"batch_id"},
			},
		},
		{
			Name:        "index_bucket",
			Description: "Submit every stored .txt object in the bucket to the document index. Indexing the same object twice creates two records.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"bucket": map[string]any{
						"type":        "string",
						"description": "Bucket to index (defaults to the configured bucket)",
					},
					"async": map[string]any{
						"type":        "boolean",
						"description": "Run in the background and return a batch ID",
						"default":     false,
					},
				},
			},
		},
		{
			Name:        "list_objects",
			Description: "List stored text objects in the bucket.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"prefix": map[string]any{
						"type":        "string",
						"description": "Only return keys with this prefix",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of results (default 100)",
						"default":     100,
					},
				},
			},
		},
	}
}

// Handlers contains tool handler implementations.
type Handlers struct {
	batches  *BatchManager
	pipeline *pipeline.Pipeline
	store    objstore.Store
	log      *slog.Logger
}

// NewHandlers creates tool handlers.
func NewHandlers(batches *BatchManager, p *pipeline.Pipeline, store objstore.Store, logger *slog.Logger) *Handlers {
	return &Handlers{batches: batches, pipeline: p, store: store, log: logger}
}

// HandleIngestURLs ingests a batch of URLs.
func (h *Handlers) HandleIngestURLs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.ingest_urls")
	defer span.End()

	body := api.Request{
		URLs:  parseStringSlice(req, "urls"),
		Index: parseBoolParam(req, "index", false),
	}
	async := parseBoolParam(req, "async", false)

	if err := body.Validate(); err != nil {
		span.SetStatus(codes.Error, "missing urls")
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode, err := pipeline.ParseMode(mcp.ParseString(req, "mode", "concurrent"))
	if err != nil {
		span.SetStatus(codes.Error, "invalid mode")
		return mcp.NewToolResultError(err.Error()), nil
	}

	span.SetAttributes(
		attribute.Int("url_count", len(body.URLs)),
		attribute.Bool("index", body.Index),
		attribute.Bool("async", async),
		attribute.String("mode", mode.String()),
	)

	if async {
		id, err := h.batches.StartIngest(ctx, body.URLs, mode, body.Index)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "start batch failed")
			return mcp.NewToolResultError(fmt.Sprintf("failed to start batch: %v", err)), nil
		}
		span.SetAttributes(attribute.String("batch_id", id))
		h.callerLog(ctx).InfoContext(ctx, "Ingest batch started", "batch_id", id, "count", len(body.URLs))
		return jsonResult(map[string]any{
			"batch_id": id,
			"status":   BatchRunning,
			"message":  "Ingest started. Use get_batch with this batch_id to check progress.",
		})
	}

	outcomes := h.pipeline.Ingest(ctx, body.URLs, mode, body.Index)
	return h.batchResult(span, outcomes)
}

// HandleGetBatch returns an async batch.
func (h *Handlers) HandleGetBatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.get_batch")
	defer span.End()

	id := mcp.ParseString(req, "batch_id", "")
	if id == "" {
		span.SetStatus(codes.Error, "missing batch_id")
		return mcp.NewToolResultError("batch_id is required"), nil
	}
	span.SetAttributes(attribute.String("batch_id", id))

	b, ok := h.batches.Get(id)
	if !ok {
		span.SetStatus(codes.Error, "not found")
		return mcp.NewToolResultError(fmt.Sprintf("batch %s not found", id)), nil
	}
	return jsonResult(b)
}

// HandleCancelBatch cancels a running async batch.
func (h *Handlers) HandleCancelBatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.cancel_batch")
	defer span.End()

	id := mcp.ParseString(req, "batch_id", "")
	if id == "" {
		span.SetStatus(codes.Error, "missing batch_id")
		return mcp.NewToolResultError("batch_id is required"), nil
	}
	span.SetAttributes(attribute.String("batch_id", id))

	if !h.batches.Cancel(id) {
		span.SetStatus(codes.Error, "not running")
		return mcp.NewToolResultError(fmt.Sprintf("batch %s is not running", id)), nil
	}
	h.callerLog(ctx).InfoContext(ctx, "Batch cancel requested", "batch_id", id)
	return jsonResult(map[string]any{
		"batch_id": id,
		"status":   "canceling",
		"message":  "Cancel requested. Use get_batch to see the final status.",
	})
}

// HandleIndexBucket indexes every stored object in a bucket.
func (h *Handlers) HandleIndexBucket(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.index_bucket")
	defer span.End()

	bucket := mcp.ParseString(req, "bucket", h.pipeline.Bucket())
	span.SetAttributes(attribute.String("bucket", bucket))

	if parseBoolParam(req, "async", false) {
		id, err := h.batches.StartIndex(ctx, bucket)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "start batch failed")
			return mcp.NewToolResultError(fmt.Sprintf("failed to start batch: %v", err)), nil
		}
		span.SetAttributes(attribute.String("batch_id", id))
		h.callerLog(ctx).InfoContext(ctx, "Index batch started", "batch_id", id, "bucket", bucket)
		return jsonResult(map[string]any{
			"batch_id": id,
			"status":   BatchRunning,
			"message":  "Indexing started. Use get_batch with this batch_id to check progress.",
		})
	}

	outcomes, err := h.pipeline.IndexStoredObjects(ctx, bucket)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to index bucket: %v", err)), nil
	}
	return h.batchResult(span, outcomes)
}

// HandleListObjects lists stored text objects.
func (h *Handlers) HandleListObjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.list_objects")
	defer span.End()

	prefix := mcp.ParseString(req, "prefix", "")
	limit := parseIntParam(req, "limit", 100)
	bucket := h.pipeline.Bucket()

	keys, err := h.store.List(ctx, bucket, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list objects failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to list objects: %v", err)), nil
	}

	objects := make([]string, 0, len(keys))
	for _, k := range keys {
		if !ingest.IsObjectKey(k) || !strings.HasPrefix(k, prefix) {
			continue
		}
		if limit > 0 && len(objects) >= limit {
			break
		}
		objects = append(objects, k)
	}
	span.SetAttributes(attribute.Int("result_count", len(objects)))

	return jsonResult(map[string]any{
		"bucket":  bucket,
		"objects": objects,
		"count":   len(objects),
	})
}

// callerLog tags log lines with the API key prefix of an authenticated caller.
func (h *Handlers) callerLog(ctx context.Context) *slog.Logger {
	if auth := AuthFromContext(ctx); auth.Authenticated {
		return h.log.With("key_prefix", auth.KeyPrefix)
	}
	return h.log
}

func (h *Handlers) batchResult(span trace.Span, outcomes []pipeline.Outcome) (*mcp.CallToolResult, error) {
	resp := api.NewResponse(h.pipeline.Bucket(), outcomes)
	status := api.StatusCode(outcomes)
	span.SetAttributes(
		attribute.Int("succeeded", resp.Succeeded),
		attribute.Int("failed", resp.Failed),
		attribute.Int("status_code", status),
	)
	if resp.Failed > 0 {
		span.SetStatus(codes.Error, resp.Message)
	}
	return jsonResult(map[string]any{
		"status_code": status,
		"result":      resp,
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func parseIntParam(req mcp.CallToolRequest, key string, defaultVal int) int {
	args := req.GetArguments()
	if args == nil {
		return defaultVal
	}
	raw, ok := args[key]
	if !ok {
		return defaultVal
	}
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultVal
	}
}

func parseBoolParam(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	args := req.GetArguments()
	if args == nil {
		return defaultVal
	}
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return defaultVal
	}
}

// parseStringSlice accepts a JSON array of strings or a single string with
// comma or newline separated values.
func parseStringSlice(req mcp.CallToolRequest, key string) []string {
	args := req.GetArguments()
	if args == nil {
		return nil
	}
	switch v := args[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	case string:
		return strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '\n' })
	}
	return nil
}
