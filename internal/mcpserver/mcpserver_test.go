package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/hydrator/internal/fetch"
	"github.com/apresai/hydrator/internal/index"
	"github.com/apresai/hydrator/internal/ingest"
	"github.com/apresai/hydrator/internal/objstore"
	"github.com/apresai/hydrator/internal/pipeline"
)

const testBucket = "docs"

type harness struct {
	srv      *httptest.Server
	store    *objstore.MemoryStore
	index    *index.MemoryIndex
	pipeline *pipeline.Pipeline
	batches  *BatchManager
	handlers *Handlers
	// release unblocks requests to /slow.
	release chan struct{}
}

func newHarness(t *testing.T, maxBatches int) *harness {
	t.Helper()
	h := &harness{
		store:   objstore.NewMemoryStore(),
		index:   index.NewMemoryIndex(),
		release: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/post", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "hello   world")
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-h.release:
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "slow body")
	})
	h.srv = httptest.NewServer(mux)
	t.Cleanup(h.srv.Close)

	logger := slog.New(slog.DiscardHandler)
	p, err := pipeline.New(pipeline.Deps{
		Fetcher:   fetch.New(nil),
		Extractor: ingest.NewAutoExtractor(ingest.Options{}),
		Store:     h.store,
		Indexer:   h.index,
		Logger:    logger,
	}, pipeline.Options{Bucket: testBucket})
	require.NoError(t, err)
	require.NoError(t, p.EnsureBucket(context.Background()))

	h.pipeline = p
	h.batches = NewBatchManager(p, maxBatches, logger, context.Background())
	h.handlers = NewHandlers(h.batches, p, h.store, logger)
	return h
}

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultJSON(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	require.False(t, res.IsError, "tool error: %s", text.Text)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func waitIdle(t *testing.T, bm *BatchManager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, bm.Wait(ctx))
}

func TestToolDefs(t *testing.T) {
	tools := ToolDefs()
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"ingest_urls", "get_batch", "cancel_batch", "index_bucket", "list_objects"}, names)
}

func TestHandleIngestURLs_Sync(t *testing.T) {
	h := newHarness(t, 2)
	res, err := h.handlers.HandleIngestURLs(context.Background(), callTool("ingest_urls", map[string]any{
		"urls":  []any{h.srv.URL + "/post", h.srv.URL + "/missing"},
		"index": true,
	}))
	require.NoError(t, err)

	out := resultJSON(t, res)
	assert.Equal(t, float64(http.StatusBadRequest), out["status_code"])
	result := out["result"].(map[string]any)
	assert.Equal(t, float64(1), result["succeeded"])
	assert.Equal(t, float64(1), result["failed"])

	assert.Equal(t, 1, h.store.Len(testBucket))
	assert.Len(t, h.index.Records(), 1)
}

func TestHandleIngestURLs_MissingURLs(t *testing.T) {
	h := newHarness(t, 2)
	res, err := h.handlers.HandleIngestURLs(context.Background(), callTool("ingest_urls", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleIngestURLs_AsyncAndGetBatch(t *testing.T) {
	h := newHarness(t, 2)
	res, err := h.handlers.HandleIngestURLs(context.Background(), callTool("ingest_urls", map[string]any{
		"urls":  h.srv.URL + "/post",
		"async": true,
	}))
	require.NoError(t, err)
	id, _ := resultJSON(t, res)["batch_id"].(string)
	require.Len(t, id, 26)

	waitIdle(t, h.batches)

	res, err = h.handlers.HandleGetBatch(context.Background(), callTool("get_batch", map[string]any{"batch_id": id}))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, string(BatchComplete), out["status"])
	assert.Equal(t, float64(http.StatusOK), out["status_code"])
	assert.Equal(t, float64(1), out["total"])
}

func TestHandleGetBatch_NotFound(t *testing.T) {
	h := newHarness(t, 2)
	res, err := h.handlers.HandleGetBatch(context.Background(), callTool("get_batch", map[string]any{"batch_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleIndexBucket(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	require.NoError(t, h.store.Put(ctx, testBucket, "a.example.txt", []byte("alpha")))

	res, err := h.handlers.HandleIndexBucket(ctx, callTool("index_bucket", nil))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, float64(http.StatusOK), out["status_code"])
	assert.Len(t, h.index.BySource("a.example.txt"), 1)

	res, err = h.handlers.HandleIndexBucket(ctx, callTool("index_bucket", map[string]any{"bucket": "absent"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleListObjects(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	for _, k := range []string{"a.example.txt", "b.example.txt", "b.example.png"} {
		require.NoError(t, h.store.Put(ctx, testBucket, k, []byte(k)))
	}

	res, err := h.handlers.HandleListObjects(ctx, callTool("list_objects", map[string]any{"prefix": "b."}))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, []any{"b.example.txt"}, out["objects"])
}

func TestBatchManager_Limit(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()

	id, err := h.batches.StartIngest(ctx, []string{h.srv.URL + "/slow"}, pipeline.ModeSequential, false)
	require.NoError(t, err)

	_, err = h.batches.StartIngest(ctx, []string{h.srv.URL + "/post"}, pipeline.ModeSequential, false)
	assert.ErrorContains(t, err, "max concurrent batches")

	close(h.release)
	waitIdle(t, h.batches)

	b, ok := h.batches.Get(id)
	require.True(t, ok)
	assert.Equal(t, BatchComplete, b.Status)
	require.NotNil(t, b.FinishedAt)

	_, err = h.batches.StartIngest(ctx, []string{h.srv.URL + "/post"}, pipeline.ModeSequential, false)
	assert.NoError(t, err)
	waitIdle(t, h.batches)
	assert.Len(t, h.batches.List(0), 2)
	assert.Len(t, h.batches.List(1), 1)
}

func TestBatchManager_Cancel(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	id, err := h.batches.StartIngest(ctx, []string{h.srv.URL + "/slow", h.srv.URL + "/post"}, pipeline.ModeSequential, false)
	require.NoError(t, err)

	assert.True(t, h.batches.Cancel(id))
	waitIdle(t, h.batches)

	b, ok := h.batches.Get(id)
	require.True(t, ok)
	assert.Equal(t, BatchCanceled, b.Status)
	require.NotNil(t, b.Result)
	assert.Equal(t, "canceled", b.Result.Results[1].State)
	assert.False(t, h.batches.Cancel(id))
}

func TestHandleCancelBatch(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	id, err := h.batches.StartIngest(ctx, []string{h.srv.URL + "/slow", h.srv.URL + "/post"}, pipeline.ModeSequential, false)
	require.NoError(t, err)

	res, err := h.handlers.HandleCancelBatch(ctx, callTool("cancel_batch", map[string]any{"batch_id": id}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, "canceling", resultJSON(t, res)["status"])

	waitIdle(t, h.batches)
	b, ok := h.batches.Get(id)
	require.True(t, ok)
	assert.Equal(t, BatchCanceled, b.Status)
	assert.Equal(t, 0, h.store.Len(testBucket))

	res, err = h.handlers.HandleCancelBatch(ctx, callTool("cancel_batch", map[string]any{"batch_id": id}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = h.handlers.HandleCancelBatch(ctx, callTool("cancel_batch", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestBatchManager_IndexListFailure(t *testing.T) {
	h := newHarness(t, 2)
	id, err := h.batches.StartIndex(context.Background(), "absent")
	require.NoError(t, err)
	waitIdle(t, h.batches)

	b, _ := h.batches.Get(id)
	assert.Equal(t, BatchFailed, b.Status)
	assert.Contains(t, b.Error, "absent")
}

func TestRequireAPIKey(t *testing.T) {
	var seen AuthResult
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = AuthFromContext(r.Context())
	})
	handler := RequireAPIKey("hk_secret_value", next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer hk_secret_value")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, seen.Authenticated)
	assert.Equal(t, "hk_secre", seen.KeyPrefix)

	assert.NotNil(t, RequireAPIKey("", next))
}

func TestCallerLog(t *testing.T) {
	var buf bytes.Buffer
	h := &Handlers{log: slog.New(slog.NewTextHandler(&buf, nil))}

	h.callerLog(context.Background()).Info("anonymous")
	assert.NotContains(t, buf.String(), "key_prefix")

	ctx := WithAuthResult(context.Background(), AuthResult{Authenticated: true, KeyPrefix: "hk_12345"})
	h.callerLog(ctx).Info("authenticated")
	assert.Contains(t, buf.String(), "key_prefix=hk_12345")
}
