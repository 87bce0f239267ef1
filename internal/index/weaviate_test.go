package index

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWeaviate accepts object creation and records the submitted objects.
type fakeWeaviate struct {
	mu      sync.Mutex
	objects []map[string]any
	status  int
}

func (f *fakeWeaviate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/v1/meta":
		_, _ = w.Write([]byte(`{"version":"1.25.0"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/v1/objects":
		if f.status != 0 {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(`{"error":[{"message":"class not found"}]}`))
			return
		}
		var obj map[string]any
		if err := json.NewDecoder(r.Body).Decode(&obj); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.objects = append(f.objects, obj)
		f.mu.Unlock()
		obj["id"] = "6f2b6a1e-2a58-4c57-9d2f-3c1f2ad0c001"
		_ = json.NewEncoder(w).Encode(obj)
	default:
		http.NotFound(w, r)
	}
}

func newFakeWeaviate(t *testing.T, fake *fakeWeaviate) *WeaviateIndex {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	idx, err := NewWeaviateIndex(WeaviateConfig{Host: strings.TrimPrefix(srv.URL, "http://")})
	require.NoError(t, err)
	return idx
}

func TestWeaviateIndex_CreateRecord(t *testing.T) {
	fake := &fakeWeaviate{}
	idx := newFakeWeaviate(t, fake)

	id, err := idx.CreateRecord(context.Background(), DefaultClass, Record{Source: "example.com.txt", Content: "hello world"})
	require.NoError(t, err)
	assert.Equal(t, "6f2b6a1e-2a58-4c57-9d2f-3c1f2ad0c001", id)

	require.Len(t, fake.objects, 1)
	obj := fake.objects[0]
	assert.Equal(t, DefaultClass, obj["class"])
	props, ok := obj["properties"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "example.com.txt", props["source"])
	assert.Equal(t, "hello world", props["content"])
}

func TestWeaviateIndex_CreateRecordError(t *testing.T) {
	idx := newFakeWeaviate(t, &fakeWeaviate{status: http.StatusUnprocessableEntity})

	_, err := idx.CreateRecord(context.Background(), "Missing", Record{Source: "a.txt", Content: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create Missing object for a.txt")
}
