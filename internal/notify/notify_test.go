package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "hydrator.stored", Subject("hydrator", TypeStored))
	assert.Equal(t, "docs.indexed", Subject("docs", TypeIndexed))
}

func TestEventJSON(t *testing.T) {
	evt := Event{
		Type:   TypeStored,
		Bucket: "docs",
		Key:    "example.com.txt",
		Bytes:  12,
		At:     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(evt)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "stored", m["type"])
	assert.Equal(t, "example.com.txt", m["key"])
	assert.NotContains(t, m, "record_id")
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Notify(context.Background(), Event{Type: TypeIndexed}))
}
