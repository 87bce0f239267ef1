package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIndex_NoDedup(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	rec := Record{Source: "example.com.txt", Content: "hello"}

	id1, err := idx.CreateRecord(ctx, DefaultClass, rec)
	require.NoError(t, err)
	id2, err := idx.CreateRecord(ctx, DefaultClass, rec)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
	assert.Len(t, idx.BySource("example.com.txt"), 2)
	assert.Equal(t, DefaultClass, idx.Records()[0].Class)
}

func TestMemoryIndex_Fail(t *testing.T) {
	idx := NewMemoryIndex()
	idx.Fail = func(rec Record) error {
		if rec.Source == "bad.txt" {
			return errors.New("index unavailable")
		}
		return nil
	}

	_, err := idx.CreateRecord(context.Background(), DefaultClass, Record{Source: "bad.txt"})
	assert.EqualError(t, err, "index unavailable")
	_, err = idx.CreateRecord(context.Background(), DefaultClass, Record{Source: "good.txt"})
	assert.NoError(t, err)
	assert.Len(t, idx.Records(), 1)
}

func TestNewRecordID(t *testing.T) {
	id, err := NewRecordID()
	require.NoError(t, err)
	assert.Len(t, id, 26)
}

func TestSQLiteIndex(t *testing.T) {
	ctx := context.Background()
	idx, err := NewSQLiteIndex(filepath.Join(t.TempDir(), "nested", "index.db"))
	require.NoError(t, err)
	defer idx.Close()

	_, err = idx.CreateRecord(ctx, DefaultClass, Record{Source: "blog.min.io_minio-langchain-tool.txt", Content: "MinIO integrates with LangChain tools"})
	require.NoError(t, err)
	_, err = idx.CreateRecord(ctx, DefaultClass, Record{Source: "example.com.txt", Content: "An example domain for documentation"})
	require.NoError(t, err)
	_, err = idx.CreateRecord(ctx, DefaultClass, Record{Source: "example.com.txt", Content: "An example domain for documentation"})
	require.NoError(t, err)

	n, err := idx.Count(ctx, "example.com.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hits, err := idx.Search(ctx, "langchain", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "blog.min.io_minio-langchain-tool.txt", hits[0].Source)
	assert.Contains(t, hits[0].Snippet, "[LangChain]")
}

func TestSQLiteIndex_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := NewSQLiteIndex(path)
	require.NoError(t, err)
	_, err = idx.CreateRecord(ctx, DefaultClass, Record{Source: "a.txt", Content: "persisted"})
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	idx, err = NewSQLiteIndex(path)
	require.NoError(t, err)
	defer idx.Close()
	n, err := idx.Count(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDuplicates(t *testing.T) {
	items := []RecordItem{
		{PK: "SOURCE#a.txt", SK: "RECORD#01HZZ0000000000000000000A1"},
		{PK: "SOURCE#b.txt", SK: "RECORD#01HZZ0000000000000000000B1"},
		{PK: "SOURCE#a.txt", SK: "RECORD#01HZZ0000000000000000000A3"},
		{PK: "SOURCE#a.txt", SK: "RECORD#01HZZ0000000000000000000A2"},
		{PK: "SOURCE#a.txt", SK: "META"},
	}

	dups := Duplicates(items)
	require.Len(t, dups, 2)
	assert.Equal(t, "RECORD#01HZZ0000000000000000000A1", dups[0].SK)
	assert.Equal(t, "RECORD#01HZZ0000000000000000000A2", dups[1].SK)

	assert.Empty(t, Duplicates(items[1:2]))
	assert.Empty(t, Duplicates(nil))
}
