// Package index submits normalized documents to a searchable document store.
package index

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultClass is the record class used when none is configured.
const DefaultClass = "Document"

// Record is a document submitted for indexing.
type Record struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// Indexer accepts records and makes them retrievable by search. Implementations
// do not deduplicate: submitting the same record twice stores it twice.
type Indexer interface {
	CreateRecord(ctx context.Context, className string, rec Record) (string, error)
}

// NewRecordID generates a ULID for a new record.
func NewRecordID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return id.String(), nil
}
