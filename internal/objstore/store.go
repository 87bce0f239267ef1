// Package objstore is the bucket/key blob store used to persist normalized text.
package objstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("object not found")

// Store is a durable key/value blob store addressed by bucket and key.
type Store interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string) error
	Put(ctx context.Context, bucket, key string, data []byte) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	// List returns keys in lexical order. Without recursive, keys below a "/"
	// are collapsed and omitted.
	List(ctx context.Context, bucket string, recursive bool) ([]string, error)
	Delete(ctx context.Context, bucket, key string) error
}

// EnsureBucket creates bucket unless it already exists.
func EnsureBucket(ctx context.Context, s Store, bucket string) (created bool, err error) {
	exists, err := s.BucketExists(ctx, bucket)
	if err != nil {
		return false, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return false, nil
	}
	if err := s.MakeBucket(ctx, bucket); err != nil {
		return false, fmt.Errorf("make bucket %s: %w", bucket, err)
	}
	return true, nil
}
