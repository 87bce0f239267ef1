package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies where in the pipeline an item failed.
type Kind string

const (
	KindFetch    Kind = "fetch"
	KindExtract  Kind = "extract"
	KindStore    Kind = "store"
	KindIndex    Kind = "index"
	KindCanceled Kind = "canceled"
)

// Error is the failure attached to an Outcome.
type Error struct {
	Kind    Kind
	Locator string
	Key     string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Locator, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Locator)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func isCanceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
