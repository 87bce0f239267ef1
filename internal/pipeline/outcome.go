package pipeline

import (
	"fmt"
	"strings"
)

// State is where an item ended up.
type State string

const (
	StatePending    State = "pending"
	StateFetched    State = "fetched"
	StateExtracted  State = "extracted"
	StateNormalized State = "normalized"
	StateStored     State = "stored"
	StateIndexed    State = "indexed"

	StateFetchFailed   State = "fetch_failed"
	StateExtractFailed State = "extract_failed"
	StateStoreFailed   State = "store_failed"
	StateIndexFailed   State = "index_failed"
	StateCanceled      State = "canceled"
)

// Failed reports whether s is a terminal failure state.
func (s State) Failed() bool {
	switch s {
	case StateFetchFailed, StateExtractFailed, StateStoreFailed, StateIndexFailed, StateCanceled:
		return true
	}
	return false
}

// Mode selects how a batch is scheduled.
type Mode int

const (
	ModeSequential Mode = iota
	ModeConcurrent
)

func (m Mode) String() string {
	if m == ModeConcurrent {
		return "concurrent"
	}
	return "sequential"
}

// ParseMode parses "sequential" or "concurrent".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sequential", "seq":
		return ModeSequential, nil
	case "concurrent", "parallel", "":
		return ModeConcurrent, nil
	}
	return ModeSequential, fmt.Errorf("unknown mode %q (want sequential or concurrent)", s)
}

// Outcome is the result for one locator (ingest) or one object key (index).
type Outcome struct {
	Locator  string
	Key      string
	State    State
	Bytes    int
	RecordID string
	Err      *Error
}

// OK reports whether the item succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil && !o.State.Failed()
}

// Kind returns the failure kind, or "" on success.
func (o Outcome) Kind() Kind {
	if o.Err == nil {
		return ""
	}
	return o.Err.Kind
}

func (o Outcome) fail(state State, kind Kind, err error) Outcome {
	o.State = state
	o.Err = &Error{Kind: kind, Locator: o.Locator, Key: o.Key, Err: err}
	return o
}

// Summarize counts successes and failures.
func Summarize(outcomes []Outcome) (succeeded, failed int) {
	for _, o := range outcomes {
		if o.OK() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// StoredKeys returns the distinct keys of items that reached the store, in
// input order.
func StoredKeys(outcomes []Outcome) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, o := range outcomes {
		if o.State != StateStored && o.State != StateIndexed && o.State != StateIndexFailed {
			continue
		}
		if seen[o.Key] {
			continue
		}
		seen[o.Key] = true
		keys = append(keys, o.Key)
	}
	return keys
}
