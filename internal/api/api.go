// Package api defines the batch request/response shared by the service
// entry points.
package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/apresai/hydrator/internal/pipeline"
)

// Request is the body of a batch ingest call.
type Request struct {
	URLs []string `json:"urls"`
	// Index also submits stored objects to the document index.
	Index bool `json:"index,omitempty"`
}

// ErrNoURLs is returned by Validate for an empty batch.
var ErrNoURLs = errors.New("urls must contain at least one locator")

// Validate trims locators and rejects empty batches.
func (r *Request) Validate() error {
	urls := make([]string, 0, len(r.URLs))
	for _, u := range r.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return ErrNoURLs
	}
	r.URLs = urls
	return nil
}

// Item is the result for one locator.
type Item struct {
	Locator  string `json:"locator"`
	Key      string `json:"key,omitempty"`
	State    string `json:"state"`
	RecordID string `json:"record_id,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Response summarizes a batch.
type Response struct {
	Message   string `json:"message"`
	Bucket    string `json:"bucket"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Results   []Item `json:"results"`
}

// NewResponse converts outcomes into a Response.
func NewResponse(bucket string, outcomes []pipeline.Outcome) Response {
	ok, failed := pipeline.Summarize(outcomes)
	resp := Response{
		Message:   message(ok, failed),
		Bucket:    bucket,
		Succeeded: ok,
		Failed:    failed,
		Results:   make([]Item, 0, len(outcomes)),
	}
	for _, o := range outcomes {
		item := Item{
			Locator:  o.Locator,
			Key:      o.Key,
			State:    string(o.State),
			RecordID: o.RecordID,
		}
		if o.Err != nil {
			item.Kind = string(o.Err.Kind)
			if o.Err.Err != nil {
				item.Error = o.Err.Err.Error()
			}
		}
		resp.Results = append(resp.Results, item)
	}
	return resp
}

func message(ok, failed int) string {
	switch {
	case failed == 0:
		return "URLs processed successfully"
	case ok == 0:
		return "all URLs failed"
	}
	return "some URLs failed"
}

// StatusCode maps outcomes to an HTTP status: 200 when every item
// succeeded, 400 when the only failures are fetch failures, 500 otherwise.
func StatusCode(outcomes []pipeline.Outcome) int {
	status := http.StatusOK
	for _, o := range outcomes {
		switch o.Kind() {
		case "":
		case pipeline.KindFetch:
			status = http.StatusBadRequest
		default:
			return http.StatusInternalServerError
		}
	}
	return status
}
