package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/hydrator/internal/pipeline"
)

func stored(loc string) pipeline.Outcome {
	return pipeline.Outcome{Locator: loc, Key: loc + ".txt", State: pipeline.StateStored}
}

func failed(loc string, state pipeline.State, kind pipeline.Kind) pipeline.Outcome {
	return pipeline.Outcome{
		Locator: loc,
		State:   state,
		Err:     &pipeline.Error{Kind: kind, Locator: loc, Err: errors.New("boom")},
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []pipeline.Outcome
		want     int
	}{
		{"all ok", []pipeline.Outcome{stored("a"), stored("b")}, http.StatusOK},
		{"empty", nil, http.StatusOK},
		{"fetch failure", []pipeline.Outcome{stored("a"), failed("b", pipeline.StateFetchFailed, pipeline.KindFetch)}, http.StatusBadRequest},
		{"extract failure", []pipeline.Outcome{failed("a", pipeline.StateExtractFailed, pipeline.KindExtract)}, http.StatusInternalServerError},
		{"store beats fetch", []pipeline.Outcome{
			failed("a", pipeline.StateFetchFailed, pipeline.KindFetch),
			failed("b", pipeline.StateStoreFailed, pipeline.KindStore),
		}, http.StatusInternalServerError},
		{"index failure", []pipeline.Outcome{failed("a", pipeline.StateIndexFailed, pipeline.KindIndex)}, http.StatusInternalServerError},
		{"canceled", []pipeline.Outcome{failed("a", pipeline.StateCanceled, pipeline.KindCanceled)}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.outcomes))
		})
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse("docs", []pipeline.Outcome{
		stored("a"),
		failed("b", pipeline.StateFetchFailed, pipeline.KindFetch),
	})

	assert.Equal(t, "some URLs failed", resp.Message)
	assert.Equal(t, 1, resp.Succeeded)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "a.txt", resp.Results[0].Key)
	assert.Equal(t, "stored", resp.Results[0].State)
	assert.Equal(t, "fetch", resp.Results[1].Kind)
	assert.Equal(t, "boom", resp.Results[1].Error)

	assert.Equal(t, "URLs processed successfully", NewResponse("docs", []pipeline.Outcome{stored("a")}).Message)
}

func TestRequestValidate(t *testing.T) {
	req := Request{URLs: []string{" https://a.example ", "", "  "}}
	require.NoError(t, req.Validate())
	assert.Equal(t, []string{"https://a.example"}, req.URLs)

	empty := Request{}
	assert.ErrorIs(t, empty.Validate(), ErrNoURLs)
}
