package progress

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewEvent(t *testing.T) {
	e := NewEvent(StageStore, "stored", 1, 4, time.Now())
	assert.Equal(t, 0.25, e.Percent)
	assert.Equal(t, 1, e.Done)
	assert.Equal(t, 4, e.Total)

	assert.Equal(t, 0.0, NewEvent(StageFetch, "", 0, 0, time.Now()).Percent)
}

func TestRenderBar(t *testing.T) {
	assert.Equal(t, "[##........]", renderBar(0.2, 10))
	assert.Equal(t, "[..........]", renderBar(-1, 10))
	assert.Equal(t, "[##########]", renderBar(2, 10))
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "0:05", formatElapsed(5*time.Second))
	assert.Equal(t, "2:03", formatElapsed(123*time.Second))
}

func TestBarRenderer_Plain(t *testing.T) {
	var buf bytes.Buffer
	r := newBarRenderer(&buf, false, 80)

	r.Handle(Event{Stage: StageStore, Message: "stored example.com.txt"})
	r.Handle(Event{Stage: StageFetch, Message: "fetch failed", Error: errors.New("HTTP status 404")})
	r.Handle(Event{Stage: StageComplete, Message: "Ingest complete", Succeeded: 2, Failed: 1})
	r.Finish()

	out := buf.String()
	assert.Contains(t, out, "stored example.com.txt")
	assert.Contains(t, out, "fetch failed: HTTP status 404")
	assert.Contains(t, out, "Ingest complete: 2 succeeded, 1 failed")
}

func TestBarRenderer_TTY(t *testing.T) {
	var buf bytes.Buffer
	r := newBarRenderer(&buf, true, 80)

	r.Handle(Event{Stage: StageStore, Message: "working", Done: 1, Total: 2, Percent: 0.5})
	assert.True(t, r.drawn)
	r.Handle(Event{Stage: StageFetch, Message: "fetch failed", Done: 2, Total: 2, Percent: 1, Error: errors.New("timeout")})
	assert.Contains(t, buf.String(), "  ! fetch failed: timeout\n")

	r.Finish()
	assert.False(t, r.drawn)
	assert.NotContains(t, buf.String(), "succeeded", "no summary without a complete event")
}

func TestBarRenderer_PlainCounter(t *testing.T) {
	var buf bytes.Buffer
	r := newBarRenderer(&buf, false, 80)
	r.Handle(Event{Stage: StageStore, Message: "stored a.txt", Done: 3, Total: 5})
	assert.Contains(t, buf.String(), " 3/5 stored a.txt\n")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "abcd", truncate("abcdefgh", 5))
}
