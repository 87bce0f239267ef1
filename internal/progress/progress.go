package progress

import "time"

// Stage identifies which pipeline stage an event belongs to.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageExtract  Stage = "extract"
	StageStore    Stage = "store"
	StageIndex    Stage = "index"
	StageComplete Stage = "complete"
)

// Event carries progress information from the pipeline to the renderer.
type Event struct {
	Stage   Stage
	Message string
	Percent float64 // 0.0–1.0
	// Item is the locator or object key the event is about.
	Item    string
	Done    int
	Total   int
	Elapsed time.Duration
	Error   error
	// Succeeded and Failed are set on StageComplete.
	Succeeded int
	Failed    int
}

// Callback is the function signature for progress event handlers.
// Callbacks may be invoked from several goroutines at once.
type Callback func(Event)

// NopCallback is a no-op progress callback for tests and silent mode.
func NopCallback(Event) {}

// NewEvent creates an Event with common fields populated.
func NewEvent(stage Stage, msg string, done, total int, start time.Time) Event {
	pct := 0.0
	if total > 0 {
		pct = float64(done) / float64(total)
	}
	return Event{
		Stage:   stage,
		Message: msg,
		Percent: pct,
		Done:    done,
		Total:   total,
		Elapsed: time.Since(start),
	}
}
