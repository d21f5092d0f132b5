package trace

import (
	"encoding/json"
	"fmt"
	"io"
)

// TraceLevel controls the verbosity of span recording.
type TraceLevel string

const (
	// TraceLevelNone disables recording (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelJobs records job, step and group spans only.
	TraceLevelJobs TraceLevel = "jobs"
	// TraceLevelTransmissions additionally records comm-op, transmission and waiting spans.
	TraceLevelTransmissions TraceLevel = "transmissions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:          true,
	TraceLevelJobs:          true,
	TraceLevelTransmissions: true,
	"":                      true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// Recorder collects span events during one simulation run.
// All methods are safe on a nil *Recorder, which records nothing.
type Recorder struct {
	Level  TraceLevel
	Events []SpanEvent
}

// NewRecorder creates a Recorder ready for recording. Returns nil for
// TraceLevelNone and the empty level so callers can pass the result through.
func NewRecorder(level TraceLevel) *Recorder {
	if level == TraceLevelNone || level == "" {
		return nil
	}
	return &Recorder{Level: level, Events: make([]SpanEvent, 0)}
}

// Enabled reports whether spans of the given category are kept.
func (r *Recorder) Enabled(category string) bool {
	if r == nil {
		return false
	}
	switch category {
	case CategoryJob, CategoryStep, CategoryGroup:
		return true
	default:
		return r.Level == TraceLevelTransmissions
	}
}

// Begin opens a span for job tid at simulated time now (seconds).
func (r *Recorder) Begin(category, name string, tid int, now float64) {
	r.record(category, name, PhaseBegin, tid, now)
}

// End closes a span opened by Begin with the same category and name.
func (r *Recorder) End(category, name string, tid int, now float64) {
	r.record(category, name, PhaseEnd, tid, now)
}

func (r *Recorder) record(category, name string, phase Phase, tid int, now float64) {
	if !r.Enabled(category) {
		return
	}
	r.Events = append(r.Events, SpanEvent{
		Name:     name,
		Category: category,
		Phase:    phase,
		TID:      tid,
		TS:       now * 1e6,
	})
}

// Len is the number of recorded events.
func (r *Recorder) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Events)
}

// WriteJSON writes the events as a Chrome trace-event array.
// A nil Recorder writes an empty array.
func (r *Recorder) WriteJSON(w io.Writer) error {
	events := []SpanEvent{}
	if r != nil {
		events = r.Events
	}
	if err := json.NewEncoder(w).Encode(events); err != nil {
		return fmt.Errorf("encoding trace events: %w", err)
	}
	return nil
}
