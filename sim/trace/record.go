// Package trace provides span recording for simulated job timelines.
// It has no dependencies on sim/ and stores pure data types.
package trace

// Span categories, one per level of a job's timeline.
const (
	CategoryJob                  = "Job"
	CategoryStep                 = "Step"
	CategoryGroup                = "Group"
	CategoryCommOp               = "CommOp"
	CategoryTransmissionSharp    = "Transmission,SHARP"
	CategoryTransmissionNonSharp = "Transmission,NonSHARP"
	CategoryWaiting              = "Waiting"
)

// Phase marks whether an event opens or closes a span.
type Phase string

const (
	PhaseBegin Phase = "B"
	PhaseEnd   Phase = "E"
)

// SpanEvent is one begin or end marker in Chrome trace-event form.
// TID is the job ID; TS is in microseconds of simulated time.
type SpanEvent struct {
	Name     string  `json:"name"`
	Category string  `json:"cat"`
	Phase    Phase   `json:"ph"`
	PID      int     `json:"pid"`
	TID      int     `json:"tid"`
	TS       float64 `json:"ts"`
}
