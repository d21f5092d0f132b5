package trace

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewRecorder_NoneLevel_ReturnsNil(t *testing.T) {
	// GIVEN the disabled levels
	for _, level := range []TraceLevel{TraceLevelNone, ""} {
		// WHEN a recorder is created
		r := NewRecorder(level)

		// THEN it is nil and still usable
		if r != nil {
			t.Fatalf("level %q: expected nil recorder", level)
		}
		r.Begin(CategoryJob, "Job #0", 0, 1)
		if r.Len() != 0 {
			t.Errorf("level %q: nil recorder reported %d events", level, r.Len())
		}
	}
}

func TestRecorder_JobsLevel_DropsTransmissionSpans(t *testing.T) {
	// GIVEN a recorder at the jobs level
	r := NewRecorder(TraceLevelJobs)

	// WHEN spans of every category are recorded
	r.Begin(CategoryJob, "Job #1", 1, 0)
	r.Begin(CategoryTransmissionSharp, "Job #1 Transmission", 1, 0)
	r.End(CategoryTransmissionSharp, "Job #1 Transmission", 1, 0.5)
	r.Begin(CategoryWaiting, "Job #1 Waiting", 1, 0.5)
	r.End(CategoryJob, "Job #1", 1, 2)

	// THEN only the job span is kept
	if r.Len() != 2 {
		t.Fatalf("expected 2 events, got %d", r.Len())
	}
	if r.Events[1].Phase != PhaseEnd || r.Events[1].TS != 2e6 {
		t.Errorf("unexpected end event %+v", r.Events[1])
	}
}

func TestRecorder_WriteJSON_ChromeFormat(t *testing.T) {
	// GIVEN a recorder with one closed span
	r := NewRecorder(TraceLevelTransmissions)
	r.Begin(CategoryCommOp, "Job #3 Step #0 Group #0 CommOp #0", 3, 0.25)
	r.End(CategoryCommOp, "Job #3 Step #0 Group #0 CommOp #0", 3, 1)

	// WHEN written as JSON
	var buf bytes.Buffer
	if err := r.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	// THEN the Chrome trace-event keys are present
	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 events, got %d", len(decoded))
	}
	first := decoded[0]
	if first["ph"] != "B" || first["cat"] != CategoryCommOp || first["tid"] != float64(3) || first["ts"] != 250000.0 {
		t.Errorf("unexpected first event %v", first)
	}
}

func TestRecorder_WriteJSON_NilWritesEmptyArray(t *testing.T) {
	var r *Recorder
	var buf bytes.Buffer
	if err := r.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if got := buf.String(); got != "[]\n" {
		t.Errorf("expected empty array, got %q", got)
	}
}

func TestIsValidTraceLevel(t *testing.T) {
	for _, level := range []string{"", "none", "jobs", "transmissions"} {
		if !IsValidTraceLevel(level) {
			t.Errorf("expected %q to be valid", level)
		}
	}
	if IsValidTraceLevel("decisions") {
		t.Error("expected decisions to be invalid")
	}
}
