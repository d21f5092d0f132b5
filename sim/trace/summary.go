package trace

// TraceSummary aggregates statistics from a Recorder.
type TraceSummary struct {
	TotalEvents           int
	JobCount              int
	SharpTransmissions    int
	NonSharpTransmissions int
	Waits                 int
	OpenSpans             int            // begins without a matching end
	SpansByCategory       map[string]int // category → completed span count
}

// Summarize computes aggregate statistics from a Recorder.
// Safe for nil or empty recorders (returns zero-value fields).
func Summarize(r *Recorder) *TraceSummary {
	summary := &TraceSummary{
		SpansByCategory: make(map[string]int),
	}
	if r == nil {
		return summary
	}

	type spanKey struct {
		category string
		name     string
		tid      int
	}
	open := make(map[spanKey]int)
	jobs := make(map[int]bool)
	summary.TotalEvents = len(r.Events)
	for _, ev := range r.Events {
		key := spanKey{ev.Category, ev.Name, ev.TID}
		jobs[ev.TID] = true
		if ev.Phase == PhaseBegin {
			open[key]++
			switch ev.Category {
			case CategoryTransmissionSharp:
				summary.SharpTransmissions++
			case CategoryTransmissionNonSharp:
				summary.NonSharpTransmissions++
			case CategoryWaiting:
				summary.Waits++
			}
			continue
		}
		if open[key] > 0 {
			open[key]--
			summary.SpansByCategory[ev.Category]++
		}
	}
	for _, n := range open {
		summary.OpenSpans += n
	}
	summary.JobCount = len(jobs)

	return summary
}
