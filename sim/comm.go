package sim

import "fmt"

// CommOpType identifies a collective operation.
type CommOpType string

const (
	AllReduce CommOpType = "allreduce"
)

// CommOp is one collective operation inside a group.
type CommOp struct {
	StartTimeInGroup float64    // earliest start, seconds after the group opened
	MessageSize      int64      // bytes
	Type             CommOpType // collective kind
}

func (op CommOp) String() string {
	return fmt.Sprintf("CommOp(%s, %dB @+%gs)", op.Type, op.MessageSize, op.StartTimeInGroup)
}

// CommOpGroup is an ordered run of ops followed by a barrier: the group
// cannot close before SyncTime seconds after it opened.
type CommOpGroup struct {
	CommOps  []CommOp
	SyncTime float64
}

// DurationModel prices a single transmission in seconds.
type DurationModel interface {
	TransmissionDuration(opType CommOpType, bytes int64, useSharp bool, hostCount int) float64
}

// LinearDurationModel charges a fixed latency plus bytes over bandwidth.
// SHARP multiplies the bandwidth of all-reduce by SharpAccRatio.
// Single-host jobs pay latency only.
type LinearDurationModel struct {
	Bandwidth     float64 // bytes per second
	SharpAccRatio float64 // > 1 speeds up SHARP all-reduce
	Latency       float64 // seconds
}

func (m LinearDurationModel) TransmissionDuration(opType CommOpType, bytes int64, useSharp bool, hostCount int) float64 {
	if hostCount == 1 {
		return m.Latency
	}
	bandwidth := m.Bandwidth
	if useSharp && opType == AllReduce {
		bandwidth *= m.SharpAccRatio
	}
	return m.Latency + float64(bytes)/bandwidth
}

// DurationModelFunc adapts a function to DurationModel.
type DurationModelFunc func(opType CommOpType, bytes int64, useSharp bool, hostCount int) float64

func (f DurationModelFunc) TransmissionDuration(opType CommOpType, bytes int64, useSharp bool, hostCount int) float64 {
	return f(opType, bytes, useSharp, hostCount)
}

// Decision is the before-transmission verdict for a job: either wait for
// Wait seconds, or transmit Bytes now (0 = the rest of the current op),
// with or without SHARP.
type Decision struct {
	Wait     float64
	waiting  bool
	UseSharp bool
	Bytes    int64
}

// WaitFor returns a decision that delays the job by d seconds.
func WaitFor(d float64) Decision {
	return Decision{Wait: d, waiting: true}
}

// Proceed returns a decision that transmits the rest of the current op.
func Proceed(useSharp bool) Decision {
	return Decision{UseSharp: useSharp}
}

// ProceedBytes returns a decision that transmits only the given byte count.
func ProceedBytes(useSharp bool, bytes int64) Decision {
	return Decision{UseSharp: useSharp, Bytes: bytes}
}

// IsWait reports whether the decision inserts a wait.
func (d Decision) IsWait() bool { return d.waiting }

func (d Decision) String() string {
	if d.waiting {
		return fmt.Sprintf("wait(%gs)", d.Wait)
	}
	return fmt.Sprintf("proceed(sharp=%t, bytes=%d)", d.UseSharp, d.Bytes)
}
