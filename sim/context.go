package sim

import "github.com/sharp-sim/sharp-sim/sim/trace"

// Context carries the per-run services every job shares: the job ID
// generator, the transmission duration model, the optional span recorder
// and the partitioned RNG. One Context belongs to exactly one run.
type Context struct {
	Durations DurationModel
	Recorder  *trace.Recorder // nil disables span recording
	RNG       *PartitionedRNG
	nextJobID int
}

// NewContext creates a Context seeded with key. recorder may be nil.
func NewContext(key SimulationKey, durations DurationModel, recorder *trace.Recorder) *Context {
	if durations == nil {
		panic("NewContext: nil duration model")
	}
	return &Context{
		Durations: durations,
		Recorder:  recorder,
		RNG:       NewPartitionedRNG(key),
	}
}

// JobsCreated is the number of jobs minted so far.
func (c *Context) JobsCreated() int { return c.nextJobID }

func (c *Context) allocJobID() int {
	id := c.nextJobID
	c.nextJobID++
	return id
}
