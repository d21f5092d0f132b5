package sim

import (
	"github.com/sharp-sim/sharp-sim/sim/resource"
	"github.com/sharp-sim/sharp-sim/sim/topology"
)

// JobSource supplies jobs in admission order. Next returns nil once the
// source is exhausted.
type JobSource interface {
	Next() *Job
}

// JobSourceFunc adapts a function to JobSource.
type JobSourceFunc func() *Job

func (f JobSourceFunc) Next() *Job { return f() }

// SliceSource serves a fixed list of jobs in order.
type SliceSource struct {
	jobs []*Job
}

// NewSliceSource creates a source over jobs.
func NewSliceSource(jobs ...*Job) *SliceSource {
	return &SliceSource{jobs: jobs}
}

func (s *SliceSource) Next() *Job {
	if len(s.jobs) == 0 {
		return nil
	}
	j := s.jobs[0]
	s.jobs = s.jobs[1:]
	return j
}

// HostAllocationPolicy picks hostCount free hosts, or returns nil when the
// ledger does not have enough. It must not mutate the ledger.
type HostAllocationPolicy interface {
	AllocateHosts(ledger *resource.Ledger, hostCount int) []*topology.Node
}

// TreeBuildingPolicy assigns aggregation trees after an admission batch by
// calling SetNextAggrTree. running includes the new jobs.
type TreeBuildingPolicy interface {
	BuildTrees(ledger *resource.Ledger, running []*Job, admitted []*Job)
}
