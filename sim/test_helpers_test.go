package sim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sharp-sim/sharp-sim/sim/resource"
	"github.com/sharp-sim/sharp-sim/sim/topology"
)

func intPtr(v int) *int { return &v }

// testContext prices transmissions at latency 0 and 100 B/s, doubled with SHARP.
func testContext() *Context {
	return NewContext(NewSimulationKey(1), LinearDurationModel{Bandwidth: 100, SharpAccRatio: 2, Latency: 0}, nil)
}

// smallFatTree is the 8-host fat-tree: host ID = i0 + 2*i1, edge switch k
// covers hosts 2k and 2k+1, and two cores sit on top.
func smallFatTree(t *testing.T) *topology.FatTree {
	t.Helper()
	ft, err := topology.NewFromDegree(2, 4)
	require.NoError(t, err)
	return ft
}

// oneOpJob has a single group with one all-reduce of the given size.
func oneOpJob(ctx *Context, hosts, steps int, bytes int64) *Job {
	return ctx.NewJob(hosts, steps, []CommOpGroup{{
		CommOps: []CommOp{{StartTimeInGroup: 0, MessageSize: bytes, Type: AllReduce}},
	}})
}

func hostsByID(ft *topology.FatTree, ids ...int) []*topology.Node {
	nodes := make([]*topology.Node, len(ids))
	for i, id := range ids {
		nodes[i] = ft.Hosts()[id]
	}
	return nodes
}

// firstHosts takes the lowest-ID free hosts.
type firstHosts struct{}

func (firstHosts) AllocateHosts(l *resource.Ledger, n int) []*topology.Node {
	free := l.AvailableHosts()
	if len(free) < n {
		return nil
	}
	return free[:n]
}

// scriptedHosts hands out fixed host lists in order, then fails.
type scriptedHosts struct {
	ft    *topology.FatTree
	lists [][]int
}

func (s *scriptedHosts) AllocateHosts(l *resource.Ledger, n int) []*topology.Node {
	if len(s.lists) == 0 {
		return nil
	}
	hosts := hostsByID(s.ft, s.lists[0]...)
	for _, h := range hosts {
		if !l.IsHostAvailable(h) {
			return nil
		}
	}
	s.lists = s.lists[1:]
	return hosts
}

// noTrees leaves every job without an aggregation tree.
type noTrees struct{}

func (noTrees) BuildTrees(*resource.Ledger, []*Job, []*Job) {}

// firstRootTrees gives each new job the tree toward its first common ancestor.
type firstRootTrees struct{}

func (firstRootTrees) BuildTrees(l *resource.Ledger, _ []*Job, admitted []*Job) {
	ft := l.Topology()
	for _, j := range admitted {
		root := ft.ClosestCommonAncestors(j.Hosts())[0]
		j.SetNextAggrTree(ft.AggregationTree(j.Hosts(), root))
	}
}

// greedySharing uses SHARP whenever the group allows it.
var greedySharing = SharingPolicyFunc(func(g *SharingGroup, j *Job, _ float64) Decision {
	return Proceed(g.CanUseSharp(j))
})

// recordingHooks returns fixed decisions and remembers the calls.
type recordingHooks struct {
	decisions []Decision
	before    []float64
	after     []bool
}

func (h *recordingHooks) BeforeTransmission(_ *Job, now float64) Decision {
	h.before = append(h.before, now)
	if len(h.decisions) == 0 {
		return Proceed(false)
	}
	d := h.decisions[0]
	h.decisions = h.decisions[1:]
	return d
}

func (h *recordingHooks) AfterTransmission(_ *Job, _ float64, usedSharp bool) {
	h.after = append(h.after, usedSharp)
}

// drive advances a lone job until it finishes or maxEvents pass, returning event times.
func drive(t *testing.T, j *Job, maxEvents int) []float64 {
	t.Helper()
	var times []float64
	now := 0.0
	for i := 0; i < maxEvents; i++ {
		now = j.PeekNextEventTime(now)
		times = append(times, now)
		if j.Advance(now) {
			return times
		}
	}
	return times
}
