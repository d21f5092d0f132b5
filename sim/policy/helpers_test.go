package policy

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sharp-sim/sharp-sim/sim"
	"github.com/sharp-sim/sharp-sim/sim/resource"
	"github.com/sharp-sim/sharp-sim/sim/topology"
)

func intPtr(v int) *int { return &v }

// smallFatTree has 8 hosts in four 2-host pods (edge switches 8..11) under
// cores 12 and 13.
func smallFatTree(t *testing.T) *topology.FatTree {
	t.Helper()
	ft, err := topology.NewFromDegree(2, 4)
	require.NoError(t, err)
	return ft
}

func testContext() *sim.Context {
	return sim.NewContext(sim.NewSimulationKey(1), sim.LinearDurationModel{Bandwidth: 100, SharpAccRatio: 2}, nil)
}

func hostsByID(ft *topology.FatTree, ids ...int) []*topology.Node {
	nodes := make([]*topology.Node, len(ids))
	for i, id := range ids {
		nodes[i] = ft.Hosts()[id]
	}
	return nodes
}

func hostIDs(nodes []*topology.Node) []int {
	ids := make([]int, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

// placedJob is a one-op job already holding the given hosts.
func placedJob(ctx *sim.Context, ft *topology.FatTree, group sim.CommOpGroup, ids ...int) *sim.Job {
	j := ctx.NewJob(len(ids), 1, []sim.CommOpGroup{group})
	j.SetHosts(hostsByID(ft, ids...))
	return j
}

func oneOp(bytes int64) sim.CommOpGroup {
	return sim.CommOpGroup{CommOps: []sim.CommOp{{MessageSize: bytes, Type: sim.AllReduce}}}
}

// takeHosts returns a ledger with the given hosts marked as taken.
func takeHosts(ft *topology.FatTree, nodeQuota *int, ids ...int) *resource.Ledger {
	l := resource.NewLedger(ft, nodeQuota, nil)
	l.AllocateHosts(hostsByID(ft, ids...))
	return l
}

func seededRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0))
}
