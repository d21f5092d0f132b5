package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharp-sim/sharp-sim/sim/resource"
	"github.com/sharp-sim/sharp-sim/sim/topology"
)

// conflictingPair returns two jobs whose trees meet on core 12 (hosts {0,2}
// and {1,3}) and a ledger with a per-switch quota of one.
func conflictingPair(t *testing.T) (*resource.Ledger, *Job, *Job) {
	t.Helper()
	ft := smallFatTree(t)
	ctx := testContext()
	core := ft.NodesByLayer[2][0]
	a := oneOpJob(ctx, 2, 1, 100)
	a.SetHosts(hostsByID(ft, 0, 2))
	a.SetNextAggrTree(ft.AggregationTree(a.Hosts(), core))
	b := oneOpJob(ctx, 2, 1, 100)
	b.SetHosts(hostsByID(ft, 1, 3))
	b.SetNextAggrTree(ft.AggregationTree(b.Hosts(), core))
	return resource.NewLedger(ft, intPtr(1), nil), a, b
}

func TestNewSharingGroup_Empty_Panics(t *testing.T) {
	ledger := resource.NewLedger(smallFatTree(t), nil, nil)
	assert.Panics(t, func() { NewSharingGroup(nil, ledger, greedySharing) })
}

func TestSharingGroup_CanUseSharp(t *testing.T) {
	ledger, a, b := conflictingPair(t)
	noTree := oneOpJob(testContext(), 2, 1, 100)
	g := NewSharingGroup([]*Job{a, b, noTree}, ledger, greedySharing)

	assert.True(t, g.CanUseSharp(a))
	assert.False(t, g.CanUseSharp(noTree), "no tree")

	// WHEN a starts a SHARP transmission
	a.Advance(0)
	a.Advance(0)
	require.True(t, a.IsUsingSharp())

	// THEN nobody else may use SHARP
	assert.False(t, g.CanUseSharp(b))
	assert.False(t, g.CanUseSharp(a))
}

func TestSharingGroup_CanUseSharp_LedgerFull(t *testing.T) {
	// GIVEN a's tree already saturates the core through someone else
	ledger, a, b := conflictingPair(t)
	ledger.AllocateTree(b.CurrentAggrTree())
	g := NewSharingGroup([]*Job{a}, ledger, greedySharing)

	assert.False(t, g.CanUseSharp(a))
}

func TestSharingGroup_NextEvent_TieGoesToFirstMember(t *testing.T) {
	_, a, b := conflictingPair(t)
	ledger := resource.NewLedger(smallFatTree(t), nil, nil)
	g := NewSharingGroup([]*Job{b, a}, ledger, greedySharing)

	at, owner := g.NextEvent(3)

	assert.Equal(t, 3.0, at)
	assert.Same(t, b, owner)
}

func TestSharingGroup_SharpIsExclusive_AndLedgerFollowsTransmission(t *testing.T) {
	// GIVEN two conflicting jobs in one group with greedy sharing
	ledger, a, b := conflictingPair(t)
	g := NewSharingGroup([]*Job{a, b}, ledger, greedySharing)
	core := a.CurrentAggrTree().Root()

	// WHEN both start their op at t=0
	a.Advance(0)
	b.Advance(0)
	a.Advance(0)
	b.Advance(0)

	// THEN only the first gets SHARP and its tree is held in the ledger
	assert.True(t, a.IsUsingSharp())
	assert.True(t, b.IsTransmitting())
	assert.False(t, b.IsUsingSharp())
	assert.Equal(t, 1, ledger.NodeUsage(core.ID))

	// AND completing the SHARP transmission releases the tree
	a.Advance(0.5)
	assert.Equal(t, 0, ledger.NodeUsage(core.ID))
	assert.Equal(t, 0, ledger.SwitchUsageSum())

	// AND two decisions plus one release counted for both members
	assert.Equal(t, 3, a.ConsensusCount())
	assert.Equal(t, 3, b.ConsensusCount())
	assert.Equal(t, 2, g.PolicyCalls())
}

func TestSharingGroup_AfterTransmission_CountsConsensus(t *testing.T) {
	// GIVEN two members, the first mid non-SHARP transmission
	ledger, a, b := conflictingPair(t)
	g := NewSharingGroup([]*Job{a, b}, ledger, SharingPolicyFunc(func(*SharingGroup, *Job, float64) Decision {
		return Proceed(false)
	}))
	a.Advance(0)
	a.Advance(0)
	require.Equal(t, 1, b.ConsensusCount())

	// WHEN the transmission completes
	a.Advance(1)

	// THEN the release is a second round for every member, without a policy call
	assert.Equal(t, 2, a.ConsensusCount())
	assert.Equal(t, 2, b.ConsensusCount())
	assert.Equal(t, 1, g.PolicyCalls())
	assert.Equal(t, 0, ledger.SwitchUsageSum())
}

func TestSharingGroup_SingleMember_NoConsensus(t *testing.T) {
	ledger, a, _ := conflictingPair(t)
	NewSharingGroup([]*Job{a}, ledger, greedySharing)

	drive(t, a, 10)

	assert.True(t, a.IsFinished())
	assert.Equal(t, 0, a.ConsensusCount())
	assert.Equal(t, 0.5, a.DurationWithSharp())
	assert.Equal(t, 0, ledger.SwitchUsageSum())
}

func TestSharingGroup_PolicyGrantingTwice_Panics(t *testing.T) {
	ledger, a, b := conflictingPair(t)
	alwaysSharp := SharingPolicyFunc(func(*SharingGroup, *Job, float64) Decision { return Proceed(true) })
	NewSharingGroup([]*Job{a, b}, ledger, alwaysSharp)

	a.Advance(0)
	b.Advance(0)
	a.Advance(0)
	assert.Panics(t, func() { b.Advance(0) })
}

func TestSharingGroup_PolicyGrantingWithoutTree_Panics(t *testing.T) {
	ledger := resource.NewLedger(smallFatTree(t), nil, nil)
	j := oneOpJob(testContext(), 2, 1, 100)
	alwaysSharp := SharingPolicyFunc(func(*SharingGroup, *Job, float64) Decision { return Proceed(true) })
	NewSharingGroup([]*Job{j}, ledger, alwaysSharp)

	j.Advance(0)
	assert.Panics(t, func() { j.Advance(0) })
}

func TestSharingGroup_WaitDecision_StillCountsConsensus(t *testing.T) {
	ledger, a, b := conflictingPair(t)
	waitOnce := true
	policy := SharingPolicyFunc(func(*SharingGroup, *Job, float64) Decision {
		if waitOnce {
			waitOnce = false
			return WaitFor(0.25)
		}
		return Proceed(false)
	})
	NewSharingGroup([]*Job{a, b}, ledger, policy)

	a.Advance(0)
	a.Advance(0)

	assert.Equal(t, JobWaiting, a.State())
	assert.Equal(t, 1, a.ConsensusCount())
	assert.Equal(t, 1, b.ConsensusCount())
}

func TestSharingGroup_ReservedTree_SkipsLedger(t *testing.T) {
	// GIVEN a's tree is reserved for its lifetime and fills the quota
	ledger, a, _ := conflictingPair(t)
	ledger.AllocateTree(a.CurrentAggrTree())
	reserved := map[*Job]*topology.AggrTree{a: a.CurrentAggrTree()}
	newSharingGroup([]*Job{a}, ledger, greedySharing, reserved)
	core := a.CurrentAggrTree().Root()

	// WHEN a runs to completion with SHARP
	drive(t, a, 10)

	// THEN SHARP was used and the reservation is untouched
	assert.Equal(t, 0.5, a.DurationWithSharp())
	assert.Equal(t, 1, ledger.NodeUsage(core.ID))
}
