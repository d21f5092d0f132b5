package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sharp-sim/sharp-sim/sim"
	"github.com/sharp-sim/sharp-sim/sim/resource"
)

// sharedCoreGroup puts two jobs whose trees meet on core 12 into one group
// under quota 1. Both jobs have been started at t=0.
func sharedCoreGroup(t *testing.T, policy sim.SharingPolicy, first, second sim.CommOpGroup) (*sim.SharingGroup, *sim.Job, *sim.Job) {
	t.Helper()
	ft := smallFatTree(t)
	ctx := testContext()
	a := placedJob(ctx, ft, first, 0, 2)
	b := placedJob(ctx, ft, second, 1, 3)
	core := &ft.Nodes[core12]
	a.SetNextAggrTree(ft.AggregationTree(a.Hosts(), core))
	b.SetNextAggrTree(ft.AggregationTree(b.Hosts(), core))
	g := sim.NewSharingGroup([]*sim.Job{a, b}, resource.NewLedger(ft, intPtr(1), nil), policy)
	a.Advance(0)
	b.Advance(0)
	return g, a, b
}

func TestGreedySharing(t *testing.T) {
	g, a, b := sharedCoreGroup(t, GreedySharing{}, oneOp(100), oneOp(100))

	assert.Equal(t, sim.Proceed(true), GreedySharing{}.Decide(g, a, 0))

	// WHEN a takes SHARP
	a.Advance(0)

	// THEN b is refused
	assert.True(t, a.IsUsingSharp())
	assert.Equal(t, sim.Proceed(false), GreedySharing{}.Decide(g, b, 0))
}

func TestNonSharpSharing(t *testing.T) {
	g, a, _ := sharedCoreGroup(t, NonSharpSharing{}, oneOp(100), oneOp(100))
	assert.Equal(t, sim.Proceed(false), NonSharpSharing{}.Decide(g, a, 0))
}

func TestSmartSharing(t *testing.T) {
	// a's op ends long before its 3s barrier, so SHARP saves it nothing;
	// b's op is the whole group, so SHARP halves it.
	slack := sim.CommOpGroup{CommOps: []sim.CommOp{{MessageSize: 100, Type: sim.AllReduce}}, SyncTime: 3}
	late := sim.CommOpGroup{CommOps: []sim.CommOp{{StartTimeInGroup: 5, MessageSize: 100, Type: sim.AllReduce}}}

	tests := []struct {
		name       string
		first      sim.CommOpGroup
		second     sim.CommOpGroup
		wantFirst  bool
		wantSecond bool
	}{
		{
			name:       "urgent member wins",
			first:      slack,
			second:     oneOp(100),
			wantFirst:  false,
			wantSecond: true,
		},
		{
			name:       "equal urgency keeps SHARP",
			first:      oneOp(100),
			second:     oneOp(100),
			wantFirst:  true,
			wantSecond: true,
		},
		{
			name:       "other op starts too late to compete",
			first:      slack,
			second:     late,
			wantFirst:  true,
			wantSecond: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, a, b := sharedCoreGroup(t, SmartSharing{}, tt.first, tt.second)
			assert.Equal(t, sim.Proceed(tt.wantFirst), SmartSharing{}.Decide(g, a, 0))
			assert.Equal(t, sim.Proceed(tt.wantSecond), SmartSharing{}.Decide(g, b, 0))
		})
	}
}

func TestSmartSharing_RespectsCanUseSharp(t *testing.T) {
	g, a, b := sharedCoreGroup(t, SmartSharing{}, oneOp(100), oneOp(100))
	a.Advance(0)
	assert.True(t, a.IsUsingSharp())
	assert.Equal(t, sim.Proceed(false), SmartSharing{}.Decide(g, b, 0))
}

func TestNewSharingPolicy(t *testing.T) {
	assert.IsType(t, GreedySharing{}, NewSharingPolicy(""))
	assert.IsType(t, GreedySharing{}, NewSharingPolicy("greedy"))
	assert.IsType(t, NonSharpSharing{}, NewSharingPolicy("non-sharp"))
	assert.IsType(t, SmartSharing{}, NewSharingPolicy("smart"))
	assert.Panics(t, func() { NewSharingPolicy("fair") })
	assert.True(t, IsValidSharingPolicy("non-sharp"))
	assert.False(t, IsValidSharingPolicy("fair"))
}
