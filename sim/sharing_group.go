package sim

import (
	"fmt"
	"math"
	"time"

	"github.com/sharp-sim/sharp-sim/sim/resource"
	"github.com/sharp-sim/sharp-sim/sim/topology"
)

// SharingPolicy arbitrates SHARP access inside one SharingGroup.
type SharingPolicy interface {
	Decide(group *SharingGroup, job *Job, now float64) Decision
}

// SharingPolicyFunc adapts a function to SharingPolicy.
type SharingPolicyFunc func(group *SharingGroup, job *Job, now float64) Decision

func (f SharingPolicyFunc) Decide(group *SharingGroup, job *Job, now float64) Decision {
	return f(group, job, now)
}

// SharingGroup is the arbitration unit over jobs whose aggregation trees
// conflict. At most one member transmits with SHARP at any instant; the
// group reserves the member's tree in the ledger around each SHARP
// transmission. Groups are rebuilt, never edited, when membership changes.
type SharingGroup struct {
	jobs   []*Job
	ledger *resource.Ledger
	policy SharingPolicy

	// reserved holds trees already allocated for the whole job lifetime
	// (exclusive-tree mode). Nil otherwise.
	reserved map[*Job]*topology.AggrTree

	policyCalls    int
	policyOverhead time.Duration
}

// NewSharingGroup creates a group and installs it as every member's hooks.
func NewSharingGroup(jobs []*Job, ledger *resource.Ledger, policy SharingPolicy) *SharingGroup {
	return newSharingGroup(jobs, ledger, policy, nil)
}

func newSharingGroup(jobs []*Job, ledger *resource.Ledger, policy SharingPolicy, reserved map[*Job]*topology.AggrTree) *SharingGroup {
	if len(jobs) == 0 {
		panic("NewSharingGroup: empty job set")
	}
	g := &SharingGroup{jobs: jobs, ledger: ledger, policy: policy, reserved: reserved}
	for _, j := range jobs {
		j.SetHooks(g)
	}
	return g
}

// Jobs returns the members in their running order.
func (g *SharingGroup) Jobs() []*Job { return g.jobs }

// Ledger returns the shared resource ledger.
func (g *SharingGroup) Ledger() *resource.Ledger { return g.ledger }

// PolicyCalls is the number of sharing-policy invocations.
func (g *SharingGroup) PolicyCalls() int { return g.policyCalls }

// PolicyOverhead is the wall-clock time spent inside the sharing policy.
func (g *SharingGroup) PolicyOverhead() time.Duration { return g.policyOverhead }

// CanUseSharp reports whether job may start a SHARP transmission now: no
// member is mid-SHARP, the job holds a tree, and the ledger can take it.
func (g *SharingGroup) CanUseSharp(job *Job) bool {
	for _, j := range g.jobs {
		if j.IsUsingSharp() {
			return false
		}
	}
	tree := job.CurrentAggrTree()
	if tree == nil {
		return false
	}
	if g.holdsReservation(job) {
		return true
	}
	return !g.ledger.CheckTreeConflict(tree)
}

func (g *SharingGroup) holdsReservation(job *Job) bool {
	held, ok := g.reserved[job]
	return ok && held == job.CurrentAggrTree()
}

// NextEvent returns the earliest next-event time among members and the job
// it belongs to. Ties go to the member listed first.
func (g *SharingGroup) NextEvent(now float64) (float64, *Job) {
	best := math.Inf(1)
	var owner *Job
	for _, j := range g.jobs {
		if t := j.PeekNextEventTime(now); owner == nil || t < best {
			best, owner = t, j
		}
	}
	return best, owner
}

// BeforeTransmission asks the sharing policy and reserves the job's tree
// when it proceeds with SHARP.
func (g *SharingGroup) BeforeTransmission(job *Job, now float64) Decision {
	start := time.Now()
	d := g.policy.Decide(g, job, now)
	g.policyOverhead += time.Since(start)
	g.policyCalls++

	if !d.IsWait() && d.UseSharp {
		tree := job.CurrentAggrTree()
		if tree == nil {
			panic(fmt.Sprintf("SharingGroup.BeforeTransmission: job %d granted SHARP without a tree", job.ID))
		}
		for _, j := range g.jobs {
			if j != job && j.IsUsingSharp() {
				panic(fmt.Sprintf("SharingGroup.BeforeTransmission: job %d granted SHARP while job %d holds it", job.ID, j.ID))
			}
		}
		if !g.holdsReservation(job) {
			if g.ledger.CheckTreeConflict(tree) {
				panic(fmt.Sprintf("SharingGroup.BeforeTransmission: job %d granted SHARP on a conflicting tree", job.ID))
			}
			g.ledger.AllocateTree(tree)
		}
	}
	g.countConsensus()
	return d
}

// AfterTransmission releases the tree reserved by BeforeTransmission and
// counts one more consensus round.
func (g *SharingGroup) AfterTransmission(job *Job, _ float64, usedSharp bool) {
	if usedSharp && !g.holdsReservation(job) {
		g.ledger.DeallocateTree(job.CurrentAggrTree())
	}
	g.countConsensus()
}

// countConsensus charges one agreement round to every member of a shared group.
func (g *SharingGroup) countConsensus() {
	if len(g.jobs) < 2 {
		return
	}
	for _, j := range g.jobs {
		j.IncrementConsensus()
	}
}
