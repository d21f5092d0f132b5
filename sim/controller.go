package sim

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sharp-sim/sharp-sim/sim/internal/unionfind"
	"github.com/sharp-sim/sharp-sim/sim/resource"
	"github.com/sharp-sim/sharp-sim/sim/topology"
)

// ControllerConfig toggles optional controller behavior.
type ControllerConfig struct {
	// ExclusiveAggrTree reserves each new job's tree in the ledger for the
	// job's whole lifetime instead of per transmission.
	ExclusiveAggrTree bool
	// RecordTreeConflicts fills Result.TreeConflicts and Result.HostFragments.
	RecordTreeConflicts bool
	// Observe, if set, is called after every dispatched event.
	Observe func(c *Controller, now float64, job *Job)
}

// Controller owns admission, grouping and the global event loop of one run.
// A Controller runs once.
type Controller struct {
	ctx           *Context
	ledger        *resource.Ledger
	source        JobSource
	hostPolicy    HostAllocationPolicy
	treePolicy    TreeBuildingPolicy
	sharingPolicy SharingPolicy
	config        ControllerConfig

	running  []*Job
	groups   []*SharingGroup
	nextJob  *Job // buffered one ahead of admission
	admitted int
	reserved map[*Job]*topology.AggrTree

	now    float64
	ran    bool
	result *Result
}

// NewController wires a controller and pulls the first job from source.
func NewController(ctx *Context, ledger *resource.Ledger, source JobSource,
	hostPolicy HostAllocationPolicy, treePolicy TreeBuildingPolicy, sharingPolicy SharingPolicy,
	config ControllerConfig) *Controller {
	c := &Controller{
		ctx:           ctx,
		ledger:        ledger,
		source:        source,
		hostPolicy:    hostPolicy,
		treePolicy:    treePolicy,
		sharingPolicy: sharingPolicy,
		config:        config,
		result:        &Result{Jobs: make([]JobRecord, 0)},
	}
	if config.ExclusiveAggrTree {
		c.reserved = make(map[*Job]*topology.AggrTree)
	}
	c.nextJob = source.Next()
	return c
}

// Now is the current simulated time.
func (c *Controller) Now() float64 { return c.now }

// Ledger returns the resource ledger owned by the controller.
func (c *Controller) Ledger() *resource.Ledger { return c.ledger }

// Running returns the admitted, unfinished jobs in admission order.
func (c *Controller) Running() []*Job { return c.running }

// Groups returns the current sharing groups.
func (c *Controller) Groups() []*SharingGroup { return c.groups }

// PendingJob is the buffered job waiting for hosts, or nil.
func (c *Controller) PendingJob() *Job { return c.nextJob }

// AdmittedCount is the number of jobs admitted so far.
func (c *Controller) AdmittedCount() int { return c.admitted }

// RunNewJobs admits buffered jobs in order until host allocation fails or
// the source runs dry, builds trees for the batch, and regroups if anything
// was admitted. Returns the newly admitted jobs.
func (c *Controller) RunNewJobs() []*Job {
	return c.runNewJobs(false)
}

func (c *Controller) runNewJobs(rebuild bool) []*Job {
	var admitted []*Job
	for c.nextJob != nil {
		start := time.Now()
		hosts := c.hostPolicy.AllocateHosts(c.ledger, c.nextJob.HostCount)
		c.result.HostAllocationTime += time.Since(start)
		if hosts == nil {
			break
		}
		c.ledger.AllocateHosts(hosts)
		c.nextJob.SetHosts(hosts)
		c.running = append(c.running, c.nextJob)
		admitted = append(admitted, c.nextJob)
		c.admitted++
		logrus.Debugf("[t=%.6f] admitted %s", c.now, c.nextJob)
		c.nextJob = c.source.Next()
	}
	if len(admitted) > 0 {
		start := time.Now()
		c.treePolicy.BuildTrees(c.ledger, c.running, admitted)
		c.result.TreeBuildingTime += time.Since(start)
		if c.config.ExclusiveAggrTree {
			c.reserveTrees(admitted)
		}
		if c.config.RecordTreeConflicts {
			for _, j := range admitted {
				c.result.TreeConflicts = append(c.result.TreeConflicts, j.NextAggrTree() == nil)
			}
			c.result.HostFragments = append(c.result.HostFragments, FragmentSample{
				AdmittedJobs:       c.admitted,
				TakenFragments:     c.ledger.CalcHostFragments(false),
				AvailableFragments: c.ledger.CalcHostFragments(true),
			})
		}
	}
	if len(admitted) > 0 || rebuild {
		c.BuildSharingGroups()
	}
	return admitted
}

// reserveTrees holds each new job's tree for its lifetime. A tree that no
// longer fits (another job of the same batch took it first) is dropped and
// the job runs without SHARP.
func (c *Controller) reserveTrees(admitted []*Job) {
	for _, j := range admitted {
		tree := j.CurrentAggrTree()
		if tree == nil {
			continue
		}
		if c.ledger.CheckTreeConflict(tree) {
			logrus.Debugf("[t=%.6f] job %d: exclusive tree no longer fits, running without SHARP", c.now, j.ID)
			j.SetNextAggrTree(nil)
			continue
		}
		c.ledger.AllocateTree(tree)
		c.reserved[j] = tree
		c.result.SharpEnabledJobCount++
	}
}

// BuildSharingGroups partitions the running jobs into sharing groups: jobs
// whose grouping trees conflict pairwise end up in the same connected
// component. Groups are ordered by their lowest running index.
func (c *Controller) BuildSharingGroups() {
	c.retireGroups()
	uf := unionfind.New(len(c.running))
	for i, a := range c.running {
		ta := groupingTree(a)
		if ta == nil {
			continue
		}
		for k := i + 1; k < len(c.running); k++ {
			tb := groupingTree(c.running[k])
			if tb != nil && c.ledger.CheckTreesConflict(ta, tb) {
				uf.Union(i, k)
			}
		}
	}
	components := uf.Components()
	c.groups = make([]*SharingGroup, 0, len(components))
	for _, members := range components {
		jobs := make([]*Job, len(members))
		for i, idx := range members {
			jobs[i] = c.running[idx]
		}
		c.groups = append(c.groups, newSharingGroup(jobs, c.ledger, c.sharingPolicy, c.reserved))
	}
}

// groupingTree is the tree a job is grouped by. A job in the middle of a
// SHARP transmission holds its current tree in the ledger until the
// transmission ends, even when a migration is staged.
func groupingTree(j *Job) *topology.AggrTree {
	if j.IsUsingSharp() {
		return j.CurrentAggrTree()
	}
	return j.NextAggrTree()
}

// retireGroups folds the policy counters of the current groups into the result.
func (c *Controller) retireGroups() {
	for _, g := range c.groups {
		c.result.SharingPolicyCalls += g.PolicyCalls()
		c.result.SharingPolicyTime += g.PolicyOverhead()
	}
	c.groups = nil
}

func (c *Controller) nextEvent() (float64, *Job) {
	best := math.Inf(1)
	var owner *Job
	for _, g := range c.groups {
		if t, j := g.NextEvent(c.now); owner == nil || t < best {
			best, owner = t, j
		}
	}
	if owner == nil {
		panic(fmt.Sprintf("Controller.Run: %d running jobs but no pending event", len(c.running)))
	}
	return best, owner
}

// Run drives the event loop until no job is running or the next event lies
// beyond horizon (math.Inf(1) for no bound), then returns the metrics.
// Panics if called twice.
func (c *Controller) Run(horizon float64) *Result {
	if c.ran {
		panic("Controller.Run: controller already ran")
	}
	c.ran = true
	c.runNewJobs(false)
	for len(c.running) > 0 {
		t, job := c.nextEvent()
		if t < c.now {
			panic(fmt.Sprintf("Controller.Run: event at %g is before now %g", t, c.now))
		}
		if t > horizon {
			c.now = horizon
			break
		}
		c.now = t
		migrations := job.TreeMigrationCount()
		finished := job.Advance(t)
		if !finished && job.TreeMigrationCount() != migrations {
			// a staged tree took effect
			c.BuildSharingGroups()
		}
		if c.config.Observe != nil {
			c.config.Observe(c, t, job)
		}
		if finished {
			c.complete(job)
		}
	}
	return c.finalize()
}

func (c *Controller) complete(job *Job) {
	r := c.result
	jct := job.FinishTime() - job.StartTime()
	r.FinishedJobCount++
	r.TotalHostTime += jct * float64(job.HostCount)
	r.TotalJCT += jct
	r.TotalJCTWithSharp += job.StepDurationWithSharp * float64(job.StepCount)
	r.TotalJCTWithoutSharp += job.StepDurationWithoutSharp * float64(job.StepCount)
	r.TotalSharpTime += job.DurationWithSharp()
	r.TreeMigrationCount += job.TreeMigrationCount()
	if jct > 0 {
		r.ConsensusFrequency += float64(job.ConsensusCount()) / jct
	}
	c.addSharpUsage(job)
	r.Jobs = append(r.Jobs, c.record(job))

	c.ledger.DeallocateHosts(job.Hosts())
	if tree, ok := c.reserved[job]; ok {
		c.ledger.DeallocateTree(tree)
		delete(c.reserved, job)
	}
	for i, j := range c.running {
		if j == job {
			c.running = append(c.running[:i], c.running[i+1:]...)
			break
		}
	}
	logrus.Debugf("[t=%.6f] finished %s (jct=%.6f)", c.now, job, jct)
	c.runNewJobs(true)
}

func (c *Controller) addSharpUsage(job *Job) {
	if _, ok := c.ledger.NodeQuota(); !ok {
		return
	}
	if tree := job.CurrentAggrTree(); tree != nil {
		c.result.TotalSharpUsage += job.DurationWithSharp() * float64(tree.SwitchCount())
	}
}

func (c *Controller) record(job *Job) JobRecord {
	rec := JobRecord{
		ID:                   job.ID,
		HostCount:            job.HostCount,
		Finished:             job.IsFinished(),
		CompletedSteps:       job.CurrentStepIdx(),
		StartTime:            job.StartTime(),
		FinishTime:           job.FinishTime(),
		DurationWithSharp:    job.DurationWithSharp(),
		DurationWithoutSharp: job.DurationWithoutSharp(),
		TreeMigrations:       job.TreeMigrationCount(),
		Consensus:            job.ConsensusCount(),
	}
	if !rec.Finished {
		rec.FinishTime = job.CurrentGroupStartTime()
	}
	return rec
}

// finalize adds partial progress of still-running jobs and derives ratios.
func (c *Controller) finalize() *Result {
	r := c.result
	c.retireGroups()
	for _, job := range c.running {
		if !job.IsStarted() {
			continue
		}
		r.TotalHostTime += (c.now - job.StartTime()) * float64(job.HostCount)
		r.TotalJCT += job.CurrentGroupStartTime() - job.StartTime()
		r.TotalJCTWithSharp += job.StepDurationWithSharp * float64(job.CurrentStepIdx())
		r.TotalJCTWithoutSharp += job.StepDurationWithoutSharp * float64(job.CurrentStepIdx())
		r.TotalSharpTime += job.DurationWithSharp()
		r.TreeMigrationCount += job.TreeMigrationCount()
		c.addSharpUsage(job)
		r.Jobs = append(r.Jobs, c.record(job))
	}

	r.SimulatedTime = c.now
	topo := c.ledger.Topology()
	if c.now > 0 {
		r.ClusterUtilization = r.TotalHostTime / (c.now * float64(topo.HostCount()))
		if _, ok := c.ledger.NodeQuota(); ok {
			r.SharpUtilization = r.TotalSharpUsage / (c.now * float64(topo.SwitchCount()))
		}
	}
	if denom := r.TotalJCTWithSharp - r.TotalJCTWithoutSharp; denom != 0 {
		r.JCTScore = (r.TotalJCT - r.TotalJCTWithoutSharp) / denom
	}
	if r.TotalJCT > 0 {
		r.SharpRatio = r.TotalSharpTime / r.TotalJCT
	}
	if r.FinishedJobCount > 0 {
		r.ConsensusFrequency /= float64(r.FinishedJobCount)
	}
	logrus.Infof("[t=%.6f] simulation ended: %d finished, %d still running, utilization %.4f",
		c.now, r.FinishedJobCount, len(c.running), r.ClusterUtilization)
	return r
}
