// Defines the Job state machine that models one collective-communication job.
// A job repeats its step (an ordered list of comm-op groups) StepCount times;
// the controller drives it one transition at a time through Advance.

package sim

import (
	"fmt"
	"math"

	"github.com/sharp-sim/sharp-sim/sim/topology"
	"github.com/sharp-sim/sharp-sim/sim/trace"
)

// JobState represents the lifecycle state of a job.
type JobState string

const (
	JobUnstarted    JobState = "unstarted"
	JobIdle         JobState = "idle"         // between transmissions
	JobWaiting      JobState = "waiting"      // delayed by a sharing decision
	JobTransmitting JobState = "transmitting" // a transmission is in flight
	JobFinished     JobState = "finished"
)

// TransmissionHooks are the two decision points of a job. The owning
// SharingGroup installs itself as the hooks of every member.
type TransmissionHooks interface {
	// BeforeTransmission decides whether the job waits or transmits now.
	BeforeTransmission(job *Job, now float64) Decision
	// AfterTransmission is notified when a transmission completes, before
	// any staged tree migration is committed.
	AfterTransmission(job *Job, now float64, usedSharp bool)
}

// pendingTree is a tree change staged during a SHARP transmission.
// set distinguishes "clear the tree" (set, nil tree) from "no change".
type pendingTree struct {
	set  bool
	tree *topology.AggrTree
}

// CommOpInfo is a side-effect-free forecast of a job's next comm op.
type CommOpInfo struct {
	GroupStartTime       float64
	OpStartTime          float64
	DurationWithSharp    float64 // remaining bytes of the op, with SHARP
	DurationWithoutSharp float64 // remaining bytes of the op, without SHARP
	GroupIdx             int
	OpIdx                int
}

// Job models one job's communication schedule and execution cursor.
type Job struct {
	ID           int
	HostCount    int
	StepCount    int // 0 = unbounded
	CommOpGroups []CommOpGroup

	// Best-case step durations, every op with or without SHARP.
	StepDurationWithSharp    float64
	StepDurationWithoutSharp float64

	ctx   *Context
	hooks TransmissionHooks

	stepIdx       int
	groupIdx      int
	opIdx         int
	opTransmitted int64 // bytes of the current op already sent
	groupStart    float64

	transmitting      bool
	usingSharp        bool
	transmittingBytes int64
	transmitStart     float64
	transmitDuration  float64

	waiting      bool
	waitingUntil float64

	started    bool
	finished   bool
	startTime  float64
	finishTime float64

	durationWithSharp    float64
	durationWithoutSharp float64
	migrations           int
	consensus            int

	hosts   []*topology.Node
	tree    *topology.AggrTree
	pending pendingTree
}

// NewJob creates a job with the next ID of the context.
// stepCount 0 means the job never finishes on its own.
// Panics on a non-positive host count, a negative step count, an empty
// schedule or a non-positive message size.
func (c *Context) NewJob(hostCount, stepCount int, groups []CommOpGroup) *Job {
	if hostCount < 1 {
		panic(fmt.Sprintf("Context.NewJob: host count must be >= 1, got %d", hostCount))
	}
	if stepCount < 0 {
		panic(fmt.Sprintf("Context.NewJob: step count must be >= 0, got %d", stepCount))
	}
	if len(groups) == 0 {
		panic("Context.NewJob: at least one comm-op group is required")
	}
	for gi, g := range groups {
		for oi, op := range g.CommOps {
			if op.MessageSize <= 0 {
				panic(fmt.Sprintf("Context.NewJob: group %d op %d has message size %d", gi, oi, op.MessageSize))
			}
		}
	}
	j := &Job{
		ID:           c.allocJobID(),
		HostCount:    hostCount,
		StepCount:    stepCount,
		CommOpGroups: groups,
		ctx:          c,
	}
	j.StepDurationWithSharp = j.stepDuration(true)
	j.StepDurationWithoutSharp = j.stepDuration(false)
	return j
}

func (j *Job) duration(op CommOp, bytes int64, useSharp bool) float64 {
	return j.ctx.Durations.TransmissionDuration(op.Type, bytes, useSharp, j.HostCount)
}

func (j *Job) stepDuration(useSharp bool) float64 {
	total := 0.0
	for _, g := range j.CommOpGroups {
		elapsed := 0.0
		for _, op := range g.CommOps {
			elapsed = math.Max(elapsed, op.StartTimeInGroup) + j.duration(op, op.MessageSize, useSharp)
		}
		total += math.Max(elapsed, g.SyncTime)
	}
	return total
}

// SetHooks installs the decision points. Called by SharingGroup.
func (j *Job) SetHooks(h TransmissionHooks) { j.hooks = h }

// SetHosts assigns the job's hosts. Panics if hosts were already assigned
// or the count does not match.
func (j *Job) SetHosts(hosts []*topology.Node) {
	if j.hosts != nil {
		panic(fmt.Sprintf("Job.SetHosts: job %d already has hosts", j.ID))
	}
	if len(hosts) != j.HostCount {
		panic(fmt.Sprintf("Job.SetHosts: job %d needs %d hosts, got %d", j.ID, j.HostCount, len(hosts)))
	}
	j.hosts = hosts
}

// SetNextAggrTree replaces the job's aggregation tree. During a SHARP
// transmission the change is staged and committed when the transmission
// completes; otherwise it applies immediately. A nil tree clears it.
func (j *Job) SetNextAggrTree(tree *topology.AggrTree) {
	if j.transmitting && j.usingSharp {
		j.pending = pendingTree{set: true, tree: tree}
		return
	}
	j.tree = tree
}

// PeekNextEventTime returns the time of the job's next transition without
// mutating it. Panics on a finished job.
func (j *Job) PeekNextEventTime(now float64) float64 {
	if !j.started {
		return now
	}
	if j.finished {
		panic(fmt.Sprintf("Job.PeekNextEventTime: job %d is finished", j.ID))
	}
	group := &j.CommOpGroups[j.groupIdx]
	if j.opIdx >= len(group.CommOps) {
		return math.Max(now, j.groupStart+group.SyncTime)
	}
	if j.transmitting {
		return j.transmitStart + j.transmitDuration
	}
	next := math.Max(now, j.groupStart+group.CommOps[j.opIdx].StartTimeInGroup)
	if j.waiting {
		next = math.Max(next, j.waitingUntil)
	}
	return next
}

// Advance performs the single transition PeekNextEventTime forecast and
// reports whether the job finished.
func (j *Job) Advance(now float64) bool {
	if !j.started {
		j.started = true
		j.startTime = now
		j.groupStart = now
		j.beginSpan(trace.CategoryJob, j.spanName(false, false, false), now)
		j.beginSpan(trace.CategoryStep, j.spanName(true, false, false), now)
		j.beginSpan(trace.CategoryGroup, j.spanName(true, true, false), now)
		return false
	}
	if j.finished {
		panic(fmt.Sprintf("Job.Advance: job %d is finished", j.ID))
	}
	group := &j.CommOpGroups[j.groupIdx]
	if j.opIdx >= len(group.CommOps) {
		return j.closeGroup(now, group)
	}
	op := group.CommOps[j.opIdx]
	if j.transmitting {
		j.completeTransmission(now, op)
		return false
	}
	j.startTransmission(now, op)
	return false
}

func (j *Job) closeGroup(now float64, group *CommOpGroup) bool {
	if now < j.groupStart+group.SyncTime {
		panic(fmt.Sprintf("Job.Advance: job %d closes group at %g before its sync time %g",
			j.ID, now, j.groupStart+group.SyncTime))
	}
	j.endSpan(trace.CategoryGroup, j.spanName(true, true, false), now)
	j.opIdx = 0
	j.groupIdx++
	if j.groupIdx >= len(j.CommOpGroups) {
		j.endSpan(trace.CategoryStep, j.spanName(true, false, false), now)
		j.groupIdx = 0
		j.stepIdx++
		if j.StepCount > 0 && j.stepIdx >= j.StepCount {
			j.endSpan(trace.CategoryJob, j.spanName(false, false, false), now)
			j.finished = true
			j.finishTime = now
			return true
		}
		j.beginSpan(trace.CategoryStep, j.spanName(true, false, false), now)
	}
	j.beginSpan(trace.CategoryGroup, j.spanName(true, true, false), now)
	j.groupStart = now
	return false
}

func (j *Job) startTransmission(now float64, op CommOp) {
	if j.hooks == nil {
		panic(fmt.Sprintf("Job.Advance: job %d has no transmission hooks", j.ID))
	}
	if j.opTransmitted == 0 && !j.waiting {
		j.beginSpan(trace.CategoryCommOp, j.spanName(true, true, true), now)
	}
	d := j.hooks.BeforeTransmission(j, now)
	if d.IsWait() {
		if !(d.Wait > 0) {
			panic(fmt.Sprintf("Job.Advance: job %d told to wait %g seconds", j.ID, d.Wait))
		}
		if !j.waiting {
			j.beginSpan(trace.CategoryWaiting, j.spanName(true, true, true)+" Waiting", now)
		}
		j.waiting = true
		j.waitingUntil = now + d.Wait
		return
	}
	if j.waiting {
		j.endSpan(trace.CategoryWaiting, j.spanName(true, true, true)+" Waiting", now)
		j.waiting = false
	}
	if d.UseSharp && j.tree == nil {
		panic(fmt.Sprintf("Job.Advance: job %d requested SHARP without an aggregation tree", j.ID))
	}
	remaining := op.MessageSize - j.opTransmitted
	bytes := d.Bytes
	if bytes == 0 {
		bytes = remaining
	}
	if bytes < 0 || bytes > remaining {
		panic(fmt.Sprintf("Job.Advance: job %d asked to send %d bytes with %d remaining", j.ID, bytes, remaining))
	}
	j.transmitting = true
	j.usingSharp = d.UseSharp
	j.transmittingBytes = bytes
	j.transmitStart = now
	j.transmitDuration = j.duration(op, bytes, d.UseSharp)
	j.beginSpan(j.transmissionCategory(), j.transmissionName(), now)
}

func (j *Job) completeTransmission(now float64, op CommOp) {
	if now != j.transmitStart+j.transmitDuration {
		panic(fmt.Sprintf("Job.Advance: job %d completes transmission at %g, expected %g",
			j.ID, now, j.transmitStart+j.transmitDuration))
	}
	j.endSpan(j.transmissionCategory(), j.transmissionName(), now)
	j.transmitting = false
	j.opTransmitted += j.transmittingBytes
	if j.opTransmitted == op.MessageSize {
		j.endSpan(trace.CategoryCommOp, j.spanName(true, true, true), now)
		j.opTransmitted = 0
		j.opIdx++
	}
	if j.usingSharp {
		j.durationWithSharp += j.transmitDuration
	} else {
		j.durationWithoutSharp += j.transmitDuration
	}
	if j.hooks != nil {
		j.hooks.AfterTransmission(j, now, j.usingSharp)
	}
	if j.pending.set {
		if !j.pending.tree.Equal(j.tree) {
			j.migrations++
		}
		j.tree = j.pending.tree
		j.pending = pendingTree{}
	}
}

// NextCommOpInfo forecasts the job's next comm op: when it would start and
// how long its remaining bytes take with and without SHARP. Returns false
// when the job has no further op.
func (j *Job) NextCommOpInfo(now float64) (CommOpInfo, bool) {
	if j.finished {
		return CommOpInfo{}, false
	}
	groupIdx, opIdx := j.groupIdx, j.opIdx
	transmitted := j.opTransmitted
	groupStart := j.groupStart
	waitingUntil := math.Inf(-1)
	if j.waiting {
		waitingUntil = j.waitingUntil
	}
	if !j.started {
		groupStart = now
	}
	if j.transmitting {
		now = j.transmitStart + j.transmitDuration
		transmitted += j.transmittingBytes
		if transmitted == j.CommOpGroups[groupIdx].CommOps[opIdx].MessageSize {
			transmitted = 0
			opIdx++
		}
	}
	if opIdx >= len(j.CommOpGroups[groupIdx].CommOps) {
		now = math.Max(now, groupStart+j.CommOpGroups[groupIdx].SyncTime)
		opIdx = 0
		groupIdx++
		if groupIdx >= len(j.CommOpGroups) {
			groupIdx = 0
			if j.StepCount > 0 && j.stepIdx+1 >= j.StepCount {
				return CommOpInfo{}, false
			}
		}
		groupStart = now
	}
	if opIdx >= len(j.CommOpGroups[groupIdx].CommOps) {
		return CommOpInfo{}, false
	}
	op := j.CommOpGroups[groupIdx].CommOps[opIdx]
	remaining := op.MessageSize - transmitted
	return CommOpInfo{
		GroupStartTime:       groupStart,
		OpStartTime:          math.Max(now, math.Max(waitingUntil, groupStart+op.StartTimeInGroup)),
		DurationWithSharp:    j.duration(op, remaining, true),
		DurationWithoutSharp: j.duration(op, remaining, false),
		GroupIdx:             groupIdx,
		OpIdx:                opIdx,
	}, true
}

// NextCommOpPriority is how much earlier the op's group would finish if
// only this op used SHARP, compared to no SHARP at all.
func (j *Job) NextCommOpPriority(info CommOpInfo) float64 {
	return j.groupFinishTime(info, false) - j.groupFinishTime(info, true)
}

func (j *Job) groupFinishTime(info CommOpInfo, sharpOnNext bool) float64 {
	group := &j.CommOpGroups[info.GroupIdx]
	t := info.OpStartTime + info.DurationWithoutSharp
	if sharpOnNext {
		t = info.OpStartTime + info.DurationWithSharp
	}
	for _, op := range group.CommOps[info.OpIdx+1:] {
		t = math.Max(t, info.GroupStartTime+op.StartTimeInGroup) + j.duration(op, op.MessageSize, false)
	}
	return math.Max(t, info.GroupStartTime+group.SyncTime)
}

// IncrementConsensus records one arbitration round involving this job.
func (j *Job) IncrementConsensus() { j.consensus++ }

// State returns the job's lifecycle state.
func (j *Job) State() JobState {
	switch {
	case !j.started:
		return JobUnstarted
	case j.finished:
		return JobFinished
	case j.transmitting:
		return JobTransmitting
	case j.waiting:
		return JobWaiting
	default:
		return JobIdle
	}
}

func (j *Job) IsStarted() bool { return j.started }
func (j *Job) IsFinished() bool { return j.finished }
func (j *Job) IsTransmitting() bool { return j.transmitting }

// IsUsingSharp reports whether a SHARP transmission is in flight.
func (j *Job) IsUsingSharp() bool { return j.transmitting && j.usingSharp }

func (j *Job) CurrentStepIdx() int { return j.stepIdx }
func (j *Job) CurrentGroupIdx() int { return j.groupIdx }
func (j *Job) CurrentOpIdx() int { return j.opIdx }
func (j *Job) CurrentOpTransmitted() int64 { return j.opTransmitted }
func (j *Job) CurrentGroupStartTime() float64 { return j.groupStart }
func (j *Job) StartTime() float64 { return j.startTime }
func (j *Job) FinishTime() float64 { return j.finishTime }
func (j *Job) DurationWithSharp() float64 { return j.durationWithSharp }
func (j *Job) DurationWithoutSharp() float64 { return j.durationWithoutSharp }
func (j *Job) TreeMigrationCount() int { return j.migrations }
func (j *Job) ConsensusCount() int { return j.consensus }
func (j *Job) Hosts() []*topology.Node { return j.hosts }
func (j *Job) CurrentAggrTree() *topology.AggrTree { return j.tree }

// NextAggrTree is the staged tree if a change is pending, else the current one.
func (j *Job) NextAggrTree() *topology.AggrTree {
	if j.pending.set {
		return j.pending.tree
	}
	return j.tree
}

func (j *Job) String() string {
	return fmt.Sprintf("Job(ID=%d, hosts=%d, state=%s, step=%d)", j.ID, j.HostCount, j.State(), j.stepIdx)
}

func (j *Job) spanName(step, group, op bool) string {
	name := fmt.Sprintf("Job #%d", j.ID)
	if step {
		name += fmt.Sprintf(" Step #%d", j.stepIdx)
	}
	if group {
		name += fmt.Sprintf(" Group #%d", j.groupIdx)
	}
	if op {
		name += fmt.Sprintf(" CommOp #%d", j.opIdx)
	}
	return name
}

func (j *Job) transmissionCategory() string {
	if j.usingSharp {
		return trace.CategoryTransmissionSharp
	}
	return trace.CategoryTransmissionNonSharp
}

func (j *Job) transmissionName() string {
	mode := "Non-SHARP"
	if j.usingSharp {
		mode = "SHARP"
	}
	return fmt.Sprintf("%s Transmission(%s, %dB~%dB)", j.spanName(true, true, true), mode,
		j.opTransmitted, j.opTransmitted+j.transmittingBytes)
}

func (j *Job) beginSpan(category, name string, now float64) {
	if j.ctx.Recorder.Enabled(category) {
		j.ctx.Recorder.Begin(category, name, j.ID, now)
	}
}

func (j *Job) endSpan(category, name string, now float64) {
	if j.ctx.Recorder.Enabled(category) {
		j.ctx.Recorder.End(category, name, j.ID, now)
	}
}
