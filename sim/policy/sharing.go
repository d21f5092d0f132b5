package policy

import (
	"fmt"

	"github.com/sharp-sim/sharp-sim/sim"
)

// GreedySharing uses SHARP whenever the group allows it.
type GreedySharing struct{}

func (GreedySharing) Decide(group *sim.SharingGroup, job *sim.Job, _ float64) sim.Decision {
	return sim.Proceed(group.CanUseSharp(job))
}

// NonSharpSharing never uses SHARP. It is the baseline for JCT scores.
type NonSharpSharing struct{}

func (NonSharpSharing) Decide(*sim.SharingGroup, *sim.Job, float64) sim.Decision {
	return sim.Proceed(false)
}

// SmartSharing gives SHARP to the most urgent op among those about to start.
//
// A job's urgency is the group time its next op would save with SHARP
// divided by the time until that op would end with SHARP. The job yields to
// any other member whose next op starts before this op would finish and
// whose urgency is strictly higher.
type SmartSharing struct{}

func (SmartSharing) Decide(group *sim.SharingGroup, job *sim.Job, now float64) sim.Decision {
	if !group.CanUseSharp(job) {
		return sim.Proceed(false)
	}
	info, ok := job.NextCommOpInfo(now)
	if !ok {
		panic(fmt.Sprintf("SmartSharing.Decide: job %d has no next comm op", job.ID))
	}
	ratio := urgency(job, info, now)
	for _, other := range group.Jobs() {
		if other == job {
			continue
		}
		otherInfo, ok := other.NextCommOpInfo(now)
		if !ok || otherInfo.OpStartTime >= now+info.DurationWithSharp {
			continue
		}
		if urgency(other, otherInfo, now) > ratio {
			return sim.Proceed(false)
		}
	}
	return sim.Proceed(true)
}

func urgency(job *sim.Job, info sim.CommOpInfo, now float64) float64 {
	return job.NextCommOpPriority(info) / (info.OpStartTime + info.DurationWithSharp - now)
}

// ValidSharingPolicies lists the accepted sharing policy names.
var ValidSharingPolicies = map[string]bool{
	"":          true,
	"greedy":    true,
	"non-sharp": true,
	"smart":     true,
}

// IsValidSharingPolicy returns true if name is a recognized sharing policy.
func IsValidSharingPolicy(name string) bool {
	return ValidSharingPolicies[name]
}

// NewSharingPolicy creates a sharing policy by name.
// Valid names: "greedy" (default), "non-sharp", "smart".
func NewSharingPolicy(name string) sim.SharingPolicy {
	switch name {
	case "", "greedy":
		return GreedySharing{}
	case "non-sharp":
		return NonSharpSharing{}
	case "smart":
		return SmartSharing{}
	default:
		panic(fmt.Sprintf("unknown sharing policy %q; valid policies: [greedy, non-sharp, smart]", name))
	}
}
