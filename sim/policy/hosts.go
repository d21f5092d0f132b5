package policy

import (
	"fmt"
	"math/rand/v2"

	"github.com/sharp-sim/sharp-sim/sim"
	"github.com/sharp-sim/sharp-sim/sim/resource"
	"github.com/sharp-sim/sharp-sim/sim/topology"
)

// DefaultSmartAlpha is the score of an untouched free pod used when the
// smart host policy is selected without an explicit alpha.
const DefaultSmartAlpha = 0.5

// FirstHosts takes the lowest-ID free hosts.
type FirstHosts struct{}

func (FirstHosts) AllocateHosts(ledger *resource.Ledger, hostCount int) []*topology.Node {
	checkHostCount(hostCount)
	var chosen []*topology.Node
	for _, h := range ledger.Topology().Hosts() {
		if ledger.IsHostAvailable(h) {
			chosen = append(chosen, h)
			if len(chosen) == hostCount {
				return chosen
			}
		}
	}
	return nil
}

// RandomHosts draws a uniform sample of the free hosts. The sample keeps
// ascending ID order.
type RandomHosts struct {
	rng *rand.Rand
}

// NewRandomHosts creates a RandomHosts drawing from rng.
func NewRandomHosts(rng *rand.Rand) *RandomHosts {
	return &RandomHosts{rng: rng}
}

func (r *RandomHosts) AllocateHosts(ledger *resource.Ledger, hostCount int) []*topology.Node {
	checkHostCount(hostCount)
	free := ledger.AvailableHosts()
	if len(free) < hostCount {
		return nil
	}
	return sample(r.rng, free, hostCount)
}

// SmartHosts places a job so that the cluster stays as unfragmented as
// possible. Each pod is scored recursively: a pod left entirely free scores
// Alpha, a pod taken entirely scores 1, and a mixed pod scores the sum of its
// sub-pods. The allocation with the lowest total score wins; with Alpha < 1
// this prefers filling whole pods and keeping other pods whole.
type SmartHosts struct {
	Alpha float64
}

type hostChoice struct {
	score float64
	hosts []*topology.Node
}

func (s SmartHosts) AllocateHosts(ledger *resource.Ledger, hostCount int) []*topology.Node {
	checkHostCount(hostCount)
	ft := ledger.Topology()
	table, available := s.tryAllocate(ledger, 0, ft.HostCount(), ft.Height, hostCount)
	if available < hostCount {
		return nil
	}
	return table[hostCount].hosts
}

// tryAllocate returns, for every k up to min(free hosts, required), the best
// score and host set for taking k hosts from the pod starting at begin, and
// the number of free hosts in the pod.
func (s SmartHosts) tryAllocate(ledger *resource.Ledger, begin, size, layer, required int) ([]hostChoice, int) {
	ft := ledger.Topology()
	if layer == 0 {
		host := ft.Hosts()[begin]
		if !ledger.IsHostAvailable(host) {
			return []hostChoice{{score: 0}}, 0
		}
		return []hostChoice{{score: s.Alpha}, {score: 1, hosts: []*topology.Node{host}}}, 1
	}

	table := []hostChoice{{score: 0}}
	total := 0
	subSize := size / ft.DownLinkCount[layer-1]
	for sub := begin; sub < begin+size; sub += subSize {
		subTable, subAvailable := s.tryAllocate(ledger, sub, subSize, layer-1, required)
		merged := make([]hostChoice, min(total+subAvailable, required)+1)
		for k := range merged {
			bestI := -1
			for i := max(0, k-total); i <= min(subAvailable, k); i++ {
				score := subTable[i].score + table[k-i].score
				if bestI < 0 || score < merged[k].score {
					bestI = i
					merged[k].score = score
				}
			}
			hosts := make([]*topology.Node, 0, k)
			hosts = append(hosts, table[k-bestI].hosts...)
			merged[k].hosts = append(hosts, subTable[bestI].hosts...)
		}
		table = merged
		total += subAvailable
	}
	if total == size {
		table[0].score = s.Alpha
		if size <= required {
			table[size].score = 1
		}
	}
	return table, total
}

func checkHostCount(hostCount int) {
	if hostCount < 1 {
		panic(fmt.Sprintf("AllocateHosts: host count must be >= 1, got %d", hostCount))
	}
}

// sample draws k of items uniformly without replacement, preserving order.
func sample[T any](rng *rand.Rand, items []T, k int) []T {
	out := make([]T, 0, k)
	for i, item := range items {
		if rng.IntN(len(items)-i) < k-len(out) {
			out = append(out, item)
		}
	}
	return out
}

// ValidHostAllocationPolicies lists the accepted host allocation names.
var ValidHostAllocationPolicies = map[string]bool{
	"":       true,
	"first":  true,
	"random": true,
	"smart":  true,
}

// IsValidHostAllocationPolicy returns true if name is a recognized host policy.
func IsValidHostAllocationPolicy(name string) bool {
	return ValidHostAllocationPolicies[name]
}

// NewHostAllocationPolicy creates a host allocation policy by name.
// Valid names: "first" (default), "random", "smart". alpha configures smart;
// rng drives random.
func NewHostAllocationPolicy(name string, alpha float64, rng *rand.Rand) sim.HostAllocationPolicy {
	switch name {
	case "", "first":
		return FirstHosts{}
	case "random":
		return NewRandomHosts(rng)
	case "smart":
		return SmartHosts{Alpha: alpha}
	default:
		panic(fmt.Sprintf("unknown host allocation policy %q; valid policies: [first, random, smart]", name))
	}
}
