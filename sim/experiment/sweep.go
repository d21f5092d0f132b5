package experiment

import (
	"fmt"
	"strings"

	"github.com/sharp-sim/sharp-sim/sim/graph"
	"github.com/sharp-sim/sharp-sim/sim/policy"
	"github.com/sharp-sim/sharp-sim/sim/scenario"
	"github.com/sharp-sim/sharp-sim/sim/workload"
)

// Sweep is a grid of variations over a base scenario. An empty dimension
// keeps the base scenario's value.
type Sweep struct {
	Seeds           []int64  `yaml:"seeds"`
	HostCountTraces []int    `yaml:"host_count_traces"`
	HostAllocation  []string `yaml:"host_allocation"`
	TreeBuilding    []string `yaml:"tree_building"`
	Oracles         []string `yaml:"oracles"`
	Sharing         []string `yaml:"sharing"`
}

// Validate checks every swept value.
func (sw *Sweep) Validate() error {
	for _, i := range sw.HostCountTraces {
		if _, err := workload.HostCountTrace(i); err != nil {
			return err
		}
	}
	for _, name := range sw.HostAllocation {
		if !policy.IsValidHostAllocationPolicy(name) {
			return fmt.Errorf("unknown host allocation policy %q", name)
		}
	}
	for _, name := range sw.TreeBuilding {
		if !policy.IsValidTreeBuildingPolicy(name) {
			return fmt.Errorf("unknown tree building policy %q", name)
		}
	}
	for _, name := range sw.Oracles {
		if !graph.IsValidOracle(name) {
			return fmt.Errorf("unknown oracle %q", name)
		}
	}
	for _, name := range sw.Sharing {
		if !policy.IsValidSharingPolicy(name) {
			return fmt.Errorf("unknown sharing policy %q", name)
		}
	}
	return nil
}

// Expand returns one scenario per grid point. Scenarios that differ only in
// seed share a name so Summarize groups them. The order is trace, host
// policy, tree policy, oracle, sharing policy and finally seed, each
// dimension in the order given.
func (sw *Sweep) Expand(base *scenario.Scenario) []*scenario.Scenario {
	var out []*scenario.Scenario
	for _, tr := range orBase(sw.HostCountTraces, -1) {
		for _, hp := range orBase(sw.HostAllocation, base.Policies.HostAllocation) {
			for _, tp := range orBase(sw.TreeBuilding, base.Policies.TreeBuilding) {
				for _, oracle := range orBase(sw.Oracles, base.Policies.Oracle) {
					for _, sp := range orBase(sw.Sharing, base.Policies.Sharing) {
						for _, seed := range orBase(sw.Seeds, base.SeedOrDefault()) {
							s := *base
							s.Policies.HostAllocation = hp
							s.Policies.TreeBuilding = tp
							s.Policies.Oracle = oracle
							s.Policies.Sharing = sp
							s.Seed = &seed
							if tr >= 0 {
								s.Workload.HostCountTrace = &tr
								s.Workload.HostCounts = nil
							}
							s.Name = pointName(base.Name, &s, tr)
							out = append(out, &s)
						}
					}
				}
			}
		}
	}
	return out
}

func orBase[T any](values []T, base T) []T {
	if len(values) == 0 {
		return []T{base}
	}
	return values
}

func pointName(base string, s *scenario.Scenario, trace int) string {
	p := s.Policies
	parts := []string{
		"hosts=" + nonEmpty(p.HostAllocation, "first"),
		"trees=" + nonEmpty(p.TreeBuilding, "none"),
		"sharing=" + nonEmpty(p.Sharing, "greedy"),
	}
	if p.TreeBuilding == "smart" {
		parts = append(parts, "oracle="+nonEmpty(p.Oracle, "greedy"))
	}
	if trace >= 0 {
		parts = append(parts, fmt.Sprintf("trace=%d", trace))
	}
	name := strings.Join(parts, ",")
	if base != "" {
		name = base + "[" + name + "]"
	}
	return name
}

func nonEmpty(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
