package policy

import (
	"fmt"
	"math/rand/v2"

	"github.com/sirupsen/logrus"

	"github.com/sharp-sim/sharp-sim/sim"
	"github.com/sharp-sim/sharp-sim/sim/graph"
	"github.com/sharp-sim/sharp-sim/sim/resource"
	"github.com/sharp-sim/sharp-sim/sim/topology"
)

// NoTrees never assigns aggregation trees; every job runs without SHARP.
type NoTrees struct{}

func (NoTrees) BuildTrees(*resource.Ledger, []*sim.Job, []*sim.Job) {}

// FirstTrees gives each new job the tree rooted at its first closest common
// ancestor that fits the ledger right now.
type FirstTrees struct{}

func (FirstTrees) BuildTrees(ledger *resource.Ledger, _ []*sim.Job, admitted []*sim.Job) {
	for _, job := range admitted {
		if trees := fittingTrees(ledger, job); len(trees) > 0 {
			job.SetNextAggrTree(trees[0])
		}
	}
}

// RandomTrees picks uniformly among the fitting trees of each new job.
type RandomTrees struct {
	rng *rand.Rand
}

// NewRandomTrees creates a RandomTrees drawing from rng.
func NewRandomTrees(rng *rand.Rand) *RandomTrees {
	return &RandomTrees{rng: rng}
}

func (r *RandomTrees) BuildTrees(ledger *resource.Ledger, _ []*sim.Job, admitted []*sim.Job) {
	for _, job := range admitted {
		if trees := fittingTrees(ledger, job); len(trees) > 0 {
			job.SetNextAggrTree(trees[r.rng.IntN(len(trees))])
		}
	}
}

// fittingTrees lists the job's candidate trees that the ledger can take now,
// in closest-common-ancestor order.
func fittingTrees(ledger *resource.Ledger, job *sim.Job) []*topology.AggrTree {
	ft := ledger.Topology()
	var trees []*topology.AggrTree
	for _, root := range ft.ClosestCommonAncestors(job.Hosts()) {
		tree := ft.AggregationTree(job.Hosts(), root)
		if !ledger.CheckTreeConflict(tree) {
			trees = append(trees, tree)
		}
	}
	return trees
}

// SmartTrees re-plans the trees of all running jobs after every admission.
//
// Every job contributes one candidate tree per closest common ancestor
// (at most MaxTreeCount, sampled at random, when set). Candidates are the
// vertices of a conflict graph weighted by the job's host count; two
// candidates are joined when they belong to the same job or conflict
// pairwise in the ledger. The oracle picks an independent set: those jobs get
// a tree of their own. Each chosen candidate then shares its switches with
// neighbors that touch no other chosen candidate, largest jobs first, as long
// as the sharers do not conflict with one another.
type SmartTrees struct {
	MaxTreeCount int // 0 = all candidates
	Oracle       graph.IndependentSetOracle
	rng          *rand.Rand
}

// NewSmartTrees creates a SmartTrees. rng is used only when maxTreeCount > 0.
func NewSmartTrees(maxTreeCount int, oracle graph.IndependentSetOracle, rng *rand.Rand) *SmartTrees {
	if maxTreeCount < 0 {
		panic(fmt.Sprintf("NewSmartTrees: max tree count must be >= 0, got %d", maxTreeCount))
	}
	if oracle == nil {
		oracle = graph.GreedyOracle{}
	}
	return &SmartTrees{MaxTreeCount: maxTreeCount, Oracle: oracle, rng: rng}
}

type candidate struct {
	job  *sim.Job
	tree *topology.AggrTree
}

func (s *SmartTrees) BuildTrees(ledger *resource.Ledger, running []*sim.Job, _ []*sim.Job) {
	candidates := s.candidates(ledger.Topology(), running)
	g := graph.NewConflictGraph(len(candidates))
	for i, c := range candidates {
		g.SetWeight(i, float64(c.job.HostCount))
	}
	for i := range candidates {
		for k := i + 1; k < len(candidates); k++ {
			if candidates[i].job == candidates[k].job ||
				ledger.CheckTreesConflict(candidates[i].tree, candidates[k].tree) {
				g.AddEdge(i, k)
			}
		}
	}

	centers := s.Oracle.IndependentSet(g)
	isCenter := make(map[int]bool, len(centers))
	centerJobs := make(map[*sim.Job]bool, len(centers))
	for _, v := range centers {
		isCenter[v] = true
		centerJobs[candidates[v].job] = true
	}
	// A non-center candidate can join a center only if it touches exactly one.
	centerDegree := make([]int, len(candidates))
	for v := range candidates {
		if centerJobs[candidates[v].job] {
			continue
		}
		for _, u := range g.Neighbors(v) {
			if isCenter[u] {
				centerDegree[v]++
			}
		}
	}

	assigned := make(map[*sim.Job]bool, len(running))
	for _, v := range centers {
		candidates[v].job.SetNextAggrTree(candidates[v].tree)
		assigned[candidates[v].job] = true
	}
	shared := 0
	for _, v := range centers {
		neighbors := g.Neighbors(v)
		available := make([]bool, len(neighbors))
		for i, u := range neighbors {
			available[i] = centerDegree[u] == 1
		}
		for {
			best := -1
			for i, u := range neighbors {
				if !available[i] {
					continue
				}
				if assigned[candidates[u].job] {
					available[i] = false
					continue
				}
				if best < 0 || candidates[u].job.HostCount > candidates[neighbors[best]].job.HostCount {
					best = i
				}
			}
			if best < 0 {
				break
			}
			chosen := neighbors[best]
			candidates[chosen].job.SetNextAggrTree(candidates[chosen].tree)
			assigned[candidates[chosen].job] = true
			available[best] = false
			shared++
			for i, u := range neighbors {
				if available[i] && g.HasEdge(chosen, u) {
					available[i] = false
				}
			}
		}
	}
	logrus.Debugf("smart trees: %d candidates for %d jobs, %d exclusive, %d sharing",
		len(candidates), len(running), len(centers), shared)
}

func (s *SmartTrees) candidates(ft *topology.FatTree, running []*sim.Job) []candidate {
	var out []candidate
	for _, job := range running {
		roots := ft.ClosestCommonAncestors(job.Hosts())
		if s.MaxTreeCount > 0 && s.MaxTreeCount < len(roots) {
			roots = sample(s.rng, roots, s.MaxTreeCount)
		}
		for _, root := range roots {
			out = append(out, candidate{job: job, tree: ft.AggregationTree(job.Hosts(), root)})
		}
	}
	return out
}

// ValidTreeBuildingPolicies lists the accepted tree building names.
var ValidTreeBuildingPolicies = map[string]bool{
	"":       true,
	"none":   true,
	"first":  true,
	"random": true,
	"smart":  true,
}

// IsValidTreeBuildingPolicy returns true if name is a recognized tree policy.
func IsValidTreeBuildingPolicy(name string) bool {
	return ValidTreeBuildingPolicies[name]
}

// NewTreeBuildingPolicy creates a tree building policy by name.
// Valid names: "none" (default), "first", "random", "smart". maxTreeCount and
// oracle configure smart; rng drives random and smart's candidate sampling.
func NewTreeBuildingPolicy(name string, maxTreeCount int, oracle graph.IndependentSetOracle, rng *rand.Rand) sim.TreeBuildingPolicy {
	switch name {
	case "", "none":
		return NoTrees{}
	case "first":
		return FirstTrees{}
	case "random":
		return NewRandomTrees(rng)
	case "smart":
		return NewSmartTrees(maxTreeCount, oracle, rng)
	default:
		panic(fmt.Sprintf("unknown tree building policy %q; valid policies: [none, first, random, smart]", name))
	}
}
