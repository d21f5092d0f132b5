package graph

import (
	"fmt"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// IndependentSetOracle picks a set of mutually non-adjacent vertices.
// Implementations should favor heavy sets but need not be optimal.
type IndependentSetOracle interface {
	IndependentSet(g *ConflictGraph) []int
}

// GreedyOracle repeatedly takes the remaining vertex maximizing
// weight/(remaining degree+1), then drops its neighbors. Ties go to the
// lowest index.
type GreedyOracle struct{}

func (GreedyOracle) IndependentSet(g *ConflictGraph) []int {
	return greedy(g, func(v, degree int) float64 {
		return g.Weight(v) / float64(degree+1)
	})
}

// MinDegreeOracle ignores weights and repeatedly takes the remaining vertex
// of smallest remaining degree. Ties go to the lowest index.
type MinDegreeOracle struct{}

func (MinDegreeOracle) IndependentSet(g *ConflictGraph) []int {
	return greedy(g, func(_, degree int) float64 {
		return -float64(degree)
	})
}

func greedy(g *ConflictGraph, score func(v, degree int) float64) []int {
	n := g.Len()
	alive := make([]bool, n)
	degree := make([]int, n)
	neighbors := make([][]int, n)
	for v := 0; v < n; v++ {
		alive[v] = true
		neighbors[v] = g.Neighbors(v)
		degree[v] = len(neighbors[v])
	}
	remove := func(v int) {
		alive[v] = false
		for _, u := range neighbors[v] {
			if alive[u] {
				degree[u]--
			}
		}
	}
	var set []int
	for {
		best := -1
		bestScore := 0.0
		for v := 0; v < n; v++ {
			if !alive[v] {
				continue
			}
			if s := score(v, degree[v]); best < 0 || s > bestScore {
				best, bestScore = v, s
			}
		}
		if best < 0 {
			break
		}
		set = append(set, best)
		remove(best)
		for _, u := range neighbors[best] {
			if alive[u] {
				remove(u)
			}
		}
	}
	slices.Sort(set)
	return set
}

// ExactOracle returns a maximum-weight independent set: the heaviest
// maximal clique of the complement graph, enumerated with Bron-Kerbosch.
// Ties go to the lexicographically smallest set. Exponential in the worst
// case; meant for small candidate sets and for measuring the heuristics.
type ExactOracle struct{}

func (ExactOracle) IndependentSet(g *ConflictGraph) []int {
	n := g.Len()
	if n == 0 {
		return nil
	}
	complement := simple.NewUndirectedGraph()
	for v := 0; v < n; v++ {
		complement.AddNode(simple.Node(v))
	}
	for u := 0; u < n; u++ {
		for v := u + 1; v < n; v++ {
			if !g.HasEdge(u, v) {
				complement.SetEdge(complement.NewEdge(simple.Node(u), simple.Node(v)))
			}
		}
	}
	var best []int
	bestWeight := 0.0
	for _, clique := range topo.BronKerbosch(complement) {
		set := make([]int, len(clique))
		for i, node := range clique {
			set[i] = int(node.ID())
		}
		slices.Sort(set)
		w := 0.0
		for _, v := range set {
			w += g.Weight(v)
		}
		if best == nil || w > bestWeight || (w == bestWeight && slices.Compare(set, best) < 0) {
			best, bestWeight = set, w
		}
	}
	return best
}

// ValidOracles lists the accepted oracle names.
var ValidOracles = map[string]bool{
	"":           true,
	"greedy":     true,
	"min-degree": true,
	"exact":      true,
}

// IsValidOracle returns true if name is a recognized oracle.
func IsValidOracle(name string) bool {
	return ValidOracles[name]
}

// NewOracle creates an oracle by name. An empty name selects "greedy".
// Panics on unrecognized names.
func NewOracle(name string) IndependentSetOracle {
	switch name {
	case "", "greedy":
		return GreedyOracle{}
	case "min-degree":
		return MinDegreeOracle{}
	case "exact":
		return ExactOracle{}
	default:
		panic(fmt.Sprintf("unknown independent-set oracle %q", name))
	}
}
