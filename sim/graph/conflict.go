// Package graph holds the weighted conflict graph built by tree-building
// policies and the independent-set oracles that pick mutually compatible
// vertices from it.
package graph

import (
	"fmt"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// ConflictGraph is an undirected graph over the vertices 0..n-1 where an edge
// means the two candidates cannot both be chosen. Each vertex carries a
// positive weight.
type ConflictGraph struct {
	g       *simple.UndirectedGraph
	weights []float64
}

// NewConflictGraph creates n isolated vertices of weight 1.
func NewConflictGraph(n int) *ConflictGraph {
	g := simple.NewUndirectedGraph()
	weights := make([]float64, n)
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
		weights[i] = 1
	}
	return &ConflictGraph{g: g, weights: weights}
}

// Len is the number of vertices.
func (c *ConflictGraph) Len() int { return len(c.weights) }

// SetWeight sets the weight of vertex v.
func (c *ConflictGraph) SetWeight(v int, w float64) {
	c.check(v)
	c.weights[v] = w
}

// Weight returns the weight of vertex v.
func (c *ConflictGraph) Weight(v int) float64 { return c.weights[v] }

// AddEdge joins u and v. Adding an existing edge is a no-op.
// Panics on a self edge.
func (c *ConflictGraph) AddEdge(u, v int) {
	c.check(u)
	c.check(v)
	if u == v {
		panic(fmt.Sprintf("ConflictGraph.AddEdge: self edge on %d", u))
	}
	c.g.SetEdge(c.g.NewEdge(simple.Node(u), simple.Node(v)))
}

// HasEdge reports whether u and v are joined.
func (c *ConflictGraph) HasEdge(u, v int) bool {
	return c.g.HasEdgeBetween(int64(u), int64(v))
}

// Neighbors returns the vertices joined to v in ascending order.
func (c *ConflictGraph) Neighbors(v int) []int {
	c.check(v)
	nodes := graph.NodesOf(c.g.From(int64(v)))
	out := make([]int, len(nodes))
	for i, n := range nodes {
		out[i] = int(n.ID())
	}
	slices.Sort(out)
	return out
}

// Degree is the number of neighbors of v.
func (c *ConflictGraph) Degree(v int) int {
	return c.g.From(int64(v)).Len()
}

// Undirected exposes the underlying gonum graph for analysis.
func (c *ConflictGraph) Undirected() graph.Undirected { return c.g }

// IsIndependent reports whether no two vertices of set are joined.
func (c *ConflictGraph) IsIndependent(set []int) bool {
	for i := range set {
		for j := i + 1; j < len(set); j++ {
			if set[i] == set[j] || c.HasEdge(set[i], set[j]) {
				return false
			}
		}
	}
	return true
}

func (c *ConflictGraph) check(v int) {
	if v < 0 || v >= len(c.weights) {
		panic(fmt.Sprintf("ConflictGraph: vertex %d out of range [0,%d)", v, len(c.weights)))
	}
}
