// Package topology models the static multi-layer fat-tree: node and edge
// addressing, and aggregation-tree construction over a set of hosts.
//
// A FatTree is immutable once built and is shared read-only by the ledger,
// the jobs, and every policy of a simulation run.
package topology

import (
	"fmt"
	"strings"
)

// Node is a host (layer 0) or a switch (layer >= 1).
// Indices has one coordinate per link layer; coordinate i ranges over
// UpLinkCount[i] when i < Layer and over DownLinkCount[i] otherwise.
type Node struct {
	ID      int
	Layer   int
	Indices []int
}

// IsHost reports whether the node sits on layer 0.
func (n *Node) IsHost() bool {
	return n.Layer == 0
}

func (n *Node) String() string {
	parts := make([]string, len(n.Indices))
	for i, idx := range n.Indices {
		parts[i] = fmt.Sprint(idx)
	}
	return fmt.Sprintf("Node(ID=%d,Layer=%d,Indices=[%s])", n.ID, n.Layer, strings.Join(parts, ","))
}

// Edge connects a child on layer L to a parent on layer L+1.
type Edge struct {
	ID     int
	Parent *Node
	Child  *Node
}

func (e *Edge) String() string {
	return fmt.Sprintf("Edge(ID=%d,Parent=%s,Child=%s)", e.ID, e.Parent, e.Child)
}

// FatTree is the static network graph.
type FatTree struct {
	Height        int   // number of link layers; node layers are 0..Height
	DownLinkCount []int // per link layer: children of a node one layer up
	UpLinkCount   []int // per link layer: parents of a node on that layer

	Nodes        []Node
	NodesByLayer [][]*Node
	Edges        []Edge
	EdgesByLayer [][]*Edge // indexed by the child's layer
}

// New builds a fat-tree from explicit per-layer fan-outs.
func New(downLinkCount, upLinkCount []int) (*FatTree, error) {
	if len(downLinkCount) == 0 {
		return nil, fmt.Errorf("fat-tree needs at least one layer")
	}
	if len(downLinkCount) != len(upLinkCount) {
		return nil, fmt.Errorf("down-link layers (%d) and up-link layers (%d) differ",
			len(downLinkCount), len(upLinkCount))
	}
	for i := range downLinkCount {
		if downLinkCount[i] < 1 {
			return nil, fmt.Errorf("down-link count of layer %d must be >= 1, got %d", i, downLinkCount[i])
		}
		if upLinkCount[i] < 1 {
			return nil, fmt.Errorf("up-link count of layer %d must be >= 1, got %d", i, upLinkCount[i])
		}
	}
	t := &FatTree{
		Height:        len(downLinkCount),
		DownLinkCount: append([]int(nil), downLinkCount...),
		UpLinkCount:   append([]int(nil), upLinkCount...),
	}
	t.createNodes()
	t.createEdges()
	return t, nil
}

// NewFromDegree builds the classic radix-k fat-tree with the given number of
// link layers: every switch has degree/2 ports down and degree/2 up, except
// the top layer which spends all its ports going down, and hosts which have a
// single up-link.
func NewFromDegree(height, degree int) (*FatTree, error) {
	if height < 1 {
		return nil, fmt.Errorf("height must be >= 1, got %d", height)
	}
	if degree < 2 || degree%2 != 0 {
		return nil, fmt.Errorf("degree must be an even number >= 2, got %d", degree)
	}
	down := make([]int, height)
	up := make([]int, height)
	for i := range down {
		down[i] = degree / 2
		up[i] = degree / 2
	}
	down[height-1] = degree
	up[0] = 1
	return New(down, up)
}

// radixAt returns the range of coordinate i for a node on the given layer.
func (t *FatTree) radixAt(layer, i int) int {
	if i < layer {
		return t.UpLinkCount[i]
	}
	return t.DownLinkCount[i]
}

func (t *FatTree) createNodes() {
	total := 0
	layerSizes := make([]int, t.Height+1)
	for layer := 0; layer <= t.Height; layer++ {
		size := 1
		for i := 0; i < t.Height; i++ {
			size *= t.radixAt(layer, i)
		}
		layerSizes[layer] = size
		total += size
	}
	t.Nodes = make([]Node, 0, total)
	for layer := 0; layer <= t.Height; layer++ {
		indices := make([]int, t.Height)
		for n := 0; n < layerSizes[layer]; n++ {
			t.Nodes = append(t.Nodes, Node{
				ID:      len(t.Nodes),
				Layer:   layer,
				Indices: append([]int(nil), indices...),
			})
			// odometer increment, coordinate 0 is the least significant digit
			for i := 0; i < t.Height; i++ {
				indices[i]++
				if indices[i] < t.radixAt(layer, i) {
					break
				}
				indices[i] = 0
			}
		}
	}
	t.NodesByLayer = make([][]*Node, t.Height+1)
	for i := range t.Nodes {
		node := &t.Nodes[i]
		t.NodesByLayer[node.Layer] = append(t.NodesByLayer[node.Layer], node)
	}
}

func (t *FatTree) createEdges() {
	total := 0
	for layer := 0; layer < t.Height; layer++ {
		total += len(t.NodesByLayer[layer]) * t.UpLinkCount[layer]
	}
	t.Edges = make([]Edge, 0, total)
	for layer := 0; layer < t.Height; layer++ {
		for _, child := range t.NodesByLayer[layer] {
			parentIndices := append([]int(nil), child.Indices...)
			for k := 0; k < t.UpLinkCount[layer]; k++ {
				parentIndices[layer] = k
				parent := &t.Nodes[t.NodeID(layer+1, parentIndices)]
				t.Edges = append(t.Edges, Edge{ID: len(t.Edges), Parent: parent, Child: child})
			}
		}
	}
	t.EdgesByLayer = make([][]*Edge, t.Height)
	for i := range t.Edges {
		edge := &t.Edges[i]
		t.EdgesByLayer[edge.Child.Layer] = append(t.EdgesByLayer[edge.Child.Layer], edge)
	}
}

// NodeID computes the identity of the node at layer with the given index
// vector. It is consistent with the enumeration order used at construction.
func (t *FatTree) NodeID(layer int, indices []int) int {
	id := 0
	for i := 0; i < layer; i++ {
		id += len(t.NodesByLayer[i])
	}
	radix := 1
	for i := 0; i < t.Height; i++ {
		id += radix * indices[i]
		radix *= t.radixAt(layer, i)
	}
	return id
}

// EdgeID computes the identity of the edge between parent and child.
func (t *FatTree) EdgeID(parent, child *Node) int {
	id := 0
	for i := 0; i < child.Layer; i++ {
		id += len(t.EdgesByLayer[i])
	}
	radix := t.UpLinkCount[child.Layer]
	for i := 0; i < t.Height; i++ {
		id += radix * child.Indices[i]
		radix *= t.radixAt(child.Layer, i)
	}
	return id + parent.Indices[child.Layer]
}

// Hosts returns the layer-0 nodes in ID order.
func (t *FatTree) Hosts() []*Node {
	return t.NodesByLayer[0]
}

// Switches returns every node above layer 0, lowest layer first.
func (t *FatTree) Switches() []*Node {
	switches := make([]*Node, 0, t.SwitchCount())
	for _, layer := range t.NodesByLayer[1:] {
		switches = append(switches, layer...)
	}
	return switches
}

// HostCount is the number of layer-0 nodes.
func (t *FatTree) HostCount() int {
	return len(t.NodesByLayer[0])
}

// SwitchCount is the number of nodes above layer 0.
func (t *FatTree) SwitchCount() int {
	return len(t.Nodes) - len(t.NodesByLayer[0])
}

// ClosestCommonAncestors returns every node on the lowest layer whose subtree
// contains all leaves. Each of them roots a valid aggregation tree.
// Panics if leaves is empty.
func (t *FatTree) ClosestCommonAncestors(leaves []*Node) []*Node {
	if len(leaves) == 0 {
		panic("FatTree.ClosestCommonAncestors: empty leaf set")
	}
	first := leaves[0]
	ancestorLayer := first.Layer
	for i := t.Height - 1; i >= first.Layer; i-- {
		agree := true
		for _, leaf := range leaves[1:] {
			if leaf.Indices[i] != first.Indices[i] {
				agree = false
				break
			}
		}
		if !agree {
			ancestorLayer = i + 1
			break
		}
	}
	// Coordinates below ancestorLayer are free (one choice per up-link plane);
	// the rest are pinned to the leaves' coordinates. In the mixed-radix order
	// the free coordinates are the least significant, so the candidates are
	// contiguous.
	count := 1
	for i := 0; i < ancestorLayer; i++ {
		count *= t.UpLinkCount[i]
	}
	firstID, radix := 0, count
	for i := ancestorLayer; i < t.Height; i++ {
		firstID += radix * first.Indices[i]
		radix *= t.DownLinkCount[i]
	}
	ancestors := make([]*Node, 0, count)
	for i := 0; i < count; i++ {
		ancestors = append(ancestors, t.NodesByLayer[ancestorLayer][firstID+i])
	}
	return ancestors
}

// AggregationTree builds the minimal tree connecting leaves to root. Each
// node's parent toward root is found by replacing the node's own-layer
// coordinate with root's. Nodes are listed leaves first, then in discovery
// order; every edge appears once.
// Panics if leaves is empty or root is not a common ancestor of leaves.
func (t *FatTree) AggregationTree(leaves []*Node, root *Node) *AggrTree {
	if len(leaves) == 0 {
		panic("FatTree.AggregationTree: empty leaf set")
	}
	seen := make(map[int]bool, len(leaves)*2)
	tree := &AggrTree{root: root}
	queue := make([]*Node, 0, len(leaves))
	for _, leaf := range leaves {
		if seen[leaf.ID] {
			continue
		}
		seen[leaf.ID] = true
		tree.Nodes = append(tree.Nodes, leaf)
		queue = append(queue, leaf)
	}
	for len(queue) > 0 {
		child := queue[0]
		queue = queue[1:]
		if child == root {
			continue
		}
		if child.Layer >= root.Layer {
			panic(fmt.Sprintf("FatTree.AggregationTree: %s is not below root %s", child, root))
		}
		parentIndices := append([]int(nil), child.Indices...)
		parentIndices[child.Layer] = root.Indices[child.Layer]
		parent := &t.Nodes[t.NodeID(child.Layer+1, parentIndices)]
		tree.Edges = append(tree.Edges, &t.Edges[t.EdgeID(parent, child)])
		if !seen[parent.ID] {
			seen[parent.ID] = true
			tree.Nodes = append(tree.Nodes, parent)
			queue = append(queue, parent)
		}
	}
	return tree
}
