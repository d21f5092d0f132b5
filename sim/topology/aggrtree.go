package topology

import "golang.org/x/exp/slices"

// AggrTree is the minimal subtree joining a job's hosts to one chosen root.
// Nodes includes the leaves (hosts); ledger accounting skips them.
type AggrTree struct {
	Nodes []*Node
	Edges []*Edge
	root  *Node
}

// Root returns the node the tree was built toward.
func (a *AggrTree) Root() *Node {
	return a.root
}

// SwitchCount is the number of non-host nodes in the tree.
func (a *AggrTree) SwitchCount() int {
	n := 0
	for _, node := range a.Nodes {
		if !node.IsHost() {
			n++
		}
	}
	return n
}

// Equal reports whether both trees cover the same nodes and edges.
// A nil tree only equals another nil tree.
func (a *AggrTree) Equal(b *AggrTree) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Nodes) != len(b.Nodes) || len(a.Edges) != len(b.Edges) {
		return false
	}
	return slices.Equal(sortedNodeIDs(a), sortedNodeIDs(b)) && slices.Equal(sortedEdgeIDs(a), sortedEdgeIDs(b))
}

func sortedNodeIDs(a *AggrTree) []int {
	ids := make([]int, len(a.Nodes))
	for i, n := range a.Nodes {
		ids[i] = n.ID
	}
	slices.Sort(ids)
	return ids
}

func sortedEdgeIDs(a *AggrTree) []int {
	ids := make([]int, len(a.Edges))
	for i, e := range a.Edges {
		ids[i] = e.ID
	}
	slices.Sort(ids)
	return ids
}
