package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDegree(t *testing.T, height, degree int) *FatTree {
	t.Helper()
	ft, err := NewFromDegree(height, degree)
	require.NoError(t, err)
	return ft
}

func TestNewFromDegree_LayerSizes(t *testing.T) {
	tests := []struct {
		name       string
		height     int
		degree     int
		layerSizes []int
		edgeCount  int
	}{
		{name: "two layers, degree 4", height: 2, degree: 4, layerSizes: []int{8, 4, 2}, edgeCount: 16},
		{name: "three layers, degree 4", height: 3, degree: 4, layerSizes: []int{16, 8, 8, 4}, edgeCount: 48},
		{name: "one layer, degree 2", height: 1, degree: 2, layerSizes: []int{2, 1}, edgeCount: 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ft := mustDegree(t, tc.height, tc.degree)
			require.Len(t, ft.NodesByLayer, len(tc.layerSizes))
			for layer, size := range tc.layerSizes {
				assert.Len(t, ft.NodesByLayer[layer], size, "layer %d", layer)
			}
			assert.Len(t, ft.Edges, tc.edgeCount)
			assert.Equal(t, tc.layerSizes[0], ft.HostCount())
			assert.Equal(t, len(ft.Nodes)-tc.layerSizes[0], ft.SwitchCount())
		})
	}
}

func TestNewFromDegree_RejectsBadDegree(t *testing.T) {
	for _, degree := range []int{0, 1, 3, 7} {
		_, err := NewFromDegree(2, degree)
		assert.Error(t, err, "degree %d", degree)
	}
	_, err := NewFromDegree(0, 4)
	assert.Error(t, err)
}

func TestNew_RejectsMismatchedLayers(t *testing.T) {
	_, err := New([]int{2, 4}, []int{1})
	assert.Error(t, err)
	_, err = New([]int{2, 0}, []int{1, 2})
	assert.Error(t, err)
	_, err = New(nil, nil)
	assert.Error(t, err)
}

// NodeID and EdgeID are pure functions that must agree with enumeration.
func TestIDs_ConsistentWithEnumeration(t *testing.T) {
	for _, ft := range []*FatTree{mustDegree(t, 2, 4), mustDegree(t, 3, 4), mustDegree(t, 3, 6)} {
		for i := range ft.Nodes {
			n := &ft.Nodes[i]
			assert.Equal(t, n.ID, ft.NodeID(n.Layer, n.Indices), "node %s", n)
		}
		for i := range ft.Edges {
			e := &ft.Edges[i]
			assert.Equal(t, e.ID, ft.EdgeID(e.Parent, e.Child), "edge %s", e)
			assert.Equal(t, e.Child.Layer+1, e.Parent.Layer)
			for c := range e.Child.Indices {
				if c == e.Child.Layer {
					continue
				}
				assert.Equal(t, e.Child.Indices[c], e.Parent.Indices[c], "edge %s coordinate %d", e, c)
			}
		}
	}
}

func TestEdgesByLayer_IndexedByChildLayer(t *testing.T) {
	ft := mustDegree(t, 3, 4)
	for layer, edges := range ft.EdgesByLayer {
		for _, e := range edges {
			assert.Equal(t, layer, e.Child.Layer)
		}
	}
}

func TestClosestCommonAncestors(t *testing.T) {
	// GIVEN the 16-host radix-4 fat-tree (host ID = i0 + 2*i1 + 4*i2)
	ft := mustDegree(t, 3, 4)
	hosts := ft.Hosts()

	tests := []struct {
		name  string
		hosts []int
		layer int
		count int
	}{
		{name: "single host is its own ancestor", hosts: []int{5}, layer: 0, count: 1},
		{name: "same edge switch", hosts: []int{0, 1}, layer: 1, count: 1},
		{name: "same pod", hosts: []int{0, 2, 3}, layer: 2, count: 2},
		{name: "across pods", hosts: []int{0, 4, 15}, layer: 3, count: 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			leaves := make([]*Node, len(tc.hosts))
			for i, h := range tc.hosts {
				leaves[i] = hosts[h]
			}
			// WHEN the common ancestors are computed
			ancestors := ft.ClosestCommonAncestors(leaves)

			// THEN all of them sit on the expected layer and each roots a tree
			require.Len(t, ancestors, tc.count)
			for _, a := range ancestors {
				assert.Equal(t, tc.layer, a.Layer)
				tree := ft.AggregationTree(leaves, a)
				assert.Same(t, a, tree.Root())
			}
		})
	}
}

func TestClosestCommonAncestors_EmptyPanics(t *testing.T) {
	ft := mustDegree(t, 2, 4)
	assert.Panics(t, func() { ft.ClosestCommonAncestors(nil) })
}

func TestAggregationTree_TwoEdgeSwitchesUnderOneCore(t *testing.T) {
	// GIVEN hosts 0 and 2 of the 8-host fat-tree, which sit under different edge switches
	ft := mustDegree(t, 2, 4)
	leaves := []*Node{ft.Hosts()[0], ft.Hosts()[2]}
	root := ft.NodesByLayer[2][0]

	// WHEN the tree toward the first core is built
	tree := ft.AggregationTree(leaves, root)

	// THEN it holds both hosts, both edge switches and the core
	ids := make([]int, 0, len(tree.Nodes))
	for _, n := range tree.Nodes {
		ids = append(ids, n.ID)
	}
	assert.ElementsMatch(t, []int{0, 2, 8, 9, 12}, ids)
	assert.Len(t, tree.Edges, 4)
	assert.Equal(t, 3, tree.SwitchCount())

	// AND every edge joins two nodes of the tree
	inTree := make(map[int]bool)
	for _, id := range ids {
		inTree[id] = true
	}
	for _, e := range tree.Edges {
		assert.True(t, inTree[e.Parent.ID] && inTree[e.Child.ID], "edge %s", e)
	}
}

func TestAggregationTree_SizeIsLinearInTree(t *testing.T) {
	ft := mustDegree(t, 3, 4)
	leaves := []*Node{ft.Hosts()[0], ft.Hosts()[1]}
	tree := ft.AggregationTree(leaves, ft.ClosestCommonAncestors(leaves)[0])
	assert.Len(t, tree.Nodes, 3)
	assert.Len(t, tree.Edges, 2)
}

func TestAggregationTree_RootNotAncestorPanics(t *testing.T) {
	ft := mustDegree(t, 3, 4)
	leaves := []*Node{ft.Hosts()[0], ft.Hosts()[4]}
	// an edge switch cannot root hosts from two pods
	assert.Panics(t, func() { ft.AggregationTree(leaves, ft.NodesByLayer[1][0]) })
	assert.Panics(t, func() { ft.AggregationTree(nil, ft.NodesByLayer[3][0]) })
}

func TestAggrTree_Equal(t *testing.T) {
	ft := mustDegree(t, 2, 4)
	leaves := []*Node{ft.Hosts()[0], ft.Hosts()[2]}
	a := ft.AggregationTree(leaves, ft.NodesByLayer[2][0])
	b := ft.AggregationTree([]*Node{leaves[1], leaves[0]}, ft.NodesByLayer[2][0])
	c := ft.AggregationTree(leaves, ft.NodesByLayer[2][1])

	assert.True(t, a.Equal(b), "leaf order must not matter")
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
	var none *AggrTree
	assert.True(t, none.Equal(nil))
}
