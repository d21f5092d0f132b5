// Package resource tracks how much of the fat-tree is in use.
//
// The Ledger keeps one usage counter per node and per edge. Switch and edge
// counters are bounded by optional quotas and model concurrent users of the
// in-network aggregation fabric; host counters are exclusive (0 or 1).
// Every mutation goes through AllocateTree/DeallocateTree and
// AllocateHosts/DeallocateHosts so the quota invariant
// 0 <= usage <= quota holds at all times.
package resource

import (
	"fmt"

	"github.com/sharp-sim/sharp-sim/sim/topology"
)

// Ledger holds usage counters for one simulation run. NOT thread-safe.
type Ledger struct {
	topology  *topology.FatTree
	nodeQuota *int // nil = unbounded
	linkQuota *int // nil = unbounded
	nodeUsage []int
	edgeUsage []int
}

// NewLedger creates an empty ledger over t. A nil quota means unbounded.
// Panics on a non-positive quota.
func NewLedger(t *topology.FatTree, nodeQuota, linkQuota *int) *Ledger {
	if nodeQuota != nil && *nodeQuota <= 0 {
		panic(fmt.Sprintf("NewLedger: node quota must be > 0, got %d", *nodeQuota))
	}
	if linkQuota != nil && *linkQuota <= 0 {
		panic(fmt.Sprintf("NewLedger: link quota must be > 0, got %d", *linkQuota))
	}
	return &Ledger{
		topology:  t,
		nodeQuota: copyQuota(nodeQuota),
		linkQuota: copyQuota(linkQuota),
		nodeUsage: make([]int, len(t.Nodes)),
		edgeUsage: make([]int, len(t.Edges)),
	}
}

func copyQuota(q *int) *int {
	if q == nil {
		return nil
	}
	v := *q
	return &v
}

// Topology returns the fat-tree this ledger accounts for.
func (l *Ledger) Topology() *topology.FatTree { return l.topology }

// NodeQuota returns the per-switch quota and whether one is set.
func (l *Ledger) NodeQuota() (int, bool) {
	if l.nodeQuota == nil {
		return 0, false
	}
	return *l.nodeQuota, true
}

// LinkQuota returns the per-edge quota and whether one is set.
func (l *Ledger) LinkQuota() (int, bool) {
	if l.linkQuota == nil {
		return 0, false
	}
	return *l.linkQuota, true
}

// NodeUsage returns the usage counter of the node with the given ID.
func (l *Ledger) NodeUsage(id int) int { return l.nodeUsage[id] }

// EdgeUsage returns the usage counter of the edge with the given ID.
func (l *Ledger) EdgeUsage(id int) int { return l.edgeUsage[id] }

// AllocateTree reserves one unit on every switch and every edge of tree.
// Hosts in the tree are skipped. Panics if any quota would be exceeded.
func (l *Ledger) AllocateTree(tree *topology.AggrTree) {
	for _, node := range tree.Nodes {
		if node.IsHost() {
			continue
		}
		if l.nodeQuota != nil && l.nodeUsage[node.ID] >= *l.nodeQuota {
			panic(fmt.Sprintf("Ledger.AllocateTree: %s usage %d already at quota %d",
				node, l.nodeUsage[node.ID], *l.nodeQuota))
		}
	}
	for _, edge := range tree.Edges {
		if l.linkQuota != nil && l.edgeUsage[edge.ID] >= *l.linkQuota {
			panic(fmt.Sprintf("Ledger.AllocateTree: %s usage %d already at quota %d",
				edge, l.edgeUsage[edge.ID], *l.linkQuota))
		}
	}
	for _, node := range tree.Nodes {
		if !node.IsHost() {
			l.nodeUsage[node.ID]++
		}
	}
	for _, edge := range tree.Edges {
		l.edgeUsage[edge.ID]++
	}
}

// DeallocateTree is the exact inverse of AllocateTree.
// Panics if any counter would go negative.
func (l *Ledger) DeallocateTree(tree *topology.AggrTree) {
	for _, node := range tree.Nodes {
		if !node.IsHost() && l.nodeUsage[node.ID] <= 0 {
			panic(fmt.Sprintf("Ledger.DeallocateTree: %s is not allocated", node))
		}
	}
	for _, edge := range tree.Edges {
		if l.edgeUsage[edge.ID] <= 0 {
			panic(fmt.Sprintf("Ledger.DeallocateTree: %s is not allocated", edge))
		}
	}
	for _, node := range tree.Nodes {
		if !node.IsHost() {
			l.nodeUsage[node.ID]--
		}
	}
	for _, edge := range tree.Edges {
		l.edgeUsage[edge.ID]--
	}
}

// AllocateHosts marks every host as taken. Panics on a non-host node or a
// host that is already taken.
func (l *Ledger) AllocateHosts(hosts []*topology.Node) {
	for _, h := range hosts {
		if !h.IsHost() {
			panic(fmt.Sprintf("Ledger.AllocateHosts: %s is not a host", h))
		}
		if l.nodeUsage[h.ID] != 0 {
			panic(fmt.Sprintf("Ledger.AllocateHosts: %s is already allocated", h))
		}
		l.nodeUsage[h.ID] = 1
	}
}

// DeallocateHosts releases hosts taken by AllocateHosts.
func (l *Ledger) DeallocateHosts(hosts []*topology.Node) {
	for _, h := range hosts {
		if !h.IsHost() {
			panic(fmt.Sprintf("Ledger.DeallocateHosts: %s is not a host", h))
		}
		if l.nodeUsage[h.ID] <= 0 {
			panic(fmt.Sprintf("Ledger.DeallocateHosts: %s is not allocated", h))
		}
		l.nodeUsage[h.ID] = 0
	}
}

// IsHostAvailable reports whether the host is free.
func (l *Ledger) IsHostAvailable(host *topology.Node) bool {
	return l.nodeUsage[host.ID] == 0
}

// AvailableHostCount is the number of free hosts.
func (l *Ledger) AvailableHostCount() int {
	n := 0
	for _, h := range l.topology.Hosts() {
		if l.nodeUsage[h.ID] == 0 {
			n++
		}
	}
	return n
}

// AvailableHosts returns the free hosts in ID order.
func (l *Ledger) AvailableHosts() []*topology.Node {
	free := make([]*topology.Node, 0, len(l.topology.Hosts()))
	for _, h := range l.topology.Hosts() {
		if l.nodeUsage[h.ID] == 0 {
			free = append(free, h)
		}
	}
	return free
}

// SwitchUsageSum is the total number of switch units currently occupied.
func (l *Ledger) SwitchUsageSum() int {
	sum := 0
	for _, s := range l.topology.Switches() {
		sum += l.nodeUsage[s.ID]
	}
	return sum
}

// CheckTreeConflict reports whether allocating tree now would exceed a quota.
func (l *Ledger) CheckTreeConflict(tree *topology.AggrTree) bool {
	if l.nodeQuota != nil {
		for _, node := range tree.Nodes {
			if !node.IsHost() && l.nodeUsage[node.ID] >= *l.nodeQuota {
				return true
			}
		}
	}
	if l.linkQuota != nil {
		for _, edge := range tree.Edges {
			if l.edgeUsage[edge.ID] >= *l.linkQuota {
				return true
			}
		}
	}
	return false
}

// CheckTreesConflict is the pairwise test used for grouping. It ignores
// current usage: two trees conflict when a quota below 2 forbids them from
// sharing a switch or an edge and they do share one.
func (l *Ledger) CheckTreesConflict(a, b *topology.AggrTree) bool {
	if l.nodeQuota != nil && *l.nodeQuota < 2 {
		shared := make(map[int]bool, len(a.Nodes))
		for _, n := range a.Nodes {
			if !n.IsHost() {
				shared[n.ID] = true
			}
		}
		for _, n := range b.Nodes {
			if shared[n.ID] {
				return true
			}
		}
	}
	if l.linkQuota != nil && *l.linkQuota < 2 {
		shared := make(map[int]bool, len(a.Edges))
		for _, e := range a.Edges {
			shared[e.ID] = true
		}
		for _, e := range b.Edges {
			if shared[e.ID] {
				return true
			}
		}
	}
	return false
}

// CalcHostFragments counts maximal pods whose hosts are uniformly free
// (available = true) or uniformly taken (available = false). A pod that is
// mixed is split into its sub-pods, one per down-link of the layer below.
func (l *Ledger) CalcHostFragments(available bool) int {
	return l.hostFragments(available, 0, l.topology.HostCount(), l.topology.Height)
}

func (l *Ledger) hostFragments(available bool, begin, size, layer int) int {
	hosts := l.topology.Hosts()
	allFree, noneFree := true, true
	for i := begin; i < begin+size; i++ {
		if l.nodeUsage[hosts[i].ID] == 0 {
			noneFree = false
		} else {
			allFree = false
		}
	}
	if allFree {
		return boolToInt(available)
	}
	if noneFree {
		return boolToInt(!available)
	}
	subSize := size / l.topology.DownLinkCount[layer-1]
	sum := 0
	for sub := begin; sub < begin+size; sub += subSize {
		sum += l.hostFragments(available, sub, subSize, layer-1)
	}
	return sum
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
