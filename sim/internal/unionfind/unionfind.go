// Package unionfind is a disjoint-set forest over the integers 0..n-1.
package unionfind

// Set is an arena of parent indices with union by size and iterative path
// compression.
type Set struct {
	parent []int
	size   []int
}

// New creates n singleton sets.
func New(n int) *Set {
	s := &Set{parent: make([]int, n), size: make([]int, n)}
	for i := range s.parent {
		s.parent[i] = i
		s.size[i] = 1
	}
	return s
}

// Len is the number of elements.
func (s *Set) Len() int { return len(s.parent) }

// Find returns the representative of x's set.
func (s *Set) Find(x int) int {
	root := x
	for s.parent[root] != root {
		root = s.parent[root]
	}
	for s.parent[x] != root {
		next := s.parent[x]
		s.parent[x] = root
		x = next
	}
	return root
}

// Union merges the sets of a and b. Returns false if they were already joined.
func (s *Set) Union(a, b int) bool {
	ra, rb := s.Find(a), s.Find(b)
	if ra == rb {
		return false
	}
	if s.size[ra] < s.size[rb] {
		ra, rb = rb, ra
	}
	s.parent[rb] = ra
	s.size[ra] += s.size[rb]
	return true
}

// Components lists every set as ascending member indices. Components are
// ordered by their lowest member.
func (s *Set) Components() [][]int {
	index := make(map[int]int)
	var comps [][]int
	for x := range s.parent {
		r := s.Find(x)
		i, ok := index[r]
		if !ok {
			i = len(comps)
			index[r] = i
			comps = append(comps, nil)
		}
		comps[i] = append(comps[i], x)
	}
	return comps
}
