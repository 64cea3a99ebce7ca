package network

import "slices"

// NodeSet is an unordered set of node IDs.
type NodeSet map[NodeID]struct{}

// NewNodeSet returns a set holding ids.
func NewNodeSet(ids ...NodeID) NodeSet {
	s := make(NodeSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s NodeSet) Add(id NodeID)      { s[id] = struct{}{} }
func (s NodeSet) Remove(id NodeID)   { delete(s, id) }
func (s NodeSet) Has(id NodeID) bool { _, ok := s[id]; return ok }

// Sorted returns the members in ascending order.
func (s NodeSet) Sorted() []NodeID {
	out := make([]NodeID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Intersects reports whether the sets share a member.
func (s NodeSet) Intersects(o NodeSet) bool {
	small, large := s, o
	if len(small) > len(large) {
		small, large = large, small
	}
	for id := range small {
		if large.Has(id) {
			return true
		}
	}
	return false
}

// EdgeSet is an unordered set of edge IDs.
type EdgeSet map[EdgeID]struct{}

func (s EdgeSet) Add(id EdgeID)      { s[id] = struct{}{} }
func (s EdgeSet) Has(id EdgeID) bool { _, ok := s[id]; return ok }

// Sorted returns the members in ascending order.
func (s EdgeSet) Sorted() []EdgeID {
	out := make([]EdgeID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
