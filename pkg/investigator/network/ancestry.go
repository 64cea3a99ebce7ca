package network

import "slices"

// RefreshAncestry recomputes Ancestors, Weights and Eves of every node from
// the current edges. The network is assumed acyclic.
func (n *Network) RefreshAncestry() {
	for _, node := range n.Nodes() {
		anc := NodeSet{}
		wts := EdgeSet{}
		stack := []NodeID{node.ID}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, eid := range n.nodes[cur].Parents {
				wts.Add(eid)
				p := n.edges[eid].Parent
				if !anc.Has(p) && p != node.ID {
					anc.Add(p)
					stack = append(stack, p)
				}
			}
		}
		eves := NodeSet{}
		for id := range anc {
			if n.nodes[id].IsEve() {
				eves.Add(id)
			}
		}
		node.Ancestors, node.Weights, node.Eves = anc, wts, eves
	}
}

// RefreshEvidenceAncestors sets EvidenceAncestors to the asserted members
// of each node's ancestry.
func (n *Network) RefreshEvidenceAncestors() {
	asserted := n.EvidenceSet()
	for _, node := range n.Nodes() {
		ea := NodeSet{}
		for id := range node.Ancestors {
			if asserted.Has(id) {
				ea.Add(id)
			}
		}
		node.EvidenceAncestors = ea
	}
}

// EvidenceSet returns the asserted nodes.
func (n *Network) EvidenceSet() NodeSet {
	s := make(NodeSet, len(n.evidence))
	for _, e := range n.evidence {
		s.Add(e.Node)
	}
	return s
}

// ShallowFirst returns the live nodes ordered by the number of edges in
// their ancestral subgraph, ties kept in creation order. Every parent comes
// before its children.
func (n *Network) ShallowFirst() []*Node {
	out := n.Nodes()
	slices.SortStableFunc(out, func(a, b *Node) int { return len(a.Weights) - len(b.Weights) })
	return out
}

// Downstream reports whether node descends from any member of of.
func Downstream(node *Node, of NodeSet) bool {
	return node.Ancestors.Intersects(of)
}

// Upstream reports whether node is an ancestor of any member of of.
func (n *Network) Upstream(node *Node, of NodeSet) bool {
	for id := range of {
		if m := n.nodes[id]; m != nil && m.Ancestors.Has(node.ID) {
			return true
		}
	}
	return false
}
