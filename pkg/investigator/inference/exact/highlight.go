package exact

import (
	"math"

	"github.com/cognicore/investigator/pkg/investigator/network"
)

// lowParent is the probability below which a parent counts as switched off
// when tracing why true evidence came out impossible.
const lowParent = 0.1

// classify sets the highlight of every fitted edge from how far descent
// moved it, then puts the original weight back.
//
// Edges that barely moved are still marked implicated when they lie between
// a switched-off parent and false evidence on the path of a true-asserted
// node the model says is impossible, outside any inverted region. That case
// only exists for unconstrained runs.
func (e *Engine) classify(fitted []*network.Node, edges []*network.Edge, constrained bool) {
	implicated := network.EdgeSet{}
	if !constrained {
		implicated = e.implicatedEdges(fitted)
	}
	for _, edge := range edges {
		delta := edge.Trial - edge.Restore
		switch {
		case math.Abs(delta) < e.params.NegligibleDelta:
			edge.Highlight = network.HighlightNone
			if implicated.Has(edge.ID) {
				edge.Highlight = network.HighlightImplicated
			}
		case delta < 0:
			edge.Highlight = network.HighlightDecrease
		default:
			edge.Highlight = network.HighlightIncrease
		}
		if e.report.Highlights == nil {
			e.report.Highlights = make(map[network.EdgeID]network.Highlight)
		}
		e.report.Highlights[edge.ID] = edge.Highlight
		edge.Weight = edge.Restore
	}
}

func (e *Engine) implicatedEdges(fitted []*network.Node) network.EdgeSet {
	nodes := e.net.Nodes()

	falseEvidence := network.NodeSet{}
	for id := range e.asserted {
		if n, err := e.net.Node(id); err == nil && n.Probability == 0 {
			falseEvidence.Add(id)
		}
	}

	negative := network.NodeSet{}
	negEvidence := network.NodeSet{}
	for _, n := range nodes {
		if !n.Kind.Negated() {
			continue
		}
		negative.Add(n.ID)
		for id := range n.EvidenceAncestors {
			if a, err := e.net.Node(id); err == nil && a.Probability == 0 {
				negEvidence.Add(id)
			}
		}
	}
	negRelated := e.between(negEvidence, negative, negative)

	out := network.EdgeSet{}
	for _, x := range fitted {
		if !e.asserted[x.ID] || !x.HasTheoretical || x.Theoretical != 0 {
			continue
		}
		parents := e.net.ParentNodes(x)
		switch x.Kind {
		case network.KindMain, network.KindInteraction:
		case network.KindExclusion:
			sum := 0.0
			for _, p := range parents {
				sum += p.Probability
			}
			if sum >= lowParent*float64(len(parents)) {
				continue
			}
		default:
			continue
		}

		low := network.NodeSet{}
		for _, p := range parents {
			if p.Probability < lowParent {
				low.Add(p.ID)
			}
		}
		relevant := e.between(falseEvidence, low, nil)
		relevant.Add(x.ID)
		for id := range x.Weights {
			edge, err := e.net.Edge(id)
			if err != nil {
				continue
			}
			if !relevant.Has(edge.Parent) || !relevant.Has(edge.Child) {
				continue
			}
			if negRelated.Has(edge.Parent) && negRelated.Has(edge.Child) {
				continue
			}
			out.Add(id)
		}
	}
	return out
}

// between returns the nodes that descend from (or belong to) from and are
// ancestors of (or belong to) to. Members of extra count on both sides.
func (e *Engine) between(from, to, extra network.NodeSet) network.NodeSet {
	out := network.NodeSet{}
	for _, n := range e.net.Nodes() {
		inFrom := from.Has(n.ID) || to.Has(n.ID) || extra.Has(n.ID) || network.Downstream(n, from)
		inTo := to.Has(n.ID) || from.Has(n.ID) || extra.Has(n.ID) || e.net.Upstream(n, to)
		if inFrom && inTo {
			out.Add(n.ID)
		}
	}
	return out
}
