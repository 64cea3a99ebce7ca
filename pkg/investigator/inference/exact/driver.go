package exact

import (
	"github.com/cognicore/investigator/pkg/investigator/equation"
	"github.com/cognicore/investigator/pkg/investigator/inference"
	"github.com/cognicore/investigator/pkg/investigator/network"
	"github.com/cognicore/investigator/pkg/investigator/symbolic"
)

// pass tracks which nodes one update has settled.
type pass struct {
	fast       bool
	done       network.NodeSet
	inProgress network.NodeSet
}

// fullPass recomputes every node from scratch.
func (e *Engine) fullPass() { e.update(false, nil, nil) }

// fastPass recomputes only nodes that descend from an active node and feed
// a pending one (plus the active and pending nodes themselves). Every
// other node keeps its probability and equations.
func (e *Engine) fastPass(active, pending network.NodeSet) { e.update(true, active, pending) }

func (e *Engine) update(fast bool, active, pending network.NodeSet) {
	if e.report != nil {
		e.report.Passes++
	}
	if !e.ancestryValid || e.ancestryRev != e.net.Revision() {
		e.net.RefreshAncestry()
		e.ancestryRev, e.ancestryValid = e.net.Revision(), true
	}
	order := e.net.ShallowFirst()
	p := &pass{fast: fast, done: network.NodeSet{}, inProgress: network.NodeSet{}}
	for _, n := range order {
		if fast && e.skip(n, active, pending) {
			p.done.Add(n.ID)
			continue
		}
		n.Probability = network.Unset
	}
	for _, n := range order {
		e.compute(p, n)
	}
}

func (e *Engine) skip(n *network.Node, active, pending network.NodeSet) bool {
	if active.Has(n.ID) || pending.Has(n.ID) {
		return false
	}
	return !network.Downstream(n, active) || !e.net.Upstream(n, pending)
}

func (e *Engine) compute(p *pass, n *network.Node) {
	if p.done.Has(n.ID) || p.inProgress.Has(n.ID) {
		return
	}
	p.inProgress.Add(n.ID)
	defer func() {
		p.inProgress.Remove(n.ID)
		p.done.Add(n.ID)
	}()

	parents := e.net.ParentNodes(n)
	for _, parent := range parents {
		if parent.Probability == network.Unset {
			e.compute(p, parent)
		}
	}

	self := symbolic.Var(n.Symbol())
	switch {
	case n.Forced == network.TruthTrue:
		n.Probability = 1
		n.Working = self
		n.Condensed = symbolic.One()
	case n.Forced == network.TruthFalse:
		n.Probability = 0
		n.Working = self
		n.Condensed = symbolic.Zero()
	case n.IsEve():
		n.Probability = n.Prior
		n.Local, n.Working, n.Full, n.Condensed, n.Evidential = self, self, self, self, self
	default:
		if !p.fast || n.Local.IsZero() {
			n.Local = equation.Local(n.Kind, equation.Terms(e.net, n))
		}
		e.expand(p, n, parents)
		n.Probability = e.evaluate(n.ID, n.Working)
	}
}

// expand derives the working, full, condensed and evidential equations of
// n from its local equation and its parents' equations.
func (e *Engine) expand(p *pass, n *network.Node, parents []*network.Node) {
	anyForced := len(e.forced) > 0
	hasEvidence := len(e.asserted) > 0

	if !anyForced && hasEvidence && e.mode == inference.ModeInvestigation {
		sub := make(map[symbolic.Symbol]symbolic.Poly, len(parents))
		for _, parent := range parents {
			if v, ok := e.asserted[parent.ID]; ok {
				sub[parent.Symbol()] = symbolic.Const(network.TruthOf(v).Value())
				continue
			}
			sub[parent.Symbol()] = parent.Evidential
		}
		n.Evidential = n.Local.Substitute(sub)
	}

	if hasEvidence && e.mode == inference.ModeBayesian {
		sub := make(map[symbolic.Symbol]symbolic.Poly, len(parents))
		for _, parent := range parents {
			sub[parent.Symbol()] = parent.Condensed
		}
		n.Condensed = n.Local.Substitute(sub)
	}

	sub := make(map[symbolic.Symbol]symbolic.Poly, len(parents))
	for _, parent := range parents {
		sub[parent.Symbol()] = parent.Working
	}
	n.Working = n.Local.Substitute(sub)

	if !anyForced && !p.fast {
		n.Full = n.Working
	}
}
