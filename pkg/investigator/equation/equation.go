// Package equation builds the local probability equation of a node from
// its kind and its parents.
//
// With q_i = p_i·w_i the effective truth of parent i:
//
//	Main                 1 − Π(1 − q_i)      (inclusion–exclusion)
//	Interaction          Π q_i
//	Exclusion            Σ_k k(−1)^(k+1) e_k  (exactly one true)
//	Inverted             1 − Π q_i
//	Inverted Interaction Π(1 − q_i)
//
// where e_k is the sum over all k-subsets of the product of their q_i.
package equation

import (
	"github.com/cognicore/investigator/pkg/investigator/network"
	"github.com/cognicore/investigator/pkg/investigator/symbolic"
)

// Term is one parent contribution.
type Term struct {
	Node   symbolic.Symbol
	Weight symbolic.Poly // weight symbol, or the constant 1 when pinned
}

// Effective returns q = p·w.
func (t Term) Effective() symbolic.Poly {
	return symbolic.Var(t.Node).Mul(t.Weight)
}

// Terms lists the parent contributions of node in edge order.
func Terms(net *network.Network, node *network.Node) []Term {
	terms := make([]Term, 0, len(node.Parents))
	for _, eid := range node.Parents {
		e, err := net.Edge(eid)
		if err != nil {
			continue
		}
		w := symbolic.Var(e.Symbol())
		if node.Auxiliary {
			w = symbolic.One()
		}
		terms = append(terms, Term{Node: symbolic.P(int(e.Parent)), Weight: w})
	}
	return terms
}

// Local returns the equation of a node of the given kind in terms of its
// parents. A node without parents is its own symbol and is handled by the
// caller; Local with no terms returns the empty-parent limit of each form.
func Local(kind network.Kind, terms []Term) symbolic.Poly {
	qs := make([]symbolic.Poly, len(terms))
	for i, t := range terms {
		qs[i] = t.Effective()
	}
	switch kind {
	case network.KindInteraction:
		return product(qs)
	case network.KindExclusion:
		return alternating(qs, func(k int) float64 { return float64(k) })
	case network.KindInverted:
		return symbolic.One().Sub(product(qs))
	case network.KindInvertedInteraction:
		return symbolic.One().Sub(anyOf(qs))
	default:
		return anyOf(qs)
	}
}

// anyOf is P(at least one) by inclusion–exclusion.
func anyOf(qs []symbolic.Poly) symbolic.Poly {
	return alternating(qs, func(int) float64 { return 1 })
}

func product(qs []symbolic.Poly) symbolic.Poly {
	out := symbolic.One()
	for _, q := range qs {
		out = out.Mul(q)
	}
	return out
}

// alternating returns Σ_k coeff(k)·(−1)^(k+1)·e_k(qs).
func alternating(qs []symbolic.Poly, coeff func(k int) float64) symbolic.Poly {
	e := elementary(qs)
	var out symbolic.Poly
	for k := 1; k < len(e); k++ {
		c := coeff(k)
		if k%2 == 0 {
			c = -c
		}
		out = out.Add(e[k].Scale(c))
	}
	return out
}

// elementary returns e_0..e_n, where e_k sums the products of every k-subset
// of qs. Built incrementally: adding q_i gives e_k += e_(k−1)·q_i.
func elementary(qs []symbolic.Poly) []symbolic.Poly {
	e := make([]symbolic.Poly, len(qs)+1)
	e[0] = symbolic.One()
	for i, q := range qs {
		for k := i + 1; k >= 1; k-- {
			e[k] = e[k].Add(e[k-1].Mul(q))
		}
	}
	return e
}

// Substitute replaces each parent symbol with its equation.
func Substitute(local symbolic.Poly, parents map[symbolic.Symbol]symbolic.Poly) symbolic.Poly {
	return local.Substitute(parents)
}
