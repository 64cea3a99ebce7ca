// Package symbolic provides the algebra the inference engine builds its
// probability equations in.
//
// Two representations are offered:
//   - Poly, a multilinear polynomial in canonical form. Every product
//     reduces x^k to x, which is exact for expectations of independent
//     boolean variables. All node equations live in this form.
//   - Expr, a small real-valued expression tree (numbers, symbols, sums,
//     products, integer powers) with evaluation and differentiation. It is
//     used for least-squares losses and their gradients, where squaring
//     must not be reduced.
package symbolic

import "strconv"

// SymbolKind tells node probability symbols from edge weight symbols.
type SymbolKind uint8

const (
	// KindProb is the probability symbol of a node.
	KindProb SymbolKind = iota
	// KindWeight is the weight symbol of an edge.
	KindWeight
)

// Symbol names a free variable. Probability symbols render as p<i>, weight
// symbols as w<i>, where i is the node or edge index.
type Symbol struct {
	Kind  SymbolKind
	Index int
}

// P returns the probability symbol of node i.
func P(i int) Symbol { return Symbol{Kind: KindProb, Index: i} }

// W returns the weight symbol of edge i.
func W(i int) Symbol { return Symbol{Kind: KindWeight, Index: i} }

func (s Symbol) String() string {
	prefix := "p"
	if s.Kind == KindWeight {
		prefix = "w"
	}
	return prefix + strconv.Itoa(s.Index)
}

// Less orders probability symbols before weight symbols, then by index.
func (s Symbol) Less(o Symbol) bool {
	if s.Kind != o.Kind {
		return s.Kind < o.Kind
	}
	return s.Index < o.Index
}

// Env resolves a symbol to a number during evaluation.
type Env func(Symbol) float64
