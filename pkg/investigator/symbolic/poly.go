package symbolic

import (
	"slices"
	"strconv"
	"strings"
)

type term struct {
	vars  []Symbol // sorted, no repeats
	coeff float64
}

// Poly is a multilinear polynomial over probability and weight symbols.
//
// Terms are kept sorted (by degree, then symbol order) with non-zero
// coefficients, so two equal polynomials have identical representations
// and evaluation order is deterministic. The zero value is the zero
// polynomial. Poly values are immutable; every operation returns a new one.
type Poly struct {
	terms []term
}

// Zero returns the zero polynomial.
func Zero() Poly { return Poly{} }

// One returns the constant 1.
func One() Poly { return Const(1) }

// Const returns the constant polynomial c.
func Const(c float64) Poly {
	if c == 0 {
		return Poly{}
	}
	return Poly{terms: []term{{coeff: c}}}
}

// Var returns the polynomial consisting of the single symbol s.
func Var(s Symbol) Poly {
	return Poly{terms: []term{{vars: []Symbol{s}, coeff: 1}}}
}

// IsZero reports whether p is the zero polynomial.
func (p Poly) IsZero() bool { return len(p.terms) == 0 }

// Constant returns the value of p when p has no symbols.
func (p Poly) Constant() (float64, bool) {
	switch {
	case len(p.terms) == 0:
		return 0, true
	case len(p.terms) == 1 && len(p.terms[0].vars) == 0:
		return p.terms[0].coeff, true
	}
	return 0, false
}

// Len returns the number of terms.
func (p Poly) Len() int { return len(p.terms) }

// Degree returns the largest number of symbols in a single term.
func (p Poly) Degree() int {
	if len(p.terms) == 0 {
		return 0
	}
	return len(p.terms[len(p.terms)-1].vars)
}

// Add returns p + q.
func (p Poly) Add(q Poly) Poly {
	if p.IsZero() {
		return q
	}
	if q.IsZero() {
		return p
	}
	out := make([]term, 0, len(p.terms)+len(q.terms))
	i, j := 0, 0
	for i < len(p.terms) && j < len(q.terms) {
		switch c := compareVars(p.terms[i].vars, q.terms[j].vars); {
		case c < 0:
			out = append(out, p.terms[i])
			i++
		case c > 0:
			out = append(out, q.terms[j])
			j++
		default:
			if sum := p.terms[i].coeff + q.terms[j].coeff; sum != 0 {
				out = append(out, term{vars: p.terms[i].vars, coeff: sum})
			}
			i++
			j++
		}
	}
	out = append(out, p.terms[i:]...)
	out = append(out, q.terms[j:]...)
	return Poly{terms: out}
}

// Sub returns p - q.
func (p Poly) Sub(q Poly) Poly { return p.Add(q.Neg()) }

// Neg returns -p.
func (p Poly) Neg() Poly { return p.Scale(-1) }

// Scale returns c·p.
func (p Poly) Scale(c float64) Poly {
	if c == 0 || p.IsZero() {
		return Poly{}
	}
	out := make([]term, len(p.terms))
	for i, t := range p.terms {
		out[i] = term{vars: t.vars, coeff: t.coeff * c}
	}
	return Poly{terms: out}
}

// Mul returns p·q with every repeated symbol collapsed (x·x = x).
func (p Poly) Mul(q Poly) Poly {
	if p.IsZero() || q.IsZero() {
		return Poly{}
	}
	if c, ok := p.Constant(); ok {
		return q.Scale(c)
	}
	if c, ok := q.Constant(); ok {
		return p.Scale(c)
	}
	b := newBuilder(len(p.terms) * len(q.terms))
	for _, a := range p.terms {
		for _, t := range q.terms {
			b.add(mergeVars(a.vars, t.vars), a.coeff*t.coeff)
		}
	}
	return b.poly()
}

// Substitute replaces every symbol found in sub by its polynomial and
// re-normalises. Symbols missing from sub are kept.
func (p Poly) Substitute(sub map[Symbol]Poly) Poly {
	if len(sub) == 0 || p.IsZero() {
		return p
	}
	b := newBuilder(len(p.terms))
	for _, t := range p.terms {
		kept := make([]Symbol, 0, len(t.vars))
		prod := Const(t.coeff)
		for _, v := range t.vars {
			if r, ok := sub[v]; ok {
				prod = prod.Mul(r)
				if prod.IsZero() {
					break
				}
				continue
			}
			kept = append(kept, v)
		}
		for _, pt := range prod.terms {
			b.add(mergeVars(pt.vars, kept), pt.coeff)
		}
	}
	return b.poly()
}

// Diff returns ∂p/∂s. Because p is multilinear this drops s from every
// term containing it and discards the others.
func (p Poly) Diff(s Symbol) Poly {
	b := newBuilder(len(p.terms))
	for _, t := range p.terms {
		idx := slices.Index(t.vars, s)
		if idx < 0 {
			continue
		}
		rest := make([]Symbol, 0, len(t.vars)-1)
		rest = append(rest, t.vars[:idx]...)
		rest = append(rest, t.vars[idx+1:]...)
		b.add(rest, t.coeff)
	}
	return b.poly()
}

// Eval computes p with each symbol resolved by env.
func (p Poly) Eval(env Env) float64 {
	var total float64
	for _, t := range p.terms {
		v := t.coeff
		for _, s := range t.vars {
			v *= env(s)
			if v == 0 {
				break
			}
		}
		total += v
	}
	return total
}

// Symbols returns the distinct symbols of p in symbol order.
func (p Poly) Symbols() []Symbol {
	seen := make(map[Symbol]struct{})
	var out []Symbol
	for _, t := range p.terms {
		for _, s := range t.vars {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b Symbol) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return out
}

// Contains reports whether s occurs in p.
func (p Poly) Contains(s Symbol) bool {
	for _, t := range p.terms {
		if slices.Contains(t.vars, s) {
			return true
		}
	}
	return false
}

// Equal reports structural equality of the canonical forms.
func (p Poly) Equal(q Poly) bool {
	if len(p.terms) != len(q.terms) {
		return false
	}
	for i := range p.terms {
		if p.terms[i].coeff != q.terms[i].coeff || compareVars(p.terms[i].vars, q.terms[i].vars) != 0 {
			return false
		}
	}
	return true
}

// Expr converts p into an expression tree (a sum of products).
func (p Poly) Expr() Expr {
	if p.IsZero() {
		return Num(0)
	}
	addends := make([]Expr, 0, len(p.terms))
	for _, t := range p.terms {
		factors := make([]Expr, 0, len(t.vars)+1)
		factors = append(factors, Num(t.coeff))
		for _, s := range t.vars {
			factors = append(factors, Sym(s))
		}
		addends = append(addends, MulOf(factors...))
	}
	return AddOf(addends...)
}

func (p Poly) String() string {
	if p.IsZero() {
		return "0"
	}
	var sb strings.Builder
	for i, t := range p.terms {
		c := t.coeff
		switch {
		case i == 0 && c < 0:
			sb.WriteString("-")
			c = -c
		case i > 0 && c < 0:
			sb.WriteString(" - ")
			c = -c
		case i > 0:
			sb.WriteString(" + ")
		}
		if c != 1 || len(t.vars) == 0 {
			sb.WriteString(strconv.FormatFloat(c, 'g', -1, 64))
			if len(t.vars) > 0 {
				sb.WriteString("*")
			}
		}
		for k, s := range t.vars {
			if k > 0 {
				sb.WriteString("*")
			}
			sb.WriteString(s.String())
		}
	}
	return sb.String()
}

// builder accumulates terms keyed by their monomial.
type builder struct {
	index map[string]int
	terms []term
}

func newBuilder(capacity int) *builder {
	return &builder{
		index: make(map[string]int, capacity),
		terms: make([]term, 0, capacity),
	}
}

func (b *builder) add(vars []Symbol, coeff float64) {
	if coeff == 0 {
		return
	}
	key := varsKey(vars)
	if i, ok := b.index[key]; ok {
		b.terms[i].coeff += coeff
		return
	}
	b.index[key] = len(b.terms)
	b.terms = append(b.terms, term{vars: vars, coeff: coeff})
}

func (b *builder) poly() Poly {
	out := b.terms[:0]
	for _, t := range b.terms {
		if t.coeff != 0 {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(x, y term) int { return compareVars(x.vars, y.vars) })
	if len(out) == 0 {
		return Poly{}
	}
	return Poly{terms: out}
}

func varsKey(vars []Symbol) string {
	var sb strings.Builder
	for _, s := range vars {
		sb.WriteByte(byte('a' + s.Kind))
		sb.WriteString(strconv.Itoa(s.Index))
	}
	return sb.String()
}

// compareVars orders monomials by degree, then lexicographically.
func compareVars(a, b []Symbol) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		if a[i].Less(b[i]) {
			return -1
		}
		return 1
	}
	return 0
}

// mergeVars unions two sorted symbol lists; shared symbols appear once.
func mergeVars(a, b []Symbol) []Symbol {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	out := make([]Symbol, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i].Less(b[j]):
			out = append(out, a[i])
			i++
		default:
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
