package symbolic

import (
	"math"
	"strconv"
	"strings"
)

// Expr is a real-valued expression tree. Unlike Poly, powers are kept as
// written, so Diff follows ordinary calculus.
type Expr interface {
	// Eval computes the expression with symbols resolved by env.
	Eval(env Env) float64
	// Diff returns the partial derivative with respect to s.
	Diff(s Symbol) Expr
	// Expand reduces the expression to boolean normal form (x^k = x).
	Expand() Poly
	String() string
}

// ============================================================
// Leaves
// ============================================================

type number struct{ v float64 }

// Num returns a constant expression.
func Num(v float64) Expr { return number{v: v} }

func (n number) Eval(Env) float64 { return n.v }
func (n number) Diff(Symbol) Expr { return number{} }
func (n number) Expand() Poly     { return Const(n.v) }
func (n number) String() string   { return strconv.FormatFloat(n.v, 'g', -1, 64) }

type variable struct{ s Symbol }

// Sym returns the expression consisting of the symbol s.
func Sym(s Symbol) Expr { return variable{s: s} }

func (v variable) Eval(env Env) float64 { return env(v.s) }
func (v variable) Expand() Poly         { return Var(v.s) }
func (v variable) String() string       { return v.s.String() }
func (v variable) Diff(s Symbol) Expr {
	if v.s == s {
		return number{v: 1}
	}
	return number{}
}

func isNumber(e Expr, v float64) bool {
	n, ok := e.(number)
	return ok && n.v == v
}

// ============================================================
// Sum
// ============================================================

type sum struct{ terms []Expr }

// AddOf returns the sum of terms, flattening nested sums and folding
// constants.
func AddOf(terms ...Expr) Expr {
	var c float64
	flat := make([]Expr, 0, len(terms))
	for _, t := range terms {
		switch x := t.(type) {
		case number:
			c += x.v
		case sum:
			for _, inner := range x.terms {
				if n, ok := inner.(number); ok {
					c += n.v
					continue
				}
				flat = append(flat, inner)
			}
		default:
			flat = append(flat, t)
		}
	}
	if len(flat) == 0 {
		return number{v: c}
	}
	if c != 0 {
		flat = append([]Expr{number{v: c}}, flat...)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return sum{terms: flat}
}

func (a sum) Eval(env Env) float64 {
	var total float64
	for _, t := range a.terms {
		total += t.Eval(env)
	}
	return total
}

func (a sum) Diff(s Symbol) Expr {
	out := make([]Expr, 0, len(a.terms))
	for _, t := range a.terms {
		out = append(out, t.Diff(s))
	}
	return AddOf(out...)
}

func (a sum) Expand() Poly {
	var p Poly
	for _, t := range a.terms {
		p = p.Add(t.Expand())
	}
	return p
}

func (a sum) String() string {
	parts := make([]string, len(a.terms))
	for i, t := range a.terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " + ")
}

// ============================================================
// Product
// ============================================================

type product struct{ factors []Expr }

// MulOf returns the product of factors, flattening nested products and
// folding constants. A zero factor collapses the product to 0.
func MulOf(factors ...Expr) Expr {
	c := 1.0
	flat := make([]Expr, 0, len(factors))
	for _, f := range factors {
		switch x := f.(type) {
		case number:
			c *= x.v
		case product:
			for _, inner := range x.factors {
				if n, ok := inner.(number); ok {
					c *= n.v
					continue
				}
				flat = append(flat, inner)
			}
		default:
			flat = append(flat, f)
		}
		if c == 0 {
			return number{}
		}
	}
	if len(flat) == 0 {
		return number{v: c}
	}
	if c != 1 {
		flat = append([]Expr{number{v: c}}, flat...)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return product{factors: flat}
}

func (m product) Eval(env Env) float64 {
	v := 1.0
	for _, f := range m.factors {
		v *= f.Eval(env)
	}
	return v
}

func (m product) Diff(s Symbol) Expr {
	var addends []Expr
	for i, f := range m.factors {
		df := f.Diff(s)
		if isNumber(df, 0) {
			continue
		}
		next := make([]Expr, len(m.factors))
		copy(next, m.factors)
		next[i] = df
		addends = append(addends, MulOf(next...))
	}
	return AddOf(addends...)
}

func (m product) Expand() Poly {
	p := One()
	for _, f := range m.factors {
		p = p.Mul(f.Expand())
		if p.IsZero() {
			break
		}
	}
	return p
}

func (m product) String() string {
	parts := make([]string, len(m.factors))
	for i, f := range m.factors {
		parts[i] = parenthesize(f)
	}
	return strings.Join(parts, "*")
}

// ============================================================
// Power
// ============================================================

type power struct {
	base Expr
	n    int
}

// PowOf returns base^n for a non-negative integer n.
func PowOf(base Expr, n int) Expr {
	if n < 0 {
		panic("symbolic: negative exponent")
	}
	switch {
	case n == 0:
		return number{v: 1}
	case n == 1:
		return base
	}
	if b, ok := base.(number); ok {
		return number{v: math.Pow(b.v, float64(n))}
	}
	return power{base: base, n: n}
}

func (p power) Eval(env Env) float64 {
	b := p.base.Eval(env)
	v := 1.0
	for i := 0; i < p.n; i++ {
		v *= b
	}
	return v
}

func (p power) Diff(s Symbol) Expr {
	db := p.base.Diff(s)
	if isNumber(db, 0) {
		return number{}
	}
	return MulOf(number{v: float64(p.n)}, PowOf(p.base, p.n-1), db)
}

func (p power) Expand() Poly {
	b := p.base.Expand()
	out := b
	for i := 1; i < p.n; i++ {
		out = out.Mul(b)
	}
	return out
}

func (p power) String() string {
	return parenthesize(p.base) + "^" + strconv.Itoa(p.n)
}

func parenthesize(e Expr) string {
	switch e.(type) {
	case sum, product, power:
		return "(" + e.String() + ")"
	}
	return e.String()
}
