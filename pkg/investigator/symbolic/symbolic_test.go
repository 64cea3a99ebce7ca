package symbolic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(values map[Symbol]float64) Env {
	return func(s Symbol) float64 { return values[s] }
}

func TestSymbolNames(t *testing.T) {
	assert.Equal(t, "p3", P(3).String())
	assert.Equal(t, "w12", W(12).String())
	assert.True(t, P(9).Less(W(0)))
	assert.True(t, W(1).Less(W(2)))
}

func TestPolyIdempotence(t *testing.T) {
	x := Var(P(1))
	assert.True(t, x.Mul(x).Equal(x), "x*x must reduce to x")
	assert.True(t, x.Mul(x).Mul(x).Equal(x))

	w := Var(W(0))
	xw := x.Mul(w)
	assert.True(t, xw.Mul(xw).Equal(xw))
	assert.Equal(t, 2, xw.Degree())
}

func TestPolyAddCancels(t *testing.T) {
	x := Var(P(0))
	assert.True(t, x.Sub(x).IsZero())
	assert.Equal(t, "0", x.Sub(x).String())

	c, ok := One().Add(Const(2)).Constant()
	require.True(t, ok)
	assert.Equal(t, 3.0, c)
}

func TestPolyMulExpandsInclusionExclusion(t *testing.T) {
	a := Var(P(0))
	b := Var(P(1))
	// 1 - (1-a)(1-b) = a + b - ab
	got := One().Sub(One().Sub(a).Mul(One().Sub(b)))
	want := a.Add(b).Sub(a.Mul(b))
	assert.True(t, got.Equal(want), "got %s want %s", got, want)
	assert.Equal(t, "p0 + p1 - p0*p1", got.String())
}

func TestPolySharedAncestorIsExact(t *testing.T) {
	// (a*w0)*(a*w1): both children of a are true only when a is true once.
	a := Var(P(0))
	left := a.Mul(Var(W(0)))
	right := a.Mul(Var(W(1)))
	got := left.Mul(right)
	assert.Equal(t, "p0*w0*w1", got.String())

	v := got.Eval(env(map[Symbol]float64{P(0): 0.5, W(0): 0.8, W(1): 0.5}))
	assert.InDelta(t, 0.2, v, 1e-15)
}

func TestPolySubstitute(t *testing.T) {
	a, b := P(0), P(1)
	local := Var(b).Mul(Var(W(0)))
	full := local.Substitute(map[Symbol]Poly{b: Var(a).Mul(Var(W(1)))})
	assert.Equal(t, "p0*w0*w1", full.String())

	zeroed := full.Substitute(map[Symbol]Poly{a: Zero()})
	assert.True(t, zeroed.IsZero())

	one := full.Substitute(map[Symbol]Poly{a: One(), W(0): One(), W(1): One()})
	c, ok := one.Constant()
	require.True(t, ok)
	assert.Equal(t, 1.0, c)
}

func TestPolySubstituteReappliesIdempotence(t *testing.T) {
	a := P(0)
	// p1*p2 with p1 -> p0 and p2 -> p0 must give p0, not p0^2.
	p := Var(P(1)).Mul(Var(P(2)))
	got := p.Substitute(map[Symbol]Poly{P(1): Var(a), P(2): Var(a)})
	assert.True(t, got.Equal(Var(a)))
}

func TestPolyDiff(t *testing.T) {
	p := Var(P(0)).Mul(Var(W(0))).Add(Var(P(1))).Add(Const(3))
	d := p.Diff(W(0))
	assert.True(t, d.Equal(Var(P(0))))
	assert.True(t, p.Diff(W(9)).IsZero())
}

func TestPolySymbolsAndContains(t *testing.T) {
	p := Var(W(2)).Mul(Var(P(5))).Add(Var(P(1)))
	assert.Equal(t, []Symbol{P(1), P(5), W(2)}, p.Symbols())
	assert.True(t, p.Contains(W(2)))
	assert.False(t, p.Contains(W(3)))
}

func TestPolyEvalDeterministic(t *testing.T) {
	a, b, c := Var(P(0)), Var(P(1)), Var(P(2))
	p := One().Sub(One().Sub(a).Mul(One().Sub(b)).Mul(One().Sub(c)))
	e := env(map[Symbol]float64{P(0): 0.1, P(1): 0.2, P(2): 0.3})
	first := p.Eval(e)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, p.Eval(e))
	}
	assert.InDelta(t, 1-0.9*0.8*0.7, first, 1e-15)
}

func TestExprConstructorsSimplify(t *testing.T) {
	x := Sym(P(0))
	assert.Equal(t, "0", MulOf(x, Num(0)).String())
	assert.Equal(t, "p0", MulOf(Num(1), x).String())
	assert.Equal(t, "p0", AddOf(Num(0), x).String())
	assert.Equal(t, "1", PowOf(x, 0).String())
	assert.Equal(t, "8", PowOf(Num(2), 3).String())
	assert.Equal(t, "3 + p0", AddOf(Num(1), AddOf(x, Num(2))).String())
}

func TestExprDiffSquaredLoss(t *testing.T) {
	// d/dp (p - 0.7)^2 = 2(p - 0.7)
	p := P(0)
	loss := PowOf(AddOf(Sym(p), Num(-0.7)), 2)
	grad := loss.Diff(p)

	at := func(v float64) Env { return env(map[Symbol]float64{p: v}) }
	assert.InDelta(t, 0.09, loss.Eval(at(1.0)), 1e-12)
	assert.InDelta(t, 0.6, grad.Eval(at(1.0)), 1e-12)
	assert.InDelta(t, -0.4, grad.Eval(at(0.5)), 1e-12)
	assert.InDelta(t, 0.0, grad.Eval(at(0.7)), 1e-12)
}

func TestExprDiffProductRule(t *testing.T) {
	a, w := P(0), W(0)
	e := MulOf(Sym(a), Sym(w), Sym(a))
	d := e.Diff(a)
	vals := env(map[Symbol]float64{a: 0.5, w: 0.4})
	// d/da (a^2 w) = 2aw
	assert.InDelta(t, 0.4, d.Eval(vals), 1e-12)
	assert.Equal(t, "0", e.Diff(P(7)).String())
}

func TestExprExpandAppliesIdempotence(t *testing.T) {
	a, b := Sym(P(0)), Sym(P(1))
	// (a + b)^2 -> a + 2ab + b
	got := PowOf(AddOf(a, b), 2).Expand()
	want := Var(P(0)).Add(Var(P(1))).Add(Var(P(0)).Mul(Var(P(1))).Scale(2))
	assert.True(t, got.Equal(want), "got %s", got)
}

func TestPolyToExprRoundTrip(t *testing.T) {
	p := One().Sub(Var(P(0)).Mul(Var(W(1)))).Add(Var(P(2)).Scale(3))
	e := p.Expr()
	assert.True(t, e.Expand().Equal(p))

	vals := env(map[Symbol]float64{P(0): 0.3, W(1): 0.9, P(2): 0.25})
	assert.InDelta(t, p.Eval(vals), e.Eval(vals), 1e-15)
}
