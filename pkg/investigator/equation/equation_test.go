package equation

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/investigator/pkg/investigator/network"
	"github.com/cognicore/investigator/pkg/investigator/symbolic"
)

func terms(n int) []Term {
	out := make([]Term, n)
	for i := range out {
		out[i] = Term{Node: symbolic.P(i), Weight: symbolic.Var(symbolic.W(i))}
	}
	return out
}

func TestSingleParentBaseCases(t *testing.T) {
	q := symbolic.Var(symbolic.P(0)).Mul(symbolic.Var(symbolic.W(0)))
	notQ := symbolic.One().Sub(q)

	cases := []struct {
		kind network.Kind
		want symbolic.Poly
	}{
		{network.KindMain, q},
		{network.KindInteraction, q},
		{network.KindExclusion, q},
		{network.KindInverted, notQ},
		{network.KindInvertedInteraction, notQ},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			got := Local(tc.kind, terms(1))
			assert.True(t, got.Equal(tc.want), "got %s want %s", got, tc.want)
		})
	}
}

func TestTwoParentForms(t *testing.T) {
	assert.Equal(t, "p0*w0 + p1*w1 - p0*p1*w0*w1", Local(network.KindMain, terms(2)).String())
	assert.Equal(t, "p0*p1*w0*w1", Local(network.KindInteraction, terms(2)).String())
	assert.Equal(t, "p0*w0 + p1*w1 - 2*p0*p1*w0*w1", Local(network.KindExclusion, terms(2)).String())
	assert.Equal(t, "1 - p0*p1*w0*w1", Local(network.KindInverted, terms(2)).String())
}

func TestClosedFormsAgreeNumerically(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for n := 1; n <= 5; n++ {
		ts := terms(n)
		vals := make(map[symbolic.Symbol]float64)
		q := make([]float64, n)
		for i := 0; i < n; i++ {
			p, w := rng.Float64(), rng.Float64()
			vals[symbolic.P(i)], vals[symbolic.W(i)] = p, w
			q[i] = p * w
		}
		env := func(s symbolic.Symbol) float64 { return vals[s] }

		noneTrue, allTrue, exactlyOne := 1.0, 1.0, 0.0
		for i := range q {
			noneTrue *= 1 - q[i]
			allTrue *= q[i]
			only := q[i]
			for j := range q {
				if j != i {
					only *= 1 - q[j]
				}
			}
			exactlyOne += only
		}

		assert.InDelta(t, 1-noneTrue, Local(network.KindMain, ts).Eval(env), 1e-12, "main n=%d", n)
		assert.InDelta(t, allTrue, Local(network.KindInteraction, ts).Eval(env), 1e-12, "interaction n=%d", n)
		assert.InDelta(t, exactlyOne, Local(network.KindExclusion, ts).Eval(env), 1e-12, "exclusion n=%d", n)
		assert.InDelta(t, 1-allTrue, Local(network.KindInverted, ts).Eval(env), 1e-12, "inverted n=%d", n)
		assert.InDelta(t, noneTrue, Local(network.KindInvertedInteraction, ts).Eval(env), 1e-12, "inverted interaction n=%d", n)
	}
}

func TestMainMatchesProductExpansion(t *testing.T) {
	ts := terms(4)
	none := symbolic.One()
	for _, term := range ts {
		none = none.Mul(symbolic.One().Sub(term.Effective()))
	}
	assert.True(t, Local(network.KindMain, ts).Equal(symbolic.One().Sub(none)))
}

func TestTermsPinAuxiliaryWeights(t *testing.T) {
	net := network.New()
	a, err := net.CreateNode(network.KindMain)
	require.NoError(t, err)
	b, err := net.CreateNode(network.KindMain)
	require.NoError(t, err)
	_, err = net.AddEdge(a, b)
	require.NoError(t, err)

	nb, _ := net.Node(b)
	assert.Equal(t, "p0*w0", Local(nb.Kind, Terms(net, nb)).String())

	require.NoError(t, net.SetAuxiliary(b, true))
	assert.Equal(t, "p0", Local(nb.Kind, Terms(net, nb)).String())
}

func TestSubstituteSharedAncestor(t *testing.T) {
	// d = Interaction(b, c), b = a·w0, c = a·w1
	local := Local(network.KindInteraction, []Term{
		{Node: symbolic.P(1), Weight: symbolic.Var(symbolic.W(2))},
		{Node: symbolic.P(2), Weight: symbolic.Var(symbolic.W(3))},
	})
	full := Substitute(local, map[symbolic.Symbol]symbolic.Poly{
		symbolic.P(1): symbolic.Var(symbolic.P(0)).Mul(symbolic.Var(symbolic.W(0))),
		symbolic.P(2): symbolic.Var(symbolic.P(0)).Mul(symbolic.Var(symbolic.W(1))),
	})
	assert.Equal(t, "p0*w0*w1*w2*w3", full.String())
}
