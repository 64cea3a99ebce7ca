package exact

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cognicore/investigator/pkg/investigator/inference"
	"github.com/cognicore/investigator/pkg/investigator/internalerr"
	"github.com/cognicore/investigator/pkg/investigator/network"
)

func newEngine(net *network.Network, persist bool) *Engine {
	params := inference.DefaultParams()
	params.PersistPosteriors = persist
	return New(net, params, zap.NewNop(), rand.New(rand.NewPCG(5, 6)))
}

type builder struct {
	t   *testing.T
	net *network.Network
}

func newBuilder(t *testing.T) *builder { return &builder{t: t, net: network.New()} }

func (b *builder) node(kind network.Kind, prior float64) network.NodeID {
	b.t.Helper()
	id, err := b.net.CreateNode(kind)
	require.NoError(b.t, err)
	require.NoError(b.t, b.net.SetPrior(id, prior))
	return id
}

func (b *builder) edge(parent, child network.NodeID, w float64) network.EdgeID {
	b.t.Helper()
	id, err := b.net.AddEdge(parent, child)
	require.NoError(b.t, err)
	require.NoError(b.t, b.net.SetWeight(id, w))
	return id
}

func (b *builder) evidence(id network.NodeID, v bool) {
	b.t.Helper()
	require.NoError(b.t, b.net.SetEvidence(id, network.TruthOf(v)))
}

func (b *builder) prob(id network.NodeID) float64 {
	b.t.Helper()
	n, err := b.net.Node(id)
	require.NoError(b.t, err)
	return n.Probability
}

func probabilities(net *network.Network) map[network.NodeID]float64 {
	out := make(map[network.NodeID]float64)
	for _, n := range net.Nodes() {
		out[n.ID] = n.Probability
	}
	return out
}

func TestForwardChain(t *testing.T) {
	b := newBuilder(t)
	a := b.node(network.KindMain, 0.3)
	c := b.node(network.KindMain, 0.5)
	d := b.node(network.KindInverted, 0.5)
	b.edge(a, c, 0.8)
	b.edge(c, d, 0.5)

	_, err := newEngine(b.net, true).Run(context.Background(), inference.Options{})
	require.NoError(t, err)

	assert.InDelta(t, 0.3, b.prob(a), 1e-15)
	assert.InDelta(t, 0.24, b.prob(c), 1e-15)
	assert.InDelta(t, 1-0.12, b.prob(d), 1e-15)
}

func TestForwardSharedAncestorIsExact(t *testing.T) {
	b := newBuilder(t)
	a := b.node(network.KindMain, 0.5)
	l := b.node(network.KindMain, 0.5)
	r := b.node(network.KindMain, 0.5)
	d := b.node(network.KindInteraction, 0.5)
	b.edge(a, l, 0.8)
	b.edge(a, r, 0.5)
	b.edge(l, d, 1)
	b.edge(r, d, 1)

	_, err := newEngine(b.net, true).Run(context.Background(), inference.Options{})
	require.NoError(t, err)

	// A counted once: 0.5·0.8·0.5, not (0.5·0.8)·(0.5·0.5).
	assert.InDelta(t, 0.2, b.prob(d), 1e-15)
	nd, _ := b.net.Node(d)
	assert.Equal(t, "p0*w0*w1*w2*w3", nd.Full.String())
}

func TestBayesWithoutEvidenceMatchesForward(t *testing.T) {
	b := newBuilder(t)
	a := b.node(network.KindMain, 0.3)
	c := b.node(network.KindExclusion, 0.5)
	e := b.node(network.KindMain, 0.6)
	b.edge(a, c, 0.9)
	b.edge(e, c, 0.4)

	eng := newEngine(b.net, true)
	_, err := eng.Run(context.Background(), inference.Options{Mode: inference.ModeInvestigation})
	require.NoError(t, err)
	forward := probabilities(b.net)

	_, err = eng.Run(context.Background(), inference.Options{Mode: inference.ModeBayesian})
	require.NoError(t, err)
	assert.Equal(t, forward, probabilities(b.net))
}

func TestBayesTwoNodeConditioning(t *testing.T) {
	b := newBuilder(t)
	a := b.node(network.KindMain, 0.3)
	c := b.node(network.KindMain, 0.5)
	b.edge(a, c, 1)
	b.evidence(c, true)

	report, err := newEngine(b.net, true).Run(context.Background(), inference.Options{Mode: inference.ModeBayesian})
	require.NoError(t, err)

	assert.Equal(t, 1.0, b.prob(a))
	assert.Equal(t, 1.0, b.prob(c))
	assert.InDelta(t, 0.3, report.EvidenceProbability, 1e-15)

	na, _ := b.net.Node(a)
	assert.Equal(t, 1.0, na.Prior, "posterior persisted as prior")
}

func TestBayesContradictionRollsBack(t *testing.T) {
	b := newBuilder(t)
	a := b.node(network.KindMain, 0.4)
	c := b.node(network.KindMain, 0.5)
	b.edge(a, c, 1)

	eng := newEngine(b.net, true)
	_, err := eng.Run(context.Background(), inference.Options{})
	require.NoError(t, err)
	before := probabilities(b.net)

	b.evidence(a, false)
	b.evidence(c, true)
	report, err := eng.Run(context.Background(), inference.Options{Mode: inference.ModeBayesian})
	require.ErrorIs(t, err, internalerr.ErrContradictoryEvidence)
	assert.Equal(t, 0.0, report.EvidenceProbability)

	assert.Equal(t, before, probabilities(b.net))
	na, _ := b.net.Node(a)
	assert.Equal(t, 0.4, na.Prior)
	assert.Equal(t, network.TruthNone, na.Forced)
}

func TestBayesEvidenceOnEveWeighsByPrior(t *testing.T) {
	b := newBuilder(t)
	a := b.node(network.KindMain, 0.3)
	c := b.node(network.KindMain, 0.5)
	b.edge(a, c, 1)
	b.evidence(a, true)

	report, err := newEngine(b.net, true).Run(context.Background(), inference.Options{Mode: inference.ModeBayesian})
	require.NoError(t, err)
	assert.InDelta(t, 0.3, report.EvidenceProbability, 1e-15)
	assert.Equal(t, 1.0, b.prob(c))
}

func TestBayesRejectsEveEvidenceWithZeroPrior(t *testing.T) {
	b := newBuilder(t)
	a := b.node(network.KindMain, 0)
	c := b.node(network.KindMain, 0.5)
	b.edge(a, c, 1)

	eng := newEngine(b.net, true)
	_, err := eng.Run(context.Background(), inference.Options{})
	require.NoError(t, err)
	before := probabilities(b.net)

	b.evidence(a, true)
	report, err := eng.Run(context.Background(), inference.Options{Mode: inference.ModeBayesian})
	require.ErrorIs(t, err, internalerr.ErrContradictoryEvidence)
	assert.Equal(t, 0.0, report.EvidenceProbability)
	assert.Equal(t, before, probabilities(b.net))
}

func TestNonFiniteValueIsReportedAsFault(t *testing.T) {
	b := newBuilder(t)
	x := b.node(network.KindMain, 0.5)
	y := b.node(network.KindMain, 0.5)
	both := b.node(network.KindInteraction, 0.5)
	other := b.node(network.KindMain, 0.5)
	b.edge(x, both, 1e308)
	b.edge(y, both, 1e308)
	b.edge(x, other, 0.5)

	report, err := newEngine(b.net, true).Run(context.Background(), inference.Options{})
	require.NoError(t, err, "a degenerate node does not stop the pass")

	require.Len(t, report.Faults, 1)
	assert.Equal(t, both, report.Faults[0].Node)
	assert.ErrorIs(t, report.Faults[0], internalerr.ErrNumericDegeneracy)

	assert.True(t, math.IsInf(b.prob(both), 1))
	assert.InDelta(t, 0.25, b.prob(other), 1e-15)
	assert.Equal(t, 0.5, b.prob(y))
}

func TestFastPassSkipsUnrelatedNodes(t *testing.T) {
	b := newBuilder(t)
	a := b.node(network.KindMain, 0.5)
	mid := b.node(network.KindMain, 0.5)
	target := b.node(network.KindMain, 0.5)
	side := b.node(network.KindMain, 0.5)
	lone := b.node(network.KindMain, 0.4)
	loneChild := b.node(network.KindMain, 0.5)
	b.edge(a, mid, 0.8)
	b.edge(mid, target, 0.5)
	b.edge(a, side, 1)
	b.edge(lone, loneChild, 1)

	eng := newEngine(b.net, true)
	_, err := eng.Run(context.Background(), inference.Options{})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, b.prob(target), 1e-15)

	const stale = 0.99
	for _, id := range []network.NodeID{mid, target, side, loneChild} {
		n, _ := b.net.Node(id)
		n.Probability = stale
	}
	require.NoError(t, b.net.SetPrior(a, 0.25))

	eng.fastPass(network.NewNodeSet(a), network.NewNodeSet(target))

	assert.Equal(t, 0.25, b.prob(a))
	assert.InDelta(t, 0.2, b.prob(mid), 1e-15, "between active and pending")
	assert.InDelta(t, 0.1, b.prob(target), 1e-15)
	assert.Equal(t, stale, b.prob(side), "downstream but feeds no pending node")
	assert.Equal(t, stale, b.prob(loneChild), "not downstream of the active node")
	assert.Equal(t, 0.4, b.prob(lone))
}

func TestRunRejectsCycles(t *testing.T) {
	b := newBuilder(t)
	x := b.node(network.KindMain, 0.5)
	y := b.node(network.KindMain, 0.5)
	z := b.node(network.KindMain, 0.5)
	b.edge(x, y, 1)
	b.edge(y, z, 1)
	b.edge(z, x, 1)
	before := probabilities(b.net)

	_, err := newEngine(b.net, true).Run(context.Background(), inference.Options{})
	assert.ErrorIs(t, err, internalerr.ErrCycleDetected)
	assert.Equal(t, before, probabilities(b.net))
}

func TestRunCancelledRestoresState(t *testing.T) {
	b := newBuilder(t)
	a := b.node(network.KindMain, 0.3)
	c := b.node(network.KindMain, 0.5)
	b.edge(a, c, 1)

	eng := newEngine(b.net, true)
	_, err := eng.Run(context.Background(), inference.Options{})
	require.NoError(t, err)
	before := probabilities(b.net)

	b.evidence(c, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = eng.Run(ctx, inference.Options{Mode: inference.ModeBayesian})
	require.ErrorIs(t, err, internalerr.ErrCancelled)
	assert.Equal(t, before, probabilities(b.net))
	na, _ := b.net.Node(a)
	assert.Equal(t, 0.3, na.Prior)
}

func TestRunIsIdempotent(t *testing.T) {
	build := func() (*builder, network.NodeID) {
		b := newBuilder(t)
		a := b.node(network.KindMain, 0.3)
		e := b.node(network.KindMain, 0.7)
		c := b.node(network.KindInteraction, 0.5)
		d := b.node(network.KindExclusion, 0.5)
		b.edge(a, c, 0.9)
		b.edge(e, c, 0.6)
		b.edge(a, d, 0.5)
		b.edge(c, d, 0.8)
		return b, d
	}

	t.Run("no evidence", func(t *testing.T) {
		b, _ := build()
		eng := newEngine(b.net, true)
		_, err := eng.Run(context.Background(), inference.Options{})
		require.NoError(t, err)
		first := probabilities(b.net)
		_, err = eng.Run(context.Background(), inference.Options{})
		require.NoError(t, err)
		assert.Equal(t, first, probabilities(b.net))
	})

	t.Run("evidence without persistence", func(t *testing.T) {
		b, d := build()
		b.evidence(d, true)
		eng := newEngine(b.net, false)
		r1, err := eng.Run(context.Background(), inference.Options{Mode: inference.ModeBayesian})
		require.NoError(t, err)
		first := probabilities(b.net)
		r2, err := eng.Run(context.Background(), inference.Options{Mode: inference.ModeBayesian})
		require.NoError(t, err)
		assert.Equal(t, first, probabilities(b.net))
		assert.Equal(t, r1.EvidenceProbability, r2.EvidenceProbability)
	})
}

func TestInvestigationFlagsImpossibleTrueEvidence(t *testing.T) {
	b := newBuilder(t)
	a := b.node(network.KindMain, 0.5)
	c := b.node(network.KindMain, 0.5)
	w := b.edge(a, c, 1)
	b.evidence(a, false)
	b.evidence(c, true)

	report, err := newEngine(b.net, true).Run(context.Background(), inference.Options{Mode: inference.ModeInvestigation})
	require.NoError(t, err)

	nc, _ := b.net.Node(c)
	assert.True(t, nc.Contradiction)
	assert.True(t, nc.HasTheoretical)
	assert.Equal(t, 0.0, nc.Theoretical)
	assert.Equal(t, []network.NodeID{c}, report.Contradictions)

	na, _ := b.net.Node(a)
	assert.False(t, na.Contradiction)

	edge, _ := b.net.Edge(w)
	assert.Equal(t, 1.0, edge.Weight, "weight restored after fitting")
	assert.Equal(t, network.HighlightImplicated, edge.Highlight)
	assert.Equal(t, network.HighlightImplicated, report.Highlights[w])
}

func TestInvestigationConstrainedNeverImplicates(t *testing.T) {
	b := newBuilder(t)
	a := b.node(network.KindMain, 0.5)
	c := b.node(network.KindMain, 0.5)
	w := b.edge(a, c, 1)
	b.evidence(a, false)
	b.evidence(c, true)

	_, err := newEngine(b.net, true).Run(context.Background(), inference.Options{
		Mode:        inference.ModeInvestigation,
		Constrained: true,
	})
	require.NoError(t, err)
	edge, _ := b.net.Edge(w)
	assert.Equal(t, network.HighlightNone, edge.Highlight)
}

func TestInvestigationWeakLinkWantsIncrease(t *testing.T) {
	b := newBuilder(t)
	a := b.node(network.KindMain, 0.5)
	c := b.node(network.KindMain, 0.5)
	w := b.edge(a, c, 0.01)
	b.evidence(c, true)

	report, err := newEngine(b.net, true).Run(context.Background(), inference.Options{Mode: inference.ModeInvestigation})
	require.NoError(t, err)

	na, _ := b.net.Node(a)
	assert.InDelta(t, 1.0, na.Prior, 1e-9, "prior fitted to the evidence")

	nc, _ := b.net.Node(c)
	assert.True(t, nc.Contradiction)
	assert.InDelta(t, 0.01, nc.Theoretical, 1e-9)
	assert.Greater(t, report.PriorIterations, 0)
	assert.Greater(t, report.WeightIterations, 0)

	edge, _ := b.net.Edge(w)
	assert.Equal(t, 0.01, edge.Weight)
	assert.Equal(t, 0.01, edge.Restore)
	assert.InDelta(t, 1.0, edge.Trial, 0.01)
	assert.Equal(t, network.HighlightIncrease, edge.Highlight)
}

func TestInvestigationConsistentEvidence(t *testing.T) {
	b := newBuilder(t)
	a := b.node(network.KindMain, 0.5)
	c := b.node(network.KindMain, 0.5)
	b.edge(a, c, 0.9)
	b.evidence(c, true)

	report, err := newEngine(b.net, true).Run(context.Background(), inference.Options{Mode: inference.ModeInvestigation})
	require.NoError(t, err)
	assert.Empty(t, report.Contradictions)
	assert.Empty(t, report.Highlights)
	assert.Equal(t, 1.0, b.prob(c))
}

func TestInvestigationAllEvidenceFitsEveryWeight(t *testing.T) {
	b := newBuilder(t)
	a := b.node(network.KindMain, 0.5)
	c := b.node(network.KindMain, 0.5)
	d := b.node(network.KindMain, 0.5)
	ac := b.edge(a, c, 0.9)
	cd := b.edge(c, d, 0.9)
	b.evidence(a, true)
	b.evidence(d, false)

	report, err := newEngine(b.net, true).Run(context.Background(), inference.Options{
		Mode:           inference.ModeInvestigation,
		UseAllEvidence: true,
	})
	require.NoError(t, err)
	assert.Contains(t, report.Highlights, ac)
	assert.Contains(t, report.Highlights, cd)

	edge, _ := b.net.Edge(cd)
	assert.Equal(t, 0.9, edge.Weight)
	assert.Less(t, edge.Trial, edge.Restore, "d is false so the chain should weaken")
}
