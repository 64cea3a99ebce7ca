package exact

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/investigator/pkg/investigator/inference"
	"github.com/cognicore/investigator/pkg/investigator/network"
)

// enumerate computes P(node | evidence) for every node by summing over all
// assignments of Eve values and edge activations. The second result is
// P(evidence).
func enumerate(net *network.Network) (map[network.NodeID]float64, float64) {
	net.RefreshAncestry()
	order := net.ShallowFirst()
	var eves []*network.Node
	for _, n := range order {
		if n.IsEve() {
			eves = append(eves, n)
		}
	}
	edges := net.Edges()
	evidence := net.Evidence()

	bits := len(eves) + len(edges)
	value := make(map[network.NodeID]bool, len(order))
	link := make(map[network.EdgeID]bool, len(edges))
	mass := make(map[network.NodeID]float64, len(order))
	total := 0.0

	for mask := 0; mask < 1<<bits; mask++ {
		weight := 1.0
		for i, n := range eves {
			on := mask&(1<<i) != 0
			value[n.ID] = on
			if on {
				weight *= n.Prior
			} else {
				weight *= 1 - n.Prior
			}
		}
		for j, e := range edges {
			on := mask&(1<<(len(eves)+j)) != 0
			link[e.ID] = on
			if on {
				weight *= e.Weight
			} else {
				weight *= 1 - e.Weight
			}
		}
		if weight == 0 {
			continue
		}
		for _, n := range order {
			if n.IsEve() {
				continue
			}
			active := 0
			for _, eid := range n.Parents {
				e, _ := net.Edge(eid)
				if value[e.Parent] && link[eid] {
					active++
				}
			}
			k := len(n.Parents)
			switch n.Kind {
			case network.KindMain:
				value[n.ID] = active > 0
			case network.KindInteraction:
				value[n.ID] = active == k
			case network.KindExclusion:
				value[n.ID] = active == 1
			case network.KindInverted:
				value[n.ID] = active < k
			case network.KindInvertedInteraction:
				value[n.ID] = active == 0
			}
		}
		consistent := true
		for _, ev := range evidence {
			if value[ev.Node] != ev.Value {
				consistent = false
				break
			}
		}
		if !consistent {
			continue
		}
		total += weight
		for _, n := range order {
			if value[n.ID] {
				mass[n.ID] += weight
			}
		}
	}

	post := make(map[network.NodeID]float64, len(order))
	for _, n := range order {
		post[n.ID] = mass[n.ID] / total
	}
	return post, total
}

func TestBayesMatchesEnumeration(t *testing.T) {
	t.Run("diamond", func(t *testing.T) {
		b := newBuilder(t)
		a := b.node(network.KindMain, 0.4)
		e := b.node(network.KindMain, 0.7)
		l := b.node(network.KindMain, 0.5)
		r := b.node(network.KindExclusion, 0.5)
		d := b.node(network.KindInteraction, 0.5)
		b.edge(a, l, 0.8)
		b.edge(a, r, 0.6)
		b.edge(e, r, 0.9)
		b.edge(l, d, 0.7)
		b.edge(r, d, 0.95)
		b.evidence(d, true)
		checkAgainstEnumeration(t, b.net)
	})

	t.Run("inverted with two evidence", func(t *testing.T) {
		b := newBuilder(t)
		a := b.node(network.KindMain, 0.2)
		e := b.node(network.KindMain, 0.6)
		m := b.node(network.KindInverted, 0.5)
		n := b.node(network.KindInvertedInteraction, 0.5)
		o := b.node(network.KindMain, 0.5)
		b.edge(a, m, 0.9)
		b.edge(e, m, 0.5)
		b.edge(a, n, 0.3)
		b.edge(m, o, 0.8)
		b.edge(n, o, 0.6)
		b.evidence(o, true)
		b.evidence(m, false)
		checkAgainstEnumeration(t, b.net)
	})

	r := rand.New(rand.NewPCG(11, 13))
	kinds := network.Kinds()
	for i := 0; i < 40; i++ {
		t.Run(fmt.Sprintf("random %d", i), func(t *testing.T) {
			b := newBuilder(t)
			const size = 6
			ids := make([]network.NodeID, size)
			for j := range ids {
				ids[j] = b.node(kinds[r.IntN(len(kinds))], 0.05+0.9*r.Float64())
			}
			edges := 0
			for c := 1; c < size && edges < 9; c++ {
				for p := 0; p < c && edges < 9; p++ {
					if r.Float64() < 0.4 {
						b.edge(ids[p], ids[c], r.Float64())
						edges++
					}
				}
			}
			for _, idx := range r.Perm(size)[:1+r.IntN(2)] {
				b.evidence(ids[idx], r.IntN(2) == 0)
			}

			if _, total := enumerate(b.net); total < 1e-6 {
				t.Skip("evidence (nearly) impossible")
			}
			checkAgainstEnumeration(t, b.net)
		})
	}
}

func checkAgainstEnumeration(t *testing.T, net *network.Network) {
	t.Helper()
	want, total := enumerate(net)
	require.Greater(t, total, 0.0)

	report, err := newEngine(net, false).Run(context.Background(), inference.Options{Mode: inference.ModeBayesian})
	require.NoError(t, err)
	assert.InDelta(t, total, report.EvidenceProbability, 1e-9)
	assert.Empty(t, report.Faults)

	for _, n := range net.Nodes() {
		assert.InDelta(t, want[n.ID], n.Probability, 1e-9, "node %d (%s)", n.ID, n.Kind)
	}
}
