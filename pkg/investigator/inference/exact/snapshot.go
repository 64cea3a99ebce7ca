package exact

import (
	"github.com/cognicore/investigator/pkg/investigator/network"
	"github.com/cognicore/investigator/pkg/investigator/symbolic"
)

type nodeState struct {
	prior, probability float64
	forced             network.Truth

	local, working, full, condensed, evidential symbolic.Poly
	evidenceAncestors                           network.NodeSet

	contradiction  bool
	theoretical    float64
	hasTheoretical bool
}

type edgeState struct {
	weight, restore, trial float64
	highlight              network.Highlight
}

// snapshot holds the mutable numeric state of a network so a failed run
// can put everything back.
type snapshot struct {
	nodes map[network.NodeID]nodeState
	edges map[network.EdgeID]edgeState
}

func takeSnapshot(net *network.Network) snapshot {
	s := snapshot{
		nodes: make(map[network.NodeID]nodeState),
		edges: make(map[network.EdgeID]edgeState),
	}
	for _, n := range net.Nodes() {
		s.nodes[n.ID] = nodeState{
			prior:             n.Prior,
			probability:       n.Probability,
			forced:            n.Forced,
			local:             n.Local,
			working:           n.Working,
			full:              n.Full,
			condensed:         n.Condensed,
			evidential:        n.Evidential,
			evidenceAncestors: n.EvidenceAncestors,
			contradiction:     n.Contradiction,
			theoretical:       n.Theoretical,
			hasTheoretical:    n.HasTheoretical,
		}
	}
	for _, e := range net.Edges() {
		s.edges[e.ID] = edgeState{weight: e.Weight, restore: e.Restore, trial: e.Trial, highlight: e.Highlight}
	}
	return s
}

func (s snapshot) restore(net *network.Network) {
	for _, n := range net.Nodes() {
		st, ok := s.nodes[n.ID]
		if !ok {
			continue
		}
		n.Prior, n.Probability, n.Forced = st.prior, st.probability, st.forced
		n.Local, n.Working, n.Full, n.Condensed, n.Evidential = st.local, st.working, st.full, st.condensed, st.evidential
		n.EvidenceAncestors = st.evidenceAncestors
		n.Contradiction, n.Theoretical, n.HasTheoretical = st.contradiction, st.theoretical, st.hasTheoretical
	}
	for _, e := range net.Edges() {
		if st, ok := s.edges[e.ID]; ok {
			e.Weight, e.Restore, e.Trial, e.Highlight = st.weight, st.restore, st.trial, st.highlight
		}
	}
}
