package network

import (
	"fmt"
	"slices"

	"github.com/cognicore/investigator/pkg/investigator/internalerr"
)

// NodeRecord is the persisted form of a node.
type NodeRecord struct {
	Label     string  `json:"label" yaml:"label"`
	Kind      Kind    `json:"kind" yaml:"kind"`
	Position  []byte  `json:"position,omitempty" yaml:"position,omitempty"`
	Evidence  Truth   `json:"evidence" yaml:"evidence"`
	Prior     float64 `json:"prior" yaml:"prior"`
	Auxiliary bool    `json:"auxiliary" yaml:"auxiliary"`
}

// EdgeRecord is the persisted form of an edge. Parent and Child index the
// record's node list.
type EdgeRecord struct {
	Parent int     `json:"parent" yaml:"parent"`
	Child  int     `json:"child" yaml:"child"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// Record is everything needed to rebuild a network. Computed state
// (probabilities, equations, highlights) is not part of it.
type Record struct {
	Nodes []NodeRecord `json:"nodes" yaml:"nodes"`
	Edges []EdgeRecord `json:"edges" yaml:"edges"`
	// EvidenceOrder lists node indices in assertion order. Nodes carrying
	// evidence but missing here are appended in node order.
	EvidenceOrder []int `json:"evidence_order,omitempty" yaml:"evidence_order,omitempty"`
}

// Record captures the network with dense indices in creation order.
func (n *Network) Record() Record {
	nodes := n.Nodes()
	index := make(map[NodeID]int, len(nodes))
	rec := Record{Nodes: make([]NodeRecord, 0, len(nodes))}
	for i, node := range nodes {
		index[node.ID] = i
		rec.Nodes = append(rec.Nodes, NodeRecord{
			Label:     node.Label,
			Kind:      node.Kind,
			Position:  slices.Clone(node.Position),
			Evidence:  n.EvidenceOf(node.ID),
			Prior:     node.Prior,
			Auxiliary: node.Auxiliary,
		})
	}
	for _, e := range n.Edges() {
		rec.Edges = append(rec.Edges, EdgeRecord{
			Parent: index[e.Parent],
			Child:  index[e.Child],
			Weight: e.Weight,
		})
	}
	for _, ev := range n.evidence {
		rec.EvidenceOrder = append(rec.EvidenceOrder, index[ev.Node])
	}
	return rec
}

// FromRecord rebuilds a network. Node i of the record becomes NodeID i and
// edge j becomes EdgeID j.
func FromRecord(rec Record) (*Network, error) {
	n := New()
	for i, nr := range rec.Nodes {
		id, err := n.CreateNode(nr.Kind)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		if err := n.SetPrior(id, nr.Prior); err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		n.nodes[id].Label = nr.Label
		n.nodes[id].Position = slices.Clone(nr.Position)
	}
	for j, er := range rec.Edges {
		if er.Parent < 0 || er.Parent >= len(rec.Nodes) || er.Child < 0 || er.Child >= len(rec.Nodes) {
			return nil, fmt.Errorf("edge %d: endpoint out of range: %w", j, internalerr.ErrInvalidInput)
		}
		id, err := n.AddEdge(NodeID(er.Parent), NodeID(er.Child))
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", j, err)
		}
		if err := n.SetWeight(id, er.Weight); err != nil {
			return nil, fmt.Errorf("edge %d: %w", j, err)
		}
	}
	for i, nr := range rec.Nodes {
		if nr.Auxiliary {
			if err := n.SetAuxiliary(NodeID(i), true); err != nil {
				return nil, err
			}
		}
	}

	order := make([]int, 0, len(rec.Nodes))
	seen := make(map[int]bool)
	for _, i := range rec.EvidenceOrder {
		if i < 0 || i >= len(rec.Nodes) {
			return nil, fmt.Errorf("evidence order: index %d out of range: %w", i, internalerr.ErrInvalidInput)
		}
		if rec.Nodes[i].Evidence != TruthNone && !seen[i] {
			order = append(order, i)
			seen[i] = true
		}
	}
	for i, nr := range rec.Nodes {
		if nr.Evidence != TruthNone && !seen[i] {
			order = append(order, i)
		}
	}
	for _, i := range order {
		if err := n.SetEvidence(NodeID(i), rec.Nodes[i].Evidence); err != nil {
			return nil, fmt.Errorf("node %d evidence: %w", i, err)
		}
	}
	return n, nil
}
