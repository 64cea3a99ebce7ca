// Package network holds the typed DAG the inference engine works on.
//
// Nodes and edges live in arenas indexed by NodeID and EdgeID. The index
// doubles as the symbol index, so node i is p<i> and edge i is w<i> in every
// equation. Deleted slots are tombstoned and never reused, which keeps
// symbols unique for the lifetime of a Network.
//
// # Thread Safety
//
// Network is NOT safe for concurrent use. The investigator package wraps it
// in a mutex; callers using it directly must serialise access themselves.
package network

import (
	"fmt"
	"math"
	"slices"

	"github.com/cognicore/investigator/pkg/investigator/internalerr"
	"github.com/cognicore/investigator/pkg/investigator/symbolic"
)

// DefaultPrior is the prior given to new nodes.
const DefaultPrior = 0.5

// DefaultWeight is the weight given to new edges.
const DefaultWeight = 1.0

// Unset marks a probability not yet computed in the current pass.
const Unset = -1.0

// NodeID indexes a node in its Network.
type NodeID int

// EdgeID indexes an edge in its Network.
type EdgeID int

// Node is a boolean random variable.
type Node struct {
	ID        NodeID
	Label     string
	Kind      Kind
	Prior     float64 // used only while the node has no parents
	Auxiliary bool
	Position  []byte // opaque to the engine, persisted as is

	Parents  []EdgeID // ordered by insertion
	Children []EdgeID

	// Probability is the value of the latest pass, Unset while a pass
	// is computing it.
	Probability float64
	// Forced is the working evidence state of the current pass.
	Forced Truth

	Local      symbolic.Poly // in terms of immediate parents
	Working    symbolic.Poly // equation evaluated in the current pass
	Full       symbolic.Poly // in terms of Eves, no evidence applied
	Condensed  symbolic.Poly // forced ancestors replaced by constants
	Evidential symbolic.Poly // asserted ancestors replaced by constants

	Ancestors         NodeSet
	Weights           EdgeSet // every edge of the ancestral subgraph
	Eves              NodeSet // ancestors without parents
	EvidenceAncestors NodeSet

	Contradiction  bool
	Theoretical    float64
	HasTheoretical bool
}

// Symbol returns the probability symbol of the node.
func (n *Node) Symbol() symbolic.Symbol { return symbolic.P(int(n.ID)) }

// IsEve reports whether the node has no parents.
func (n *Node) IsEve() bool { return len(n.Parents) == 0 }

// Edge is a weighted parent→child link.
type Edge struct {
	ID      EdgeID
	Parent  NodeID
	Child   NodeID
	Weight  float64
	Restore float64 // weight before the latest investigation
	Trial   float64 // weight the latest investigation arrived at

	Highlight Highlight
}

// Symbol returns the weight symbol of the edge.
func (e *Edge) Symbol() symbolic.Symbol { return symbolic.W(int(e.ID)) }

// EvidenceEntry is one user assertion.
type EvidenceEntry struct {
	Node  NodeID
	Value bool
}

// Network is an arena of nodes and edges plus the ordered evidence list.
type Network struct {
	nodes        []*Node
	edges        []*Edge
	evidence     []EvidenceEntry
	defaultPrior float64
	revision     uint64
}

// New returns an empty network.
func New() *Network {
	return &Network{defaultPrior: DefaultPrior}
}

// SetDefaultPrior changes the prior given to new nodes and used by
// ResetPriors.
func (n *Network) SetDefaultPrior(p float64) error {
	if err := checkProbability(p); err != nil {
		return err
	}
	n.defaultPrior = p
	return nil
}

// DefaultPrior returns the prior given to new nodes.
func (n *Network) DefaultPrior() float64 { return n.defaultPrior }

// Revision increases on every structural change (nodes, edges, kinds,
// auxiliary flags).
func (n *Network) Revision() uint64 { return n.revision }

// CreateNode adds a node of the given kind.
func (n *Network) CreateNode(kind Kind) (NodeID, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("create node: %s: %w", kind, internalerr.ErrInvalidInput)
	}
	id := NodeID(len(n.nodes))
	n.nodes = append(n.nodes, &Node{
		ID:          id,
		Kind:        kind,
		Prior:       n.defaultPrior,
		Probability: n.defaultPrior,
	})
	n.revision++
	return id, nil
}

// DeleteNode removes a node, every incident edge and its evidence.
func (n *Network) DeleteNode(id NodeID) error {
	node, err := n.Node(id)
	if err != nil {
		return err
	}
	for _, eid := range slices.Concat(node.Parents, node.Children) {
		n.removeEdge(eid)
	}
	n.dropEvidence(id)
	n.nodes[id] = nil
	n.revision++
	return nil
}

// AddEdge links parent to child with the default weight. Self-loops are
// rejected with ErrInvalidInput, repeated pairs with ErrDuplicate.
func (n *Network) AddEdge(parent, child NodeID) (EdgeID, error) {
	p, err := n.Node(parent)
	if err != nil {
		return 0, fmt.Errorf("add edge: parent: %w", err)
	}
	c, err := n.Node(child)
	if err != nil {
		return 0, fmt.Errorf("add edge: child: %w", err)
	}
	if parent == child {
		return 0, fmt.Errorf("add edge %d->%d: self-loop: %w", parent, child, internalerr.ErrInvalidInput)
	}
	if _, ok := n.EdgeBetween(parent, child); ok {
		return 0, fmt.Errorf("add edge %d->%d: %w", parent, child, internalerr.ErrDuplicate)
	}
	id := EdgeID(len(n.edges))
	e := &Edge{ID: id, Parent: parent, Child: child, Weight: DefaultWeight}
	e.Restore, e.Trial = e.Weight, e.Weight
	n.edges = append(n.edges, e)
	p.Children = append(p.Children, id)
	c.Parents = append(c.Parents, id)
	n.revision++
	return id, nil
}

// RemoveEdge deletes the edge between parent and child.
func (n *Network) RemoveEdge(parent, child NodeID) error {
	e, ok := n.EdgeBetween(parent, child)
	if !ok {
		return fmt.Errorf("remove edge %d->%d: %w", parent, child, internalerr.ErrNotFound)
	}
	n.removeEdge(e.ID)
	n.revision++
	return nil
}

func (n *Network) removeEdge(id EdgeID) {
	e := n.edges[id]
	if e == nil {
		return
	}
	if p := n.nodes[e.Parent]; p != nil {
		p.Children = slices.DeleteFunc(p.Children, func(x EdgeID) bool { return x == id })
	}
	if c := n.nodes[e.Child]; c != nil {
		c.Parents = slices.DeleteFunc(c.Parents, func(x EdgeID) bool { return x == id })
	}
	n.edges[id] = nil
}

// SetKind changes the combination rule of a node.
func (n *Network) SetKind(id NodeID, kind Kind) error {
	node, err := n.Node(id)
	if err != nil {
		return err
	}
	if !kind.Valid() {
		return fmt.Errorf("set kind: %s: %w", kind, internalerr.ErrInvalidInput)
	}
	node.Kind = kind
	n.revision++
	return nil
}

// SetWeight changes an edge weight. Weights must be finite and
// non-negative; edges into auxiliary nodes are pinned to 1.
func (n *Network) SetWeight(id EdgeID, w float64) error {
	e, err := n.Edge(id)
	if err != nil {
		return err
	}
	if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
		return fmt.Errorf("set weight %d to %v: %w", id, w, internalerr.ErrInvalidWeight)
	}
	if n.nodes[e.Child].Auxiliary && w != 1 {
		return fmt.Errorf("set weight %d: edge into auxiliary node is pinned to 1: %w", id, internalerr.ErrInvalidInput)
	}
	e.Weight = w
	e.Restore, e.Trial = w, w
	return nil
}

// SetPrior changes the prior of a node. It only takes effect while the
// node has no parents.
func (n *Network) SetPrior(id NodeID, p float64) error {
	node, err := n.Node(id)
	if err != nil {
		return err
	}
	if err := checkProbability(p); err != nil {
		return fmt.Errorf("set prior of node %d: %w", id, err)
	}
	node.Prior = p
	return nil
}

// SetAuxiliary marks a node as auxiliary. Its incoming edges are pinned to
// weight 1 and contribute no weight symbol to its equation.
func (n *Network) SetAuxiliary(id NodeID, aux bool) error {
	node, err := n.Node(id)
	if err != nil {
		return err
	}
	node.Auxiliary = aux
	if aux {
		for _, eid := range node.Parents {
			e := n.edges[eid]
			e.Weight, e.Restore, e.Trial = 1, 1, 1
		}
	}
	n.revision++
	return nil
}

// SetLabel changes the display label of a node.
func (n *Network) SetLabel(id NodeID, label string) error {
	node, err := n.Node(id)
	if err != nil {
		return err
	}
	node.Label = label
	return nil
}

// SetPosition stores an opaque layout blob for a node.
func (n *Network) SetPosition(id NodeID, pos []byte) error {
	node, err := n.Node(id)
	if err != nil {
		return err
	}
	node.Position = slices.Clone(pos)
	return nil
}

// Node returns the live node with the given ID.
func (n *Network) Node(id NodeID) (*Node, error) {
	if id < 0 || int(id) >= len(n.nodes) || n.nodes[id] == nil {
		return nil, fmt.Errorf("node %d: %w", id, internalerr.ErrNotFound)
	}
	return n.nodes[id], nil
}

// Edge returns the live edge with the given ID.
func (n *Network) Edge(id EdgeID) (*Edge, error) {
	if id < 0 || int(id) >= len(n.edges) || n.edges[id] == nil {
		return nil, fmt.Errorf("edge %d: %w", id, internalerr.ErrNotFound)
	}
	return n.edges[id], nil
}

// EdgeBetween finds the edge from parent to child.
func (n *Network) EdgeBetween(parent, child NodeID) (*Edge, bool) {
	c, err := n.Node(child)
	if err != nil {
		return nil, false
	}
	for _, eid := range c.Parents {
		if e := n.edges[eid]; e.Parent == parent {
			return e, true
		}
	}
	return nil, false
}

// Nodes returns the live nodes in creation order.
func (n *Network) Nodes() []*Node {
	out := make([]*Node, 0, len(n.nodes))
	for _, node := range n.nodes {
		if node != nil {
			out = append(out, node)
		}
	}
	return out
}

// Edges returns the live edges in creation order.
func (n *Network) Edges() []*Edge {
	out := make([]*Edge, 0, len(n.edges))
	for _, e := range n.edges {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// ParentNodes returns the parents of a node in edge order.
func (n *Network) ParentNodes(node *Node) []*Node {
	out := make([]*Node, len(node.Parents))
	for i, eid := range node.Parents {
		out[i] = n.nodes[n.edges[eid].Parent]
	}
	return out
}

// SetEvidence asserts a value for a node, or clears it with TruthNone.
// Re-asserting a node moves it to the end of the evidence list.
func (n *Network) SetEvidence(id NodeID, t Truth) error {
	if _, err := n.Node(id); err != nil {
		return err
	}
	value, ok := t.Bool()
	if !ok && t != TruthNone {
		return fmt.Errorf("set evidence: %v: %w", t, internalerr.ErrInvalidInput)
	}
	n.dropEvidence(id)
	if !ok {
		return nil
	}
	n.evidence = append(n.evidence, EvidenceEntry{Node: id, Value: value})
	return nil
}

func (n *Network) dropEvidence(id NodeID) {
	n.evidence = slices.DeleteFunc(n.evidence, func(e EvidenceEntry) bool { return e.Node == id })
}

// Evidence returns a copy of the evidence list in assertion order.
func (n *Network) Evidence() []EvidenceEntry { return slices.Clone(n.evidence) }

// HasEvidence reports whether anything is asserted.
func (n *Network) HasEvidence() bool { return len(n.evidence) > 0 }

// EvidenceOf returns the assertion for a node.
func (n *Network) EvidenceOf(id NodeID) Truth {
	for _, e := range n.evidence {
		if e.Node == id {
			return TruthOf(e.Value)
		}
	}
	return TruthNone
}

// ClearEvidence drops every assertion and working evidence flag.
func (n *Network) ClearEvidence() {
	n.evidence = nil
	for _, node := range n.Nodes() {
		node.Forced = TruthNone
	}
}

// ResetPriors restores the default prior on every node.
func (n *Network) ResetPriors() {
	for _, node := range n.Nodes() {
		node.Prior = n.defaultPrior
	}
}

// ClearHighlights resets every edge classification.
func (n *Network) ClearHighlights() {
	for _, e := range n.Edges() {
		e.Highlight = HighlightNone
	}
}

func checkProbability(p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return fmt.Errorf("%v: %w", p, internalerr.ErrInvalidProbability)
	}
	return nil
}
