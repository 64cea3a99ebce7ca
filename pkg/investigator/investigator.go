// Package investigator is the entry point for building causal networks of
// boolean nodes, asserting evidence and running inference over them.
//
// An Investigator owns one network and the engine that updates it. Every
// method is safe for concurrent use; calls are serialised by a mutex, so a
// long Run blocks mutations until it returns.
package investigator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cognicore/investigator/pkg/investigator/inference"
	"github.com/cognicore/investigator/pkg/investigator/inference/exact"
	"github.com/cognicore/investigator/pkg/investigator/internalerr"
	"github.com/cognicore/investigator/pkg/investigator/network"
	"github.com/cognicore/investigator/pkg/investigator/store"
)

// Re-exported so callers rarely need the subpackages.
type (
	NodeID    = network.NodeID
	EdgeID    = network.EdgeID
	Kind      = network.Kind
	Truth     = network.Truth
	Highlight = network.Highlight
	Mode      = inference.Mode
	Report    = inference.Report
	Record    = network.Record
)

const (
	KindMain                = network.KindMain
	KindInteraction         = network.KindInteraction
	KindExclusion           = network.KindExclusion
	KindInverted            = network.KindInverted
	KindInvertedInteraction = network.KindInvertedInteraction

	TruthNone  = network.TruthNone
	TruthTrue  = network.TruthTrue
	TruthFalse = network.TruthFalse

	HighlightNone       = network.HighlightNone
	HighlightIncrease   = network.HighlightIncrease
	HighlightDecrease   = network.HighlightDecrease
	HighlightImplicated = network.HighlightImplicated

	ModeBayesian      = inference.ModeBayesian
	ModeInvestigation = inference.ModeInvestigation
)

// Investigator is the main facade.
type Investigator struct {
	mu     sync.Mutex
	net    *network.Network
	engine *exact.Engine
	store  store.Store
	params inference.Params
	logger *zap.Logger
	rng    *rand.Rand
}

// Options configures an Investigator.
type Options struct {
	// Params are the engine tunables. Nil means inference.DefaultParams().
	Params *inference.Params
	// DefaultPrior is given to new nodes. Zero means network.DefaultPrior.
	DefaultPrior float64
	// Store enables Save, Load, List and Delete. Optional.
	Store  store.Store
	Logger *zap.Logger
	// Seed drives the descent perturbation. Zero seeds from the clock.
	Seed uint64
}

// RunOptions selects the mode of a Run.
type RunOptions = inference.Options

// New creates an Investigator over an empty network.
func New(opts Options) (*Investigator, error) {
	net := network.New()
	if opts.DefaultPrior != 0 {
		if err := net.SetDefaultPrior(opts.DefaultPrior); err != nil {
			return nil, fmt.Errorf("default prior: %w", err)
		}
	}
	return newWith(net, opts), nil
}

// FromRecord creates an Investigator over a network rebuilt from rec.
func FromRecord(rec network.Record, opts Options) (*Investigator, error) {
	net, err := network.FromRecord(rec)
	if err != nil {
		return nil, err
	}
	if opts.DefaultPrior != 0 {
		if err := net.SetDefaultPrior(opts.DefaultPrior); err != nil {
			return nil, fmt.Errorf("default prior: %w", err)
		}
	}
	return newWith(net, opts), nil
}

// Wrap creates an Investigator over an existing network. The caller must
// not use net directly afterwards.
func Wrap(net *network.Network, opts Options) *Investigator {
	return newWith(net, opts)
}

func newWith(net *network.Network, opts Options) *Investigator {
	params := inference.DefaultParams()
	if opts.Params != nil {
		params = *opts.Params
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	inv := &Investigator{
		store:  opts.Store,
		params: params,
		logger: logger,
		rng:    rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
	inv.attach(net)
	return inv
}

func (inv *Investigator) attach(net *network.Network) {
	inv.net = net
	inv.engine = exact.New(net, inv.params, inv.logger, inv.rng)
}

// Close releases the store, if any.
func (inv *Investigator) Close() error {
	if inv.store == nil {
		return nil
	}
	return inv.store.Close()
}

// CreateNode adds a node of the given kind.
func (inv *Investigator) CreateNode(kind Kind) (NodeID, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.net.CreateNode(kind)
}

// DeleteNode removes a node with its edges and evidence.
func (inv *Investigator) DeleteNode(id NodeID) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.net.DeleteNode(id)
}

// AddEdge links parent to child with weight 1.
func (inv *Investigator) AddEdge(parent, child NodeID) (EdgeID, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.net.AddEdge(parent, child)
}

// RemoveEdge deletes the edge between parent and child.
func (inv *Investigator) RemoveEdge(parent, child NodeID) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.net.RemoveEdge(parent, child)
}

// SetNodeKind changes how a node combines its parents.
func (inv *Investigator) SetNodeKind(id NodeID, kind Kind) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.net.SetKind(id, kind)
}

// SetEdgeWeight sets the strength of an edge.
func (inv *Investigator) SetEdgeWeight(id EdgeID, w float64) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.net.SetWeight(id, w)
}

// SetEvidence asserts a node true or false; TruthNone retracts.
func (inv *Investigator) SetEvidence(id NodeID, t Truth) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.net.SetEvidence(id, t)
}

// SetPrior biases the prior of a node.
func (inv *Investigator) SetPrior(id NodeID, p float64) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.net.SetPrior(id, p)
}

// SetAuxiliary marks a node auxiliary, pinning its incoming weights to 1.
func (inv *Investigator) SetAuxiliary(id NodeID, aux bool) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.net.SetAuxiliary(id, aux)
}

// SetLabel names a node.
func (inv *Investigator) SetLabel(id NodeID, label string) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.net.SetLabel(id, label)
}

// Probability returns the value of the latest run.
func (inv *Investigator) Probability(id NodeID) (float64, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	n, err := inv.net.Node(id)
	if err != nil {
		return 0, err
	}
	return n.Probability, nil
}

// Contradiction reports whether the latest investigation flagged the node.
func (inv *Investigator) Contradiction(id NodeID) (bool, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	n, err := inv.net.Node(id)
	if err != nil {
		return false, err
	}
	return n.Contradiction, nil
}

// Theoretical returns the probability investigation computed for an
// evidence node before forcing it. ok is false when none was computed.
func (inv *Investigator) Theoretical(id NodeID) (p float64, ok bool, err error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	n, err := inv.net.Node(id)
	if err != nil {
		return 0, false, err
	}
	return n.Theoretical, n.HasTheoretical, nil
}

// Prior returns the current prior of a node.
func (inv *Investigator) Prior(id NodeID) (float64, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	n, err := inv.net.Node(id)
	if err != nil {
		return 0, err
	}
	return n.Prior, nil
}

// Weight returns the weight of an edge.
func (inv *Investigator) Weight(id EdgeID) (float64, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	e, err := inv.net.Edge(id)
	if err != nil {
		return 0, err
	}
	return e.Weight, nil
}

// EdgeHighlight returns the classification of the latest investigation.
func (inv *Investigator) EdgeHighlight(id EdgeID) (Highlight, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	e, err := inv.net.Edge(id)
	if err != nil {
		return network.HighlightNone, err
	}
	return e.Highlight, nil
}

// NodeView is a copy of the user-visible state of a node.
type NodeView struct {
	ID             NodeID
	Label          string
	Kind           Kind
	Prior          float64
	Probability    float64
	Evidence       Truth
	Auxiliary      bool
	Contradiction  bool
	Theoretical    float64
	HasTheoretical bool
	Parents        []NodeID
}

// EdgeView is a copy of the user-visible state of an edge.
type EdgeView struct {
	ID        EdgeID
	Parent    NodeID
	Child     NodeID
	Weight    float64
	Trial     float64
	Highlight Highlight
}

// Nodes returns every live node in creation order.
func (inv *Investigator) Nodes() []NodeView {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	nodes := inv.net.Nodes()
	out := make([]NodeView, 0, len(nodes))
	for _, n := range nodes {
		v := NodeView{
			ID:             n.ID,
			Label:          n.Label,
			Kind:           n.Kind,
			Prior:          n.Prior,
			Probability:    n.Probability,
			Evidence:       inv.net.EvidenceOf(n.ID),
			Auxiliary:      n.Auxiliary,
			Contradiction:  n.Contradiction,
			Theoretical:    n.Theoretical,
			HasTheoretical: n.HasTheoretical,
		}
		for _, p := range inv.net.ParentNodes(n) {
			v.Parents = append(v.Parents, p.ID)
		}
		out = append(out, v)
	}
	return out
}

// Edges returns every live edge in creation order.
func (inv *Investigator) Edges() []EdgeView {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	edges := inv.net.Edges()
	out := make([]EdgeView, 0, len(edges))
	for _, e := range edges {
		out = append(out, EdgeView{
			ID:        e.ID,
			Parent:    e.Parent,
			Child:     e.Child,
			Weight:    e.Weight,
			Trial:     e.Trial,
			Highlight: e.Highlight,
		})
	}
	return out
}

// Evidence returns the assertions in the order they were made.
func (inv *Investigator) Evidence() []network.EvidenceEntry {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.net.Evidence()
}

// Run updates every probability in the requested mode. On error the
// numeric state is left as it was.
func (inv *Investigator) Run(ctx context.Context, opts RunOptions) (Report, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.engine.Run(ctx, opts)
}

// DetectCycles returns the number of back edges; zero means the network is
// a DAG.
func (inv *Investigator) DetectCycles() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.net.DetectCycles()
}

// ClearEvidence retracts every assertion.
func (inv *Investigator) ClearEvidence() {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.net.ClearEvidence()
}

// ResetPriors restores the default prior on every node.
func (inv *Investigator) ResetPriors() {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.net.ResetPriors()
}

// ClearHighlights resets every edge classification.
func (inv *Investigator) ClearHighlights() {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.net.ClearHighlights()
}

// Record captures the network for persistence.
func (inv *Investigator) Record() Record {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.net.Record()
}

// Replace swaps in a network rebuilt from rec.
func (inv *Investigator) Replace(rec Record) error {
	net, err := network.FromRecord(rec)
	if err != nil {
		return err
	}
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if err := net.SetDefaultPrior(inv.net.DefaultPrior()); err != nil {
		return err
	}
	inv.attach(net)
	return nil
}

// Save stores the network under name.
func (inv *Investigator) Save(ctx context.Context, name string) (store.Summary, error) {
	if inv.store == nil {
		return store.Summary{}, fmt.Errorf("save: no store configured: %w", internalerr.ErrStoreUnavailable)
	}
	rec := inv.Record()
	sum, err := inv.store.SaveNetwork(ctx, name, rec)
	if err != nil {
		return sum, fmt.Errorf("save %q: %w", name, err)
	}
	inv.logger.Info("network saved",
		zap.String("id", sum.ID),
		zap.String("name", name),
		zap.Int("nodes", sum.Nodes),
	)
	return sum, nil
}

// Load replaces the network with one fetched from the store by ID or name.
func (inv *Investigator) Load(ctx context.Context, ref string) (store.Summary, error) {
	if inv.store == nil {
		return store.Summary{}, fmt.Errorf("load: no store configured: %w", internalerr.ErrStoreUnavailable)
	}
	saved, err := inv.store.LoadNetwork(ctx, ref)
	if err != nil {
		return store.Summary{}, fmt.Errorf("load %q: %w", ref, err)
	}
	if err := inv.Replace(saved.Record); err != nil {
		return store.Summary{}, fmt.Errorf("load %q: %w", ref, err)
	}
	inv.logger.Info("network loaded", zap.String("id", saved.ID), zap.String("name", saved.Name))
	return saved.Summary, nil
}

// List returns the saved networks, most recent first.
func (inv *Investigator) List(ctx context.Context) ([]store.Summary, error) {
	if inv.store == nil {
		return nil, fmt.Errorf("list: no store configured: %w", internalerr.ErrStoreUnavailable)
	}
	return inv.store.ListNetworks(ctx)
}

// Delete removes a saved network by ID or name.
func (inv *Investigator) Delete(ctx context.Context, ref string) error {
	if inv.store == nil {
		return fmt.Errorf("delete: no store configured: %w", internalerr.ErrStoreUnavailable)
	}
	return inv.store.DeleteNetwork(ctx, ref)
}
