// Package exact is the symbolic inference engine. Equations are kept as
// multilinear polynomials over Eve probabilities and edge weights, so
// forward passes and Bayesian conditioning are exact for any DAG,
// including ones with shared ancestors.
package exact

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cognicore/investigator/pkg/investigator/inference"
	"github.com/cognicore/investigator/pkg/investigator/internalerr"
	"github.com/cognicore/investigator/pkg/investigator/network"
	"github.com/cognicore/investigator/pkg/investigator/symbolic"
)

var _ inference.Engine = (*Engine)(nil)

// Engine runs passes over one network. It is not safe for concurrent use.
type Engine struct {
	net    *network.Network
	params inference.Params
	logger *zap.Logger
	rng    *rand.Rand

	mode     inference.Mode
	asserted map[network.NodeID]bool // user evidence of the current run
	forced   network.NodeSet

	ancestryRev   uint64
	ancestryValid bool

	report *inference.Report
}

// New creates an engine over net. A nil logger discards logs and a nil rng
// uses a fixed seed.
func New(net *network.Network, params inference.Params, logger *zap.Logger, rng *rand.Rand) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 2))
	}
	return &Engine{
		net:    net,
		params: params,
		logger: logger,
		rng:    rng,
		forced: network.NodeSet{},
	}
}

// Run performs one update in the requested mode. Without evidence both
// modes compute the plain forward probabilities. Any error leaves the
// network's numeric state as it was.
func (e *Engine) Run(ctx context.Context, opts inference.Options) (report inference.Report, err error) {
	ctx, span := tracer.Start(ctx, "exact.Engine.Run", trace.WithAttributes(
		attribute.String("mode", opts.Mode.String()),
		attribute.Int("nodes", len(e.net.Nodes())),
		attribute.Int("evidence", len(e.net.Evidence())),
	))
	defer span.End()
	start := time.Now()

	report = inference.Report{Mode: opts.Mode, Evidence: len(e.net.Evidence())}
	if cycles := e.net.DetectCycles(); cycles > 0 {
		err = fmt.Errorf("%d back edges: %w", cycles, internalerr.ErrCycleDetected)
		span.RecordError(err)
		span.SetStatus(codes.Error, "cycle detected")
		return report, err
	}

	snap := takeSnapshot(e.net)
	e.begin(opts.Mode, &report)
	defer func() { e.report = nil }()

	switch {
	case len(e.asserted) == 0:
		e.fullPass()
	case opts.Mode == inference.ModeInvestigation:
		err = e.investigate(ctx, opts)
	default:
		err = e.bayes(ctx)
	}

	recordRun(ctx, opts.Mode.String(), time.Since(start), err == nil, len(report.Contradictions), len(report.Faults))
	span.SetAttributes(attribute.Int("passes", report.Passes), attribute.Int("faults", len(report.Faults)))
	if err != nil {
		snap.restore(e.net)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("inference run failed, state restored",
			zap.String("mode", opts.Mode.String()),
			zap.Error(err),
		)
		return report, err
	}
	e.logger.Debug("inference run complete",
		zap.String("mode", opts.Mode.String()),
		zap.Int("passes", report.Passes),
		zap.Int("evidence", report.Evidence),
		zap.Int("contradictions", len(report.Contradictions)),
		zap.Int("faults", len(report.Faults)),
	)
	return report, nil
}

func (e *Engine) begin(mode inference.Mode, report *inference.Report) {
	e.mode = mode
	e.report = report
	e.asserted = make(map[network.NodeID]bool)
	for _, ev := range e.net.Evidence() {
		e.asserted[ev.Node] = ev.Value
	}
	e.forced = network.NodeSet{}
	for _, n := range e.net.Nodes() {
		n.Forced = network.TruthNone
		n.Contradiction = false
		n.HasTheoretical = false
		n.Theoretical = 0
	}
}

func (e *Engine) force(n *network.Node, t network.Truth) {
	n.Forced = t
	if t == network.TruthNone {
		e.forced.Remove(n.ID)
		return
	}
	e.forced.Add(n.ID)
}

// forceValue asserts v on n.
func (e *Engine) forceValue(n *network.Node, v bool) { e.force(n, network.TruthOf(v)) }

func (e *Engine) unforceAll() {
	for _, n := range e.net.Nodes() {
		n.Forced = network.TruthNone
	}
	e.forced = network.NodeSet{}
}

// forceEvidence applies every user assertion.
func (e *Engine) forceEvidence() {
	for id, v := range e.asserted {
		if n, err := e.net.Node(id); err == nil {
			e.forceValue(n, v)
		}
	}
}

// env resolves probability symbols to node probabilities and weight symbols
// to edge weights. Entries in override win.
func (e *Engine) env(override map[symbolic.Symbol]float64) symbolic.Env {
	return func(s symbolic.Symbol) float64 {
		if v, ok := override[s]; ok {
			return v
		}
		if s.Kind == symbolic.KindWeight {
			edge, err := e.net.Edge(network.EdgeID(s.Index))
			if err != nil {
				return math.NaN()
			}
			return edge.Weight
		}
		node, err := e.net.Node(network.NodeID(s.Index))
		if err != nil {
			return math.NaN()
		}
		return node.Probability
	}
}

// evaluate computes p for node id, recording a fault on a non-finite result.
func (e *Engine) evaluate(id network.NodeID, p symbolic.Poly) float64 {
	if c, ok := p.Constant(); ok {
		return c
	}
	v := p.Eval(e.env(nil))
	if !finite(v) {
		e.fault(id, fmt.Errorf("value %v: %w", v, internalerr.ErrNumericDegeneracy))
	}
	return v
}

func (e *Engine) fault(id network.NodeID, err error) {
	e.logger.Warn("evaluation fault", zap.Int("node", int(id)), zap.Error(err))
	if e.report != nil {
		e.report.Faults = append(e.report.Faults, inference.Fault{Node: id, Err: err})
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func checkContext(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w: %w", stage, internalerr.ErrCancelled, err)
	}
	return nil
}
