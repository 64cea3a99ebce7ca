package exact

import (
	"context"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cognicore/investigator/pkg/investigator/inference"
	"github.com/cognicore/investigator/pkg/investigator/network"
	"github.com/cognicore/investigator/pkg/investigator/optimize"
	"github.com/cognicore/investigator/pkg/investigator/symbolic"
)

// investigate fits the model to the evidence and reports where it cannot.
//
// Phase A moves Eve priors to minimise the squared error between each
// evidence node's equation and its asserted value. Evidence whose
// theoretical probability stays below the contradiction thresholds is
// flagged. Phase B then fits edge weights against the flagged evidence (or
// all evidence) and classifies how each weight wanted to move; the
// weights themselves are restored afterwards.
func (e *Engine) investigate(ctx context.Context, opts inference.Options) error {
	ctx, span := tracer.Start(ctx, "exact.investigate", trace.WithAttributes(
		attribute.Bool("all_evidence", opts.UseAllEvidence),
		attribute.Bool("constrained", opts.Constrained),
	))
	defer span.End()

	e.net.ClearHighlights()
	e.unforceAll()
	e.fullPass()
	e.net.RefreshEvidenceAncestors()

	order := e.net.ShallowFirst()
	var evidence []*network.Node
	for _, n := range order {
		if _, ok := e.asserted[n.ID]; ok {
			evidence = append(evidence, n)
		}
	}
	asserted := e.net.EvidenceSet()

	// Shallow evidence: no asserted ancestors, or ancestry reaching Eves
	// not yet covered.
	var shallow []*network.Node
	inShallow := network.NodeSet{}
	covered := network.NodeSet{}
	for _, n := range evidence {
		added := false
		if len(n.EvidenceAncestors) == 0 {
			shallow = append(shallow, n)
			inShallow.Add(n.ID)
			added = true
		}
		newEves := false
		for id := range n.Eves {
			if !covered.Has(id) {
				newEves = true
				covered.Add(id)
			}
		}
		if newEves && !added {
			shallow = append(shallow, n)
			inShallow.Add(n.ID)
		}
	}

	fitted, targets := shallow, inShallow
	if opts.UseAllEvidence {
		fitted, targets = evidence, asserted
	}
	eves := network.NodeSet{}
	for _, n := range fitted {
		for id := range n.Eves {
			if !targets.Has(id) {
				eves.Add(id)
			}
		}
	}

	// Phase A: priors.
	if err := checkContext(ctx, "fitting priors"); err != nil {
		return err
	}
	if len(eves) > 0 {
		vars := make([]symbolic.Symbol, 0, len(eves))
		x := make([]float64, 0, len(eves))
		nodes := make([]*network.Node, 0, len(eves))
		for _, id := range eves.Sorted() {
			n, _ := e.net.Node(id)
			nodes = append(nodes, n)
			vars = append(vars, n.Symbol())
			x = append(x, n.Prior)
		}
		out, err := e.fit(ctx, fitted, opts.UseAllEvidence, vars, x, true)
		if err != nil {
			return err
		}
		e.report.PriorIterations = out.Iterations
		recordDescent(ctx, "priors", out.Iterations)
		for i, n := range nodes {
			n.Prior = x[i]
		}
	}
	e.fullPass()

	// Contradiction detection.
	if err := checkContext(ctx, "detecting contradictions"); err != nil {
		return err
	}
	for _, n := range evidence {
		if len(n.EvidenceAncestors) == 0 {
			e.judge(n, n.Probability, e.params.ShallowThreshold)
		}
		e.forceValue(n, e.asserted[n.ID])
	}
	active := network.NewNodeSet(asserted.Sorted()...)
	for _, n := range evidence {
		if len(n.EvidenceAncestors) == 0 {
			continue
		}
		e.force(n, network.TruthNone)
		active.Remove(n.ID)
		e.fastPass(active, network.NewNodeSet(n.ID))
		active.Add(n.ID)
		e.judge(n, n.Probability, e.params.DeepThreshold)
		e.forceValue(n, e.asserted[n.ID])
	}
	e.fullPass()

	var contradicted []*network.Node
	for _, n := range evidence {
		if n.Contradiction {
			contradicted = append(contradicted, n)
			e.report.Contradictions = append(e.report.Contradictions, n.ID)
		}
	}
	span.SetAttributes(attribute.Int("contradictions", len(contradicted)))
	if len(contradicted) > 0 {
		e.logger.Warn("contradictory evidence found",
			zap.Int("count", len(contradicted)),
			zap.Int("first", int(contradicted[0].ID)),
		)
	}

	// Phase B: weights.
	if len(contradicted) == 0 && !opts.UseAllEvidence {
		return nil
	}
	if err := checkContext(ctx, "fitting weights"); err != nil {
		return err
	}
	fitted = contradicted
	if opts.UseAllEvidence {
		fitted = evidence
	}
	edgeSet := network.EdgeSet{}
	for _, n := range fitted {
		for id := range n.Weights {
			edge, err := e.net.Edge(id)
			if err != nil {
				continue
			}
			if child, err := e.net.Node(edge.Child); err == nil && !child.Auxiliary {
				edgeSet.Add(id)
			}
		}
	}
	if len(edgeSet) == 0 {
		return nil
	}
	edges := make([]*network.Edge, 0, len(edgeSet))
	vars := make([]symbolic.Symbol, 0, len(edgeSet))
	x := make([]float64, 0, len(edgeSet))
	for _, id := range edgeSet.Sorted() {
		edge, _ := e.net.Edge(id)
		edge.Restore = edge.Weight
		edges = append(edges, edge)
		vars = append(vars, edge.Symbol())
		x = append(x, edge.Weight)
	}
	out, err := e.fit(ctx, fitted, opts.UseAllEvidence, vars, x, opts.Constrained)
	if err != nil {
		return err
	}
	e.report.WeightIterations = out.Iterations
	recordDescent(ctx, "weights", out.Iterations)
	for i, edge := range edges {
		edge.Trial = x[i]
	}
	e.classify(fitted, edges, opts.Constrained)
	return nil
}

// judge records the theoretical probability of an evidence node and flags
// it when the asserted outcome is less likely than threshold.
func (e *Engine) judge(n *network.Node, theoretical, threshold float64) {
	n.Theoretical = theoretical
	n.HasTheoretical = true
	likelihood := theoretical
	if !e.asserted[n.ID] {
		likelihood = 1 - theoretical
	}
	if likelihood < threshold {
		n.Contradiction = true
	}
}

// fit runs gradient descent on Σ (eq − target)² over the evidence nodes,
// moving the given symbols. x holds their starting values and receives the
// result. Asserted Eves are held at their asserted values.
func (e *Engine) fit(ctx context.Context, evidence []*network.Node, all bool, vars []symbolic.Symbol, x []float64, clamp bool) (optimize.Outcome, error) {
	residuals := make([]symbolic.Expr, 0, len(evidence))
	for _, n := range evidence {
		eq := n.Evidential
		if all {
			eq = n.Full
		}
		target := network.TruthOf(e.asserted[n.ID]).Value()
		residuals = append(residuals, symbolic.PowOf(symbolic.AddOf(eq.Expr(), symbolic.Num(-target)), 2))
	}
	loss := symbolic.AddOf(residuals...)
	grads := make([]symbolic.Expr, len(vars))
	for i, v := range vars {
		grads[i] = loss.Diff(v)
	}

	override := make(map[symbolic.Symbol]float64, len(vars)+len(e.asserted))
	for id, v := range e.asserted {
		if n, err := e.net.Node(id); err == nil && n.IsEve() {
			override[n.Symbol()] = network.TruthOf(v).Value()
		}
	}
	env := e.env(override)
	gradient := func(cur, g []float64) {
		for i, v := range vars {
			override[v] = cur[i]
		}
		for i := range grads {
			g[i] = grads[i].Eval(env)
			if math.IsNaN(g[i]) {
				g[i] = 0
			}
		}
	}
	return optimize.Descend(ctx, x, gradient, optimize.Options{
		Step:              e.params.GradientStep,
		Perturbation:      e.params.Perturbation,
		GradientTolerance: e.params.GradientTolerance,
		ChangeTolerance:   e.params.ChangeTolerance,
		MaxIterations:     e.params.MaxIterations,
		Clamp:             clamp,
		Lower:             0,
		Upper:             1,
		Rand:              e.rng,
	})
}
