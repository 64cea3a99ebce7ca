package exact

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/cognicore/investigator/pkg/investigator/internalerr"
	"github.com/cognicore/investigator/pkg/investigator/network"
	"github.com/cognicore/investigator/pkg/investigator/symbolic"
)

// bayes conditions every node on the asserted evidence.
//
// P(evidence) is built as a chain of factors P(e_k | e_1..e_(k−1)): each
// evidence node contributes its condensed equation (or its complement)
// computed with the earlier evidence forced, and is then forced itself.
// Because polynomials are multiplied with x·x = x, the product is the exact
// joint probability. Each non-evidence node x is handled the same way with
// x treated as asserted true, giving P(x, evidence); the posterior is the
// ratio. Prefix products of the evidence chain are memoised and reused.
func (e *Engine) bayes(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "exact.bayes")
	defer span.End()

	e.unforceAll()
	e.fullPass()
	e.net.RefreshEvidenceAncestors()

	order := e.net.ShallowFirst()
	var evidence, deep []*network.Node
	for _, n := range order {
		if _, ok := e.asserted[n.ID]; ok {
			evidence = append(evidence, n)
		}
	}

	memo := make(map[string]symbolic.Poly)
	var prefix []network.NodeID
	joint := symbolic.One()
	active := network.NodeSet{}
	pending := network.NodeSet{}
	for _, n := range evidence {
		pending.Add(n.ID)
	}

	// Evidence without asserted ancestors does not depend on other
	// evidence, so all of it can be folded in before a single pass.
	for _, n := range evidence {
		if len(n.EvidenceAncestors) > 0 {
			deep = append(deep, n)
			continue
		}
		v := e.asserted[n.ID]
		joint = joint.Mul(factor(n, v))
		e.forceValue(n, v)
		pending.Remove(n.ID)
		active.Add(n.ID)
		prefix = append(prefix, n.ID)
		memo[prefixKey(prefix)] = joint
	}
	e.fastPass(active, pending)

	for _, n := range deep {
		if err := checkContext(ctx, "conditioning on evidence"); err != nil {
			return err
		}
		v := e.asserted[n.ID]
		joint = joint.Mul(factor(n, v))
		e.forceValue(n, v)
		pending.Remove(n.ID)
		active = network.NewNodeSet(n.ID)
		prefix = append(prefix, n.ID)
		memo[prefixKey(prefix)] = joint
		e.fastPass(active, pending)
	}

	pe := joint.Eval(e.env(e.priorBindings(nil)))
	e.report.EvidenceProbability = pe
	span.SetAttributes(attribute.Float64("p_evidence", pe))
	switch {
	case !finite(pe):
		return fmt.Errorf("P(evidence) = %v: %w", pe, internalerr.ErrNumericDegeneracy)
	case pe <= 0:
		e.logger.Warn("evidence is contradictory", zap.Float64("p_evidence", pe), zap.Int("evidence", len(evidence)))
		return fmt.Errorf("P(evidence) = %v: %w", pe, internalerr.ErrContradictoryEvidence)
	}

	posteriors := make(map[network.NodeID]float64)
	for _, x := range order {
		if _, ok := e.asserted[x.ID]; ok {
			continue
		}
		if err := checkContext(ctx, "computing posteriors"); err != nil {
			return err
		}
		num, ok := e.jointWith(x, order, memo)
		if !ok {
			continue
		}
		post := num / pe
		if !finite(post) {
			e.fault(x.ID, fmt.Errorf("posterior %v: %w", post, internalerr.ErrNumericDegeneracy))
			continue
		}
		posteriors[x.ID] = post
	}

	e.unforceAll()
	e.forceEvidence()
	e.fullPass()
	for id, post := range posteriors {
		n, err := e.net.Node(id)
		if err != nil {
			continue
		}
		n.Probability = post
		if n.IsEve() && e.params.PersistPosteriors {
			n.Prior = post
		}
	}
	return nil
}

// jointWith returns P(x = true, evidence).
func (e *Engine) jointWith(x *network.Node, order []*network.Node, memo map[string]symbolic.Poly) (float64, bool) {
	e.unforceAll()
	e.fullPass()

	var combined []*network.Node
	pending := network.NodeSet{}
	for _, n := range order {
		if _, ok := e.asserted[n.ID]; ok || n.ID == x.ID {
			combined = append(combined, n)
			pending.Add(n.ID)
		}
	}

	joint := symbolic.One()
	active := network.NodeSet{}
	useMemo, passed := true, false
	var prefix []network.NodeID
	for _, y := range combined {
		prefix = append(prefix, y.ID)
		v, asserted := e.asserted[y.ID]
		if useMemo && asserted {
			if m, ok := memo[prefixKey(prefix)]; ok {
				joint = m
				e.forceValue(y, v)
				pending.Remove(y.ID)
				active.Add(y.ID)
				continue
			}
		}
		useMemo = false
		if !passed {
			e.fastPass(active, pending)
			passed = true
		}
		if !asserted {
			v = true
		}
		joint = joint.Mul(factor(y, v))
		e.forceValue(y, v)
		pending.Remove(y.ID)
		active = network.NewNodeSet(y.ID)
		e.fastPass(active, pending)
	}

	e.force(x, network.TruthNone)
	if x.IsEve() {
		x.Probability = x.Prior
	}
	num := joint.Eval(e.env(e.priorBindings(x)))
	if !finite(num) {
		e.fault(x.ID, fmt.Errorf("joint %v: %w", num, internalerr.ErrNumericDegeneracy))
		return 0, false
	}
	return num, true
}

// priorBindings maps the symbol of every asserted Eve, and of x when it
// is an Eve, to its prior. An Eve's factor in the chain is its own symbol,
// which would otherwise resolve to the forced 0 or 1.
func (e *Engine) priorBindings(x *network.Node) map[symbolic.Symbol]float64 {
	out := make(map[symbolic.Symbol]float64, len(e.asserted)+1)
	for id := range e.asserted {
		n, err := e.net.Node(id)
		if err != nil || !n.IsEve() {
			continue
		}
		out[n.Symbol()] = n.Prior
	}
	if x != nil && x.IsEve() {
		out[x.Symbol()] = x.Prior
	}
	return out
}

// factor is P(n = v | everything forced so far).
func factor(n *network.Node, v bool) symbolic.Poly {
	if v {
		return n.Condensed
	}
	return symbolic.One().Sub(n.Condensed)
}

func prefixKey(ids []network.NodeID) string {
	var sb strings.Builder
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(id)))
	}
	return sb.String()
}
