package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/cognicore/investigator/pkg/investigator/internalerr"
	"github.com/cognicore/investigator/pkg/investigator/network"
)

// Engine runs inference over a network.
// This interface allows swapping implementations; exact.Engine is the
// symbolic one.
type Engine interface {
	// Run performs one update pass in the requested mode. On error the
	// network's numeric state is left as it was before the call.
	Run(ctx context.Context, opts Options) (Report, error)
}

// Mode selects what a run computes once evidence is present.
type Mode uint8

const (
	// ModeBayesian conditions every node on the evidence.
	ModeBayesian Mode = iota
	// ModeInvestigation fits priors and weights to the evidence and
	// reports contradictions.
	ModeInvestigation
)

func (m Mode) String() string {
	if m == ModeInvestigation {
		return "investigation"
	}
	return "bayesian"
}

// ParseMode accepts "bayesian"/"bayes" and "investigation"/"investigate".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bayes", "bayesian", "":
		return ModeBayesian, nil
	case "investigate", "investigation", "forward":
		return ModeInvestigation, nil
	}
	return 0, fmt.Errorf("unknown mode %q: %w", s, internalerr.ErrInvalidInput)
}

// Options controls a single run.
type Options struct {
	Mode Mode
	// UseAllEvidence fits every asserted node against its full equation
	// instead of only the shallow evidence.
	UseAllEvidence bool
	// Constrained keeps weights inside [0, 1] during weight fitting.
	Constrained bool
}

// Params are the numeric tunables of an engine.
type Params struct {
	GradientStep      float64
	Perturbation      float64
	GradientTolerance float64
	ChangeTolerance   float64
	MaxIterations     int

	// ShallowThreshold flags a contradiction on evidence without asserted
	// ancestors when the asserted outcome is less likely than this.
	ShallowThreshold float64
	// DeepThreshold is the same check for evidence below other evidence.
	DeepThreshold float64
	// NegligibleDelta is the weight displacement below which an edge is
	// not classified as increase or decrease.
	NegligibleDelta float64

	// PersistPosteriors copies each Eve's posterior into its prior after
	// a Bayesian run.
	PersistPosteriors bool
}

// DefaultParams returns the tunables used when nothing is configured.
func DefaultParams() Params {
	return Params{
		GradientStep:      0.25,
		Perturbation:      0.1,
		GradientTolerance: 1e-5,
		ChangeTolerance:   1e-6,
		MaxIterations:     100000,
		ShallowThreshold:  0.1,
		DeepThreshold:     0.05,
		NegligibleDelta:   0.05,
		PersistPosteriors: true,
	}
}

// Fault is a non-fatal problem met during a run.
type Fault struct {
	Node network.NodeID
	Err  error
}

func (f Fault) Error() string { return fmt.Sprintf("node %d: %v", f.Node, f.Err) }

func (f Fault) Unwrap() error { return f.Err }

// Report summarises a run.
type Report struct {
	Mode     Mode
	Evidence int
	Passes   int

	// EvidenceProbability is P(evidence) of a Bayesian run with evidence.
	EvidenceProbability float64

	// Contradictions lists evidence nodes flagged by investigation.
	Contradictions []network.NodeID
	// Highlights holds the classification of every fitted edge.
	Highlights map[network.EdgeID]network.Highlight

	PriorIterations  int
	WeightIterations int

	Faults []Fault
}
