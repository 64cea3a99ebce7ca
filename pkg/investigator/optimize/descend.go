// Package optimize implements the projected gradient descent used by
// investigation to fit priors and weights to asserted evidence.
package optimize

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/cognicore/investigator/pkg/investigator/internalerr"
)

// Default tunables.
const (
	DefaultStep              = 0.25
	DefaultPerturbation      = 0.1
	DefaultGradientTolerance = 1e-5
	DefaultChangeTolerance   = 1e-6
	DefaultMaxIterations     = 100000
)

// cancelCheckEvery is how many iterations run between context checks.
const cancelCheckEvery = 1000

// GradientFunc writes ∇f(x) into g. len(g) == len(x).
type GradientFunc func(x, g []float64)

// Options configures Descend. Zero fields take the defaults above.
type Options struct {
	Step              float64
	Perturbation      float64 // width of the uniform kick on the first step
	GradientTolerance float64 // stop once ‖g‖² falls to this
	ChangeTolerance   float64 // stop once ΣΔx² falls below this
	MaxIterations     int

	// Clamp projects every coordinate onto [Lower, Upper] after each step.
	Clamp        bool
	Lower, Upper float64

	// Rand drives the first-step perturbation. Nil uses a fixed seed.
	Rand *rand.Rand
}

func (o Options) withDefaults() Options {
	if o.Step == 0 {
		o.Step = DefaultStep
	}
	if o.Perturbation == 0 {
		o.Perturbation = DefaultPerturbation
	}
	if o.GradientTolerance == 0 {
		o.GradientTolerance = DefaultGradientTolerance
	}
	if o.ChangeTolerance == 0 {
		o.ChangeTolerance = DefaultChangeTolerance
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(1, 2))
	}
	return o
}

// StopReason tells why Descend returned.
type StopReason uint8

const (
	StopGradient StopReason = iota
	StopChange
	StopIterations
)

func (r StopReason) String() string {
	switch r {
	case StopGradient:
		return "gradient"
	case StopChange:
		return "change"
	}
	return "iterations"
}

// Outcome summarises a descent.
type Outcome struct {
	Iterations int
	// GradientNorm is the squared norm of the last unperturbed gradient.
	GradientNorm float64
	Reason       StopReason
}

// Descend minimises a function from its gradient, updating x in place.
//
// The first step adds a uniform perturbation in ±Perturbation/2 to every
// gradient component so that flat starts still move. Iteration stops when
// ‖g‖² ≤ GradientTolerance after at least one unperturbed step, when the
// squared step length drops below ChangeTolerance, or after MaxIterations.
// A finished context aborts with ErrCancelled; x then holds the last
// iterate.
func Descend(ctx context.Context, x []float64, grad GradientFunc, opts Options) (Outcome, error) {
	opts = opts.withDefaults()
	g := make([]float64, len(x))
	var out Outcome
	if len(x) == 0 {
		return out, nil
	}

	for iter := 0; ; iter++ {
		if iter%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return out, fmt.Errorf("descent after %d iterations: %w: %w", iter, internalerr.ErrCancelled, err)
			}
		}

		grad(x, g)
		norm := 0.0
		for _, v := range g {
			norm += v * v
		}
		out.GradientNorm = norm
		if iter == 0 {
			for i := range g {
				g[i] += opts.Perturbation * (opts.Rand.Float64() - 0.5)
			}
		}

		change := 0.0
		for i := range x {
			prev := x[i]
			x[i] -= opts.Step * g[i]
			if opts.Clamp {
				x[i] = math.Min(math.Max(x[i], opts.Lower), opts.Upper)
			}
			d := x[i] - prev
			change += d * d
		}
		out.Iterations = iter + 1

		switch {
		case change < opts.ChangeTolerance:
			out.Reason = StopChange
			return out, nil
		case out.Iterations >= opts.MaxIterations:
			out.Reason = StopIterations
			return out, nil
		case iter >= 1 && norm <= opts.GradientTolerance:
			out.Reason = StopGradient
			return out, nil
		}
	}
}
