package optimize

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/investigator/pkg/investigator/internalerr"
)

// (p - 0.7)^2
func quadratic(target float64) GradientFunc {
	return func(x, g []float64) {
		for i := range x {
			g[i] = 2 * (x[i] - target)
		}
	}
}

func TestDescendConvergesToMinimum(t *testing.T) {
	x := []float64{0.5}
	out, err := Descend(context.Background(), x, quadratic(0.7), Options{Rand: rand.New(rand.NewPCG(3, 4))})
	require.NoError(t, err)
	assert.InDelta(t, 0.7, x[0], 0.01)
	assert.Less(t, out.Iterations, DefaultMaxIterations)
}

func TestDescendClampsToBox(t *testing.T) {
	x := []float64{0.5, 0.5}
	_, err := Descend(context.Background(), x, quadratic(2), Options{Clamp: true, Lower: 0, Upper: 1})
	require.NoError(t, err)
	assert.Equal(t, 1.0, x[0])
	assert.Equal(t, 1.0, x[1])
}

func TestDescendUnclampedLeavesBox(t *testing.T) {
	x := []float64{0.5}
	_, err := Descend(context.Background(), x, quadratic(2), Options{})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, x[0], 0.01)
}

func TestDescendFlatGradientStopsOnChange(t *testing.T) {
	x := []float64{0.3}
	out, err := Descend(context.Background(), x, func(_, g []float64) { g[0] = 0 }, Options{})
	require.NoError(t, err)
	assert.LessOrEqual(t, out.Iterations, 2)
	assert.InDelta(t, 0.3, x[0], DefaultStep*DefaultPerturbation/2+1e-12)
}

func TestDescendIterationCap(t *testing.T) {
	// Constant slope never converges; only the cap stops it.
	x := []float64{0}
	out, err := Descend(context.Background(), x, func(_, g []float64) { g[0] = 1 }, Options{MaxIterations: 50})
	require.NoError(t, err)
	assert.Equal(t, StopIterations, out.Reason)
	assert.Equal(t, 50, out.Iterations)
	assert.InDelta(t, -50*DefaultStep, x[0], DefaultStep*DefaultPerturbation/2+1e-9, "one step per counted iteration")

	x = []float64{0}
	out, err = Descend(context.Background(), x, func(_, g []float64) { g[0] = 1 }, Options{MaxIterations: 1})
	require.NoError(t, err)
	assert.Equal(t, StopIterations, out.Reason)
	assert.Equal(t, 1, out.Iterations)
}

func TestDescendCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Descend(ctx, []float64{0}, quadratic(1), Options{})
	assert.ErrorIs(t, err, internalerr.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDescendEmpty(t *testing.T) {
	out, err := Descend(context.Background(), nil, quadratic(1), Options{})
	require.NoError(t, err)
	assert.Zero(t, out.Iterations)
}
