package lattice

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/notargets/asph/hupdate"
	"github.com/notargets/asph/kernel"
	"github.com/notargets/asph/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestNewJittered(t *testing.T) {
	c := NewJittered(Options{N: 6, Spacing: 0.5, InitialH: 2, Margin: 2})
	require.Equal(t, 216, c.Len())
	interior := 0
	for i := 0; i < c.Len(); i++ {
		if c.Interior(i) {
			interior++
		}
		assert.Equal(t, tensor.Diagonal(2), c.H[i])
	}
	assert.Equal(t, 8, interior)
	// Without jitter the particles sit on the lattice; z runs fastest
	assert.Equal(t, tensor.Vector{X: 0, Y: 0, Z: 0.5}, c.X[1])
	assert.Equal(t, tensor.Vector{X: 2.5, Y: 2.5, Z: 2.5}, c.X[215])

	j1 := NewJittered(Options{N: 4, Spacing: 1, Jitter: 0.2, Seed: 5, InitialH: 1})
	j2 := NewJittered(Options{N: 4, Spacing: 1, Jitter: 0.2, Seed: 5, InitialH: 1})
	assert.Equal(t, j1.X, j2.X)
	for i, x := range j1.X {
		l := i % 4
		assert.LessOrEqual(t, math.Abs(x.Z-float64(l)), 0.1)
	}

	assert.Panics(t, func() { NewJittered(Options{N: 0, Spacing: 1, InitialH: 1}) })
	assert.Panics(t, func() { NewJittered(Options{N: 2, Spacing: 0, InitialH: 1}) })
	assert.Panics(t, func() { NewCloud(make([]tensor.Vector, 2), make([]tensor.SymTensor2, 1)) })
}

func TestNeighborsMatchBruteForce(t *testing.T) {
	c := NewJittered(Options{N: 7, Spacing: 0.3, Jitter: 0.5, Seed: 1, InitialH: 1})
	for _, radius := range []float64{0.2, 0.35, 0.7, 1.1} {
		t.Run(fmt.Sprintf("radius=%g", radius), func(t *testing.T) {
			for _, i := range []int{0, 17, 171, 342} {
				var want []int
				for j := range c.X {
					if j != i && r3.Norm(r3.Sub(c.X[j], c.X[i])) <= radius {
						want = append(want, j)
					}
				}
				got := c.Neighbors(i, radius)
				sort.Ints(got)
				if want == nil {
					assert.Empty(t, got, "particle %d", i)
					continue
				}
				assert.Equal(t, want, got, "particle %d", i)
			}
		})
	}
}

func TestMomentsOfCenterParticle(t *testing.T) {
	k := kernel.NewBSpline()
	c := NewJittered(Options{N: 9, Spacing: 0.5, InitialH: 1})
	center := 4*81 + 4*9 + 4
	nd := c.Moments(k, center)

	// Lattice points within the support, shells at spacing 0.5 out to r = 2
	var want float64
	for i := -4; i <= 4; i++ {
		for j := -4; j <= 4; j++ {
			for l := -4; l <= 4; l++ {
				if i == 0 && j == 0 && l == 0 {
					continue
				}
				r := 0.5 * math.Sqrt(float64(i*i+j*j+l*l))
				W, _ := k.Profile(r, 1)
				want += W
			}
		}
	}
	assert.InDelta(t, want, nd.ZerothMoment, 1e-12)
	assert.InDelta(t, 0.0, r3.Norm(nd.FirstMoment), 1e-12)
	assert.InDelta(t, nd.SecondMoment.XX, nd.SecondMoment.ZZ, 1e-12)
	assert.InDelta(t, 0.0, nd.SecondMoment.XY, 1e-12)
}

func TestRelaxIsotropic(t *testing.T) {
	k := kernel.NewBSpline()
	s, err := hupdate.NewIsotropic(k, 2)
	require.NoError(t, err)

	c := NewJittered(Options{N: 9, Spacing: 0.5, InitialH: 1, Margin: 3})
	rep, err := c.Relax(context.Background(), s, 20, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, 20, rep.Steps)
	assert.Equal(t, 27, rep.Final.Particles)
	assert.InDelta(t, 2.0, rep.Final.MeanDensity, 0.2)
	assert.Less(t, rep.Final.StdDensity, 0.1)

	for i := range c.H {
		require.True(t, c.H[i].IsDiagonal(), "particle %d: %v", i, c.H[i])
		require.True(t, c.H[i].IsPositiveDefinite(), "particle %d: %v", i, c.H[i])
	}
}

func TestRelaxAnisotropicKeepsCubicSymmetry(t *testing.T) {
	k := kernel.NewBSpline()
	s, err := hupdate.NewAnisotropic(k, 2)
	require.NoError(t, err)

	c := NewJittered(Options{N: 9, Spacing: 0.5, InitialH: 1, Margin: 3})
	_, err = c.Relax(context.Background(), s, 10, 0, nil)
	require.NoError(t, err)

	H := c.H[4*81+4*9+4]
	assert.True(t, H.IsPositiveDefinite())
	assert.InDelta(t, H.XX, H.YY, 1e-9*H.XX)
	assert.InDelta(t, H.XX, H.ZZ, 1e-9*H.XX)
	assert.InDelta(t, 0.0, H.XY, 1e-9*H.XX)
	assert.InDelta(t, 0.0, H.YZ, 1e-9*H.XX)

	for i := range c.H {
		require.True(t, c.H[i].IsPositiveDefinite(), "particle %d: %v", i, c.H[i])
	}
}

func TestStepCanceled(t *testing.T) {
	k := kernel.NewBSpline()
	s, err := hupdate.NewIsotropic(k, 2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewJittered(Options{N: 4, Spacing: 0.5, InitialH: 1})
	before := append([]tensor.SymTensor2(nil), c.H...)
	_, err = c.Relax(ctx, s, 3, 2, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before, c.H)
}

func TestStatsWithoutInterior(t *testing.T) {
	k := kernel.NewBSpline()
	s, err := hupdate.NewIsotropic(k, 2)
	require.NoError(t, err)
	c := NewJittered(Options{N: 3, Spacing: 0.5, InitialH: 1, Margin: 2})
	require.NoError(t, c.Step(context.Background(), s, 1))
	assert.Equal(t, Stats{}, c.Stats(s))
}

func TestRelaxLogging(t *testing.T) {
	k := kernel.NewBSpline()
	s, err := hupdate.NewIsotropic(k, 2)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	_, err = NewJittered(Options{N: 4, Spacing: 0.5, InitialH: 1}).
		Relax(context.Background(), s, 2, 1, logger)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(buf.String(), "msg=\"relaxation step\""))
	assert.Contains(t, buf.String(), "step=2")

	// A nil logger falls back to the default logger
	var def bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&def, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	_, err = NewJittered(Options{N: 4, Spacing: 0.5, InitialH: 1}).
		Relax(context.Background(), s, 1, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(def.String(), "msg=\"relaxation step\""))
}
