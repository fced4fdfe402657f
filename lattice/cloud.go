package lattice

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/notargets/asph/hupdate"
	"github.com/notargets/asph/kernel"
	"github.com/notargets/asph/tensor"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// Cloud is a fixed set of particles carrying smoothing tensors and the
// neighborhood moments from the last relaxation step
type Cloud struct {
	X     []tensor.Vector
	H     []tensor.SymTensor2
	Nodes []kernel.NodeData

	interior []bool
	index    *neighborIndex
}

// Options describes a jittered cubic lattice of N³ particles
type Options struct {
	N        int
	Spacing  float64
	Jitter   float64 // fraction of Spacing, uniform in [-Jitter/2, Jitter/2)
	Seed     uint64
	InitialH float64 // isotropic H = InitialH·I
	Margin   int     // lattice layers excluded from interior statistics
}

// NewJittered builds a cubic lattice and indexes it for radius searches
func NewJittered(opt Options) *Cloud {
	if opt.N < 1 {
		panic(fmt.Errorf("lattice size must be positive, have %d", opt.N))
	}
	if opt.Spacing <= 0 || opt.InitialH <= 0 {
		panic(fmt.Errorf("lattice spacing and initial H must be positive, have %g and %g",
			opt.Spacing, opt.InitialH))
	}
	rng := rand.New(rand.NewPCG(opt.Seed, opt.Seed^0x9e3779b97f4a7c15))
	jitter := func() float64 { return opt.Jitter * opt.Spacing * (rng.Float64() - 0.5) }

	n := opt.N
	c := &Cloud{
		X:        make([]tensor.Vector, 0, n*n*n),
		H:        make([]tensor.SymTensor2, 0, n*n*n),
		Nodes:    make([]kernel.NodeData, n*n*n),
		interior: make([]bool, 0, n*n*n),
	}
	inside := func(i int) bool { return i >= opt.Margin && i < n-opt.Margin }
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for l := 0; l < n; l++ {
				c.X = append(c.X, tensor.Vector{
					X: float64(i)*opt.Spacing + jitter(),
					Y: float64(j)*opt.Spacing + jitter(),
					Z: float64(l)*opt.Spacing + jitter(),
				})
				c.H = append(c.H, tensor.Diagonal(opt.InitialH))
				c.interior = append(c.interior, inside(i) && inside(j) && inside(l))
			}
		}
	}
	c.reindex()
	return c
}

// NewCloud wraps arbitrary positions and tensors; every particle counts as
// interior
func NewCloud(xs []tensor.Vector, Hs []tensor.SymTensor2) *Cloud {
	if len(xs) != len(Hs) {
		panic(fmt.Errorf("position and tensor counts differ: %d != %d", len(xs), len(Hs)))
	}
	c := &Cloud{
		X:        append([]tensor.Vector(nil), xs...),
		H:        append([]tensor.SymTensor2(nil), Hs...),
		Nodes:    make([]kernel.NodeData, len(xs)),
		interior: make([]bool, len(xs)),
	}
	for i := range c.interior {
		c.interior[i] = true
	}
	c.reindex()
	return c
}

func (c *Cloud) reindex() {
	xs := make([][3]float64, len(c.X))
	for i, x := range c.X {
		xs[i] = [3]float64{x.X, x.Y, x.Z}
	}
	c.index = newNeighborIndex(xs)
}

func (c *Cloud) Len() int { return len(c.X) }

func (c *Cloud) Interior(i int) bool { return c.interior[i] }

// SupportRadius is the physical radius enclosing the compact support of
// particle i, set by the smallest eigenvalue of its tensor
func (c *Cloud) SupportRadius(k *kernel.Kernel, i int) float64 {
	ev := c.H[i].Eigenvalues()
	return k.Extent() / ev[0]
}

// Neighbors returns the indices of the particles within radius of particle i
func (c *Cloud) Neighbors(i int, radius float64) []int {
	x := c.X[i]
	return c.index.within([3]float64{x.X, x.Y, x.Z}, i, radius)
}

// Moments accumulates the neighborhood moments of particle i under its
// current tensor
func (c *Cloud) Moments(k *kernel.Kernel, i int) kernel.NodeData {
	nbrs := c.Neighbors(i, c.SupportRadius(k, i))
	xs := make([]tensor.Vector, len(nbrs))
	for n, j := range nbrs {
		xs[n] = r3.Sub(c.X[j], c.X[i])
	}
	return k.AccumulateMoments(c.H[i], xs)
}

// Step runs one relaxation pass: every particle gathers its moments under
// the current tensors, then all tensors are replaced at once. At most
// workers particles are processed concurrently, workers <= 0 uses GOMAXPROCS.
func (c *Cloud) Step(ctx context.Context, s *hupdate.Solver, workers int) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	k := s.Kernel()
	newH := make([]tensor.SymTensor2, len(c.H))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range c.X {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			nd := c.Moments(k, i)
			c.Nodes[i] = nd
			newH[i] = s.UpdateNode(c.H[i], nd)
			if !newH[i].IsPositiveDefinite() {
				return fmt.Errorf("particle %d: updated tensor is not positive definite: %v", i, newH[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	c.H = newH
	return nil
}

// Stats summarizes the interior particles after a step
type Stats struct {
	Particles   int
	MeanDensity float64 // implied particles per smoothing length
	StdDensity  float64
	MeanDet     float64
}

// Stats reports the implied density of the interior particles from the
// moments gathered in the last step, read back through the solver's
// calibration table
func (c *Cloud) Stats(s *hupdate.Solver) Stats {
	var density, det []float64
	for i := range c.X {
		if !c.interior[i] {
			continue
		}
		density = append(density, s.Table().Value(c.Nodes[i].ZerothMoment))
		det = append(det, c.H[i].Det())
	}
	if len(density) == 0 {
		return Stats{}
	}
	st := Stats{Particles: len(density), MeanDet: stat.Mean(det, nil)}
	st.MeanDensity, st.StdDensity = stat.MeanStdDev(density, nil)
	return st
}

// Report is the outcome of a relaxation run
type Report struct {
	Steps   int
	Final   Stats
	Elapsed time.Duration
}

// Relax runs steps relaxation passes, logging interior statistics after
// each one. A nil logger logs to slog.Default().
func (c *Cloud) Relax(ctx context.Context, s *hupdate.Solver, steps, workers int, logger *slog.Logger) (Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var rep Report
	start := time.Now()
	for step := 1; step <= steps; step++ {
		t0 := time.Now()
		if err := c.Step(ctx, s, workers); err != nil {
			return rep, fmt.Errorf("relaxation step %d: %w", step, err)
		}
		rep.Steps = step
		rep.Final = c.Stats(s)
		logger.Info("relaxation step",
			"step", step,
			"particles", rep.Final.Particles,
			"mean_density", rep.Final.MeanDensity,
			"std_density", rep.Final.StdDensity,
			"mean_det", rep.Final.MeanDet,
			"elapsed", time.Since(t0))
	}
	rep.Elapsed = time.Since(start)
	return rep, nil
}
