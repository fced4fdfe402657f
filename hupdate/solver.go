package hupdate

import (
	"fmt"
	"math"

	"github.com/notargets/asph/calibration"
	"github.com/notargets/asph/kernel"
	"github.com/notargets/asph/tensor"
)

const (
	EmptyZerothMoment = 1e-5  // Zeroth moments below this are treated as no neighbors
	EmptyRatio        = 2.0   // Ratio forced for an empty neighborhood
	SaturatedRatio    = 0.5   // Ratio forced when the sum exceeds the calibrated range
	MinRatio          = 0.25  // Lower clamp on target/observed density
	MaxRatio          = 4.0   // Upper clamp on target/observed density
	DegenerateShape   = 1e-10 // det of the normalized second moment below which it is discarded
)

// Config holds the solver parameters. Zero values select the defaults.
type Config struct {
	NPerH       float64 // Target neighbors per smoothing length
	Anisotropic bool    // Adapt the shape of H from the second moment
	BlendShape  bool    // Blend shape with identity by confidence instead of gating

	MaxDensity float64 // Calibration domain upper bound (default 10)
	TableSize  int     // Calibration samples (default 500)

	// Iterate only
	MaxIterations        int     // default 100
	ConvergenceThreshold float64 // Fractional change in det(H), default 0.05
}

func (cfg Config) withDefaults() Config {
	if cfg.MaxDensity == 0 {
		cfg.MaxDensity = calibration.DefaultMaxDensity
	}
	if cfg.TableSize == 0 {
		cfg.TableSize = calibration.DefaultSize
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 100
	}
	if cfg.ConvergenceThreshold == 0 {
		cfg.ConvergenceThreshold = 0.05
	}
	return cfg
}

// Solver computes smoothing tensors that drive each particle's neighbor
// density toward a target. It holds only immutable state after
// construction, so one Solver may serve many goroutines.
type Solver struct {
	kernel *kernel.Kernel
	table  *calibration.Table
	cfg    Config
}

// NewSolver builds the calibration table for k and returns a solver
// targeting cfg.NPerH
func NewSolver(k *kernel.Kernel, cfg Config) (*Solver, error) {
	if !(cfg.NPerH > 0) {
		panic(fmt.Sprintf("target neighbor density must be positive, got %g", cfg.NPerH))
	}
	if k == nil {
		panic("solver kernel cannot be nil")
	}
	cfg = cfg.withDefaults()

	table, err := calibration.New(k, cfg.MaxDensity, cfg.TableSize)
	if err != nil {
		return nil, fmt.Errorf("calibrating solver for %s: %w", k.Name(), err)
	}
	return &Solver{
		kernel: k,
		table:  table,
		cfg:    cfg,
	}, nil
}

// NewIsotropic returns a solver that keeps H a multiple of the identity
func NewIsotropic(k *kernel.Kernel, nPerH float64) (*Solver, error) {
	return NewSolver(k, Config{NPerH: nPerH})
}

// NewAnisotropic returns a solver that also adapts the shape of H
func NewAnisotropic(k *kernel.Kernel, nPerH float64) (*Solver, error) {
	return NewSolver(k, Config{NPerH: nPerH, Anisotropic: true})
}

func (s *Solver) Kernel() *kernel.Kernel { return s.kernel }

func (s *Solver) Table() *calibration.Table { return s.table }

func (s *Solver) Config() Config { return s.cfg }

// Ratio returns the clamped ratio of target to observed neighbor density
// for a zeroth moment
func (s *Solver) Ratio(zeroth float64) float64 {
	if zeroth < EmptyZerothMoment {
		return EmptyRatio
	}
	if _, hi := s.table.SumBounds(); zeroth > hi {
		return SaturatedRatio
	}
	nh := s.table.Value(zeroth)
	if !(nh > 0) {
		return MaxRatio
	}
	return clamp(s.cfg.NPerH/nh, MinRatio, MaxRatio)
}

// RelaxDeterminant applies the damped correction of Thakar et al. (2000)
// to det(H) for density ratio r
func RelaxDeterminant(detH, r float64) float64 {
	var a float64
	if r <= 1 {
		a = 0.4 * (1 + r*r)
	} else {
		a = 0.4 * (1 + 1/(r*r*r))
	}
	f := 1 - a + a*r
	return detH / (f * f * f)
}

// Confidence is 1 near convergence (r <= 1) and falls to 0 at r = 2
func Confidence(r float64) float64 {
	return clamp(2/r-1, 0, 1)
}

// Shape returns the shape tensor implied by a second moment at density
// ratio r. Without confidence, or for a second moment that is not positive
// definite, the shape is the identity.
func (s *Solver) Shape(second tensor.SymTensor2, r float64) tensor.SymTensor2 {
	w := Confidence(r)
	if !(w > 0) || !(second.Det() > 0) {
		return tensor.Identity()
	}
	ev, V := second.Eigen()
	if !(ev[0] > 0) {
		return tensor.Identity()
	}

	// ψ = second/max|entry|; a nearly singular ψ is discarded
	m := second.MaxEntry()
	if second.Scale(1/m).Det() < DegenerateShape {
		return tensor.Identity()
	}
	shape := tensor.FromEigen([3]float64{m / ev[0], m / ev[1], m / ev[2]}, V)

	if s.cfg.BlendShape {
		shape = shape.Scale(math.Cbrt(1 / shape.Det()))
		shape = tensor.Identity().Scale(1 - w).Add(shape.Scale(w))
	}
	return shape
}

// UpdateTensor returns the smoothing tensor for the next step given the
// current tensor H and the particle's zeroth and second moments. It never
// fails: degenerate inputs fall back to defined corrections.
func (s *Solver) UpdateTensor(H tensor.SymTensor2, zeroth float64, second tensor.SymTensor2) tensor.SymTensor2 {
	r := s.Ratio(zeroth)
	newDet := RelaxDeterminant(H.Det(), r)

	shape := tensor.Identity()
	if s.cfg.Anisotropic {
		shape = s.Shape(second, r)
	}
	return shape.Scale(math.Cbrt(newDet / shape.Det()))
}

// UpdateNode is UpdateTensor with moments taken from nd
func (s *Solver) UpdateNode(H tensor.SymTensor2, nd kernel.NodeData) tensor.SymTensor2 {
	return s.UpdateTensor(H, nd.ZerothMoment, nd.SecondMoment)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
