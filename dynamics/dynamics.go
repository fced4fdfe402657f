package dynamics

import (
	"fmt"

	"github.com/notargets/asph/kernel"
	"github.com/notargets/asph/tensor"
	"gonum.org/v1/gonum/spatial/r3"
)

// Dynamics computes the contributions of a pairwise interaction between
// particles i and j to the time derivatives of their solution vectors.
// Implementations accumulate into dUidt and dUjdt.
type Dynamics interface {
	Compute(t float64, i, j int,
		Ui, Uj []float64,
		Wi, Wj float64,
		gradWi, gradWj tensor.Vector,
		dUidt, dUjdt []float64)
}

// MomentDynamics is implemented by dynamics that also consume the
// neighborhood moments of both particles
type MomentDynamics interface {
	ComputeWithMoments(t float64, i, j int,
		Ui, Uj []float64,
		Wi, Wj float64,
		gradWi, gradWj tensor.Vector,
		ni, nj *kernel.NodeData,
		dUidt, dUjdt []float64)
}

// ComputeFunc has the signature of Dynamics.Compute
type ComputeFunc func(t float64, i, j int,
	Ui, Uj []float64,
	Wi, Wj float64,
	gradWi, gradWj tensor.Vector,
	dUidt, dUjdt []float64)

// Pair is a named Dynamics backed by a function, with an optional release
// hook for any context the function closes over
type Pair struct {
	name    string
	compute ComputeFunc
	release func()
}

// NewPair creates named pairwise dynamics; release may be nil
func NewPair(name string, compute ComputeFunc, release func()) *Pair {
	if compute == nil {
		panic("dynamics compute function cannot be nil")
	}
	return &Pair{name: name, compute: compute, release: release}
}

func (p *Pair) Name() string { return p.name }

func (p *Pair) Compute(t float64, i, j int,
	Ui, Uj []float64,
	Wi, Wj float64,
	gradWi, gradWj tensor.Vector,
	dUidt, dUjdt []float64) {
	p.compute(t, i, j, Ui, Uj, Wi, Wj, gradWi, gradWj, dUidt, dUjdt)
}

// Release runs the release hook once
func (p *Pair) Release() {
	if p.release != nil {
		p.release()
		p.release = nil
	}
}

// Particle is the per-particle state needed to evaluate one side of a pair
type Particle struct {
	Index int
	X     tensor.Vector     // Position
	H     tensor.SymTensor2 // Smoothing tensor
	U     []float64         // Solution vector
	DUdt  []float64         // Time derivative accumulator
	Node  *kernel.NodeData  // Moments, optional
}

// Interact evaluates the kernel from both sides of the pair (each with its
// own smoothing tensor, at displacement x_i - x_j) and passes the result to
// d. Dynamics that implement MomentDynamics receive the particles' moments.
func Interact(k *kernel.Kernel, d Dynamics, t float64, pi, pj *Particle) error {
	if len(pi.U) != len(pj.U) {
		return fmt.Errorf("solution vectors of particles %d and %d differ in length: %d != %d",
			pi.Index, pj.Index, len(pi.U), len(pj.U))
	}
	if len(pi.DUdt) != len(pi.U) || len(pj.DUdt) != len(pj.U) {
		return fmt.Errorf("derivative accumulators of particles %d and %d do not match their solution vectors",
			pi.Index, pj.Index)
	}

	xij := r3.Sub(pi.X, pj.X)
	Wi, gradWi := k.Evaluate(xij, pi.H)
	Wj, gradWj := k.Evaluate(xij, pj.H)

	if md, ok := d.(MomentDynamics); ok {
		md.ComputeWithMoments(t, pi.Index, pj.Index, pi.U, pj.U, Wi, Wj, gradWi, gradWj,
			pi.Node, pj.Node, pi.DUdt, pj.DUdt)
		return nil
	}
	d.Compute(t, pi.Index, pj.Index, pi.U, pj.U, Wi, Wj, gradWi, gradWj, pi.DUdt, pj.DUdt)
	return nil
}
