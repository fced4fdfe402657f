package kernel

import (
	"fmt"
	"math"

	"github.com/notargets/asph/tensor"
	"gonum.org/v1/gonum/spatial/r3"
)

// Profile is the radial part of a metric kernel. Compute returns the kernel
// value and its radial derivative at normalized radius eta for a smoothing
// tensor with determinant detH.
type Profile interface {
	Compute(eta, detH float64) (W, dWdeta float64)
}

// ProfileFunc adapts a function to the Profile interface
type ProfileFunc func(eta, detH float64) (W, dWdeta float64)

func (f ProfileFunc) Compute(eta, detH float64) (W, dWdeta float64) {
	return f(eta, detH)
}

// Releaser is implemented by profiles that own resources which should be
// dropped deterministically
type Releaser interface {
	Release()
}

// Properties describes a kernel
type Properties struct {
	Name   string  // Descriptive name (e.g., "B-spline", "table(B-spline)")
	Extent float64 // Support radius in normalized metric units
}

// Kernel is a compactly supported radial weighting function evaluated
// through a symmetric smoothing tensor H. It is immutable after
// construction and safe for concurrent use.
type Kernel struct {
	name    string
	extent  float64
	profile Profile
}

// New creates a kernel with the given name, support extent and profile
func New(name string, extent float64, profile Profile) *Kernel {
	if !(extent > 0) {
		panic(fmt.Sprintf("kernel extent must be positive, got %g", extent))
	}
	if profile == nil {
		panic("kernel profile cannot be nil")
	}
	return &Kernel{
		name:    name,
		extent:  extent,
		profile: profile,
	}
}

func (k *Kernel) Name() string { return k.name }

func (k *Kernel) Extent() float64 { return k.extent }

func (k *Kernel) GetProperties() Properties {
	return Properties{Name: k.name, Extent: k.extent}
}

// Profile evaluates the radial profile directly
func (k *Kernel) Profile(eta, detH float64) (W, dWdeta float64) {
	return k.profile.Compute(eta, detH)
}

// Release drops any resources owned by the kernel's profile
func (k *Kernel) Release() {
	if r, ok := k.profile.(Releaser); ok {
		r.Release()
	}
}

// Evaluate computes the kernel value and gradient at displacement x from
// the kernel center under smoothing tensor H. With eta = H·x, the gradient
// is H·(dW/deta · eta/|eta|).
func (k *Kernel) Evaluate(x tensor.Vector, H tensor.SymTensor2) (W float64, gradW tensor.Vector) {
	eta := H.Dot(x)
	etaMag := r3.Norm(eta)
	if etaMag > k.extent {
		return 0, tensor.Vector{}
	}

	W, dWdeta := k.profile.Compute(etaMag, H.Det())
	if etaMag == 0 {
		// Radially symmetric profiles have no preferred direction at the center
		return W, tensor.Vector{}
	}
	gradW = H.Dot(r3.Scale(dWdeta/etaMag, eta))
	return W, gradW
}

// NeighborhoodSum estimates the total kernel weight seen by a particle
// whose neighbors sit on a regular lattice with nPerH points per unit
// smoothing length. The self term is included; the lattice covers one
// octant out to the extent and each neighbor is counted twice.
func (k *Kernel) NeighborhoodSum(nPerH float64) float64 {
	if nPerH < 0 || math.IsNaN(nPerH) {
		panic(fmt.Sprintf("neighbor density must be non-negative, got %g", nPerH))
	}

	sum, _ := k.profile.Compute(0, 1)
	if nPerH == 0 {
		return sum
	}

	deta := 1.0 / nPerH
	nSteps := int(math.Floor(k.extent * nPerH))
	for i := 0; i <= nSteps; i++ {
		for j := 0; j <= nSteps; j++ {
			for l := 0; l <= nSteps; l++ {
				if i == 0 && j == 0 && l == 0 {
					continue
				}
				eta := r3.Vec{X: float64(i) * deta, Y: float64(j) * deta, Z: float64(l) * deta}
				etaMag := r3.Norm(eta)
				if etaMag > k.extent {
					continue
				}
				W, _ := k.profile.Compute(etaMag, 1)
				sum += 2.0 * W
			}
		}
	}
	return sum
}
