package kernel

import (
	"math"

	"github.com/notargets/asph/quadrature"
	"github.com/notargets/asph/tensor"
	"gonum.org/v1/gonum/spatial/r3"
)

// NodeData holds the kernel moments of a particle's neighborhood
type NodeData struct {
	ZerothMoment float64           // Kernel sum minus the self contribution
	FirstMoment  tensor.Vector     // Σ W_ij x_ij
	SecondMoment tensor.SymTensor2 // Σ W_ij x_ij ⊗ x_ij
}

// AccumulateMoments computes the moments of the neighbor displacements xs
// (x_j - x_i, self excluded) under smoothing tensor H. Weights are taken
// at unit determinant so the zeroth moment is directly comparable with
// NeighborhoodSum.
func (k *Kernel) AccumulateMoments(H tensor.SymTensor2, xs []tensor.Vector) (nd NodeData) {
	for _, x := range xs {
		etaMag := r3.Norm(H.Dot(x))
		if etaMag > k.extent {
			continue
		}
		W, _ := k.profile.Compute(etaMag, 1.0)
		nd.ZerothMoment += W
		nd.FirstMoment = r3.Add(nd.FirstMoment, r3.Scale(W, x))
		nd.SecondMoment = nd.SecondMoment.Add(tensor.Outer(x).Scale(W))
	}
	return
}

// VolumeIntegral returns ∫ W dV over the support at unit determinant.
// Properly normalized kernels integrate to one.
func (k *Kernel) VolumeIntegral() float64 {
	// Unit-spaced panels put the B-spline knots on panel boundaries
	nPanels := int(math.Ceil(k.extent))
	breaks := make([]float64, nPanels+1)
	for i := range breaks {
		breaks[i] = math.Min(float64(i), k.extent)
	}
	radial := func(eta float64) float64 {
		W, _ := k.profile.Compute(eta, 1.0)
		return 4 * math.Pi * eta * eta * W
	}
	return quadrature.Composite(radial, breaks, 8)
}
