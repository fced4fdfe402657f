package hupdate

import (
	"math"

	"github.com/notargets/asph/tensor"
	"gonum.org/v1/gonum/spatial/r3"
)

// Diagnostics reports the progress of an iterative update
type Diagnostics struct {
	Iterations       int
	FractionalChange float64 // |Δdet(H)| / det(H) of the last iteration
}

// Iterate is the neighbor-list form of the update: it recomputes the
// moments of the neighbors ys around x directly and applies UpdateTensor
// until det(H) changes by less than the convergence threshold.
//
// It returns false when the neighbor sum exceeds the calibrated range,
// meaning the particle needs a wider search radius on the next pass, or
// when the iteration limit is reached first.
func (s *Solver) Iterate(x tensor.Vector, ys []tensor.Vector, H tensor.SymTensor2) (tensor.SymTensor2, Diagnostics, bool) {
	xs := make([]tensor.Vector, len(ys))
	for j, y := range ys {
		xs[j] = r3.Sub(y, x)
	}

	_, hi := s.table.SumBounds()
	var diag Diagnostics
	for diag.Iterations < s.cfg.MaxIterations {
		diag.Iterations++

		nd := s.kernel.AccumulateMoments(H, xs)
		if nd.ZerothMoment > hi {
			return H, diag, false
		}

		newH := s.UpdateNode(H, nd)
		det := H.Det()
		diag.FractionalChange = math.Abs(newH.Det()-det) / det
		H = newH
		if diag.FractionalChange < s.cfg.ConvergenceThreshold {
			return H, diag, true
		}
	}
	return H, diag, false
}
