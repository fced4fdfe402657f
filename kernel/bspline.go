package kernel

import "math"

// BSplineExtent is the support radius of the cubic B-spline in units of h
const BSplineExtent = 2.0

type bSpline struct{}

// Compute evaluates the 3D cubic B-spline normalized to unit volume,
// scaled by det(H)
func (bSpline) Compute(eta, detH float64) (W, dWdeta float64) {
	switch {
	case eta < 1.0:
		eta2 := eta * eta
		W = (1.0 - 1.5*eta2 + 0.75*eta2*eta) / math.Pi
		dWdeta = (-3.0*eta + 2.25*eta2) / math.Pi
	case eta < BSplineExtent:
		term := BSplineExtent - eta
		W = 0.25 * term * term * term / math.Pi
		dWdeta = -0.75 * term * term / math.Pi
	default:
		return 0, 0
	}
	return detH * W, detH * dWdeta
}

// NewBSpline returns the cubic B-spline kernel
func NewBSpline() *Kernel {
	return New("B-spline", BSplineExtent, bSpline{})
}
