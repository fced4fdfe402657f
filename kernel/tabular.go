package kernel

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

// Interpolation selects the 1D interpolant used by tabulated kernels
type Interpolation uint8

const (
	Linear         Interpolation = iota // Piecewise linear
	Akima                               // Akima cubic spline
	FritschButland                      // Monotone piecewise cubic
)

func (i Interpolation) String() string {
	switch i {
	case Linear:
		return "linear"
	case Akima:
		return "akima"
	case FritschButland:
		return "fritsch-butland"
	default:
		return fmt.Sprintf("Interpolation(%d)", uint8(i))
	}
}

// ParseInterpolation maps a name produced by String back to its value
func ParseInterpolation(name string) (Interpolation, error) {
	for _, i := range []Interpolation{Linear, Akima, FritschButland} {
		if i.String() == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown interpolation %q", name)
}

// NewInterpolator returns an unfitted interpolant of the given kind
func NewInterpolator(i Interpolation) interp.FittablePredictor {
	switch i {
	case Akima:
		return &interp.AkimaSpline{}
	case FritschButland:
		return &interp.FritschButland{}
	default:
		return &interp.PiecewiseLinear{}
	}
}

type tabular struct {
	W, dW interp.Predictor // Unit-determinant samples over [0, extent]
}

func (t *tabular) Compute(eta, detH float64) (W, dWdeta float64) {
	if t.W == nil {
		panic("tabulated kernel used after Release")
	}
	return detH * t.W.Predict(eta), detH * t.dW.Predict(eta)
}

func (t *tabular) Release() {
	t.W, t.dW = nil, nil
}

// NewTabular samples the profile of k at resolution evenly spaced radii
// over [0, extent] and returns a kernel that interpolates those samples
// instead of calling the wrapped profile
func NewTabular(k *Kernel, interpolation Interpolation, resolution int) *Kernel {
	if resolution <= 1 {
		panic(fmt.Sprintf("tabulation resolution must exceed 1, got %d", resolution))
	}

	etas := floats.Span(make([]float64, resolution), 0, k.extent)
	Ws := make([]float64, resolution)
	dWs := make([]float64, resolution)
	for i, eta := range etas {
		Ws[i], dWs[i] = k.profile.Compute(eta, 1.0)
	}

	wTable := NewInterpolator(interpolation)
	if err := wTable.Fit(etas, Ws); err != nil {
		panic(fmt.Errorf("tabulating %s values: %w", k.name, err))
	}
	dwTable := NewInterpolator(interpolation)
	if err := dwTable.Fit(etas, dWs); err != nil {
		panic(fmt.Errorf("tabulating %s derivatives: %w", k.name, err))
	}

	return New(fmt.Sprintf("table(%s)", k.name), k.extent, &tabular{W: wTable, dW: dwTable})
}
