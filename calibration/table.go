package calibration

import (
	"errors"
	"fmt"

	"github.com/notargets/asph/kernel"
	"gonum.org/v1/gonum/interp"
)

const (
	DefaultMaxDensity = 10.0 // Upper end of the calibrated n_per_h domain
	DefaultSize       = 500  // Number of samples over [0, DefaultMaxDensity)
)

// ErrNotMonotone is returned when a kernel's neighbor-sum curve cannot be
// inverted
var ErrNotMonotone = errors.New("calibration curve is not strictly increasing")

// Table maps a neighbor density n_per_h to the expected neighbor-only kernel
// sum of a lattice at that density, and back. It is immutable after
// construction and safe for concurrent use.
type Table struct {
	kernelName string
	maxDensity float64
	densities  []float64 // i*maxDensity/size, i = 0..size-1
	sums       []float64 // NeighborhoodSum(density) - self contribution

	forward interp.PiecewiseLinear // density → sum
	inverse interp.PiecewiseLinear // sum → density
}

// New samples k.NeighborhoodSum at size evenly spaced densities over
// [0, maxDensity). An error is returned if the resulting curve is not
// invertible: it may start with a run of zero sums (lattice spacings wider
// than the support) but must increase strictly once neighbors contribute.
func New(k *kernel.Kernel, maxDensity float64, size int) (*Table, error) {
	if !(maxDensity > 0) {
		panic(fmt.Sprintf("calibration domain must be positive, got %g", maxDensity))
	}
	if size <= 1 {
		panic(fmt.Sprintf("calibration table needs more than one sample, got %d", size))
	}

	tb := &Table{
		kernelName: k.Name(),
		maxDensity: maxDensity,
		densities:  make([]float64, size),
		sums:       make([]float64, size),
	}

	self := k.NeighborhoodSum(0)
	for i := 0; i < size; i++ {
		nh := float64(i) * maxDensity / float64(size)
		tb.densities[i] = nh
		tb.sums[i] = k.NeighborhoodSum(nh) - self
	}

	first, err := tb.validate()
	if err != nil {
		return nil, err
	}

	if err = tb.forward.Fit(tb.densities, tb.sums); err != nil {
		return nil, fmt.Errorf("fitting %s calibration curve: %w", tb.kernelName, err)
	}
	// Keep the last zero-sum knot so sums below the first contribution
	// interpolate toward the density at which neighbors appear
	start := first - 1
	if start < 0 {
		start = 0
	}
	if err = tb.inverse.Fit(tb.sums[start:], tb.densities[start:]); err != nil {
		return nil, fmt.Errorf("inverting %s calibration curve: %w", tb.kernelName, err)
	}

	return tb, nil
}

// validate returns the index of the first positive neighbor sum
func (tb *Table) validate() (first int, err error) {
	first = -1
	for i, s := range tb.sums {
		if s > 0 {
			first = i
			break
		}
		if s < 0 {
			return 0, fmt.Errorf("%w: %s sum %g at n_per_h=%g is negative",
				ErrNotMonotone, tb.kernelName, s, tb.densities[i])
		}
	}
	if first < 0 {
		return 0, fmt.Errorf("%w: %s has no neighbor contribution below n_per_h=%g",
			ErrNotMonotone, tb.kernelName, tb.maxDensity)
	}
	for i := first + 1; i < len(tb.sums); i++ {
		if !(tb.sums[i] > tb.sums[i-1]) {
			return 0, fmt.Errorf("%w: %s sum %g at n_per_h=%g does not exceed %g at n_per_h=%g",
				ErrNotMonotone, tb.kernelName, tb.sums[i], tb.densities[i], tb.sums[i-1], tb.densities[i-1])
		}
	}
	return first, nil
}

// Value returns the neighbor density implied by an observed neighbor sum.
// Sums outside SumBounds are clamped to the ends of the table.
func (tb *Table) Value(sum float64) float64 {
	return tb.inverse.Predict(sum)
}

// Sum returns the expected neighbor sum at density nh
func (tb *Table) Sum(nh float64) float64 {
	return tb.forward.Predict(nh)
}

// SumBounds returns the range of calibrated neighbor sums
func (tb *Table) SumBounds() (lo, hi float64) {
	return tb.sums[0], tb.sums[len(tb.sums)-1]
}

// DensityBounds returns the calibrated density domain [lo, hi)
func (tb *Table) DensityBounds() (lo, hi float64) {
	return 0, tb.maxDensity
}

func (tb *Table) Len() int { return len(tb.sums) }

func (tb *Table) KernelName() string { return tb.kernelName }

// Samples returns copies of the sampled densities and sums
func (tb *Table) Samples() (densities, sums []float64) {
	densities = append([]float64(nil), tb.densities...)
	sums = append([]float64(nil), tb.sums...)
	return
}
