package quadrature

// Rule is a set of quadrature nodes and weights on an interval
type Rule struct {
	A, B    float64   // Interval bounds
	Nodes   []float64 // Abscissas in [A,B]
	Weights []float64 // Weights scaled to [A,B]
}

// GaussLegendre returns an n-point Gauss-Legendre rule on [a,b],
// exact for polynomials up to degree 2n-1
func GaussLegendre(n int, a, b float64) Rule {
	if n < 1 {
		panic("quadrature needs at least one point")
	}
	x, w := JacobiGQ(0, 0, n-1)
	half := 0.5 * (b - a)
	mid := 0.5 * (a + b)
	r := Rule{
		A:       a,
		B:       b,
		Nodes:   make([]float64, n),
		Weights: make([]float64, n),
	}
	for i := range x {
		r.Nodes[i] = mid + half*x[i]
		r.Weights[i] = half * w[i]
	}
	return r
}

// Integrate applies the rule to f
func (r Rule) Integrate(f func(x float64) float64) (sum float64) {
	for i, x := range r.Nodes {
		sum += r.Weights[i] * f(x)
	}
	return
}

// Composite integrates f over [a,b] split into panels, each with an
// n-point Gauss-Legendre rule. Breakpoints of piecewise integrands should
// fall on panel boundaries.
func Composite(f func(x float64) float64, breaks []float64, n int) (sum float64) {
	for i := 0; i+1 < len(breaks); i++ {
		sum += GaussLegendre(n, breaks[i], breaks[i+1]).Integrate(f)
	}
	return
}
