package quadrature

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestGaussLegendreExactness checks that an n-point rule integrates
// monomials up to degree 2n-1 exactly
func TestGaussLegendreExactness(t *testing.T) {
	tol := 1e-12
	for n := 1; n <= 8; n++ {
		t.Run(fmt.Sprintf("N=%d", n), func(t *testing.T) {
			r := GaussLegendre(n, -1, 1)
			for deg := 0; deg <= 2*n-1; deg++ {
				got := r.Integrate(func(x float64) float64 { return math.Pow(x, float64(deg)) })
				want := 0.0
				if deg%2 == 0 {
					want = 2.0 / float64(deg+1)
				}
				assert.InDeltaf(t, want, got, tol, "degree %d", deg)
			}
		})
	}
}

func TestGaussLegendreInterval(t *testing.T) {
	r := GaussLegendre(5, 0, 2)
	sum := 0.0
	for i, x := range r.Nodes {
		assert.True(t, x > 0 && x < 2)
		sum += r.Weights[i]
	}
	assert.InDelta(t, 2.0, sum, 1e-13)

	// ∫_0^2 x^3 dx = 4
	assert.InDelta(t, 4.0, r.Integrate(func(x float64) float64 { return x * x * x }), 1e-12)
}

func TestComposite(t *testing.T) {
	// |x-1| is piecewise linear with a kink at 1
	f := func(x float64) float64 { return math.Abs(x - 1) }
	got := Composite(f, []float64{0, 1, 3}, 2)
	assert.InDelta(t, 0.5+2.0, got, 1e-13)
}

func TestJacobiGQWeightsSumToGamma0(t *testing.T) {
	for _, ab := range [][2]float64{{0, 0}, {1, 0}, {2, 1}} {
		t.Run(fmt.Sprintf("alpha=%g,beta=%g", ab[0], ab[1]), func(t *testing.T) {
			for _, N := range []int{0, 1, 4} {
				_, w := JacobiGQ(ab[0], ab[1], N)
				sum := 0.0
				for _, wi := range w {
					sum += wi
				}
				assert.InDeltaf(t, Gamma0(ab[0], ab[1]), sum, 1e-12, "N=%d", N)
			}
		})
	}
}

// TestJacobiGQWeightedExactness checks ∫(1-x)^α(1+x)^β p(x) dx for
// polynomials of degree up to 2N+1 against the closed forms
func TestJacobiGQWeightedExactness(t *testing.T) {
	tol := 1e-12
	// α=1, β=0: ∫(1-x)x^k dx over [-1,1]
	moment := func(k int) float64 {
		even := func(m int) float64 {
			if m%2 == 1 {
				return 0
			}
			return 2.0 / float64(m+1)
		}
		return even(k) - even(k+1)
	}
	for N := 0; N <= 4; N++ {
		t.Run(fmt.Sprintf("N=%d", N), func(t *testing.T) {
			x, w := JacobiGQ(1, 0, N)
			for k := 0; k <= 2*N+1; k++ {
				got := 0.0
				for i := range x {
					got += w[i] * math.Pow(x[i], float64(k))
				}
				assert.InDeltaf(t, moment(k), got, tol, "degree %d", k)
			}
		})
	}
}
