package tensor

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Vector is a displacement or gradient in 3D
type Vector = r3.Vec

// ErrSingular is returned when a tensor with zero determinant is inverted
var ErrSingular = errors.New("tensor: singular tensor")

// SymTensor2 is a symmetric 3×3 tensor stored as its six independent entries
//
//	| XX XY XZ |
//	| XY YY YZ |
//	| XZ YZ ZZ |
type SymTensor2 struct {
	XX, XY, XZ float64
	YY, YZ     float64
	ZZ         float64
}

// Identity returns the 3×3 identity tensor
func Identity() SymTensor2 {
	return SymTensor2{XX: 1, YY: 1, ZZ: 1}
}

// Diagonal returns a tensor with a on the diagonal and zero elsewhere
func Diagonal(a float64) SymTensor2 {
	return SymTensor2{XX: a, YY: a, ZZ: a}
}

// Outer returns the outer product v ⊗ v
func Outer(v Vector) SymTensor2 {
	return SymTensor2{
		XX: v.X * v.X, XY: v.X * v.Y, XZ: v.X * v.Z,
		YY: v.Y * v.Y, YZ: v.Y * v.Z,
		ZZ: v.Z * v.Z,
	}
}

// NewFromSym copies the upper triangle of a 3×3 gonum symmetric matrix
func NewFromSym(s mat.Symmetric) SymTensor2 {
	if s.SymmetricDim() != 3 {
		panic(fmt.Sprintf("tensor: expected 3×3 symmetric matrix, got dimension %d", s.SymmetricDim()))
	}
	return SymTensor2{
		XX: s.At(0, 0), XY: s.At(0, 1), XZ: s.At(0, 2),
		YY: s.At(1, 1), YZ: s.At(1, 2),
		ZZ: s.At(2, 2),
	}
}

// FromEigen assembles V·diag(values)·Vᵀ, where the columns of V are
// orthonormal eigenvectors
func FromEigen(values [3]float64, V *mat.Dense) SymTensor2 {
	if r, c := V.Dims(); r != 3 || c != 3 {
		panic(fmt.Sprintf("tensor: expected 3×3 eigenvector matrix, got %d×%d", r, c))
	}
	s := mat.NewSymDense(3, nil)
	for k, lambda := range values {
		s.SymRankOne(s, lambda, V.ColView(k))
	}
	return NewFromSym(s)
}

// Sym returns the tensor as a gonum symmetric matrix
func (t SymTensor2) Sym() *mat.SymDense {
	data := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			data[3*i+j] = t.At(i, j)
		}
	}
	return mat.NewSymDense(3, data)
}

// At returns entry (i, j), 0-based
func (t SymTensor2) At(i, j int) float64 {
	if i > j {
		i, j = j, i
	}
	switch {
	case i == 0 && j == 0:
		return t.XX
	case i == 0 && j == 1:
		return t.XY
	case i == 0 && j == 2:
		return t.XZ
	case i == 1 && j == 1:
		return t.YY
	case i == 1 && j == 2:
		return t.YZ
	case i == 2 && j == 2:
		return t.ZZ
	}
	panic(fmt.Sprintf("tensor: index (%d,%d) out of range", i, j))
}

// Det returns the determinant
func (t SymTensor2) Det() float64 {
	return t.XX*(t.YY*t.ZZ-t.YZ*t.YZ) -
		t.XY*(t.XY*t.ZZ-t.YZ*t.XZ) +
		t.XZ*(t.XY*t.YZ-t.YY*t.XZ)
}

// Dot returns the metric-vector product t·v
func (t SymTensor2) Dot(v Vector) Vector {
	return Vector{
		X: t.XX*v.X + t.XY*v.Y + t.XZ*v.Z,
		Y: t.XY*v.X + t.YY*v.Y + t.YZ*v.Z,
		Z: t.XZ*v.X + t.YZ*v.Y + t.ZZ*v.Z,
	}
}

// Scale returns a·t
func (t SymTensor2) Scale(a float64) SymTensor2 {
	return SymTensor2{
		XX: a * t.XX, XY: a * t.XY, XZ: a * t.XZ,
		YY: a * t.YY, YZ: a * t.YZ,
		ZZ: a * t.ZZ,
	}
}

// Add returns t+u
func (t SymTensor2) Add(u SymTensor2) SymTensor2 {
	return SymTensor2{
		XX: t.XX + u.XX, XY: t.XY + u.XY, XZ: t.XZ + u.XZ,
		YY: t.YY + u.YY, YZ: t.YZ + u.YZ,
		ZZ: t.ZZ + u.ZZ,
	}
}

// MaxEntry returns the entry of largest magnitude
func (t SymTensor2) MaxEntry() float64 {
	m := t.XX
	for _, v := range [...]float64{t.XY, t.XZ, t.YY, t.YZ, t.ZZ} {
		if math.Abs(v) > math.Abs(m) {
			m = v
		}
	}
	return m
}

// Inverse returns t⁻¹ computed from the adjugate
func (t SymTensor2) Inverse() (SymTensor2, error) {
	det := t.Det()
	if det == 0 || math.IsNaN(det) {
		return SymTensor2{}, ErrSingular
	}
	inv := 1.0 / det
	return SymTensor2{
		XX: (t.YY*t.ZZ - t.YZ*t.YZ) * inv,
		XY: (t.XZ*t.YZ - t.XY*t.ZZ) * inv,
		XZ: (t.XY*t.YZ - t.XZ*t.YY) * inv,
		YY: (t.XX*t.ZZ - t.XZ*t.XZ) * inv,
		YZ: (t.XY*t.XZ - t.XX*t.YZ) * inv,
		ZZ: (t.XX*t.YY - t.XY*t.XY) * inv,
	}, nil
}

// Eigen returns the eigenvalues in ascending order and the matching
// orthonormal eigenvectors as the columns of a 3×3 matrix
func (t SymTensor2) Eigen() ([3]float64, *mat.Dense) {
	var eig mat.EigenSym
	if ok := eig.Factorize(t.Sym(), true); !ok {
		panic("eigenvalue decomposition failed")
	}
	var ev [3]float64
	copy(ev[:], eig.Values(nil))
	V := mat.NewDense(3, 3, nil)
	eig.VectorsTo(V)
	return ev, V
}

// Eigenvalues returns the eigenvalues in ascending order
func (t SymTensor2) Eigenvalues() [3]float64 {
	var eig mat.EigenSym
	ok := eig.Factorize(t.Sym(), false)
	if !ok {
		panic("eigenvalue decomposition failed")
	}
	var ev [3]float64
	copy(ev[:], eig.Values(nil))
	return ev
}

// IsPositiveDefinite reports whether t admits a Cholesky factorization
func (t SymTensor2) IsPositiveDefinite() bool {
	var chol mat.Cholesky
	return chol.Factorize(t.Sym())
}

// IsDiagonal reports whether all off-diagonal entries are exactly zero
func (t SymTensor2) IsDiagonal() bool {
	return t.XY == 0 && t.XZ == 0 && t.YZ == 0
}

func (t SymTensor2) String() string {
	return fmt.Sprintf("[[%g %g %g] [%g %g %g] [%g %g %g]]",
		t.XX, t.XY, t.XZ, t.XY, t.YY, t.YZ, t.XZ, t.YZ, t.ZZ)
}
