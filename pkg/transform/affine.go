// Package transform holds the spatial transforms that an initializer writes
// a center of rotation and a translation into.
package transform

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Transform is the part of a centered transform the initializer needs:
// its declared dimensions and setters for center and translation.
type Transform interface {
	InputSpaceDimension() int
	OutputSpaceDimension() int
	SetCenter(center []float64)
	SetTranslation(translation []float64)
}

// Affine is a centered affine transform
//
//	T(x) = M·(x - c) + c + t
//
// with matrix M, center c and translation t.
type Affine struct {
	dim         int
	matrix      *mat.Dense
	center      []float64
	translation []float64
}

// NewAffine creates an identity transform in d dimensions.
func NewAffine(d int) *Affine {
	m := mat.NewDense(d, d, nil)
	for i := 0; i < d; i++ {
		m.Set(i, i, 1)
	}
	return &Affine{
		dim:         d,
		matrix:      m,
		center:      make([]float64, d),
		translation: make([]float64, d),
	}
}

// InputSpaceDimension returns the dimension of points the transform accepts.
func (a *Affine) InputSpaceDimension() int { return a.dim }

// OutputSpaceDimension returns the dimension of transformed points.
func (a *Affine) OutputSpaceDimension() int { return a.dim }

// SetCenter sets the center of rotation. It panics on a dimension mismatch.
func (a *Affine) SetCenter(center []float64) {
	a.mustMatch("center", len(center))
	copy(a.center, center)
}

// SetTranslation sets the translation. It panics on a dimension mismatch.
func (a *Affine) SetTranslation(translation []float64) {
	a.mustMatch("translation", len(translation))
	copy(a.translation, translation)
}

func (a *Affine) mustMatch(what string, n int) {
	if n != a.dim {
		panic(fmt.Sprintf("transform: %s has %d components, transform has %d", what, n, a.dim))
	}
}

// SetMatrix replaces the linear part.
func (a *Affine) SetMatrix(m mat.Matrix) error {
	r, c := m.Dims()
	if r != a.dim || c != a.dim {
		return fmt.Errorf("transform: matrix is %dx%d, transform has dimension %d", r, c, a.dim)
	}
	a.matrix = mat.DenseCopyOf(m)
	return nil
}

// Center returns the center of rotation.
func (a *Affine) Center() []float64 { return append([]float64(nil), a.center...) }

// Translation returns the translation.
func (a *Affine) Translation() []float64 { return append([]float64(nil), a.translation...) }

// Matrix returns a copy of the linear part.
func (a *Affine) Matrix() *mat.Dense { return mat.DenseCopyOf(a.matrix) }

// Offset returns t + c - M·c, the translation of the equivalent uncentered
// transform M·x + offset.
func (a *Affine) Offset() []float64 {
	var mc mat.VecDense
	mc.MulVec(a.matrix, mat.NewVecDense(a.dim, a.Center()))
	off := make([]float64, a.dim)
	floats.AddTo(off, a.translation, a.center)
	floats.Sub(off, mc.RawVector().Data)
	return off
}

// TransformPoint maps p through the transform.
func (a *Affine) TransformPoint(p []float64) []float64 {
	a.mustMatch("point", len(p))
	var v mat.VecDense
	v.MulVec(a.matrix, mat.NewVecDense(a.dim, append([]float64(nil), p...)))
	out := v.RawVector().Data
	floats.Add(out, a.Offset())
	return out
}

// Parameters returns the matrix in row-major order followed by the
// translation.
func (a *Affine) Parameters() []float64 {
	params := make([]float64, 0, a.dim*a.dim+a.dim)
	for i := 0; i < a.dim; i++ {
		params = append(params, a.matrix.RawRowView(i)...)
	}
	return append(params, a.translation...)
}
