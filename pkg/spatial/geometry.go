// Package spatial describes where the voxels of an N-dimensional image sit in
// physical space. An image's geometry is its origin, voxel spacing, direction
// cosines and discrete size; together they map a voxel index to a world
// coordinate.
package spatial

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultTolerance is the absolute tolerance used when two geometries are
// compared for equality.
const DefaultTolerance = 1e-6

var (
	// ErrDimension indicates a vector or matrix whose length does not match
	// the dimension of the image.
	ErrDimension = errors.New("spatial: dimension mismatch")

	// ErrSpacing indicates a non-positive voxel spacing.
	ErrSpacing = errors.New("spatial: spacing must be positive")

	// ErrSize indicates an axis with fewer than one voxel.
	ErrSize = errors.New("spatial: size must be at least 1 along every axis")

	// ErrDirection indicates a singular direction cosine matrix.
	ErrDirection = errors.New("spatial: direction matrix is singular")
)

// Geometry exposes the physical layout of an image. Implementations return
// copies, so callers may modify the returned values freely.
type Geometry interface {
	Dimension() int
	Origin() []float64
	Spacing() []float64
	Direction() *mat.Dense
	Size() []int

	// IndexToPhysical maps a (possibly continuous) index to a physical point.
	IndexToPhysical(index []float64) []float64
}

// Header is a geometry without voxel data. The zero value is not usable;
// create headers with NewHeader.
type Header struct {
	origin    []float64
	spacing   []float64
	direction *mat.Dense
	size      []int
}

// NewHeader creates a header of len(size) dimensions with zero origin, unit
// spacing and identity direction. Sizes are not validated here so that
// degenerate geometries can still be represented and reported by Validate.
func NewHeader(size []int) *Header {
	d := len(size)
	h := &Header{
		origin:  make([]float64, d),
		spacing: make([]float64, d),
		size:    append([]int(nil), size...),
	}
	for i := range h.spacing {
		h.spacing[i] = 1
	}
	if d > 0 {
		h.direction = identity(d)
	}
	return h
}

func identity(d int) *mat.Dense {
	m := mat.NewDense(d, d, nil)
	for i := 0; i < d; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// Dimension returns the number of image axes.
func (h *Header) Dimension() int { return len(h.size) }

// Origin returns the physical position of index zero.
func (h *Header) Origin() []float64 { return append([]float64(nil), h.origin...) }

// Spacing returns the physical distance between neighbouring voxels per axis.
func (h *Header) Spacing() []float64 { return append([]float64(nil), h.spacing...) }

// Size returns the number of voxels per axis.
func (h *Header) Size() []int { return append([]int(nil), h.size...) }

// Direction returns a copy of the direction cosine matrix. Column i is the
// physical direction of index axis i.
func (h *Header) Direction() *mat.Dense {
	if h.direction == nil {
		return nil
	}
	return mat.DenseCopyOf(h.direction)
}

// SetOrigin sets the physical position of index zero.
func (h *Header) SetOrigin(origin []float64) error {
	if len(origin) != h.Dimension() {
		return fmt.Errorf("%w: origin has %d components, image has %d axes", ErrDimension, len(origin), h.Dimension())
	}
	h.origin = append(h.origin[:0], origin...)
	return nil
}

// SetSpacing sets the voxel spacing. Every component must be positive.
func (h *Header) SetSpacing(spacing []float64) error {
	if len(spacing) != h.Dimension() {
		return fmt.Errorf("%w: spacing has %d components, image has %d axes", ErrDimension, len(spacing), h.Dimension())
	}
	for i, s := range spacing {
		if !(s > 0) {
			return fmt.Errorf("%w: axis %d has spacing %g", ErrSpacing, i, s)
		}
	}
	h.spacing = append(h.spacing[:0], spacing...)
	return nil
}

// SetDirection sets the direction cosine matrix. It must be square with the
// image dimension and non-singular.
func (h *Header) SetDirection(direction mat.Matrix) error {
	r, c := direction.Dims()
	if r != h.Dimension() || c != h.Dimension() {
		return fmt.Errorf("%w: direction is %dx%d, image has %d axes", ErrDimension, r, c, h.Dimension())
	}
	if math.Abs(mat.Det(direction)) < 1e-12 {
		return ErrDirection
	}
	h.direction = mat.DenseCopyOf(direction)
	return nil
}

// Clone returns an independent copy of the header.
func (h *Header) Clone() *Header {
	c := &Header{
		origin:  h.Origin(),
		spacing: h.Spacing(),
		size:    h.Size(),
	}
	c.direction = h.Direction()
	return c
}

// IndexToPhysical maps index to origin + direction · (spacing ⊙ index).
// It panics if len(index) differs from the image dimension.
func (h *Header) IndexToPhysical(index []float64) []float64 {
	d := h.Dimension()
	if len(index) != d {
		panic(fmt.Sprintf("spatial: index has %d components, image has %d axes", len(index), d))
	}
	scaled := make([]float64, d)
	floats.MulTo(scaled, h.spacing, index)

	var p mat.VecDense
	p.MulVec(h.direction, mat.NewVecDense(d, scaled))
	p.AddVec(&p, mat.NewVecDense(d, h.Origin()))
	return p.RawVector().Data
}

// PhysicalToIndex is the inverse of IndexToPhysical and returns a continuous
// index.
func (h *Header) PhysicalToIndex(point []float64) ([]float64, error) {
	return PhysicalToIndex(h, point)
}

// PhysicalToIndex maps a physical point back to a continuous index of g.
func PhysicalToIndex(g Geometry, point []float64) ([]float64, error) {
	d := g.Dimension()
	if len(point) != d {
		return nil, fmt.Errorf("%w: point has %d components, image has %d axes", ErrDimension, len(point), d)
	}
	var inv mat.Dense
	if err := inv.Inverse(g.Direction()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirection, err)
	}
	rel := make([]float64, d)
	floats.SubTo(rel, point, g.Origin())

	var v mat.VecDense
	v.MulVec(&inv, mat.NewVecDense(d, rel))
	index := v.RawVector().Data
	floats.Div(index, g.Spacing())
	return index, nil
}

// Validate checks that every geometry vector matches the dimension, that
// spacing is positive and that every axis holds at least one voxel.
func Validate(g Geometry) error {
	d := g.Dimension()
	if d < 1 {
		return fmt.Errorf("%w: image has no axes", ErrSize)
	}
	if n := len(g.Origin()); n != d {
		return fmt.Errorf("%w: origin has %d components, image has %d axes", ErrDimension, n, d)
	}
	spacing := g.Spacing()
	if len(spacing) != d {
		return fmt.Errorf("%w: spacing has %d components, image has %d axes", ErrDimension, len(spacing), d)
	}
	dir := g.Direction()
	if dir == nil {
		return fmt.Errorf("%w: direction is not set", ErrDimension)
	}
	if r, c := dir.Dims(); r != d || c != d {
		return fmt.Errorf("%w: direction is %dx%d, image has %d axes", ErrDimension, r, c, d)
	}
	size := g.Size()
	if len(size) != d {
		return fmt.Errorf("%w: size has %d components, image has %d axes", ErrDimension, len(size), d)
	}
	for i, n := range size {
		if n < 1 {
			return fmt.Errorf("%w: axis %d has size %d", ErrSize, i, n)
		}
	}
	for i, s := range spacing {
		if !(s > 0) {
			return fmt.Errorf("%w: axis %d has spacing %g", ErrSpacing, i, s)
		}
	}
	return nil
}

// GeometricCenter returns the physical position of the index-space midpoint
// (size-1)/2 of g.
func GeometricCenter(g Geometry) []float64 {
	size := g.Size()
	mid := make([]float64, len(size))
	for i, n := range size {
		mid[i] = float64(n-1) / 2
	}
	return g.IndexToPhysical(mid)
}

// Corners returns the 2^D physical bounding corners of g. Corner k takes the
// last index along axis i when bit i of k is set and index zero otherwise.
func Corners(g Geometry) [][]float64 {
	size := g.Size()
	d := len(size)
	corners := make([][]float64, 0, 1<<d)
	index := make([]float64, d)
	for k := 0; k < 1<<d; k++ {
		for i := 0; i < d; i++ {
			index[i] = 0
			if k&(1<<i) != 0 {
				index[i] = float64(size[i] - 1)
			}
		}
		corners = append(corners, g.IndexToPhysical(index))
	}
	return corners
}

// MinCorner returns the coordinate-wise minimum over all bounding corners.
func MinCorner(g Geometry) []float64 {
	corners := Corners(g)
	lo := append([]float64(nil), corners[0]...)
	for _, c := range corners[1:] {
		for i, v := range c {
			lo[i] = math.Min(lo[i], v)
		}
	}
	return lo
}

// SameGeometry reports whether a and b share size, origin, spacing and
// direction within tol.
func SameGeometry(a, b Geometry, tol float64) bool {
	if a.Dimension() != b.Dimension() {
		return false
	}
	sa, sb := a.Size(), b.Size()
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	if !floats.EqualApprox(a.Origin(), b.Origin(), tol) {
		return false
	}
	if !floats.EqualApprox(a.Spacing(), b.Spacing(), tol) {
		return false
	}
	return mat.EqualApprox(a.Direction(), b.Direction(), tol)
}
