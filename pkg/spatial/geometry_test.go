package spatial

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const eps = 1e-9

// rotation2D returns a 2D rotation by theta radians
func rotation2D(theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	return mat.NewDense(2, 2, []float64{c, -s, s, c})
}

// TestNewHeaderDefaults verifies the default geometry of a new header
func TestNewHeaderDefaults(t *testing.T) {
	h := NewHeader([]int{4, 5, 6})

	if h.Dimension() != 3 {
		t.Fatalf("Expected dimension 3, got %d", h.Dimension())
	}
	if !floats.Equal(h.Origin(), []float64{0, 0, 0}) {
		t.Errorf("Expected zero origin, got %v", h.Origin())
	}
	if !floats.Equal(h.Spacing(), []float64{1, 1, 1}) {
		t.Errorf("Expected unit spacing, got %v", h.Spacing())
	}
	if !mat.Equal(h.Direction(), identity(3)) {
		t.Errorf("Expected identity direction, got %v", mat.Formatted(h.Direction()))
	}
	if err := Validate(h); err != nil {
		t.Errorf("Expected valid header, got %v", err)
	}
}

// TestHeaderSetters verifies that setters reject malformed input
func TestHeaderSetters(t *testing.T) {
	h := NewHeader([]int{3, 3})

	if err := h.SetOrigin([]float64{1}); !errors.Is(err, ErrDimension) {
		t.Errorf("Expected ErrDimension for short origin, got %v", err)
	}
	if err := h.SetSpacing([]float64{1, 0}); !errors.Is(err, ErrSpacing) {
		t.Errorf("Expected ErrSpacing for zero spacing, got %v", err)
	}
	if err := h.SetDirection(mat.NewDense(3, 3, nil)); !errors.Is(err, ErrDimension) {
		t.Errorf("Expected ErrDimension for 3x3 direction, got %v", err)
	}
	if err := h.SetDirection(mat.NewDense(2, 2, []float64{1, 2, 2, 4})); !errors.Is(err, ErrDirection) {
		t.Errorf("Expected ErrDirection for singular direction, got %v", err)
	}

	if err := h.SetOrigin([]float64{1, 2}); err != nil {
		t.Fatalf("SetOrigin failed: %v", err)
	}
	origin := h.Origin()
	origin[0] = 100
	if h.Origin()[0] != 1 {
		t.Errorf("Origin returned a shared slice")
	}
}

// TestIndexToPhysical checks the mapping through spacing, direction and origin
func TestIndexToPhysical(t *testing.T) {
	h := NewHeader([]int{10, 10})
	if err := h.SetOrigin([]float64{5, -3}); err != nil {
		t.Fatal(err)
	}
	if err := h.SetSpacing([]float64{2, 0.5}); err != nil {
		t.Fatal(err)
	}
	if err := h.SetDirection(rotation2D(math.Pi / 2)); err != nil {
		t.Fatal(err)
	}

	// index (1, 4) -> scaled (2, 2) -> rotated (-2, 2) -> + origin
	got := h.IndexToPhysical([]float64{1, 4})
	want := []float64{3, -1}
	if !floats.EqualApprox(got, want, eps) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	back, err := h.PhysicalToIndex(got)
	if err != nil {
		t.Fatalf("PhysicalToIndex failed: %v", err)
	}
	if !floats.EqualApprox(back, []float64{1, 4}, eps) {
		t.Errorf("Expected round trip to (1, 4), got %v", back)
	}
}

// TestGeometricCenter covers the documented 10x10 example
func TestGeometricCenter(t *testing.T) {
	h := NewHeader([]int{10, 10})
	got := GeometricCenter(h)
	if !floats.EqualApprox(got, []float64{4.5, 4.5}, eps) {
		t.Errorf("Expected (4.5, 4.5), got %v", got)
	}

	if err := h.SetSpacing([]float64{2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := h.SetOrigin([]float64{1, 1}); err != nil {
		t.Fatal(err)
	}
	got = GeometricCenter(h)
	if !floats.EqualApprox(got, []float64{10, 14.5}, eps) {
		t.Errorf("Expected (10, 14.5), got %v", got)
	}
}

// TestCorners verifies corner enumeration and the minimum corner
func TestCorners(t *testing.T) {
	h := NewHeader([]int{3, 5, 2})
	corners := Corners(h)
	if len(corners) != 8 {
		t.Fatalf("Expected 8 corners, got %d", len(corners))
	}
	if !floats.Equal(corners[0], []float64{0, 0, 0}) {
		t.Errorf("Expected first corner at origin, got %v", corners[0])
	}
	if !floats.Equal(corners[7], []float64{2, 4, 1}) {
		t.Errorf("Expected last corner at (2, 4, 1), got %v", corners[7])
	}
	if !floats.Equal(corners[2], []float64{0, 4, 0}) {
		t.Errorf("Expected corner 2 at (0, 4, 0), got %v", corners[2])
	}

	if err := h.SetOrigin([]float64{7, 8, 9}); err != nil {
		t.Fatal(err)
	}
	if got := MinCorner(h); !floats.Equal(got, []float64{7, 8, 9}) {
		t.Errorf("Expected min corner at origin with identity direction, got %v", got)
	}

	// A flipped axis moves the minimum away from the origin.
	flip := mat.NewDense(3, 3, []float64{-1, 0, 0, 0, 1, 0, 0, 0, 1})
	if err := h.SetDirection(flip); err != nil {
		t.Fatal(err)
	}
	if got := MinCorner(h); !floats.EqualApprox(got, []float64{5, 8, 9}, eps) {
		t.Errorf("Expected min corner (5, 8, 9) with flipped x axis, got %v", got)
	}
}

// TestValidate checks degenerate and inconsistent geometries
func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		size []int
		want error
	}{
		{"valid", []int{2, 2}, nil},
		{"zero axis", []int{4, 0}, ErrSize},
		{"negative axis", []int{-1, 3}, ErrSize},
		{"no axes", nil, ErrSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(NewHeader(tt.size))
			if tt.want == nil && err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

// TestSameGeometry verifies geometry comparison with tolerance
func TestSameGeometry(t *testing.T) {
	a := NewHeader([]int{4, 4})
	b := a.Clone()
	if !SameGeometry(a, b, DefaultTolerance) {
		t.Fatal("Expected clones to share geometry")
	}

	if err := b.SetOrigin([]float64{1e-8, 0}); err != nil {
		t.Fatal(err)
	}
	if !SameGeometry(a, b, DefaultTolerance) {
		t.Error("Expected origin difference below tolerance to be ignored")
	}

	if err := b.SetOrigin([]float64{1, 0}); err != nil {
		t.Fatal(err)
	}
	if SameGeometry(a, b, DefaultTolerance) {
		t.Error("Expected different origins to differ")
	}

	if SameGeometry(a, NewHeader([]int{4, 5}), DefaultTolerance) {
		t.Error("Expected different sizes to differ")
	}
	if SameGeometry(a, NewHeader([]int{4, 4, 1}), DefaultTolerance) {
		t.Error("Expected different dimensions to differ")
	}
}
