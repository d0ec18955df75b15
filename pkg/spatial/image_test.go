package spatial

import (
	"testing"
)

func TestImageAccess(t *testing.T) {
	img := NewImage([]int{3, 4, 2})
	if len(img.Pixels()) != 24 {
		t.Fatalf("Expected 24 voxels, got %d", len(img.Pixels()))
	}

	if err := img.Set([]int{2, 1, 1}, 7); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := img.At([]int{2, 1, 1}); got != 7 {
		t.Errorf("Expected 7, got %v", got)
	}
	// axis 0 varies fastest
	if got := img.Pixels()[2+1*3+1*12]; got != 7 {
		t.Errorf("Expected voxel at offset 17, got %v", got)
	}
	if !img.Inside([]int{2, 1, 1}) || img.Inside([]int{0, 0, 0}) {
		t.Error("Inside does not follow non-zero voxels")
	}

	if got := img.At([]int{3, 0, 0}); got != 0 {
		t.Errorf("Expected 0 outside the image, got %v", got)
	}
	if err := img.Set([]int{0, 4, 0}, 1); err == nil {
		t.Error("Expected error when setting outside the image")
	}
}

func TestOffsetRoundTrip(t *testing.T) {
	size := []int{5, 3, 4}
	index := make([]int, 3)
	for off := 0; off < NumVoxels(size); off++ {
		IndexAt(size, off, index)
		if got := Offset(size, index); got != off {
			t.Fatalf("Offset(%v) = %d, expected %d", index, got, off)
		}
	}
}

func TestNumVoxels(t *testing.T) {
	if n := NumVoxels([]int{2, 0, 3}); n != 0 {
		t.Errorf("Expected empty image for zero axis, got %d", n)
	}
	if n := NumVoxels(nil); n != 0 {
		t.Errorf("Expected empty image without axes, got %d", n)
	}
	if n := NumVoxels([]int{2, 5}); n != 10 {
		t.Errorf("Expected 10 voxels, got %d", n)
	}
}

func TestNewImageFromHeaderCopiesGeometry(t *testing.T) {
	h := NewHeader([]int{2, 2})
	if err := h.SetOrigin([]float64{3, 4}); err != nil {
		t.Fatal(err)
	}
	img := NewImageFromHeader(h)
	if err := h.SetOrigin([]float64{0, 0}); err != nil {
		t.Fatal(err)
	}
	if o := img.Origin(); o[0] != 3 || o[1] != 4 {
		t.Errorf("Expected image to keep origin (3, 4), got %v", o)
	}
}
