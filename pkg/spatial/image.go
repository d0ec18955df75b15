package spatial

import "fmt"

// Sampler is a geometry with voxel intensities.
type Sampler interface {
	Geometry
	At(index []int) float64
}

// Mask is a geometry that marks which voxels take part in a computation.
type Mask interface {
	Geometry
	Inside(index []int) bool
}

// Image is a dense image with float64 voxels stored with axis 0 varying
// fastest.
type Image struct {
	Header
	pix []float64
}

// NewImage creates a zero-filled image with default geometry.
func NewImage(size []int) *Image {
	return NewImageFromHeader(NewHeader(size))
}

// NewImageFromHeader creates a zero-filled image that copies the geometry of
// h.
func NewImageFromHeader(h *Header) *Image {
	img := &Image{Header: *h.Clone()}
	img.pix = make([]float64, NumVoxels(img.size))
	return img
}

// NumVoxels returns the number of voxels in an image of the given size.
// Axes with a non-positive size make the image empty.
func NumVoxels(size []int) int {
	if len(size) == 0 {
		return 0
	}
	n := 1
	for _, s := range size {
		if s <= 0 {
			return 0
		}
		n *= s
	}
	return n
}

// Offset returns the position of index in a buffer laid out for size.
func Offset(size []int, index []int) int {
	off, stride := 0, 1
	for i, s := range size {
		off += index[i] * stride
		stride *= s
	}
	return off
}

// IndexAt writes into dst the index stored at offset in a buffer laid out for
// size.
func IndexAt(size []int, offset int, dst []int) {
	for i, s := range size {
		dst[i] = offset % s
		offset /= s
	}
}

func (img *Image) contains(index []int) bool {
	if len(index) != len(img.size) {
		return false
	}
	for i, v := range index {
		if v < 0 || v >= img.size[i] {
			return false
		}
	}
	return true
}

// At returns the voxel value at index, or 0 outside the image.
func (img *Image) At(index []int) float64 {
	if !img.contains(index) {
		return 0
	}
	return img.pix[Offset(img.size, index)]
}

// Set stores v at index.
func (img *Image) Set(index []int, v float64) error {
	if !img.contains(index) {
		return fmt.Errorf("%w: index %v outside size %v", ErrDimension, index, img.size)
	}
	img.pix[Offset(img.size, index)] = v
	return nil
}

// Inside reports whether the voxel at index is non-zero, which lets any image
// act as a binary mask.
func (img *Image) Inside(index []int) bool {
	return img.At(index) != 0
}

// Pixels returns the voxel buffer. It is shared with the image.
func (img *Image) Pixels() []float64 { return img.pix }

// Fill sets every voxel to v.
func (img *Image) Fill(v float64) {
	for i := range img.pix {
		img.pix[i] = v
	}
}
