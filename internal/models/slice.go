package models

import (
	"image"
)

// Slice represents a single 2D slice read from a slice directory
type Slice struct {
	// Image is the decoded slice
	Image image.Image

	// Index is the position of this slice in the sorted sequence
	Index int

	// Number is the slice number embedded in the filename
	Number int

	// Filename is the original filename of the slice
	Filename string
}

// Width returns the slice width in pixels
func (s Slice) Width() int { return s.Image.Bounds().Dx() }

// Height returns the slice height in pixels
func (s Slice) Height() int { return s.Image.Bounds().Dy() }

// Stack is an ordered sequence of equally sized slices
type Stack struct {
	Slices []Slice

	// Width and Height are shared by every slice
	Width, Height int
}

// Depth returns the number of slices
func (s *Stack) Depth() int { return len(s.Slices) }
