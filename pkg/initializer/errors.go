package initializer

import (
	"errors"

	"transforminit/pkg/moments"
)

// Sentinel errors returned by InitializeTransform. Use errors.Is() to check
// for a specific condition. Each one reflects a configuration defect, so none
// is worth retrying.
var (
	// ErrMissingInput indicates that the transform, fixed image or moving
	// image is not bound, or that an image lacks the intensities Moments mode
	// needs.
	ErrMissingInput = errors.New("initializer: missing input")

	// ErrDimensionMismatch indicates that the images and the transform do not
	// share one dimension.
	ErrDimensionMismatch = errors.New("initializer: dimension mismatch")

	// ErrDegenerateGeometry indicates an image with an empty axis or a
	// non-positive spacing.
	ErrDegenerateGeometry = errors.New("initializer: degenerate geometry")

	// ErrMaskGeometryMismatch indicates a mask whose geometry differs from its
	// image. It is the error reported by the moments calculator.
	ErrMaskGeometryMismatch = moments.ErrMaskGeometryMismatch
)
