// Package initializer computes a starting center of rotation and translation
// for a centered transform from a fixed and a moving image.
//
// Four strategies are available:
//
//   - Geometry: the geometric center of the fixed image is the center of
//     rotation and the vector from the fixed to the moving geometric center
//     is the translation. This assumes the objects to register are centered
//     in their images.
//   - Moments: the intensity center of mass of the moving image is the center
//     of rotation and the vector between both centers of mass is the
//     translation. This assumes similar intensity distributions, which rarely
//     holds across modalities.
//   - Origins: the translation is the vector from the fixed origin to the
//     moving origin and the center is the moving geometric center translated
//     back by it.
//   - GeometryTop: the translation is the vector between the minimum physical
//     bounding corners of both images and the center is the fixed geometric
//     center.
//
// Typical use:
//
//	in := initializer.New()
//	in.SetTransform(tx)
//	in.SetFixedImage(fixed)
//	in.SetMovingImage(moving)
//	in.MomentsOn()
//	if err := in.InitializeTransform(); err != nil {
//		return err
//	}
package initializer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"transforminit/pkg/moments"
	"transforminit/pkg/spatial"
	"transforminit/pkg/transform"
)

// Option configures an Initializer.
type Option func(*Initializer)

// WithLogger sets the logger used for debug output. The standard logrus
// logger is used when no logger is given.
func WithLogger(l *logrus.Logger) Option {
	return func(in *Initializer) {
		in.log = l
	}
}

// WithWorkers sets how many goroutines each moments calculator uses. Values
// below one select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(in *Initializer) {
		in.workers = n
	}
}

// Initializer holds the inputs of one initialization. The images, masks and
// transform are borrowed from the caller and must stay unchanged while
// InitializeTransform runs. An Initializer is not safe for concurrent use.
type Initializer struct {
	transform  transform.Transform
	fixed      spatial.Geometry
	moving     spatial.Geometry
	fixedMask  spatial.Mask
	movingMask spatial.Mask

	mode    Mode
	workers int
	log     *logrus.Logger

	fixedCalculator  *moments.Calculator
	movingCalculator *moments.Calculator

	center      []float64
	translation []float64
}

// New creates an initializer in Geometry mode.
func New(opts ...Option) *Initializer {
	in := &Initializer{mode: Geometry}
	for _, opt := range opts {
		opt(in)
	}
	if in.log == nil {
		in.log = logrus.StandardLogger()
	}
	return in
}

// SetTransform binds the transform to initialize.
func (in *Initializer) SetTransform(t transform.Transform) { in.transform = t }

// SetFixedImage binds the fixed image. Moments mode requires a
// spatial.Sampler; the other modes only read geometry.
func (in *Initializer) SetFixedImage(img spatial.Geometry) { in.fixed = img }

// SetMovingImage binds the moving image.
func (in *Initializer) SetMovingImage(img spatial.Geometry) { in.moving = img }

// SetFixedImageMask restricts the fixed center of mass to voxels inside m.
// Pass nil to remove the mask.
func (in *Initializer) SetFixedImageMask(m spatial.Mask) { in.fixedMask = m }

// SetMovingImageMask restricts the moving center of mass to voxels inside m.
func (in *Initializer) SetMovingImageMask(m spatial.Mask) { in.movingMask = m }

// Transform returns the bound transform.
func (in *Initializer) Transform() transform.Transform { return in.transform }

// GeometryOn, MomentsOn, OriginsOn and GeometryTopOn select a mode; the last
// call wins.
func (in *Initializer) GeometryOn()    { in.mode = Geometry }
func (in *Initializer) MomentsOn()     { in.mode = Moments }
func (in *Initializer) OriginsOn()     { in.mode = Origins }
func (in *Initializer) GeometryTopOn() { in.mode = GeometryTop }

// SetMode selects m.
func (in *Initializer) SetMode(m Mode) error {
	if _, ok := modeNames[m]; !ok {
		return fmt.Errorf("initializer: unknown mode %d", int(m))
	}
	in.mode = m
	return nil
}

// Mode returns the selected mode.
func (in *Initializer) Mode() Mode { return in.mode }

func (in *Initializer) UseMoments() bool { return in.mode == Moments }
func (in *Initializer) UseOrigins() bool { return in.mode == Origins }
func (in *Initializer) UseTop() bool     { return in.mode == GeometryTop }

// FixedCalculator returns the moments of the fixed image from the last
// Moments-mode run, or nil.
func (in *Initializer) FixedCalculator() *moments.Calculator { return in.fixedCalculator }

// MovingCalculator returns the moments of the moving image from the last
// Moments-mode run, or nil.
func (in *Initializer) MovingCalculator() *moments.Calculator { return in.movingCalculator }

// InitializeTransform computes the center and translation for the selected
// mode and writes them into the bound transform. On error the transform is
// left untouched.
func (in *Initializer) InitializeTransform() error {
	if err := in.validate(); err != nil {
		return err
	}

	in.fixedCalculator = nil
	in.movingCalculator = nil

	var (
		center, translation []float64
		err                 error
	)
	switch in.mode {
	case Moments:
		center, translation, err = in.fromMoments()
	case Origins:
		center, translation = in.fromOrigins()
	case GeometryTop:
		center, translation = in.fromTopCorners()
	default:
		center, translation = in.fromGeometry()
	}
	if err != nil {
		return err
	}

	in.transform.SetCenter(center)
	in.transform.SetTranslation(translation)
	in.center, in.translation = center, translation

	in.log.WithFields(logrus.Fields{
		"mode":        in.mode.String(),
		"center":      center,
		"translation": translation,
	}).Debug("Transform initialized")
	return nil
}

func (in *Initializer) validate() error {
	var missing []string
	if in.transform == nil {
		missing = append(missing, "transform")
	}
	if in.fixed == nil {
		missing = append(missing, "fixed image")
	}
	if in.moving == nil {
		missing = append(missing, "moving image")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s not set", ErrMissingInput, strings.Join(missing, ", "))
	}

	d := in.fixed.Dimension()
	if n := in.moving.Dimension(); n != d {
		return fmt.Errorf("%w: fixed image has %d axes, moving image has %d", ErrDimensionMismatch, d, n)
	}
	if n := in.transform.InputSpaceDimension(); n != d {
		return fmt.Errorf("%w: images have %d axes, transform input space has %d", ErrDimensionMismatch, d, n)
	}
	if n := in.transform.OutputSpaceDimension(); n != d {
		return fmt.Errorf("%w: images have %d axes, transform output space has %d", ErrDimensionMismatch, d, n)
	}

	if err := checkGeometry("fixed", in.fixed); err != nil {
		return err
	}
	return checkGeometry("moving", in.moving)
}

func checkGeometry(name string, g spatial.Geometry) error {
	err := spatial.Validate(g)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, spatial.ErrDimension):
		return fmt.Errorf("%w: %s image: %w", ErrDimensionMismatch, name, err)
	default:
		return fmt.Errorf("%w: %s image: %w", ErrDegenerateGeometry, name, err)
	}
}

func (in *Initializer) fromGeometry() (center, translation []float64) {
	fixedCenter := spatial.GeometricCenter(in.fixed)
	movingCenter := spatial.GeometricCenter(in.moving)
	return fixedCenter, difference(movingCenter, fixedCenter)
}

func (in *Initializer) fromOrigins() (center, translation []float64) {
	translation = difference(in.moving.Origin(), in.fixed.Origin())
	center = difference(spatial.GeometricCenter(in.moving), translation)
	return center, translation
}

func (in *Initializer) fromTopCorners() (center, translation []float64) {
	translation = difference(spatial.MinCorner(in.moving), spatial.MinCorner(in.fixed))
	return spatial.GeometricCenter(in.fixed), translation
}

func (in *Initializer) fromMoments() (center, translation []float64, err error) {
	fixed, ok := in.fixed.(spatial.Sampler)
	if !ok {
		return nil, nil, fmt.Errorf("%w: fixed image has no intensity data", ErrMissingInput)
	}
	moving, ok := in.moving.(spatial.Sampler)
	if !ok {
		return nil, nil, fmt.Errorf("%w: moving image has no intensity data", ErrMissingInput)
	}

	in.fixedCalculator = moments.New(fixed, in.calculatorOptions(in.fixedMask)...)
	in.movingCalculator = moments.New(moving, in.calculatorOptions(in.movingMask)...)

	if err := in.fixedCalculator.Compute(); err != nil {
		return nil, nil, fmt.Errorf("fixed image moments: %w", err)
	}
	if err := in.movingCalculator.Compute(); err != nil {
		return nil, nil, fmt.Errorf("moving image moments: %w", err)
	}

	fixedCenter := in.fixedCalculator.CenterOfGravity()
	movingCenter := in.movingCalculator.CenterOfGravity()
	return movingCenter, difference(movingCenter, fixedCenter), nil
}

func (in *Initializer) calculatorOptions(mask spatial.Mask) []moments.Option {
	opts := []moments.Option{moments.WithWorkers(in.workers)}
	if mask != nil {
		opts = append(opts, moments.WithMask(mask))
	}
	return opts
}

func difference(a, b []float64) []float64 {
	out := make([]float64, len(a))
	floats.SubTo(out, a, b)
	return out
}

// DebugFields describes the bindings, the mode and the last result as
// structured log fields.
func (in *Initializer) DebugFields() logrus.Fields {
	fields := logrus.Fields{
		"mode":        in.mode.String(),
		"transform":   in.transform != nil,
		"fixedImage":  in.fixed != nil,
		"movingImage": in.moving != nil,
		"fixedMask":   in.fixedMask != nil,
		"movingMask":  in.movingMask != nil,
	}
	if in.center != nil {
		fields["center"] = append([]float64(nil), in.center...)
		fields["translation"] = append([]float64(nil), in.translation...)
	}
	if c := in.fixedCalculator; c != nil && c.Computed() {
		fields["fixedCenterOfGravity"] = c.CenterOfGravity()
		fields["fixedMass"] = c.TotalMass()
	}
	if c := in.movingCalculator; c != nil && c.Computed() {
		fields["movingCenterOfGravity"] = c.CenterOfGravity()
		fields["movingMass"] = c.TotalMass()
	}
	return fields
}
