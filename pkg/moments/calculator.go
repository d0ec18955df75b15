// Package moments computes intensity moments of an image in physical space:
// total mass, center of gravity, second central moments and the principal
// moments and axes derived from them.
package moments

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"transforminit/pkg/spatial"
)

var (
	// ErrMaskGeometryMismatch indicates a mask whose geometry differs from the
	// image it restricts.
	ErrMaskGeometryMismatch = errors.New("moments: mask geometry does not match image")

	// ErrZeroMass indicates that the intensities inside the mask sum to zero,
	// so no center of gravity exists.
	ErrZeroMass = errors.New("moments: total mass of the image is zero")

	// ErrEigen indicates that the second moments could not be decomposed.
	ErrEigen = errors.New("moments: eigen decomposition of second moments failed")
)

// Option configures a Calculator.
type Option func(*Calculator)

// WithMask restricts the computation to voxels inside m.
func WithMask(m spatial.Mask) Option {
	return func(c *Calculator) {
		c.mask = m
	}
}

// WithWorkers sets how many goroutines traverse the voxels. Values below one
// select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(c *Calculator) {
		c.workers = n
	}
}

// Calculator holds the moments of one image. Results are only available after
// a successful Compute.
type Calculator struct {
	image   spatial.Sampler
	mask    spatial.Mask
	workers int

	computed         bool
	mass             float64
	firstMoments     []float64
	centerOfGravity  []float64
	secondMoments    *mat.SymDense
	principalMoments []float64
	principalAxes    *mat.Dense
}

// New creates a calculator for img.
func New(img spatial.Sampler, opts ...Option) *Calculator {
	c := &Calculator{image: img}
	for _, opt := range opts {
		opt(c)
	}
	if c.workers < 1 {
		c.workers = runtime.NumCPU()
	}
	return c
}

// partial holds the sums gathered over one contiguous run of voxels.
type partial struct {
	// marginals[i][k] is the mass of all voxels whose index along axis i is k
	marginals [][]float64
	// cross[i*d+j] is the sum of w * index_i * index_j
	cross []float64
}

func newPartial(size []int) partial {
	d := len(size)
	p := partial{
		marginals: make([][]float64, d),
		cross:     make([]float64, d*d),
	}
	for i, n := range size {
		p.marginals[i] = make([]float64, n)
	}
	return p
}

// Compute traverses the image and derives all moments. Voxels are split into
// contiguous chunks, one per worker, and the partial sums are merged in chunk
// order so the result does not depend on goroutine scheduling.
func (c *Calculator) Compute() error {
	c.reset()

	if err := spatial.Validate(c.image); err != nil {
		return err
	}
	if c.mask != nil && !spatial.SameGeometry(c.image, c.mask, spatial.DefaultTolerance) {
		return fmt.Errorf("%w: image size %v, mask size %v", ErrMaskGeometryMismatch, c.image.Size(), c.mask.Size())
	}

	size := c.image.Size()
	d := len(size)
	n := spatial.NumVoxels(size)

	workers := c.workers
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers
	partials := make([]partial, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		partials[w] = newPartial(size)
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(p *partial, start, end int) {
			defer wg.Done()
			c.accumulate(p, size, start, end)
		}(&partials[w], start, end)
	}
	wg.Wait()

	total := newPartial(size)
	for _, p := range partials {
		for i := range total.marginals {
			floats.Add(total.marginals[i], p.marginals[i])
		}
		floats.Add(total.cross, p.cross)
	}

	mass := floats.Sum(total.marginals[0])
	if math.Abs(mass) < epsilon {
		return ErrZeroMass
	}

	// First moments in index space: the weighted mean position along each
	// axis, weighted by that axis' marginal mass.
	first := make([]float64, d)
	for i, marginal := range total.marginals {
		positions := make([]float64, len(marginal))
		for k := range positions {
			positions[k] = float64(k)
		}
		first[i] = stat.Mean(positions, marginal)
	}

	// Central second moments in index space.
	indexCov := mat.NewDense(d, d, nil)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			indexCov.Set(i, j, total.cross[i*d+j]/mass-first[i]*first[j])
		}
	}

	// Physical coordinates are A·index + origin with A = direction·diag(spacing),
	// so the physical covariance is A·C·Aᵀ.
	a := c.image.Direction()
	spacing := c.image.Spacing()
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			a.Set(i, j, a.At(i, j)*spacing[j])
		}
	}
	var tmp, phys mat.Dense
	tmp.Mul(a, indexCov)
	phys.Mul(&tmp, a.T())

	second := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			second.SetSym(i, j, (phys.At(i, j)+phys.At(j, i))/2)
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(second, true); !ok {
		return ErrEigen
	}
	var vectors mat.Dense
	eig.VectorsTo(&vectors)
	axes := mat.DenseCopyOf(vectors.T())
	// Keep the axes a proper rotation.
	if mat.Det(axes) < 0 {
		for j := 0; j < d; j++ {
			axes.Set(d-1, j, -axes.At(d-1, j))
		}
	}

	c.mass = mass
	c.firstMoments = first
	c.centerOfGravity = c.image.IndexToPhysical(first)
	c.secondMoments = second
	c.principalMoments = eig.Values(nil)
	c.principalAxes = axes
	c.computed = true
	return nil
}

const epsilon = 2.220446049250313e-16

func (c *Calculator) accumulate(p *partial, size []int, start, end int) {
	d := len(size)
	index := make([]int, d)
	spatial.IndexAt(size, start, index)

	for off := start; off < end; off++ {
		if c.mask == nil || c.mask.Inside(index) {
			if w := c.image.At(index); w != 0 {
				for i, k := range index {
					p.marginals[i][k] += w
				}
				for i := 0; i < d; i++ {
					wi := w * float64(index[i])
					for j := 0; j < d; j++ {
						p.cross[i*d+j] += wi * float64(index[j])
					}
				}
			}
		}
		next(index, size)
	}
}

// next advances index by one voxel, axis 0 fastest.
func next(index, size []int) {
	for i := range index {
		index[i]++
		if index[i] < size[i] {
			return
		}
		index[i] = 0
	}
}

func (c *Calculator) reset() {
	c.computed = false
	c.mass = 0
	c.firstMoments = nil
	c.centerOfGravity = nil
	c.secondMoments = nil
	c.principalMoments = nil
	c.principalAxes = nil
}

// Computed reports whether the last Compute succeeded.
func (c *Calculator) Computed() bool { return c.computed }

// TotalMass returns the sum of intensities inside the mask.
func (c *Calculator) TotalMass() float64 { return c.mass }

// FirstMoments returns the center of gravity as a continuous index.
func (c *Calculator) FirstMoments() []float64 {
	return append([]float64(nil), c.firstMoments...)
}

// CenterOfGravity returns the intensity-weighted centroid in physical space.
func (c *Calculator) CenterOfGravity() []float64 {
	if !c.computed {
		return nil
	}
	return append([]float64(nil), c.centerOfGravity...)
}

// SecondMoments returns the physical central second moments normalized by
// the total mass.
func (c *Calculator) SecondMoments() *mat.SymDense {
	if !c.computed {
		return nil
	}
	n, _ := c.secondMoments.Dims()
	s := mat.NewSymDense(n, nil)
	s.CopySym(c.secondMoments)
	return s
}

// PrincipalMoments returns the eigenvalues of the second moments in
// ascending order.
func (c *Calculator) PrincipalMoments() []float64 {
	return append([]float64(nil), c.principalMoments...)
}

// PrincipalAxes returns the principal axes, one per row, ordered like
// PrincipalMoments.
func (c *Calculator) PrincipalAxes() *mat.Dense {
	if !c.computed {
		return nil
	}
	return mat.DenseCopyOf(c.principalAxes)
}
