package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"

	"transforminit/pkg/spatial"
)

// markerColor is the color of the crosshair drawn at a marked point
var markerColor = color.NRGBA{R: 255, G: 40, B: 40, A: 255}

// Viewer extracts axis-aligned 2D slices from a 2D or 3D image so that a
// physical point, such as a computed center of rotation, can be inspected.
type Viewer struct {
	img  spatial.Sampler
	size []int

	// intensity window mapped to black and white
	low, high float64
}

// NewViewer creates a viewer for img. The display window spans the 1st to
// 99th percentile of the voxel intensities.
func NewViewer(img spatial.Sampler) (*Viewer, error) {
	size := img.Size()
	if d := len(size); d != 2 && d != 3 {
		return nil, fmt.Errorf("viewer supports 2D and 3D images, got %dD", d)
	}
	n := spatial.NumVoxels(size)
	if n == 0 {
		return nil, fmt.Errorf("image is empty")
	}

	values := make([]float64, n)
	index := make([]int, len(size))
	for off := range values {
		spatial.IndexAt(size, off, index)
		values[off] = img.At(index)
	}
	sort.Float64s(values)

	v := &Viewer{
		img:  img,
		size: size,
		low:  stat.Quantile(0.01, stat.Empirical, values, nil),
		high: stat.Quantile(0.99, stat.Empirical, values, nil),
	}
	if v.high <= v.low {
		v.low, v.high = values[0], values[n-1]
	}
	return v, nil
}

func (v *Viewer) gray(value float64) color.Gray16 {
	if v.high <= v.low {
		return color.Gray16{}
	}
	scaled := (value - v.low) / (v.high - v.low)
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, scaled*65535)))}
}

func (v *Viewer) depth() int {
	if len(v.size) == 2 {
		return 1
	}
	return v.size[2]
}

// ExtractSlice extracts a 2D slice along the specified axis. A 2D image only
// has the single z slice at position 0.
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray16, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	width, height, depth := v.size[0], v.size[1], v.depth()
	if len(v.size) == 2 && axis != "z" && axis != "Z" {
		return nil, fmt.Errorf("a 2D image only has z slices")
	}

	index := make([]int, len(v.size))
	var img *image.Gray16

	switch axis {
	case "x", "X":
		// Extract slice along YZ plane
		if position >= width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, width)
		}
		img = image.NewGray16(image.Rect(0, 0, depth, height))
		index[0] = position
		for y := 0; y < height; y++ {
			for z := 0; z < depth; z++ {
				index[1], index[2] = y, z
				img.SetGray16(z, y, v.gray(v.img.At(index)))
			}
		}

	case "y", "Y":
		// Extract slice along XZ plane
		if position >= height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, height)
		}
		img = image.NewGray16(image.Rect(0, 0, width, depth))
		index[1] = position
		for z := 0; z < depth; z++ {
			for x := 0; x < width; x++ {
				index[0], index[2] = x, z
				img.SetGray16(x, z, v.gray(v.img.At(index)))
			}
		}

	case "z", "Z":
		// Extract slice along XY plane
		if position >= depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, depth)
		}
		img = image.NewGray16(image.Rect(0, 0, width, height))
		if len(index) == 3 {
			index[2] = position
		}
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				index[0], index[1] = x, y
				img.SetGray16(x, y, v.gray(v.img.At(index)))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// nearestIndex returns the voxel closest to a physical point, clamped to the
// image.
func (v *Viewer) nearestIndex(point []float64) ([]int, error) {
	cont, err := spatial.PhysicalToIndex(v.img, point)
	if err != nil {
		return nil, err
	}
	index := make([]int, len(cont))
	for i, c := range cont {
		k := int(math.Round(c))
		if k < 0 {
			k = 0
		}
		if k >= v.size[i] {
			k = v.size[i] - 1
		}
		index[i] = k
	}
	return index, nil
}

// Mark draws a crosshair centered at pixel (x, y).
func Mark(img image.Image, x, y int) *image.NRGBA {
	out := imaging.Clone(img)
	b := out.Bounds()
	arm := max(2, min(b.Dx(), b.Dy())/10)
	for d := -arm; d <= arm; d++ {
		if p := image.Pt(x+d, y); p.In(b) {
			out.SetNRGBA(p.X, p.Y, markerColor)
		}
		if p := image.Pt(x, y+d); p.In(b) {
			out.SetNRGBA(p.X, p.Y, markerColor)
		}
	}
	return out
}

// SaveSlice saves an extracted slice; the format follows the file extension.
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	return imaging.Save(img, filename)
}

// SaveSlicesThrough saves the slices that contain the physical point, with
// the point marked, as <prefix>_<axis>.png in outputDir. It returns the
// written file names.
func (v *Viewer) SaveSlicesThrough(point []float64, outputDir, prefix string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}
	index, err := v.nearestIndex(point)
	if err != nil {
		return nil, err
	}

	type view struct {
		axis     string
		position int
		x, y     int
	}
	views := []view{{"z", 0, index[0], index[1]}}
	if len(index) == 3 {
		views = []view{
			{"x", index[0], index[2], index[1]},
			{"y", index[1], index[0], index[2]},
			{"z", index[2], index[0], index[1]},
		}
	}

	var files []string
	for _, vw := range views {
		slice, err := v.ExtractSlice(vw.axis, vw.position)
		if err != nil {
			return files, err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s.png", prefix, vw.axis))
		if err := v.SaveSlice(Mark(slice, vw.x, vw.y), filename); err != nil {
			return files, err
		}
		files = append(files, filename)
	}
	return files, nil
}
