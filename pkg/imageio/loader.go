// Package imageio reads 2D images and directories of numbered 2D slices into
// spatial images with intensities scaled to [0, 1].
package imageio

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/mat"

	// Register decoders for formats imaging does not pull in itself.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"transforminit/internal/models"
	"transforminit/pkg/spatial"
)

var supportedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// Load reads path as a slice directory if it is a directory and as a single
// 2D image otherwise.
func Load(path string) (*spatial.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		stack, err := ReadStack(path)
		if err != nil {
			return nil, err
		}
		return StackToImage(stack), nil
	}
	return LoadImage(path)
}

// LoadImage reads a single 2D image.
func LoadImage(path string) (*spatial.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to load image %s: %w", path, err)
	}
	return FromImage(img), nil
}

// FromImage converts img to a 2D spatial image holding its 16-bit luminance
// scaled to [0, 1]. Axis 0 runs along x, axis 1 along y.
func FromImage(img image.Image) *spatial.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	out := spatial.NewImage([]int{width, height})
	copyLuminance(out.Pixels(), img)
	return out
}

func copyLuminance(dst []float64, img image.Image) {
	bounds := img.Bounds()
	width := bounds.Dx()
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < width; x++ {
			g := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
			dst[y*width+x] = float64(g.Y) / 65535.0
		}
	}
}

// ReadStack reads every supported image in dir, ordered by the number
// embedded in the filename. All slices must share one size.
func ReadStack(dir string) (*models.Stack, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if supportedExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no images found in %s", dir)
	}

	// Sort by slice number so that slice_2 comes before slice_10.
	sort.SliceStable(names, func(i, j int) bool {
		ni, nj := extractNumber(names[i]), extractNumber(names[j])
		if ni != nj {
			return ni < nj
		}
		return names[i] < names[j]
	})

	stack := &models.Stack{}
	for i, name := range names {
		img, err := imaging.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to load slice %s: %w", name, err)
		}
		slice := models.Slice{Image: img, Index: i, Number: extractNumber(name), Filename: name}
		if i == 0 {
			stack.Width, stack.Height = slice.Width(), slice.Height()
		} else if slice.Width() != stack.Width || slice.Height() != stack.Height {
			return nil, fmt.Errorf("slice %s is %dx%d, expected %dx%d",
				name, slice.Width(), slice.Height(), stack.Width, stack.Height)
		}
		stack.Slices = append(stack.Slices, slice)
	}
	return stack, nil
}

// StackToImage stacks the slices along axis 2.
func StackToImage(stack *models.Stack) *spatial.Image {
	out := spatial.NewImage([]int{stack.Width, stack.Height, stack.Depth()})
	plane := stack.Width * stack.Height
	pix := out.Pixels()
	for i, s := range stack.Slices {
		copyLuminance(pix[i*plane:(i+1)*plane], s.Image)
	}
	return out
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	var digits strings.Builder
	for _, c := range base {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	num, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return num
}

// ApplyGeometry overrides the geometry of h. Empty arguments keep the
// current value; direction is given in row-major order.
func ApplyGeometry(h *spatial.Header, origin, spacing, direction []float64) error {
	if len(origin) > 0 {
		if err := h.SetOrigin(origin); err != nil {
			return err
		}
	}
	if len(spacing) > 0 {
		if err := h.SetSpacing(spacing); err != nil {
			return err
		}
	}
	if len(direction) > 0 {
		d := h.Dimension()
		if len(direction) != d*d {
			return fmt.Errorf("%w: direction has %d components, expected %d", spatial.ErrDimension, len(direction), d*d)
		}
		if err := h.SetDirection(mat.NewDense(d, d, append([]float64(nil), direction...))); err != nil {
			return err
		}
	}
	return nil
}
