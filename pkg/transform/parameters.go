package transform

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteParameterFile writes a in the parenthesised key/value format used by
// elastix transform parameter files.
func WriteParameterFile(w io.Writer, a *Affine) error {
	bw := bufio.NewWriter(w)
	params := a.Parameters()

	lines := []string{
		`(Transform "AffineTransform")`,
		fmt.Sprintf("(NumberOfParameters %d)", len(params)),
		fmt.Sprintf("(TransformParameters %s)", joinFloats(params)),
		`(InitialTransformParametersFileName "NoInitialTransform")`,
		fmt.Sprintf("(FixedImageDimension %d)", a.InputSpaceDimension()),
		fmt.Sprintf("(MovingImageDimension %d)", a.OutputSpaceDimension()),
		fmt.Sprintf("(CenterOfRotationPoint %s)", joinFloats(a.Center())),
	}
	for _, line := range lines {
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("error writing parameter file: %w", err)
		}
	}
	return bw.Flush()
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'f', 6, 64)
	}
	return strings.Join(parts, " ")
}
