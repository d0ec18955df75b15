package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"transforminit/pkg/config"
	"transforminit/pkg/imageio"
	"transforminit/pkg/initializer"
	"transforminit/pkg/spatial"
	"transforminit/pkg/transform"
	"transforminit/pkg/visualization"
)

// Result is printed as YAML after a successful run
type Result struct {
	Mode                  string    `yaml:"mode"`
	Center                []float64 `yaml:"center,flow"`
	Translation           []float64 `yaml:"translation,flow"`
	FixedCenterOfGravity  []float64 `yaml:"fixedCenterOfGravity,flow,omitempty"`
	MovingCenterOfGravity []float64 `yaml:"movingCenterOfGravity,flow,omitempty"`
	ParameterFile         string    `yaml:"parameterFile,omitempty"`
	Slices                []string  `yaml:"slices,omitempty"`
}

type runOptions struct {
	configPath    string
	mode          string
	fixed         string
	moving        string
	fixedMask     string
	movingMask    string
	workers       int
	logLevel      string
	parameterFile string
	sliceDir      string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute the initial center and translation.",
		Long: `Loads the fixed and moving images named in the configuration file or on
the command line, runs the selected initialization mode and prints the center
of rotation and translation as YAML. Flags override the configuration file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			result, err := run(cfg, logger)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "centerinit.yaml", "Configuration file")
	flags.StringVarP(&opts.mode, "mode", "m", "", "Initialization mode: geometry, moments, origins or geometrytop")
	flags.StringVar(&opts.fixed, "fixed", "", "Fixed image file or slice directory")
	flags.StringVar(&opts.moving, "moving", "", "Moving image file or slice directory")
	flags.StringVar(&opts.fixedMask, "fixed-mask", "", "Fixed image mask")
	flags.StringVar(&opts.movingMask, "moving-mask", "", "Moving image mask")
	flags.IntVar(&opts.workers, "workers", 0, "Goroutines used for moments (0 = all CPUs)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.parameterFile, "parameter-file", "", "Write the transform as an elastix parameter file")
	flags.StringVar(&opts.sliceDir, "slice-dir", "", "Save slices through the computed center to this directory")
	return cmd
}

// apply copies every flag the user set into cfg.
func (o *runOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("mode") {
		cfg.Mode = o.mode
	}
	if changed("fixed") {
		cfg.Fixed.Path = o.fixed
	}
	if changed("moving") {
		cfg.Moving.Path = o.moving
	}
	if changed("fixed-mask") {
		cfg.Fixed.Mask = o.fixedMask
	}
	if changed("moving-mask") {
		cfg.Moving.Mask = o.movingMask
	}
	if changed("workers") {
		cfg.Processing.Workers = o.workers
	}
	if changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if changed("parameter-file") {
		cfg.Output.ParameterFile = o.parameterFile
	}
	if changed("slice-dir") {
		cfg.Output.SliceDir = o.sliceDir
	}
}

func newLogger(cfg *config.Config, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	if cfg.Logging.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// source is a loaded image together with its optional mask
type source struct {
	geometry spatial.Geometry
	mask     *spatial.Image
}

// loadSource reads an image (or builds a geometry-only header) and applies
// the configured geometry to it and to its mask.
func loadSource(name string, src config.ImageSource, logger *logrus.Logger) (*source, error) {
	var (
		s      = &source{}
		header *spatial.Header
	)
	if src.Path != "" {
		img, err := imageio.Load(src.Path)
		if err != nil {
			return nil, fmt.Errorf("%s image: %w", name, err)
		}
		header, s.geometry = &img.Header, img
	} else {
		header = spatial.NewHeader(src.Size)
		s.geometry = header
	}

	spacing := src.Spacing
	if src.SliceGap > 0 && header.Dimension() > 0 {
		if len(spacing) == 0 {
			spacing = header.Spacing()
		} else {
			spacing = append([]float64(nil), spacing...)
		}
		spacing[len(spacing)-1] = src.SliceGap
	}
	if err := imageio.ApplyGeometry(header, src.Origin, spacing, src.Direction); err != nil {
		return nil, fmt.Errorf("%s image geometry: %w", name, err)
	}

	if src.Mask != "" {
		mask, err := imageio.Load(src.Mask)
		if err != nil {
			return nil, fmt.Errorf("%s mask: %w", name, err)
		}
		if mask.Dimension() == header.Dimension() {
			// A mask lives on the grid of its image.
			if err := imageio.ApplyGeometry(&mask.Header, header.Origin(), header.Spacing(), flatten(header)); err != nil {
				return nil, fmt.Errorf("%s mask geometry: %w", name, err)
			}
		}
		s.mask = mask
	}

	logger.WithFields(logrus.Fields{
		"image":   name,
		"size":    s.geometry.Size(),
		"origin":  s.geometry.Origin(),
		"spacing": s.geometry.Spacing(),
		"masked":  s.mask != nil,
	}).Info("Loaded image")
	return s, nil
}

func flatten(h *spatial.Header) []float64 {
	dir := h.Direction()
	r, c := dir.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, dir.At(i, j))
		}
	}
	return out
}

// run loads both images, initializes an affine transform and writes the
// optional outputs.
func run(cfg *config.Config, logger *logrus.Logger) (*Result, error) {
	mode, err := initializer.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	fixed, err := loadSource("fixed", cfg.Fixed, logger)
	if err != nil {
		return nil, err
	}
	moving, err := loadSource("moving", cfg.Moving, logger)
	if err != nil {
		return nil, err
	}

	tx := transform.NewAffine(fixed.geometry.Dimension())
	in := initializer.New(
		initializer.WithLogger(logger),
		initializer.WithWorkers(cfg.Processing.Workers),
	)
	in.SetTransform(tx)
	in.SetFixedImage(fixed.geometry)
	in.SetMovingImage(moving.geometry)
	if fixed.mask != nil {
		in.SetFixedImageMask(fixed.mask)
	}
	if moving.mask != nil {
		in.SetMovingImageMask(moving.mask)
	}
	if err := in.SetMode(mode); err != nil {
		return nil, err
	}

	if err := in.InitializeTransform(); err != nil {
		return nil, err
	}
	logger.WithFields(in.DebugFields()).Debug("Initializer state")

	result := &Result{
		Mode:        mode.String(),
		Center:      tx.Center(),
		Translation: tx.Translation(),
	}
	if c := in.FixedCalculator(); c != nil {
		result.FixedCenterOfGravity = c.CenterOfGravity()
	}
	if c := in.MovingCalculator(); c != nil {
		result.MovingCenterOfGravity = c.CenterOfGravity()
	}

	if path := cfg.Output.ParameterFile; path != "" {
		if err := writeParameterFile(path, tx); err != nil {
			return nil, err
		}
		result.ParameterFile = path
	}

	if dir := cfg.Output.SliceDir; dir != "" {
		// The center lives in fixed space; the transform maps it to
		// center + translation in moving space.
		movingPoint := tx.TransformPoint(tx.Center())
		for _, item := range []struct {
			name  string
			g     spatial.Geometry
			point []float64
		}{
			{"fixed", fixed.geometry, tx.Center()},
			{"moving", moving.geometry, movingPoint},
		} {
			img, ok := item.g.(spatial.Sampler)
			if !ok {
				logger.WithField("image", item.name).Warn("Skipping slices of an image without voxels")
				continue
			}
			files, err := saveSlices(img, item.point, dir, item.name)
			if err != nil {
				return nil, fmt.Errorf("failed to save %s slices: %w", item.name, err)
			}
			result.Slices = append(result.Slices, files...)
		}
	}

	return result, nil
}

func saveSlices(img spatial.Sampler, point []float64, dir, prefix string) ([]string, error) {
	viewer, err := visualization.NewViewer(img)
	if err != nil {
		return nil, err
	}
	return viewer.SaveSlicesThrough(point, dir, prefix)
}

func writeParameterFile(path string, tx *transform.Affine) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating parameter file directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := transform.WriteParameterFile(f, tx); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printResult(w io.Writer, result *Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(result); err != nil {
		return err
	}
	return enc.Close()
}
