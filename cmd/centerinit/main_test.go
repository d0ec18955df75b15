package main

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"gopkg.in/yaml.v3"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func parseResult(t *testing.T, out string) Result {
	t.Helper()
	var r Result
	if err := yaml.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("Failed to parse output %q: %v", out, err)
	}
	return r
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "centerinit.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunGeometryOnly(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `
mode: geometry
fixed:
  size: [10, 10]
moving:
  size: [5, 5]
logging:
  level: warn
`)
	paramPath := filepath.Join(dir, "out", "TransformParameters.txt")

	out, err := execute(t, "run", "--config", cfgPath, "--parameter-file", paramPath)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	r := parseResult(t, out)
	if r.Mode != "geometry" {
		t.Errorf("Expected mode geometry, got %q", r.Mode)
	}
	if len(r.Center) != 2 || r.Center[0] != 4.5 || r.Center[1] != 4.5 {
		t.Errorf("Expected center (4.5, 4.5), got %v", r.Center)
	}
	if len(r.Translation) != 2 || r.Translation[0] != -2.5 || r.Translation[1] != -2.5 {
		t.Errorf("Expected translation (-2.5, -2.5), got %v", r.Translation)
	}
	if r.FixedCenterOfGravity != nil {
		t.Errorf("Expected no center of gravity outside moments mode")
	}

	data, err := os.ReadFile(paramPath)
	if err != nil {
		t.Fatalf("Expected parameter file: %v", err)
	}
	if !strings.Contains(string(data), "(CenterOfRotationPoint 4.500000 4.500000)") {
		t.Errorf("Parameter file is missing the center:\n%s", data)
	}
}

func TestRunFlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `
mode: geometry
fixed:
  size: [4, 4]
  origin: [1, 2]
moving:
  size: [4, 4]
  origin: [4, 6]
logging:
  level: error
`)
	out, err := execute(t, "run", "-c", cfgPath, "--mode", "origins")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	r := parseResult(t, out)
	if r.Mode != "origins" {
		t.Errorf("Expected mode origins, got %q", r.Mode)
	}
	if r.Translation[0] != 3 || r.Translation[1] != 4 {
		t.Errorf("Expected translation (3, 4), got %v", r.Translation)
	}
	// moving center (5.5, 7.5) moved back by the translation
	if r.Center[0] != 2.5 || r.Center[1] != 3.5 {
		t.Errorf("Expected center (2.5, 3.5), got %v", r.Center)
	}
}

func TestRunMomentsFromFiles(t *testing.T) {
	dir := t.TempDir()
	// a single bright pixel moved by (3, 1)
	for name, p := range map[string]image.Point{
		"fixed.png":  {2, 2},
		"moving.png": {5, 3},
	} {
		img := image.NewGray(image.Rect(0, 0, 8, 8))
		img.SetGray(p.X, p.Y, color.Gray{Y: 255})
		if err := imaging.Save(img, filepath.Join(dir, name)); err != nil {
			t.Fatal(err)
		}
	}

	sliceDir := filepath.Join(dir, "slices")
	out, err := execute(t, "run",
		"--config", filepath.Join(dir, "missing.yaml"),
		"--mode", "moments",
		"--fixed", filepath.Join(dir, "fixed.png"),
		"--moving", filepath.Join(dir, "moving.png"),
		"--workers", "2",
		"--log-level", "error",
		"--slice-dir", sliceDir,
	)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	r := parseResult(t, out)
	// the moving center of mass is the center of rotation
	if !near(r.Center, 5, 3) {
		t.Errorf("Expected center (5, 3), got %v", r.Center)
	}
	if !near(r.Translation, 3, 1) {
		t.Errorf("Expected translation (3, 1), got %v", r.Translation)
	}
	if !near(r.FixedCenterOfGravity, 2, 2) {
		t.Errorf("Expected fixed center of gravity (2, 2), got %v", r.FixedCenterOfGravity)
	}
	if len(r.Slices) != 2 {
		t.Fatalf("Expected one slice per image, got %v", r.Slices)
	}
	for _, f := range r.Slices {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("Expected %s to exist: %v", f, err)
		}
	}
}

func near(got []float64, want ...float64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			return false
		}
	}
	return true
}

func TestRunInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `
mode: diagonal
fixed:
  size: [4, 4]
moving:
  size: [4, 4]
`)
	if _, err := execute(t, "run", "--config", cfgPath); err == nil {
		t.Error("Expected error for an unknown mode")
	}

	cfgPath = writeConfig(t, dir, `
fixed:
  size: [4, 4]
moving:
  size: [4, 4, 4]
logging:
  level: error
`)
	if _, err := execute(t, "run", "--config", cfgPath); err == nil {
		t.Error("Expected error for images of different dimension")
	}
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "centerinit.yaml")
	out, err := execute(t, "init-config", path)
	if err != nil {
		t.Fatalf("init-config failed: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("Expected output to name %s, got %q", path, out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected config file: %v", err)
	}

	if _, err := execute(t, "init-config", path); err == nil {
		t.Error("Expected error when the file already exists")
	}
	if _, err := execute(t, "init-config", "--force", path); err != nil {
		t.Errorf("Expected --force to overwrite: %v", err)
	}
}
