package initializer

import (
	"fmt"
	"strings"
)

// Mode selects how the center and translation are derived.
type Mode int

const (
	// Geometry superimposes the geometric centers of both images.
	Geometry Mode = iota
	// Moments superimposes the intensity centers of mass.
	Moments
	// Origins superimposes the image origins.
	Origins
	// GeometryTop superimposes the minimum physical bounding corners.
	GeometryTop
)

var modeNames = map[Mode]string{
	Geometry:    "geometry",
	Moments:     "moments",
	Origins:     "origins",
	GeometryTop: "geometrytop",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses a mode name case-insensitively. "geometry-top" and
// "top" are accepted for GeometryTop.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "geometry", "":
		return Geometry, nil
	case "moments":
		return Moments, nil
	case "origins":
		return Origins, nil
	case "geometrytop", "geometry-top", "top":
		return GeometryTop, nil
	}
	return Geometry, fmt.Errorf("initializer: unknown mode %q", s)
}
