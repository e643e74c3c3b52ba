// Package coords converts between the three pixel spaces used by the editor:
// display space (rendered, CSS-like pixels), device space (backing-store
// pixels, display scaled by the device pixel ratio) and source space (the
// native resolution of the loaded image).
package coords

import "math"

// Point is a coordinate in one of the pixel spaces. The space is implied by
// the call site.
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// ClampDPR returns the effective device pixel ratio. Ratios below one, and
// non-finite values, are treated as one.
func ClampDPR(ratio float64) float64 {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) || ratio < 1 {
		return 1
	}
	return ratio
}

// Space describes the relation between the three pixel spaces for one
// displayed image.
type Space struct {
	DPR      float64
	DisplayW float64
	DisplayH float64
	SourceW  float64
	SourceH  float64
}

// NewSpace builds a Space with the ratio clamped.
func NewSpace(dpr, displayW, displayH, sourceW, sourceH float64) Space {
	return Space{DPR: ClampDPR(dpr), DisplayW: displayW, DisplayH: displayH, SourceW: sourceW, SourceH: sourceH}
}

func (s Space) dpr() float64 { return ClampDPR(s.DPR) }

// DeviceSize returns the backing-store dimensions for the display size.
func (s Space) DeviceSize() (int, int) {
	return DeviceSize(s.DisplayW, s.DisplayH, s.DPR)
}

// DeviceSize rounds display dimensions scaled by dpr to whole pixels.
func DeviceSize(displayW, displayH, dpr float64) (int, int) {
	r := ClampDPR(dpr)
	return int(math.Round(displayW * r)), int(math.Round(displayH * r))
}

// ToDevice converts a display-space point to device space.
func (s Space) ToDevice(p Point) Point {
	r := s.dpr()
	return Point{X: p.X * r, Y: p.Y * r}
}

// ToDisplay converts a device-space point to display space.
func (s Space) ToDisplay(p Point) Point {
	r := s.dpr()
	return Point{X: p.X / r, Y: p.Y / r}
}

// scale returns the source/display ratio per axis. A zero display dimension
// yields a ratio of one so conversions stay finite before the first layout.
func (s Space) scale() (float64, float64) {
	sx, sy := 1.0, 1.0
	if s.DisplayW > 0 && s.SourceW > 0 {
		sx = s.SourceW / s.DisplayW
	}
	if s.DisplayH > 0 && s.SourceH > 0 {
		sy = s.SourceH / s.DisplayH
	}
	return sx, sy
}

// DisplayToSource converts a display-space point to source space.
func (s Space) DisplayToSource(p Point) Point {
	sx, sy := s.scale()
	return Point{X: p.X * sx, Y: p.Y * sy}
}

// SourceToDisplay converts a source-space point to display space.
func (s Space) SourceToDisplay(p Point) Point {
	sx, sy := s.scale()
	return Point{X: p.X / sx, Y: p.Y / sy}
}

// DeviceToSource converts a device-space point straight to source space.
func (s Space) DeviceToSource(p Point) Point {
	return s.DisplayToSource(s.ToDisplay(p))
}

// Round returns the point with both components rounded to the nearest integer.
func (p Point) Round() (int, int) {
	return int(math.Round(p.X)), int(math.Round(p.Y))
}
