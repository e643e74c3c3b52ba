// Package region finds the painted area of a mask and samples seed points
// inside it.
package region

import (
	"image"
	"math/rand"

	"github.com/example/maskpaint/internal/coords"
)

// SeedProbability is the chance that a painted pixel becomes a seed point.
const SeedProbability = 0.05

// Box is an inclusive device-space pixel rectangle.
type Box struct {
	MinX, MinY, MaxX, MaxY int
}

// Width returns the number of columns the box covers.
func (b Box) Width() int { return b.MaxX - b.MinX + 1 }

// Height returns the number of rows the box covers.
func (b Box) Height() int { return b.MaxY - b.MinY + 1 }

// Rect returns the half-open image rectangle covering the box.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.MinX, b.MinY, b.MaxX+1, b.MaxY+1)
}

// Result is the outcome of one scan.
type Result struct {
	Bounds Box
	Count  int
	// Seeds are display-space points in scan order.
	Seeds []coords.Point
}

// Empty reports whether no pixel was painted. The bounds are meaningless
// in that case.
func (r Result) Empty() bool { return r.Count == 0 }

// DisplayBox converts the bounds to display space.
func (r Result) DisplayBox(sp coords.Space) (lo, hi coords.Point) {
	return sp.ToDisplay(coords.Pt(float64(r.Bounds.MinX), float64(r.Bounds.MinY))),
		sp.ToDisplay(coords.Pt(float64(r.Bounds.MaxX), float64(r.Bounds.MaxY)))
}

// SourceBox converts the bounds to the image's native pixel space.
func (r Result) SourceBox(sp coords.Space) (lo, hi coords.Point) {
	return sp.DeviceToSource(coords.Pt(float64(r.Bounds.MinX), float64(r.Bounds.MinY))),
		sp.DeviceToSource(coords.Pt(float64(r.Bounds.MaxX), float64(r.Bounds.MaxY)))
}

// Extractor scans overlays.
type Extractor struct {
	rnd func() float64
	p   float64
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRand sets the uniform [0,1) source used for seed sampling.
func WithRand(fn func() float64) Option { return func(e *Extractor) { e.rnd = fn } }

// New creates an extractor sampling with SeedProbability.
func New(opts ...Option) *Extractor {
	e := &Extractor{rnd: rand.Float64, p: SeedProbability}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract scans every pixel of overlay. Pixels with non-zero alpha extend the
// bounds and may be sampled as seeds, converted to display space through sp.
func (e *Extractor) Extract(overlay *image.RGBA, sp coords.Space) Result {
	if overlay == nil {
		return Result{}
	}
	b := overlay.Bounds()
	res := Result{Bounds: Box{MinX: b.Max.X, MinY: b.Max.Y, MaxX: b.Min.X, MaxY: b.Min.Y}}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := overlay.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			if overlay.Pix[row+(x-b.Min.X)*4+3] == 0 {
				continue
			}
			res.Count++
			if x < res.Bounds.MinX {
				res.Bounds.MinX = x
			}
			if x > res.Bounds.MaxX {
				res.Bounds.MaxX = x
			}
			if y < res.Bounds.MinY {
				res.Bounds.MinY = y
			}
			if y > res.Bounds.MaxY {
				res.Bounds.MaxY = y
			}
			if e.rnd() < e.p {
				res.Seeds = append(res.Seeds, sp.ToDisplay(coords.Pt(float64(x), float64(y))))
			}
		}
	}
	return res
}

// Extract scans overlay with the default extractor.
func Extract(overlay *image.RGBA, sp coords.Space) Result {
	return New().Extract(overlay, sp)
}
