// Package render draws window chrome that does not depend on session state.
package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// Shadow is a soft drop shadow cast by a rectangle. The blurred mask is
// rendered once per rectangle size and reused.
type Shadow struct {
	Radius  int
	Offset  image.Point
	Opacity float64

	size image.Point
	mask *image.Gray
}

// DefaultShadow returns the shadow drawn under the image in the editor.
func DefaultShadow() *Shadow {
	return &Shadow{Radius: 10, Offset: image.Pt(4, 6), Opacity: 0.5}
}

// Draw paints the shadow of rect into dst.
func (s *Shadow) Draw(dst *image.RGBA, rect image.Rectangle) {
	if s == nil || dst == nil || rect.Empty() || s.Opacity <= 0 {
		return
	}
	radius := max(0, s.Radius)
	if s.mask == nil || s.size != rect.Size() {
		s.mask = rectMask(rect.Size(), radius)
		s.size = rect.Size()
	}
	alpha := uint8(math.Min(1, s.Opacity)*255 + 0.5)
	at := s.mask.Bounds().Add(rect.Min.Sub(image.Pt(radius, radius)).Add(s.Offset))
	draw.DrawMask(dst, at, image.NewUniform(color.RGBA{A: alpha}), image.Point{}, s.mask, image.Point{}, draw.Over)
}

// rectMask returns a size rectangle padded by radius on every side and box
// blurred by radius.
func rectMask(size image.Point, radius int) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, size.X+2*radius, size.Y+2*radius))
	draw.Draw(m, image.Rect(radius, radius, radius+size.X, radius+size.Y), image.NewUniform(color.Gray{Y: 255}), image.Point{}, draw.Src)
	if radius == 0 {
		return m
	}
	w, h := m.Rect.Dx(), m.Rect.Dy()
	line := make([]uint8, max(w, h))
	for y := 0; y < h; y++ {
		row := m.Pix[y*m.Stride : y*m.Stride+w]
		copy(line, row)
		boxBlur(row, line[:w], radius)
	}
	col := make([]uint8, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			line[y] = m.Pix[y*m.Stride+x]
		}
		boxBlur(col, line[:h], radius)
		for y := 0; y < h; y++ {
			m.Pix[y*m.Stride+x] = col[y]
		}
	}
	return m
}

// boxBlur writes into dst the mean of src over a window of radius on each
// side, clamped at the ends.
func boxBlur(dst, src []uint8, radius int) {
	n := len(src)
	prefix := make([]int, n+1)
	for i, v := range src {
		prefix[i+1] = prefix[i] + int(v)
	}
	for i := 0; i < n; i++ {
		lo := max(0, i-radius)
		hi := min(n-1, i+radius)
		dst[i] = uint8((prefix[hi+1] - prefix[lo]) / (hi - lo + 1))
	}
}
