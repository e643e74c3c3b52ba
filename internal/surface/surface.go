// Package surface implements the two stacked raster buffers the operator
// paints on: the persistent overlay holding the mask and the ephemeral cursor
// layer that only shows the pointer ring.
//
// All public drawing calls take display-space coordinates. The buffers
// themselves are in device space.
package surface

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"

	"github.com/example/maskpaint/internal/coords"
)

// Mode selects how a stroke composes with the overlay.
type Mode int

const (
	// ModePaint composes the stroke over the existing mask.
	ModePaint Mode = iota
	// ModeErase removes mask alpha under the stroke.
	ModeErase
)

func (m Mode) String() string {
	switch m {
	case ModePaint:
		return "brush"
	case ModeErase:
		return "eraser"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ErrNoBuffer is returned when an operation needs buffers that have not been
// allocated by Resize yet.
var ErrNoBuffer = errors.New("surface has no buffer")

var cursorColor = color.RGBA{40, 40, 40, 200}

// Snapshot is an encoded copy of the overlay at one point in time.
type Snapshot struct {
	data []byte
}

// Len reports the encoded size in bytes.
func (s Snapshot) Len() int { return len(s.data) }

// Bytes returns the encoded image.
func (s Snapshot) Bytes() []byte { return s.data }

// Surface owns the overlay and cursor buffers.
type Surface struct {
	dpr      float64
	displayW float64
	displayH float64

	overlay *image.RGBA
	cursor  *image.RGBA

	encode func(io.Writer, image.Image) error
	decode func(io.Reader) (image.Image, error)
	scaler xdraw.Scaler
}

// Option configures a Surface.
type Option func(*Surface)

// WithDPR sets the initial device pixel ratio.
func WithDPR(ratio float64) Option { return func(s *Surface) { s.dpr = coords.ClampDPR(ratio) } }

// WithEncoder replaces the snapshot encoder.
func WithEncoder(fn func(io.Writer, image.Image) error) Option {
	return func(s *Surface) { s.encode = fn }
}

// WithDecoder replaces the snapshot decoder.
func WithDecoder(fn func(io.Reader) (image.Image, error)) Option {
	return func(s *Surface) { s.decode = fn }
}

// WithScaler replaces the interpolator used when redrawing a snapshot at a
// different size.
func WithScaler(sc xdraw.Scaler) Option { return func(s *Surface) { s.scaler = sc } }

var fastPNG = &png.Encoder{CompressionLevel: png.BestSpeed}

// New creates a surface without buffers. Call Resize once the displayed
// image has a size.
func New(opts ...Option) *Surface {
	s := &Surface{
		dpr:    1,
		encode: fastPNG.Encode,
		decode: png.Decode,
		scaler: xdraw.ApproxBiLinear,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// DPR returns the effective device pixel ratio.
func (s *Surface) DPR() float64 { return s.dpr }

// SetDPR updates the ratio used by the next Resize.
func (s *Surface) SetDPR(ratio float64) { s.dpr = coords.ClampDPR(ratio) }

// DisplaySize returns the current display-space size.
func (s *Surface) DisplaySize() (float64, float64) { return s.displayW, s.displayH }

// DeviceSize returns the current buffer dimensions.
func (s *Surface) DeviceSize() (int, int) {
	if s.overlay == nil {
		return 0, 0
	}
	b := s.overlay.Bounds()
	return b.Dx(), b.Dy()
}

// Overlay returns the mask buffer. Callers must not mutate it.
func (s *Surface) Overlay() *image.RGBA { return s.overlay }

// Cursor returns the cursor buffer. Callers must not mutate it.
func (s *Surface) Cursor() *image.RGBA { return s.cursor }

// Space returns the coordinate space for an image of the given native size
// shown on this surface.
func (s *Surface) Space(sourceW, sourceH int) coords.Space {
	return coords.NewSpace(s.dpr, s.displayW, s.displayH, float64(sourceW), float64(sourceH))
}

// Resize reallocates both buffers for the new display size. Existing mask
// content is carried over by snapshotting and redrawing it at the new size.
// The returned error reports a failed carry-over; the buffers are resized
// regardless and the overlay is left blank in that case.
func (s *Surface) Resize(displayW, displayH float64) error {
	if displayW < 0 {
		displayW = 0
	}
	if displayH < 0 {
		displayH = 0
	}
	var (
		prior   Snapshot
		snapErr error
	)
	had := s.overlay != nil
	if had {
		prior, snapErr = s.Snapshot()
	}
	s.displayW, s.displayH = displayW, displayH
	w, h := coords.DeviceSize(displayW, displayH, s.dpr)
	s.overlay = image.NewRGBA(image.Rect(0, 0, w, h))
	s.cursor = image.NewRGBA(image.Rect(0, 0, w, h))
	if !had {
		return nil
	}
	if snapErr != nil {
		return fmt.Errorf("resize: %w", snapErr)
	}
	if err := s.Restore(prior); err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	return nil
}

// ComposeStroke draws a round-capped segment from (x1, y1) to (x2, y2) in
// display space. A zero-length segment draws a dot.
func (s *Surface) ComposeStroke(x1, y1, x2, y2 float64, mode Mode, col color.Color, width float64) error {
	if s.overlay == nil {
		return ErrNoBuffer
	}
	if width <= 0 {
		return nil
	}
	r := s.dpr
	dx1, dy1, dx2, dy2 := x1*r, y1*r, x2*r, y2*r
	dw := width * r
	switch mode {
	case ModeErase:
		area := segmentBounds(dx1, dy1, dx2, dy2, dw).Intersect(s.overlay.Bounds())
		if area.Empty() {
			return nil
		}
		mask := image.NewRGBA(image.Rect(0, 0, area.Dx(), area.Dy()))
		dc := gg.NewContextForRGBA(mask)
		dc.Translate(-float64(area.Min.X), -float64(area.Min.Y))
		strokeSegment(dc, dx1, dy1, dx2, dy2, color.White, dw)
		destinationOut(s.overlay, mask, area)
	default:
		dc := gg.NewContextForRGBA(s.overlay)
		strokeSegment(dc, dx1, dy1, dx2, dy2, col, dw)
	}
	return nil
}

func strokeSegment(dc *gg.Context, x1, y1, x2, y2 float64, col color.Color, width float64) {
	dc.SetColor(col)
	if x1 == x2 && y1 == y2 {
		dc.DrawCircle(x1, y1, width/2)
		dc.Fill()
		return
	}
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	dc.SetLineWidth(width)
	dc.DrawLine(x1, y1, x2, y2)
	dc.Stroke()
}

// segmentBounds returns the device rectangle a segment of the given width can
// touch, padded by one pixel for antialiasing.
func segmentBounds(x1, y1, x2, y2, width float64) image.Rectangle {
	pad := width/2 + 1
	return image.Rect(
		int(math.Floor(math.Min(x1, x2)-pad)),
		int(math.Floor(math.Min(y1, y2)-pad)),
		int(math.Ceil(math.Max(x1, x2)+pad)),
		int(math.Ceil(math.Max(y1, y2)+pad)),
	)
}

// destinationOut scales every premultiplied channel of dst inside area by the
// inverse of the mask alpha. The mask covers area with its origin at area.Min.
func destinationOut(dst, mask *image.RGBA, area image.Rectangle) {
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			ma := uint32(mask.Pix[mask.PixOffset(x-area.Min.X, y-area.Min.Y)+3])
			if ma == 0 {
				continue
			}
			keep := 0xff - ma
			i := dst.PixOffset(x, y)
			for c := 0; c < 4; c++ {
				dst.Pix[i+c] = uint8(uint32(dst.Pix[i+c]) * keep / 0xff)
			}
		}
	}
}

// Clear makes the whole overlay transparent.
func (s *Surface) Clear() error {
	if s.overlay == nil {
		return ErrNoBuffer
	}
	draw.Draw(s.overlay, s.overlay.Bounds(), image.Transparent, image.Point{}, draw.Src)
	return nil
}

// Reset drops the mask content without touching the buffer size.
func (s *Surface) Reset() {
	if s.overlay != nil {
		draw.Draw(s.overlay, s.overlay.Bounds(), image.Transparent, image.Point{}, draw.Src)
	}
	s.ClearCursor()
}

// Snapshot encodes the current overlay.
func (s *Surface) Snapshot() (Snapshot, error) {
	if s.overlay == nil {
		return Snapshot{}, ErrNoBuffer
	}
	// The PNG container carries the premultiplied samples verbatim so a
	// restore reproduces the exact bitmap.
	raw := &image.NRGBA{Pix: s.overlay.Pix, Stride: s.overlay.Stride, Rect: s.overlay.Rect}
	var buf bytes.Buffer
	if err := s.encode(&buf, raw); err != nil {
		return Snapshot{}, fmt.Errorf("encode snapshot: %w", err)
	}
	return Snapshot{data: buf.Bytes()}, nil
}

// Restore replaces the overlay with the snapshot, scaled to the current
// buffer size. On a decode failure the overlay is left blank.
func (s *Surface) Restore(snap Snapshot) error {
	if s.overlay == nil {
		return ErrNoBuffer
	}
	draw.Draw(s.overlay, s.overlay.Bounds(), image.Transparent, image.Point{}, draw.Src)
	if snap.Len() == 0 {
		return nil
	}
	img, err := s.Decode(snap)
	if err != nil {
		return err
	}
	dst := s.overlay.Bounds()
	src := img.Bounds()
	if dst.Size() == src.Size() {
		draw.Draw(s.overlay, dst, img, src.Min, draw.Src)
		return nil
	}
	s.scaler.Scale(s.overlay, dst, img, src, draw.Src, nil)
	return nil
}

// Decode returns the bitmap held by snap at the size it was taken.
func (s *Surface) Decode(snap Snapshot) (*image.RGBA, error) {
	decoded, err := s.decode(bytes.NewReader(snap.data))
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return premultiplied(decoded), nil
}

// premultiplied reinterprets decoded snapshot samples as premultiplied RGBA.
func premultiplied(img image.Image) *image.RGBA {
	switch m := img.(type) {
	case *image.NRGBA:
		return &image.RGBA{Pix: m.Pix, Stride: m.Stride, Rect: m.Rect}
	case *image.RGBA:
		return m
	default:
		out := image.NewRGBA(img.Bounds())
		draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
		return out
	}
}

// DrawCursor redraws the cursor buffer with a ring of the given display-space
// width centred on (x, y).
func (s *Surface) DrawCursor(x, y, width float64) {
	if s.cursor == nil {
		return
	}
	s.ClearCursor()
	r := s.dpr
	dc := gg.NewContextForRGBA(s.cursor)
	dc.SetColor(cursorColor)
	dc.SetLineWidth(r)
	dc.DrawCircle(x*r, y*r, math.Max(width*r/2, r))
	dc.Stroke()
}

// ClearCursor empties the cursor buffer.
func (s *Surface) ClearCursor() {
	if s.cursor == nil {
		return
	}
	draw.Draw(s.cursor, s.cursor.Bounds(), image.Transparent, image.Point{}, draw.Src)
}
