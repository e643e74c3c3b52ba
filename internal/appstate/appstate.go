package appstate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/example/maskpaint/internal/capture"
	"github.com/example/maskpaint/internal/coords"
	"github.com/example/maskpaint/internal/effect"
	"github.com/example/maskpaint/internal/input"
	"github.com/example/maskpaint/internal/render"
	"github.com/example/maskpaint/internal/surface"
)

// ProgramTitle is shown in the window title.
const ProgramTitle = "maskpaint"

// statusHeight is the status bar height in display pixels.
const statusHeight = 20

var (
	background   = color.RGBA{48, 48, 48, 255}
	checkerLight = color.RGBA{220, 220, 220, 255}
	checkerDark  = color.RGBA{192, 192, 192, 255}
	statusBg     = color.RGBA{24, 24, 24, 255}
	statusFg     = color.RGBA{230, 230, 230, 255}
)

// layout places the image inside the window. All rectangles are in device
// pixels.
type layout struct {
	dpr    float64
	window image.Point
	image  image.Rectangle
	status image.Rectangle
}

// newLayout fits an srcW x srcH image into the window above the status bar,
// centred and never enlarged.
func newLayout(srcW, srcH, winW, winH int, dpr float64) layout {
	dpr = coords.ClampDPR(dpr)
	bar := int(math.Round(statusHeight * dpr))
	l := layout{
		dpr:    dpr,
		window: image.Pt(winW, winH),
		status: image.Rect(0, max(0, winH-bar), winW, winH),
	}
	availW, availH := winW, winH-bar
	if srcW <= 0 || srcH <= 0 || availW <= 0 || availH <= 0 {
		return l
	}
	scale := math.Min(1, math.Min(float64(availW)/float64(srcW), float64(availH)/float64(srcH)))
	w := max(1, int(math.Round(float64(srcW)*scale)))
	h := max(1, int(math.Round(float64(srcH)*scale)))
	x := (availW - w) / 2
	y := (availH - h) / 2
	l.image = image.Rect(x, y, x+w, y+h)
	return l
}

// displaySize is the image size in display pixels.
func (l layout) displaySize() (float64, float64) {
	return float64(l.image.Dx()) / l.dpr, float64(l.image.Dy()) / l.dpr
}

// origin is the top-left corner of the image in display pixels.
func (l layout) origin() coords.Point {
	return coords.Pt(float64(l.image.Min.X)/l.dpr, float64(l.image.Min.Y)/l.dpr)
}

// contains reports whether a pointer at client display coordinates is over
// the image.
func (l layout) contains(ev input.PointerEvent) bool {
	x, y := ev.ClientX*l.dpr, ev.ClientY*l.dpr
	return x >= float64(l.image.Min.X) && x < float64(l.image.Max.X) &&
		y >= float64(l.image.Min.Y) && y < float64(l.image.Max.Y)
}

// pointerRouter forwards pointer events over the image and turns the
// pointer leaving the image into a Leave event.
type pointerRouter struct {
	inside bool
}

func (r *pointerRouter) route(l layout, ev input.PointerEvent) []input.PointerEvent {
	if l.contains(ev) {
		r.inside = true
		return []input.PointerEvent{ev}
	}
	if ev.Kind == input.Up && r.inside {
		return []input.PointerEvent{ev}
	}
	if !r.inside {
		return nil
	}
	r.inside = false
	ev.Kind = input.Leave
	return []input.PointerEvent{ev}
}

// drawCheckerboard fills rect of dst with a checkerboard pattern of the given
// colors. size controls the checker square size.
func drawCheckerboard(dst *image.RGBA, rect image.Rectangle, size int, light, dark color.Color) {
	rect = rect.Intersect(dst.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if ((x/size)+(y/size))%2 == 0 {
				dst.Set(x, y, light)
			} else {
				dst.Set(x, y, dark)
			}
		}
	}
}

// frameState is everything one frame needs. It is built on the event loop
// goroutine.
type frameState struct {
	layout  layout
	source  *capture.Source
	overlay *image.RGBA
	cursor  *image.RGBA
	effect  *effect.Renderer
	shadow  *render.Shadow
	status  string
}

// drawFrame composes one frame into dst and reports whether the effect is
// still animating.
func drawFrame(dst *image.RGBA, st frameState) bool {
	draw.Draw(dst, dst.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)
	r := st.layout.image
	animating := false
	if st.source != nil && st.source.Image != nil && !r.Empty() {
		st.shadow.Draw(dst, r)
		drawCheckerboard(dst, r, max(4, int(8*st.layout.dpr)), checkerLight, checkerDark)
		xdraw.ApproxBiLinear.Scale(dst, r, st.source.Image, st.source.Image.Bounds(), draw.Over, nil)
		for _, layer := range []*image.RGBA{st.overlay, st.cursor} {
			if layer != nil {
				draw.Draw(dst, r, layer, layer.Bounds().Min, draw.Over)
			}
		}
		if st.effect != nil && st.effect.Active() {
			fx := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
			if st.effect.Draw(fx, st.layout.dpr) {
				draw.Draw(dst, r, fx, image.Point{}, draw.Over)
			}
			animating = st.effect.Active()
		}
	}
	drawStatus(dst, st.layout, st.status)
	return animating
}

func drawStatus(dst *image.RGBA, l layout, text string) {
	bar := l.status.Intersect(dst.Bounds())
	if bar.Empty() {
		return
	}
	draw.Draw(dst, bar, &image.Uniform{statusBg}, image.Point{}, draw.Src)
	face := basicfont.Face7x13
	asc := face.Metrics().Ascent.Ceil()
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(statusFg), Face: face,
		Dot: fixed.P(bar.Min.X+6, bar.Min.Y+(bar.Dy()+asc)/2-1)}
	d.DrawString(text)
}

// statusInfo feeds statusText.
type statusInfo struct {
	loaded     bool
	tool       surface.Mode
	size       float64
	strokes    int
	mode       string
	submitting bool
	message    string
}

func statusText(s statusInfo) string {
	if !s.loaded {
		return "no image"
	}
	tool := "[B]rush"
	if s.tool == surface.ModeErase {
		tool = "[E]raser"
	}
	parts := []string{
		fmt.Sprintf("%s %g", tool, s.size),
		fmt.Sprintf("strokes %d", s.strokes),
		s.mode,
	}
	if s.submitting {
		parts = append(parts, "submitting...")
	}
	if s.message != "" {
		parts = append(parts, s.message)
	}
	return strings.Join(parts, " | ")
}

func windowTitle(src *capture.Source) string {
	if src == nil || strings.TrimSpace(src.Name) == "" {
		return ProgramTitle
	}
	return ProgramTitle + " - " + src.Name
}
