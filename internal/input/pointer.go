// Package input turns pointer and keyboard events into drawing operations.
package input

import (
	"fmt"
	"image/color"
	"log"
	"math"

	"github.com/example/maskpaint/internal/coords"
	"github.com/example/maskpaint/internal/surface"
)

// Kind is the pointer event type.
type Kind int

const (
	Down Kind = iota
	Move
	Up
	Leave
)

func (k Kind) String() string {
	switch k {
	case Down:
		return "down"
	case Move:
		return "move"
	case Up:
		return "up"
	case Leave:
		return "leave"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Button identifies the pressed pointer button, numbered like DOM pointer
// events.
type Button int

const (
	// ButtonNone is reported by pen and touch contacts without a button.
	ButtonNone Button = -1
	// ButtonPrimary is the left mouse button or a primary contact.
	ButtonPrimary Button = 0
	// ButtonAuxiliary is the middle button.
	ButtonAuxiliary Button = 1
	// ButtonSecondary is the right button.
	ButtonSecondary Button = 2
)

// PointerEvent is a pointer sample in client coordinates.
type PointerEvent struct {
	Kind      Kind
	ClientX   float64
	ClientY   float64
	Button    Button
	Pressure  float64
	PointerID int
}

// State is the translator state.
type State int

const (
	Idle State = iota
	Drawing
)

func (s State) String() string {
	if s == Drawing {
		return "drawing"
	}
	return "idle"
}

// MinStrokeWidth is the narrowest stroke a light touch can produce.
const MinStrokeWidth = 0.5

// Canvas is the drawing surface the translator drives.
type Canvas interface {
	ComposeStroke(x1, y1, x2, y2 float64, mode surface.Mode, col color.Color, width float64) error
	DrawCursor(x, y, width float64)
	ClearCursor()
}

// Recorder records history before a stroke mutates the canvas.
type Recorder interface {
	RecordBeforeChange() error
}

// Capturer routes all events of a pointer to the surface while a stroke is in
// progress. Both calls are best-effort.
type Capturer interface {
	Capture(pointerID int) error
	Release(pointerID int) error
}

// Brush holds the active tool settings.
type Brush struct {
	Mode  surface.Mode
	Color color.Color
	Size  float64
}

// EffectiveWidth returns the stroke width for the given pressure.
func (b Brush) EffectiveWidth(pressure float64) float64 {
	return math.Max(MinStrokeWidth, b.Size*normalizePressure(pressure))
}

func normalizePressure(p float64) float64 {
	if p <= 0 || math.IsNaN(p) {
		return 1
	}
	return p
}

// Translator is the pointer state machine for one surface.
type Translator struct {
	canvas   Canvas
	recorder Recorder
	capturer Capturer
	origin   coords.Point
	brush    Brush

	state     State
	last      coords.Point
	pointerID int
	button    Button

	onStrokeEnd func()
}

// TranslatorOption configures a Translator.
type TranslatorOption func(*Translator)

// WithCapturer sets the pointer capture implementation.
func WithCapturer(c Capturer) TranslatorOption { return func(t *Translator) { t.capturer = c } }

// WithOrigin sets the client position of the surface's top-left corner.
func WithOrigin(p coords.Point) TranslatorOption { return func(t *Translator) { t.origin = p } }

// WithStrokeEnd registers a hook run whenever a stroke finishes.
func WithStrokeEnd(fn func()) TranslatorOption { return func(t *Translator) { t.onStrokeEnd = fn } }

// WithBrush sets the initial brush.
func WithBrush(b Brush) TranslatorOption { return func(t *Translator) { t.brush = b } }

// NewTranslator creates an idle translator.
func NewTranslator(canvas Canvas, recorder Recorder, opts ...TranslatorOption) *Translator {
	t := &Translator{
		canvas:   canvas,
		recorder: recorder,
		brush:    Brush{Mode: surface.ModePaint, Color: color.RGBA{255, 0, 0, 255}, Size: 20},
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// State returns the current state.
func (t *Translator) State() State { return t.state }

// Brush returns the active brush.
func (t *Translator) Brush() Brush { return t.brush }

// SetBrush replaces the active brush. It applies from the next event.
func (t *Translator) SetBrush(b Brush) { t.brush = b }

// SetOrigin moves the surface origin in client coordinates.
func (t *Translator) SetOrigin(p coords.Point) { t.origin = p }

// ToDisplay converts client coordinates to display space.
func (t *Translator) ToDisplay(clientX, clientY float64) coords.Point {
	return coords.Pt(clientX-t.origin.X, clientY-t.origin.Y)
}

// Handle feeds one pointer event through the state machine. Errors come from
// the canvas; capture failures are logged and otherwise ignored.
func (t *Translator) Handle(ev PointerEvent) error {
	switch ev.Kind {
	case Down:
		return t.down(ev)
	case Move:
		return t.move(ev)
	case Up:
		if t.ownsRelease(ev) {
			t.finish()
		}
	case Leave:
		t.canvas.ClearCursor()
		t.finish()
	}
	return nil
}

// ownsRelease reports whether ev releases the pointer and button that started
// the stroke. Contacts without a button match any release of their pointer.
func (t *Translator) ownsRelease(ev PointerEvent) bool {
	if ev.PointerID != t.pointerID {
		return false
	}
	return ev.Button == ButtonNone || t.button == ButtonNone || ev.Button == t.button
}

func (t *Translator) down(ev PointerEvent) error {
	if t.state == Drawing {
		return nil
	}
	if ev.Button != ButtonPrimary && ev.Button != ButtonNone {
		return nil
	}
	t.state = Drawing
	t.pointerID = ev.PointerID
	t.button = ev.Button
	if t.recorder != nil {
		if err := t.recorder.RecordBeforeChange(); err != nil {
			log.Printf("stroke start: %v", err)
		}
	}
	if t.capturer != nil {
		if err := t.capturer.Capture(ev.PointerID); err != nil {
			log.Printf("pointer capture: %v", err)
		}
	}
	p := t.ToDisplay(ev.ClientX, ev.ClientY)
	t.last = p
	return t.canvas.ComposeStroke(p.X, p.Y, p.X, p.Y, t.brush.Mode, t.brush.Color, t.brush.EffectiveWidth(ev.Pressure))
}

func (t *Translator) move(ev PointerEvent) error {
	p := t.ToDisplay(ev.ClientX, ev.ClientY)
	width := t.brush.EffectiveWidth(ev.Pressure)
	t.canvas.DrawCursor(p.X, p.Y, width)
	if t.state != Drawing {
		return nil
	}
	from := t.last
	t.last = p
	return t.canvas.ComposeStroke(from.X, from.Y, p.X, p.Y, t.brush.Mode, t.brush.Color, width)
}

func (t *Translator) finish() {
	if t.state != Drawing {
		return
	}
	t.state = Idle
	if t.capturer != nil {
		if err := t.capturer.Release(t.pointerID); err != nil {
			log.Printf("pointer release: %v", err)
		}
	}
	if t.onStrokeEnd != nil {
		t.onStrokeEnd()
	}
}
