// Package session holds the state of one editing session: the loaded image,
// the active tool, the drawing surface and its history. Every mutation is a
// method call made from the goroutine that owns the session.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log"

	"golang.org/x/mobile/event/key"

	"github.com/example/maskpaint/internal/capture"
	"github.com/example/maskpaint/internal/coords"
	"github.com/example/maskpaint/internal/history"
	"github.com/example/maskpaint/internal/input"
	"github.com/example/maskpaint/internal/region"
	"github.com/example/maskpaint/internal/submit"
	"github.com/example/maskpaint/internal/surface"
)

var (
	// ErrNoImage is returned when an operation needs a loaded image.
	ErrNoImage = errors.New("no image loaded")
	// ErrSubmitInFlight is returned when a submission is already pending.
	ErrSubmitInFlight = errors.New("submission already in flight")
)

// Default brush settings.
const (
	DefaultBrushSize = 20
)

// DefaultBrushColor is the mask paint colour.
var DefaultBrushColor color.Color = color.RGBA{255, 0, 0, 255}

// Session is the editing state for one image at a time.
type Session struct {
	src *capture.Source

	tool       surface.Mode
	brushSize  float64
	brushColor color.Color

	surface    *surface.Surface
	history    *history.Stack
	translator *input.Translator
	dispatcher *submit.Dispatcher

	submitting bool
	strokes    int
	captured   surface.Snapshot
	subs       []*Subscription

	onClose  func()
	onChange func()
}

// Option configures a Session.
type Option func(*Session)

// WithBrush sets the initial brush size and colour.
func WithBrush(size float64, col color.Color) Option {
	return func(s *Session) {
		if size > 0 {
			s.brushSize = size
		}
		if col != nil {
			s.brushColor = col
		}
	}
}

// WithDPR sets the device pixel ratio of the surface.
func WithDPR(ratio float64) Option { return func(s *Session) { s.surface.SetDPR(ratio) } }

// WithCloseHandler runs fn when the operator asks to close the editor.
func WithCloseHandler(fn func()) Option { return func(s *Session) { s.onClose = fn } }

// WithChangeHandler runs fn after every visible state change.
func WithChangeHandler(fn func()) Option { return func(s *Session) { s.onChange = fn } }

// New creates a session that submits through d.
func New(d *submit.Dispatcher, opts ...Option) *Session {
	s := &Session{
		tool:       surface.ModePaint,
		brushSize:  DefaultBrushSize,
		brushColor: DefaultBrushColor,
		surface:    surface.New(),
		dispatcher: d,
	}
	s.history = history.New(s.surface, history.DefaultCapacity)
	for _, o := range opts {
		o(s)
	}
	s.translator = input.NewTranslator(s.surface, s.history,
		input.WithBrush(s.brush()),
		input.WithStrokeEnd(s.strokeEnded),
	)
	return s
}

func (s *Session) brush() input.Brush {
	return input.Brush{Mode: s.tool, Color: s.brushColor, Size: s.brushSize}
}

func (s *Session) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// strokeEnded runs on pointer-up: the finished mask is captured for the
// crop and copy paths.
func (s *Session) strokeEnded() {
	s.strokes++
	s.captureMask()
	s.changed()
}

// captureMask snapshots the overlay as it stands now. Without a buffer the
// capture is empty.
func (s *Session) captureMask() {
	snap, err := s.surface.Snapshot()
	if err != nil && !errors.Is(err, surface.ErrNoBuffer) {
		log.Printf("capture mask: %v", err)
	}
	s.captured = snap
}

// Source returns the loaded image, or nil.
func (s *Session) Source() *capture.Source { return s.src }

// Surface returns the drawing surface.
func (s *Session) Surface() *surface.Surface { return s.surface }

// History returns the undo stack.
func (s *Session) History() *history.Stack { return s.history }

// Translator returns the pointer state machine.
func (s *Session) Translator() *input.Translator { return s.translator }

// Dispatcher returns the submission dispatcher, or nil.
func (s *Session) Dispatcher() *submit.Dispatcher { return s.dispatcher }

// Tool returns the active tool.
func (s *Session) Tool() surface.Mode { return s.tool }

// BrushSize returns the base brush width in display pixels.
func (s *Session) BrushSize() float64 { return s.brushSize }

// Submitting reports whether a submission is pending.
func (s *Session) Submitting() bool { return s.submitting }

// Strokes returns the number of finished strokes since the image loaded.
func (s *Session) Strokes() int { return s.strokes }

// Captured returns the mask snapshot taken at the last pointer-up or the last
// history, clear or resize step, whichever came later.
func (s *Session) Captured() surface.Snapshot { return s.captured }

// SetTool switches between brush and eraser.
func (s *Session) SetTool(m surface.Mode) {
	s.tool = m
	s.translator.SetBrush(s.brush())
	s.changed()
}

// SetBrushSize changes the base brush width. Non-positive sizes are ignored.
func (s *Session) SetBrushSize(size float64) {
	if size <= 0 {
		return
	}
	s.brushSize = size
	s.translator.SetBrush(s.brush())
	s.changed()
}

// Load replaces the image and starts a fresh mask. The surface keeps its
// display size until the host resizes it.
func (s *Session) Load(src *capture.Source) error {
	if src == nil || src.Image == nil {
		return ErrNoImage
	}
	s.src = src
	s.surface.Reset()
	s.history.Reset()
	s.strokes = 0
	s.captured = surface.Snapshot{}
	s.changed()
	return nil
}

// Resize lays the surface out at a new display size.
func (s *Session) Resize(w, h float64) error {
	if err := s.surface.Resize(w, h); err != nil {
		return err
	}
	s.captureMask()
	s.changed()
	return nil
}

// HandlePointer feeds a pointer event to the translator.
func (s *Session) HandlePointer(ev input.PointerEvent) error {
	if s.src == nil {
		return ErrNoImage
	}
	if err := s.translator.Handle(ev); err != nil {
		return err
	}
	if ev.Kind == input.Move {
		s.changed()
	}
	return nil
}

// Undo restores the previous mask state.
func (s *Session) Undo() error {
	if err := s.history.Undo(); err != nil {
		return err
	}
	s.captureMask()
	s.changed()
	return nil
}

// Redo reapplies an undone state.
func (s *Session) Redo() error {
	if err := s.history.Redo(); err != nil {
		return err
	}
	s.captureMask()
	s.changed()
	return nil
}

// Clear erases the whole mask as one undoable step.
func (s *Session) Clear() error {
	if s.src == nil {
		return ErrNoImage
	}
	if err := s.history.RecordBeforeChange(); err != nil {
		log.Printf("clear: %v", err)
	}
	if err := s.surface.Clear(); err != nil {
		return err
	}
	s.captureMask()
	s.changed()
	return nil
}

// HandleKey applies the editing shortcuts and returns the resolved action so
// the host can handle the ones that leave the session (submit, copy, reload).
func (s *Session) HandleKey(e key.Event) input.Action {
	a := input.Shortcut(e)
	var err error
	switch a {
	case input.ActionBrush:
		s.SetTool(surface.ModePaint)
	case input.ActionEraser:
		s.SetTool(surface.ModeErase)
	case input.ActionUndo:
		err = s.Undo()
	case input.ActionRedo:
		err = s.Redo()
	case input.ActionClear:
		err = s.Clear()
	case input.ActionClose:
		if s.onClose != nil {
			s.onClose()
		}
	}
	if err != nil {
		log.Printf("%s: %v", a, err)
	}
	return a
}

// Space returns the coordinate space of the displayed image.
func (s *Session) Space() coords.Space {
	w, h := s.src.Size()
	return s.surface.Space(w, h)
}

// MaskCrop returns a copy of the painted region of the captured mask. A
// stroke still in progress is not part of it.
func (s *Session) MaskCrop() (*image.RGBA, error) {
	if s.src == nil {
		return nil, ErrNoImage
	}
	if s.captured.Len() == 0 {
		return nil, submit.ErrEmptyMask
	}
	mask, err := s.surface.Decode(s.captured)
	if err != nil {
		return nil, fmt.Errorf("mask crop: %w", err)
	}
	res := region.New(region.WithRand(func() float64 { return 1 })).Extract(mask, s.Space())
	if res.Empty() {
		return nil, submit.ErrEmptyMask
	}
	crop := image.NewRGBA(image.Rect(0, 0, res.Bounds.Width(), res.Bounds.Height()))
	draw.Draw(crop, crop.Bounds(), mask, res.Bounds.Rect().Min, draw.Src)
	return crop, nil
}

// Outcome is the result of a submission delivered back to the owner.
type Outcome struct {
	Result *submit.Result
	Err    error
}

func (s *Session) prepare() (*submit.Prepared, error) {
	if s.src == nil {
		return nil, ErrNoImage
	}
	if s.dispatcher == nil {
		return nil, fmt.Errorf("submit: no server configured")
	}
	if s.submitting {
		return nil, ErrSubmitInFlight
	}
	p, err := s.dispatcher.Prepare(submit.Request{
		Overlay:   s.surface.Overlay(),
		Space:     s.Space(),
		Location:  s.src.Location,
		Image:     s.src.Data,
		ImageName: s.src.Name,
	})
	if err != nil {
		return nil, err
	}
	s.submitting = true
	return p, nil
}

// Submit sends the painted region and applies the outcome before returning.
func (s *Session) Submit(ctx context.Context) (*submit.Result, error) {
	p, err := s.prepare()
	if err != nil {
		return nil, err
	}
	res, err := s.dispatcher.Send(ctx, p)
	if err := s.ApplyResult(Outcome{Result: res, Err: err}); err != nil {
		return nil, err
	}
	return res, nil
}

// SubmitAsync prepares the submission on the calling goroutine and sends it
// on another. deliver receives the outcome from that goroutine; the owner
// must pass it to ApplyResult on its own goroutine.
func (s *Session) SubmitAsync(ctx context.Context, deliver func(Outcome)) error {
	p, err := s.prepare()
	if err != nil {
		return err
	}
	go func() {
		res, err := s.dispatcher.Send(ctx, p)
		deliver(Outcome{Result: res, Err: err})
	}()
	return nil
}

// ApplyResult ends the pending submission. A direct result replaces the
// image and starts a fresh mask; a queued result only refreshes the
// location. Failures leave the session untouched and are returned.
func (s *Session) ApplyResult(o Outcome) error {
	s.submitting = false
	if o.Err != nil {
		s.changed()
		return o.Err
	}
	if o.Result == nil || s.src == nil {
		return nil
	}
	switch o.Result.Mode {
	case submit.Direct:
		img, _, err := capture.Decode(o.Result.Image)
		if err != nil {
			s.changed()
			return fmt.Errorf("submit result: %w", err)
		}
		next := *s.src
		next.Data = o.Result.Image
		next.Image = img
		if err := s.Load(&next); err != nil {
			return err
		}
	case submit.Queued:
		s.src.Location = o.Result.Location
		s.changed()
	}
	return nil
}

// Open subscribes the session to window events on h. Actions that need the
// host (submit, copy, reload, close) are passed to onAction when it is not
// nil. Close releases the subscriptions.
func (s *Session) Open(h *Hub, onAction func(input.Action)) {
	s.Close()
	s.subs = append(s.subs,
		h.OnResize(func(w, ht float64) {
			if err := s.Resize(w, ht); err != nil {
				log.Printf("resize: %v", err)
			}
		}),
		h.OnKey(func(e key.Event) {
			switch a := s.HandleKey(e); a {
			case input.ActionSubmit, input.ActionCopy, input.ActionReload, input.ActionClose:
				if onAction != nil {
					onAction(a)
				}
			}
		}),
	)
}

// Close releases every subscription taken by Open.
func (s *Session) Close() {
	for _, sub := range s.subs {
		sub.Release()
	}
	s.subs = nil
}
