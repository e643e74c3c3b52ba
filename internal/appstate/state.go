// Package appstate runs the editor window: it lays out the image, feeds
// window events to the session and renders the overlay on top of the image.
package appstate

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/mouse"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"github.com/example/maskpaint/internal/capture"
	"github.com/example/maskpaint/internal/clipboard"
	"github.com/example/maskpaint/internal/effect"
	"github.com/example/maskpaint/internal/input"
	"github.com/example/maskpaint/internal/notify"
	"github.com/example/maskpaint/internal/render"
	"github.com/example/maskpaint/internal/session"
	"github.com/example/maskpaint/internal/submit"
)

// frameInterval paces repaints while the burst effect animates.
const frameInterval = 16 * time.Millisecond

// messageTTL is how long a status message stays visible.
const messageTTL = 4 * time.Second

// outcomeEvent carries a finished submission back to the event loop.
type outcomeEvent struct{ session.Outcome }

// tickEvent asks for the next animation frame.
type tickEvent struct{}

// loadedEvent carries a reloaded image back to the event loop.
type loadedEvent struct {
	src *capture.Source
	err error
}

// AppState holds the collaborators of the editor window.
type AppState struct {
	Session  *session.Session
	Effect   *effect.Renderer
	Loader   *capture.Loader
	Notifier *notify.Notifier
	DPR      float64
	Timeout  time.Duration

	shadow    *render.Shadow
	onClose   func()
	closeOnce sync.Once
}

// Option modifies an AppState during creation.
type Option func(*AppState)

// WithEffect sets the renderer the dispatcher fires bursts into.
func WithEffect(r *effect.Renderer) Option { return func(a *AppState) { a.Effect = r } }

// WithLoader sets the loader used by the reload shortcut.
func WithLoader(l *capture.Loader) Option { return func(a *AppState) { a.Loader = l } }

// WithNotifier sets the desktop notifier for submission outcomes.
func WithNotifier(n *notify.Notifier) Option { return func(a *AppState) { a.Notifier = n } }

// WithDPR sets the device pixel ratio of the window.
func WithDPR(ratio float64) Option { return func(a *AppState) { a.DPR = ratio } }

// WithTimeout bounds each submission. Zero means no limit.
func WithTimeout(d time.Duration) Option { return func(a *AppState) { a.Timeout = d } }

// WithOnClose registers fn to run once when the window closes.
func WithOnClose(fn func()) Option { return func(a *AppState) { a.onClose = fn } }

// New creates the window state around sess.
func New(sess *session.Session, opts ...Option) *AppState {
	a := &AppState{Session: sess, DPR: 1, shadow: render.DefaultShadow()}
	for _, o := range opts {
		o(a)
	}
	if a.Loader == nil {
		a.Loader = capture.NewLoader()
	}
	a.Session.Surface().SetDPR(a.DPR)
	return a
}

func (a *AppState) notifyClose() {
	a.closeOnce.Do(func() {
		if a.onClose != nil {
			a.onClose()
		}
	})
}

// Run executes the UI loop using shiny's driver.
func (a *AppState) Run() { driver.Main(a.Main) }

// Main runs the window on s until it closes.
func (a *AppState) Main(s screen.Screen) {
	sess := a.Session
	width, height := 800, 600
	if w, h := sess.Source().Size(); w > 0 && h > 0 {
		width = w
		height = h + int(statusHeight*a.DPR)
	}
	w, err := s.NewWindow(&screen.NewWindowOptions{Width: width, Height: height, Title: windowTitle(sess.Source())})
	if err != nil {
		log.Printf("new window: %v", err)
		return
	}
	defer w.Release()
	defer a.notifyClose()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := session.NewHub()
	lay := layout{dpr: a.DPR}
	var router pointerRouter
	var message string
	var messageUntil time.Time
	var repaintPending bool
	closing := false

	say := func(format string, args ...any) {
		message = fmt.Sprintf(format, args...)
		messageUntil = time.Now().Add(messageTTL)
		log.Print(message)
	}

	relayout := func() {
		sw, sh := sess.Source().Size()
		lay = newLayout(sw, sh, width, height, a.DPR)
		sess.Translator().SetOrigin(lay.origin())
		dw, dh := lay.displaySize()
		if sess.Source() != nil && dw > 0 && dh > 0 {
			hub.EmitResize(dw, dh)
		}
	}

	onAction := func(act input.Action) {
		switch act {
		case input.ActionClose:
			closing = true
		case input.ActionSubmit:
			sctx, scancel := ctx, context.CancelFunc(func() {})
			if a.Timeout > 0 {
				sctx, scancel = context.WithTimeout(ctx, a.Timeout)
			}
			err := sess.SubmitAsync(sctx, func(o session.Outcome) {
				scancel()
				w.Send(outcomeEvent{o})
			})
			if err != nil {
				scancel()
				say("submit: %v", err)
			}
		case input.ActionCopy:
			crop, err := sess.MaskCrop()
			if err == nil {
				err = clipboard.WriteImage(crop)
			}
			if err != nil {
				say("copy: %v", err)
			} else {
				say("mask copied")
			}
		case input.ActionReload:
			src := sess.Source()
			if src == nil || src.Location == "" {
				return
			}
			loc := src.Location
			go func() {
				next, err := a.Loader.Load(ctx, loc)
				w.Send(loadedEvent{src: next, err: err})
			}()
		}
	}

	sess.Open(hub, onAction)
	defer sess.Close()

	for {
		e := w.NextEvent()
		switch e := e.(type) {
		case lifecycle.Event:
			if e.To == lifecycle.StageDead {
				return
			}
		case size.Event:
			width, height = e.WidthPx, e.HeightPx
			relayout()
			w.Send(paint.Event{})
		case tickEvent:
			repaintPending = false
			w.Send(paint.Event{})
		case paint.Event:
			if time.Now().After(messageUntil) {
				message = ""
			}
			if a.paint(s, w, lay, message) && !repaintPending {
				repaintPending = true
				time.AfterFunc(frameInterval, func() { w.Send(tickEvent{}) })
			}
		case mouse.Event:
			pe, ok := input.FromMouse(e, a.DPR)
			if !ok {
				continue
			}
			for _, ev := range router.route(lay, pe) {
				if err := sess.HandlePointer(ev); err != nil && !errors.Is(err, session.ErrNoImage) {
					log.Printf("pointer: %v", err)
				}
			}
			w.Send(paint.Event{})
		case key.Event:
			hub.EmitKey(e)
			if closing {
				return
			}
			w.Send(paint.Event{})
		case outcomeEvent:
			a.applyOutcome(e.Outcome, say)
			relayout()
			w.Send(paint.Event{})
		case loadedEvent:
			if e.err != nil {
				say("reload: %v", e.err)
			} else if err := sess.Load(e.src); err != nil {
				say("reload: %v", err)
			} else {
				relayout()
				say("reloaded %s", e.src.Name)
			}
			w.Send(paint.Event{})
		case error:
			log.Printf("window: %v", e)
		}
	}
}

func (a *AppState) applyOutcome(o session.Outcome, say func(string, ...any)) {
	sess := a.Session
	if err := sess.ApplyResult(o); err != nil {
		say("submit failed: %v", err)
		a.Notifier.Failed(err)
		return
	}
	if o.Result == nil {
		return
	}
	switch o.Result.Mode {
	case submit.Direct:
		say("result applied")
		a.Notifier.Submitted("result applied", sess.Source().Image)
	case submit.Queued:
		say("queued, press R to reload")
		a.Notifier.Submitted("to queue", nil)
	}
}

func (a *AppState) paint(s screen.Screen, w screen.Window, lay layout, message string) bool {
	if lay.window.X <= 0 || lay.window.Y <= 0 {
		return false
	}
	b, err := s.NewBuffer(lay.window)
	if err != nil {
		log.Printf("new buffer: %v", err)
		return false
	}
	defer b.Release()
	sess := a.Session
	src := sess.Source()
	mode := submit.Direct
	if d := sess.Dispatcher(); d != nil {
		mode, _ = d.ModeFor(locationOf(src))
	}
	animating := drawFrame(b.RGBA(), frameState{
		layout:  lay,
		source:  src,
		overlay: sess.Surface().Overlay(),
		cursor:  sess.Surface().Cursor(),
		effect:  a.Effect,
		shadow:  a.shadow,
		status: statusText(statusInfo{
			loaded:     src != nil,
			tool:       sess.Tool(),
			size:       sess.BrushSize(),
			strokes:    sess.Strokes(),
			mode:       mode.String(),
			submitting: sess.Submitting(),
			message:    message,
		}),
	})
	w.Upload(image.Point{}, b, b.Bounds())
	w.Publish()
	return animating
}

func locationOf(src *capture.Source) string {
	if src == nil {
		return ""
	}
	return src.Location
}
