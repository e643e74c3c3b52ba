package input

import (
	"errors"
	"image/color"
	"testing"

	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/mouse"

	"github.com/example/maskpaint/internal/coords"
	"github.com/example/maskpaint/internal/surface"
)

type strokeCall struct {
	x1, y1, x2, y2 float64
	mode           surface.Mode
	width          float64
}

type fakeCanvas struct {
	strokes      []strokeCall
	cursors      int
	cursorWidth  float64
	cursorClears int
}

func (f *fakeCanvas) ComposeStroke(x1, y1, x2, y2 float64, mode surface.Mode, _ color.Color, width float64) error {
	f.strokes = append(f.strokes, strokeCall{x1, y1, x2, y2, mode, width})
	return nil
}

func (f *fakeCanvas) DrawCursor(_, _, width float64) {
	f.cursors++
	f.cursorWidth = width
}

func (f *fakeCanvas) ClearCursor() { f.cursorClears++ }

type countRecorder struct{ n int }

func (c *countRecorder) RecordBeforeChange() error {
	c.n++
	return nil
}

type failingCapturer struct{ captured, released int }

func (f *failingCapturer) Capture(int) error {
	f.captured++
	return errors.New("unsupported")
}

func (f *failingCapturer) Release(int) error {
	f.released++
	return errors.New("unsupported")
}

func newTranslator(opts ...TranslatorOption) (*Translator, *fakeCanvas, *countRecorder) {
	c := &fakeCanvas{}
	r := &countRecorder{}
	return NewTranslator(c, r, opts...), c, r
}

func TestDownMoveUpProducesSegments(t *testing.T) {
	tr, c, r := newTranslator(WithBrush(Brush{Mode: surface.ModePaint, Color: color.Black, Size: 20}))
	events := []PointerEvent{
		{Kind: Down, ClientX: 10, ClientY: 10, Button: ButtonPrimary},
		{Kind: Move, ClientX: 20, ClientY: 10},
		{Kind: Move, ClientX: 30, ClientY: 10},
		{Kind: Up, ClientX: 30, ClientY: 10},
	}
	for _, ev := range events {
		if err := tr.Handle(ev); err != nil {
			t.Fatalf("%v: %v", ev.Kind, err)
		}
	}
	if r.n != 1 {
		t.Fatalf("recorded %d times, want 1", r.n)
	}
	want := []strokeCall{
		{10, 10, 10, 10, surface.ModePaint, 20},
		{10, 10, 20, 10, surface.ModePaint, 20},
		{20, 10, 30, 10, surface.ModePaint, 20},
	}
	if len(c.strokes) != len(want) {
		t.Fatalf("got %d strokes, want %d: %+v", len(c.strokes), len(want), c.strokes)
	}
	for i := range want {
		if c.strokes[i] != want[i] {
			t.Errorf("stroke %d = %+v, want %+v", i, c.strokes[i], want[i])
		}
	}
	if tr.State() != Idle {
		t.Fatalf("state %v after up", tr.State())
	}
}

func TestPressureScalesWidth(t *testing.T) {
	tr, c, _ := newTranslator(WithBrush(Brush{Size: 20}))
	_ = tr.Handle(PointerEvent{Kind: Down, Button: ButtonNone, Pressure: 0.5})
	_ = tr.Handle(PointerEvent{Kind: Move, ClientX: 5, Pressure: 0.01})
	if got := c.strokes[0].width; got != 10 {
		t.Fatalf("half pressure width %v, want 10", got)
	}
	if got := c.strokes[1].width; got != MinStrokeWidth {
		t.Fatalf("light pressure width %v, want %v", got, MinStrokeWidth)
	}
}

func TestMissingPressureMeansFull(t *testing.T) {
	b := Brush{Size: 8}
	for _, p := range []float64{0, -1} {
		if got := b.EffectiveWidth(p); got != 8 {
			t.Errorf("pressure %v: width %v, want 8", p, got)
		}
	}
}

func TestSecondaryButtonIgnored(t *testing.T) {
	tr, c, r := newTranslator()
	for _, b := range []Button{ButtonSecondary, ButtonAuxiliary} {
		_ = tr.Handle(PointerEvent{Kind: Down, Button: b})
	}
	if tr.State() != Idle || len(c.strokes) != 0 || r.n != 0 {
		t.Fatalf("non-primary press started a stroke")
	}
}

func TestHoverDrawsCursorOnly(t *testing.T) {
	tr, c, _ := newTranslator(WithBrush(Brush{Size: 6}))
	_ = tr.Handle(PointerEvent{Kind: Move, ClientX: 3, ClientY: 4})
	if len(c.strokes) != 0 {
		t.Fatal("hover drew a stroke")
	}
	if c.cursors != 1 || c.cursorWidth != 6 {
		t.Fatalf("cursor drawn %d times at width %v", c.cursors, c.cursorWidth)
	}
}

func TestLeaveEndsStroke(t *testing.T) {
	ended := 0
	tr, c, _ := newTranslator(WithStrokeEnd(func() { ended++ }))
	_ = tr.Handle(PointerEvent{Kind: Down, Button: ButtonPrimary})
	_ = tr.Handle(PointerEvent{Kind: Leave})
	if tr.State() != Idle {
		t.Fatal("leave did not end the stroke")
	}
	if ended != 1 {
		t.Fatalf("stroke end hook ran %d times", ended)
	}
	if c.cursorClears != 1 {
		t.Fatal("leave did not clear the cursor")
	}
	_ = tr.Handle(PointerEvent{Kind: Up})
	if ended != 1 {
		t.Fatal("up while idle ran the stroke end hook")
	}
}

func TestOtherButtonReleaseKeepsStroke(t *testing.T) {
	ended := 0
	tr, c, _ := newTranslator(WithStrokeEnd(func() { ended++ }))
	_ = tr.Handle(PointerEvent{Kind: Down, Button: ButtonPrimary})
	_ = tr.Handle(PointerEvent{Kind: Up, Button: ButtonSecondary})
	_ = tr.Handle(PointerEvent{Kind: Up, Button: ButtonPrimary, PointerID: 3})
	if tr.State() != Drawing || ended != 0 {
		t.Fatalf("foreign release ended the stroke: state %v, hook %d", tr.State(), ended)
	}
	_ = tr.Handle(PointerEvent{Kind: Move, ClientX: 8})
	if len(c.strokes) != 2 {
		t.Fatalf("drag stopped drawing after a foreign release: %d strokes", len(c.strokes))
	}
	_ = tr.Handle(PointerEvent{Kind: Up, Button: ButtonPrimary})
	if tr.State() != Idle || ended != 1 {
		t.Fatalf("primary release: state %v, hook %d", tr.State(), ended)
	}
}

func TestPenReleaseWithoutButton(t *testing.T) {
	tr, _, _ := newTranslator()
	_ = tr.Handle(PointerEvent{Kind: Down, Button: ButtonNone, PointerID: 2})
	_ = tr.Handle(PointerEvent{Kind: Up, Button: ButtonPrimary, PointerID: 2})
	if tr.State() != Idle {
		t.Fatal("pen release did not end the stroke")
	}
}

func TestCaptureFailureIgnored(t *testing.T) {
	capt := &failingCapturer{}
	tr, c, _ := newTranslator(WithCapturer(capt))
	if err := tr.Handle(PointerEvent{Kind: Down, Button: ButtonPrimary, PointerID: 7}); err != nil {
		t.Fatalf("down: %v", err)
	}
	if err := tr.Handle(PointerEvent{Kind: Up, PointerID: 7}); err != nil {
		t.Fatalf("up: %v", err)
	}
	if capt.captured != 1 || capt.released != 1 {
		t.Fatalf("capture %d release %d", capt.captured, capt.released)
	}
	if len(c.strokes) != 1 {
		t.Fatal("capture failure blocked drawing")
	}
}

func TestOriginOffset(t *testing.T) {
	tr, c, _ := newTranslator(WithOrigin(coords.Pt(100, 50)))
	_ = tr.Handle(PointerEvent{Kind: Down, ClientX: 110, ClientY: 60, Button: ButtonPrimary})
	if s := c.strokes[0]; s.x1 != 10 || s.y1 != 10 {
		t.Fatalf("stroke at (%v,%v), want (10,10)", s.x1, s.y1)
	}
}

func TestBrushChangeAppliesToNextEvent(t *testing.T) {
	tr, c, _ := newTranslator()
	_ = tr.Handle(PointerEvent{Kind: Down, Button: ButtonPrimary})
	tr.SetBrush(Brush{Mode: surface.ModeErase, Size: 4})
	_ = tr.Handle(PointerEvent{Kind: Move, ClientX: 1})
	if c.strokes[1].mode != surface.ModeErase {
		t.Fatal("mode change not applied mid stroke")
	}
}

func TestFromMouse(t *testing.T) {
	ev, ok := FromMouse(mouse.Event{X: 40, Y: 20, Button: mouse.ButtonLeft, Direction: mouse.DirPress}, 2)
	if !ok || ev.Kind != Down || ev.Button != ButtonPrimary || ev.ClientX != 20 || ev.ClientY != 10 {
		t.Fatalf("unexpected press %+v ok=%v", ev, ok)
	}
	ev, ok = FromMouse(mouse.Event{X: 1, Y: 1}, 1)
	if !ok || ev.Kind != Move || ev.Button != ButtonNone {
		t.Fatalf("unexpected move %+v ok=%v", ev, ok)
	}
	if _, ok := FromMouse(mouse.Event{Button: mouse.ButtonWheelUp, Direction: mouse.DirStep}, 1); ok {
		t.Fatal("wheel step converted")
	}
}

func TestShortcut(t *testing.T) {
	cases := []struct {
		ev   key.Event
		want Action
	}{
		{key.Event{Rune: 'b', Code: key.CodeB, Direction: key.DirPress}, ActionBrush},
		{key.Event{Rune: 'E', Code: key.CodeE, Direction: key.DirPress, Modifiers: key.ModShift}, ActionEraser},
		{key.Event{Rune: 'z', Code: key.CodeZ, Direction: key.DirPress, Modifiers: key.ModControl}, ActionUndo},
		{key.Event{Rune: 'z', Code: key.CodeZ, Direction: key.DirPress, Modifiers: key.ModMeta}, ActionUndo},
		{key.Event{Rune: 'Z', Code: key.CodeZ, Direction: key.DirPress, Modifiers: key.ModControl | key.ModShift}, ActionRedo},
		{key.Event{Rune: -1, Code: key.CodeZ, Direction: key.DirPress, Modifiers: key.ModMeta | key.ModShift}, ActionRedo},
		{key.Event{Code: key.CodeEscape, Direction: key.DirPress}, ActionClose},
		{key.Event{Rune: 'z', Code: key.CodeZ, Direction: key.DirPress}, ActionNone},
		{key.Event{Rune: 'b', Code: key.CodeB, Direction: key.DirRelease}, ActionNone},
		{key.Event{Rune: 'b', Code: key.CodeB, Direction: key.DirPress, Modifiers: key.ModControl}, ActionNone},
	}
	for _, c := range cases {
		if got := Shortcut(c.ev); got != c.want {
			t.Errorf("Shortcut(%v) = %v, want %v", c.ev, got, c.want)
		}
	}
}
