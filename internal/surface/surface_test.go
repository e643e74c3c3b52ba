package surface

import (
	"errors"
	"image"
	"image/color"
	"io"
	"testing"
)

var red = color.RGBA{255, 0, 0, 255}

// alphaBounds returns the inclusive bounds of every pixel with alpha > 0.
func alphaBounds(img *image.RGBA) (image.Rectangle, bool) {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, -1, -1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y).A == 0 {
				continue
			}
			if x < minX {
				minX = x
			}
			if y < minY {
				minY = y
			}
			if x > maxX {
				maxX = x
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX, maxY), true
}

func within(got, want, tol int) bool {
	d := got - want
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestResizeMatchesDeviceRatio(t *testing.T) {
	s := New(WithDPR(1.5))
	if err := s.Resize(200.2, 100.6); err != nil {
		t.Fatalf("resize: %v", err)
	}
	w, h := s.DeviceSize()
	if w != 300 || h != 151 {
		t.Fatalf("device size %dx%d, want 300x151", w, h)
	}
	if s.Cursor().Bounds() != s.Overlay().Bounds() {
		t.Fatalf("cursor bounds %v differ from overlay %v", s.Cursor().Bounds(), s.Overlay().Bounds())
	}
}

func TestComposeStrokeBeforeResize(t *testing.T) {
	s := New()
	if err := s.ComposeStroke(0, 0, 1, 1, ModePaint, red, 4); !errors.Is(err, ErrNoBuffer) {
		t.Fatalf("expected ErrNoBuffer, got %v", err)
	}
}

func TestHorizontalStrokeBounds(t *testing.T) {
	s := New()
	if err := s.Resize(100, 100); err != nil {
		t.Fatalf("resize: %v", err)
	}
	const width = 10
	if err := s.ComposeStroke(10, 10, 50, 10, ModePaint, red, width); err != nil {
		t.Fatalf("stroke: %v", err)
	}
	r, ok := alphaBounds(s.Overlay())
	if !ok {
		t.Fatal("expected painted pixels")
	}
	if !within(r.Min.Y, 10-width/2, 1) || !within(r.Max.Y, 10+width/2, 1) {
		t.Fatalf("vertical extent %d..%d, want about %d..%d", r.Min.Y, r.Max.Y, 10-width/2, 10+width/2)
	}
	if r.Min.X > 10 || r.Max.X < 49 {
		t.Fatalf("horizontal extent %d..%d should cover 10..50", r.Min.X, r.Max.X)
	}
	if r.Min.X < 10-width/2-1 || r.Max.X > 50+width/2+1 {
		t.Fatalf("round caps extend too far: %d..%d", r.Min.X, r.Max.X)
	}
}

func TestStrokeUsesDevicePixels(t *testing.T) {
	s := New(WithDPR(2))
	if err := s.Resize(50, 50); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if err := s.ComposeStroke(10, 10, 20, 10, ModePaint, red, 4); err != nil {
		t.Fatalf("stroke: %v", err)
	}
	r, ok := alphaBounds(s.Overlay())
	if !ok {
		t.Fatal("expected painted pixels")
	}
	if !within(r.Min.Y, 16, 1) || !within(r.Max.Y, 24, 1) {
		t.Fatalf("device extent %v, want rows about 16..24", r)
	}
}

func TestZeroLengthStrokeDrawsDot(t *testing.T) {
	s := New()
	if err := s.Resize(40, 40); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if err := s.ComposeStroke(20, 20, 20, 20, ModePaint, red, 6); err != nil {
		t.Fatalf("stroke: %v", err)
	}
	if s.Overlay().RGBAAt(20, 20).A == 0 {
		t.Fatal("expected a dot at the stroke point")
	}
	r, _ := alphaBounds(s.Overlay())
	if r.Dx() > 8 || r.Dy() > 8 {
		t.Fatalf("dot too large: %v", r)
	}
}

func TestEraseRemovesAlpha(t *testing.T) {
	s := New()
	if err := s.Resize(60, 60); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if err := s.ComposeStroke(10, 30, 50, 30, ModePaint, red, 10); err != nil {
		t.Fatalf("paint: %v", err)
	}
	if err := s.ComposeStroke(30, 10, 30, 50, ModeErase, red, 6); err != nil {
		t.Fatalf("erase: %v", err)
	}
	if a := s.Overlay().RGBAAt(30, 30).A; a != 0 {
		t.Fatalf("expected erased centre, alpha=%d", a)
	}
	if a := s.Overlay().RGBAAt(15, 30).A; a == 0 {
		t.Fatal("erase removed pixels outside its stroke")
	}
}

func TestEraseClipsAtBufferEdge(t *testing.T) {
	s := New(WithDPR(2))
	if err := s.Resize(30, 20); err != nil {
		t.Fatalf("resize: %v", err)
	}
	w, h := s.DeviceSize()
	if err := s.ComposeStroke(0, 10, 30, 10, ModePaint, red, 20); err != nil {
		t.Fatalf("paint: %v", err)
	}
	// Segments running off the left and bottom-right edges.
	if err := s.ComposeStroke(-10, 3, 4, 3, ModeErase, red, 4); err != nil {
		t.Fatalf("erase left: %v", err)
	}
	if err := s.ComposeStroke(27, 17, 40, 30, ModeErase, red, 4); err != nil {
		t.Fatalf("erase corner: %v", err)
	}
	if a := s.Overlay().RGBAAt(0, 6).A; a != 0 {
		t.Fatalf("left edge not erased, alpha=%d", a)
	}
	if a := s.Overlay().RGBAAt(w-1, h-1).A; a != 0 {
		t.Fatalf("bottom-right corner not erased, alpha=%d", a)
	}
	if a := s.Overlay().RGBAAt(30, 20).A; a == 0 {
		t.Fatal("erase removed pixels away from both segments")
	}
	if a := s.Overlay().RGBAAt(20, 6).A; a == 0 {
		t.Fatal("left segment erased past its end")
	}
	// Entirely outside the buffer is a no-op.
	before := append([]byte(nil), s.Overlay().Pix...)
	if err := s.ComposeStroke(-40, -40, -20, -20, ModeErase, red, 4); err != nil {
		t.Fatalf("erase outside: %v", err)
	}
	for i, v := range s.Overlay().Pix {
		if v != before[i] {
			t.Fatal("erase outside the buffer changed pixels")
		}
	}
}

func TestClear(t *testing.T) {
	s := New()
	if err := s.Resize(20, 20); err != nil {
		t.Fatalf("resize: %v", err)
	}
	_ = s.ComposeStroke(5, 5, 15, 15, ModePaint, red, 4)
	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := alphaBounds(s.Overlay()); ok {
		t.Fatal("overlay not empty after clear")
	}
}

func TestSnapshotRestoreSameSize(t *testing.T) {
	s := New()
	if err := s.Resize(30, 30); err != nil {
		t.Fatalf("resize: %v", err)
	}
	_ = s.ComposeStroke(5, 5, 25, 20, ModePaint, color.RGBA{0, 128, 255, 200}, 5)
	want := append([]uint8(nil), s.Overlay().Pix...)
	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	_ = s.Clear()
	if err := s.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got := s.Overlay().Pix
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pixel byte %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestResizePreservesContent(t *testing.T) {
	s := New()
	if err := s.Resize(300, 300); err != nil {
		t.Fatalf("resize: %v", err)
	}
	// Fill a 60x60 square at (30,30).
	for y := 60.0; y <= 90; y += 2 {
		_ = s.ComposeStroke(30, y, 90, y, ModePaint, red, 60)
	}
	before, ok := alphaBounds(s.Overlay())
	if !ok {
		t.Fatal("expected painted pixels")
	}
	if err := s.Resize(600, 600); err != nil {
		t.Fatalf("resize up: %v", err)
	}
	w, h := s.DeviceSize()
	if w != 600 || h != 600 {
		t.Fatalf("device size %dx%d, want 600x600", w, h)
	}
	after, ok := alphaBounds(s.Overlay())
	if !ok {
		t.Fatal("content lost on resize")
	}
	if !within(after.Min.X, before.Min.X*2, 2) || !within(after.Max.X, before.Max.X*2, 3) ||
		!within(after.Min.Y, before.Min.Y*2, 2) || !within(after.Max.Y, before.Max.Y*2, 3) {
		t.Fatalf("bounds %v not proportional to %v", after, before)
	}
}

func TestResizeSnapshotFailureLeavesBlank(t *testing.T) {
	fail := errors.New("out of memory")
	s := New(WithEncoder(func(io.Writer, image.Image) error { return fail }))
	if err := s.Resize(20, 20); err != nil {
		t.Fatalf("first resize: %v", err)
	}
	_ = s.ComposeStroke(2, 2, 18, 18, ModePaint, red, 4)
	err := s.Resize(40, 40)
	if !errors.Is(err, fail) {
		t.Fatalf("expected wrapped encoder error, got %v", err)
	}
	if w, h := s.DeviceSize(); w != 40 || h != 40 {
		t.Fatalf("buffers not resized: %dx%d", w, h)
	}
	if _, ok := alphaBounds(s.Overlay()); ok {
		t.Fatal("expected blank overlay after failed carry-over")
	}
}

func TestCursorRingNeverTouchesOverlay(t *testing.T) {
	s := New()
	if err := s.Resize(50, 50); err != nil {
		t.Fatalf("resize: %v", err)
	}
	s.DrawCursor(25, 25, 20)
	if _, ok := alphaBounds(s.Cursor()); !ok {
		t.Fatal("expected ring on cursor buffer")
	}
	if _, ok := alphaBounds(s.Overlay()); ok {
		t.Fatal("cursor drew into overlay")
	}
	if s.Cursor().RGBAAt(25, 25).A != 0 {
		t.Fatal("ring should be hollow")
	}
	s.ClearCursor()
	if _, ok := alphaBounds(s.Cursor()); ok {
		t.Fatal("cursor not cleared")
	}
}
