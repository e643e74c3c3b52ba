package coords

import (
	"math"
	"testing"
)

func TestClampDPR(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 1},
		{-2, 1},
		{0.5, 1},
		{1, 1},
		{1.5, 1.5},
		{3, 3},
		{math.NaN(), 1},
		{math.Inf(1), 1},
	}
	for _, tc := range tests {
		if got := ClampDPR(tc.in); got != tc.want {
			t.Fatalf("ClampDPR(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDeviceSizeRounds(t *testing.T) {
	w, h := DeviceSize(300.4, 199.6, 1.5)
	if w != 451 || h != 299 {
		t.Fatalf("DeviceSize = %dx%d, want 451x299", w, h)
	}
	w, h = DeviceSize(100, 100, 0.25)
	if w != 100 || h != 100 {
		t.Fatalf("ratios below one should clamp, got %dx%d", w, h)
	}
}

func TestDisplayDeviceRoundTrip(t *testing.T) {
	for _, dpr := range []float64{1, 1.25, 1.5, 2, 2.75, 3} {
		s := NewSpace(dpr, 640, 480, 4000, 3000)
		for _, p := range []Point{{0, 0}, {1, 1}, {13, 7}, {639, 479}, {321.5, 100.25}} {
			dx, dy := s.ToDevice(p).Round()
			back := s.ToDisplay(Pt(float64(dx), float64(dy)))
			if math.Abs(back.X-p.X) > 1 || math.Abs(back.Y-p.Y) > 1 {
				t.Fatalf("dpr %v: %v -> (%d,%d) -> %v exceeds tolerance", dpr, p, dx, dy, back)
			}
		}
	}
}

func TestDisplaySourceRoundTrip(t *testing.T) {
	s := NewSpace(2, 400, 300, 1600, 1200)
	p := Pt(100, 75)
	src := s.DisplayToSource(p)
	if src != Pt(400, 300) {
		t.Fatalf("DisplayToSource = %v, want (400,300)", src)
	}
	if back := s.SourceToDisplay(src); back != p {
		t.Fatalf("SourceToDisplay = %v, want %v", back, p)
	}
}

func TestDeviceToSource(t *testing.T) {
	s := NewSpace(2, 400, 300, 800, 600)
	got := s.DeviceToSource(Pt(200, 100))
	if got != Pt(200, 100) {
		t.Fatalf("DeviceToSource = %v, want (200,100)", got)
	}
}

func TestZeroDisplayKeepsIdentity(t *testing.T) {
	s := NewSpace(1, 0, 0, 800, 600)
	if got := s.DisplayToSource(Pt(5, 6)); got != Pt(5, 6) {
		t.Fatalf("expected identity scaling before layout, got %v", got)
	}
}
