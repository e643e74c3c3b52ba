// Package effect defines the seed-point burst shown when a region is sent off
// and a raster renderer for it.
package effect

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/fogleman/gg"

	"github.com/example/maskpaint/internal/coords"
)

// Params controls the burst timing and look.
type Params struct {
	Duration   time.Duration
	EraseDelay time.Duration
	MinRadius  float64
	MaxRadius  float64
	Alpha      float64
}

// DefaultParams are the fixed burst settings.
var DefaultParams = Params{
	Duration:   500 * time.Millisecond,
	EraseDelay: 300 * time.Millisecond,
	MinRadius:  2,
	MaxRadius:  10,
	Alpha:      0.8,
}

// Notifier receives burst triggers. Points are in display space.
type Notifier interface {
	Burst(points []coords.Point, p Params)
}

// Func adapts a function to Notifier.
type Func func(points []coords.Point, p Params)

// Burst calls f.
func (f Func) Burst(points []coords.Point, p Params) { f(points, p) }

// Discard ignores every burst.
var Discard Notifier = Func(func([]coords.Point, Params) {})

type circle struct {
	at     coords.Point
	radius float64
}

// Renderer keeps the active burst and paints it on demand.
type Renderer struct {
	mu      sync.Mutex
	now     func() time.Time
	rnd     func() float64
	start   time.Time
	params  Params
	circles []circle
	col     color.RGBA
}

// NewRenderer creates an idle renderer that paints in col.
func NewRenderer(col color.Color) *Renderer {
	r, g, b, _ := col.RGBA()
	return &Renderer{
		now: time.Now,
		rnd: rand.Float64,
		col: color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), 255},
	}
}

// Burst starts a new burst, replacing any running one.
func (r *Renderer) Burst(points []coords.Point, p Params) {
	circles := make([]circle, len(points))
	for i, pt := range points {
		circles[i] = circle{at: pt, radius: p.MinRadius + r.rnd()*(p.MaxRadius-p.MinRadius)}
	}
	r.mu.Lock()
	r.start = r.now()
	r.params = p
	r.circles = circles
	r.mu.Unlock()
}

// Active reports whether a burst still has visible frames.
func (r *Renderer) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeLocked()
}

func (r *Renderer) activeLocked() bool {
	if len(r.circles) == 0 {
		return false
	}
	return r.now().Sub(r.start) < r.params.Duration+r.params.EraseDelay
}

// opacity returns the alpha at elapsed time: full for Duration, then a linear
// fade over EraseDelay.
func (p Params) opacity(elapsed time.Duration) float64 {
	switch {
	case elapsed < 0:
		return 0
	case elapsed <= p.Duration:
		return p.Alpha
	case p.EraseDelay <= 0:
		return 0
	}
	fade := float64(elapsed-p.Duration) / float64(p.EraseDelay)
	return p.Alpha * math.Max(0, 1-fade)
}

// Draw paints the current frame into dst, whose pixels are device space at
// the given ratio. It reports whether anything was drawn.
func (r *Renderer) Draw(dst *image.RGBA, dpr float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.activeLocked() || dst == nil {
		return false
	}
	a := r.params.opacity(r.now().Sub(r.start))
	if a <= 0 {
		return false
	}
	ratio := coords.ClampDPR(dpr)
	dc := gg.NewContextForRGBA(dst)
	dc.SetRGBA255(int(r.col.R), int(r.col.G), int(r.col.B), int(math.Round(a*255)))
	for _, c := range r.circles {
		dc.DrawCircle(c.at.X*ratio, c.at.Y*ratio, c.radius*ratio)
		dc.Fill()
	}
	return true
}
