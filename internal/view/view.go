// Package view is the interaction controller: pan and zoom with a bounded
// scale, node drag routed to the layout, an animated reset to a fixed
// transform, and viewport sizing for windowed and fullscreen modes.
package view

import (
	"math"
	"sync"
	"time"

	"github.com/msalah0e/trustmap/internal/config"
	"github.com/msalah0e/trustmap/internal/layout"
)

// Transform maps scene coordinates to screen: screen = scene*K + (X, Y).
type Transform struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	K float64 `json:"k"`
}

// Identity is the transform with no pan and unit scale.
func Identity() Transform {
	return Transform{K: 1}
}

// Apply maps a scene point to the screen.
func (t Transform) Apply(p layout.Point) layout.Point {
	return layout.Point{X: p.X*t.K + t.X, Y: p.Y*t.K + t.Y}
}

// Invert maps a screen point to the scene.
func (t Transform) Invert(p layout.Point) layout.Point {
	return layout.Point{X: (p.X - t.X) / t.K, Y: (p.Y - t.Y) / t.K}
}

// Cursor is the pointer affordance the renderer should show.
type Cursor string

const (
	CursorGrab     Cursor = "grab"
	CursorGrabbing Cursor = "grabbing"
)

// Size is a width and height in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DragTarget receives node drags. *layout.Simulation implements it.
type DragTarget interface {
	DragStart(key string, p layout.Point) bool
	DragMove(key string, p layout.Point) bool
	DragEnd(key string) bool
}

// Params bound zoom and size the viewport.
type Params struct {
	MinZoom       float64
	MaxZoom       float64
	ResetDuration time.Duration
	MaxWidth      float64 // windowed width cap
	Chrome        float64 // fullscreen height reserved for controls
	NarrowWidth   float64 // below this, reset zooms out
	NarrowZoom    float64
	MinHeight     float64
	MaxHeight     float64
	PerNode       float64 // windowed height added per visible node
}

// DefaultParams returns the default view tuning.
func DefaultParams() Params {
	return ParamsFrom(config.Default().View)
}

// ParamsFrom maps the [view] config section.
func ParamsFrom(c config.ViewConfig) Params {
	return Params{
		MinZoom:       c.MinZoom,
		MaxZoom:       c.MaxZoom,
		ResetDuration: c.ResetDuration.Duration,
		MaxWidth:      c.MaxWidth,
		Chrome:        c.Chrome,
		NarrowWidth:   640,
		NarrowZoom:    0.6,
		MinHeight:     420,
		MaxHeight:     820,
		PerNode:       2,
	}
}

type animation struct {
	from, to Transform
	start    time.Time
}

// Controller holds the interaction state of one view. It is safe for
// concurrent use.
type Controller struct {
	mu sync.Mutex

	params    Params
	now       func() time.Time
	transform Transform
	anim      *animation
	cursor    Cursor

	target   DragTarget
	dragging string
	panning  bool
	panFrom  layout.Point

	fullscreen bool
	container  Size
	window     Size
	nodes      int
	viewport   layout.Viewport
}

// Option customises a Controller.
type Option func(*Controller)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New returns a controller at the identity transform.
func New(p Params, opts ...Option) *Controller {
	c := &Controller{
		params:    p,
		now:       time.Now,
		transform: Identity(),
		cursor:    CursorGrab,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTarget routes node drags to t. A nil target drops drags.
func (c *Controller) SetTarget(t DragTarget) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dragging != "" && c.target != nil {
		c.target.DragEnd(c.dragging)
	}
	c.target = t
	c.dragging = ""
}

// Transform returns the transform at the current time, advancing any reset
// animation.
func (c *Controller) Transform() Transform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current()
}

// Animating reports whether a reset animation is in progress.
func (c *Controller) Animating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current()
	return c.anim != nil
}

func (c *Controller) current() Transform {
	if c.anim == nil {
		return c.transform
	}
	elapsed := c.now().Sub(c.anim.start)
	if c.params.ResetDuration <= 0 || elapsed >= c.params.ResetDuration {
		c.transform = c.anim.to
		c.anim = nil
		return c.transform
	}
	t := easeCubicInOut(float64(elapsed) / float64(c.params.ResetDuration))
	c.transform = interpolate(c.anim.from, c.anim.to, t)
	return c.transform
}

// Cursor returns the pointer affordance.
func (c *Controller) Cursor() Cursor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// Zoom scales by factor about the screen point at. The scale is clamped to
// [MinZoom, MaxZoom] and the point under the cursor stays fixed.
func (c *Controller) Zoom(factor float64, at layout.Point) Transform {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.current()
	c.anim = nil
	return c.zoomTo(t.K*factor, at)
}

// ZoomTo sets the scale about the screen point at.
func (c *Controller) ZoomTo(k float64, at layout.Point) Transform {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current()
	c.anim = nil
	return c.zoomTo(k, at)
}

func (c *Controller) zoomTo(k float64, at layout.Point) Transform {
	if math.IsNaN(k) || k <= 0 {
		return c.transform
	}
	k = math.Max(c.params.MinZoom, math.Min(c.params.MaxZoom, k))
	t := c.transform
	scene := t.Invert(at)
	c.transform = Transform{X: at.X - scene.X*k, Y: at.Y - scene.Y*k, K: k}
	return c.transform
}

// DoubleClick is ignored; double-click zoom conflicts with drag.
func (c *Controller) DoubleClick(layout.Point) Transform {
	return c.Transform()
}

// PanStart begins a pan unless a node is being dragged.
func (c *Controller) PanStart(at layout.Point) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dragging != "" {
		return false
	}
	c.current()
	c.anim = nil
	c.panning = true
	c.panFrom = at
	c.cursor = CursorGrabbing
	return true
}

// PanMove translates by the pointer movement since the last call.
func (c *Controller) PanMove(at layout.Point) Transform {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.panning || c.dragging != "" {
		return c.current()
	}
	c.transform.X += at.X - c.panFrom.X
	c.transform.Y += at.Y - c.panFrom.Y
	c.panFrom = at
	return c.transform
}

// PanEnd finishes a pan.
func (c *Controller) PanEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.panning = false
	c.cursor = CursorGrab
}

// DragStart picks up a node at a screen point. Any pan in progress stops.
func (c *Controller) DragStart(key string, at layout.Point) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target == nil {
		return false
	}
	if !c.target.DragStart(key, c.current().Invert(at)) {
		return false
	}
	c.dragging = key
	c.panning = false
	c.cursor = CursorGrabbing
	return true
}

// DragMove moves the dragged node to a screen point.
func (c *Controller) DragMove(at layout.Point) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dragging == "" || c.target == nil {
		return false
	}
	return c.target.DragMove(c.dragging, c.current().Invert(at))
}

// DragEnd releases the dragged node.
func (c *Controller) DragEnd() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dragging == "" {
		return false
	}
	key := c.dragging
	c.dragging = ""
	c.cursor = CursorGrab
	if c.target == nil {
		return false
	}
	return c.target.DragEnd(key)
}

// Dragging returns the key of the dragged node, or "".
func (c *Controller) Dragging() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dragging
}

// ResetTarget is the transform Reset animates to: identity, or a fixed
// zoomed-out transform about the viewport centre on narrow viewports.
func (c *Controller) ResetTarget() Transform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resetTarget()
}

func (c *Controller) resetTarget() Transform {
	vp := c.viewport
	if vp.Width <= 0 || vp.Width >= c.params.NarrowWidth {
		return Identity()
	}
	k := c.params.NarrowZoom
	return Transform{X: vp.Width * (1 - k) / 2, Y: vp.Height * (1 - k) / 2, K: k}
}

// Reset animates back to ResetTarget over ResetDuration. Calling it again
// while animating, or when already there, changes nothing.
func (c *Controller) Reset() Transform {
	c.mu.Lock()
	defer c.mu.Unlock()
	to := c.resetTarget()
	from := c.current()
	if c.anim != nil && c.anim.to == to {
		return to
	}
	if from == to {
		c.anim = nil
		return to
	}
	c.anim = &animation{from: from, to: to, start: c.now()}
	return to
}

// SetFullscreen switches mode and recomputes the viewport.
func (c *Controller) SetFullscreen(on bool) layout.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fullscreen = on
	return c.resize()
}

// Fullscreen reports the mode.
func (c *Controller) Fullscreen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fullscreen
}

// Resize records new container and window sizes and recomputes the viewport.
func (c *Controller) Resize(container, window Size) layout.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.container, c.window = container, window
	return c.resize()
}

// SetContentSize records the visible node count used by the windowed
// height heuristic.
func (c *Controller) SetContentSize(nodes int) layout.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes = nodes
	return c.resize()
}

// Viewport returns the current drawing area.
func (c *Controller) Viewport() layout.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport
}

func (c *Controller) resize() layout.Viewport {
	p := c.params
	if c.fullscreen {
		c.viewport = layout.Viewport{
			Width:  math.Max(0, c.window.Width),
			Height: math.Max(0, c.window.Height-p.Chrome),
		}
		return c.viewport
	}
	w := c.container.Width
	if p.MaxWidth > 0 && w > p.MaxWidth {
		w = p.MaxWidth
	}
	h := p.MinHeight + float64(c.nodes)*p.PerNode
	h = math.Max(p.MinHeight, math.Min(p.MaxHeight, h))
	if w < p.NarrowWidth {
		// keep narrow screens roughly square
		h = math.Min(h, math.Max(w, p.MinHeight*0.75))
	}
	c.viewport = layout.Viewport{Width: math.Max(0, w), Height: h}
	return c.viewport
}

func interpolate(a, b Transform, t float64) Transform {
	return Transform{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
		K: a.K + (b.K-a.K)*t,
	}
}

func easeCubicInOut(t float64) float64 {
	t *= 2
	if t <= 1 {
		return t * t * t / 2
	}
	t -= 2
	return (t*t*t + 2) / 2
}
