// Package layout is the radial force layout engine. It owns node positions
// in a table keyed by node key, separate from the graph model, and advances
// them with link, charge, center, collision and radial forces until the
// energy (alpha) decays below a threshold.
package layout

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/msalah0e/trustmap/internal/graph"
	"github.com/msalah0e/trustmap/internal/metrics"
)

// State is the simulation lifecycle.
type State int

const (
	Running State = iota
	Cooling
	Settled
	Disposed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Cooling:
		return "cooling"
	case Settled:
		return "settled"
	case Disposed:
		return "disposed"
	}
	return "unknown"
}

// coolingAlpha is where Running gives way to Cooling.
const coolingAlpha = 0.5

// warmAlpha is the starting energy when most bodies were seeded from a
// previous layout.
const warmAlpha = 0.3

var goldenAngle = math.Pi * (3 - math.Sqrt(5))

// Viewport is the drawing area in scene units.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is a 2D position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Position is one node's position in a frame.
type Position struct {
	Key string  `json:"nodeKey"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
}

// Frame is emitted after every tick.
type Frame struct {
	Tick      int        `json:"tick"`
	Alpha     float64    `json:"alpha"`
	State     string     `json:"state"`
	Positions []Position `json:"positions"`
}

type body struct {
	key    string
	level  int
	root   bool
	x, y   float64
	vx, vy float64
	pinned bool
	px, py float64
	radius float64
	charge float64
	ring   float64
}

type link struct {
	source, target int
	distance       float64
	strength       float64
	bias           float64
}

// Simulation is one layout run over a fixed node and edge set. Rebuilding
// the graph means disposing the simulation and creating a new one, seeded
// with the old positions when warm start is on.
type Simulation struct {
	mu sync.Mutex

	params   Params
	viewport Viewport
	bodies   []body
	index    map[string]int
	links    []link
	rng      *rand.Rand

	alpha       float64
	alphaTarget float64
	ticks       int
	state       State

	onTick  func(Frame)
	logger  *zap.Logger
	metrics *metrics.Metrics

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// Option customises a Simulation.
type Option func(*Simulation)

// WithTickHandler receives every frame from Start's loop. It is called
// without the simulation lock held.
func WithTickHandler(fn func(Frame)) Option {
	return func(s *Simulation) { s.onTick = fn }
}

// WithSeed places bodies whose key is present at the given positions
// instead of the default ring placement.
func WithSeed(seed map[string]Point) Option {
	return func(s *Simulation) {
		seeded := 0
		for i := range s.bodies {
			if p, ok := seed[s.bodies[i].key]; ok {
				s.bodies[i].x, s.bodies[i].y = p.X, p.Y
				seeded++
			}
		}
		if seeded > 0 && seeded*2 >= len(s.bodies) {
			s.alpha = warmAlpha
		}
	}
}

// WithLogger sets the simulation logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Simulation) { s.logger = l.Named("layout") }
}

// WithMetrics counts ticks.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Simulation) { s.metrics = m }
}

// New builds a simulation for the visible nodes and edges. Edges whose
// endpoints are missing, and self-loops, exert no force.
func New(nodes []graph.Node, edges []graph.Edge, vp Viewport, p Params, opts ...Option) *Simulation {
	s := &Simulation{
		params:   p,
		viewport: vp,
		index:    make(map[string]int, len(nodes)),
		rng:      rand.New(rand.NewSource(1)),
		alpha:    1,
		state:    Running,
		logger:   zap.NewNop(),
		wake:     make(chan struct{}, 1),
	}

	cx, cy := s.center()
	s.bodies = make([]body, 0, len(nodes))
	for i, n := range nodes {
		if _, dup := s.index[n.Key]; dup {
			continue
		}
		b := body{
			key:    n.Key,
			level:  n.Level,
			root:   n.IsRoot,
			radius: p.Radius(n.Level, n.IsRoot) + collidePadding,
			charge: p.charge(n.Level, n.IsRoot),
			ring:   p.RingTarget(n.Level),
		}
		if !n.IsRoot {
			r := math.Max(b.ring, 10*math.Sqrt(0.5+float64(i)))
			a := float64(i) * goldenAngle
			b.x, b.y = cx+r*math.Cos(a), cy+r*math.Sin(a)
		} else {
			b.x, b.y = cx, cy
		}
		s.index[n.Key] = len(s.bodies)
		s.bodies = append(s.bodies, b)
	}

	count := make([]int, len(s.bodies))
	for _, e := range edges {
		si, ok1 := s.index[e.Source]
		ti, ok2 := s.index[e.Target]
		if !ok1 || !ok2 || si == ti {
			continue
		}
		count[si]++
		count[ti]++
		s.links = append(s.links, link{
			source:   si,
			target:   ti,
			distance: p.linkDistance(s.bodies[si].level, s.bodies[ti].level),
		})
	}
	for i := range s.links {
		l := &s.links[i]
		cs, ct := count[l.source], count[l.target]
		l.bias = float64(cs) / float64(cs+ct)
		l.strength = 1 / float64(min(cs, ct))
	}

	for _, opt := range opts {
		opt(s)
	}
	s.updateState()
	return s
}

func (s *Simulation) center() (float64, float64) {
	return s.viewport.Width / 2, s.viewport.Height / 2
}

// Step advances one tick and returns the resulting frame. It is a no-op
// once disposed.
func (s *Simulation) Step() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick()
	return s.frame()
}

func (s *Simulation) tick() {
	if s.state == Disposed {
		return
	}
	s.alpha += (s.alphaTarget - s.alpha) * s.params.AlphaDecay

	s.applyLink()
	s.applyCharge()
	s.applyCenter()
	s.applyCollide()
	s.applyRadial()

	for i := range s.bodies {
		b := &s.bodies[i]
		if b.pinned {
			b.x, b.y = b.px, b.py
			b.vx, b.vy = 0, 0
			continue
		}
		b.vx *= 1 - s.params.VelocityDecay
		b.vy *= 1 - s.params.VelocityDecay
		b.x += b.vx
		b.y += b.vy
	}

	s.ticks++
	s.metrics.Tick()
	s.updateState()
}

func (s *Simulation) updateState() {
	switch {
	case s.state == Disposed:
	case s.alpha < s.params.AlphaMin && s.alphaTarget < s.params.AlphaMin:
		s.state = Settled
	case s.alphaTarget > 0 || s.alpha >= coolingAlpha:
		s.state = Running
	default:
		s.state = Cooling
	}
}

func (s *Simulation) frame() Frame {
	f := Frame{
		Tick:      s.ticks,
		Alpha:     s.alpha,
		State:     s.state.String(),
		Positions: make([]Position, len(s.bodies)),
	}
	for i, b := range s.bodies {
		f.Positions[i] = Position{Key: b.key, X: b.x, Y: b.y}
	}
	return f
}

// Frame returns the current positions without ticking.
func (s *Simulation) Frame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame()
}

// RunUntilSettled ticks synchronously until the simulation settles or
// Params.MaxTicks is reached, and returns the number of ticks run.
func (s *Simulation) RunUntilSettled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for s.state != Settled && s.state != Disposed && n < s.params.MaxTicks {
		s.tick()
		n++
	}
	return n
}

// Start runs the tick loop in a goroutine until ctx ends or Dispose is
// called. Once settled the loop sleeps until a drag or resize reheats it.
// Calling Start twice, or after Dispose, does nothing.
func (s *Simulation) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil || s.state == Disposed {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

func (s *Simulation) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Second / time.Duration(s.params.TicksPerSecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		if s.state == Disposed {
			s.mu.Unlock()
			return
		}
		settled := s.state == Settled
		var frame Frame
		if !settled {
			s.tick()
			frame = s.frame()
		}
		handler := s.onTick
		s.mu.Unlock()

		if settled {
			s.logger.Debug("settled", zap.Int("ticks", s.Ticks()))
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}
		if handler != nil {
			handler(frame)
		}
	}
}

// Dispose stops the tick loop, waits for it to exit and releases the tick
// handler. It is safe to call more than once.
func (s *Simulation) Dispose() {
	s.mu.Lock()
	s.state = Disposed
	s.onTick = nil
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// State returns the lifecycle state.
func (s *Simulation) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Alpha returns the current energy.
func (s *Simulation) Alpha() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alpha
}

// Ticks returns the number of ticks run so far.
func (s *Simulation) Ticks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// Position returns a node's position. Unknown keys report the viewport centre.
func (s *Simulation) Position(key string) Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[key]; ok {
		return Point{X: s.bodies[i].x, Y: s.bodies[i].y}
	}
	cx, cy := s.center()
	return Point{X: cx, Y: cy}
}

// Positions returns a copy of the position table.
func (s *Simulation) Positions() map[string]Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Point, len(s.bodies))
	for _, b := range s.bodies {
		out[b.key] = Point{X: b.x, Y: b.y}
	}
	return out
}

// Pinned reports whether a node is pinned.
func (s *Simulation) Pinned(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[key]
	return ok && s.bodies[i].pinned
}

// DragStart pins a node at p and reheats the simulation. It reports false
// for unknown keys.
func (s *Simulation) DragStart(key string, p Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[key]
	if !ok || s.state == Disposed {
		return false
	}
	b := &s.bodies[i]
	b.pinned, b.px, b.py = true, p.X, p.Y
	s.alphaTarget = s.params.DragAlpha
	s.reheat()
	return true
}

// DragMove moves a pinned node.
func (s *Simulation) DragMove(key string, p Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[key]
	if !ok || !s.bodies[i].pinned {
		return false
	}
	s.bodies[i].px, s.bodies[i].py = p.X, p.Y
	return true
}

// DragEnd un-pins a node and lets the energy decay again.
func (s *Simulation) DragEnd(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[key]
	if !ok {
		return false
	}
	s.bodies[i].pinned = false
	s.alphaTarget = 0
	s.updateState()
	return true
}

// Resize recentres the layout on a new viewport.
func (s *Simulation) Resize(vp Viewport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Disposed {
		return
	}
	s.viewport = vp
	if s.alpha < warmAlpha {
		s.alpha = warmAlpha
	}
	s.reheat()
}

// reheat wakes a settled loop. Callers hold mu.
func (s *Simulation) reheat() {
	if s.alpha < s.params.AlphaMin {
		s.alpha = s.params.AlphaMin
	}
	s.updateState()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
