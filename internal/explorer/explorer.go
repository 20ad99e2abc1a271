// Package explorer runs one graph view: it fetches a neighbourhood,
// normalizes each snapshot, filters it by ring and sentiment, and keeps a
// layout simulation and an interaction controller in step with the result.
//
// Each Load starts a new generation. Work from older generations is
// cancelled, and anything it still delivers is dropped.
package explorer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/msalah0e/trustmap/internal/config"
	"github.com/msalah0e/trustmap/internal/fetch"
	"github.com/msalah0e/trustmap/internal/graph"
	"github.com/msalah0e/trustmap/internal/layout"
	"github.com/msalah0e/trustmap/internal/metrics"
	"github.com/msalah0e/trustmap/internal/render"
	"github.com/msalah0e/trustmap/internal/view"
)

// Resolver turns a handle or address into an identity.
type Resolver interface {
	Lookup(ctx context.Context, query string) (graph.Identity, error)
}

// Hooks receive view output. They are called without explorer locks held
// and must not block for long; OnFrame runs on the layout goroutine.
type Hooks struct {
	OnScene     func(render.Scene)
	OnFrame     func(layout.Frame)
	OnStatus    func(Status)
	OnTransform func(view.Transform)
}

// Config assembles the tunables of every stage.
type Config struct {
	Fetch         fetch.Limits
	Layout        layout.Params
	View          view.Params
	Theme         render.Theme
	DefaultRings  []int
	MountAttempts int
	MountDelay    time.Duration
}

// ConfigFrom builds a Config from the loaded configuration.
func ConfigFrom(c *config.Config) (Config, error) {
	theme, err := render.ThemeByName(c.Serve.Theme)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Fetch:         fetch.LimitsFrom(c.Fetch),
		Layout:        layout.ParamsFrom(c.Layout),
		View:          view.ParamsFrom(c.View),
		Theme:         theme,
		DefaultRings:  c.View.DefaultRings,
		MountAttempts: c.View.MountAttempts,
		MountDelay:    c.View.MountDelay.Duration,
	}, nil
}

// Explorer is one independent view. It is safe for concurrent use.
type Explorer struct {
	base     context.Context
	stop     context.CancelFunc
	cfg      Config
	source   graph.Source
	resolver Resolver
	hooks    Hooks
	headless bool
	logger   *zap.Logger
	metrics  *metrics.Metrics

	gen    atomic.Uint64
	active atomic.Pointer[layout.Simulation]
	wg     sync.WaitGroup
	view   *view.Controller

	mu         sync.Mutex
	cancel     context.CancelFunc
	kind       graph.Kind
	root       graph.Identity
	graph      *graph.Graph
	visible    graph.Subgraph
	rings      *graph.RingState
	sentiments graph.SentimentFilter
	sim        *layout.Simulation
	status     Status
}

// Option customises an Explorer.
type Option func(*Explorer)

// WithResolver enables LoadHandle.
func WithResolver(r Resolver) Option {
	return func(e *Explorer) { e.resolver = r }
}

// WithHooks sets the output callbacks.
func WithHooks(h Hooks) Option {
	return func(e *Explorer) { e.hooks = h }
}

// WithHeadless keeps simulations from starting their tick loop. Callers
// advance the layout with Settle.
func WithHeadless() Option {
	return func(e *Explorer) { e.headless = true }
}

// WithLogger sets the explorer logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Explorer) { e.logger = l.Named("explorer") }
}

// WithMetrics is passed on to the fetcher and simulations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Explorer) { e.metrics = m }
}

// New returns an idle explorer. Cancelling ctx, or calling Close, stops
// all of its work.
func New(ctx context.Context, src graph.Source, cfg Config, opts ...Option) *Explorer {
	base, stop := context.WithCancel(ctx)
	e := &Explorer{
		base:   base,
		stop:   stop,
		cfg:    cfg,
		source: src,
		logger: zap.NewNop(),
		rings:  graph.NewRingState(cfg.DefaultRings...),
		status: Status{Phase: PhaseIdle, Message: "search for a handle or address"},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.view = view.New(cfg.View)
	return e
}

// View returns the interaction controller.
func (e *Explorer) View() *view.Controller {
	return e.view
}

// Generation returns the current load generation.
func (e *Explorer) Generation() uint64 {
	return e.gen.Load()
}

// Load starts fetching kind around root and returns the new generation.
func (e *Explorer) Load(kind graph.Kind, root graph.Identity) uint64 {
	ctx, gen := e.begin(kind, root)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(ctx, gen, kind, root)
	}()
	return gen
}

// LoadHandle resolves handle and then behaves like Load.
func (e *Explorer) LoadHandle(kind graph.Kind, handle string) (uint64, error) {
	if e.resolver == nil {
		return 0, errors.New("no resolver configured")
	}
	ctx, gen := e.begin(kind, graph.Identity{DisplayName: handle})
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		root, err := e.resolver.Lookup(ctx, handle)
		if err != nil {
			e.fail(gen, err)
			return
		}
		e.mu.Lock()
		if e.gen.Load() == gen {
			e.root = root
		}
		e.mu.Unlock()
		e.run(ctx, gen, kind, root)
	}()
	return gen, nil
}

// begin opens a new generation: in-flight work is cancelled, the layout is
// disposed and per-root state is reset.
func (e *Explorer) begin(kind graph.Kind, root graph.Identity) (context.Context, uint64) {
	e.mu.Lock()
	gen := e.gen.Add(1)
	if e.cancel != nil {
		e.cancel()
	}
	ctx, cancel := context.WithCancel(e.base)
	e.cancel = cancel
	e.kind = kind
	e.root = root
	e.graph = nil
	e.visible = graph.Subgraph{}
	e.rings = graph.NewRingState(e.cfg.DefaultRings...)
	e.sentiments = graph.StrategyFor(kind).NewSentimentFilter()
	old := e.sim
	e.sim = nil
	e.active.Store(nil)
	st := Status{Phase: PhaseLoading, Message: "loading " + string(kind) + " for " + root.Label(), Generation: gen}
	e.status = st
	e.mu.Unlock()

	e.view.SetTarget(nil)
	if old != nil {
		old.Dispose()
	}
	e.logger.Debug("load", zap.Uint64("gen", gen), zap.String("kind", string(kind)), zap.String("root", root.Key()))
	e.emitStatus(st)
	return ctx, gen
}

func (e *Explorer) run(ctx context.Context, gen uint64, kind graph.Kind, root graph.Identity) {
	f := fetch.New(e.source, graph.StrategyFor(kind), e.cfg.Fetch,
		fetch.WithLogger(e.logger), fetch.WithMetrics(e.metrics))
	_, err := f.Fetch(ctx, root, func(s fetch.Snapshot) {
		e.apply(ctx, gen, s)
	})
	if err != nil {
		e.fail(gen, err)
		return
	}

	e.mu.Lock()
	if e.gen.Load() != gen || e.status.Phase != PhasePartial {
		e.mu.Unlock()
		return
	}
	st := Status{Phase: PhaseReady, Message: readyMessage(e.graph, e.visible), Generation: gen}
	e.status = st
	e.mu.Unlock()
	e.emitStatus(st)
}

// apply rebuilds the canonical graph from a snapshot and refreshes the view.
func (e *Explorer) apply(ctx context.Context, gen uint64, s fetch.Snapshot) {
	if err := e.waitForContainer(ctx); err != nil {
		e.fail(gen, err)
		return
	}

	e.mu.Lock()
	if e.gen.Load() != gen {
		e.mu.Unlock()
		return
	}
	e.graph = graph.Normalize(graph.StrategyFor(e.kind), e.root, s.Records, e.cfg.Fetch.NodeBudget)
	old, scene := e.rebuildLocked()
	st := Status{
		Phase:      PhasePartial,
		Stage:      string(s.Stage),
		Message:    string(s.Stage) + " loaded, " + readyMessage(e.graph, e.visible),
		Generation: gen,
	}
	e.status = st
	e.mu.Unlock()

	if old != nil {
		old.Dispose()
	}
	e.emitScene(scene)
	e.emitStatus(st)
}

// rebuildLocked filters the graph and replaces the simulation. It returns
// the previous simulation, which the caller disposes after unlocking.
func (e *Explorer) rebuildLocked() (*layout.Simulation, render.Scene) {
	e.visible = e.graph.Visible(e.rings, e.sentiments)
	vp := e.view.SetContentSize(len(e.visible.Nodes))

	old := e.sim
	var opts []layout.Option
	if old != nil && e.cfg.Layout.WarmStart {
		opts = append(opts, layout.WithSeed(old.Positions()))
	}
	var sim *layout.Simulation
	opts = append(opts,
		layout.WithLogger(e.logger),
		layout.WithMetrics(e.metrics),
		layout.WithTickHandler(func(f layout.Frame) {
			if e.active.Load() == sim {
				e.emitFrame(f)
			}
		}),
	)
	sim = layout.New(e.visible.Nodes, e.visible.Edges, vp, e.cfg.Layout, opts...)
	e.sim = sim
	e.active.Store(sim)
	e.view.SetTarget(sim)
	if !e.headless {
		sim.Start(e.base)
	}
	return old, e.sceneLocked(sim, vp)
}

func (e *Explorer) sceneLocked(sim *layout.Simulation, vp layout.Viewport) render.Scene {
	s := render.BuildScene(render.Input{
		Graph:      e.graph,
		Visible:    e.visible,
		Rings:      e.rings,
		Sentiments: e.sentiments,
		Theme:      e.cfg.Theme,
		Layout:     e.cfg.Layout,
		Viewport:   vp,
	})
	s.Positions = sim.Frame().Positions
	return s
}

// waitForContainer polls the viewport until the container has reported a
// width, retrying up to MountAttempts times.
func (e *Explorer) waitForContainer(ctx context.Context) error {
	attempts := max(e.cfg.MountAttempts, 1)
	for i := 0; i < attempts; i++ {
		if e.view.Viewport().Width > 0 {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.cfg.MountDelay):
		}
	}
	return ErrContainerUnavailable
}

func (e *Explorer) fail(gen uint64, err error) {
	if cancelled(err) {
		return
	}
	e.mu.Lock()
	if e.gen.Load() != gen {
		e.mu.Unlock()
		return
	}
	st := statusFor(err)
	st.Generation = gen
	e.status = st
	e.mu.Unlock()

	if st.Failed() {
		e.logger.Warn("load failed", zap.Uint64("gen", gen), zap.String("phase", string(st.Phase)), zap.Error(err))
	}
	e.emitStatus(st)
}

// ToggleRing switches ring k and refreshes the view. Switching a ring on
// also switches on every ring below it.
func (e *Explorer) ToggleRing(k int, on bool) {
	e.mu.Lock()
	e.rings.Set(k, on)
	e.refreshLocked()
}

// ToggleSentiment flips a review category. It does nothing for kinds
// without sentiment.
func (e *Explorer) ToggleSentiment(s graph.Sentiment) {
	e.mu.Lock()
	if e.sentiments == nil {
		e.mu.Unlock()
		return
	}
	e.sentiments.Toggle(s)
	e.refreshLocked()
}

// refreshLocked re-filters and re-lays out the current graph, then unlocks.
func (e *Explorer) refreshLocked() {
	if e.graph == nil {
		e.mu.Unlock()
		return
	}
	old, scene := e.rebuildLocked()
	e.mu.Unlock()

	if old != nil {
		old.Dispose()
	}
	e.emitScene(scene)
}

// Resize records new container and window sizes.
func (e *Explorer) Resize(container, window view.Size) layout.Viewport {
	vp := e.view.Resize(container, window)
	e.resized(vp)
	return vp
}

// SetFullscreen switches between windowed and fullscreen sizing.
func (e *Explorer) SetFullscreen(on bool) layout.Viewport {
	vp := e.view.SetFullscreen(on)
	e.resized(vp)
	return vp
}

func (e *Explorer) resized(vp layout.Viewport) {
	e.mu.Lock()
	sim := e.sim
	var scene render.Scene
	if sim != nil {
		sim.Resize(vp)
		scene = e.sceneLocked(sim, vp)
	}
	e.mu.Unlock()
	if sim != nil {
		e.emitScene(scene)
	}
}

// Zoom scales about a screen point.
func (e *Explorer) Zoom(factor float64, at layout.Point) view.Transform {
	t := e.view.Zoom(factor, at)
	e.emitTransform(t)
	return t
}

// PanStart begins a pan. It is refused while a node is dragged.
func (e *Explorer) PanStart(at layout.Point) bool {
	return e.view.PanStart(at)
}

// Pan moves the view with the pointer.
func (e *Explorer) Pan(at layout.Point) view.Transform {
	t := e.view.PanMove(at)
	e.emitTransform(t)
	return t
}

// PanEnd finishes a pan.
func (e *Explorer) PanEnd() {
	e.view.PanEnd()
}

// DragStart, DragMove and DragEnd route a node drag to the layout.
func (e *Explorer) DragStart(key string, at layout.Point) bool { return e.view.DragStart(key, at) }
func (e *Explorer) DragMove(at layout.Point) bool              { return e.view.DragMove(at) }
func (e *Explorer) DragEnd() bool                              { return e.view.DragEnd() }

// Reset starts the animated return to the reset transform and returns it.
func (e *Explorer) Reset() view.Transform {
	return e.view.Reset()
}

// Settle runs the current layout to rest synchronously. It is meant for
// headless explorers.
func (e *Explorer) Settle() layout.Frame {
	e.mu.Lock()
	sim := e.sim
	e.mu.Unlock()
	if sim == nil {
		return layout.Frame{}
	}
	sim.RunUntilSettled()
	return sim.Frame()
}

// Scene returns the current scene with current positions.
func (e *Explorer) Scene() (render.Scene, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.graph == nil || e.sim == nil {
		return render.Scene{}, false
	}
	return e.sceneLocked(e.sim, e.view.Viewport()), true
}

// Graph returns the canonical graph, or nil before the first snapshot.
func (e *Explorer) Graph() *graph.Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph
}

// Visible returns the filtered subgraph.
func (e *Explorer) Visible() graph.Subgraph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visible
}

// Root returns the identity of the current load.
func (e *Explorer) Root() graph.Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.root
}

// Rings returns a copy of the ring visibility state.
func (e *Explorer) Rings() *graph.RingState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rings.Clone()
}

// Status returns the latest status.
func (e *Explorer) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Simulation returns the active layout, or nil.
func (e *Explorer) Simulation() *layout.Simulation {
	return e.active.Load()
}

// Wait blocks until every load started so far has finished.
func (e *Explorer) Wait() {
	e.wg.Wait()
}

// Close cancels all work, disposes the layout and waits for goroutines.
func (e *Explorer) Close() {
	e.gen.Add(1)
	e.stop()
	e.mu.Lock()
	sim := e.sim
	e.sim = nil
	e.active.Store(nil)
	e.mu.Unlock()

	e.view.SetTarget(nil)
	if sim != nil {
		sim.Dispose()
	}
	e.wg.Wait()
}

func (e *Explorer) emitScene(s render.Scene) {
	if e.hooks.OnScene != nil {
		e.hooks.OnScene(s)
	}
}

func (e *Explorer) emitFrame(f layout.Frame) {
	if e.hooks.OnFrame != nil {
		e.hooks.OnFrame(f)
	}
}

func (e *Explorer) emitStatus(s Status) {
	if e.hooks.OnStatus != nil {
		e.hooks.OnStatus(s)
	}
}

func (e *Explorer) emitTransform(t view.Transform) {
	if e.hooks.OnTransform != nil {
		e.hooks.OnTransform(t)
	}
}
