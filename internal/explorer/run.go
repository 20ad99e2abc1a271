package explorer

import (
	"context"
	"slices"

	"github.com/msalah0e/trustmap/internal/graph"
	"github.com/msalah0e/trustmap/internal/render"
	"github.com/msalah0e/trustmap/internal/view"
)

// Request describes a one-shot headless exploration.
type Request struct {
	Kind   graph.Kind
	Handle string
	// Root skips handle resolution when it has a profile id.
	Root *graph.Identity
	// Rings overrides Config.DefaultRings when non-nil.
	Rings []int
	// Sentiments lists the review categories to keep. Empty keeps all.
	Sentiments []graph.Sentiment
	// Layout runs the simulation to rest and fills Result.Scene.
	Layout bool
	Size   view.Size
}

// Result is the outcome of Run.
type Result struct {
	Status  Status
	Root    graph.Identity
	Graph   *graph.Graph
	Visible graph.Subgraph
	Scene   render.Scene
	Ticks   int
}

// Run loads one neighbourhood without a live view and returns the filtered
// graph, laid out when req.Layout is set. Empty and no-data outcomes are
// reported through Result.Status with a nil error.
func Run(ctx context.Context, src graph.Source, resolver Resolver, cfg Config, req Request, opts ...Option) (Result, error) {
	if req.Rings != nil {
		cfg.DefaultRings = req.Rings
	}
	size := req.Size
	if size.Width <= 0 {
		size = view.Size{Width: cfg.View.MaxWidth, Height: cfg.View.MaxHeight}
	}
	opts = append(opts, WithHeadless(), WithResolver(resolver))
	e := New(ctx, src, cfg, opts...)
	defer e.Close()
	e.Resize(size, size)

	if req.Root != nil && req.Root.HasProfile() {
		e.Load(req.Kind, *req.Root)
	} else if _, err := e.LoadHandle(req.Kind, req.Handle); err != nil {
		return Result{}, err
	}
	e.Wait()

	res := Result{Status: e.Status(), Root: e.Root()}
	if res.Status.Failed() {
		return res, res.Status.Err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if e.Graph() == nil {
		return res, nil
	}

	if len(req.Sentiments) > 0 {
		for _, s := range graph.Sentiments() {
			if !slices.Contains(req.Sentiments, s) {
				e.ToggleSentiment(s)
			}
		}
	}
	if req.Layout {
		res.Ticks = e.Settle().Tick
		res.Scene, _ = e.Scene()
	}
	res.Graph = e.Graph()
	res.Visible = e.Visible()
	return res, nil
}
