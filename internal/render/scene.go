// Package render turns a visible subgraph into the static attribute sets a
// 2D renderer draws, and produces a self-contained HTML page that draws
// them on a canvas.
package render

import (
	"math"
	"strconv"

	"github.com/msalah0e/trustmap/internal/graph"
	"github.com/msalah0e/trustmap/internal/layout"
)

// NodeStyle is everything needed to draw one node.
type NodeStyle struct {
	Key      string     `json:"key"`
	Label    string     `json:"label"`
	Handle   string     `json:"handle,omitempty"`
	Avatar   string     `json:"avatar,omitempty"`
	Score    int        `json:"score"`
	Level    int        `json:"level"`
	Root     bool       `json:"root"`
	Role     graph.Role `json:"role"`
	Radius   float64    `json:"radius"`
	Fill     string     `json:"fill"`
	Stroke   string     `json:"stroke"`
	Sublabel string     `json:"sublabel,omitempty"`
}

// EdgeStyle is everything needed to draw one edge.
type EdgeStyle struct {
	ID         string          `json:"id"`
	Source     string          `json:"source"`
	Target     string          `json:"target"`
	Color      string          `json:"color"`
	Width      float64         `json:"width"`
	Dashed     bool            `json:"dashed,omitempty"`
	Reciprocal bool            `json:"reciprocal,omitempty"`
	Sentiment  graph.Sentiment `json:"sentiment,omitempty"`
	Label      string          `json:"label,omitempty"`
}

// RingGuide is a faint circle drawn at a level's target radius.
type RingGuide struct {
	Level  int     `json:"level"`
	Radius float64 `json:"radius"`
}

// Scene is the static part of a view: styles, ring guides and the toggle
// state the page shows. Positions arrive separately, per tick.
type Scene struct {
	Kind       graph.Kind        `json:"kind"`
	RootKey    string            `json:"rootKey"`
	Theme      Theme             `json:"theme"`
	Nodes      []NodeStyle       `json:"nodes"`
	Edges      []EdgeStyle       `json:"edges"`
	Guides     []RingGuide       `json:"guides"`
	Rings      []int             `json:"rings"`
	Shown      []int             `json:"shown"`
	Sentiments map[string]bool   `json:"sentiments,omitempty"`
	Viewport   layout.Viewport   `json:"viewport"`
	Positions  []layout.Position `json:"positions,omitempty"`
}

// Input collects what BuildScene needs.
type Input struct {
	Graph      *graph.Graph
	Visible    graph.Subgraph
	Rings      *graph.RingState
	Sentiments graph.SentimentFilter
	Theme      Theme
	Layout     layout.Params
	Viewport   layout.Viewport
}

// BuildScene styles the visible subgraph.
func BuildScene(in Input) Scene {
	s := Scene{
		Kind:     in.Graph.Kind,
		RootKey:  in.Graph.RootKey,
		Theme:    in.Theme,
		Nodes:    make([]NodeStyle, 0, len(in.Visible.Nodes)),
		Edges:    make([]EdgeStyle, 0, len(in.Visible.Edges)),
		Rings:    in.Graph.Rings(),
		Shown:    in.Rings.Shown(),
		Viewport: in.Viewport,
	}
	if s.Rings == nil {
		s.Rings = []int{}
	}
	if s.Shown == nil {
		s.Shown = []int{}
	}
	if in.Sentiments != nil {
		s.Sentiments = make(map[string]bool, len(graph.Sentiments()))
		for _, sent := range graph.Sentiments() {
			s.Sentiments[string(sent)] = in.Sentiments.Allows(sent)
		}
	}

	levels := map[int]bool{}
	for _, n := range in.Visible.Nodes {
		s.Nodes = append(s.Nodes, nodeStyle(n, in.Theme, in.Layout))
		if n.Level > 0 && !levels[n.Level] {
			levels[n.Level] = true
			s.Guides = append(s.Guides, RingGuide{Level: n.Level, Radius: in.Layout.RingTarget(n.Level)})
		}
	}
	for _, e := range in.Visible.Edges {
		s.Edges = append(s.Edges, edgeStyle(in.Graph.Kind, e, in.Theme))
	}
	return s
}

func nodeStyle(n graph.Node, th Theme, p layout.Params) NodeStyle {
	fill := th.Roles[n.Role]
	if fill == "" {
		fill = th.Muted
	}
	ns := NodeStyle{
		Key:    n.Key,
		Label:  n.Identity.Label(),
		Avatar: n.Identity.AvatarURL,
		Score:  n.Identity.Score,
		Level:  n.Level,
		Root:   n.IsRoot,
		Role:   n.Role,
		Radius: p.Radius(n.Level, n.IsRoot),
		Fill:   fill,
		Stroke: fill,
	}
	if n.Identity.Username != "" {
		ns.Handle = n.Identity.Username
	}
	if n.IsRoot {
		ns.Stroke = th.Highlight
	}
	if n.Identity.Score > 0 {
		ns.Sublabel = strconv.Itoa(n.Identity.Score)
	}
	return ns
}

func edgeStyle(kind graph.Kind, e graph.Edge, th Theme) EdgeStyle {
	es := EdgeStyle{
		ID:         e.ID,
		Source:     e.Source,
		Target:     e.Target,
		Color:      th.Edge,
		Width:      1,
		Reciprocal: e.IsReciprocal,
		Sentiment:  e.Sentiment,
		Dashed:     e.Level >= 2,
	}
	switch kind {
	case graph.KindVouches:
		// log scale keeps whale vouches from swamping the view
		es.Width = 1 + math.Min(4, math.Log1p(e.Magnitude*10))
		if e.Magnitude > 0 {
			es.Label = strconv.FormatFloat(e.Magnitude, 'g', 4, 64) + "Ξ"
		}
	case graph.KindReviews:
		if c := th.Sentiments[e.Sentiment]; c != "" {
			es.Color = c
		}
		es.Label = string(e.Sentiment)
	}
	if e.IsReciprocal {
		es.Width += 1
		if kind != graph.KindReviews {
			es.Color = th.Highlight
		}
	}
	return es
}
