package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// RingState records which toggleable rings (level 2 and deeper) are shown.
// Levels 0 and 1 are always visible.
type RingState struct {
	shown map[int]bool
}

// NewRingState returns a state with the given rings switched on.
func NewRingState(rings ...int) *RingState {
	r := &RingState{shown: make(map[int]bool)}
	for _, k := range rings {
		r.Set(k, true)
	}
	return r
}

// ParseRings parses a comma-separated ring list such as "2,3".
func ParseRings(s string) ([]int, error) {
	var rings []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, err := strconv.Atoi(part)
		if err != nil || k < 0 {
			return nil, fmt.Errorf("invalid ring %q", part)
		}
		rings = append(rings, k)
	}
	return rings, nil
}

// Visible reports whether nodes at level are shown.
func (r *RingState) Visible(level int) bool {
	if level <= 1 {
		return true
	}
	return r != nil && r.shown[level]
}

// Set switches ring k on or off. Switching k on also switches on every ring
// between 1 and k. Levels 0 and 1 cannot be toggled.
func (r *RingState) Set(k int, on bool) {
	if k <= 1 {
		return
	}
	if !on {
		r.shown[k] = false
		return
	}
	for lvl := 2; lvl <= k; lvl++ {
		r.shown[lvl] = true
	}
}

// Toggle flips ring k and returns its new visibility.
func (r *RingState) Toggle(k int) bool {
	next := !r.Visible(k)
	r.Set(k, next)
	return r.Visible(k)
}

// Shown returns the toggleable rings that are on, ascending.
func (r *RingState) Shown() []int {
	if r == nil {
		return nil
	}
	var out []int
	for k, on := range r.shown {
		if on {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}

// Clone returns an independent copy.
func (r *RingState) Clone() *RingState {
	c := NewRingState()
	if r == nil {
		return c
	}
	for k, on := range r.shown {
		c.shown[k] = on
	}
	return c
}

// SentimentFilter holds the enabled review categories. A nil filter
// disables sentiment filtering entirely.
type SentimentFilter map[Sentiment]bool

// AllSentiments returns a filter with every category enabled.
func AllSentiments() SentimentFilter {
	f := make(SentimentFilter)
	for _, s := range Sentiments() {
		f[s] = true
	}
	return f
}

// Allows reports whether edges with sentiment s pass the filter. Edges
// without a sentiment always pass.
func (f SentimentFilter) Allows(s Sentiment) bool {
	if f == nil || s == "" {
		return true
	}
	return f[s]
}

// Toggle flips category s and returns its new state.
func (f SentimentFilter) Toggle(s Sentiment) bool {
	f[s] = !f[s]
	return f[s]
}

func (f SentimentFilter) anyEnabled() bool {
	for _, on := range f {
		if on {
			return true
		}
	}
	return false
}

// Subgraph is the visible part of a graph.
type Subgraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Visible applies ring and sentiment filtering to g.
func (g *Graph) Visible(rings *RingState, sentiments SentimentFilter) Subgraph {
	return FilterVisible(g.Nodes, g.Edges, rings, g.RootKey, sentiments)
}

// FilterVisible returns the part of the graph reachable from the root
// through traversable edges. An edge is traversable when both endpoints are
// on visible rings and its sentiment is enabled. Hiding a ring therefore
// also hides anything only reachable through it, and no visible edge ever
// has a hidden endpoint.
//
// With a non-nil sentiment filter that has every category disabled the
// result is empty, root included.
func FilterVisible(nodes []Node, edges []Edge, rings *RingState, rootKey string, sentiments SentimentFilter) Subgraph {
	if sentiments != nil && !sentiments.anyEnabled() {
		return Subgraph{}
	}

	own := make(map[string]bool, len(nodes))
	var rootFound bool
	for _, n := range nodes {
		if n.Key == rootKey || n.IsRoot || rings.Visible(n.Level) {
			own[n.Key] = true
		}
		if n.Key == rootKey {
			rootFound = true
		}
	}
	if !rootFound {
		return Subgraph{}
	}

	traversable := func(e Edge) bool {
		return own[e.Source] && own[e.Target] && sentiments.Allows(e.Sentiment)
	}

	adj := make(map[string][]string)
	for _, e := range edges {
		if !traversable(e) {
			continue
		}
		adj[e.Source] = append(adj[e.Source], e.Target)
		adj[e.Target] = append(adj[e.Target], e.Source)
	}

	reached := map[string]bool{rootKey: true}
	queue := []string{rootKey}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}

	var out Subgraph
	for _, n := range nodes {
		if reached[n.Key] {
			out.Nodes = append(out.Nodes, n)
		}
	}
	for _, e := range edges {
		if traversable(e) && reached[e.Source] && reached[e.Target] {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}
