package graph

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keysOf(nodes []Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Key)
	}
	return out
}

func chainGraph() *Graph {
	r, a, b, c := ident(1, "R"), ident(2, "A"), ident(3, "B"), ident(4, "C")
	return Normalize(StrategyFor(KindInvitations), r, []Record{
		rec("1", r, a, 1),
		rec("2", a, b, 2),
		rec("3", b, c, 3),
	}, 0)
}

func TestRingState_Defaults(t *testing.T) {
	rs := NewRingState()
	assert.True(t, rs.Visible(0))
	assert.True(t, rs.Visible(1))
	assert.False(t, rs.Visible(2))

	var nilState *RingState
	assert.True(t, nilState.Visible(1))
	assert.False(t, nilState.Visible(2))
}

func TestRingState_ToggleOnEnablesInnerRings(t *testing.T) {
	rs := NewRingState()
	assert.True(t, rs.Toggle(4))
	assert.Equal(t, []int{2, 3, 4}, rs.Shown())

	assert.False(t, rs.Toggle(3))
	assert.Equal(t, []int{2, 4}, rs.Shown(), "switching off leaves other rings alone")

	rs.Set(1, false)
	assert.True(t, rs.Visible(1), "ring 1 is not toggleable")
}

func TestRingState_Clone(t *testing.T) {
	rs := NewRingState(2)
	c := rs.Clone()
	c.Toggle(2)
	assert.True(t, rs.Visible(2))
	assert.False(t, c.Visible(2))
}

func TestParseRings(t *testing.T) {
	rings, err := ParseRings(" 2, 3,,")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, rings)

	_, err = ParseRings("two")
	assert.Error(t, err)
}

func TestFilter_HiddenRingsScenario(t *testing.T) {
	g := chainGraph()
	sub := g.Visible(NewRingState(), nil)

	assert.Equal(t, []string{"1", "2"}, keysOf(sub.Nodes))
	require.Len(t, sub.Edges, 1)
	assert.Equal(t, "1", sub.Edges[0].Source)
	assert.Equal(t, "2", sub.Edges[0].Target)
}

func TestFilter_OuterRingHiddenWhenInnerRingHidden(t *testing.T) {
	g := chainGraph()
	rs := NewRingState(3)
	rs.Set(2, false)

	sub := g.Visible(rs, nil)
	assert.Equal(t, []string{"1", "2"}, keysOf(sub.Nodes), "ring 3 is unreachable once ring 2 is hidden")
}

func TestFilter_AllRingsVisible(t *testing.T) {
	g := chainGraph()
	sub := g.Visible(NewRingState(3), nil)
	assert.Len(t, sub.Nodes, 4)
	assert.Len(t, sub.Edges, 3)
}

func TestFilter_SentimentHidesNodesOnlyReachableThroughIt(t *testing.T) {
	r, a, b := ident(1, "R"), ident(2, "A"), ident(3, "B")
	pos := rec("p", r, a, 1)
	pos.Sentiment = SentimentPositive
	neg := rec("n", r, b, 1)
	neg.Sentiment = SentimentNegative
	g := Normalize(StrategyFor(KindReviews), r, []Record{pos, neg}, 0)

	f := AllSentiments()
	f.Toggle(SentimentNegative)

	sub := g.Visible(NewRingState(), f)
	assert.Equal(t, []string{"1", "2"}, keysOf(sub.Nodes))
	require.Len(t, sub.Edges, 1)
	assert.Equal(t, SentimentPositive, sub.Edges[0].Sentiment)
}

func TestFilter_AllSentimentsDisabledEmptiesGraph(t *testing.T) {
	r, a := ident(1, "R"), ident(2, "A")
	g := Normalize(StrategyFor(KindReviews), r, []Record{rec("p", r, a, 1)}, 0)

	f := SentimentFilter{SentimentPositive: false, SentimentNeutral: false, SentimentNegative: false}
	sub := g.Visible(NewRingState(2), f)
	assert.Empty(t, sub.Nodes)
	assert.Empty(t, sub.Edges)
}

func TestFilter_RootAloneStillVisible(t *testing.T) {
	g := Normalize(StrategyFor(KindVouches), ident(1, "R"), nil, 0)
	sub := g.Visible(NewRingState(), nil)
	assert.Equal(t, []string{"1"}, keysOf(sub.Nodes))
}

// Random graphs and random ring states never produce dangling edges or
// nodes unreachable from the root.
func TestFilter_ConnectivityProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		root := ident(1, "root")
		n := 5 + rng.Intn(40)
		people := make([]Identity, n)
		for i := range people {
			people[i] = ident(int64(i+2), "")
		}
		var records []Record
		for i := 0; i < n*2; i++ {
			from, to := people[rng.Intn(n)], people[rng.Intn(n)]
			if rng.Intn(4) == 0 {
				from = root
			}
			r := rec(fmt.Sprintf("r%d", i), from, to, 1+rng.Intn(3))
			r.Sentiment = Sentiments()[rng.Intn(3)]
			records = append(records, r)
		}
		g := Normalize(StrategyFor(KindReviews), root, records, 0)

		rs := NewRingState()
		for lvl := 2; lvl <= 4; lvl++ {
			if rng.Intn(2) == 0 {
				rs.Toggle(lvl)
			}
		}
		f := AllSentiments()
		if rng.Intn(3) == 0 {
			f.Toggle(Sentiments()[rng.Intn(3)])
		}

		sub := g.Visible(rs, f)
		visible := make(map[string]bool)
		for _, nd := range sub.Nodes {
			visible[nd.Key] = true
			assert.True(t, rs.Visible(nd.Level) || nd.IsRoot)
		}
		adj := make(map[string][]string)
		for _, e := range sub.Edges {
			require.True(t, visible[e.Source] && visible[e.Target], "trial %d: dangling edge %s", trial, e.ID)
			assert.True(t, f.Allows(e.Sentiment))
			adj[e.Source] = append(adj[e.Source], e.Target)
			adj[e.Target] = append(adj[e.Target], e.Source)
		}

		reached := map[string]bool{g.RootKey: true}
		queue := []string{g.RootKey}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, nx := range adj[cur] {
				if !reached[nx] {
					reached[nx] = true
					queue = append(queue, nx)
				}
			}
		}
		for key := range visible {
			assert.True(t, reached[key], "trial %d: orphan node %s", trial, key)
		}
	}
}
