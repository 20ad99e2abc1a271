package layout

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/msalah0e/trustmap/internal/graph"
	"github.com/msalah0e/trustmap/internal/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var vp = Viewport{Width: 800, Height: 600}

// star builds a root with n ring-1 children, each with k ring-2 children.
func star(n, k int) ([]graph.Node, []graph.Edge) {
	nodes := []graph.Node{{Key: "root", Level: 0, IsRoot: true, Role: graph.RoleRoot}}
	var edges []graph.Edge
	for i := 0; i < n; i++ {
		a := fmt.Sprintf("a%d", i)
		nodes = append(nodes, graph.Node{Key: a, Level: 1})
		edges = append(edges, graph.Edge{ID: "e" + a, Source: "root", Target: a, Level: 1})
		for j := 0; j < k; j++ {
			b := fmt.Sprintf("b%d_%d", i, j)
			nodes = append(nodes, graph.Node{Key: b, Level: 2})
			edges = append(edges, graph.Edge{ID: "e" + b, Source: a, Target: b, Level: 2})
		}
	}
	return nodes, edges
}

func dist(p Point) float64 {
	return math.Hypot(p.X-vp.Width/2, p.Y-vp.Height/2)
}

func meanRadius(s *Simulation, nodes []graph.Node, level int) float64 {
	var sum float64
	var n int
	for _, node := range nodes {
		if node.Level == level {
			sum += dist(s.Position(node.Key))
			n++
		}
	}
	return sum / float64(n)
}

func TestParams(t *testing.T) {
	p := DefaultParams()
	assert.InDelta(t, 0.0228, p.AlphaDecay, 0.0001)
	assert.Equal(t, p.LinkDistance, p.linkDistance(1, 1))
	assert.Equal(t, p.LinkDistance+2*p.LinkPerLevel, p.linkDistance(3, 1))
	assert.Equal(t, 0.0, p.RingTarget(0))
	assert.Greater(t, p.RingTarget(2), p.RingTarget(1))

	assert.Less(t, p.charge(0, true), p.charge(1, false), "root repels much more")
	assert.Less(t, p.charge(1, false), p.charge(3, false), "deeper nodes repel less")
	assert.Greater(t, p.Radius(0, true), p.Radius(1, false))
	assert.Greater(t, p.Radius(1, false), p.Radius(3, false))
	assert.Equal(t, p.NodeRadius/2, p.Radius(20, false))
}

func TestNew_InitialPlacement(t *testing.T) {
	nodes, edges := star(3, 2)
	s := New(nodes, edges, vp, DefaultParams())

	assert.Equal(t, Point{X: 400, Y: 300}, s.Position("root"))
	p := DefaultParams()
	assert.InDelta(t, p.RingTarget(2), dist(s.Position("b0_0")), 1e-9)
	assert.Equal(t, Running, s.State())
	assert.Len(t, s.links, 9)
}

func TestNew_SkipsDanglingAndSelfEdges(t *testing.T) {
	nodes := []graph.Node{{Key: "r", IsRoot: true}, {Key: "a", Level: 1}}
	edges := []graph.Edge{
		{Source: "r", Target: "a"},
		{Source: "a", Target: "a"},
		{Source: "a", Target: "hidden"},
	}
	s := New(nodes, edges, vp, DefaultParams())
	assert.Len(t, s.links, 1)
}

func TestPosition_UnknownKeyIsCenter(t *testing.T) {
	s := New(nil, nil, vp, DefaultParams())
	assert.Equal(t, Point{X: 400, Y: 300}, s.Position("nobody"))
}

func TestRunUntilSettled_RadialStructure(t *testing.T) {
	nodes, edges := star(6, 3)
	s := New(nodes, edges, vp, DefaultParams())

	ticks := s.RunUntilSettled()
	assert.Equal(t, Settled, s.State())
	assert.Less(t, ticks, DefaultParams().MaxTicks)
	assert.Less(t, s.Alpha(), DefaultParams().AlphaMin)

	r0 := dist(s.Position("root"))
	r1 := meanRadius(s, nodes, 1)
	r2 := meanRadius(s, nodes, 2)
	assert.Less(t, r0, r1)
	assert.Less(t, r1, r2, "rings are concentric by level")

	for _, p := range s.Positions() {
		assert.False(t, math.IsNaN(p.X) || math.IsNaN(p.Y))
	}
}

func TestStep_Deterministic(t *testing.T) {
	nodes, edges := star(4, 2)
	a := New(nodes, edges, vp, DefaultParams())
	b := New(nodes, edges, vp, DefaultParams())
	for i := 0; i < 50; i++ {
		a.Step()
		b.Step()
	}
	assert.Equal(t, a.Positions(), b.Positions())
}

func TestStateTransitions(t *testing.T) {
	nodes, edges := star(2, 1)
	s := New(nodes, edges, vp, DefaultParams())
	assert.Equal(t, Running, s.State())

	for s.Alpha() >= coolingAlpha {
		s.Step()
	}
	assert.Equal(t, Cooling, s.State())

	s.RunUntilSettled()
	assert.Equal(t, Settled, s.State())
}

func TestDrag(t *testing.T) {
	nodes, edges := star(3, 1)
	s := New(nodes, edges, vp, DefaultParams())
	s.RunUntilSettled()
	require.Equal(t, Settled, s.State())

	assert.False(t, s.DragStart("ghost", Point{}))

	require.True(t, s.DragStart("a1", Point{X: 10, Y: 20}))
	assert.True(t, s.Pinned("a1"))
	assert.Equal(t, Running, s.State(), "drag reheats")

	f := s.Step()
	assert.Equal(t, Point{X: 10, Y: 20}, s.Position("a1"))
	assert.Equal(t, "running", f.State)

	require.True(t, s.DragMove("a1", Point{X: 30, Y: 40}))
	for i := 0; i < 20; i++ {
		s.Step()
	}
	assert.Equal(t, Point{X: 30, Y: 40}, s.Position("a1"))
	assert.Greater(t, s.Alpha(), 0.05, "energy climbs toward the drag target")

	require.True(t, s.DragEnd("a1"))
	assert.False(t, s.Pinned("a1"))
	assert.False(t, s.DragMove("a1", Point{}), "moving an unpinned node is ignored")

	s.RunUntilSettled()
	assert.Equal(t, Settled, s.State())
	assert.NotEqual(t, Point{X: 30, Y: 40}, s.Position("a1"), "released node moves again")
}

func TestWithSeed_WarmStart(t *testing.T) {
	nodes, edges := star(3, 1)
	first := New(nodes, edges, vp, DefaultParams())
	first.RunUntilSettled()
	seed := first.Positions()

	more := append(nodes, graph.Node{Key: "new", Level: 2})
	second := New(more, edges, vp, DefaultParams(), WithSeed(seed))

	assert.Equal(t, seed["a0"], second.Position("a0"))
	assert.InDelta(t, warmAlpha, second.Alpha(), 1e-9, "mostly seeded layouts start cooler")
	assert.Equal(t, Cooling, second.State())
	assert.InDelta(t, DefaultParams().RingTarget(2), dist(second.Position("new")), 1e-9)
}

func TestResize(t *testing.T) {
	nodes, edges := star(2, 1)
	s := New(nodes, edges, vp, DefaultParams())
	s.RunUntilSettled()

	s.Resize(Viewport{Width: 400, Height: 400})
	assert.Equal(t, Cooling, s.State())
	s.RunUntilSettled()

	root := s.Position("root")
	assert.Less(t, math.Hypot(root.X-200, root.Y-200), 60.0, "layout follows the new centre")
	assert.Equal(t, Point{X: 200, Y: 200}, s.Position("missing"))
}

func TestDispose(t *testing.T) {
	nodes, edges := star(2, 1)
	s := New(nodes, edges, vp, DefaultParams())
	s.Dispose()
	s.Dispose()

	assert.Equal(t, Disposed, s.State())
	before := s.Positions()
	s.Step()
	assert.Equal(t, before, s.Positions())
	assert.Zero(t, s.RunUntilSettled())
	assert.False(t, s.DragStart("a0", Point{}))

	s.Start(context.Background())
	assert.Nil(t, s.done, "disposed simulations do not start")
}

func TestStart_EmitsFramesUntilDisposed(t *testing.T) {
	nodes, edges := star(2, 1)
	var frames atomic.Int32
	m := metrics.New()
	s := New(nodes, edges, vp, DefaultParams(),
		WithMetrics(m),
		WithTickHandler(func(f Frame) {
			if len(f.Positions) == 5 {
				frames.Add(1)
			}
		}))

	s.Start(context.Background())
	s.Start(context.Background())
	require.Eventually(t, func() bool { return frames.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	s.Dispose()
	n := frames.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, frames.Load(), "no frames after dispose")
	assert.Nil(t, s.onTick)
}

func TestStart_SleepsWhenSettledAndWakesOnDrag(t *testing.T) {
	nodes, edges := star(2, 1)
	var frames atomic.Int32
	s := New(nodes, edges, vp, DefaultParams(), WithTickHandler(func(Frame) { frames.Add(1) }))
	s.RunUntilSettled()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Dispose()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, frames.Load(), "settled loop does not tick")

	s.DragStart("a0", Point{X: 1, Y: 1})
	require.Eventually(t, func() bool { return frames.Load() > 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	nodes, edges := star(1, 1)
	s := New(nodes, edges, vp, DefaultParams())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit")
	}
}
