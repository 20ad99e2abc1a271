package layout

import (
	"math"

	"github.com/msalah0e/trustmap/internal/config"
)

// Params tunes the simulation. Zero values are not meaningful; start from
// DefaultParams or ParamsFrom.
type Params struct {
	LinkDistance   float64 // separation of same-level neighbours
	LinkPerLevel   float64 // added per level of difference
	RootCharge     float64
	NodeCharge     float64 // divided by level+1
	CenterStrength float64
	RootRadius     float64
	NodeRadius     float64
	RingRadius     float64
	RingGap        float64
	RadialStrength float64
	WarmStart      bool
	TicksPerSecond int
	MaxTicks       int // cap for RunUntilSettled

	AlphaMin      float64
	AlphaDecay    float64
	VelocityDecay float64
	DragAlpha     float64 // alpha target while a node is dragged
}

// DefaultParams returns the default tuning.
func DefaultParams() Params {
	return ParamsFrom(config.Default().Layout)
}

// ParamsFrom maps the [layout] config section.
func ParamsFrom(c config.LayoutConfig) Params {
	p := Params{
		LinkDistance:   c.LinkDistance,
		LinkPerLevel:   c.LinkPerLevel,
		RootCharge:     c.RootCharge,
		NodeCharge:     c.NodeCharge,
		CenterStrength: c.CenterStrength,
		RootRadius:     c.RootRadius,
		NodeRadius:     c.NodeRadius,
		RingRadius:     c.RingRadius,
		RingGap:        c.RingGap,
		RadialStrength: c.RadialStrength,
		WarmStart:      c.WarmStart,
		TicksPerSecond: c.TicksPerSecond,
		MaxTicks:       c.HeadlessMaxTicks,
		AlphaMin:       0.001,
		VelocityDecay:  0.4,
		DragAlpha:      0.3,
	}
	// alpha reaches AlphaMin from 1 in about 300 ticks
	p.AlphaDecay = 1 - math.Pow(p.AlphaMin, 1.0/300)
	if p.TicksPerSecond <= 0 {
		p.TicksPerSecond = 60
	}
	if p.MaxTicks <= 0 {
		p.MaxTicks = 600
	}
	return p
}

// RingTarget is the radial force target for a level.
func (p Params) RingTarget(level int) float64 {
	if level <= 0 {
		return 0
	}
	return p.RingRadius + float64(level)*p.RingGap
}

// linkDistance is the link force target for two endpoint levels.
func (p Params) linkDistance(a, b int) float64 {
	d := a - b
	if d < 0 {
		d = -d
	}
	return p.LinkDistance + float64(d)*p.LinkPerLevel
}

func (p Params) charge(level int, root bool) float64 {
	if root {
		return p.RootCharge
	}
	return p.NodeCharge / float64(level+1)
}

// Radius is the drawn node radius. It shrinks with level down to half the
// ring-1 size.
func (p Params) Radius(level int, root bool) float64 {
	if root {
		return p.RootRadius
	}
	r := p.NodeRadius * (1 - 0.15*float64(level-1))
	return math.Max(r, p.NodeRadius/2)
}
