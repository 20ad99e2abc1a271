package layout

import "math"

const (
	collideStrength = 0.7
	collidePadding  = 4
	distanceMin2    = 1.0
)

// applyLink pulls linked bodies toward their target distance. Bodies with
// more links move less.
func (s *Simulation) applyLink() {
	for _, l := range s.links {
		src, tgt := &s.bodies[l.source], &s.bodies[l.target]
		dx := tgt.x + tgt.vx - src.x - src.vx
		dy := tgt.y + tgt.vy - src.y - src.vy
		if dx == 0 {
			dx = s.jiggle()
		}
		if dy == 0 {
			dy = s.jiggle()
		}
		d := math.Sqrt(dx*dx + dy*dy)
		k := (d - l.distance) / d * s.alpha * l.strength
		dx, dy = dx*k, dy*k
		tgt.vx -= dx * l.bias
		tgt.vy -= dy * l.bias
		src.vx += dx * (1 - l.bias)
		src.vy += dy * (1 - l.bias)
	}
}

// applyCharge is pairwise many-body repulsion (negative charge) or attraction.
func (s *Simulation) applyCharge() {
	for i := range s.bodies {
		bi := &s.bodies[i]
		for j := range s.bodies {
			if i == j {
				continue
			}
			bj := &s.bodies[j]
			dx, dy := bj.x-bi.x, bj.y-bi.y
			if dx == 0 {
				dx = s.jiggle()
			}
			if dy == 0 {
				dy = s.jiggle()
			}
			l := dx*dx + dy*dy
			if l < distanceMin2 {
				l = math.Sqrt(distanceMin2 * l)
			}
			w := bj.charge * s.alpha / l
			bi.vx += dx * w
			bi.vy += dy * w
		}
	}
}

// applyCenter shifts every body so the centroid moves toward the viewport
// centre.
func (s *Simulation) applyCenter() {
	if len(s.bodies) == 0 || s.params.CenterStrength == 0 {
		return
	}
	var sx, sy float64
	for i := range s.bodies {
		sx += s.bodies[i].x
		sy += s.bodies[i].y
	}
	n := float64(len(s.bodies))
	cx, cy := s.center()
	sx = (sx/n - cx) * s.params.CenterStrength
	sy = (sy/n - cy) * s.params.CenterStrength
	for i := range s.bodies {
		s.bodies[i].x -= sx
		s.bodies[i].y -= sy
	}
}

// applyCollide separates overlapping bodies, weighting the push by radius.
func (s *Simulation) applyCollide() {
	for i := range s.bodies {
		bi := &s.bodies[i]
		for j := i + 1; j < len(s.bodies); j++ {
			bj := &s.bodies[j]
			r := bi.radius + bj.radius
			dx := bi.x + bi.vx - bj.x - bj.vx
			dy := bi.y + bi.vy - bj.y - bj.vy
			d2 := dx*dx + dy*dy
			if d2 >= r*r {
				continue
			}
			if dx == 0 {
				dx = s.jiggle()
				d2 += dx * dx
			}
			if dy == 0 {
				dy = s.jiggle()
				d2 += dy * dy
			}
			d := math.Sqrt(d2)
			k := (r - d) / d * collideStrength
			dx, dy = dx*k, dy*k
			ri2, rj2 := bi.radius*bi.radius, bj.radius*bj.radius
			wi := rj2 / (ri2 + rj2)
			bi.vx += dx * wi
			bi.vy += dy * wi
			bj.vx -= dx * (1 - wi)
			bj.vy -= dy * (1 - wi)
		}
	}
}

// applyRadial pulls each body toward the circle of its level's radius.
func (s *Simulation) applyRadial() {
	cx, cy := s.center()
	for i := range s.bodies {
		b := &s.bodies[i]
		dx, dy := b.x-cx, b.y-cy
		d := math.Sqrt(dx*dx + dy*dy)
		if d == 0 {
			d = 1e-6
		}
		k := (b.ring - d) * s.params.RadialStrength * s.alpha / d
		b.vx += dx * k
		b.vy += dy * k
	}
}

// jiggle returns a tiny random offset for coincident bodies.
func (s *Simulation) jiggle() float64 {
	return (s.rng.Float64() - 0.5) * 1e-6
}
