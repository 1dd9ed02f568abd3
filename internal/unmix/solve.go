package unmix

import (
	"math"

	"github.com/forest-guardian/fractional-cover/internal/endmember"
)

// Fractions are the PV, NPV and BS abundances of a pixel, indexed by
// endmember.Material.
type Fractions [3]float64

func (f Fractions) Of(m endmember.Material) float64 { return f[m] }
func (f Fractions) Sum() float64                    { return f[0] + f[1] + f[2] }

// Outcome tells how a pixel was solved.
type Outcome uint8

const (
	// Interior: the observation lies inside the endmember triangle.
	Interior Outcome = iota
	// Boundary: the observation was projected onto the closest edge.
	Boundary
	// Fallback: degenerate endmembers, nearest endmember assigned.
	Fallback
)

func (o Outcome) String() string {
	switch o {
	case Interior:
		return "interior"
	case Boundary:
		return "boundary"
	case Fallback:
		return "fallback"
	}
	return "unknown"
}

// edges are scanned in this order; the first of equally close projections wins.
var edges = [3][2]endmember.Material{
	{endmember.PV, endmember.NPV},
	{endmember.NPV, endmember.BS},
	{endmember.BS, endmember.PV},
}

// Solve returns the fractions minimizing the distance between the mixed
// endmember position and m, with every fraction in [0, 1] and their sum
// equal to 1. Non-finite coordinates are read as 0.
func (s *System) Solve(m endmember.Point) (Fractions, Outcome) {
	m = sanitize(m)
	if s.degenerate {
		return nearest(s.triplet, m), Fallback
	}

	d := m.Sub(s.triplet[endmember.BS])
	a := s.inv[0][0]*d.NDVI + s.inv[0][1]*d.SWIR32
	b := s.inv[1][0]*d.NDVI + s.inv[1][1]*d.SWIR32
	c := 1 - a - b
	if a >= 0 && b >= 0 && c >= 0 {
		var f Fractions
		f[endmember.PV], f[endmember.NPV], f[endmember.BS] = a, b, c
		return f, Interior
	}

	return s.closestEdge(m), Boundary
}

// Unmix solves a single pixel against a triplet without a precomputed
// System.
func Unmix(m endmember.Point, t endmember.Triplet) Fractions {
	f, _ := NewSystem(t).Solve(m)
	return f
}

func (s *System) closestEdge(m endmember.Point) Fractions {
	var (
		best     Fractions
		bestDist = math.Inf(1)
	)
	for _, e := range edges {
		p, q := s.triplet[e[0]], s.triplet[e[1]]
		pq := q.Sub(p)
		t := 0.0
		if l := pq.Dot(pq); l > 0 {
			t = math.Max(0, math.Min(1, m.Sub(p).Dot(pq)/l))
		}
		proj := endmember.Point{NDVI: p.NDVI + t*pq.NDVI, SWIR32: p.SWIR32 + t*pq.SWIR32}
		if dist := proj.Dist2(m); dist < bestDist {
			bestDist = dist
			best = Fractions{}
			best[e[0]] = 1 - t
			best[e[1]] = t
		}
	}
	return best
}

// nearest assigns the whole pixel to the closest endmember, ties going to
// PV, then NPV, then BS.
func nearest(t endmember.Triplet, m endmember.Point) Fractions {
	best := endmember.PV
	bestDist := t[endmember.PV].Dist2(m)
	for _, cand := range []endmember.Material{endmember.NPV, endmember.BS} {
		if dist := t[cand].Dist2(m); dist < bestDist {
			best, bestDist = cand, dist
		}
	}
	var f Fractions
	f[best] = 1
	return f
}

func sanitize(m endmember.Point) endmember.Point {
	if math.IsNaN(m.NDVI) || math.IsInf(m.NDVI, 0) {
		m.NDVI = 0
	}
	if math.IsNaN(m.SWIR32) || math.IsInf(m.SWIR32, 0) {
		m.SWIR32 = 0
	}
	return m
}
