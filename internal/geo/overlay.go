package geo

import (
	"math"

	polyclip "github.com/ctessum/polyclip-go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// IntersectionArea returns the planar area shared by a and b, in the units
// of their coordinates squared.
func IntersectionArea(a, b orb.MultiPolygon) float64 {
	if !a.Bound().Intersects(b.Bound()) {
		return 0
	}
	result := toClip(a).Construct(polyclip.INTERSECTION, toClip(b))
	return clipArea(result)
}

// OverlayAreaKm2 returns, per region id, the summed equal-area intersection
// (km²) of the region with every overlay polygon. Overlapping overlay
// polygons are counted once per polygon. Regions with no overlap are absent.
func OverlayAreaKm2(regions []Region, overlays []orb.MultiPolygon) map[int64]float64 {
	projOverlays := make([]orb.MultiPolygon, len(overlays))
	for i, o := range overlays {
		projOverlays[i] = Project(o, ToEASE2).(orb.MultiPolygon)
	}

	out := make(map[int64]float64)
	for _, r := range regions {
		proj := Project(r.Geometry, ToEASE2).(orb.MultiPolygon)
		bound := proj.Bound()
		for _, o := range projOverlays {
			if !bound.Intersects(o.Bound()) {
				continue
			}
			if a := IntersectionArea(proj, o); a > 0 {
				out[r.ID] += a * squareMetre
			}
		}
	}
	return out
}

// toClip flattens a multipolygon into polyclip contours. Holes become
// contours nested inside their shell, which polyclip treats even-odd.
func toClip(mp orb.MultiPolygon) polyclip.Polygon {
	var out polyclip.Polygon
	for _, poly := range mp {
		for _, ring := range poly {
			n := len(ring)
			if n > 1 && ring[0] == ring[n-1] {
				n--
			}
			if n < 3 {
				continue
			}
			c := make(polyclip.Contour, n)
			for i := 0; i < n; i++ {
				c[i] = polyclip.Point{X: ring[i][0], Y: ring[i][1]}
			}
			out = append(out, c)
		}
	}
	return out
}

// clipArea sums contour areas under the even-odd rule: a contour nested in
// an odd number of other contours is a hole.
func clipArea(p polyclip.Polygon) float64 {
	rings := make([]orb.Ring, len(p))
	for i, c := range p {
		r := make(orb.Ring, 0, len(c)+1)
		for _, pt := range c {
			r = append(r, orb.Point{pt.X, pt.Y})
		}
		if len(r) > 0 {
			r = append(r, r[0])
		}
		rings[i] = r
	}

	var total float64
	for i, r := range rings {
		if len(r) < 4 {
			continue
		}
		depth := 0
		inside := interiorSample(r)
		for j, other := range rings {
			if i == j || len(other) < 4 {
				continue
			}
			if planar.RingContains(other, inside) {
				depth++
			}
		}
		a := math.Abs(planar.Area(r))
		if depth%2 == 0 {
			total += a
		} else {
			total -= a
		}
	}
	return math.Max(total, 0)
}

// interiorSample picks a point just inside r near its first edge, so nesting
// tests are not confused by rings that share vertices.
func interiorSample(r orb.Ring) orb.Point {
	a, b := r[0], r[1]
	mid := orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
	dx, dy := b[0]-a[0], b[1]-a[1]
	length := math.Hypot(dx, dy)
	if length == 0 {
		return mid
	}
	// Left normal points inward for counter-clockwise rings.
	nx, ny := -dy/length, dx/length
	if r.Orientation() == orb.CW {
		nx, ny = -nx, -ny
	}
	eps := length * 1e-6
	return orb.Point{mid[0] + nx*eps, mid[1] + ny*eps}
}
