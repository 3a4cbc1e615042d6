package geo

import (
	"fmt"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/quadtree"
)

// Region is a polygonal area keyed by an id, e.g. a census tract.
type Region struct {
	ID       int64
	Geometry orb.MultiPolygon
}

// indexedPoint is one distinct location plus every input index found there.
type indexedPoint struct {
	p   orb.Point
	idx []int
}

func (ip *indexedPoint) Point() orb.Point { return ip.p }

// PointsInRegions returns, for each region id, the ascending indexes of
// points that fall inside or on the boundary of the region. A point on a
// shared boundary is reported for every region it touches.
func PointsInRegions(regions []Region, points []orb.Point) (map[int64][]int, error) {
	out := make(map[int64][]int)
	if len(points) == 0 || len(regions) == 0 {
		return out, nil
	}

	// Coincident points go into the tree once; the quadtree nests every
	// duplicate one level deeper.
	byLocation := make(map[orb.Point]*indexedPoint, len(points))
	distinct := make([]*indexedPoint, 0, len(points))
	for i, p := range points {
		ip, ok := byLocation[p]
		if !ok {
			ip = &indexedPoint{p: p}
			byLocation[p] = ip
			distinct = append(distinct, ip)
		}
		ip.idx = append(ip.idx, i)
	}

	bound := orb.MultiPoint(points).Bound().Pad(1e-9)
	qt := quadtree.New(bound)
	for _, ip := range distinct {
		if err := qt.Add(ip); err != nil {
			return nil, fmt.Errorf("index point %d: %w", ip.idx[0], err)
		}
	}

	var buf []orb.Pointer
	for _, r := range regions {
		buf = qt.InBound(buf[:0], r.Geometry.Bound())
		for _, ptr := range buf {
			ip := ptr.(*indexedPoint)
			if planar.MultiPolygonContains(r.Geometry, ip.p) {
				out[r.ID] = append(out[r.ID], ip.idx...)
			}
		}
		if hits := out[r.ID]; len(hits) > 1 {
			slices.Sort(hits)
		}
	}
	return out, nil
}

// Intersects reports whether g shares any point with region. Points use
// boundary-inclusive containment; polygons intersect when either contains a
// vertex of the other or their overlay is non-empty.
func Intersects(region orb.MultiPolygon, g orb.Geometry) bool {
	if !region.Bound().Intersects(g.Bound()) {
		return false
	}

	switch g := g.(type) {
	case orb.Point:
		return planar.MultiPolygonContains(region, g)
	case orb.MultiPoint:
		for _, p := range g {
			if planar.MultiPolygonContains(region, p) {
				return true
			}
		}
		return false
	case orb.Polygon:
		return polygonsIntersect(region, orb.MultiPolygon{g})
	case orb.MultiPolygon:
		return polygonsIntersect(region, g)
	default:
		return false
	}
}

func polygonsIntersect(a, b orb.MultiPolygon) bool {
	for _, poly := range b {
		for _, ring := range poly {
			for _, p := range ring {
				if planar.MultiPolygonContains(a, p) {
					return true
				}
			}
		}
	}
	for _, poly := range a {
		for _, ring := range poly {
			for _, p := range ring {
				if planar.MultiPolygonContains(b, p) {
					return true
				}
			}
		}
	}
	return IntersectionArea(a, b) > 0
}
