// Package geo holds the spatial operations behind tract enrichment: equal-area
// projection, point-in-polygon joins, and polygon overlay.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
)

// WGS84 ellipsoid.
const (
	semiMajor   = 6378137.0
	flattening  = 1 / 298.257223563
	trueScale   = 30.0 // EPSG:6933 standard parallel, degrees
	squareMetre = 1e-6 // km² per m²
)

var (
	e2 = 2*flattening - flattening*flattening
	e  = math.Sqrt(e2)
	k0 = math.Cos(deg2rad(trueScale)) / math.Sqrt(1-e2*math.Pow(math.Sin(deg2rad(trueScale)), 2))
)

// ToEASE2 projects a lon/lat point to EPSG:6933 (EASE-Grid 2.0 global,
// Lambert cylindrical equal-area on the WGS84 ellipsoid), in metres.
var ToEASE2 orb.Projection = func(p orb.Point) orb.Point {
	lambda := deg2rad(p[0])
	phi := deg2rad(p[1])
	return orb.Point{
		semiMajor * k0 * lambda,
		semiMajor * authalicQ(phi) / (2 * k0),
	}
}

// authalicQ is Snyder's q for the ellipsoid (Map Projections, eq. 3-12).
func authalicQ(phi float64) float64 {
	sinPhi := math.Sin(phi)
	esin := e * sinPhi
	return (1 - e2) * (sinPhi/(1-esin*esin) - (1/(2*e))*math.Log((1-esin)/(1+esin)))
}

// Project returns a projected copy of g; the input is not modified.
func Project(g orb.Geometry, proj orb.Projection) orb.Geometry {
	return project.Geometry(orb.Clone(g), proj)
}

// AreaKm2 returns the equal-area (EPSG:6933) area of a lon/lat geometry in km².
func AreaKm2(g orb.Geometry) float64 {
	return planar.Area(Project(g, ToEASE2)) * squareMetre
}

func deg2rad(d float64) float64 {
	return d * math.Pi / 180
}
