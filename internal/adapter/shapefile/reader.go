// Package shapefile reads and writes ESRI shapefiles as orb geometries.
package shapefile

import (
	"fmt"
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
)

// Feature is one shapefile record: geometry in lon/lat plus raw DBF values
// keyed by field name.
type Feature struct {
	Geometry   orb.Geometry
	Attributes map[string]string
}

// ReadFeatures loads every point, multipoint and polygon record from path.
// Coordinates in Web Mercator (detected from the .prj sidecar) are
// reprojected to WGS84; anything else is assumed to be lon/lat already.
// Other shape types are skipped.
func ReadFeatures(path string) ([]Feature, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile %s: %w", path, err)
	}
	defer r.Close()

	toWGS84, err := sidecarProjection(path)
	if err != nil {
		return nil, err
	}

	fields := r.Fields()
	var out []Feature
	for r.Next() {
		n, shape := r.Shape()
		geom := toOrb(shape)
		if geom == nil {
			continue
		}
		if toWGS84 != nil {
			geom = project.Geometry(geom, toWGS84)
		}

		attrs := make(map[string]string, len(fields))
		for i, f := range fields {
			attrs[f.String()] = cleanAttribute(r.ReadAttribute(n, i))
		}
		out = append(out, Feature{Geometry: geom, Attributes: attrs})
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read shapefile %s: %w", path, err)
	}
	return out, nil
}

// sidecarProjection inspects the .prj next to path and returns a projection
// to WGS84, or nil when the data is already geographic or no .prj exists.
func sidecarProjection(path string) (orb.Projection, error) {
	data, err := os.ReadFile(strings.TrimSuffix(path, ".shp") + ".prj")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read projection for %s: %w", path, err)
	}
	wkt := strings.ToLower(strings.TrimSpace(string(data)))
	if !strings.HasPrefix(wkt, "projcs") {
		return nil, nil
	}
	if isWebMercator(wkt) {
		return project.Mercator.ToWGS84, nil
	}
	return nil, fmt.Errorf("unsupported projected CRS in %s.prj", strings.TrimSuffix(path, ".shp"))
}

// webMercatorMarkers are the lower-cased names ESRI and EPSG use for the
// spherical Web Mercator projection. Plain "mercator" would also match
// Transverse Mercator state plane systems.
var webMercatorMarkers = []string{
	"mercator_auxiliary_sphere",
	"pseudo-mercator",
	"pseudo_mercator",
	"popular visualisation",
	"popular_visualisation",
	"web_mercator",
	"web mercator",
	`authority["epsg","3857"]`,
}

func isWebMercator(wkt string) bool {
	if strings.Contains(wkt, "transverse_mercator") || strings.Contains(wkt, "transverse mercator") {
		return false
	}
	for _, m := range webMercatorMarkers {
		if strings.Contains(wkt, m) {
			return true
		}
	}
	return false
}

func cleanAttribute(s string) string {
	return strings.TrimSpace(strings.Trim(s, "\x00"))
}

// toOrb converts a go-shp shape. Polygon parts are grouped into polygons by
// ring orientation: clockwise rings are shells, counter-clockwise rings are
// holes of the shell that contains them.
func toOrb(s shp.Shape) orb.Geometry {
	switch s := s.(type) {
	case *shp.Point:
		return orb.Point{s.X, s.Y}
	case *shp.MultiPoint:
		mp := make(orb.MultiPoint, len(s.Points))
		for i, p := range s.Points {
			mp[i] = orb.Point{p.X, p.Y}
		}
		return mp
	case *shp.Polygon:
		return ringsToMultiPolygon(splitParts(s.Parts, s.Points))
	default:
		return nil
	}
}

func splitParts(parts []int32, points []shp.Point) []orb.Ring {
	rings := make([]orb.Ring, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		ring := make(orb.Ring, 0, end-start)
		for _, p := range points[start:end] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		rings = append(rings, ring)
	}
	return rings
}

func ringsToMultiPolygon(rings []orb.Ring) orb.MultiPolygon {
	var (
		mp    orb.MultiPolygon
		holes []orb.Ring
	)
	for _, ring := range rings {
		if len(ring) < 4 {
			continue
		}
		if ring.Orientation() == orb.CW {
			mp = append(mp, orb.Polygon{ring})
			continue
		}
		holes = append(holes, ring)
	}

	for _, hole := range holes {
		owner := -1
		for i, poly := range mp {
			if planar.RingContains(poly[0], hole[0]) {
				owner = i
				break
			}
		}
		if owner < 0 {
			// A counter-clockwise ring inside no shell is an outer ring
			// written with the wrong winding.
			mp = append(mp, orb.Polygon{hole})
			continue
		}
		mp[owner] = append(mp[owner], hole)
	}
	return mp
}
