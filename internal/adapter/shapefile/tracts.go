package shapefile

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/chicago-heat-etl/internal/domain"
)

// ReadTracts loads the Chicago census tract boundaries. Only geoid10,
// commarea, commarea_n and the geometry are kept.
func ReadTracts(path string) ([]domain.Tract, error) {
	features, err := ReadFeatures(path)
	if err != nil {
		return nil, err
	}

	tracts := make([]domain.Tract, 0, len(features))
	for i, f := range features {
		mp, ok := asMultiPolygon(f.Geometry)
		if !ok {
			return nil, fmt.Errorf("tract record %d: expected polygon geometry, got %s", i, f.Geometry.GeoJSONType())
		}
		geoid, err := parseInt64(f.Attributes, "geoid10")
		if err != nil {
			return nil, fmt.Errorf("tract record %d: %w", i, err)
		}
		commAreaN, err := parseInt64(f.Attributes, "commarea_n")
		if err != nil {
			return nil, fmt.Errorf("tract record %d: %w", i, err)
		}
		tracts = append(tracts, domain.Tract{
			GeoID10:   geoid,
			CommArea:  f.Attributes["commarea"],
			CommAreaN: int(commAreaN),
			Geometry:  mp,
		})
	}
	return tracts, nil
}

func asMultiPolygon(g orb.Geometry) (orb.MultiPolygon, bool) {
	switch g := g.(type) {
	case orb.MultiPolygon:
		return g, len(g) > 0
	case orb.Polygon:
		return orb.MultiPolygon{g}, true
	default:
		return nil, false
	}
}

// parseInt64 accepts integer text as well as DBF floats such as "44.0000".
func parseInt64(attrs map[string]string, field string) (int64, error) {
	raw, ok := attrs[field]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrMissingColumn, field)
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	return int64(f), nil
}
