// Package geojson writes and reads the enriched tract table as a GeoJSON
// FeatureCollection. Unlike the shapefile output, property names are the
// full column names.
package geojson

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/chicago-heat-etl/internal/domain"
)

// Encode builds a FeatureCollection with one feature per tract.
func Encode(tracts []domain.Tract) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for i := range tracts {
		t := &tracts[i]
		props, err := properties(t)
		if err != nil {
			return nil, fmt.Errorf("tract %d: %w", t.GeoID10, err)
		}
		f := geojson.NewFeature(t.Geometry)
		f.Properties = props
		fc.Append(f)
	}
	return fc, nil
}

// Write encodes tracts to path, creating parent directories as needed.
func Write(path string, tracts []domain.Tract) error {
	fc, err := Encode(tracts)
	if err != nil {
		return err
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal feature collection: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write geojson %s: %w", path, err)
	}
	return nil
}

// Read loads a FeatureCollection previously written by Write.
func Read(path string) ([]domain.Tract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read geojson %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse geojson %s: %w", path, err)
	}

	tracts := make([]domain.Tract, 0, len(fc.Features))
	for i, f := range fc.Features {
		var t domain.Tract
		raw, err := json.Marshal(f.Properties)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("feature %d properties: %w", i, err)
		}
		switch g := f.Geometry.(type) {
		case orb.MultiPolygon:
			t.Geometry = g
		case orb.Polygon:
			t.Geometry = orb.MultiPolygon{g}
		default:
			return nil, fmt.Errorf("feature %d: expected polygon geometry", i)
		}
		tracts = append(tracts, t)
	}
	return tracts, nil
}

// properties round-trips the tract through its JSON tags so null columns
// stay null.
func properties(t *domain.Tract) (geojson.Properties, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	var props geojson.Properties
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, err
	}
	return props, nil
}
