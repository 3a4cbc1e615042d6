package shapefile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/couchcryptid/chicago-heat-etl/internal/domain"
)

const wgs84WKT = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// column binds one DBF field to a tract attribute. DBF names are capped at
// 10 characters, so the long table names are abbreviated.
type column struct {
	field shp.Field
	get   func(t *domain.Tract) any // nil result writes a blank (null) value
	set   func(t *domain.Tract, raw string) error
}

func floatCol(name string, ptr func(t *domain.Tract) **float64) column {
	return column{
		field: shp.FloatField(name, 24, 6),
		get: func(t *domain.Tract) any {
			if p := *ptr(t); p != nil {
				return *p
			}
			return nil
		},
		set: func(t *domain.Tract, raw string) error {
			if raw == "" {
				*ptr(t) = nil
				return nil
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return fmt.Errorf("parse %s %q: %w", name, raw, err)
			}
			*ptr(t) = domain.Float(v)
			return nil
		},
	}
}

func requiredFloatCol(name string, ptr func(t *domain.Tract) *float64) column {
	return column{
		field: shp.FloatField(name, 24, 6),
		get:   func(t *domain.Tract) any { return *ptr(t) },
		set: func(t *domain.Tract, raw string) error {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return fmt.Errorf("parse %s %q: %w", name, raw, err)
			}
			*ptr(t) = v
			return nil
		},
	}
}

func intCol(name string, ptr func(t *domain.Tract) *int) column {
	return column{
		field: shp.NumberField(name, 10),
		get:   func(t *domain.Tract) any { return *ptr(t) },
		set: func(t *domain.Tract, raw string) error {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("parse %s %q: %w", name, raw, err)
			}
			*ptr(t) = v
			return nil
		},
	}
}

func stringCol(name string, size uint8, ptr func(t *domain.Tract) *string) column {
	return column{
		field: shp.StringField(name, size),
		get:   func(t *domain.Tract) any { return *ptr(t) },
		set: func(t *domain.Tract, raw string) error {
			*ptr(t) = raw
			return nil
		},
	}
}

var columns = []column{
	{
		// Text keeps all 11 GEOID digits exact.
		field: shp.StringField("geoid10", 12),
		get:   func(t *domain.Tract) any { return strconv.FormatInt(t.GeoID10, 10) },
		set: func(t *domain.Tract, raw string) error {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("parse geoid10 %q: %w", raw, err)
			}
			t.GeoID10 = v
			return nil
		},
	},
	stringCol("commarea", 40, func(t *domain.Tract) *string { return &t.CommArea }),
	intCol("commarea_n", func(t *domain.Tract) *int { return &t.CommAreaN }),
	floatCol("H_a", func(t *domain.Tract) **float64 { return &t.HeatAnomaly }),
	floatCol("H_amin", func(t *domain.Tract) **float64 { return &t.HeatAnomalyMin }),
	floatCol("TOTAL POPU", func(t *domain.Tract) **float64 { return &t.Population }),
	intCol("crime_coun", func(t *domain.Tract) *int { return &t.CrimeCount }),
	intCol("is_violent", func(t *domain.Tract) *int { return &t.ViolentCount }),
	requiredFloatCol("tract_area", func(t *domain.Tract) *float64 { return &t.AreaKm2 }),
	requiredFloatCol("pct_park", func(t *domain.Tract) *float64 { return &t.PctPark }),
	floatCol("n_churches", func(t *domain.Tract) **float64 { return &t.Churches }),
	floatCol("n_public", func(t *domain.Tract) **float64 { return &t.PublicSchools }),
	floatCol("n_private", func(t *domain.Tract) **float64 { return &t.PrivateSchools }),
	floatCol("n_librarie", func(t *domain.Tract) **float64 { return &t.Libraries }),
	floatCol("percent_qu", func(t *domain.Tract) **float64 { return &t.PercentQualified }),
	floatCol("number_of_", func(t *domain.Tract) **float64 { return &t.PanelsTotal }),
	floatCol("kw_total", func(t *domain.Tract) **float64 { return &t.KWTotal }),
	floatCol("existing_i", func(t *domain.Tract) **float64 { return &t.ExistingInstalls }),
	stringCol("COMMUNITY", 40, func(t *domain.Tract) *string { return &t.CommunityName }),
	floatCol("PERCENT OF", func(t *domain.Tract) **float64 { return &t.PctHousingCrowded }),
	floatCol("PERCENT HO", func(t *domain.Tract) **float64 { return &t.PctBelowPoverty }),
	floatCol("PERCENT AG", func(t *domain.Tract) **float64 { return &t.PctAgedDependent }),
	floatCol("PER CAPITA", func(t *domain.Tract) **float64 { return &t.PerCapitaIncome }),
	floatCol("HARDSHIP I", func(t *domain.Tract) **float64 { return &t.HardshipIndex }),
}

// FieldNames returns the DBF field names in write order.
func FieldNames() []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.field.String()
	}
	return names
}

// WriteTracts writes the enriched table as a polygon shapefile with a WGS84
// .prj sidecar, creating the parent directory. Shells are written clockwise
// and holes counter-clockwise.
func WriteTracts(path string, tracts []domain.Tract) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("create shapefile %s: %w", path, err)
	}

	fields := make([]shp.Field, len(columns))
	for i, c := range columns {
		fields[i] = c.field
	}
	if err := w.SetFields(fields); err != nil {
		w.Close()
		return fmt.Errorf("set fields: %w", err)
	}

	for i := range tracts {
		t := &tracts[i]
		poly := toShpPolygon(t.Geometry)
		row := int(w.Write(&poly))

		for j, c := range columns {
			v := c.get(t)
			if v == nil {
				v = ""
			}
			if err := w.WriteAttribute(row, j, v); err != nil {
				w.Close()
				return fmt.Errorf("write %s for row %d: %w", c.field.String(), row, err)
			}
		}
	}
	w.Close()

	prj := strings.TrimSuffix(path, ".shp") + ".prj"
	if err := os.WriteFile(prj, []byte(wgs84WKT), 0o600); err != nil {
		return fmt.Errorf("write projection: %w", err)
	}
	return nil
}

// ReadEnriched loads a shapefile previously written by WriteTracts.
func ReadEnriched(path string) ([]domain.Tract, error) {
	features, err := ReadFeatures(path)
	if err != nil {
		return nil, err
	}

	tracts := make([]domain.Tract, 0, len(features))
	for i, f := range features {
		mp, ok := asMultiPolygon(f.Geometry)
		if !ok {
			return nil, fmt.Errorf("enriched record %d: expected polygon geometry", i)
		}
		t := domain.Tract{Geometry: mp}
		for _, c := range columns {
			name := c.field.String()
			raw, ok := f.Attributes[name]
			if !ok {
				return nil, fmt.Errorf("enriched record %d: %w: %s", i, domain.ErrMissingColumn, name)
			}
			if err := c.set(&t, raw); err != nil {
				return nil, fmt.Errorf("enriched record %d: %w", i, err)
			}
		}
		tracts = append(tracts, t)
	}
	return tracts, nil
}

func toShpPolygon(mp orb.MultiPolygon) shp.Polygon {
	var parts [][]shp.Point
	for _, poly := range mp {
		for i, ring := range poly {
			want := orb.CCW
			if i == 0 {
				want = orb.CW
			}
			parts = append(parts, ringPoints(ring, want))
		}
	}
	return shp.Polygon(*shp.NewPolyLine(parts))
}

func ringPoints(ring orb.Ring, want orb.Orientation) []shp.Point {
	pts := make([]shp.Point, len(ring))
	reverse := ring.Orientation() != want
	for i, p := range ring {
		j := i
		if reverse {
			j = len(ring) - 1 - i
		}
		pts[j] = shp.Point{X: p[0], Y: p[1]}
	}
	return pts
}
