// Package civic loads the City of Chicago open datasets that are joined onto
// the census tracts: population, crimes, building footprints, parks, Project
// Sunroof and the socioeconomic indicators.
package civic

import (
	"fmt"
	"path/filepath"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/chicago-heat-etl/internal/adapter/csvtable"
	"github.com/couchcryptid/chicago-heat-etl/internal/adapter/shapefile"
	"github.com/couchcryptid/chicago-heat-etl/internal/domain"
)

// Paths locates every civic input file.
type Paths struct {
	Centroids     string
	Population    string
	Crimes        string
	Churches      string
	Parks         string
	Schools       string
	Libraries     string
	Sunroof       string
	Socioeconomic string
}

// DefaultPaths returns the portal export names under dataDir.
func DefaultPaths(dataDir string) Paths {
	j := func(parts ...string) string { return filepath.Join(append([]string{dataDir}, parts...)...) }
	return Paths{
		Centroids:     j("commarea_centers.csv"),
		Population:    j("Population_by_2010_Census_Block.csv"),
		Crimes:        j("Crimes_-_Map.csv"),
		Churches:      j("kx-chicago-illinois-churches-SHP", "chicago-illinois-churches.shp"),
		Parks:         j("kx-chicago-illinois-parks-SHP", "chicago-illinois-parks.shp"),
		Schools:       j("kx-chicago-illinois-schools-SHP", "chicago-illinois-schools.shp"),
		Libraries:     j("kx-chicago-illinois-libraries-SHP", "chicago-illinois-libraries.shp"),
		Sunroof:       j("project-sunroof-census_tract.csv"),
		Socioeconomic: j("Census_Data_-_Selected_socioeconomic_indicators_in_Chicago__2008___2012.csv"),
	}
}

// ReadCentroids loads community-area centroids (commarea, longitude, latitude).
func ReadCentroids(path string) ([]domain.Centroid, error) {
	t, err := csvtable.Open(path, 0)
	if err != nil {
		return nil, err
	}
	idx, err := t.Columns("commarea", "longitude", "latitude")
	if err != nil {
		return nil, fmt.Errorf("centroids %s: %w", path, err)
	}

	out := make([]domain.Centroid, 0, len(t.Rows))
	for i, row := range t.Rows {
		area, ok, err := csvtable.Int(csvtable.Field(row, idx[0]))
		if err != nil || !ok {
			return nil, fmt.Errorf("centroids row %d: bad commarea %q", i+2, csvtable.Field(row, idx[0]))
		}
		lon, err := csvtable.Float(csvtable.Field(row, idx[1]))
		if err != nil || lon == nil {
			return nil, fmt.Errorf("centroids row %d: bad longitude", i+2)
		}
		lat, err := csvtable.Float(csvtable.Field(row, idx[2]))
		if err != nil || lat == nil {
			return nil, fmt.Errorf("centroids row %d: bad latitude", i+2)
		}
		out = append(out, domain.Centroid{CommArea: int(area), Lon: *lon, Lat: *lat})
	}
	return out, nil
}

// ReadPopulation loads 2010 census block populations.
func ReadPopulation(path string) ([]domain.BlockPopulation, error) {
	t, err := csvtable.Open(path, 0)
	if err != nil {
		return nil, err
	}
	idx, err := t.Columns("CENSUS BLOCK FULL", "TOTAL POPULATION")
	if err != nil {
		return nil, fmt.Errorf("population %s: %w", path, err)
	}

	out := make([]domain.BlockPopulation, 0, len(t.Rows))
	for i, row := range t.Rows {
		block, ok, err := csvtable.Int(csvtable.Field(row, idx[0]))
		if err != nil {
			return nil, fmt.Errorf("population row %d: %w", i+2, err)
		}
		if !ok {
			continue
		}
		pop, err := csvtable.Float(csvtable.Field(row, idx[1]))
		if err != nil {
			return nil, fmt.Errorf("population row %d: %w", i+2, err)
		}
		bp := domain.BlockPopulation{Block: block}
		if pop != nil {
			bp.Population = *pop
		}
		out = append(out, bp)
	}
	return out, nil
}

// ReadCrimes loads incident locations. Rows missing any of the used columns
// are dropped. Category filtering is left to the caller.
func ReadCrimes(path string) ([]domain.Crime, error) {
	t, err := csvtable.Open(path, 0)
	if err != nil {
		return nil, err
	}
	idx, err := t.Columns(" PRIMARY DESCRIPTION", "WARD", "LATITUDE", "LONGITUDE", "DATE  OF OCCURRENCE")
	if err != nil {
		return nil, fmt.Errorf("crimes %s: %w", path, err)
	}

	out := make([]domain.Crime, 0, len(t.Rows))
	for i, row := range t.Rows {
		desc := csvtable.Field(row, idx[0])
		ward := csvtable.Field(row, idx[1])
		occurred := csvtable.Field(row, idx[4])
		if desc == "" || ward == "" || occurred == "" {
			continue
		}
		lat, err := csvtable.Float(csvtable.Field(row, idx[2]))
		if err != nil {
			return nil, fmt.Errorf("crimes row %d: %w", i+2, err)
		}
		lon, err := csvtable.Float(csvtable.Field(row, idx[3]))
		if err != nil {
			return nil, fmt.Errorf("crimes row %d: %w", i+2, err)
		}
		if lat == nil || lon == nil {
			continue
		}
		out = append(out, domain.Crime{
			PrimaryDescription: desc,
			Ward:               ward,
			Occurred:           occurred,
			Location:           orb.Point{*lon, *lat},
		})
	}
	return out, nil
}

// ReadSunroof loads Project Sunroof tract summaries keyed by region_name.
func ReadSunroof(path string) ([]domain.Sunroof, error) {
	t, err := csvtable.Open(path, 0)
	if err != nil {
		return nil, err
	}
	idx, err := t.Columns("region_name", "percent_qualified", "number_of_panels_total", "kw_total", "existing_installs_count")
	if err != nil {
		return nil, fmt.Errorf("sunroof %s: %w", path, err)
	}

	out := make([]domain.Sunroof, 0, len(t.Rows))
	for i, row := range t.Rows {
		geoid, ok, err := csvtable.Int(csvtable.Field(row, idx[0]))
		if err != nil {
			return nil, fmt.Errorf("sunroof row %d: %w", i+2, err)
		}
		if !ok {
			continue
		}
		vals, err := floats(row, idx[1:])
		if err != nil {
			return nil, fmt.Errorf("sunroof row %d: %w", i+2, err)
		}
		out = append(out, domain.Sunroof{
			GeoID10:          geoid,
			PercentQualified: vals[0],
			PanelsTotal:      vals[1],
			KWTotal:          vals[2],
			ExistingInstalls: vals[3],
		})
	}
	return out, nil
}

// ReadSocioeconomic loads the 2008-2012 hardship indicators. The citywide
// summary row has no area number and is skipped.
func ReadSocioeconomic(path string) ([]domain.Socioeconomic, error) {
	t, err := csvtable.Open(path, 0)
	if err != nil {
		return nil, err
	}
	idx, err := t.Columns(
		"Community Area Number",
		"COMMUNITY AREA NAME",
		"PERCENT OF HOUSING CROWDED",
		"PERCENT HOUSEHOLDS BELOW POVERTY",
		"PERCENT AGED UNDER 18 OR OVER 64",
		"PER CAPITA INCOME ",
		"HARDSHIP INDEX",
	)
	if err != nil {
		return nil, fmt.Errorf("socioeconomic %s: %w", path, err)
	}

	out := make([]domain.Socioeconomic, 0, len(t.Rows))
	for i, row := range t.Rows {
		area, ok, err := csvtable.Int(csvtable.Field(row, idx[0]))
		if err != nil {
			return nil, fmt.Errorf("socioeconomic row %d: %w", i+2, err)
		}
		if !ok {
			continue
		}
		vals, err := floats(row, idx[2:])
		if err != nil {
			return nil, fmt.Errorf("socioeconomic row %d: %w", i+2, err)
		}
		out = append(out, domain.Socioeconomic{
			CommAreaN:         int(area),
			Name:              csvtable.Field(row, idx[1]),
			PctHousingCrowded: vals[0],
			PctBelowPoverty:   vals[1],
			PctAgedDependent:  vals[2],
			PerCapitaIncome:   vals[3],
			HardshipIndex:     vals[4],
		})
	}
	return out, nil
}

func floats(row []string, idx []int) ([]*float64, error) {
	out := make([]*float64, len(idx))
	for i, j := range idx {
		v, err := csvtable.Float(csvtable.Field(row, j))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ReadBuildings loads churches, libraries and CPS/private schools.
// Schools of any other TYPE are dropped.
func ReadBuildings(p Paths) ([]domain.Building, error) {
	var out []domain.Building

	for _, src := range []struct {
		path string
		kind domain.BuildingKind
	}{
		{p.Churches, domain.BuildingChurch},
		{p.Libraries, domain.BuildingLibrary},
	} {
		features, err := shapefile.ReadFeatures(src.path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", src.kind, err)
		}
		for _, f := range features {
			out = append(out, domain.Building{Kind: src.kind, Geometry: f.Geometry})
		}
	}

	schools, err := shapefile.ReadFeatures(p.Schools)
	if err != nil {
		return nil, fmt.Errorf("read schools: %w", err)
	}
	for _, f := range schools {
		kind, ok := domain.SchoolKind(f.Attributes["TYPE"])
		if !ok {
			continue
		}
		out = append(out, domain.Building{Kind: kind, Geometry: f.Geometry})
	}
	return out, nil
}

// ReadParks loads park polygons. Point records are ignored.
func ReadParks(path string) ([]orb.MultiPolygon, error) {
	features, err := shapefile.ReadFeatures(path)
	if err != nil {
		return nil, fmt.Errorf("read parks: %w", err)
	}
	out := make([]orb.MultiPolygon, 0, len(features))
	for _, f := range features {
		switch g := f.Geometry.(type) {
		case orb.MultiPolygon:
			out = append(out, g)
		case orb.Polygon:
			out = append(out, orb.MultiPolygon{g})
		}
	}
	return out, nil
}
