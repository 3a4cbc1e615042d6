// Command validate performs integrity checks on the enriched tract table: it
// verifies identifiers and value ranges in the shapefile, compares it with
// the GeoJSON output, and cross-checks the community areas against the
// downloaded weather files.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -shp processed_data/chicago_data.shp \
//	  -geojson processed_data/chicago_data.geojson \
//	  -weather-dir chicago_nsrdb
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/couchcryptid/chicago-heat-etl/internal/adapter/geojson"
	"github.com/couchcryptid/chicago-heat-etl/internal/adapter/shapefile"
	"github.com/couchcryptid/chicago-heat-etl/internal/adapter/weatherfile"
	"github.com/couchcryptid/chicago-heat-etl/internal/domain"
)

const (
	communityAreas = 77
	cookCounty     = "17031"
	// DBF floats carry six decimals.
	dbfTolerance = 1e-6
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	shpPath := flag.String("shp", "", "enriched shapefile")
	geojsonPath := flag.String("geojson", "", "optional GeoJSON output to compare against the shapefile")
	weatherDir := flag.String("weather-dir", "", "optional directory of per-area weather CSVs")
	flag.Parse()

	if *shpPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*shpPath, *geojsonPath, *weatherDir); code != 0 {
		os.Exit(code)
	}
}

func run(shpPath, geojsonPath, weatherDir string) int {
	fmt.Println("=== Chicago Heat Data Integrity Validation ===")
	fmt.Println()

	// ── Load data sources ──
	tracts, err := shapefile.ReadEnriched(shpPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load shapefile: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateIdentifiers(tracts),
		validateValues(tracts),
		validateNullGroups(tracts),
	}

	if geojsonPath != "" {
		features, err := geojson.Read(geojsonPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load geojson: %v\n", err)
			return 1
		}
		phases = append(phases, validateFormatParity(tracts, features))
	}

	if weatherDir != "" {
		series, err := weatherfile.LoadTemperatureSeries(weatherDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load weather: %v\n", err)
			return 1
		}
		phases = append(phases, validateWeatherCoverage(tracts, series))
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Tracts: %d across %d community areas\n", len(tracts), countAreas(tracts))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phases ──

func validateIdentifiers(tracts []domain.Tract) *phase {
	p := &phase{name: "Identifiers (geoid10, commarea_n)"}
	if len(tracts) == 0 {
		p.errorf("table is empty")
		return p
	}

	seen := make(map[int64]bool, len(tracts))
	for i, t := range tracts {
		id := strconv.FormatInt(t.GeoID10, 10)
		if len(id) != 11 || !strings.HasPrefix(id, cookCounty) {
			p.errorf("row %d: geoid10 %s is not an 11-digit Cook County tract", i, id)
		}
		if seen[t.GeoID10] {
			p.errorf("row %d: duplicate geoid10 %s", i, id)
		}
		seen[t.GeoID10] = true

		if t.CommAreaN < 1 || t.CommAreaN > communityAreas {
			p.errorf("row %d (%s): commarea_n %d outside 1..%d", i, id, t.CommAreaN, communityAreas)
		}
		if len(t.Geometry) == 0 {
			p.errorf("row %d (%s): empty geometry", i, id)
		}
	}
	return p
}

func validateValues(tracts []domain.Tract) *phase {
	p := &phase{name: "Value ranges"}
	minHA := math.Inf(1)
	for i, t := range tracts {
		id := t.GeoID10
		if v := t.HeatAnomalyMin; v != nil {
			if *v < -dbfTolerance {
				p.errorf("row %d (%d): H_amin %.6f is negative", i, id, *v)
			}
			minHA = math.Min(minHA, *v)
		}

		if t.CrimeCount < 1 {
			p.errorf("row %d (%d): crime_count %d, crime join is inner", i, id, t.CrimeCount)
		}
		if t.ViolentCount < 0 || t.ViolentCount > t.CrimeCount {
			p.errorf("row %d (%d): is_violent %d exceeds crime_count %d", i, id, t.ViolentCount, t.CrimeCount)
		}
		if t.AreaKm2 <= 0 {
			p.errorf("row %d (%d): tract_area %.6f is not positive", i, id, t.AreaKm2)
		}
		if t.PctPark < 0 {
			p.errorf("row %d (%d): pct_park %.6f is negative", i, id, t.PctPark)
		}
		if v := t.PercentQualified; v != nil && (*v < 0 || *v > 100) {
			p.errorf("row %d (%d): percent_qualified %.2f outside 0..100", i, id, *v)
		}
		if v := t.Population; v != nil && *v < 0 {
			p.errorf("row %d (%d): population %.0f is negative", i, id, *v)
		}
	}
	if !math.IsInf(minHA, 1) && math.Abs(minHA) > dbfTolerance {
		p.errorf("min(H_amin) = %.6f, want 0", minHA)
	}
	return p
}

// validateNullGroups checks columns that are joined together are null
// together.
func validateNullGroups(tracts []domain.Tract) *phase {
	p := &phase{name: "Null groups (buildings)"}
	for i, t := range tracts {
		set := 0
		for _, v := range []*float64{t.Churches, t.PublicSchools, t.PrivateSchools, t.Libraries} {
			if v != nil {
				set++
			}
		}
		if set != 0 && set != 4 {
			p.errorf("row %d (%d): %d of 4 building counts set", i, t.GeoID10, set)
		}
	}
	return p
}

func validateFormatParity(shp, gj []domain.Tract) *phase {
	p := &phase{name: "Shapefile ↔ GeoJSON parity"}
	if len(shp) != len(gj) {
		p.errorf("row count: shapefile %d, geojson %d", len(shp), len(gj))
	}

	byID := make(map[int64]domain.Tract, len(gj))
	for _, t := range gj {
		byID[t.GeoID10] = t
	}
	for _, s := range shp {
		g, ok := byID[s.GeoID10]
		if !ok {
			p.errorf("%d: missing from geojson", s.GeoID10)
			continue
		}
		compare := func(name string, a, b float64) {
			if math.Abs(a-b) > dbfTolerance*math.Max(1, math.Abs(b)) {
				p.errorf("%d: %s shapefile %.6f, geojson %.6f", s.GeoID10, name, a, b)
			}
		}
		switch {
		case (s.HeatAnomaly == nil) != (g.HeatAnomaly == nil):
			p.errorf("%d: H_a null in one output only", s.GeoID10)
		case s.HeatAnomaly != nil:
			compare("H_a", *s.HeatAnomaly, *g.HeatAnomaly)
		}
		compare("tract_area", s.AreaKm2, g.AreaKm2)
		compare("pct_park", s.PctPark, g.PctPark)
		if s.CrimeCount != g.CrimeCount {
			p.errorf("%d: crime_count shapefile %d, geojson %d", s.GeoID10, s.CrimeCount, g.CrimeCount)
		}
		if (s.HardshipIndex == nil) != (g.HardshipIndex == nil) {
			p.errorf("%d: HARDSHIP INDEX null in one output only", s.GeoID10)
		}
	}
	return p
}

func validateWeatherCoverage(tracts []domain.Tract, series []domain.TemperatureSeries) *phase {
	p := &phase{name: "Weather coverage"}
	have := make(map[int]bool, len(series))
	for _, s := range series {
		have[s.CommArea] = true
	}

	var missing []int
	for area := range areas(tracts) {
		if !have[area] {
			missing = append(missing, area)
		}
	}
	sort.Ints(missing)
	for _, a := range missing {
		p.errorf("commarea %d has tracts but no weather file", a)
	}
	return p
}

func areas(tracts []domain.Tract) map[int]bool {
	out := make(map[int]bool)
	for _, t := range tracts {
		out[t.CommAreaN] = true
	}
	return out
}

func countAreas(tracts []domain.Tract) int {
	return len(areas(tracts))
}
