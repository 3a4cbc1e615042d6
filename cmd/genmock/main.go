// Command genmock generates a small synthetic Chicago: tract boundaries,
// centroids, hourly weather with a heatwave, and every civic dataset, laid
// out with the portal file names so enrich and validate can run end to end
// without downloads. Output is deterministic for a given seed.
//
// Usage:
//
//	go run ./cmd/genmock -out mock
//	DATA_DIR=mock/data WEATHER_DIR=mock/chicago_nsrdb \
//	  TRACTS_SHP=mock/data/chicago_shapefile/chicago_tracts.shp go run ./cmd/enrich
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonas-p/go-shp"

	"github.com/couchcryptid/chicago-heat-etl/internal/adapter/civic"
	"github.com/couchcryptid/chicago-heat-etl/internal/adapter/weatherfile"
	"github.com/couchcryptid/chicago-heat-etl/internal/domain"
)

const (
	originLon = -87.80
	originLat = 41.70
	tractSize = 0.01
	areaGap   = 0.03
)

var descriptions = []string{
	"THEFT", "BATTERY", "CRIMINAL DAMAGE", "ASSAULT", "DECEPTIVE PRACTICE",
	"MOTOR VEHICLE THEFT", "ROBBERY", "NON-CRIMINAL", "NARCOTICS", "BURGLARY",
}

var schoolTypes = []string{"CPS", "CPS", "PRIVATE", "CHARTER"}

type tract struct {
	geoid    int64
	area     int
	minX     float64
	minY     float64
	areaName string
}

func (t tract) point(rng *rand.Rand) (float64, float64) {
	// Stay off the edges so points fall in exactly one tract.
	return t.minX + tractSize*(0.1+0.8*rng.Float64()), t.minY + tractSize*(0.1+0.8*rng.Float64())
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "mock", "output root directory")
	areas := flag.Int("areas", 4, "number of community areas")
	perArea := flag.Int("tracts", 3, "tracts per community area")
	year := flag.Int("year", 2012, "weather year")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *areas < 1 || *areas > 77 || *perArea < 1 || *perArea > 99 {
		flag.Usage()
		return fmt.Errorf("areas must be 1..77 and tracts 1..99")
	}

	rng := rand.New(rand.NewPCG(*seed, *seed))
	dataDir := filepath.Join(*out, "data")
	paths := civic.DefaultPaths(dataDir)

	tracts := layout(*areas, *perArea)

	steps := []struct {
		name string
		fn   func() error
	}{
		{"tracts", func() error {
			return writeTracts(filepath.Join(dataDir, "chicago_shapefile", "chicago_tracts.shp"), tracts)
		}},
		{"centroids", func() error { return writeCentroids(paths.Centroids, *areas, *perArea) }},
		{"weather", func() error { return writeWeather(filepath.Join(*out, "chicago_nsrdb"), *areas, *year, rng) }},
		{"population", func() error { return writePopulation(paths.Population, tracts, rng) }},
		{"crimes", func() error { return writeCrimes(paths.Crimes, tracts, rng) }},
		{"parks", func() error { return writeParks(paths.Parks, tracts) }},
		{"buildings", func() error { return writeBuildings(paths, tracts, rng) }},
		{"sunroof", func() error { return writeSunroof(paths.Sunroof, tracts, rng) }},
		{"socioeconomic", func() error { return writeSocioeconomic(paths.Socioeconomic, *areas, rng) }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return fmt.Errorf("writing %s: %w", s.name, err)
		}
		log.Printf("wrote %s", s.name)
	}

	log.Printf("generated %d tracts in %d community areas under %s", len(tracts), *areas, *out)
	return nil
}

func layout(areas, perArea int) []tract {
	out := make([]tract, 0, areas*perArea)
	for a := 1; a <= areas; a++ {
		for j := 0; j < perArea; j++ {
			out = append(out, tract{
				geoid:    17031000000 + int64(a*100+j+1),
				area:     a,
				minX:     originLon + float64(a-1)*areaGap,
				minY:     originLat + float64(j)*tractSize,
				areaName: fmt.Sprintf("AREA %d", a),
			})
		}
	}
	return out
}

func writeTracts(path string, tracts []tract) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.SetFields([]shp.Field{
		shp.StringField("geoid10", 12),
		shp.StringField("commarea", 40),
		shp.FloatField("commarea_n", 19, 11),
		shp.StringField("notes", 20),
	}); err != nil {
		return err
	}

	for _, t := range tracts {
		// Clockwise shell.
		ring := []shp.Point{
			{X: t.minX, Y: t.minY},
			{X: t.minX, Y: t.minY + tractSize},
			{X: t.minX + tractSize, Y: t.minY + tractSize},
			{X: t.minX + tractSize, Y: t.minY},
			{X: t.minX, Y: t.minY},
		}
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{ring}))
		row := int(w.Write(&poly))
		for i, v := range []any{strconv.FormatInt(t.geoid, 10), t.areaName, float64(t.area), "synthetic"} {
			if err := w.WriteAttribute(row, i, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeCentroids(path string, areas, perArea int) error {
	rows := [][]string{{"commarea", "longitude", "latitude"}}
	for a := 1; a <= areas; a++ {
		lon := originLon + float64(a-1)*areaGap + tractSize/2
		lat := originLat + float64(perArea)*tractSize/2
		rows = append(rows, []string{strconv.Itoa(a), ff(lon), ff(lat)})
	}
	return writeCSV(path, rows)
}

// writeWeather writes ten July days per area with a two-day heatwave on
// days 5 and 6. Each area runs slightly hotter than the last.
func writeWeather(dir string, areas, year int, rng *rand.Rand) error {
	start := time.Date(year, time.July, 1, 0, 30, 0, 0, time.UTC)
	for a := 1; a <= areas; a++ {
		frame := domain.WeatherFrame{Columns: []string{domain.TemperatureColumn(a), "GHI_" + strconv.Itoa(a)}}
		for h := 0; h < 10*24; h++ {
			ts := start.Add(time.Duration(h) * time.Hour)
			diurnal := 6 * math.Sin(2*math.Pi*float64(ts.Hour()-9)/24)
			temp := 26 + diurnal + 0.4*float64(a) + rng.NormFloat64()*0.3
			if day := ts.Day(); day == 5 || day == 6 {
				temp += 9
			}
			ghi := math.Max(0, 900*math.Sin(math.Pi*float64(ts.Hour()-5)/15))
			frame.Rows = append(frame.Rows, domain.WeatherRow{Time: ts, Values: []float64{round(temp, 1), math.Round(ghi)}})
		}
		d := weatherfile.Dir{Path: dir, StartYear: year, EndYear: year}
		if err := d.Write(a, frame); err != nil {
			return err
		}
	}
	return nil
}

func writePopulation(path string, tracts []tract, rng *rand.Rand) error {
	rows := [][]string{{"CENSUS BLOCK", "CENSUS BLOCK FULL", "TOTAL POPULATION"}}
	for i, t := range tracts {
		if i == len(tracts)-1 {
			break // one tract without census blocks
		}
		for k := 0; k < 3; k++ {
			block := 1000 + k
			rows = append(rows, []string{
				strconv.Itoa(block),
				strconv.FormatInt(t.geoid*10000+int64(block), 10),
				strconv.Itoa(20 + rng.IntN(400)),
			})
		}
	}
	return writeCSV(path, rows)
}

func writeCrimes(path string, tracts []tract, rng *rand.Rand) error {
	rows := [][]string{{"CASE#", "DATE  OF OCCURRENCE", "BLOCK", " PRIMARY DESCRIPTION", "WARD", "LATITUDE", "LONGITUDE"}}
	n := 0
	for _, t := range tracts {
		count := 5 + rng.IntN(25)
		for k := 0; k < count; k++ {
			n++
			x, y := t.point(rng)
			occurred := time.Date(2021, time.Month(1+rng.IntN(12)), 1+rng.IntN(28), rng.IntN(24), 0, 0, 0, time.UTC)
			ward := strconv.Itoa(1 + rng.IntN(50))
			if k == 0 && t.area == 1 {
				ward = "" // dropped by the reader
			}
			rows = append(rows, []string{
				fmt.Sprintf("JE%06d", n),
				occurred.Format("01/02/2006 03:04:05 PM"),
				"0000X W MOCK ST",
				descriptions[rng.IntN(len(descriptions))],
				ward, ff(y), ff(x),
			})
		}
	}
	return writeCSV(path, rows)
}

// writeParks places one park per area covering the lower half of its first
// tract.
func writeParks(path string, tracts []tract) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.SetFields([]shp.Field{shp.StringField("NAME", 40)}); err != nil {
		return err
	}

	seen := map[int]bool{}
	for _, t := range tracts {
		if seen[t.area] {
			continue
		}
		seen[t.area] = true
		h := tractSize / 2
		ring := []shp.Point{
			{X: t.minX, Y: t.minY},
			{X: t.minX, Y: t.minY + h},
			{X: t.minX + tractSize, Y: t.minY + h},
			{X: t.minX + tractSize, Y: t.minY},
			{X: t.minX, Y: t.minY},
		}
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{ring}))
		row := int(w.Write(&poly))
		if err := w.WriteAttribute(row, 0, fmt.Sprintf("%s PARK", t.areaName)); err != nil {
			return err
		}
	}
	return nil
}

type pointRecord struct {
	x, y  float64
	attrs []string
}

func writeBuildings(p civic.Paths, tracts []tract, rng *rand.Rand) error {
	var churches, schools, libraries []pointRecord
	for i, t := range tracts {
		if i%3 == 2 {
			continue // some tracts with no building at all
		}
		count := rng.IntN(3)
		for k := 0; k < count; k++ {
			x, y := t.point(rng)
			churches = append(churches, pointRecord{x, y, []string{fmt.Sprintf("CHURCH %d-%d", i, k)}})
		}
		x, y := t.point(rng)
		schools = append(schools, pointRecord{x, y, []string{fmt.Sprintf("SCHOOL %d", i), schoolTypes[rng.IntN(len(schoolTypes))]}})
		if i%4 == 0 {
			x, y := t.point(rng)
			libraries = append(libraries, pointRecord{x, y, []string{fmt.Sprintf("BRANCH %d", i)}})
		}
	}

	name := shp.StringField("NAME", 40)
	if err := writePoints(p.Churches, []shp.Field{name}, churches); err != nil {
		return err
	}
	if err := writePoints(p.Schools, []shp.Field{name, shp.StringField("TYPE", 10)}, schools); err != nil {
		return err
	}
	return writePoints(p.Libraries, []shp.Field{name}, libraries)
}

func writePoints(path string, fields []shp.Field, records []pointRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.SetFields(fields); err != nil {
		return err
	}
	for _, r := range records {
		row := int(w.Write(&shp.Point{X: r.x, Y: r.y}))
		for i, v := range r.attrs {
			if err := w.WriteAttribute(row, i, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeSunroof(path string, tracts []tract, rng *rand.Rand) error {
	rows := [][]string{{"region_name", "state_name", "percent_qualified", "number_of_panels_total", "kw_total", "existing_installs_count"}}
	for i, t := range tracts {
		if i == 0 {
			continue // one tract Sunroof never covered
		}
		panels := 500 + rng.IntN(5000)
		rows = append(rows, []string{
			strconv.FormatInt(t.geoid, 10),
			"Illinois",
			ff(round(60+rng.Float64()*40, 2)),
			strconv.Itoa(panels),
			ff(round(float64(panels)*0.25, 2)),
			strconv.Itoa(rng.IntN(20)),
		})
	}
	return writeCSV(path, rows)
}

func writeSocioeconomic(path string, areas int, rng *rand.Rand) error {
	rows := [][]string{{
		"Community Area Number", "COMMUNITY AREA NAME", "PERCENT OF HOUSING CROWDED",
		"PERCENT HOUSEHOLDS BELOW POVERTY", "PERCENT AGED 16+ UNEMPLOYED",
		"PERCENT AGED 25+ WITHOUT HIGH SCHOOL DIPLOMA", "PERCENT AGED UNDER 18 OR OVER 64",
		"PER CAPITA INCOME ", "HARDSHIP INDEX",
	}}
	for a := 1; a <= areas; a++ {
		rows = append(rows, []string{
			strconv.Itoa(a), fmt.Sprintf("Area %d", a),
			ff(round(rng.Float64()*15, 1)), ff(round(rng.Float64()*40, 1)),
			ff(round(rng.Float64()*25, 1)), ff(round(rng.Float64()*40, 1)),
			ff(round(25+rng.Float64()*20, 1)),
			strconv.Itoa(8000 + rng.IntN(80000)), strconv.Itoa(1 + rng.IntN(98)),
		})
	}
	// The citywide total row has no area number.
	rows = append(rows, []string{"", "CHICAGO", "4.7", "19.7", "12.9", "19.5", "33.5", "28202", ""})
	return writeCSV(path, rows)
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ff(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
