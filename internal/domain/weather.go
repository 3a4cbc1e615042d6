package domain

import (
	"fmt"
	"time"
)

// TimeLayout is the timestamp format used in per-area weather CSVs.
const TimeLayout = "2006-01-02 15:04:05"

// nsrdbColumnPrefix maps NSRDB CSV headers to per-area column prefixes.
var nsrdbColumnPrefix = map[string]string{
	"Temperature":       "Temp",
	"Wind Speed":        "Wind",
	"Relative Humidity": "RH",
	"Surface Albedo":    "SA",
	"Pressure":          "P",
	"GHI":               "GHI",
}

// AreaColumn renames an NSRDB variable header to its per-area column name,
// e.g. ("Temperature", 44) -> "Temp_44". Unknown headers pass through.
func AreaColumn(header string, commArea int) string {
	prefix, ok := nsrdbColumnPrefix[header]
	if !ok {
		return header
	}
	return fmt.Sprintf("%s_%d", prefix, commArea)
}

// TemperatureColumn is the per-area temperature column name.
func TemperatureColumn(commArea int) string {
	return AreaColumn("Temperature", commArea)
}

// WeatherRow is one hourly observation.
type WeatherRow struct {
	Time   time.Time
	Values []float64
}

// WeatherFrame is an hourly table with a fixed column order. Frames for
// successive years of one location share Columns and are appended.
type WeatherFrame struct {
	Columns []string
	Rows    []WeatherRow
}

// Append concatenates other onto f. Column sets must match.
func (f *WeatherFrame) Append(other WeatherFrame) error {
	if len(f.Columns) == 0 {
		f.Columns = append([]string(nil), other.Columns...)
	} else if !sameColumns(f.Columns, other.Columns) {
		return fmt.Errorf("append weather frame: columns %v do not match %v", other.Columns, f.Columns)
	}
	f.Rows = append(f.Rows, other.Rows...)
	return nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
