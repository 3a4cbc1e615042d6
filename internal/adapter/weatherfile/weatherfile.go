// Package weatherfile reads and writes the per-community-area hourly weather
// CSVs produced by the NSRDB fetch.
package weatherfile

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/chicago-heat-etl/internal/adapter/csvtable"
	"github.com/couchcryptid/chicago-heat-etl/internal/domain"
)

// TimeColumn is the first column of every weather file.
const TimeColumn = "time"

// FileName is the weather file name for one community area and year range.
func FileName(commArea, startYear, endYear int) string {
	return fmt.Sprintf("commarea_%d_weather_%d_%d.csv", commArea, startYear, endYear)
}

// AreaFromFileName extracts the community-area number from a weather file
// path such as "out/commarea_44_weather_2000_2020.csv".
func AreaFromFileName(path string) (int, error) {
	parts := strings.Split(filepath.Base(path), "_")
	if len(parts) < 2 || parts[0] != "commarea" {
		return 0, fmt.Errorf("weather file name %q: want commarea_<n>_...", filepath.Base(path))
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("weather file name %q: %w", filepath.Base(path), err)
	}
	return n, nil
}

// Write stores frame at path with the time column first. The file is written
// to a temporary name and renamed so an interrupted run never leaves a
// partial CSV behind. NaN values are written as blanks.
func Write(path string, frame domain.WeatherFrame) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create weather dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".weather-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp weather file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	w := csv.NewWriter(tmp)
	if err := w.Write(append([]string{TimeColumn}, frame.Columns...)); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, len(frame.Columns)+1)
	for _, row := range frame.Rows {
		rec[0] = row.Time.Format(domain.TimeLayout)
		for i := range frame.Columns {
			rec[i+1] = ""
			if i < len(row.Values) && !math.IsNaN(row.Values[i]) {
				rec[i+1] = strconv.FormatFloat(row.Values[i], 'f', -1, 64)
			}
		}
		if err := w.Write(rec); err != nil {
			tmp.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush weather file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close weather file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename weather file: %w", err)
	}
	return nil
}

// Exists reports whether a weather file is already present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// LoadTemperatureSeries reads the Temp_<n> column from every *.csv in dir,
// in sorted file order. Blank readings are left out of the series.
func LoadTemperatureSeries(dir string) ([]domain.TemperatureSeries, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("list weather files: %w", err)
	}
	sort.Strings(files)

	out := make([]domain.TemperatureSeries, 0, len(files))
	for _, f := range files {
		s, err := readTemperature(f)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func readTemperature(path string) (domain.TemperatureSeries, error) {
	area, err := AreaFromFileName(path)
	if err != nil {
		return domain.TemperatureSeries{}, err
	}

	t, err := csvtable.Open(path, 0)
	if err != nil {
		return domain.TemperatureSeries{}, err
	}
	idx, err := t.Columns(TimeColumn, domain.TemperatureColumn(area))
	if err != nil {
		return domain.TemperatureSeries{}, fmt.Errorf("weather file %s: %w", path, err)
	}

	s := domain.TemperatureSeries{CommArea: area, Values: make(map[time.Time]float64, len(t.Rows))}
	for i, row := range t.Rows {
		ts, err := time.Parse(domain.TimeLayout, csvtable.Field(row, idx[0]))
		if err != nil {
			return domain.TemperatureSeries{}, fmt.Errorf("weather file %s row %d: %w", path, i+2, err)
		}
		v, err := csvtable.Float(csvtable.Field(row, idx[1]))
		if err != nil {
			return domain.TemperatureSeries{}, fmt.Errorf("weather file %s row %d: %w", path, i+2, err)
		}
		if v != nil {
			s.Values[ts] = *v
		}
	}
	return s, nil
}

// Dir stores one weather file per community area under Path.
type Dir struct {
	Path      string
	StartYear int
	EndYear   int
}

// FilePath is where the weather file for commArea lives.
func (d Dir) FilePath(commArea int) string {
	return filepath.Join(d.Path, FileName(commArea, d.StartYear, d.EndYear))
}

// Exists reports whether commArea has already been written.
func (d Dir) Exists(commArea int) bool {
	return Exists(d.FilePath(commArea))
}

// Write stores the concatenated frame for commArea.
func (d Dir) Write(commArea int, frame domain.WeatherFrame) error {
	return Write(d.FilePath(commArea), frame)
}
