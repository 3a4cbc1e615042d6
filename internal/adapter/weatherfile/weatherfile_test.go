package weatherfile

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/chicago-heat-etl/internal/domain"
)

func hour(h int) time.Time {
	return time.Date(2012, time.July, 6, h, 30, 0, 0, time.UTC)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "commarea_44_weather_2000_2020.csv", FileName(44, 2000, 2020))
}

func TestAreaFromFileName(t *testing.T) {
	tests := []struct {
		path    string
		want    int
		wantErr bool
	}{
		{"commarea_44_weather_2000_2020.csv", 44, false},
		{filepath.Join("chicago_nsrdb", "commarea_7_weather_2000_2020.csv"), 7, false},
		{filepath.Join("my_weather_dir", "commarea_12_weather_2000_2020.csv"), 12, false},
		{"weather.csv", 0, true},
		{"commarea_x_weather.csv", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := AreaFromFileName(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWrite_ThenLoad(t *testing.T) {
	dir := t.TempDir()
	frame := domain.WeatherFrame{
		Columns: []string{"GHI_44", "Temp_44"},
		Rows: []domain.WeatherRow{
			{Time: hour(13), Values: []float64{812, 33.5}},
			{Time: hour(14), Values: []float64{790, math.NaN()}},
			{Time: hour(15), Values: []float64{701, 31.25}},
		},
	}
	path := filepath.Join(dir, FileName(44, 2012, 2012))
	require.NoError(t, Write(path, frame))
	assert.True(t, Exists(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"time,GHI_44,Temp_44\n"+
			"2012-07-06 13:30:00,812,33.5\n"+
			"2012-07-06 14:30:00,790,\n"+
			"2012-07-06 15:30:00,701,31.25\n",
		string(raw))

	series, err := LoadTemperatureSeries(dir)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, 44, series[0].CommArea)
	assert.Equal(t, map[time.Time]float64{hour(13): 33.5, hour(15): 31.25}, series[0].Values)
}

func TestWrite_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(filepath.Join(dir, FileName(1, 2000, 2000)), domain.WeatherFrame{Columns: []string{"Temp_1"}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, FileName(1, 2000, 2000), entries[0].Name())
}

func TestLoadTemperatureSeries_SortedByFile(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []int{9, 10, 2} {
		frame := domain.WeatherFrame{
			Columns: []string{domain.TemperatureColumn(n)},
			Rows:    []domain.WeatherRow{{Time: hour(12), Values: []float64{float64(n)}}},
		}
		require.NoError(t, Write(filepath.Join(dir, FileName(n, 2000, 2020)), frame))
	}

	series, err := LoadTemperatureSeries(dir)
	require.NoError(t, err)
	require.Len(t, series, 3)
	// Lexical file order, as a directory listing would give.
	assert.Equal(t, []int{10, 2, 9}, []int{series[0].CommArea, series[1].CommArea, series[2].CommArea})
}

func TestLoadTemperatureSeries_MissingColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName(5, 2000, 2020))
	require.NoError(t, os.WriteFile(path, []byte("time,Temp_6\n2000-01-01 00:30:00,1\n"), 0o600))

	_, err := LoadTemperatureSeries(dir)
	require.ErrorIs(t, err, domain.ErrMissingColumn)
}

func TestLoadTemperatureSeries_BadTimestamp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName(5, 2000, 2020))
	require.NoError(t, os.WriteFile(path, []byte("time,Temp_5\nyesterday,1\n"), 0o600))

	_, err := LoadTemperatureSeries(dir)
	require.Error(t, err)
}

func TestLoadTemperatureSeries_EmptyDir(t *testing.T) {
	series, err := LoadTemperatureSeries(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestDir(t *testing.T) {
	d := Dir{Path: t.TempDir(), StartYear: 2000, EndYear: 2020}
	assert.Equal(t, filepath.Join(d.Path, "commarea_3_weather_2000_2020.csv"), d.FilePath(3))
	assert.False(t, d.Exists(3))

	require.NoError(t, d.Write(3, domain.WeatherFrame{Columns: []string{"Temp_3"}}))
	assert.True(t, d.Exists(3))
}
