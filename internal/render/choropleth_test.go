package render

import (
	"bytes"
	"image/png"
	"math"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/vg"

	"github.com/couchcryptid/chicago-heat-etl/internal/domain"
)

func donut() orb.MultiPolygon {
	return orb.MultiPolygon{{
		orb.Ring{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}},
		orb.Ring{{1, 1}, {1, 3}, {3, 3}, {3, 1}, {1, 1}},
	}}
}

func sampleTracts() []domain.Tract {
	return []domain.Tract{
		{GeoID10: 1, Geometry: donut(), HeatAnomaly: domain.Float(0.8), Population: domain.Float(4200), CrimeCount: 1500, PctPark: 0.2, HardshipIndex: domain.Float(71)},
		{GeoID10: 2, Geometry: orb.MultiPolygon{{orb.Ring{{4, 0}, {6, 0}, {6, 2}, {4, 0}}}}, HeatAnomaly: domain.Float(-3), CrimeCount: 10},
	}
}

func TestPanels(t *testing.T) {
	panels := Panels(sampleTracts())
	require.Len(t, panels, 6)

	titles := make([]string, len(panels))
	for i, p := range panels {
		titles[i] = p.Title
	}
	assert.Equal(t, []string{
		"Chicago Heatwave Temperature Anomaly",
		"Chicago Population from the 2010 Census",
		"Chicago Crimes from 2021",
		"Chicago Park Area",
		"Chicago Rooftop Solar",
		"Chicago Socioeconomic Data",
	}, titles)

	assert.Equal(t, [2]float64{-2, 2}, [2]float64{panels[0].Min, panels[0].Max})
	assert.Equal(t, 4200.0, panels[1].Max, "population runs to the largest tract")
	assert.Equal(t, 1000.0, panels[2].Max)
	assert.Equal(t, 0.8, panels[3].Max)
}

func TestColorFor(t *testing.T) {
	cmap := moreland.Kindlmann()
	cmap.SetMin(0)
	cmap.SetMax(100)
	tracts := sampleTracts()
	hardship := Panels(tracts)[5].Value

	c, err := colorFor(cmap, &tracts[1], hardship)
	require.NoError(t, err)
	assert.Equal(t, NullColor, c, "missing value is grey")

	c, err = colorFor(cmap, &tracts[0], hardship)
	require.NoError(t, err)
	want, err := cmap.At(71)
	require.NoError(t, err)
	assert.Equal(t, want, c)

	crimes := Panels(tracts)[2].Value
	c, err = colorFor(cmap, &tracts[0], crimes)
	require.NoError(t, err, "values above the range are clamped")
	top, err := cmap.At(100)
	require.NoError(t, err)
	assert.Equal(t, top, c)
}

func TestOptional_TreatsNaNAsMissing(t *testing.T) {
	get := optional(func(t *domain.Tract) *float64 { return t.Population })
	_, ok := get(&domain.Tract{Population: domain.Float(math.NaN())})
	assert.False(t, ok)
	_, ok = get(&domain.Tract{})
	assert.False(t, ok)
	v, ok := get(&domain.Tract{Population: domain.Float(12)})
	assert.True(t, ok)
	assert.Equal(t, 12.0, v)
}

func TestPolygon_OrientsRings(t *testing.T) {
	shape, err := polygon(donut()[0])
	require.NoError(t, err)
	require.Len(t, shape.XYs, 2)

	toRing := func(i int) orb.Ring {
		r := make(orb.Ring, len(shape.XYs[i]))
		for j, p := range shape.XYs[i] {
			r[j] = orb.Point{p.X, p.Y}
		}
		return r
	}
	assert.Equal(t, orb.CCW, toRing(0).Orientation())
	assert.Equal(t, orb.CW, toRing(1).Orientation())
}

func TestPolygon_SkipsDegenerateRings(t *testing.T) {
	shape, err := polygon(orb.Polygon{orb.Ring{{0, 0}, {1, 1}}})
	require.NoError(t, err)
	assert.Nil(t, shape)
}

func TestGridRender(t *testing.T) {
	tracts := sampleTracts()
	g := Grid{Cols: 2, Width: 6 * vg.Inch, Height: 6 * vg.Inch}

	var buf bytes.Buffer
	require.NoError(t, g.Render(&buf, tracts, Panels(tracts)))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())
	assert.Positive(t, img.Bounds().Dy())
}

func TestGridRender_NoPanels(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, DefaultGrid.Render(&buf, sampleTracts(), nil))
}

func TestWritePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plots", "chicago_data.png")
	require.NoError(t, WritePNG(path, sampleTracts()))
	assert.FileExists(t, path)
}
