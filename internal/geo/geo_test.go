package geo

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(minX, minY, size float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minX, minY}, {minX + size, minY}, {minX + size, minY + size}, {minX, minY + size}, {minX, minY},
	}}
}

func TestToEASE2_Origin(t *testing.T) {
	p := ToEASE2(orb.Point{0, 0})
	assert.InDelta(t, 0.0, p[0], 1e-9)
	assert.InDelta(t, 0.0, p[1], 1e-9)
}

func TestToEASE2_Monotonic(t *testing.T) {
	south := ToEASE2(orb.Point{-87.7, 41.6})
	north := ToEASE2(orb.Point{-87.7, 42.0})
	assert.Greater(t, north[1], south[1])
	assert.Less(t, south[0], 0.0)
}

func TestAreaKm2_OneDegreeAtEquator(t *testing.T) {
	// A 1°x1° cell on the equator is ~12,309 km².
	area := AreaKm2(orb.MultiPolygon{square(0, 0, 1)})
	assert.InEpsilon(t, 12309.0, area, 0.01)
}

func TestAreaKm2_ShrinksWithLatitude(t *testing.T) {
	equator := AreaKm2(square(0, 0, 0.01))
	chicago := AreaKm2(square(-87.7, 41.8, 0.01))
	assert.Less(t, chicago, equator)
	// cos(41.8°) ≈ 0.745
	assert.InEpsilon(t, 0.745, chicago/equator, 0.01)
}

func TestProject_DoesNotMutateInput(t *testing.T) {
	in := square(10, 10, 1)
	_ = Project(in, ToEASE2)
	assert.Equal(t, orb.Point{10, 10}, in[0][0])
}

func TestPointsInRegions(t *testing.T) {
	regions := []Region{
		{ID: 1, Geometry: orb.MultiPolygon{square(0, 0, 1)}},
		{ID: 2, Geometry: orb.MultiPolygon{square(1, 0, 1)}},
	}
	points := []orb.Point{
		{0.5, 0.5}, // region 1
		{1.5, 0.5}, // region 2
		{1.0, 0.5}, // shared edge: both
		{5, 5},     // nowhere
	}

	got, err := PointsInRegions(regions, points)
	require.NoError(t, err)

	assert.ElementsMatch(t, []int{0, 2}, got[1])
	assert.ElementsMatch(t, []int{1, 2}, got[2])
}

func TestPointsInRegions_CoincidentPoints(t *testing.T) {
	// Block-geocoded incidents pile up on a handful of coordinates.
	const n = 20000
	points := make([]orb.Point, 0, n+1)
	for range n {
		points = append(points, orb.Point{0.25, 0.25})
	}
	points = append(points, orb.Point{1.5, 0.5})

	regions := []Region{
		{ID: 1, Geometry: orb.MultiPolygon{square(0, 0, 1)}},
		{ID: 2, Geometry: orb.MultiPolygon{square(1, 0, 1)}},
	}

	start := time.Now()
	got, err := PointsInRegions(regions, points)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	require.Len(t, got[1], n)
	assert.Equal(t, 0, got[1][0])
	assert.Equal(t, n-1, got[1][n-1])
	assert.Equal(t, []int{n}, got[2])
}

func TestPointsInRegions_Empty(t *testing.T) {
	got, err := PointsInRegions(nil, []orb.Point{{1, 1}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPointsInRegions_RespectsHoles(t *testing.T) {
	donut := orb.Polygon{
		square(0, 0, 4)[0],
		orb.Ring{{1, 1}, {1, 3}, {3, 3}, {3, 1}, {1, 1}},
	}
	got, err := PointsInRegions(
		[]Region{{ID: 7, Geometry: orb.MultiPolygon{donut}}},
		[]orb.Point{{2, 2}, {0.5, 0.5}},
	)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, got[7])
}

func TestIntersectionArea(t *testing.T) {
	a := orb.MultiPolygon{square(0, 0, 2)}
	b := orb.MultiPolygon{square(1, 1, 2)}

	assert.InDelta(t, 1.0, IntersectionArea(a, b), 1e-9)
	assert.InDelta(t, 0.0, IntersectionArea(a, orb.MultiPolygon{square(5, 5, 1)}), 1e-9)
}

func TestIntersectionArea_Hole(t *testing.T) {
	donut := orb.MultiPolygon{{
		square(0, 0, 4)[0],
		orb.Ring{{1, 1}, {1, 3}, {3, 3}, {3, 1}, {1, 1}},
	}}
	whole := orb.MultiPolygon{square(0, 0, 4)}

	assert.InDelta(t, 12.0, IntersectionArea(donut, whole), 1e-9)
}

func TestOverlayAreaKm2(t *testing.T) {
	regions := []Region{
		{ID: 1, Geometry: orb.MultiPolygon{square(-87.70, 41.80, 0.01)}},
		{ID: 2, Geometry: orb.MultiPolygon{square(-87.60, 41.80, 0.01)}},
	}
	// Park covers the east half of region 1.
	parks := []orb.MultiPolygon{{{orb.Ring{
		{-87.695, 41.80}, {-87.69, 41.80}, {-87.69, 41.81}, {-87.695, 41.81}, {-87.695, 41.80},
	}}}}

	got := OverlayAreaKm2(regions, parks)

	require.Contains(t, got, int64(1))
	assert.NotContains(t, got, int64(2))
	half := AreaKm2(regions[0].Geometry) / 2
	assert.InEpsilon(t, half, got[1], 1e-3)
}

func TestIntersects(t *testing.T) {
	region := orb.MultiPolygon{square(0, 0, 2)}

	tests := []struct {
		name string
		geom orb.Geometry
		want bool
	}{
		{"point inside", orb.Point{1, 1}, true},
		{"point outside", orb.Point{3, 3}, false},
		{"multipoint one inside", orb.MultiPoint{{3, 3}, {1, 1}}, true},
		{"polygon overlapping", square(1, 1, 2), true},
		{"polygon containing region", square(-1, -1, 4), true},
		{"polygon disjoint", square(5, 5, 1), false},
		{"polygon crossing without vertex inside", orb.Polygon{orb.Ring{{-1, 0.5}, {3, 0.5}, {3, 1.5}, {-1, 1.5}, {-1, 0.5}}}, true},
		{"line string unsupported", orb.LineString{{0, 0}, {1, 1}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Intersects(region, tt.geom))
		})
	}
}
