package shapefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/chicago-heat-etl/internal/domain"
)

// ccwSquare is deliberately counter-clockwise so the writer has to flip it.
func ccwSquare(minX, minY, size float64) orb.Ring {
	return orb.Ring{
		{minX, minY}, {minX + size, minY}, {minX + size, minY + size}, {minX, minY + size}, {minX, minY},
	}
}

func writeRawTracts(t *testing.T, path string) {
	t.Helper()
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("geoid10", 12),
		shp.StringField("commarea", 10),
		shp.FloatField("commarea_n", 19, 11),
		shp.StringField("notes", 20),
	}))

	shell := ringPoints(ccwSquare(-87.63, 41.87, 0.01), orb.CW)
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{shell}))
	row := int(w.Write(&poly))
	require.NoError(t, w.WriteAttribute(row, 0, "17031839100"))
	require.NoError(t, w.WriteAttribute(row, 1, "32"))
	require.NoError(t, w.WriteAttribute(row, 2, 32.0))
	require.NoError(t, w.WriteAttribute(row, 3, "downtown"))
	w.Close()
}

func TestReadTracts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracts.shp")
	writeRawTracts(t, path)

	tracts, err := ReadTracts(path)
	require.NoError(t, err)
	require.Len(t, tracts, 1)

	tr := tracts[0]
	assert.Equal(t, int64(17031839100), tr.GeoID10)
	assert.Equal(t, "32", tr.CommArea)
	assert.Equal(t, 32, tr.CommAreaN)
	require.Len(t, tr.Geometry, 1)
	assert.Equal(t, orb.CW, tr.Geometry[0][0].Orientation())
}

func TestReadTracts_MissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("geoid10", 12)}))
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{ringPoints(ccwSquare(0, 0, 1), orb.CW)}))
	row := int(w.Write(&poly))
	require.NoError(t, w.WriteAttribute(row, 0, "17031839100"))
	w.Close()

	_, err = ReadTracts(path)
	require.ErrorIs(t, err, domain.ErrMissingColumn)
}

func TestWriteTracts_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed_data", "chicago_data.shp")

	donut := orb.Polygon{
		ccwSquare(-87.70, 41.80, 0.04),
		ccwSquare(-87.69, 41.81, 0.01),
	}
	in := []domain.Tract{
		{
			GeoID10:          17031410100,
			CommArea:         "41",
			CommAreaN:        41,
			Geometry:         orb.MultiPolygon{donut},
			HeatAnomaly:      domain.Float(-0.42),
			HeatAnomalyMin:   domain.Float(1.1),
			Population:       domain.Float(3100),
			CrimeCount:       412,
			ViolentCount:     97,
			AreaKm2:          1.37,
			PctPark:          0.12,
			Churches:         domain.Float(2),
			PublicSchools:    domain.Float(1),
			PrivateSchools:   domain.Float(0),
			Libraries:        domain.Float(0),
			PercentQualified: domain.Float(71.5),
			CommunityName:    "Hyde Park",
			HardshipIndex:    domain.Float(14),
			PerCapitaIncome:  domain.Float(39056),
		},
		{
			GeoID10:   17031251500,
			CommArea:  "25",
			CommAreaN: 25,
			Geometry:  orb.MultiPolygon{{ccwSquare(-87.77, 41.89, 0.02)}},
		},
	}

	require.NoError(t, WriteTracts(path, in))

	prj, err := os.ReadFile(filepath.Join(filepath.Dir(path), "chicago_data.prj"))
	require.NoError(t, err)
	assert.Contains(t, string(prj), "GCS_WGS_1984")
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		assert.FileExists(t, filepath.Join(filepath.Dir(path), "chicago_data"+ext))
	}

	out, err := ReadEnriched(path)
	require.NoError(t, err)
	require.Len(t, out, 2)

	got := out[0]
	assert.Equal(t, int64(17031410100), got.GeoID10)
	assert.Equal(t, 41, got.CommAreaN)
	require.NotNil(t, got.HeatAnomaly)
	assert.InDelta(t, -0.42, *got.HeatAnomaly, 1e-6)
	require.NotNil(t, got.Population)
	assert.InDelta(t, 3100.0, *got.Population, 1e-6)
	assert.Equal(t, 412, got.CrimeCount)
	assert.Equal(t, 97, got.ViolentCount)
	assert.Equal(t, "Hyde Park", got.CommunityName)
	assert.Nil(t, got.KWTotal)
	require.NotNil(t, got.PrivateSchools)
	assert.InDelta(t, 0.0, *got.PrivateSchools, 1e-9)

	require.Len(t, got.Geometry, 1)
	require.Len(t, got.Geometry[0], 2, "hole survives the round trip")
	assert.Equal(t, orb.CW, got.Geometry[0][0].Orientation())
	assert.Equal(t, orb.CCW, got.Geometry[0][1].Orientation())

	empty := out[1]
	assert.Nil(t, empty.HeatAnomaly)
	assert.Nil(t, empty.Population)
	assert.Nil(t, empty.Churches)
	assert.Nil(t, empty.HardshipIndex)
	assert.Empty(t, empty.CommunityName)
}

func TestFieldNames_FitDBF(t *testing.T) {
	for _, name := range FieldNames() {
		assert.LessOrEqual(t, len(name), 10, name)
	}
}

func TestReadFeatures_ReprojectsWebMercator(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "churches.shp")

	merc := project.WGS84.ToMercator(orb.Point{-87.6298, 41.8781})

	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("NAME", 20)}))
	row := int(w.Write(&shp.Point{X: merc[0], Y: merc[1]}))
	require.NoError(t, w.WriteAttribute(row, 0, "Old St. Pat's"))
	w.Close()

	prj := `PROJCS["WGS_1984_Web_Mercator_Auxiliary_Sphere",GEOGCS["GCS_WGS_1984"],PROJECTION["Mercator_Auxiliary_Sphere"]]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "churches.prj"), []byte(prj), 0o600))

	features, err := ReadFeatures(path)
	require.NoError(t, err)
	require.Len(t, features, 1)

	p, ok := features[0].Geometry.(orb.Point)
	require.True(t, ok)
	assert.InDelta(t, -87.6298, p[0], 1e-6)
	assert.InDelta(t, 41.8781, p[1], 1e-6)
	assert.Equal(t, "Old St. Pat's", features[0].Attributes["NAME"])
}

func TestReadFeatures_UnsupportedProjection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parks.shp")

	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	w.Write(&shp.Point{X: 1, Y: 2})
	w.Close()

	prj := `PROJCS["NAD_1983_StatePlane_Illinois_East_FIPS_1201_Feet",PROJECTION["Transverse_Mercator"]]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "parks.prj"), []byte(prj), 0o600))

	_, err = ReadFeatures(path)
	require.Error(t, err)
}

func TestReadFeatures_StatePlaneIsNotWebMercator(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schools.shp")

	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("NAME", 20)}))
	row := int(w.Write(&shp.Point{X: 1176000, Y: 1900000}))
	require.NoError(t, w.WriteAttribute(row, 0, "Jones College Prep"))
	w.Close()

	prj := `PROJCS["NAD_1983_StatePlane_Illinois_East_FIPS_1201_Feet",` +
		`GEOGCS["GCS_North_American_1983",DATUM["D_North_American_1983",SPHEROID["GRS_1980",6378137.0,298.257222101]],` +
		`PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],` +
		`PROJECTION["Transverse_Mercator"],PARAMETER["False_Easting",984250.0],PARAMETER["False_Northing",0.0],` +
		`PARAMETER["Central_Meridian",-88.33333333333333],PARAMETER["Scale_Factor",0.999975],` +
		`PARAMETER["Latitude_Of_Origin",36.66666666666666],UNIT["Foot_US",0.3048006096012192]]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schools.prj"), []byte(prj), 0o600))

	features, err := ReadFeatures(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported projected CRS")
	assert.Nil(t, features)
}

func TestReadFeatures_WebMercatorByAuthority(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "libraries.shp")

	merc := project.WGS84.ToMercator(orb.Point{-87.6282, 41.8763})
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("NAME", 20)}))
	row := int(w.Write(&shp.Point{X: merc[0], Y: merc[1]}))
	require.NoError(t, w.WriteAttribute(row, 0, "Harold Washington"))
	w.Close()

	prj := `PROJCS["WGS 84 / Pseudo-Mercator",GEOGCS["WGS 84"],PROJECTION["Mercator_1SP"],AUTHORITY["EPSG","3857"]]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "libraries.prj"), []byte(prj), 0o600))

	features, err := ReadFeatures(path)
	require.NoError(t, err)
	require.Len(t, features, 1)
	p, ok := features[0].Geometry.(orb.Point)
	require.True(t, ok)
	assert.InDelta(t, -87.6282, p[0], 1e-6)
	assert.InDelta(t, 41.8763, p[1], 1e-6)
}

func TestRingsToMultiPolygon_HoleFollowsContainingShell(t *testing.T) {
	west := ringPoints(ccwSquare(0, 0, 10), orb.CW)
	east := ringPoints(ccwSquare(20, 0, 10), orb.CW)
	westHole := ringPoints(ccwSquare(2, 2, 2), orb.CCW)

	toRing := func(pts []shp.Point) orb.Ring {
		r := make(orb.Ring, len(pts))
		for i, p := range pts {
			r[i] = orb.Point{p.X, p.Y}
		}
		return r
	}

	// The hole is listed after the east shell but lies inside the west one.
	mp := ringsToMultiPolygon([]orb.Ring{toRing(west), toRing(east), toRing(westHole)})
	require.Len(t, mp, 2)
	assert.Len(t, mp[0], 2, "west shell keeps its hole")
	assert.Len(t, mp[1], 1, "east shell has no hole")
	assert.Equal(t, toRing(westHole), mp[0][1])
}
