package domain

import (
	"github.com/paulmach/orb"
)

// crimesOfInterest are the primary descriptions counted toward crime_count.
// Non-criminal and administrative categories (e.g. "NON-CRIMINAL",
// "GAMBLING", "LIQUOR LAW VIOLATION") are excluded.
var crimesOfInterest = map[string]bool{
	"ARSON":                             true,
	"ASSAULT":                           true,
	"BATTERY":                           true,
	"BURGLARY":                          true,
	"CONCEALED CARRY LICENSE VIOLATION": true,
	"CRIMINAL DAMAGE":                   true,
	"CRIMINAL SEXUAL ASSAULT":           true,
	"CRIMINAL TRESPASS":                 true,
	"HOMICIDE":                          true,
	"HUMAN TRAFFICKING":                 true,
	"INTIMIDATION":                      true,
	"KIDNAPPING":                        true,
	"MOTOR VEHICLE THEFT":               true,
	"NARCOTICS":                         true,
	"OBSCENITY":                         true,
	"OFFENSE INVOLVING CHILDREN":        true,
	"OTHER NARCOTIC VIOLATION":          true,
	"PROSTITUTION":                      true,
	"PUBLIC INDECENCY":                  true,
	"PUBLIC PEACE VIOLATION":            true,
	"ROBBERY":                           true,
	"SEX OFFENSE":                       true,
	"STALKING":                          true,
	"THEFT":                             true,
	"WEAPONS VIOLATION":                 true,
}

var violentCrimes = map[string]bool{
	"ASSAULT":                 true,
	"BATTERY":                 true,
	"CRIMINAL SEXUAL ASSAULT": true,
	"HOMICIDE":                true,
	"ROBBERY":                 true,
}

// Crime is a single reported incident with a known location.
type Crime struct {
	PrimaryDescription string
	Ward               string
	Occurred           string
	Location           orb.Point // lon, lat
}

// Counted reports whether the incident is one of the crimes of interest.
func (c Crime) Counted() bool {
	return crimesOfInterest[c.PrimaryDescription]
}

// Violent reports whether the incident is a violent crime.
func (c Crime) Violent() bool {
	return violentCrimes[c.PrimaryDescription]
}

// FilterCrimesOfInterest keeps only incidents counted toward crime_count.
func FilterCrimesOfInterest(crimes []Crime) []Crime {
	out := make([]Crime, 0, len(crimes))
	for _, c := range crimes {
		if c.Counted() {
			out = append(out, c)
		}
	}
	return out
}

// BlockPopulation is the 2010 census population of one census block.
type BlockPopulation struct {
	Block      int64
	Population float64
}

// TractFromBlock drops the 4-digit block suffix from a full census block id.
func TractFromBlock(block int64) int64 {
	return block / 10000
}

// AggregatePopulation sums block populations per tract GEOID.
func AggregatePopulation(blocks []BlockPopulation) map[int64]float64 {
	out := make(map[int64]float64)
	for _, b := range blocks {
		out[TractFromBlock(b.Block)] += b.Population
	}
	return out
}

// Sunroof is the Project Sunroof rooftop-solar summary for one tract.
type Sunroof struct {
	GeoID10          int64
	PercentQualified *float64
	PanelsTotal      *float64
	KWTotal          *float64
	ExistingInstalls *float64
}

// Socioeconomic holds the 2008-2012 hardship indicators for one community area.
type Socioeconomic struct {
	CommAreaN         int
	Name              string
	PctHousingCrowded *float64
	PctBelowPoverty   *float64
	PctAgedDependent  *float64
	PerCapitaIncome   *float64
	HardshipIndex     *float64
}

// BuildingKind identifies which building count a footprint contributes to.
type BuildingKind string

const (
	BuildingChurch        BuildingKind = "church"
	BuildingPublicSchool  BuildingKind = "public_school"
	BuildingPrivateSchool BuildingKind = "private_school"
	BuildingLibrary       BuildingKind = "library"
)

// SchoolKind maps a school shapefile TYPE attribute to a building kind.
// Only CPS (public) and PRIVATE schools are counted.
func SchoolKind(schoolType string) (BuildingKind, bool) {
	switch schoolType {
	case "CPS":
		return BuildingPublicSchool, true
	case "PRIVATE":
		return BuildingPrivateSchool, true
	default:
		return "", false
	}
}

// Building is a point or polygon footprint of a counted building type.
type Building struct {
	Kind     BuildingKind
	Geometry orb.Geometry
}

// BuildingCounts are per-tract tallies of each building kind.
type BuildingCounts struct {
	Churches       float64
	PublicSchools  float64
	PrivateSchools float64
	Libraries      float64
}

// Add increments the tally for kind.
func (c *BuildingCounts) Add(kind BuildingKind) {
	switch kind {
	case BuildingChurch:
		c.Churches++
	case BuildingPublicSchool:
		c.PublicSchools++
	case BuildingPrivateSchool:
		c.PrivateSchools++
	case BuildingLibrary:
		c.Libraries++
	}
}
