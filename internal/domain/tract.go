package domain

import (
	"errors"
	"time"

	"github.com/paulmach/orb"
)

var (
	// ErrMissingColumn is returned when an input table lacks a required column.
	ErrMissingColumn = errors.New("missing required column")

	// ErrNoHeatwave is returned when no timestamp exceeds the heatwave threshold.
	ErrNoHeatwave = errors.New("no heatwave timestamps above threshold")

	// ErrTransient marks failures worth retrying (network errors, 429, 5xx).
	ErrTransient = errors.New("transient failure")
)

// Tract is one row of the enriched table: a 2010 census tract with every
// joined dataset's columns. Pointer fields are null when a left join found
// no match.
type Tract struct {
	GeoID10   int64            `json:"geoid10"`
	CommArea  string           `json:"commarea"`
	CommAreaN int              `json:"commarea_n"`
	Geometry  orb.MultiPolygon `json:"-"`

	// Heatwave temperature anomaly (°C). Null for an area with no reading
	// in any heatwave hour.
	HeatAnomaly    *float64 `json:"H_a"`
	HeatAnomalyMin *float64 `json:"H_amin"`

	Population *float64 `json:"TOTAL POPULATION"`

	CrimeCount   int `json:"crime_count"`
	ViolentCount int `json:"is_violent"`

	AreaKm2 float64 `json:"tract_area"`
	PctPark float64 `json:"pct_park"`

	Churches       *float64 `json:"n_churches"`
	PublicSchools  *float64 `json:"n_public"`
	PrivateSchools *float64 `json:"n_private"`
	Libraries      *float64 `json:"n_libraries"`

	// Google Project Sunroof.
	PercentQualified *float64 `json:"percent_qualified"`
	PanelsTotal      *float64 `json:"number_of_panels_total"`
	KWTotal          *float64 `json:"kw_total"`
	ExistingInstalls *float64 `json:"existing_installs_count"`

	// Socioeconomic indicators, 2008-2012.
	CommunityName     string   `json:"COMMUNITY AREA NAME,omitempty"`
	PctHousingCrowded *float64 `json:"PERCENT OF HOUSING CROWDED"`
	PctBelowPoverty   *float64 `json:"PERCENT HOUSEHOLDS BELOW POVERTY"`
	PctAgedDependent  *float64 `json:"PERCENT AGED UNDER 18 OR OVER 64"`
	PerCapitaIncome   *float64 `json:"PER CAPITA INCOME "`
	HardshipIndex     *float64 `json:"HARDSHIP INDEX"`

	ProcessedAt time.Time `json:"processed_at"`
}

// Centroid is a community-area centroid used as the weather sample point.
type Centroid struct {
	CommArea int
	Lat      float64
	Lon      float64
}

// Float returns a pointer to v, for populating nullable columns.
func Float(v float64) *float64 {
	return &v
}

// Stamp sets ProcessedAt on every tract from the package clock.
func Stamp(tracts []Tract) {
	now := clock.Now().UTC()
	for i := range tracts {
		tracts[i].ProcessedAt = now
	}
}
