package domain

import "math"

// JoinKind describes how unmatched tracts are treated by a merge.
type JoinKind string

const (
	// InnerJoin drops tracts with no match.
	InnerJoin JoinKind = "inner"
	// LeftJoin keeps every tract; unmatched columns stay null.
	LeftJoin JoinKind = "left"
)

// MergeCheck records the shape of the table around a single merge so
// unexpected row loss or column collisions are visible.
type MergeCheck struct {
	Stage      string   `json:"stage"`
	Kind       JoinKind `json:"kind"`
	RowsBefore int      `json:"rows_before"`
	RowsAfter  int      `json:"rows_after"`
	ColsBefore int      `json:"cols_before"`
	ColsAdded  int      `json:"cols_added"`
	ColsAfter  int      `json:"cols_after"`
}

// RowsOK reports whether the row count is what the join kind promises.
// Left joins must preserve it; inner joins may only shrink it.
func (c MergeCheck) RowsOK() bool {
	if c.Kind == InnerJoin {
		return c.RowsAfter <= c.RowsBefore && c.RowsAfter > 0
	}
	return c.RowsAfter == c.RowsBefore
}

// ColsOK reports whether every added column landed without collision.
func (c MergeCheck) ColsOK() bool {
	return c.ColsAfter == c.ColsBefore+c.ColsAdded
}

// JoinAnomalies inner-joins heatwave anomalies onto tracts by community
// area. An area that has a weather series but no heatwave reading still
// matches; its anomaly columns stay null.
func JoinAnomalies(tracts []Tract, anomalies []Anomaly) []Tract {
	byArea := make(map[int]Anomaly, len(anomalies))
	for _, a := range anomalies {
		if _, dup := byArea[a.CommArea]; !dup {
			byArea[a.CommArea] = a
		}
	}

	out := make([]Tract, 0, len(tracts))
	for _, t := range tracts {
		a, ok := byArea[t.CommAreaN]
		if !ok {
			continue
		}
		t.HeatAnomaly = finite(a.HA)
		t.HeatAnomalyMin = finite(a.HAMin)
		out = append(out, t)
	}
	return out
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return Float(v)
}

// JoinPopulation left-joins per-tract population totals.
func JoinPopulation(tracts []Tract, population map[int64]float64) []Tract {
	out := make([]Tract, len(tracts))
	for i, t := range tracts {
		if p, ok := population[t.GeoID10]; ok {
			t.Population = Float(p)
		}
		out[i] = t
	}
	return out
}

// CrimeCounts are per-tract tallies of counted and violent incidents.
type CrimeCounts struct {
	Total   int
	Violent int
}

// JoinCrimeCounts inner-joins crime tallies: tracts with no counted
// incident are dropped.
func JoinCrimeCounts(tracts []Tract, counts map[int64]CrimeCounts) []Tract {
	out := make([]Tract, 0, len(tracts))
	for _, t := range tracts {
		c, ok := counts[t.GeoID10]
		if !ok {
			continue
		}
		t.CrimeCount = c.Total
		t.ViolentCount = c.Violent
		out = append(out, t)
	}
	return out
}

// JoinParkShare sets pct_park from the summed park intersection area (km²)
// per tract. Tracts with no park, or no area, get zero.
func JoinParkShare(tracts []Tract, parkKm2 map[int64]float64) []Tract {
	out := make([]Tract, len(tracts))
	for i, t := range tracts {
		t.PctPark = 0
		if a, ok := parkKm2[t.GeoID10]; ok && t.AreaKm2 > 0 {
			t.PctPark = a / t.AreaKm2
		}
		out[i] = t
	}
	return out
}

// JoinBuildingCounts left-joins building tallies. A tract present in counts
// gets all four columns (zero where a kind was not seen); an absent tract
// keeps all four null.
func JoinBuildingCounts(tracts []Tract, counts map[int64]BuildingCounts) []Tract {
	out := make([]Tract, len(tracts))
	for i, t := range tracts {
		if c, ok := counts[t.GeoID10]; ok {
			t.Churches = Float(c.Churches)
			t.PublicSchools = Float(c.PublicSchools)
			t.PrivateSchools = Float(c.PrivateSchools)
			t.Libraries = Float(c.Libraries)
		}
		out[i] = t
	}
	return out
}

// JoinSunroof left-joins Project Sunroof rows by tract GEOID. The first row
// for a GEOID wins.
func JoinSunroof(tracts []Tract, rows []Sunroof) []Tract {
	byTract := make(map[int64]Sunroof, len(rows))
	for _, r := range rows {
		if _, dup := byTract[r.GeoID10]; !dup {
			byTract[r.GeoID10] = r
		}
	}

	out := make([]Tract, len(tracts))
	for i, t := range tracts {
		if r, ok := byTract[t.GeoID10]; ok {
			t.PercentQualified = r.PercentQualified
			t.PanelsTotal = r.PanelsTotal
			t.KWTotal = r.KWTotal
			t.ExistingInstalls = r.ExistingInstalls
		}
		out[i] = t
	}
	return out
}

// JoinSocioeconomic left-joins hardship indicators by community area.
func JoinSocioeconomic(tracts []Tract, rows []Socioeconomic) []Tract {
	byArea := make(map[int]Socioeconomic, len(rows))
	for _, r := range rows {
		if _, dup := byArea[r.CommAreaN]; !dup {
			byArea[r.CommAreaN] = r
		}
	}

	out := make([]Tract, len(tracts))
	for i, t := range tracts {
		if r, ok := byArea[t.CommAreaN]; ok {
			t.CommunityName = r.Name
			t.PctHousingCrowded = r.PctHousingCrowded
			t.PctBelowPoverty = r.PctBelowPoverty
			t.PctAgedDependent = r.PctAgedDependent
			t.PerCapitaIncome = r.PerCapitaIncome
			t.HardshipIndex = r.HardshipIndex
		}
		out[i] = t
	}
	return out
}

// columnValue reports whether a tract carries a non-null value for an output
// column. Non-nullable columns are always present once their stage ran.
var columnValue = map[string]func(t *Tract) bool{
	"H_a":                              func(t *Tract) bool { return t.HeatAnomaly != nil },
	"H_amin":                           func(t *Tract) bool { return t.HeatAnomalyMin != nil },
	"TOTAL POPULATION":                 func(t *Tract) bool { return t.Population != nil },
	"crime_count":                      func(*Tract) bool { return true },
	"is_violent":                       func(*Tract) bool { return true },
	"tract_area":                       func(*Tract) bool { return true },
	"pct_park":                         func(*Tract) bool { return true },
	"n_churches":                       func(t *Tract) bool { return t.Churches != nil },
	"n_public":                         func(t *Tract) bool { return t.PublicSchools != nil },
	"n_private":                        func(t *Tract) bool { return t.PrivateSchools != nil },
	"n_libraries":                      func(t *Tract) bool { return t.Libraries != nil },
	"percent_qualified":                func(t *Tract) bool { return t.PercentQualified != nil },
	"number_of_panels_total":           func(t *Tract) bool { return t.PanelsTotal != nil },
	"kw_total":                         func(t *Tract) bool { return t.KWTotal != nil },
	"existing_installs_count":          func(t *Tract) bool { return t.ExistingInstalls != nil },
	"COMMUNITY AREA NAME":              func(t *Tract) bool { return t.CommunityName != "" },
	"PERCENT OF HOUSING CROWDED":       func(t *Tract) bool { return t.PctHousingCrowded != nil },
	"PERCENT HOUSEHOLDS BELOW POVERTY": func(t *Tract) bool { return t.PctBelowPoverty != nil },
	"PERCENT AGED UNDER 18 OR OVER 64": func(t *Tract) bool { return t.PctAgedDependent != nil },
	"PER CAPITA INCOME ":               func(t *Tract) bool { return t.PerCapitaIncome != nil },
	"HARDSHIP INDEX":                   func(t *Tract) bool { return t.HardshipIndex != nil },
}

// BaseColumns are the tract attributes kept from the boundary shapefile.
var BaseColumns = []string{"geoid10", "commarea", "commarea_n", "geometry"}

// LandedColumns counts the known columns of cols that exist in the table
// after a join. A join's columns exist once any of them holds a value in at
// least one tract; a source column that is null in every matched row still
// counts. When nothing matched, none of them landed. Unknown names are never
// counted.
func LandedColumns(tracts []Tract, cols []string) int {
	known, matched := 0, false
	for _, c := range cols {
		has, ok := columnValue[c]
		if !ok {
			continue
		}
		known++
		if matched {
			continue
		}
		for i := range tracts {
			if has(&tracts[i]) {
				matched = true
				break
			}
		}
	}
	if !matched {
		return 0
	}
	return known
}
