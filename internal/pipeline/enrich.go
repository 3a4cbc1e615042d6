package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/chicago-heat-etl/internal/domain"
	"github.com/couchcryptid/chicago-heat-etl/internal/geo"
	"github.com/couchcryptid/chicago-heat-etl/internal/observability"
)

// EnrichInputs are the loaded datasets joined onto the tracts.
type EnrichInputs struct {
	Tracts        []domain.Tract
	Temperatures  []domain.TemperatureSeries
	Population    []domain.BlockPopulation
	Crimes        []domain.Crime
	Parks         []orb.MultiPolygon
	Buildings     []domain.Building
	Sunroof       []domain.Sunroof
	Socioeconomic []domain.Socioeconomic
}

// Stage is one merge onto the tract table.
type Stage struct {
	Name    string
	Kind    domain.JoinKind
	Columns []string
	Apply   func(ctx context.Context, tracts []domain.Tract) ([]domain.Tract, error)
}

// Enricher runs the merge stages in order and checks the table shape after
// each one.
type Enricher struct {
	threshold float64
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewEnricher creates an Enricher using threshold (°C) for heatwave hours.
func NewEnricher(threshold float64, logger *slog.Logger, metrics *observability.Metrics) *Enricher {
	return &Enricher{threshold: threshold, logger: logger, metrics: metrics}
}

// Run applies every stage to in.Tracts and stamps the result.
func (e *Enricher) Run(ctx context.Context, in EnrichInputs) ([]domain.Tract, []domain.MergeCheck, error) {
	tracts := in.Tracts
	cols := len(domain.BaseColumns)
	checks := make([]domain.MergeCheck, 0, 8)

	for _, st := range e.Stages(in) {
		if err := ctx.Err(); err != nil {
			return nil, checks, err
		}

		start := time.Now()
		out, err := st.Apply(ctx, tracts)
		if err != nil {
			return nil, checks, fmt.Errorf("%s stage: %w", st.Name, err)
		}
		e.metrics.MergeStageSeconds.WithLabelValues(st.Name).Observe(time.Since(start).Seconds())

		check := domain.MergeCheck{
			Stage:      st.Name,
			Kind:       st.Kind,
			RowsBefore: len(tracts),
			RowsAfter:  len(out),
			ColsBefore: cols,
			ColsAdded:  len(st.Columns),
			ColsAfter:  cols + domain.LandedColumns(out, st.Columns),
		}
		e.record(check)
		checks = append(checks, check)

		tracts = out
		cols = check.ColsBefore + check.ColsAdded
	}

	domain.Stamp(tracts)
	return tracts, checks, nil
}

func (e *Enricher) record(c domain.MergeCheck) {
	e.metrics.MergeStageRows.WithLabelValues(c.Stage).Observe(float64(c.RowsAfter))

	attrs := []any{
		"stage", c.Stage,
		"join", c.Kind,
		"rows_before", c.RowsBefore,
		"rows_after", c.RowsAfter,
		"cols_expected", c.ColsBefore + c.ColsAdded,
		"cols_after", c.ColsAfter,
	}
	if !c.RowsOK() || !c.ColsOK() {
		e.metrics.MergeCheckFailed.WithLabelValues(c.Stage).Inc()
		e.logger.Warn("merge check failed", attrs...)
		return
	}
	e.logger.Info("merge complete", attrs...)
}

// Stages returns the merge sequence over in.
func (e *Enricher) Stages(in EnrichInputs) []Stage {
	return []Stage{
		{
			Name: "temperature_anomaly", Kind: domain.InnerJoin,
			Columns: []string{"H_a", "H_amin"},
			Apply: func(_ context.Context, tracts []domain.Tract) ([]domain.Tract, error) {
				res, err := domain.ComputeAnomalies(in.Temperatures, e.threshold)
				if err != nil {
					return nil, err
				}
				e.logger.Info("heatwave hours found",
					"hours", len(res.HeatwaveHours),
					"of", res.TotalHours,
					"threshold_c", e.threshold,
					"areas", len(res.Anomalies),
				)
				return domain.JoinAnomalies(tracts, res.Anomalies), nil
			},
		},
		{
			Name: "population", Kind: domain.LeftJoin,
			Columns: []string{"TOTAL POPULATION"},
			Apply: func(_ context.Context, tracts []domain.Tract) ([]domain.Tract, error) {
				return domain.JoinPopulation(tracts, domain.AggregatePopulation(in.Population)), nil
			},
		},
		{
			Name: "crime", Kind: domain.InnerJoin,
			Columns: []string{"crime_count", "is_violent"},
			Apply: func(_ context.Context, tracts []domain.Tract) ([]domain.Tract, error) {
				counts, err := countCrimes(tracts, domain.FilterCrimesOfInterest(in.Crimes))
				if err != nil {
					return nil, err
				}
				return domain.JoinCrimeCounts(tracts, counts), nil
			},
		},
		{
			Name: "tract_area", Kind: domain.LeftJoin,
			Columns: []string{"tract_area"},
			Apply: func(_ context.Context, tracts []domain.Tract) ([]domain.Tract, error) {
				out := make([]domain.Tract, len(tracts))
				for i, t := range tracts {
					t.AreaKm2 = geo.AreaKm2(t.Geometry)
					out[i] = t
				}
				return out, nil
			},
		},
		{
			Name: "parks", Kind: domain.LeftJoin,
			Columns: []string{"pct_park"},
			Apply: func(_ context.Context, tracts []domain.Tract) ([]domain.Tract, error) {
				return domain.JoinParkShare(tracts, geo.OverlayAreaKm2(regions(tracts), in.Parks)), nil
			},
		},
		{
			Name: "buildings", Kind: domain.LeftJoin,
			Columns: []string{"n_churches", "n_public", "n_private", "n_libraries"},
			Apply: func(ctx context.Context, tracts []domain.Tract) ([]domain.Tract, error) {
				counts, err := countBuildings(ctx, tracts, in.Buildings)
				if err != nil {
					return nil, err
				}
				return domain.JoinBuildingCounts(tracts, counts), nil
			},
		},
		{
			Name: "sunroof", Kind: domain.LeftJoin,
			Columns: []string{"percent_qualified", "number_of_panels_total", "kw_total", "existing_installs_count"},
			Apply: func(_ context.Context, tracts []domain.Tract) ([]domain.Tract, error) {
				return domain.JoinSunroof(tracts, in.Sunroof), nil
			},
		},
		{
			Name: "socioeconomic", Kind: domain.LeftJoin,
			Columns: []string{
				"COMMUNITY AREA NAME",
				"PERCENT OF HOUSING CROWDED",
				"PERCENT HOUSEHOLDS BELOW POVERTY",
				"PERCENT AGED UNDER 18 OR OVER 64",
				"PER CAPITA INCOME ",
				"HARDSHIP INDEX",
			},
			Apply: func(_ context.Context, tracts []domain.Tract) ([]domain.Tract, error) {
				return domain.JoinSocioeconomic(tracts, in.Socioeconomic), nil
			},
		},
	}
}

func regions(tracts []domain.Tract) []geo.Region {
	out := make([]geo.Region, len(tracts))
	for i, t := range tracts {
		out[i] = geo.Region{ID: t.GeoID10, Geometry: t.Geometry}
	}
	return out
}

// countCrimes tallies counted and violent incidents per tract. An incident
// on a shared boundary counts toward every tract it touches.
func countCrimes(tracts []domain.Tract, crimes []domain.Crime) (map[int64]domain.CrimeCounts, error) {
	points := make([]orb.Point, len(crimes))
	for i, c := range crimes {
		points[i] = c.Location
	}

	hits, err := geo.PointsInRegions(regions(tracts), points)
	if err != nil {
		return nil, err
	}

	counts := make(map[int64]domain.CrimeCounts, len(hits))
	for id, idx := range hits {
		var c domain.CrimeCounts
		for _, i := range idx {
			c.Total++
			if crimes[i].Violent() {
				c.Violent++
			}
		}
		counts[id] = c
	}
	return counts, nil
}

// countBuildings tallies each building kind per intersecting tract. Only
// tracts touched by at least one building appear in the result.
func countBuildings(ctx context.Context, tracts []domain.Tract, buildings []domain.Building) (map[int64]domain.BuildingCounts, error) {
	bounds := make([]orb.Bound, len(tracts))
	for i, t := range tracts {
		bounds[i] = t.Geometry.Bound()
	}

	counts := make(map[int64]domain.BuildingCounts)
	for n, b := range buildings {
		if n%1000 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if b.Geometry == nil {
			continue
		}
		bb := b.Geometry.Bound()
		for i, t := range tracts {
			if !bounds[i].Intersects(bb) || !geo.Intersects(t.Geometry, b.Geometry) {
				continue
			}
			c := counts[t.GeoID10]
			c.Add(b.Kind)
			counts[t.GeoID10] = c
		}
	}
	return counts, nil
}
