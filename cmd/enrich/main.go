// Command enrich computes the heatwave temperature anomaly per community area,
// merges it and the civic datasets onto the census tracts, and writes the
// enriched table.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/chicago-heat-etl/internal/adapter/civic"
	"github.com/couchcryptid/chicago-heat-etl/internal/adapter/geojson"
	kafkaadapter "github.com/couchcryptid/chicago-heat-etl/internal/adapter/kafka"
	"github.com/couchcryptid/chicago-heat-etl/internal/adapter/shapefile"
	"github.com/couchcryptid/chicago-heat-etl/internal/adapter/weatherfile"
	"github.com/couchcryptid/chicago-heat-etl/internal/config"
	"github.com/couchcryptid/chicago-heat-etl/internal/observability"
	"github.com/couchcryptid/chicago-heat-etl/internal/pipeline"
	"github.com/couchcryptid/chicago-heat-etl/internal/render"
)

func main() {
	plot := flag.Bool("plot", false, "also render the choropleth panels to PLOT_PNG")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *plot, logger, metrics); err != nil {
		logger.Error("enrichment failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, plot bool, logger *slog.Logger, metrics *observability.Metrics) error {
	in, err := loadInputs(cfg, logger)
	if err != nil {
		return err
	}

	tracts, checks, err := pipeline.NewEnricher(cfg.HeatwaveThreshold, logger, metrics).Run(ctx, in)
	if err != nil {
		return err
	}
	failed := 0
	for _, c := range checks {
		if !c.RowsOK() || !c.ColsOK() {
			failed++
		}
	}
	logger.Info("enrichment complete", "tracts", len(tracts), "stages", len(checks), "checks_failed", failed)

	if err := shapefile.WriteTracts(cfg.OutputSHP, tracts); err != nil {
		return err
	}
	logger.Info("wrote shapefile", "path", cfg.OutputSHP)

	if cfg.OutputGeoJSON != "" {
		if err := geojson.Write(cfg.OutputGeoJSON, tracts); err != nil {
			return err
		}
		logger.Info("wrote geojson", "path", cfg.OutputGeoJSON)
	}

	if plot {
		if err := render.WritePNG(cfg.PlotPNG, tracts); err != nil {
			return err
		}
		logger.Info("wrote choropleth", "path", cfg.PlotPNG)
	}

	if len(cfg.KafkaBrokers) > 0 {
		writer := kafkaadapter.NewWriter(cfg, logger, metrics)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		if err := writer.PublishBatch(ctx, tracts); err != nil {
			return err
		}
	}
	return nil
}

func loadInputs(cfg *config.Config, logger *slog.Logger) (pipeline.EnrichInputs, error) {
	paths := civic.DefaultPaths(cfg.DataDir)
	var (
		in  pipeline.EnrichInputs
		err error
	)

	if in.Tracts, err = shapefile.ReadTracts(cfg.TractsSHP); err != nil {
		return in, fmt.Errorf("load tracts: %w", err)
	}
	if in.Temperatures, err = weatherfile.LoadTemperatureSeries(cfg.WeatherDir); err != nil {
		return in, fmt.Errorf("load weather: %w", err)
	}
	if in.Population, err = civic.ReadPopulation(paths.Population); err != nil {
		return in, fmt.Errorf("load population: %w", err)
	}
	if in.Crimes, err = civic.ReadCrimes(paths.Crimes); err != nil {
		return in, fmt.Errorf("load crimes: %w", err)
	}
	if in.Parks, err = civic.ReadParks(paths.Parks); err != nil {
		return in, fmt.Errorf("load parks: %w", err)
	}
	if in.Buildings, err = civic.ReadBuildings(paths); err != nil {
		return in, fmt.Errorf("load buildings: %w", err)
	}
	if in.Sunroof, err = civic.ReadSunroof(paths.Sunroof); err != nil {
		return in, fmt.Errorf("load sunroof: %w", err)
	}
	if in.Socioeconomic, err = civic.ReadSocioeconomic(paths.Socioeconomic); err != nil {
		return in, fmt.Errorf("load socioeconomic: %w", err)
	}

	logger.Info("inputs loaded",
		"tracts", len(in.Tracts),
		"weather_areas", len(in.Temperatures),
		"blocks", len(in.Population),
		"crimes", len(in.Crimes),
		"parks", len(in.Parks),
		"buildings", len(in.Buildings),
		"sunroof", len(in.Sunroof),
		"socioeconomic", len(in.Socioeconomic),
	)
	return in, nil
}
