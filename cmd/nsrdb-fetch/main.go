// Command nsrdb-fetch downloads hourly NSRDB weather for every community-area
// centroid and writes one CSV per area. Re-running resumes after the last
// area written.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/chicago-heat-etl/internal/adapter/civic"
	"github.com/couchcryptid/chicago-heat-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/chicago-heat-etl/internal/adapter/nsrdb"
	"github.com/couchcryptid/chicago-heat-etl/internal/adapter/weatherfile"
	"github.com/couchcryptid/chicago-heat-etl/internal/config"
	"github.com/couchcryptid/chicago-heat-etl/internal/observability"
	"github.com/couchcryptid/chicago-heat-etl/internal/pipeline"
)

func main() {
	limit := flag.Int("limit", 0, "override NSRDB_REQUEST_LIMIT")
	metricsAddr := flag.String("metrics-addr", "", "override METRICS_ADDR (e.g. :9090)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.RequireNSRDB(); err != nil {
		slog.Error("missing NSRDB credentials", "error", err)
		os.Exit(1)
	}
	if *limit > 0 {
		cfg.NSRDB.RequestLimit = *limit
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	centroids, err := civic.ReadCentroids(cfg.CentroidsCSV)
	if err != nil {
		logger.Error("failed to load centroids", "path", cfg.CentroidsCSV, "error", err)
		os.Exit(1)
	}

	client := nsrdb.NewClient(cfg.NSRDB, metrics, logger)
	sink := weatherfile.Dir{Path: cfg.WeatherDir, StartYear: cfg.NSRDB.StartYear, EndYear: cfg.NSRDB.EndYear}
	fetcher := pipeline.NewFetcher(client, sink, pipeline.FetchOptions{
		StartYear:       cfg.NSRDB.StartYear,
		EndYear:         cfg.NSRDB.EndYear,
		RequestLimit:    cfg.NSRDB.RequestLimit,
		RequestInterval: cfg.NSRDB.RequestInterval,
		MaxRetries:      cfg.NSRDB.MaxRetries,
	}, logger, metrics, clockwork.NewRealClock())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *httpadapter.Server
	if cfg.MetricsAddr != "" {
		srv = httpadapter.NewServer(cfg.MetricsAddr, fetcher, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	sum, runErr := fetcher.Run(ctx, centroids)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		cancel()
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Info("fetch interrupted, re-run to resume", "written", sum.Written)
			os.Exit(130)
		}
		logger.Error("fetch failed", "error", runErr)
		os.Exit(1)
	}
	if sum.LimitReached {
		logger.Info("request limit reached, re-run later to continue", "written", sum.Written)
	}
}
