// Command choropleth renders the six standard maps from an enriched tract
// table. The input may be the shapefile or the GeoJSON written by enrich.
//
// Usage:
//
//	go run ./cmd/choropleth -in processed_data/chicago_data.shp -out processed_data/chicago_data.png
package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/chicago-heat-etl/internal/adapter/geojson"
	"github.com/couchcryptid/chicago-heat-etl/internal/adapter/shapefile"
	"github.com/couchcryptid/chicago-heat-etl/internal/config"
	"github.com/couchcryptid/chicago-heat-etl/internal/domain"
	"github.com/couchcryptid/chicago-heat-etl/internal/render"
)

func main() {
	in := flag.String("in", "", "enriched .shp or .geojson (default OUTPUT_SHP)")
	out := flag.String("out", "", "output PNG (default PLOT_PNG)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)

	if *in == "" {
		*in = cfg.OutputSHP
	}
	if *out == "" {
		*out = cfg.PlotPNG
	}

	tracts, err := readEnriched(*in)
	if err != nil {
		logger.Error("failed to read enriched table", "path", *in, "error", err)
		os.Exit(1)
	}

	if err := render.WritePNG(*out, tracts); err != nil {
		logger.Error("failed to render choropleth", "error", err)
		os.Exit(1)
	}
	logger.Info("wrote choropleth", "path", *out, "tracts", len(tracts))
}

func readEnriched(path string) ([]domain.Tract, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return geojson.Read(path)
	default:
		return shapefile.ReadEnriched(path)
	}
}
