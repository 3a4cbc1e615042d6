package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/chicago-heat-etl/internal/domain"
)

// DefaultNSRDBBaseURL is the PSM3 CSV download endpoint.
const DefaultNSRDBBaseURL = "https://developer.nrel.gov/api/nsrdb/v2/solar/psm3-download.csv"

// NSRDB holds the API credentials and download schedule.
type NSRDB struct {
	APIKey      string
	Email       string
	FullName    string
	Affiliation string
	Reason      string
	BaseURL     string

	StartYear       int
	EndYear         int
	RequestLimit    int
	RequestInterval time.Duration
	Timeout         time.Duration
	MaxRetries      int
}

// Years is the number of annual requests per location.
func (n NSRDB) Years() int {
	return n.EndYear - n.StartYear + 1
}

// Config holds all job settings, populated from environment variables.
type Config struct {
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	NSRDB NSRDB

	DataDir       string
	CentroidsCSV  string
	WeatherDir    string
	TractsSHP     string
	OutputSHP     string
	OutputGeoJSON string
	PlotPNG       string

	HeatwaveThreshold float64

	MetricsAddr  string
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	startYear, err := parseInt("NSRDB_START_YEAR", 2000)
	if err != nil {
		return nil, err
	}
	endYear, err := parseInt("NSRDB_END_YEAR", 2020)
	if err != nil {
		return nil, err
	}
	limit, err := parseInt("NSRDB_REQUEST_LIMIT", 480)
	if err != nil {
		return nil, err
	}
	retries, err := parseInt("NSRDB_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	interval, err := parseDuration("NSRDB_REQUEST_INTERVAL", "1s", true)
	if err != nil {
		return nil, err
	}
	timeout, err := parseDuration("NSRDB_TIMEOUT", "60s", false)
	if err != nil {
		return nil, err
	}

	threshold, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("HEATWAVE_THRESHOLD_C", strconv.FormatFloat(domain.DefaultHeatwaveThreshold, 'f', -1, 64)), 64)
	if err != nil {
		return nil, errors.New("invalid HEATWAVE_THRESHOLD_C")
	}

	dataDir := sharedcfg.EnvOrDefault("DATA_DIR", "data")
	var brokers []string
	if v := sharedcfg.EnvOrDefault("KAFKA_BROKERS", ""); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		NSRDB: NSRDB{
			APIKey:          sharedcfg.EnvOrDefault("NSRDB_API_KEY", ""),
			Email:           sharedcfg.EnvOrDefault("NSRDB_EMAIL", ""),
			FullName:        sharedcfg.EnvOrDefault("NSRDB_FULL_NAME", ""),
			Affiliation:     sharedcfg.EnvOrDefault("NSRDB_AFFILIATION", ""),
			Reason:          sharedcfg.EnvOrDefault("NSRDB_REASON", "research"),
			BaseURL:         sharedcfg.EnvOrDefault("NSRDB_BASE_URL", DefaultNSRDBBaseURL),
			StartYear:       startYear,
			EndYear:         endYear,
			RequestLimit:    limit,
			RequestInterval: interval,
			Timeout:         timeout,
			MaxRetries:      retries,
		},

		DataDir:       dataDir,
		CentroidsCSV:  sharedcfg.EnvOrDefault("CENTROIDS_CSV", filepath.Join(dataDir, "commarea_centers.csv")),
		WeatherDir:    sharedcfg.EnvOrDefault("WEATHER_DIR", "chicago_nsrdb"),
		TractsSHP:     sharedcfg.EnvOrDefault("TRACTS_SHP", filepath.Join(dataDir, "chicago_shapefile", "chicago_tracts.shp")),
		OutputSHP:     sharedcfg.EnvOrDefault("OUTPUT_SHP", filepath.Join("processed_data", "chicago_data.shp")),
		OutputGeoJSON: sharedcfg.EnvOrDefault("OUTPUT_GEOJSON", ""),
		PlotPNG:       sharedcfg.EnvOrDefault("PLOT_PNG", filepath.Join("processed_data", "chicago_data.png")),

		HeatwaveThreshold: threshold,

		MetricsAddr:  sharedcfg.EnvOrDefault("METRICS_ADDR", ""),
		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "chicago-heat-tracts"),
	}

	if cfg.NSRDB.EndYear < cfg.NSRDB.StartYear {
		return nil, errors.New("NSRDB_END_YEAR must not be before NSRDB_START_YEAR")
	}
	if cfg.NSRDB.RequestLimit < 1 {
		return nil, errors.New("invalid NSRDB_REQUEST_LIMIT: must be positive")
	}
	if cfg.NSRDB.MaxRetries < 0 {
		return nil, errors.New("invalid NSRDB_MAX_RETRIES: must not be negative")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// RequireNSRDB checks the credentials the NSRDB API insists on.
func (c *Config) RequireNSRDB() error {
	if c.NSRDB.APIKey == "" {
		return errors.New("NSRDB_API_KEY is required")
	}
	if c.NSRDB.Email == "" {
		return errors.New("NSRDB_EMAIL is required")
	}
	return nil
}

func parseInt(key string, def int) (int, error) {
	s := sharedcfg.EnvOrDefault(key, strconv.Itoa(def))
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
