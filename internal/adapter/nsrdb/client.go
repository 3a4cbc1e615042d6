// Package nsrdb downloads hourly PSM3 weather data from the NREL National
// Solar Radiation Database CSV API.
package nsrdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/chicago-heat-etl/internal/adapter/csvtable"
	"github.com/couchcryptid/chicago-heat-etl/internal/config"
	"github.com/couchcryptid/chicago-heat-etl/internal/domain"
	"github.com/couchcryptid/chicago-heat-etl/internal/observability"
)

// Attributes are the PSM3 variables requested for every location.
var Attributes = []string{
	"air_temperature",
	"relative_humidity",
	"ghi",
	"wind_speed",
	"surface_pressure",
	"surface_albedo",
}

// metadataRows precede the header row in every PSM3 CSV.
const metadataRows = 2

var timeColumns = []string{"Year", "Month", "Day", "Hour", "Minute"}

// Client implements the weather source using the NSRDB PSM3 CSV endpoint.
type Client struct {
	apiKey      string
	email       string
	fullName    string
	affiliation string
	reason      string

	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an NSRDB download client.
func NewClient(cfg config.NSRDB, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey:      cfg.APIKey,
		email:       cfg.Email,
		fullName:    cfg.FullName,
		affiliation: cfg.Affiliation,
		reason:      cfg.Reason,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// FetchYear downloads one year of hourly data for the centroid and returns it
// with variables renamed to their per-area columns (Temp_<n>, GHI_<n>, ...).
// Network failures, HTTP 429 and 5xx responses wrap domain.ErrTransient.
func (c *Client) FetchYear(ctx context.Context, loc domain.Centroid, year int) (domain.WeatherFrame, error) {
	body, err := c.doRequest(ctx, c.buildURL(loc, year))
	if err != nil {
		return domain.WeatherFrame{}, err
	}

	frame, err := ParseCSV(bytes.NewReader(body), loc.CommArea)
	if err != nil {
		return domain.WeatherFrame{}, fmt.Errorf("parse nsrdb csv for commarea %d year %d: %w", loc.CommArea, year, err)
	}
	return frame, nil
}

func (c *Client) buildURL(loc domain.Centroid, year int) string {
	params := url.Values{
		"wkt":          {fmt.Sprintf("POINT(%s %s)", formatCoord(loc.Lon), formatCoord(loc.Lat))},
		"names":        {strconv.Itoa(year)},
		"attributes":   {strings.Join(Attributes, ",")},
		"interval":     {"60"},
		"utc":          {"false"},
		"leap_day":     {"false"},
		"api_key":      {c.apiKey},
		"full_name":    {c.fullName},
		"email":        {c.email},
		"affiliation":  {c.affiliation},
		"reason":       {c.reason},
		"mailing_list": {"false"},
	}
	return c.baseURL + "?" + params.Encode()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.NSRDBRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("nsrdb request: %w", ctx.Err())
		}
		return nil, fmt.Errorf("nsrdb request: %w: %w", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("nsrdb API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: %w", domain.ErrTransient, err)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read nsrdb response: %w: %w", domain.ErrTransient, err)
	}
	c.metrics.NSRDBBytes.Add(float64(len(body)))
	return body, nil
}

// ParseCSV decodes a PSM3 CSV: two metadata rows, a header, then one row per
// interval. Year/Month/Day/Hour/Minute collapse into the row time and the
// remaining columns are renamed for commArea. Blank cells become NaN.
func ParseCSV(r io.Reader, commArea int) (domain.WeatherFrame, error) {
	t, err := csvtable.Read(r, metadataRows)
	if err != nil {
		return domain.WeatherFrame{}, err
	}
	tidx, err := t.Columns(timeColumns...)
	if err != nil {
		return domain.WeatherFrame{}, err
	}

	isTime := make(map[int]bool, len(tidx))
	for _, i := range tidx {
		isTime[i] = true
	}
	var (
		columns []string
		vidx    []int
	)
	for i, h := range t.Header {
		if isTime[i] || strings.TrimSpace(h) == "" {
			continue
		}
		columns = append(columns, domain.AreaColumn(h, commArea))
		vidx = append(vidx, i)
	}

	frame := domain.WeatherFrame{Columns: columns, Rows: make([]domain.WeatherRow, 0, len(t.Rows))}
	for n, row := range t.Rows {
		ts, err := rowTime(row, tidx)
		if err != nil {
			return domain.WeatherFrame{}, fmt.Errorf("row %d: %w", n+metadataRows+2, err)
		}
		values := make([]float64, len(vidx))
		for j, i := range vidx {
			v, err := csvtable.Float(csvtable.Field(row, i))
			if err != nil {
				return domain.WeatherFrame{}, fmt.Errorf("row %d %s: %w", n+metadataRows+2, t.Header[i], err)
			}
			values[j] = math.NaN()
			if v != nil {
				values[j] = *v
			}
		}
		frame.Rows = append(frame.Rows, domain.WeatherRow{Time: ts, Values: values})
	}
	return frame, nil
}

func rowTime(row []string, idx []int) (time.Time, error) {
	var parts [5]int
	for i, j := range idx {
		v, err := strconv.Atoi(csvtable.Field(row, j))
		if err != nil {
			return time.Time{}, fmt.Errorf("parse %s: %w", timeColumns[i], err)
		}
		parts[i] = v
	}
	if parts[1] < 1 || parts[1] > 12 {
		return time.Time{}, errors.New("month out of range")
	}
	return time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], 0, 0, time.UTC), nil
}
