package nsrdb

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/chicago-heat-etl/internal/config"
	"github.com/couchcryptid/chicago-heat-etl/internal/domain"
	"github.com/couchcryptid/chicago-heat-etl/internal/observability"
)

const (
	testKey  = "test-key"
	psm3Body = "Source,Location ID,City,State,Country,Latitude,Longitude,Time Zone,Elevation\n" +
		"NSRDB,145809,-,-,-,41.85,-87.62,-6,180\n" +
		"Year,Month,Day,Hour,Minute,GHI,Relative Humidity,Surface Albedo,Pressure,Temperature,Wind Speed\n" +
		"2012,7,6,13,30,812,41.2,0.15,990,33.5,3.1\n" +
		"2012,7,6,14,30,790,39.8,0.15,990,,2.9\n"
)

var centroid = domain.Centroid{CommArea: 44, Lat: 41.74, Lon: -87.6}

func testClient(baseURL string) *Client {
	return NewClient(config.NSRDB{
		APIKey:      testKey,
		Email:       "someone@example.org",
		FullName:    "Some One",
		Affiliation: "UChicago",
		Reason:      "research",
		BaseURL:     baseURL,
		Timeout:     5 * time.Second,
	}, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_FetchYear_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "POINT(-87.6 41.74)", q.Get("wkt"))
		assert.Equal(t, "2012", q.Get("names"))
		assert.Equal(t, "air_temperature,relative_humidity,ghi,wind_speed,surface_pressure,surface_albedo", q.Get("attributes"))
		assert.Equal(t, "60", q.Get("interval"))
		assert.Equal(t, "false", q.Get("utc"))
		assert.Equal(t, "false", q.Get("leap_day"))
		assert.Equal(t, "false", q.Get("mailing_list"))
		assert.Equal(t, testKey, q.Get("api_key"))
		assert.Equal(t, "someone@example.org", q.Get("email"))
		assert.Equal(t, "Some One", q.Get("full_name"))

		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(psm3Body))
	}))
	defer srv.Close()

	frame, err := testClient(srv.URL).FetchYear(context.Background(), centroid, 2012)
	require.NoError(t, err)

	assert.Equal(t, []string{"GHI_44", "RH_44", "SA_44", "P_44", "Temp_44", "Wind_44"}, frame.Columns)
	require.Len(t, frame.Rows, 2)
	assert.Equal(t, time.Date(2012, time.July, 6, 13, 30, 0, 0, time.UTC), frame.Rows[0].Time)
	assert.Equal(t, []float64{812, 41.2, 0.15, 990, 33.5, 3.1}, frame.Rows[0].Values)
	assert.True(t, math.IsNaN(frame.Rows[1].Values[4]), "blank temperature is NaN")
}

func TestClient_FetchYear_TransientStatus(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"errors":["slow down"]}`))
			}))
			defer srv.Close()

			_, err := testClient(srv.URL).FetchYear(context.Background(), centroid, 2012)
			require.ErrorIs(t, err, domain.ErrTransient)
			assert.Contains(t, err.Error(), "slow down")
		})
	}
}

func TestClient_FetchYear_PermanentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errors":["API key is invalid"]}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchYear(context.Background(), centroid, 2012)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrTransient)
	assert.Contains(t, err.Error(), "403")
}

func TestClient_FetchYear_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := testClient(url).FetchYear(context.Background(), centroid, 2012)
	require.ErrorIs(t, err, domain.ErrTransient)
}

func TestClient_FetchYear_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(psm3Body))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(srv.URL).FetchYear(ctx, centroid, 2012)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrTransient)
}

func TestClient_FetchYear_BadCSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("a\nb\nTemperature\n1\n"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchYear(context.Background(), centroid, 2012)
	require.ErrorIs(t, err, domain.ErrMissingColumn)
}

func TestParseCSV_BadTime(t *testing.T) {
	body := "m\nm\nYear,Month,Day,Hour,Minute,Temperature\n2012,13,1,0,30,1\n"
	_, err := ParseCSV(strings.NewReader(body), 1)
	require.Error(t, err)
}
