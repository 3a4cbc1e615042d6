package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/chicago-heat-etl/internal/domain"
	"github.com/couchcryptid/chicago-heat-etl/internal/observability"
)

// WeatherSource downloads one year of hourly weather for a location.
type WeatherSource interface {
	FetchYear(ctx context.Context, loc domain.Centroid, year int) (domain.WeatherFrame, error)
}

// WeatherSink stores the concatenated weather table of one community area.
type WeatherSink interface {
	Exists(commArea int) bool
	Write(commArea int, frame domain.WeatherFrame) error
}

// FetchOptions controls the download schedule.
type FetchOptions struct {
	StartYear       int
	EndYear         int
	RequestLimit    int
	RequestInterval time.Duration
	MaxRetries      int
}

func (o FetchOptions) years() int { return o.EndYear - o.StartYear + 1 }

// FetchSummary reports what a fetch run did.
type FetchSummary struct {
	Written      int  `json:"written"`
	Existing     int  `json:"existing"`
	Failed       int  `json:"failed"`
	Requests     int  `json:"requests"`
	LimitReached bool `json:"limit_reached"`
}

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// errRequestBudget stops a retry loop that would exceed RequestLimit.
var errRequestBudget = errors.New("request limit reached")

// Fetcher downloads every location's year range and writes one file per
// community area.
type Fetcher struct {
	source  WeatherSource
	sink    WeatherSink
	opts    FetchOptions
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
	ready   atomic.Bool

	mu       sync.Mutex
	progress FetchSummary

	requests    int
	lastRequest time.Time
}

// NewFetcher creates a Fetcher. clock drives throttling and retry backoff.
func NewFetcher(src WeatherSource, sink WeatherSink, opts FetchOptions, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Fetcher {
	return &Fetcher{
		source:  src,
		sink:    sink,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
		clock:   clock,
	}
}

// CheckReadiness returns nil once at least one location has been written.
func (f *Fetcher) CheckReadiness(_ context.Context) error {
	if !f.ready.Load() {
		return errors.New("fetcher has not written any locations yet")
	}
	return nil
}

// Progress returns the counts of the run so far.
func (f *Fetcher) Progress() FetchSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.progress
}

func (f *Fetcher) report(sum FetchSummary) {
	sum.Requests = f.requests
	f.mu.Lock()
	f.progress = sum
	f.mu.Unlock()
}

// Run fetches every centroid in order. Locations with an existing file are
// skipped so an interrupted run resumes. Before each location the request
// budget is checked: if the location's years would exceed it, the run stops.
// Retries also count against the budget; a location whose retries run out of
// budget stops the run without being counted as failed.
// A location that fails permanently is logged and skipped; nothing is
// written for it. Run returns an error only on cancellation or a sink failure.
func (f *Fetcher) Run(ctx context.Context, centroids []domain.Centroid) (FetchSummary, error) {
	years := f.opts.years()
	total := len(centroids) * years
	var sum FetchSummary

	f.logger.Info("fetch started",
		"locations", len(centroids),
		"start_year", f.opts.StartYear,
		"end_year", f.opts.EndYear,
		"request_limit", f.opts.RequestLimit,
	)
	f.metrics.FetchRunning.Set(1)
	defer f.metrics.FetchRunning.Set(0)

	for i, loc := range centroids {
		if err := ctx.Err(); err != nil {
			sum.Requests = f.requests
			return sum, err
		}

		if f.sink.Exists(loc.CommArea) {
			f.logger.Info("weather file exists, skipping", "commarea", loc.CommArea)
			f.metrics.LocationsSkipped.WithLabelValues("exists").Inc()
			sum.Existing++
			f.report(sum)
			continue
		}

		if f.requests+years > f.opts.RequestLimit {
			f.logger.Warn("download limit reached",
				"requests", f.requests,
				"limit", f.opts.RequestLimit,
				"remaining_locations", len(centroids)-i,
			)
			sum.LimitReached = true
			f.report(sum)
			break
		}

		f.logger.Info(fmt.Sprintf("(%d/%d) getting data for coordinates", i*years, total),
			"commarea", loc.CommArea, "lat", loc.Lat, "lon", loc.Lon)

		frame, err := f.fetchLocation(ctx, loc, i*years, total)
		if err != nil {
			if ctx.Err() != nil {
				sum.Requests = f.requests
				return sum, ctx.Err()
			}
			if errors.Is(err, errRequestBudget) {
				f.logger.Warn("download limit reached",
					"requests", f.requests,
					"limit", f.opts.RequestLimit,
					"commarea", loc.CommArea,
					"remaining_locations", len(centroids)-i,
				)
				sum.LimitReached = true
				f.report(sum)
				break
			}
			f.logger.Error("location failed, skipping", "commarea", loc.CommArea, "error", err)
			f.metrics.LocationsSkipped.WithLabelValues("failed").Inc()
			sum.Failed++
			f.report(sum)
			continue
		}

		if err := f.sink.Write(loc.CommArea, frame); err != nil {
			sum.Requests = f.requests
			return sum, fmt.Errorf("write commarea %d: %w", loc.CommArea, err)
		}
		f.metrics.LocationsWritten.Inc()
		f.ready.Store(true)
		sum.Written++
		f.report(sum)
	}

	sum.Requests = f.requests
	f.report(sum)
	f.logger.Info("fetch finished",
		"written", sum.Written,
		"existing", sum.Existing,
		"failed", sum.Failed,
		"requests", sum.Requests,
		"limit_reached", sum.LimitReached,
	)
	return sum, nil
}

// fetchLocation downloads and concatenates every year for loc.
func (f *Fetcher) fetchLocation(ctx context.Context, loc domain.Centroid, done, total int) (domain.WeatherFrame, error) {
	var frame domain.WeatherFrame
	for m, year := 0, f.opts.StartYear; year <= f.opts.EndYear; m, year = m+1, year+1 {
		f.logger.Debug(fmt.Sprintf("(%d/%d) -- %d", done+m, total, year), "commarea", loc.CommArea)

		yf, err := f.fetchWithRetry(ctx, loc, year)
		if err != nil {
			return domain.WeatherFrame{}, fmt.Errorf("year %d: %w", year, err)
		}
		if err := frame.Append(yf); err != nil {
			return domain.WeatherFrame{}, fmt.Errorf("year %d: %w", year, err)
		}
	}
	return frame, nil
}

// fetchWithRetry retries transient failures with exponential backoff.
func (f *Fetcher) fetchWithRetry(ctx context.Context, loc domain.Centroid, year int) (domain.WeatherFrame, error) {
	backoff := initialBackoff
	for attempt := 0; ; attempt++ {
		if f.requests >= f.opts.RequestLimit {
			return domain.WeatherFrame{}, errRequestBudget
		}
		if !f.throttle(ctx) {
			return domain.WeatherFrame{}, ctx.Err()
		}

		frame, err := f.source.FetchYear(ctx, loc, year)
		f.requests++
		f.lastRequest = f.clock.Now()
		if err == nil {
			f.metrics.NSRDBRequests.WithLabelValues("success").Inc()
			return frame, nil
		}

		if ctx.Err() != nil || !errors.Is(err, domain.ErrTransient) || attempt >= f.opts.MaxRetries {
			f.metrics.NSRDBRequests.WithLabelValues("error").Inc()
			return domain.WeatherFrame{}, err
		}

		f.metrics.NSRDBRequests.WithLabelValues("retry").Inc()
		f.logger.Warn("transient nsrdb failure, retrying",
			"commarea", loc.CommArea, "year", year, "attempt", attempt+1, "backoff", backoff, "error", err)
		if !sleepWithContext(ctx, f.clock, backoff) {
			return domain.WeatherFrame{}, ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

// throttle waits until RequestInterval has passed since the previous request.
func (f *Fetcher) throttle(ctx context.Context) bool {
	if f.lastRequest.IsZero() || f.opts.RequestInterval <= 0 {
		return ctx.Err() == nil
	}
	wait := f.opts.RequestInterval - f.clock.Since(f.lastRequest)
	return sleepWithContext(ctx, f.clock, wait)
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
