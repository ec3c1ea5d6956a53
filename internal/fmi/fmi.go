// Package fmi fetches observation and forecast time series from the
// Finnish Meteorological Institute open data WFS API.
package fmi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

// Stored queries served by the FMI WFS endpoint.
const (
	observationQuery = "fmi::observations::weather::timevaluepair"
	radiationQuery   = "fmi::observations::radiation::timevaluepair"
	forecastQuery    = "fmi::forecast::harmonie::surface::point::timevaluepair"
)

// Parameter codes the relay consumes.
const (
	ParamTemperature         = "t2m"             // °C, observation
	ParamIrradiance          = "GLOB_1MIN"       // W/m², observation
	ParamForecastTemperature = "temperature"     // °C, forecast
	ParamForecastIrradiance  = "RadiationGlobal" // W/m², forecast
)

// Observations are fetched over a trailing window so the latest sample is
// always included even when a station reports on a 10-minute cadence.
const observationWindow = 90 * time.Minute

var (
	errRateLimited = errors.New("rate limited by upstream")
	errServerError = errors.New("upstream server error")
)

// Location identifies the place to query. Lat/Lon take precedence over Place.
type Location struct {
	Place string
	Lat   *float64
	Lon   *float64
}

func (l Location) String() string {
	if l.Lat != nil && l.Lon != nil {
		return fmt.Sprintf("%.6f,%.6f", *l.Lat, *l.Lon)
	}
	return l.Place
}

func (l Location) apply(q url.Values) {
	if l.Lat != nil && l.Lon != nil {
		q.Set("latlon", l.String())
		return
	}
	q.Set("place", l.Place)
}

// BackoffConfig controls retry behaviour for WFS requests.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type Client struct {
	baseURL string
	client  *http.Client
	backoff BackoffConfig
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates a WFS client. baseURL is the WFS endpoint; httpClient
// should carry the request timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "fmi",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		baseURL: baseURL,
		client:  httpClient,
		backoff: BackoffConfig{
			MaxRetries:      2,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		breaker: cb,
	}
}

// FetchObservation returns recent temperature and irradiance samples for loc,
// merged into one series. The caller picks the latest value per parameter.
func (c *Client) FetchObservation(ctx context.Context, loc Location) (Series, error) {
	now := time.Now().UTC()
	start := now.Add(-observationWindow)

	temp, err := c.getFeature(ctx, observationQuery, loc, url.Values{
		"parameters": {ParamTemperature},
		"starttime":  {isoZ(start)},
		"endtime":    {isoZ(now)},
	})
	if err != nil {
		return nil, fmt.Errorf("observation weather query: %w", err)
	}

	irr, err := c.getFeature(ctx, radiationQuery, loc, url.Values{
		"parameters": {ParamIrradiance},
		"starttime":  {isoZ(start)},
		"endtime":    {isoZ(now)},
	})
	if err != nil {
		return nil, fmt.Errorf("observation radiation query: %w", err)
	}

	return append(temp, irr...), nil
}

// FetchForecast returns hourly temperature and irradiance forecasts covering
// [start, start+hours). start must be a full UTC hour (see CeilHour).
func (c *Client) FetchForecast(ctx context.Context, loc Location, start time.Time, hours int) (Series, error) {
	end := start.Add(time.Duration(hours) * time.Hour)

	series, err := c.getFeature(ctx, forecastQuery, loc, url.Values{
		"parameters": {ParamForecastTemperature + "," + ParamForecastIrradiance},
		"starttime":  {isoZ(start)},
		"endtime":    {isoZ(end)},
		"timestep":   {"60"},
	})
	if err != nil {
		return nil, fmt.Errorf("forecast query: %w", err)
	}
	return series, nil
}

func (c *Client) getFeature(ctx context.Context, storedQuery string, loc Location, params url.Values) (Series, error) {
	q := url.Values{
		"service":        {"WFS"},
		"version":        {"2.0.0"},
		"request":        {"getFeature"},
		"storedquery_id": {storedQuery},
	}
	for k, vs := range params {
		q[k] = vs
	}
	loc.apply(q)

	body, err := c.get(ctx, q)
	if err != nil {
		return nil, err
	}
	return ParseTimeValuePairs(body)
}

// get performs the HTTP request with retries, exponential backoff, and the
// circuit breaker.
func (c *Client) get(ctx context.Context, query url.Values) ([]byte, error) {
	var attempt int

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			resp, doErr := c.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, errRateLimited
			}
			if resp.StatusCode >= 500 {
				return nil, fmt.Errorf("%w: status %d", errServerError, resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
			}

			body, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				return nil, readErr
			}
			return body, nil
		})

		if err == nil {
			return result.([]byte), nil
		}

		// An open circuit fails fast until the breaker recovers.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("circuit breaker open: %w", err)
		}

		if attempt >= c.backoff.MaxRetries {
			return nil, err
		}

		delay := c.backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if c.backoff.MaxInterval > 0 && delay > c.backoff.MaxInterval {
			delay = c.backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}

// CeilHour rounds t up to the next full UTC hour; full hours are returned as is.
func CeilHour(t time.Time) time.Time {
	t = t.UTC()
	base := t.Truncate(time.Hour)
	if base.Equal(t) {
		return base
	}
	return base.Add(time.Hour)
}

func isoZ(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
