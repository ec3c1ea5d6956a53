package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mehdiattar-lab/WeatherDataFetcher/internal/fmi"
	"github.com/mehdiattar-lab/WeatherDataFetcher/internal/metrics"
)

// Fetcher retrieves raw weather series for a location.
type Fetcher interface {
	FetchObservation(ctx context.Context, loc fmi.Location) (fmi.Series, error)
	FetchForecast(ctx context.Context, loc fmi.Location, start time.Time, hours int) (fmi.Series, error)
}

// Publisher delivers one payload to one topic. A single attempt per cycle is
// enough; retry across cycles is the scheduler's job.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Topics names the broker destinations per record kind.
type Topics struct {
	Observation string
	Forecast    string
}

// Options configures a Relay. Zero timeouts fall back to defaults that keep
// an observation cycle well under its one-minute cadence.
type Options struct {
	Location           fmi.Location
	Topics             Topics
	ForecastHours      int
	ObservationTimeout time.Duration
	ForecastTimeout    time.Duration
	Logger             *slog.Logger
}

// Relay runs fetch → normalize → publish cycles. Collaborators are injected
// and immutable after construction; cycles share no mutable state.
type Relay struct {
	fetcher   Fetcher
	publisher Publisher
	opts      Options

	// now is replaceable in tests.
	now func() time.Time
}

func New(fetcher Fetcher, publisher Publisher, opts Options) *Relay {
	if opts.ForecastHours <= 0 {
		opts.ForecastHours = 36
	}
	if opts.ObservationTimeout <= 0 {
		opts.ObservationTimeout = 30 * time.Second
	}
	if opts.ForecastTimeout <= 0 {
		opts.ForecastTimeout = 2 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Relay{
		fetcher:   fetcher,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
	}
}

// RunObservationCycle performs one observation fetch → normalize → publish.
func (r *Relay) RunObservationCycle(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.ObservationTimeout)
	defer cancel()

	series, err := r.fetcher.FetchObservation(ctx, r.opts.Location)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}

	record, err := NormalizeObservation(series, r.opts.Location.String(), r.now())
	if err != nil {
		return err
	}

	if err := r.publish(r.opts.Topics.Observation, record); err != nil {
		return err
	}

	r.opts.Logger.Debug("published observation",
		"topic", r.opts.Topics.Observation,
		"temperature", record.Temperature,
		"irradiance", record.Irradiance,
		"location", record.Location,
	)
	return nil
}

// RunForecastCycle performs one forecast fetch → normalize → publish covering
// the next ForecastHours full hours.
func (r *Relay) RunForecastCycle(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.ForecastTimeout)
	defer cancel()

	start := fmi.CeilHour(r.now())

	series, err := r.fetcher.FetchForecast(ctx, r.opts.Location, start, r.opts.ForecastHours)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}

	record, err := NormalizeForecast(series, r.opts.Location.String(), start, r.opts.ForecastHours)
	if err != nil {
		return err
	}

	if err := r.publish(r.opts.Topics.Forecast, record); err != nil {
		return err
	}

	r.opts.Logger.Debug("published forecast",
		"topic", r.opts.Topics.Forecast,
		"issued_at", record.IssuedAt,
		"entries", len(record.Entries),
		"location", record.Location,
	)
	return nil
}

func (r *Relay) publish(topic string, record any) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrPublish, err)
	}
	if err := r.publisher.Publish(topic, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrPublish, err)
	}
	metrics.Published(topic, len(payload))
	return nil
}
