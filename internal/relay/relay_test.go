package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mehdiattar-lab/WeatherDataFetcher/internal/fmi"
)

type fakeFetcher struct {
	observation    fmi.Series
	observationErr error
	forecast       func(start time.Time, hours int) fmi.Series
	forecastErr    error
}

func (f *fakeFetcher) FetchObservation(ctx context.Context, loc fmi.Location) (fmi.Series, error) {
	if f.observationErr != nil {
		return nil, f.observationErr
	}
	return f.observation, nil
}

func (f *fakeFetcher) FetchForecast(ctx context.Context, loc fmi.Location, start time.Time, hours int) (fmi.Series, error) {
	if f.forecastErr != nil {
		return nil, f.forecastErr
	}
	return f.forecast(start, hours), nil
}

type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.topics)
}

func testTopics() Topics {
	return Topics{Observation: "weather/observations", Forecast: "weather/forecasts"}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunObservationCycle(t *testing.T) {
	fetcher := &fakeFetcher{observation: obsSeries()}
	publisher := &fakePublisher{}

	r := New(fetcher, publisher, Options{
		Location: fmi.Location{Place: "Tampere"},
		Topics:   testTopics(),
		Logger:   quietLogger(),
	})
	r.now = func() time.Time { return time.Date(2026, 8, 29, 10, 11, 0, 0, time.UTC) }

	if err := r.RunObservationCycle(context.Background()); err != nil {
		t.Fatalf("RunObservationCycle() error = %v, want nil", err)
	}

	if len(publisher.topics) != 1 || publisher.topics[0] != "weather/observations" {
		t.Fatalf("topics = %v, want [weather/observations]", publisher.topics)
	}

	var rec ObservationRecord
	if err := json.Unmarshal(publisher.payloads[0], &rec); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if rec.Temperature != 14.2 || rec.Irradiance != 532.0 || rec.Location != "Tampere" {
		t.Errorf("record = %+v, want temp 14.2, irradiance 532.0, location Tampere", rec)
	}
}

func TestRunForecastCycle(t *testing.T) {
	fetcher := &fakeFetcher{forecast: func(start time.Time, hours int) fmi.Series {
		return forecastSeries(start, hours)
	}}
	publisher := &fakePublisher{}

	r := New(fetcher, publisher, Options{
		Location: fmi.Location{Place: "Tampere"},
		Topics:   testTopics(),
		Logger:   quietLogger(),
	})

	if err := r.RunForecastCycle(context.Background()); err != nil {
		t.Fatalf("RunForecastCycle() error = %v, want nil", err)
	}

	if len(publisher.topics) != 1 || publisher.topics[0] != "weather/forecasts" {
		t.Fatalf("topics = %v, want [weather/forecasts]", publisher.topics)
	}

	var rec ForecastRecord
	if err := json.Unmarshal(publisher.payloads[0], &rec); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if len(rec.Entries) != 36 {
		t.Fatalf("len(Entries) = %d, want 36", len(rec.Entries))
	}
	for i, e := range rec.Entries {
		if e.HourOffset != i+1 {
			t.Fatalf("Entries[%d].HourOffset = %d, want %d", i, e.HourOffset, i+1)
		}
	}
}

func TestCycleErrors_WrapStageSentinels(t *testing.T) {
	t.Run("fetch error", func(t *testing.T) {
		fetcher := &fakeFetcher{observationErr: errors.New("connection refused")}
		r := New(fetcher, &fakePublisher{}, Options{Topics: testTopics(), Logger: quietLogger()})

		err := r.RunObservationCycle(context.Background())
		if !errors.Is(err, ErrFetch) {
			t.Fatalf("error = %v, want ErrFetch", err)
		}
	})

	t.Run("normalization error", func(t *testing.T) {
		fetcher := &fakeFetcher{observation: fmi.Series{}}
		r := New(fetcher, &fakePublisher{}, Options{Topics: testTopics(), Logger: quietLogger()})

		err := r.RunObservationCycle(context.Background())
		if !errors.Is(err, ErrNormalize) {
			t.Fatalf("error = %v, want ErrNormalize", err)
		}
	})

	t.Run("publish error", func(t *testing.T) {
		fetcher := &fakeFetcher{observation: obsSeries()}
		publisher := &fakePublisher{err: errors.New("broker rejected")}
		r := New(fetcher, publisher, Options{Topics: testTopics(), Logger: quietLogger()})

		err := r.RunObservationCycle(context.Background())
		if !errors.Is(err, ErrPublish) {
			t.Fatalf("error = %v, want ErrPublish", err)
		}
	})

	t.Run("forecast fetch error", func(t *testing.T) {
		fetcher := &fakeFetcher{forecastErr: errors.New("timeout")}
		r := New(fetcher, &fakePublisher{}, Options{Topics: testTopics(), Logger: quietLogger()})

		err := r.RunForecastCycle(context.Background())
		if !errors.Is(err, ErrFetch) {
			t.Fatalf("error = %v, want ErrFetch", err)
		}
	})
}

// flakyFetcher fails the first n observation fetches, then succeeds.
type flakyFetcher struct {
	mu       sync.Mutex
	failures int
	calls    int
	done     chan struct{}
	once     sync.Once
}

func (f *flakyFetcher) FetchObservation(ctx context.Context, loc fmi.Location) (fmi.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, fmt.Errorf("transient failure %d", f.calls)
	}
	f.once.Do(func() { close(f.done) })
	return obsSeries(), nil
}

func (f *flakyFetcher) FetchForecast(ctx context.Context, loc fmi.Location, start time.Time, hours int) (fmi.Series, error) {
	return forecastSeries(start, hours), nil
}

func (f *flakyFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// A failed cycle must never stop the cadence: after two failing ticks the
// third succeeds and publishes.
func TestScheduler_FailedCycleDoesNotStopCadence(t *testing.T) {
	fetcher := &flakyFetcher{failures: 2, done: make(chan struct{})}
	publisher := &fakePublisher{}

	r := New(fetcher, publisher, Options{
		Location: fmi.Location{Place: "Tampere"},
		Topics:   testTopics(),
		Logger:   quietLogger(),
	})

	sched := NewScheduler(r, 50*time.Millisecond, time.Hour, quietLogger())
	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v, want nil", err)
	}
	defer sched.Stop()

	select {
	case <-fetcher.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("observation cadence stalled after failures: %d calls", fetcher.callCount())
	}
}

// Both cadences run independently; a publisher that always fails on the
// forecast topic must not keep observations from being published.
func TestScheduler_CadencesAreIndependent(t *testing.T) {
	fetcher := &fakeFetcher{
		observation: obsSeries(),
		forecastErr: errors.New("forecast provider down"),
	}
	publisher := &fakePublisher{}

	r := New(fetcher, publisher, Options{
		Location: fmi.Location{Place: "Tampere"},
		Topics:   testTopics(),
		Logger:   quietLogger(),
	})

	sched := NewScheduler(r, 50*time.Millisecond, 50*time.Millisecond, quietLogger())
	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v, want nil", err)
	}
	defer sched.Stop()

	deadline := time.After(5 * time.Second)
	for publisher.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("observations not published while forecast cadence fails: %d", publisher.count())
		case <-time.After(10 * time.Millisecond):
		}
	}
}
