package relay

import (
	"fmt"
	"math"
	"time"

	"github.com/mehdiattar-lab/WeatherDataFetcher/internal/fmi"
)

// NormalizeObservation extracts the latest finite temperature and irradiance
// samples from series. now becomes the record timestamp (publish time). The
// input series is never mutated.
func NormalizeObservation(series fmi.Series, location string, now time.Time) (ObservationRecord, error) {
	temp, ok := latestFinite(series, fmi.ParamTemperature)
	if !ok {
		return ObservationRecord{}, fmt.Errorf("%w: no finite %s sample", ErrNormalize, fmi.ParamTemperature)
	}
	irr, ok := latestFinite(series, fmi.ParamIrradiance)
	if !ok {
		return ObservationRecord{}, fmt.Errorf("%w: no finite %s sample", ErrNormalize, fmi.ParamIrradiance)
	}

	return ObservationRecord{
		Timestamp:   now.UTC(),
		Temperature: temp.Value,
		Irradiance:  irr.Value,
		Location:    location,
	}, nil
}

// NormalizeForecast buckets series values per UTC hour starting at start and
// produces exactly hours entries ordered by increasing hour offset. A missing
// hour or a non-finite value for either parameter fails the whole forecast;
// gaps are never padded or skipped.
func NormalizeForecast(series fmi.Series, location string, start time.Time, hours int) (ForecastRecord, error) {
	start = start.UTC().Truncate(time.Hour)

	temps := bucketHourly(series, fmi.ParamForecastTemperature)
	irrs := bucketHourly(series, fmi.ParamForecastIrradiance)

	entries := make([]ForecastEntry, 0, hours)
	for h := 1; h <= hours; h++ {
		hour := start.Add(time.Duration(h-1) * time.Hour)

		temp, ok := temps[hour]
		if !ok || !isFinite(temp) {
			return ForecastRecord{}, fmt.Errorf("%w: missing temperature for hour %d (%s)", ErrNormalize, h, hour.Format(time.RFC3339))
		}
		irr, ok := irrs[hour]
		if !ok || !isFinite(irr) {
			return ForecastRecord{}, fmt.Errorf("%w: missing irradiance for hour %d (%s)", ErrNormalize, h, hour.Format(time.RFC3339))
		}

		entries = append(entries, ForecastEntry{
			HourOffset:  h,
			Temperature: temp,
			Irradiance:  irr,
		})
	}

	return ForecastRecord{
		IssuedAt: start,
		Location: location,
		Entries:  entries,
	}, nil
}

func latestFinite(series fmi.Series, param string) (fmi.Value, bool) {
	var best fmi.Value
	var found bool
	for _, v := range series {
		if v.Param != param || !isFinite(v.Value) {
			continue
		}
		if !found || v.Time.After(best.Time) {
			best = v
			found = true
		}
	}
	return best, found
}

// bucketHourly maps each sample to its UTC hour, keeping the last sample when
// an hour appears twice.
func bucketHourly(series fmi.Series, param string) map[time.Time]float64 {
	out := make(map[time.Time]float64)
	for _, v := range series {
		if v.Param != param {
			continue
		}
		out[v.Time.UTC().Truncate(time.Hour)] = v.Value
	}
	return out
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
