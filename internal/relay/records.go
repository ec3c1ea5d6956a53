// Package relay builds canonical weather records from FMI series and
// publishes them on a fixed schedule.
package relay

import "time"

// ObservationRecord is the published shape of one current-weather measurement.
type ObservationRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"` // °C
	Irradiance  float64   `json:"irradiance"`  // W/m²
	Location    string    `json:"location"`
}

// ForecastEntry is one predicted hour. HourOffset counts from 1; entry 1 is
// the first full hour after the forecast was issued.
type ForecastEntry struct {
	HourOffset  int     `json:"hour_offset"`
	Temperature float64 `json:"temperature"`
	Irradiance  float64 `json:"irradiance"`
}

// ForecastRecord is the published shape of one multi-hour forecast. Entries
// are ordered by strictly increasing HourOffset.
type ForecastRecord struct {
	IssuedAt time.Time       `json:"issued_at"`
	Location string          `json:"location"`
	Entries  []ForecastEntry `json:"entries"`
}
