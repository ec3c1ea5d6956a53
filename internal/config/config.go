package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultFMIBaseURL is the FMI open data WFS endpoint.
const DefaultFMIBaseURL = "https://opendata.fmi.fi/wfs"

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string
	MQTTQoS      byte
	MQTTRetain   bool

	ObservationTopic string
	ForecastTopic    string
	StatusTopic      string

	FMIBaseURL string

	// Place is a named FMI location; Lat/Lon take precedence when both are set.
	Place string
	Lat   *float64
	Lon   *float64

	ObservationInterval time.Duration
	ForecastInterval    time.Duration
	ForecastHours       int
	FetchTimeout        time.Duration

	// RunOnce publishes one observation and one forecast, then exits.
	RunOnce bool
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	if mqttBroker == "" {
		mqttBroker = "localhost"
	}

	mqttPortStr := strings.TrimSpace(os.Getenv("MQTT_PORT"))
	if mqttPortStr == "" {
		mqttPortStr = "1883"
	}
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}

	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = "weather-relay"
	}

	mqttUsername := strings.TrimSpace(os.Getenv("MQTT_USERNAME"))
	mqttPassword := os.Getenv("MQTT_PASSWORD")

	mqttQoSStr := strings.TrimSpace(os.Getenv("MQTT_QOS"))
	if mqttQoSStr == "" {
		mqttQoSStr = "1"
	}
	mqttQoS, err := strconv.Atoi(mqttQoSStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_QOS %q: %w", mqttQoSStr, err)
	}
	if mqttQoS < 0 || mqttQoS > 2 {
		return Config{}, fmt.Errorf("invalid MQTT_QOS %d (allowed: 0, 1, 2)", mqttQoS)
	}

	mqttRetain, err := parseBool("MQTT_RETAIN", false)
	if err != nil {
		return Config{}, err
	}

	observationTopic := strings.TrimSpace(os.Getenv("TOPIC_OBSERVATION"))
	if observationTopic == "" {
		observationTopic = "weather/observations"
	}
	forecastTopic := strings.TrimSpace(os.Getenv("TOPIC_FORECAST"))
	if forecastTopic == "" {
		forecastTopic = "weather/forecasts"
	}
	statusTopic := strings.TrimSpace(os.Getenv("TOPIC_STATUS"))
	if statusTopic == "" {
		statusTopic = "weather/relay/status"
	}

	fmiBaseURL := strings.TrimSpace(os.Getenv("FMI_BASE_URL"))
	if fmiBaseURL == "" {
		fmiBaseURL = DefaultFMIBaseURL
	}

	place := strings.TrimSpace(os.Getenv("WEATHER_PLACE"))
	lat, lon, err := parseCoordinates()
	if err != nil {
		return Config{}, err
	}
	if place == "" && lat == nil {
		place = "Hirvensalmi"
	}

	observationInterval, err := parseDuration("OBSERVATION_INTERVAL", time.Minute)
	if err != nil {
		return Config{}, err
	}
	forecastInterval, err := parseDuration("FORECAST_INTERVAL", time.Hour)
	if err != nil {
		return Config{}, err
	}

	forecastHoursStr := strings.TrimSpace(os.Getenv("FORECAST_HOURS"))
	if forecastHoursStr == "" {
		forecastHoursStr = "36"
	}
	forecastHours, err := strconv.Atoi(forecastHoursStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid FORECAST_HOURS %q: %w", forecastHoursStr, err)
	}
	if forecastHours <= 0 {
		return Config{}, fmt.Errorf("FORECAST_HOURS must be positive, got %d", forecastHours)
	}

	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}

	runOnce, err := parseBool("RUN_ONCE", false)
	if err != nil {
		return Config{}, err
	}

	return Config{
		AppEnv:              appEnv,
		LogLevel:            level,
		HTTPAddr:            httpAddr,
		MQTTBroker:          mqttBroker,
		MQTTPort:            mqttPort,
		MQTTClientID:        mqttClientID,
		MQTTUsername:        mqttUsername,
		MQTTPassword:        mqttPassword,
		MQTTQoS:             byte(mqttQoS),
		MQTTRetain:          mqttRetain,
		ObservationTopic:    observationTopic,
		ForecastTopic:       forecastTopic,
		StatusTopic:         statusTopic,
		FMIBaseURL:          fmiBaseURL,
		Place:               place,
		Lat:                 lat,
		Lon:                 lon,
		ObservationInterval: observationInterval,
		ForecastInterval:    forecastInterval,
		ForecastHours:       forecastHours,
		FetchTimeout:        fetchTimeout,
		RunOnce:             runOnce,
	}, nil
}

// parseCoordinates reads WEATHER_LAT / WEATHER_LON. Both must be set or both empty.
func parseCoordinates() (*float64, *float64, error) {
	latStr := strings.TrimSpace(os.Getenv("WEATHER_LAT"))
	lonStr := strings.TrimSpace(os.Getenv("WEATHER_LON"))

	if latStr == "" && lonStr == "" {
		return nil, nil, nil
	}
	if latStr == "" || lonStr == "" {
		return nil, nil, fmt.Errorf("WEATHER_LAT and WEATHER_LON must be set together")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid WEATHER_LAT %q: %w", latStr, err)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid WEATHER_LON %q: %w", lonStr, err)
	}
	if lat < -90 || lat > 90 {
		return nil, nil, fmt.Errorf("WEATHER_LAT out of range: %v", lat)
	}
	if lon < -180 || lon > 180 {
		return nil, nil, fmt.Errorf("WEATHER_LON out of range: %v", lon)
	}
	return &lat, &lon, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if s == "" {
		return def, nil
	}
	switch s {
	case "1", "true", "yes":
		return true, nil
	case "0", "false", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s %q (allowed: true, false)", key, s)
	}
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
