package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mehdiattar-lab/WeatherDataFetcher/internal/config"
	"github.com/mehdiattar-lab/WeatherDataFetcher/internal/fmi"
	"github.com/mehdiattar-lab/WeatherDataFetcher/internal/httpapi"
	"github.com/mehdiattar-lab/WeatherDataFetcher/internal/mqtt"
	"github.com/mehdiattar-lab/WeatherDataFetcher/internal/relay"
)

func Run(ctx context.Context, cfg config.Config) error {
	loc := fmi.Location{Place: cfg.Place, Lat: cfg.Lat, Lon: cfg.Lon}

	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttQoS", cfg.MQTTQoS,
		"observationTopic", cfg.ObservationTopic,
		"forecastTopic", cfg.ForecastTopic,
		"fmiBaseURL", cfg.FMIBaseURL,
		"location", loc.String(),
		"observationInterval", cfg.ObservationInterval,
		"forecastInterval", cfg.ForecastInterval,
		"forecastHours", cfg.ForecastHours,
		"runOnce", cfg.RunOnce,
	)

	fetcher := fmi.NewClient(cfg.FMIBaseURL, &http.Client{Timeout: cfg.FetchTimeout})

	publisher := mqtt.NewPublisher(cfg, slog.Default())
	defer publisher.Disconnect()

	// Bound the initial connect so a down broker does not block startup; the
	// client keeps retrying in the background and cycles fail until it is up.
	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	err := publisher.Connect(connectCtx)
	connectCancel()
	if err != nil {
		slog.Warn("mqtt connection failed (continuing, cycles will retry)", "error", err)
	}

	rel := relay.New(fetcher, publisher, relay.Options{
		Location: loc,
		Topics: relay.Topics{
			Observation: cfg.ObservationTopic,
			Forecast:    cfg.ForecastTopic,
		},
		ForecastHours: cfg.ForecastHours,
		Logger:        slog.Default(),
	})

	if cfg.RunOnce {
		return runOnce(ctx, rel)
	}

	sched := relay.NewScheduler(rel, cfg.ObservationInterval, cfg.ForecastInterval, slog.Default())
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewMux(publisher),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

// runOnce publishes one observation and one forecast, then returns. Either
// cycle failing makes the process exit non-zero so smoke tests notice.
func runOnce(ctx context.Context, rel *relay.Relay) error {
	if err := rel.RunObservationCycle(ctx); err != nil {
		return err
	}
	if err := rel.RunForecastCycle(ctx); err != nil {
		return err
	}
	slog.Info("single cycle completed")
	return nil
}
