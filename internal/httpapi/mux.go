package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ConnStatus reports broker connectivity for the health endpoint.
type ConnStatus interface {
	IsConnected() bool
}

func NewMux(broker ConnStatus) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, broker)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON", "error", err)
	}
}
