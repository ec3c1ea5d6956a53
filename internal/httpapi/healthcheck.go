package httpapi

import "net/http"

type healthchecker struct {
	broker ConnStatus
}

// handleHealthz always answers 200 while the process runs; a lost broker
// connection is reported in the body, not as a failure, because the relay
// keeps scheduling cycles and the client reconnects on its own.
func (h *healthchecker) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"mqtt_connected": h.broker.IsConnected(),
	})
}

func registerHealthcheck(mux *http.ServeMux, broker ConnStatus) {
	h := &healthchecker{broker: broker}
	mux.HandleFunc("GET /healthz", h.handleHealthz)
}
