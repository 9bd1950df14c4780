package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/aaron/footyhub/internal/metrics"
)

// NewRouter registers every route. limit wraps the routes that are subject
// to the inbound rate limit; stats, monitor and the event stream are not.
func NewRouter(h *Handler, limit func(http.Handler) http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/stats", metrics.ServeJSON).Methods(http.MethodGet)
	r.HandleFunc("/monitor", metrics.ServeMonitor).Methods(http.MethodGet)
	r.HandleFunc("/events", h.Events).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	if limit != nil {
		api.Use(mux.MiddlewareFunc(limit))
	}
	api.HandleFunc("/health", Health).Methods(http.MethodGet)
	api.HandleFunc("/ladder", h.Ladder).Methods(http.MethodGet)
	api.HandleFunc("/rounds", h.Rounds).Methods(http.MethodGet)
	api.HandleFunc("/games", h.Games).Methods(http.MethodGet)
	api.HandleFunc("/round/{round}", h.SelectRound).Methods(http.MethodPut)
	api.HandleFunc("/repair", h.Repair).Methods(http.MethodPost)
	return r
}
