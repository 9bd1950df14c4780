package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/aaron/footyhub/internal/apiclient"
	"github.com/aaron/footyhub/internal/app"
	"github.com/aaron/footyhub/internal/config"
	"github.com/aaron/footyhub/internal/models"
)

// Controller is the part of the app the handlers drive.
type Controller interface {
	SelectRound(ctx context.Context, round int) error
	Repair(ctx context.Context) error
	Rounds() []models.RoundLabel
	LiveRound() int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	App Controller
	Pub *Publisher
}

// New creates a new Handler.
func New(a Controller, pub *Publisher) *Handler {
	return &Handler{App: a, Pub: pub}
}

type roundsResponse struct {
	Current int                 `json:"current"`
	Rounds  []models.RoundLabel `json:"rounds"`
}

// Health reports that the server is up.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ladder returns the ladder as last rendered.
func (h *Handler) Ladder(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Pub.Ladder())
}

// Rounds returns the rounds index and the live round.
func (h *Handler) Rounds(w http.ResponseWriter, r *http.Request) {
	rounds := h.App.Rounds()
	if rounds == nil {
		rounds = []models.RoundLabel{}
	}
	writeJSON(w, http.StatusOK, roundsResponse{Current: h.App.LiveRound(), Rounds: rounds})
}

// Games returns the cards of the selected round.
func (h *Handler) Games(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Pub.Games())
}

// SelectRound switches the displayed round and returns its cards.
func (h *Handler) SelectRound(w http.ResponseWriter, r *http.Request) {
	round, err := strconv.Atoi(mux.Vars(r)["round"])
	if err != nil {
		http.Error(w, "round must be an integer", http.StatusBadRequest)
		return
	}
	if err := h.App.SelectRound(r.Context(), round); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Pub.Games())
}

// Repair clears the cache store and reloads.
func (h *Handler) Repair(w http.ResponseWriter, r *http.Request) {
	if err := h.App.Repair(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "repaired"})
}

// Events streams render updates to the browser. The current ladder,
// cards and loading flag are sent first.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	id, ch, unsubscribe := h.Pub.Subscribe()
	defer unsubscribe()

	initial := []struct {
		event string
		v     any
	}{
		{EventLadder, h.Pub.Ladder()},
		{EventGames, h.Pub.Games()},
		{EventLoading, map[string]bool{"loading": h.Pub.Loading()}},
	}
	for _, m := range initial {
		data, err := json.Marshal(m.v)
		if err != nil {
			log.Printf("events: encode %s: %v", m.event, err)
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", m.event, data)
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			if config.Debug() {
				log.Printf("events: client %s disconnected", id[:8])
			}
			return
		case msg := <-ch:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, msg.Data)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var rlErr *apiclient.RateLimitedError
	if errors.As(err, &rlErr) {
		secs := int((rlErr.RetryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}
	if errors.Is(err, app.ErrUnknownRound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	var statusErr *apiclient.HTTPStatusError
	var netErr *apiclient.NetworkError
	if errors.As(err, &statusErr) || errors.As(err, &netErr) {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
