package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/aaron/footyhub/internal/apiclient"
	"github.com/aaron/footyhub/internal/app"
	"github.com/aaron/footyhub/internal/live"
	"github.com/aaron/footyhub/internal/middleware"
	"github.com/aaron/footyhub/internal/models"
)

type fakeController struct {
	mu       sync.Mutex
	pub      *Publisher
	rounds   []models.RoundLabel
	selected []int
	repairs  int
}

func (f *fakeController) SelectRound(ctx context.Context, round int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rounds {
		if r.Number == round {
			f.selected = append(f.selected, round)
			f.pub.RenderGames([]models.Game{{ID: round * 10, Round: round, HTeam: "Sydney", ATeam: "Geelong"}}, nil, round, nil)
			return nil
		}
	}
	return fmt.Errorf("%w: %d", app.ErrUnknownRound, round)
}

func (f *fakeController) Repair(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repairs++
	return nil
}

func (f *fakeController) Rounds() []models.RoundLabel { return f.rounds }

func (f *fakeController) LiveRound() int { return 20 }

func newTestRouter(limit func(http.Handler) http.Handler) (http.Handler, *fakeController, *Publisher) {
	pub := NewPublisher(2024)
	ctrl := &fakeController{pub: pub, rounds: []models.RoundLabel{{Number: 19, Name: "Round 19"}, {Number: 20, Name: "Round 20"}}}
	return NewRouter(New(ctrl, pub), limit), ctrl, pub
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("want 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: want application/json, got %q", ct)
	}
	body := strings.TrimSpace(rec.Body.String())
	if body != `{"status":"ok"}` {
		t.Errorf("body: want %q, got %q", `{"status":"ok"}`, body)
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"rate limited", &apiclient.RateLimitedError{RetryAfter: 1500 * time.Millisecond}, http.StatusTooManyRequests},
		{"unknown round", fmt.Errorf("%w: 4", app.ErrUnknownRound), http.StatusNotFound},
		{"upstream status", &apiclient.HTTPStatusError{URL: "u", Status: 503}, http.StatusBadGateway},
		{"upstream transport", &apiclient.NetworkError{URL: "u", Err: errors.New("reset")}, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, tt.err)
			if w.Code != tt.code {
				t.Errorf("want %d, got %d", tt.code, w.Code)
			}
		})
	}

	w := httptest.NewRecorder()
	writeError(w, &apiclient.RateLimitedError{RetryAfter: 1500 * time.Millisecond})
	if retry := w.Header().Get("Retry-After"); retry != "2" {
		t.Errorf("want Retry-After: 2, got %q", retry)
	}
}

func TestLadderAndGames(t *testing.T) {
	h, _, pub := newTestRouter(nil)

	pub.RenderLadder([]models.LadderEntry{{Name: "Sydney", Rank: 1, Pts: 64, Percentage: 135.4}})
	pub.RenderGames([]models.Game{{ID: 5, Round: 20, HTeam: "Sydney", ATeam: "Geelong", Venue: "SCG"}},
		[]models.LadderEntry{{Name: "Sydney", Rank: 1}}, 20, nil)

	rec := do(t, h, http.MethodGet, "/ladder")
	var ladder LadderView
	if err := json.Unmarshal(rec.Body.Bytes(), &ladder); err != nil {
		t.Fatal(err)
	}
	if ladder.Title != "AFL Ladder 2024" || len(ladder.Rows) != 1 || ladder.Rows[0].Position != "1st" {
		t.Errorf("ladder: %+v", ladder)
	}

	rec = do(t, h, http.MethodGet, "/games")
	var games GamesView
	if err := json.Unmarshal(rec.Body.Bytes(), &games); err != nil {
		t.Fatal(err)
	}
	if games.Round != 20 || len(games.Cards) != 1 || games.Cards[0].Home.Score != "1st" || games.Cards[0].Away.Score != "-" {
		t.Errorf("games: %+v", games)
	}

	rec = do(t, h, http.MethodGet, "/rounds")
	var rounds roundsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &rounds); err != nil {
		t.Fatal(err)
	}
	if rounds.Current != 20 || len(rounds.Rounds) != 2 {
		t.Errorf("rounds: %+v", rounds)
	}
}

func TestSelectRound(t *testing.T) {
	h, ctrl, _ := newTestRouter(nil)

	if rec := do(t, h, http.MethodPut, "/round/abc"); rec.Code != http.StatusBadRequest {
		t.Errorf("non-integer round: got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/round/4"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown round: got %d", rec.Code)
	}

	rec := do(t, h, http.MethodPut, "/round/19")
	if rec.Code != http.StatusOK {
		t.Fatalf("select: got %d %s", rec.Code, rec.Body)
	}
	var games GamesView
	if err := json.Unmarshal(rec.Body.Bytes(), &games); err != nil {
		t.Fatal(err)
	}
	if games.Round != 19 || games.Cards[0].ID != 190 {
		t.Errorf("games: %+v", games)
	}
	if len(ctrl.selected) != 1 || ctrl.selected[0] != 19 {
		t.Errorf("selected: %v", ctrl.selected)
	}
}

func TestRepair(t *testing.T) {
	h, ctrl, _ := newTestRouter(nil)
	if rec := do(t, h, http.MethodPost, "/repair"); rec.Code != http.StatusOK {
		t.Fatalf("repair: %d", rec.Code)
	}
	if ctrl.repairs != 1 {
		t.Errorf("repairs: %d", ctrl.repairs)
	}
}

func TestRouter_LimitsAPIButNotStats(t *testing.T) {
	limiter := middleware.NewLimiter(1, time.Hour)
	h, _, _ := newTestRouter(limiter.Middleware)

	if rec := do(t, h, http.MethodGet, "/ladder"); rec.Code != http.StatusOK {
		t.Fatalf("first request: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/games"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request: want 429, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/stats"); rec.Code != http.StatusOK {
		t.Errorf("/stats limited: %d", rec.Code)
	}
}

func TestPublisher_PanelUpdateKeepsCardsCurrent(t *testing.T) {
	pub := NewPublisher(2024)
	hs, as := 0, 0
	g := models.Game{ID: 7, Round: 20, HTeam: "Carlton", ATeam: "Richmond", HScore: &hs, AScore: &as}
	pub.RenderGames([]models.Game{g}, nil, 20, map[int]models.Game{7: g})

	ts := "Q2 4:00"
	pub.UpdateLiveGamePanel(7, models.LiveGameUpdate{GameID: 7, Score: &models.ScoreLine{HScore: 20, AScore: 9}, TimeStr: &ts}, live.EventScore)
	card := pub.Games().Cards[0]
	if card.Home.Score != "20" || card.Away.Score != "9" || card.Banner != "Q2 4:00" {
		t.Errorf("card: %+v", card)
	}

	pub.RenderGames(nil, nil, 21, nil)
	if v := pub.Games(); v.Empty == "" || len(v.Cards) != 0 {
		t.Errorf("empty round: %+v", v)
	}
}

func TestPublisher_MessagesBounded(t *testing.T) {
	pub := NewPublisher(2024)
	for i := 0; i < maxMessages+5; i++ {
		pub.AppendMessage(fmt.Sprintf("m%d", i))
	}
	msgs := pub.Messages()
	if len(msgs) != maxMessages || msgs[0] != "m5" {
		t.Errorf("messages: %d first=%q", len(msgs), msgs[0])
	}
}

func TestEvents(t *testing.T) {
	h, _, pub := newTestRouter(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	pub.RenderLadder([]models.LadderEntry{{Name: "Sydney", Rank: 1}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type: %q", ct)
	}

	dec := live.NewDecoder(resp.Body)
	var names []string
	for i := 0; i < 3; i++ {
		ev, err := dec.Next()
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, ev.Name)
		if ev.Name == EventLadder && !strings.Contains(ev.Data, "Sydney") {
			t.Errorf("initial ladder: %s", ev.Data)
		}
	}
	if strings.Join(names, ",") != "ladder,games,loading" {
		t.Errorf("initial events: %v", names)
	}

	deadline := time.Now().Add(2 * time.Second)
	for pub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	pub.AppendMessage("Error fetching ladder: HTTP error! status: 500")

	ev, err := dec.Next()
	if err != nil {
		t.Fatal(err)
	}
	if ev.Name != EventMessage || !strings.Contains(ev.Data, "status: 500") {
		t.Errorf("relayed event: %+v", ev)
	}
}

func TestPublisher_SlowClientDoesNotBlock(t *testing.T) {
	pub := NewPublisher(2024)
	_, stalled, unsubscribe := pub.Subscribe()
	defer unsubscribe()
	_, reader, unsubscribeReader := pub.Subscribe()
	defer unsubscribeReader()

	start := time.Now()
	for i := 0; i < clientBufferSize+20; i++ {
		pub.AppendMessage(fmt.Sprintf("m%d", i))
		<-reader
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("broadcast to a stalled client took %s", elapsed)
	}
	if n := len(stalled); n != clientBufferSize {
		t.Errorf("stalled client buffered %d events, want %d", n, clientBufferSize)
	}
	if first := <-stalled; !strings.Contains(string(first.Data), `"m0"`) {
		t.Errorf("oldest buffered event: %s", first.Data)
	}
}
