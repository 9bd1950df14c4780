package app

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aaron/footyhub/internal/apiclient"
	"github.com/aaron/footyhub/internal/fetcher"
	"github.com/aaron/footyhub/internal/live"
	"github.com/aaron/footyhub/internal/models"
	"github.com/aaron/footyhub/internal/view"
)

type fakeResolver struct {
	mu    sync.Mutex
	round int
	err   error
	calls int
}

func (f *fakeResolver) Resolve(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.round, f.err
}

type fakeLoader struct {
	mu      sync.Mutex
	data    fetcher.DataSets
	failed  map[fetcher.DataSet]error
	live    []models.Game
	loads   int
	polls   int
	lastArg int
}

func (f *fakeLoader) LoadAll(ctx context.Context, round int, parallel bool) (fetcher.DataSets, map[fetcher.DataSet]error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	f.lastArg = round
	return f.data, f.failed
}

func (f *fakeLoader) LiveGames(ctx context.Context) ([]models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	return f.live, nil
}

type fakeClearer struct{ cleared int }

func (f *fakeClearer) Clear(ctx context.Context) error {
	f.cleared++
	return nil
}

type fakeRenderer struct {
	mu       sync.Mutex
	ladders  int
	rounds   []int
	messages []string
	loading  []bool
}

func (f *fakeRenderer) RenderLadder(ladder []models.LadderEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ladders++
}

func (f *fakeRenderer) RenderGames(games []models.Game, ladder []models.LadderEntry, round int, live map[int]models.Game) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rounds = append(f.rounds, round)
}

func (f *fakeRenderer) UpdateLiveGamePanel(gameID int, patch models.LiveGameUpdate, kind string) {}

func (f *fakeRenderer) AppendMessage(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
}

func (f *fakeRenderer) SetLoading(loading bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loading = append(f.loading, loading)
}

func (f *fakeRenderer) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

// fakeSource records the urls opened and hands the test a writer per channel.
type fakeSource struct {
	mu      sync.Mutex
	urls    []string
	err     error
	writers chan *io.PipeWriter
}

func newFakeSource() *fakeSource {
	return &fakeSource{writers: make(chan *io.PipeWriter, 16)}
}

func (f *fakeSource) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	f.writers <- pw
	return pr, nil
}

func (f *fakeSource) URLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

func ip(v int) *int { return &v }

func testData() fetcher.DataSets {
	return fetcher.DataSets{
		Round:   20,
		Ladder:  []models.LadderEntry{{Name: "Sydney", Rank: 1}, {Name: "Carlton", Rank: 2}},
		Past:    []models.Game{{ID: 1, Round: 19, Complete: 100, HTeam: "Sydney", ATeam: "Carlton", HScore: ip(90), AScore: ip(60)}},
		Current: []models.Game{{ID: 2, Round: 20, Venue: "MCG", HTeam: "Carlton", ATeam: "Sydney", HScore: ip(0), AScore: ip(0)}},
		Rounds:  []models.RoundLabel{{Number: 19, Name: "Round 19"}, {Number: 20, Name: "Round 20"}},
	}
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type harness struct {
	app      *App
	resolver *fakeResolver
	loader   *fakeLoader
	clearer  *fakeClearer
	renderer *fakeRenderer
	source   *fakeSource
}

func newHarness(opts Options) *harness {
	h := &harness{
		resolver: &fakeResolver{round: 20},
		loader:   &fakeLoader{data: testData()},
		clearer:  &fakeClearer{},
		renderer: &fakeRenderer{},
		source:   newFakeSource(),
	}
	if opts.Source == nil {
		opts.Source = h.source
	}
	if opts.SlateURL == "" {
		opts.SlateURL = "https://sse.test/sse/games"
	}
	if opts.GameURL == nil {
		opts.GameURL = func(id int) string { return "https://sse.test/sse/events/" + strconv.Itoa(id) }
	}
	if opts.Stream.RetryDelay == 0 {
		opts.Stream = live.Options{MaxRetries: 3, RetryDelay: time.Millisecond}
	}
	coord := view.New(h.renderer)
	h.app = New(h.resolver, h.loader, h.clearer, coord, h.renderer, opts)
	return h
}

func TestStart_SlateMode(t *testing.T) {
	h := newHarness(Options{Mode: ModeSlate})
	defer h.app.Close()

	if err := h.app.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.loader.lastArg != 20 {
		t.Errorf("loaded round %d, want 20", h.loader.lastArg)
	}
	if len(h.renderer.loading) != 2 || !h.renderer.loading[0] || h.renderer.loading[1] {
		t.Errorf("loading toggles: %v", h.renderer.loading)
	}
	if h.renderer.ladders != 1 || len(h.renderer.rounds) != 1 || h.renderer.rounds[0] != 20 {
		t.Errorf("renders: ladders=%d rounds=%v", h.renderer.ladders, h.renderer.rounds)
	}
	if len(h.renderer.messages) != 0 {
		t.Errorf("unexpected messages: %v", h.renderer.messages)
	}

	pw := <-h.source.writers
	if urls := h.source.URLs(); urls[0] != "https://sse.test/sse/games" {
		t.Errorf("opened %v", urls)
	}
	_, _ = io.WriteString(pw, `event: games`+"\n"+`data: [{"id":2,"round":20,"hteam":3,"ateam":16,"hscore":6,"ascore":1,"complete":5}]`+"\n\n")
	_, _ = io.WriteString(pw, `event: score`+"\n"+`data: {"gameid":2,"score":{"hscore":12,"ascore":1,"hgoals":2,"hbehinds":0,"agoals":0,"abehinds":1},"timestr":"Q1 8:00"}`+"\n\n")

	coord := h.app.Coordinator()
	waitUntil(t, "score patch", func() bool {
		g, ok := coord.LiveGames()[2]
		return ok && g.HScore != nil && *g.HScore == 12
	})
	g := coord.EffectiveGames(20)[0]
	if *g.HScore != 12 || g.Venue != "MCG" || g.TimeStr != "Q1 8:00" {
		t.Errorf("effective game: %+v", g)
	}

	h.app.Close()
	if h.app.Attached() {
		t.Error("still attached after Close")
	}
	if len(coord.LiveGames()) != 0 {
		t.Error("live state kept after Close")
	}
}

func TestStart_RoundResolutionFails(t *testing.T) {
	h := newHarness(Options{})
	defer h.app.Close()
	h.resolver.err = &apiclient.NetworkError{URL: "https://aflapi.test", Err: errors.New("timeout")}

	err := h.app.Start(context.Background())
	var netErr *apiclient.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("got %v, want NetworkError", err)
	}
	if h.loader.loads != 0 {
		t.Error("data sets loaded without a round")
	}
	if msgs := h.renderer.Messages(); len(msgs) != 1 || !strings.Contains(msgs[0], "current round") {
		t.Errorf("messages: %v", msgs)
	}
	if len(h.renderer.loading) != 2 || h.renderer.loading[1] {
		t.Errorf("loading not cleared: %v", h.renderer.loading)
	}
	if h.app.Attached() {
		t.Error("live attached after failed start")
	}
}

func TestStart_DataSetFailureIsInline(t *testing.T) {
	h := newHarness(Options{})
	defer h.app.Close()
	h.loader.failed = map[fetcher.DataSet]error{
		fetcher.SetLadder: &apiclient.HTTPStatusError{URL: "https://api.test", Status: 500},
	}
	d := testData()
	d.Ladder = nil
	h.loader.data = d

	if err := h.app.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	msgs := h.renderer.Messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "ladder") || !strings.Contains(msgs[0], "500") {
		t.Errorf("messages: %v", msgs)
	}
	if len(h.renderer.rounds) != 1 {
		t.Error("games not rendered after ladder failure")
	}
}

func TestSelectRound(t *testing.T) {
	h := newHarness(Options{Mode: ModeSlate})
	defer h.app.Close()
	if err := h.app.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-h.source.writers

	if err := h.app.SelectRound(context.Background(), 4); !errors.Is(err, ErrUnknownRound) {
		t.Errorf("unknown round: got %v", err)
	}

	if err := h.app.SelectRound(context.Background(), 19); err != nil {
		t.Fatal(err)
	}
	if h.app.Attached() {
		t.Error("streams still attached away from the live round")
	}
	if h.app.Coordinator().Round() != 19 {
		t.Errorf("round: %d", h.app.Coordinator().Round())
	}

	if err := h.app.SelectRound(context.Background(), 20); err != nil {
		t.Fatal(err)
	}
	<-h.source.writers
	if !h.app.Attached() || len(h.source.URLs()) != 2 {
		t.Errorf("not reattached: attached=%v opens=%d", h.app.Attached(), len(h.source.URLs()))
	}
	rounds := h.renderer.rounds
	if rounds[len(rounds)-1] != 20 {
		t.Errorf("last rendered round: %v", rounds)
	}
}

func TestStart_GameMode(t *testing.T) {
	h := newHarness(Options{Mode: ModeGame, Refresh: time.Hour})
	defer h.app.Close()
	h.loader.live = []models.Game{
		{ID: 2, Round: 20, HScore: ip(7), AScore: ip(0)},
		{ID: 3, Round: 20, HScore: ip(0), AScore: ip(1)},
	}

	if err := h.app.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-h.source.writers
	<-h.source.writers

	urls := h.source.URLs()
	if len(urls) != 2 {
		t.Fatalf("opened %v", urls)
	}
	live := h.app.Coordinator().LiveGames()
	if len(live) != 2 || *live[2].HScore != 7 {
		t.Errorf("live map from poll: %+v", live)
	}

	h.app.Close()
	if len(h.app.Coordinator().LiveGames()) != 0 {
		t.Error("live state kept after Close")
	}
}

func TestStreamFailureIsReported(t *testing.T) {
	h := newHarness(Options{Mode: ModeSlate, Stream: live.Options{MaxRetries: 1, RetryDelay: time.Millisecond}})
	defer h.app.Close()
	h.source.err = errors.New("connection refused")

	if err := h.app.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, "failure message", func() bool { return len(h.renderer.Messages()) == 1 })
	if msg := h.renderer.Messages()[0]; !strings.Contains(msg, "unavailable") || !strings.Contains(msg, "refused") {
		t.Errorf("message: %q", msg)
	}
	if got := len(h.source.URLs()); got != 2 {
		t.Errorf("opens: %d, want 2", got)
	}
}

func TestRepair(t *testing.T) {
	h := newHarness(Options{})
	defer h.app.Close()
	if err := h.app.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-h.source.writers

	if err := h.app.Repair(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-h.source.writers
	if h.clearer.cleared != 1 {
		t.Errorf("cleared %d times", h.clearer.cleared)
	}
	if h.resolver.calls != 2 || h.loader.loads != 2 {
		t.Errorf("reload: resolver=%d loads=%d", h.resolver.calls, h.loader.loads)
	}
	if !h.app.Attached() {
		t.Error("not reattached after repair")
	}
}

func TestPreviewForcesSlate(t *testing.T) {
	h := newHarness(Options{Mode: ModeGame, Preview: true, PreviewURL: "https://sse.test/sse/test"})
	defer h.app.Close()
	if err := h.app.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	coord := h.app.Coordinator()
	waitUntil(t, "preview snapshot", func() bool {
		_, ok := coord.LiveGames()[live.PreviewGameID]
		return ok
	})
	g := coord.EffectiveGames(20)
	if last := g[len(g)-1]; last.ID != live.PreviewGameID || last.HTeam != "West Coast" {
		t.Errorf("preview game not shown in the live round: %+v", g)
	}
	if len(h.source.URLs()) != 0 || h.loader.polls != 0 {
		t.Error("preview mode touched the network source")
	}
}
