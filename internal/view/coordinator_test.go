package view

import (
	"sync"
	"testing"

	"github.com/aaron/footyhub/internal/models"
)

type gamesCall struct {
	games []models.Game
	round int
	live  map[int]models.Game
}

type patchCall struct {
	gameID int
	patch  models.LiveGameUpdate
	kind   string
}

// fakeRenderer records every boundary call.
type fakeRenderer struct {
	mu       sync.Mutex
	ladders  [][]models.LadderEntry
	games    []gamesCall
	patches  []patchCall
	messages []string
	loading  []bool
}

func (f *fakeRenderer) RenderLadder(ladder []models.LadderEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ladders = append(f.ladders, ladder)
}

func (f *fakeRenderer) RenderGames(games []models.Game, ladder []models.LadderEntry, round int, live map[int]models.Game) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.games = append(f.games, gamesCall{games: games, round: round, live: live})
}

func (f *fakeRenderer) UpdateLiveGamePanel(gameID int, patch models.LiveGameUpdate, kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, patchCall{gameID, patch, kind})
}

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

func ip(v int) *int { return &v }

func baseGames() []models.Game {
	return []models.Game{
		{ID: 1, Round: 20, Venue: "MCG", HTeam: "Richmond", ATeam: "Carlton", Date: "2024-07-25 19:30:00", HScore: ip(0), AScore: ip(0)},
		{ID: 2, Round: 20, Venue: "Gabba", HTeam: "Brisbane Lions", ATeam: "Geelong", Complete: 100, HScore: ip(80), AScore: ip(70), TimeStr: "Full Time"},
		{ID: 3, Round: 21, Venue: "SCG", HTeam: "Sydney", ATeam: "Hawthorn"},
	}
}

func TestEffectiveGames_LiveOverridesScoreOnly(t *testing.T) {
	c := New(&fakeRenderer{})
	c.SetInitialData(20, baseGames(), nil)
	c.ApplyLiveSnapshot([]models.Game{{
		ID: 1, Round: 20, Venue: "", HTeam: "17", ATeam: "", HScore: ip(3), AScore: ip(1), TimeStr: "Q1 5:10", Complete: 10,
	}})

	got := c.EffectiveGames(20)
	if len(got) != 2 {
		t.Fatalf("games: %+v", got)
	}
	g := got[0]
	if g.ID != 1 || *g.HScore != 3 || *g.AScore != 1 {
		t.Errorf("score not taken from live entry: %+v", g)
	}
	if g.Venue != "MCG" || g.HTeam != "Richmond" || g.ATeam != "Carlton" || g.Date != "2024-07-25 19:30:00" {
		t.Errorf("base fields lost: %+v", g)
	}
	if g.TimeStr != "Q1 5:10" || g.Complete != 10 {
		t.Errorf("clock fields: %+v", g)
	}
	if got[1].ID != 2 || *got[1].HScore != 80 {
		t.Errorf("non-live game changed: %+v", got[1])
	}
}

func TestEffectiveGames_AppendsLiveOnlyEntriesForRound(t *testing.T) {
	c := New(&fakeRenderer{})
	c.SetInitialData(20, baseGames(), nil)
	c.ApplyLiveSnapshot([]models.Game{
		{ID: 50, Round: 20, HTeam: "Adelaide", ATeam: "Fremantle", HScore: ip(12), AScore: ip(6)},
		{ID: 40, Round: 20, HTeam: "St Kilda", ATeam: "Sydney"},
		{ID: 60, Round: 22, HTeam: "Essendon", ATeam: "Collingwood"},
	})

	got := c.EffectiveGames(20)
	var ids []int
	for _, g := range got {
		ids = append(ids, g.ID)
	}
	want := []int{1, 2, 40, 50}
	if len(ids) != len(want) {
		t.Fatalf("ids: %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids: %v, want %v", ids, want)
		}
	}
}

func TestApplyLivePatch_UntrackedGameDropped(t *testing.T) {
	r := &fakeRenderer{}
	c := New(r)
	c.SetInitialData(20, baseGames(), nil)

	score := &models.ScoreLine{HScore: 7, AScore: 0, HGoals: 1, HBehinds: 1}
	if c.ApplyLivePatch(999, models.LiveGameUpdate{GameID: 999, Score: score}, "score") {
		t.Fatal("patch for untracked game reported applied")
	}
	if len(c.LiveGames()) != 0 || len(r.patches) != 0 || len(r.games) != 0 {
		t.Fatalf("state touched by dropped patch: live=%v patches=%v", c.LiveGames(), r.patches)
	}

	c.ApplyLiveSnapshot([]models.Game{{ID: 999, Round: 20, HTeam: "Melbourne", ATeam: "Gold Coast", HScore: ip(0), AScore: ip(0)}})
	if len(r.games) != 1 {
		t.Fatalf("snapshot did not render: %d calls", len(r.games))
	}
	rendered := r.games[0]
	if rendered.round != 20 || len(rendered.games) != 3 || rendered.games[2].ID != 999 {
		t.Fatalf("rendered games: %+v", rendered.games)
	}
	if _, ok := rendered.live[999]; !ok {
		t.Error("live map passed to renderer is missing 999")
	}

	if !c.ApplyLivePatch(999, models.LiveGameUpdate{GameID: 999, Score: score}, "score") {
		t.Fatal("patch after snapshot not applied")
	}
	if g := c.LiveGames()[999]; *g.HScore != 7 || g.HTeam != "Melbourne" {
		t.Errorf("patched entry: %+v", g)
	}
	if len(r.patches) != 1 || r.patches[0].gameID != 999 || r.patches[0].kind != "score" {
		t.Errorf("panel updates: %+v", r.patches)
	}
}

func TestApplyLiveSnapshot_ReplacesWholesale(t *testing.T) {
	c := New(&fakeRenderer{})
	c.ApplyLiveSnapshot([]models.Game{{ID: 1}, {ID: 2}})
	c.ApplyLiveSnapshot([]models.Game{{ID: 3}})
	live := c.LiveGames()
	if len(live) != 1 {
		t.Fatalf("live: %v", live)
	}
	if _, ok := live[3]; !ok {
		t.Errorf("live: %v", live)
	}
}

func TestSetInitialData_KeepsLiveAcrossRounds(t *testing.T) {
	r := &fakeRenderer{}
	c := New(r)
	c.SetInitialData(20, baseGames(), []models.LadderEntry{{Name: "Sydney", Rank: 1}})
	c.ApplyLiveSnapshot([]models.Game{{ID: 1, Round: 20, HScore: ip(3), AScore: ip(1)}})

	c.SetInitialData(21, baseGames(), c.Ladder())
	c.RenderView()
	last := r.games[len(r.games)-1]
	if last.round != 21 || len(last.games) != 1 || last.games[0].ID != 3 {
		t.Errorf("round 21 view: %+v", last)
	}

	c.SetInitialData(20, baseGames(), c.Ladder())
	if g := c.EffectiveGames(20)[0]; *g.HScore != 3 {
		t.Errorf("live state lost after switching back: %+v", g)
	}
}

func TestRenderLadderAndRounds(t *testing.T) {
	r := &fakeRenderer{}
	c := New(r)
	ladder := []models.LadderEntry{{Name: "Sydney", Rank: 1}, {Name: "Port Adelaide", Rank: 2}}
	c.SetInitialData(20, nil, ladder)
	c.SetRounds([]models.RoundLabel{{Number: 1, Name: "Round 1"}, {Number: 20, Name: "Round 20"}})
	c.RenderLadder()

	if len(r.ladders) != 1 || len(r.ladders[0]) != 2 {
		t.Fatalf("ladder render: %+v", r.ladders)
	}
	if !c.HasRound(20) || c.HasRound(4) {
		t.Error("HasRound")
	}
	ladder[0].Name = "changed"
	if c.Ladder()[0].Name != "Sydney" {
		t.Error("coordinator shares the caller's ladder slice")
	}
}
