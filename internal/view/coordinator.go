package view

import (
	"log"
	"sort"
	"sync"

	"github.com/aaron/footyhub/internal/config"
	"github.com/aaron/footyhub/internal/metrics"
	"github.com/aaron/footyhub/internal/models"
)

// Renderer is the display boundary. Calls are expected to be idempotent.
type Renderer interface {
	RenderLadder(ladder []models.LadderEntry)
	RenderGames(games []models.Game, ladder []models.LadderEntry, round int, live map[int]models.Game)
	UpdateLiveGamePanel(gameID int, patch models.LiveGameUpdate, kind string)
	AppendMessage(msg string)
	SetLoading(loading bool)
}

// Coordinator owns the displayed state and is its only mutator. Live
// streams hand it snapshots and patches; it decides what to render.
//
// Renderer calls are made with the lock held so the display sees state
// changes in the order they happened. A Renderer must not block.
type Coordinator struct {
	renderer Renderer

	mu     sync.Mutex
	round  int
	games  []models.Game
	ladder []models.LadderEntry
	rounds []models.RoundLabel
	live   map[int]models.Game
}

// New creates a coordinator rendering through r.
func New(r Renderer) *Coordinator {
	return &Coordinator{renderer: r, live: make(map[int]models.Game)}
}

// SetInitialData replaces the round, the base game list and the ladder.
// The live map is kept: it tracks games in progress whatever round is shown.
func (c *Coordinator) SetInitialData(round int, games []models.Game, ladder []models.LadderEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.round = round
	c.games = append([]models.Game(nil), games...)
	c.ladder = append([]models.LadderEntry(nil), ladder...)
}

// SetRounds replaces the rounds index offered for selection.
func (c *Coordinator) SetRounds(rounds []models.RoundLabel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rounds = append([]models.RoundLabel(nil), rounds...)
}

// ApplyLiveSnapshot replaces the live map and re-renders the view.
func (c *Coordinator) ApplyLiveSnapshot(games []models.Game) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live = make(map[int]models.Game, len(games))
	for _, g := range games {
		c.live[g.ID] = g
	}
	if config.Debug() {
		log.Printf("view: live snapshot with %d games", len(games))
	}
	c.renderGamesLocked()
}

// ApplyLivePatch merges patch into the live entry for gameID and updates
// that game's panel. A patch for a game not in the live map is logged and
// dropped; it reports whether the patch was applied.
func (c *Coordinator) ApplyLivePatch(gameID int, patch models.LiveGameUpdate, kind string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.live[gameID]
	if !ok {
		log.Printf("view: %s patch for untracked game %d dropped", kind, gameID)
		metrics.PatchesDropped.Add(1)
		return false
	}
	c.live[gameID] = patch.Apply(g)
	metrics.PatchesApplied.Add(1)
	c.renderer.UpdateLiveGamePanel(gameID, patch, kind)
	return true
}

// ClearLive empties the live map.
func (c *Coordinator) ClearLive() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live = make(map[int]models.Game)
}

// RenderLadder hands the ladder to the renderer.
func (c *Coordinator) RenderLadder() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderer.RenderLadder(append([]models.LadderEntry(nil), c.ladder...))
}

// RenderView hands the effective game list for the current round to the renderer.
func (c *Coordinator) RenderView() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderGamesLocked()
}

func (c *Coordinator) renderGamesLocked() {
	live := make(map[int]models.Game, len(c.live))
	for id, g := range c.live {
		live[id] = g
	}
	c.renderer.RenderGames(c.effectiveLocked(c.round), append([]models.LadderEntry(nil), c.ladder...), c.round, live)
}

// EffectiveGames returns the games of round with live state merged in.
func (c *Coordinator) EffectiveGames(round int) []models.Game {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effectiveLocked(round)
}

func (c *Coordinator) effectiveLocked(round int) []models.Game {
	out := make([]models.Game, 0)
	seen := make(map[int]bool)
	for _, g := range c.games {
		if g.Round != round {
			continue
		}
		seen[g.ID] = true
		if lg, ok := c.live[g.ID]; ok {
			g = mergeLive(g, lg)
		}
		out = append(out, g)
	}

	var extra []models.Game
	for id, lg := range c.live {
		if !seen[id] && lg.Round == round {
			extra = append(extra, lg)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].ID < extra[j].ID })
	return append(out, extra...)
}

// mergeLive overlays the score and clock fields of live onto base. Venue,
// teams and date stay as the base record has them.
func mergeLive(base, live models.Game) models.Game {
	if live.HScore != nil {
		base.HScore = live.HScore
	}
	if live.AScore != nil {
		base.AScore = live.AScore
	}
	if live.HGoals != nil {
		base.HGoals = live.HGoals
	}
	if live.HBehinds != nil {
		base.HBehinds = live.HBehinds
	}
	if live.AGoals != nil {
		base.AGoals = live.AGoals
	}
	if live.ABehinds != nil {
		base.ABehinds = live.ABehinds
	}
	if live.TimeStr != "" {
		base.TimeStr = live.TimeStr
	}
	if live.Complete > base.Complete {
		base.Complete = live.Complete
	}
	return base
}

// Round returns the selected round.
func (c *Coordinator) Round() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.round
}

// Games returns a copy of the base game list.
func (c *Coordinator) Games() []models.Game {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Game(nil), c.games...)
}

// Ladder returns a copy of the ladder.
func (c *Coordinator) Ladder() []models.LadderEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.LadderEntry(nil), c.ladder...)
}

// Rounds returns a copy of the rounds index.
func (c *Coordinator) Rounds() []models.RoundLabel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.RoundLabel(nil), c.rounds...)
}

// HasRound reports whether round is in the rounds index.
func (c *Coordinator) HasRound(round int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.rounds {
		if r.Number == round {
			return true
		}
	}
	return false
}

// LiveGames returns a copy of the live map.
func (c *Coordinator) LiveGames() map[int]models.Game {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int]models.Game, len(c.live))
	for id, g := range c.live {
		out[id] = g
	}
	return out
}
