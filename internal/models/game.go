package models

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// CompleteFull is the completion percentage of a finished game.
const CompleteFull = 100

// Phase is the lifecycle phase of a game. It is derived, never stored.
type Phase int

const (
	PhaseFuture Phase = iota
	PhaseLive
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseLive:
		return "live"
	case PhaseCompleted:
		return "completed"
	default:
		return "future"
	}
}

// Game is a single fixture as returned by Squiggle.
type Game struct {
	ID        int    `json:"id"`
	Round     int    `json:"round"`
	RoundName string `json:"roundname,omitempty"`
	Date      string `json:"date"`
	LocalTime string `json:"localtime,omitempty"`
	Venue     string `json:"venue"`
	HTeam     Team   `json:"hteam"`
	ATeam     Team   `json:"ateam"`
	Complete  int    `json:"complete"`
	HScore    *int   `json:"hscore"`
	AScore    *int   `json:"ascore"`
	HGoals    *int   `json:"hgoals,omitempty"`
	HBehinds  *int   `json:"hbehinds,omitempty"`
	AGoals    *int   `json:"agoals,omitempty"`
	ABehinds  *int   `json:"abehinds,omitempty"`
	TimeStr   string `json:"timestr,omitempty"`
}

// IsComplete reports whether the game has finished.
func (g Game) IsComplete() bool {
	return g.Complete >= CompleteFull
}

// Phase returns the game's phase given the set of live game ids.
func (g Game) Phase(live map[int]Game) Phase {
	if _, ok := live[g.ID]; ok {
		return PhaseLive
	}
	if g.IsComplete() {
		return PhaseCompleted
	}
	return PhaseFuture
}

// Team is a club name. Live payloads sometimes carry the numeric Squiggle
// team id instead, which is mapped to the club name on decode.
type Team string

var teamNames = map[int]string{
	1:  "Adelaide",
	2:  "Brisbane Lions",
	3:  "Carlton",
	4:  "Collingwood",
	5:  "Essendon",
	6:  "Fremantle",
	7:  "Geelong",
	8:  "Gold Coast",
	9:  "Greater Western Sydney",
	10: "Hawthorn",
	11: "Melbourne",
	12: "North Melbourne",
	13: "Port Adelaide",
	14: "Richmond",
	15: "St Kilda",
	16: "Sydney",
	17: "West Coast",
	18: "Western Bulldogs",
}

// TeamName returns the club name for a Squiggle team id.
func TeamName(id int) string {
	if name, ok := teamNames[id]; ok {
		return name
	}
	return "Unknown Team"
}

func (t *Team) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*t = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*t = Team(name)
		return nil
	}
	id, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*t = Team(TeamName(id))
	return nil
}

// ScoreLine is the score block of a live score event.
type ScoreLine struct {
	HScore   int `json:"hscore"`
	AScore   int `json:"ascore"`
	HGoals   int `json:"hgoals"`
	HBehinds int `json:"hbehinds"`
	AGoals   int `json:"agoals"`
	ABehinds int `json:"abehinds"`
}

// LiveGameUpdate is a partial patch for one live game. Only non-nil
// fields are applied.
type LiveGameUpdate struct {
	GameID  int        `json:"gameid"`
	Score   *ScoreLine `json:"score,omitempty"`
	TimeStr *string    `json:"timestr,omitempty"`
}

// Apply merges the patch into g and returns the result.
func (u LiveGameUpdate) Apply(g Game) Game {
	if u.Score != nil {
		g.HScore = intPtr(u.Score.HScore)
		g.AScore = intPtr(u.Score.AScore)
		g.HGoals = intPtr(u.Score.HGoals)
		g.HBehinds = intPtr(u.Score.HBehinds)
		g.AGoals = intPtr(u.Score.AGoals)
		g.ABehinds = intPtr(u.Score.ABehinds)
	}
	if u.TimeStr != nil {
		g.TimeStr = *u.TimeStr
	}
	return g
}

// RoundLabel is one entry of the rounds index.
type RoundLabel struct {
	Number int    `json:"round"`
	Name   string `json:"name"`
}

func intPtr(v int) *int {
	return &v
}
