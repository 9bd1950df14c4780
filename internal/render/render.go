// Package render builds the display rows and cards sent to the popup.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aaron/footyhub/internal/models"
)

// LadderRow is one rendered ladder line.
type LadderRow struct {
	Position   string `json:"position"`
	Rank       int    `json:"rank"`
	Team       string `json:"team"`
	Logo       string `json:"logo"`
	Played     int    `json:"played"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
	Draws      int    `json:"draws"`
	Points     int    `json:"points"`
	Percentage string `json:"percentage"`
}

// TeamSide is one team's half of a game card. Score holds the score for
// live and completed games and the ladder position for future ones.
type TeamSide struct {
	Name  string `json:"name"`
	Logo  string `json:"logo"`
	Score string `json:"score"`
}

// GameCard is one rendered game.
type GameCard struct {
	ID     int      `json:"id"`
	Round  int      `json:"round"`
	Phase  string   `json:"phase"`
	Date   string   `json:"date"`
	Time   string   `json:"time"`
	Venue  string   `json:"venue"`
	Banner string   `json:"banner,omitempty"`
	Home   TeamSide `json:"home"`
	Away   TeamSide `json:"away"`
}

// Ordinal formats a ladder rank: 1st, 2nd, 3rd, 4th, 11th, 21st.
func Ordinal(n int) string {
	suffix := "th"
	switch {
	case n%10 == 1 && n%100 != 11:
		suffix = "st"
	case n%10 == 2 && n%100 != 12:
		suffix = "nd"
	case n%10 == 3 && n%100 != 13:
		suffix = "rd"
	}
	return strconv.Itoa(n) + suffix
}

// Position returns the ordinal ladder position of team, or "-" when the
// team is not on the ladder.
func Position(ladder []models.LadderEntry, team string) string {
	rank := models.LadderPosition(ladder, team)
	if rank == 0 {
		return "-"
	}
	return Ordinal(rank)
}

// Logo returns the image path for a club.
func Logo(team string) string {
	return "images/" + strings.ReplaceAll(team, " ", "") + ".png"
}

var layouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders a fixture date as "Friday August 23". Unparsable
// input is returned unchanged.
func FormatDate(s string) string {
	t, ok := parseTime(s)
	if !ok {
		return s
	}
	return t.Format("Monday January 2")
}

// FormatTime renders a kick-off time as "7:40 PM".
func FormatTime(s string) string {
	t, ok := parseTime(s)
	if !ok {
		return s
	}
	return t.Format("3:04 PM")
}

// LadderRows builds the ladder table.
func LadderRows(ladder []models.LadderEntry) []LadderRow {
	rows := make([]LadderRow, 0, len(ladder))
	for _, e := range ladder {
		rows = append(rows, LadderRow{
			Position:   Ordinal(e.Rank),
			Rank:       e.Rank,
			Team:       e.Name,
			Logo:       Logo(e.Name),
			Played:     e.Played,
			Wins:       e.Wins,
			Losses:     e.Losses,
			Draws:      e.Draws,
			Points:     e.Pts,
			Percentage: fmt.Sprintf("%.1f", e.Percentage),
		})
	}
	return rows
}

// Card builds the card for g. live is the set of games in progress.
func Card(g models.Game, ladder []models.LadderEntry, live map[int]models.Game) GameCard {
	home, away := string(g.HTeam), string(g.ATeam)
	card := GameCard{
		ID:    g.ID,
		Round: g.Round,
		Phase: g.Phase(live).String(),
		Date:  FormatDate(g.Date),
		Venue: g.Venue,
		Home:  TeamSide{Name: home, Logo: Logo(home)},
		Away:  TeamSide{Name: away, Logo: Logo(away)},
	}

	switch g.Phase(live) {
	case models.PhaseLive:
		card.Banner = g.TimeStr
		if card.Banner == "" {
			card.Banner = "Live"
		}
		card.Time = card.Banner
		card.Home.Score = score(g.HScore)
		card.Away.Score = score(g.AScore)
	case models.PhaseCompleted:
		card.Time = g.TimeStr
		card.Home.Score = score(g.HScore)
		card.Away.Score = score(g.AScore)
	default:
		kickoff := g.LocalTime
		if kickoff == "" {
			kickoff = g.Date
		}
		card.Time = FormatTime(kickoff)
		card.Home.Score = Position(ladder, home)
		card.Away.Score = Position(ladder, away)
	}
	return card
}

// Cards builds the cards for games in order.
func Cards(games []models.Game, ladder []models.LadderEntry, live map[int]models.Game) []GameCard {
	cards := make([]GameCard, 0, len(games))
	for _, g := range games {
		cards = append(cards, Card(g, ladder, live))
	}
	return cards
}

// PanelUpdate is the targeted update for one live game's panel.
type PanelUpdate struct {
	GameID int    `json:"gameid"`
	Kind   string `json:"kind"`
	Banner string `json:"banner,omitempty"`
	Home   string `json:"home,omitempty"`
	Away   string `json:"away,omitempty"`
}

// Panel builds the panel update for a live patch.
func Panel(gameID int, patch models.LiveGameUpdate, kind string) PanelUpdate {
	p := PanelUpdate{GameID: gameID, Kind: kind}
	if patch.Score != nil {
		p.Home = strconv.Itoa(patch.Score.HScore)
		p.Away = strconv.Itoa(patch.Score.AScore)
	}
	if patch.TimeStr != nil {
		p.Banner = *patch.TimeStr
	}
	return p
}

func score(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}
