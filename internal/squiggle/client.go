// Package squiggle reads fixtures, results and standings from the Squiggle API.
package squiggle

import (
	"context"
	"strconv"
	"strings"

	"github.com/aaron/footyhub/internal/apiclient"
	"github.com/aaron/footyhub/internal/models"
)

// Param is one key=value filter of a Squiggle query.
type Param struct {
	Key   string
	Value string
}

// Query builds a Squiggle path. Squiggle separates filters with ';' inside
// the single q parameter, e.g. /?q=games;year=2024;complete=100.
func Query(kind string, params ...Param) string {
	var b strings.Builder
	b.WriteString("/?q=")
	b.WriteString(kind)
	for _, p := range params {
		b.WriteByte(';')
		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(p.Value)
	}
	return b.String()
}

// Year filters by season.
func Year(y int) Param { return Param{"year", strconv.Itoa(y)} }

// Round filters by round number.
func Round(r int) Param { return Param{"round", strconv.Itoa(r)} }

// Completed keeps only finished games.
func Completed() Param { return Param{"complete", "100"} }

// Incomplete keeps games that have not finished.
func Incomplete() Param { return Param{"complete", "!100"} }

// Live keeps games currently in progress.
func Live() Param { return Param{"live", "1"} }

type gamesResponse struct {
	Games *[]models.Game `json:"games"`
}

type standingsResponse struct {
	Standings *[]models.LadderEntry `json:"standings"`
}

// Client is a Squiggle API client.
type Client struct {
	api *apiclient.Client
}

// NewClient wraps an apiclient pointed at the Squiggle base URL.
func NewClient(api *apiclient.Client) *Client {
	return &Client{api: api}
}

// Games fetches games matching params.
func (c *Client) Games(ctx context.Context, params ...Param) ([]models.Game, error) {
	path := Query("games", params...)
	var resp gamesResponse
	if err := c.api.GetJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	if resp.Games == nil {
		return nil, &apiclient.MalformedResponseError{URL: c.api.BaseURL() + path, Field: "games"}
	}
	return *resp.Games, nil
}

// Standings fetches the ladder for the given season.
func (c *Client) Standings(ctx context.Context, year int) ([]models.LadderEntry, error) {
	path := Query("standings", Year(year))
	var resp standingsResponse
	if err := c.api.GetJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	if resp.Standings == nil {
		return nil, &apiclient.MalformedResponseError{URL: c.api.BaseURL() + path, Field: "standings"}
	}
	ladder := *resp.Standings
	if err := models.ValidateLadder(ladder); err != nil {
		return nil, &apiclient.MalformedResponseError{URL: c.api.BaseURL() + path, Err: err}
	}
	models.SortLadder(ladder)
	return ladder, nil
}

// LiveGames fetches the games currently in progress.
func (c *Client) LiveGames(ctx context.Context) ([]models.Game, error) {
	return c.Games(ctx, Live())
}

// SlateStreamURL is the push channel carrying full live-game snapshots.
func (c *Client) SlateStreamURL() string {
	return c.api.BaseURL() + "/sse/games"
}

// GameStreamURL is the push channel carrying score and clock patches for one game.
func (c *Client) GameStreamURL(gameID int) string {
	return c.api.BaseURL() + "/sse/events/" + strconv.Itoa(gameID)
}

// PreviewStreamURL is Squiggle's test channel emitting fake score events.
func (c *Client) PreviewStreamURL() string {
	return c.api.BaseURL() + "/sse/test"
}
