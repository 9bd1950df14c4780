// dockertest checks a running container: it reads the ladder, the rounds
// index and the displayed round, then opens the event stream and waits
// for its initial events.
//
//	go run ./cmd/dockertest -url http://localhost:8080
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/aaron/footyhub/internal/handlers"
	"github.com/aaron/footyhub/internal/live"
	"github.com/aaron/footyhub/internal/models"
)

var client = &http.Client{Timeout: 30 * time.Second}

func getJSON(base, path string, v any) error {
	resp, err := client.Get(base + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func checkLadder(base string) (string, error) {
	var v handlers.LadderView
	if err := getJSON(base, "/ladder", &v); err != nil {
		return "", err
	}
	if len(v.Rows) == 0 {
		return "", fmt.Errorf("%s has no rows", v.Title)
	}
	top := v.Rows[0]
	return fmt.Sprintf("%s: %d teams, %s %s on %d points", v.Title, len(v.Rows), top.Position, top.Team, top.Points), nil
}

func checkRounds(base string) (string, error) {
	var v struct {
		Current int                 `json:"current"`
		Rounds  []models.RoundLabel `json:"rounds"`
	}
	if err := getJSON(base, "/rounds", &v); err != nil {
		return "", err
	}
	if len(v.Rounds) == 0 {
		return "", fmt.Errorf("empty rounds index")
	}
	return fmt.Sprintf("%d rounds (%s to %s), current %d",
		len(v.Rounds), v.Rounds[0].Name, v.Rounds[len(v.Rounds)-1].Name, v.Current), nil
}

func checkGames(base string) (string, error) {
	var v handlers.GamesView
	if err := getJSON(base, "/games", &v); err != nil {
		return "", err
	}
	if len(v.Cards) == 0 {
		return fmt.Sprintf("round %d: %s", v.Round, v.Empty), nil
	}
	phases := map[string]int{}
	for _, c := range v.Cards {
		phases[c.Phase]++
	}
	c := v.Cards[0]
	return fmt.Sprintf("round %d: %d games %v, first %s v %s at %s", v.Round, len(v.Cards), phases, c.Home.Name, c.Away.Name, c.Venue), nil
}

func checkEvents(base string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	src := &live.HTTPSource{Client: &http.Client{}}
	body, err := src.Open(ctx, base+"/events")
	if err != nil {
		return "", err
	}
	defer body.Close()

	dec := live.NewDecoder(body)
	var names []string
	for len(names) < 3 {
		ev, err := dec.Next()
		if err != nil {
			return "", fmt.Errorf("after %v: %w", names, err)
		}
		names = append(names, ev.Name)
	}
	return "initial events " + strings.Join(names, ", "), nil
}

func main() {
	base := flag.String("url", "http://localhost:8080", "Base URL of the server")
	flag.Parse()

	checks := []struct {
		name string
		run  func(string) (string, error)
	}{
		{"ladder", checkLadder},
		{"rounds", checkRounds},
		{"games", checkGames},
		{"events", checkEvents},
	}

	failed := 0
	for _, c := range checks {
		summary, err := c.run(*base)
		if err != nil {
			fmt.Printf("FAIL %-7s %v\n", c.name, err)
			failed++
			continue
		}
		fmt.Printf("ok   %-7s %s\n", c.name, summary)
	}
	if failed > 0 {
		os.Exit(1)
	}
}
