package live

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/aaron/footyhub/internal/models"
)

// PreviewGameID identifies the fake preview game.
const PreviewGameID = -1

// PreviewSource plays a fake live game on the whole-slate channel: one
// games snapshot followed by a score event every Interval. It ignores the
// url it is asked to open.
type PreviewSource struct {
	Round    int
	Interval time.Duration
}

// PreviewGame returns the fake game as first announced.
func (p *PreviewSource) PreviewGame() models.Game {
	home, away := 45, 32
	return models.Game{
		ID:       PreviewGameID,
		Round:    p.Round,
		Venue:    "Optus Stadium",
		HTeam:    "West Coast",
		ATeam:    "Essendon",
		Complete: 50,
		HScore:   &home,
		AScore:   &away,
		TimeStr:  "Live",
	}
}

func (p *PreviewSource) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	pr, pw := io.Pipe()
	go p.play(ctx, pw)
	return pr, nil
}

func (p *PreviewSource) play(ctx context.Context, w *io.PipeWriter) {
	interval := p.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	game := p.PreviewGame()
	if err := writeEvent(w, EventGames, []models.Game{game}); err != nil {
		w.CloseWithError(err)
		return
	}

	score := models.ScoreLine{HScore: 45, AScore: 32, HGoals: 7, HBehinds: 3, AGoals: 5, ABehinds: 2}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for tick := 1; ; tick++ {
		select {
		case <-ctx.Done():
			w.CloseWithError(ctx.Err())
			return
		case <-ticker.C:
		}
		// Alternate a home goal, an away behind and an away goal.
		switch tick % 3 {
		case 1:
			score.HGoals++
			score.HScore += 6
		case 2:
			score.ABehinds++
			score.AScore++
		default:
			score.AGoals++
			score.AScore += 6
		}
		clock := fmt.Sprintf("Q%d %d:%02d", 2+tick/20, (tick*37/60)%30, (tick*37)%60)
		patch := models.LiveGameUpdate{GameID: PreviewGameID, Score: &score, TimeStr: &clock}
		if err := writeEvent(w, EventScore, patch); err != nil {
			w.CloseWithError(err)
			return
		}
	}
}

func writeEvent(w io.Writer, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
