package fetcher

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/aaron/footyhub/internal/models"
)

// DataSet names one logical data set.
type DataSet string

const (
	SetLadder       DataSet = "ladder"
	SetPastGames    DataSet = "past games"
	SetFutureGames  DataSet = "future games"
	SetCurrentRound DataSet = "current round"
)

// DataSets is the result of loading every data set for one round.
type DataSets struct {
	Round   int
	Ladder  []models.LadderEntry
	Past    []models.Game
	Future  []models.Game
	Current []models.Game
	Rounds  []models.RoundLabel
}

// AllGames merges the game collections by id. Current-round records win
// over future ones, which win over past ones.
func (d DataSets) AllGames() []models.Game {
	index := make(map[int]int)
	var out []models.Game
	for _, games := range [][]models.Game{d.Past, d.Future, d.Current} {
		for _, g := range games {
			if i, ok := index[g.ID]; ok {
				out[i] = g
				continue
			}
			index[g.ID] = len(out)
			out = append(out, g)
		}
	}
	return out
}

// LoadAll fetches the ladder, past, future and current-round sets, then
// derives the rounds index from whichever game sets succeeded. The index
// is only stored when every game set loaded. Each set
// fails independently; failures are returned keyed by set. With parallel
// set, the four fetches run concurrently behind a join.
func (f *Fetcher) LoadAll(ctx context.Context, round int, parallel bool) (DataSets, map[DataSet]error) {
	d := DataSets{Round: round}
	errs := make([]error, 4)

	steps := []func() error{
		func() (err error) { d.Ladder, err = f.Ladder(ctx); return err },
		func() (err error) { d.Past, err = f.PastGames(ctx); return err },
		func() (err error) { d.Future, err = f.FutureGames(ctx); return err },
		func() (err error) { d.Current, err = f.CurrentRoundGames(ctx, round); return err },
	}
	sets := []DataSet{SetLadder, SetPastGames, SetFutureGames, SetCurrentRound}

	if parallel {
		var g errgroup.Group
		for i, step := range steps {
			g.Go(func() error {
				errs[i] = step()
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, step := range steps {
			errs[i] = step()
		}
	}

	failed := make(map[DataSet]error)
	for i, err := range errs {
		if err != nil {
			log.Printf("fetcher: %s: %v", sets[i], err)
			failed[sets[i]] = err
		}
	}

	_, pastErr := failed[SetPastGames]
	_, futureErr := failed[SetFutureGames]
	_, currentErr := failed[SetCurrentRound]
	d.Rounds = f.RoundsIndex(ctx, !pastErr && !futureErr && !currentErr, d.Past, d.Current, d.Future)
	return d, failed
}
