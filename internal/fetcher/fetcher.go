// Package fetcher retrieves each logical data set, consulting the expiring
// cache before going to the network.
package fetcher

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aaron/footyhub/internal/cache"
	"github.com/aaron/footyhub/internal/config"
	"github.com/aaron/footyhub/internal/models"
	"github.com/aaron/footyhub/internal/squiggle"
)

// GamesAPI is the subset of the Squiggle client the fetcher needs.
type GamesAPI interface {
	Games(ctx context.Context, params ...squiggle.Param) ([]models.Game, error)
	Standings(ctx context.Context, year int) ([]models.LadderEntry, error)
	LiveGames(ctx context.Context) ([]models.Game, error)
}

// Fetcher exposes one operation per data set.
type Fetcher struct {
	cache  *cache.Cache
	api    GamesAPI
	season int
	group  singleflight.Group
}

// New creates a fetcher for the given season.
func New(c *cache.Cache, api GamesAPI, season int) *Fetcher {
	return &Fetcher{cache: c, api: api, season: season}
}

// load returns the cached value for key when fresh, otherwise fetches it.
// Concurrent misses for the same key share one request, which outlives any
// single caller's cancellation. A fetched value is stored unless keep
// reports false; failures are never stored.
func load[T any](ctx context.Context, f *Fetcher, key string, ttl time.Duration, fetch func(context.Context) (T, error), keep func(T) bool) (T, error) {
	if v, ok := cache.GetJSON[T](ctx, f.cache, key, ttl); ok {
		if config.Debug() {
			log.Printf("fetcher: using cached %s", key)
		}
		return v, nil
	}

	shared := context.WithoutCancel(ctx)
	v, err, _ := f.group.Do(key, func() (interface{}, error) {
		return fetch(shared)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out := v.(T)

	if keep == nil || keep(out) {
		if err := cache.PutJSON(ctx, f.cache, key, out); err != nil {
			log.Printf("fetcher: store %s: %v", key, err)
		}
	} else if config.Debug() {
		log.Printf("fetcher: %s not cached", key)
	}
	return out, nil
}

// Ladder returns the standings, cached for an hour.
func (f *Fetcher) Ladder(ctx context.Context) ([]models.LadderEntry, error) {
	return load(ctx, f, config.LadderCacheKey, config.LadderTTL, func(ctx context.Context) ([]models.LadderEntry, error) {
		return f.api.Standings(ctx, f.season)
	}, nil)
}

// PastGames returns the season's completed games, cached near-permanently.
func (f *Fetcher) PastGames(ctx context.Context) ([]models.Game, error) {
	return load(ctx, f, config.PastGamesCacheKey, config.PastGamesTTL, func(ctx context.Context) ([]models.Game, error) {
		return f.api.Games(ctx, squiggle.Year(f.season), squiggle.Completed())
	}, nil)
}

// FutureGames returns the season's games that have not finished, cached for a week.
func (f *Fetcher) FutureGames(ctx context.Context) ([]models.Game, error) {
	return load(ctx, f, config.FutureGamesCacheKey, config.FutureGamesTTL, func(ctx context.Context) ([]models.Game, error) {
		return f.api.Games(ctx, squiggle.Year(f.season), squiggle.Incomplete())
	}, nil)
}

// CurrentRoundGames returns the games of round. The result is only cached
// once every game in the round is complete; a round still in progress is
// always fetched fresh.
func (f *Fetcher) CurrentRoundGames(ctx context.Context, round int) ([]models.Game, error) {
	key := fmt.Sprintf("%s:%d", config.CurrentRoundCacheKey, round)
	return load(ctx, f, key, config.CurrentRoundTTL, func(ctx context.Context) ([]models.Game, error) {
		return f.api.Games(ctx, squiggle.Year(f.season), squiggle.Round(round))
	}, roundFinished)
}

// LiveGames returns the games in progress. Never cached.
func (f *Fetcher) LiveGames(ctx context.Context) ([]models.Game, error) {
	return f.api.LiveGames(ctx)
}

func roundFinished(games []models.Game) bool {
	if len(games) == 0 {
		return false
	}
	for _, g := range games {
		if !g.IsComplete() {
			return false
		}
	}
	return true
}

// RoundsIndex returns the sorted distinct rounds across collections. The
// index is computed once, stored without expiry, and reused until the
// store is cleared; later collections do not update it. With complete
// false some collection failed to load, so the index is built for this
// call only and not stored.
func (f *Fetcher) RoundsIndex(ctx context.Context, complete bool, collections ...[]models.Game) []models.RoundLabel {
	if idx, ok := cache.GetJSON[[]models.RoundLabel](ctx, f.cache, config.RoundsIndexCacheKey, cache.Forever); ok {
		return idx
	}
	idx := BuildRoundsIndex(collections...)
	if len(idx) == 0 {
		return idx
	}
	if !complete {
		log.Printf("fetcher: rounds index built from partial data, not stored")
		return idx
	}
	if err := cache.PutJSON(ctx, f.cache, config.RoundsIndexCacheKey, idx); err != nil {
		log.Printf("fetcher: store rounds index: %v", err)
	}
	return idx
}

// BuildRoundsIndex unions the round numbers of collections, labelling each
// with the first round name seen.
func BuildRoundsIndex(collections ...[]models.Game) []models.RoundLabel {
	names := make(map[int]string)
	for _, games := range collections {
		for _, g := range games {
			if name, seen := names[g.Round]; !seen || name == "" {
				names[g.Round] = g.RoundName
			}
		}
	}
	out := make([]models.RoundLabel, 0, len(names))
	for n, name := range names {
		if name == "" {
			name = fmt.Sprintf("Round %d", n)
		}
		out = append(out, models.RoundLabel{Number: n, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}
