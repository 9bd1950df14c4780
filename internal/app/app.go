// Package app runs the startup sequence and owns live stream attachment.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/aaron/footyhub/internal/fetcher"
	"github.com/aaron/footyhub/internal/live"
	"github.com/aaron/footyhub/internal/models"
	"github.com/aaron/footyhub/internal/view"
)

// ErrUnknownRound is returned by SelectRound for a round not in the index.
var ErrUnknownRound = errors.New("unknown round")

// Live attachment modes.
const (
	ModeSlate = "slate"
	ModeGame  = "game"
)

// RoundResolver yields the current round number.
type RoundResolver interface {
	Resolve(ctx context.Context) (int, error)
}

// Loader fetches the data sets.
type Loader interface {
	LoadAll(ctx context.Context, round int, parallel bool) (fetcher.DataSets, map[fetcher.DataSet]error)
	LiveGames(ctx context.Context) ([]models.Game, error)
}

// Clearer wipes the persistent cache.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Options configures the app.
type Options struct {
	Parallel bool
	Mode     string
	Preview  bool
	Stream   live.Options
	// Refresh is the live-set poll interval in game mode.
	Refresh time.Duration

	Source   live.Source
	SlateURL string
	// PreviewURL is opened in place of SlateURL in preview mode.
	PreviewURL string
	GameURL    func(gameID int) string
}

// App wires the resolver, the fetcher, the coordinator and the live streams.
type App struct {
	resolver RoundResolver
	loader   Loader
	cache    Clearer
	coord    *view.Coordinator
	renderer view.Renderer
	opts     Options

	// ctx bounds every stream; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	liveRound int
	attached  bool
	slate     *live.Stream
	manager   *live.Manager
	stopPoll  context.CancelFunc
	pollDone  chan struct{}
}

// New creates an app. The coordinator must render through renderer.
func New(resolver RoundResolver, loader Loader, c Clearer, coord *view.Coordinator, renderer view.Renderer, opts Options) *App {
	if opts.Mode != ModeGame || opts.Preview {
		opts.Mode = ModeSlate
	}
	if opts.Refresh <= 0 {
		opts.Refresh = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		resolver: resolver,
		loader:   loader,
		cache:    c,
		coord:    coord,
		renderer: renderer,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Coordinator returns the view coordinator.
func (a *App) Coordinator() *view.Coordinator { return a.coord }

// LiveRound returns the round resolved at startup.
func (a *App) LiveRound() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.liveRound
}

// Start resolves the round, loads every data set, renders and attaches the
// live streams. A failed data set becomes an inline message and the rest
// still render; a failed round resolution aborts with one message.
func (a *App) Start(ctx context.Context) error {
	a.renderer.SetLoading(true)
	defer a.renderer.SetLoading(false)

	a.detachLive()

	round, err := a.resolver.Resolve(ctx)
	if err != nil {
		a.renderer.AppendMessage(fmt.Sprintf("Error fetching current round: %v", err))
		return err
	}
	log.Printf("app: current round is %d", round)

	data, failed := a.loader.LoadAll(ctx, round, a.opts.Parallel)
	for _, set := range []fetcher.DataSet{fetcher.SetLadder, fetcher.SetPastGames, fetcher.SetFutureGames, fetcher.SetCurrentRound} {
		if err, ok := failed[set]; ok {
			a.renderer.AppendMessage(fmt.Sprintf("Error fetching %s: %v", set, err))
		}
	}

	a.coord.SetInitialData(round, data.AllGames(), data.Ladder)
	a.coord.SetRounds(data.Rounds)
	a.coord.RenderLadder()
	a.coord.RenderView()

	a.mu.Lock()
	a.liveRound = round
	a.mu.Unlock()

	a.attachLive()
	return nil
}

// SelectRound switches the displayed round. Live streams are closed when
// moving away from the live round and reopened when coming back.
func (a *App) SelectRound(ctx context.Context, round int) error {
	if !a.coord.HasRound(round) {
		return fmt.Errorf("%w: %d", ErrUnknownRound, round)
	}
	a.coord.SetInitialData(round, a.coord.Games(), a.coord.Ladder())

	if round == a.LiveRound() {
		a.coord.RenderView()
		a.attachLive()
	} else {
		a.detachLive()
		a.coord.RenderView()
	}
	return nil
}

// Repair closes the streams, clears the cache store and reloads.
func (a *App) Repair(ctx context.Context) error {
	a.detachLive()
	if err := a.cache.Clear(ctx); err != nil {
		a.renderer.AppendMessage(fmt.Sprintf("Error clearing cache: %v", err))
		return err
	}
	log.Printf("app: cache cleared")
	return a.Start(ctx)
}

// Close tears down every stream.
func (a *App) Close() {
	a.detachLive()
	a.cancel()
}

// Attached reports whether live streams are attached.
func (a *App) Attached() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attached
}

func (a *App) handlers() live.Handlers {
	h := live.Handlers{
		OnScore: func(u models.LiveGameUpdate) {
			a.coord.ApplyLivePatch(u.GameID, u, live.EventScore)
		},
		OnTimeStr: func(u models.LiveGameUpdate) {
			a.coord.ApplyLivePatch(u.GameID, u, live.EventTimeStr)
		},
		OnFailure: func(err *live.StreamError) {
			a.renderer.AppendMessage(err.Error())
		},
	}
	// Per-game channels only ever describe their own game, so the live set
	// comes from the poll instead.
	if a.opts.Mode == ModeSlate {
		h.OnGames = a.coord.ApplyLiveSnapshot
	}
	return h
}

func (a *App) attachLive() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.attached || a.ctx.Err() != nil {
		return
	}
	a.attached = true

	if a.opts.Mode == ModeSlate {
		source, url := a.opts.Source, a.opts.SlateURL
		if a.opts.Preview {
			source = &live.PreviewSource{Round: a.liveRound}
			url = a.opts.PreviewURL
		}
		a.slate = live.NewStream(url, 0, source, a.handlers(), a.opts.Stream)
		a.slate.Start(a.ctx)
		log.Printf("app: following %s", url)
		return
	}

	a.manager = live.NewManager(a.opts.Source, a.opts.GameURL, a.handlers(), a.opts.Stream)
	ctx, stop := context.WithCancel(a.ctx)
	a.stopPoll = stop
	a.pollDone = make(chan struct{})
	go a.pollLive(ctx, a.manager, a.pollDone)
}

// pollLive refreshes the live set and keeps one stream per live game.
func (a *App) pollLive(ctx context.Context, m *live.Manager, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(a.opts.Refresh)
	defer ticker.Stop()
	for {
		games, err := a.loader.LiveGames(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("app: live games: %v", err)
		} else {
			ids := make([]int, 0, len(games))
			for _, g := range games {
				ids = append(ids, g.ID)
			}
			a.coord.ApplyLiveSnapshot(games)
			m.Sync(ctx, ids)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *App) detachLive() {
	a.mu.Lock()
	if !a.attached {
		a.mu.Unlock()
		return
	}
	a.attached = false
	slate, manager := a.slate, a.manager
	stop, done := a.stopPoll, a.pollDone
	a.slate, a.manager, a.stopPoll, a.pollDone = nil, nil, nil, nil
	a.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
	if slate != nil {
		slate.Close()
	}
	if manager != nil {
		manager.CloseAll()
	}
	a.coord.ClearLive()
	log.Printf("app: live streams closed")
}

// Rounds returns the rounds index.
func (a *App) Rounds() []models.RoundLabel { return a.coord.Rounds() }
