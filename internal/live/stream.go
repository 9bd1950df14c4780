package live

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/aaron/footyhub/internal/config"
	"github.com/aaron/footyhub/internal/metrics"
	"github.com/aaron/footyhub/internal/models"
)

// Handlers receive decoded events. Streams never touch shared state
// themselves; everything goes through these callbacks.
type Handlers struct {
	OnGames   func(games []models.Game)
	OnScore   func(u models.LiveGameUpdate)
	OnTimeStr func(u models.LiveGameUpdate)
	// OnState observes every transition. Optional.
	OnState func(gameID int, s State)
	// OnFailure is called once when the retry budget is spent.
	OnFailure func(err *StreamError)
}

// Options bound reconnect behaviour.
type Options struct {
	MaxRetries int
	RetryDelay time.Duration
}

// Stream is one push-channel connection. Its lifecycle is
// Connecting -> Open -> (Error -> Reconnecting | Closed).
type Stream struct {
	id       string
	url      string
	gameID   int
	source   Source
	handlers Handlers
	opts     Options

	mu       sync.Mutex
	state    State
	attempts int
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewStream creates a stream for url. gameID is 0 for the whole-slate channel.
func NewStream(url string, gameID int, source Source, h Handlers, opts Options) *Stream {
	return &Stream{
		id:       uuid.NewString(),
		url:      url,
		gameID:   gameID,
		source:   source,
		handlers: h,
		opts:     opts,
		state:    StateConnecting,
	}
}

// ID returns the stream's unique id.
func (s *Stream) ID() string { return s.id }

// GameID returns the game the stream follows, or 0 for the slate channel.
func (s *Stream) GameID() int { return s.gameID }

// State returns the current state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attempts returns how many reconnects have been used since the stream
// last delivered an event.
func (s *Stream) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Start opens the connection in the background. Calling Start twice is a no-op.
func (s *Stream) Start(ctx context.Context) {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
}

// Close shuts the connection and waits for the reader to stop.
func (s *Stream) Close() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		s.setState(StateClosed)
		return
	}
	cancel()
	<-done
}

// Done is closed once the stream has stopped for good.
func (s *Stream) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Stream) setState(st State) {
	s.mu.Lock()
	if s.state == st {
		s.mu.Unlock()
		return
	}
	s.state = st
	s.mu.Unlock()

	if config.Debug() {
		log.Printf("live: stream %s (game %d) %s", s.id[:8], s.gameID, st)
	}
	if s.handlers.OnState != nil {
		s.handlers.OnState(s.gameID, st)
	}
}

func (s *Stream) run(ctx context.Context) {
	defer close(s.done)
	defer s.setState(StateClosed)

	for {
		err := s.connect(ctx)
		if ctx.Err() != nil {
			return
		}
		s.setState(StateError)

		s.mu.Lock()
		s.attempts++
		attempts := s.attempts
		s.mu.Unlock()

		if attempts > s.opts.MaxRetries {
			log.Printf("live: giving up on %s after %d attempts: %v", s.url, s.opts.MaxRetries, err)
			metrics.StreamFailures.Add(1)
			if s.handlers.OnFailure != nil {
				s.handlers.OnFailure(&StreamError{URL: s.url, GameID: s.gameID, Attempts: s.opts.MaxRetries, Err: err})
			}
			return
		}

		log.Printf("live: %s failed (%v), reconnect %d/%d", s.url, err, attempts, s.opts.MaxRetries)
		metrics.StreamReconnects.Add(1)
		s.setState(StateReconnecting)

		timer := time.NewTimer(s.opts.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// connect opens the channel and reads it until it fails. It always returns
// a non-nil error; a clean end of stream counts as a failure to reconnect from.
func (s *Stream) connect(ctx context.Context) error {
	if s.State() != StateReconnecting {
		s.setState(StateConnecting)
	}
	body, err := s.source.Open(ctx, s.url)
	if err != nil {
		return err
	}
	defer func() {
		if err := body.Close(); err != nil && config.Debug() {
			log.Printf("live: close %s: %v", s.url, err)
		}
	}()
	s.setState(StateOpen)

	// Unblock the reader when the stream is closed.
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stop()

	dec := NewDecoder(body)
	delivered := false
	for {
		ev, err := dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		if !delivered {
			// The connection is healthy again; a later drop starts a
			// fresh retry budget.
			delivered = true
			s.mu.Lock()
			s.attempts = 0
			s.mu.Unlock()
		}
		s.dispatch(ev)
	}
}

func (s *Stream) dispatch(ev Event) {
	switch ev.Name {
	case EventGames:
		games, err := decodeGames([]byte(ev.Data))
		if err != nil {
			log.Printf("live: bad %s event: %v", ev.Name, err)
			return
		}
		if s.handlers.OnGames != nil {
			s.handlers.OnGames(games)
		}
	case EventScore, EventTimeStr:
		var u models.LiveGameUpdate
		if err := json.Unmarshal([]byte(ev.Data), &u); err != nil {
			log.Printf("live: bad %s event: %v", ev.Name, err)
			return
		}
		if u.GameID == 0 {
			u.GameID = s.gameID
		}
		if ev.Name == EventTimeStr {
			u.Score = nil
			if s.handlers.OnTimeStr != nil {
				s.handlers.OnTimeStr(u)
			}
			return
		}
		if s.handlers.OnScore != nil {
			s.handlers.OnScore(u)
		}
	default:
		if config.Debug() {
			log.Printf("live: ignoring %q event", ev.Name)
		}
	}
}

// decodeGames accepts either a bare array of games or an object wrapping one.
func decodeGames(data []byte) ([]models.Game, error) {
	if strings.HasPrefix(strings.TrimSpace(string(data)), "[") {
		var games []models.Game
		err := json.Unmarshal(data, &games)
		return games, err
	}
	var wrapped struct {
		Games []models.Game `json:"games"`
	}
	err := json.Unmarshal(data, &wrapped)
	return wrapped.Games, err
}
