// Package live maintains push-event connections for games in progress and
// decodes their score and clock updates.
package live

import "fmt"

// Event names sent on the Squiggle push channels.
const (
	EventGames   = "games"
	EventScore   = "score"
	EventTimeStr = "timestr"
)

// State is a connection's position in its lifecycle.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateError
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateError:
		return "error"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StreamError is the terminal failure of a connection whose retry budget
// is spent.
type StreamError struct {
	URL      string
	GameID   int
	Attempts int
	Err      error
}

func (e *StreamError) Error() string {
	if e.GameID != 0 {
		return fmt.Sprintf("live updates for game %d unavailable after %d attempts: %v", e.GameID, e.Attempts, e.Err)
	}
	return fmt.Sprintf("live updates unavailable after %d attempts: %v", e.Attempts, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }
