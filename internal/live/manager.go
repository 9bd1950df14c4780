package live

import (
	"context"
	"log"
	"sort"
	"sync"
)

// Manager keeps exactly one stream per live game id in per-game mode.
type Manager struct {
	source   Source
	urlFor   func(gameID int) string
	handlers Handlers
	opts     Options

	mu      sync.Mutex
	streams map[int]*Stream
	// failed holds games whose stream gave up; they are not reopened
	// until they leave the live set or CloseAll resets the manager.
	failed map[int]bool
}

// NewManager creates a manager opening per-game channels at urlFor(id).
func NewManager(source Source, urlFor func(gameID int) string, h Handlers, opts Options) *Manager {
	return &Manager{
		source:   source,
		urlFor:   urlFor,
		handlers: h,
		opts:     opts,
		streams:  make(map[int]*Stream),
		failed:   make(map[int]bool),
	}
}

// Sync opens a stream for every id in live that has none and closes the
// streams of games no longer in live.
func (m *Manager) Sync(ctx context.Context, live []int) {
	want := make(map[int]bool, len(live))
	for _, id := range live {
		want[id] = true
	}

	m.mu.Lock()
	var stale []*Stream
	for id, s := range m.streams {
		if !want[id] {
			stale = append(stale, s)
			delete(m.streams, id)
		}
	}
	for id := range m.failed {
		if !want[id] {
			delete(m.failed, id)
		}
	}
	for id := range want {
		if _, ok := m.streams[id]; ok || m.failed[id] {
			continue
		}
		s := m.newStream(id)
		m.streams[id] = s
		log.Printf("live: following game %d", id)
		s.Start(ctx)
	}
	m.mu.Unlock()

	for _, s := range stale {
		log.Printf("live: game %d left the live set, closing stream", s.GameID())
		s.Close()
	}
}

// newStream creates the stream for id.
func (m *Manager) newStream(id int) *Stream {
	var s *Stream
	h := m.handlers
	onFailure := m.handlers.OnFailure
	h.OnFailure = func(err *StreamError) {
		m.mu.Lock()
		if m.streams[id] == s {
			delete(m.streams, id)
			m.failed[id] = true
		}
		m.mu.Unlock()
		if onFailure != nil {
			onFailure(err)
		}
	}
	s = NewStream(m.urlFor(id), id, m.source, h, m.opts)
	return s
}

// CloseAll closes every stream.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	streams := m.streams
	m.streams = make(map[int]*Stream)
	m.failed = make(map[int]bool)
	m.mu.Unlock()

	for _, s := range streams {
		s.Close()
	}
}

// GameIDs returns the ids with an open or pending stream, sorted.
func (m *Manager) GameIDs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int, 0, len(m.streams))
	for id := range m.streams {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Stream returns the stream following id.
func (m *Manager) Stream(id int) (*Stream, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[id]
	return s, ok
}
