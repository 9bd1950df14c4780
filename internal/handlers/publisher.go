package handlers

import (
	"fmt"
	"log"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/aaron/footyhub/internal/config"
	"github.com/aaron/footyhub/internal/models"
	"github.com/aaron/footyhub/internal/render"
)

// Browser event names.
const (
	EventLadder  = "ladder"
	EventGames   = "games"
	EventLive    = "live"
	EventMessage = "message"
	EventLoading = "loading"
)

const (
	clientBufferSize = 32
	maxMessages      = 50
)

// Message is one event queued for a browser client.
type Message struct {
	Event string
	Data  []byte
}

// LadderView is the ladder as last rendered.
type LadderView struct {
	Title string             `json:"title"`
	Rows  []render.LadderRow `json:"rows"`
}

// GamesView is the selected round as last rendered.
type GamesView struct {
	Round int               `json:"round"`
	Cards []render.GameCard `json:"cards"`
	Empty string            `json:"empty,omitempty"`
}

// Publisher implements the render boundary for browser clients. It keeps
// the latest ladder, cards and messages for plain GETs and relays every
// call to the connected event streams.
type Publisher struct {
	season int

	mu       sync.RWMutex
	ladder   LadderView
	games    GamesView
	messages []string
	loading  bool
	clients  map[string]chan Message
}

// NewPublisher creates a publisher for season.
func NewPublisher(season int) *Publisher {
	return &Publisher{
		season:  season,
		ladder:  LadderView{Title: fmt.Sprintf("AFL Ladder %d", season), Rows: []render.LadderRow{}},
		games:   GamesView{Cards: []render.GameCard{}},
		clients: make(map[string]chan Message),
	}
}

func (p *Publisher) RenderLadder(ladder []models.LadderEntry) {
	v := LadderView{Title: fmt.Sprintf("AFL Ladder %d", p.season), Rows: render.LadderRows(ladder)}
	p.mu.Lock()
	p.ladder = v
	p.mu.Unlock()
	p.broadcast(EventLadder, v)
}

func (p *Publisher) RenderGames(games []models.Game, ladder []models.LadderEntry, round int, live map[int]models.Game) {
	v := GamesView{Round: round, Cards: render.Cards(games, ladder, live)}
	if len(v.Cards) == 0 {
		v.Empty = "No games available for this round."
	}
	p.mu.Lock()
	p.games = v
	p.mu.Unlock()
	p.broadcast(EventGames, v)
}

func (p *Publisher) UpdateLiveGamePanel(gameID int, patch models.LiveGameUpdate, kind string) {
	panel := render.Panel(gameID, patch, kind)
	p.mu.Lock()
	for i := range p.games.Cards {
		c := &p.games.Cards[i]
		if c.ID != gameID {
			continue
		}
		if panel.Home != "" {
			c.Home.Score, c.Away.Score = panel.Home, panel.Away
		}
		if panel.Banner != "" {
			c.Banner, c.Time = panel.Banner, panel.Banner
		}
	}
	p.mu.Unlock()
	p.broadcast(EventLive, panel)
}

func (p *Publisher) AppendMessage(msg string) {
	p.mu.Lock()
	p.messages = append(p.messages, msg)
	if len(p.messages) > maxMessages {
		p.messages = p.messages[len(p.messages)-maxMessages:]
	}
	p.mu.Unlock()
	p.broadcast(EventMessage, map[string]string{"message": msg})
}

func (p *Publisher) SetLoading(loading bool) {
	p.mu.Lock()
	p.loading = loading
	p.mu.Unlock()
	p.broadcast(EventLoading, map[string]bool{"loading": loading})
}

// Ladder returns the ladder as last rendered.
func (p *Publisher) Ladder() LadderView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ladder
}

// Games returns the selected round as last rendered.
func (p *Publisher) Games() GamesView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v := p.games
	v.Cards = append([]render.GameCard(nil), p.games.Cards...)
	return v
}

// Messages returns the inline messages, oldest first.
func (p *Publisher) Messages() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.messages...)
}

// Loading reports whether a load is in progress.
func (p *Publisher) Loading() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loading
}

// Subscribe registers a browser client. The returned func removes it.
func (p *Publisher) Subscribe() (string, <-chan Message, func()) {
	id := uuid.NewString()
	ch := make(chan Message, clientBufferSize)
	p.mu.Lock()
	p.clients[id] = ch
	n := len(p.clients)
	p.mu.Unlock()
	if config.Debug() {
		log.Printf("publisher: client %s subscribed, %d connected", id[:8], n)
	}
	return id, ch, func() {
		p.mu.Lock()
		delete(p.clients, id)
		n := len(p.clients)
		p.mu.Unlock()
		if config.Debug() {
			log.Printf("publisher: client %s left, %d connected", id[:8], n)
		}
	}
}

// ClientCount returns the number of connected browser clients.
func (p *Publisher) ClientCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}

func (p *Publisher) broadcast(event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("publisher: encode %s: %v", event, err)
		return
	}

	p.mu.RLock()
	clients := make([]chan Message, 0, len(p.clients))
	for _, ch := range p.clients {
		clients = append(clients, ch)
	}
	p.mu.RUnlock()

	// Callers hold the coordinator lock, so a client whose buffer is full
	// misses this event rather than stalling live updates.
	msg := Message{Event: event, Data: data}
	dropped := 0
	for _, ch := range clients {
		select {
		case ch <- msg:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		log.Printf("publisher: %s dropped for %d slow clients", event, dropped)
	} else if config.Debug() {
		log.Printf("publisher: %s sent to %d clients", event, len(clients))
	}
}
