package websocket

import (
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/tictactoe-lobby/internal/entity"
)

// Hub tracks live clients by session token, game rooms and the lobby group.
// Its lock is never held while calling out of the package.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]struct{}
	roomOf  map[string]string
	lobby   map[string]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger.With("component", "hub"),
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]struct{}),
		roomOf:  make(map[string]string),
		lobby:   make(map[string]struct{}),
	}
}

// Register - makes c the live connection for its token, closing any older one.
func (that *Hub) Register(c *Client) {
	that.mu.Lock()
	old := that.clients[c.token]
	that.clients[c.token] = c
	that.mu.Unlock()

	if old != nil && old != c {
		that.logger.Info("connection replaced", "token", shortToken(c.token))
		old.close()
	}
}

// Unregister - reports whether c was still the live connection for its token.
func (that *Hub) Unregister(c *Client) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.clients[c.token] != c {
		return false
	}

	delete(that.clients, c.token)

	return true
}

// Send - delivers data to a single token.
func (that *Hub) Send(token string, data []byte) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	that.sendLocked(token, data)
}

func (that *Hub) PublishSnapshot(roomID string, snapshot entity.Snapshot) {
	data, err := encode(ActionUpdate, snapshot)
	if err != nil {
		that.logger.Error("failed to encode snapshot", "room", roomID, "error", err)
		return
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	for token := range that.rooms[roomID] {
		that.sendLocked(token, data)
	}
}

func (that *Hub) Join(token string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.lobby[token] = struct{}{}
}

func (that *Hub) Leave(token string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.lobby, token)
}

// Announce - tells the lobby group and extra that roomID started, then dissolves the group.
func (that *Hub) Announce(roomID string, extra ...string) {
	data, err := encode(ActionStarted, StartedPayload{Room: roomID})
	if err != nil {
		that.logger.Error("failed to encode start", "room", roomID, "error", err)
		return
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	recipients := make(map[string]struct{}, len(that.lobby)+len(extra))
	for token := range that.lobby {
		recipients[token] = struct{}{}
	}
	for _, token := range extra {
		recipients[token] = struct{}{}
	}

	for token := range recipients {
		that.sendLocked(token, data)
	}

	that.lobby = make(map[string]struct{})
}

// Subscribe - moves token into roomID, leaving any previous room.
func (that *Hub) Subscribe(token, roomID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.unsubscribeLocked(token)

	members, ok := that.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		that.rooms[roomID] = members
	}

	members[token] = struct{}{}
	that.roomOf[token] = roomID
}

func (that *Hub) Unsubscribe(token string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.unsubscribeLocked(token)
}

func (that *Hub) unsubscribeLocked(token string) {
	roomID, ok := that.roomOf[token]
	if !ok {
		return
	}

	delete(that.roomOf, token)

	members := that.rooms[roomID]
	delete(members, token)
	if len(members) == 0 {
		delete(that.rooms, roomID)
	}
}

// sendLocked never blocks. A client whose queue is full is closed.
func (that *Hub) sendLocked(token string, data []byte) {
	c, ok := that.clients[token]
	if !ok {
		return
	}

	if !c.enqueue(data) {
		that.logger.Warn("client too slow, closing", "token", shortToken(token))
		c.close()
	}
}

type HubStats struct {
	Clients int
	Rooms   int
	Lobby   int
}

func (that *Hub) Stats() HubStats {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return HubStats{
		Clients: len(that.clients),
		Rooms:   len(that.rooms),
		Lobby:   len(that.lobby),
	}
}

// Online - number of live connections.
func (that *Hub) Online() int {
	return that.Stats().Clients
}

func shortToken(token string) string {
	if len(token) <= 8 {
		return token
	}

	return token[:8]
}
