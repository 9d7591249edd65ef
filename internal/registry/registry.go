package registry

import (
	"sync"

	"github.com/rocketscienceinc/tictactoe-lobby/internal/entity"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/tictactoe"
)

// ConnectionState is what the server remembers about a session token.
type ConnectionState struct {
	Token   string
	Player  *entity.Player
	Game    *tictactoe.Session
	InLobby bool
}

// LoggedIn reports whether a player is bound to the token.
func (s ConnectionState) LoggedIn() bool {
	return s.Player != nil
}

// Registry maps session tokens to their state. States live until Invalidate.
type Registry struct {
	mu       sync.RWMutex
	states   map[string]*ConnectionState
	byPlayer map[string]string
}

func New() *Registry {
	return &Registry{
		states:   make(map[string]*ConnectionState),
		byPlayer: make(map[string]string),
	}
}

// Resolve - returns the state for token, creating an empty one if needed.
func (that *Registry) Resolve(token string) ConnectionState {
	that.mu.Lock()
	defer that.mu.Unlock()

	return *that.resolveLocked(token)
}

func (that *Registry) Get(token string) (ConnectionState, bool) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	state, ok := that.states[token]
	if !ok {
		return ConnectionState{}, false
	}

	return *state, true
}

// GetByPlayer returns the state of the token currently bound to playerID.
func (that *Registry) GetByPlayer(playerID string) (ConnectionState, bool) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	token, ok := that.byPlayer[playerID]
	if !ok {
		return ConnectionState{}, false
	}

	return *that.states[token], true
}

// Bind - associates player with token. A previous player on the token is forgotten
// together with their game.
func (that *Registry) Bind(token string, player *entity.Player) {
	that.mu.Lock()
	defer that.mu.Unlock()

	state := that.resolveLocked(token)
	if state.Player != nil {
		delete(that.byPlayer, state.Player.ID)
	}

	state.Player = player
	state.Game = nil
	state.InLobby = false
	that.byPlayer[player.ID] = token
}

// AttachGameByPlayer - attaches session to whichever token playerID is bound to.
func (that *Registry) AttachGameByPlayer(playerID string, session *tictactoe.Session) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	token, ok := that.byPlayer[playerID]
	if !ok {
		return false
	}

	state := that.states[token]
	state.Game = session
	state.InLobby = false

	return true
}

func (that *Registry) SetLobby(token string, inLobby bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if state, ok := that.states[token]; ok {
		state.InLobby = inLobby
	}
}

// Invalidate - forgets the token and its player binding.
func (that *Registry) Invalidate(token string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	state, ok := that.states[token]
	if !ok {
		return
	}

	if state.Player != nil {
		delete(that.byPlayer, state.Player.ID)
	}

	delete(that.states, token)
}

func (that *Registry) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.states)
}

func (that *Registry) resolveLocked(token string) *ConnectionState {
	state, ok := that.states[token]
	if !ok {
		state = &ConnectionState{Token: token}
		that.states[token] = state
	}

	return state
}
