package lobby

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/tictactoe-lobby/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/entity"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/tictactoe"
)

type Status int

const (
	// Waiting - the player holds the lobby slot.
	Waiting Status = iota + 1
	// Paired - a new game was created with the waiting player.
	Paired
	// Resumed - the player already has an unfinished game.
	Resumed
)

func (s Status) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Paired:
		return "paired"
	case Resumed:
		return "resumed"
	default:
		return "unknown"
	}
}

type Result struct {
	Status  Status
	Session *tictactoe.Session
}

// CollisionError is returned when someone else with the same name is waiting.
type CollisionError struct {
	WaitingName string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("%s: %q", apperror.ErrNameCollision, e.WaitingName)
}

func (e *CollisionError) Unwrap() error {
	return apperror.ErrNameCollision
}

// Sessions creates and looks up games. Both methods are called with the
// matchmaker lock held.
type Sessions interface {
	Create(a, b *entity.Player) *tictactoe.Session
	Active(playerID string) *tictactoe.Session
}

// Group is the set of connections waiting in the lobby. Calls happen under
// the matchmaker lock, implementations must not block.
type Group interface {
	Join(token string)
	Leave(token string)
	// Announce tells every member and the extra tokens that roomID started, then empties the group.
	Announce(roomID string, extra ...string)
}

// Matchmaker pairs players first come first served. There is at most one waiting player.
type Matchmaker struct {
	logger   *slog.Logger
	sessions Sessions
	group    Group

	mu           sync.Mutex
	waiting      *entity.Player
	waitingToken string
}

func NewMatchmaker(logger *slog.Logger, sessions Sessions, group Group) *Matchmaker {
	return &Matchmaker{
		logger:   logger.With("component", "matchmaker"),
		sessions: sessions,
		group:    group,
	}
}

// EnterLobby - puts player into the lobby or pairs them with whoever is waiting.
func (that *Matchmaker) EnterLobby(player *entity.Player, token string) (Result, error) {
	log := that.logger.With("method", "EnterLobby", "player_id", player.ID)

	that.mu.Lock()
	defer that.mu.Unlock()

	if session := that.sessions.Active(player.ID); session != nil {
		log.Debug("player already in game", "game_id", session.ID())
		return Result{Status: Resumed, Session: session}, nil
	}

	switch {
	case that.waiting == nil:
		that.waiting = player
		that.waitingToken = token
		that.group.Join(token)

		log.Info("player is waiting")

		return Result{Status: Waiting}, nil

	case that.waiting.ID == player.ID:
		if that.waitingToken != token {
			that.group.Leave(that.waitingToken)
			that.waitingToken = token
		}
		that.group.Join(token)

		return Result{Status: Waiting}, nil

	case that.waiting.Name == player.Name:
		log.Info("name collision", "name", player.Name)
		return Result{}, &CollisionError{WaitingName: that.waiting.Name}
	}

	session := that.sessions.Create(that.waiting, player)
	that.group.Announce(session.RoomID(), token)

	log.Info("players paired", "game_id", session.ID(), "opponent_id", that.waiting.ID)

	that.waiting = nil
	that.waitingToken = ""

	return Result{Status: Paired, Session: session}, nil
}

// Leave - removes the connection from the lobby group and frees the slot if
// playerID holds it.
func (that *Matchmaker) Leave(playerID, token string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.group.Leave(token)

	if that.waiting == nil || that.waiting.ID != playerID {
		return false
	}

	that.waiting = nil
	that.waitingToken = ""

	that.logger.Info("waiting player left", "player_id", playerID)

	return true
}

// Waiting returns a copy of the waiting player, or nil.
func (that *Matchmaker) Waiting() *entity.Player {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.waiting == nil {
		return nil
	}

	player := *that.waiting

	return &player
}
