package tictactoe

import (
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/tictactoe-lobby/internal/entity"
)

// Publisher delivers a snapshot to every connection in a room. It must not block.
type Publisher interface {
	PublishSnapshot(roomID string, snapshot entity.Snapshot)
}

// Session owns one game. All mutations go through it and every mutation
// publishes the resulting snapshot while the lock is held, so rooms observe
// snapshots in the order the game changed.
type Session struct {
	logger    *slog.Logger
	publisher Publisher
	onFinish  func(entity.Game)

	mu   sync.Mutex
	game *entity.Game
}

type Option func(*Session)

// WithOnFinish registers a hook called exactly once, after the game finishes.
// It runs under the session lock and must not call back into the session.
func WithOnFinish(fn func(entity.Game)) Option {
	return func(that *Session) {
		that.onFinish = fn
	}
}

func NewSession(logger *slog.Logger, game *entity.Game, publisher Publisher, opts ...Option) *Session {
	session := &Session{
		logger:    logger.With("component", "session", "game_id", game.ID),
		publisher: publisher,
		game:      game,
	}

	for _, opt := range opts {
		opt(session)
	}

	return session
}

func (that *Session) ID() string {
	return that.game.ID
}

func (that *Session) RoomID() string {
	return that.game.RoomID
}

// MakeMove - applies a move if it is legal. Illegal moves are dropped silently;
// either way the room gets the current snapshot.
func (that *Session) MakeMove(playerID string, row, col int) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	wasFinished := that.game.Finished

	applied := true
	if err := that.game.MakeMove(playerID, row, col); err != nil {
		that.logger.Debug("move rejected", "player_id", playerID, "row", row, "col", col, "error", err)
		applied = false
	}

	that.publishLocked(wasFinished)

	return applied
}

// Forfeit - ends the game in favour of the opponent of playerID.
func (that *Session) Forfeit(playerID string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.game.Forfeit(playerID) {
		return false
	}

	that.logger.Info("player forfeited", "player_id", playerID)
	that.publishLocked(false)

	return true
}

// Sync - republishes the current state, used when a connection joins the room.
func (that *Session) Sync() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.publisher.PublishSnapshot(that.game.RoomID, that.game.Snapshot())
}

func (that *Session) Snapshot() entity.Snapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.game.Snapshot()
}

func (that *Session) Finished() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.game.Finished
}

// Game returns a copy of the underlying game.
func (that *Session) Game() entity.Game {
	that.mu.Lock()
	defer that.mu.Unlock()

	return *that.game
}

func (that *Session) publishLocked(wasFinished bool) {
	that.publisher.PublishSnapshot(that.game.RoomID, that.game.Snapshot())

	if !wasFinished && that.game.Finished {
		that.logger.Info("game finished", "reason", that.game.Reason)

		if that.onFinish != nil {
			that.onFinish(*that.game)
		}
	}
}
