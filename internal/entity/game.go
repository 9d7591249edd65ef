package entity

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/apperror"
)

const (
	ReasonWin     = "win"
	ReasonDraw    = "draw"
	ReasonForfeit = "forfeit"
)

// Picker returns a value in [0, n). It decides who moves first.
type Picker func(n int) int

// DefaultPicker is a uniform choice.
func DefaultPicker(n int) int {
	return rand.IntN(n) //nolint: gosec // it's ok
}

// Game is a single two-player match. It is not safe for concurrent use,
// tictactoe.Session serializes access to it.
type Game struct {
	ID       string
	RoomID   string
	PlayerA  *Player
	PlayerB  *Player
	Board    Board
	First    *Player
	Active   *Player
	Winner   *Player
	Finished bool
	Reason   string

	StartedAt  time.Time
	FinishedAt time.Time
}

// NewGame - pairs a and b. The picked player moves first and plays X.
func NewGame(a, b *Player, pick Picker) *Game {
	if pick == nil {
		pick = DefaultPicker
	}

	first := a
	if pick(2) == 1 {
		first = b
	}

	return &Game{
		ID:        uuid.NewString(),
		RoomID:    uuid.NewString(),
		PlayerA:   a,
		PlayerB:   b,
		First:     first,
		Active:    first,
		StartedAt: time.Now().UTC(),
	}
}

func (that *Game) Has(playerID string) bool {
	return that.PlayerA.ID == playerID || that.PlayerB.ID == playerID
}

// Opponent returns the other player, or nil if playerID is not in the game.
func (that *Game) Opponent(playerID string) *Player {
	switch playerID {
	case that.PlayerA.ID:
		return that.PlayerB
	case that.PlayerB.ID:
		return that.PlayerA
	default:
		return nil
	}
}

func (that *Game) MarkOf(playerID string) Mark {
	if !that.Has(playerID) {
		return Empty
	}

	if that.First.ID == playerID {
		return MarkX
	}

	return MarkO
}

// MakeMove - applies the active player's move. Any error leaves the game untouched.
func (that *Game) MakeMove(playerID string, row, col int) error {
	if that.Finished {
		return apperror.ErrGameFinished
	}

	if that.Active.ID != playerID {
		return apperror.ErrNotYourTurn
	}

	if err := that.Board.Place(row, col, that.MarkOf(playerID)); err != nil {
		return fmt.Errorf("failed to place mark: %w", err)
	}

	switch outcome := that.Board.CheckOutcome(); outcome.Kind {
	case Win:
		that.finish(that.Active, ReasonWin)
	case Draw:
		that.finish(nil, ReasonDraw)
	default:
		that.Active = that.Opponent(playerID)
	}

	return nil
}

// Forfeit - the leaving player loses. Returns false if nothing changed.
func (that *Game) Forfeit(playerID string) bool {
	if that.Finished || !that.Has(playerID) {
		return false
	}

	that.finish(that.Opponent(playerID), ReasonForfeit)

	return true
}

func (that *Game) finish(winner *Player, reason string) {
	that.Winner = winner
	that.Finished = true
	that.Reason = reason
	that.FinishedAt = time.Now().UTC()
}

func (that *Game) Snapshot() Snapshot {
	snapshot := Snapshot{
		Field:    that.Board.Rows(),
		GameOver: that.Finished,
	}

	if !that.Finished {
		turn := that.Active.Name
		snapshot.Turn = &turn
	}

	if that.Winner != nil {
		winner := that.Winner.Name
		snapshot.Winner = &winner
	}

	return snapshot
}
