package apperror

import "errors"

var (
	ErrOutOfBounds   = errors.New("cell is out of bounds")
	ErrCellOccupied  = errors.New("cell is already occupied")
	ErrInvalidMark   = errors.New("invalid mark")
	ErrNotYourTurn   = errors.New("it's not your turn")
	ErrGameFinished  = errors.New("game is already finished")
	ErrNameCollision = errors.New("player with this name is already waiting")
	ErrEmptyName     = errors.New("player name is empty")
	ErrNotLoggedIn   = errors.New("player is not logged in")
	ErrNoActiveGame  = errors.New("no active games")
	ErrNotFound      = errors.New("not found")
)
