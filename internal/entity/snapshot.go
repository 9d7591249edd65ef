package entity

import "time"

// Snapshot is what clients see of a game. Turn and Winner are null when not applicable.
type Snapshot struct {
	Field    [BoardSize]string `json:"field"`
	Turn     *string           `json:"turn"`
	GameOver bool              `json:"gameOver"`
	Winner   *string           `json:"winner"`
}

// GameRecord is the archived form of a finished game.
type GameRecord struct {
	ID         string            `json:"id"`
	RoomID     string            `json:"room_id"`
	Players    [2]Player         `json:"players"`
	XPlayerID  string            `json:"x_player_id"`
	Field      [BoardSize]string `json:"field"`
	WinnerID   string            `json:"winner_id,omitempty"`
	Reason     string            `json:"reason"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

func (that *Game) Record() GameRecord {
	record := GameRecord{
		ID:         that.ID,
		RoomID:     that.RoomID,
		Players:    [2]Player{*that.PlayerA, *that.PlayerB},
		XPlayerID:  that.First.ID,
		Field:      that.Board.Rows(),
		Reason:     that.Reason,
		StartedAt:  that.StartedAt,
		FinishedAt: that.FinishedAt,
	}

	if that.Winner != nil {
		record.WinnerID = that.Winner.ID
	}

	return record
}
