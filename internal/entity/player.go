package entity

import "github.com/google/uuid"

type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func NewPlayer(name string) *Player {
	return &Player{
		ID:   uuid.NewString(),
		Name: name,
	}
}
