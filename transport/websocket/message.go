package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-lobby/internal/entity"
)

const (
	ActionLogin      = "login"
	ActionEnterLobby = "lobby:enter"
	ActionJoinGame   = "game:join"
	ActionMove       = "game:move"
	ActionLogout     = "logout"

	ActionWaiting   = "lobby:waiting"
	ActionCollision = "lobby:collision"
	ActionStarted   = "game:started"
	ActionUpdate    = "game:update"
	ActionError     = "error"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type LoginPayload struct {
	Name string `json:"name"`
}

// MovePayload uses pointers so a missing coordinate can be told apart from zero.
type MovePayload struct {
	Row    *int `json:"row"`
	Column *int `json:"column"`
}

type PlayerPayload struct {
	Player *entity.Player `json:"player"`
}

type StartedPayload struct {
	Room string `json:"room"`
}

type CollisionPayload struct {
	WaitingName string `json:"waitingName"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

func encode(action string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	data, err := json.Marshal(Message{Action: action, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	return data, nil
}
