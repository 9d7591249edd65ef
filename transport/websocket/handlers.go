package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-lobby/internal/lobby"
)

// missingCoordinate is outside the board, so a move without it is rejected by the game.
const missingCoordinate = -1

func (that *Server) handleLogin(ctx context.Context, client *Client, msg *Message) error {
	var payload LoginPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("%w: %w", errMalformedPayload, err)
	}

	player, err := that.uGame.Login(ctx, client.token, payload.Name)
	if err != nil {
		return fmt.Errorf("failed to login: %w", err)
	}

	that.send(client, ActionLogin, PlayerPayload{Player: player})

	return nil
}

func (that *Server) handleEnterLobby(ctx context.Context, client *Client, _ *Message) error {
	result, err := that.uGame.EnterLobby(ctx, client.token)

	var collision *lobby.CollisionError
	if errors.As(err, &collision) {
		that.send(client, ActionCollision, CollisionPayload{WaitingName: collision.WaitingName})
		return nil
	}

	if err != nil {
		return err
	}

	switch result.Status {
	case lobby.Waiting:
		that.send(client, ActionWaiting, struct{}{})
	case lobby.Resumed:
		that.send(client, ActionStarted, StartedPayload{Room: result.Session.RoomID()})
	case lobby.Paired:
		// both sides were told by the lobby group announcement
	}

	return nil
}

func (that *Server) handleJoinGame(ctx context.Context, client *Client, _ *Message) error {
	if _, err := that.uGame.JoinGameRoom(ctx, client.token); err != nil {
		return fmt.Errorf("failed to join game: %w", err)
	}

	return nil
}

func (that *Server) handleMove(ctx context.Context, client *Client, msg *Message) error {
	var payload MovePayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return fmt.Errorf("%w: %w", errMalformedPayload, err)
		}
	}

	row, col := missingCoordinate, missingCoordinate
	if payload.Row != nil {
		row = *payload.Row
	}
	if payload.Column != nil {
		col = *payload.Column
	}

	if _, err := that.uGame.Move(ctx, client.token, row, col); err != nil {
		return fmt.Errorf("failed to move: %w", err)
	}

	return nil
}

func (that *Server) handleLogout(ctx context.Context, client *Client, _ *Message) error {
	that.uGame.Logout(ctx, client.token)
	that.send(client, ActionLogout, struct{}{})

	return nil
}
