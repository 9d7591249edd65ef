package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/config"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/entity"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/lobby"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/tictactoe"
)

const (
	SessionCookie = "user_session"
	cookieTTL     = 24 * time.Hour
)

var errMalformedPayload = errors.New("malformed payload")

type uGame interface {
	Login(ctx context.Context, token, name string) (*entity.Player, error)
	EnterLobby(ctx context.Context, token string) (lobby.Result, error)
	JoinGameRoom(ctx context.Context, token string) (*tictactoe.Session, error)
	Move(ctx context.Context, token string, row, col int) (bool, error)
	Disconnect(ctx context.Context, token string)
	Logout(ctx context.Context, token string)
}

type handlerFunc func(ctx context.Context, client *Client, message *Message) error

type Server struct {
	logger   *slog.Logger
	uGame    uGame
	hub      *Hub
	conf     config.Websocket
	upgrader websocket.Upgrader

	handlers map[string]handlerFunc
}

func New(logger *slog.Logger, uGame uGame, hub *Hub, conf config.Websocket) *Server {
	server := &Server{
		logger: logger.With("component", "websocket"),
		uGame:  uGame,
		hub:    hub,
		conf:   conf,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  conf.ReadBufferSize,
			WriteBufferSize: conf.WriteBufferSize,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},

		handlers: make(map[string]handlerFunc),
	}

	server.handlers[ActionLogin] = server.handleLogin
	server.handlers[ActionEnterLobby] = server.handleEnterLobby
	server.handlers[ActionJoinGame] = server.handleJoinGame
	server.handlers[ActionMove] = server.handleMove
	server.handlers[ActionLogout] = server.handleLogout

	return server
}

// ServeHTTP - upgrades the request and serves the connection until it closes.
func (that *Server) ServeHTTP(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "ServeHTTP")

	token, header := that.sessionToken(req)
	if token == "" {
		http.Error(writer, "unable to assign session", http.StatusInternalServerError)
		return
	}

	conn, err := that.upgrader.Upgrade(writer, req, header)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	client := newClient(token, conn, that.conf.SendQueue, that.conf.PongWait, that.conf.WriteWait)
	that.hub.Register(client)

	log = log.With("token", shortToken(token))
	log.Info("WebSocket connection established")

	go client.writePump()

	ctx := req.Context()
	err = client.readPump(func(data []byte) {
		that.dispatch(ctx, client, data)
	})
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		log.Warn("connection closed unexpectedly", "error", err)
	}

	if that.hub.Unregister(client) {
		that.uGame.Disconnect(context.WithoutCancel(ctx), token)
	}
	client.close()

	log.Info("WebSocket connection closed")
}

// dispatch - malformed frames are logged and dropped, protocol errors are answered.
func (that *Server) dispatch(ctx context.Context, client *Client, data []byte) {
	log := that.logger.With("method", "dispatch", "token", shortToken(client.token))

	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		log.Warn("failed to unmarshal message", "error", err)
		return
	}

	handler, ok := that.handlers[message.Action]
	if !ok {
		log.Warn("unknown action", "action", message.Action)
		that.sendError(client, fmt.Sprintf("unknown action %q", message.Action))
		return
	}

	err := handler(ctx, client, &message)
	switch {
	case err == nil:
	case errors.Is(err, errMalformedPayload):
		log.Warn("dropping message", "action", message.Action, "error", err)
	default:
		log.Info("action failed", "action", message.Action, "error", err)
		that.sendError(client, err.Error())
	}
}

// sessionToken - reads the session cookie or issues a new one through the upgrade response.
func (that *Server) sessionToken(req *http.Request) (string, http.Header) {
	if cookie, err := req.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	token := pkg.GenerateNewSessionID()
	cookie := &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(cookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	header := http.Header{}
	header.Add("Set-Cookie", cookie.String())

	return token, header
}

func (that *Server) send(client *Client, action string, payload any) {
	data, err := encode(action, payload)
	if err != nil {
		that.logger.Error("failed to encode message", "action", action, "error", err)
		return
	}

	that.hub.Send(client.token, data)
}

func (that *Server) sendError(client *Client, message string) {
	that.send(client, ActionError, ErrorPayload{Error: message})
}
