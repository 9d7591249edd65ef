package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/entity"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/usecase"
)

type uGame interface {
	Stats() usecase.Stats
	GetPlayer(ctx context.Context, id string) (*entity.Player, error)
	GetGame(ctx context.Context, id string) (*entity.GameRecord, error)
	PlayerGames(ctx context.Context, playerID string, limit int64) ([]entity.GameRecord, error)
}

type Server struct {
	logger *slog.Logger
	srv    *http.Server
}

// NewRouter - every HTTP route of the service, the websocket endpoint included.
func NewRouter(logger *slog.Logger, uGame uGame, ws http.Handler, publicURL string) http.Handler {
	h := &handlers{
		logger:    logger.With("component", "rest"),
		uGame:     uGame,
		publicURL: publicURL,
	}

	router := httprouter.New()
	router.GET("/ping", pingHandler)
	router.GET("/healthz", h.healthz)
	router.GET("/games/:id", h.getGame)
	router.GET("/players/:id", h.getPlayer)
	router.GET("/players/:id/games", h.playerGames)
	router.GET("/qr", h.qr)
	router.Handler(http.MethodGet, "/ws", ws)

	return logRequests(h.logger, router)
}

func New(logger *slog.Logger, port string, handler http.Handler) *Server {
	return &Server{
		logger: logger.With("component", "http"),
		srv: &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       30 * time.Second,
		},
	}
}

// Start - blocks until the server stops. A graceful shutdown is not an error.
func (that *Server) Start() error {
	that.logger.Info("Starting HTTP server", "addr", that.srv.Addr)

	if err := that.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) Shutdown(ctx context.Context) error {
	if err := that.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
