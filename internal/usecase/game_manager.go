package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rocketscienceinc/tictactoe-lobby/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/entity"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/lobby"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/registry"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/tictactoe"
)

const (
	defaultQueueSize = 256
	drainTimeout     = 5 * time.Second
)

type playerRepo interface {
	CreateOrUpdate(ctx context.Context, player *entity.Player) error
	GetByID(ctx context.Context, id string) (*entity.Player, error)
}

type gameRepo interface {
	Save(ctx context.Context, record entity.GameRecord) error
	GetByID(ctx context.Context, id string) (*entity.GameRecord, error)
	ListByPlayer(ctx context.Context, playerID string, limit int64) ([]entity.GameRecord, error)
}

// Broadcaster is the realtime side: rooms of game watchers plus the lobby group.
// None of its methods may block or call back into the manager.
type Broadcaster interface {
	tictactoe.Publisher
	lobby.Group
	Subscribe(token, roomID string)
	Unsubscribe(token string)
	Online() int
}

type job struct {
	name string
	run  func(ctx context.Context) error
}

// Stats - Connections are live sockets, Sessions are tokens the registry still remembers.
type Stats struct {
	Connections int  `json:"connections"`
	Sessions    int  `json:"sessions"`
	Waiting     bool `json:"waiting"`
}

type GameManager struct {
	logger      *slog.Logger
	registry    *registry.Registry
	matchmaker  *lobby.Matchmaker
	broadcaster Broadcaster

	playerRepo playerRepo
	gameRepo   gameRepo
	archive    bool
	picker     entity.Picker

	jobs chan job
}

type Option func(*GameManager)

// WithPicker overrides who moves first, used by tests.
func WithPicker(picker entity.Picker) Option {
	return func(that *GameManager) {
		that.picker = picker
	}
}

func WithQueueSize(size int) Option {
	return func(that *GameManager) {
		that.jobs = make(chan job, size)
	}
}

// WithArchive toggles persisting finished games.
func WithArchive(enabled bool) Option {
	return func(that *GameManager) {
		that.archive = enabled
	}
}

func NewGameManager(
	logger *slog.Logger,
	reg *registry.Registry,
	broadcaster Broadcaster,
	playerRepo playerRepo,
	gameRepo gameRepo,
	opts ...Option,
) *GameManager {
	manager := &GameManager{
		logger:      logger.With("component", "game_manager"),
		registry:    reg,
		broadcaster: broadcaster,
		playerRepo:  playerRepo,
		gameRepo:    gameRepo,
		archive:     true,
		picker:      entity.DefaultPicker,
		jobs:        make(chan job, defaultQueueSize),
	}

	for _, opt := range opts {
		opt(manager)
	}

	manager.matchmaker = lobby.NewMatchmaker(logger, sessionStore{manager}, broadcaster)

	return manager
}

// Login - binds a player with name to token. The same name on the same token keeps the
// identity; a new name abandons the old one, freeing its lobby slot and forfeiting its game.
func (that *GameManager) Login(_ context.Context, token, name string) (*entity.Player, error) {
	log := that.logger.With("method", "Login")

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ErrEmptyName
	}

	state := that.registry.Resolve(token)
	if state.Player != nil && state.Player.Name == name {
		return state.Player, nil
	}

	if state.Player != nil {
		that.abandon(token, state.Player.ID)
	}

	player := entity.NewPlayer(name)
	that.registry.Bind(token, player)

	that.enqueue(job{
		name: "save player",
		run: func(ctx context.Context) error {
			return that.playerRepo.CreateOrUpdate(ctx, player)
		},
	})

	log.Info("player logged in", "player_id", player.ID)

	return player, nil
}

// EnterLobby - see lobby.Matchmaker.EnterLobby. Waiting connections are marked as in lobby.
func (that *GameManager) EnterLobby(_ context.Context, token string) (lobby.Result, error) {
	state, err := that.loggedIn(token)
	if err != nil {
		return lobby.Result{}, err
	}

	result, err := that.matchmaker.EnterLobby(state.Player, token)
	if err != nil {
		return lobby.Result{}, fmt.Errorf("failed to enter lobby: %w", err)
	}

	if result.Status == lobby.Waiting {
		that.registry.SetLobby(token, true)
	}

	return result, nil
}

// JoinGameRoom - subscribes the connection to its game's room and replays the current state there.
func (that *GameManager) JoinGameRoom(_ context.Context, token string) (*tictactoe.Session, error) {
	state, err := that.loggedIn(token)
	if err != nil {
		return nil, err
	}

	if state.Game == nil {
		return nil, apperror.ErrNoActiveGame
	}

	that.broadcaster.Subscribe(token, state.Game.RoomID())
	state.Game.Sync()

	return state.Game, nil
}

// Move - forwards to the session. An illegal move is not an error, it just is not applied.
func (that *GameManager) Move(_ context.Context, token string, row, col int) (bool, error) {
	state, err := that.loggedIn(token)
	if err != nil {
		return false, err
	}

	if state.Game == nil {
		return false, apperror.ErrNoActiveGame
	}

	return state.Game.MakeMove(state.Player.ID, row, col), nil
}

// Disconnect - the connection went away. Leaving the lobby frees the slot; leaving a game forfeits it.
func (that *GameManager) Disconnect(_ context.Context, token string) {
	that.broadcaster.Unsubscribe(token)

	state, ok := that.registry.Get(token)
	if !ok || !state.LoggedIn() {
		that.broadcaster.Leave(token)
		return
	}

	that.abandon(token, state.Player.ID)
}

// Logout - disconnects and forgets the token entirely.
func (that *GameManager) Logout(ctx context.Context, token string) {
	that.Disconnect(ctx, token)
	that.registry.Invalidate(token)
}

func (that *GameManager) Stats() Stats {
	return Stats{
		Connections: that.broadcaster.Online(),
		Sessions:    that.registry.Len(),
		Waiting:     that.matchmaker.Waiting() != nil,
	}
}

func (that *GameManager) GetPlayer(ctx context.Context, id string) (*entity.Player, error) {
	player, err := that.playerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	return player, nil
}

func (that *GameManager) GetGame(ctx context.Context, id string) (*entity.GameRecord, error) {
	record, err := that.gameRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	return record, nil
}

func (that *GameManager) PlayerGames(ctx context.Context, playerID string, limit int64) ([]entity.GameRecord, error) {
	records, err := that.gameRepo.ListByPlayer(ctx, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}

	return records, nil
}

// Run - performs queued storage writes until ctx is done, then drains what is left.
func (that *GameManager) Run(ctx context.Context) error {
	log := that.logger.With("method", "Run")
	log.Info("storage worker started")

	for {
		select {
		case j := <-that.jobs:
			that.runJob(ctx, j)
		case <-ctx.Done():
			that.drain()
			log.Info("storage worker stopped")
			return nil
		}
	}
}

func (that *GameManager) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case j := <-that.jobs:
			that.runJob(ctx, j)
		default:
			return
		}
	}
}

func (that *GameManager) runJob(ctx context.Context, j job) {
	if err := j.run(ctx); err != nil {
		that.logger.Error("storage job failed", "job", j.name, "error", err)
	}
}

func (that *GameManager) enqueue(j job) {
	select {
	case that.jobs <- j:
	default:
		that.logger.Warn("storage queue is full, dropping job", "job", j.name)
	}
}

func (that *GameManager) loggedIn(token string) (registry.ConnectionState, error) {
	state, ok := that.registry.Get(token)
	if !ok || !state.LoggedIn() {
		return registry.ConnectionState{}, apperror.ErrNotLoggedIn
	}

	return state, nil
}

// abandon - releases whatever playerID holds on token: the lobby slot or an unfinished game.
// The game is read after Leave, so a pairing that won the race for the slot is seen and forfeited.
func (that *GameManager) abandon(token, playerID string) {
	log := that.logger.With("method", "abandon", "player_id", playerID)

	if that.matchmaker.Leave(playerID, token) {
		log.Info("left lobby")
	}
	that.registry.SetLobby(token, false)

	state, ok := that.registry.Get(token)
	if !ok || state.Game == nil {
		return
	}

	if state.Game.Forfeit(playerID) {
		log.Info("forfeited game", "game_id", state.Game.ID())
	}
}

func (that *GameManager) onFinish(game entity.Game) {
	if !that.archive {
		return
	}

	record := game.Record()
	that.enqueue(job{
		name: "archive game",
		run: func(ctx context.Context) error {
			return that.gameRepo.Save(ctx, record)
		},
	})
}

// sessionStore lets the matchmaker create and look up games without knowing the registry.
type sessionStore struct {
	manager *GameManager
}

func (that sessionStore) Create(a, b *entity.Player) *tictactoe.Session {
	m := that.manager

	session := tictactoe.NewSession(
		m.logger,
		entity.NewGame(a, b, m.picker),
		m.broadcaster,
		tictactoe.WithOnFinish(m.onFinish),
	)

	m.registry.AttachGameByPlayer(a.ID, session)
	m.registry.AttachGameByPlayer(b.ID, session)

	return session
}

func (that sessionStore) Active(playerID string) *tictactoe.Session {
	state, ok := that.manager.registry.GetByPlayer(playerID)
	if !ok || state.Game == nil || state.Game.Finished() {
		return nil
	}

	return state.Game
}
