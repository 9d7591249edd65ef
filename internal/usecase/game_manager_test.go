package usecase

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/rocketscienceinc/tictactoe-lobby/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/entity"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/lobby"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errRedisDown = errors.New("redis down")

type fixture struct {
	manager     *GameManager
	registry    *registry.Registry
	broadcaster *fakeBroadcaster
	players     *mockPlayerRepo
	games       *mockGameRepo
	hooks       *hookHandler
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	f := &fixture{
		registry:    registry.New(),
		broadcaster: newFakeBroadcaster(),
		players:     newMockPlayerRepo(t),
		games:       newMockGameRepo(t),
		hooks:       newHookHandler(),
	}

	// the waiting player always moves first
	opts = append([]Option{WithPicker(func(int) int { return 0 })}, opts...)
	f.manager = NewGameManager(slog.New(f.hooks), f.registry, f.broadcaster, f.players, f.games, opts...)

	return f
}

// runWorker starts the storage worker for the lifetime of the test.
func (f *fixture) runWorker(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.manager.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (f *fixture) login(t *testing.T, token, name string) *entity.Player {
	t.Helper()

	f.players.On("CreateOrUpdate", mock.Anything, mock.AnythingOfType("*entity.Player")).Return(nil).Maybe()

	player, err := f.manager.Login(context.Background(), token, name)
	require.NoError(t, err)

	return player
}

// pair logs Alice and Bob in and pairs them, Alice moves first.
func (f *fixture) pair(t *testing.T) (*entity.Player, *entity.Player) {
	t.Helper()

	ctx := context.Background()
	alice := f.login(t, "token-a", "Alice")
	bob := f.login(t, "token-b", "Bob")

	_, err := f.manager.EnterLobby(ctx, "token-a")
	require.NoError(t, err)
	result, err := f.manager.EnterLobby(ctx, "token-b")
	require.NoError(t, err)
	require.Equal(t, lobby.Paired, result.Status)

	return alice, bob
}

func TestGameManager_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("Rejects blank names", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.manager.Login(ctx, "token", "   ")

		require.ErrorIs(t, err, apperror.ErrEmptyName)
		assert.Zero(t, f.registry.Len())
	})

	t.Run("Creates a player and saves it in the background", func(t *testing.T) {
		// Given: a running storage worker
		f := newFixture(t)
		saved := make(chan *entity.Player, 1)
		f.players.On("CreateOrUpdate", mock.Anything, mock.AnythingOfType("*entity.Player")).
			Run(func(args mock.Arguments) { saved <- args.Get(1).(*entity.Player) }).
			Return(nil).
			Once()
		f.runWorker(t)

		// When: Alice logs in with surrounding spaces
		player, err := f.manager.Login(ctx, "token", "  Alice ")

		// Then: the trimmed name is bound to the token and persisted
		require.NoError(t, err)
		assert.Equal(t, "Alice", player.Name)

		state, ok := f.registry.Get("token")
		require.True(t, ok)
		assert.Equal(t, player, state.Player)

		select {
		case got := <-saved:
			assert.Equal(t, player.ID, got.ID)
		case <-time.After(time.Second):
			t.Fatal("player was not saved")
		}
	})

	t.Run("Same name on the same token keeps the identity", func(t *testing.T) {
		f := newFixture(t)
		first := f.login(t, "token", "Alice")

		second, err := f.manager.Login(ctx, "token", "Alice")

		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("New name releases the waiting slot of the old identity", func(t *testing.T) {
		// Given: Alice is waiting in the lobby
		f := newFixture(t)
		alice := f.login(t, "token", "Alice")
		_, err := f.manager.EnterLobby(ctx, "token")
		require.NoError(t, err)
		require.True(t, f.manager.Stats().Waiting)

		// When: the same connection logs in as Alicia
		alicia := f.login(t, "token", "Alicia")

		// Then: nobody is waiting and the identity changed
		assert.NotEqual(t, alice.ID, alicia.ID)
		assert.False(t, f.manager.Stats().Waiting)
		assert.False(t, f.broadcaster.inLobby("token"))
	})

	t.Run("New name forfeits the running game", func(t *testing.T) {
		// Given: Alice and Bob are playing
		f := newFixture(t, WithArchive(false))
		_, bob := f.pair(t)

		// When: Alice renames herself
		f.login(t, "token-a", "Alicia")

		// Then: Bob won and Alicia has no game
		last, ok := f.broadcaster.lastSnapshot()
		require.True(t, ok)
		assert.True(t, last.snapshot.GameOver)
		assert.Equal(t, bob.Name, *last.snapshot.Winner)

		_, err := f.manager.Move(ctx, "token-a", 0, 0)
		require.ErrorIs(t, err, apperror.ErrNoActiveGame)
	})

	t.Run("New name forfeits a game paired while the old identity was released", func(t *testing.T) {
		// Given: Alice waits in the lobby and Bob is logged in
		f := newFixture(t, WithArchive(false))
		f.login(t, "token-a", "Alice")
		bob := f.login(t, "token-b", "Bob")
		_, err := f.manager.EnterLobby(ctx, "token-a")
		require.NoError(t, err)

		// When: Bob pairs with Alice while her connection is renaming itself
		var (
			paired lobby.Result
			errBob error
		)
		f.hooks.before("abandon", func() {
			paired, errBob = f.manager.EnterLobby(ctx, "token-b")
		})
		f.login(t, "token-a", "Alicia")

		// Then: the game Alice was paired into is over and Bob won it
		require.NoError(t, errBob)
		require.Equal(t, lobby.Paired, paired.Status)

		game := paired.Session.Game()
		assert.True(t, game.Finished)
		require.NotNil(t, game.Winner)
		assert.Equal(t, bob.ID, game.Winner.ID)

		_, err = f.manager.Move(ctx, "token-a", 0, 0)
		require.ErrorIs(t, err, apperror.ErrNoActiveGame)
	})
}

func TestGameManager_EnterLobby(t *testing.T) {
	ctx := context.Background()

	t.Run("Requires login", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.manager.EnterLobby(ctx, "token")

		require.ErrorIs(t, err, apperror.ErrNotLoggedIn)
	})

	t.Run("Pairs two players and announces the room", func(t *testing.T) {
		// Given: Alice waits in the lobby
		f := newFixture(t)
		alice := f.login(t, "token-a", "Alice")
		f.login(t, "token-b", "Bob")

		result, err := f.manager.EnterLobby(ctx, "token-a")
		require.NoError(t, err)
		assert.Equal(t, lobby.Waiting, result.Status)

		state, _ := f.registry.Get("token-a")
		assert.True(t, state.InLobby)

		// When: Bob enters
		result, err = f.manager.EnterLobby(ctx, "token-b")

		// Then: both tokens share one game and both connections were told
		require.NoError(t, err)
		assert.Equal(t, lobby.Paired, result.Status)

		a, _ := f.registry.Get("token-a")
		b, _ := f.registry.Get("token-b")
		assert.Same(t, result.Session, a.Game)
		assert.Same(t, result.Session, b.Game)
		assert.False(t, a.InLobby)

		require.Len(t, f.broadcaster.announced, 1)
		assert.Equal(t, result.Session.RoomID(), f.broadcaster.announced[0].roomID)
		assert.ElementsMatch(t, []string{"token-a", "token-b"}, f.broadcaster.announced[0].members)

		game := result.Session.Game()
		assert.Equal(t, alice.ID, game.First.ID)
	})

	t.Run("Name collision leaves the lobby untouched", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, "token-a", "Alice")
		f.login(t, "token-b", "Alice")
		_, err := f.manager.EnterLobby(ctx, "token-a")
		require.NoError(t, err)

		_, err = f.manager.EnterLobby(ctx, "token-b")

		require.ErrorIs(t, err, apperror.ErrNameCollision)
		var collision *lobby.CollisionError
		require.ErrorAs(t, err, &collision)
		assert.Equal(t, "Alice", collision.WaitingName)
		assert.True(t, f.manager.Stats().Waiting)
	})

	t.Run("Player in a game is sent back to it", func(t *testing.T) {
		f := newFixture(t)
		f.pair(t)

		result, err := f.manager.EnterLobby(ctx, "token-a")

		require.NoError(t, err)
		assert.Equal(t, lobby.Resumed, result.Status)
		assert.False(t, f.manager.Stats().Waiting)
	})
}

func TestGameManager_JoinGameRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("Subscribes and replays the current state", func(t *testing.T) {
		// Given: a fresh game
		f := newFixture(t)
		f.pair(t)

		// When: Bob joins the room
		session, err := f.manager.JoinGameRoom(ctx, "token-b")

		// Then: his connection is in the room and the room got the snapshot
		require.NoError(t, err)
		assert.Equal(t, session.RoomID(), f.broadcaster.room("token-b"))

		last, ok := f.broadcaster.lastSnapshot()
		require.True(t, ok)
		assert.Equal(t, session.RoomID(), last.roomID)
		assert.Equal(t, "Alice", *last.snapshot.Turn)
	})

	t.Run("Without a game it is an error", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, "token", "Alice")

		_, err := f.manager.JoinGameRoom(ctx, "token")

		require.ErrorIs(t, err, apperror.ErrNoActiveGame)
	})
}

func TestGameManager_Move(t *testing.T) {
	ctx := context.Background()

	t.Run("Only the active player's move is applied", func(t *testing.T) {
		f := newFixture(t)
		f.pair(t)

		applied, err := f.manager.Move(ctx, "token-b", 0, 0)
		require.NoError(t, err)
		assert.False(t, applied)

		applied, err = f.manager.Move(ctx, "token-a", 0, 0)
		require.NoError(t, err)
		assert.True(t, applied)

		last, _ := f.broadcaster.lastSnapshot()
		assert.Equal(t, [entity.BoardSize]string{"X--", "---", "---"}, last.snapshot.Field)
		assert.Equal(t, "Bob", *last.snapshot.Turn)
	})

	t.Run("Requires login", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.manager.Move(ctx, "token", 0, 0)

		require.ErrorIs(t, err, apperror.ErrNotLoggedIn)
	})

	t.Run("Finished game is archived", func(t *testing.T) {
		// Given: a game where Alice is one move from winning
		f := newFixture(t)
		alice, bob := f.pair(t)
		archived := make(chan entity.GameRecord, 1)
		f.games.On("Save", mock.Anything, mock.AnythingOfType("entity.GameRecord")).
			Run(func(args mock.Arguments) { archived <- args.Get(1).(entity.GameRecord) }).
			Return(nil).
			Once()
		f.runWorker(t)

		for _, m := range []struct {
			token    string
			row, col int
		}{{"token-a", 0, 0}, {"token-b", 1, 0}, {"token-a", 0, 1}, {"token-b", 1, 1}} {
			applied, err := f.manager.Move(ctx, m.token, m.row, m.col)
			require.NoError(t, err)
			require.True(t, applied)
		}

		// When: Alice completes the top row
		applied, err := f.manager.Move(ctx, "token-a", 0, 2)

		// Then: the finished game reaches storage
		require.NoError(t, err)
		require.True(t, applied)

		select {
		case record := <-archived:
			assert.Equal(t, alice.ID, record.WinnerID)
			assert.Equal(t, entity.ReasonWin, record.Reason)
			assert.ElementsMatch(t, []string{alice.ID, bob.ID}, []string{record.Players[0].ID, record.Players[1].ID})
		case <-time.After(time.Second):
			t.Fatal("game was not archived")
		}
	})
}

func TestGameManager_Disconnect(t *testing.T) {
	ctx := context.Background()

	t.Run("Leaving a running game forfeits it", func(t *testing.T) {
		// Given: Alice and Bob are playing and storage is down
		f := newFixture(t)
		_, bob := f.pair(t)
		saved := make(chan struct{}, 1)
		f.games.On("Save", mock.Anything, mock.AnythingOfType("entity.GameRecord")).
			Run(func(mock.Arguments) { saved <- struct{}{} }).
			Return(errRedisDown).
			Once()
		f.runWorker(t)

		// When: Alice's connection drops
		f.manager.Disconnect(ctx, "token-a")

		// Then: Bob wins and the failed archive does not break anything
		last, ok := f.broadcaster.lastSnapshot()
		require.True(t, ok)
		assert.True(t, last.snapshot.GameOver)
		assert.Equal(t, bob.Name, *last.snapshot.Winner)

		select {
		case <-saved:
		case <-time.After(time.Second):
			t.Fatal("archive was not attempted")
		}

		state, ok := f.registry.Get("token-a")
		require.True(t, ok, "state survives a disconnect")
		assert.NotNil(t, state.Game)
	})

	t.Run("Game paired during the disconnect is forfeited", func(t *testing.T) {
		// Given: Alice waits in the lobby and Bob is logged in
		f := newFixture(t, WithArchive(false))
		f.login(t, "token-a", "Alice")
		bob := f.login(t, "token-b", "Bob")
		_, err := f.manager.EnterLobby(ctx, "token-a")
		require.NoError(t, err)

		// When: Bob pairs with Alice after her disconnect read the registry but before she left the lobby
		var (
			paired lobby.Result
			errBob error
		)
		f.hooks.before("abandon", func() {
			paired, errBob = f.manager.EnterLobby(ctx, "token-b")
		})
		f.manager.Disconnect(ctx, "token-a")

		// Then: Bob was paired and immediately won by forfeit
		require.NoError(t, errBob)
		require.Equal(t, lobby.Paired, paired.Status)

		game := paired.Session.Game()
		assert.True(t, game.Finished)
		require.NotNil(t, game.Winner)
		assert.Equal(t, bob.ID, game.Winner.ID)

		last, ok := f.broadcaster.lastSnapshot()
		require.True(t, ok)
		assert.Equal(t, paired.Session.RoomID(), last.roomID)
		assert.True(t, last.snapshot.GameOver)
		assert.Equal(t, bob.Name, *last.snapshot.Winner)
		assert.False(t, f.manager.Stats().Waiting)
	})

	t.Run("Leaving the lobby frees the slot", func(t *testing.T) {
		f := newFixture(t)
		f.login(t, "token", "Alice")
		_, err := f.manager.EnterLobby(ctx, "token")
		require.NoError(t, err)

		f.manager.Disconnect(ctx, "token")

		assert.False(t, f.manager.Stats().Waiting)
		assert.False(t, f.broadcaster.inLobby("token"))
	})

	t.Run("Anonymous connection is a no-op", func(t *testing.T) {
		f := newFixture(t)

		f.manager.Disconnect(ctx, "token")

		assert.Zero(t, f.registry.Len())
	})
}

func TestGameManager_Logout(t *testing.T) {
	f := newFixture(t)
	f.login(t, "token", "Alice")

	f.manager.Logout(context.Background(), "token")

	_, ok := f.registry.Get("token")
	assert.False(t, ok)
	assert.Zero(t, f.manager.Stats().Sessions)
}

func TestGameManager_Stats(t *testing.T) {
	// Given: two remembered tokens but only one live socket
	f := newFixture(t)
	f.login(t, "token-a", "Alice")
	f.login(t, "token-b", "Bob")
	f.broadcaster.online = 1

	// When: stats are read
	stats := f.manager.Stats()

	// Then: live connections come from the broadcaster, sessions from the registry
	assert.Equal(t, 1, stats.Connections)
	assert.Equal(t, 2, stats.Sessions)
	assert.False(t, stats.Waiting)
}

func TestGameManager_Queue(t *testing.T) {
	t.Run("Full queue drops jobs instead of blocking", func(t *testing.T) {
		// Given: a queue without room and no worker
		f := newFixture(t, WithQueueSize(0))

		// When: a player logs in
		_, err := f.manager.Login(context.Background(), "token", "Alice")

		// Then: login still succeeds and nothing reached storage
		require.NoError(t, err)
		f.players.AssertNotCalled(t, "CreateOrUpdate", mock.Anything, mock.Anything)
	})

	t.Run("Pending jobs are drained on shutdown", func(t *testing.T) {
		// Given: a queued save and a canceled context
		f := newFixture(t)
		f.players.On("CreateOrUpdate", mock.Anything, mock.AnythingOfType("*entity.Player")).Return(nil).Once()
		_, err := f.manager.Login(context.Background(), "token", "Alice")
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		// When: the worker runs
		err = f.manager.Run(ctx)

		// Then: the save still happened
		require.NoError(t, err)
		f.players.AssertNumberOfCalls(t, "CreateOrUpdate", 1)
	})
}

func TestGameManager_Archive(t *testing.T) {
	ctx := context.Background()

	t.Run("GetGame wraps repository errors", func(t *testing.T) {
		f := newFixture(t)
		f.games.On("GetByID", mock.Anything, "missing").Return(nil, apperror.ErrNotFound).Once()

		_, err := f.manager.GetGame(ctx, "missing")

		require.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("GetPlayer reads the stored player", func(t *testing.T) {
		f := newFixture(t)
		alice := entity.NewPlayer("Alice")
		f.players.On("GetByID", mock.Anything, alice.ID).Return(alice, nil).Once()
		f.players.On("GetByID", mock.Anything, "missing").Return(nil, apperror.ErrNotFound).Once()

		got, err := f.manager.GetPlayer(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, alice, got)

		_, err = f.manager.GetPlayer(ctx, "missing")
		require.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("PlayerGames returns the history", func(t *testing.T) {
		f := newFixture(t)
		records := []entity.GameRecord{{ID: "g1"}, {ID: "g2"}}
		f.games.On("ListByPlayer", mock.Anything, "p1", int64(10)).Return(records, nil).Once()

		got, err := f.manager.PlayerGames(ctx, "p1", 10)

		require.NoError(t, err)
		assert.Equal(t, records, got)
	})
}
