package usecase

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/rocketscienceinc/tictactoe-lobby/internal/entity"
	"github.com/stretchr/testify/mock"
)

type mockPlayerRepo struct {
	mock.Mock
}

func newMockPlayerRepo(t *testing.T) *mockPlayerRepo {
	m := &mockPlayerRepo{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *mockPlayerRepo) CreateOrUpdate(ctx context.Context, player *entity.Player) error {
	args := m.Called(ctx, player)
	return args.Error(0)
}

func (m *mockPlayerRepo) GetByID(ctx context.Context, id string) (*entity.Player, error) {
	args := m.Called(ctx, id)
	player, _ := args.Get(0).(*entity.Player)

	return player, args.Error(1)
}

type mockGameRepo struct {
	mock.Mock
}

func newMockGameRepo(t *testing.T) *mockGameRepo {
	m := &mockGameRepo{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *mockGameRepo) Save(ctx context.Context, record entity.GameRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *mockGameRepo) GetByID(ctx context.Context, id string) (*entity.GameRecord, error) {
	args := m.Called(ctx, id)
	record, _ := args.Get(0).(*entity.GameRecord)

	return record, args.Error(1)
}

func (m *mockGameRepo) ListByPlayer(ctx context.Context, playerID string, limit int64) ([]entity.GameRecord, error) {
	args := m.Called(ctx, playerID, limit)
	records, _ := args.Get(0).([]entity.GameRecord)

	return records, args.Error(1)
}

type published struct {
	roomID   string
	snapshot entity.Snapshot
}

type announced struct {
	roomID  string
	members []string
}

// fakeBroadcaster records what would have been sent.
type fakeBroadcaster struct {
	mu        sync.Mutex
	lobby     map[string]struct{}
	rooms     map[string]string
	published []published
	announced []announced
	online    int
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{
		lobby: make(map[string]struct{}),
		rooms: make(map[string]string),
	}
}

func (that *fakeBroadcaster) PublishSnapshot(roomID string, snapshot entity.Snapshot) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.published = append(that.published, published{roomID: roomID, snapshot: snapshot})
}

func (that *fakeBroadcaster) Join(token string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.lobby[token] = struct{}{}
}

func (that *fakeBroadcaster) Leave(token string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.lobby, token)
}

func (that *fakeBroadcaster) Announce(roomID string, extra ...string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	members := append([]string(nil), extra...)
	for token := range that.lobby {
		members = append(members, token)
	}

	that.announced = append(that.announced, announced{roomID: roomID, members: members})
	that.lobby = make(map[string]struct{})
}

func (that *fakeBroadcaster) Subscribe(token, roomID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.rooms[token] = roomID
}

func (that *fakeBroadcaster) Unsubscribe(token string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.rooms, token)
}

func (that *fakeBroadcaster) Online() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.online
}

func (that *fakeBroadcaster) lastSnapshot() (published, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if len(that.published) == 0 {
		return published{}, false
	}

	return that.published[len(that.published)-1], true
}

func (that *fakeBroadcaster) inLobby(token string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	_, ok := that.lobby[token]

	return ok
}

func (that *fakeBroadcaster) room(token string) string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.rooms[token]
}

// hookHandler discards records. A hook registered for a method runs once, at the moment a
// logger for that method is derived, which lets tests interleave calls at a known point.
type hookHandler struct {
	mu    sync.Mutex
	hooks map[string]func()
}

func newHookHandler() *hookHandler {
	return &hookHandler{hooks: make(map[string]func())}
}

func (h *hookHandler) before(method string, fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.hooks[method] = fn
}

func (h *hookHandler) Enabled(context.Context, slog.Level) bool {
	return false
}

func (h *hookHandler) Handle(context.Context, slog.Record) error {
	return nil
}

func (h *hookHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	for _, attr := range attrs {
		if attr.Key != "method" {
			continue
		}

		h.mu.Lock()
		fn, ok := h.hooks[attr.Value.String()]
		delete(h.hooks, attr.Value.String())
		h.mu.Unlock()

		if ok {
			fn()
		}
	}

	return h
}

func (h *hookHandler) WithGroup(string) slog.Handler {
	return h
}
