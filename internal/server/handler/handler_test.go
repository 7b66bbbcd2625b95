package handler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/crisis-arena/internal/ai"
	"github.com/palemoky/crisis-arena/internal/config"
	"github.com/palemoky/crisis-arena/internal/game/room"
	"github.com/palemoky/crisis-arena/internal/game/session"
	"github.com/palemoky/crisis-arena/internal/protocol"
)

// --- 测试替身 ---

// fakeClient 记录下发消息的客户端替身
type fakeClient struct {
	mu   sync.Mutex
	id   string
	name string
	room string
	sent []*protocol.Message
}

func newFakeClient(name string) *fakeClient {
	return &fakeClient{id: "id-" + name, name: name}
}

func (c *fakeClient) GetID() string   { return c.id }
func (c *fakeClient) GetName() string { c.mu.Lock(); defer c.mu.Unlock(); return c.name }
func (c *fakeClient) SetName(n string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = n
}
func (c *fakeClient) GetRoom() string { c.mu.Lock(); defer c.mu.Unlock(); return c.room }
func (c *fakeClient) SetRoom(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = id
}
func (c *fakeClient) SendMessage(msg *protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
}

func (c *fakeClient) last(msgType protocol.MessageType) *protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.sent) - 1; i >= 0; i-- {
		if c.sent[i].Type == msgType {
			return c.sent[i]
		}
	}
	return nil
}

func (c *fakeClient) waitFor(t *testing.T, msgType protocol.MessageType) *protocol.Message {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if msg := c.last(msgType); msg != nil {
			return msg
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %q", msgType)
			return nil
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// fakeDirectory 同时充当 handler 的客户端目录和对局的消息下发通道
type fakeDirectory struct {
	mu      sync.Mutex
	clients map[string]*fakeClient
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{clients: make(map[string]*fakeClient)}
}

func (d *fakeDirectory) add(c *fakeClient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients[c.GetName()] = c
}

func (d *fakeDirectory) SendToUser(username string, msg *protocol.Message) {
	d.mu.Lock()
	c := d.clients[username]
	d.mu.Unlock()
	if c != nil {
		c.SendMessage(msg)
	}
}

func (d *fakeDirectory) GetClientByName(name string) Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.clients[name]; ok {
		return c
	}
	return nil
}

func (d *fakeDirectory) OnlineCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clients)
}

// stubGenerator 全部走内置兜底内容
type stubGenerator struct{}

func (stubGenerator) InitialScenario(_ context.Context, theme string, playerCount int) (*ai.ScenarioResult, error) {
	return ai.FallbackScenario(theme, playerCount), nil
}
func (stubGenerator) ScoreDecision(context.Context, string, string, string, int) (*ai.IndividualScore, error) {
	return &ai.IndividualScore{Creativity: 5, HelpingNature: 5, TeamStrategy: 5, RoleAppropriateness: 5}, nil
}
func (stubGenerator) UpdateCrisis(_ context.Context, _ string, current int, _ map[string]string, _ int) (*ai.CrisisUpdate, error) {
	return &ai.CrisisUpdate{NewScore: current}, nil
}
func (stubGenerator) ContinueStory(_ context.Context, _, _ string, _ int, _ map[string]string, round int) (*ai.StoryContinuation, error) {
	return ai.FallbackContinuation(round), nil
}
func (stubGenerator) FinalScores(context.Context, string, []ai.RoundDigest, int) (*ai.FinalScores, error) {
	return &ai.FinalScores{}, nil
}

type testEnv struct {
	rooms *room.Registry
	dir   *fakeDirectory
	h     *Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	rooms := room.NewRegistry(nil)
	dir := newFakeDirectory()
	cfg := config.GameConfig{DecisionTimeLimit: 120, TimeoutGrace: 30, MaxRounds: 3, ResultGracePeriod: 60}
	sessions := session.NewManager(rooms, stubGenerator{}, dir, nil, cfg)
	return &testEnv{
		rooms: rooms,
		dir:   dir,
		h:     NewHandler(rooms, sessions, dir),
	}
}

func (e *testEnv) connect(name string) *fakeClient {
	c := newFakeClient(name)
	e.dir.add(c)
	return c
}

func joinMsg(t *testing.T, p protocol.JoinPayload) *protocol.Message {
	t.Helper()
	msg, err := protocol.NewMessage(protocol.MsgJoin, p)
	require.NoError(t, err)
	return msg
}

// --- 连接 ---

func TestHandle_Ping(t *testing.T) {
	env := newTestEnv(t)
	c := env.connect("alice")

	env.h.Handle(c, protocol.MustNewMessage(protocol.MsgPing, protocol.PingPayload{Timestamp: 12345}))

	msg := c.last(protocol.MsgPong)
	require.NotNil(t, msg)
	pong, err := protocol.ParsePayload[protocol.PongPayload](msg)
	require.NoError(t, err)
	assert.EqualValues(t, 12345, pong.ClientTimestamp)
	assert.NotZero(t, pong.ServerTimestamp)
}

func TestHandle_UnknownType(t *testing.T) {
	env := newTestEnv(t)
	c := env.connect("alice")

	env.h.Handle(c, &protocol.Message{Type: "bogus"})

	msg := c.last(protocol.MsgError)
	require.NotNil(t, msg)
	errPayload, err := protocol.ParsePayload[protocol.ErrorPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, protocol.ErrCodeInvalidMsg, errPayload.Code)
}

// --- 房间 ---

func TestHandleJoin_Create(t *testing.T) {
	env := newTestEnv(t)
	c := env.connect("alice")

	env.h.Handle(c, joinMsg(t, protocol.JoinPayload{
		Username:  "alice",
		Option:    "create",
		RoomTheme: "resource_scarcity",
	}))

	msg := c.last(protocol.MsgRoomJoined)
	require.NotNil(t, msg)
	payload, err := protocol.ParsePayload[protocol.RoomJoinedPayload](msg)
	require.NoError(t, err)
	assert.NotEmpty(t, payload.RoomID)
	assert.Equal(t, "alice's room", payload.RoomName)
	assert.Equal(t, "resource_scarcity", payload.Theme)
	assert.Equal(t, "alice", payload.Host)
	assert.Equal(t, room.DefaultCapacity, payload.MaxPlayers)
	assert.Equal(t, payload.RoomID, c.GetRoom())
}

func TestHandleJoin_UnknownThemeFallsBack(t *testing.T) {
	env := newTestEnv(t)
	c := env.connect("alice")

	env.h.Handle(c, joinMsg(t, protocol.JoinPayload{Username: "alice", Option: "create", RoomTheme: "martian_invasion"}))

	payload, err := protocol.ParsePayload[protocol.RoomJoinedPayload](c.last(protocol.MsgRoomJoined))
	require.NoError(t, err)
	assert.Equal(t, ai.DefaultTheme, payload.Theme)
}

func TestHandleJoin_JoinNotifiesMembers(t *testing.T) {
	env := newTestEnv(t)
	host := env.connect("alice")
	guest := env.connect("bob")

	env.h.Handle(host, joinMsg(t, protocol.JoinPayload{Username: "alice", Option: "create"}))
	roomID := host.GetRoom()
	require.NotEmpty(t, roomID)

	env.h.Handle(guest, joinMsg(t, protocol.JoinPayload{Username: "bob", Option: "join", Room: roomID}))

	assert.Equal(t, roomID, guest.GetRoom())
	msg := host.last(protocol.MsgPlayerJoined)
	require.NotNil(t, msg)
	payload, err := protocol.ParsePayload[protocol.PlayerJoinedPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, "bob", payload.Username)
	// 加入者自己不收 player_joined
	assert.Nil(t, guest.last(protocol.MsgPlayerJoined))
}

func TestHandleJoin_RejectedWhenAlreadyInRoom(t *testing.T) {
	env := newTestEnv(t)
	c := env.connect("alice")

	env.h.Handle(c, joinMsg(t, protocol.JoinPayload{Username: "alice", Option: "create"}))
	env.h.Handle(c, joinMsg(t, protocol.JoinPayload{Username: "alice", Option: "create"}))

	errPayload, err := protocol.ParsePayload[protocol.ErrorPayload](c.last(protocol.MsgError))
	require.NoError(t, err)
	assert.Equal(t, protocol.ErrCodeAlreadyIn, errPayload.Code)
}

func TestHandleJoin_InvalidOption(t *testing.T) {
	env := newTestEnv(t)
	c := env.connect("alice")

	env.h.Handle(c, joinMsg(t, protocol.JoinPayload{Username: "alice", Option: "teleport"}))

	errPayload, err := protocol.ParsePayload[protocol.ErrorPayload](c.last(protocol.MsgError))
	require.NoError(t, err)
	assert.Equal(t, protocol.ErrCodeValidation, errPayload.Code)
}

func TestHandleJoin_Random(t *testing.T) {
	env := newTestEnv(t)
	host := env.connect("alice")
	env.h.Handle(host, joinMsg(t, protocol.JoinPayload{Username: "alice", Option: "create"}))

	guest := env.connect("bob")
	env.h.Handle(guest, joinMsg(t, protocol.JoinPayload{Username: "bob", Option: "random"}))

	assert.Equal(t, host.GetRoom(), guest.GetRoom())

	// 没有开放房间时报错
	loner := env.connect("carol")
	env.h.Handle(loner, joinMsg(t, protocol.JoinPayload{Username: "carol", Option: "random"}))
	env.h.Handle(loner, joinMsg(t, protocol.JoinPayload{Username: "carol", Option: "random"}))
	// 第一次 random 已加入 alice 的房间，第二次因已在房间被拒
	errPayload, err := protocol.ParsePayload[protocol.ErrorPayload](loner.last(protocol.MsgError))
	require.NoError(t, err)
	assert.Equal(t, protocol.ErrCodeAlreadyIn, errPayload.Code)
}

func TestHandleLeave_NotifiesRemaining(t *testing.T) {
	env := newTestEnv(t)
	host := env.connect("alice")
	guest := env.connect("bob")
	env.h.Handle(host, joinMsg(t, protocol.JoinPayload{Username: "alice", Option: "create"}))
	roomID := host.GetRoom()
	env.h.Handle(guest, joinMsg(t, protocol.JoinPayload{Username: "bob", Option: "join", Room: roomID}))

	env.h.Handle(guest, protocol.MustNewMessage(protocol.MsgLeave, protocol.LeavePayload{
		Username: "bob",
		Room:     roomID,
	}))

	assert.Empty(t, guest.GetRoom())
	msg := host.last(protocol.MsgPlayerLeft)
	require.NotNil(t, msg)
	payload, err := protocol.ParsePayload[protocol.PlayerLeftPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, "bob", payload.Username)
}

func TestHandleDeleteRoom(t *testing.T) {
	env := newTestEnv(t)
	host := env.connect("alice")
	guest := env.connect("bob")
	env.h.Handle(host, joinMsg(t, protocol.JoinPayload{Username: "alice", Option: "create"}))
	roomID := host.GetRoom()
	env.h.Handle(guest, joinMsg(t, protocol.JoinPayload{Username: "bob", Option: "join", Room: roomID}))

	// 非房主删除被拒
	env.h.Handle(guest, protocol.MustNewMessage(protocol.MsgDeleteRoom, protocol.DeleteRoomPayload{Room: roomID}))
	errPayload, err := protocol.ParsePayload[protocol.ErrorPayload](guest.last(protocol.MsgError))
	require.NoError(t, err)
	assert.Equal(t, protocol.ErrCodeNotHost, errPayload.Code)

	env.h.Handle(host, protocol.MustNewMessage(protocol.MsgDeleteRoom, protocol.DeleteRoomPayload{Room: roomID}))

	require.NotNil(t, host.last(protocol.MsgRoomDeleted))
	require.NotNil(t, guest.last(protocol.MsgRoomDeleted))
	assert.Empty(t, host.GetRoom())
	assert.Empty(t, guest.GetRoom())
	_, ok := env.rooms.Get(roomID)
	assert.False(t, ok)
}

func TestHandleGetRooms(t *testing.T) {
	env := newTestEnv(t)
	host := env.connect("alice")
	env.h.Handle(host, joinMsg(t, protocol.JoinPayload{Username: "alice", Option: "create", RoomName: "Open Room"}))

	viewer := env.connect("bob")
	env.h.Handle(viewer, &protocol.Message{Type: protocol.MsgGetRooms})

	msg := viewer.last(protocol.MsgAvailableRooms)
	require.NotNil(t, msg)
	payload, err := protocol.ParsePayload[protocol.AvailableRoomsPayload](msg)
	require.NoError(t, err)
	require.Len(t, payload.Rooms, 1)
	assert.Equal(t, "Open Room", payload.Rooms[0].RoomName)
	assert.Equal(t, 1, payload.Rooms[0].PlayerCount)
}

// --- 游戏 ---

func TestHandleStartGame_FlowsToGameStarted(t *testing.T) {
	env := newTestEnv(t)
	host := env.connect("alice")
	guest := env.connect("bob")
	env.h.Handle(host, joinMsg(t, protocol.JoinPayload{Username: "alice", Option: "create"}))
	roomID := host.GetRoom()
	env.h.Handle(guest, joinMsg(t, protocol.JoinPayload{Username: "bob", Option: "join", Room: roomID}))

	env.h.Handle(host, protocol.MustNewMessage(protocol.MsgStartGame, protocol.StartGamePayload{
		RoomID:   roomID,
		Username: "alice",
	}))

	host.waitFor(t, protocol.MsgGameStarting)
	host.waitFor(t, protocol.MsgGameStarted)
	guest.waitFor(t, protocol.MsgGameStarted)
	guest.waitFor(t, protocol.MsgDecisionTimerStarted)
}

func TestHandleStartGame_AnyMemberCanStart(t *testing.T) {
	env := newTestEnv(t)
	host := env.connect("alice")
	guest := env.connect("bob")
	env.h.Handle(host, joinMsg(t, protocol.JoinPayload{Username: "alice", Option: "create"}))
	roomID := host.GetRoom()
	env.h.Handle(guest, joinMsg(t, protocol.JoinPayload{Username: "bob", Option: "join", Room: roomID}))

	// 非房主成员开局同样有效
	env.h.Handle(guest, protocol.MustNewMessage(protocol.MsgStartGame, protocol.StartGamePayload{RoomID: roomID}))

	host.waitFor(t, protocol.MsgGameStarted)
	guest.waitFor(t, protocol.MsgGameStarted)
	assert.Nil(t, guest.last(protocol.MsgError))
}

func TestHandleSubmitDecision_BeforeStart(t *testing.T) {
	env := newTestEnv(t)
	c := env.connect("alice")
	env.h.Handle(c, joinMsg(t, protocol.JoinPayload{Username: "alice", Option: "create"}))

	env.h.Handle(c, protocol.MustNewMessage(protocol.MsgSubmitDecision, protocol.SubmitDecisionPayload{
		RoomID:   c.GetRoom(),
		Decision: "do something",
	}))

	errPayload, err := protocol.ParsePayload[protocol.ErrorPayload](c.last(protocol.MsgError))
	require.NoError(t, err)
	assert.Equal(t, protocol.ErrCodeGameNotStart, errPayload.Code)
}

func TestHandleGetGameState(t *testing.T) {
	env := newTestEnv(t)
	host := env.connect("alice")
	guest := env.connect("bob")
	env.h.Handle(host, joinMsg(t, protocol.JoinPayload{Username: "alice", Option: "create"}))
	roomID := host.GetRoom()
	env.h.Handle(guest, joinMsg(t, protocol.JoinPayload{Username: "bob", Option: "join", Room: roomID}))
	env.h.Handle(host, protocol.MustNewMessage(protocol.MsgStartGame, protocol.StartGamePayload{RoomID: roomID}))
	host.waitFor(t, protocol.MsgGameStarted)

	env.h.Handle(guest, protocol.MustNewMessage(protocol.MsgGetGameState, protocol.GetGameStatePayload{RoomID: roomID}))

	msg := guest.last(protocol.MsgGameState)
	require.NotNil(t, msg)
	state, err := protocol.ParsePayload[protocol.GameStatePayload](msg)
	require.NoError(t, err)
	assert.Equal(t, 1, state.CurrentRound)
	assert.NotEmpty(t, state.PlayerRole.RoleName)
}

func TestHandleEndGame(t *testing.T) {
	env := newTestEnv(t)
	host := env.connect("alice")
	guest := env.connect("bob")
	env.h.Handle(host, joinMsg(t, protocol.JoinPayload{Username: "alice", Option: "create"}))
	roomID := host.GetRoom()
	env.h.Handle(guest, joinMsg(t, protocol.JoinPayload{Username: "bob", Option: "join", Room: roomID}))
	env.h.Handle(host, protocol.MustNewMessage(protocol.MsgStartGame, protocol.StartGamePayload{RoomID: roomID}))
	host.waitFor(t, protocol.MsgGameStarted)

	env.h.Handle(host, protocol.MustNewMessage(protocol.MsgEndGame, protocol.EndGamePayload{RoomID: roomID}))

	msg := host.waitFor(t, protocol.MsgGameEnded)
	payload, err := protocol.ParsePayload[protocol.GameEndedPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, "ended", payload.Outcome)
}
