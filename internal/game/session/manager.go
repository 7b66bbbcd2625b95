package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/palemoky/crisis-arena/internal/ai"
	"github.com/palemoky/crisis-arena/internal/apperrors"
	"github.com/palemoky/crisis-arena/internal/config"
	"github.com/palemoky/crisis-arena/internal/game/room"
	"github.com/palemoky/crisis-arena/internal/protocol"
)

// Manager 管理所有进行中的对局，房间 ID 为主键
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	rooms   *room.Registry
	gen     ai.Generator
	notify  Notifier
	results ResultStore
	cfg     config.GameConfig
}

// NewManager 创建对局管理器
func NewManager(rooms *room.Registry, gen ai.Generator, notify Notifier, results ResultStore, cfg config.GameConfig) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		rooms:    rooms,
		gen:      gen,
		notify:   notify,
		results:  results,
		cfg:      cfg,
	}
}

// StartGame 由房间内任意成员发起开局。剧本生成是远程调用，放到
// 后台执行，先把房间锁定并告知所有玩家游戏启动中。
func (m *Manager) StartGame(roomID, username string) error {
	r, ok := m.rooms.Get(roomID)
	if !ok {
		return apperrors.ErrRoomNotFound
	}
	if !r.HasMember(username) {
		return apperrors.ErrNotInRoom
	}
	if len(r.Members) < room.MinCapacity {
		return apperrors.ErrNotEnough
	}

	theme := r.Theme
	if _, known := ai.Themes[theme]; !known {
		theme = ai.DefaultTheme
	}

	m.mu.Lock()
	if _, running := m.sessions[roomID]; running || r.Started {
		m.mu.Unlock()
		return apperrors.ErrGameStarted
	}

	s := &Session{
		roomID:      roomID,
		theme:       theme,
		players:     append([]string(nil), r.Members...),
		state:       StateProcessingRound, // 剧本生成期间不接受决策
		decisions:   make(map[string]string),
		totals:      make(map[string]int),
		roundScores: make(map[string][]protocol.RoundScore),
		startedAt:   time.Now(),
		cfg:         m.cfg,
		gen:         m.gen,
		notify:      m.notify,
		mgr:         m,
	}
	m.sessions[roomID] = s
	m.mu.Unlock()

	if err := m.rooms.SetStarted(roomID, true); err != nil {
		m.mu.Lock()
		delete(m.sessions, roomID)
		m.mu.Unlock()
		return err
	}

	log.Printf("🎮 房间 %s 开局，玩家: %v，主题: %s", roomID, s.players, theme)
	s.broadcast(protocol.MustNewMessage(protocol.MsgGameStarting, protocol.GameStartingPayload{
		Message: "Game starting! Generating your crisis scenario...",
	}))

	go s.begin()
	return nil
}

// SubmitDecision 提交本回合决策，重复提交以最后一次为准
func (m *Manager) SubmitDecision(roomID, username, decision string) error {
	if decision == "" {
		return apperrors.ErrEmptyDecision
	}
	s, ok := m.get(roomID)
	if !ok {
		return apperrors.ErrGameNotStart
	}
	return s.submitDecision(username, decision)
}

// GetGameState 返回请求者视角的对局快照
func (m *Manager) GetGameState(roomID, username string) (*protocol.GameStatePayload, error) {
	s, ok := m.get(roomID)
	if !ok {
		return nil, apperrors.ErrGameNotStart
	}
	return s.snapshot(username)
}

// EndGame 房主手动结束对局，直接进入终局结算
func (m *Manager) EndGame(roomID, username string) error {
	s, ok := m.get(roomID)
	if !ok {
		return apperrors.ErrGameNotStart
	}
	if s.players[0] != username {
		return apperrors.ErrNotHost
	}

	s.mu.Lock()
	if s.closed || s.state == StateEnded {
		s.mu.Unlock()
		return apperrors.ErrWrongState
	}
	s.state = StateEnded
	s.stopTimerLocked()
	s.mu.Unlock()

	log.Printf("🏁 房间 %s 的对局被房主 %s 手动结束", roomID, username)
	go s.finishGame(OutcomeEnded)
	return nil
}

// Count 进行中的对局数
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ActiveRooms 进行中对局的房间 ID 列表
func (m *Manager) ActiveRooms() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Has 房间是否有进行中的对局
func (m *Manager) Has(roomID string) bool {
	_, ok := m.get(roomID)
	return ok
}

func (m *Manager) get(roomID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[roomID]
	return s, ok
}

// teardown 结算展示宽限结束后回收对局与房间
func (m *Manager) teardown(roomID string) {
	m.mu.Lock()
	s, ok := m.sessions[roomID]
	delete(m.sessions, roomID)
	m.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	s.closed = true
	s.stopTimerLocked()
	s.mu.Unlock()

	m.rooms.ReleaseAfterGame(roomID, s.players)
	s.broadcast(protocol.MustNewMessage(protocol.MsgRoomDeleted, protocol.RoomDeletedPayload{
		RoomID:  roomID,
		Message: "Game finished, room closed",
	}))
	log.Printf("🧹 房间 %s 对局回收完毕", roomID)
}

// persistResults 终局排名落库，失败只记日志不影响玩家侧流程
func (m *Manager) persistResults(rankings []protocol.PlayerRanking) {
	if m.results == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.results.UpdateUserStatsFromRankings(ctx, rankings); err != nil {
		log.Printf("⚠️ 终局排名持久化失败: %v", err)
	}
}
