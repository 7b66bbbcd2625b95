package room

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/palemoky/crisis-arena/internal/apperrors"
)

// Store 房间镜像持久化边界（尽力而为，失败不阻塞游戏）
type Store interface {
	SaveRoom(ctx context.Context, r *Room) error
	DeleteRoom(ctx context.Context, id string) error
}

// Registry 房间注册表。所有读写都在注册表锁内完成，
// 返回给调用方的一律是副本，避免共享可变状态。
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	order []string // 创建顺序，保证随机加入的扫描顺序确定
	store Store    // 可为 nil（测试）
}

// NewRegistry 创建房间注册表
func NewRegistry(store Store) *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		store: store,
	}
}

// Create 创建房间。容量超出 [2,4] 时纠正为默认值 4。
func (reg *Registry) Create(id, host, name, theme string, capacity int) (*Room, error) {
	if capacity < MinCapacity || capacity > MaxCapacity {
		capacity = DefaultCapacity
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.rooms[id]; exists {
		return nil, apperrors.ErrRoomExists
	}

	r := &Room{
		ID:        id,
		Name:      name,
		Theme:     theme,
		Capacity:  capacity,
		Members:   []string{host},
		CreatedAt: time.Now(),
	}
	reg.rooms[id] = r
	reg.order = append(reg.order, id)

	reg.persist(r)
	log.Printf("🏠 房间 %s 已创建，房主 %s (容量 %d)", id, host, capacity)

	return r.clone(), nil
}

// Join 加入房间
func (reg *Registry) Join(id, user string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.rooms[id]
	if !exists {
		return nil, apperrors.ErrRoomNotFound
	}
	if r.Started {
		return nil, apperrors.ErrGameStarted
	}
	if r.HasMember(user) {
		return nil, apperrors.ErrAlreadyInRoom
	}
	if len(r.Members) >= r.Capacity {
		return nil, apperrors.ErrRoomFull
	}

	r.Members = append(r.Members, user)
	reg.persist(r)
	log.Printf("👤 玩家 %s 加入房间 %s (%d/%d)", user, id, len(r.Members), r.Capacity)

	return r.clone(), nil
}

// JoinRandom 按创建顺序扫描，加入第一个开放房间
func (reg *Registry) JoinRandom(user string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, id := range reg.order {
		r := reg.rooms[id]
		if r == nil || !r.IsOpen() || r.HasMember(user) {
			continue
		}

		r.Members = append(r.Members, user)
		reg.persist(r)
		log.Printf("🎲 玩家 %s 随机加入房间 %s", user, id)
		return r.clone(), nil
	}

	return nil, apperrors.ErrNoOpenRoom
}

// Leave 离开房间。成员清空时整个房间被删除。
// 游戏已开始的房间不允许离开（成员列表在开局后冻结）。
func (reg *Registry) Leave(id, user string) (deleted bool, err error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.rooms[id]
	if !exists {
		return false, apperrors.ErrRoomNotFound
	}
	if r.Started {
		return false, apperrors.ErrGameStarted
	}
	if !r.HasMember(user) {
		return false, apperrors.ErrNotInRoom
	}

	reg.removeMemberLocked(r, user)
	log.Printf("👋 玩家 %s 离开房间 %s", user, id)

	if len(r.Members) == 0 {
		reg.deleteLocked(id)
		return true, nil
	}

	reg.persist(r)
	return false, nil
}

// Delete 删除房间，仅房主可操作且游戏未开始
func (reg *Registry) Delete(id, requester string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.rooms[id]
	if !exists {
		return nil, apperrors.ErrRoomNotFound
	}
	if r.Host() != requester {
		return nil, apperrors.ErrNotHost
	}
	if r.Started {
		return nil, apperrors.ErrGameStarted
	}

	snapshot := r.clone()
	reg.deleteLocked(id)
	log.Printf("🏠 房间 %s 已被房主 %s 删除", id, requester)

	return snapshot, nil
}

// Get 获取房间快照
func (reg *Registry) Get(id string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	r, exists := reg.rooms[id]
	if !exists {
		return nil, false
	}
	return r.clone(), true
}

// ListOpen 按创建顺序返回开放房间（未开始且未满）
func (reg *Registry) ListOpen() []*Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	var open []*Room
	for _, id := range reg.order {
		if r := reg.rooms[id]; r != nil && r.IsOpen() {
			open = append(open, r.clone())
		}
	}
	return open
}

// SetStarted 设置开始标记
func (reg *Registry) SetStarted(id string, started bool) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.rooms[id]
	if !exists {
		return apperrors.ErrRoomNotFound
	}
	r.Started = started
	reg.persist(r)
	return nil
}

// Count 当前房间数
func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// ReleaseAfterGame 终局清理：移除给定玩家，房间空了就删除，
// 意外仍有残留成员时只复位开始标记。
func (reg *Registry) ReleaseAfterGame(id string, players []string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.rooms[id]
	if !exists {
		return
	}

	for _, p := range players {
		reg.removeMemberLocked(r, p)
	}

	if len(r.Members) == 0 {
		reg.deleteLocked(id)
		log.Printf("🏠 房间 %s 游戏结束后已解散", id)
		return
	}

	r.Started = false
	reg.persist(r)
}

// ExpireIdle 清理等待超时的空闲房间，返回被清理的房间快照
func (reg *Registry) ExpireIdle(maxAge time.Duration) []*Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	now := time.Now()
	var expired []*Room
	for _, id := range append([]string(nil), reg.order...) {
		r := reg.rooms[id]
		if r == nil || r.Started {
			continue
		}
		if now.Sub(r.CreatedAt) > maxAge {
			expired = append(expired, r.clone())
			reg.deleteLocked(id)
			log.Printf("🏠 房间 %s 等待超时已清理", id)
		}
	}
	return expired
}

// removeMemberLocked 从成员列表移除用户，保持原有顺序
func (reg *Registry) removeMemberLocked(r *Room, user string) {
	for i, m := range r.Members {
		if m == user {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return
		}
	}
}

// deleteLocked 删除房间并维护创建顺序
func (reg *Registry) deleteLocked(id string) {
	delete(reg.rooms, id)
	for i, o := range reg.order {
		if o == id {
			reg.order = append(reg.order[:i], reg.order[i+1:]...)
			break
		}
	}
	if reg.store != nil {
		go func() { _ = reg.store.DeleteRoom(context.Background(), id) }()
	}
}

// persist 尽力而为地镜像到存储
func (reg *Registry) persist(r *Room) {
	if reg.store == nil {
		return
	}
	snapshot := r.clone()
	go func() { _ = reg.store.SaveRoom(context.Background(), snapshot) }()
}
