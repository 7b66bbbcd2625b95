package room

import "time"

const (
	// 房间人数约束
	MinCapacity     = 2
	MaxCapacity     = 4
	DefaultCapacity = 4
)

// Room 游戏房间。Members[0] 是房主。
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Theme     string    `json:"theme"`
	Capacity  int       `json:"capacity"`
	Members   []string  `json:"members"` // 按加入顺序
	Started   bool      `json:"started"`
	CreatedAt time.Time `json:"created_at"`
}

// Host 返回房主（首位成员）
func (r *Room) Host() string {
	if len(r.Members) == 0 {
		return ""
	}
	return r.Members[0]
}

// IsOpen 房间是否可加入
func (r *Room) IsOpen() bool {
	return !r.Started && len(r.Members) < r.Capacity
}

// HasMember 用户是否在房间中
func (r *Room) HasMember(user string) bool {
	for _, m := range r.Members {
		if m == user {
			return true
		}
	}
	return false
}

// clone 返回成员切片独立的副本
func (r *Room) clone() *Room {
	cp := *r
	cp.Members = append([]string(nil), r.Members...)
	return &cp
}
