package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/palemoky/crisis-arena/internal/game/room"
	"github.com/palemoky/crisis-arena/internal/protocol"
)

// Redis 键布局
const (
	keyUsers       = "users"        // Set: 已注册用户名
	keyLeaderboard = "leaderboard"  // ZSet: 用户名 → 累计总分
	keyRoomIndex   = "rooms"        // Set: 房间镜像索引
	keyUserFmt     = "user:%s"      // String: 最近登录时间
	keyStatsFmt    = "stats:%s"     // String: UserStats JSON
	keyRoomFmt     = "room:%s"      // String: Room JSON
)

// 成就标签
const (
	AchievementChampion = "crisis_champion" // 单局冠军
	AchievementPodium   = "podium_finisher" // 单局前三
)

// UserStats 用户累计战绩
type UserStats struct {
	Username     string    `json:"username"`
	GamesPlayed  int       `json:"games_played"`
	GamesWon     int       `json:"games_won"`
	TotalScore   int       `json:"total_score"`
	BestScore    int       `json:"best_score"` // 单局最高分
	Achievements []string  `json:"achievements,omitempty"`
	LastPlayed   time.Time `json:"last_played"`
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// Store Redis 持久化层：用户战绩、排行榜、房间镜像
type Store struct {
	rdb *redis.Client
}

// 编译期校验：Store 满足房间镜像边界
var _ room.Store = (*Store)(nil)

// NewStore 创建持久化层
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Ping 探活，供健康检查使用
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// --- 用户 ---

// RegisterLogin 记录用户登录
func (s *Store) RegisterLogin(ctx context.Context, username string) error {
	pipe := s.rdb.Pipeline()
	pipe.SAdd(ctx, keyUsers, username)
	pipe.Set(ctx, fmt.Sprintf(keyUserFmt, username), time.Now().Format(time.RFC3339), 0)
	_, err := pipe.Exec(ctx)
	return err
}

// UserCount 已注册用户数
func (s *Store) UserCount(ctx context.Context) (int64, error) {
	return s.rdb.SCard(ctx, keyUsers).Result()
}

// GetUserStats 读取用户战绩，不存在时返回零值
func (s *Store) GetUserStats(ctx context.Context, username string) (*UserStats, error) {
	data, err := s.rdb.Get(ctx, fmt.Sprintf(keyStatsFmt, username)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &UserStats{Username: username}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stats for %s: %w", username, err)
	}

	var stats UserStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("decode stats for %s: %w", username, err)
	}
	return &stats, nil
}

func (s *Store) saveUserStats(ctx context.Context, stats *UserStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats for %s: %w", stats.Username, err)
	}
	return s.rdb.Set(ctx, fmt.Sprintf(keyStatsFmt, stats.Username), data, 0).Err()
}

// UpdateUserStatsFromRankings 终局排名落库：
// 冠军加胜场并授予冠军成就，前三授予登台成就，
// 所有人累计总分同步进排行榜。
func (s *Store) UpdateUserStatsFromRankings(ctx context.Context, rankings []protocol.PlayerRanking) error {
	now := time.Now()
	for _, r := range rankings {
		stats, err := s.GetUserStats(ctx, r.Username)
		if err != nil {
			return err
		}

		stats.GamesPlayed++
		stats.TotalScore += r.TotalScore
		if r.TotalScore > stats.BestScore {
			stats.BestScore = r.TotalScore
		}
		if r.Rank == 1 {
			stats.GamesWon++
			stats.Achievements = appendUnique(stats.Achievements, AchievementChampion)
		}
		if r.Rank <= 3 {
			stats.Achievements = appendUnique(stats.Achievements, AchievementPodium)
		}
		stats.LastPlayed = now

		if err := s.saveUserStats(ctx, stats); err != nil {
			return err
		}
		if err := s.rdb.ZIncrBy(ctx, keyLeaderboard, float64(r.TotalScore), r.Username).Err(); err != nil {
			return fmt.Errorf("update leaderboard for %s: %w", r.Username, err)
		}
	}
	return nil
}

// GetLeaderboard 按累计总分降序返回前 limit 名
func (s *Store) GetLeaderboard(ctx context.Context, limit int64) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	members, err := s.rdb.ZRevRangeWithScores(ctx, keyLeaderboard, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(members))
	for i, m := range members {
		name, _ := m.Member.(string)
		entries = append(entries, LeaderboardEntry{
			Rank:     i + 1,
			Username: name,
			Score:    int(m.Score),
		})
	}
	return entries, nil
}

// GetAllRankings 返回全量排行（管理接口用）
func (s *Store) GetAllRankings(ctx context.Context) ([]LeaderboardEntry, error) {
	return s.GetLeaderboard(ctx, 1<<30)
}

// --- 房间镜像 ---

// SaveRoom 写入房间镜像
func (s *Store) SaveRoom(ctx context.Context, r *room.Room) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", r.ID, err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, fmt.Sprintf(keyRoomFmt, r.ID), data, 0)
	pipe.SAdd(ctx, keyRoomIndex, r.ID)
	_, err = pipe.Exec(ctx)
	return err
}

// DeleteRoom 删除房间镜像
func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, fmt.Sprintf(keyRoomFmt, id))
	pipe.SRem(ctx, keyRoomIndex, id)
	_, err := pipe.Exec(ctx)
	return err
}

// ListRooms 读取全部房间镜像，损坏的条目跳过
func (s *Store) ListRooms(ctx context.Context) ([]*room.Room, error) {
	ids, err := s.rdb.SMembers(ctx, keyRoomIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("list room index: %w", err)
	}

	rooms := make([]*room.Room, 0, len(ids))
	for _, id := range ids {
		data, err := s.rdb.Get(ctx, fmt.Sprintf(keyRoomFmt, id)).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get room %s: %w", id, err)
		}

		var r room.Room
		if err := json.Unmarshal(data, &r); err != nil {
			log.Printf("⚠️ 房间 %s 镜像损坏，跳过: %v", id, err)
			continue
		}
		rooms = append(rooms, &r)
	}
	return rooms, nil
}

// CleanupStaleRooms 启动时清理上次进程遗留的房间镜像。
// 服务重启后连接全部失效，镜像里的房间没有存在的意义。
func (s *Store) CleanupStaleRooms(ctx context.Context) (int, error) {
	rooms, err := s.ListRooms(ctx)
	if err != nil {
		return 0, err
	}
	for _, r := range rooms {
		if err := s.DeleteRoom(ctx, r.ID); err != nil {
			return 0, err
		}
	}
	return len(rooms), nil
}

func appendUnique(list []string, item string) []string {
	for _, v := range list {
		if v == item {
			return list
		}
	}
	return append(list, item)
}
