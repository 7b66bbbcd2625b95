package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/crisis-arena/internal/game/room"
	"github.com/palemoky/crisis-arena/internal/protocol"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb)
}

func TestStore_RegisterLoginAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RegisterLogin(ctx, "alice"))
	require.NoError(t, s.RegisterLogin(ctx, "bob"))
	require.NoError(t, s.RegisterLogin(ctx, "alice")) // 重复登录不累计

	count, err := s.UserCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestStore_GetUserStats_ZeroValueForUnknown(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.GetUserStats(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, "nobody", stats.Username)
	assert.Zero(t, stats.GamesPlayed)
	assert.Empty(t, stats.Achievements)
}

func TestStore_UpdateUserStatsFromRankings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rankings := []protocol.PlayerRanking{
		{Username: "alice", Rank: 1, TotalScore: 240},
		{Username: "bob", Rank: 2, TotalScore: 180},
		{Username: "carol", Rank: 3, TotalScore: 120},
		{Username: "dave", Rank: 4, TotalScore: 60},
	}
	require.NoError(t, s.UpdateUserStatsFromRankings(ctx, rankings))

	alice, err := s.GetUserStats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, alice.GamesPlayed)
	assert.Equal(t, 1, alice.GamesWon)
	assert.Equal(t, 240, alice.TotalScore)
	assert.Equal(t, 240, alice.BestScore)
	assert.Contains(t, alice.Achievements, AchievementChampion)
	assert.Contains(t, alice.Achievements, AchievementPodium)
	assert.False(t, alice.LastPlayed.IsZero())

	bob, err := s.GetUserStats(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, bob.GamesWon)
	assert.NotContains(t, bob.Achievements, AchievementChampion)
	assert.Contains(t, bob.Achievements, AchievementPodium)

	dave, err := s.GetUserStats(ctx, "dave")
	require.NoError(t, err)
	assert.Empty(t, dave.Achievements)
}

func TestStore_UpdateUserStats_Accumulates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// 第一局 alice 夺冠，第二局成绩更差
	require.NoError(t, s.UpdateUserStatsFromRankings(ctx, []protocol.PlayerRanking{
		{Username: "alice", Rank: 1, TotalScore: 200},
		{Username: "bob", Rank: 2, TotalScore: 100},
	}))
	require.NoError(t, s.UpdateUserStatsFromRankings(ctx, []protocol.PlayerRanking{
		{Username: "bob", Rank: 1, TotalScore: 150},
		{Username: "alice", Rank: 2, TotalScore: 80},
	}))

	alice, err := s.GetUserStats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, alice.GamesPlayed)
	assert.Equal(t, 1, alice.GamesWon)
	assert.Equal(t, 280, alice.TotalScore)
	assert.Equal(t, 200, alice.BestScore)
	// 成就不重复授予
	assert.ElementsMatch(t, []string{AchievementChampion, AchievementPodium}, alice.Achievements)
}

func TestStore_GetLeaderboard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateUserStatsFromRankings(ctx, []protocol.PlayerRanking{
		{Username: "alice", Rank: 1, TotalScore: 200},
		{Username: "bob", Rank: 2, TotalScore: 100},
		{Username: "carol", Rank: 3, TotalScore: 50},
	}))
	require.NoError(t, s.UpdateUserStatsFromRankings(ctx, []protocol.PlayerRanking{
		{Username: "bob", Rank: 1, TotalScore: 150},
		{Username: "alice", Rank: 2, TotalScore: 30},
	}))

	board, err := s.GetLeaderboard(ctx, 2)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, LeaderboardEntry{Rank: 1, Username: "bob", Score: 250}, board[0])
	assert.Equal(t, LeaderboardEntry{Rank: 2, Username: "alice", Score: 230}, board[1])

	all, err := s.GetAllRankings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStore_RoomMirror(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := &room.Room{
		ID:       "room-1",
		Name:     "Test Room",
		Theme:    "climate_change",
		Capacity: 4,
		Members:  []string{"alice", "bob"},
	}
	require.NoError(t, s.SaveRoom(ctx, r))

	rooms, err := s.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "room-1", rooms[0].ID)
	assert.Equal(t, []string{"alice", "bob"}, rooms[0].Members)

	require.NoError(t, s.DeleteRoom(ctx, "room-1"))
	rooms, err = s.ListRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)

	// 删除不存在的房间不报错
	assert.NoError(t, s.DeleteRoom(ctx, "ghost"))
}

func TestStore_CleanupStaleRooms(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRoom(ctx, &room.Room{ID: "a", Members: []string{"x"}}))
	require.NoError(t, s.SaveRoom(ctx, &room.Room{ID: "b"}))

	n, err := s.CleanupStaleRooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rooms, err := s.ListRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestStore_Ping(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}
