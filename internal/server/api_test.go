package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/crisis-arena/internal/config"
	"github.com/palemoky/crisis-arena/internal/protocol"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Redis.Addr = mr.Addr()
	cfg.AI.APIKey = "test-key"
	cfg.AI.MaxRetries = 1
	cfg.AI.Timeout = 1

	s, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.redis.Close() })
	return s
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	return rec
}

func TestAPI_Health(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.NotEmpty(t, resp["timestamp"])
}

func TestAPI_Login(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/login", `{"username":"alice"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	count, err := s.store.UserCount(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	rec = doRequest(t, s, http.MethodPost, "/login", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/login", "not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Stats(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 0, resp["online_players"])
	assert.EqualValues(t, 0, resp["active_games"])
}

func TestAPI_Rooms(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/rooms", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"rooms":[]}`, rec.Body.String())

	_, err := s.rooms.Create("room-1", "alice", "Open Room", "climate_change", 4)
	require.NoError(t, err)

	rec = doRequest(t, s, http.MethodGet, "/api/rooms", "")
	var resp struct {
		Rooms []protocol.RoomListItem `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Rooms, 1)
	assert.Equal(t, "room-1", resp.Rooms[0].RoomID)

	rec = doRequest(t, s, http.MethodGet, "/api/rooms/room-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/rooms/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_Leaderboard(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, s.store.UpdateUserStatsFromRankings(ctx, []protocol.PlayerRanking{
		{Username: "alice", Rank: 1, TotalScore: 200},
		{Username: "bob", Rank: 2, TotalScore: 100},
	}))

	rec := doRequest(t, s, http.MethodGet, "/api/leaderboard?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Leaderboard []struct {
			Username string `json:"username"`
			Score    int    `json:"score"`
		} `json:"leaderboard"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Leaderboard, 1)
	assert.Equal(t, "alice", resp.Leaderboard[0].Username)

	rec = doRequest(t, s, http.MethodGet, "/api/leaderboard?limit=junk", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/rankings", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_UserStats(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/user/alice", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Username    string `json:"username"`
		GamesPlayed int    `json:"games_played"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.Username)
	assert.Zero(t, resp.GamesPlayed)
}

func TestAPI_ActiveGames(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/active-games", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count int      `json:"count"`
		Rooms []string `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Count)
	assert.Empty(t, resp.Rooms)
}
