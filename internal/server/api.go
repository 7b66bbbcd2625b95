package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/palemoky/crisis-arena/internal/protocol"
)

// registerAPIRoutes 注册 REST 接口
func (s *Server) registerAPIRoutes(r chi.Router) {
	r.Post("/login", s.handleLogin)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Get("/rooms", s.handleListRooms)
		r.Get("/rooms/{roomID}", s.handleGetRoom)
		r.Get("/rankings", s.handleRankings)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/user/{username}", s.handleGetUser)
		r.Get("/active-games", s.handleActiveGames)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️ 响应编码失败: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleLogin 记录用户登录
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	if err := s.store.RegisterLogin(r.Context(), req.Username); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record login")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"username": req.Username,
		"status":   "ok",
	})
}

// handleHealth 健康检查，带 Redis 探活
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleStats 服务器总体统计
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.UserCount(r.Context())
	if err != nil {
		log.Printf("⚠️ 读取用户数失败: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"online_players":   s.OnlineCount(),
		"open_rooms":       s.rooms.Count(),
		"active_games":     s.sessions.Count(),
		"registered_users": users,
	})
}

// handleListRooms 开放房间列表
func (s *Server) handleListRooms(w http.ResponseWriter, _ *http.Request) {
	open := s.rooms.ListOpen()
	items := make([]protocol.RoomListItem, 0, len(open))
	for _, r := range open {
		items = append(items, protocol.RoomListItem{
			RoomID:      r.ID,
			RoomName:    r.Name,
			Theme:       r.Theme,
			PlayerCount: len(r.Members),
			MaxPlayers:  r.Capacity,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": items})
}

// handleGetRoom 单个房间详情
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	rm, ok := s.rooms.Get(roomID)
	if !ok {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

// handleRankings 全量排行
func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request) {
	rankings, err := s.store.GetAllRankings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read rankings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rankings": rankings})
}

// handleLeaderboard 排行榜前 N 名，默认 10
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := int64(10)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	board, err := s.store.GetLeaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": board})
}

// handleGetUser 用户战绩
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	stats, err := s.store.GetUserStats(r.Context(), username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read user stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleActiveGames 进行中的对局
func (s *Server) handleActiveGames(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"count": s.sessions.Count(),
		"rooms": s.sessions.ActiveRooms(),
	})
}
