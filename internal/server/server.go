package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/palemoky/crisis-arena/internal/ai"
	"github.com/palemoky/crisis-arena/internal/config"
	"github.com/palemoky/crisis-arena/internal/game/room"
	"github.com/palemoky/crisis-arena/internal/game/session"
	"github.com/palemoky/crisis-arena/internal/protocol"
	"github.com/palemoky/crisis-arena/internal/server/handler"
	"github.com/palemoky/crisis-arena/internal/server/storage"
)

// Server WebSocket 服务器
type Server struct {
	config   *config.Config
	redis    *redis.Client
	store    *storage.Store
	rooms    *room.Registry
	sessions *session.Manager
	handler  *handler.Handler

	clients   map[string]*Client // 连接 ID → 客户端
	byName    map[string]*Client // 昵称 → 客户端
	clientsMu sync.RWMutex

	originChecker *OriginChecker
	upgrader      websocket.Upgrader

	// 连接控制
	maxConnections int
	semaphore      chan struct{} // 信号量控制并发连接数

	httpServer *http.Server
}

// 编译期校验：Server 同时充当对局的下发通道和处理器的客户端目录
var (
	_ session.Notifier  = (*Server)(nil)
	_ handler.Directory = (*Server)(nil)
)

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) (*Server, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// 测试 Redis 连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis 连接失败: %w", err)
	}

	store := storage.NewStore(rdb)
	// 上个进程遗留的房间镜像已无对应连接
	if n, err := store.CleanupStaleRooms(ctx); err != nil {
		log.Printf("⚠️ 清理遗留房间镜像失败: %v", err)
	} else if n > 0 {
		log.Printf("🧹 清理了 %d 个遗留房间镜像", n)
	}

	s := &Server{
		config:         cfg,
		redis:          rdb,
		store:          store,
		clients:        make(map[string]*Client),
		byName:         make(map[string]*Client),
		originChecker:  NewOriginChecker(cfg.Server.AllowedOrigins),
		maxConnections: cfg.Server.MaxConnections,
		semaphore:      make(chan struct{}, cfg.Server.MaxConnections),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.originChecker.Check,
	}

	s.rooms = room.NewRegistry(store)
	s.sessions = session.NewManager(s.rooms, ai.NewClient(&cfg.AI), s, store, cfg.Game)
	s.handler = handler.NewHandler(s.rooms, s.sessions, s)

	log.Printf("🔒 连接控制: 最大连接数=%d, 允许来源=%v", s.maxConnections, cfg.Server.AllowedOrigins)
	return s, nil
}

// Start 启动服务器并阻塞直到退出
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	go s.monitorStats()
	go s.expireRoomsLoop()

	log.Printf("🚀 服务器启动在 ws://%s/ws (CPU核心数: %d)", addr, runtime.NumCPU())
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second, // 防止 Slowloris 攻击
		IdleTimeout:       60 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// routes 组装 HTTP 路由
func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/ws", s.handleWebSocket)
	s.registerAPIRoutes(r)
	return r
}

// handleWebSocket 处理 WebSocket 连接
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientIP := GetClientIP(r)

	// 连接数限制检查
	select {
	case s.semaphore <- struct{}{}:
	default:
		log.Printf("🚫 达到最大连接数限制 (%d), IP: %s", s.maxConnections, clientIP)
		http.Error(w, "Server Full", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		<-s.semaphore
		log.Printf("WebSocket 升级失败: %v", err)
		return
	}

	username := r.URL.Query().Get("username")
	client := NewClient(s, conn, username)
	client.IP = clientIP
	s.registerClient(client)

	if username != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := s.store.RegisterLogin(ctx, username); err != nil {
				log.Printf("⚠️ 记录用户 %s 登录失败: %v", username, err)
			}
		}()
	}

	client.SendMessage(protocol.NewNotification(fmt.Sprintf("Welcome to Crisis Arena, %s!", client.GetName())))
	log.Printf("✅ 玩家 %s (%s) 已连接", client.GetName(), client.ID)

	go client.ReadPump()
	go client.WritePump()
}

// registerClient 注册客户端
func (s *Server) registerClient(client *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[client.ID] = client
	s.byName[client.GetName()] = client
}

// unregisterClient 注销客户端并释放连接配额
func (s *Server) unregisterClient(client *Client) {
	s.clientsMu.Lock()
	if _, ok := s.clients[client.ID]; !ok {
		s.clientsMu.Unlock()
		return
	}
	delete(s.clients, client.ID)
	if s.byName[client.GetName()] == client {
		delete(s.byName, client.GetName())
	}
	s.clientsMu.Unlock()

	<-s.semaphore
	log.Printf("❌ 玩家 %s (%s) 已断开", client.GetName(), client.ID)
}

// renameClient 同步昵称索引。重名时后来者顶替索引位。
func (s *Server) renameClient(old, name string, client *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if s.byName[old] == client {
		delete(s.byName, old)
	}
	s.byName[name] = client
}

// SendToUser 按昵称下发消息，实现对局的 Notifier。
// 玩家掉线时静默丢弃，对局推进不受影响。
func (s *Server) SendToUser(username string, msg *protocol.Message) {
	s.clientsMu.RLock()
	client := s.byName[username]
	s.clientsMu.RUnlock()

	if client != nil {
		client.SendMessage(msg)
	}
}

// GetClientByName 按昵称查找在线客户端
func (s *Server) GetClientByName(name string) handler.Client {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	if client, ok := s.byName[name]; ok {
		return client
	}
	return nil
}

// OnlineCount 在线人数
func (s *Server) OnlineCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// monitorStats 定期监控服务器状态
func (s *Server) monitorStats() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		log.Printf("📊 [监控] 在线: %d | 房间: %d | 对局: %d | Goroutines: %d | 活跃连接: %d/%d | 内存: %.2f MB",
			s.OnlineCount(),
			s.rooms.Count(),
			s.sessions.Count(),
			runtime.NumGoroutine(),
			len(s.semaphore),
			s.maxConnections,
			float64(m.Alloc)/1024/1024)
	}
}

// expireRoomsLoop 定期清理长时间未开局的房间
func (s *Server) expireRoomsLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		expired := s.rooms.ExpireIdle(s.config.Game.RoomTimeoutDuration())
		for _, r := range expired {
			log.Printf("⏳ 房间 %s 闲置超时被回收", r.ID)
			deleted := protocol.MustNewMessage(protocol.MsgRoomDeleted, protocol.RoomDeletedPayload{
				RoomID:  r.ID,
				Message: "The room was closed due to inactivity",
			})
			for _, m := range r.Members {
				s.SendToUser(m, deleted)
				if mc := s.GetClientByName(m); mc != nil {
					mc.SetRoom("")
				}
			}
		}
	}
}

// GracefulShutdown 优雅关闭：停止接收新连接并断开现有客户端
func (s *Server) GracefulShutdown(timeout time.Duration) {
	log.Println("🛑 开始关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("⚠️ HTTP 服务器关闭异常: %v", err)
		}
	}

	s.clientsMu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.RUnlock()
	for _, c := range clients {
		c.Close()
	}

	if err := s.redis.Close(); err != nil {
		log.Printf("⚠️ Redis 关闭异常: %v", err)
	}
	log.Println("👋 服务器已关闭")
}
