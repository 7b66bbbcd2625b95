package server

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/palemoky/crisis-arena/internal/protocol"
)

const (
	// 写入超时
	writeWait = 10 * time.Second

	// 读取超时（pong 等待时间）
	pongWait = 60 * time.Second

	// ping 发送间隔（必须小于 pongWait）
	pingPeriod = (pongWait * 9) / 10

	// 消息最大大小
	maxMessageSize = 8192
)

// Client 代表一个连接的玩家
type Client struct {
	ID string // 连接唯一 ID
	IP string // 客户端 IP 地址

	server *Server
	conn   *websocket.Conn
	send   chan []byte

	mu     sync.RWMutex
	name   string // 玩家昵称
	roomID string // 当前所在房间 ID
	closed bool
}

// NewClient 创建新客户端。昵称为空时分配访客名。
func NewClient(s *Server, conn *websocket.Conn, name string) *Client {
	id := uuid.New().String()
	if name == "" {
		name = fmt.Sprintf("guest-%s", id[:8])
	}
	return &Client{
		ID:     id,
		server: s,
		conn:   conn,
		send:   make(chan []byte, 256),
		name:   name,
	}
}

func (c *Client) GetID() string {
	return c.ID
}

func (c *Client) GetName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// SetName 更新昵称并同步服务器的名字索引
func (c *Client) SetName(name string) {
	c.mu.Lock()
	old := c.name
	c.name = name
	c.mu.Unlock()

	if old != name {
		c.server.renameClient(old, name, c)
	}
}

func (c *Client) GetRoom() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

func (c *Client) SetRoom(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = id
}

// ReadPump 从 WebSocket 读取消息
func (c *Client) ReadPump() {
	defer func() {
		c.handleDisconnect()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("读取错误: %v", err)
			}
			break
		}

		msg, err := protocol.Decode(message)
		if err != nil {
			log.Printf("消息解析错误: %v", err)
			c.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
			continue
		}

		c.server.handler.Handle(c, msg)
	}
}

// WritePump 向 WebSocket 写入消息
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 通道已关闭
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage 发送消息给客户端
func (c *Client) SendMessage(msg *protocol.Message) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return
	}
	c.mu.RUnlock()

	data, err := msg.Encode()
	if err != nil {
		log.Printf("消息编码错误: %v", err)
		return
	}

	select {
	case c.send <- data:
	default:
		// 发送缓冲区已满，关闭连接
		log.Printf("客户端 %s 发送缓冲区已满", c.GetName())
		c.Close()
	}
}

// Close 关闭客户端连接
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.send)
}

// handleDisconnect 处理断开连接。
// 未开局的房间直接按离开处理；已开局的对局不动，由决策超时兜底。
func (c *Client) handleDisconnect() {
	name := c.GetName()
	roomID := c.GetRoom()

	if roomID != "" {
		if r, ok := c.server.rooms.Get(roomID); ok && !r.Started {
			deleted, err := c.server.rooms.Leave(roomID, name)
			if err == nil && !deleted {
				if remaining, ok := c.server.rooms.Get(roomID); ok {
					left := protocol.MustNewMessage(protocol.MsgPlayerLeft, protocol.PlayerLeftPayload{
						Username: name,
						Message:  fmt.Sprintf("%s disconnected", name),
					})
					for _, m := range remaining.Members {
						c.server.SendToUser(m, left)
					}
				}
			}
		}
	}

	c.server.unregisterClient(c)
	c.Close()
}
