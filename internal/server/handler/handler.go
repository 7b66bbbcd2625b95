package handler

import (
	"errors"
	"log"
	"time"

	"github.com/palemoky/crisis-arena/internal/apperrors"
	"github.com/palemoky/crisis-arena/internal/game/room"
	"github.com/palemoky/crisis-arena/internal/game/session"
	"github.com/palemoky/crisis-arena/internal/protocol"
)

// Client 连接层客户端接口，避免与 server 包循环依赖
type Client interface {
	GetID() string
	GetName() string
	SetName(name string)
	GetRoom() string
	SetRoom(id string)
	SendMessage(msg *protocol.Message)
}

// Directory 在线客户端目录，由 server 实现
type Directory interface {
	SendToUser(username string, msg *protocol.Message)
	GetClientByName(name string) Client
	OnlineCount() int
}

// Handler 消息处理器
type Handler struct {
	rooms    *room.Registry
	sessions *session.Manager
	dir      Directory
}

// NewHandler 创建处理器
func NewHandler(rooms *room.Registry, sessions *session.Manager, dir Directory) *Handler {
	return &Handler{rooms: rooms, sessions: sessions, dir: dir}
}

// Handle 按消息类型分发
func (h *Handler) Handle(c Client, msg *protocol.Message) {
	switch msg.Type {
	// 连接操作
	case protocol.MsgPing:
		h.handlePing(c, msg)

	// 房间操作
	case protocol.MsgJoin:
		h.handleJoin(c, msg)
	case protocol.MsgLeave:
		h.handleLeave(c, msg)
	case protocol.MsgDeleteRoom:
		h.handleDeleteRoom(c, msg)
	case protocol.MsgGetRooms:
		h.handleGetRooms(c)

	// 游戏操作
	case protocol.MsgStartGame:
		h.handleStartGame(c, msg)
	case protocol.MsgSubmitDecision:
		h.handleSubmitDecision(c, msg)
	case protocol.MsgGetGameState:
		h.handleGetGameState(c, msg)
	case protocol.MsgEndGame:
		h.handleEndGame(c, msg)

	default:
		log.Printf("⚠️ 未知消息类型: %s (来自 %s)", msg.Type, c.GetName())
		c.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
	}
}

func (h *Handler) handlePing(c Client, msg *protocol.Message) {
	payload, err := protocol.ParsePayload[protocol.PingPayload](msg)
	if err != nil {
		c.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	c.SendMessage(protocol.MustNewMessage(protocol.MsgPong, protocol.PongPayload{
		ClientTimestamp: payload.Timestamp,
		ServerTimestamp: time.Now().UnixMilli(),
	}))
}

// sendError 把业务错误转成错误消息下发
func sendError(c Client, err error) {
	var ge *apperrors.GameError
	if errors.As(err, &ge) {
		c.SendMessage(protocol.NewErrorMessageWithText(ge.Code, ge.Message))
		return
	}
	c.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeUnknown))
}
