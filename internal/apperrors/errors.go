package apperrors

import (
	"github.com/palemoky/crisis-arena/internal/protocol"
)

// GameError 游戏错误（房间和会话共享）
type GameError struct {
	Code    int
	Message string
}

func (e *GameError) Error() string {
	return e.Message
}

// 预定义错误
var (
	ErrRoomNotFound  = &GameError{Code: protocol.ErrCodeRoomNotFound, Message: "room not found"}
	ErrRoomExists    = &GameError{Code: protocol.ErrCodeRoomExists, Message: "room id already taken"}
	ErrRoomFull      = &GameError{Code: protocol.ErrCodeRoomFull, Message: "room is full"}
	ErrNotInRoom     = &GameError{Code: protocol.ErrCodeNotInRoom, Message: "you are not in this room"}
	ErrAlreadyInRoom = &GameError{Code: protocol.ErrCodeAlreadyIn, Message: "you are already in this room"}
	ErrGameStarted   = &GameError{Code: protocol.ErrCodeGameStarted, Message: "game already started"}
	ErrGameNotStart  = &GameError{Code: protocol.ErrCodeGameNotStart, Message: "no active game in this room"}
	ErrNotHost       = &GameError{Code: protocol.ErrCodeNotHost, Message: "only the host can do this"}
	ErrNoOpenRoom    = &GameError{Code: protocol.ErrCodeNoOpenRoom, Message: "no room free at this time"}
	ErrWrongState    = &GameError{Code: protocol.ErrCodeWrongState, Message: "decisions are not being accepted right now"}
	ErrNotInGame     = &GameError{Code: protocol.ErrCodeNotInGame, Message: "you are not part of this game"}
	ErrNotEnough     = &GameError{Code: protocol.ErrCodeNotEnough, Message: "need at least 2 players to start game"}
	ErrEmptyDecision = &GameError{Code: protocol.ErrCodeValidation, Message: "decision text cannot be empty"}
)
