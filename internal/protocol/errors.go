package protocol

// 错误码
const (
	ErrCodeUnknown      = 1000
	ErrCodeInvalidMsg   = 1001
	ErrCodeValidation   = 1002 // 字段校验失败
	ErrCodeRoomNotFound = 2001
	ErrCodeRoomFull     = 2002
	ErrCodeNotInRoom    = 2003
	ErrCodeGameStarted  = 2004 // 游戏已开始
	ErrCodeRoomExists   = 2005 // 房间号已被占用
	ErrCodeNotHost      = 2006 // 非房主操作
	ErrCodeNoOpenRoom   = 2007 // 没有可加入的房间
	ErrCodeAlreadyIn    = 2008 // 已在房间中
	ErrCodeGameNotStart = 3001
	ErrCodeWrongState   = 3002 // 当前阶段不允许该操作
	ErrCodeNotInGame    = 3003 // 玩家不在本局游戏中
	ErrCodeNotEnough    = 3004 // 玩家人数不足
	ErrCodeStoreFailure = 5001 // 存储不可用
)

// ErrorMessages 错误码对应的消息
var ErrorMessages = map[int]string{
	ErrCodeUnknown:      "unknown error",
	ErrCodeInvalidMsg:   "invalid message format",
	ErrCodeValidation:   "invalid request field",
	ErrCodeRoomNotFound: "room not found",
	ErrCodeRoomFull:     "room is full",
	ErrCodeNotInRoom:    "you are not in this room",
	ErrCodeGameStarted:  "game already started",
	ErrCodeRoomExists:   "room id already taken",
	ErrCodeNotHost:      "only the host can do this",
	ErrCodeNoOpenRoom:   "no room free at this time",
	ErrCodeAlreadyIn:    "you are already in this room",
	ErrCodeGameNotStart: "no active game in this room",
	ErrCodeWrongState:   "operation not allowed in current phase",
	ErrCodeNotInGame:    "you are not part of this game",
	ErrCodeNotEnough:    "need at least 2 players to start game",
	ErrCodeStoreFailure: "storage unavailable",
}
