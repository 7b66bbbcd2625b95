package protocol

import "encoding/json"

// Message 基础消息结构
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessageType 消息类型
type MessageType string

// 客户端 → 服务端 消息类型
const (
	// 连接操作
	MsgPing MessageType = "ping" // 心跳 ping

	// 房间操作
	MsgJoin       MessageType = "join"        // 创建/加入/随机加入房间
	MsgLeave      MessageType = "leave"       // 离开房间
	MsgDeleteRoom MessageType = "delete_room" // 删除房间（仅房主）
	MsgGetRooms   MessageType = "get_rooms"   // 获取开放房间列表

	// 游戏操作
	MsgStartGame      MessageType = "start_game"      // 开始游戏
	MsgSubmitDecision MessageType = "submit_decision" // 提交决策
	MsgGetGameState   MessageType = "get_game_state"  // 获取当前游戏状态
	MsgEndGame        MessageType = "end_game"        // 手动结束游戏（仅房主）
)

// 服务端 → 客户端 消息类型
const (
	// 连接与房间
	MsgPong           MessageType = "pong"            // 心跳 pong
	MsgNotification   MessageType = "notification"    // 通知消息
	MsgAvailableRooms MessageType = "available_rooms" // 开放房间列表
	MsgRoomJoined     MessageType = "room_joined"     // 加入房间成功
	MsgPlayerJoined   MessageType = "player_joined"   // 其他玩家加入
	MsgPlayerLeft     MessageType = "player_left"     // 玩家离开
	MsgRoomDeleted    MessageType = "room_deleted"    // 房间被删除

	// 游戏流程
	MsgGameStarting            MessageType = "game_starting"             // 游戏启动中（生成剧本）
	MsgGameStarted             MessageType = "game_started"              // 游戏开始
	MsgDecisionTimerStarted    MessageType = "decision_timer_started"    // 决策计时开始
	MsgPlayerDecisionSubmitted MessageType = "player_decision_submitted" // 有玩家提交决策
	MsgTimeoutNotification     MessageType = "timeout_notification"      // 决策超时通知
	MsgRoundCompleted          MessageType = "round_completed"           // 回合结算
	MsgGameEnded               MessageType = "game_ended"                // 游戏结束
	MsgGameState               MessageType = "game_state"                // 游戏状态快照

	// 错误
	MsgError MessageType = "error" // 错误消息
)
