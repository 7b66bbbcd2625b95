package protocol

// --- 客户端请求 Payloads ---

// PingPayload 心跳请求
type PingPayload struct {
	Timestamp int64 `json:"timestamp"` // 客户端时间戳（毫秒）
}

// JoinPayload 创建/加入/随机加入房间请求
type JoinPayload struct {
	Username   string `json:"username"`
	Room       string `json:"room,omitempty"`
	Option     string `json:"option"` // create / join / random
	RoomName   string `json:"room_name,omitempty"`
	RoomTheme  string `json:"room_theme,omitempty"`
	MaxPlayers int    `json:"max_players,omitempty"`
}

// LeavePayload 离开房间请求
type LeavePayload struct {
	Username string `json:"username"`
	Room     string `json:"room"`
	Message  string `json:"message,omitempty"`
}

// DeleteRoomPayload 删除房间请求
type DeleteRoomPayload struct {
	Room string `json:"room"`
}

// StartGamePayload 开始游戏请求
type StartGamePayload struct {
	RoomID   string `json:"room_id"`
	Username string `json:"username"`
}

// SubmitDecisionPayload 提交决策请求
type SubmitDecisionPayload struct {
	RoomID   string `json:"room_id"`
	Username string `json:"username"`
	Decision string `json:"decision"`
}

// GetGameStatePayload 获取游戏状态请求
type GetGameStatePayload struct {
	RoomID   string `json:"room_id"`
	Username string `json:"username"`
}

// EndGamePayload 手动结束游戏请求
type EndGamePayload struct {
	RoomID   string `json:"room_id"`
	Username string `json:"username"`
}

// --- 服务端响应 Payloads ---

// PongPayload 心跳响应
type PongPayload struct {
	ClientTimestamp int64 `json:"client_timestamp"`
	ServerTimestamp int64 `json:"server_timestamp"`
}

// NotificationPayload 通知消息
type NotificationPayload struct {
	Message string `json:"message"`
}

// RoomListItem 房间列表条目
type RoomListItem struct {
	RoomID      string `json:"room_id"`
	RoomName    string `json:"room_name"`
	Theme       string `json:"theme"`
	PlayerCount int    `json:"player_count"`
	MaxPlayers  int    `json:"max_players"`
}

// AvailableRoomsPayload 开放房间列表
type AvailableRoomsPayload struct {
	Rooms []RoomListItem `json:"rooms"`
}

// RoomJoinedPayload 加入房间成功响应
type RoomJoinedPayload struct {
	RoomID     string   `json:"room_id"`
	RoomName   string   `json:"room_name"`
	Theme      string   `json:"theme"`
	MaxPlayers int      `json:"max_players"`
	Host       string   `json:"host"`
	Members    []string `json:"members"`
}

// PlayerJoinedPayload 其他玩家加入通知
type PlayerJoinedPayload struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// PlayerLeftPayload 玩家离开通知
type PlayerLeftPayload struct {
	Username string `json:"username"`
	Message  string `json:"message,omitempty"`
}

// RoomDeletedPayload 房间删除通知
type RoomDeletedPayload struct {
	RoomID  string `json:"room_id"`
	Message string `json:"message"`
}

// RoleInfo 角色信息
type RoleInfo struct {
	RoleName    string `json:"role_name"`
	Description string `json:"description"`
}

// GameStartingPayload 游戏启动通知（剧本生成中）
type GameStartingPayload struct {
	Message string `json:"message"`
}

// GameStartedPayload 游戏开始通知
type GameStartedPayload struct {
	Scenario          string              `json:"scenario"`
	Roles             map[string]RoleInfo `json:"roles"` // 玩家 → 角色
	CrisisScore       int                 `json:"crisis_score"`
	NextDecisionPoint string              `json:"next_decision_point"`
	Round             int                 `json:"round"`
	DecisionTimeLimit int                 `json:"decision_time_limit"` // 秒
}

// DecisionTimerStartedPayload 决策计时开始通知
type DecisionTimerStartedPayload struct {
	TimeLimit int    `json:"time_limit"` // 秒
	Message   string `json:"message"`
}

// PlayerDecisionSubmittedPayload 决策提交通知
type PlayerDecisionSubmittedPayload struct {
	Username  string `json:"username"`
	Remaining int    `json:"remaining"` // 还未提交的玩家数
}

// TimeoutNotificationPayload 决策超时通知
type TimeoutNotificationPayload struct {
	Message        string   `json:"message"`
	MissingPlayers []string `json:"missing_players"`
}

// RoundScore 单回合个人评分明细
type RoundScore struct {
	Creativity          int `json:"creativity"`
	HelpingNature       int `json:"helping_nature"`
	TeamStrategy        int `json:"team_strategy"`
	RoleAppropriateness int `json:"role_appropriateness"`
	Total               int `json:"total"`
	Round               int `json:"round"`
}

// RoundCompletedPayload 回合结算通知
type RoundCompletedPayload struct {
	Round             int                   `json:"round"`
	IndividualScores  map[string]RoundScore `json:"individual_scores"`
	PlayerTotalScores map[string]int        `json:"player_total_scores"`
	CrisisScore       int                   `json:"crisis_score"`
	ScoreChange       int                   `json:"score_change"`
	Reasoning         string                `json:"reasoning,omitempty"`
	Continuation      string                `json:"continuation"`
	NextDecisionPoint string                `json:"next_decision_point"`
}

// PlayerRanking 玩家最终排名
type PlayerRanking struct {
	Username    string       `json:"username"`
	Rank        int          `json:"rank"` // 1 起始
	TotalScore  int          `json:"total_score"`
	RoundScores []RoundScore `json:"round_scores"`
}

// GameEndedPayload 游戏结束通知
type GameEndedPayload struct {
	Rankings         []PlayerRanking `json:"rankings"`
	Winner           string          `json:"winner"`
	Outcome          string          `json:"outcome"` // resolved / escalated / exhausted / ended
	FinalCrisisScore int             `json:"final_crisis_score"`
	GameSummary      string          `json:"game_summary,omitempty"`
	CrisisOutcome    string          `json:"crisis_outcome,omitempty"`
	TeamHighlights   string          `json:"team_highlights,omitempty"`
}

// GameStatePayload 游戏状态快照（请求者私有视图）
type GameStatePayload struct {
	Scenario           string   `json:"scenario"`
	Theme              string   `json:"theme"`
	CrisisScore        int      `json:"crisis_score"`
	CurrentRound       int      `json:"current_round"`
	MaxRounds          int      `json:"max_rounds"`
	State              string   `json:"state"`
	PlayerRole         RoleInfo `json:"player_role"`
	RemainingDecisions int      `json:"remaining_decisions"`
	NextDecisionPoint  string   `json:"next_decision_point"`
}

// ErrorPayload 错误消息
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
