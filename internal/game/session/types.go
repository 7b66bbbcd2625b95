package session

import (
	"context"
	"sync"
	"time"

	"github.com/palemoky/crisis-arena/internal/ai"
	"github.com/palemoky/crisis-arena/internal/config"
	"github.com/palemoky/crisis-arena/internal/protocol"
)

// State 对局状态机
type State int

const (
	StateAwaitingDecisions State = iota // 等待玩家提交本回合决策
	StateProcessingRound                // 回合结算中，拒绝新决策
	StateEnded                          // 对局已结束
)

func (s State) String() string {
	switch s {
	case StateAwaitingDecisions:
		return "awaiting_decisions"
	case StateProcessingRound:
		return "processing_round"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// TimeoutDecision 超时玩家的占位决策
const TimeoutDecision = "No response provided - timeout"

// 危机分数阈值
const (
	CrisisResolvedThreshold  = 80 // 达到即危机解除
	CrisisEscalatedThreshold = 20 // 跌破即危机失控
)

// 对局结局
const (
	OutcomeResolved  = "resolved"
	OutcomeEscalated = "escalated"
	OutcomeExhausted = "exhausted"
	OutcomeEnded     = "ended" // 房主手动结束
)

// RoundRecord 一个已结算回合的存档
type RoundRecord struct {
	Round        int
	Decisions    map[string]string
	Scores       map[string]protocol.RoundScore
	CrisisScore  int
	ScoreChange  int
	Reasoning    string         // 危机分数变化的说明
	Continuation string         // 结算后的剧情推进，终局回合为空
	Totals       map[string]int // 结算后的累计总分快照
}

// Notifier 消息下发边界，由连接层实现。
// 发送失败（玩家掉线）由实现方静默处理，对局推进不受影响。
type Notifier interface {
	SendToUser(username string, msg *protocol.Message)
}

// ResultStore 终局结果持久化边界
type ResultStore interface {
	UpdateUserStatsFromRankings(ctx context.Context, rankings []protocol.PlayerRanking) error
}

// Session 单个房间的对局。所有可变字段由 mu 保护；
// players、theme、roomID 在创建后只读。
type Session struct {
	mu sync.Mutex

	roomID  string
	theme   string
	players []string // 加入顺序，决定平分时的排名次序

	scenario          string
	roles             map[string]ai.Role // 玩家名 → 角色
	crisisScore       int
	round             int // 当前回合，1 起始
	state             State
	decisions         map[string]string // 本回合已提交的决策
	totals            map[string]int
	roundScores       map[string][]protocol.RoundScore
	records           []RoundRecord
	nextDecisionPoint string

	timer    *time.Timer
	timerGen int  // 回合计时器代数，旧回合的超时回调据此失效
	closed   bool // teardown 之后为 true，阻止一切后续下发

	startedAt time.Time

	cfg    config.GameConfig
	gen    ai.Generator
	notify Notifier
	mgr    *Manager
}

// broadcast 向对局内所有玩家下发同一条消息。
// players 创建后只读，无需持锁。
func (s *Session) broadcast(msg *protocol.Message) {
	for _, p := range s.players {
		s.notify.SendToUser(p, msg)
	}
}

// broadcastExcept 向除 skip 外的所有玩家广播
func (s *Session) broadcastExcept(skip string, msg *protocol.Message) {
	for _, p := range s.players {
		if p == skip {
			continue
		}
		s.notify.SendToUser(p, msg)
	}
}

// clampCrisis 把危机分数收敛到 [0, 100]
func clampCrisis(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// clampComponent 把单项评分收敛到 [0, 25]
func clampComponent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 25 {
		return 25
	}
	return v
}
