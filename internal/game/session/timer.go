package session

import (
	"fmt"
	"log"
	"time"

	"github.com/palemoky/crisis-arena/internal/protocol"
)

// armTimer 武装当前回合的权威截止计时器。
// 每次武装递增代数，旧计时器即便触发也会被 onTimeout 丢弃。
func (s *Session) armTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.state != StateAwaitingDecisions {
		return
	}
	s.timerGen++
	gen := s.timerGen
	s.timer = time.AfterFunc(s.cfg.DecisionDeadlineDuration(), func() {
		s.onTimeout(gen)
	})
}

// stopTimerLocked 停止计时器，调用方必须持有 s.mu
func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// onTimeout 截止时间到达：缺席玩家填入占位决策后强制进入结算。
// 与 submitDecision 的收齐路径互斥，回合只会被结算一次。
func (s *Session) onTimeout(gen int) {
	s.mu.Lock()
	if s.closed || s.timerGen != gen || s.state != StateAwaitingDecisions {
		s.mu.Unlock()
		return
	}

	missing := make([]string, 0, len(s.players))
	for _, p := range s.players {
		if _, ok := s.decisions[p]; !ok {
			missing = append(missing, p)
			s.decisions[p] = TimeoutDecision
		}
	}

	s.state = StateProcessingRound
	s.timer = nil
	round := s.round
	decisions := copyDecisions(s.decisions)
	s.mu.Unlock()

	log.Printf("⏰ 房间 %s 第 %d 回合决策超时，缺席玩家: %v", s.roomID, round, missing)
	s.broadcast(protocol.MustNewMessage(protocol.MsgTimeoutNotification, protocol.TimeoutNotificationPayload{
		Message:        fmt.Sprintf("Time's up! Processing round %d with the decisions received.", round),
		MissingPlayers: missing,
	}))

	s.runRound(round, decisions)
}
