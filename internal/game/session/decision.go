package session

import (
	"log"

	"github.com/palemoky/crisis-arena/internal/apperrors"
	"github.com/palemoky/crisis-arena/internal/protocol"
)

// submitDecision 记录玩家本回合的决策。重复提交覆盖之前的内容。
// 最后一名玩家提交后立即转入结算，不等待超时。
func (s *Session) submitDecision(username, decision string) error {
	s.mu.Lock()

	if s.closed || s.state == StateEnded {
		s.mu.Unlock()
		return apperrors.ErrGameNotStart
	}
	if s.state != StateAwaitingDecisions {
		s.mu.Unlock()
		return apperrors.ErrWrongState
	}
	if _, ok := s.roles[username]; !ok {
		s.mu.Unlock()
		return apperrors.ErrNotInGame
	}

	s.decisions[username] = decision
	remaining := len(s.players) - len(s.decisions)
	round := s.round

	if remaining > 0 {
		s.mu.Unlock()
		log.Printf("📝 房间 %s 第 %d 回合收到 %s 的决策，还差 %d 人", s.roomID, round, username, remaining)
		s.broadcastExcept(username, protocol.MustNewMessage(protocol.MsgPlayerDecisionSubmitted, protocol.PlayerDecisionSubmittedPayload{
			Username:  username,
			Remaining: remaining,
		}))
		return nil
	}

	// 全员到齐，本回合只允许从这里进入结算一次
	s.state = StateProcessingRound
	s.stopTimerLocked()
	decisions := copyDecisions(s.decisions)
	s.mu.Unlock()

	log.Printf("📝 房间 %s 第 %d 回合决策收齐，开始结算", s.roomID, round)
	s.broadcastExcept(username, protocol.MustNewMessage(protocol.MsgPlayerDecisionSubmitted, protocol.PlayerDecisionSubmittedPayload{
		Username:  username,
		Remaining: 0,
	}))

	go s.runRound(round, decisions)
	return nil
}

func copyDecisions(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
