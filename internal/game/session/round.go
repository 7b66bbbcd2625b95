package session

import (
	"context"
	"log"
	"time"

	"github.com/palemoky/crisis-arena/internal/ai"
	"github.com/palemoky/crisis-arena/internal/protocol"
)

// runRound 结算一个回合：个人评分、危机更新、剧情推进、状态迁移。
// 所有远程调用都在锁外进行，结果在锁内一次性落位；任何一次调用
// 失败都用对应的兜底值顶替，回合结算永不中断。
func (s *Session) runRound(round int, decisions map[string]string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	s.mu.Lock()
	theme := s.theme
	scenario := s.scenario
	current := s.crisisScore
	roles := s.roles
	s.mu.Unlock()

	// 逐个玩家评分，单个失败不影响其他人
	scores := make(map[string]protocol.RoundScore, len(s.players))
	for _, player := range s.players {
		decision := decisions[player]
		role := roles[player]

		var sc protocol.RoundScore
		result, err := s.gen.ScoreDecision(ctx, theme, role.RoleName, decision, round)
		if err != nil {
			log.Printf("⚠️ 房间 %s 第 %d 回合玩家 %s 评分失败，计零分: %v", s.roomID, round, player, err)
			result = &ai.IndividualScore{}
		}
		sc.Creativity = clampComponent(result.Creativity)
		sc.HelpingNature = clampComponent(result.HelpingNature)
		sc.TeamStrategy = clampComponent(result.TeamStrategy)
		sc.RoleAppropriateness = clampComponent(result.RoleAppropriateness)
		sc.Total = sc.Creativity + sc.HelpingNature + sc.TeamStrategy + sc.RoleAppropriateness
		sc.Round = round
		scores[player] = sc
	}

	update, err := s.gen.UpdateCrisis(ctx, theme, current, decisions, round)
	if err != nil {
		log.Printf("⚠️ 房间 %s 第 %d 回合危机更新失败，维持现状: %v", s.roomID, round, err)
		update = ai.FallbackCrisisUpdate(current)
	}
	newScore := clampCrisis(update.NewScore)

	outcome := evalOutcome(newScore, round, s.cfg.MaxRounds)

	var cont *ai.StoryContinuation
	if outcome == "" {
		cont, err = s.gen.ContinueStory(ctx, theme, scenario, newScore, decisions, round)
		switch {
		case err != nil:
			log.Printf("⚠️ 房间 %s 第 %d 回合剧情推进失败，使用内置文案: %v", s.roomID, round, err)
			cont = ai.FallbackContinuation(round)
		case cont.Continuation == "":
			log.Printf("⚠️ 房间 %s 第 %d 回合剧情推进返回空文本，使用内置文案", s.roomID, round)
			cont = ai.FallbackContinuation(round)
		case cont.NextDecisionPoint == "":
			cont.NextDecisionPoint = ai.FallbackContinuation(round).NextDecisionPoint
		}
	}

	s.mu.Lock()
	// 对局可能在结算期间被手动结束或回收
	if s.closed || s.state != StateProcessingRound || s.round != round {
		s.mu.Unlock()
		return
	}

	for player, sc := range scores {
		s.totals[player] += sc.Total
		s.roundScores[player] = append(s.roundScores[player], sc)
	}
	prev := s.crisisScore
	s.crisisScore = newScore
	continuation := ""
	if cont != nil {
		continuation = cont.Continuation
	}
	s.records = append(s.records, RoundRecord{
		Round:        round,
		Decisions:    decisions,
		Scores:       scores,
		CrisisScore:  newScore,
		ScoreChange:  newScore - prev,
		Reasoning:    update.Reasoning,
		Continuation: continuation,
		Totals:       copyTotals(s.totals),
	})

	completed := protocol.RoundCompletedPayload{
		Round:             round,
		IndividualScores:  scores,
		PlayerTotalScores: copyTotals(s.totals),
		CrisisScore:       newScore,
		ScoreChange:       newScore - prev,
		Reasoning:         update.Reasoning,
	}

	if outcome == "" {
		s.round++
		s.decisions = make(map[string]string)
		s.nextDecisionPoint = cont.NextDecisionPoint
		s.state = StateAwaitingDecisions
		completed.Continuation = cont.Continuation
		completed.NextDecisionPoint = cont.NextDecisionPoint
	} else {
		s.state = StateEnded
		s.stopTimerLocked()
	}
	s.mu.Unlock()

	s.broadcast(protocol.MustNewMessage(protocol.MsgRoundCompleted, completed))
	log.Printf("🎯 房间 %s 第 %d 回合结算完成，危机分数 %d → %d", s.roomID, round, prev, newScore)

	if outcome == "" {
		s.startDecisionPhase()
		return
	}
	s.finishGame(outcome)
}

// evalOutcome 判定回合结算后的对局走向，空串表示继续下一回合
func evalOutcome(crisisScore, round, maxRounds int) string {
	switch {
	case crisisScore >= CrisisResolvedThreshold:
		return OutcomeResolved
	case crisisScore <= CrisisEscalatedThreshold:
		return OutcomeEscalated
	case round >= maxRounds:
		return OutcomeExhausted
	default:
		return ""
	}
}

func copyTotals(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
