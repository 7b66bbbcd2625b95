package session

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"time"

	"github.com/palemoky/crisis-arena/internal/ai"
	"github.com/palemoky/crisis-arena/internal/apperrors"
	"github.com/palemoky/crisis-arena/internal/protocol"
)

// begin 生成初始剧本并进入第一回合。
// 生成失败时退回内置剧本，开局永不因远程服务失败而中断。
func (s *Session) begin() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	scenario, err := s.gen.InitialScenario(ctx, s.theme, len(s.players))
	if err != nil {
		log.Printf("⚠️ 房间 %s 剧本生成失败，使用内置剧本: %v", s.roomID, err)
		scenario = ai.FallbackScenario(s.theme, len(s.players))
	}

	roles := assignRoles(s.players, scenario.Roles)

	s.mu.Lock()
	if s.closed || s.state == StateEnded {
		s.mu.Unlock()
		return
	}
	s.scenario = scenario.Scenario
	s.roles = roles
	s.crisisScore = clampCrisis(scenario.InitialCrisisScore)
	s.nextDecisionPoint = scenario.NextDecisionPoint
	s.round = 1
	s.decisions = make(map[string]string)
	s.state = StateAwaitingDecisions

	started := protocol.GameStartedPayload{
		Scenario:          s.scenario,
		Roles:             roleInfoMap(roles),
		CrisisScore:       s.crisisScore,
		NextDecisionPoint: s.nextDecisionPoint,
		Round:             s.round,
		DecisionTimeLimit: s.cfg.DecisionTimeLimit,
	}
	s.mu.Unlock()

	s.broadcast(protocol.MustNewMessage(protocol.MsgGameStarted, started))
	s.startDecisionPhase()
	log.Printf("🎬 房间 %s 第 1 回合开始，初始危机分数 %d", s.roomID, started.CrisisScore)
}

// startDecisionPhase 广播计时开始并武装本回合的超时计时器
func (s *Session) startDecisionPhase() {
	s.broadcast(protocol.MustNewMessage(protocol.MsgDecisionTimerStarted, protocol.DecisionTimerStartedPayload{
		TimeLimit: s.cfg.DecisionTimeLimit,
		Message:   fmt.Sprintf("You have %d seconds to submit your decision!", s.cfg.DecisionTimeLimit),
	}))
	s.armTimer()
}

// assignRoles 把剧本角色随机分配给玩家。
// 角色先按键名排序再洗牌，保证相同随机种子下结果可复现。
func assignRoles(players []string, roles map[string]ai.Role) map[string]ai.Role {
	keys := make([]string, 0, len(roles))
	for k := range roles {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pool := make([]ai.Role, 0, len(keys))
	for _, k := range keys {
		pool = append(pool, roles[k])
	}
	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	assigned := make(map[string]ai.Role, len(players))
	for i, p := range players {
		if len(pool) == 0 {
			break
		}
		assigned[p] = pool[i%len(pool)]
	}
	return assigned
}

func roleInfoMap(roles map[string]ai.Role) map[string]protocol.RoleInfo {
	out := make(map[string]protocol.RoleInfo, len(roles))
	for player, r := range roles {
		out[player] = protocol.RoleInfo{RoleName: r.RoleName, Description: r.Description}
	}
	return out
}

// snapshot 构建请求者视角的对局快照
func (s *Session) snapshot(username string) (*protocol.GameStatePayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.roles[username]
	if !ok {
		return nil, apperrors.ErrNotInGame
	}

	remaining := 0
	if s.state == StateAwaitingDecisions {
		remaining = len(s.players) - len(s.decisions)
	}

	return &protocol.GameStatePayload{
		Scenario:           s.scenario,
		Theme:              s.theme,
		CrisisScore:        s.crisisScore,
		CurrentRound:       s.round,
		MaxRounds:          s.cfg.MaxRounds,
		State:              s.state.String(),
		PlayerRole:         protocol.RoleInfo{RoleName: role.RoleName, Description: role.Description},
		RemainingDecisions: remaining,
		NextDecisionPoint:  s.nextDecisionPoint,
	}, nil
}

// finishGame 终局结算：排名、总结、下发、落库、延迟回收。
// 调用前 state 必须已经是 StateEnded（由调用方置位）。
func (s *Session) finishGame(outcome string) {
	s.mu.Lock()
	rankings := buildRankings(s.players, s.totals, s.roundScores)
	digests := make([]ai.RoundDigest, 0, len(s.records))
	for _, rec := range s.records {
		digests = append(digests, ai.RoundDigest{
			Round:       rec.Round,
			CrisisScore: rec.CrisisScore,
			ScoreChange: rec.ScoreChange,
			Reasoning:   rec.Reasoning,
			Decisions:   rec.Decisions,
		})
	}
	finalScore := s.crisisScore
	theme := s.theme
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	final, err := s.gen.FinalScores(ctx, theme, digests, finalScore)
	if err != nil {
		log.Printf("⚠️ 房间 %s 终局总结生成失败，使用内置文案: %v", s.roomID, err)
		final = &ai.FinalScores{
			GameSummary:    fmt.Sprintf("The crisis simulation ended after %d round(s) with a final crisis score of %d.", len(digests), finalScore),
			CrisisOutcome:  outcomeText(outcome, finalScore),
			TeamHighlights: "The team worked through each decision point together.",
		}
	}

	winner := ""
	if len(rankings) > 0 {
		winner = rankings[0].Username
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.broadcast(protocol.MustNewMessage(protocol.MsgGameEnded, protocol.GameEndedPayload{
		Rankings:         rankings,
		Winner:           winner,
		Outcome:          outcome,
		FinalCrisisScore: finalScore,
		GameSummary:      final.GameSummary,
		CrisisOutcome:    final.CrisisOutcome,
		TeamHighlights:   final.TeamHighlights,
	}))
	log.Printf("🏆 房间 %s 对局结束，结局 %s，冠军 %s，最终危机分数 %d", s.roomID, outcome, winner, finalScore)

	s.mgr.persistResults(rankings)

	// 给玩家留出查看结算的时间再回收房间
	time.AfterFunc(s.cfg.ResultGracePeriodDuration(), func() {
		s.mgr.teardown(s.roomID)
	})
}

func outcomeText(outcome string, finalScore int) string {
	switch outcome {
	case OutcomeResolved:
		return fmt.Sprintf("The crisis was resolved with a score of %d. Well done!", finalScore)
	case OutcomeEscalated:
		return fmt.Sprintf("The crisis escalated out of control at a score of %d.", finalScore)
	case OutcomeEnded:
		return fmt.Sprintf("The game was ended early at a crisis score of %d.", finalScore)
	default:
		return fmt.Sprintf("All rounds are complete. The crisis stands at %d.", finalScore)
	}
}
