package ai

import "context"

// Role 剧本角色
type Role struct {
	RoleName    string `json:"role_name"`
	Description string `json:"description"`
}

// ScenarioResult 初始剧本生成结果
type ScenarioResult struct {
	Scenario           string          `json:"scenario"`
	Roles              map[string]Role `json:"roles"` // roleKey → 角色
	InitialCrisisScore int             `json:"initial_crisis_score"`
	NextDecisionPoint  string          `json:"next_decision_point"`
}

// IndividualScore 个人决策评分（四项各 0-25，总分 0-100）
type IndividualScore struct {
	Creativity          int `json:"creativity_score"`
	HelpingNature       int `json:"helping_nature_score"`
	TeamStrategy        int `json:"team_strategy_score"`
	RoleAppropriateness int `json:"role_appropriateness_score"`
	Total               int `json:"total_individual_score"`
}

// CrisisUpdate 危机分数更新结果
type CrisisUpdate struct {
	NewScore      int    `json:"new_crisis_score"`
	ScoreChange   int    `json:"score_change"`
	Collaboration string `json:"team_collaboration"`
	Reasoning     string `json:"reasoning"`
}

// StoryContinuation 剧情推进结果
type StoryContinuation struct {
	Continuation      string `json:"story_continuation"`
	NextDecisionPoint string `json:"next_decision_point"`
}

// FinalScores 终局总结结果
type FinalScores struct {
	GameSummary    string `json:"game_summary"`
	CrisisOutcome  string `json:"crisis_outcome"`
	TeamHighlights string `json:"team_highlights"`
}

// RoundDigest 提供给终局总结的回合摘要
type RoundDigest struct {
	Round       int
	CrisisScore int
	ScoreChange int
	Reasoning   string
	Decisions   map[string]string
}

// Generator 内容生成服务边界。
// 每个调用都可能失败（超时、非 2xx、响应格式错误），调用方必须为
// 每个字段准备类型化的兜底值，而不是让失败向上传播。
type Generator interface {
	InitialScenario(ctx context.Context, theme string, playerCount int) (*ScenarioResult, error)
	ScoreDecision(ctx context.Context, theme, role, decision string, round int) (*IndividualScore, error)
	UpdateCrisis(ctx context.Context, theme string, currentScore int, decisions map[string]string, round int) (*CrisisUpdate, error)
	ContinueStory(ctx context.Context, theme, scenario string, crisisScore int, decisions map[string]string, round int) (*StoryContinuation, error)
	FinalScores(ctx context.Context, theme string, rounds []RoundDigest, finalScore int) (*FinalScores, error)
}
