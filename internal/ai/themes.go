package ai

import "fmt"

// Theme 主题条目：生成服务不可用时的兜底角色集
type Theme struct {
	Roles         []string
	ScenarioFocus string
}

// Themes 内置主题目录
var Themes = map[string]Theme{
	"climate_change": {
		Roles:         []string{"Scientist", "Leader", "Activist", "Citizen"},
		ScenarioFocus: "Climate crisis that needs team solutions",
	},
	"resource_scarcity": {
		Roles:         []string{"Manager", "Leader", "Inventor", "Citizen"},
		ScenarioFocus: "Resource shortage that needs team solutions",
	},
	"social_equity": {
		Roles:         []string{"Helper", "Leader", "Organizer", "Citizen"},
		ScenarioFocus: "Social problem that needs team solutions",
	},
	"environmental_pollution": {
		Roles:         []string{"Engineer", "Health Worker", "Advocate", "Resident"},
		ScenarioFocus: "Pollution problem that needs team solutions",
	},
}

// DefaultTheme 未知主题时使用的主题
const DefaultTheme = "climate_change"

// DefaultInitialCrisisScore 生成结果未给出初始危机分数时的默认值
const DefaultInitialCrisisScore = 50

// FallbackScenario 生成服务失败时的确定性兜底剧本
func FallbackScenario(theme string, playerCount int) *ScenarioResult {
	t, ok := Themes[theme]
	if !ok {
		t = Themes[DefaultTheme]
	}

	roles := make(map[string]Role, playerCount)
	for i := 0; i < playerCount; i++ {
		name := t.Roles[i%len(t.Roles)]
		roles[fmt.Sprintf("player%d", i+1)] = Role{
			RoleName:    name,
			Description: fmt.Sprintf("Acts as the team's %s during the crisis", name),
		}
	}

	return &ScenarioResult{
		Scenario:           fmt.Sprintf("%s. The team must work together to respond before the situation gets out of hand.", t.ScenarioFocus),
		Roles:              roles,
		InitialCrisisScore: DefaultInitialCrisisScore,
		NextDecisionPoint:  "What should the team do first?",
	}
}

// FallbackContinuation 剧情推进失败时的确定性兜底文案
func FallbackContinuation(round int) *StoryContinuation {
	return &StoryContinuation{
		Continuation:      fmt.Sprintf("The team's decisions in Round %d have been noted. The situation continues to evolve...", round),
		NextDecisionPoint: "What should the team do next? Consider the current crisis level and work together to find solutions.",
	}
}

// FallbackCrisisUpdate 危机更新失败时的兜底：维持当前分数
func FallbackCrisisUpdate(currentScore int) *CrisisUpdate {
	return &CrisisUpdate{
		NewScore:    currentScore,
		ScoreChange: 0,
		Reasoning:   "AI analysis unavailable - maintaining current crisis level",
	}
}
