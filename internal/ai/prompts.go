package ai

import (
	"fmt"
	"sort"
	"strings"
)

// 提示词模板。生成服务被要求只返回合法 JSON，
// 字段名与 types.go 中的 JSON tag 一一对应。

const initialScenarioPrompt = `
Create a simple crisis scenario for %d players.

Theme: %s

Generate a short, clear scenario and simple roles.

Respond with JSON:
{
    "scenario": "A simple crisis situation that needs team decisions",
    "roles": {
        "player1": {"role_name": "Simple Role 1", "description": "What this role does"},
        "player2": {"role_name": "Simple Role 2", "description": "What this role does"}
    },
    "initial_crisis_score": 50,
    "next_decision_point": "What should the team do first?"
}

Provide exactly %d roles. Keep it simple and fun!
`

const individualScoringPrompt = `
Score this player's response simply:

Player Role: %s
Round: %d
Response: "%s"

Give scores from 0-25 for each:
- Creativity: How original is it?
- Helping: How much does it help?
- Teamwork: How well does it work with others?
- Role Fit: How well does it fit the role?

Respond with JSON:
{
    "creativity_score": 0-25,
    "helping_nature_score": 0-25,
    "team_strategy_score": 0-25,
    "role_appropriateness_score": 0-25,
    "total_individual_score": 0-100
}
`

const crisisScoreUpdatePrompt = `
Update the crisis score based on team responses.

Current Score: %d/100
Round: %d

Player Responses:
%s

Rate the team's overall performance:
- Good teamwork = +5 to +15 points
- Poor teamwork = -5 to -15 points
- Mixed results = -5 to +5 points

Respond with JSON (score_change must be an integer):
{
    "new_crisis_score": 0-100,
    "score_change": 0,
    "team_collaboration": "How well did the team work together?",
    "reasoning": "Why the score changed"
}
`

const storyContinuationPrompt = `
Continue the story based on what happened.

Current Situation: %s
Crisis Score: %d/100
Round: %d

What the team did:
%s

Write what happens next:
- Show the results of their decisions
- Create a new problem to solve
- Keep it simple and engaging

Respond with JSON:
{
    "story_continuation": "What happens next",
    "next_decision_point": "What should the team decide now?"
}
`

const finalScoringPrompt = `
Give final scores for the game.

Theme: %s
Final Crisis Score: %d/100

Game Data:
%s

Respond with JSON:
{
    "game_summary": "How did the team do overall?",
    "crisis_outcome": "Did they solve the crisis?",
    "team_highlights": "Best moments of teamwork"
}
`

// formatDecisions 将玩家决策整理成提示词片段（按玩家名排序保证稳定）
func formatDecisions(decisions map[string]string) string {
	players := make([]string, 0, len(decisions))
	for player := range decisions {
		players = append(players, player)
	}
	sort.Strings(players)

	var b strings.Builder
	for _, player := range players {
		fmt.Fprintf(&b, "- %s: %s\n", player, decisions[player])
	}
	return b.String()
}

// formatRounds 将回合摘要整理成提示词片段
func formatRounds(rounds []RoundDigest) string {
	var b strings.Builder
	for _, r := range rounds {
		fmt.Fprintf(&b, "Round %d:\n", r.Round)
		fmt.Fprintf(&b, "  Crisis Score: %d (change %+d)\n", r.CrisisScore, r.ScoreChange)
		if r.Reasoning != "" {
			fmt.Fprintf(&b, "  Crisis Reasoning: %s\n", r.Reasoning)
		}
		fmt.Fprintf(&b, "  Player Responses:\n%s\n", formatDecisions(r.Decisions))
	}
	return b.String()
}
