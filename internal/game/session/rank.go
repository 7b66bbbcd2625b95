package session

import (
	"sort"

	"github.com/palemoky/crisis-arena/internal/protocol"
)

// buildRankings 按累计总分降序生成最终排名。
// 稳定排序保证同分玩家按加入顺序定先后。
func buildRankings(players []string, totals map[string]int, roundScores map[string][]protocol.RoundScore) []protocol.PlayerRanking {
	ordered := append([]string(nil), players...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return totals[ordered[i]] > totals[ordered[j]]
	})

	rankings := make([]protocol.PlayerRanking, 0, len(ordered))
	for i, player := range ordered {
		rankings = append(rankings, protocol.PlayerRanking{
			Username:    player,
			Rank:        i + 1,
			TotalScore:  totals[player],
			RoundScores: append([]protocol.RoundScore(nil), roundScores[player]...),
		})
	}
	return rankings
}
