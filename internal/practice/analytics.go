package practice

import (
	"fmt"
	"sort"

	"github.com/felixgeelhaar/champ/internal/domain"
)

func errInvalid(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, msg)
}

var masteryRank = map[domain.MasteryLevel]int{
	domain.MasteryLearning:   0,
	domain.MasteryPracticing: 1,
	domain.MasteryConfident:  2,
	domain.MasteryMastered:   3,
}

// Summary aggregates practice across topics
type Summary struct {
	Topics         int                         `json:"topics"`
	TotalAttempts  int                         `json:"totalAttempts"`
	TotalCompleted int                         `json:"totalCompleted"`
	SuccessRate    float64                     `json:"successRate"`
	ByMastery      map[domain.MasteryLevel]int `json:"byMastery"`
	WeakestTopics  []string                    `json:"weakestTopics"`
}

// Summary returns totals and the three topics most in need of practice
func (t *Tracker) Summary() Summary {
	all := t.AllStats()
	sum := Summary{
		Topics:    len(all),
		ByMastery: make(map[domain.MasteryLevel]int),
	}
	for _, s := range all {
		sum.TotalAttempts += s.TotalAttempts
		sum.TotalCompleted += s.TotalCompleted
		sum.ByMastery[s.MasteryLevel]++
	}
	if sum.TotalAttempts > 0 {
		sum.SuccessRate = float64(sum.TotalCompleted) / float64(sum.TotalAttempts)
	}
	sum.WeakestTopics = WeakestTopics(all, 3)
	return sum
}

// WeakestTopics orders topics by mastery, then success rate, ascending
func WeakestTopics(stats []domain.PracticeStats, n int) []string {
	sorted := make([]domain.PracticeStats, len(stats))
	copy(sorted, stats)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := masteryRank[sorted[i].MasteryLevel], masteryRank[sorted[j].MasteryLevel]
		if ri != rj {
			return ri < rj
		}
		return sorted[i].SuccessRate() < sorted[j].SuccessRate()
	})

	out := make([]string, 0, n)
	for _, s := range sorted {
		if len(out) == n {
			break
		}
		out = append(out, s.Topic)
	}
	return out
}
