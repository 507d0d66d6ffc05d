package domain

import (
	"math"
	"time"
)

// MasteryLevel summarizes how well a topic is known
type MasteryLevel string

const (
	MasteryLearning   MasteryLevel = "learning"
	MasteryPracticing MasteryLevel = "practicing"
	MasteryConfident  MasteryLevel = "confident"
	MasteryMastered   MasteryLevel = "mastered"
)

// DifficultyStats counts attempts at one difficulty
type DifficultyStats struct {
	Attempts  int `json:"attempts"`
	Completed int `json:"completed"`
}

// PracticeStats aggregates practice results for one topic
type PracticeStats struct {
	Topic              string                         `json:"topic"`
	TotalAttempts      int                            `json:"totalAttempts"`
	TotalCompleted     int                            `json:"totalCompleted"`
	AverageTimeSeconds int                            `json:"averageTimeSeconds"`
	LastPracticed      time.Time                      `json:"lastPracticed"`
	MasteryLevel       MasteryLevel                   `json:"masteryLevel"`
	ByDifficulty       map[Difficulty]DifficultyStats `json:"byDifficulty"`
}

// NewPracticeStats creates zeroed stats for a topic
func NewPracticeStats(topic string) PracticeStats {
	by := make(map[Difficulty]DifficultyStats, len(Difficulties))
	for _, d := range Difficulties {
		by[d] = DifficultyStats{}
	}
	return PracticeStats{
		Topic:        topic,
		MasteryLevel: MasteryLearning,
		ByDifficulty: by,
	}
}

// ComputeMastery evaluates the mastery rules top-down; the first match wins
func ComputeMastery(s PracticeStats) MasteryLevel {
	hard := s.ByDifficulty[DifficultyHard].Completed
	medium := s.ByDifficulty[DifficultyMedium].Completed

	switch {
	case hard >= 5 && medium >= 5:
		return MasteryMastered
	case medium >= 5 || (hard >= 2 && medium >= 3):
		return MasteryConfident
	case s.TotalCompleted >= 5:
		return MasteryPracticing
	default:
		return MasteryLearning
	}
}

// ApplyPracticeAttempt returns stats updated with one attempt. The input is not modified.
func ApplyPracticeAttempt(s PracticeStats, d Difficulty, success bool, seconds int, now time.Time) PracticeStats {
	by := make(map[Difficulty]DifficultyStats, len(Difficulties))
	for _, k := range Difficulties {
		by[k] = DifficultyStats{}
	}
	for k, v := range s.ByDifficulty {
		by[k] = v
	}

	ds := by[d]
	ds.Attempts++
	if success {
		ds.Completed++
	}
	by[d] = ds

	next := s
	next.ByDifficulty = by
	next.TotalAttempts++
	if success {
		oldCompleted := next.TotalCompleted
		next.TotalCompleted++
		next.AverageTimeSeconds = int(math.Round(
			float64(s.AverageTimeSeconds*oldCompleted+seconds) / float64(next.TotalCompleted),
		))
	}
	next.MasteryLevel = ComputeMastery(next)
	next.LastPracticed = now
	return next
}

// Normalize fills missing buckets and recomputes derived fields after decoding
func (s *PracticeStats) Normalize() {
	if s.ByDifficulty == nil {
		s.ByDifficulty = make(map[Difficulty]DifficultyStats, len(Difficulties))
	}
	for _, d := range Difficulties {
		if _, ok := s.ByDifficulty[d]; !ok {
			s.ByDifficulty[d] = DifficultyStats{}
		}
	}
	s.TotalCompleted = min(s.TotalCompleted, s.TotalAttempts)
	s.MasteryLevel = ComputeMastery(*s)
}

// SuccessRate returns completed/attempted, or 0 with no attempts
func (s PracticeStats) SuccessRate() float64 {
	if s.TotalAttempts == 0 {
		return 0
	}
	return float64(s.TotalCompleted) / float64(s.TotalAttempts)
}
