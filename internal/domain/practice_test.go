package domain

import (
	"testing"
	"time"
)

func statsWith(easy, medium, hard int) PracticeStats {
	s := NewPracticeStats("arrays")
	s.ByDifficulty[DifficultyEasy] = DifficultyStats{Attempts: easy, Completed: easy}
	s.ByDifficulty[DifficultyMedium] = DifficultyStats{Attempts: medium, Completed: medium}
	s.ByDifficulty[DifficultyHard] = DifficultyStats{Attempts: hard, Completed: hard}
	s.TotalAttempts = easy + medium + hard
	s.TotalCompleted = easy + medium + hard
	return s
}

func TestComputeMastery(t *testing.T) {
	tests := []struct {
		name  string
		stats PracticeStats
		want  MasteryLevel
	}{
		{"all zero", statsWith(0, 0, 0), MasteryLearning},
		{"hard and medium five", statsWith(0, 5, 5), MasteryMastered},
		{"medium five", statsWith(0, 5, 0), MasteryConfident},
		{"hard two medium three", statsWith(0, 3, 2), MasteryConfident},
		{"hard five medium four", statsWith(0, 4, 5), MasteryConfident},
		{"five easy", statsWith(5, 0, 0), MasteryPracticing},
		{"four easy", statsWith(4, 0, 0), MasteryLearning},
		{"hard one medium three", statsWith(1, 3, 1), MasteryPracticing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeMastery(tt.stats); got != tt.want {
				t.Errorf("ComputeMastery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplyPracticeAttempt(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := NewPracticeStats("loops")

	s = ApplyPracticeAttempt(s, DifficultyEasy, true, 30, now)
	s = ApplyPracticeAttempt(s, DifficultyEasy, true, 45, now)
	if s.AverageTimeSeconds != 38 {
		t.Errorf("AverageTimeSeconds = %d, want 38", s.AverageTimeSeconds)
	}

	before := s.AverageTimeSeconds
	s = ApplyPracticeAttempt(s, DifficultyMedium, false, 500, now)
	if s.AverageTimeSeconds != before {
		t.Errorf("failure changed average to %d", s.AverageTimeSeconds)
	}
	if s.TotalAttempts != 3 || s.TotalCompleted != 2 {
		t.Errorf("totals = %d/%d, want 2/3", s.TotalCompleted, s.TotalAttempts)
	}
	if got := s.ByDifficulty[DifficultyMedium]; got.Attempts != 1 || got.Completed != 0 {
		t.Errorf("medium bucket = %+v", got)
	}
	if !s.LastPracticed.Equal(now) {
		t.Errorf("LastPracticed = %v, want %v", s.LastPracticed, now)
	}
}

func TestApplyPracticeAttempt_DoesNotMutateInput(t *testing.T) {
	s := NewPracticeStats("loops")
	_ = ApplyPracticeAttempt(s, DifficultyHard, true, 10, time.Now())

	if s.TotalAttempts != 0 {
		t.Errorf("input TotalAttempts = %d, want 0", s.TotalAttempts)
	}
	if s.ByDifficulty[DifficultyHard].Completed != 0 {
		t.Error("input difficulty bucket was modified")
	}
}

func TestApplyPracticeAttempt_ReachesMastered(t *testing.T) {
	s := NewPracticeStats("generics")
	for range 5 {
		s = ApplyPracticeAttempt(s, DifficultyMedium, true, 60, time.Now())
		s = ApplyPracticeAttempt(s, DifficultyHard, true, 90, time.Now())
	}
	if s.MasteryLevel != MasteryMastered {
		t.Errorf("MasteryLevel = %q, want mastered", s.MasteryLevel)
	}
}

func TestPracticeStats_Normalize(t *testing.T) {
	s := PracticeStats{Topic: "x", TotalAttempts: 6, TotalCompleted: 6, MasteryLevel: MasteryLearning}
	s.Normalize()

	if len(s.ByDifficulty) != 3 {
		t.Errorf("ByDifficulty has %d buckets, want 3", len(s.ByDifficulty))
	}
	if s.MasteryLevel != MasteryPracticing {
		t.Errorf("MasteryLevel = %q, want practicing", s.MasteryLevel)
	}
}
