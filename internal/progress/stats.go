package progress

import (
	"fmt"

	"github.com/felixgeelhaar/champ/internal/domain"
)

func errInvalid(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, msg)
}

// Stats summarizes progress for display
type Stats struct {
	TotalXP          int     `json:"totalXP"`
	Level            int     `json:"level"`
	XPToNextLevel    int     `json:"xpToNextLevel"`
	LevelProgress    float64 `json:"levelProgress"`
	CurrentStreak    int     `json:"currentStreak"`
	LongestStreak    int     `json:"longestStreak"`
	LessonsCompleted int     `json:"lessonsCompleted"`
	LessonsStarted   int     `json:"lessonsStarted"`
	TodayActive      bool    `json:"todayActive"`
}

// Stats derives display figures from the current state
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.progress
	st := Stats{
		TotalXP:          p.TotalXP,
		Level:            p.Level,
		XPToNextLevel:    domain.XPForNextLevel(p.TotalXP),
		CurrentStreak:    p.CurrentStreak,
		LongestStreak:    p.LongestStreak,
		LessonsCompleted: len(p.LessonsCompleted),
		LessonsStarted:   len(s.lessons),
		TodayActive:      p.LastActivityDate == domain.ActivityDay(s.now()),
	}

	if p.Level >= domain.MaxLevel {
		st.LevelProgress = 1
	} else {
		floor := domain.LevelThresholds[p.Level-1]
		span := domain.LevelThresholds[p.Level] - floor
		st.LevelProgress = float64(p.TotalXP-floor) / float64(span)
	}
	return st
}
