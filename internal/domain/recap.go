package domain

import "time"

// RecapTTL is how long a generated recap stays valid
const RecapTTL = 7 * 24 * time.Hour

// RecapWindow bounds how far back recap candidates are taken from
const RecapWindow = 7 * 24 * time.Hour

// RecapCache holds the single cached recap exercise
type RecapCache struct {
	LessonID       string    `json:"lessonId"`
	Exercise       *Exercise `json:"exercise"`
	Summary        string    `json:"summary"`
	GeneratedAt    time.Time `json:"generatedAt"`
	ChallengeScore int       `json:"challengeScore"`
	TimesCompleted int       `json:"timesCompleted"`
	IsRegenerating bool      `json:"isRegenerating"`
}

// Expired reports whether the cache is past its TTL at now
func (c *RecapCache) Expired(now time.Time) bool {
	return now.Sub(c.GeneratedAt) > RecapTTL
}

// MostChallenging picks the completed lesson with the highest challenge score
// within the window ending at now. Ties go to the most recent completion.
func MostChallenging(lessons []*LessonProgress, now time.Time) (*LessonProgress, bool) {
	var best *LessonProgress
	for _, lp := range lessons {
		if !lp.IsCompleted() || lp.CompletedAt == nil {
			continue
		}
		if now.Sub(*lp.CompletedAt) > RecapWindow {
			continue
		}
		if best == nil {
			best = lp
			continue
		}
		score, bestScore := lp.ChallengeScore(), best.ChallengeScore()
		if score > bestScore || (score == bestScore && lp.CompletedAt.After(*best.CompletedAt)) {
			best = lp
		}
	}
	return best, best != nil
}
