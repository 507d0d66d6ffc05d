package domain

import (
	"slices"
	"time"
)

// DateLayout is the date-only format used for activity days. Days are UTC.
const DateLayout = "2006-01-02"

// LevelThresholds is the minimum total XP for each level, ascending.
var LevelThresholds = []int{0, 100, 250, 500, 850, 1300, 1900, 2600, 3500, 4600}

// MaxLevel is the highest reachable level
var MaxLevel = len(LevelThresholds)

// CalculateLevel returns the 1-based level for a total XP amount
func CalculateLevel(xp int) int {
	level := 1
	for i, threshold := range LevelThresholds {
		if xp >= threshold {
			level = i + 1
		}
	}
	return level
}

// XPForNextLevel returns the XP needed to reach the next level, or 0 at the cap
func XPForNextLevel(xp int) int {
	level := CalculateLevel(xp)
	if level >= MaxLevel {
		return 0
	}
	return LevelThresholds[level] - xp
}

// ActivityDay returns the UTC calendar day of t
func ActivityDay(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// UserProgress is the per-user XP, level, streak and completion record
type UserProgress struct {
	UserID           string   `json:"userId"`
	TotalXP          int      `json:"totalXP"`
	Level            int      `json:"level"`
	CurrentStreak    int      `json:"currentStreak"`
	LongestStreak    int      `json:"longestStreak"`
	LastActivityDate string   `json:"lastActivityDate,omitempty"`
	LessonsCompleted []string `json:"lessonsCompleted"`
}

// NewUserProgress creates an empty progress record
func NewUserProgress(userID string) *UserProgress {
	return &UserProgress{
		UserID:           userID,
		Level:            1,
		LessonsCompleted: []string{},
	}
}

// AddXP adds a non-negative amount and recomputes the level
func (p *UserProgress) AddXP(amount int) {
	if amount <= 0 {
		return
	}
	p.TotalXP += amount
	p.Level = CalculateLevel(p.TotalXP)
}

// HasCompleted reports whether a lesson is in the completion set
func (p *UserProgress) HasCompleted(lessonID string) bool {
	return slices.Contains(p.LessonsCompleted, lessonID)
}

// RecordActivity applies the streak rules for activity at now.
// Returns false when activity was already recorded for that day.
func (p *UserProgress) RecordActivity(now time.Time) bool {
	today := ActivityDay(now)
	if p.LastActivityDate == today {
		return false
	}

	yesterday := ActivityDay(now.UTC().AddDate(0, 0, -1))
	if p.LastActivityDate == yesterday {
		p.CurrentStreak++
	} else {
		p.CurrentStreak = 1
	}
	p.LongestStreak = max(p.LongestStreak, p.CurrentStreak)
	p.LastActivityDate = today
	return true
}

// Normalize repairs derived fields after decoding a stored record
func (p *UserProgress) Normalize() {
	if p.LessonsCompleted == nil {
		p.LessonsCompleted = []string{}
	}
	if p.TotalXP < 0 {
		p.TotalXP = 0
	}
	p.Level = CalculateLevel(p.TotalXP)
	p.LongestStreak = max(p.LongestStreak, p.CurrentStreak)
}

// LessonStatus is the state of a lesson attempt
type LessonStatus string

const (
	LessonInProgress LessonStatus = "in-progress"
	LessonCompleted  LessonStatus = "completed"
)

// LessonProgress tracks a single lesson attempt
type LessonProgress struct {
	LessonID         string       `json:"lessonId"`
	UserID           string       `json:"userId"`
	Status           LessonStatus `json:"status"`
	CurrentStepIndex int          `json:"currentStepIndex"`
	StepsCompleted   []string     `json:"stepsCompleted"`
	XPEarned         int          `json:"xpEarned"`
	Attempts         int          `json:"attempts"`
	HintsUsed        int          `json:"hintsUsed"`
	StartedAt        time.Time    `json:"startedAt"`
	CompletedAt      *time.Time   `json:"completedAt,omitempty"`
}

// NewLessonProgress creates an in-progress record for a lesson
func NewLessonProgress(userID, lessonID string, now time.Time) *LessonProgress {
	return &LessonProgress{
		LessonID:       lessonID,
		UserID:         userID,
		Status:         LessonInProgress,
		StepsCompleted: []string{},
		StartedAt:      now,
	}
}

// IsCompleted reports whether the lesson attempt is finished
func (lp *LessonProgress) IsCompleted() bool {
	return lp.Status == LessonCompleted
}

// CompleteStep records a finished step and moves the cursor past it.
// Completed lessons are not modified.
func (lp *LessonProgress) CompleteStep(stepID string, index int) bool {
	if lp.IsCompleted() {
		return false
	}
	if !slices.Contains(lp.StepsCompleted, stepID) {
		lp.StepsCompleted = append(lp.StepsCompleted, stepID)
	}
	if index+1 > lp.CurrentStepIndex {
		lp.CurrentStepIndex = index + 1
	}
	return true
}

// Complete marks the lesson finished with the awarded XP
func (lp *LessonProgress) Complete(xp int, now time.Time) {
	lp.Status = LessonCompleted
	lp.XPEarned = xp
	completed := now
	lp.CompletedAt = &completed
}

// ChallengeScore weights attempts and hints to rank how hard a lesson was
func (lp *LessonProgress) ChallengeScore() int {
	return lp.Attempts*10 + lp.HintsUsed*5
}

// UserSettings holds learner preferences
type UserSettings struct {
	PreferredLanguage Language `json:"preferredLanguage"`
	DailyGoalXP       int      `json:"dailyGoalXP"`
	SoundEnabled      bool     `json:"soundEnabled"`
	Theme             string   `json:"theme"`
}

// DefaultUserSettings returns the settings for a new user
func DefaultUserSettings() UserSettings {
	return UserSettings{
		PreferredLanguage: LanguageTypeScript,
		DailyGoalXP:       50,
		SoundEnabled:      true,
		Theme:             "system",
	}
}
