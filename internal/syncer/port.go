// Package syncer pushes local progress changes to remote stores without
// blocking the state transitions that produced them.
package syncer

import "github.com/felixgeelhaar/champ/internal/domain"

// Message kinds
const (
	KindUserProgress   = "user_progress"
	KindLessonProgress = "lesson_progress"
	KindUserSettings   = "user_settings"
	KindPracticeStats  = "practice_stats"
	KindSprintProgress = "sprint_progress"
)

// Port receives snapshots after every local mutation. Implementations must
// return immediately and never report failure to the caller.
type Port interface {
	SyncUserProgress(p domain.UserProgress)
	SyncLessonProgress(p domain.LessonProgress)
	SyncUserSettings(userID string, s domain.UserSettings)
	SyncPracticeStats(userID string, s domain.PracticeStats)
	SyncSprintProgress(userID, moduleID string, p domain.SprintProgress)
}

// Discard is a Port that drops everything
type Discard struct{}

var _ Port = Discard{}

func (Discard) SyncUserProgress(domain.UserProgress) {}
func (Discard) SyncLessonProgress(domain.LessonProgress) {}
func (Discard) SyncUserSettings(string, domain.UserSettings) {}
func (Discard) SyncPracticeStats(string, domain.PracticeStats) {}
func (Discard) SyncSprintProgress(string, string, domain.SprintProgress) {}
