package domain

import "time"

// SprintStatus is the position of a module in the unlock lattice
type SprintStatus string

const (
	SprintLocked     SprintStatus = "locked"
	SprintUnlocked   SprintStatus = "unlocked"
	SprintInProgress SprintStatus = "in-progress"
	SprintCompleted  SprintStatus = "completed"
)

// rank orders statuses so transitions only move forward
func (s SprintStatus) rank() int {
	switch s {
	case SprintUnlocked:
		return 1
	case SprintInProgress:
		return 2
	case SprintCompleted:
		return 3
	default:
		return 0
	}
}

// CanTransition reports whether moving from s to next follows the lattice
func (s SprintStatus) CanTransition(next SprintStatus) bool {
	return next.rank() > s.rank()
}

// Module is a themed bundle of practice exercises gated by XP
type Module struct {
	ID                  string         `yaml:"id" json:"id"`
	Order               int            `yaml:"order" json:"order"`
	Title               string         `yaml:"title" json:"title"`
	Description         string         `yaml:"description" json:"description"`
	Topic               string         `yaml:"topic" json:"topic"`
	Difficulty          Difficulty     `yaml:"difficulty" json:"difficulty"`
	Language            Language       `yaml:"language" json:"language"`
	ExerciseTypes       []ExerciseType `yaml:"exercise_types" json:"exerciseTypes"`
	UnlockThresholdXP   int            `yaml:"unlock_threshold_xp" json:"unlockThresholdXP"`
	TargetExerciseCount int            `yaml:"target_exercise_count" json:"targetExerciseCount"`
}

// SprintProgress tracks one module for a user
type SprintProgress struct {
	ModuleID           string       `json:"moduleId"`
	XPEarned           int          `json:"xpEarned"`
	ExercisesAttempted int          `json:"exercisesAttempted"`
	ExercisesCompleted int          `json:"exercisesCompleted"`
	StartedAt          *time.Time   `json:"startedAt,omitempty"`
	CompletedAt        *time.Time   `json:"completedAt,omitempty"`
	LastPracticed      *time.Time   `json:"lastPracticed,omitempty"`
	Status             SprintStatus `json:"status"`
}

// NewSprintProgress creates the initial record for a module
func NewSprintProgress(m Module) *SprintProgress {
	status := SprintLocked
	if m.Order == 1 {
		status = SprintUnlocked
	}
	return &SprintProgress{ModuleID: m.ID, Status: status}
}

// Start moves the module to in-progress. Only locked or unlocked modules move.
func (p *SprintProgress) Start(now time.Time) bool {
	if !p.Status.CanTransition(SprintInProgress) {
		return false
	}
	p.Status = SprintInProgress
	started := now
	p.StartedAt = &started
	return true
}

// RecordExercise applies one exercise result and returns the XP awarded.
// The completion bonus is paid once, on the transition to completed.
func (p *SprintProgress) RecordExercise(m Module, success bool, exerciseXP, bonusXP int, now time.Time) int {
	practiced := now
	p.LastPracticed = &practiced
	p.ExercisesAttempted++
	if !success {
		return 0
	}

	p.ExercisesCompleted++
	awarded := exerciseXP
	if p.ExercisesCompleted >= m.TargetExerciseCount && p.Status != SprintCompleted {
		p.Status = SprintCompleted
		completed := now
		p.CompletedAt = &completed
		awarded += bonusXP
	}
	p.XPEarned += awarded
	return awarded
}

// CumulativeXP sums XP over every module's progress
func CumulativeXP(progress map[string]*SprintProgress) int {
	total := 0
	for _, p := range progress {
		total += p.XPEarned
	}
	return total
}

// UnlockEligible flips locked modules whose threshold is met, in a single pass.
// Returns the IDs of modules that changed.
func UnlockEligible(modules []Module, progress map[string]*SprintProgress) []string {
	total := CumulativeXP(progress)
	var unlocked []string
	for _, m := range modules {
		p, ok := progress[m.ID]
		if !ok || p.Status != SprintLocked {
			continue
		}
		if m.Order == 1 || total >= m.UnlockThresholdXP {
			p.Status = SprintUnlocked
			unlocked = append(unlocked, m.ID)
		}
	}
	return unlocked
}
