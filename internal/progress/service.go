// Package progress owns the learner's XP, level, streak, lesson completion
// set and settings.
package progress

import (
	"errors"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/felixgeelhaar/champ/internal/domain"
	"github.com/felixgeelhaar/champ/internal/storage"
	"github.com/felixgeelhaar/champ/internal/syncer"
)

// Snapshot is the persisted form of a user's progress slot
type Snapshot struct {
	Progress domain.UserProgress               `json:"progress"`
	Lessons  map[string]*domain.LessonProgress `json:"lessonProgress"`
	Settings domain.UserSettings               `json:"settings"`
}

// Config holds service settings
type Config struct {
	UserID string
	Logger *slog.Logger
	// Now overrides the clock in tests
	Now func() time.Time
}

// Service is the progress state machine. Operations never fail: storage
// errors are logged and remote sync is fire-and-forget.
type Service struct {
	store  storage.Store
	sync   syncer.Port
	userID string
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	progress *domain.UserProgress
	lessons  map[string]*domain.LessonProgress
	settings domain.UserSettings
}

// NewService creates the service and restores the user's snapshot
func NewService(store storage.Store, port syncer.Port, cfg Config) *Service {
	if port == nil {
		port = syncer.Discard{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Service{
		store:  store,
		sync:   port,
		userID: cfg.UserID,
		now:    cfg.Now,
		logger: cfg.Logger.With("component", "progress"),
	}
	s.load()
	return s
}

func (s *Service) load() {
	s.progress = domain.NewUserProgress(s.userID)
	s.lessons = make(map[string]*domain.LessonProgress)
	s.settings = domain.DefaultUserSettings()

	var snap Snapshot
	if err := s.store.Load(storage.SlotProgress, s.userID, &snap); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("failed to load progress, starting fresh", "user_id", s.userID, "error", err)
		}
		return
	}

	snap.Progress.UserID = s.userID
	snap.Progress.Normalize()
	s.progress = &snap.Progress
	for id, lp := range snap.Lessons {
		if lp != nil {
			s.lessons[id] = lp
		}
	}
	if snap.Settings.PreferredLanguage != "" {
		s.settings = snap.Settings
	}
}

// persist writes the snapshot. Caller holds mu.
func (s *Service) persist() {
	snap := Snapshot{
		Progress: *s.progress,
		Lessons:  s.lessons,
		Settings: s.settings,
	}
	if err := s.store.Save(storage.SlotProgress, s.userID, snap); err != nil {
		s.logger.Error("failed to persist progress", "user_id", s.userID, "error", err)
	}
}

// UserID returns the user this service tracks
func (s *Service) UserID() string {
	return s.userID
}

// Progress returns a copy of the current progress
func (s *Service) Progress() domain.UserProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressCopy()
}

func (s *Service) progressCopy() domain.UserProgress {
	p := *s.progress
	p.LessonsCompleted = slices.Clone(s.progress.LessonsCompleted)
	return p
}

func lessonCopy(lp *domain.LessonProgress) domain.LessonProgress {
	c := *lp
	c.StepsCompleted = slices.Clone(lp.StepsCompleted)
	return c
}

// Lesson returns the progress record for one lesson
func (s *Service) Lesson(lessonID string) (domain.LessonProgress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lp, ok := s.lessons[lessonID]
	if !ok {
		return domain.LessonProgress{}, false
	}
	return lessonCopy(lp), true
}

// Lessons returns every lesson record ordered by start time
func (s *Service) Lessons() []domain.LessonProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.LessonProgress, 0, len(s.lessons))
	for _, lp := range s.lessons {
		out = append(out, lessonCopy(lp))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Settings returns the learner's settings
func (s *Service) Settings() domain.UserSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// AddXP adds XP and recomputes the level. Non-positive amounts are ignored.
func (s *Service) AddXP(amount int) domain.UserProgress {
	s.mu.Lock()
	if amount <= 0 {
		p := s.progressCopy()
		s.mu.Unlock()
		return p
	}
	s.progress.AddXP(amount)
	s.persist()
	p := s.progressCopy()
	s.mu.Unlock()

	s.sync.SyncUserProgress(p)
	return p
}

// RecordActivity applies the daily streak rules without awarding XP
func (s *Service) RecordActivity() domain.UserProgress {
	s.mu.Lock()
	changed := s.progress.RecordActivity(s.now())
	if changed {
		s.persist()
	}
	p := s.progressCopy()
	s.mu.Unlock()

	if changed {
		s.sync.SyncUserProgress(p)
	}
	return p
}

// AwardActivity adds XP and records activity for today as one update
func (s *Service) AwardActivity(xp int) domain.UserProgress {
	s.mu.Lock()
	s.progress.AddXP(xp)
	s.progress.RecordActivity(s.now())
	s.persist()
	p := s.progressCopy()
	s.mu.Unlock()

	s.sync.SyncUserProgress(p)
	return p
}

// lessonLocked returns the record for lessonID, creating it. Caller holds mu.
func (s *Service) lessonLocked(lessonID string) *domain.LessonProgress {
	lp, ok := s.lessons[lessonID]
	if !ok {
		lp = domain.NewLessonProgress(s.userID, lessonID, s.now())
		s.lessons[lessonID] = lp
	}
	return lp
}

// updateLesson applies fn to a lesson record and persists when fn reports a change
func (s *Service) updateLesson(lessonID string, fn func(lp *domain.LessonProgress) bool) domain.LessonProgress {
	s.mu.Lock()
	_, existed := s.lessons[lessonID]
	lp := s.lessonLocked(lessonID)
	changed := fn(lp) || !existed
	if changed {
		s.persist()
	}
	c := lessonCopy(lp)
	s.mu.Unlock()

	if changed {
		s.sync.SyncLessonProgress(c)
	}
	return c
}

// StartLesson returns the lesson's record, creating it on first visit
func (s *Service) StartLesson(lessonID string) domain.LessonProgress {
	return s.updateLesson(lessonID, func(*domain.LessonProgress) bool { return false })
}

// CompleteStep marks a step done and advances the lesson cursor
func (s *Service) CompleteStep(lessonID, stepID string, index int) domain.LessonProgress {
	return s.updateLesson(lessonID, func(lp *domain.LessonProgress) bool {
		return lp.CompleteStep(stepID, index)
	})
}

// RecordAttempt counts a submission against a lesson
func (s *Service) RecordAttempt(lessonID string) domain.LessonProgress {
	return s.updateLesson(lessonID, func(lp *domain.LessonProgress) bool {
		if lp.IsCompleted() {
			return false
		}
		lp.Attempts++
		return true
	})
}

// RecordHint counts a revealed hint against a lesson
func (s *Service) RecordHint(lessonID string) domain.LessonProgress {
	return s.updateLesson(lessonID, func(lp *domain.LessonProgress) bool {
		if lp.IsCompleted() {
			return false
		}
		lp.HintsUsed++
		return true
	})
}

// CompleteLesson records a finished lesson and awards xpEarned. It returns
// false without changing anything when the lesson was already completed.
func (s *Service) CompleteLesson(lessonID string, xpEarned int) bool {
	s.mu.Lock()
	if s.progress.HasCompleted(lessonID) {
		s.mu.Unlock()
		s.logger.Debug("lesson already completed", "lesson_id", lessonID)
		return false
	}

	now := s.now()
	s.progress.LessonsCompleted = append(s.progress.LessonsCompleted, lessonID)
	s.progress.AddXP(xpEarned)
	s.progress.RecordActivity(now)

	lp := s.lessonLocked(lessonID)
	lp.Complete(max(xpEarned, 0), now)

	s.persist()
	p := s.progressCopy()
	l := lessonCopy(lp)
	s.mu.Unlock()

	s.logger.Info("lesson completed",
		"lesson_id", lessonID,
		"xp", xpEarned,
		"total_xp", p.TotalXP,
		"level", p.Level,
		"streak", p.CurrentStreak)

	s.sync.SyncUserProgress(p)
	s.sync.SyncLessonProgress(l)
	return true
}

// TopUpLessonXP awards extra XP for work revisiting a completed lesson
func (s *Service) TopUpLessonXP(lessonID string, xp int) domain.UserProgress {
	if xp <= 0 {
		return s.Progress()
	}

	s.mu.Lock()
	s.progress.AddXP(xp)
	lp, ok := s.lessons[lessonID]
	var l domain.LessonProgress
	if ok {
		lp.XPEarned += xp
		l = lessonCopy(lp)
	}
	s.persist()
	p := s.progressCopy()
	s.mu.Unlock()

	s.sync.SyncUserProgress(p)
	if ok {
		s.sync.SyncLessonProgress(l)
	}
	return p
}

// RecentCompletions returns lessons completed within window of now
func (s *Service) RecentCompletions(window time.Duration) []domain.LessonProgress {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-window)
	var out []domain.LessonProgress
	for _, lp := range s.lessons {
		if lp.IsCompleted() && lp.CompletedAt != nil && !lp.CompletedAt.Before(cutoff) {
			out = append(out, lessonCopy(lp))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CompletedAt.After(*out[j].CompletedAt)
	})
	return out
}

// UpdateSettings replaces the learner's settings after validation
func (s *Service) UpdateSettings(settings domain.UserSettings) (domain.UserSettings, error) {
	if settings.PreferredLanguage == "" {
		settings.PreferredLanguage = domain.LanguageTypeScript
	}
	lang, err := domain.ParseLanguage(string(settings.PreferredLanguage))
	if err != nil {
		return domain.UserSettings{}, err
	}
	settings.PreferredLanguage = lang
	if settings.DailyGoalXP < 0 {
		return domain.UserSettings{}, errInvalid("daily goal must not be negative")
	}
	if settings.Theme == "" {
		settings.Theme = "system"
	}

	s.mu.Lock()
	s.settings = settings
	s.persist()
	s.mu.Unlock()

	s.sync.SyncUserSettings(s.userID, settings)
	return settings, nil
}

// Reset clears XP, streak and lesson history. Settings are kept.
func (s *Service) Reset() domain.UserProgress {
	s.mu.Lock()
	s.progress = domain.NewUserProgress(s.userID)
	s.lessons = make(map[string]*domain.LessonProgress)
	s.persist()
	p := s.progressCopy()
	s.mu.Unlock()

	s.logger.Info("progress reset", "user_id", s.userID)
	s.sync.SyncUserProgress(p)
	return p
}
