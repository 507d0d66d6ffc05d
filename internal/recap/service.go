// Package recap keeps a single cached exercise that revisits the learner's
// most challenging recent lesson.
package recap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/champ/internal/domain"
	"github.com/felixgeelhaar/champ/internal/generator"
	"github.com/felixgeelhaar/champ/internal/storage"
)

// DefaultRecapXP is awarded each time a recap is completed
const DefaultRecapXP = 15

// CandidateSource lists lessons completed within a window
type CandidateSource interface {
	RecentCompletions(window time.Duration) []domain.LessonProgress
}

// LessonLookup resolves lesson content by ID
type LessonLookup interface {
	Lesson(id string) (*domain.Lesson, error)
}

// XPAwarder credits recap XP to the user and the revisited lesson
type XPAwarder interface {
	TopUpLessonXP(lessonID string, xp int) domain.UserProgress
}

// Snapshot is the persisted form of the recap slot
type Snapshot struct {
	Cache *domain.RecapCache `json:"cache"`
}

// State is the cache plus transient generation state
type State struct {
	Cache           *domain.RecapCache `json:"cache"`
	IsGenerating    bool               `json:"isGenerating"`
	GenerationError string             `json:"generationError,omitempty"`
}

// Config holds recap settings
type Config struct {
	UserID  string
	RecapXP int
	Logger  *slog.Logger
	Now     func() time.Time
}

// Service owns the recap cache for one user
type Service struct {
	store   storage.Store
	gen     generator.Generator
	source  CandidateSource
	lessons LessonLookup
	awarder XPAwarder
	cfg     Config
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	cache      *domain.RecapCache
	generating int
	genErr     string
	closed     bool
	// regen identifies the newest background regeneration; older ones are dropped
	regen uint64
}

// NewService creates the service and restores the persisted cache
func NewService(store storage.Store, gen generator.Generator, source CandidateSource, lessons LessonLookup, awarder XPAwarder, cfg Config) *Service {
	if cfg.RecapXP <= 0 {
		cfg.RecapXP = DefaultRecapXP
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if gen == nil {
		gen = generator.Unavailable{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		store:   store,
		gen:     gen,
		source:  source,
		lessons: lessons,
		awarder: awarder,
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "recap"),
		ctx:     ctx,
		cancel:  cancel,
	}

	var snap Snapshot
	if err := store.Load(storage.SlotRecap, cfg.UserID, &snap); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Error("failed to load recap cache", "user_id", cfg.UserID, "error", err)
	}
	s.cache = snap.Cache
	return s
}

func (s *Service) persistLocked() {
	var err error
	if s.cache == nil {
		err = s.store.Delete(storage.SlotRecap, s.cfg.UserID)
		if errors.Is(err, storage.ErrNotFound) {
			err = nil
		}
	} else {
		err = s.store.Save(storage.SlotRecap, s.cfg.UserID, Snapshot{Cache: s.cache})
	}
	if err != nil {
		s.logger.Error("failed to persist recap cache", "user_id", s.cfg.UserID, "error", err)
	}
}

func cacheCopy(c *domain.RecapCache) *domain.RecapCache {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// validLocked evicts an expired cache. Caller holds mu.
func (s *Service) validLocked() *domain.RecapCache {
	if s.cache == nil {
		return nil
	}
	if s.cache.Expired(s.cfg.Now()) {
		s.logger.Info("recap cache expired", "lesson_id", s.cache.LessonID, "generated_at", s.cache.GeneratedAt)
		s.cache = nil
		s.persistLocked()
		return nil
	}
	return s.cache
}

// GetValidCache returns the cached recap, or nil once it has expired
func (s *Service) GetValidCache() *domain.RecapCache {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cacheCopy(s.validLocked())
}

// State returns the valid cache with generation state
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Cache:           cacheCopy(s.validLocked()),
		IsGenerating:    s.generating > 0,
		GenerationError: s.genErr,
	}
}

// ClearError dismisses a generation error
func (s *Service) ClearError() {
	s.mu.Lock()
	s.genErr = ""
	s.mu.Unlock()
}

// SelectLesson picks the most challenging lesson completed within the window
func (s *Service) SelectLesson() (domain.LessonProgress, bool) {
	recent := s.source.RecentCompletions(domain.RecapWindow)
	candidates := make([]*domain.LessonProgress, len(recent))
	for i := range recent {
		candidates[i] = &recent[i]
	}
	best, ok := domain.MostChallenging(candidates, s.cfg.Now())
	if !ok {
		return domain.LessonProgress{}, false
	}
	return *best, true
}

// Generate builds a recap for the selected lesson
func (s *Service) Generate(ctx context.Context) (*domain.RecapCache, error) {
	lp, ok := s.SelectLesson()
	if !ok {
		return nil, domain.ErrNoRecapCandidate
	}
	return s.GenerateRecapForLesson(ctx, lp.LessonID, lp.ChallengeScore())
}

// GenerateRecapForLesson builds the summary locally, requests one exercise and
// replaces the cache on success. A failure leaves the previous cache in place.
func (s *Service) GenerateRecapForLesson(ctx context.Context, lessonID string, challengeScore int) (*domain.RecapCache, error) {
	lesson, err := s.lessons.Lesson(lessonID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.generating++
	s.genErr = ""
	s.mu.Unlock()

	cache, err := s.build(ctx, lesson, challengeScore)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating--
	if err != nil {
		s.genErr = err.Error()
		s.logger.Warn("recap generation failed", "lesson_id", lessonID, "error", err)
		return nil, err
	}
	s.cache = cache
	s.regen++
	s.persistLocked()
	s.logger.Info("recap generated", "lesson_id", lessonID, "challenge_score", challengeScore)
	return cacheCopy(cache), nil
}

func (s *Service) build(ctx context.Context, lesson *domain.Lesson, challengeScore int) (*domain.RecapCache, error) {
	summary := Summarize(lesson)
	ex, err := s.gen.GenerateRecap(ctx, generator.RecapRequest{
		LessonID:       lesson.ID,
		LessonTitle:    lesson.Title,
		Topic:          lesson.Topic,
		Summary:        summary,
		Language:       lesson.Language,
		Difficulty:     difficultyFor(challengeScore),
		ChallengeScore: challengeScore,
	})
	if err != nil {
		return nil, err
	}
	if ex == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, generator.ErrEmptyResponse)
	}
	return &domain.RecapCache{
		LessonID:       lesson.ID,
		Exercise:       ex,
		Summary:        summary,
		GeneratedAt:    s.cfg.Now(),
		ChallengeScore: challengeScore,
	}, nil
}

// CompleteRecap awards recap XP and refreshes the exercise in the background.
// Until the refresh lands the current exercise stays available.
func (s *Service) CompleteRecap() (*domain.RecapCache, error) {
	s.mu.Lock()
	cache := s.validLocked()
	if cache == nil {
		s.mu.Unlock()
		return nil, domain.ErrNoRecap
	}
	cache.TimesCompleted++
	cache.IsRegenerating = true
	s.regen++
	token := s.regen
	s.persistLocked()
	out := cacheCopy(cache)
	closed := s.closed
	s.mu.Unlock()

	if s.awarder != nil {
		s.awarder.TopUpLessonXP(out.LessonID, s.cfg.RecapXP)
	}

	if !closed {
		s.wg.Add(1)
		go s.regenerate(out.LessonID, out.ChallengeScore, token)
	}
	return out, nil
}

// regenerate replaces the exercise of the current cache. Only the newest
// regeneration may land; completion counts come from the cache at landing.
func (s *Service) regenerate(lessonID string, challengeScore int, token uint64) {
	defer s.wg.Done()

	lesson, err := s.lessons.Lesson(lessonID)
	var next *domain.RecapCache
	if err == nil {
		next, err = s.build(s.ctx, lesson, challengeScore)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if token != s.regen || s.cache == nil || s.cache.LessonID != lessonID {
		// superseded, replaced or evicted meanwhile
		s.logger.Debug("dropping stale recap regeneration", "lesson_id", lessonID)
		return
	}
	if err != nil {
		s.logger.Warn("recap regeneration failed, keeping current exercise", "lesson_id", lessonID, "error", err)
		s.cache.IsRegenerating = false
		s.persistLocked()
		return
	}
	next.TimesCompleted = s.cache.TimesCompleted
	s.cache = next
	s.persistLocked()
	s.logger.Debug("recap regenerated", "lesson_id", lessonID)
}

// Close cancels background regeneration and waits for it
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// difficultyFor maps a challenge score to the recap difficulty
func difficultyFor(score int) domain.Difficulty {
	switch {
	case score >= 40:
		return domain.DifficultyHard
	case score >= 15:
		return domain.DifficultyMedium
	default:
		return domain.DifficultyEasy
	}
}

// Summarize renders the static lesson summary sent with a recap request
func Summarize(lesson *domain.Lesson) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Lesson: %s\n", lesson.Title)
	if lesson.Topic != "" {
		fmt.Fprintf(&b, "Topic: %s\n", lesson.Topic)
	}
	if lesson.Description != "" {
		fmt.Fprintf(&b, "%s\n", lesson.Description)
	}
	b.WriteString("Covered:\n")
	for _, step := range lesson.Steps {
		if step.Type == domain.StepInstruction {
			continue
		}
		fmt.Fprintf(&b, "- %s (%s)\n", step.Title, step.Type)
	}
	return b.String()
}
