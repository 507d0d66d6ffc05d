// Package practice tracks per-topic practice results and derives mastery.
package practice

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/champ/internal/domain"
	"github.com/felixgeelhaar/champ/internal/generator"
	"github.com/felixgeelhaar/champ/internal/storage"
	"github.com/felixgeelhaar/champ/internal/syncer"
)

// Snapshot is the persisted form of the practice slot
type Snapshot struct {
	TopicStats map[string]domain.PracticeStats `json:"topicStats"`
}

// State is the transient generation state shown alongside the stats
type State struct {
	IsGenerating    bool             `json:"isGenerating"`
	GenerationError string           `json:"generationError,omitempty"`
	CurrentExercise *domain.Exercise `json:"currentExercise,omitempty"`
}

// Config holds tracker settings
type Config struct {
	UserID string
	Logger *slog.Logger
	Now    func() time.Time
}

// Tracker owns practice statistics for one user
type Tracker struct {
	store  storage.Store
	sync   syncer.Port
	gen    generator.Generator
	userID string
	now    func() time.Time
	logger *slog.Logger

	mu         sync.Mutex
	stats      map[string]domain.PracticeStats
	generating int
	genErr     string
	current    *domain.Exercise
}

// NewTracker creates a tracker and restores persisted stats
func NewTracker(store storage.Store, gen generator.Generator, port syncer.Port, cfg Config) *Tracker {
	if port == nil {
		port = syncer.Discard{}
	}
	if gen == nil {
		gen = generator.Unavailable{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	t := &Tracker{
		store:  store,
		sync:   port,
		gen:    gen,
		userID: cfg.UserID,
		now:    cfg.Now,
		logger: cfg.Logger.With("component", "practice"),
		stats:  make(map[string]domain.PracticeStats),
	}
	t.load()
	return t
}

func (t *Tracker) load() {
	var snap Snapshot
	if err := t.store.Load(storage.SlotPractice, t.userID, &snap); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			t.logger.Error("failed to load practice stats", "user_id", t.userID, "error", err)
		}
		return
	}
	for topic, s := range snap.TopicStats {
		s.Topic = topic
		s.Normalize()
		t.stats[topic] = s
	}
}

func (t *Tracker) persist() {
	if err := t.store.Save(storage.SlotPractice, t.userID, Snapshot{TopicStats: t.stats}); err != nil {
		t.logger.Error("failed to persist practice stats", "user_id", t.userID, "error", err)
	}
}

// CompleteExercise records one practice attempt and returns the updated stats
func (t *Tracker) CompleteExercise(topic string, difficulty domain.Difficulty, success bool, timeSeconds int) (domain.PracticeStats, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return domain.PracticeStats{}, errInvalid("topic is required")
	}
	difficulty, err := domain.ParseDifficulty(string(difficulty))
	if err != nil {
		return domain.PracticeStats{}, err
	}
	if timeSeconds < 0 {
		timeSeconds = 0
	}

	t.mu.Lock()
	current, ok := t.stats[topic]
	if !ok {
		current = domain.NewPracticeStats(topic)
	}
	next := domain.ApplyPracticeAttempt(current, difficulty, success, timeSeconds, t.now())
	t.stats[topic] = next
	t.persist()
	t.mu.Unlock()

	if next.MasteryLevel != current.MasteryLevel && ok {
		t.logger.Info("mastery changed",
			"topic", topic,
			"from", current.MasteryLevel,
			"to", next.MasteryLevel)
	}

	t.sync.SyncPracticeStats(t.userID, next)
	return next, nil
}

// Stats returns the stats for one topic
func (t *Tracker) Stats(topic string) (domain.PracticeStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.stats[topic]
	return s, ok
}

// AllStats returns stats for every practiced topic ordered by topic
func (t *Tracker) AllStats() []domain.PracticeStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.PracticeStats, 0, len(t.stats))
	for _, s := range t.stats {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out
}

// State returns the transient generation state
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{
		IsGenerating:    t.generating > 0,
		GenerationError: t.genErr,
		CurrentExercise: t.current,
	}
}

// GenerateExercise fetches a practice exercise. Failures are kept in
// GenerationError until the next attempt.
func (t *Tracker) GenerateExercise(ctx context.Context, req generator.ExerciseRequest) (*domain.Exercise, error) {
	if req.Difficulty == "" {
		req.Difficulty = t.suggestDifficulty(req.Topic)
	}

	t.mu.Lock()
	t.generating++
	t.genErr = ""
	t.mu.Unlock()

	ex, err := t.gen.GenerateExercise(ctx, req)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.generating--
	if err != nil {
		t.genErr = err.Error()
		t.logger.Warn("practice generation failed", "topic", req.Topic, "error", err)
		return nil, err
	}
	t.current = ex
	return ex, nil
}

// ClearError dismisses a generation error
func (t *Tracker) ClearError() {
	t.mu.Lock()
	t.genErr = ""
	t.mu.Unlock()
}

// suggestDifficulty picks the next difficulty from the topic's mastery
func (t *Tracker) suggestDifficulty(topic string) domain.Difficulty {
	s, ok := t.Stats(topic)
	if !ok {
		return domain.DifficultyEasy
	}
	switch s.MasteryLevel {
	case domain.MasteryConfident, domain.MasteryMastered:
		return domain.DifficultyHard
	case domain.MasteryPracticing:
		return domain.DifficultyMedium
	default:
		return domain.DifficultyEasy
	}
}
