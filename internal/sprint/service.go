package sprint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/champ/internal/domain"
	"github.com/felixgeelhaar/champ/internal/generator"
	"github.com/felixgeelhaar/champ/internal/storage"
	"github.com/felixgeelhaar/champ/internal/syncer"
)

// ActivityRecorder receives the XP a sprint exercise earned
type ActivityRecorder interface {
	AwardActivity(xp int) domain.UserProgress
}

// Snapshot is the persisted form of the sprint slot
type Snapshot struct {
	Progress map[string]*domain.SprintProgress `json:"moduleProgress"`
}

// Config holds sprint settings
type Config struct {
	UserID            string
	ExerciseXP        int
	CompletionBonusXP int
	Queue             QueueConfig
	Logger            *slog.Logger
	Now               func() time.Time
}

// DefaultConfig returns the XP awards and prefetch defaults
func DefaultConfig() Config {
	return Config{
		ExerciseXP:        10,
		CompletionBonusXP: 50,
		Queue:             DefaultQueueConfig(),
	}
}

// ModuleView pairs a module with the user's progress on it
type ModuleView struct {
	Module   domain.Module         `json:"module"`
	Progress domain.SprintProgress `json:"progress"`
	Buffered int                   `json:"buffered"`
}

// Result describes the effect of one completed exercise
type Result struct {
	Progress  domain.SprintProgress `json:"progress"`
	XPAwarded int                   `json:"xpAwarded"`
	Unlocked  []string              `json:"unlocked,omitempty"`
}

// Service owns sprint progress for one user
type Service struct {
	modules  []domain.Module
	byID     map[string]domain.Module
	store    storage.Store
	sync     syncer.Port
	recorder ActivityRecorder
	queue    *Queue
	cfg      Config
	logger   *slog.Logger

	mu       sync.Mutex
	progress map[string]*domain.SprintProgress
}

// NewService creates the service and restores persisted progress.
// A nil recorder keeps sprint XP local to the module records.
func NewService(modules []domain.Module, store storage.Store, gen generator.Generator, port syncer.Port, recorder ActivityRecorder, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.ExerciseXP <= 0 {
		cfg.ExerciseXP = def.ExerciseXP
	}
	if cfg.CompletionBonusXP <= 0 {
		cfg.CompletionBonusXP = def.CompletionBonusXP
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if port == nil {
		port = syncer.Discard{}
	}
	if gen == nil {
		gen = generator.Unavailable{}
	}
	logger := cfg.Logger.With("component", "sprint")
	cfg.Queue.Logger = logger

	s := &Service{
		modules:  modules,
		byID:     make(map[string]domain.Module, len(modules)),
		store:    store,
		sync:     port,
		recorder: recorder,
		queue:    NewQueue(gen, cfg.Queue),
		cfg:      cfg,
		logger:   logger,
		progress: make(map[string]*domain.SprintProgress),
	}
	for _, m := range modules {
		s.byID[m.ID] = m
	}
	s.load()
	return s
}

func (s *Service) load() {
	var snap Snapshot
	if err := s.store.Load(storage.SlotSprints, s.cfg.UserID, &snap); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Error("failed to load sprint progress", "user_id", s.cfg.UserID, "error", err)
	}

	for _, m := range s.modules {
		if p, ok := snap.Progress[m.ID]; ok && p != nil {
			p.ModuleID = m.ID
			s.progress[m.ID] = p
			continue
		}
		s.progress[m.ID] = domain.NewSprintProgress(m)
	}
	// thresholds may have changed since the snapshot was written
	domain.UnlockEligible(s.modules, s.progress)
}

func (s *Service) persist() {
	if err := s.store.Save(storage.SlotSprints, s.cfg.UserID, Snapshot{Progress: s.progress}); err != nil {
		s.logger.Error("failed to persist sprint progress", "user_id", s.cfg.UserID, "error", err)
	}
}

func (s *Service) viewLocked(m domain.Module) ModuleView {
	return ModuleView{
		Module:   m,
		Progress: *s.progress[m.ID],
		Buffered: s.queue.Len(m.ID),
	}
}

// Modules lists every module with its progress, in order
func (s *Service) Modules() []ModuleView {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ModuleView, 0, len(s.modules))
	for _, m := range s.modules {
		out = append(out, s.viewLocked(m))
	}
	return out
}

// Module returns one module with its progress
func (s *Service) Module(id string) (ModuleView, error) {
	m, ok := s.byID[id]
	if !ok {
		return ModuleView{}, fmt.Errorf("%w: %s", domain.ErrModuleNotFound, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked(m), nil
}

// TotalXP is the cumulative XP over every module
func (s *Service) TotalXP() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CumulativeXP(s.progress)
}

// StartModule moves an unlocked module to in-progress and warms its queue.
// Locked and unknown modules are rejected without changes.
func (s *Service) StartModule(id string) (domain.SprintProgress, error) {
	m, ok := s.byID[id]
	if !ok {
		s.logger.Error("start of unknown module rejected", "module_id", id)
		return domain.SprintProgress{}, fmt.Errorf("%w: %s", domain.ErrModuleNotFound, id)
	}

	s.mu.Lock()
	p := s.progress[id]
	if p.Status == domain.SprintLocked {
		cp := *p
		s.mu.Unlock()
		s.logger.Error("start of locked module rejected", "module_id", id)
		return cp, fmt.Errorf("%w: %s", domain.ErrModuleLocked, id)
	}

	started := p.Start(s.cfg.Now())
	if started {
		s.persist()
	}
	cp := *p
	s.mu.Unlock()

	if started {
		s.logger.Info("module started", "module_id", id)
		s.sync.SyncSprintProgress(s.cfg.UserID, id, cp)
	}
	if cp.Status != domain.SprintCompleted {
		s.queue.Warm(m)
	}
	return cp, nil
}

// CompleteExercise records one sprint exercise result. An unlocked module is
// started implicitly; a locked one is rejected.
func (s *Service) CompleteExercise(id string, success bool) (Result, error) {
	m, ok := s.byID[id]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", domain.ErrModuleNotFound, id)
	}

	s.mu.Lock()
	p := s.progress[id]
	if p.Status == domain.SprintLocked {
		s.mu.Unlock()
		s.logger.Error("exercise on locked module rejected", "module_id", id)
		return Result{Progress: *p}, fmt.Errorf("%w: %s", domain.ErrModuleLocked, id)
	}

	now := s.cfg.Now()
	p.Start(now)
	wasCompleted := p.Status == domain.SprintCompleted
	awarded := p.RecordExercise(m, success, s.cfg.ExerciseXP, s.cfg.CompletionBonusXP, now)
	unlocked := domain.UnlockEligible(s.modules, s.progress)
	s.persist()

	res := Result{Progress: *p, XPAwarded: awarded, Unlocked: unlocked}
	changed := make([]domain.SprintProgress, 0, len(unlocked))
	for _, uid := range unlocked {
		changed = append(changed, *s.progress[uid])
	}
	s.mu.Unlock()

	s.sync.SyncSprintProgress(s.cfg.UserID, id, res.Progress)
	for _, cp := range changed {
		s.sync.SyncSprintProgress(s.cfg.UserID, cp.ModuleID, cp)
	}

	if !wasCompleted && res.Progress.Status == domain.SprintCompleted {
		s.logger.Info("module completed", "module_id", id, "xp_earned", res.Progress.XPEarned)
		s.queue.Drop(id)
	}
	if len(unlocked) > 0 {
		s.logger.Info("modules unlocked", "modules", unlocked)
	}

	if s.recorder != nil {
		s.recorder.AwardActivity(awarded)
	}
	return res, nil
}

// NextExercise returns the next exercise for a module from the prefetch queue
func (s *Service) NextExercise(ctx context.Context, id string) (*domain.Exercise, error) {
	m, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrModuleNotFound, id)
	}

	s.mu.Lock()
	locked := s.progress[id].Status == domain.SprintLocked
	s.mu.Unlock()
	if locked {
		return nil, fmt.Errorf("%w: %s", domain.ErrModuleLocked, id)
	}

	ex, err := s.queue.Next(ctx, m)
	if err != nil {
		s.logger.Warn("sprint exercise generation failed", "module_id", id, "error", err)
		return nil, err
	}
	return ex, nil
}

// Close stops background prefetching
func (s *Service) Close() {
	s.queue.Close()
}
