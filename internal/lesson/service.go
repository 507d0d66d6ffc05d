package lesson

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/champ/internal/domain"
	"github.com/felixgeelhaar/champ/internal/runner"
)

// DefaultPlayTTL is how long an idle play session is kept
const DefaultPlayTTL = 2 * time.Hour

// Service opens lesson play sessions over the catalog
type Service struct {
	catalog  *Catalog
	progress ProgressRecorder
	sandbox  runner.Sandbox
	ttl      time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	players map[string]*Player
}

// NewService creates a lesson service
func NewService(catalog *Catalog, progress ProgressRecorder, sandbox runner.Sandbox, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		catalog:  catalog,
		progress: progress,
		sandbox:  sandbox,
		ttl:      DefaultPlayTTL,
		logger:   logger.With("component", "lesson"),
		players:  make(map[string]*Player),
	}
}

// Catalog returns the lesson catalog
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Play opens a play session for a lesson
func (s *Service) Play(lessonID string) (*Player, error) {
	lesson, err := s.catalog.Lesson(lessonID)
	if err != nil {
		return nil, err
	}

	p := NewPlayer(lesson, s.progress, s.sandbox)

	s.mu.Lock()
	s.evictIdleLocked(time.Now())
	s.players[p.ID()] = p
	s.mu.Unlock()

	s.logger.Debug("lesson play started", "lesson_id", lessonID, "play_id", p.ID())
	return p, nil
}

// Player returns an open play session
func (s *Service) Player(playID string) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playID]
	if !ok {
		return nil, fmt.Errorf("%w: play %s", domain.ErrNotFound, playID)
	}
	return p, nil
}

// Close ends a play session
func (s *Service) Close(playID string) {
	s.mu.Lock()
	delete(s.players, playID)
	s.mu.Unlock()
}

func (s *Service) evictIdleLocked(now time.Time) {
	for id, p := range s.players {
		if now.Sub(p.idleSince()) > s.ttl {
			delete(s.players, id)
		}
	}
}
