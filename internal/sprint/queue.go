package sprint

import (
	"context"
	"log/slog"
	"sync"

	"github.com/felixgeelhaar/champ/internal/domain"
	"github.com/felixgeelhaar/champ/internal/generator"
)

// QueueConfig tunes prefetching
type QueueConfig struct {
	// BatchSize is the number of exercises requested per refill
	BatchSize int
	// LowWater triggers a refill when fewer exercises are buffered
	LowWater int
	Logger   *slog.Logger
}

// DefaultQueueConfig returns the prefetch defaults
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		BatchSize: 3,
		LowWater:  2,
	}
}

// Queue buffers generated exercises per module ahead of consumption.
// It is FIFO only; exercises of one module are interchangeable.
type Queue struct {
	gen    generator.Generator
	cfg    QueueConfig
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	items     map[string][]*domain.Exercise
	refilling map[string]bool
	served    map[string]int
	// dropped modules are served synchronously and never refilled again
	dropped map[string]bool
	closed  bool
}

// NewQueue creates a prefetch queue over gen
func NewQueue(gen generator.Generator, cfg QueueConfig) *Queue {
	def := DefaultQueueConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.LowWater <= 0 {
		cfg.LowWater = def.LowWater
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		gen:       gen,
		cfg:       cfg,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		items:     make(map[string][]*domain.Exercise),
		refilling: make(map[string]bool),
		served:    make(map[string]int),
		dropped:   make(map[string]bool),
	}
}

func batchFor(m domain.Module, count int) generator.BatchRequest {
	return generator.BatchRequest{
		Topic:         m.Topic,
		Difficulty:    m.Difficulty,
		Count:         count,
		ExerciseTypes: m.ExerciseTypes,
		Language:      m.Language,
		SprintMode:    true,
	}
}

// Warm starts a background refill if the module's buffer is low
func (q *Queue) Warm(m domain.Module) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.refillLocked(m)
}

// Next returns the next exercise for m. Buffered exercises are served first;
// the generator is called synchronously only when the buffer is empty.
func (q *Queue) Next(ctx context.Context, m domain.Module) (*domain.Exercise, error) {
	q.mu.Lock()
	if buf := q.items[m.ID]; len(buf) > 0 {
		ex := buf[0]
		buf[0] = nil
		q.items[m.ID] = buf[1:]
		q.served[m.ID]++
		q.refillLocked(m)
		q.mu.Unlock()
		return ex, nil
	}
	req := batchFor(m, 1).Slot(q.served[m.ID])
	q.refillLocked(m)
	q.mu.Unlock()

	ex, err := q.gen.GenerateExercise(ctx, req)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	q.served[m.ID]++
	q.mu.Unlock()
	return ex, nil
}

// Len reports the number of buffered exercises for a module
func (q *Queue) Len(moduleID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items[moduleID])
}

// Refilling reports whether a refill is in flight for a module
func (q *Queue) Refilling(moduleID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.refilling[moduleID]
}

// Drop discards a module's buffer and stops prefetching for it. A refill
// already in flight finishes but its result is discarded.
func (q *Queue) Drop(moduleID string) {
	q.mu.Lock()
	delete(q.items, moduleID)
	q.dropped[moduleID] = true
	q.mu.Unlock()
}

// refillLocked starts at most one refill per module. Caller holds mu.
func (q *Queue) refillLocked(m domain.Module) {
	if q.closed || q.dropped[m.ID] || q.refilling[m.ID] || len(q.items[m.ID]) >= q.cfg.LowWater {
		return
	}
	q.refilling[m.ID] = true
	req := batchFor(m, q.cfg.BatchSize)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()

		exercises, err := q.gen.GenerateExerciseBatch(q.ctx, req)

		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.refilling, m.ID)
		if q.closed {
			q.logger.Debug("dropping prefetch result after close", "module_id", m.ID)
			return
		}
		if q.dropped[m.ID] {
			q.logger.Debug("dropping prefetch result for finished module", "module_id", m.ID)
			return
		}
		if err != nil {
			q.logger.Warn("prefetch failed", "module_id", m.ID, "error", err)
			return
		}
		added := 0
		for _, ex := range exercises {
			if ex == nil {
				continue
			}
			q.items[m.ID] = append(q.items[m.ID], ex)
			added++
		}
		q.logger.Debug("prefetched exercises", "module_id", m.ID, "added", added, "buffered", len(q.items[m.ID]))
	}()
}

// Close stops refills and waits for in-flight ones. Their results are dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.items = make(map[string][]*domain.Exercise)
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
}
