package syncer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/champ/internal/domain"
	"github.com/felixgeelhaar/champ/internal/queue"
)

// DispatcherConfig holds dispatcher settings
type DispatcherConfig struct {
	// Buffer is the number of pending messages before new ones are dropped
	Buffer       int
	WriteTimeout time.Duration
	FlushTimeout time.Duration
	Resilience   ResilienceConfig
	Logger       *slog.Logger
}

// DefaultDispatcherConfig returns sensible defaults
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Buffer:       256,
		WriteTimeout: 15 * time.Second,
		FlushTimeout: 5 * time.Second,
		Resilience:   DefaultResilienceConfig(),
	}
}

// Dispatcher is a Port that queues snapshots in memory and delivers them
// to every sink from a single background worker.
type Dispatcher struct {
	sinks  []*resilientSink
	events chan *queue.Message
	cfg    DispatcherConfig
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	stop   chan struct{}
	done   chan struct{}

	delivered atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

var _ Port = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher and starts its worker
func NewDispatcher(cfg DispatcherConfig, sinks ...Sink) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.Buffer <= 0 {
		cfg.Buffer = def.Buffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = def.FlushTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		events: make(chan *queue.Message, cfg.Buffer),
		cfg:    cfg,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, s := range sinks {
		d.sinks = append(d.sinks, newResilientSink(s, cfg.Resilience, logger))
	}

	go d.run()

	return d
}

func (d *Dispatcher) SyncUserProgress(p domain.UserProgress) {
	d.enqueue(KindUserProgress, p.UserID, "", p)
}

func (d *Dispatcher) SyncLessonProgress(p domain.LessonProgress) {
	d.enqueue(KindLessonProgress, p.UserID, p.LessonID, p)
}

func (d *Dispatcher) SyncUserSettings(userID string, s domain.UserSettings) {
	d.enqueue(KindUserSettings, userID, "", s)
}

func (d *Dispatcher) SyncPracticeStats(userID string, s domain.PracticeStats) {
	d.enqueue(KindPracticeStats, userID, s.Topic, s)
}

func (d *Dispatcher) SyncSprintProgress(userID, moduleID string, p domain.SprintProgress) {
	d.enqueue(KindSprintProgress, userID, moduleID, p)
}

// enqueue encodes the snapshot now and hands it to the worker without blocking
func (d *Dispatcher) enqueue(kind, userID, key string, payload any) {
	if len(d.sinks) == 0 {
		return
	}

	msg, err := queue.NewMessage(kind, userID, key, payload)
	if err != nil {
		d.logger.Error("encode sync message", "kind", kind, "error", err)
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return
	}

	select {
	case d.events <- msg:
	default:
		d.dropped.Add(1)
		d.logger.Warn("sync buffer full, dropping message", "kind", kind, "user_id", userID)
	}
}

// run delivers until stop is closed. Deliveries never share a context with
// Close, so a write in progress at shutdown still completes.
func (d *Dispatcher) run() {
	defer close(d.done)

	for {
		select {
		case msg := <-d.events:
			d.deliver(context.Background(), msg)
		case <-d.stop:
			d.flush()
			return
		}
	}
}

// flush delivers whatever is still buffered within FlushTimeout
func (d *Dispatcher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.FlushTimeout)
	defer cancel()

	for {
		select {
		case msg := <-d.events:
			if ctx.Err() != nil {
				d.dropped.Add(1)
				continue
			}
			d.deliver(ctx, msg)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg *queue.Message) {
	for _, s := range d.sinks {
		wctx, cancel := context.WithTimeout(ctx, d.cfg.WriteTimeout)
		err := s.Write(wctx, msg)
		cancel()
		if err != nil {
			d.failed.Add(1)
			d.logger.Warn("sync write failed",
				"sink", s.sink.Name(),
				"kind", msg.Kind,
				"user_id", msg.UserID,
				"key", msg.Key,
				"error", err)
			continue
		}
		d.delivered.Add(1)
	}
}

// Stats reports delivery counters
type Stats struct {
	Delivered int64 `json:"delivered"`
	Dropped   int64 `json:"dropped"`
	Failed    int64 `json:"failed"`
	Pending   int   `json:"pending"`
}

// Stats returns a snapshot of the delivery counters
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Delivered: d.delivered.Load(),
		Dropped:   d.dropped.Load(),
		Failed:    d.failed.Load(),
		Pending:   len(d.events),
	}
}

// Close stops accepting messages, flushes the buffer and waits for the worker
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	close(d.stop)
	<-d.done
	return nil
}
