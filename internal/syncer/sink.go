package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/champ/internal/queue"
)

// Sink writes sync messages to one remote store
type Sink interface {
	Name() string
	Write(ctx context.Context, msg *queue.Message) error
}

// ResilienceConfig tunes retry and circuit breaking around each sink
type ResilienceConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// consecutive failures before the breaker opens
	TripAfter   int
	OpenTimeout time.Duration
}

// DefaultResilienceConfig returns defaults suited to background sync
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		TripAfter:    5,
		OpenTimeout:  30 * time.Second,
	}
}

// resilientSink wraps a sink with fortify retry and a circuit breaker
type resilientSink struct {
	sink    Sink
	breaker circuitbreaker.CircuitBreaker[struct{}]
	retrier retry.Retry[struct{}]
}

func newResilientSink(sink Sink, cfg ResilienceConfig, logger *slog.Logger) *resilientSink {
	def := DefaultResilienceConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.TripAfter <= 0 {
		cfg.TripAfter = def.TripAfter
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}

	return &resilientSink{
		sink: sink,
		breaker: circuitbreaker.New[struct{}](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return int(counts.ConsecutiveFailures) >= cfg.TripAfter
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				logger.Warn("sync sink circuit state change",
					"sink", sink.Name(),
					"from", from.String(),
					"to", to.String())
			},
		}),
		retrier: retry.New[struct{}](retry.Config{
			MaxAttempts:   cfg.MaxAttempts,
			InitialDelay:  cfg.InitialDelay,
			MaxDelay:      cfg.MaxDelay,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable: func(err error) bool {
				return err != nil
			},
		}),
	}
}

func (r *resilientSink) Write(ctx context.Context, msg *queue.Message) error {
	_, err := r.breaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return r.retrier.Do(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, r.sink.Write(ctx, msg)
		})
	})
	return err
}
