package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/champ/internal/domain"
)

// DefaultChunkSize bounds outstanding requests during batch generation
const DefaultChunkSize = 3

// fanOut fills count slots by calling gen, chunkSize at a time. Each chunk is
// joined before the next starts. A failed slot stays nil.
func fanOut(ctx context.Context, count, chunkSize int, gen func(ctx context.Context, i int) (*domain.Exercise, error)) ([]*domain.Exercise, error) {
	if count <= 0 {
		return []*domain.Exercise{}, nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	out := make([]*domain.Exercise, count)
	errs := make([]error, count)

	for start := 0; start < count; start += chunkSize {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		end := min(start+chunkSize, count)
		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				ex, err := gen(ctx, i)
				if err != nil {
					errs[i] = err
					return nil
				}
				out[i] = ex
				return nil
			})
		}
		_ = g.Wait()
	}

	succeeded := 0
	for i, ex := range out {
		if ex != nil {
			succeeded++
			continue
		}
		slog.Debug("batch slot failed", "slot", i, "error", errs[i])
	}
	if succeeded == 0 {
		return out, fmt.Errorf("%w: all %d slots failed: %w", domain.ErrGenerationFailed, count, errors.Join(errs...))
	}
	return out, nil
}
