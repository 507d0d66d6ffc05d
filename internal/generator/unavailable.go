package generator

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/champ/internal/domain"
)

// Unavailable is used when no generation backend is configured
type Unavailable struct{}

var _ Generator = Unavailable{}

var errNotConfigured = fmt.Errorf("%w: no generator configured", domain.ErrGenerationFailed)

func (Unavailable) GenerateExercise(context.Context, ExerciseRequest) (*domain.Exercise, error) {
	return nil, errNotConfigured
}

func (Unavailable) GenerateExerciseBatch(_ context.Context, req BatchRequest) ([]*domain.Exercise, error) {
	return make([]*domain.Exercise, max(req.Count, 0)), errNotConfigured
}

func (Unavailable) GenerateRecap(context.Context, RecapRequest) (*domain.Exercise, error) {
	return nil, errNotConfigured
}
