// Package generator produces practice and recap exercises from a remote
// model or generation API.
package generator

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/champ/internal/domain"
)

// ErrEmptyResponse is returned when the backend answers without an exercise
var ErrEmptyResponse = errors.New("empty generation response")

// ExerciseRequest asks for one exercise
type ExerciseRequest struct {
	Topic        string              `json:"topic"`
	Difficulty   domain.Difficulty   `json:"difficulty"`
	ExerciseType domain.ExerciseType `json:"exerciseType"`
	Language     domain.Language     `json:"language,omitempty"`
	SprintMode   bool                `json:"sprintMode,omitempty"`
}

// BatchRequest asks for Count exercises, cycling through ExerciseTypes
type BatchRequest struct {
	Topic         string                `json:"topic"`
	Difficulty    domain.Difficulty     `json:"difficulty"`
	Count         int                   `json:"count"`
	ExerciseTypes []domain.ExerciseType `json:"exerciseTypes"`
	Language      domain.Language       `json:"language,omitempty"`
	SprintMode    bool                  `json:"sprintMode,omitempty"`
}

// RecapRequest asks for an exercise revisiting a completed lesson
type RecapRequest struct {
	LessonID       string            `json:"lessonId"`
	LessonTitle    string            `json:"lessonTitle"`
	Topic          string            `json:"topic"`
	Summary        string            `json:"summary"`
	Language       domain.Language   `json:"language"`
	Difficulty     domain.Difficulty `json:"difficulty"`
	ChallengeScore int               `json:"challengeScore"`
}

// Generator is the exercise generation contract. Every error is soft:
// callers log it and keep their current state.
type Generator interface {
	GenerateExercise(ctx context.Context, req ExerciseRequest) (*domain.Exercise, error)
	// GenerateExerciseBatch returns Count slots; failed slots are nil.
	// An error is returned only when no slot succeeded.
	GenerateExerciseBatch(ctx context.Context, req BatchRequest) ([]*domain.Exercise, error)
	GenerateRecap(ctx context.Context, req RecapRequest) (*domain.Exercise, error)
}

// slotType returns the exercise type for slot i of a batch
func (r BatchRequest) slotType(i int) domain.ExerciseType {
	if len(r.ExerciseTypes) == 0 {
		return domain.ExerciseCode
	}
	return r.ExerciseTypes[i%len(r.ExerciseTypes)]
}

// Slot returns the single-exercise request for slot i
func (r BatchRequest) Slot(i int) ExerciseRequest {
	return ExerciseRequest{
		Topic:        r.Topic,
		Difficulty:   r.Difficulty,
		ExerciseType: r.slotType(i),
		Language:     r.Language,
		SprintMode:   r.SprintMode,
	}
}
