package generator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/champ/internal/domain"
	"github.com/felixgeelhaar/champ/internal/llm"
)

// Config holds LLM generation settings
type Config struct {
	ChunkSize   int
	MaxTokens   int
	Temperature float64
	Logger      *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		ChunkSize:   DefaultChunkSize,
		MaxTokens:   2048,
		Temperature: 0.7,
	}
}

// Service generates exercises by prompting an LLM provider
type Service struct {
	provider llm.Provider
	cfg      Config
	logger   *slog.Logger
}

var _ Generator = (*Service)(nil)

// NewService creates a generator over provider
func NewService(provider llm.Provider, cfg Config) *Service {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{provider: provider, cfg: cfg, logger: logger}
}

func (s *Service) GenerateExercise(ctx context.Context, req ExerciseRequest) (*domain.Exercise, error) {
	if req.ExerciseType == "" {
		req.ExerciseType = domain.ExerciseCode
	}
	return s.complete(ctx, exercisePrompt(req), req)
}

func (s *Service) GenerateExerciseBatch(ctx context.Context, req BatchRequest) ([]*domain.Exercise, error) {
	return fanOut(ctx, req.Count, s.cfg.ChunkSize, func(ctx context.Context, i int) (*domain.Exercise, error) {
		return s.GenerateExercise(ctx, req.Slot(i))
	})
}

func (s *Service) GenerateRecap(ctx context.Context, req RecapRequest) (*domain.Exercise, error) {
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = domain.DifficultyMedium
	}
	req.Difficulty = difficulty
	return s.complete(ctx, recapPrompt(req), ExerciseRequest{
		Topic:        req.Topic,
		Difficulty:   difficulty,
		ExerciseType: domain.ExerciseCode,
		Language:     req.Language,
	})
}

func (s *Service) complete(ctx context.Context, prompt string, req ExerciseRequest) (*domain.Exercise, error) {
	resp, err := s.provider.Generate(ctx, &llm.Request{
		System:      systemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrGenerationFailed, s.provider.Name(), err)
	}

	ex, err := parseExercise(resp.Content, req)
	if err != nil {
		s.logger.Warn("unusable generation response",
			"provider", s.provider.Name(),
			"topic", req.Topic,
			"error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}

	s.logger.Debug("exercise generated",
		"provider", s.provider.Name(),
		"topic", ex.Topic,
		"type", ex.Type,
		"output_tokens", resp.Usage.OutputTokens)
	return ex, nil
}
