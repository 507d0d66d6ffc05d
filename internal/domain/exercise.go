package domain

import (
	"fmt"
	"strings"
)

// Language is a supported learner language
type Language string

const (
	LanguageTypeScript Language = "typescript"
	LanguagePython     Language = "python"
)

// ParseLanguage validates a language name
func ParseLanguage(s string) (Language, error) {
	switch Language(s) {
	case LanguageTypeScript, LanguagePython:
		return Language(s), nil
	case "ts":
		return LanguageTypeScript, nil
	case "py":
		return LanguagePython, nil
	}
	return "", fmt.Errorf("%w: unsupported language %q", ErrInvalidInput, s)
}

// Difficulty represents exercise difficulty level
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists every difficulty in ascending order
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// ParseDifficulty validates a difficulty name, ignoring case and surrounding space
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, nil
	}
	return "", fmt.Errorf("%w: unsupported difficulty %q", ErrInvalidInput, s)
}

// ExerciseType is the interaction kind of an exercise
type ExerciseType string

const (
	ExerciseCode      ExerciseType = "code"
	ExerciseFillBlank ExerciseType = "fill-blank"
	ExerciseQuiz      ExerciseType = "quiz"
	ExerciseFixBug    ExerciseType = "fix-bug"
)

// Exercise is a generated practice task
type Exercise struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Type        ExerciseType `json:"type"`
	Topic       string       `json:"topic"`
	Difficulty  Difficulty   `json:"difficulty"`
	Language    Language     `json:"language"`
	StarterCode string       `json:"starterCode,omitempty"`
	Solution    string       `json:"solution,omitempty"`
	TestCode    string       `json:"testCode,omitempty"`
	Hints       []string     `json:"hints,omitempty"`
	Options     []string     `json:"options,omitempty"`
	Answer      string       `json:"answer,omitempty"`
}
