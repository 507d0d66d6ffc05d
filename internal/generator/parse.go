package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/champ/internal/domain"
)

// wireExercise is the JSON shape models are asked to produce
type wireExercise struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	StarterCode string   `json:"starterCode"`
	Solution    string   `json:"solution"`
	TestCode    string   `json:"testCode"`
	Hints       []string `json:"hints"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
}

// extractJSON returns the outermost JSON object in a model reply,
// tolerating markdown fences and surrounding prose.
func extractJSON(s string) (string, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(rest), "```")
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in response")
	}
	return s[start : end+1], nil
}

// parseExercise decodes a model reply into an exercise, filling fields the
// request already determines.
func parseExercise(content string, req ExerciseRequest) (*domain.Exercise, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	var w wireExercise
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("decode exercise: %w", err)
	}
	if strings.TrimSpace(w.Title) == "" {
		return nil, fmt.Errorf("exercise missing title")
	}

	exType := req.ExerciseType
	if w.Type != "" {
		exType = domain.ExerciseType(w.Type)
	}
	if exType == domain.ExerciseQuiz && len(w.Options) < 2 {
		return nil, fmt.Errorf("quiz exercise needs at least two options")
	}

	lang := req.Language
	if lang == "" {
		lang = domain.LanguageTypeScript
	}

	return &domain.Exercise{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(w.Title),
		Description: w.Description,
		Type:        exType,
		Topic:       req.Topic,
		Difficulty:  req.Difficulty,
		Language:    lang,
		StarterCode: w.StarterCode,
		Solution:    w.Solution,
		TestCode:    w.TestCode,
		Hints:       w.Hints,
		Options:     w.Options,
		Answer:      w.Answer,
	}, nil
}
