// Package sprint runs XP-gated practice modules and keeps a prefetched
// supply of generated exercises for each of them.
package sprint

import (
	"fmt"
	"io/fs"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/champ/internal/domain"
)

type moduleFile struct {
	Modules []domain.Module `yaml:"modules"`
}

// LoadModules reads the module catalog at path and returns it ordered by Order
func LoadModules(fsys fs.FS, path string) ([]domain.Module, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read module catalog: %w", err)
	}

	var f moduleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse module catalog: %w", err)
	}

	seen := make(map[string]bool, len(f.Modules))
	for i := range f.Modules {
		m := &f.Modules[i]
		if err := validateModule(m); err != nil {
			return nil, err
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("duplicate module id %s", m.ID)
		}
		seen[m.ID] = true
	}

	sort.SliceStable(f.Modules, func(i, j int) bool { return f.Modules[i].Order < f.Modules[j].Order })
	return f.Modules, nil
}

func validateModule(m *domain.Module) error {
	if m.ID == "" {
		return fmt.Errorf("%w: module without id", domain.ErrInvalidInput)
	}
	if m.Order < 1 {
		return fmt.Errorf("%w: module %s: order must be at least 1", domain.ErrInvalidInput, m.ID)
	}
	if m.TargetExerciseCount < 1 {
		return fmt.Errorf("%w: module %s: target_exercise_count must be at least 1", domain.ErrInvalidInput, m.ID)
	}
	if m.Topic == "" {
		m.Topic = m.ID
	}

	lang, err := domain.ParseLanguage(string(m.Language))
	if err != nil {
		return fmt.Errorf("module %s: %w", m.ID, err)
	}
	m.Language = lang

	if m.Difficulty == "" {
		m.Difficulty = domain.DifficultyEasy
	}
	if _, err := domain.ParseDifficulty(string(m.Difficulty)); err != nil {
		return fmt.Errorf("module %s: %w", m.ID, err)
	}
	if len(m.ExerciseTypes) == 0 {
		m.ExerciseTypes = []domain.ExerciseType{domain.ExerciseCode}
	}
	return nil
}
