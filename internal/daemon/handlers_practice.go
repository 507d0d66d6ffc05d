package daemon

import (
	"net/http"
	"strings"

	"github.com/felixgeelhaar/champ/internal/domain"
	"github.com/felixgeelhaar/champ/internal/generator"
)

func (s *Server) handleGetPractice(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"topics":  s.app.Practice.AllStats(),
		"summary": s.app.Practice.Summary(),
		"state":   s.app.Practice.State(),
	})
}

func (s *Server) handleCompletePractice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic       string            `json:"topic"`
		Difficulty  domain.Difficulty `json:"difficulty"`
		Success     bool              `json:"success"`
		TimeSeconds int               `json:"timeSeconds"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	stats, err := s.app.Practice.CompleteExercise(req.Topic, req.Difficulty, req.Success, req.TimeSeconds)
	if err != nil {
		s.serviceError(w, "failed to record practice", err)
		return
	}
	s.app.Progress.RecordActivity()
	s.jsonResponse(w, http.StatusOK, stats)
}

func (s *Server) handleGeneratePractice(w http.ResponseWriter, r *http.Request) {
	var req generator.ExerciseRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		s.jsonError(w, http.StatusBadRequest, "topic is required", nil)
		return
	}
	if req.Difficulty != "" {
		d, err := domain.ParseDifficulty(string(req.Difficulty))
		if err != nil {
			s.serviceError(w, "invalid difficulty", err)
			return
		}
		req.Difficulty = d
	}
	if req.ExerciseType == "" {
		req.ExerciseType = domain.ExerciseCode
	}
	if req.Language == "" {
		req.Language = s.app.Progress.Settings().PreferredLanguage
	}

	ex, err := s.app.Practice.GenerateExercise(r.Context(), req)
	if err != nil {
		s.serviceError(w, "exercise generation failed", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, ex)
}

func (s *Server) handleClearPracticeError(w http.ResponseWriter, r *http.Request) {
	s.app.Practice.ClearError()
	s.jsonResponse(w, http.StatusOK, s.app.Practice.State())
}

func (s *Server) handleListSprints(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"modules": s.app.Sprints.Modules(),
		"totalXP": s.app.Sprints.TotalXP(),
	})
}

func (s *Server) handleStartSprint(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.Sprints.StartModule(r.PathValue("id"))
	if err != nil {
		s.serviceError(w, "cannot start module", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, p)
}

func (s *Server) handleNextSprintExercise(w http.ResponseWriter, r *http.Request) {
	ex, err := s.app.Sprints.NextExercise(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, "no exercise available", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, ex)
}

func (s *Server) handleCompleteSprintExercise(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Success bool `json:"success"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.app.Sprints.CompleteExercise(r.PathValue("id"), req.Success)
	if err != nil {
		s.serviceError(w, "cannot record exercise", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleGetRecap(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"recap": s.app.Recap.GetValidCache(),
		"state": s.app.Recap.State(),
	})
}

func (s *Server) handleGenerateRecap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LessonID string `json:"lessonId"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	var err error
	var cache *domain.RecapCache
	if req.LessonID == "" {
		cache, err = s.app.Recap.Generate(r.Context())
	} else {
		lp, ok := s.app.Progress.Lesson(req.LessonID)
		if !ok || !lp.IsCompleted() {
			s.jsonError(w, http.StatusConflict, "lesson not completed", nil)
			return
		}
		cache, err = s.app.Recap.GenerateRecapForLesson(r.Context(), req.LessonID, lp.ChallengeScore())
	}
	if err != nil {
		s.serviceError(w, "recap generation failed", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, cache)
}

func (s *Server) handleCompleteRecap(w http.ResponseWriter, r *http.Request) {
	cache, err := s.app.Recap.CompleteRecap()
	if err != nil {
		s.serviceError(w, "cannot complete recap", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, cache)
}

func (s *Server) handleClearRecapError(w http.ResponseWriter, r *http.Request) {
	s.app.Recap.ClearError()
	s.jsonResponse(w, http.StatusOK, s.app.Recap.State())
}
