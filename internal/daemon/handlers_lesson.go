package daemon

import (
	"net/http"

	"github.com/felixgeelhaar/champ/internal/domain"
	"github.com/felixgeelhaar/champ/internal/lesson"
)

func (s *Server) handlePlayLesson(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.Lessons.Play(r.PathValue("id"))
	if err != nil {
		s.serviceError(w, "failed to start lesson", err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, p.View())
}

// player resolves the play session named in the path, writing a 404 otherwise
func (s *Server) player(w http.ResponseWriter, r *http.Request) (*lesson.Player, bool) {
	p, err := s.app.Lessons.Player(r.PathValue("id"))
	if err != nil {
		s.serviceError(w, "play session not found", err)
		return nil, false
	}
	return p, true
}

func (s *Server) handleGetPlay(w http.ResponseWriter, r *http.Request) {
	p, ok := s.player(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, p.View())
}

func (s *Server) handleCompleteStep(w http.ResponseWriter, r *http.Request) {
	p, ok := s.player(w, r)
	if !ok {
		return
	}
	view, err := p.MarkStepComplete()
	if err != nil {
		s.serviceError(w, "cannot complete step", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, view)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	p, ok := s.player(w, r)
	if !ok {
		return
	}
	var req struct {
		Choice *int     `json:"choice"`
		Blanks []string `json:"blanks"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	var correct bool
	var err error
	switch {
	case req.Choice != nil:
		correct, err = p.CheckQuiz(*req.Choice)
	case req.Blanks != nil:
		correct, err = p.CheckFillBlank(req.Blanks)
	default:
		s.jsonError(w, http.StatusBadRequest, "choice or blanks is required", nil)
		return
	}
	if err != nil {
		s.serviceError(w, "cannot check answer", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"correct": correct,
		"play":    p.View(),
	})
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	p, ok := s.player(w, r)
	if !ok {
		return
	}
	hint, err := p.UseHint()
	if err != nil {
		s.serviceError(w, "no hint available", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"hint": hint,
		"play": p.View(),
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	p, ok := s.player(w, r)
	if !ok {
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	res, err := p.SubmitCode(r.Context(), req.Code)
	if err != nil {
		s.serviceError(w, "submission failed", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"result": res,
		"play":   p.View(),
	})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	p, ok := s.player(w, r)
	if !ok {
		return
	}
	view, err := p.Next()
	if err != nil {
		s.serviceError(w, "cannot advance", err)
		return
	}
	if view.LessonComplete {
		s.app.Lessons.Close(view.PlayID)
	}
	s.jsonResponse(w, http.StatusOK, view)
}

func (s *Server) handleGoTo(w http.ResponseWriter, r *http.Request) {
	p, ok := s.player(w, r)
	if !ok {
		return
	}
	var req struct {
		Step *int `json:"step"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Step == nil {
		s.jsonError(w, http.StatusBadRequest, "step is required", nil)
		return
	}
	view, err := p.GoTo(*req.Step)
	if err != nil {
		s.serviceError(w, "cannot move to step", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, view)
}

type runRequest struct {
	Code     string          `json:"code"`
	TestCode string          `json:"testCode"`
	Language domain.Language `json:"language"`
}

func (s *Server) decodeRun(w http.ResponseWriter, r *http.Request) (runRequest, bool) {
	var req runRequest
	if !s.decode(w, r, &req) {
		return req, false
	}
	if req.Language == "" {
		req.Language = s.app.Progress.Settings().PreferredLanguage
	}
	lang, err := domain.ParseLanguage(string(req.Language))
	if err != nil {
		s.serviceError(w, "unsupported language", err)
		return req, false
	}
	req.Language = lang
	return req, true
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRun(w, r)
	if !ok {
		return
	}
	res, err := s.app.Sandbox.Run(r.Context(), req.Code, req.Language)
	if err != nil {
		s.serviceError(w, "run failed", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleRunTests(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRun(w, r)
	if !ok {
		return
	}
	if req.TestCode == "" {
		s.jsonError(w, http.StatusBadRequest, "testCode is required", nil)
		return
	}
	res, err := s.app.Sandbox.RunWithTests(r.Context(), req.Code, req.TestCode, req.Language)
	if err != nil {
		s.serviceError(w, "test run failed", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}
