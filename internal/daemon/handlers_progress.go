package daemon

import (
	"net/http"

	"github.com/felixgeelhaar/champ/internal/domain"
)

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"progress": s.app.Progress.Progress(),
		"stats":    s.app.Progress.Stats(),
		"settings": s.app.Progress.Settings(),
	})
}

func (s *Server) handleAddXP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int `json:"amount"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		s.jsonError(w, http.StatusBadRequest, "amount must be positive", nil)
		return
	}
	s.jsonResponse(w, http.StatusOK, s.app.Progress.AddXP(req.Amount))
}

func (s *Server) handleResetProgress(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.app.Progress.Reset())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	settings := s.app.Progress.Settings()
	if !s.decode(w, r, &settings) {
		return
	}
	updated, err := s.app.Progress.UpdateSettings(settings)
	if err != nil {
		s.serviceError(w, "invalid settings", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, updated)
}

// courseView is a course with the learner's completion count
type courseView struct {
	*domain.Course
	Completed int `json:"completed"`
}

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	p := s.app.Progress.Progress()
	courses := s.app.Catalog.Courses()
	out := make([]courseView, 0, len(courses))
	for _, c := range courses {
		v := courseView{Course: c}
		for _, id := range c.Lessons {
			if p.HasCompleted(id) {
				v.Completed++
			}
		}
		out = append(out, v)
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"courses": out,
	})
}

func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	l, err := s.app.Catalog.Lesson(id)
	if err != nil {
		s.serviceError(w, "lesson not found", err)
		return
	}
	resp := map[string]any{"lesson": l}
	if lp, ok := s.app.Progress.Lesson(id); ok {
		resp["progress"] = lp
	}
	s.jsonResponse(w, http.StatusOK, resp)
}
