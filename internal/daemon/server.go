// Package daemon serves the champ HTTP JSON API on localhost.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/felixgeelhaar/champ/internal/app"
	"github.com/felixgeelhaar/champ/internal/domain"
	"github.com/felixgeelhaar/champ/internal/lesson"
	"github.com/felixgeelhaar/champ/internal/runner"
)

// maxBodyBytes caps request bodies; submitted code is the largest payload
const maxBodyBytes = 1 << 20

// Server represents the champ daemon HTTP server
type Server struct {
	app       *app.App
	server    *http.Server
	router    *http.ServeMux
	logger    *slog.Logger
	version   string
	started   time.Time
	expensive ratelimit.RateLimiter
}

// ServerConfig holds configuration for creating a new server
type ServerConfig struct {
	App     *app.App
	Logger  *slog.Logger
	Version string
	// ExpensivePerMinute caps sandbox and generation calls per route,
	// DefaultExpensivePerMinute when zero
	ExpensivePerMinute int
}

// NewServer creates a new daemon server around a wired application
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		app:     cfg.App,
		router:  http.NewServeMux(),
		logger:  logger.With("component", "daemon"),
		version: cfg.Version,
		started: time.Now(),
	}
	s.expensive = newExpensiveLimiter(cfg.ExpensivePerMinute)

	s.setupRoutes()

	daemonCfg := cfg.App.Config.Daemon
	addr := fmt.Sprintf("%s:%d", daemonCfg.Bind, daemonCfg.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // generation calls can be slow
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the router wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	return correlationIDMiddleware(recoveryMiddleware(s.logger, loggingMiddleware(s.logger, s.router)))
}

func (s *Server) setupRoutes() {
	// Health
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)

	// Progress
	s.router.HandleFunc("GET /v1/progress", s.handleGetProgress)
	s.router.HandleFunc("POST /v1/progress/xp", s.handleAddXP)
	s.router.HandleFunc("POST /v1/progress/reset", s.handleResetProgress)
	s.router.HandleFunc("PUT /v1/settings", s.handleUpdateSettings)

	// Lessons
	s.router.HandleFunc("GET /v1/courses", s.handleListCourses)
	s.router.HandleFunc("GET /v1/lessons/{id}", s.handleGetLesson)
	s.router.HandleFunc("POST /v1/lessons/{id}/play", s.handlePlayLesson)
	s.router.HandleFunc("GET /v1/plays/{id}", s.handleGetPlay)
	s.router.HandleFunc("POST /v1/plays/{id}/complete-step", s.handleCompleteStep)
	s.router.HandleFunc("POST /v1/plays/{id}/answer", s.handleAnswer)
	s.router.HandleFunc("POST /v1/plays/{id}/hint", s.handleHint)
	s.router.HandleFunc("POST /v1/plays/{id}/submit", s.handleSubmit)
	s.router.HandleFunc("POST /v1/plays/{id}/next", s.handleNext)
	s.router.HandleFunc("POST /v1/plays/{id}/goto", s.handleGoTo)

	// Sandbox
	s.router.HandleFunc("POST /v1/run", s.limited(s.handleRun))
	s.router.HandleFunc("POST /v1/run/tests", s.limited(s.handleRunTests))

	// Practice
	s.router.HandleFunc("GET /v1/practice", s.handleGetPractice)
	s.router.HandleFunc("POST /v1/practice/complete", s.handleCompletePractice)
	s.router.HandleFunc("POST /v1/practice/generate", s.limited(s.handleGeneratePractice))
	s.router.HandleFunc("DELETE /v1/practice/error", s.handleClearPracticeError)

	// Sprints
	s.router.HandleFunc("GET /v1/sprints", s.handleListSprints)
	s.router.HandleFunc("POST /v1/sprints/{id}/start", s.handleStartSprint)
	s.router.HandleFunc("POST /v1/sprints/{id}/next", s.limited(s.handleNextSprintExercise))
	s.router.HandleFunc("POST /v1/sprints/{id}/complete", s.handleCompleteSprintExercise)

	// Recap
	s.router.HandleFunc("GET /v1/recap", s.handleGetRecap)
	s.router.HandleFunc("POST /v1/recap/generate", s.limited(s.handleGenerateRecap))
	s.router.HandleFunc("POST /v1/recap/complete", s.handleCompleteRecap)
	s.router.HandleFunc("DELETE /v1/recap/error", s.handleClearRecapError)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting champ daemon",
		"addr", s.server.Addr,
		"llm_providers", s.app.LLM.List(),
		"storage", s.app.Config.Storage.Backend,
	)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down daemon...")
	err := s.server.Shutdown(ctx)
	if cerr := s.expensive.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":        "running",
		"version":       s.version,
		"uptime":        time.Since(s.started).Round(time.Second).String(),
		"user_id":       s.app.Config.User.ID,
		"storage":       s.app.Config.Storage.Backend,
		"llm_providers": s.app.LLM.List(),
		"lessons":       s.app.Catalog.Count(),
		"modules":       len(s.app.Modules),
	}
	if b, ok := s.app.Sandbox.(interface{ Backend() string }); ok {
		status["runner"] = b.Backend()
	}
	if stats, ok := s.app.SyncStats(); ok {
		status["sync"] = stats
	}
	s.jsonResponse(w, http.StatusOK, status)
}

// Helper methods

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]any{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	s.jsonResponse(w, status, response)
}

// serviceError maps a service error onto its HTTP status
func (s *Server) serviceError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(message, "error", err)
	}
	s.jsonError(w, status, message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrLessonNotFound),
		errors.Is(err, domain.ErrCourseNotFound),
		errors.Is(err, domain.ErrModuleNotFound),
		errors.Is(err, domain.ErrNoRecap):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrModuleLocked),
		errors.Is(err, domain.ErrStepNotProceedable),
		errors.Is(err, domain.ErrWrongStepType),
		errors.Is(err, domain.ErrLessonAlreadyDone),
		errors.Is(err, domain.ErrNoRecapCandidate),
		errors.Is(err, lesson.ErrNoMoreHints):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrStepOutOfRange),
		errors.Is(err, runner.ErrUnsupportedLanguage),
		errors.Is(err, runner.ErrEmptyCode):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrGenerationFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}
