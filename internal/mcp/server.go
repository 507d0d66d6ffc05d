// Package mcp exposes champ progress, practice, sprints and recaps as MCP
// tools so editor agents can drive a learner's session.
package mcp

import (
	"context"
	"fmt"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/felixgeelhaar/champ/internal/domain"
	"github.com/felixgeelhaar/champ/internal/practice"
	"github.com/felixgeelhaar/champ/internal/progress"
	"github.com/felixgeelhaar/champ/internal/recap"
	"github.com/felixgeelhaar/champ/internal/runner"
	"github.com/felixgeelhaar/champ/internal/sprint"
)

// Server wraps the MCP server with champ functionality
type Server struct {
	mcpServer *server.Server
	progress  *progress.Service
	practice  *practice.Tracker
	sprints   *sprint.Service
	recap     *recap.Service
	sandbox   runner.Sandbox
}

// Config contains the services the tools operate on
type Config struct {
	Progress *progress.Service
	Practice *practice.Tracker
	Sprints  *sprint.Service
	Recap    *recap.Service
	Sandbox  runner.Sandbox
	Version  string
}

// NewServer creates a new MCP server for champ
func NewServer(cfg Config) *Server {
	s := &Server{
		progress: cfg.Progress,
		practice: cfg.Practice,
		sprints:  cfg.Sprints,
		recap:    cfg.Recap,
		sandbox:  cfg.Sandbox,
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	s.mcpServer = server.New(server.Info{
		Name:    "champ",
		Version: version,
	}, server.WithInstructions(`
champ tracks a learner's progress through TypeScript and Python lessons.

Available tools:
- champ_progress: XP, level, streak and completed lessons
- champ_run: Run code, optionally against test code
- champ_practice_complete: Record a practice attempt for a topic
- champ_sprint_next: Get the next exercise of a sprint module
- champ_sprint_complete: Record a sprint exercise result
- champ_recap: Show, generate or complete the review exercise
`))

	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("champ_progress").
		Description("Get the learner's XP, level, streak and practice summary.").
		Handler(s.handleProgress)

	s.mcpServer.Tool("champ_run").
		Description("Run TypeScript or Python code in the sandbox. With test_code, reports whether the tests pass.").
		Handler(s.handleRun)

	s.mcpServer.Tool("champ_practice_complete").
		Description("Record one practice attempt and return the topic's mastery.").
		Handler(s.handlePracticeComplete)

	s.mcpServer.Tool("champ_sprint_next").
		Description("Get the next exercise of an unlocked sprint module.").
		Handler(s.handleSprintNext)

	s.mcpServer.Tool("champ_sprint_complete").
		Description("Record a sprint exercise result. Awards XP and may unlock modules.").
		Handler(s.handleSprintComplete)

	s.mcpServer.Tool("champ_recap").
		Description("Show, generate or complete the recap exercise for a recently finished lesson.").
		Handler(s.handleRecap)
}

// Input/Output types for tools

type ProgressInput struct {
	IncludeLessons bool `json:"include_lessons,omitempty" jsonschema:"description=Include per-lesson progress records"`
}

type ProgressOutput struct {
	TotalXP          int                     `json:"total_xp"`
	Level            int                     `json:"level"`
	XPToNextLevel    int                     `json:"xp_to_next_level"`
	CurrentStreak    int                     `json:"current_streak"`
	LongestStreak    int                     `json:"longest_streak"`
	LessonsCompleted []string                `json:"lessons_completed"`
	WeakestTopics    []string                `json:"weakest_topics,omitempty"`
	Lessons          []domain.LessonProgress `json:"lessons,omitempty"`
}

type RunInput struct {
	Code     string `json:"code" jsonschema:"description=Source code to run"`
	Language string `json:"language,omitempty" jsonschema:"description=typescript or python (default: preferred language),enum=typescript,enum=python"`
	TestCode string `json:"test_code,omitempty" jsonschema:"description=Test snippet appended to the code; throws on failure"`
}

type RunOutput struct {
	Success bool     `json:"success"`
	Logs    []string `json:"logs,omitempty"`
	Error   string   `json:"error,omitempty"`
	Summary string   `json:"summary"`
}

type PracticeInput struct {
	Topic       string `json:"topic" jsonschema:"description=Practice topic, e.g. loops"`
	Difficulty  string `json:"difficulty" jsonschema:"description=Exercise difficulty,enum=easy,enum=medium,enum=hard"`
	Success     bool   `json:"success" jsonschema:"description=Whether the attempt succeeded"`
	TimeSeconds int    `json:"time_seconds,omitempty" jsonschema:"description=Time spent in seconds"`
}

type PracticeOutput struct {
	Topic        string  `json:"topic"`
	MasteryLevel string  `json:"mastery_level"`
	SuccessRate  float64 `json:"success_rate"`
	Attempts     int     `json:"attempts"`
}

type SprintInput struct {
	ModuleID string `json:"module_id" jsonschema:"description=Sprint module ID"`
}

type ExerciseOutput struct {
	Exercise *domain.Exercise `json:"exercise"`
	// Remaining counts exercises left before the module completes
	Remaining int `json:"remaining"`
}

type SprintCompleteInput struct {
	ModuleID string `json:"module_id" jsonschema:"description=Sprint module ID"`
	Success  bool   `json:"success" jsonschema:"description=Whether the exercise was solved"`
}

type SprintCompleteOutput struct {
	Status    string   `json:"status"`
	Completed int      `json:"exercises_completed"`
	Target    int      `json:"target"`
	XPAwarded int      `json:"xp_awarded"`
	Unlocked  []string `json:"unlocked,omitempty"`
}

type RecapInput struct {
	Action string `json:"action,omitempty" jsonschema:"description=show (default) or generate or complete,enum=show,enum=generate,enum=complete"`
}

type RecapOutput struct {
	Available      bool             `json:"available"`
	LessonID       string           `json:"lesson_id,omitempty"`
	Summary        string           `json:"summary,omitempty"`
	Exercise       *domain.Exercise `json:"exercise,omitempty"`
	TimesCompleted int              `json:"times_completed"`
	Regenerating   bool             `json:"regenerating"`
	Message        string           `json:"message,omitempty"`
}

// Tool handlers

func (s *Server) handleProgress(ctx context.Context, input ProgressInput) (ProgressOutput, error) {
	st := s.progress.Stats()
	p := s.progress.Progress()
	out := ProgressOutput{
		TotalXP:          st.TotalXP,
		Level:            st.Level,
		XPToNextLevel:    st.XPToNextLevel,
		CurrentStreak:    st.CurrentStreak,
		LongestStreak:    st.LongestStreak,
		LessonsCompleted: p.LessonsCompleted,
	}
	if s.practice != nil {
		out.WeakestTopics = s.practice.Summary().WeakestTopics
	}
	if input.IncludeLessons {
		out.Lessons = s.progress.Lessons()
	}
	return out, nil
}

func (s *Server) handleRun(ctx context.Context, input RunInput) (RunOutput, error) {
	lang := s.progress.Settings().PreferredLanguage
	if input.Language != "" {
		l, err := domain.ParseLanguage(input.Language)
		if err != nil {
			return RunOutput{}, err
		}
		lang = l
	}

	if input.TestCode != "" {
		res, err := s.sandbox.RunWithTests(ctx, input.Code, input.TestCode, lang)
		if err != nil {
			return RunOutput{}, fmt.Errorf("run failed: %w", err)
		}
		out := RunOutput{Success: res.Passed, Error: res.Error, Summary: "Tests: ✓"}
		if !res.Passed {
			out.Summary = "Tests: ✗"
		}
		return out, nil
	}

	res, err := s.sandbox.Run(ctx, input.Code, lang)
	if err != nil {
		return RunOutput{}, fmt.Errorf("run failed: %w", err)
	}
	out := RunOutput{Success: res.Success, Logs: res.Logs, Error: res.Error}
	switch {
	case res.TypeErrors != "":
		out.Error = res.TypeErrors
		out.Summary = "Types: ✗"
	case res.Success:
		out.Summary = "Run: ✓"
	default:
		out.Summary = "Run: ✗"
	}
	return out, nil
}

func (s *Server) handlePracticeComplete(ctx context.Context, input PracticeInput) (PracticeOutput, error) {
	stats, err := s.practice.CompleteExercise(input.Topic, domain.Difficulty(input.Difficulty), input.Success, input.TimeSeconds)
	if err != nil {
		return PracticeOutput{}, fmt.Errorf("record practice: %w", err)
	}
	s.progress.RecordActivity()

	return PracticeOutput{
		Topic:        stats.Topic,
		MasteryLevel: string(stats.MasteryLevel),
		SuccessRate:  stats.SuccessRate(),
		Attempts:     stats.TotalAttempts,
	}, nil
}

func (s *Server) handleSprintNext(ctx context.Context, input SprintInput) (ExerciseOutput, error) {
	ex, err := s.sprints.NextExercise(ctx, input.ModuleID)
	if err != nil {
		return ExerciseOutput{}, fmt.Errorf("next exercise: %w", err)
	}
	out := ExerciseOutput{Exercise: ex}
	if mv, err := s.sprints.Module(input.ModuleID); err == nil {
		out.Remaining = max(mv.Module.TargetExerciseCount-mv.Progress.ExercisesCompleted, 0)
	}
	return out, nil
}

func (s *Server) handleSprintComplete(ctx context.Context, input SprintCompleteInput) (SprintCompleteOutput, error) {
	res, err := s.sprints.CompleteExercise(input.ModuleID, input.Success)
	if err != nil {
		return SprintCompleteOutput{}, fmt.Errorf("complete exercise: %w", err)
	}
	out := SprintCompleteOutput{
		Status:    string(res.Progress.Status),
		Completed: res.Progress.ExercisesCompleted,
		XPAwarded: res.XPAwarded,
		Unlocked:  res.Unlocked,
	}
	if mv, err := s.sprints.Module(input.ModuleID); err == nil {
		out.Target = mv.Module.TargetExerciseCount
	}
	return out, nil
}

func (s *Server) handleRecap(ctx context.Context, input RecapInput) (RecapOutput, error) {
	var cache *domain.RecapCache
	var err error

	switch input.Action {
	case "", "show":
		cache = s.recap.GetValidCache()
		if cache == nil {
			st := s.recap.State()
			out := RecapOutput{Message: "No recap available. Use action=generate after finishing a lesson."}
			if st.GenerationError != "" {
				out.Message = "Last generation failed: " + st.GenerationError
			}
			return out, nil
		}
	case "generate":
		cache, err = s.recap.Generate(ctx)
	case "complete":
		cache, err = s.recap.CompleteRecap()
	default:
		return RecapOutput{}, fmt.Errorf("%w: unknown action %q", domain.ErrInvalidInput, input.Action)
	}
	if err != nil {
		return RecapOutput{}, fmt.Errorf("recap %s: %w", input.Action, err)
	}

	return RecapOutput{
		Available:      true,
		LessonID:       cache.LessonID,
		Summary:        cache.Summary,
		Exercise:       cache.Exercise,
		TimesCompleted: cache.TimesCompleted,
		Regenerating:   cache.IsRegenerating,
	}, nil
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
