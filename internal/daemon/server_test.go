package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/felixgeelhaar/champ/internal/app"
	"github.com/felixgeelhaar/champ/internal/config"
	"github.com/felixgeelhaar/champ/internal/domain"
	"github.com/felixgeelhaar/champ/internal/lesson"
	"github.com/felixgeelhaar/champ/internal/runner"
)

// fakeSandbox passes any test run whose code uses reduce
type fakeSandbox struct{}

func (fakeSandbox) Run(_ context.Context, code string, _ domain.Language) (*runner.RunResult, error) {
	if code == "" {
		return nil, runner.ErrEmptyCode
	}
	return &runner.RunResult{Success: true, Logs: []string{code}}, nil
}

func (fakeSandbox) RunWithTests(_ context.Context, code, _ string, _ domain.Language) (*runner.TestRunResult, error) {
	if strings.Contains(code, "reduce") {
		return &runner.TestRunResult{Passed: true}, nil
	}
	return &runner.TestRunResult{Error: "Error: total([1, 2, 3]) should be 6"}, nil
}

// setupTestServer creates a server over a file-backed app in a temp dir
func setupTestServer(t *testing.T) (*Server, *app.App) {
	t.Helper()

	cfg := config.DefaultLocalConfig()
	cfg.Storage.Backend = "file"
	cfg.Generator.Mode = "off"
	cfg.Daemon.Port = 0

	a, err := app.New(context.Background(), app.Options{
		Config:   cfg,
		ChampDir: t.TempDir(),
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })

	a.Sandbox = fakeSandbox{}
	a.Lessons = lesson.NewService(a.Catalog, a.Progress, a.Sandbox, discardLogger())

	s := NewServer(ServerConfig{App: a, Logger: discardLogger(), Version: "test"})
	t.Cleanup(func() { s.expensive.Close() })
	return s, a
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, want, rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := setupTestServer(t)
	rec := do(t, s, http.MethodGet, "/v1/health", nil)
	expectStatus(t, rec, http.StatusOK)

	body := decodeBody[map[string]any](t, rec)
	if body["status"] != "healthy" {
		t.Errorf("status = %v", body["status"])
	}
	if rec.Header().Get(CorrelationIDHeader) == "" {
		t.Error("missing correlation ID")
	}
}

func TestStatusEndpoint(t *testing.T) {
	s, _ := setupTestServer(t)
	rec := do(t, s, http.MethodGet, "/v1/status", nil)
	expectStatus(t, rec, http.StatusOK)

	body := decodeBody[map[string]any](t, rec)
	if body["version"] != "test" || body["storage"] != "file" || body["user_id"] != "local" {
		t.Errorf("status body = %v", body)
	}
	if _, ok := body["sync"]; ok {
		t.Error("sync stats should be absent without remote targets")
	}
}

func TestErrorShape(t *testing.T) {
	s, _ := setupTestServer(t)
	rec := do(t, s, http.MethodGet, "/v1/lessons/nope", nil)
	expectStatus(t, rec, http.StatusNotFound)

	body := decodeBody[map[string]any](t, rec)
	if body["error"] == "" || body["status"] != float64(http.StatusNotFound) || body["details"] == nil {
		t.Errorf("error body = %v", body)
	}
}

func TestInvalidJSON(t *testing.T) {
	s, _ := setupTestServer(t)
	rec := do(t, s, http.MethodPost, "/v1/progress/xp", "{not json")
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestProgressEndpoints(t *testing.T) {
	s, a := setupTestServer(t)

	expectStatus(t, do(t, s, http.MethodPost, "/v1/progress/xp", map[string]int{"amount": 0}), http.StatusBadRequest)

	rec := do(t, s, http.MethodPost, "/v1/progress/xp", map[string]int{"amount": 120})
	expectStatus(t, rec, http.StatusOK)
	p := decodeBody[domain.UserProgress](t, rec)
	if p.TotalXP != 120 || p.Level != 2 {
		t.Errorf("progress = %+v", p)
	}

	rec = do(t, s, http.MethodGet, "/v1/progress", nil)
	expectStatus(t, rec, http.StatusOK)
	body := decodeBody[map[string]json.RawMessage](t, rec)
	for _, key := range []string{"progress", "stats", "settings"} {
		if _, ok := body[key]; !ok {
			t.Errorf("missing %s", key)
		}
	}

	rec = do(t, s, http.MethodPost, "/v1/progress/reset", nil)
	expectStatus(t, rec, http.StatusOK)
	if a.Progress.Progress().TotalXP != 0 {
		t.Error("reset should clear XP")
	}
}

func TestSettingsEndpoint(t *testing.T) {
	s, a := setupTestServer(t)

	rec := do(t, s, http.MethodPut, "/v1/settings", map[string]any{"preferredLanguage": "py", "dailyGoalXP": 80})
	expectStatus(t, rec, http.StatusOK)
	got := a.Progress.Settings()
	if got.PreferredLanguage != domain.LanguagePython || got.DailyGoalXP != 80 {
		t.Errorf("settings = %+v", got)
	}
	if !got.SoundEnabled {
		t.Error("fields absent from the body should be kept")
	}

	expectStatus(t, do(t, s, http.MethodPut, "/v1/settings", map[string]any{"preferredLanguage": "cobol"}), http.StatusBadRequest)
	expectStatus(t, do(t, s, http.MethodPut, "/v1/settings", map[string]any{"dailyGoalXP": -1}), http.StatusBadRequest)
}

func TestCoursesAndLessons(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := do(t, s, http.MethodGet, "/v1/courses", nil)
	expectStatus(t, rec, http.StatusOK)
	body := decodeBody[struct {
		Courses []courseView `json:"courses"`
	}](t, rec)
	if len(body.Courses) < 2 {
		t.Errorf("courses = %d", len(body.Courses))
	}

	rec = do(t, s, http.MethodGet, "/v1/lessons/ts-variables", nil)
	expectStatus(t, rec, http.StatusOK)
	lessonBody := decodeBody[struct {
		Lesson domain.Lesson `json:"lesson"`
	}](t, rec)
	if lessonBody.Lesson.ID != "ts-variables" || len(lessonBody.Lesson.Steps) != 4 {
		t.Errorf("lesson = %+v", lessonBody.Lesson)
	}
}

func TestLessonPlayFlow(t *testing.T) {
	s, a := setupTestServer(t)

	rec := do(t, s, http.MethodPost, "/v1/lessons/ts-variables/play", nil)
	expectStatus(t, rec, http.StatusCreated)
	view := decodeBody[lesson.View](t, rec)
	base := "/v1/plays/" + view.PlayID

	// answers only apply to their own step type
	expectStatus(t, do(t, s, http.MethodPost, base+"/answer", map[string]int{"choice": 1}), http.StatusConflict)
	expectStatus(t, do(t, s, http.MethodPost, base+"/next", nil), http.StatusOK)

	// quiz step cannot be skipped
	expectStatus(t, do(t, s, http.MethodPost, base+"/next", nil), http.StatusConflict)
	expectStatus(t, do(t, s, http.MethodPost, base+"/answer", nil), http.StatusBadRequest)

	rec = do(t, s, http.MethodPost, base+"/answer", map[string]int{"choice": 0})
	expectStatus(t, rec, http.StatusOK)
	if ans := decodeBody[map[string]any](t, rec); ans["correct"] != false {
		t.Errorf("wrong choice reported %v", ans["correct"])
	}
	expectStatus(t, do(t, s, http.MethodPost, base+"/answer", map[string]int{"choice": 1}), http.StatusOK)
	expectStatus(t, do(t, s, http.MethodPost, base+"/next", nil), http.StatusOK)

	expectStatus(t, do(t, s, http.MethodPost, base+"/answer", map[string][]string{"blanks": {"string", "number"}}), http.StatusOK)
	expectStatus(t, do(t, s, http.MethodPost, base+"/next", nil), http.StatusOK)

	rec = do(t, s, http.MethodPost, base+"/submit", map[string]string{"code": "return 0"})
	expectStatus(t, rec, http.StatusOK)
	sub := decodeBody[struct {
		Result runner.TestRunResult `json:"result"`
		Play   lesson.View          `json:"play"`
	}](t, rec)
	if sub.Result.Passed || sub.Play.CanProceed {
		t.Errorf("failing code should not complete the step: %+v", sub)
	}

	expectStatus(t, do(t, s, http.MethodPost, base+"/submit", map[string]string{"code": "return prices.reduce((a, b) => a + b, 0)"}), http.StatusOK)

	rec = do(t, s, http.MethodPost, base+"/next", nil)
	expectStatus(t, rec, http.StatusOK)
	done := decodeBody[lesson.View](t, rec)
	if !done.LessonComplete || done.XPEarned != 30 {
		t.Errorf("final view = %+v", done)
	}
	if got := a.Progress.Progress().TotalXP; got != 30 {
		t.Errorf("TotalXP = %d, want 30", got)
	}

	// completed plays are closed
	expectStatus(t, do(t, s, http.MethodGet, base, nil), http.StatusNotFound)
}

func TestLessonHints(t *testing.T) {
	s, a := setupTestServer(t)

	rec := do(t, s, http.MethodPost, "/v1/lessons/ts-variables/play", nil)
	view := decodeBody[lesson.View](t, rec)
	base := "/v1/plays/" + view.PlayID

	// the intro has no hints
	expectStatus(t, do(t, s, http.MethodPost, base+"/hint", nil), http.StatusConflict)

	do(t, s, http.MethodPost, base+"/next", nil)
	rec = do(t, s, http.MethodPost, base+"/hint", nil)
	expectStatus(t, rec, http.StatusOK)
	if hint := decodeBody[map[string]any](t, rec); hint["hint"] == "" {
		t.Error("expected hint text")
	}
	if lp, _ := a.Progress.Lesson("ts-variables"); lp.HintsUsed != 1 {
		t.Errorf("HintsUsed = %d", lp.HintsUsed)
	}
}

func TestLessonGoTo(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := do(t, s, http.MethodPost, "/v1/lessons/ts-variables/play", nil)
	view := decodeBody[lesson.View](t, rec)
	base := "/v1/plays/" + view.PlayID
	expectStatus(t, do(t, s, http.MethodPost, base+"/next", nil), http.StatusOK)

	// the quiz is still open, so later steps are unreachable
	expectStatus(t, do(t, s, http.MethodPost, base+"/goto", map[string]int{"step": 3}), http.StatusConflict)
	expectStatus(t, do(t, s, http.MethodPost, base+"/goto", map[string]int{"step": 9}), http.StatusBadRequest)
	expectStatus(t, do(t, s, http.MethodPost, base+"/goto", map[string]any{}), http.StatusBadRequest)

	rec = do(t, s, http.MethodPost, base+"/goto", map[string]int{"step": 0})
	expectStatus(t, rec, http.StatusOK)
	if got := decodeBody[lesson.View](t, rec); got.StepIndex != 0 {
		t.Errorf("StepIndex = %d, want 0", got.StepIndex)
	}

	rec = do(t, s, http.MethodPost, base+"/goto", map[string]int{"step": 1})
	expectStatus(t, rec, http.StatusOK)
	if got := decodeBody[lesson.View](t, rec); got.StepIndex != 1 || got.Step.Type != domain.StepQuiz {
		t.Errorf("view = %+v", got)
	}

	expectStatus(t, do(t, s, http.MethodPost, "/v1/plays/missing/goto", map[string]int{"step": 0}), http.StatusNotFound)
}

func TestPlayNotFound(t *testing.T) {
	s, _ := setupTestServer(t)
	expectStatus(t, do(t, s, http.MethodGet, "/v1/plays/missing", nil), http.StatusNotFound)
	expectStatus(t, do(t, s, http.MethodPost, "/v1/lessons/missing/play", nil), http.StatusNotFound)
}

func TestRunEndpoints(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := do(t, s, http.MethodPost, "/v1/run", map[string]string{"code": "console.log(1)", "language": "ts"})
	expectStatus(t, rec, http.StatusOK)
	if res := decodeBody[runner.RunResult](t, rec); !res.Success {
		t.Errorf("result = %+v", res)
	}

	expectStatus(t, do(t, s, http.MethodPost, "/v1/run", map[string]string{"code": ""}), http.StatusBadRequest)
	expectStatus(t, do(t, s, http.MethodPost, "/v1/run", map[string]string{"code": "x", "language": "rust"}), http.StatusBadRequest)
	expectStatus(t, do(t, s, http.MethodPost, "/v1/run/tests", map[string]string{"code": "x"}), http.StatusBadRequest)

	rec = do(t, s, http.MethodPost, "/v1/run/tests", map[string]string{"code": "x.reduce()", "testCode": "assert()"})
	expectStatus(t, rec, http.StatusOK)
	if res := decodeBody[runner.TestRunResult](t, rec); !res.Passed {
		t.Errorf("result = %+v", res)
	}
}

func TestPracticeEndpoints(t *testing.T) {
	s, a := setupTestServer(t)

	body := map[string]any{"topic": "loops", "difficulty": "easy", "success": true, "timeSeconds": 30}
	rec := do(t, s, http.MethodPost, "/v1/practice/complete", body)
	expectStatus(t, rec, http.StatusOK)
	stats := decodeBody[domain.PracticeStats](t, rec)
	if stats.TotalAttempts != 1 || stats.TotalCompleted != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if a.Progress.Progress().CurrentStreak != 1 {
		t.Error("practice should count toward the streak")
	}

	expectStatus(t, do(t, s, http.MethodPost, "/v1/practice/complete", map[string]any{"topic": "", "difficulty": "easy"}), http.StatusBadRequest)
	expectStatus(t, do(t, s, http.MethodPost, "/v1/practice/complete", map[string]any{"topic": "x", "difficulty": "extreme"}), http.StatusBadRequest)

	rec = do(t, s, http.MethodGet, "/v1/practice", nil)
	expectStatus(t, rec, http.StatusOK)
	got := decodeBody[struct {
		Topics []domain.PracticeStats `json:"topics"`
	}](t, rec)
	if len(got.Topics) != 1 || got.Topics[0].Topic != "loops" {
		t.Errorf("topics = %+v", got.Topics)
	}
}

func TestPracticeGenerateUnavailable(t *testing.T) {
	s, a := setupTestServer(t)

	expectStatus(t, do(t, s, http.MethodPost, "/v1/practice/generate", map[string]string{}), http.StatusBadRequest)
	expectStatus(t, do(t, s, http.MethodPost, "/v1/practice/generate", map[string]string{"topic": "loops"}), http.StatusBadGateway)
	if a.Practice.State().GenerationError == "" {
		t.Error("generation error should be recorded")
	}
}

func TestPracticeDifficultyCase(t *testing.T) {
	s, a := setupTestServer(t)

	body := map[string]any{"topic": "loops", "difficulty": "Hard", "success": true, "timeSeconds": 20}
	expectStatus(t, do(t, s, http.MethodPost, "/v1/practice/complete", body), http.StatusOK)

	stats, ok := a.Practice.Stats("loops")
	if !ok {
		t.Fatal("stats not recorded")
	}
	if stats.ByDifficulty[domain.DifficultyHard].Completed != 1 || len(stats.ByDifficulty) != len(domain.Difficulties) {
		t.Errorf("buckets = %+v, want the attempt under hard", stats.ByDifficulty)
	}
}

func TestPracticeClearError(t *testing.T) {
	s, a := setupTestServer(t)

	expectStatus(t, do(t, s, http.MethodPost, "/v1/practice/generate", map[string]string{"topic": "loops"}), http.StatusBadGateway)

	rec := do(t, s, http.MethodDelete, "/v1/practice/error", nil)
	expectStatus(t, rec, http.StatusOK)
	if st := decodeBody[map[string]any](t, rec); st["generationError"] != nil {
		t.Errorf("generationError = %v after clearing", st["generationError"])
	}
	if a.Practice.State().GenerationError != "" {
		t.Error("generation error should be cleared")
	}
}

func TestSprintEndpoints(t *testing.T) {
	s, a := setupTestServer(t)

	rec := do(t, s, http.MethodGet, "/v1/sprints", nil)
	expectStatus(t, rec, http.StatusOK)
	list := decodeBody[struct {
		Modules []map[string]any `json:"modules"`
	}](t, rec)
	if len(list.Modules) != len(a.Modules) {
		t.Errorf("modules = %d, want %d", len(list.Modules), len(a.Modules))
	}

	expectStatus(t, do(t, s, http.MethodPost, "/v1/sprints/ts-functions/start", nil), http.StatusConflict)
	expectStatus(t, do(t, s, http.MethodPost, "/v1/sprints/nope/start", nil), http.StatusNotFound)
	expectStatus(t, do(t, s, http.MethodPost, "/v1/sprints/ts-warmup/start", nil), http.StatusOK)

	rec = do(t, s, http.MethodPost, "/v1/sprints/ts-warmup/complete", map[string]bool{"success": true})
	expectStatus(t, rec, http.StatusOK)
	res := decodeBody[map[string]any](t, rec)
	if res["xpAwarded"] != float64(10) {
		t.Errorf("xpAwarded = %v", res["xpAwarded"])
	}

	expectStatus(t, do(t, s, http.MethodPost, "/v1/sprints/ts-warmup/next", nil), http.StatusBadGateway)
	expectStatus(t, do(t, s, http.MethodPost, "/v1/sprints/ts-generics/next", nil), http.StatusConflict)
}

func TestRecapEndpoints(t *testing.T) {
	s, a := setupTestServer(t)

	rec := do(t, s, http.MethodGet, "/v1/recap", nil)
	expectStatus(t, rec, http.StatusOK)
	if body := decodeBody[map[string]any](t, rec); body["recap"] != nil {
		t.Errorf("recap = %v, want null", body["recap"])
	}

	expectStatus(t, do(t, s, http.MethodPost, "/v1/recap/complete", nil), http.StatusNotFound)
	expectStatus(t, do(t, s, http.MethodPost, "/v1/recap/generate", nil), http.StatusConflict)
	expectStatus(t, do(t, s, http.MethodPost, "/v1/recap/generate", map[string]string{"lessonId": "ts-variables"}), http.StatusConflict)

	a.Progress.CompleteLesson("ts-variables", 30)
	expectStatus(t, do(t, s, http.MethodPost, "/v1/recap/generate", nil), http.StatusBadGateway)
	expectStatus(t, do(t, s, http.MethodPost, "/v1/recap/generate", map[string]string{"lessonId": "ts-variables"}), http.StatusBadGateway)
}

func TestRecapClearError(t *testing.T) {
	s, a := setupTestServer(t)

	a.Progress.CompleteLesson("ts-variables", 30)
	expectStatus(t, do(t, s, http.MethodPost, "/v1/recap/generate", nil), http.StatusBadGateway)
	if a.Recap.State().GenerationError == "" {
		t.Fatal("generation error should be recorded")
	}

	rec := do(t, s, http.MethodDelete, "/v1/recap/error", nil)
	expectStatus(t, rec, http.StatusOK)
	if st := decodeBody[map[string]any](t, rec); st["generationError"] != nil {
		t.Errorf("generationError = %v after clearing", st["generationError"])
	}
	if a.Recap.State().GenerationError != "" {
		t.Error("generation error should be cleared")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrLessonNotFound, http.StatusNotFound},
		{domain.ErrNoRecap, http.StatusNotFound},
		{domain.ErrModuleLocked, http.StatusConflict},
		{lesson.ErrNoMoreHints, http.StatusConflict},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{runner.ErrUnsupportedLanguage, http.StatusBadRequest},
		{domain.ErrGenerationFailed, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestServer_RateLimitsExpensiveRoutes(t *testing.T) {
	_, a := setupTestServer(t)
	limitedServer := NewServer(ServerConfig{App: a, Logger: discardLogger(), ExpensivePerMinute: 2})
	t.Cleanup(func() { limitedServer.expensive.Close() })

	body := map[string]string{"code": "console.log(1)", "language": "typescript"}
	for i := range 2 {
		if rec := do(t, limitedServer, http.MethodPost, "/v1/run", body); rec.Code != http.StatusOK {
			t.Fatalf("run %d status = %d, body %s", i, rec.Code, rec.Body.String())
		}
	}

	rec := do(t, limitedServer, http.MethodPost, "/v1/run", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third run status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	// other routes have their own budget
	tests := map[string]string{"code": "x.reduce()", "testCode": "t", "language": "typescript"}
	if rec := do(t, limitedServer, http.MethodPost, "/v1/run/tests", tests); rec.Code != http.StatusOK {
		t.Errorf("run/tests status = %d", rec.Code)
	}
	if rec := do(t, limitedServer, http.MethodGet, "/v1/progress", nil); rec.Code != http.StatusOK {
		t.Errorf("progress status = %d", rec.Code)
	}
}
