package progress

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/champ/internal/domain"
	"github.com/felixgeelhaar/champ/internal/storage"
	"github.com/felixgeelhaar/champ/internal/storage/local"
)

// recordingPort captures sync calls
type recordingPort struct {
	mu       sync.Mutex
	progress []domain.UserProgress
	lessons  []domain.LessonProgress
	settings []domain.UserSettings
}

func (r *recordingPort) SyncUserProgress(p domain.UserProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recordingPort) SyncLessonProgress(p domain.LessonProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lessons = append(r.lessons, p)
}

func (r *recordingPort) SyncUserSettings(_ string, s domain.UserSettings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = append(r.settings, s)
}

func (r *recordingPort) SyncPracticeStats(string, domain.PracticeStats) {}
func (r *recordingPort) SyncSprintProgress(string, string, domain.SprintProgress) {}

// clock is a settable time source
type clock struct {
	t time.Time
}

func (c *clock) Now() time.Time { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T) (*Service, *local.Store, *recordingPort, *clock) {
	t.Helper()
	store, err := local.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	port := &recordingPort{}
	clk := &clock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc := NewService(store, port, Config{UserID: "user-1", Now: clk.Now})
	return svc, store, port, clk
}

func TestService_NewUser(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	p := svc.Progress()
	if p.UserID != "user-1" || p.Level != 1 || p.TotalXP != 0 {
		t.Errorf("Progress() = %+v", p)
	}
	if svc.Settings() != domain.DefaultUserSettings() {
		t.Errorf("Settings() = %+v", svc.Settings())
	}
}

func TestService_AddXP(t *testing.T) {
	svc, _, port, _ := newTestService(t)

	tests := []struct {
		amount    int
		wantXP    int
		wantLevel int
	}{
		{99, 99, 1},
		{1, 100, 2},
		{-50, 100, 2},
		{0, 100, 2},
		{4500, 4600, 10},
		{1000000, 1004600, 10},
	}
	for _, tt := range tests {
		p := svc.AddXP(tt.amount)
		if p.TotalXP != tt.wantXP || p.Level != tt.wantLevel {
			t.Errorf("AddXP(%d) = xp %d level %d, want %d / %d", tt.amount, p.TotalXP, p.Level, tt.wantXP, tt.wantLevel)
		}
	}
	if len(port.progress) != 4 {
		t.Errorf("synced %d times, want 4 (ignored amounts do not sync)", len(port.progress))
	}
}

func TestService_CompleteLesson_Idempotent(t *testing.T) {
	svc, _, port, _ := newTestService(t)

	if !svc.CompleteLesson("ts-basics-1", 15) {
		t.Fatal("first CompleteLesson() = false")
	}
	if svc.CompleteLesson("ts-basics-1", 15) {
		t.Error("second CompleteLesson() = true")
	}

	p := svc.Progress()
	if p.TotalXP != 15 {
		t.Errorf("TotalXP = %d, want 15", p.TotalXP)
	}
	if len(p.LessonsCompleted) != 1 {
		t.Errorf("LessonsCompleted = %v", p.LessonsCompleted)
	}

	lp, ok := svc.Lesson("ts-basics-1")
	if !ok || !lp.IsCompleted() || lp.CompletedAt == nil || lp.XPEarned != 15 {
		t.Errorf("Lesson() = %+v, %v", lp, ok)
	}
	if len(port.progress) != 1 || len(port.lessons) != 1 {
		t.Errorf("sync calls = %d progress, %d lessons", len(port.progress), len(port.lessons))
	}
}

func TestService_Streak(t *testing.T) {
	svc, _, _, clk := newTestService(t)

	svc.CompleteLesson("l1", 10)
	if p := svc.Progress(); p.CurrentStreak != 1 || p.LastActivityDate != "2026-03-10" {
		t.Fatalf("day 1: %+v", p)
	}

	// same day keeps the streak
	clk.Advance(3 * time.Hour)
	svc.CompleteLesson("l2", 10)
	if p := svc.Progress(); p.CurrentStreak != 1 {
		t.Errorf("same day streak = %d, want 1", p.CurrentStreak)
	}

	for day, id := range []string{"l3", "l4", "l5"} {
		clk.Advance(24 * time.Hour)
		svc.CompleteLesson(id, 10)
		if p := svc.Progress(); p.CurrentStreak != day+2 {
			t.Errorf("consecutive day %d streak = %d, want %d", day+2, p.CurrentStreak, day+2)
		}
	}

	clk.Advance(48 * time.Hour)
	svc.CompleteLesson("l6", 10)
	p := svc.Progress()
	if p.CurrentStreak != 1 {
		t.Errorf("after gap streak = %d, want 1", p.CurrentStreak)
	}
	if p.LongestStreak != 4 {
		t.Errorf("LongestStreak = %d, want 4", p.LongestStreak)
	}
}

func TestService_RecordActivity(t *testing.T) {
	svc, _, port, clk := newTestService(t)

	svc.RecordActivity()
	svc.RecordActivity()
	if len(port.progress) != 1 {
		t.Errorf("repeat activity on the same day synced %d times", len(port.progress))
	}

	clk.Advance(24 * time.Hour)
	p := svc.AwardActivity(10)
	if p.CurrentStreak != 2 || p.TotalXP != 10 {
		t.Errorf("AwardActivity() = %+v", p)
	}
}

func TestService_LessonTracking(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	lp := svc.StartLesson("py-loops")
	if lp.Status != domain.LessonInProgress || !lp.StartedAt.Equal(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("StartLesson() = %+v", lp)
	}

	svc.CompleteStep("py-loops", "intro", 0)
	svc.CompleteStep("py-loops", "intro", 0)
	svc.RecordAttempt("py-loops")
	svc.RecordAttempt("py-loops")
	lp = svc.RecordHint("py-loops")

	if len(lp.StepsCompleted) != 1 || lp.CurrentStepIndex != 1 {
		t.Errorf("steps = %v, index %d", lp.StepsCompleted, lp.CurrentStepIndex)
	}
	if lp.Attempts != 2 || lp.HintsUsed != 1 {
		t.Errorf("attempts = %d, hints = %d", lp.Attempts, lp.HintsUsed)
	}
	if lp.ChallengeScore() != 25 {
		t.Errorf("ChallengeScore() = %d, want 25", lp.ChallengeScore())
	}

	svc.CompleteLesson("py-loops", 20)
	lp = svc.RecordHint("py-loops")
	if lp.HintsUsed != 1 {
		t.Error("completed lessons should not change")
	}
}

func TestService_TopUpLessonXP(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	svc.CompleteLesson("l1", 20)

	p := svc.TopUpLessonXP("l1", 15)
	if p.TotalXP != 35 {
		t.Errorf("TotalXP = %d, want 35", p.TotalXP)
	}
	lp, _ := svc.Lesson("l1")
	if lp.XPEarned != 35 {
		t.Errorf("lesson XPEarned = %d, want 35", lp.XPEarned)
	}

	// unknown lessons still award XP
	if p := svc.TopUpLessonXP("missing", 5); p.TotalXP != 40 {
		t.Errorf("TotalXP = %d, want 40", p.TotalXP)
	}
}

func TestService_RecentCompletions(t *testing.T) {
	svc, _, _, clk := newTestService(t)

	svc.CompleteLesson("old", 10)
	clk.Advance(8 * 24 * time.Hour)
	svc.CompleteLesson("recent", 10)
	clk.Advance(time.Hour)
	svc.CompleteLesson("newest", 10)
	svc.StartLesson("unfinished")

	got := svc.RecentCompletions(domain.RecapWindow)
	if len(got) != 2 || got[0].LessonID != "newest" || got[1].LessonID != "recent" {
		t.Errorf("RecentCompletions() = %+v", got)
	}
}

func TestService_Persistence(t *testing.T) {
	svc, store, _, clk := newTestService(t)

	svc.CompleteLesson("l1", 120)
	svc.UpdateSettings(domain.UserSettings{PreferredLanguage: domain.LanguagePython, DailyGoalXP: 30})

	restored := NewService(store, nil, Config{UserID: "user-1", Now: clk.Now})
	p := restored.Progress()
	if p.TotalXP != 120 || p.Level != 2 || !p.HasCompleted("l1") {
		t.Errorf("restored progress = %+v", p)
	}
	if restored.Settings().PreferredLanguage != domain.LanguagePython {
		t.Errorf("restored settings = %+v", restored.Settings())
	}
	if _, ok := restored.Lesson("l1"); !ok {
		t.Error("lesson progress not restored")
	}
}

func TestService_LoadRecomputesDerivedFields(t *testing.T) {
	store, err := local.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	stale := Snapshot{Progress: domain.UserProgress{TotalXP: 600, Level: 1, CurrentStreak: 5, LongestStreak: 2}}
	if err := store.Save(storage.SlotProgress, "u", stale); err != nil {
		t.Fatal(err)
	}

	svc := NewService(store, nil, Config{UserID: "u"})
	p := svc.Progress()
	if p.Level != 4 {
		t.Errorf("Level = %d, want 4", p.Level)
	}
	if p.LongestStreak != 5 {
		t.Errorf("LongestStreak = %d, want 5", p.LongestStreak)
	}
	if p.UserID != "u" || p.LessonsCompleted == nil {
		t.Errorf("progress = %+v", p)
	}
}

func TestService_UpdateSettings(t *testing.T) {
	svc, _, port, _ := newTestService(t)

	got, err := svc.UpdateSettings(domain.UserSettings{PreferredLanguage: "py", DailyGoalXP: 20})
	if err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}
	if got.Theme != "system" {
		t.Errorf("Theme = %q, want system default", got.Theme)
	}
	if len(port.settings) != 1 {
		t.Errorf("settings synced %d times", len(port.settings))
	}

	if _, err := svc.UpdateSettings(domain.UserSettings{PreferredLanguage: "rust"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.UpdateSettings(domain.UserSettings{DailyGoalXP: -1}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestService_Reset(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	svc.CompleteLesson("l1", 500)
	svc.UpdateSettings(domain.UserSettings{PreferredLanguage: domain.LanguagePython})

	p := svc.Reset()
	if p.TotalXP != 0 || p.Level != 1 || len(p.LessonsCompleted) != 0 || p.CurrentStreak != 0 {
		t.Errorf("Reset() = %+v", p)
	}
	if len(svc.Lessons()) != 0 {
		t.Error("lesson history should be cleared")
	}
	if svc.Settings().PreferredLanguage != domain.LanguagePython {
		t.Error("settings should survive reset")
	}
	if !svc.CompleteLesson("l1", 10) {
		t.Error("lesson should be completable again after reset")
	}
}

func TestService_Stats(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	svc.CompleteLesson("l1", 175)

	st := svc.Stats()
	if st.Level != 2 || st.XPToNextLevel != 75 || st.LevelProgress != 0.5 {
		t.Errorf("Stats() = %+v", st)
	}
	if !st.TodayActive || st.LessonsCompleted != 1 {
		t.Errorf("Stats() = %+v", st)
	}

	svc.AddXP(10000)
	if st := svc.Stats(); st.LevelProgress != 1 || st.XPToNextLevel != 0 {
		t.Errorf("capped Stats() = %+v", st)
	}
}

func TestService_ConcurrentUpdates(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.AddXP(2)
		}()
	}
	wg.Wait()

	if p := svc.Progress(); p.TotalXP != 100 || p.Level != 2 {
		t.Errorf("Progress() = %+v", p)
	}
}
