package lesson

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/champ/internal/domain"
	"github.com/felixgeelhaar/champ/internal/runner"
)

// ErrNoMoreHints is returned when every hint of a step has been shown
var ErrNoMoreHints = errors.New("no more hints for this step")

// ProgressRecorder receives the player's state changes
type ProgressRecorder interface {
	StartLesson(lessonID string) domain.LessonProgress
	CompleteStep(lessonID, stepID string, index int) domain.LessonProgress
	RecordAttempt(lessonID string) domain.LessonProgress
	RecordHint(lessonID string) domain.LessonProgress
	CompleteLesson(lessonID string, xpEarned int) bool
}

// View is a snapshot of the player for display
type View struct {
	PlayID         string      `json:"playId"`
	LessonID       string      `json:"lessonId"`
	LessonTitle    string      `json:"lessonTitle"`
	StepIndex      int         `json:"stepIndex"`
	StepCount      int         `json:"stepCount"`
	Step           domain.Step `json:"step"`
	CanProceed     bool        `json:"canProceed"`
	StepsCompleted []string    `json:"stepsCompleted"`
	HintsUsed      int         `json:"hintsUsed"`
	LessonComplete bool        `json:"lessonComplete"`
	XPEarned       int         `json:"xpEarned"`
	// XPAwarded is false when the lesson had been completed before
	XPAwarded bool `json:"xpAwarded"`
}

// Player walks a learner through one lesson:
// viewing-step[i] -> step-complete -> viewing-step[i+1] ... -> lesson-complete.
type Player struct {
	id       string
	lesson   *domain.Lesson
	progress ProgressRecorder
	sandbox  runner.Sandbox

	mu         sync.Mutex
	index      int
	completed  map[string]bool
	hintsUsed  int
	hintsShown map[string]int
	done       bool
	xpEarned   int
	awarded    bool
	lastUsed   time.Time
}

// NewPlayer starts or resumes a lesson
func NewPlayer(lesson *domain.Lesson, progress ProgressRecorder, sandbox runner.Sandbox) *Player {
	p := &Player{
		id:         uuid.NewString(),
		lesson:     lesson,
		progress:   progress,
		sandbox:    sandbox,
		completed:  make(map[string]bool),
		hintsShown: make(map[string]int),
		lastUsed:   time.Now(),
	}

	lp := progress.StartLesson(lesson.ID)
	if !lp.IsCompleted() {
		for _, id := range lp.StepsCompleted {
			p.completed[id] = true
		}
		p.index = min(lp.CurrentStepIndex, len(lesson.Steps)-1)
		p.hintsUsed = lp.HintsUsed
	}
	return p
}

// ID identifies this play session
func (p *Player) ID() string {
	return p.id
}

// Lesson returns the lesson being played
func (p *Player) Lesson() *domain.Lesson {
	return p.lesson
}

// View returns the current state
func (p *Player) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewLocked()
}

func (p *Player) viewLocked() View {
	steps := make([]string, 0, len(p.completed))
	for _, s := range p.lesson.Steps {
		if p.completed[s.ID] {
			steps = append(steps, s.ID)
		}
	}
	return View{
		PlayID:         p.id,
		LessonID:       p.lesson.ID,
		LessonTitle:    p.lesson.Title,
		StepIndex:      p.index,
		StepCount:      len(p.lesson.Steps),
		Step:           p.step(),
		CanProceed:     p.canProceedLocked(),
		StepsCompleted: steps,
		HintsUsed:      p.hintsUsed,
		LessonComplete: p.done,
		XPEarned:       p.xpEarned,
		XPAwarded:      p.awarded,
	}
}

func (p *Player) step() domain.Step {
	return p.lesson.Steps[p.index]
}

// CanProceed reports whether Next is allowed
func (p *Player) CanProceed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canProceedLocked()
}

func (p *Player) canProceedLocked() bool {
	if p.done {
		return false
	}
	s := p.step()
	return s.Type.SelfCompleting() || p.completed[s.ID]
}

// markLocked records the current step as complete
func (p *Player) markLocked() {
	s := p.step()
	if p.completed[s.ID] {
		return
	}
	p.completed[s.ID] = true
	p.progress.CompleteStep(p.lesson.ID, s.ID, p.index)
}

func (p *Player) touch() {
	p.lastUsed = time.Now()
}

// MarkStepComplete completes the current step on the caller's word
func (p *Player) MarkStepComplete() (View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touch()
	if p.done {
		return p.viewLocked(), domain.ErrLessonAlreadyDone
	}
	p.markLocked()
	return p.viewLocked(), nil
}

func (p *Player) requireStep(t domain.StepType) error {
	if p.done {
		return domain.ErrLessonAlreadyDone
	}
	if s := p.step(); s.Type != t {
		return fmt.Errorf("%w: step %s is %s", domain.ErrWrongStepType, s.ID, s.Type)
	}
	return nil
}

// CheckFillBlank checks the blanks of the current step
func (p *Player) CheckFillBlank(answers []string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touch()
	if err := p.requireStep(domain.StepFillBlank); err != nil {
		return false, err
	}

	p.progress.RecordAttempt(p.lesson.ID)
	ok := p.step().CheckBlanks(answers)
	if ok {
		p.markLocked()
	}
	return ok, nil
}

// CheckQuiz checks a quiz choice for the current step
func (p *Player) CheckQuiz(choice int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touch()
	if err := p.requireStep(domain.StepQuiz); err != nil {
		return false, err
	}

	p.progress.RecordAttempt(p.lesson.ID)
	ok := p.step().CheckChoice(choice)
	if ok {
		p.markLocked()
	}
	return ok, nil
}

// SubmitCode runs the learner's code against the current step's tests
func (p *Player) SubmitCode(ctx context.Context, code string) (*runner.TestRunResult, error) {
	p.mu.Lock()
	if err := p.requireStep(domain.StepCode); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.touch()
	step := p.step()
	index := p.index
	p.mu.Unlock()

	p.progress.RecordAttempt(p.lesson.ID)

	// lock is released for the sandbox call
	res, err := p.sandbox.RunWithTests(ctx, code, step.TestCode, p.lesson.Language)
	if err != nil {
		return nil, fmt.Errorf("run tests: %w", err)
	}

	if res.Passed {
		p.mu.Lock()
		if !p.done && p.index == index {
			p.markLocked()
		}
		p.mu.Unlock()
	}
	return res, nil
}

// UseHint reveals the next hint of the current step
func (p *Player) UseHint() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touch()
	if p.done {
		return "", domain.ErrLessonAlreadyDone
	}

	s := p.step()
	shown := p.hintsShown[s.ID]
	if shown >= len(s.Hints) {
		return "", ErrNoMoreHints
	}
	p.hintsShown[s.ID] = shown + 1
	p.hintsUsed++
	p.progress.RecordHint(p.lesson.ID)
	return s.Hints[shown], nil
}

// Next advances to the following step. On the last step it completes the
// lesson and awards round(reward * 1.5) XP when no hints were used.
func (p *Player) Next() (View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touch()

	if p.done {
		return p.viewLocked(), domain.ErrLessonAlreadyDone
	}
	if !p.canProceedLocked() {
		return p.viewLocked(), domain.ErrStepNotProceedable
	}

	// instruction steps complete by being viewed
	p.markLocked()

	if p.index < len(p.lesson.Steps)-1 {
		p.index++
		return p.viewLocked(), nil
	}

	p.done = true
	p.xpEarned = domain.LessonXP(p.lesson.XPReward, p.hintsUsed)
	p.awarded = p.progress.CompleteLesson(p.lesson.ID, p.xpEarned)
	if !p.awarded {
		p.xpEarned = 0
	}
	return p.viewLocked(), nil
}

// GoTo moves to an earlier or already reachable step
func (p *Player) GoTo(index int) (View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.touch()

	if index < 0 || index >= len(p.lesson.Steps) {
		return p.viewLocked(), domain.ErrStepOutOfRange
	}
	// a step is reachable when every step before it is complete
	for _, s := range p.lesson.Steps[:index] {
		if !p.completed[s.ID] && !s.Type.SelfCompleting() {
			return p.viewLocked(), domain.ErrStepNotProceedable
		}
	}
	p.index = index
	return p.viewLocked(), nil
}

func (p *Player) idleSince() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastUsed
}
