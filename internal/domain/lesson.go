package domain

import "strings"

// StepType is the kind of content a lesson step presents
type StepType string

const (
	StepInstruction StepType = "instruction"
	StepCode        StepType = "code"
	StepFillBlank   StepType = "fill-blank"
	StepQuiz        StepType = "quiz"
)

// SelfCompleting reports whether viewing the step is enough to proceed
func (t StepType) SelfCompleting() bool {
	return t == StepInstruction
}

// Course groups lessons for one language
type Course struct {
	ID          string   `yaml:"id" json:"id"`
	Title       string   `yaml:"title" json:"title"`
	Description string   `yaml:"description" json:"description"`
	Language    Language `yaml:"language" json:"language"`
	Lessons     []string `yaml:"lessons" json:"lessons"`
}

// Lesson is an ordered list of steps with an XP reward
type Lesson struct {
	ID          string   `yaml:"id" json:"id"`
	CourseID    string   `yaml:"-" json:"courseId"`
	Title       string   `yaml:"title" json:"title"`
	Description string   `yaml:"description" json:"description"`
	Topic       string   `yaml:"topic" json:"topic"`
	Language    Language `yaml:"-" json:"language"`
	XPReward    int      `yaml:"xp_reward" json:"xpReward"`
	Steps       []Step   `yaml:"steps" json:"steps"`
}

// Step is one unit of a lesson
type Step struct {
	ID          string   `yaml:"id" json:"id"`
	Type        StepType `yaml:"type" json:"type"`
	Title       string   `yaml:"title" json:"title"`
	Content     string   `yaml:"content" json:"content"`
	StarterCode string   `yaml:"starter_code,omitempty" json:"starterCode,omitempty"`
	Solution    string   `yaml:"solution,omitempty" json:"-"`
	TestCode    string   `yaml:"test_code,omitempty" json:"-"`
	Blanks      []string `yaml:"blanks,omitempty" json:"-"`
	Options     []string `yaml:"options,omitempty" json:"options,omitempty"`
	Answer      int      `yaml:"answer,omitempty" json:"-"`
	Hints       []string `yaml:"hints,omitempty" json:"-"`
}

// CheckBlanks compares fill-in answers case-sensitively after trimming whitespace
func (s Step) CheckBlanks(answers []string) bool {
	if len(answers) != len(s.Blanks) {
		return false
	}
	for i, want := range s.Blanks {
		if strings.TrimSpace(answers[i]) != strings.TrimSpace(want) {
			return false
		}
	}
	return true
}

// CheckChoice reports whether a quiz choice is correct
func (s Step) CheckChoice(choice int) bool {
	return choice >= 0 && choice < len(s.Options) && choice == s.Answer
}

// LessonXP applies the no-hint bonus to a lesson's reward
func LessonXP(reward, hintsUsed int) int {
	if hintsUsed == 0 {
		return roundHalfUp(float64(reward) * 1.5)
	}
	return reward
}

func roundHalfUp(f float64) int {
	return int(f + 0.5)
}
