package generator

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/champ/internal/domain"
)

const systemPrompt = `You write short, self-contained programming exercises for learners.
Every exercise must be solvable in a few minutes and must not depend on external packages.
Reply with one JSON object using exactly these keys:
  "title", "description", "type", "starterCode", "solution", "testCode", "hints", "options", "answer".
"testCode" must contain assertions that pass against "solution" when appended to it.
For "quiz" exercises fill "options" and set "answer" to the correct option text.
For "fill-blank" exercises mark each blank in "starterCode" with ___ and set "answer" to the blanks joined by "|".`

func languageName(l domain.Language) string {
	switch l {
	case domain.LanguagePython:
		return "Python"
	default:
		return "TypeScript"
	}
}

func exercisePrompt(req ExerciseRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write one %s %s exercise about %q at %s difficulty.\n",
		languageName(req.Language), req.ExerciseType, req.Topic, req.Difficulty)
	if req.SprintMode {
		b.WriteString("This is a timed sprint: keep it solvable in under two minutes.\n")
	}
	return b.String()
}

func recapPrompt(req RecapRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The learner recently completed the lesson %q on %q in %s and found it challenging (score %d).\n",
		req.LessonTitle, req.Topic, languageName(req.Language), req.ChallengeScore)
	if req.Summary != "" {
		fmt.Fprintf(&b, "Lesson summary:\n%s\n", req.Summary)
	}
	fmt.Fprintf(&b, "Write one %s code exercise at %s difficulty that revisits the same concepts from a new angle.\n",
		languageName(req.Language), req.Difficulty)
	return b.String()
}
