package main

import (
	"fmt"

	"github.com/felixgeelhaar/champ/internal/domain"
	"github.com/felixgeelhaar/champ/internal/practice"
	"github.com/felixgeelhaar/champ/internal/progress"
	"github.com/felixgeelhaar/champ/internal/sprint"
)

// cmdStats shows learning statistics
func cmdStats(args []string) error {
	if !isRunning() {
		return fmt.Errorf("daemon not running (run 'champ start' first)")
	}

	subCmd := "overview"
	if len(args) > 0 {
		subCmd = args[0]
	}

	switch subCmd {
	case "overview", "":
		return cmdStatsOverview()
	case "practice":
		return cmdStatsPractice()
	case "sprints":
		return cmdStatsSprints()
	default:
		return fmt.Errorf("unknown stats command: %s (valid: overview, practice, sprints)", subCmd)
	}
}

func cmdStatsOverview() error {
	var resp struct {
		Stats    progress.Stats      `json:"stats"`
		Settings domain.UserSettings `json:"settings"`
	}
	if err := getJSON("/v1/progress", &resp); err != nil {
		return fmt.Errorf("get progress: %w", err)
	}
	st := resp.Stats

	fmt.Println("Learning Statistics")
	fmt.Println("===================")
	fmt.Printf("Level:              %d %s\n", st.Level, renderProgressBar(st.LevelProgress, 20))
	fmt.Printf("Total XP:           %d (%d to next level)\n", st.TotalXP, st.XPToNextLevel)
	fmt.Printf("Current Streak:     %d days\n", st.CurrentStreak)
	fmt.Printf("Longest Streak:     %d days\n", st.LongestStreak)
	fmt.Printf("Lessons Completed:  %d of %d started\n", st.LessonsCompleted, st.LessonsStarted)
	fmt.Printf("Preferred Language: %s\n", resp.Settings.PreferredLanguage)
	if st.TodayActive {
		fmt.Println("\nYou have practiced today ✓")
	} else {
		fmt.Println("\nNo activity yet today. Keep your streak alive!")
	}

	return nil
}

func cmdStatsPractice() error {
	var resp struct {
		Topics  []domain.PracticeStats `json:"topics"`
		Summary practice.Summary       `json:"summary"`
	}
	if err := getJSON("/v1/practice", &resp); err != nil {
		return fmt.Errorf("get practice: %w", err)
	}

	fmt.Println("Practice by Topic")
	fmt.Println("=================")

	if len(resp.Topics) == 0 {
		fmt.Println("No topics practiced yet. Start practicing!")
		return nil
	}

	for _, t := range resp.Topics {
		fmt.Printf("%-20s %s %3.0f%% (%d attempts) %s\n",
			t.Topic, renderProgressBar(t.SuccessRate(), 20), t.SuccessRate()*100, t.TotalAttempts, t.MasteryLevel)
	}

	sum := resp.Summary
	fmt.Printf("\n%d attempts, %d completed (%.0f%%)\n", sum.TotalAttempts, sum.TotalCompleted, sum.SuccessRate*100)
	if len(sum.WeakestTopics) > 0 {
		fmt.Println("\nNeeds Practice")
		fmt.Println("--------------")
		for _, topic := range sum.WeakestTopics {
			fmt.Printf("  - %s\n", topic)
		}
	}

	return nil
}

func cmdStatsSprints() error {
	var resp struct {
		Modules []sprint.ModuleView `json:"modules"`
		TotalXP int                 `json:"totalXP"`
	}
	if err := getJSON("/v1/sprints", &resp); err != nil {
		return fmt.Errorf("get sprints: %w", err)
	}

	fmt.Println("Sprint Modules")
	fmt.Println("==============")
	for _, m := range resp.Modules {
		done := 0.0
		if m.Module.TargetExerciseCount > 0 {
			done = float64(m.Progress.ExercisesCompleted) / float64(m.Module.TargetExerciseCount)
		}
		fmt.Printf("%-24s %s %d/%d %-11s %d XP\n",
			m.Module.Title, renderProgressBar(done, 15),
			m.Progress.ExercisesCompleted, m.Module.TargetExerciseCount,
			m.Progress.Status, m.Progress.XPEarned)
	}
	fmt.Printf("\nSprint XP: %d\n", resp.TotalXP)

	return nil
}
