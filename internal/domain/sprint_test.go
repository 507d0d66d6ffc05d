package domain

import (
	"slices"
	"testing"
	"time"
)

func testModules() []Module {
	return []Module{
		{ID: "m1", Order: 1, TargetExerciseCount: 2},
		{ID: "m2", Order: 2, UnlockThresholdXP: 100, TargetExerciseCount: 3},
		{ID: "m3", Order: 3, UnlockThresholdXP: 120, TargetExerciseCount: 3},
		{ID: "m4", Order: 4, UnlockThresholdXP: 500, TargetExerciseCount: 3},
	}
}

func testProgress(modules []Module) map[string]*SprintProgress {
	progress := make(map[string]*SprintProgress)
	for _, m := range modules {
		progress[m.ID] = NewSprintProgress(m)
	}
	return progress
}

func TestNewSprintProgress(t *testing.T) {
	modules := testModules()
	if s := NewSprintProgress(modules[0]).Status; s != SprintUnlocked {
		t.Errorf("first module status = %q, want unlocked", s)
	}
	if s := NewSprintProgress(modules[1]).Status; s != SprintLocked {
		t.Errorf("second module status = %q, want locked", s)
	}
}

func TestSprintStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to SprintStatus
		want     bool
	}{
		{SprintLocked, SprintUnlocked, true},
		{SprintLocked, SprintInProgress, true},
		{SprintUnlocked, SprintInProgress, true},
		{SprintInProgress, SprintCompleted, true},
		{SprintInProgress, SprintUnlocked, false},
		{SprintCompleted, SprintInProgress, false},
		{SprintInProgress, SprintInProgress, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestUnlockEligible_Threshold(t *testing.T) {
	modules := testModules()
	progress := testProgress(modules)

	progress["m1"].XPEarned = 99
	if got := UnlockEligible(modules, progress); len(got) != 0 {
		t.Errorf("unlocked %v at 99 XP, want none", got)
	}
	if progress["m2"].Status != SprintLocked {
		t.Errorf("m2 status = %q, want locked", progress["m2"].Status)
	}

	progress["m1"].XPEarned = 100
	got := UnlockEligible(modules, progress)
	if !slices.Equal(got, []string{"m2"}) {
		t.Errorf("unlocked %v, want [m2]", got)
	}
}

func TestUnlockEligible_SinglePassUnlocksAllCrossed(t *testing.T) {
	modules := testModules()
	progress := testProgress(modules)
	progress["m1"].XPEarned = 130

	got := UnlockEligible(modules, progress)
	if !slices.Equal(got, []string{"m2", "m3"}) {
		t.Errorf("unlocked %v, want [m2 m3]", got)
	}
	if progress["m4"].Status != SprintLocked {
		t.Error("m4 should stay locked")
	}
}

func TestSprintProgress_RecordExercise(t *testing.T) {
	m := Module{ID: "m1", Order: 1, TargetExerciseCount: 2}
	p := NewSprintProgress(m)
	now := time.Now()
	p.Start(now)

	if xp := p.RecordExercise(m, false, 10, 50, now); xp != 0 {
		t.Errorf("failed exercise awarded %d", xp)
	}
	if xp := p.RecordExercise(m, true, 10, 50, now); xp != 10 {
		t.Errorf("first success awarded %d, want 10", xp)
	}
	if xp := p.RecordExercise(m, true, 10, 50, now); xp != 60 {
		t.Errorf("completing success awarded %d, want 60", xp)
	}
	if p.Status != SprintCompleted || p.CompletedAt == nil {
		t.Fatalf("status = %q, want completed", p.Status)
	}
	if xp := p.RecordExercise(m, true, 10, 50, now); xp != 10 {
		t.Errorf("post-completion success awarded %d, want 10", xp)
	}
	if p.XPEarned != 80 {
		t.Errorf("XPEarned = %d, want 80", p.XPEarned)
	}
	if p.ExercisesAttempted != 4 || p.ExercisesCompleted != 3 {
		t.Errorf("counts = %d/%d", p.ExercisesCompleted, p.ExercisesAttempted)
	}
}

func TestSprintProgress_Start(t *testing.T) {
	p := &SprintProgress{ModuleID: "m", Status: SprintCompleted}
	if p.Start(time.Now()) {
		t.Error("completed module should not restart")
	}
	p = &SprintProgress{ModuleID: "m", Status: SprintUnlocked}
	if !p.Start(time.Now()) || p.StartedAt == nil {
		t.Error("unlocked module should start")
	}
	if p.Start(time.Now()) {
		t.Error("second start should be a no-op")
	}
}
