package service

import (
	"testing"

	"github.com/planboard/internal/db"
	"gorm.io/gorm"
)

func TestCalculateLevel(t *testing.T) {
	cases := []struct {
		totalXP int
		level   int
	}{
		{totalXP: -20, level: 0},
		{totalXP: 0, level: 0},
		{totalXP: 99, level: 0},
		{totalXP: 100, level: 1},
		{totalXP: 250, level: 2},
		{totalXP: 1000, level: 10},
	}

	for _, tc := range cases {
		if got := CalculateLevel(tc.totalXP); got != tc.level {
			t.Fatalf("CalculateLevel(%d) = %d, expected %d", tc.totalXP, got, tc.level)
		}
	}
}

func TestProgressForTotalXP(t *testing.T) {
	progress := ProgressForTotalXP(250)
	if progress.Level != 2 {
		t.Fatalf("expected level 2, got %d", progress.Level)
	}
	if progress.XPIntoLevel != 50 {
		t.Fatalf("expected 50 XP into level, got %d", progress.XPIntoLevel)
	}
	if progress.XPToNextLevel != 50 {
		t.Fatalf("expected 50 XP to next level, got %d", progress.XPToNextLevel)
	}
	if progress.ProgressPercent != 50 {
		t.Fatalf("expected 50%%, got %d%%", progress.ProgressPercent)
	}

	boundary := ProgressForTotalXP(200)
	if boundary.Level != 2 || boundary.XPIntoLevel != 0 || boundary.ProgressPercent != 0 {
		t.Fatalf("unexpected boundary progress: %+v", boundary)
	}
	if boundary.XPToNextLevel != XPPerLevel {
		t.Fatalf("expected a full level to go, got %d", boundary.XPToNextLevel)
	}

	negative := ProgressForTotalXP(-5)
	if negative.Level != 0 || negative.XPIntoLevel != 0 {
		t.Fatalf("negative totals should clamp to zero: %+v", negative)
	}
}

func TestCalculateUserTotalXP(t *testing.T) {
	events := []db.XPEvent{
		{Delta: 20},
		{Delta: 50},
		{Delta: -10},
	}
	if total := CalculateUserTotalXP(events); total != 60 {
		t.Fatalf("expected 60, got %d", total)
	}
}

func TestDayBonusEligibility(t *testing.T) {
	empty := makeDay(1, 0)
	if !IsDayComplete(&empty) {
		t.Fatal("empty day should read complete")
	}
	if IsDayBonusEligible(&empty) {
		t.Fatal("empty day must never be bonus eligible")
	}

	done := makeDay(2, 0, db.SubtaskStatusApproved)
	if !IsDayBonusEligible(&done) {
		t.Fatal("completed day with tasks should be bonus eligible")
	}

	pending := makeDay(3, 0, db.SubtaskStatusSubmitted)
	if IsDayBonusEligible(&pending) {
		t.Fatal("incomplete day must not be bonus eligible")
	}
}

func TestIsPlanCompleteRequiresTaskBearingDay(t *testing.T) {
	allEmpty := db.Plan{Model: gorm.Model{ID: 1}}
	allEmpty.Days = []db.PlanDay{makeDay(1, 0), makeDay(2, 1)}
	if IsPlanComplete(&allEmpty) {
		t.Fatal("plan of only empty days must not read complete for XP")
	}

	mixed := db.Plan{Model: gorm.Model{ID: 2}}
	mixed.Days = []db.PlanDay{makeDay(1, 0), makeDay(2, 1, db.SubtaskStatusApproved)}
	if !IsPlanComplete(&mixed) {
		t.Fatal("empty day plus completed day should read complete")
	}
}

func TestCalculatePlanTotalXP(t *testing.T) {
	plan := db.Plan{Model: gorm.Model{ID: 1}}
	plan.Days = []db.PlanDay{
		makeDay(1, 0, db.SubtaskStatusApproved, db.SubtaskStatusApproved),
		makeDay(2, 1, db.SubtaskStatusApproved),
	}

	// 3 个任务各 10 分 + 两个日奖励 + 计划奖励
	expected := 30 + 2*DayCompletionBonus + PlanCompletionBonus
	if total := CalculatePlanTotalXP(&plan); total != expected {
		t.Fatalf("expected %d, got %d", expected, total)
	}

	plan.Days[1].Subtasks[0].Status = db.SubtaskStatusPending
	// 未完成的日子不计奖励，计划奖励也不发
	if total := CalculatePlanTotalXP(&plan); total != 20+DayCompletionBonus {
		t.Fatalf("expected %d, got %d", 20+DayCompletionBonus, total)
	}
}

func TestCalculatePlanBlueprintTotalXP(t *testing.T) {
	plan := db.Plan{Model: gorm.Model{ID: 1}}
	plan.Days = []db.PlanDay{
		makeDay(1, 0, db.SubtaskStatusPending, db.SubtaskStatusPending),
		makeDay(2, 1, db.SubtaskStatusPending),
	}

	expected := 30 + 2*DayCompletionBonus + PlanCompletionBonus
	if total := CalculatePlanBlueprintTotalXP(&plan); total != expected {
		t.Fatalf("expected %d, got %d", expected, total)
	}

	empty := db.Plan{Model: gorm.Model{ID: 2}}
	if total := CalculatePlanBlueprintTotalXP(&empty); total != 0 {
		t.Fatalf("expected 0 for empty plan, got %d", total)
	}
}

func TestReasonLabel(t *testing.T) {
	if label := ReasonLabel(XPApprovalReason); label != "Subtask approved" {
		t.Fatalf("unexpected label: %q", label)
	}
	if label := ReasonLabel(XPDayCompletionReason); label != "Day completion bonus" {
		t.Fatalf("unexpected label: %q", label)
	}
	if label := ReasonLabel("manual_adjustment.applied"); label != "Manual Adjustment Applied" {
		t.Fatalf("unexpected fallback label: %q", label)
	}
}
