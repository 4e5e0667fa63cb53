package service

import (
	"strings"

	"github.com/planboard/internal/db"
)

// XP ledger constants. Levels are flat 100-XP bands; completing a day or a
// whole plan pays a fixed bonus on top of the task values.
const (
	XPPerLevel          = 100
	DayCompletionBonus  = 20
	PlanCompletionBonus = 50
)

// XP event reason codes stored on ledger rows.
const (
	XPApprovalReason       = "subtask.approved"
	XPDayCompletionReason  = "plan_day.completed"
	XPPlanCompletionReason = "plan.completed"
)

var xpReasonLabels = map[string]string{
	XPApprovalReason:       "Subtask approved",
	XPDayCompletionReason:  "Day completion bonus",
	XPPlanCompletionReason: "Plan completion bonus",
}

// XPProgress describes where a total sits within the current level band.
type XPProgress struct {
	Level           int
	XPIntoLevel     int
	XPToNextLevel   int
	ProgressPercent int
}

// CalculateLevel returns the level reached by totalXP.
func CalculateLevel(totalXP int) int {
	if totalXP <= 0 {
		return 0
	}
	return totalXP / XPPerLevel
}

// ProgressForTotalXP returns level and intra-level progress for totalXP.
func ProgressForTotalXP(totalXP int) XPProgress {
	if totalXP < 0 {
		totalXP = 0
	}

	level := CalculateLevel(totalXP)
	xpIntoLevel := totalXP - level*XPPerLevel

	xpToNextLevel := 0
	if xpIntoLevel < XPPerLevel {
		xpToNextLevel = XPPerLevel - xpIntoLevel
	}

	progressPercent := 0
	if xpIntoLevel > 0 {
		progressPercent = roundPercent(xpIntoLevel, XPPerLevel)
		if progressPercent > 100 {
			progressPercent = 100
		}
	}

	return XPProgress{
		Level:           level,
		XPIntoLevel:     xpIntoLevel,
		XPToNextLevel:   xpToNextLevel,
		ProgressPercent: progressPercent,
	}
}

// CalculateUserTotalXP sums event deltas into a user's total.
func CalculateUserTotalXP(events []db.XPEvent) int {
	total := 0
	for _, event := range events {
		total += event.Delta
	}
	return total
}

// IsDayComplete reports whether every subtask of the day has been approved.
// A day with no subtasks counts as complete.
func IsDayComplete(day *db.PlanDay) bool {
	for _, subtask := range day.Subtasks {
		if subtask.Status != db.SubtaskStatusApproved {
			return false
		}
	}
	return true
}

// IsDayBonusEligible reports whether completing the day pays the bonus.
// Empty days complete vacuously but never earn anything.
func IsDayBonusEligible(day *db.PlanDay) bool {
	return len(day.Subtasks) > 0 && IsDayComplete(day)
}

// IsPlanComplete reports whether all days are complete and at least one day
// actually carries subtasks. A plan of only empty days never completes for
// XP purposes even though its days read as complete for locking.
func IsPlanComplete(plan *db.Plan) bool {
	anySubtasks := false
	for i := range plan.Days {
		day := &plan.Days[i]
		if len(day.Subtasks) > 0 {
			anySubtasks = true
		}
		if !IsDayComplete(day) {
			return false
		}
	}
	return anySubtasks
}

// DaySubtaskXP sums the XP of approved subtasks within the day.
func DaySubtaskXP(day *db.PlanDay) int {
	total := 0
	for _, subtask := range day.Subtasks {
		if subtask.Status == db.SubtaskStatusApproved {
			total += subtask.XPValue
		}
	}
	return total
}

// CalculateDayTotalXP returns earned XP for the day including its bonus.
func CalculateDayTotalXP(day *db.PlanDay) int {
	total := DaySubtaskXP(day)
	if total > 0 && IsDayBonusEligible(day) {
		total += DayCompletionBonus
	}
	return total
}

// CalculatePlanTotalXP returns earned XP for the plan including bonuses.
// This is the value cached on Plan.TotalXP after each review transaction.
func CalculatePlanTotalXP(plan *db.Plan) int {
	total := 0
	for i := range plan.Days {
		total += CalculateDayTotalXP(&plan.Days[i])
	}
	if total > 0 && IsPlanComplete(plan) {
		total += PlanCompletionBonus
	}
	return total
}

// CalculatePlanBlueprintTotalXP returns the XP available if the whole plan
// were completed, bonuses included. Used for display at import time.
func CalculatePlanBlueprintTotalXP(plan *db.Plan) int {
	base := 0
	dayBonuses := 0
	anySubtasks := false

	for i := range plan.Days {
		day := &plan.Days[i]
		for _, subtask := range day.Subtasks {
			base += subtask.XPValue
		}
		if len(day.Subtasks) > 0 {
			anySubtasks = true
			dayBonuses += DayCompletionBonus
		}
	}

	total := base + dayBonuses
	if anySubtasks {
		total += PlanCompletionBonus
	}
	return total
}

// ReasonLabel returns a display label for an XP reason code. Unknown codes
// fall back to title-cased text with separators replaced by spaces.
func ReasonLabel(reason string) string {
	if label, ok := xpReasonLabels[reason]; ok {
		return label
	}

	cleaned := strings.NewReplacer("_", " ", ".", " ").Replace(reason)
	words := strings.Fields(cleaned)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
