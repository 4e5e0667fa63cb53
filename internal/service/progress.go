package service

import (
	"math"
	"sort"
	"time"

	"github.com/planboard/internal/db"
)

// DayProgress aggregates approval counts for a single plan day.
type DayProgress struct {
	ApprovedSubtasks int
	TotalSubtasks    int
}

// PercentComplete returns the approved percentage for the day. A day with
// no subtasks reads as 100: there is nothing left to do in it.
func (p DayProgress) PercentComplete() int {
	if p.TotalSubtasks == 0 {
		return 100
	}
	return roundPercent(p.ApprovedSubtasks, p.TotalSubtasks)
}

// IsComplete reports whether every subtask in the day has been approved.
func (p DayProgress) IsComplete() bool {
	if p.TotalSubtasks == 0 {
		return true
	}
	return p.ApprovedSubtasks == p.TotalSubtasks
}

// PlanProgress aggregates approval counts across an entire plan.
type PlanProgress struct {
	ApprovedSubtasks int
	TotalSubtasks    int
	CompletedDays    int
	TotalDays        int
}

// PercentComplete returns the approved subtask percentage for the plan.
// Unlike the day metric, an empty plan reads as 0.
func (p PlanProgress) PercentComplete() int {
	if p.TotalSubtasks == 0 {
		return 0
	}
	return roundPercent(p.ApprovedSubtasks, p.TotalSubtasks)
}

// DayPercentComplete returns the percentage of days marked complete.
func (p PlanProgress) DayPercentComplete() int {
	if p.TotalDays == 0 {
		return 0
	}
	return roundPercent(p.CompletedDays, p.TotalDays)
}

// IsComplete reports whether every day of a non-empty plan is complete.
func (p PlanProgress) IsComplete() bool {
	if p.TotalDays == 0 {
		return false
	}
	return p.CompletedDays == p.TotalDays
}

func roundPercent(part, whole int) int {
	return int(math.Round(float64(part) / float64(whole) * 100))
}

// ProgressCache memoizes day and plan progress within one operation. It is
// keyed by record ID and constructed fresh per request; it must never be
// shared across operations since it has no invalidation.
type ProgressCache struct {
	days  map[uint]DayProgress
	plans map[uint]PlanProgress
}

// NewProgressCache returns an empty per-operation cache.
func NewProgressCache() *ProgressCache {
	return &ProgressCache{
		days:  make(map[uint]DayProgress),
		plans: make(map[uint]PlanProgress),
	}
}

// DayProgress returns cached metrics for day, computing them on first use.
func (c *ProgressCache) DayProgress(day *db.PlanDay) DayProgress {
	if cached, ok := c.days[day.ID]; ok {
		return cached
	}

	metrics := computeDayProgress(day)
	c.days[day.ID] = metrics
	return metrics
}

// PlanProgress returns cached metrics for plan, computing them on first use.
func (c *ProgressCache) PlanProgress(plan *db.Plan) PlanProgress {
	if cached, ok := c.plans[plan.ID]; ok {
		return cached
	}

	metrics := computePlanProgress(plan, c)
	c.plans[plan.ID] = metrics
	return metrics
}

func computeDayProgress(day *db.PlanDay) DayProgress {
	approved := 0
	for _, subtask := range day.Subtasks {
		if subtask.Status == db.SubtaskStatusApproved {
			approved++
		}
	}
	return DayProgress{ApprovedSubtasks: approved, TotalSubtasks: len(day.Subtasks)}
}

func computePlanProgress(plan *db.Plan, cache *ProgressCache) PlanProgress {
	var progress PlanProgress

	for _, day := range orderedDays(plan) {
		metrics := cache.DayProgress(day)
		progress.TotalDays++
		progress.ApprovedSubtasks += metrics.ApprovedSubtasks
		progress.TotalSubtasks += metrics.TotalSubtasks
		if metrics.IsComplete() {
			progress.CompletedDays++
		}
	}

	return progress
}

// CalculateDayProgress returns progress metrics for day, using cache when
// provided.
func CalculateDayProgress(day *db.PlanDay, cache *ProgressCache) DayProgress {
	if cache == nil {
		cache = NewProgressCache()
	}
	return cache.DayProgress(day)
}

// CalculatePlanProgress returns progress metrics for plan, using cache when
// provided.
func CalculatePlanProgress(plan *db.Plan, cache *ProgressCache) PlanProgress {
	if cache == nil {
		cache = NewProgressCache()
	}
	return cache.PlanProgress(plan)
}

// orderedDays returns pointers into plan.Days sorted by day index.
func orderedDays(plan *db.Plan) []*db.PlanDay {
	days := make([]*db.PlanDay, 0, len(plan.Days))
	for i := range plan.Days {
		days = append(days, &plan.Days[i])
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].DayIndex < days[j].DayIndex
	})
	return days
}

// RefreshPlanDayLocks 根据前一天的完成情况同步每一天的锁定标记，并推导
// 计划整体状态。首日的"前一天"视为已完成，因此首日永不因顺序规则被锁。
// 任何发生实际变化的记录都会更新时间戳；返回值表示是否有变化需要持久化。
func RefreshPlanDayLocks(plan *db.Plan) bool {
	cache := NewProgressCache()
	now := time.Now()
	days := orderedDays(plan)

	if len(days) == 0 {
		if plan.Status == db.PlanStatusComplete {
			plan.Status = db.PlanStatusInProgress
			plan.UpdatedAt = now
			return true
		}
		return false
	}

	anyChanges := false
	previousComplete := true
	allDaysComplete := true

	for _, day := range days {
		dayComplete := cache.DayProgress(day).IsComplete()
		allDaysComplete = allDaysComplete && dayComplete

		shouldBeLocked := !previousComplete
		if day.Locked != shouldBeLocked {
			day.Locked = shouldBeLocked
			day.UpdatedAt = now
			anyChanges = true
		}

		previousComplete = dayComplete
	}

	if allDaysComplete {
		if plan.Status != db.PlanStatusComplete {
			plan.Status = db.PlanStatusComplete
			plan.UpdatedAt = now
			anyChanges = true
		}
	} else if plan.Status == db.PlanStatusComplete {
		plan.Status = db.PlanStatusInProgress
		plan.UpdatedAt = now
		anyChanges = true
	}

	return anyChanges
}
