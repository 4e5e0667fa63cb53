package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/planboard/internal/db"
	"github.com/planboard/internal/service"
)

// GetBoard 返回家庭看板：每位成员的等级、经验值与当前计划进度
func (a *API) GetBoard(c *gin.Context) {
	var users []db.User
	if err := a.db.Where("is_active = ?", true).Order("display_name ASC").Find(&users).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load family members")
		return
	}

	plans, err := a.plans.ListPlans()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load plans")
		return
	}

	var devices []db.Device
	if err := a.db.Find(&devices).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load devices")
		return
	}

	cache := service.NewProgressCache()
	plansByUser := make(map[uint][]*db.Plan)
	for i := range plans {
		plan := &plans[i]
		plansByUser[plan.AssigneeUserID] = append(plansByUser[plan.AssigneeUserID], plan)
	}

	boardUsers := make([]gin.H, 0, len(users))
	familyTotalXP := 0

	for i := range users {
		user := &users[i]

		var events []db.XPEvent
		if err := a.db.Where("user_id = ?", user.ID).Order("created_at DESC").Find(&events).Error; err != nil {
			respondError(c, http.StatusInternalServerError, "failed to load xp events")
			return
		}

		totalXP := service.CalculateUserTotalXP(events)
		familyTotalXP += totalXP
		progress := service.ProgressForTotalXP(totalXP)

		userPlans := plansByUser[user.ID]
		activeCount := 0
		completedCount := 0
		for _, plan := range userPlans {
			switch plan.Status {
			case db.PlanStatusInProgress:
				activeCount++
			case db.PlanStatusComplete:
				completedCount++
			}
		}

		var currentPlan gin.H
		if recent := mostRecentPlan(userPlans); recent != nil {
			planProgress := service.CalculatePlanProgress(recent, cache)
			currentPlan = gin.H{
				"id":       recent.ID,
				"title":    recent.Title,
				"status":   recent.Status,
				"total_xp": recent.TotalXP,
				"progress": planProgressToPayload(planProgress),
			}
		}

		deviceCount := 0
		for _, device := range devices {
			if device.LinkedUserID != nil && *device.LinkedUserID == user.ID {
				deviceCount++
			}
		}

		history := make([]gin.H, 0, 5)
		for _, event := range events {
			if len(history) == 5 {
				break
			}
			history = append(history, gin.H{
				"delta":      event.Delta,
				"reason":     event.Reason,
				"label":      service.ReasonLabel(event.Reason),
				"created_at": event.CreatedAt,
			})
		}

		boardUsers = append(boardUsers, gin.H{
			"id":               user.ID,
			"display_name":     user.DisplayName,
			"avatar":           user.Avatar,
			"level":            progress.Level,
			"total_xp":         totalXP,
			"xp_into_level":    progress.XPIntoLevel,
			"xp_to_next_level": progress.XPToNextLevel,
			"progress_percent": progress.ProgressPercent,
			"active_plan":      currentPlan,
			"plan_counts": gin.H{
				"total":     len(userPlans),
				"active":    activeCount,
				"completed": completedCount,
			},
			"device_count": deviceCount,
			"xp_history":   history,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"users":           boardUsers,
		"family_total_xp": familyTotalXP,
		"device":          deviceToPayload(deviceFromContext(c)),
	})
}

// mostRecentPlan 优先返回进行中的计划，否则返回最近创建的一个
func mostRecentPlan(plans []*db.Plan) *db.Plan {
	var recent *db.Plan
	for _, plan := range plans {
		if plan.Status == db.PlanStatusInProgress {
			if recent == nil || plan.CreatedAt.After(recent.CreatedAt) {
				recent = plan
			}
		}
	}
	if recent != nil {
		return recent
	}

	for _, plan := range plans {
		if recent == nil || plan.CreatedAt.After(recent.CreatedAt) {
			recent = plan
		}
	}
	return recent
}
