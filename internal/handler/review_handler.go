package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/planboard/internal/db"
	"github.com/planboard/internal/service"
)

// GetReviewQueue 返回待审核队列
func (a *API) GetReviewQueue(c *gin.Context) {
	actor, err := a.resolveActor(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	items, err := a.reviews.Queue(actor)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	payload := make([]gin.H, 0, len(items))
	for i := range items {
		payload = append(payload, queueItemToPayload(&items[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"items":  payload,
		"device": deviceToPayload(deviceFromContext(c)),
	})
}

// ApproveSubtask 批准一次提交
func (a *API) ApproveSubtask(c *gin.Context) {
	subtaskID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid subtask id")
		return
	}

	actor, err := a.resolveActor(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	decision, err := bindDecision(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	decision.Notes = strings.TrimSpace(c.PostForm("notes"))

	result, err := a.reviews.Approve(subtaskID, actor, decision)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	events := make([]gin.H, 0, len(result.XPEvents))
	for _, event := range result.XPEvents {
		events = append(events, gin.H{
			"reason": event.Reason,
			"label":  service.ReasonLabel(event.Reason),
			"delta":  event.Delta,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"subtask": gin.H{
			"id":     result.Subtask.ID,
			"status": result.Subtask.Status,
		},
		"xp_events": events,
	})
}

// DenySubtask 拒绝一次提交，必须给出原因
func (a *API) DenySubtask(c *gin.Context) {
	subtaskID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid subtask id")
		return
	}

	actor, err := a.resolveActor(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	decision, err := bindDecision(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	decision.Reason = strings.TrimSpace(c.PostForm("reason"))

	subtask, err := a.reviews.Deny(subtaskID, actor, decision)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subtask": gin.H{
			"id":     subtask.ID,
			"status": subtask.Status,
		},
	})
}

func bindDecision(c *gin.Context) (service.ReviewDecision, error) {
	decision := service.ReviewDecision{
		Mood: db.ApprovalMood(strings.TrimSpace(c.PostForm("mood"))),
	}

	submissionID, err := parseOptionalUint(strings.TrimSpace(c.PostForm("submission_id")))
	if err != nil {
		return decision, err
	}
	decision.SubmissionID = submissionID

	return decision, nil
}

func queueItemToPayload(item *service.QueueItem) gin.H {
	return gin.H{
		"subtask_id":        item.Subtask.ID,
		"subtask_text":      item.Subtask.Text,
		"xp_value":          item.Subtask.XPValue,
		"plan_id":           item.PlanID,
		"plan_title":        item.PlanTitle,
		"assignee_name":     item.AssigneeName,
		"day_number":        item.DayNumber,
		"day_title":         item.DayTitle,
		"latest_submission": submissionToPayload(&item.LatestSubmission),
		"approval_allowed":  item.ApprovalAllowed,
		"approval_message":  item.ApprovalMessage,
		"plan_progress":     planProgressToPayload(item.PlanProgress),
		"day_progress": gin.H{
			"percent":           item.DayProgress.PercentComplete(),
			"approved_subtasks": item.DayProgress.ApprovedSubtasks,
			"total_subtasks":    item.DayProgress.TotalSubtasks,
		},
	}
}

func deviceToPayload(device *db.Device) gin.H {
	if device == nil {
		return nil
	}

	payload := gin.H{
		"id":            device.ID,
		"label":         service.Label(device),
		"friendly_name": device.FriendlyName,
	}
	if device.LinkedUser != nil {
		payload["linked_user_name"] = device.LinkedUser.DisplayName
	}
	return payload
}
