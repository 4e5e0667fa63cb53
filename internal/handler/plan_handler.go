package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/planboard/internal/db"
	"github.com/planboard/internal/service"
)

// GetPlan 返回计划的完整树与进度
func (a *API) GetPlan(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid plan id")
		return
	}

	plan, err := a.plans.GetPlan(id)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"plan": planToPayload(plan)})
}

// GetPlanProgress 返回计划的进度指标
func (a *API) GetPlanProgress(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid plan id")
		return
	}

	progress, err := a.plans.GetPlanProgress(id)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"progress": planProgressToPayload(progress)})
}

// SubmitEvidence 处理一次证据提交：可选照片经规范化存储后，连同备注
// 追加为新的提交记录
func (a *API) SubmitEvidence(c *gin.Context) {
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

	input := service.SubmissionInput{
		Comment: strings.TrimSpace(c.PostForm("comment")),
	}

	if file, err := c.FormFile("photo"); err == nil && file != nil {
		opened, err := file.Open()
		if err != nil {
			respondError(c, http.StatusBadRequest, "we couldn't process that photo, please try again")
			return
		}
		data, err := io.ReadAll(opened)
		opened.Close()
		if err != nil {
			respondError(c, http.StatusBadRequest, "we couldn't process that photo, please try again")
			return
		}

		processed, err := a.images.Process(data)
		if err != nil {
			respondDomainError(c, err)
			return
		}
		input.PhotoPath = processed.PhotoPath
		input.ThumbPath = processed.ThumbPath
	}

	submission, err := a.reviews.SubmitEvidence(subtaskID, actor, input)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"submission": submissionToPayload(submission)})
}

func planToPayload(plan *db.Plan) gin.H {
	cache := service.NewProgressCache()
	progress := service.CalculatePlanProgress(plan, cache)

	days := make([]gin.H, 0, len(plan.Days))
	for i := range plan.Days {
		day := &plan.Days[i]
		dayProgress := service.CalculateDayProgress(day, cache)

		subtasks := make([]gin.H, 0, len(day.Subtasks))
		for j := range day.Subtasks {
			subtask := &day.Subtasks[j]
			subtasks = append(subtasks, gin.H{
				"id":       subtask.ID,
				"text":     subtask.Text,
				"xp_value": subtask.XPValue,
				"status":   subtask.Status,
			})
		}

		days = append(days, gin.H{
			"id":        day.ID,
			"day_index": day.DayIndex,
			"number":    day.DayIndex + 1,
			"title":     day.Title,
			"locked":    day.Locked,
			"progress": gin.H{
				"percent":           dayProgress.PercentComplete(),
				"approved_subtasks": dayProgress.ApprovedSubtasks,
				"total_subtasks":    dayProgress.TotalSubtasks,
			},
			"subtasks": subtasks,
		})
	}

	return gin.H{
		"id":            plan.ID,
		"title":         plan.Title,
		"status":        plan.Status,
		"assignee_name": plan.Assignee.DisplayName,
		"total_xp":      plan.TotalXP,
		"blueprint_xp":  service.CalculatePlanBlueprintTotalXP(plan),
		"progress":      planProgressToPayload(progress),
		"days":          days,
	}
}

func planProgressToPayload(progress service.PlanProgress) gin.H {
	return gin.H{
		"percent":           progress.PercentComplete(),
		"approved_subtasks": progress.ApprovedSubtasks,
		"total_subtasks":    progress.TotalSubtasks,
		"completed_days":    progress.CompletedDays,
		"total_days":        progress.TotalDays,
		"day_percent":       progress.DayPercentComplete(),
	}
}

func submissionToPayload(submission *db.SubtaskSubmission) gin.H {
	return gin.H{
		"id":           submission.ID,
		"subtask_id":   submission.SubtaskID,
		"comment":      submission.Comment,
		"comment_html": service.RenderCommentMarkdown(submission.Comment),
		"photo_path":   submission.PhotoPath,
		"thumb_path":   submission.ThumbPath,
		"created_at":   submission.CreatedAt,
	}
}
