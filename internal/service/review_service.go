package service

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/planboard/internal/db"
	"gorm.io/gorm"
)

// ReviewService 负责证据提交与审批/拒绝工作流
// 审批事务内的完成判定必须先于任何改动取快照，保证奖励只在完成状态
// 从未完成翻转为完成的那一次发放
type ReviewService struct {
	db       *gorm.DB
	activity *ActivityService
}

// NewReviewService 构造 ReviewService
func NewReviewService(gdb *gorm.DB, activity *ActivityService) *ReviewService {
	return &ReviewService{db: gdb, activity: activity}
}

// ReviewActor 是已解析的操作者身份：设备必填，成员可选
type ReviewActor struct {
	Device *db.Device
	User   *db.User
}

// SubmissionInput 描述一次证据提交
type SubmissionInput struct {
	Comment   string
	PhotoPath string
	ThumbPath string
}

// ReviewDecision 描述一次审批动作的输入
// SubmissionID 非空时作为乐观并发检查：与当前最新提交不一致即冲突
type ReviewDecision struct {
	Mood         db.ApprovalMood
	SubmissionID *uint
	Notes        string
	Reason       string
}

// ApproveResult 汇总审批产生的结果
type ApproveResult struct {
	Subtask  *db.Subtask
	XPEvents []db.XPEvent
}

// QueueItem 是审核队列中的一项
type QueueItem struct {
	Subtask          db.Subtask
	PlanID           uint
	PlanTitle        string
	AssigneeName     string
	DayNumber        int
	DayTitle         string
	LatestSubmission db.SubtaskSubmission
	ApprovalAllowed  bool
	ApprovalMessage  string
	PlanProgress     PlanProgress
	DayProgress      DayProgress
}

// SubmitEvidence 把处于 pending/denied 状态的子任务转为 submitted，
// 并追加一条不可变的提交记录。
func (s *ReviewService) SubmitEvidence(subtaskID uint, actor ReviewActor, input SubmissionInput) (*db.SubtaskSubmission, error) {
	if actor.Device == nil {
		return nil, validationErrorf("device context is required for submissions")
	}
	if actor.User != nil && !actor.User.IsActive {
		return nil, validationErrorf("select a valid family member or leave the field blank")
	}

	plan, day, subtask, err := s.loadReviewTarget(subtaskID)
	if err != nil {
		return nil, err
	}

	if subtask.Status != db.SubtaskStatusPending && subtask.Status != db.SubtaskStatusDenied {
		return nil, validationErrorf("this subtask isn't accepting submissions right now")
	}

	now := time.Now()
	submission := db.SubtaskSubmission{
		SubtaskID:           subtask.ID,
		SubmittedByDeviceID: actor.Device.ID,
		Comment:             input.Comment,
		PhotoPath:           input.PhotoPath,
		ThumbPath:           input.ThumbPath,
	}
	if actor.User != nil {
		submission.SubmittedByUserID = &actor.User.ID
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.Subtask{}).Where("id = ?", subtask.ID).
			Updates(map[string]any{"status": db.SubtaskStatusSubmitted, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("update subtask status: %w", err)
		}
		if err := touchDayAndPlan(tx, day, plan, now); err != nil {
			return err
		}

		if err := tx.Create(&submission).Error; err != nil {
			return fmt.Errorf("create submission: %w", err)
		}

		return s.activity.Log(tx, "subtask.submitted", "subtask", subtask.ID, map[string]any{
			"plan_id":       plan.ID,
			"plan_title":    plan.Title,
			"plan_day_id":   day.ID,
			"submission_id": submission.ID,
			"has_photo":     submission.PhotoPath != "",
		}, &actor.Device.ID, submission.SubmittedByUserID)
	})
	if err != nil {
		return nil, err
	}

	return &submission, nil
}

// Approve 在一个事务内把 submitted 子任务转为 approved，发放任务分值，
// 并按完成翻转判定追加日奖励/计划奖励，最后刷新锁定状态与缓存总分。
func (s *ReviewService) Approve(subtaskID uint, actor ReviewActor, decision ReviewDecision) (*ApproveResult, error) {
	if err := validateDecision(actor, decision.Mood); err != nil {
		return nil, err
	}

	plan, day, subtask, err := s.loadReviewTarget(subtaskID)
	if err != nil {
		return nil, err
	}

	if subtask.Status != db.SubtaskStatusSubmitted {
		return nil, conflictErrorf("subtask is not awaiting review")
	}

	if allowed, message := canReview(plan, actor); !allowed {
		return nil, forbiddenErrorf("%s", message)
	}

	submission, err := requireSubmission(subtask, decision.SubmissionID)
	if err != nil {
		return nil, err
	}

	// 完成判定快照必须先于任何改动
	dayWasComplete := IsDayComplete(day)
	planWasComplete := IsPlanComplete(plan)
	assigneeID := plan.AssigneeUserID

	now := time.Now()
	var xpEvents []db.XPEvent

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.Subtask{}).Where("id = ?", subtask.ID).
			Updates(map[string]any{"status": db.SubtaskStatusApproved, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("update subtask status: %w", err)
		}
		subtask.Status = db.SubtaskStatusApproved
		subtask.UpdatedAt = now

		if err := touchDayAndPlan(tx, day, plan, now); err != nil {
			return err
		}

		approval := db.Approval{
			SubtaskID:       subtask.ID,
			Action:          db.ApprovalActionApprove,
			Mood:            decision.Mood,
			Reason:          decision.Notes,
			ActedByDeviceID: actor.Device.ID,
		}
		if actor.User != nil {
			approval.ActedByUserID = &actor.User.ID
		}
		if err := tx.Create(&approval).Error; err != nil {
			return fmt.Errorf("create approval record: %w", err)
		}

		taskEvent := db.XPEvent{
			UserID:    assigneeID,
			SubtaskID: &subtask.ID,
			Delta:     subtask.XPValue,
			Reason:    XPApprovalReason,
		}
		if err := tx.Create(&taskEvent).Error; err != nil {
			return fmt.Errorf("create xp event: %w", err)
		}
		xpEvents = append(xpEvents, taskEvent)

		// 日完成从未完成翻转为完成，且该日有任务，才发日奖励
		if !dayWasComplete && IsDayComplete(day) && IsDayBonusEligible(day) {
			dayEvent := db.XPEvent{
				UserID: assigneeID,
				Delta:  DayCompletionBonus,
				Reason: XPDayCompletionReason,
			}
			if err := tx.Create(&dayEvent).Error; err != nil {
				return fmt.Errorf("create day bonus event: %w", err)
			}
			xpEvents = append(xpEvents, dayEvent)
		}

		if RefreshPlanDayLocks(plan) {
			if err := persistLockState(tx, plan); err != nil {
				return err
			}
		}

		// 计划完成同样按翻转判定发一次性奖励
		if !planWasComplete && IsPlanComplete(plan) && len(plan.Days) > 0 {
			planEvent := db.XPEvent{
				UserID: assigneeID,
				Delta:  PlanCompletionBonus,
				Reason: XPPlanCompletionReason,
			}
			if err := tx.Create(&planEvent).Error; err != nil {
				return fmt.Errorf("create plan bonus event: %w", err)
			}
			xpEvents = append(xpEvents, planEvent)
		}

		plan.TotalXP = CalculatePlanTotalXP(plan)
		if err := tx.Model(&db.Plan{}).Where("id = ?", plan.ID).
			Update("total_xp", plan.TotalXP).Error; err != nil {
			return fmt.Errorf("update plan total xp: %w", err)
		}

		return s.activity.Log(tx, "subtask.approved", "subtask", subtask.ID, map[string]any{
			"plan_id":        plan.ID,
			"plan_title":     plan.Title,
			"plan_day_id":    day.ID,
			"mood":           string(decision.Mood),
			"xp_value":       subtask.XPValue,
			"approval_notes": decision.Notes,
			"submission_id":  submission.ID,
			"xp_events":      summarizeXPEvents(xpEvents),
		}, &actor.Device.ID, approvalUserID(actor))
	})
	if err != nil {
		return nil, err
	}

	return &ApproveResult{Subtask: subtask, XPEvents: xpEvents}, nil
}

// Deny 在一个事务内把 submitted 子任务转为 denied 并记录拒绝原因。
// 拒绝不产生任何 XP 事件，但同样刷新锁定状态并重算缓存总分。
func (s *ReviewService) Deny(subtaskID uint, actor ReviewActor, decision ReviewDecision) (*db.Subtask, error) {
	if err := validateDecision(actor, decision.Mood); err != nil {
		return nil, err
	}
	if decision.Reason == "" {
		return nil, validationErrorf("a reason is required when denying submissions")
	}

	plan, day, subtask, err := s.loadReviewTarget(subtaskID)
	if err != nil {
		return nil, err
	}

	if subtask.Status != db.SubtaskStatusSubmitted {
		return nil, conflictErrorf("subtask is not awaiting review")
	}

	if allowed, message := canReview(plan, actor); !allowed {
		return nil, forbiddenErrorf("%s", message)
	}

	submission, err := requireSubmission(subtask, decision.SubmissionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.Subtask{}).Where("id = ?", subtask.ID).
			Updates(map[string]any{"status": db.SubtaskStatusDenied, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("update subtask status: %w", err)
		}
		subtask.Status = db.SubtaskStatusDenied
		subtask.UpdatedAt = now

		if err := touchDayAndPlan(tx, day, plan, now); err != nil {
			return err
		}

		approval := db.Approval{
			SubtaskID:       subtask.ID,
			Action:          db.ApprovalActionDeny,
			Mood:            decision.Mood,
			Reason:          decision.Reason,
			ActedByDeviceID: actor.Device.ID,
		}
		if actor.User != nil {
			approval.ActedByUserID = &actor.User.ID
		}
		if err := tx.Create(&approval).Error; err != nil {
			return fmt.Errorf("create approval record: %w", err)
		}

		// 拒绝不可能让某天变为完成，但此前的编辑可能留下过期的锁定状态
		if RefreshPlanDayLocks(plan) {
			if err := persistLockState(tx, plan); err != nil {
				return err
			}
		}

		plan.TotalXP = CalculatePlanTotalXP(plan)
		if err := tx.Model(&db.Plan{}).Where("id = ?", plan.ID).
			Update("total_xp", plan.TotalXP).Error; err != nil {
			return fmt.Errorf("update plan total xp: %w", err)
		}

		return s.activity.Log(tx, "subtask.denied", "subtask", subtask.ID, map[string]any{
			"plan_id":       plan.ID,
			"plan_title":    plan.Title,
			"plan_day_id":   day.ID,
			"mood":          string(decision.Mood),
			"reason":        decision.Reason,
			"submission_id": submission.ID,
		}, &actor.Device.ID, approvalUserID(actor))
	})
	if err != nil {
		return nil, err
	}

	return subtask, nil
}

// Queue 返回待审核队列：所有 submitted 子任务按最近更新排序，附带最新
// 提交、回避判定与进度指标。没有提交记录的子任务不会出现在队列里。
func (s *ReviewService) Queue(actor ReviewActor) ([]QueueItem, error) {
	var subtasks []db.Subtask
	if err := s.db.
		Preload("Submissions", func(gdb *gorm.DB) *gorm.DB {
			return gdb.Order("created_at ASC")
		}).
		Where("status = ?", db.SubtaskStatusSubmitted).
		Order("updated_at DESC").
		Find(&subtasks).Error; err != nil {
		return nil, fmt.Errorf("list submitted subtasks: %w", err)
	}

	items := make([]QueueItem, 0, len(subtasks))
	cache := NewProgressCache()
	plans := make(map[uint]*db.Plan)

	for i := range subtasks {
		subtask := &subtasks[i]

		latest := latestSubmission(subtask)
		if latest == nil {
			continue
		}

		var dayRecord db.PlanDay
		if err := s.db.First(&dayRecord, subtask.PlanDayID).Error; err != nil {
			return nil, fmt.Errorf("load plan day: %w", err)
		}

		plan, ok := plans[dayRecord.PlanID]
		if !ok {
			loaded, err := s.loadPlanTree(dayRecord.PlanID)
			if err != nil {
				return nil, err
			}
			plan = loaded
			plans[dayRecord.PlanID] = plan
		}

		day := findDay(plan, dayRecord.ID)
		if day == nil {
			continue
		}

		allowed, message := canReview(plan, actor)

		items = append(items, QueueItem{
			Subtask:          *subtask,
			PlanID:           plan.ID,
			PlanTitle:        plan.Title,
			AssigneeName:     plan.Assignee.DisplayName,
			DayNumber:        day.DayIndex + 1,
			DayTitle:         day.Title,
			LatestSubmission: *latest,
			ApprovalAllowed:  allowed,
			ApprovalMessage:  message,
			PlanProgress:     CalculatePlanProgress(plan, cache),
			DayProgress:      CalculateDayProgress(day, cache),
		})
	}

	return items, nil
}

// loadReviewTarget 加载子任务所属计划的完整有序树，并返回指向树内
// 记录的指针，保证事务内的重算都基于同一份内存快照。
func (s *ReviewService) loadReviewTarget(subtaskID uint) (*db.Plan, *db.PlanDay, *db.Subtask, error) {
	var record db.Subtask
	if err := s.db.First(&record, subtaskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, ErrSubtaskNotFound
		}
		return nil, nil, nil, fmt.Errorf("load subtask: %w", err)
	}

	var dayRecord db.PlanDay
	if err := s.db.First(&dayRecord, record.PlanDayID).Error; err != nil {
		return nil, nil, nil, fmt.Errorf("load plan day: %w", err)
	}

	plan, err := s.loadPlanTree(dayRecord.PlanID)
	if err != nil {
		return nil, nil, nil, err
	}

	day := findDay(plan, dayRecord.ID)
	if day == nil {
		return nil, nil, nil, fmt.Errorf("plan day %d missing from plan %d", dayRecord.ID, plan.ID)
	}

	subtask := findSubtask(day, subtaskID)
	if subtask == nil {
		return nil, nil, nil, fmt.Errorf("subtask %d missing from plan day %d", subtaskID, day.ID)
	}

	return plan, day, subtask, nil
}

func (s *ReviewService) loadPlanTree(planID uint) (*db.Plan, error) {
	var plan db.Plan
	err := s.db.
		Preload("Assignee").
		Preload("Days", func(gdb *gorm.DB) *gorm.DB {
			return gdb.Order("day_index ASC")
		}).
		Preload("Days.Subtasks", func(gdb *gorm.DB) *gorm.DB {
			return gdb.Order("order_index ASC")
		}).
		Preload("Days.Subtasks.Submissions", func(gdb *gorm.DB) *gorm.DB {
			return gdb.Order("created_at ASC")
		}).
		First(&plan, planID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("load plan tree: %w", err)
	}
	return &plan, nil
}

func validateDecision(actor ReviewActor, mood db.ApprovalMood) error {
	if actor.Device == nil {
		return validationErrorf("device context is required for approvals")
	}
	if !db.ValidMood(mood) {
		return validationErrorf("select a valid mood option")
	}
	return nil
}

// canReview 执行回避检查：被指派人本人及其绑定设备不得审核自己的提交。
// 该限制对批准与拒绝同样生效。
func canReview(plan *db.Plan, actor ReviewActor) (bool, string) {
	assigneeID := plan.AssigneeUserID

	if actor.User != nil && actor.User.ID == assigneeID {
		return false, "assignees cannot approve their own submissions"
	}

	if actor.Device != nil && actor.Device.LinkedUserID != nil && *actor.Device.LinkedUserID == assigneeID {
		return false, "devices linked to the assignee cannot approve this submission"
	}

	return true, ""
}

// requireSubmission 返回当前最新提交，并执行乐观并发检查
func requireSubmission(subtask *db.Subtask, expectedID *uint) (*db.SubtaskSubmission, error) {
	latest := latestSubmission(subtask)
	if latest == nil {
		return nil, validationErrorf("no submission available for review")
	}

	if expectedID != nil && latest.ID != *expectedID {
		return nil, conflictErrorf("the submission has changed; refresh the queue and try again")
	}

	return latest, nil
}

// latestSubmission 按创建时间（再按 ID）取最新一条提交
func latestSubmission(subtask *db.Subtask) *db.SubtaskSubmission {
	if len(subtask.Submissions) == 0 {
		return nil
	}

	submissions := make([]*db.SubtaskSubmission, 0, len(subtask.Submissions))
	for i := range subtask.Submissions {
		submissions = append(submissions, &subtask.Submissions[i])
	}
	sort.Slice(submissions, func(i, j int) bool {
		if submissions[i].CreatedAt.Equal(submissions[j].CreatedAt) {
			return submissions[i].ID < submissions[j].ID
		}
		return submissions[i].CreatedAt.Before(submissions[j].CreatedAt)
	})
	return submissions[len(submissions)-1]
}

func findDay(plan *db.Plan, dayID uint) *db.PlanDay {
	for i := range plan.Days {
		if plan.Days[i].ID == dayID {
			return &plan.Days[i]
		}
	}
	return nil
}

func findSubtask(day *db.PlanDay, subtaskID uint) *db.Subtask {
	for i := range day.Subtasks {
		if day.Subtasks[i].ID == subtaskID {
			return &day.Subtasks[i]
		}
	}
	return nil
}

func touchDayAndPlan(tx *gorm.DB, day *db.PlanDay, plan *db.Plan, now time.Time) error {
	if err := tx.Model(&db.PlanDay{}).Where("id = ?", day.ID).
		Update("updated_at", now).Error; err != nil {
		return fmt.Errorf("touch plan day: %w", err)
	}
	day.UpdatedAt = now

	if err := tx.Model(&db.Plan{}).Where("id = ?", plan.ID).
		Update("updated_at", now).Error; err != nil {
		return fmt.Errorf("touch plan: %w", err)
	}
	plan.UpdatedAt = now

	return nil
}

// persistLockState 把 RefreshPlanDayLocks 在内存中做出的改动写回数据库
func persistLockState(tx *gorm.DB, plan *db.Plan) error {
	for i := range plan.Days {
		day := &plan.Days[i]
		if err := tx.Model(&db.PlanDay{}).Where("id = ?", day.ID).
			Updates(map[string]any{"locked": day.Locked, "updated_at": day.UpdatedAt}).Error; err != nil {
			return fmt.Errorf("persist day lock: %w", err)
		}
	}

	if err := tx.Model(&db.Plan{}).Where("id = ?", plan.ID).
		Updates(map[string]any{"status": plan.Status, "updated_at": plan.UpdatedAt}).Error; err != nil {
		return fmt.Errorf("persist plan status: %w", err)
	}

	return nil
}

func summarizeXPEvents(events []db.XPEvent) []map[string]any {
	summary := make([]map[string]any, 0, len(events))
	for _, event := range events {
		summary = append(summary, map[string]any{
			"reason": event.Reason,
			"delta":  event.Delta,
		})
	}
	return summary
}

func approvalUserID(actor ReviewActor) *uint {
	if actor.User == nil {
		return nil
	}
	return &actor.User.ID
}
