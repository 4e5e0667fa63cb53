package service

import (
	"errors"
	"fmt"

	"github.com/planboard/internal/db"
	"gorm.io/gorm"
)

// PlanService 负责计划的导入与读取
type PlanService struct {
	db       *gorm.DB
	activity *ActivityService
}

// NewPlanService 构造 PlanService
func NewPlanService(gdb *gorm.DB, activity *ActivityService) *PlanService {
	return &PlanService{db: gdb, activity: activity}
}

// ImportFromMarkdown 解析计划文档并在一个事务内创建完整的计划树。
// 首日解锁，其余日锁定；计划初始状态为 in_progress，TotalXP 写入蓝图
// 总分（所有子任务分值之和，不含奖励）。解析失败时不会留下任何记录，
// 但失败本身会记入业务日志。
func (s *PlanService) ImportFromMarkdown(markdown string, assigneeID uint, creatorID *uint) (*db.Plan, error) {
	var assignee db.User
	if err := s.db.Where("id = ? AND is_active = ?", assigneeID, true).First(&assignee).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, validationErrorf("assignee user %d not found or inactive", assigneeID)
		}
		return nil, fmt.Errorf("load assignee: %w", err)
	}

	parsed, err := ParsePlanMarkdown(markdown)
	if err != nil {
		s.logImportFailure(err, assigneeID, creatorID)
		return nil, err
	}

	var plan db.Plan

	err = s.db.Transaction(func(tx *gorm.DB) error {
		plan = db.Plan{
			Title:           parsed.Title,
			AssigneeUserID:  assigneeID,
			CreatedByUserID: creatorID,
			Status:          db.PlanStatusInProgress,
		}
		if err := tx.Create(&plan).Error; err != nil {
			return fmt.Errorf("create plan: %w", err)
		}

		totalXP := 0
		for index, parsedDay := range parsed.Days {
			day := db.PlanDay{
				PlanID:   plan.ID,
				DayIndex: index,
				Title:    parsedDay.Title,
				Locked:   index != 0,
			}
			if err := tx.Create(&day).Error; err != nil {
				return fmt.Errorf("create plan day: %w", err)
			}

			for orderIndex, parsedSubtask := range parsedDay.Subtasks {
				subtask := db.Subtask{
					PlanDayID:  day.ID,
					OrderIndex: orderIndex,
					Text:       parsedSubtask.Text,
					XPValue:    parsedSubtask.XP,
					Status:     db.SubtaskStatusPending,
				}
				if err := tx.Create(&subtask).Error; err != nil {
					return fmt.Errorf("create subtask: %w", err)
				}
				totalXP += parsedSubtask.XP
			}
		}

		if err := tx.Model(&plan).Update("total_xp", totalXP).Error; err != nil {
			return fmt.Errorf("update plan total xp: %w", err)
		}
		plan.TotalXP = totalXP

		return s.activity.Log(tx, "plan.imported", "plan", plan.ID, map[string]any{
			"title":    plan.Title,
			"days":     len(parsed.Days),
			"total_xp": totalXP,
		}, nil, creatorID)
	})
	if err != nil {
		return nil, err
	}

	return s.GetPlan(plan.ID)
}

func (s *PlanService) logImportFailure(parseErr error, assigneeID uint, creatorID *uint) {
	// 导入失败同样是有意义的业务事件；日志写不进去也不影响错误返回
	_ = s.activity.Log(nil, "plan.import_failed", "plan", 0, map[string]any{
		"assignee_user_id": assigneeID,
		"error":            parseErr.Error(),
	}, nil, creatorID)
}

// GetPlan 返回带有完整有序树的计划
func (s *PlanService) GetPlan(id uint) (*db.Plan, error) {
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
		First(&plan, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return &plan, nil
}

// ListPlans 返回所有计划（含有序树），按创建时间倒序
func (s *PlanService) ListPlans() ([]db.Plan, error) {
	var plans []db.Plan
	err := s.db.
		Preload("Assignee").
		Preload("Days", func(gdb *gorm.DB) *gorm.DB {
			return gdb.Order("day_index ASC")
		}).
		Preload("Days.Subtasks", func(gdb *gorm.DB) *gorm.DB {
			return gdb.Order("order_index ASC")
		}).
		Order("created_at DESC").
		Find(&plans).Error
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

// GetPlanProgress 返回指定计划的进度指标
func (s *PlanService) GetPlanProgress(id uint) (PlanProgress, error) {
	plan, err := s.GetPlan(id)
	if err != nil {
		return PlanProgress{}, err
	}
	return CalculatePlanProgress(plan, nil), nil
}
