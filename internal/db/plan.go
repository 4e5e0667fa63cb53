package db

import (
	"gorm.io/gorm"
)

// PlanStatus 表示计划的整体状态
type PlanStatus string

const (
	PlanStatusDraft      PlanStatus = "draft"
	PlanStatusInProgress PlanStatus = "in_progress"
	PlanStatusComplete   PlanStatus = "complete"
	PlanStatusArchived   PlanStatus = "archived"
)

// SubtaskStatus 表示子任务的审核状态
type SubtaskStatus string

const (
	SubtaskStatusPending   SubtaskStatus = "pending"
	SubtaskStatusSubmitted SubtaskStatus = "submitted"
	SubtaskStatusApproved  SubtaskStatus = "approved"
	SubtaskStatusDenied    SubtaskStatus = "denied"
)

// Plan 定义了多日计划模型
// TotalXP 为缓存值：导入时等于蓝图总分，审批过程中改写为已获得总分
type Plan struct {
	gorm.Model
	Title           string     `gorm:"not null"`
	AssigneeUserID  uint       `gorm:"index;not null"`
	Assignee        User       `gorm:"foreignKey:AssigneeUserID"`
	CreatedByUserID *uint      `gorm:"index"`
	Status          PlanStatus `gorm:"not null;default:in_progress"`
	TotalXP         int        `gorm:"not null;default:0"`
	Days            []PlanDay  `gorm:"constraint:OnDelete:CASCADE"`
}

// PlanDay 表示计划中的一天
// DayIndex 从 0 开始，Plan + DayIndex 唯一；Locked 由前一天完成情况推导
type PlanDay struct {
	gorm.Model
	PlanID   uint      `gorm:"index;index:idx_plan_day_unique,unique;not null"`
	DayIndex int       `gorm:"index:idx_plan_day_unique,unique;not null"`
	Title    string    `gorm:"not null"`
	Locked   bool      `gorm:"not null;default:true"`
	Subtasks []Subtask `gorm:"constraint:OnDelete:CASCADE"`
}

// Subtask 表示某一天中的一个子任务
// OrderIndex 保持文档中的出现顺序，PlanDay + OrderIndex 唯一
type Subtask struct {
	gorm.Model
	PlanDayID   uint                `gorm:"index;index:idx_subtask_order_unique,unique;not null"`
	OrderIndex  int                 `gorm:"index:idx_subtask_order_unique,unique;not null"`
	Text        string              `gorm:"not null"`
	XPValue     int                 `gorm:"not null;default:10"`
	Status      SubtaskStatus       `gorm:"not null;default:pending"`
	Submissions []SubtaskSubmission `gorm:"constraint:OnDelete:CASCADE"`
	Approvals   []Approval          `gorm:"constraint:OnDelete:CASCADE"`
}
