package db

import "time"

// ApprovalAction 表示审核动作
type ApprovalAction string

const (
	ApprovalActionApprove ApprovalAction = "approve"
	ApprovalActionDeny    ApprovalAction = "deny"
)

// ApprovalMood 表示审核时选择的心情标签
type ApprovalMood string

const (
	ApprovalMoodHappy   ApprovalMood = "happy"
	ApprovalMoodNeutral ApprovalMood = "neutral"
	ApprovalMoodSad     ApprovalMood = "sad"
)

// ValidMood 校验心情标签是否在闭集内
func ValidMood(mood ApprovalMood) bool {
	switch mood {
	case ApprovalMoodHappy, ApprovalMoodNeutral, ApprovalMoodSad:
		return true
	}
	return false
}

// SubtaskSubmission 是一次完成申报的不可变记录
// 最新一条（按创建时间）是待审核的那条
type SubtaskSubmission struct {
	ID                  uint   `gorm:"primaryKey"`
	SubtaskID           uint   `gorm:"index;not null"`
	SubmittedByDeviceID string `gorm:"size:36;not null"`
	SubmittedByDevice   Device `gorm:"foreignKey:SubmittedByDeviceID"`
	SubmittedByUserID   *uint
	SubmittedByUser     *User `gorm:"foreignKey:SubmittedByUserID"`
	Comment             string
	PhotoPath           string
	ThumbPath           string
	CreatedAt           time.Time
}

// Approval 是审核动作的审计记录，只追加不修改
type Approval struct {
	ID              uint           `gorm:"primaryKey"`
	SubtaskID       uint           `gorm:"index;not null"`
	Action          ApprovalAction `gorm:"not null"`
	Mood            ApprovalMood   `gorm:"not null"`
	Reason          string
	ActedByDeviceID string `gorm:"size:36;not null"`
	ActedByDevice   Device `gorm:"foreignKey:ActedByDeviceID"`
	ActedByUserID   *uint
	ActedByUser     *User `gorm:"foreignKey:ActedByUserID"`
	CreatedAt       time.Time
}
