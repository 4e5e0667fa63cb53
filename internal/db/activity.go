package db

import "time"

// ActivityLog 记录有业务意义的事件（导入、提交、审批、拒绝等）
// Metadata 为 JSON 编码文本，写入后不再修改
type ActivityLog struct {
	ID         uint      `gorm:"primaryKey"`
	Timestamp  time.Time `gorm:"index;not null"`
	Action     string    `gorm:"index;not null"`
	EntityType string    `gorm:"not null"`
	EntityID   uint      `gorm:"not null"`
	Metadata   string
	DeviceID   *string `gorm:"size:36"`
	UserID     *uint
	CreatedAt  time.Time
}
