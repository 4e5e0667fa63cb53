package db

import "time"

// Device 表示一台通过 cookie 识别的家庭设备
// 主键为 UUID 字符串，由中间件在首次访问时下发
// LinkedUserID 把设备绑定到某位成员，用于审批回避检查
type Device struct {
	ID           string `gorm:"primaryKey;size:36"`
	FriendlyName string
	LinkedUserID *uint `gorm:"index"`
	LinkedUser   *User `gorm:"foreignKey:LinkedUserID"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
