package db

import "time"

// XPEvent 是经验值台账中的一行，只追加不修改
// SubtaskID 为空表示完成奖励（与具体任务无关）；更正以新事件表示
type XPEvent struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"index;not null"`
	User      User
	SubtaskID *uint  `gorm:"index"`
	Delta     int    `gorm:"not null"`
	Reason    string `gorm:"not null"`
	CreatedAt time.Time
}
