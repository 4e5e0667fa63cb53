package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/planboard/internal/db"
	"gorm.io/gorm"
)

// ActivityService 负责写入只追加的业务事件日志
// 审批等事务内的调用需把事务句柄传给 Log，保证日志随事务一起提交或回滚
type ActivityService struct {
	db *gorm.DB
}

// NewActivityService 构造 ActivityService
func NewActivityService(gdb *gorm.DB) *ActivityService {
	return &ActivityService{db: gdb}
}

// Log 记录一条业务事件。gdb 为 nil 时使用服务自身的连接；
// metadata 为空时不落 JSON 字段。
func (s *ActivityService) Log(
	gdb *gorm.DB,
	action, entityType string,
	entityID uint,
	metadata map[string]any,
	deviceID *string,
	userID *uint,
) error {
	if gdb == nil {
		gdb = s.db
	}

	entry := db.ActivityLog{
		Timestamp:  time.Now(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		DeviceID:   deviceID,
		UserID:     userID,
	}

	if len(metadata) > 0 {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("encode activity metadata: %w", err)
		}
		entry.Metadata = string(encoded)
	}

	if err := gdb.Create(&entry).Error; err != nil {
		return fmt.Errorf("write activity log: %w", err)
	}
	return nil
}

// Recent 返回最近的业务事件，用于后台审计页
func (s *ActivityService) Recent(limit int) ([]db.ActivityLog, error) {
	if limit <= 0 {
		limit = 50
	}

	var entries []db.ActivityLog
	if err := s.db.Order("timestamp DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list activity log: %w", err)
	}
	return entries, nil
}
