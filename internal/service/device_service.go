package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/planboard/internal/db"
	"gorm.io/gorm"
)

// ErrDeviceNotFound 在指定设备不存在时返回
var ErrDeviceNotFound = errors.New("device not found")

// DeviceService 负责家庭设备的登记、改名与成员绑定
type DeviceService struct {
	db *gorm.DB
}

// NewDeviceService 构造 DeviceService
func NewDeviceService(gdb *gorm.DB) *DeviceService {
	return &DeviceService{db: gdb}
}

// Ensure 按 cookie 中的 ID 取设备；ID 为空或不合法时登记一台新设备。
// 返回的设备带有绑定成员信息。
func (s *DeviceService) Ensure(id string) (*db.Device, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed != "" {
		if _, err := uuid.Parse(trimmed); err != nil {
			trimmed = ""
		}
	}

	if trimmed != "" {
		var device db.Device
		err := s.db.Preload("LinkedUser").First(&device, "id = ?", trimmed).Error
		if err == nil {
			return &device, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load device: %w", err)
		}
	}

	device := db.Device{ID: uuid.New().String()}
	if err := s.db.Create(&device).Error; err != nil {
		return nil, fmt.Errorf("register device: %w", err)
	}
	return &device, nil
}

// Get 按 ID 取设备
func (s *DeviceService) Get(id string) (*db.Device, error) {
	var device db.Device
	if err := s.db.Preload("LinkedUser").First(&device, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("get device: %w", err)
	}
	return &device, nil
}

// List 返回全部设备，按创建时间倒序
func (s *DeviceService) List() ([]db.Device, error) {
	var devices []db.Device
	if err := s.db.Preload("LinkedUser").Order("created_at DESC").Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

// Update 修改设备的名称与绑定成员。linkedUserID 为 nil 时解除绑定。
func (s *DeviceService) Update(id, friendlyName string, linkedUserID *uint) (*db.Device, error) {
	device, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if linkedUserID != nil {
		var user db.User
		if err := s.db.Where("id = ? AND is_active = ?", *linkedUserID, true).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, validationErrorf("linked user %d not found or inactive", *linkedUserID)
			}
			return nil, fmt.Errorf("load linked user: %w", err)
		}
	}

	device.FriendlyName = strings.TrimSpace(friendlyName)
	device.LinkedUserID = linkedUserID
	if err := s.db.Model(&db.Device{}).Where("id = ?", device.ID).
		Updates(map[string]any{
			"friendly_name":  device.FriendlyName,
			"linked_user_id": device.LinkedUserID,
		}).Error; err != nil {
		return nil, fmt.Errorf("update device: %w", err)
	}

	return s.Get(device.ID)
}

// Label 返回设备的展示名称
func Label(device *db.Device) string {
	if device == nil {
		return ""
	}
	if device.FriendlyName != "" {
		return device.FriendlyName
	}
	return "Device " + device.ID[:8]
}
