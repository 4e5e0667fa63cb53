package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User 定义了家庭成员模型
// DisplayName 用于看板展示；Username/Password 仅管理员账号填写
type User struct {
	gorm.Model
	DisplayName string `gorm:"not null"`
	Avatar      string
	IsActive    bool `gorm:"not null;default:true"`
	IsAdmin     bool `gorm:"not null;default:false"`
	Username    string
	Password    string
}

// EnsureAdmin 存在性检查：若提供的用户名与密码均非空且不存在对应账号，则创建一个 bcrypt 哈希的管理员。
func EnsureAdmin(username, password string) error {
	trimmedUser := strings.TrimSpace(username)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedUser == "" || trimmedPassword == "" {
		return nil
	}

	if DB == nil {
		return errors.New("database not initialized")
	}

	var existing User
	if err := DB.Where("username = ?", trimmedUser).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		return DB.Create(&User{
			DisplayName: trimmedUser,
			Username:    trimmedUser,
			Password:    string(hashed),
			IsActive:    true,
			IsAdmin:     true,
		}).Error
	}

	return nil
}
