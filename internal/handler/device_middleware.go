package handler

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/planboard/internal/db"
	"github.com/planboard/internal/service"
)

const (
	deviceCookieName   = "pb_device_id"
	deviceCookieMaxAge = 365 * 24 * 60 * 60
	deviceContextKey   = "__device"
)

// errInvalidActorUser 表示 user_id 字段指向了不存在或停用的成员
var errInvalidActorUser = errors.New("select a valid family member or leave the field blank")

// DeviceCookie 为每个请求解析设备身份：cookie 里有合法 ID 就加载对应
// 设备，否则登记一台新设备并重新下发 cookie。
func (a *API) DeviceCookie() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookieID, _ := c.Cookie(deviceCookieName)

		device, err := a.devices.Ensure(cookieID)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "failed to resolve device")
			c.Abort()
			return
		}

		if device.ID != cookieID {
			c.SetCookie(deviceCookieName, device.ID, deviceCookieMaxAge, "/", "", false, true)
		}

		c.Set(deviceContextKey, device)
		c.Next()
	}
}

func deviceFromContext(c *gin.Context) *db.Device {
	if value, exists := c.Get(deviceContextKey); exists {
		if device, ok := value.(*db.Device); ok {
			return device
		}
	}
	return nil
}

// resolveActor 组装操作者身份：设备来自中间件，成员优先取登录会话，
// 其次取表单/查询里的 user_id（须为在册且启用的成员）。
func (a *API) resolveActor(c *gin.Context) (service.ReviewActor, error) {
	actor := service.ReviewActor{Device: deviceFromContext(c)}

	session := sessions.Default(c)
	if sessionUserID, ok := session.Get(sessionUserKey).(uint); ok {
		var user db.User
		if err := a.db.First(&user, sessionUserID).Error; err == nil {
			actor.User = &user
			return actor, nil
		}
	}

	raw := c.PostForm("user_id")
	if raw == "" {
		raw = c.Query("user_id")
	}
	userID, err := parseOptionalUint(raw)
	if err != nil {
		return actor, errInvalidActorUser
	}
	if userID == nil {
		return actor, nil
	}

	var user db.User
	if err := a.db.Where("id = ? AND is_active = ?", *userID, true).First(&user).Error; err != nil {
		return actor, errInvalidActorUser
	}
	actor.User = &user

	return actor, nil
}
