package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/planboard/internal/db"
	"golang.org/x/crypto/bcrypt"
)

const sessionUserKey = "user_id"

// Login 处理管理员登录请求
func (a *API) Login(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")

	var user db.User
	if err := a.db.Where("username = ? AND is_admin = ?", username, true).First(&user).Error; err != nil {
		respondError(c, http.StatusUnauthorized, "invalid username or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		respondError(c, http.StatusUnauthorized, "invalid username or password")
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to save session")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": gin.H{"id": user.ID, "display_name": user.DisplayName}})
}

// Logout 处理管理员登出
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// AuthRequired 是一个简单的认证中间件
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if session.Get(sessionUserKey) == nil {
			respondError(c, http.StatusUnauthorized, "login required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// ImportPlan 从 markdown 文本或上传文件导入一份计划
// 文档不合法时整个导入中止，不会留下部分数据
func (a *API) ImportPlan(c *gin.Context) {
	assigneeID, err := parseOptionalUint(strings.TrimSpace(c.PostForm("assignee_user_id")))
	if err != nil || assigneeID == nil {
		respondError(c, http.StatusBadRequest, "assignee_user_id is required")
		return
	}

	markdown := c.PostForm("markdown")
	if markdown == "" {
		file, err := c.FormFile("file")
		if err != nil {
			respondError(c, http.StatusBadRequest, "provide markdown text or an uploaded file")
			return
		}
		opened, err := file.Open()
		if err != nil {
			respondError(c, http.StatusBadRequest, "unable to read uploaded file")
			return
		}
		data, err := io.ReadAll(opened)
		opened.Close()
		if err != nil {
			respondError(c, http.StatusBadRequest, "unable to read uploaded file")
			return
		}
		markdown = string(data)
	}

	var creatorID *uint
	session := sessions.Default(c)
	if sessionUserID, ok := session.Get(sessionUserKey).(uint); ok {
		creatorID = &sessionUserID
	}

	plan, err := a.plans.ImportFromMarkdown(markdown, *assigneeID, creatorID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"plan": planToPayload(plan)})
}

// ListUsers 返回在册成员，供导入与设备绑定下拉使用
func (a *API) ListUsers(c *gin.Context) {
	var users []db.User
	if err := a.db.Where("is_active = ?", true).Order("display_name ASC").Find(&users).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load users")
		return
	}

	items := make([]gin.H, 0, len(users))
	for _, user := range users {
		items = append(items, gin.H{
			"id":           user.ID,
			"display_name": user.DisplayName,
			"avatar":       user.Avatar,
		})
	}

	c.JSON(http.StatusOK, gin.H{"users": items})
}

// ListDevices 返回全部已登记设备
func (a *API) ListDevices(c *gin.Context) {
	devices, err := a.devices.List()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load devices")
		return
	}

	items := make([]gin.H, 0, len(devices))
	for i := range devices {
		items = append(items, deviceToPayload(&devices[i]))
	}

	c.JSON(http.StatusOK, gin.H{"devices": items})
}

// UpdateDevice 修改设备名称或绑定成员
func (a *API) UpdateDevice(c *gin.Context) {
	deviceID := c.Param("id")

	linkedUserID, err := parseOptionalUint(strings.TrimSpace(c.PostForm("linked_user_id")))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid linked_user_id")
		return
	}

	device, err := a.devices.Update(deviceID, c.PostForm("friendly_name"), linkedUserID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"device": deviceToPayload(device)})
}

// ListActivity 返回最近的业务事件
func (a *API) ListActivity(c *gin.Context) {
	entries, err := a.activity.Recent(100)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load activity log")
		return
	}

	items := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		items = append(items, gin.H{
			"id":          entry.ID,
			"timestamp":   entry.Timestamp,
			"action":      entry.Action,
			"entity_type": entry.EntityType,
			"entity_id":   entry.EntityID,
			"metadata":    entry.Metadata,
			"device_id":   entry.DeviceID,
			"user_id":     entry.UserID,
		})
	}

	c.JSON(http.StatusOK, gin.H{"entries": items})
}
