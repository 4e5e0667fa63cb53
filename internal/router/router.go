package router

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/planboard/internal/handler"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, sessionSecret string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	r.Use(sessions.Sessions("planboard_session", store))

	// 每个请求都携带设备身份
	r.Use(api.DeviceCookie())

	// 静态文件服务（证据照片等）
	r.Static("/static", "./web/static")

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// 家庭看板与计划
	r.GET("/", api.GetBoard)
	r.GET("/plans/:id", api.GetPlan)
	r.GET("/plans/:id/progress", api.GetPlanProgress)
	r.POST("/subtasks/:id/submit", api.SubmitEvidence)

	// 审核队列
	r.GET("/review", api.GetReviewQueue)
	r.POST("/review/:id/approve", api.ApproveSubtask)
	r.POST("/review/:id/deny", api.DenySubtask)

	// 后台管理路由
	admin := r.Group("/admin")
	{
		admin.POST("/login", api.Login)
		admin.GET("/logout", api.Logout)

		// 需要认证的后台路由
		auth := admin.Group("")
		auth.Use(handler.AuthRequired())
		{
			auth.POST("/import", api.ImportPlan)
			auth.GET("/users", api.ListUsers)
			auth.GET("/devices", api.ListDevices)
			auth.PUT("/devices/:id", api.UpdateDevice)
			auth.GET("/activity", api.ListActivity)
		}
	}

	return r
}
