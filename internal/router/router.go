package router

import (
	"github.com/dayflow/internal/handler"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(gdb *gorm.DB, sessionSecret string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	r.Use(sessions.Sessions("dayflow_session", store))

	api := handler.NewAPI(gdb)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	r.POST("/api/auth/login", api.Login)
	r.POST("/api/auth/logout", api.Logout)

	// 需要认证的 API 路由
	auth := r.Group("/api")
	auth.Use(handler.AuthRequired())
	{
		auth.GET("/templates", api.ListTemplates)
		auth.POST("/templates", api.CreateTemplate)
		auth.GET("/templates/:id", api.GetTemplate)
		auth.PUT("/templates/:id", api.UpdateTemplate)
		auth.DELETE("/templates/:id", api.DeleteTemplate)
		auth.GET("/templates/:id/overrides", api.ListTemplateOverrides)
		auth.GET("/templates/:id/state", api.GetInstanceState)
		auth.POST("/templates/:id/skip", api.SkipOccurrence)
		auth.POST("/templates/:id/delete-day", api.DeleteOccurrence)
		auth.POST("/templates/:id/resurrect", api.ResurrectOccurrence)

		auth.GET("/timeline/day", api.GetDayTimeline)
		auth.GET("/timeline/range", api.GetRangeTimeline)

		auth.GET("/activities/:id", api.GetActivity)
		auth.POST("/activities", api.CreateActivity)
		auth.PUT("/activities/:id", api.UpdateActivity)
		auth.PUT("/activities/:id/status", api.SetActivityStatus)
		auth.DELETE("/activities/:id", api.DeleteActivity)

		auth.POST("/preload/day", api.PreloadDay)
		auth.POST("/preload/range", api.PreloadRange)

		auth.GET("/settings", api.GetSettings)
		auth.PUT("/settings", api.UpdateSettings)
	}

	return r
}
