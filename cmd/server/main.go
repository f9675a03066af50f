package main

import (
	"log"

	"github.com/dayflow/internal/config"
	"github.com/dayflow/internal/db"
	"github.com/dayflow/internal/router"
	"github.com/dayflow/internal/scheduler"
	"github.com/dayflow/internal/service"
	"github.com/gin-gonic/gin"
)

func main() {
	conf := config.Load()
	gin.SetMode(conf.GinMode)

	// 初始化数据库
	gdb, err := db.Open(conf.DatabasePath)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	// 按环境变量补齐管理员账号
	if err := db.EnsureUser(gdb, conf.AdminUsername, conf.AdminPassword); err != nil {
		log.Fatalf("failed to ensure admin user: %v", err)
	}

	// 启动时预生成一轮，并注册每日任务
	sched := scheduler.New(service.NewPreloadService(gdb), service.NewSettingsService(gdb))
	sched.RunNow()
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(gdb, conf.SessionSecret)
	if err := r.Run(conf.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
