//go:build ignore

// 初始化脚本：创建管理员账号和两个演示模板。
// 用法: go run scripts/seed.go -db dayflow.db -user admin -pass secret
package main

import (
	"flag"
	"log"
	"time"

	"github.com/dayflow/internal/db"
	"github.com/dayflow/internal/recurrence"
	"github.com/dayflow/internal/service"
)

func main() {
	dbPath := flag.String("db", "dayflow.db", "数据库文件路径")
	username := flag.String("user", "admin", "管理员用户名")
	password := flag.String("pass", "", "管理员密码")
	flag.Parse()

	gdb, err := db.Open(*dbPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	if err := db.EnsureUser(gdb, *username, *password); err != nil {
		log.Fatalf("ensure user: %v", err)
	}

	templates := service.NewTemplateService(gdb)
	today := recurrence.StartOfDay(time.Now(), time.Local)

	demos := []service.TemplateInput{
		{
			Title:                  "晨跑",
			Notes:                  "热身 5 分钟后出发",
			DefaultStartMinute:     7 * 60,
			DefaultDurationMinutes: 30,
			IsEnabled:              true,
			Recurrence: recurrence.Rule{
				Kind:      recurrence.KindDaily,
				StartDate: today,
				Interval:  1,
			},
		},
		{
			Title:                  "力量训练",
			Kind:                   db.ActivityKindWorkout,
			DefaultStartMinute:     19 * 60,
			DefaultDurationMinutes: 60,
			IsEnabled:              true,
			Recurrence: recurrence.Rule{
				Kind:      recurrence.KindWeekly,
				StartDate: today,
				Interval:  1,
				Weekdays:  []int{recurrence.WeekdayMonday, recurrence.WeekdayThursday},
			},
		},
	}

	for _, input := range demos {
		if _, err := templates.Create(input); err != nil {
			log.Fatalf("create demo template %q: %v", input.Title, err)
		}
	}

	preload := service.NewPreloadService(gdb)
	if err := preload.EnsureRangeIsPreloaded(today, service.DefaultPreloadHorizonDays); err != nil {
		log.Fatalf("preload range: %v", err)
	}

	log.Println("seed completed")
}
