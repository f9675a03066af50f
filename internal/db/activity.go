package db

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// 活动状态
const (
	ActivityStatusPlanned = "planned"
	ActivityStatusDone    = "done"
	ActivityStatusSkipped = "skipped"
)

// Activity 表示时间线上的一条具体活动，既可手工创建也可由模板生成
// 模板生成的实例携带 TemplateID/DayKey/GeneratedKey 三个关联字段，
// GeneratedKey 采用唯一索引，保证同一 (模板, 日期) 至多生成一条记录
// Planned* 字段保存模板快照，与用户可编辑的实时字段分离，
// 模板编辑只刷新快照，除非显式要求覆盖实时值
type Activity struct {
	gorm.Model
	Title            string `gorm:"not null"`
	Notes            string `gorm:"type:text"`
	StartAt          time.Time
	EndAt            *time.Time
	IsAllDay         bool
	LaneHint         string
	Status           string `gorm:"size:20;default:planned"`
	Kind             string `gorm:"size:20;default:generic"`
	WorkoutRoutineID string
	WorkoutSessionID string
	TemplateID       *string `gorm:"size:36;index"`
	DayKey           *string `gorm:"size:10"`
	GeneratedKey     *string `gorm:"size:50;uniqueIndex"`
	PlannedStartAt   *time.Time
	PlannedEndAt     *time.Time
	PlannedTitle     *string
}

// GeneratedKey 拼接模板与日期桶，作为实例的幂等键
func GeneratedKey(templateID, dayKey string) string {
	return fmt.Sprintf("%s|%s", templateID, dayKey)
}
