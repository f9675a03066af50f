package db

import (
	"gorm.io/gorm"
)

// 活动类别
const (
	ActivityKindGeneric = "generic"
	ActivityKindWorkout = "workout"
)

// TemplateActivity 定义了循环活动模板
// TemplateID 为业务层使用的 UUID，生成实例的幂等键由它派生
// Recurrence 存储 JSON 编码的循环规则，解码失败时按单次规则处理
// IsEnabled 为生成开关，停用的模板不参与任何预生成
type TemplateActivity struct {
	gorm.Model
	TemplateID             string `gorm:"size:36;uniqueIndex;not null"`
	Title                  string `gorm:"not null"`
	Notes                  string `gorm:"type:text"`
	DefaultStartMinute     int
	DefaultDurationMinutes int
	LaneHint               string
	Kind                   string `gorm:"size:20;default:generic"`
	WorkoutRoutineID       string
	IsEnabled              bool   `gorm:"default:true"`
	Recurrence             string `gorm:"type:text"`
}

// TableName 自定义表名以保持命名一致。
func (TemplateActivity) TableName() string {
	return "template_activities"
}
