package db

import (
	"gorm.io/gorm"
)

// 单日例外动作
const (
	OverrideActionSkipped = "skipped_today"
	OverrideActionDeleted = "deleted_today"
)

// InstanceOverride 记录某个模板在某一天的例外（跳过/删除）
// TemplateID + DayKey 采用唯一索引，同一 (模板, 日期) 至多一条例外
// 例外存在是抑制当日生成的唯一依据，清除例外即允许重新生成
type InstanceOverride struct {
	gorm.Model
	TemplateID string `gorm:"size:36;index;index:idx_instance_override_unique,unique;not null"`
	DayKey     string `gorm:"size:10;index:idx_instance_override_unique,unique;not null"`
	Action     string `gorm:"size:20;not null"`
}

// TableName 指定例外表名
func (InstanceOverride) TableName() string {
	return "instance_overrides"
}

// Key 返回例外的唯一字符串键，与实例的 GeneratedKey 同构
func (o InstanceOverride) Key() string {
	return GeneratedKey(o.TemplateID, o.DayKey)
}
