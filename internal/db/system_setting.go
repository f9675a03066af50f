package db

import "gorm.io/gorm"

// SystemSetting 存储应用级可配置的键值对。
type SystemSetting struct {
	gorm.Model
	Key   string `gorm:"size:100;uniqueIndex;not null"`
	Value string `gorm:"type:text"`
}

// TableName 自定义表名以保持命名一致。
func (SystemSetting) TableName() string {
	return "system_settings"
}

const (
	// SettingKeyPreloadHorizonDays 表示启动与定时任务预生成的天数窗口。
	SettingKeyPreloadHorizonDays = "preload_horizon_days"
	// SettingKeyPropagationWindowDays 表示模板编辑向后传播的天数窗口。
	SettingKeyPropagationWindowDays = "propagation_window_days"
)
