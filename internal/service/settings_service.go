package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dayflow/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// DefaultPreloadHorizonDays 是启动/定时预生成的默认窗口
	DefaultPreloadHorizonDays = 14
	// DefaultPropagationWindowDays 是模板编辑向后传播的默认窗口
	DefaultPropagationWindowDays = 60
)

// AppSettings 描述可在运行时调整的应用设置。
type AppSettings struct {
	PreloadHorizonDays    int
	PropagationWindowDays int
}

// AppSettingsInput 用于更新应用设置。
type AppSettingsInput struct {
	PreloadHorizonDays    int
	PropagationWindowDays int
}

// SettingsService 提供应用设置的读取与更新能力。
type SettingsService struct {
	db *gorm.DB
}

// NewSettingsService 构造 SettingsService。
func NewSettingsService(gdb *gorm.DB) *SettingsService {
	return &SettingsService{db: gdb}
}

var settingKeys = []string{
	db.SettingKeyPreloadHorizonDays,
	db.SettingKeyPropagationWindowDays,
}

// GetSettings 读取应用设置，如未设置将返回默认值。
func (s *SettingsService) GetSettings() (AppSettings, error) {
	result := AppSettings{
		PreloadHorizonDays:    DefaultPreloadHorizonDays,
		PropagationWindowDays: DefaultPropagationWindowDays,
	}

	var records []db.SystemSetting
	if err := s.db.Where("key IN ?", settingKeys).Find(&records).Error; err != nil {
		return result, fmt.Errorf("load settings: %w", err)
	}

	for _, record := range records {
		value, err := strconv.Atoi(strings.TrimSpace(record.Value))
		if err != nil || value < 1 {
			continue
		}
		switch record.Key {
		case db.SettingKeyPreloadHorizonDays:
			result.PreloadHorizonDays = value
		case db.SettingKeyPropagationWindowDays:
			result.PropagationWindowDays = value
		}
	}

	return result, nil
}

// UpdateSettings 保存应用设置，非法值回退默认值。
func (s *SettingsService) UpdateSettings(input AppSettingsInput) (AppSettings, error) {
	sanitized := AppSettings{
		PreloadHorizonDays:    input.PreloadHorizonDays,
		PropagationWindowDays: input.PropagationWindowDays,
	}
	if sanitized.PreloadHorizonDays < 1 {
		sanitized.PreloadHorizonDays = DefaultPreloadHorizonDays
	}
	if sanitized.PropagationWindowDays < 1 {
		sanitized.PropagationWindowDays = DefaultPropagationWindowDays
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := upsertSetting(tx, db.SettingKeyPreloadHorizonDays, strconv.Itoa(sanitized.PreloadHorizonDays)); err != nil {
			return err
		}
		if err := upsertSetting(tx, db.SettingKeyPropagationWindowDays, strconv.Itoa(sanitized.PropagationWindowDays)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return AppSettings{}, fmt.Errorf("update settings: %w", err)
	}

	return sanitized, nil
}

func upsertSetting(tx *gorm.DB, key, value string) error {
	setting := db.SystemSetting{Key: key, Value: value}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&setting).Error; err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}
