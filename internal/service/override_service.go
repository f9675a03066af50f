package service

import (
	"errors"
	"fmt"

	"github.com/dayflow/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrOverrideInvalidAction 当例外动作不在允许范围内时返回
var ErrOverrideInvalidAction = errors.New("invalid override action")

// OverrideService 负责单日例外的读写
// 例外是抑制 (模板, 日期) 生成的唯一依据，唯一索引保证同一组合至多一条
type OverrideService struct {
	db *gorm.DB
}

// NewOverrideService 构造 OverrideService
func NewOverrideService(gdb *gorm.DB) *OverrideService {
	return &OverrideService{db: gdb}
}

// Get 查询指定 (模板, 日期) 的例外，不存在时返回 nil
func (s *OverrideService) Get(templateID, dayKey string) (*db.InstanceOverride, error) {
	return findOverride(s.db, templateID, dayKey)
}

// Set 写入例外，已存在时更新动作（后写覆盖先写）
func (s *OverrideService) Set(templateID, dayKey, action string) (*db.InstanceOverride, error) {
	if action != db.OverrideActionSkipped && action != db.OverrideActionDeleted {
		return nil, fmt.Errorf("%w: %s", ErrOverrideInvalidAction, action)
	}

	if err := upsertOverride(s.db, templateID, dayKey, action); err != nil {
		return nil, err
	}

	return findOverride(s.db, templateID, dayKey)
}

// Clear 清除例外，使模板在下一次预生成时重新具备生成资格
func (s *OverrideService) Clear(templateID, dayKey string) error {
	if err := s.db.Where("template_id = ? AND day_key = ?", templateID, dayKey).
		Delete(&db.InstanceOverride{}).Error; err != nil {
		return fmt.Errorf("clear override: %w", err)
	}
	return nil
}

// ListForTemplate 返回模板的全部例外，按日期排序
func (s *OverrideService) ListForTemplate(templateID string) ([]db.InstanceOverride, error) {
	var overrides []db.InstanceOverride
	if err := s.db.Where("template_id = ?", templateID).
		Order("day_key ASC").
		Find(&overrides).Error; err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	return overrides, nil
}

func findOverride(tx *gorm.DB, templateID, dayKey string) (*db.InstanceOverride, error) {
	var override db.InstanceOverride
	if err := tx.Where("template_id = ? AND day_key = ?", templateID, dayKey).
		First(&override).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get override: %w", err)
	}
	return &override, nil
}

func upsertOverride(tx *gorm.DB, templateID, dayKey, action string) error {
	record := db.InstanceOverride{
		TemplateID: templateID,
		DayKey:     dayKey,
		Action:     action,
	}

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "template_id"}, {Name: "day_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"action", "updated_at"}),
	}).Create(&record).Error; err != nil {
		return fmt.Errorf("upsert override: %w", err)
	}
	return nil
}
