package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dayflow/internal/db"
	"github.com/dayflow/internal/recurrence"
	"gorm.io/gorm"
)

// InstanceState 是 (模板, 日期) 组合的显式派生状态
// 由例外记录与实例状态共同计算，调用方不再各自拼装布尔判断
type InstanceState string

const (
	// StateNotGenerated 规则未触发或尚未预生成
	StateNotGenerated InstanceState = "not_generated"
	// StatePristine 已生成且用户未编辑
	StatePristine InstanceState = "pristine"
	// StateEdited 已生成且实时字段被用户修改过
	StateEdited InstanceState = "edited"
	// StateCompleted 已完成，任何自动传播都不再触碰
	StateCompleted InstanceState = "completed"
	// StateSkipped 当日被跳过（存在 skipped_today 例外）
	StateSkipped InstanceState = "skipped"
	// StateDeleted 当日被删除（存在 deleted_today 例外）
	StateDeleted InstanceState = "deleted"
)

// PreloadService 即实例生成器：把模板按循环规则物化为具体日期的活动实例，
// 并在模板编辑后负责把变更传播到已生成的实例
// 所有操作在单个事务内完成，存储失败原样上抛，不在内部重试
// 幂等性由 generated_key 的唯一索引兜底：并发或重复调用不会产生重复实例
type PreloadService struct {
	db *gorm.DB
}

// NewPreloadService 构造 PreloadService
func NewPreloadService(gdb *gorm.DB) *PreloadService {
	return &PreloadService{db: gdb}
}

// EnsureDayIsPreloaded 为指定日期生成所有启用模板的实例，可安全重复调用
// 已存在实例或存在单日例外的 (模板, 日期) 组合会被跳过，用户编辑不受影响
func (s *PreloadService) EnsureDayIsPreloaded(day time.Time) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return ensureDayPreloaded(tx, day)
	})
}

// EnsureRangeIsPreloaded 自 from 起连续 days 天执行预生成，整体提交一次
func (s *PreloadService) EnsureRangeIsPreloaded(from time.Time, days int) error {
	if days < 1 {
		days = 1
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		for i := 0; i < days; i++ {
			if err := ensureDayPreloaded(tx, from.AddDate(0, 0, i)); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateExistingUpcomingInstances 把模板的最新默认值传播到 fromDay 起
// daysAhead 天内已生成的实例。只刷新 Planned* 快照；仅当实例仍处于
// 未编辑的计划态时才同步实时字段。不创建新实例，已完成实例不做任何修改。
func (s *PreloadService) UpdateExistingUpcomingInstances(templateID string, fromDay time.Time, daysAhead int) error {
	if daysAhead < 1 {
		daysAhead = 1
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		template, err := findTemplate(tx, templateID)
		if err != nil {
			return err
		}

		fromKey := recurrence.DayKey(fromDay, time.Local)
		endKey := recurrence.DayKey(fromDay.AddDate(0, 0, daysAhead), time.Local)

		var instances []db.Activity
		if err := tx.Where("template_id = ? AND day_key >= ? AND day_key < ?",
			template.TemplateID, fromKey, endKey).
			Find(&instances).Error; err != nil {
			return fmt.Errorf("load upcoming instances: %w", err)
		}

		for _, instance := range instances {
			if instance.Status == db.ActivityStatusDone {
				continue
			}
			if instance.DayKey == nil {
				continue
			}

			day, err := recurrence.ParseDayKey(*instance.DayKey, time.Local)
			if err != nil {
				return err
			}

			start, end := templateWindow(*template, day)
			pristine := instanceIsPristine(instance)

			instance.PlannedStartAt = &start
			instance.PlannedEndAt = &end
			instance.PlannedTitle = &template.Title

			if pristine {
				instance.Title = template.Title
				instance.StartAt = start
				endCopy := end
				instance.EndAt = &endCopy
				instance.LaneHint = template.LaneHint
			}

			if err := tx.Save(&instance).Error; err != nil {
				return fmt.Errorf("propagate template change: %w", err)
			}
		}
		return nil
	})
}

// ApplyTemplateChange 是模板编辑后的单日显式应用：
// resurrectIfOverridden 清除当日例外，并把跳过状态的实例恢复为 planned；
// forceForDay 补齐缺失的实例；overwriteActual 决定覆盖实时字段
// （放弃用户当日编辑）还是仅刷新快照。已完成实例不做任何修改
func (s *PreloadService) ApplyTemplateChange(templateID string, day time.Time, forceForDay, resurrectIfOverridden, overwriteActual bool) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		template, err := findTemplate(tx, templateID)
		if err != nil {
			return err
		}

		dayKey := recurrence.DayKey(day, time.Local)

		if resurrectIfOverridden {
			if err := tx.Where("template_id = ? AND day_key = ?", template.TemplateID, dayKey).
				Delete(&db.InstanceOverride{}).Error; err != nil {
				return fmt.Errorf("clear override: %w", err)
			}
		}

		if forceForDay {
			if err := ensureTemplateDay(tx, *template, day, true); err != nil {
				return err
			}
		}

		instance, err := findInstance(tx, template.TemplateID, dayKey)
		if err != nil {
			return err
		}
		if instance == nil {
			return nil
		}

		// 已完成实例是终态，单日应用与批量传播同样不触碰
		if instance.Status == db.ActivityStatusDone {
			return nil
		}

		if resurrectIfOverridden && instance.Status == db.ActivityStatusSkipped {
			instance.Status = db.ActivityStatusPlanned
		}

		start, end := templateWindow(*template, day)
		instance.PlannedStartAt = &start
		instance.PlannedEndAt = &end
		instance.PlannedTitle = &template.Title

		if overwriteActual {
			instance.Title = template.Title
			instance.StartAt = start
			endCopy := end
			instance.EndAt = &endCopy
			instance.LaneHint = template.LaneHint
		}

		if err := tx.Save(instance).Error; err != nil {
			return fmt.Errorf("apply template change: %w", err)
		}
		return nil
	})
}

// InstanceState 计算 (模板, 日期) 的派生状态
func (s *PreloadService) InstanceState(templateID string, day time.Time) (InstanceState, error) {
	dayKey := recurrence.DayKey(day, time.Local)

	override, err := findOverride(s.db, templateID, dayKey)
	if err != nil {
		return "", err
	}
	if override != nil {
		if override.Action == db.OverrideActionDeleted {
			return StateDeleted, nil
		}
		return StateSkipped, nil
	}

	instance, err := findInstance(s.db, templateID, dayKey)
	if err != nil {
		return "", err
	}
	if instance == nil {
		return StateNotGenerated, nil
	}

	switch {
	case instance.Status == db.ActivityStatusDone:
		return StateCompleted, nil
	case instance.Status == db.ActivityStatusSkipped:
		return StateSkipped, nil
	case instanceIsPristine(*instance):
		return StatePristine, nil
	default:
		return StateEdited, nil
	}
}

func ensureDayPreloaded(tx *gorm.DB, day time.Time) error {
	var templates []db.TemplateActivity
	if err := tx.Where("is_enabled = ?", true).Find(&templates).Error; err != nil {
		return fmt.Errorf("load enabled templates: %w", err)
	}

	for _, template := range templates {
		if err := ensureTemplateDay(tx, template, day, false); err != nil {
			return err
		}
	}
	return nil
}

// ensureTemplateDay 对单个模板执行当日生成
// ignoreOverride 为 true 时无视单日例外（模板编辑后的强制补齐路径）
func ensureTemplateDay(tx *gorm.DB, template db.TemplateActivity, day time.Time, ignoreOverride bool) error {
	if !template.IsEnabled {
		return nil
	}

	rule := recurrence.DecodeOrDefault(template.Recurrence)
	if !rule.Matches(day, time.Local) {
		return nil
	}

	dayKey := recurrence.DayKey(day, time.Local)

	if !ignoreOverride {
		override, err := findOverride(tx, template.TemplateID, dayKey)
		if err != nil {
			return err
		}
		if override != nil {
			return nil
		}
	}

	generatedKey := db.GeneratedKey(template.TemplateID, dayKey)

	var count int64
	if err := tx.Model(&db.Activity{}).
		Where("generated_key = ?", generatedKey).
		Count(&count).Error; err != nil {
		return fmt.Errorf("check existing instance: %w", err)
	}
	if count > 0 {
		return nil
	}

	start, end := templateWindow(template, day)
	templateID := template.TemplateID
	instance := db.Activity{
		Title:            template.Title,
		Notes:            template.Notes,
		StartAt:          start,
		EndAt:            &end,
		LaneHint:         template.LaneHint,
		Status:           db.ActivityStatusPlanned,
		Kind:             template.Kind,
		WorkoutRoutineID: template.WorkoutRoutineID,
		TemplateID:       &templateID,
		DayKey:           &dayKey,
		GeneratedKey:     &generatedKey,
		PlannedStartAt:   &start,
		PlannedEndAt:     &end,
		PlannedTitle:     &template.Title,
	}

	if err := tx.Create(&instance).Error; err != nil {
		// 唯一键冲突说明实例已被并发生成，按已物化处理
		if isDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("create instance: %w", err)
	}
	return nil
}

// templateWindow 由模板默认值推算指定日期的起止时间
func templateWindow(template db.TemplateActivity, day time.Time) (time.Time, time.Time) {
	start := recurrence.StartOfDay(day, time.Local).
		Add(time.Duration(template.DefaultStartMinute) * time.Minute)
	end := start.Add(time.Duration(template.DefaultDurationMinutes) * time.Minute)
	return start, end
}

// instanceIsPristine 判断实例是否仍与模板快照一致（用户未编辑）
// 任何实时字段偏离快照、或状态离开 planned，都视为已编辑
func instanceIsPristine(instance db.Activity) bool {
	if instance.Status != db.ActivityStatusPlanned {
		return false
	}
	if instance.PlannedStartAt == nil || instance.PlannedTitle == nil {
		return false
	}
	if instance.Title != *instance.PlannedTitle {
		return false
	}
	if !instance.StartAt.Equal(*instance.PlannedStartAt) {
		return false
	}
	if (instance.EndAt == nil) != (instance.PlannedEndAt == nil) {
		return false
	}
	if instance.EndAt != nil && !instance.EndAt.Equal(*instance.PlannedEndAt) {
		return false
	}
	return true
}

func findInstance(tx *gorm.DB, templateID, dayKey string) (*db.Activity, error) {
	generatedKey := db.GeneratedKey(templateID, dayKey)

	var instance db.Activity
	if err := tx.Where("generated_key = ?", generatedKey).First(&instance).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find instance: %w", err)
	}
	return &instance, nil
}

func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
