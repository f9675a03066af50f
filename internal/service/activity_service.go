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

var (
	// ErrActivityNotFound 在指定活动不存在时返回
	ErrActivityNotFound = errors.New("activity not found")
	// ErrActivityInvalid 当活动输入不合法时返回
	ErrActivityInvalid = errors.New("invalid activity input")
)

// ActivityService 负责时间线活动的读写
// 生成实例的当日跳过/删除通过单日例外表达，不直接触碰模板
type ActivityService struct {
	db *gorm.DB
}

// ActivityInput 定义创建/编辑活动时可配置字段
type ActivityInput struct {
	Title            string
	Notes            string
	StartAt          time.Time
	EndAt            *time.Time
	IsAllDay         bool
	LaneHint         string
	Kind             string
	WorkoutRoutineID string
	WorkoutSessionID string
}

// NewActivityService 构造 ActivityService
func NewActivityService(gdb *gorm.DB) *ActivityService {
	return &ActivityService{db: gdb}
}

// Create 新建一条非模板的临时活动
func (s *ActivityService) Create(input ActivityInput) (*db.Activity, error) {
	normalized, err := normalizeActivityInput(input)
	if err != nil {
		return nil, err
	}

	activity := db.Activity{
		Title:            normalized.Title,
		Notes:            normalized.Notes,
		StartAt:          normalized.StartAt,
		EndAt:            normalized.EndAt,
		IsAllDay:         normalized.IsAllDay,
		LaneHint:         normalized.LaneHint,
		Status:           db.ActivityStatusPlanned,
		Kind:             normalized.Kind,
		WorkoutRoutineID: normalized.WorkoutRoutineID,
		WorkoutSessionID: normalized.WorkoutSessionID,
	}

	if err := s.db.Create(&activity).Error; err != nil {
		return nil, fmt.Errorf("create activity: %w", err)
	}
	return &activity, nil
}

// Get 根据 ID 获取活动
func (s *ActivityService) Get(id uint) (*db.Activity, error) {
	var activity db.Activity
	if err := s.db.First(&activity, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return &activity, nil
}

// ListDay 返回指定自然日内的活动，按开始时间排序
func (s *ActivityService) ListDay(day time.Time) ([]db.Activity, error) {
	start := recurrence.StartOfDay(day, time.Local)
	return s.ListRange(start, start.AddDate(0, 0, 1))
}

// ListRange 返回 [from, to) 区间内的活动
func (s *ActivityService) ListRange(from, to time.Time) ([]db.Activity, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end before start", ErrActivityInvalid)
	}

	var activities []db.Activity
	if err := s.db.Where("start_at >= ? AND start_at < ?", from, to).
		Order("start_at ASC, id ASC").
		Find(&activities).Error; err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return activities, nil
}

// UpdateLive 更新活动的实时字段
// 对生成实例而言这意味着用户编辑：Planned* 快照保持不变，自动传播从此不再覆盖实时值
func (s *ActivityService) UpdateLive(id uint, input ActivityInput) (*db.Activity, error) {
	normalized, err := normalizeActivityInput(input)
	if err != nil {
		return nil, err
	}

	activity, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	activity.Title = normalized.Title
	activity.Notes = normalized.Notes
	activity.StartAt = normalized.StartAt
	activity.EndAt = normalized.EndAt
	activity.IsAllDay = normalized.IsAllDay
	activity.LaneHint = normalized.LaneHint
	activity.Kind = normalized.Kind
	activity.WorkoutRoutineID = normalized.WorkoutRoutineID
	activity.WorkoutSessionID = normalized.WorkoutSessionID

	if err := s.db.Save(activity).Error; err != nil {
		return nil, fmt.Errorf("update activity: %w", err)
	}
	return activity, nil
}

// SetStatus 更新活动状态（planned/done/skipped）
func (s *ActivityService) SetStatus(id uint, status string) (*db.Activity, error) {
	status = strings.TrimSpace(strings.ToLower(status))
	if status != db.ActivityStatusPlanned && status != db.ActivityStatusDone && status != db.ActivityStatusSkipped {
		return nil, fmt.Errorf("%w: unsupported status %s", ErrActivityInvalid, status)
	}

	activity, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	activity.Status = status
	if err := s.db.Save(activity).Error; err != nil {
		return nil, fmt.Errorf("update activity status: %w", err)
	}
	return activity, nil
}

// Delete 删除一条活动记录本身，不写入任何例外
// 生成实例的"当日删除"语义请使用 DeleteOccurrence
func (s *ActivityService) Delete(id uint) error {
	if err := s.db.Delete(&db.Activity{}, id).Error; err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	return nil
}

// SkipOccurrence 跳过模板当日的实例：写入 skipped_today 例外，
// 已生成的实例标记为 skipped 但保留在时间线上
func (s *ActivityService) SkipOccurrence(templateID string, day time.Time) error {
	dayKey := recurrence.DayKey(day, time.Local)

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := upsertOverride(tx, templateID, dayKey, db.OverrideActionSkipped); err != nil {
			return err
		}

		instance, err := findInstance(tx, templateID, dayKey)
		if err != nil {
			return err
		}
		if instance == nil {
			return nil
		}

		instance.Status = db.ActivityStatusSkipped
		if err := tx.Save(instance).Error; err != nil {
			return fmt.Errorf("mark instance skipped: %w", err)
		}
		return nil
	})
}

// DeleteOccurrence 删除模板当日的实例：写入 deleted_today 例外并移除实例记录
func (s *ActivityService) DeleteOccurrence(templateID string, day time.Time) error {
	dayKey := recurrence.DayKey(day, time.Local)

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := upsertOverride(tx, templateID, dayKey, db.OverrideActionDeleted); err != nil {
			return err
		}

		instance, err := findInstance(tx, templateID, dayKey)
		if err != nil {
			return err
		}
		if instance == nil {
			return nil
		}

		// 硬删除，软删除的行会占用 generated_key 唯一索引，阻断之后的复活
		if err := tx.Unscoped().Delete(&db.Activity{}, instance.ID).Error; err != nil {
			return fmt.Errorf("delete instance: %w", err)
		}
		return nil
	})
}

func normalizeActivityInput(input ActivityInput) (ActivityInput, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Notes = strings.TrimSpace(input.Notes)
	input.LaneHint = strings.TrimSpace(input.LaneHint)
	input.Kind = strings.TrimSpace(strings.ToLower(input.Kind))
	input.WorkoutRoutineID = strings.TrimSpace(input.WorkoutRoutineID)
	input.WorkoutSessionID = strings.TrimSpace(input.WorkoutSessionID)

	if input.Title == "" {
		return input, fmt.Errorf("%w: title is required", ErrActivityInvalid)
	}
	if input.StartAt.IsZero() {
		return input, fmt.Errorf("%w: start time is required", ErrActivityInvalid)
	}
	if input.EndAt != nil && input.EndAt.Before(input.StartAt) {
		return input, fmt.Errorf("%w: end before start", ErrActivityInvalid)
	}

	if input.Kind == "" {
		input.Kind = db.ActivityKindGeneric
	}
	if input.Kind != db.ActivityKindGeneric && input.Kind != db.ActivityKindWorkout {
		return input, fmt.Errorf("%w: unsupported kind %s", ErrActivityInvalid, input.Kind)
	}

	return input, nil
}
