package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dayflow/internal/db"
	"github.com/dayflow/internal/recurrence"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrTemplateNotFound 在指定模板不存在时返回
	ErrTemplateNotFound = errors.New("template not found")
	// ErrTemplateInvalid 当模板配置异常时返回
	ErrTemplateInvalid = errors.New("invalid template configuration")
)

// 时间配置边界：开始分钟取值 [0, 1439]
const maxStartMinute = 24*60 - 1

// TemplateService 负责循环活动模板的增删改查
// 循环规则以 JSON 文本持久化，读取侧统一走 DecodeOrDefault 做损坏回退
type TemplateService struct {
	db *gorm.DB
}

// TemplateFilter 描述模板列表过滤条件
type TemplateFilter struct {
	Enabled *bool
	Kind    string
	Search  string
}

// TemplateInput 定义创建/更新模板时可配置字段
type TemplateInput struct {
	Title                  string
	Notes                  string
	DefaultStartMinute     int
	DefaultDurationMinutes int
	LaneHint               string
	Kind                   string
	WorkoutRoutineID       string
	IsEnabled              bool
	Recurrence             recurrence.Rule
}

// NewTemplateService 构造 TemplateService
func NewTemplateService(gdb *gorm.DB) *TemplateService {
	return &TemplateService{db: gdb}
}

// List 返回模板集合，支持基本筛选
func (s *TemplateService) List(filter TemplateFilter) ([]db.TemplateActivity, error) {
	var templates []db.TemplateActivity

	query := s.db.Model(&db.TemplateActivity{})

	if filter.Enabled != nil {
		query = query.Where("is_enabled = ?", *filter.Enabled)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Search != "" {
		like := fmt.Sprintf("%%%s%%", strings.TrimSpace(filter.Search))
		query = query.Where("title LIKE ? OR notes LIKE ?", like, like)
	}

	if err := query.Order("created_at DESC").Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	return templates, nil
}

// Get 根据业务 ID 获取模板
func (s *TemplateService) Get(templateID string) (*db.TemplateActivity, error) {
	return findTemplate(s.db, templateID)
}

// Create 新建模板，业务 ID 由服务端生成
func (s *TemplateService) Create(input TemplateInput) (*db.TemplateActivity, error) {
	normalized, err := normalizeTemplateInput(input)
	if err != nil {
		return nil, err
	}

	blob, err := normalized.Recurrence.Encode()
	if err != nil {
		return nil, err
	}

	template := db.TemplateActivity{
		TemplateID:             uuid.NewString(),
		Title:                  normalized.Title,
		Notes:                  normalized.Notes,
		DefaultStartMinute:     normalized.DefaultStartMinute,
		DefaultDurationMinutes: normalized.DefaultDurationMinutes,
		LaneHint:               normalized.LaneHint,
		Kind:                   normalized.Kind,
		WorkoutRoutineID:       normalized.WorkoutRoutineID,
		IsEnabled:              normalized.IsEnabled,
		Recurrence:             blob,
	}

	if err := s.db.Create(&template).Error; err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	return &template, nil
}

// Update 更新模板配置
// 对已生成实例的传播由调用方通过 PreloadService 显式触发
func (s *TemplateService) Update(templateID string, input TemplateInput) (*db.TemplateActivity, error) {
	normalized, err := normalizeTemplateInput(input)
	if err != nil {
		return nil, err
	}

	existing, err := findTemplate(s.db, templateID)
	if err != nil {
		return nil, err
	}

	blob, err := normalized.Recurrence.Encode()
	if err != nil {
		return nil, err
	}

	existing.Title = normalized.Title
	existing.Notes = normalized.Notes
	existing.DefaultStartMinute = normalized.DefaultStartMinute
	existing.DefaultDurationMinutes = normalized.DefaultDurationMinutes
	existing.LaneHint = normalized.LaneHint
	existing.Kind = normalized.Kind
	existing.WorkoutRoutineID = normalized.WorkoutRoutineID
	existing.IsEnabled = normalized.IsEnabled
	existing.Recurrence = blob

	if err := s.db.Save(existing).Error; err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	return existing, nil
}

// Delete 删除模板，已生成的实例保持原样
// purgeFuture 为 true 时额外清理今天之后仍未被编辑的计划实例
func (s *TemplateService) Delete(templateID string, purgeFuture bool) error {
	template, err := findTemplate(s.db, templateID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if purgeFuture {
			if err := purgeFuturePristine(tx, template.TemplateID); err != nil {
				return err
			}
		}

		if err := tx.Where("template_id = ?", template.TemplateID).
			Delete(&db.InstanceOverride{}).Error; err != nil {
			return fmt.Errorf("delete template overrides: %w", err)
		}

		if err := tx.Delete(&db.TemplateActivity{}, template.ID).Error; err != nil {
			return fmt.Errorf("delete template: %w", err)
		}
		return nil
	})
}

// Rule 解析模板的循环规则，损坏时回退为单次规则
func (s *TemplateService) Rule(template db.TemplateActivity) recurrence.Rule {
	return recurrence.DecodeOrDefault(template.Recurrence)
}

func findTemplate(tx *gorm.DB, templateID string) (*db.TemplateActivity, error) {
	var template db.TemplateActivity
	if err := tx.Where("template_id = ?", strings.TrimSpace(templateID)).
		First(&template).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("find template: %w", err)
	}
	return &template, nil
}

func purgeFuturePristine(tx *gorm.DB, templateID string) error {
	todayKey := recurrence.DayKey(time.Now(), time.Local)

	var candidates []db.Activity
	if err := tx.Where("template_id = ? AND day_key > ? AND status = ?",
		templateID, todayKey, db.ActivityStatusPlanned).
		Find(&candidates).Error; err != nil {
		return fmt.Errorf("load future instances: %w", err)
	}

	for _, candidate := range candidates {
		if !instanceIsPristine(candidate) {
			continue
		}
		// 硬删除，释放 generated_key 供同名模板日后重新生成
		if err := tx.Unscoped().Delete(&db.Activity{}, candidate.ID).Error; err != nil {
			return fmt.Errorf("purge future instance: %w", err)
		}
	}
	return nil
}

func normalizeTemplateInput(input TemplateInput) (TemplateInput, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Notes = strings.TrimSpace(input.Notes)
	input.LaneHint = strings.TrimSpace(input.LaneHint)
	input.WorkoutRoutineID = strings.TrimSpace(input.WorkoutRoutineID)
	input.Kind = strings.TrimSpace(strings.ToLower(input.Kind))

	if input.Title == "" {
		return input, fmt.Errorf("%w: title is required", ErrTemplateInvalid)
	}
	if input.DefaultStartMinute < 0 || input.DefaultStartMinute > maxStartMinute {
		return input, fmt.Errorf("%w: start minute out of range", ErrTemplateInvalid)
	}
	if input.DefaultDurationMinutes <= 0 {
		return input, fmt.Errorf("%w: duration must be positive", ErrTemplateInvalid)
	}

	if input.Kind == "" {
		input.Kind = db.ActivityKindGeneric
	}
	if input.Kind != db.ActivityKindGeneric && input.Kind != db.ActivityKindWorkout {
		return input, fmt.Errorf("%w: unsupported kind %s", ErrTemplateInvalid, input.Kind)
	}

	rule := input.Recurrence
	switch rule.Kind {
	case recurrence.KindNone, recurrence.KindDaily, recurrence.KindWeekly:
	case "":
		rule.Kind = recurrence.KindNone
	default:
		return input, fmt.Errorf("%w: unsupported recurrence kind %s", ErrTemplateInvalid, rule.Kind)
	}

	if rule.Interval < 1 {
		rule.Interval = 1
	}

	for _, weekday := range rule.Weekdays {
		if weekday < recurrence.WeekdaySunday || weekday > recurrence.WeekdaySaturday {
			return input, fmt.Errorf("%w: weekday %d out of range", ErrTemplateInvalid, weekday)
		}
	}

	// 周规则未选星期时回退到开始日所在星期，避免永不触发的空集
	if rule.Kind == recurrence.KindWeekly && len(rule.Weekdays) == 0 {
		start := recurrence.StartOfDay(rule.StartDate, time.Local)
		rule.Weekdays = []int{recurrence.WeekdayOf(start)}
	}

	input.Recurrence = rule
	return input, nil
}
