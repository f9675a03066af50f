package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dayflow/internal/db"
	"github.com/dayflow/internal/recurrence"
	"github.com/dayflow/internal/service"
	"github.com/gin-gonic/gin"
)

type recurrencePayload struct {
	Kind      string `json:"kind"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Interval  int    `json:"interval"`
	Weekdays  []int  `json:"weekdays"`
}

type templatePayload struct {
	Title                  string            `json:"title"`
	Notes                  string            `json:"notes"`
	DefaultStartMinute     int               `json:"default_start_minute"`
	DefaultDurationMinutes int               `json:"default_duration_minutes"`
	LaneHint               string            `json:"lane_hint"`
	Kind                   string            `json:"kind"`
	WorkoutRoutineID       string            `json:"workout_routine_id"`
	IsEnabled              *bool             `json:"is_enabled"`
	Recurrence             recurrencePayload `json:"recurrence"`
}

// ListTemplates 返回模板列表
func (a *API) ListTemplates(c *gin.Context) {
	filter := service.TemplateFilter{
		Kind:   c.Query("kind"),
		Search: c.Query("search"),
	}
	if raw := strings.TrimSpace(c.Query("enabled")); raw != "" {
		enabled := raw == "true" || raw == "1"
		filter.Enabled = &enabled
	}

	templates, err := a.templates.List(filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取模板列表失败")
		return
	}

	items := make([]gin.H, 0, len(templates))
	for _, template := range templates {
		items = append(items, a.templateToPayload(template))
	}

	c.JSON(http.StatusOK, gin.H{"templates": items})
}

// GetTemplate 返回单个模板详情
func (a *API) GetTemplate(c *gin.Context) {
	template, err := a.templates.Get(c.Param("id"))
	if err != nil {
		handleTemplateError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"template": a.templateToPayload(*template)})
}

// CreateTemplate 创建模板
func (a *API) CreateTemplate(c *gin.Context) {
	input, ok := parseTemplateInput(c)
	if !ok {
		return
	}

	template, err := a.templates.Create(input)
	if err != nil {
		handleTemplateError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"template": a.templateToPayload(*template)})
}

// UpdateTemplate 更新模板并把变更应用到已生成的实例
// 今日实例按 overwrite_actual 参数决定覆盖或保留用户编辑，
// 后续实例只刷新计划快照（未编辑的同步实时字段）
func (a *API) UpdateTemplate(c *gin.Context) {
	input, ok := parseTemplateInput(c)
	if !ok {
		return
	}

	template, err := a.templates.Update(c.Param("id"), input)
	if err != nil {
		handleTemplateError(c, err)
		return
	}

	overwriteActual := c.Query("overwrite_actual") == "true"
	resurrect := c.Query("resurrect") == "true"
	today := recurrence.StartOfDay(time.Now(), time.Local)

	if err := a.preload.ApplyTemplateChange(template.TemplateID, today, true, resurrect, overwriteActual); err != nil {
		respondError(c, http.StatusInternalServerError, "应用模板变更失败")
		return
	}

	settings, err := a.settings.GetSettings()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "加载应用设置失败")
		return
	}

	tomorrow := today.AddDate(0, 0, 1)
	if err := a.preload.UpdateExistingUpcomingInstances(template.TemplateID, tomorrow, settings.PropagationWindowDays); err != nil {
		respondError(c, http.StatusInternalServerError, "传播模板变更失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"template": a.templateToPayload(*template)})
}

// DeleteTemplate 删除模板，purge_future=true 时同时清理未来的未编辑实例
func (a *API) DeleteTemplate(c *gin.Context) {
	purgeFuture := c.Query("purge_future") == "true"

	if err := a.templates.Delete(c.Param("id"), purgeFuture); err != nil {
		handleTemplateError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ListTemplateOverrides 返回模板的单日例外列表
func (a *API) ListTemplateOverrides(c *gin.Context) {
	template, err := a.templates.Get(c.Param("id"))
	if err != nil {
		handleTemplateError(c, err)
		return
	}

	overrides, err := a.overrides.ListForTemplate(template.TemplateID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取例外列表失败")
		return
	}

	items := make([]gin.H, 0, len(overrides))
	for _, override := range overrides {
		items = append(items, gin.H{
			"template_id": override.TemplateID,
			"day_key":     override.DayKey,
			"action":      override.Action,
			"key":         override.Key(),
			"created_at":  override.CreatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{"overrides": items})
}

func parseTemplateInput(c *gin.Context) (service.TemplateInput, bool) {
	var payload templatePayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return service.TemplateInput{}, false
	}

	rule := recurrence.Rule{
		Kind:     recurrence.Kind(strings.TrimSpace(strings.ToLower(payload.Recurrence.Kind))),
		Interval: payload.Recurrence.Interval,
		Weekdays: payload.Recurrence.Weekdays,
	}

	if raw := strings.TrimSpace(payload.Recurrence.StartDate); raw != "" {
		start, err := recurrence.ParseDayKey(raw, time.Local)
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的开始日期")
			return service.TemplateInput{}, false
		}
		rule.StartDate = start
	}
	if raw := strings.TrimSpace(payload.Recurrence.EndDate); raw != "" {
		end, err := recurrence.ParseDayKey(raw, time.Local)
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的结束日期")
			return service.TemplateInput{}, false
		}
		rule.EndDate = &end
	}

	isEnabled := true
	if payload.IsEnabled != nil {
		isEnabled = *payload.IsEnabled
	}

	return service.TemplateInput{
		Title:                  payload.Title,
		Notes:                  payload.Notes,
		DefaultStartMinute:     payload.DefaultStartMinute,
		DefaultDurationMinutes: payload.DefaultDurationMinutes,
		LaneHint:               payload.LaneHint,
		Kind:                   payload.Kind,
		WorkoutRoutineID:       payload.WorkoutRoutineID,
		IsEnabled:              isEnabled,
		Recurrence:             rule,
	}, true
}

func (a *API) templateToPayload(template db.TemplateActivity) gin.H {
	rule := a.templates.Rule(template)

	recurrenceItem := gin.H{
		"kind":       string(rule.Kind),
		"start_date": rule.StartDate.Format(dateFormat),
		"interval":   rule.Interval,
	}
	if rule.EndDate != nil {
		recurrenceItem["end_date"] = rule.EndDate.Format(dateFormat)
	}
	if len(rule.Weekdays) > 0 {
		recurrenceItem["weekdays"] = rule.Weekdays
	}

	item := gin.H{
		"template_id":              template.TemplateID,
		"title":                    template.Title,
		"notes":                    template.Notes,
		"default_start_minute":     template.DefaultStartMinute,
		"default_duration_minutes": template.DefaultDurationMinutes,
		"lane_hint":                template.LaneHint,
		"kind":                     template.Kind,
		"is_enabled":               template.IsEnabled,
		"recurrence":               recurrenceItem,
	}
	if template.WorkoutRoutineID != "" {
		item["workout_routine_id"] = template.WorkoutRoutineID
	}
	if html := renderNotes(template.Notes); html != "" {
		item["notes_html"] = html
	}

	return item
}

func handleTemplateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTemplateNotFound):
		respondError(c, http.StatusNotFound, "模板不存在")
	case errors.Is(err, service.ErrTemplateInvalid):
		respondError(c, http.StatusBadRequest, "模板配置无效")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
