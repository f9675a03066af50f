package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dayflow/internal/db"
	"github.com/dayflow/internal/service"
	"github.com/gin-gonic/gin"
)

type activityPayload struct {
	Title            string `json:"title"`
	Notes            string `json:"notes"`
	StartAt          string `json:"start_at"`
	EndAt            string `json:"end_at"`
	IsAllDay         bool   `json:"is_all_day"`
	LaneHint         string `json:"lane_hint"`
	Kind             string `json:"kind"`
	WorkoutRoutineID string `json:"workout_routine_id"`
	WorkoutSessionID string `json:"workout_session_id"`
}

// GetDayTimeline 返回指定自然日的活动时间线
func (a *API) GetDayTimeline(c *gin.Context) {
	day, ok := parseDayQuery(c.Query("date"))
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的日期")
		return
	}

	activities, err := a.activities.ListDay(day)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取活动列表失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":       day.Format(dateFormat),
		"activities": serializeActivities(activities),
	})
}

// GetRangeTimeline 返回日期区间 [start, end] 内的活动
func (a *API) GetRangeTimeline(c *gin.Context) {
	start, ok := parseDayQuery(c.Query("start"))
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的开始日期")
		return
	}
	end, ok := parseDayQuery(c.Query("end"))
	if !ok || end.Before(start) {
		respondError(c, http.StatusBadRequest, "无效的结束日期")
		return
	}

	activities, err := a.activities.ListRange(start, end.AddDate(0, 0, 1))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取活动列表失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"start":      start.Format(dateFormat),
		"end":        end.Format(dateFormat),
		"activities": serializeActivities(activities),
	})
}

// GetActivity 返回单个活动详情
func (a *API) GetActivity(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的活动ID")
		return
	}

	activity, err := a.activities.Get(id)
	if err != nil {
		handleActivityError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"activity": serializeActivity(*activity)})
}

// CreateActivity 创建一条临时活动
func (a *API) CreateActivity(c *gin.Context) {
	input, ok := parseActivityInput(c)
	if !ok {
		return
	}

	activity, err := a.activities.Create(input)
	if err != nil {
		handleActivityError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"activity": serializeActivity(*activity)})
}

// UpdateActivity 更新活动的实时字段（对生成实例即用户编辑）
func (a *API) UpdateActivity(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的活动ID")
		return
	}

	input, ok := parseActivityInput(c)
	if !ok {
		return
	}

	activity, err := a.activities.UpdateLive(id, input)
	if err != nil {
		handleActivityError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"activity": serializeActivity(*activity)})
}

// SetActivityStatus 更新活动状态
func (a *API) SetActivityStatus(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的活动ID")
		return
	}

	var payload struct {
		Status string `json:"status"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	activity, err := a.activities.SetStatus(id, payload.Status)
	if err != nil {
		handleActivityError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"activity": serializeActivity(*activity)})
}

// DeleteActivity 删除一条活动记录
func (a *API) DeleteActivity(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的活动ID")
		return
	}

	if err := a.activities.Delete(id); err != nil {
		respondError(c, http.StatusInternalServerError, "删除活动失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// SkipOccurrence 跳过模板当日实例（写入 skipped_today 例外）
func (a *API) SkipOccurrence(c *gin.Context) {
	a.occurrenceAction(c, func(templateID string, day time.Time) error {
		return a.activities.SkipOccurrence(templateID, day)
	})
}

// DeleteOccurrence 删除模板当日实例（写入 deleted_today 例外）
func (a *API) DeleteOccurrence(c *gin.Context) {
	a.occurrenceAction(c, func(templateID string, day time.Time) error {
		return a.activities.DeleteOccurrence(templateID, day)
	})
}

// ResurrectOccurrence 清除当日例外并立即补齐实例
func (a *API) ResurrectOccurrence(c *gin.Context) {
	a.occurrenceAction(c, func(templateID string, day time.Time) error {
		return a.preload.ApplyTemplateChange(templateID, day, true, true, false)
	})
}

func (a *API) occurrenceAction(c *gin.Context, action func(templateID string, day time.Time) error) {
	template, err := a.templates.Get(c.Param("id"))
	if err != nil {
		handleTemplateError(c, err)
		return
	}

	var payload struct {
		Date string `json:"date"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	day, ok := parseDayQuery(payload.Date)
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的日期")
		return
	}

	if err := action(template.TemplateID, day); err != nil {
		respondError(c, http.StatusInternalServerError, "操作失败")
		return
	}

	state, err := a.preload.InstanceState(template.TemplateID, day)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "读取实例状态失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"template_id": template.TemplateID,
		"date":        day.Format(dateFormat),
		"state":       string(state),
	})
}

func parseActivityInput(c *gin.Context) (service.ActivityInput, bool) {
	var payload activityPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return service.ActivityInput{}, false
	}

	startAt, err := time.ParseInLocation(time.RFC3339, strings.TrimSpace(payload.StartAt), time.Local)
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的开始时间")
		return service.ActivityInput{}, false
	}

	var endAt *time.Time
	if raw := strings.TrimSpace(payload.EndAt); raw != "" {
		parsed, err := time.ParseInLocation(time.RFC3339, raw, time.Local)
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的结束时间")
			return service.ActivityInput{}, false
		}
		endAt = &parsed
	}

	return service.ActivityInput{
		Title:            payload.Title,
		Notes:            payload.Notes,
		StartAt:          startAt,
		EndAt:            endAt,
		IsAllDay:         payload.IsAllDay,
		LaneHint:         payload.LaneHint,
		Kind:             payload.Kind,
		WorkoutRoutineID: payload.WorkoutRoutineID,
		WorkoutSessionID: payload.WorkoutSessionID,
	}, true
}

func serializeActivities(activities []db.Activity) []gin.H {
	items := make([]gin.H, 0, len(activities))
	for _, activity := range activities {
		items = append(items, serializeActivity(activity))
	}
	return items
}

func serializeActivity(activity db.Activity) gin.H {
	item := gin.H{
		"id":         activity.ID,
		"title":      activity.Title,
		"notes":      activity.Notes,
		"start_at":   activity.StartAt.Format(time.RFC3339),
		"is_all_day": activity.IsAllDay,
		"lane_hint":  activity.LaneHint,
		"status":     activity.Status,
		"kind":       activity.Kind,
	}

	if activity.EndAt != nil {
		item["end_at"] = activity.EndAt.Format(time.RFC3339)
	}
	if activity.WorkoutRoutineID != "" {
		item["workout_routine_id"] = activity.WorkoutRoutineID
	}
	if activity.WorkoutSessionID != "" {
		item["workout_session_id"] = activity.WorkoutSessionID
	}
	if activity.TemplateID != nil {
		item["template_id"] = *activity.TemplateID
	}
	if activity.DayKey != nil {
		item["day_key"] = *activity.DayKey
	}
	if activity.GeneratedKey != nil {
		item["generated_key"] = *activity.GeneratedKey
	}
	if activity.PlannedStartAt != nil {
		item["planned_start_at"] = activity.PlannedStartAt.Format(time.RFC3339)
	}
	if activity.PlannedEndAt != nil {
		item["planned_end_at"] = activity.PlannedEndAt.Format(time.RFC3339)
	}
	if activity.PlannedTitle != nil {
		item["planned_title"] = *activity.PlannedTitle
	}
	if html := renderNotes(activity.Notes); html != "" {
		item["notes_html"] = html
	}

	return item
}

func handleActivityError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrActivityNotFound):
		respondError(c, http.StatusNotFound, "活动不存在")
	case errors.Is(err, service.ErrActivityInvalid):
		respondError(c, http.StatusBadRequest, "活动参数无效")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
