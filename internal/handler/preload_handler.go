package handler

import (
	"net/http"

	"github.com/dayflow/internal/service"
	"github.com/gin-gonic/gin"
)

// PreloadDay 对指定日期执行一次预生成，可安全重复调用
func (a *API) PreloadDay(c *gin.Context) {
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

	if err := a.preload.EnsureDayIsPreloaded(day); err != nil {
		respondError(c, http.StatusInternalServerError, "预生成失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"date": day.Format(dateFormat), "preloaded": true})
}

// PreloadRange 自指定日期起执行连续多日的预生成
// days 缺省时采用设置中的预生成窗口
func (a *API) PreloadRange(c *gin.Context) {
	var payload struct {
		From string `json:"from"`
		Days int    `json:"days"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	from, ok := parseDayQuery(payload.From)
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的开始日期")
		return
	}

	days := payload.Days
	if days < 1 {
		settings, err := a.settings.GetSettings()
		if err != nil {
			respondError(c, http.StatusInternalServerError, "加载应用设置失败")
			return
		}
		days = settings.PreloadHorizonDays
	}

	if err := a.preload.EnsureRangeIsPreloaded(from, days); err != nil {
		respondError(c, http.StatusInternalServerError, "预生成失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"from":      from.Format(dateFormat),
		"days":      days,
		"preloaded": true,
	})
}

// GetInstanceState 返回 (模板, 日期) 的派生状态
func (a *API) GetInstanceState(c *gin.Context) {
	template, err := a.templates.Get(c.Param("id"))
	if err != nil {
		handleTemplateError(c, err)
		return
	}

	day, ok := parseDayQuery(c.Query("date"))
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的日期")
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

// GetSettings 返回应用设置
func (a *API) GetSettings(c *gin.Context) {
	settings, err := a.settings.GetSettings()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "加载应用设置失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"preload_horizon_days":    settings.PreloadHorizonDays,
		"propagation_window_days": settings.PropagationWindowDays,
	})
}

// UpdateSettings 更新应用设置
func (a *API) UpdateSettings(c *gin.Context) {
	var payload struct {
		PreloadHorizonDays    int `json:"preload_horizon_days"`
		PropagationWindowDays int `json:"propagation_window_days"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	settings, err := a.settings.UpdateSettings(service.AppSettingsInput{
		PreloadHorizonDays:    payload.PreloadHorizonDays,
		PropagationWindowDays: payload.PropagationWindowDays,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "保存应用设置失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"preload_horizon_days":    settings.PreloadHorizonDays,
		"propagation_window_days": settings.PropagationWindowDays,
	})
}
