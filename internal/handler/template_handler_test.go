package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dayflow/internal/db"
	"github.com/dayflow/internal/recurrence"
	"github.com/dayflow/internal/service"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestAPI(t *testing.T) (*API, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return NewAPI(gdb), func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCreateTemplateAndGet(t *testing.T) {
	api, cleanup := setupTestAPI(t)
	defer cleanup()

	payload := map[string]any{
		"title":                    "晨跑",
		"notes":                    "**热身** 后出发",
		"default_start_minute":     420,
		"default_duration_minutes": 30,
		"recurrence": map[string]any{
			"kind":       "daily",
			"start_date": "2024-01-01",
			"interval":   1,
		},
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/templates", payload)

	api.CreateTemplate(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var created struct {
		Template struct {
			TemplateID string `json:"template_id"`
			NotesHTML  string `json:"notes_html"`
			Recurrence struct {
				Kind string `json:"kind"`
			} `json:"recurrence"`
		} `json:"template"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.Template.TemplateID == "" {
		t.Fatal("expected template_id in response")
	}
	if created.Template.Recurrence.Kind != "daily" {
		t.Fatalf("unexpected recurrence kind: %s", created.Template.Recurrence.Kind)
	}
	if created.Template.NotesHTML == "" {
		t.Fatal("expected rendered notes_html in response")
	}

	w2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(w2)
	c2.Request = httptest.NewRequest(http.MethodGet, "/api/templates/"+created.Template.TemplateID, nil)
	c2.Params = gin.Params{gin.Param{Key: "id", Value: created.Template.TemplateID}}

	api.GetTemplate(c2)

	if w2.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w2.Code)
	}
}

func TestCreateTemplateRejectsMissingTitle(t *testing.T) {
	api, cleanup := setupTestAPI(t)
	defer cleanup()

	payload := map[string]any{
		"title":                    "",
		"default_start_minute":     420,
		"default_duration_minutes": 30,
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/templates", payload)

	api.CreateTemplate(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestGetDayTimelineRejectsBadDate(t *testing.T) {
	api, cleanup := setupTestAPI(t)
	defer cleanup()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/timeline/day?date=garbage", nil)

	api.GetDayTimeline(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestSkipOccurrenceReturnsDerivedState(t *testing.T) {
	api, cleanup := setupTestAPI(t)
	defer cleanup()

	templates := service.NewTemplateService(api.DB())
	template, err := templates.Create(service.TemplateInput{
		Title:                  "冥想",
		DefaultStartMinute:     480,
		DefaultDurationMinutes: 15,
		IsEnabled:              true,
		Recurrence: recurrence.Rule{
			Kind:      recurrence.KindDaily,
			StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local),
			Interval:  1,
		},
	})
	if err != nil {
		t.Fatalf("failed to seed template: %v", err)
	}

	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.Local)
	if err := service.NewPreloadService(api.DB()).EnsureDayIsPreloaded(day); err != nil {
		t.Fatalf("failed to preload: %v", err)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(t, http.MethodPost, "/api/templates/"+template.TemplateID+"/skip",
		map[string]any{"date": "2024-01-10"})
	c.Params = gin.Params{gin.Param{Key: "id", Value: template.TemplateID}}

	api.SkipOccurrence(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.State != "skipped" {
		t.Fatalf("expected skipped state, got %q", resp.State)
	}
}
