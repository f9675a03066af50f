package service

import (
	"errors"
	"testing"

	"github.com/dayflow/internal/db"
)

func TestOverrideServiceSetGetClear(t *testing.T) {
	gdb := setupTestDB(t)
	svc := NewOverrideService(gdb)

	override, err := svc.Set("tpl-1", "2024-01-05", db.OverrideActionSkipped)
	if err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if override.Key() != "tpl-1|2024-01-05" {
		t.Fatalf("unexpected override key: %s", override.Key())
	}

	loaded, err := svc.Get("tpl-1", "2024-01-05")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if loaded == nil || loaded.Action != db.OverrideActionSkipped {
		t.Fatalf("unexpected override: %+v", loaded)
	}

	if err := svc.Clear("tpl-1", "2024-01-05"); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}

	cleared, err := svc.Get("tpl-1", "2024-01-05")
	if err != nil {
		t.Fatalf("Get after clear returned error: %v", err)
	}
	if cleared != nil {
		t.Fatalf("expected override cleared, got %+v", cleared)
	}
}

func TestOverrideServiceUpsertLastWriteWins(t *testing.T) {
	gdb := setupTestDB(t)
	svc := NewOverrideService(gdb)

	if _, err := svc.Set("tpl-1", "2024-02-01", db.OverrideActionSkipped); err != nil {
		t.Fatalf("first Set returned error: %v", err)
	}
	if _, err := svc.Set("tpl-1", "2024-02-01", db.OverrideActionDeleted); err != nil {
		t.Fatalf("second Set returned error: %v", err)
	}

	var count int64
	if err := gdb.Model(&db.InstanceOverride{}).
		Where("template_id = ? AND day_key = ?", "tpl-1", "2024-02-01").
		Count(&count).Error; err != nil {
		t.Fatalf("count overrides: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single override row, got %d", count)
	}

	loaded, err := svc.Get("tpl-1", "2024-02-01")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if loaded.Action != db.OverrideActionDeleted {
		t.Fatalf("expected later action to win, got %s", loaded.Action)
	}
}

func TestOverrideServiceRejectsUnknownAction(t *testing.T) {
	gdb := setupTestDB(t)
	svc := NewOverrideService(gdb)

	if _, err := svc.Set("tpl-1", "2024-03-01", "postponed"); !errors.Is(err, ErrOverrideInvalidAction) {
		t.Fatalf("expected ErrOverrideInvalidAction, got %v", err)
	}
}

func TestOverrideServiceListForTemplate(t *testing.T) {
	gdb := setupTestDB(t)
	svc := NewOverrideService(gdb)

	days := []string{"2024-04-03", "2024-04-01", "2024-04-02"}
	for _, day := range days {
		if _, err := svc.Set("tpl-1", day, db.OverrideActionSkipped); err != nil {
			t.Fatalf("Set %s returned error: %v", day, err)
		}
	}
	if _, err := svc.Set("tpl-2", "2024-04-01", db.OverrideActionDeleted); err != nil {
		t.Fatalf("Set for other template returned error: %v", err)
	}

	overrides, err := svc.ListForTemplate("tpl-1")
	if err != nil {
		t.Fatalf("ListForTemplate returned error: %v", err)
	}
	if len(overrides) != 3 {
		t.Fatalf("expected 3 overrides, got %d", len(overrides))
	}
	for i := 1; i < len(overrides); i++ {
		if overrides[i-1].DayKey > overrides[i].DayKey {
			t.Fatal("expected overrides sorted by day key")
		}
	}
}
