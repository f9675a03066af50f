package handler

import (
	"github.com/dayflow/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db         *gorm.DB
	templates  *service.TemplateService
	activities *service.ActivityService
	overrides  *service.OverrideService
	preload    *service.PreloadService
	settings   *service.SettingsService
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB) *API {
	return &API{
		db:         gdb,
		templates:  service.NewTemplateService(gdb),
		activities: service.NewActivityService(gdb),
		overrides:  service.NewOverrideService(gdb),
		preload:    service.NewPreloadService(gdb),
		settings:   service.NewSettingsService(gdb),
	}
}

// DB exposes the underlying gorm instance for seeding paths.
func (a *API) DB() *gorm.DB {
	return a.db
}
