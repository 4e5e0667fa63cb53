package handler

import (
	"github.com/planboard/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db       *gorm.DB
	plans    *service.PlanService
	reviews  *service.ReviewService
	devices  *service.DeviceService
	activity *service.ActivityService
	images   *service.ImageService
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, uploadDir, uploadURL string) *API {
	activity := service.NewActivityService(gdb)

	return &API{
		db:       gdb,
		plans:    service.NewPlanService(gdb, activity),
		reviews:  service.NewReviewService(gdb, activity),
		devices:  service.NewDeviceService(gdb),
		activity: activity,
		images:   service.NewImageService(uploadDir, uploadURL),
	}
}

// DB exposes the underlying gorm instance for legacy paths.
func (a *API) DB() *gorm.DB {
	return a.db
}
