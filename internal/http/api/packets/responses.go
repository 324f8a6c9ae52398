package packets

// RESPONSES FOR /api/*

import (
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/scheduling/blocks"
)

type MessageResponse struct {
	Message string `json:"message"`
}

// BulkUpdateResponse lists every schedule of the batch as persisted.
type BulkUpdateResponse struct {
	Schedules []model.Schedule `json:"schedules"`
}

type PushResponse struct {
	Monitors int `json:"monitors"`
}

// CacheResponse is the cached daily list of one monitor.
type CacheResponse struct {
	MonitorID int              `json:"monitorId"`
	Date      model.Date       `json:"date"`
	Count     int              `json:"count"`
	Schedules []model.Schedule `json:"schedules"`
}

const InvalidTemplate = "invalid_template"

type ViolationsResponse struct {
	Error      string             `json:"error"`
	Violations []blocks.Violation `json:"violations"`
}

const InvalidSchedule = "invalid_schedule"

type FieldErrorsResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}
