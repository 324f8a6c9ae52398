package packets

// REQUESTS FOR /api/*

// schedule and template bodies bind straight onto model.Schedule and
// model.Template; only query parameters live here.

type CacheQuery struct {
	MonitorID int `form:"monitor" binding:"required,min=1"`
}
