package endpoints

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/http/api"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api/packets"
)

type CacheController struct {
	*Deps
}

func CacheModule(d *Deps) api.Module {
	ctl := &CacheController{Deps: d}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/cache/schedules", ctl.getSchedules)
	})
}

// getSchedules serves a monitor's cached list for today. A cold cache is
// rebuilt once before giving up.
func (c *CacheController) getSchedules(ctx *gin.Context) (any, *api.APIError) {
	if c.Cache == nil || c.Refresher == nil {
		return nil, &api.APIError{Code: http.StatusServiceUnavailable, Message: "schedule cache is disabled"}
	}
	var q packets.CacheQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		return nil, api.BadRequest("monitor query parameter is required")
	}

	day := c.Refresher.Today()
	rctx := ctx.Request.Context()
	entry, ok, err := c.Cache.Get(rctx, day, q.MonitorID)
	if err == nil && !ok {
		if _, err = c.Refresher.Refresh(rctx); err == nil {
			entry, ok, err = c.Cache.Get(rctx, day, q.MonitorID)
		}
	}
	if err != nil {
		log.Error().Err(err).Int("monitor_id", q.MonitorID).Msg("failed to read schedule cache")
		return nil, api.Internal("failed to read schedule cache")
	}
	if !ok {
		return nil, api.NotFound("monitor not found")
	}

	if entry.ETag != "" {
		ctx.Header("ETag", entry.ETag)
		if ctx.GetHeader("If-None-Match") == entry.ETag || ctx.GetHeader("X-If-None-Match") == entry.ETag {
			ctx.AbortWithStatus(http.StatusNotModified)
			return nil, nil
		}
	}
	return packets.CacheResponse{
		MonitorID: q.MonitorID,
		Date:      day,
		Count:     len(entry.Schedules),
		Schedules: entry.Schedules,
	}, nil
}
