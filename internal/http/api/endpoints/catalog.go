package endpoints

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/http/api"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
)

type CatalogController struct {
	*Deps
}

func CatalogModule(d *Deps) api.Module {
	ctl := &CatalogController{Deps: d}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/locations", ctl.listLocations)
		c.GET("/monitors", ctl.listMonitors)
		c.GET("/groups", ctl.listGroups)
		c.GET("/contents", ctl.listContents)
	})
}

func listed[T any](what string, list []T, err error) (any, *api.APIError) {
	if err != nil {
		log.Error().Err(err).Str("list", what).Msg("failed to list")
		return nil, api.Internal("failed to list " + what)
	}
	if list == nil {
		list = []T{}
	}
	return list, nil
}

func (c *CatalogController) listLocations(ctx *gin.Context) (any, *api.APIError) {
	list, err := c.Store.ListLocations(ctx.Request.Context())
	return listed[model.Location]("locations", list, err)
}

func (c *CatalogController) listMonitors(ctx *gin.Context) (any, *api.APIError) {
	list, err := c.Store.ListMonitors(ctx.Request.Context())
	return listed[model.Monitor]("monitors", list, err)
}

func (c *CatalogController) listGroups(ctx *gin.Context) (any, *api.APIError) {
	list, err := c.Store.ListGroups(ctx.Request.Context())
	return listed[model.MonitorGroup]("groups", list, err)
}

func (c *CatalogController) listContents(ctx *gin.Context) (any, *api.APIError) {
	list, err := c.Store.ListContents(ctx.Request.Context())
	return listed[model.Content]("contents", list, err)
}
