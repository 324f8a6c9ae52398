package endpoints

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/db"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api/packets"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/scheduling/blocks"
)

type TemplateController struct {
	*Deps
}

func TemplateModule(d *Deps) api.Module {
	ctl := &TemplateController{Deps: d}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/templates", ctl.listTemplates)
		c.GET("/templates/:id", ctl.getTemplate)
		c.POST("/templates", ctl.createTemplate)
		c.PUT("/templates/:id", ctl.updateTemplate)
		c.DELETE("/templates/:id", ctl.deleteTemplate)
	})
}

// bindTemplate decodes and validates a template body. Blocks are stored in
// the order given.
func bindTemplate(ctx *gin.Context) (model.Template, *api.APIError) {
	var t model.Template
	if err := ctx.ShouldBindJSON(&t); err != nil {
		return t, api.BadRequest(err.Error())
	}
	if strings.TrimSpace(t.Name) == "" {
		return t, api.BadRequest("template name is required")
	}
	if vs := blocks.Validate(t.Blocks); len(vs) > 0 {
		return t, &api.APIError{
			Code:    http.StatusUnprocessableEntity,
			Message: packets.InvalidTemplate,
			Payload: packets.ViolationsResponse{Error: packets.InvalidTemplate, Violations: vs},
		}
	}
	for i := range t.Blocks {
		t.Blocks[i].Position = i
		for j := range t.Blocks[i].Contents {
			t.Blocks[i].Contents[j].Position = j
		}
	}
	return t, nil
}

func (c *TemplateController) listTemplates(ctx *gin.Context) (any, *api.APIError) {
	list, err := c.Store.ListTemplates(ctx.Request.Context())
	return listed[model.Template]("templates", list, err)
}

func (c *TemplateController) getTemplate(ctx *gin.Context) (any, *api.APIError) {
	id, apiErr := parseID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	t, err := c.Store.GetTemplate(ctx.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, api.NotFound("template not found")
	}
	if err != nil {
		log.Error().Err(err).Int("template_id", id).Msg("failed to load template")
		return nil, api.Internal("failed to load template")
	}
	return t, nil
}

func (c *TemplateController) createTemplate(ctx *gin.Context) (any, *api.APIError) {
	t, apiErr := bindTemplate(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	saved, err := c.Store.CreateTemplate(ctx.Request.Context(), t)
	if err != nil {
		log.Error().Err(err).Str("name", t.Name).Msg("failed to create template")
		return nil, storeError(err, "template")
	}
	log.Info().Int("template_id", saved.ID).Int("blocks", len(saved.Blocks)).Msg("template created")
	return saved, nil
}

func (c *TemplateController) updateTemplate(ctx *gin.Context) (any, *api.APIError) {
	id, apiErr := parseID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	t, apiErr := bindTemplate(ctx)
	if apiErr != nil {
		return nil, apiErr
	}
	saved, err := c.Store.ReplaceTemplate(ctx.Request.Context(), id, t)
	if err != nil {
		log.Error().Err(err).Int("template_id", id).Msg("failed to replace template")
		return nil, storeError(err, "template")
	}
	log.Info().Int("template_id", id).Msg("template replaced")
	return saved, nil
}

func (c *TemplateController) deleteTemplate(ctx *gin.Context) (any, *api.APIError) {
	id, apiErr := parseID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	err := c.Store.DeleteTemplate(ctx.Request.Context(), id)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return nil, api.NotFound("template not found")
	case errors.Is(err, db.ErrInUse):
		return nil, &api.APIError{Code: http.StatusConflict, Message: "template is used by schedules"}
	case err != nil:
		log.Error().Err(err).Int("template_id", id).Msg("failed to delete template")
		return nil, api.Internal("could not delete template")
	}
	return packets.MessageResponse{Message: "template deleted"}, nil
}
