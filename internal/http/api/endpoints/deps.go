package endpoints

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/marquee/internal/db"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api"
	"github.com/Nixie-Tech-LLC/marquee/internal/http/api/packets"
	"github.com/Nixie-Tech-LLC/marquee/internal/metrics"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/redis"
)

type Cache interface {
	Get(ctx context.Context, day model.Date, monitorID int) (redis.Entry, bool, error)
}

type Refresher interface {
	Today() model.Date
	Refresh(ctx context.Context) (int, error)
}

type Notifier interface {
	Changed(ctx context.Context, event string, changed ...model.Schedule) error
	PushAll(ctx context.Context) (int, error)
}

// Deps is shared by every module. Cache, Refresher, Notifier and Metrics
// may be nil when the feature is disabled.
type Deps struct {
	Store       db.Store
	Cache       Cache
	Refresher   Refresher
	Notifier    Notifier
	Metrics     *metrics.Metrics
	HorizonDays int
}

func parseID(ctx *gin.Context, name string) (int, *api.APIError) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, api.BadRequest("invalid " + name)
	}
	return id, nil
}

// storeError maps store failures onto responses; ErrInUse on a write means
// a referenced row does not exist.
func storeError(err error, what string) *api.APIError {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return api.NotFound(what + " not found")
	case errors.Is(err, db.ErrInUse):
		return api.BadRequest(what + " references a record that does not exist")
	}
	return api.Internal(fmt.Sprintf("could not save %s", what))
}

func fieldErrors(fields map[string]string) *api.APIError {
	return &api.APIError{
		Code:    http.StatusBadRequest,
		Message: packets.InvalidSchedule,
		Payload: packets.FieldErrorsResponse{Error: packets.InvalidSchedule, Fields: fields},
	}
}

func conflictError(conflicts []model.Schedule) *api.APIError {
	return &api.APIError{
		Code:    http.StatusConflict,
		Message: model.ConflictWithExisting,
		Payload: model.ConflictResponse{Error: model.ConflictWithExisting, Conflicts: conflicts},
	}
}

// afterWrite refreshes the daily cache and notifies affected monitors.
// Failures are logged; the write itself already succeeded.
func (d *Deps) afterWrite(ctx context.Context, event string, changed ...model.Schedule) {
	if d.Refresher != nil {
		_, _ = d.Refresher.Refresh(ctx)
	}
	if d.Notifier != nil {
		if err := d.Notifier.Changed(ctx, event, changed...); err != nil {
			log.Warn().Err(err).Str("event", event).Msg("schedule change notification incomplete")
		}
	}
}
